package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/rwadiscovery/internal/domain"
)

// Analyzer scores a single token contract.
type Analyzer interface {
	Analyze(ctx context.Context, ref domain.AssetReference) (domain.Analysis, error)
}

// Scanner re-runs discovery across every source.
type Scanner interface {
	Refresh(ctx context.Context) ([]domain.DiscoveredAsset, error)
}

// ScanHandler serves contract scans and discovery refreshes.
type ScanHandler struct {
	analyzer Analyzer
	scanner  Scanner
	bus      domain.EventBus
	logger   *slog.Logger
}

// NewScanHandler creates a ScanHandler. bus may be nil.
func NewScanHandler(analyzer Analyzer, scanner Scanner, bus domain.EventBus, logger *slog.Logger) *ScanHandler {
	return &ScanHandler{analyzer: analyzer, scanner: scanner, bus: bus, logger: logger}
}

type scanRequest struct {
	ContractAddress string `json:"contractAddress"`
	ChainID         int64  `json:"chainId"`
}

// Scan analyzes one token contract. The reference is validated before any
// chain or upstream call is made.
// POST /api/scan
func (h *ScanHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, "scan", err)
		return
	}
	ref, err := domain.NewAssetReference(req.ContractAddress, req.ChainID)
	if err != nil {
		writeServiceError(w, r, h.logger, "scan", err)
		return
	}

	result, err := h.analyzer.Analyze(r.Context(), ref)
	if err != nil {
		writeServiceError(w, r, h.logger, "scan", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type refreshResponse struct {
	Assets    []domain.DiscoveredAsset `json:"assets"`
	Count     int                      `json:"count"`
	ScannedAt time.Time                `json:"scannedAt"`
}

// Refresh rebuilds the candidate set and announces completion on the bus.
// POST /api/discovery/refresh
func (h *ScanHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	assets, err := h.scanner.Refresh(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "refresh", err)
		return
	}
	if assets == nil {
		assets = []domain.DiscoveredAsset{}
	}

	resp := refreshResponse{Assets: assets, Count: len(assets), ScannedAt: time.Now().UTC()}
	if h.bus != nil {
		payload, err := json.Marshal(map[string]any{"count": resp.Count, "scannedAt": resp.ScannedAt})
		if err == nil {
			err = h.bus.Publish(r.Context(), domain.ChannelScanCompleted, payload)
		}
		if err != nil {
			h.logger.WarnContext(r.Context(), "handler: scan event publish failed",
				slog.String("error", err.Error()),
			)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
