package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/rwadiscovery/internal/domain"
)

// BatchMinter mints discovery cards.
type BatchMinter interface {
	MintBatch(ctx context.Context, recipient string, assets []domain.DiscoveredAsset) ([]domain.MintResult, error)
}

// MintHandler serves mint requests.
type MintHandler struct {
	minter BatchMinter
	logger *slog.Logger
}

// NewMintHandler creates a MintHandler. minter may be nil when minting is
// not configured.
func NewMintHandler(minter BatchMinter, logger *slog.Logger) *MintHandler {
	return &MintHandler{minter: minter, logger: logger}
}

type mintRequest struct {
	Recipient string                   `json:"recipient"`
	Assets    []domain.DiscoveredAsset `json:"assets"`
}

type mintResponse struct {
	Results []domain.MintResult `json:"results"`
	Error   string              `json:"error,omitempty"`
}

// Mint writes a batch of discovery cards to the recipient.
// POST /api/mint
func (h *MintHandler) Mint(w http.ResponseWriter, r *http.Request) {
	if h.minter == nil {
		writeError(w, http.StatusServiceUnavailable, "minting is not configured")
		return
	}
	var req mintRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, "mint", err)
		return
	}

	// Each write waits for its receipt, so a batch outlives the server-wide
	// write timeout. Cancellation still bounds it through r.Context().
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		h.logger.DebugContext(r.Context(), "handler: mint write deadline kept", slog.String("error", err.Error()))
	}

	results, err := h.minter.MintBatch(r.Context(), req.Recipient, req.Assets)
	if err != nil && len(results) == 0 {
		writeServiceError(w, r, h.logger, "mint", err)
		return
	}
	resp := mintResponse{Results: results}
	if err != nil {
		// Partial batch: report what was written alongside the stop reason.
		resp.Error = err.Error()
		h.logger.WarnContext(r.Context(), "handler: mint batch stopped early",
			slog.Int("results", len(results)),
			slog.String("error", err.Error()),
		)
	}
	writeJSON(w, http.StatusOK, resp)
}
