package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/rwadiscovery/internal/domain"
	"github.com/alanyoungcy/rwadiscovery/internal/service"
)

// AssetService is what the asset endpoints need from the service layer.
type AssetService interface {
	List(ctx context.Context, f service.ListFilter) ([]domain.DiscoveredAsset, error)
	Get(ctx context.Context, id string, chainID int64) (service.AssetDetail, error)
}

// AssetHandler serves asset listing and lookup.
type AssetHandler struct {
	assets AssetService
	logger *slog.Logger
}

// NewAssetHandler creates an AssetHandler.
func NewAssetHandler(assets AssetService, logger *slog.Logger) *AssetHandler {
	return &AssetHandler{assets: assets, logger: logger}
}

type listAssetsResponse struct {
	Assets []domain.DiscoveredAsset `json:"assets"`
	Count  int                      `json:"count"`
}

// ListAssets returns discovery candidates filtered by type and chain.
// GET /api/assets?type=treasury&chainId=1&limit=20
func (h *AssetHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	chainID, err := queryInt(r, "chainId", 0)
	if err != nil {
		writeServiceError(w, r, h.logger, "list assets", err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeServiceError(w, r, h.logger, "list assets", err)
		return
	}

	assets, err := h.assets.List(r.Context(), service.ListFilter{
		Type:    domain.AssetType(r.URL.Query().Get("type")),
		ChainID: chainID,
		Limit:   int(limit),
	})
	if err != nil {
		writeServiceError(w, r, h.logger, "list assets", err)
		return
	}
	writeJSON(w, http.StatusOK, listAssetsResponse{Assets: assets, Count: len(assets)})
}

// GetAsset resolves a token id, an address or a name/symbol query.
// GET /api/assets/{id}?chainId=1
func (h *AssetHandler) GetAsset(w http.ResponseWriter, r *http.Request) {
	chainID, err := queryInt(r, "chainId", 0)
	if err != nil {
		writeServiceError(w, r, h.logger, "get asset", err)
		return
	}
	detail, err := h.assets.Get(r.Context(), r.PathValue("id"), chainID)
	if err != nil {
		writeServiceError(w, r, h.logger, "get asset", err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}
