package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/rwadiscovery/internal/domain"
	"github.com/alanyoungcy/rwadiscovery/internal/service"
)

// Ledger is the read side of the discovery ledger.
type Ledger interface {
	Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
	UserRank(ctx context.Context, address string) (int, error)
	UserStats(ctx context.Context, address string) (domain.UserStats, error)
}

// Collections reads a user's collected cards.
type Collections interface {
	Cards(ctx context.Context, address string) ([]domain.CollectionCard, error)
}

// UserHandler serves the leaderboard and per-user endpoints.
type UserHandler struct {
	ledger      Ledger
	collections Collections
	logger      *slog.Logger
}

// NewUserHandler creates a UserHandler. ledger may be nil when no contract
// is configured.
func NewUserHandler(ledger Ledger, collections Collections, logger *slog.Logger) *UserHandler {
	return &UserHandler{ledger: ledger, collections: collections, logger: logger}
}

// Leaderboard returns the top discoverers.
// GET /api/leaderboard?limit=10
func (h *UserHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	if !h.ledgerReady(w) {
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeServiceError(w, r, h.logger, "leaderboard", err)
		return
	}
	board, err := h.ledger.Leaderboard(r.Context(), int(limit))
	if err != nil {
		writeServiceError(w, r, h.logger, "leaderboard", err)
		return
	}
	if board == nil {
		board = []domain.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": board})
}

// Rank returns the user's leaderboard position, 0 when unranked.
// GET /api/users/{address}/rank
func (h *UserHandler) Rank(w http.ResponseWriter, r *http.Request) {
	if !h.ledgerReady(w) {
		return
	}
	addr, err := service.NormalizeAddress(r.PathValue("address"))
	if err != nil {
		writeServiceError(w, r, h.logger, "user rank", err)
		return
	}
	rank, err := h.ledger.UserRank(r.Context(), addr)
	if err != nil {
		writeServiceError(w, r, h.logger, "user rank", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": addr, "rank": rank, "ranked": rank > 0})
}

// Stats returns the user's totals and rank.
// GET /api/users/{address}/stats
func (h *UserHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if !h.ledgerReady(w) {
		return
	}
	addr, err := service.NormalizeAddress(r.PathValue("address"))
	if err != nil {
		writeServiceError(w, r, h.logger, "user stats", err)
		return
	}
	stats, err := h.ledger.UserStats(r.Context(), addr)
	if err != nil {
		writeServiceError(w, r, h.logger, "user stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Cards returns the user's collected cards.
// GET /api/users/{address}/cards
func (h *UserHandler) Cards(w http.ResponseWriter, r *http.Request) {
	cards, err := h.collections.Cards(r.Context(), r.PathValue("address"))
	if err != nil {
		writeServiceError(w, r, h.logger, "user cards", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cards": cards, "count": len(cards)})
}

func (h *UserHandler) ledgerReady(w http.ResponseWriter) bool {
	if h.ledger == nil {
		writeError(w, http.StatusServiceUnavailable, "leaderboard is not configured")
		return false
	}
	return true
}
