package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/rwadiscovery/internal/domain"
	"github.com/alanyoungcy/rwadiscovery/internal/server"
	"github.com/alanyoungcy/rwadiscovery/internal/server/handler"
	"github.com/alanyoungcy/rwadiscovery/internal/server/ws"
)

// DefaultRefreshInterval applies when sources.refresh_interval is unset.
const DefaultRefreshInterval = 10 * time.Minute

// ServerMode serves the HTTP API and WebSocket hub until ctx is cancelled.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")
	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// FullMode is ServerMode plus a periodic discovery refresh.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")
	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)

	interval := a.cfg.Sources.RefreshInterval.Duration
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	g.Go(func() error {
		return runRefresh(ctx, deps.Discovery, deps.Bus, interval, a.logger)
	})
	return g.Wait()
}

// DiscoverMode runs one uncached aggregation and writes the candidates to
// stdout as JSON.
func (a *App) DiscoverMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting discover mode")
	assets := deps.Discovery.Collect(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.printJSON(assets)
}

// LeaderboardMode writes the current leaderboard to stdout as JSON.
func (a *App) LeaderboardMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting leaderboard mode")
	if deps.Ledger == nil {
		return fmt.Errorf("app: leaderboard: %w: no discovery contract configured", domain.ErrConfiguration)
	}
	board, err := deps.Ledger.Leaderboard(ctx, 0)
	if err != nil {
		return fmt.Errorf("app: leaderboard: %w", err)
	}
	if board == nil {
		board = []domain.LeaderboardEntry{}
	}
	return a.printJSON(board)
}

func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("app: write output: %w", err)
	}
	return nil
}

// startHTTPServer adds the hub and HTTP server goroutines to g. The server is
// shut down gracefully when ctx is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	hub := ws.NewHub(deps.Bus, a.logger, ws.Config{
		Mode:           a.cfg.Mode,
		StartedAt:      time.Now().UTC(),
		AllowedOrigins: a.cfg.Server.CORSOrigins,
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	// Interface values stay nil when the contract is absent so the handlers
	// can report 503.
	var ledger handler.Ledger
	if deps.Ledger != nil {
		ledger = deps.Ledger
	}
	var minter handler.BatchMinter
	if deps.Minter != nil {
		minter = deps.Minter
	}

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(deps.Health, a.logger),
		Scan:   handler.NewScanHandler(deps.Analysis, deps.Discovery, deps.Bus, a.logger),
		Assets: handler.NewAssetHandler(deps.Assets, a.logger),
		Users:  handler.NewUserHandler(ledger, deps.Collections, a.logger),
		Mint:   handler.NewMintHandler(minter, a.logger),
	}
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.Limiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// Refresher recomputes the candidate set.
type Refresher interface {
	Refresh(ctx context.Context) ([]domain.DiscoveredAsset, error)
}

// runRefresh refreshes discovery every interval and announces each run on
// bus. Refresh failures are logged and retried on the next tick.
func runRefresh(ctx context.Context, r Refresher, bus domain.EventBus, interval time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			assets, err := r.Refresh(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				logger.WarnContext(ctx, "discovery refresh failed", slog.String("error", err.Error()))
				continue
			}
			logger.InfoContext(ctx, "discovery refreshed", slog.Int("candidates", len(assets)))
			if bus == nil {
				continue
			}
			payload, _ := json.Marshal(map[string]any{"count": len(assets), "scannedAt": time.Now().UTC()})
			if err := bus.Publish(ctx, domain.ChannelScanCompleted, payload); err != nil {
				logger.WarnContext(ctx, "scan event publish failed", slog.String("error", err.Error()))
			}
		}
	}
}
