package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/rwadiscovery/internal/cache"
	"github.com/alanyoungcy/rwadiscovery/internal/config"
	"github.com/alanyoungcy/rwadiscovery/internal/discovery"
	"github.com/alanyoungcy/rwadiscovery/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (r *countingRefresher) Refresh(context.Context) ([]domain.DiscoveredAsset, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	return []domain.DiscoveredAsset{{Name: "Treasury Bill"}}, nil
}

func TestRunRefreshPublishesScanCompleted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := cache.NewLocalBus()
	events, err := bus.Subscribe(ctx, domain.ChannelScanCompleted)
	require.NoError(t, err)

	r := &countingRefresher{}
	done := make(chan error, 1)
	go func() { done <- runRefresh(ctx, r, bus, 10*time.Millisecond, testLogger()) }()

	select {
	case msg := <-events:
		var payload map[string]any
		require.NoError(t, json.Unmarshal(msg, &payload))
		assert.EqualValues(t, 1, payload["count"])
	case <-time.After(2 * time.Second):
		t.Fatal("no scan.completed event")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("refresh loop did not stop")
	}
	assert.GreaterOrEqual(t, r.calls.Load(), int32(1))
}

func TestRunRefreshSurvivesFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &countingRefresher{err: errors.New("upstream down")}

	done := make(chan error, 1)
	go func() { done <- runRefresh(ctx, r, nil, 5*time.Millisecond, testLogger()) }()

	require.Eventually(t, func() bool { return r.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

type staticSource struct{ facts []domain.RawAssetFacts }

func (s staticSource) Name() string { return "static" }

func (s staticSource) Fetch(context.Context) ([]domain.RawAssetFacts, error) {
	return s.facts, nil
}

func TestDiscoverModeWritesJSON(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mode = "discover"
	a := New(&cfg, testLogger())
	var out bytes.Buffer
	a.out = &out

	src := staticSource{facts: []domain.RawAssetFacts{{
		Source:     "static",
		NaturalKey: "tbill-1",
		Address:    "0x6B175474E89094C44Da98b954EedeAC495271d0F",
		ChainID:    1,
		Name:       "Treasury Bill Token",
		Symbol:     "TBILL",
	}}}
	deps := &Dependencies{
		Discovery: discovery.NewAggregator(
			[]discovery.CandidateSource{src}, cache.NewMemory(), time.Minute, 0, testLogger(),
		),
	}

	require.NoError(t, a.DiscoverMode(context.Background(), deps))

	var assets []domain.DiscoveredAsset
	require.NoError(t, json.Unmarshal(out.Bytes(), &assets))
	require.Len(t, assets, 1)
	assert.Equal(t, "0x6b175474e89094c44da98b954eedeac495271d0f", assets[0].Address)
	assert.Equal(t, "TBILL", assets[0].Symbol)
}

func TestLeaderboardModeRequiresContract(t *testing.T) {
	cfg := config.Defaults()
	a := New(&cfg, testLogger())
	err := a.LeaderboardMode(context.Background(), &Dependencies{})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestRunRejectsUnknownMode(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mode = "trade"
	a := New(&cfg, testLogger())
	defer a.Close()

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported mode "trade"`)
}
