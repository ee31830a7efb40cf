package analysis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/rwadiscovery/internal/cache"
	"github.com/alanyoungcy/rwadiscovery/internal/domain"
	"github.com/alanyoungcy/rwadiscovery/internal/scoring"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

type stubChain struct {
	facts domain.RawAssetFacts
	err   error
	calls atomic.Int32
}

func (s *stubChain) Fetch(context.Context, domain.AssetReference) (domain.RawAssetFacts, error) {
	s.calls.Add(1)
	return s.facts, s.err
}

type stubPools struct {
	facts domain.RawAssetFacts
	found bool
	err   error
	delay time.Duration
}

func (s *stubPools) Lookup(context.Context, domain.AssetReference) (domain.RawAssetFacts, bool, error) {
	time.Sleep(s.delay)
	return s.facts, s.found, s.err
}

func artFacts() domain.RawAssetFacts {
	supply := domain.BigIntFromInt64(500)
	return domain.RawAssetFacts{
		Source:       "erc20",
		Name:         "Gallery Masterpiece",
		Symbol:       "ART",
		TotalSupply:  &supply,
		HolderCount:  ptr(int64(50)),
		HolderSource: "estimate",
	}
}

var ref = domain.AssetReference{Address: "0x1b19c19393e2d034d8ff31ff34c81252fcbbee92", ChainID: 1}

func TestAnalyzeWithoutPool(t *testing.T) {
	chain := &stubChain{facts: artFacts()}
	o := NewOrchestrator(chain, &stubPools{}, cache.NewMemory(), 10*time.Minute, testLogger())
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return fixed }

	a, err := o.Analyze(context.Background(), ref)
	require.NoError(t, err)

	assert.Equal(t, "1:0x1b19c19393e2d034d8ff31ff34c81252fcbbee92", a.AssetID)
	assert.Equal(t, domain.AssetTypeArt, a.AssetType)
	// Default age 180d scores 0.8 and default market cap $5M scores 0.4.
	assert.InDelta(t, 35+25*0.31622776601683794+15*0.8+15*1.0+10*0.4, a.RarityScore, 1e-6)
	assert.Equal(t, domain.RarityRare, a.RarityTier)
	assert.Equal(t, domain.Bullish, a.MarketDirection)
	assert.InDelta(t, 92, a.PredictionConfidence, 1e-9)
	assert.False(t, a.Metrics.RiskInput.AuditStatus)
	assert.Equal(t, "500", a.Metrics.TotalSupply.String())
	assert.Contains(t, a.Metrics.Defaults, scoring.DefaultedMarketCap)
	assert.Equal(t, fixed, a.Timestamp)
	assert.GreaterOrEqual(t, a.HealthScore, 0)
	assert.LessOrEqual(t, a.HealthScore, 100)
}

func TestAnalyzeWithPoolIsAuditedAndUsesYieldHistory(t *testing.T) {
	supply := domain.BigIntFromInt64(400_000_000)
	chain := &stubChain{facts: domain.RawAssetFacts{Name: "Ondo US Dollar Yield", Symbol: "USDY", TotalSupply: &supply}}
	pools := &stubPools{found: true, facts: domain.RawAssetFacts{
		TVL:          ptr(600_000_000.0),
		APY:          ptr(5.0),
		YieldHistory: []float64{5.2, 5.1, 5.05, 5.0},
	}}
	o := NewOrchestrator(chain, pools, cache.NewMemory(), time.Minute, testLogger())

	a, err := o.Analyze(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, domain.AssetTypeTreasury, a.AssetType)
	assert.True(t, a.Metrics.RiskInput.AuditStatus)
	assert.Equal(t, 600_000_000.0, a.Metrics.RiskInput.LiquidityDepth)
	assert.Contains(t, a.Metrics.Factors, "yield falling")
	require.NotNil(t, a.Metrics.APY)
	assert.Equal(t, 5.0, *a.Metrics.APY)
}

func TestAnalyzePoolFailureDegradesOnly(t *testing.T) {
	chain := &stubChain{facts: artFacts()}
	pools := &stubPools{err: errors.New("aggregator down"), delay: 10 * time.Millisecond}
	o := NewOrchestrator(chain, pools, cache.NewMemory(), time.Minute, testLogger())

	a, err := o.Analyze(context.Background(), ref)
	require.NoError(t, err)
	assert.False(t, a.Metrics.RiskInput.AuditStatus)
}

func TestAnalyzeChainFailureIsMandatoryDataMissing(t *testing.T) {
	chain := &stubChain{err: &domain.SourceError{Source: "erc20", Asset: ref.Key(), Err: errors.New("symbol: call: reverted")}}
	store := cache.NewMemory()
	o := NewOrchestrator(chain, &stubPools{found: true}, store, time.Minute, testLogger())

	_, err := o.Analyze(context.Background(), ref)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMandatoryDataMissing)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "symbol")

	ok, err := store.Exists(context.Background(), cache.AnalysisKey(ref))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAnalyzeIsCachedPerAsset(t *testing.T) {
	chain := &stubChain{facts: artFacts()}
	o := NewOrchestrator(chain, nil, cache.NewMemory(), time.Minute, testLogger())
	ctx := context.Background()

	first, err := o.Analyze(ctx, ref)
	require.NoError(t, err)
	upper := domain.AssetReference{Address: "0x1B19C19393E2D034D8FF31FF34C81252FCBBEE92", ChainID: 1}
	second, err := o.Analyze(ctx, upper)
	require.NoError(t, err)

	assert.Equal(t, int32(1), chain.calls.Load())
	assert.Equal(t, first.RarityScore, second.RarityScore)
	assert.True(t, first.Timestamp.Equal(second.Timestamp))

	_, err = o.Analyze(ctx, domain.AssetReference{Address: ref.Address, ChainID: 137})
	require.NoError(t, err)
	assert.Equal(t, int32(2), chain.calls.Load())
}
