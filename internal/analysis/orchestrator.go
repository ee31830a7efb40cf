// Package analysis produces the composite Analysis for one asset: on-chain
// facts plus optional yield-pool facts, run through the scoring models and
// cached per asset.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/rwadiscovery/internal/cache"
	"github.com/alanyoungcy/rwadiscovery/internal/domain"
	"github.com/alanyoungcy/rwadiscovery/internal/scoring"
)

// FactsReader fetches the mandatory on-chain facts.
type FactsReader interface {
	Fetch(ctx context.Context, ref domain.AssetReference) (domain.RawAssetFacts, error)
}

// PoolLookup finds supplementary yield-pool facts for an asset.
type PoolLookup interface {
	Lookup(ctx context.Context, ref domain.AssetReference) (domain.RawAssetFacts, bool, error)
}

// Orchestrator builds and caches analyses.
type Orchestrator struct {
	chain  FactsReader
	pools  PoolLookup
	store  cache.Store
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewOrchestrator creates an Orchestrator. pools may be nil.
func NewOrchestrator(chain FactsReader, pools PoolLookup, store cache.Store, ttl time.Duration, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		chain:  chain,
		pools:  pools,
		store:  store,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.With(slog.String("component", "analysis")),
	}
}

// Analyze returns the cached analysis for ref or computes a new one.
func (o *Orchestrator) Analyze(ctx context.Context, ref domain.AssetReference) (domain.Analysis, error) {
	return cache.GetOrSet(ctx, o.store, cache.AnalysisKey(ref), o.ttl, func(ctx context.Context) (domain.Analysis, error) {
		return o.compute(ctx, ref)
	})
}

// compute fetches on-chain and pool facts concurrently and waits for both.
// Missing on-chain facts fail the request; a missing pool only degrades it.
func (o *Orchestrator) compute(ctx context.Context, ref domain.AssetReference) (domain.Analysis, error) {
	var (
		wg        sync.WaitGroup
		facts     domain.RawAssetFacts
		chainErr  error
		pool      domain.RawAssetFacts
		poolFound bool
		poolErr   error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		facts, chainErr = o.chain.Fetch(ctx, ref)
	}()
	if o.pools != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool, poolFound, poolErr = o.pools.Lookup(ctx, ref)
		}()
	}
	wg.Wait()

	if chainErr != nil {
		return domain.Analysis{}, fmt.Errorf("analysis: %s: %w: %w", ref.Key(), domain.ErrMandatoryDataMissing, chainErr)
	}
	if poolErr != nil {
		o.logger.Warn("yield lookup failed",
			slog.String("source", "yield"),
			slog.String("asset", ref.Key()),
			slog.String("error", poolErr.Error()),
		)
		poolFound = false
	}

	var poolFacts *domain.RawAssetFacts
	if poolFound {
		poolFacts = &pool
	}
	return Build(ref, facts, poolFacts, o.now()), nil
}

// Build assembles an Analysis from already-fetched facts. It is pure apart
// from the supplied timestamp.
func Build(ref domain.AssetReference, facts domain.RawAssetFacts, pool *domain.RawAssetFacts, at time.Time) domain.Analysis {
	assetType := domain.ClassifyAssetType(facts.Name, facts.Symbol)
	in := scoring.BuildInputs(facts, pool, assetType)
	res := scoring.Evaluate(in)

	metrics := domain.AnalysisMetrics{
		Decimals:     facts.Decimals,
		HolderSource: facts.HolderSource,
		RiskScore:    res.Risk,
		Rarity:       res.RarityBreakdown,
		Risk:         res.RiskBreakdown,
		Factors:      res.Prediction.Factors,
		Defaults:     in.Defaults,
		RarityInput:  in.Rarity,
		RiskInput:    in.Risk,
		MarketInput:  in.Market,
	}
	if facts.TotalSupply != nil {
		metrics.TotalSupply = *facts.TotalSupply
	}
	if facts.HolderCount != nil {
		metrics.HolderCount = *facts.HolderCount
	}
	if pool != nil {
		metrics.TVL = pool.TVL
		metrics.APY = pool.APY
	}

	return domain.Analysis{
		AssetID:              ref.Key(),
		Asset:                ref,
		Name:                 facts.Name,
		Symbol:               facts.Symbol,
		AssetType:            assetType,
		RarityScore:          res.Rarity,
		RarityTier:           res.RarityTier,
		RiskTier:             res.RiskTier,
		MarketDirection:      res.Prediction.Direction,
		PredictionConfidence: res.Prediction.Confidence,
		HealthScore:          res.Health,
		Metrics:              metrics,
		Timestamp:            at.UTC(),
	}
}
