// Package discovery merges candidate assets from every configured source into
// a deduplicated, scored list ready to mint.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/rwadiscovery/internal/cache"
	"github.com/alanyoungcy/rwadiscovery/internal/domain"
	"github.com/alanyoungcy/rwadiscovery/internal/scoring"
	"github.com/alanyoungcy/rwadiscovery/internal/source"
)

// DefaultPerSourceCap bounds how many candidates one source contributes.
const DefaultPerSourceCap = 20

// CandidateSource is any adapter that lists assets.
type CandidateSource interface {
	Name() string
	Fetch(ctx context.Context) ([]domain.RawAssetFacts, error)
}

// Aggregator fans out to its sources, caps and dedupes their facts, and
// scores each surviving candidate.
type Aggregator struct {
	sources []CandidateSource
	store   cache.Store
	ttl     time.Duration
	cap     int
	logger  *slog.Logger
}

// NewAggregator creates an Aggregator. Source order matters: on a duplicate
// (address, chain) the earlier source wins.
func NewAggregator(sources []CandidateSource, store cache.Store, ttl time.Duration, perSourceCap int, logger *slog.Logger) *Aggregator {
	if perSourceCap <= 0 {
		perSourceCap = DefaultPerSourceCap
	}
	return &Aggregator{
		sources: sources,
		store:   store,
		ttl:     ttl,
		cap:     perSourceCap,
		logger:  logger.With(slog.String("component", "discovery")),
	}
}

// Discover returns the cached candidate list, computing it on a miss. When
// every source fails nothing is cached and the error wraps
// domain.ErrSourceUnavailable, so callers caching derived views skip them too.
func (a *Aggregator) Discover(ctx context.Context) ([]domain.DiscoveredAsset, error) {
	if assets, ok, err := cache.Lookup[[]domain.DiscoveredAsset](ctx, a.store, cache.CandidatesKey); err == nil && ok {
		return assets, nil
	}
	assets, failed := a.collect(ctx)
	if len(a.sources) > 0 && failed == len(a.sources) {
		return nil, fmt.Errorf("discovery: %w", &domain.SourceError{
			Source: "all",
			Err:    fmt.Errorf("%d of %d sources failed", failed, len(a.sources)),
		})
	}
	if err := cache.Put(ctx, a.store, cache.CandidatesKey, assets, a.ttl); err != nil {
		a.logger.Warn("cache candidates failed", slog.String("error", err.Error()))
	}
	return assets, nil
}

// Refresh drops cached candidates and listings, then recomputes.
func (a *Aggregator) Refresh(ctx context.Context) ([]domain.DiscoveredAsset, error) {
	for _, prefix := range []string{cache.PrefixDiscovery, cache.PrefixAssets} {
		if _, err := a.store.Invalidate(ctx, prefix); err != nil {
			a.logger.Warn("cache invalidate failed", slog.String("prefix", prefix), slog.String("error", err.Error()))
		}
	}
	return a.Discover(ctx)
}

// Collect queries every source concurrently, bypassing the cache.
func (a *Aggregator) Collect(ctx context.Context) []domain.DiscoveredAsset {
	assets, _ := a.collect(ctx)
	return assets
}

// collect waits for every source to settle. A failed source contributes
// nothing; the count of failures is returned.
func (a *Aggregator) collect(ctx context.Context) ([]domain.DiscoveredAsset, int) {
	start := time.Now()
	perSource := make([][]domain.RawAssetFacts, len(a.sources))
	failures := make([]bool, len(a.sources))

	var wg sync.WaitGroup
	for i, src := range a.sources {
		wg.Add(1)
		go func(i int, src CandidateSource) {
			defer wg.Done()
			facts, err := src.Fetch(ctx)
			if err != nil {
				a.logger.Warn("source unavailable",
					slog.String("source", src.Name()),
					slog.String("error", err.Error()),
				)
				failures[i] = true
				return
			}
			perSource[i] = capByRank(facts, a.cap)
		}(i, src)
	}
	wg.Wait()

	seen := make(map[string]struct{})
	out := make([]domain.DiscoveredAsset, 0, len(a.sources)*a.cap)
	for i, facts := range perSource {
		for _, f := range facts {
			asset, err := Score(f)
			if err != nil {
				a.logger.Warn("candidate skipped",
					slog.String("source", a.sources[i].Name()),
					slog.String("asset", f.NaturalKey),
					slog.String("error", err.Error()),
				)
				continue
			}
			key := asset.Reference().Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, asset)
		}
	}

	failed := 0
	for _, f := range failures {
		if f {
			failed++
		}
	}
	a.logger.Info("discovery complete",
		slog.Int("sources", len(a.sources)),
		slog.Int("failed", failed),
		slog.Int("candidates", len(out)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return out, failed
}

// capByRank keeps the top n facts by RankKey, preserving source order on ties.
func capByRank(facts []domain.RawAssetFacts, n int) []domain.RawAssetFacts {
	sorted := make([]domain.RawAssetFacts, len(facts))
	copy(sorted, facts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].RankKey > sorted[j].RankKey })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// Score resolves the candidate's address and runs the three models over its
// facts. Facts without a valid contract address get a synthetic one.
func Score(f domain.RawAssetFacts) (domain.DiscoveredAsset, error) {
	address := strings.ToLower(f.Address)
	synthetic := false
	if !common.IsHexAddress(address) {
		address = SyntheticAddress(f.Source, f.NaturalKey)
		synthetic = true
	}

	assetType, ok := domain.ParseAssetType(f.Category)
	if !ok {
		assetType = domain.ClassifyAssetType(f.Name, f.Symbol)
	}

	var pool *domain.RawAssetFacts
	if f.Source == source.SourceYield {
		pool = &f
	}
	res := scoring.Evaluate(scoring.BuildInputs(f, pool, assetType))

	doc := MetadataDocument(f.Name, f.Symbol, assetType)
	uri, err := TokenURI(doc)
	if err != nil {
		return domain.DiscoveredAsset{}, err
	}

	return domain.DiscoveredAsset{
		Address:         address,
		ChainID:         f.ChainID,
		Name:            f.Name,
		Symbol:          f.Symbol,
		AssetType:       assetType,
		RarityTier:      res.RarityTier,
		RiskTier:        res.RiskTier,
		RarityScore:     res.Rarity,
		PredictionScore: res.Prediction.Score * 100,
		CurrentValue:    currentValue(f),
		YieldRate:       yieldBasisPoints(f.APY),
		TokenURI:        uri,
		Source:          f.Source,
		Synthetic:       synthetic,
	}, nil
}

// currentValue is the whole-dollar value: bid, estimate midpoint or TVL.
func currentValue(f domain.RawAssetFacts) domain.BigInt {
	var usd float64
	switch {
	case f.CurrentBid != nil:
		usd = *f.CurrentBid
	case f.EstimateRange != nil:
		usd = (f.EstimateRange.Low + f.EstimateRange.High) / 2
	case f.TVL != nil:
		usd = *f.TVL
	}
	if usd <= 0 || math.IsNaN(usd) || math.IsInf(usd, 0) {
		return domain.BigIntFromInt64(0)
	}
	return domain.NewBigInt(decimal.NewFromFloat(usd).Floor().BigInt())
}

func yieldBasisPoints(apy *float64) int64 {
	if apy == nil || *apy <= 0 || math.IsNaN(*apy) {
		return 0
	}
	return int64(math.Round(*apy * 100))
}
