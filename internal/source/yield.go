package source

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/rwadiscovery/internal/cache"
	"github.com/alanyoungcy/rwadiscovery/internal/domain"
)

// SourceYield names the DeFi yield aggregator.
const SourceYield = "defillama"

// DefaultYieldURL is the public pools endpoint root.
const DefaultYieldURL = "https://yields.llama.fi"

// rwaProjects are the project-name substrings treated as RWA protocols.
var rwaProjects = []string{
	"ondo", "centrifuge", "maple", "goldfinch", "backed", "superstate",
	"franklin", "openeden", "matrixdock", "mountain-protocol", "hashnote",
	"securitize", "realt", "tangible", "clearpool", "truefi",
}

// supportedYieldChains are the aggregator chain labels we keep.
var supportedYieldChains = map[string]bool{
	"ethereum":  true,
	"polygon":   true,
	"arbitrum":  true,
	"base":      true,
	"optimism":  true,
	"avalanche": true,
}

type llamaPoolsResponse struct {
	Status string      `json:"status"`
	Data   []llamaPool `json:"data"`
}

type llamaPool struct {
	Pool             string   `json:"pool"`
	Chain            string   `json:"chain"`
	Project          string   `json:"project"`
	Symbol           string   `json:"symbol"`
	TVLUsd           *float64 `json:"tvlUsd"`
	APY              *float64 `json:"apy"`
	APYPct1D         *float64 `json:"apyPct1D"`
	APYPct7D         *float64 `json:"apyPct7D"`
	APYPct30D        *float64 `json:"apyPct30D"`
	UnderlyingTokens []string `json:"underlyingTokens"`
}

func (p llamaPool) isRWA() bool {
	project := strings.ToLower(p.Project)
	for _, s := range rwaProjects {
		if strings.Contains(project, s) {
			return true
		}
	}
	return false
}

// toFacts normalizes a pool. Missing TVL stays unknown; a missing APY leaves
// yield history empty.
func (p llamaPool) toFacts() domain.RawAssetFacts {
	f := domain.RawAssetFacts{
		Source:     SourceYield,
		NaturalKey: p.Pool,
		ChainID:    domain.ChainIDFromName(p.Chain),
		Name:       strings.TrimSpace(p.Project + " " + p.Symbol),
		Symbol:     p.Symbol,
		TVL:        p.TVLUsd,
		APY:        p.APY,
	}
	for _, t := range p.UnderlyingTokens {
		if common.IsHexAddress(t) {
			f.Address = strings.ToLower(t)
			break
		}
	}
	if p.TVLUsd != nil {
		f.RankKey = *p.TVLUsd
	}
	if p.APY != nil {
		apy := *p.APY
		f.YieldHistory = []float64{
			apy - deref(p.APYPct30D),
			apy - deref(p.APYPct7D),
			apy - deref(p.APYPct1D),
			apy,
		}
	}
	return f
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// YieldSource lists RWA pools from a DeFi yield aggregator.
type YieldSource struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	// Lookup reuses the filtered pool list for poolTTL when store is set.
	store   cache.Store
	poolTTL time.Duration
}

// YieldOption configures a YieldSource.
type YieldOption func(*YieldSource)

// WithPoolCache keeps the filtered pool list in store for ttl so repeated
// lookups do not download the whole pools payload.
func WithPoolCache(store cache.Store, ttl time.Duration) YieldOption {
	return func(y *YieldSource) {
		y.store = store
		y.poolTTL = ttl
	}
}

// NewYieldSource creates the adapter. An empty baseURL uses DefaultYieldURL.
func NewYieldSource(baseURL string, timeout time.Duration, logger *slog.Logger, opts ...YieldOption) *YieldSource {
	if baseURL == "" {
		baseURL = DefaultYieldURL
	}
	y := &YieldSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newHTTPClient(timeout),
		logger:     logger.With(slog.String("component", "yield_source")),
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

func (y *YieldSource) Name() string { return SourceYield }

// pools returns the filtered RWA pools ordered by TVL descending.
func (y *YieldSource) pools(ctx context.Context) ([]llamaPool, error) {
	var resp llamaPoolsResponse
	if err := getJSON(ctx, y.httpClient, y.baseURL+"/pools", nil, &resp); err != nil {
		return nil, &domain.SourceError{Source: SourceYield, Err: err}
	}

	kept := make([]llamaPool, 0, 64)
	for _, p := range resp.Data {
		if !p.isRWA() || !supportedYieldChains[strings.ToLower(p.Chain)] {
			continue
		}
		kept = append(kept, p)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return deref(kept[i].TVLUsd) > deref(kept[j].TVLUsd)
	})
	return kept, nil
}

// Fetch returns every RWA pool as facts, largest TVL first.
func (y *YieldSource) Fetch(ctx context.Context) ([]domain.RawAssetFacts, error) {
	pools, err := y.pools(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.RawAssetFacts, 0, len(pools))
	for _, p := range pools {
		out = append(out, p.toFacts())
	}
	y.logger.Debug("yield pools fetched", slog.Int("count", len(out)))
	return out, nil
}

// Lookup finds the largest listed RWA pool whose underlying tokens include
// the asset on the same chain.
func (y *YieldSource) Lookup(ctx context.Context, ref domain.AssetReference) (domain.RawAssetFacts, bool, error) {
	pools, err := y.cachedPools(ctx)
	if err != nil {
		return domain.RawAssetFacts{}, false, err
	}
	for _, p := range pools {
		if domain.ChainIDFromName(p.Chain) != ref.ChainID {
			continue
		}
		for _, t := range p.UnderlyingTokens {
			if strings.EqualFold(t, ref.Address) {
				return p.toFacts(), true, nil
			}
		}
	}
	return domain.RawAssetFacts{}, false, nil
}

func (y *YieldSource) cachedPools(ctx context.Context) ([]llamaPool, error) {
	if y.store == nil {
		return y.pools(ctx)
	}
	return cache.GetOrSet(ctx, y.store, cache.YieldPoolsKey, y.poolTTL, y.pools)
}
