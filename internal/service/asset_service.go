package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/alanyoungcy/rwadiscovery/internal/cache"
	"github.com/alanyoungcy/rwadiscovery/internal/domain"
)

// Listing limits.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// CandidateLister supplies the current discovery candidates.
type CandidateLister interface {
	Discover(ctx context.Context) ([]domain.DiscoveredAsset, error)
}

// CardReader reads minted cards by token id.
type CardReader interface {
	ReadDiscoveryCard(ctx context.Context, tokenID *big.Int) (domain.DiscoveryCard, error)
}

// Analyzer produces a live analysis for one asset.
type Analyzer interface {
	Analyze(ctx context.Context, ref domain.AssetReference) (domain.Analysis, error)
}

// ListFilter narrows an asset listing. Zero values match everything.
type ListFilter struct {
	Type    domain.AssetType
	ChainID int64
	Limit   int
}

// AssetDetail is the result of an asset lookup. Exactly one of Card or
// Asset is set; Analysis accompanies address lookups.
type AssetDetail struct {
	Card     *domain.DiscoveryCard   `json:"card,omitempty"`
	Asset    *domain.DiscoveredAsset `json:"asset,omitempty"`
	Analysis *domain.Analysis        `json:"analysis,omitempty"`
}

// AssetService lists discovery candidates and resolves single assets.
type AssetService struct {
	candidates     CandidateLister
	cards          CardReader
	analyzer       Analyzer
	cache          cache.Store
	listTTL        time.Duration
	detailTTL      time.Duration
	defaultChainID int64
	logger         *slog.Logger
}

// NewAssetService creates an AssetService. cards may be nil when no
// contract is configured; token id lookups then report ErrUnavailable.
func NewAssetService(
	candidates CandidateLister,
	cards CardReader,
	analyzer Analyzer,
	c cache.Store,
	ttls cache.TTLs,
	defaultChainID int64,
	logger *slog.Logger,
) *AssetService {
	ttls = ttls.WithDefaults()
	return &AssetService{
		candidates:     candidates,
		cards:          cards,
		analyzer:       analyzer,
		cache:          c,
		listTTL:        ttls.AssetList,
		detailTTL:      ttls.Asset,
		defaultChainID: defaultChainID,
		logger:         logger.With(slog.String("component", "asset_service")),
	}
}

// List returns candidates matching f, cached per filter for the list TTL.
func (s *AssetService) List(ctx context.Context, f ListFilter) ([]domain.DiscoveredAsset, error) {
	if f.Type != "" {
		t, ok := domain.ParseAssetType(string(f.Type))
		if !ok {
			return nil, &domain.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown asset type %q", f.Type)}
		}
		f.Type = t
	}
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultListLimit
	case f.Limit > MaxListLimit:
		f.Limit = MaxListLimit
	}

	key := cache.AssetListKey(string(f.Type), f.ChainID, f.Limit)
	assets, err := cache.GetOrSet(ctx, s.cache, key, s.listTTL, func(ctx context.Context) ([]domain.DiscoveredAsset, error) {
		all, err := s.candidates.Discover(ctx)
		if err != nil {
			return nil, err
		}
		return filterAssets(all, f), nil
	})
	if err != nil {
		return nil, fmt.Errorf("asset_service: list: %w", err)
	}
	return assets, nil
}

func filterAssets(all []domain.DiscoveredAsset, f ListFilter) []domain.DiscoveredAsset {
	out := make([]domain.DiscoveredAsset, 0, min(len(all), f.Limit))
	for _, a := range all {
		if f.Type != "" && a.AssetType != f.Type {
			continue
		}
		if f.ChainID != 0 && a.ChainID != f.ChainID {
			continue
		}
		out = append(out, a)
		if len(out) == f.Limit {
			break
		}
	}
	return out
}

// Get resolves id as a minted token id (decimal digits), an asset address
// (0x-prefixed, analysed live on chainID or the default chain), or
// otherwise a case-insensitive name/symbol search over the candidates.
func (s *AssetService) Get(ctx context.Context, id string, chainID int64) (AssetDetail, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return AssetDetail{}, &domain.ValidationError{Field: "id", Reason: "is required"}
	}
	if chainID == 0 {
		chainID = s.defaultChainID
	}

	var (
		key     string
		produce func(context.Context) (AssetDetail, error)
	)
	switch {
	case isTokenID(id):
		key = cache.AssetKey("token:" + id)
		produce = func(ctx context.Context) (AssetDetail, error) { return s.byTokenID(ctx, id) }
	case strings.HasPrefix(id, "0x") || strings.HasPrefix(id, "0X"):
		ref, err := domain.NewAssetReference(id, chainID)
		if err != nil {
			return AssetDetail{}, err
		}
		key = cache.AssetKey(ref.Key())
		produce = func(ctx context.Context) (AssetDetail, error) { return s.byAddress(ctx, ref) }
	default:
		key = cache.AssetKey("search:" + id)
		produce = func(ctx context.Context) (AssetDetail, error) { return s.search(ctx, id) }
	}

	detail, err := cache.GetOrSet(ctx, s.cache, key, s.detailTTL, produce)
	if err != nil {
		return AssetDetail{}, fmt.Errorf("asset_service: get %q: %w", id, err)
	}
	return detail, nil
}

func (s *AssetService) byTokenID(ctx context.Context, id string) (AssetDetail, error) {
	if s.cards == nil {
		return AssetDetail{}, fmt.Errorf("%w: no discovery contract configured", domain.ErrUnavailable)
	}
	n, ok := new(big.Int).SetString(id, 10)
	if !ok {
		return AssetDetail{}, &domain.ValidationError{Field: "id", Reason: "invalid token id"}
	}
	card, err := s.cards.ReadDiscoveryCard(ctx, n)
	if err != nil {
		return AssetDetail{}, err
	}
	return AssetDetail{Card: &card}, nil
}

func (s *AssetService) byAddress(ctx context.Context, ref domain.AssetReference) (AssetDetail, error) {
	analysis, err := s.analyzer.Analyze(ctx, ref)
	if err != nil {
		return AssetDetail{}, err
	}
	detail := AssetDetail{Analysis: &analysis}

	all, err := s.candidates.Discover(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "candidate lookup failed",
			slog.String("asset", ref.Key()),
			slog.String("error", err.Error()),
		)
		return detail, nil
	}
	for i := range all {
		if all[i].Reference().Equal(ref) {
			detail.Asset = &all[i]
			break
		}
	}
	return detail, nil
}

func (s *AssetService) search(ctx context.Context, query string) (AssetDetail, error) {
	all, err := s.candidates.Discover(ctx)
	if err != nil {
		return AssetDetail{}, err
	}
	q := strings.ToLower(query)

	// Exact name or symbol matches win over substring matches.
	var partial *domain.DiscoveredAsset
	for i := range all {
		name, symbol := strings.ToLower(all[i].Name), strings.ToLower(all[i].Symbol)
		if name == q || symbol == q {
			return AssetDetail{Asset: &all[i]}, nil
		}
		if partial == nil && (strings.Contains(name, q) || strings.Contains(symbol, q)) {
			partial = &all[i]
		}
	}
	if partial != nil {
		return AssetDetail{Asset: partial}, nil
	}
	return AssetDetail{}, fmt.Errorf("%q: %w", query, domain.ErrNotFound)
}

func isTokenID(id string) bool {
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
