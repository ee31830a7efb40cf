package discovery

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/rwadiscovery/internal/cache"
	"github.com/alanyoungcy/rwadiscovery/internal/domain"
	"github.com/alanyoungcy/rwadiscovery/internal/source"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubSource struct {
	name  string
	facts []domain.RawAssetFacts
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(ctx context.Context) ([]domain.RawAssetFacts, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.facts, s.err
}

func ptr[T any](v T) *T { return &v }

func TestSyntheticAddressIsStable(t *testing.T) {
	a := SyntheticAddress("defillama", "747c1d2a-c668-4682-b9f9-296708a3dd90")
	b := SyntheticAddress("defillama", "747c1d2a-c668-4682-b9f9-296708a3dd90")
	assert.Equal(t, a, b)
	assert.True(t, common.IsHexAddress(a))
	assert.Len(t, a, 42)
	assert.Equal(t, strings.ToLower(a), a)

	assert.NotEqual(t, a, SyntheticAddress("defillama", "other-pool"))
	assert.NotEqual(t, a, SyntheticAddress("marketplace", "747c1d2a-c668-4682-b9f9-296708a3dd90"))
}

func TestMetadataDocumentIsDeterministic(t *testing.T) {
	a := MetadataDocument("Basquiat Untitled Study", "BUS", domain.AssetTypeArt)
	b := MetadataDocument("Basquiat Untitled Study", "BUS", domain.AssetTypeArt)
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a.Image, "data:image/svg+xml;base64,"))
	assert.NotEqual(t, a.Image, MetadataDocument("Other Piece", "BUS", domain.AssetTypeArt).Image)

	svg, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(a.Image, "data:image/svg+xml;base64,"))
	require.NoError(t, err)
	assert.Contains(t, string(svg), ">BUS<")

	uri, err := TokenURI(a)
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:application/json;base64,"))
	require.NoError(t, err)
	var decoded Metadata
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, a, decoded)
}

func TestMetadataEscapesMarkup(t *testing.T) {
	doc := MetadataDocument("x", "<b>", domain.AssetTypeLuxury)
	svg, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(doc.Image, "data:image/svg+xml;base64,"))
	require.NoError(t, err)
	assert.Contains(t, string(svg), "&lt;b&gt;")
}

const ousg = "0x1B19C19393e2d034D8Ff31ff34c81252FcBbee92"

func yieldFacts(key, addr string, tvl float64) domain.RawAssetFacts {
	return domain.RawAssetFacts{
		Source:     source.SourceYield,
		NaturalKey: key,
		Address:    addr,
		ChainID:    1,
		Name:       "ondo-finance " + key,
		Symbol:     "OUSG",
		TVL:        ptr(tvl),
		APY:        ptr(4.85),
		RankKey:    tvl,
	}
}

func TestAggregatorMergesCapsAndDedupes(t *testing.T) {
	watch := &stubSource{name: "watchlist", facts: []domain.RawAssetFacts{{
		Source: source.SourceWatchlist, Address: strings.ToLower(ousg), ChainID: 1,
		Name: "Ondo Short-Term US Government Bond Fund", Symbol: "OUSG", RankKey: 10,
	}}}
	yields := &stubSource{name: "yield", facts: []domain.RawAssetFacts{
		yieldFacts("small", "", 1e6),
		yieldFacts("dup", strings.ToUpper(ousg[:2])+ousg[2:], 9e8),
		yieldFacts("big", "", 5e8),
	}}
	market := &stubSource{name: "marketplace", facts: []domain.RawAssetFacts{{
		Source: source.SourceMarketplace, NaturalKey: "lot-1", ChainID: 8453,
		Name: "Basquiat Untitled Study", Symbol: "BUS", Category: "art",
		CurrentBid: ptr(120_000.5),
	}}}
	broken := &stubSource{name: "broken", err: &domain.SourceError{Source: "broken", Err: errors.New("timeout")}, delay: 20 * time.Millisecond}

	agg := NewAggregator([]CandidateSource{watch, yields, broken, market}, cache.NewMemory(), time.Minute, 2, testLogger())
	assets, err := agg.Discover(context.Background())
	require.NoError(t, err)

	// yield "small" is capped away, "dup" collides with the watchlist entry.
	require.Len(t, assets, 3)
	assert.Equal(t, source.SourceWatchlist, assets[0].Source)
	assert.Equal(t, strings.ToLower(ousg), assets[0].Address)
	assert.False(t, assets[0].Synthetic)

	assert.Equal(t, SyntheticAddress(source.SourceYield, "big"), assets[1].Address)
	assert.True(t, assets[1].Synthetic)
	assert.Equal(t, int64(485), assets[1].YieldRate)
	assert.Equal(t, "500000000", assets[1].CurrentValue.String())

	art := assets[2]
	assert.Equal(t, SyntheticAddress(source.SourceMarketplace, "lot-1"), art.Address)
	assert.Equal(t, domain.AssetTypeArt, art.AssetType)
	assert.Equal(t, "120000", art.CurrentValue.String())
	assert.True(t, strings.HasPrefix(art.TokenURI, "data:application/json;base64,"))
	for _, a := range assets {
		assert.GreaterOrEqual(t, a.RarityScore, 0.0)
		assert.LessOrEqual(t, a.RarityScore, 100.0)
	}
	assert.Equal(t, int32(1), broken.calls.Load())
}

func TestAggregatorRunsAreIdempotent(t *testing.T) {
	market := &stubSource{name: "marketplace", facts: []domain.RawAssetFacts{{
		Source: source.SourceMarketplace, NaturalKey: "lot-7", Name: "Patek 5711", Symbol: "PATEK", Category: "luxury",
	}}}
	first := NewAggregator([]CandidateSource{market}, cache.NewMemory(), time.Minute, 0, testLogger()).Collect(context.Background())
	second := NewAggregator([]CandidateSource{market}, cache.NewMemory(), time.Minute, 0, testLogger()).Collect(context.Background())
	require.Len(t, first, 1)
	assert.Equal(t, first, second)
}

func TestAggregatorCachesCandidates(t *testing.T) {
	src := &stubSource{name: "yield", facts: []domain.RawAssetFacts{yieldFacts("a", "", 1e7)}}
	store := cache.NewMemory()
	agg := NewAggregator([]CandidateSource{src}, store, time.Minute, 0, testLogger())

	_, err := agg.Discover(context.Background())
	require.NoError(t, err)
	_, err = agg.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), src.calls.Load())

	_, err = agg.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestAggregatorDoesNotCacheTotalFailure(t *testing.T) {
	src := &stubSource{name: "yield", err: errors.New("down")}
	store := cache.NewMemory()
	agg := NewAggregator([]CandidateSource{src}, store, time.Minute, 0, testLogger())

	assets, err := agg.Discover(context.Background())
	require.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.Empty(t, assets)

	ok, err := store.Exists(context.Background(), cache.CandidatesKey)
	require.NoError(t, err)
	assert.False(t, ok)

	// The next call retries the sources and caches once one recovers.
	src.err = nil
	src.facts = []domain.RawAssetFacts{yieldFacts("a", "", 1e7)}
	assets, err = agg.Discover(context.Background())
	require.NoError(t, err)
	assert.Len(t, assets, 1)
	ok, err = store.Exists(context.Background(), cache.CandidatesKey)
	require.NoError(t, err)
	assert.True(t, ok)
}
