package minting

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/rwadiscovery/internal/cache"
	"github.com/alanyoungcy/rwadiscovery/internal/domain"
)

type fakeWriter struct {
	mu         sync.Mutex
	canWrite   bool
	discovered map[string]bool
	failFor    map[string]error
	writes     []domain.MintParams
	nextID     int64
}

func (f *fakeWriter) CanWrite() bool { return f.canWrite }

func (f *fakeWriter) IsAssetDiscovered(_ context.Context, address string) (bool, error) {
	return f.discovered[address], nil
}

func (f *fakeWriter) WriteDiscovery(_ context.Context, p domain.MintParams) (domain.MintResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[p.Asset.Address]; err != nil {
		return domain.MintResult{}, err
	}
	f.writes = append(f.writes, p)
	f.nextID++
	return domain.MintResult{
		Asset:   p.Asset.Address,
		TxHash:  "0xtx",
		TokenID: domain.BigIntFromInt64(f.nextID),
	}, nil
}

type fakePublisher struct{ paths []string }

func (p *fakePublisher) Publish(_ context.Context, path string, _ []byte) (string, error) {
	p.paths = append(p.paths, path)
	return "https://cdn.example/" + path, nil
}

type fakeAnnouncer struct{ titles []string }

func (a *fakeAnnouncer) Notify(_ context.Context, _, title, _ string) error {
	a.titles = append(a.titles, title)
	return nil
}

type fakeCollector struct{ cards map[string][]domain.CollectionCard }

func (c *fakeCollector) AddCard(_ context.Context, address string, card domain.CollectionCard) error {
	c.cards[address] = append(c.cards[address], card)
	return nil
}

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func asset(addr, symbol string) domain.DiscoveredAsset {
	return domain.DiscoveredAsset{
		Address:     addr,
		ChainID:     1,
		Name:        symbol + " Token",
		Symbol:      symbol,
		AssetType:   domain.AssetTypeTreasury,
		RarityTier:  domain.RarityTier("Rare"),
		RarityScore: 70,
	}
}

const recipient = "0x00000000000000000000000000000000000000AA"

var (
	addrA = "0x0000000000000000000000000000000000000001"
	addrB = "0x0000000000000000000000000000000000000002"
	addrC = "0x0000000000000000000000000000000000000003"
)

type harness struct {
	minter *Minter
	writer *fakeWriter
	store  *cache.Memory
	bus    *cache.LocalBus
	sleeps []time.Duration
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		writer: &fakeWriter{canWrite: true, discovered: map[string]bool{}, failFor: map[string]error{}},
		store:  cache.NewMemory(),
		bus:    cache.NewLocalBus(),
	}
	opts = append([]Option{WithEventBus(h.bus)}, opts...)
	h.minter = NewMinter(h.writer, h.store, cache.NewLocalLock(), time.Second, testLogger(), opts...)
	h.minter.sleep = func(_ context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return nil
	}
	return h
}

func TestMintBatchValidatesBeforeAnyWrite(t *testing.T) {
	h := newHarness(t)
	bad := asset(addrB, "")
	_, err := h.minter.MintBatch(context.Background(), recipient, []domain.DiscoveredAsset{asset(addrA, "A"), bad})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, h.writer.writes)

	_, err = h.minter.MintBatch(context.Background(), recipient, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestMintBatchUnavailableWithoutSigner(t *testing.T) {
	h := newHarness(t)
	h.writer.canWrite = false
	_, err := h.minter.MintBatch(context.Background(), recipient, []domain.DiscoveredAsset{asset(addrA, "A")})
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestMintBatchSkipsDiscoveredAndPaces(t *testing.T) {
	h := newHarness(t)
	h.writer.discovered[addrB] = true

	results, err := h.minter.MintBatch(context.Background(), recipient,
		[]domain.DiscoveredAsset{asset(addrA, "A"), asset(addrB, "B"), asset(addrC, "C")})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.False(t, results[0].Skipped)
	assert.Equal(t, "1", results[0].TokenID.String())
	assert.True(t, results[1].Skipped)
	assert.Equal(t, "already discovered", results[1].Reason)
	assert.Equal(t, "2", results[2].TokenID.String())

	require.Len(t, h.writer.writes, 2)
	assert.Equal(t, strings.ToLower(recipient), h.writer.writes[0].Recipient)
	assert.True(t, strings.HasPrefix(h.writer.writes[0].Asset.TokenURI, "data:application/json;base64,"))
	assert.Equal(t, []time.Duration{time.Second}, h.sleeps)
}

func TestMintBatchInvalidatesCaches(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lower := strings.ToLower(recipient)
	for _, k := range []string{
		cache.LeaderboardKey(10),
		cache.UserCardsKey(lower),
		cache.UserCardsKey("0x00000000000000000000000000000000000000bb"),
		cache.AssetListKey("", 1, 10),
		cache.AnalysisKey(domain.AssetReference{Address: addrA, ChainID: 1}),
	} {
		require.NoError(t, h.store.Set(ctx, k, []byte("1"), time.Minute))
	}

	_, err := h.minter.MintBatch(ctx, recipient, []domain.DiscoveredAsset{asset(addrA, "A")})
	require.NoError(t, err)

	assert.Equal(t, 2, h.store.Len())
	ok, _ := h.store.Exists(ctx, cache.UserCardsKey("0x00000000000000000000000000000000000000bb"))
	assert.True(t, ok)
	ok, _ = h.store.Exists(ctx, cache.LeaderboardKey(10))
	assert.False(t, ok)
}

func TestMintBatchNothingMintedKeepsCaches(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.writer.discovered[addrA] = true
	require.NoError(t, h.store.Set(ctx, cache.LeaderboardKey(10), []byte("1"), time.Minute))

	results, err := h.minter.MintBatch(ctx, recipient, []domain.DiscoveredAsset{asset(addrA, "A")})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Skipped)
	assert.Equal(t, 1, h.store.Len())
}

func TestMintBatchWriteFailureContinues(t *testing.T) {
	h := newHarness(t)
	h.writer.failFor[addrA] = errors.New("nonce too low")

	results, err := h.minter.MintBatch(context.Background(), recipient,
		[]domain.DiscoveredAsset{asset(addrA, "A"), asset(addrB, "B")})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "nonce too low", results[0].Reason)
	assert.Empty(t, results[0].TxHash)
	assert.Equal(t, "0xtx", results[1].TxHash)
}

func TestMintBatchUnavailableWriteStops(t *testing.T) {
	h := newHarness(t)
	h.writer.failFor[addrA] = domain.ErrUnavailable

	results, err := h.minter.MintBatch(context.Background(), recipient,
		[]domain.DiscoveredAsset{asset(addrA, "A"), asset(addrB, "B")})
	require.ErrorIs(t, err, domain.ErrUnavailable)
	assert.Empty(t, results)
	assert.Empty(t, h.writer.writes)
}

func TestMintBatchRejectsConcurrentBatch(t *testing.T) {
	h := newHarness(t)
	locks := cache.NewLocalLock()
	h.minter.locks = locks
	unlock, err := locks.Acquire(context.Background(), BatchLockKey, time.Minute)
	require.NoError(t, err)
	defer unlock()

	_, err = h.minter.MintBatch(context.Background(), recipient, []domain.DiscoveredAsset{asset(addrA, "A")})
	assert.ErrorIs(t, err, domain.ErrLockHeld)
}

func TestMintBatchPublishesAndAnnounces(t *testing.T) {
	pub := &fakePublisher{}
	ann := &fakeAnnouncer{}
	col := &fakeCollector{cards: map[string][]domain.CollectionCard{}}
	h := newHarness(t, WithPublisher(pub), WithAnnouncer(ann), WithCollections(col))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := h.bus.Subscribe(ctx, domain.ChannelDiscoveryMinted)
	require.NoError(t, err)

	_, err = h.minter.MintBatch(ctx, recipient, []domain.DiscoveredAsset{asset(addrA, "A")})
	require.NoError(t, err)

	assert.Equal(t, []string{"metadata/1/" + addrA + ".json"}, pub.paths)
	assert.Equal(t, "https://cdn.example/metadata/1/"+addrA+".json", h.writer.writes[0].Asset.TokenURI)
	assert.Equal(t, []string{"1 discovery card(s) minted"}, ann.titles)

	cards := col.cards[strings.ToLower(recipient)]
	require.Len(t, cards, 1)
	assert.Equal(t, "1", cards[0].TokenID)
	assert.Equal(t, "0xtx", cards[0].TxHash)

	select {
	case payload := <-events:
		assert.Contains(t, string(payload), strings.ToLower(recipient))
	case <-time.After(time.Second):
		t.Fatal("no minted event")
	}
}
