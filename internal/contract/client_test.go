package contract

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/rwadiscovery/internal/crypto"
	"github.com/alanyoungcy/rwadiscovery/internal/domain"
)

const (
	contractAddr = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	devKey       = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
)

type fakeBackend struct {
	mu sync.Mutex

	head     uint64
	logs     []types.Log
	queries  []ethereum.FilterQuery
	calls    map[string][]any
	callErr  error
	sent     []*types.Transaction
	receipts int
	status   uint64
	tokenID  int64
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{calls: map[string][]any{}, status: types.ReceiptStatusSuccessful, tokenID: 7}
}

func (f *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if f.callErr != nil {
		return nil, f.callErr
	}
	m, err := DiscoveryABI.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	out, ok := f.calls[m.Name]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return m.Outputs.Pack(out...)
}

func (f *fakeBackend) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	var out []types.Log
	for _, lg := range f.logs {
		if lg.BlockNumber >= q.FromBlock.Uint64() && lg.BlockNumber <= q.ToBlock.Uint64() {
			out = append(out, lg)
		}
	}
	return out, nil
}

func (f *fakeBackend) BlockNumber(context.Context) (uint64, error) { return f.head, nil }

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(int64(f.head)), BaseFee: big.NewInt(10)}, nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) { return 3, nil }

func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) { return big.NewInt(2), nil }

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 100_000, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receipts++
	if f.receipts == 1 {
		return nil, ethereum.NotFound
	}
	lg := discoveredLog(f.tokenID, "0x00000000000000000000000000000000000000aa", "0x00000000000000000000000000000000000000bb", 80, 12, 0)
	lg.TxHash = hash
	return &types.Receipt{Status: f.status, BlockNumber: big.NewInt(12), Logs: []*types.Log{&lg}}, nil
}

func discoveredLog(tokenID int64, discoverer, asset string, score int64, block uint64, index uint) types.Log {
	ev := DiscoveryABI.Events[eventAssetDiscovered]
	data, err := ev.Inputs.NonIndexed().Pack(big.NewInt(score))
	if err != nil {
		panic(err)
	}
	return types.Log{
		Address: common.HexToAddress(contractAddr),
		Topics: []common.Hash{
			ev.ID,
			common.BigToHash(big.NewInt(tokenID)),
			common.BytesToHash(common.HexToAddress(discoverer).Bytes()),
			common.BytesToHash(common.HexToAddress(asset).Bytes()),
		},
		Data:        data,
		BlockNumber: block,
		Index:       index,
	}
}

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestClient(t *testing.T, b Backend, withSigner bool) *Client {
	t.Helper()
	var signer *crypto.Signer
	if withSigner {
		pk, err := ethcrypto.HexToECDSA(devKey)
		require.NoError(t, err)
		signer, err = crypto.NewSigner(pk, 31337)
		require.NoError(t, err)
	}
	c, err := New(b, Config{Address: contractAddr, ChainID: 31337, LogChunk: 100, ReceiptPoll: time.Millisecond}, signer, testLogger())
	require.NoError(t, err)
	return c
}

func TestNewRejectsBadAddress(t *testing.T) {
	_, err := New(newFakeBackend(), Config{Address: "nope"}, nil, testLogger())
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestReadDiscoveryCard(t *testing.T) {
	b := newFakeBackend()
	b.calls["getDiscovery"] = []any{
		common.HexToAddress("0x00000000000000000000000000000000000000Bb"),
		big.NewInt(1), "Ondo Short-Term Treasuries", "OUSG", uint8(0),
		big.NewInt(74), big.NewInt(62), big.NewInt(5_000_000), big.NewInt(480),
		common.HexToAddress("0x00000000000000000000000000000000000000Aa"),
		big.NewInt(1_700_000_000),
	}
	c := newTestClient(t, b, false)

	card, err := c.ReadDiscoveryCard(context.Background(), big.NewInt(7))
	require.NoError(t, err)
	assert.Equal(t, "7", card.TokenID.String())
	assert.Equal(t, "0x00000000000000000000000000000000000000bb", card.AssetAddress)
	assert.Equal(t, "0x00000000000000000000000000000000000000aa", card.Discoverer)
	assert.Equal(t, int64(1), card.ChainID)
	assert.Equal(t, domain.AssetTypeFromCode(0), card.AssetType)
	assert.Equal(t, "74", card.RarityScore.String())
	assert.Equal(t, "480", card.YieldRate.String())
	assert.Equal(t, time.Unix(1_700_000_000, 0).UTC(), card.DiscoveredAt)
}

func TestReadDiscoveryCardRevertIsNotFound(t *testing.T) {
	c := newTestClient(t, newFakeBackend(), false)
	_, err := c.ReadDiscoveryCard(context.Background(), big.NewInt(99))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCounters(t *testing.T) {
	b := newFakeBackend()
	b.calls["totalDiscoveries"] = []any{big.NewInt(42)}
	b.calls["isAssetDiscovered"] = []any{true}
	c := newTestClient(t, b, false)

	n, err := c.TotalDiscoveries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), n.Int64())

	ok, err := c.IsAssetDiscovered(context.Background(), "0x00000000000000000000000000000000000000bb")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestQueryDiscoveryEventsPagesAndDecodes(t *testing.T) {
	b := newFakeBackend()
	b.logs = []types.Log{
		discoveredLog(1, "0x00000000000000000000000000000000000000aa", "0x0000000000000000000000000000000000000001", 50, 10, 0),
		discoveredLog(2, "0x00000000000000000000000000000000000000bb", "0x0000000000000000000000000000000000000002", 80, 150, 3),
		{Address: common.HexToAddress(contractAddr), Topics: []common.Hash{{}}, BlockNumber: 160},
	}
	removed := discoveredLog(3, "0x00000000000000000000000000000000000000cc", "0x0000000000000000000000000000000000000003", 90, 170, 0)
	removed.Removed = true
	b.logs = append(b.logs, removed)
	c := newTestClient(t, b, false)

	events, err := c.QueryDiscoveryEvents(context.Background(), 0, 250)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Len(t, b.queries, 3)
	assert.Equal(t, uint64(99), b.queries[0].ToBlock.Uint64())
	assert.Equal(t, uint64(200), b.queries[2].FromBlock.Uint64())
	assert.Equal(t, uint64(250), b.queries[2].ToBlock.Uint64())

	assert.Equal(t, "1", events[0].TokenID.String())
	assert.Equal(t, "0x00000000000000000000000000000000000000aa", events[0].Discoverer)
	assert.Equal(t, "0x0000000000000000000000000000000000000001", events[0].AssetAddress)
	assert.Equal(t, "50", events[0].RarityScore.String())
	assert.Equal(t, uint64(150), events[1].BlockNumber)
	assert.Equal(t, uint(3), events[1].LogIndex)
}

func TestQueryDiscoveryEventsEmptyRange(t *testing.T) {
	b := newFakeBackend()
	c := newTestClient(t, b, false)
	events, err := c.QueryDiscoveryEvents(context.Background(), 10, 5)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Empty(t, b.queries)
}

func mintParams() domain.MintParams {
	return domain.MintParams{
		Recipient: "0x00000000000000000000000000000000000000aa",
		Asset: domain.DiscoveredAsset{
			Address:         "0x00000000000000000000000000000000000000bb",
			ChainID:         1,
			Name:            "Ondo Short-Term Treasuries",
			Symbol:          "OUSG",
			AssetType:       domain.AssetTypeFromCode(0),
			RarityScore:     73.6,
			PredictionScore: 55,
			CurrentValue:    domain.BigIntFromInt64(1_000),
			YieldRate:       480,
			TokenURI:        "data:application/json;base64,e30=",
		},
	}
}

func TestWriteDiscoveryWithoutSignerIsUnavailable(t *testing.T) {
	c := newTestClient(t, newFakeBackend(), false)
	assert.False(t, c.CanWrite())
	_, err := c.WriteDiscovery(context.Background(), mintParams())
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestWriteDiscoveryRejectsInvalidParams(t *testing.T) {
	b := newFakeBackend()
	c := newTestClient(t, b, true)
	p := mintParams()
	p.Recipient = "bad"
	_, err := c.WriteDiscovery(context.Background(), p)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, b.sent)
}

func TestWriteDiscoverySignsAndParsesTokenID(t *testing.T) {
	b := newFakeBackend()
	c := newTestClient(t, b, true)

	res, err := c.WriteDiscovery(context.Background(), mintParams())
	require.NoError(t, err)
	require.Len(t, b.sent, 1)

	tx := b.sent[0]
	assert.Equal(t, res.TxHash, tx.Hash().Hex())
	assert.Equal(t, "7", res.TokenID.String())
	assert.Equal(t, uint64(3), tx.Nonce())
	assert.Equal(t, uint64(120_000), tx.Gas())
	assert.Equal(t, int64(22), tx.GasFeeCap().Int64())
	assert.Equal(t, int64(31337), tx.ChainId().Int64())

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(31337)), tx)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), sender)

	m, err := DiscoveryABI.MethodById(tx.Data()[:4])
	require.NoError(t, err)
	args, err := m.Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, int64(74), args[6].(*big.Int).Int64())
	assert.Equal(t, "OUSG", args[4])
}

func TestWriteDiscoveryReverted(t *testing.T) {
	b := newFakeBackend()
	b.status = types.ReceiptStatusFailed
	c := newTestClient(t, b, true)
	_, err := c.WriteDiscovery(context.Background(), mintParams())
	assert.ErrorContains(t, err, "reverted")
}
