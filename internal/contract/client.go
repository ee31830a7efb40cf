// Package contract talks to the discovery-card contract over JSON-RPC: card
// and counter reads, AssetDiscovered log queries, and signed mint writes.
package contract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/rwadiscovery/internal/crypto"
	"github.com/alanyoungcy/rwadiscovery/internal/domain"
)

// Defaults for log paging and receipt waiting.
const (
	DefaultLogChunk       uint64 = 10_000
	DefaultReceiptPoll           = 2 * time.Second
	DefaultReceiptTimeout        = 3 * time.Minute
)

// Backend is the subset of *ethclient.Client the contract client needs.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Config describes the deployed contract.
type Config struct {
	Address        string
	ChainID        int64
	LogChunk       uint64
	ReceiptPoll    time.Duration
	ReceiptTimeout time.Duration
}

// Client reads and writes the discovery contract. Without a signer every
// write returns domain.ErrUnavailable.
type Client struct {
	backend Backend
	address common.Address
	chainID int64
	signer  *crypto.Signer

	logChunk       uint64
	receiptPoll    time.Duration
	receiptTimeout time.Duration
	logger         *slog.Logger
}

// New creates a Client. signer may be nil for a read-only client.
func New(backend Backend, cfg Config, signer *crypto.Signer, logger *slog.Logger) (*Client, error) {
	if !common.IsHexAddress(cfg.Address) {
		return nil, fmt.Errorf("contract: %w: discovery contract address %q", domain.ErrConfiguration, cfg.Address)
	}
	c := &Client{
		backend:        backend,
		address:        common.HexToAddress(cfg.Address),
		chainID:        cfg.ChainID,
		signer:         signer,
		logChunk:       cfg.LogChunk,
		receiptPoll:    cfg.ReceiptPoll,
		receiptTimeout: cfg.ReceiptTimeout,
		logger:         logger.With(slog.String("component", "contract")),
	}
	if c.logChunk == 0 {
		c.logChunk = DefaultLogChunk
	}
	if c.receiptPoll <= 0 {
		c.receiptPoll = DefaultReceiptPoll
	}
	if c.receiptTimeout <= 0 {
		c.receiptTimeout = DefaultReceiptTimeout
	}
	return c, nil
}

// CanWrite reports whether a signer is configured.
func (c *Client) CanWrite() bool { return c.signer != nil }

func (c *Client) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := DiscoveryABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("contract: pack %s: %w", method, err)
	}
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &c.address, Data: data}, nil)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "revert") {
			return nil, fmt.Errorf("contract: %s: %w: %v", method, domain.ErrNotFound, err)
		}
		return nil, fmt.Errorf("contract: call %s: %w", method, err)
	}
	vals, err := DiscoveryABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("contract: unpack %s: %w", method, err)
	}
	return vals, nil
}

// ReadDiscoveryCard reads one minted card.
func (c *Client) ReadDiscoveryCard(ctx context.Context, tokenID *big.Int) (domain.DiscoveryCard, error) {
	vals, err := c.call(ctx, "getDiscovery", tokenID)
	if err != nil {
		return domain.DiscoveryCard{}, err
	}
	if len(vals) != 11 {
		return domain.DiscoveryCard{}, fmt.Errorf("contract: getDiscovery: expected 11 outputs, got %d", len(vals))
	}

	asset, ok1 := vals[0].(common.Address)
	chainID, ok2 := vals[1].(*big.Int)
	name, ok3 := vals[2].(string)
	symbol, ok4 := vals[3].(string)
	assetType, ok5 := vals[4].(uint8)
	rarity, ok6 := vals[5].(*big.Int)
	prediction, ok7 := vals[6].(*big.Int)
	value, ok8 := vals[7].(*big.Int)
	yield, ok9 := vals[8].(*big.Int)
	discoverer, ok10 := vals[9].(common.Address)
	at, ok11 := vals[10].(*big.Int)
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6 && ok7 && ok8 && ok9 && ok10 && ok11) {
		return domain.DiscoveryCard{}, errors.New("contract: getDiscovery: unexpected output types")
	}
	if asset == (common.Address{}) {
		return domain.DiscoveryCard{}, fmt.Errorf("contract: token %s: %w", tokenID, domain.ErrNotFound)
	}

	return domain.DiscoveryCard{
		TokenID:         domain.NewBigInt(tokenID),
		AssetAddress:    strings.ToLower(asset.Hex()),
		ChainID:         chainID.Int64(),
		Name:            name,
		Symbol:          symbol,
		AssetType:       domain.AssetTypeFromCode(assetType),
		RarityScore:     domain.NewBigInt(rarity),
		PredictionScore: domain.NewBigInt(prediction),
		CurrentValue:    domain.NewBigInt(value),
		YieldRate:       domain.NewBigInt(yield),
		Discoverer:      strings.ToLower(discoverer.Hex()),
		DiscoveredAt:    time.Unix(at.Int64(), 0).UTC(),
	}, nil
}

// TotalDiscoveries returns the number of cards minted.
func (c *Client) TotalDiscoveries(ctx context.Context) (*big.Int, error) {
	vals, err := c.call(ctx, "totalDiscoveries")
	if err != nil {
		return nil, err
	}
	n, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("contract: totalDiscoveries: unexpected type %T", vals[0])
	}
	return n, nil
}

// IsAssetDiscovered reports whether a card already exists for address.
func (c *Client) IsAssetDiscovered(ctx context.Context, address string) (bool, error) {
	vals, err := c.call(ctx, "isAssetDiscovered", common.HexToAddress(address))
	if err != nil {
		return false, err
	}
	ok, isBool := vals[0].(bool)
	if !isBool {
		return false, fmt.Errorf("contract: isAssetDiscovered: unexpected type %T", vals[0])
	}
	return ok, nil
}

// LatestBlock returns the chain head.
func (c *Client) LatestBlock(ctx context.Context) (uint64, error) {
	n, err := c.backend.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("contract: block number: %w", err)
	}
	return n, nil
}

// QueryDiscoveryEvents returns AssetDiscovered events in [from, to], oldest
// first, paging through the range in logChunk-sized windows.
func (c *Client) QueryDiscoveryEvents(ctx context.Context, from, to uint64) ([]domain.DiscoveryEvent, error) {
	if to < from {
		return nil, nil
	}
	topic := DiscoveryABI.Events[eventAssetDiscovered].ID

	var events []domain.DiscoveryEvent
	for start := from; start <= to; {
		end := start + c.logChunk - 1
		if end > to || end < start {
			end = to
		}
		logs, err := c.backend.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(start),
			ToBlock:   new(big.Int).SetUint64(end),
			Addresses: []common.Address{c.address},
			Topics:    [][]common.Hash{{topic}},
		})
		if err != nil {
			return nil, fmt.Errorf("contract: filter logs %d-%d: %w", start, end, err)
		}
		for _, lg := range logs {
			ev, ok := decodeDiscovered(lg)
			if !ok {
				c.logger.Debug("skipping undecodable log", slog.String("tx", lg.TxHash.Hex()), slog.Uint64("index", uint64(lg.Index)))
				continue
			}
			events = append(events, ev)
		}
		if end == math.MaxUint64 {
			break
		}
		start = end + 1
	}
	return events, nil
}

func decodeDiscovered(lg types.Log) (domain.DiscoveryEvent, bool) {
	event := DiscoveryABI.Events[eventAssetDiscovered]
	if lg.Removed || len(lg.Topics) != 4 || lg.Topics[0] != event.ID {
		return domain.DiscoveryEvent{}, false
	}
	vals, err := event.Inputs.NonIndexed().Unpack(lg.Data)
	if err != nil || len(vals) != 1 {
		return domain.DiscoveryEvent{}, false
	}
	score, ok := vals[0].(*big.Int)
	if !ok {
		return domain.DiscoveryEvent{}, false
	}
	return domain.DiscoveryEvent{
		TokenID:      domain.NewBigInt(lg.Topics[1].Big()),
		Discoverer:   strings.ToLower(common.BytesToAddress(lg.Topics[2].Bytes()).Hex()),
		AssetAddress: strings.ToLower(common.BytesToAddress(lg.Topics[3].Bytes()).Hex()),
		RarityScore:  domain.NewBigInt(score),
		BlockNumber:  lg.BlockNumber,
		LogIndex:     lg.Index,
		TxHash:       lg.TxHash.Hex(),
	}, true
}
