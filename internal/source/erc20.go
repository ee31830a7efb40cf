package source

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/rwadiscovery/internal/domain"
)

const erc20ABIJSON = `[
{"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"anonymous":false,"inputs":[{"indexed":true,"name":"from","type":"address"},{"indexed":true,"name":"to","type":"address"},{"indexed":false,"name":"value","type":"uint256"}],"name":"Transfer","type":"event"}
]`

// ERC20ABI is the parsed minimal ERC-20 interface.
var ERC20ABI = mustParseABI(erc20ABIJSON)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("source: parse abi: %v", err))
	}
	return parsed
}

// DefaultCallTimeout bounds the four metadata calls of one fetch.
const DefaultCallTimeout = 10 * time.Second

// SourceERC20 names on-chain facts in logs and errors.
const SourceERC20 = "erc20"

// ERC20Reader reads token metadata and resolves a holder count.
type ERC20Reader struct {
	backends Backends
	holders  *HolderLadder
	timeout  time.Duration
	logger   *slog.Logger
}

// NewERC20Reader creates a reader. holders may be nil, in which case the
// holder count is left unknown.
func NewERC20Reader(backends Backends, holders *HolderLadder, timeout time.Duration, logger *slog.Logger) *ERC20Reader {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &ERC20Reader{
		backends: backends,
		holders:  holders,
		timeout:  timeout,
		logger:   logger.With(slog.String("component", "erc20")),
	}
}

// Fetch issues name, symbol, decimals and totalSupply concurrently. All four
// must succeed; the first failure names the method and asset.
func (r *ERC20Reader) Fetch(ctx context.Context, ref domain.AssetReference) (domain.RawAssetFacts, error) {
	fail := func(err error) (domain.RawAssetFacts, error) {
		return domain.RawAssetFacts{}, &domain.SourceError{Source: SourceERC20, Asset: ref.Key(), Err: err}
	}

	backend, err := r.backends.For(ref.ChainID)
	if err != nil {
		return fail(err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	token := common.HexToAddress(ref.Address)
	var (
		name, symbol string
		decimals     uint8
		supply       *big.Int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return callInto(gctx, backend, token, "name", &name) })
	g.Go(func() error { return callInto(gctx, backend, token, "symbol", &symbol) })
	g.Go(func() error { return callInto(gctx, backend, token, "decimals", &decimals) })
	g.Go(func() error { return callInto(gctx, backend, token, "totalSupply", &supply) })
	if err := g.Wait(); err != nil {
		return fail(err)
	}

	total := domain.NewBigInt(supply)
	facts := domain.RawAssetFacts{
		Source:      SourceERC20,
		Address:     strings.ToLower(ref.Address),
		ChainID:     ref.ChainID,
		Name:        name,
		Symbol:      symbol,
		Decimals:    decimals,
		TotalSupply: &total,
	}

	if r.holders != nil {
		count, strategy, err := r.holders.Resolve(ctx, facts)
		if err != nil {
			r.logger.Warn("holder count unresolved",
				slog.String("asset", ref.Key()),
				slog.String("error", err.Error()),
			)
		} else {
			facts.HolderCount = &count
			facts.HolderSource = strategy
		}
	}
	return facts, nil
}

// callInto performs one eth_call and unpacks its single return value.
func callInto[T any](ctx context.Context, backend ChainReader, to common.Address, method string, dst *T) error {
	data, err := ERC20ABI.Pack(method)
	if err != nil {
		return fmt.Errorf("%s: pack: %w", method, err)
	}
	out, err := backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return fmt.Errorf("%s: call: %w", method, err)
	}
	vals, err := ERC20ABI.Unpack(method, out)
	if err != nil {
		return fmt.Errorf("%s: unpack: %w", method, err)
	}
	if len(vals) != 1 {
		return fmt.Errorf("%s: expected 1 output, got %d", method, len(vals))
	}
	v, ok := vals[0].(T)
	if !ok {
		return fmt.Errorf("%s: unexpected output type %T", method, vals[0])
	}
	*dst = v
	return nil
}
