package source

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/rwadiscovery/internal/domain"
)

// ChainReader is the subset of *ethclient.Client the on-chain adapters use.
type ChainReader interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Backends maps chain ids to RPC readers.
type Backends map[int64]ChainReader

// For returns the reader for chainID or a configuration error.
func (b Backends) For(chainID int64) (ChainReader, error) {
	r, ok := b[chainID]
	if !ok || r == nil {
		return nil, fmt.Errorf("%w: no RPC endpoint for chain %d", domain.ErrConfiguration, chainID)
	}
	return r, nil
}
