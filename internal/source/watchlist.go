package source

import (
	"context"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/rwadiscovery/internal/domain"
)

// SourceWatchlist names the chain-log watchlist adapter.
const SourceWatchlist = "watchlist"

// DefaultActivityWindow is the trailing block window scanned for transfers.
const DefaultActivityWindow uint64 = 5_000

// WatchlistSource ranks a configured set of tokens by recent Transfer
// activity and reads their ERC-20 facts. A token that fails is dropped and
// logged; the source only fails when every token fails.
type WatchlistSource struct {
	backends Backends
	reader   *ERC20Reader
	tokens   []domain.AssetReference
	window   uint64
	timeout  time.Duration
	logger   *slog.Logger
}

// NewWatchlistSource creates the adapter.
func NewWatchlistSource(backends Backends, reader *ERC20Reader, tokens []domain.AssetReference, window uint64, timeout time.Duration, logger *slog.Logger) *WatchlistSource {
	if window == 0 {
		window = DefaultActivityWindow
	}
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &WatchlistSource{
		backends: backends,
		reader:   reader,
		tokens:   tokens,
		window:   window,
		timeout:  timeout,
		logger:   logger.With(slog.String("component", "watchlist_source")),
	}
}

func (w *WatchlistSource) Name() string { return SourceWatchlist }

// Fetch reads every watched token concurrently and keeps input order.
func (w *WatchlistSource) Fetch(ctx context.Context) ([]domain.RawAssetFacts, error) {
	if len(w.tokens) == 0 {
		return nil, nil
	}

	results := make([]*domain.RawAssetFacts, len(w.tokens))
	errs := make([]error, len(w.tokens))

	var wg sync.WaitGroup
	for i, ref := range w.tokens {
		wg.Add(1)
		go func(i int, ref domain.AssetReference) {
			defer wg.Done()
			f, err := w.fetchOne(ctx, ref)
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = &f
		}(i, ref)
	}
	wg.Wait()

	out := make([]domain.RawAssetFacts, 0, len(w.tokens))
	var lastErr error
	for i, f := range results {
		if f == nil {
			lastErr = errs[i]
			w.logger.Warn("watchlist token skipped",
				slog.String("source", SourceWatchlist),
				slog.String("asset", w.tokens[i].Key()),
				slog.String("error", errs[i].Error()),
			)
			continue
		}
		out = append(out, *f)
	}
	if len(out) == 0 && lastErr != nil {
		return nil, &domain.SourceError{Source: SourceWatchlist, Err: lastErr}
	}
	return out, nil
}

func (w *WatchlistSource) fetchOne(ctx context.Context, ref domain.AssetReference) (domain.RawAssetFacts, error) {
	transfers, err := w.transferCount(ctx, ref)
	if err != nil {
		return domain.RawAssetFacts{}, err
	}
	facts, err := w.reader.Fetch(ctx, ref)
	if err != nil {
		return domain.RawAssetFacts{}, err
	}
	facts.Source = SourceWatchlist
	facts.NaturalKey = ref.Key()
	facts.RankKey = float64(transfers)
	return facts, nil
}

// transferCount counts Transfer logs for the token over the trailing window.
func (w *WatchlistSource) transferCount(ctx context.Context, ref domain.AssetReference) (int, error) {
	backend, err := w.backends.For(ref.ChainID)
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	latest, err := backend.BlockNumber(ctx)
	if err != nil {
		return 0, err
	}
	var from uint64
	if latest > w.window {
		from = latest - w.window
	}

	logs, err := backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(latest),
		Addresses: []common.Address{common.HexToAddress(ref.Address)},
		Topics:    [][]common.Hash{{ERC20ABI.Events["Transfer"].ID}},
	})
	if err != nil {
		return 0, err
	}
	return len(logs), nil
}
