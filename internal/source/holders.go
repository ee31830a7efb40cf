package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/rwadiscovery/internal/domain"
)

// Strategy names reported in RawAssetFacts.HolderSource.
const (
	HoldersIndexer  = "indexer"
	HoldersEstimate = "estimate"
	HoldersConstant = "chain-constant"
)

var errNoCredentials = errors.New("holder indexer: no API key configured")

// HolderStrategy is one rung of the holder-count ladder. It either returns a
// definite count or an error; it never guesses.
type HolderStrategy interface {
	Name() string
	Holders(ctx context.Context, facts domain.RawAssetFacts) (int64, error)
}

// HolderLadder tries its strategies in order and keeps the first success.
type HolderLadder struct {
	strategies []HolderStrategy
	logger     *slog.Logger
}

// NewHolderLadder builds a ladder from the given strategies, tried in order.
func NewHolderLadder(logger *slog.Logger, strategies ...HolderStrategy) *HolderLadder {
	return &HolderLadder{strategies: strategies, logger: logger}
}

// DefaultHolderLadder is indexer, then supply estimate, then per-chain
// constant. With no indexer key its output depends only on total supply and
// chain.
func DefaultHolderLadder(indexer *IndexerHolders, logger *slog.Logger) *HolderLadder {
	return NewHolderLadder(logger, indexer, EstimatedHolders{}, ChainConstantHolders{})
}

// Resolve returns the first successful count and the strategy that made it.
func (l *HolderLadder) Resolve(ctx context.Context, facts domain.RawAssetFacts) (int64, string, error) {
	var errs []error
	for _, s := range l.strategies {
		n, err := s.Holders(ctx, facts)
		if err == nil {
			return n, s.Name(), nil
		}
		if l.logger != nil && !errors.Is(err, errNoCredentials) {
			l.logger.Debug("holder strategy failed",
				slog.String("strategy", s.Name()),
				slog.String("asset", facts.Address),
				slog.String("error", err.Error()),
			)
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	return 0, "", errors.Join(errs...)
}

// IndexerHolders asks a token-holder indexer API (Covalent-style
// token_holders_v2) for the holder total. It fails without an API key.
type IndexerHolders struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewIndexerHolders creates the indexer strategy.
func NewIndexerHolders(baseURL, apiKey string, timeout time.Duration) *IndexerHolders {
	return &IndexerHolders{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: newHTTPClient(timeout),
	}
}

func (h *IndexerHolders) Name() string { return HoldersIndexer }

type indexerResponse struct {
	Data struct {
		Pagination struct {
			TotalCount *int64 `json:"total_count"`
		} `json:"pagination"`
	} `json:"data"`
}

func (h *IndexerHolders) Holders(ctx context.Context, facts domain.RawAssetFacts) (int64, error) {
	if h == nil || h.apiKey == "" || h.baseURL == "" {
		return 0, errNoCredentials
	}
	endpoint := fmt.Sprintf("%s/v1/%d/tokens/%s/token_holders_v2/?page-size=1",
		h.baseURL, facts.ChainID, url.PathEscape(strings.ToLower(facts.Address)))

	var resp indexerResponse
	if err := getJSON(ctx, h.httpClient, endpoint, map[string]string{"Authorization": "Bearer " + h.apiKey}, &resp); err != nil {
		return 0, err
	}
	if resp.Data.Pagination.TotalCount == nil {
		return 0, errors.New("holder indexer: response has no total_count")
	}
	return *resp.Data.Pagination.TotalCount, nil
}

// EstimatedHolders derives a holder count from the human-scale supply using
// four size buckets.
type EstimatedHolders struct{}

func (EstimatedHolders) Name() string { return HoldersEstimate }

var (
	oneMillion  = decimal.NewFromInt(1_000_000)
	oneBillion  = decimal.NewFromInt(1_000_000_000)
	oneTrillion = decimal.NewFromInt(1_000_000_000_000)
)

func (EstimatedHolders) Holders(_ context.Context, facts domain.RawAssetFacts) (int64, error) {
	supply, ok := facts.HumanSupply()
	if !ok {
		return 0, errors.New("estimate: total supply unknown")
	}
	if !supply.IsPositive() {
		return 0, fmt.Errorf("estimate: non-positive supply %s", supply)
	}

	var divisor int64
	switch {
	case supply.LessThanOrEqual(oneMillion):
		divisor = 100
	case supply.LessThanOrEqual(oneBillion):
		divisor = 10_000
	case supply.LessThanOrEqual(oneTrillion):
		divisor = 1_000_000
	default:
		divisor = 100_000_000
	}

	est := supply.Div(decimal.NewFromInt(divisor)).Floor()
	if !est.IsPositive() {
		return 1, nil
	}
	if est.GreaterThan(decimal.NewFromInt(1 << 62)) {
		return 0, fmt.Errorf("estimate: %s holders overflows", est)
	}
	return est.IntPart(), nil
}

// ChainConstantHolders is the last rung: a fixed count per chain.
type ChainConstantHolders struct{}

func (ChainConstantHolders) Name() string { return HoldersConstant }

var chainHolderConstants = map[int64]int64{
	1:     1000,
	137:   500,
	42161: 300,
	8453:  250,
	10:    200,
}

const defaultChainHolders = 100

func (ChainConstantHolders) Holders(_ context.Context, facts domain.RawAssetFacts) (int64, error) {
	if n, ok := chainHolderConstants[facts.ChainID]; ok {
		return n, nil
	}
	return defaultChainHolders, nil
}
