// Package ledger replays on-chain discovery events into per-user totals and a
// ranked leaderboard. Totals stay in exact integers throughout.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/alanyoungcy/rwadiscovery/internal/cache"
	"github.com/alanyoungcy/rwadiscovery/internal/domain"
)

const (
	// RankCap is how deep the leaderboard is computed when locating a user.
	RankCap = 1000
	// NotRanked is reported for addresses outside RankCap.
	NotRanked = 0
	// DefaultLimit applies when a caller asks for a non-positive limit.
	DefaultLimit = 10
)

// EventReader is the contract read side the ledger needs.
type EventReader interface {
	LatestBlock(ctx context.Context) (uint64, error)
	QueryDiscoveryEvents(ctx context.Context, fromBlock, toBlock uint64) ([]domain.DiscoveryEvent, error)
}

// Aggregator serves leaderboard, rank and stats queries.
type Aggregator struct {
	reader    EventReader
	store     cache.Store
	ttl       time.Duration
	fromBlock uint64
	logger    *slog.Logger
}

// NewAggregator creates an Aggregator reading events from fromBlock (the
// contract's deploy block) to the latest block.
func NewAggregator(reader EventReader, store cache.Store, ttl time.Duration, fromBlock uint64, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		reader:    reader,
		store:     store,
		ttl:       ttl,
		fromBlock: fromBlock,
		logger:    logger.With(slog.String("component", "ledger")),
	}
}

// Leaderboard returns the top limit discoverers, cached per limit.
func (a *Aggregator) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	limit = normalizeLimit(limit)
	return cache.GetOrSet(ctx, a.store, cache.LeaderboardKey(limit), a.ttl, func(ctx context.Context) ([]domain.LeaderboardEntry, error) {
		events, err := a.events(ctx)
		if err != nil {
			return nil, err
		}
		return Aggregate(events, limit), nil
	})
}

// UserRank returns the 1-based rank of address within the top RankCap, or
// NotRanked.
func (a *Aggregator) UserRank(ctx context.Context, address string) (int, error) {
	board, err := a.Leaderboard(ctx, RankCap)
	if err != nil {
		return NotRanked, err
	}
	if e, ok := find(board, address); ok {
		return e.Rank, nil
	}
	return NotRanked, nil
}

// UserStats returns rank and totals for address. Addresses outside RankCap
// still get their totals, with Ranked=false.
func (a *Aggregator) UserStats(ctx context.Context, address string) (domain.UserStats, error) {
	board, err := a.Leaderboard(ctx, RankCap)
	if err != nil {
		return domain.UserStats{}, err
	}
	if e, ok := find(board, address); ok {
		return domain.UserStats{
			Address:        e.Address,
			Rank:           e.Rank,
			Ranked:         true,
			TotalScore:     e.TotalScore,
			DiscoveryCount: e.DiscoveryCount,
			AverageRarity:  e.AverageRarity,
		}, nil
	}

	stats := domain.UserStats{
		Address:       strings.ToLower(address),
		Rank:          NotRanked,
		TotalScore:    domain.BigIntFromInt64(0),
		AverageRarity: domain.BigIntFromInt64(0),
	}
	if len(board) < RankCap {
		// The board holds everyone; this address has no discoveries.
		return stats, nil
	}
	events, err := a.events(ctx)
	if err != nil {
		return domain.UserStats{}, err
	}
	for _, e := range Aggregate(events, 0) {
		if strings.EqualFold(e.Address, address) {
			stats.TotalScore = e.TotalScore
			stats.DiscoveryCount = e.DiscoveryCount
			stats.AverageRarity = e.AverageRarity
			break
		}
	}
	return stats, nil
}

func (a *Aggregator) events(ctx context.Context) ([]domain.DiscoveryEvent, error) {
	latest, err := a.reader.LatestBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: latest block: %w", err)
	}
	if latest < a.fromBlock {
		return nil, nil
	}
	events, err := a.reader.QueryDiscoveryEvents(ctx, a.fromBlock, latest)
	if err != nil {
		return nil, fmt.Errorf("ledger: query events %d-%d: %w", a.fromBlock, latest, err)
	}
	a.logger.Debug("discovery events loaded",
		slog.Int("count", len(events)),
		slog.Uint64("from", a.fromBlock),
		slog.Uint64("to", latest),
	)
	return events, nil
}

type tally struct {
	address string
	total   *big.Int
	count   int64
}

// Aggregate groups events by discoverer in first-appearance order, sorts by
// total score descending with a stable sort, so equal totals keep the order
// in which each discoverer first appeared, and assigns contiguous 1-based
// ranks. averageRarity is total/count truncated toward zero. A positive
// limit truncates the result.
func Aggregate(events []domain.DiscoveryEvent, limit int) []domain.LeaderboardEntry {
	ordered := make([]domain.DiscoveryEvent, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].BlockNumber != ordered[j].BlockNumber {
			return ordered[i].BlockNumber < ordered[j].BlockNumber
		}
		return ordered[i].LogIndex < ordered[j].LogIndex
	})

	index := make(map[string]int)
	var tallies []*tally
	for _, ev := range ordered {
		addr := strings.ToLower(ev.Discoverer)
		i, ok := index[addr]
		if !ok {
			i = len(tallies)
			index[addr] = i
			tallies = append(tallies, &tally{address: addr, total: new(big.Int)})
		}
		t := tallies[i]
		t.total.Add(t.total, ev.RarityScore.Int())
		t.count++
	}

	sort.SliceStable(tallies, func(i, j int) bool {
		return tallies[i].total.Cmp(tallies[j].total) > 0
	})

	if limit > 0 && len(tallies) > limit {
		tallies = tallies[:limit]
	}

	out := make([]domain.LeaderboardEntry, len(tallies))
	for i, t := range tallies {
		avg := new(big.Int).Quo(t.total, big.NewInt(t.count))
		out[i] = domain.LeaderboardEntry{
			Address:        t.address,
			TotalScore:     domain.NewBigInt(t.total),
			DiscoveryCount: t.count,
			AverageRarity:  domain.NewBigInt(avg),
			Rank:           i + 1,
		}
	}
	return out
}

func find(board []domain.LeaderboardEntry, address string) (domain.LeaderboardEntry, bool) {
	for _, e := range board {
		if strings.EqualFold(e.Address, address) {
			return e, true
		}
	}
	return domain.LeaderboardEntry{}, false
}

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > RankCap:
		return RankCap
	}
	return limit
}
