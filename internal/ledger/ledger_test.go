package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/rwadiscovery/internal/cache"
	"github.com/alanyoungcy/rwadiscovery/internal/domain"
)

const (
	userA = "0xaAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa"
	userB = "0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB"
	userC = "0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC"
)

func ev(user string, score int64) domain.DiscoveryEvent {
	return domain.DiscoveryEvent{Discoverer: user, RarityScore: domain.BigIntFromInt64(score)}
}

type fakeReader struct {
	events  []domain.DiscoveryEvent
	latest  uint64
	err     error
	queries int
	from    uint64
	to      uint64
}

func (f *fakeReader) LatestBlock(context.Context) (uint64, error) { return f.latest, nil }

func (f *fakeReader) QueryDiscoveryEvents(_ context.Context, from, to uint64) ([]domain.DiscoveryEvent, error) {
	f.queries++
	f.from, f.to = from, to
	return f.events, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAggregateTieKeepsFirstAppearanceOrder(t *testing.T) {
	board := Aggregate([]domain.DiscoveryEvent{ev(userA, 50), ev(userB, 80), ev(userA, 30)}, 10)

	require.Len(t, board, 2)
	assert.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", board[0].Address)
	assert.Equal(t, "80", board[0].TotalScore.String())
	assert.Equal(t, int64(2), board[0].DiscoveryCount)
	assert.Equal(t, "40", board[0].AverageRarity.String())
	assert.Equal(t, 1, board[0].Rank)

	assert.Equal(t, "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", board[1].Address)
	assert.Equal(t, "80", board[1].TotalScore.String())
	assert.Equal(t, 2, board[1].Rank)
}

func TestAggregateOrdersByTotalDescending(t *testing.T) {
	board := Aggregate([]domain.DiscoveryEvent{ev(userA, 50), ev(userB, 81), ev(userA, 30), ev(userC, 5)}, 0)
	require.Len(t, board, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{board[0].Rank, board[1].Rank, board[2].Rank})
	assert.Equal(t, "81", board[0].TotalScore.String())
	assert.Equal(t, "80", board[1].TotalScore.String())
	assert.Equal(t, "5", board[2].TotalScore.String())
}

func TestAggregateGroupsCaseInsensitively(t *testing.T) {
	board := Aggregate([]domain.DiscoveryEvent{ev(userA, 1), ev("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", 2)}, 0)
	require.Len(t, board, 1)
	assert.Equal(t, "3", board[0].TotalScore.String())
}

func TestAverageRarityTruncates(t *testing.T) {
	board := Aggregate([]domain.DiscoveryEvent{ev(userA, 50), ev(userA, 50), ev(userA, 1)}, 0)
	assert.Equal(t, "101", board[0].TotalScore.String())
	assert.Equal(t, "33", board[0].AverageRarity.String())
}

func TestAggregateKeepsExactLargeTotals(t *testing.T) {
	huge, _ := new(big.Int).SetString("340282366920938463463374607431768211455", 10)
	board := Aggregate([]domain.DiscoveryEvent{
		{Discoverer: userA, RarityScore: domain.NewBigInt(huge)},
		{Discoverer: userA, RarityScore: domain.NewBigInt(huge)},
	}, 0)
	want := new(big.Int).Mul(huge, big.NewInt(2))
	assert.Equal(t, want.String(), board[0].TotalScore.String())
	assert.Equal(t, huge.String(), board[0].AverageRarity.String())
}

func TestAggregateOrdersByBlockThenLogIndex(t *testing.T) {
	late := ev(userB, 10)
	late.BlockNumber = 9
	early := ev(userA, 10)
	early.BlockNumber = 3
	early.LogIndex = 2

	board := Aggregate([]domain.DiscoveryEvent{late, early}, 0)
	assert.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", board[0].Address)
}

func TestAggregateTruncatesToLimit(t *testing.T) {
	var events []domain.DiscoveryEvent
	for i := 0; i < 20; i++ {
		events = append(events, ev(fmt.Sprintf("0x%040x", i+1), int64(i)))
	}
	board := Aggregate(events, 5)
	require.Len(t, board, 5)
	assert.Equal(t, 5, board[4].Rank)
	assert.Equal(t, "19", board[0].TotalScore.String())
}

func TestLeaderboardIsCachedPerLimit(t *testing.T) {
	reader := &fakeReader{events: []domain.DiscoveryEvent{ev(userA, 5)}, latest: 500}
	agg := NewAggregator(reader, cache.NewMemory(), time.Minute, 100, testLogger())
	ctx := context.Background()

	_, err := agg.Leaderboard(ctx, 10)
	require.NoError(t, err)
	_, err = agg.Leaderboard(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, reader.queries)
	assert.Equal(t, uint64(100), reader.from)
	assert.Equal(t, uint64(500), reader.to)

	_, err = agg.Leaderboard(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, reader.queries)
}

func TestLeaderboardErrorsAreNotCached(t *testing.T) {
	reader := &fakeReader{err: errors.New("rpc down"), latest: 1}
	agg := NewAggregator(reader, cache.NewMemory(), time.Minute, 0, testLogger())

	_, err := agg.Leaderboard(context.Background(), 10)
	require.Error(t, err)

	reader.err = nil
	reader.events = []domain.DiscoveryEvent{ev(userA, 1)}
	board, err := agg.Leaderboard(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, board, 1)
}

func TestUserRankAndStats(t *testing.T) {
	reader := &fakeReader{events: []domain.DiscoveryEvent{ev(userA, 50), ev(userB, 80), ev(userA, 30)}, latest: 10}
	agg := NewAggregator(reader, cache.NewMemory(), time.Minute, 0, testLogger())
	ctx := context.Background()

	rank, err := agg.UserRank(ctx, "0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB")
	require.NoError(t, err)
	assert.Equal(t, 2, rank)

	rank, err = agg.UserRank(ctx, userC)
	require.NoError(t, err)
	assert.Equal(t, NotRanked, rank)

	stats, err := agg.UserStats(ctx, userA)
	require.NoError(t, err)
	assert.True(t, stats.Ranked)
	assert.Equal(t, 1, stats.Rank)
	assert.Equal(t, "40", stats.AverageRarity.String())

	stats, err = agg.UserStats(ctx, userC)
	require.NoError(t, err)
	assert.False(t, stats.Ranked)
	assert.Equal(t, NotRanked, stats.Rank)
	assert.Equal(t, "0", stats.TotalScore.String())
}

func TestUserStatsOutsideCapStillReportsTotals(t *testing.T) {
	var events []domain.DiscoveryEvent
	for i := 0; i < RankCap; i++ {
		events = append(events, ev(fmt.Sprintf("0x%040x", i+1), 100))
	}
	events = append(events, ev(userC, 7), ev(userC, 8))

	agg := NewAggregator(&fakeReader{events: events, latest: 1}, cache.NewMemory(), time.Minute, 0, testLogger())
	stats, err := agg.UserStats(context.Background(), userC)
	require.NoError(t, err)
	assert.False(t, stats.Ranked)
	assert.Equal(t, NotRanked, stats.Rank)
	assert.Equal(t, "15", stats.TotalScore.String())
	assert.Equal(t, int64(2), stats.DiscoveryCount)
	assert.Equal(t, "7", stats.AverageRarity.String())
}

func TestLeaderboardJSONUsesDecimalStrings(t *testing.T) {
	store := cache.NewMemory()
	agg := NewAggregator(&fakeReader{events: []domain.DiscoveryEvent{ev(userA, 12)}, latest: 1}, store, time.Minute, 0, testLogger())
	_, err := agg.Leaderboard(context.Background(), 10)
	require.NoError(t, err)

	raw, ok, err := store.Get(context.Background(), cache.LeaderboardKey(10))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(raw), `"totalScore":"12"`)
}
