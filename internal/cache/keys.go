package cache

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/rwadiscovery/internal/domain"
)

// Key prefixes. Invalidate works on these.
const (
	PrefixAnalysis    = "analysis:"
	PrefixAssets      = "assets:"
	PrefixAsset       = "asset:"
	PrefixLeaderboard = "leaderboard:"
	PrefixUserCards   = "user-cards:"
	PrefixDiscovery   = "discovery:"

	CandidatesKey = PrefixDiscovery + "candidates"
	YieldPoolsKey = PrefixDiscovery + "yield-pools"
)

// TTLs holds the lifetime of each family of cache entries.
type TTLs struct {
	Analysis    time.Duration
	AssetList   time.Duration
	Asset       time.Duration
	Leaderboard time.Duration
	UserCards   time.Duration
	Candidates  time.Duration
}

// DefaultTTLs returns the documented defaults.
func DefaultTTLs() TTLs {
	return TTLs{
		Analysis:    10 * time.Minute,
		AssetList:   5 * time.Minute,
		Asset:       10 * time.Minute,
		Leaderboard: time.Minute,
		UserCards:   5 * time.Minute,
		Candidates:  5 * time.Minute,
	}
}

// WithDefaults fills zero fields from DefaultTTLs.
func (t TTLs) WithDefaults() TTLs {
	d := DefaultTTLs()
	if t.Analysis <= 0 {
		t.Analysis = d.Analysis
	}
	if t.AssetList <= 0 {
		t.AssetList = d.AssetList
	}
	if t.Asset <= 0 {
		t.Asset = d.Asset
	}
	if t.Leaderboard <= 0 {
		t.Leaderboard = d.Leaderboard
	}
	if t.UserCards <= 0 {
		t.UserCards = d.UserCards
	}
	if t.Candidates <= 0 {
		t.Candidates = d.Candidates
	}
	return t
}

func AnalysisKey(ref domain.AssetReference) string {
	return fmt.Sprintf("%s%d:%s", PrefixAnalysis, ref.ChainID, strings.ToLower(ref.Address))
}

func AssetListKey(assetType string, chainID int64, limit int) string {
	if assetType == "" {
		assetType = "all"
	}
	return fmt.Sprintf("%s%s:%d:%d", PrefixAssets, assetType, chainID, limit)
}

func AssetKey(id string) string {
	return PrefixAsset + strings.ToLower(id)
}

func LeaderboardKey(limit int) string {
	return fmt.Sprintf("%s%d", PrefixLeaderboard, limit)
}

func UserCardsKey(address string) string {
	return PrefixUserCards + strings.ToLower(address)
}
