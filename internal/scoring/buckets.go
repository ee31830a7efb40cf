package scoring

import (
	"math"
	"sort"
	"strings"

	"github.com/alanyoungcy/rwadiscovery/internal/domain"
)

// neutral is returned wherever an input is too degenerate to measure.
const neutral = 0.5

// clamp01 also maps NaN to 0.
func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case math.IsNaN(v), v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}

// SupplyScore favours small supplies: ≤1k 1.0, ≤10k 0.8, ≤100k 0.6,
// ≤1M 0.4, otherwise 0.2.
func SupplyScore(supply float64) float64 {
	switch {
	case supply <= 1_000:
		return 1.0
	case supply <= 10_000:
		return 0.8
	case supply <= 100_000:
		return 0.6
	case supply <= 1_000_000:
		return 0.4
	default:
		return 0.2
	}
}

// AgeScore favours older assets: ≥365d 1.0, ≥180d 0.8, ≥90d 0.6, ≥30d 0.4,
// otherwise 0.2.
func AgeScore(days float64) float64 {
	switch {
	case days >= 365:
		return 1.0
	case days >= 180:
		return 0.8
	case days >= 90:
		return 0.6
	case days >= 30:
		return 0.4
	default:
		return 0.2
	}
}

// MarketCapScore: ≥$1B 1.0, ≥$100M 0.8, ≥$10M 0.6, ≥$1M 0.4, otherwise 0.2.
func MarketCapScore(usd float64) float64 {
	switch {
	case usd >= 1e9:
		return 1.0
	case usd >= 1e8:
		return 0.8
	case usd >= 1e7:
		return 0.6
	case usd >= 1e6:
		return 0.4
	default:
		return 0.2
	}
}

// LiquidityScore: ≥$10M 1.0, ≥$1M 0.8, ≥$100k 0.6, ≥$10k 0.4, otherwise 0.2.
func LiquidityScore(usd float64) float64 {
	switch {
	case usd >= 1e7:
		return 1.0
	case usd >= 1e6:
		return 0.8
	case usd >= 1e5:
		return 0.6
	case usd >= 1e4:
		return 0.4
	default:
		return 0.2
	}
}

// ConcentrationEstimate approximates holder concentration from the
// holder/supply ratio as 1-sqrt(holders/supply). No holders or no supply
// yields the neutral 0.5.
func ConcentrationEstimate(holders int64, supply float64) float64 {
	if holders <= 0 || supply <= 0 || math.IsNaN(supply) || math.IsInf(supply, 0) {
		return neutral
	}
	return clamp01(1 - math.Sqrt(float64(holders)/supply))
}

// GiniCoefficient of the given balances, via mean absolute difference.
// Empty input or a non-positive total yields 0.5; equal balances yield 0.
func GiniCoefficient(holdings []float64) float64 {
	n := len(holdings)
	if n == 0 {
		return neutral
	}
	sorted := make([]float64, n)
	copy(sorted, holdings)
	sort.Float64s(sorted)

	var total, weighted float64
	for i, h := range sorted {
		total += h
		weighted += float64(2*(i+1)-n-1) * h
	}
	if total <= 0 {
		return neutral
	}
	return clamp01(weighted / (float64(n) * total))
}

var typeUniqueness = map[domain.AssetType]float64{
	domain.AssetTypeArt:         0.9,
	domain.AssetTypeLuxury:      0.8,
	domain.AssetTypeRealEstate:  0.7,
	domain.AssetTypePrivateCred: 0.5,
	domain.AssetTypeTreasury:    0.3,
}

// Uniqueness rates how one-of-a-kind an asset category is, nudged by symbol
// length: short tickers +0.1, six characters or more -0.1.
func Uniqueness(t domain.AssetType, symbol string) float64 {
	u, ok := typeUniqueness[t]
	if !ok {
		u = typeUniqueness[domain.AssetTypeTreasury]
	}
	switch l := len([]rune(strings.TrimSpace(symbol))); {
	case l > 0 && l <= 3:
		u += 0.1
	case l >= 6:
		u -= 0.1
	}
	return clamp01(u)
}
