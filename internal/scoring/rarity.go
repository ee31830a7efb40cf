package scoring

import "github.com/alanyoungcy/rwadiscovery/internal/domain"

// Rarity weights.
const (
	wSupply       = 0.35
	wDistribution = 0.25
	wAge          = 0.15
	wUniqueness   = 0.15
	wMarketCap    = 0.10
)

// RarityScore combines the rarity sub-scores into [0,100].
// HolderDistribution is read as a concentration in [0,1]; the distribution
// sub-score is its complement.
func RarityScore(in domain.RarityInput) (float64, domain.RarityBreakdown) {
	b := domain.RarityBreakdown{
		Supply:       SupplyScore(in.TotalSupply),
		Distribution: 1 - clamp01(in.HolderDistribution),
		Age:          AgeScore(in.AgeDays),
		Uniqueness:   clamp01(in.Uniqueness),
		MarketCap:    MarketCapScore(in.MarketCap),
	}
	raw := wSupply*b.Supply +
		wDistribution*b.Distribution +
		wAge*b.Age +
		wUniqueness*b.Uniqueness +
		wMarketCap*b.MarketCap
	return clamp(raw*100, 0, 100), b
}

// RarityTierFor maps a score to its tier. Lower bounds are inclusive.
func RarityTierFor(score float64) domain.RarityTier {
	switch {
	case score >= 90:
		return domain.RarityLegendary
	case score >= 75:
		return domain.RarityEpic
	case score >= 60:
		return domain.RarityRare
	case score >= 40:
		return domain.RarityUncommon
	default:
		return domain.RarityCommon
	}
}
