package scoring

import "github.com/alanyoungcy/rwadiscovery/internal/domain"

// Result is the output of all three models for one asset.
type Result struct {
	Rarity          float64
	RarityTier      domain.RarityTier
	RarityBreakdown domain.RarityBreakdown
	Risk            float64
	RiskTier        domain.RiskTier
	RiskBreakdown   domain.RiskBreakdown
	Prediction      domain.Prediction
	Health          int
}

// Evaluate runs the rarity, risk and market models independently.
func Evaluate(in Inputs) Result {
	rarity, rb := RarityScore(in.Rarity)
	risk, kb := RiskScore(in.Risk)
	return Result{
		Rarity:          rarity,
		RarityTier:      RarityTierFor(rarity),
		RarityBreakdown: rb,
		Risk:            risk,
		RiskTier:        RiskTierFor(risk),
		RiskBreakdown:   kb,
		Prediction:      PredictMarketMovement(in.Market),
		Health:          HealthScore(rarity, risk),
	}
}
