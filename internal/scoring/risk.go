package scoring

import (
	"math"

	"github.com/alanyoungcy/rwadiscovery/internal/domain"
)

// Risk weights.
const (
	wAudit            = 0.25
	wDecentralization = 0.20
	wLiquidity        = 0.25
	wRegulatory       = 0.15
	wStability        = 0.15
)

// Unaudited assets are degraded, not worthless.
const (
	auditedScore   = 1.0
	unauditedScore = 0.3
)

// RiskScore combines the safety sub-scores into [0,100]. Higher is safer.
func RiskScore(in domain.RiskInput) (float64, domain.RiskBreakdown) {
	audit := unauditedScore
	if in.AuditStatus {
		audit = auditedScore
	}
	b := domain.RiskBreakdown{
		Audit:            audit,
		Decentralization: 1 - clamp01(in.Centralization),
		Liquidity:        LiquidityScore(in.LiquidityDepth),
		Regulatory:       clamp01(in.RegulatoryClarity),
		Stability:        1 - math.Min(clamp01(in.Volatility), 1),
	}
	raw := wAudit*b.Audit +
		wDecentralization*b.Decentralization +
		wLiquidity*b.Liquidity +
		wRegulatory*b.Regulatory +
		wStability*b.Stability
	return clamp(raw*100, 0, 100), b
}

// RiskTierFor maps a risk score to its tier. Lower bounds are inclusive.
func RiskTierFor(score float64) domain.RiskTier {
	switch {
	case score >= 80:
		return domain.RiskLow
	case score >= 60:
		return domain.RiskMedium
	case score >= 40:
		return domain.RiskHigh
	default:
		return domain.RiskSpeculative
	}
}
