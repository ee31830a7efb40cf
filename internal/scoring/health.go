package scoring

import "math"

// HealthScore is the rounded mean of the rarity and risk scores.
func HealthScore(rarity, risk float64) int {
	return int(math.Round(clamp((clamp(rarity, 0, 100)+clamp(risk, 0, 100))/2, 0, 100)))
}
