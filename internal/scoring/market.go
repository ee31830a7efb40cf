package scoring

import (
	"errors"

	"github.com/alanyoungcy/rwadiscovery/internal/domain"
)

// Market signal weights.
const (
	wPrice     = 0.40
	wVolume    = 0.20
	wYield     = 0.20
	wSentiment = 0.20
)

const (
	minPricePoints = 5
	priceWindow    = 5
	volumeWindow   = 5
	yieldWindow    = 3

	priceBand  = 0.02
	volumeBand = 0.10

	bullishAbove = 0.6
	bearishBelow = 0.4
)

// Signal values fed into the weighted sum.
const (
	signalUp   = 1.0
	signalFlat = 0.5
	signalDown = 0.0
)

// FactorInsufficientData is the sole factor of the degenerate prediction.
const FactorInsufficientData = "insufficient data"

// Trend is (last-first)/first over values. It returns domain.ErrZeroBase when
// the first element is zero; fewer than two points is a zero trend.
func Trend(values []float64) (float64, error) {
	if len(values) < 2 {
		return 0, nil
	}
	first, last := values[0], values[len(values)-1]
	if first == 0 {
		return 0, domain.ErrZeroBase
	}
	return (last - first) / first, nil
}

func tail(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

// bucket maps a trend onto a signal with a symmetric dead band.
func bucket(trend, band float64) float64 {
	switch {
	case trend > band:
		return signalUp
	case trend < -band:
		return signalDown
	default:
		return signalFlat
	}
}

type signalLabels struct {
	name           string
	up, down, flat string
}

var (
	priceLabels  = signalLabels{"price trend", "positive", "negative", "flat"}
	volumeLabels = signalLabels{"volume", "increasing", "decreasing", "stable"}
	yieldLabels  = signalLabels{"yield", "rising", "falling", "stable"}
)

func trendSignal(values []float64, band float64, l signalLabels) (float64, string) {
	t, err := Trend(values)
	if errors.Is(err, domain.ErrZeroBase) {
		return signalFlat, l.name + " undefined (zero base)"
	}
	s := bucket(t, band)
	switch s {
	case signalUp:
		return s, l.name + " " + l.up
	case signalDown:
		return s, l.name + " " + l.down
	default:
		return s, l.name + " " + l.flat
	}
}

func sentimentFactor(s float64) string {
	switch {
	case s > bullishAbove:
		return "sentiment positive"
	case s < bearishBelow:
		return "sentiment negative"
	default:
		return "sentiment neutral"
	}
}

// PredictMarketMovement scores the market signals into a direction with a
// confidence percentage and the factor list explaining each signal.
//
// Fewer than five price points returns Neutral at 50% with the single factor
// "insufficient data"; this is a defined result, not an error.
func PredictMarketMovement(in domain.MarketInput) domain.Prediction {
	if len(in.PriceHistory) < minPricePoints {
		return domain.Prediction{
			Direction:  domain.Neutral,
			Confidence: 50,
			Score:      signalFlat,
			Factors:    []string{FactorInsufficientData},
		}
	}

	price, priceF := trendSignal(tail(in.PriceHistory, priceWindow), priceBand, priceLabels)
	volume, volumeF := trendSignal(tail(in.Volume, volumeWindow), volumeBand, volumeLabels)
	// Yield is sign only.
	yield, yieldF := trendSignal(tail(in.YieldChanges, yieldWindow), 0, yieldLabels)
	sentiment := clamp01(in.Sentiment)

	score := clamp01(wPrice*price + wVolume*volume + wYield*yield + wSentiment*sentiment)

	p := domain.Prediction{
		Score:   score,
		Factors: []string{priceF, volumeF, yieldF, sentimentFactor(sentiment)},
	}
	switch {
	case score > bullishAbove:
		p.Direction = domain.Bullish
		p.Confidence = score * 100
	case score < bearishBelow:
		p.Direction = domain.Bearish
		p.Confidence = (1 - score) * 100
	default:
		p.Direction = domain.Neutral
		p.Confidence = 50
	}
	p.Confidence = clamp(p.Confidence, 0, 100)
	return p
}
