package domain

import "time"

// RarityTier buckets a rarity score.
type RarityTier string

const (
	RarityLegendary RarityTier = "Legendary"
	RarityEpic      RarityTier = "Epic"
	RarityRare      RarityTier = "Rare"
	RarityUncommon  RarityTier = "Uncommon"
	RarityCommon    RarityTier = "Common"
)

// RiskTier buckets a risk score. Higher scores are safer.
type RiskTier string

const (
	RiskLow         RiskTier = "Low"
	RiskMedium      RiskTier = "Medium"
	RiskHigh        RiskTier = "High"
	RiskSpeculative RiskTier = "Speculative"
)

// Direction is the predicted market movement.
type Direction string

const (
	Bullish Direction = "Bullish"
	Neutral Direction = "Neutral"
	Bearish Direction = "Bearish"
)

// RarityInput feeds the rarity model.
type RarityInput struct {
	TotalSupply float64 `json:"totalSupply"`
	HolderCount int64   `json:"holderCount"`
	// HolderDistribution is the estimated holder concentration in [0,1].
	HolderDistribution float64 `json:"holderDistribution"`
	AgeDays            float64 `json:"ageDays"`
	Uniqueness         float64 `json:"uniqueness"`
	MarketCap          float64 `json:"marketCap"`
}

// RiskInput feeds the risk model.
type RiskInput struct {
	AuditStatus       bool    `json:"auditStatus"`
	Centralization    float64 `json:"centralization"`
	LiquidityDepth    float64 `json:"liquidityDepth"`
	RegulatoryClarity float64 `json:"regulatoryClarity"`
	Volatility        float64 `json:"volatility"`
}

// MarketInput feeds the market-movement model. Series are oldest-first.
type MarketInput struct {
	PriceHistory []float64 `json:"priceHistory"`
	Volume       []float64 `json:"volume"`
	YieldChanges []float64 `json:"yieldChanges"`
	MarketCap    float64   `json:"marketCap"`
	Sentiment    float64   `json:"sentiment"`
}

// RarityBreakdown holds the weighted sub-scores, each in [0,1].
type RarityBreakdown struct {
	Supply       float64 `json:"supply"`
	Distribution float64 `json:"distribution"`
	Age          float64 `json:"age"`
	Uniqueness   float64 `json:"uniqueness"`
	MarketCap    float64 `json:"marketCap"`
}

// RiskBreakdown holds the weighted sub-scores, each in [0,1].
type RiskBreakdown struct {
	Audit            float64 `json:"audit"`
	Decentralization float64 `json:"decentralization"`
	Liquidity        float64 `json:"liquidity"`
	Regulatory       float64 `json:"regulatory"`
	Stability        float64 `json:"stability"`
}

// Prediction is the market model output. Confidence is a percentage.
type Prediction struct {
	Direction  Direction `json:"direction"`
	Confidence float64   `json:"confidence"`
	Score      float64   `json:"score"`
	Factors    []string  `json:"factors"`
}

// AnalysisMetrics carries the inputs and intermediate values behind an
// Analysis so the result is explainable.
type AnalysisMetrics struct {
	TotalSupply  BigInt          `json:"totalSupply"`
	Decimals     uint8           `json:"decimals"`
	HolderCount  int64           `json:"holderCount"`
	HolderSource string          `json:"holderSource"`
	TVL          *float64        `json:"tvl,omitempty"`
	APY          *float64        `json:"apy,omitempty"`
	RiskScore    float64         `json:"riskScore"`
	Rarity       RarityBreakdown `json:"rarity"`
	Risk         RiskBreakdown   `json:"risk"`
	Factors      []string        `json:"factors"`
	Defaults     []string        `json:"defaults,omitempty"`
	RarityInput  RarityInput     `json:"rarityInput"`
	RiskInput    RiskInput       `json:"riskInput"`
	MarketInput  MarketInput     `json:"marketInput"`
}

// Analysis is the composite, immutable result for one asset and cache epoch.
type Analysis struct {
	AssetID              string          `json:"assetId"`
	Asset                AssetReference  `json:"asset"`
	Name                 string          `json:"name"`
	Symbol               string          `json:"symbol"`
	AssetType            AssetType       `json:"assetType"`
	RarityScore          float64         `json:"rarityScore"`
	RarityTier           RarityTier      `json:"rarityTier"`
	RiskTier             RiskTier        `json:"riskTier"`
	MarketDirection      Direction       `json:"marketDirection"`
	PredictionConfidence float64         `json:"predictionConfidence"`
	HealthScore          int             `json:"healthScore"`
	Metrics              AnalysisMetrics `json:"metrics"`
	Timestamp            time.Time       `json:"timestamp"`
}
