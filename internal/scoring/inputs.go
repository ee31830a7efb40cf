package scoring

import "github.com/alanyoungcy/rwadiscovery/internal/domain"

// Placeholder inputs used only when no real value can be fetched. They are
// fixed so identical facts always score identically.
const (
	DefaultAgeDays   = 180
	DefaultMarketCap = 5_000_000
	DefaultSentiment = 0.6
	// DefaultSupply stands in for fungible assets with no readable supply.
	DefaultSupply = 1_000_000
)

// Default histories, oldest first. Callers get copies.
func DefaultPriceHistory() []float64 { return []float64{1.00, 1.01, 1.02, 1.015, 1.03} }
func DefaultVolume() []float64 { return []float64{1000, 1100, 1050, 1200, 1250} }
func DefaultYieldChanges() []float64 { return []float64{4.5, 4.6, 4.7} }

// Names recorded in AnalysisMetrics.Defaults when a placeholder is used.
const (
	DefaultedSupply       = "totalSupply"
	DefaultedHolders      = "holderCount"
	DefaultedAge          = "ageDays"
	DefaultedMarketCap    = "marketCap"
	DefaultedLiquidity    = "liquidityDepth"
	DefaultedPriceHistory = "priceHistory"
	DefaultedVolume       = "volume"
	DefaultedYield        = "yieldChanges"
	DefaultedSentiment    = "sentiment"
)

// Profile is the regulatory clarity and volatility assumed for a category.
type Profile struct {
	RegulatoryClarity float64
	Volatility        float64
}

var profiles = map[domain.AssetType]Profile{
	domain.AssetTypeTreasury:    {RegulatoryClarity: 0.9, Volatility: 0.05},
	domain.AssetTypeRealEstate:  {RegulatoryClarity: 0.7, Volatility: 0.2},
	domain.AssetTypePrivateCred: {RegulatoryClarity: 0.6, Volatility: 0.3},
	domain.AssetTypeLuxury:      {RegulatoryClarity: 0.5, Volatility: 0.4},
	domain.AssetTypeArt:         {RegulatoryClarity: 0.4, Volatility: 0.5},
}

// ProfileFor returns the category profile, treasury for unknown types.
func ProfileFor(t domain.AssetType) Profile {
	if p, ok := profiles[t]; ok {
		return p
	}
	return profiles[domain.AssetTypeTreasury]
}

// Inputs bundles the three model inputs built from one asset's facts.
type Inputs struct {
	Rarity   domain.RarityInput
	Risk     domain.RiskInput
	Market   domain.MarketInput
	Defaults []string
}

// BuildInputs turns facts into model inputs. primary carries the token's own
// facts; pool, when non-nil, is a listed RWA yield pool for the asset and
// supplies TVL, yield history and the audit signal.
//
// Missing values are replaced by the package defaults above and listed in
// Inputs.Defaults. Raw supply is converted to float64 here and nowhere
// earlier.
func BuildInputs(primary domain.RawAssetFacts, pool *domain.RawAssetFacts, t domain.AssetType) Inputs {
	var in Inputs
	used := func(name string) { in.Defaults = append(in.Defaults, name) }

	var supply float64
	if human, ok := primary.HumanSupply(); ok {
		supply = human.InexactFloat64()
	} else if primary.CurrentBid != nil || primary.EstimateRange != nil {
		// A listed single item.
		supply = 1
	} else {
		supply = DefaultSupply
		used(DefaultedSupply)
	}

	var holders int64
	if primary.HolderCount != nil {
		holders = *primary.HolderCount
	} else {
		used(DefaultedHolders)
	}
	concentration := ConcentrationEstimate(holders, supply)

	var tvl *float64
	switch {
	case pool != nil && pool.TVL != nil:
		tvl = pool.TVL
	case primary.TVL != nil:
		tvl = primary.TVL
	}

	var marketCap float64
	switch {
	case tvl != nil:
		marketCap = *tvl
	case primary.CurrentBid != nil:
		marketCap = *primary.CurrentBid
	case primary.EstimateRange != nil:
		marketCap = (primary.EstimateRange.Low + primary.EstimateRange.High) / 2
	default:
		marketCap = DefaultMarketCap
		used(DefaultedMarketCap)
	}

	var liquidity float64
	if tvl != nil {
		liquidity = *tvl
	} else {
		used(DefaultedLiquidity)
	}

	used(DefaultedAge)
	in.Rarity = domain.RarityInput{
		TotalSupply:        supply,
		HolderCount:        holders,
		HolderDistribution: concentration,
		AgeDays:            DefaultAgeDays,
		Uniqueness:         Uniqueness(t, primary.Symbol),
		MarketCap:          marketCap,
	}

	prof := ProfileFor(t)
	in.Risk = domain.RiskInput{
		AuditStatus:       pool != nil,
		Centralization:    concentration,
		LiquidityDepth:    liquidity,
		RegulatoryClarity: prof.RegulatoryClarity,
		Volatility:        prof.Volatility,
	}

	yieldHistory := primary.YieldHistory
	if pool != nil && len(pool.YieldHistory) >= 2 {
		yieldHistory = pool.YieldHistory
	}
	if len(yieldHistory) < 2 {
		yieldHistory = DefaultYieldChanges()
		used(DefaultedYield)
	} else {
		yieldHistory = append([]float64(nil), yieldHistory...)
	}

	used(DefaultedPriceHistory)
	used(DefaultedVolume)
	used(DefaultedSentiment)
	in.Market = domain.MarketInput{
		PriceHistory: DefaultPriceHistory(),
		Volume:       DefaultVolume(),
		YieldChanges: yieldHistory,
		MarketCap:    marketCap,
		Sentiment:    DefaultSentiment,
	}
	return in
}
