package domain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// AssetType is the real-world asset category a token represents.
type AssetType string

const (
	AssetTypeTreasury    AssetType = "tokenized-treasury"
	AssetTypeRealEstate  AssetType = "real-estate"
	AssetTypeArt         AssetType = "art"
	AssetTypeLuxury      AssetType = "luxury"
	AssetTypePrivateCred AssetType = "private-credit"
)

// Code is the uint8 discriminator stored by the discovery contract.
func (t AssetType) Code() uint8 {
	switch t {
	case AssetTypeRealEstate:
		return 1
	case AssetTypeArt:
		return 2
	case AssetTypeLuxury:
		return 3
	case AssetTypePrivateCred:
		return 4
	default:
		return 0
	}
}

// AssetTypeFromCode is the inverse of Code. Unknown codes map to treasury.
func AssetTypeFromCode(c uint8) AssetType {
	switch c {
	case 1:
		return AssetTypeRealEstate
	case 2:
		return AssetTypeArt
	case 3:
		return AssetTypeLuxury
	case 4:
		return AssetTypePrivateCred
	default:
		return AssetTypeTreasury
	}
}

// ParseAssetType accepts the canonical names plus a few short aliases.
func ParseAssetType(s string) (AssetType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tokenized-treasury", "treasury":
		return AssetTypeTreasury, true
	case "real-estate", "realestate":
		return AssetTypeRealEstate, true
	case "art":
		return AssetTypeArt, true
	case "luxury":
		return AssetTypeLuxury, true
	case "private-credit", "credit":
		return AssetTypePrivateCred, true
	}
	return "", false
}

// classification keywords, checked in this order; the first hit wins.
var assetTypeKeywords = []struct {
	typ      AssetType
	keywords []string
}{
	{AssetTypeRealEstate, []string{"estate", "realt", "property", "housing", "reit"}},
	{AssetTypePrivateCred, []string{"credit", "loan", "debt", "maple", "goldfinch", "centrifuge", "clearpool"}},
	{AssetTypeLuxury, []string{"luxury", "watch", "wine", "whisky", "gold", "diamond"}},
	{AssetTypeArt, []string{"art", "painting", "gallery", "collectible", "nft"}},
}

// ClassifyAssetType derives an asset type from name/symbol substrings.
// Anything unmatched is treated as a tokenized treasury.
func ClassifyAssetType(name, symbol string) AssetType {
	haystack := strings.ToLower(name + " " + symbol)
	for _, group := range assetTypeKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(haystack, kw) {
				return group.typ
			}
		}
	}
	return AssetTypeTreasury
}

// AssetReference identifies one token contract on one chain.
type AssetReference struct {
	Address string `json:"address"`
	ChainID int64  `json:"chainId"`
}

// NewAssetReference validates and lowercases the address.
func NewAssetReference(address string, chainID int64) (AssetReference, error) {
	if !common.IsHexAddress(address) {
		return AssetReference{}, &ValidationError{Field: "contractAddress", Reason: fmt.Sprintf("%q is not a 20-byte hex address", address)}
	}
	if chainID <= 0 {
		return AssetReference{}, &ValidationError{Field: "chainId", Reason: "must be a positive integer"}
	}
	return AssetReference{Address: strings.ToLower(address), ChainID: chainID}, nil
}

// Key is the canonical "{chainId}:{address}" identifier.
func (r AssetReference) Key() string {
	return fmt.Sprintf("%d:%s", r.ChainID, strings.ToLower(r.Address))
}

// Equal compares two references with a case-insensitive address match.
func (r AssetReference) Equal(o AssetReference) bool {
	return r.ChainID == o.ChainID && strings.EqualFold(r.Address, o.Address)
}

// PriceRange is a low/high estimate in USD.
type PriceRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// RawAssetFacts is one source's snapshot of an asset. Pointer fields are
// "unknown" when nil; scoring applies explicit defaults for them.
type RawAssetFacts struct {
	Source     string `json:"source"`
	NaturalKey string `json:"naturalKey,omitempty"`
	Address    string `json:"address,omitempty"`
	ChainID    int64  `json:"chainId"`
	Name       string `json:"name"`
	Symbol     string `json:"symbol"`
	Decimals   uint8  `json:"decimals"`
	Category   string `json:"category,omitempty"`

	TotalSupply *BigInt `json:"totalSupply,omitempty"`
	HolderCount *int64  `json:"holderCount,omitempty"`
	// HolderSource names the strategy that produced HolderCount.
	HolderSource string `json:"holderSource,omitempty"`

	TVL           *float64    `json:"tvl,omitempty"`
	APY           *float64    `json:"apy,omitempty"`
	CurrentBid    *float64    `json:"currentBid,omitempty"`
	EstimateRange *PriceRange `json:"estimateRange,omitempty"`
	// YieldHistory is oldest-first APY percentages when the source has them.
	YieldHistory []float64 `json:"yieldHistory,omitempty"`

	// RankKey orders facts inside their own source when capping.
	RankKey float64 `json:"-"`
}

// HumanSupply scales the raw on-chain supply by decimals without going
// through floating point.
func (f RawAssetFacts) HumanSupply() (decimal.Decimal, bool) {
	if f.TotalSupply == nil {
		return decimal.Zero, false
	}
	return decimal.NewFromBigInt(f.TotalSupply.Int(), -int32(f.Decimals)), true
}

// DiscoveredAsset is a deduplicated, scored discovery candidate.
type DiscoveredAsset struct {
	Address         string     `json:"address"`
	ChainID         int64      `json:"chainId"`
	Name            string     `json:"name"`
	Symbol          string     `json:"symbol"`
	AssetType       AssetType  `json:"assetType"`
	RarityTier      RarityTier `json:"rarityTier"`
	RiskTier        RiskTier   `json:"riskTier"`
	RarityScore     float64    `json:"rarityScore"`
	PredictionScore float64    `json:"predictionScore"`
	CurrentValue    BigInt     `json:"currentValue"`
	// YieldRate is expressed in basis points.
	YieldRate int64  `json:"yieldRate"`
	TokenURI  string `json:"tokenURI"`
	Source    string `json:"source"`
	Synthetic bool   `json:"synthetic"`
}

// Reference returns the asset's (address, chainId) identity.
func (a DiscoveredAsset) Reference() AssetReference {
	return AssetReference{Address: strings.ToLower(a.Address), ChainID: a.ChainID}
}
