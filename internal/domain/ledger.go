package domain

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DiscoveryEvent is one decoded on-chain discovery log.
type DiscoveryEvent struct {
	TokenID      BigInt `json:"tokenId"`
	Discoverer   string `json:"discoverer"`
	AssetAddress string `json:"assetAddress"`
	RarityScore  BigInt `json:"rarityScore"`
	BlockNumber  uint64 `json:"blockNumber"`
	LogIndex     uint   `json:"logIndex"`
	TxHash       string `json:"txHash"`
}

// LeaderboardEntry is derived from the event log on every (uncached) request.
type LeaderboardEntry struct {
	Address        string `json:"address"`
	TotalScore     BigInt `json:"totalScore"`
	DiscoveryCount int64  `json:"discoveryCount"`
	AverageRarity  BigInt `json:"averageRarity"`
	Rank           int    `json:"rank"`
}

// UserStats summarizes one discoverer. Rank is NotRanked when the address is
// outside the ranking cap.
type UserStats struct {
	Address        string `json:"address"`
	Rank           int    `json:"rank"`
	Ranked         bool   `json:"ranked"`
	TotalScore     BigInt `json:"totalScore"`
	DiscoveryCount int64  `json:"discoveryCount"`
	AverageRarity  BigInt `json:"averageRarity"`
}

// DiscoveryCard is the on-chain record behind one minted token.
type DiscoveryCard struct {
	TokenID         BigInt    `json:"tokenId"`
	AssetAddress    string    `json:"assetAddress"`
	ChainID         int64     `json:"chainId"`
	Name            string    `json:"name"`
	Symbol          string    `json:"symbol"`
	AssetType       AssetType `json:"assetType"`
	RarityScore     BigInt    `json:"rarityScore"`
	PredictionScore BigInt    `json:"predictionScore"`
	CurrentValue    BigInt    `json:"currentValue"`
	YieldRate       BigInt    `json:"yieldRate"`
	Discoverer      string    `json:"discoverer"`
	DiscoveredAt    time.Time `json:"discoveredAt"`
}

// MintParams is one discovery write request.
type MintParams struct {
	Recipient string          `json:"recipient"`
	Asset     DiscoveredAsset `json:"asset"`
}

// Validate rejects requests missing required mint fields.
func (p MintParams) Validate() error {
	if !common.IsHexAddress(p.Recipient) {
		return &ValidationError{Field: "recipient", Reason: "must be a 20-byte hex address"}
	}
	if !common.IsHexAddress(p.Asset.Address) {
		return &ValidationError{Field: "asset.address", Reason: "must be a 20-byte hex address"}
	}
	if p.Asset.ChainID <= 0 {
		return &ValidationError{Field: "asset.chainId", Reason: "must be a positive integer"}
	}
	if strings.TrimSpace(p.Asset.Name) == "" {
		return &ValidationError{Field: "asset.name", Reason: "is required"}
	}
	if strings.TrimSpace(p.Asset.Symbol) == "" {
		return &ValidationError{Field: "asset.symbol", Reason: "is required"}
	}
	if p.Asset.RarityScore < 0 || p.Asset.RarityScore > 100 {
		return &ValidationError{Field: "asset.rarityScore", Reason: "must be within [0,100]"}
	}
	if p.Asset.CurrentValue.Sign() < 0 {
		return &ValidationError{Field: "asset.currentValue", Reason: "must not be negative"}
	}
	return nil
}

// MintResult reports the outcome of one write in a batch.
type MintResult struct {
	Asset   string `json:"asset"`
	TxHash  string `json:"txHash,omitempty"`
	TokenID BigInt `json:"tokenId"`
	Skipped bool   `json:"skipped"`
	Reason  string `json:"reason,omitempty"`
}

// CollectionCard is one entry in a user's collection blob.
type CollectionCard struct {
	TokenID      string     `json:"tokenId"`
	AssetAddress string     `json:"assetAddress"`
	ChainID      int64      `json:"chainId"`
	Name         string     `json:"name"`
	Symbol       string     `json:"symbol"`
	AssetType    AssetType  `json:"assetType"`
	RarityTier   RarityTier `json:"rarityTier"`
	RarityScore  float64    `json:"rarityScore"`
	TxHash       string     `json:"txHash,omitempty"`
	AddedAt      time.Time  `json:"addedAt"`
}
