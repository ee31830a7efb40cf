package domain

import "strings"

// DefaultChainID is used for any chain name that is not in the lookup table.
const DefaultChainID int64 = 1

var chainIDsByName = map[string]int64{
	"ethereum":  1,
	"eth":       1,
	"mainnet":   1,
	"polygon":   137,
	"matic":     137,
	"arbitrum":  42161,
	"optimism":  10,
	"base":      8453,
	"avalanche": 43114,
	"avax":      43114,
	"bsc":       56,
	"binance":   56,
	"gnosis":    100,
	"xdai":      100,
}

var chainNames = map[int64]string{
	1:     "ethereum",
	137:   "polygon",
	42161: "arbitrum",
	10:    "optimism",
	8453:  "base",
	43114: "avalanche",
	56:    "bsc",
	100:   "gnosis",
}

// ChainIDFromName maps a chain name (any case) to its numeric id. Unknown
// names map to DefaultChainID, never to an error.
func ChainIDFromName(name string) int64 {
	if id, ok := chainIDsByName[strings.ToLower(strings.TrimSpace(name))]; ok {
		return id
	}
	return DefaultChainID
}

// ChainName returns the canonical lowercase name for id, or "" if unknown.
func ChainName(id int64) string {
	return chainNames[id]
}

// KnownChain reports whether id is in the lookup table.
func KnownChain(id int64) bool {
	_, ok := chainNames[id]
	return ok
}
