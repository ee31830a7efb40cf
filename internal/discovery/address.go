package discovery

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const syntheticDomain = "rwa-discovery:"

// SyntheticAddress derives a stable 20-byte address for an asset that has no
// contract of its own: the last 20 bytes of
// keccak256("rwa-discovery:" + source + ":" + naturalKey), lower-case hex.
// Repeated runs yield the same address, so the ledger's duplicate check
// holds for off-chain listings too.
func SyntheticAddress(source, naturalKey string) string {
	h := crypto.Keccak256([]byte(syntheticDomain + source + ":" + naturalKey))
	return strings.ToLower(common.BytesToAddress(h[12:]).Hex())
}
