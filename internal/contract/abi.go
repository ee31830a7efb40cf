package contract

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const discoveryABIJSON = `[
{"anonymous":false,"inputs":[
  {"indexed":true,"name":"tokenId","type":"uint256"},
  {"indexed":true,"name":"discoverer","type":"address"},
  {"indexed":true,"name":"assetAddress","type":"address"},
  {"indexed":false,"name":"rarityScore","type":"uint256"}],
 "name":"AssetDiscovered","type":"event"},
{"inputs":[{"name":"tokenId","type":"uint256"}],"name":"getDiscovery","outputs":[
  {"name":"assetAddress","type":"address"},
  {"name":"chainId","type":"uint256"},
  {"name":"name","type":"string"},
  {"name":"symbol","type":"string"},
  {"name":"assetType","type":"uint8"},
  {"name":"rarityScore","type":"uint256"},
  {"name":"predictionScore","type":"uint256"},
  {"name":"currentValue","type":"uint256"},
  {"name":"yieldRate","type":"uint256"},
  {"name":"discoverer","type":"address"},
  {"name":"discoveredAt","type":"uint256"}],
 "stateMutability":"view","type":"function"},
{"inputs":[],"name":"totalDiscoveries","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[{"name":"assetAddress","type":"address"}],"name":"isAssetDiscovered","outputs":[{"name":"","type":"bool"}],"stateMutability":"view","type":"function"},
{"inputs":[
  {"name":"to","type":"address"},
  {"name":"assetAddress","type":"address"},
  {"name":"chainId","type":"uint256"},
  {"name":"name","type":"string"},
  {"name":"symbol","type":"string"},
  {"name":"assetType","type":"uint8"},
  {"name":"rarityScore","type":"uint256"},
  {"name":"predictionScore","type":"uint256"},
  {"name":"currentValue","type":"uint256"},
  {"name":"yieldRate","type":"uint256"},
  {"name":"tokenURI","type":"string"}],
 "name":"mintDiscovery","outputs":[{"name":"tokenId","type":"uint256"}],"stateMutability":"nonpayable","type":"function"}
]`

// DiscoveryABI is the parsed discovery-card contract interface.
var DiscoveryABI = mustParse(discoveryABIJSON)

const eventAssetDiscovered = "AssetDiscovered"

func mustParse(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("contract: parse abi: %v", err))
	}
	return parsed
}
