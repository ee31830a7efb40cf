package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTLs().Candidates)
	assert.Equal(t, time.Minute, cfg.Cache.TTLs().Leaderboard)
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rwa.toml")
	body := `
mode = "full"
log_level = "debug"

[chain]
default_chain_id = 137
rpc_urls = { "137" = "https://polygon.example" }

[contract]
address = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
mint_delay = "500ms"

[sources]
watchlist = ["1:0x6B175474E89094C44Da98b954EedeAC495271d0F"]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("RWA_CHAIN_RPC_URLS", "1=https://eth.example")
	t.Setenv("RWA_SERVER_PORT", "9090")
	t.Setenv("RWA_CACHE_ASSET_TTL", "42s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "full", cfg.Mode)
	assert.Equal(t, int64(137), cfg.Chain.DefaultChainID)
	assert.Equal(t, 500*time.Millisecond, cfg.Contract.MintDelay.Duration)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 42*time.Second, cfg.Cache.TTLs().Asset)

	chains, err := cfg.Chain.ChainIDs()
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{1: "https://eth.example", 137: "https://polygon.example"}, chains)

	refs, err := cfg.Sources.WatchlistRefs()
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, int64(1), refs[0].ChainID)

	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "server", cfg.Mode)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("mode = "), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.Chain.RPCURLs = map[string]string{"mainnet": "https://x"}
	cfg.Contract.Address = "not-an-address"
	cfg.Contract.EncryptedKeyPath = "/keys/signer.enc"
	cfg.Cache.Backend = "memcached"
	cfg.Sources.Watchlist = []string{"0xabc"}
	cfg.Notify.TelegramToken = "tok"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		`unknown mode "trade"`,
		`rpc_urls key "mainnet"`,
		"not a 20-byte hex address",
		"key_password is required",
		`unknown backend "memcached"`,
		"must be chainId:address",
		"must be set together",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateContractNeedsRPC(t *testing.T) {
	cfg := Defaults()
	cfg.Contract.Address = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no rpc url configured for chain 1")

	cfg.Chain.RPCURLs = map[string]string{"1": "https://eth.example"}
	assert.NoError(t, cfg.Validate())
}

func TestValidateLeaderboardModeNeedsContract(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "leaderboard"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address is required for mode leaderboard")
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Contract.PrivateKey = "0xdeadbeef"
	cfg.Server.APIKey = "secret"
	cfg.Chain.RPCURLs = map[string]string{"1": "https://eth.example/v2/key"}
	cfg.Notify.Events = []string{"discovery.minted"}

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Contract.PrivateKey)
	assert.Equal(t, "***", out.Server.APIKey)
	assert.Equal(t, "***", out.Chain.RPCURLs["1"])
	assert.Empty(t, out.Redis.Password)

	out.Notify.Events[0] = "changed"
	assert.Equal(t, "0xdeadbeef", cfg.Contract.PrivateKey)
	assert.Equal(t, "https://eth.example/v2/key", cfg.Chain.RPCURLs["1"])
	assert.Equal(t, "discovery.minted", cfg.Notify.Events[0])
}
