package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies RWA_* environment variable overrides, and
// returns the final Config. A missing file is not an error so the service can
// run from the environment alone. The returned Config has NOT been validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known RWA_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStringMap(&cfg.Chain.RPCURLs, "RWA_CHAIN_RPC_URLS")
	setInt64(&cfg.Chain.DefaultChainID, "RWA_CHAIN_DEFAULT_CHAIN_ID")
	setDuration(&cfg.Chain.CallTimeout, "RWA_CHAIN_CALL_TIMEOUT")

	// ── Contract ──
	setStr(&cfg.Contract.Address, "RWA_CONTRACT_ADDRESS")
	setInt64(&cfg.Contract.ChainID, "RWA_CONTRACT_CHAIN_ID")
	setInt64(&cfg.Contract.DeployBlock, "RWA_CONTRACT_DEPLOY_BLOCK")
	setStr(&cfg.Contract.PrivateKey, "RWA_CONTRACT_PRIVATE_KEY")
	setStr(&cfg.Contract.EncryptedKeyPath, "RWA_CONTRACT_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Contract.KeyPassword, "RWA_CONTRACT_KEY_PASSWORD")
	setDuration(&cfg.Contract.MintDelay, "RWA_CONTRACT_MINT_DELAY")
	setInt64(&cfg.Contract.LogChunk, "RWA_CONTRACT_LOG_CHUNK")
	setDuration(&cfg.Contract.ReceiptTimeout, "RWA_CONTRACT_RECEIPT_TIMEOUT")

	// ── Sources ──
	setStr(&cfg.Sources.YieldURL, "RWA_SOURCES_YIELD_URL")
	setStr(&cfg.Sources.MarketplaceURL, "RWA_SOURCES_MARKETPLACE_URL")
	setStr(&cfg.Sources.MarketplaceAPIKey, "RWA_SOURCES_MARKETPLACE_API_KEY")
	setStr(&cfg.Sources.HolderIndexerURL, "RWA_SOURCES_HOLDER_INDEXER_URL")
	setStr(&cfg.Sources.HolderIndexerAPIKey, "RWA_SOURCES_HOLDER_INDEXER_API_KEY")
	setStringSlice(&cfg.Sources.Watchlist, "RWA_SOURCES_WATCHLIST")
	setInt64(&cfg.Sources.ActivityWindow, "RWA_SOURCES_ACTIVITY_WINDOW")
	setInt(&cfg.Sources.PerSourceCap, "RWA_SOURCES_PER_SOURCE_CAP")
	setDuration(&cfg.Sources.RequestTimeout, "RWA_SOURCES_REQUEST_TIMEOUT")
	setDuration(&cfg.Sources.RefreshInterval, "RWA_SOURCES_REFRESH_INTERVAL")

	// ── Cache ──
	setStr(&cfg.Cache.Backend, "RWA_CACHE_BACKEND")
	setStr(&cfg.Cache.Namespace, "RWA_CACHE_NAMESPACE")
	setFloat64(&cfg.Cache.SweepProbability, "RWA_CACHE_SWEEP_PROBABILITY")
	setDuration(&cfg.Cache.AnalysisTTL, "RWA_CACHE_ANALYSIS_TTL")
	setDuration(&cfg.Cache.AssetListTTL, "RWA_CACHE_ASSET_LIST_TTL")
	setDuration(&cfg.Cache.AssetTTL, "RWA_CACHE_ASSET_TTL")
	setDuration(&cfg.Cache.LeaderboardTTL, "RWA_CACHE_LEADERBOARD_TTL")
	setDuration(&cfg.Cache.UserCardsTTL, "RWA_CACHE_USER_CARDS_TTL")
	setDuration(&cfg.Cache.CandidatesTTL, "RWA_CACHE_CANDIDATES_TTL")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "RWA_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "RWA_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "RWA_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "RWA_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "RWA_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "RWA_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "RWA_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "RWA_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "RWA_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "RWA_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "RWA_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "RWA_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "RWA_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "RWA_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "RWA_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "RWA_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "RWA_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "RWA_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "RWA_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "RWA_S3_REGION")
	setStr(&cfg.S3.Bucket, "RWA_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "RWA_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "RWA_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "RWA_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "RWA_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.PublicURL, "RWA_S3_PUBLIC_URL")

	// ── Server ──
	setInt(&cfg.Server.Port, "RWA_SERVER_PORT")
	setInt(&cfg.Server.Port, "PORT") // platform-assigned port wins
	setStringSlice(&cfg.Server.CORSOrigins, "RWA_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "RWA_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "RWA_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "RWA_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "RWA_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "RWA_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "RWA_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "RWA_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "RWA_MODE")
	setStr(&cfg.LogLevel, "RWA_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

// setStringMap parses "k1=v1,k2=v2" and merges it into dst.
func setStringMap(dst *map[string]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if *dst == nil {
		*dst = make(map[string]string)
	}
	for _, pair := range strings.Split(v, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || strings.TrimSpace(k) == "" {
			continue
		}
		(*dst)[strings.TrimSpace(k)] = strings.TrimSpace(val)
	}
}
