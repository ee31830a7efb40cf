// Package config defines the top-level configuration for the discovery
// service and provides validation helpers.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/rwadiscovery/internal/cache"
	"github.com/alanyoungcy/rwadiscovery/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by RWA_* environment variables.
type Config struct {
	Chain    ChainConfig    `toml:"chain"`
	Contract ContractConfig `toml:"contract"`
	Sources  SourcesConfig  `toml:"sources"`
	Cache    CacheConfig    `toml:"cache"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// ChainConfig maps chain ids to JSON-RPC endpoints. TOML keys are decimal
// chain ids, e.g. "1" = "https://eth.llamarpc.com".
type ChainConfig struct {
	RPCURLs        map[string]string `toml:"rpc_urls"`
	DefaultChainID int64             `toml:"default_chain_id"`
	CallTimeout    duration          `toml:"call_timeout"`
}

// ContractConfig describes the discovery-card contract and its signer.
type ContractConfig struct {
	Address          string   `toml:"address"`
	ChainID          int64    `toml:"chain_id"`
	DeployBlock      int64    `toml:"deploy_block"`
	PrivateKey       string   `toml:"private_key"`
	EncryptedKeyPath string   `toml:"encrypted_key_path"`
	KeyPassword      string   `toml:"key_password"`
	MintDelay        duration `toml:"mint_delay"`
	LogChunk         int64    `toml:"log_chunk"`
	ReceiptTimeout   duration `toml:"receipt_timeout"`
}

// SourcesConfig holds discovery source endpoints and limits.
type SourcesConfig struct {
	YieldURL            string   `toml:"yield_url"`
	MarketplaceURL      string   `toml:"marketplace_url"`
	MarketplaceAPIKey   string   `toml:"marketplace_api_key"`
	HolderIndexerURL    string   `toml:"holder_indexer_url"`
	HolderIndexerAPIKey string   `toml:"holder_indexer_api_key"`
	Watchlist           []string `toml:"watchlist"` // "chainId:address"
	ActivityWindow      int64    `toml:"activity_window"`
	PerSourceCap        int      `toml:"per_source_cap"`
	RequestTimeout      duration `toml:"request_timeout"`
	RefreshInterval     duration `toml:"refresh_interval"`
}

// CacheConfig selects the cache backend and entry lifetimes.
type CacheConfig struct {
	Backend          string   `toml:"backend"` // "memory" or "redis"
	Namespace        string   `toml:"namespace"`
	SweepProbability float64  `toml:"sweep_probability"`
	AnalysisTTL      duration `toml:"analysis_ttl"`
	AssetListTTL     duration `toml:"asset_list_ttl"`
	AssetTTL         duration `toml:"asset_ttl"`
	LeaderboardTTL   duration `toml:"leaderboard_ttl"`
	UserCardsTTL     duration `toml:"user_cards_ttl"`
	CandidatesTTL    duration `toml:"candidates_ttl"`
}

// TTLs converts the configured lifetimes, filling gaps from the defaults.
func (c CacheConfig) TTLs() cache.TTLs {
	return cache.TTLs{
		Analysis:    c.AnalysisTTL.Duration,
		AssetList:   c.AssetListTTL.Duration,
		Asset:       c.AssetTTL.Duration,
		Leaderboard: c.LeaderboardTTL.Duration,
		UserCards:   c.UserCardsTTL.Duration,
		Candidates:  c.CandidatesTTL.Duration,
	}.WithDefaults()
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds the user-collection database parameters. When
// disabled, collections live in memory.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters for metadata
// documents. When disabled, metadata is embedded as a data URI.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	PublicURL      string `toml:"public_url"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	ttls := cache.DefaultTTLs()
	return Config{
		Chain: ChainConfig{
			RPCURLs:        map[string]string{},
			DefaultChainID: 1,
			CallTimeout:    duration{10 * time.Second},
		},
		Contract: ContractConfig{
			MintDelay:      duration{2 * time.Second},
			LogChunk:       10_000,
			ReceiptTimeout: duration{3 * time.Minute},
		},
		Sources: SourcesConfig{
			YieldURL:         "https://yields.llama.fi",
			HolderIndexerURL: "https://api.covalenthq.com",
			ActivityWindow:   5_000,
			PerSourceCap:     20,
			RequestTimeout:   duration{15 * time.Second},
			RefreshInterval:  duration{10 * time.Minute},
		},
		Cache: CacheConfig{
			Backend:          "memory",
			Namespace:        "rwa:",
			SweepProbability: cache.DefaultSweepProbability,
			AnalysisTTL:      duration{ttls.Analysis},
			AssetListTTL:     duration{ttls.AssetList},
			AssetTTL:         duration{ttls.Asset},
			LeaderboardTTL:   duration{ttls.Leaderboard},
			UserCardsTTL:     duration{ttls.UserCards},
			CandidatesTTL:    duration{ttls.Candidates},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "rwa",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "rwa-metadata",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   10,
			RateWindow:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{domain.ChannelDiscoveryMinted},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":      true,
	"discover":    true,
	"leaderboard": true,
	"full":        true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ChainIDs parses the rpc_urls keys.
func (c ChainConfig) ChainIDs() (map[int64]string, error) {
	out := make(map[int64]string, len(c.RPCURLs))
	for k, url := range c.RPCURLs {
		id, err := strconv.ParseInt(strings.TrimSpace(k), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("chain: rpc_urls key %q is not a positive chain id", k)
		}
		out[id] = url
	}
	return out, nil
}

// WatchlistRefs parses the "chainId:address" watchlist entries.
func (s SourcesConfig) WatchlistRefs() ([]domain.AssetReference, error) {
	refs := make([]domain.AssetReference, 0, len(s.Watchlist))
	for _, entry := range s.Watchlist {
		chain, addr, ok := strings.Cut(strings.TrimSpace(entry), ":")
		if !ok {
			return nil, fmt.Errorf("sources: watchlist entry %q must be chainId:address", entry)
		}
		id, err := strconv.ParseInt(chain, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("sources: watchlist entry %q: bad chain id", entry)
		}
		ref, err := domain.NewAssetReference(addr, id)
		if err != nil {
			return nil, fmt.Errorf("sources: watchlist entry %q: %w", entry, err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// HasSigner reports whether a signing key source is configured.
func (c ContractConfig) HasSigner() bool {
	return c.PrivateKey != "" || c.EncryptedKeyPath != ""
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, discover, leaderboard, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Chain
	chains, err := c.Chain.ChainIDs()
	if err != nil {
		errs = append(errs, err.Error())
	}
	if c.Chain.DefaultChainID <= 0 {
		errs = append(errs, "chain: default_chain_id must be positive")
	}

	// Contract
	if c.Contract.Address != "" {
		if !common.IsHexAddress(c.Contract.Address) {
			errs = append(errs, fmt.Sprintf("contract: address %q is not a 20-byte hex address", c.Contract.Address))
		}
		chainID := c.Contract.ChainID
		if chainID == 0 {
			chainID = c.Chain.DefaultChainID
		}
		if err == nil && chains[chainID] == "" {
			errs = append(errs, fmt.Sprintf("contract: no rpc url configured for chain %d", chainID))
		}
	} else if c.Mode == "leaderboard" {
		errs = append(errs, "contract: address is required for mode leaderboard")
	}
	if c.Contract.EncryptedKeyPath != "" && c.Contract.KeyPassword == "" {
		errs = append(errs, "contract: key_password is required when encrypted_key_path is set")
	}
	if c.Contract.DeployBlock < 0 {
		errs = append(errs, "contract: deploy_block must be >= 0")
	}

	// Sources
	if _, err := c.Sources.WatchlistRefs(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Sources.PerSourceCap < 1 {
		errs = append(errs, "sources: per_source_cap must be >= 1")
	}
	if c.Sources.RequestTimeout.Duration <= 0 {
		errs = append(errs, "sources: request_timeout must be > 0")
	}

	// Cache
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when cache.backend is redis")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	default:
		errs = append(errs, fmt.Sprintf("cache: unknown backend %q (valid: memory, redis)", c.Cache.Backend))
	}
	if c.Cache.SweepProbability < 0 || c.Cache.SweepProbability > 1 {
		errs = append(errs, "cache: sweep_probability must be within [0,1]")
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}

	// Server
	if c.Mode == "server" || c.Mode == "full" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "server: rate_limit must be >= 0")
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
