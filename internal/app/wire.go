package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/rwadiscovery/internal/analysis"
	s3blob "github.com/alanyoungcy/rwadiscovery/internal/blob/s3"
	"github.com/alanyoungcy/rwadiscovery/internal/cache"
	"github.com/alanyoungcy/rwadiscovery/internal/cache/redis"
	"github.com/alanyoungcy/rwadiscovery/internal/config"
	"github.com/alanyoungcy/rwadiscovery/internal/contract"
	"github.com/alanyoungcy/rwadiscovery/internal/crypto"
	"github.com/alanyoungcy/rwadiscovery/internal/discovery"
	"github.com/alanyoungcy/rwadiscovery/internal/domain"
	"github.com/alanyoungcy/rwadiscovery/internal/ledger"
	"github.com/alanyoungcy/rwadiscovery/internal/minting"
	"github.com/alanyoungcy/rwadiscovery/internal/notify"
	"github.com/alanyoungcy/rwadiscovery/internal/server/handler"
	"github.com/alanyoungcy/rwadiscovery/internal/service"
	"github.com/alanyoungcy/rwadiscovery/internal/source"
	"github.com/alanyoungcy/rwadiscovery/internal/store/memory"
	"github.com/alanyoungcy/rwadiscovery/internal/store/postgres"
)

// Dependencies bundles everything the run modes need. It is constructed by
// Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Infrastructure
	Cache   cache.Store
	Locks   domain.LockManager
	Bus     domain.EventBus
	Limiter domain.RateLimiter

	// Chain. Contract is nil when no discovery contract is configured.
	Backends source.Backends
	Contract *contract.Client

	// Pipelines
	Discovery *discovery.Aggregator
	Analysis  *analysis.Orchestrator
	Ledger    *ledger.Aggregator // nil without a contract
	Minter    *minting.Minter    // nil without a contract

	// Services
	Assets      *service.AssetService
	Collections *service.CollectionService

	Notifier *notify.Notifier

	// Health probes keyed by dependency name.
	Health map[string]handler.HealthCheck
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(step string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", step, err)
	}

	deps := &Dependencies{Health: make(map[string]handler.HealthCheck)}
	ttls := cfg.Cache.TTLs()

	// --- Cache backend ---
	switch cfg.Cache.Backend {
	case "redis":
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail("redis", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Cache = redis.NewStore(redisClient, cfg.Cache.Namespace)
		deps.Locks = redis.NewLockManager(redisClient, cfg.Cache.Namespace)
		deps.Bus = redis.NewEventBus(redisClient)
		deps.Limiter = redis.NewRateLimiter(redisClient, cfg.Cache.Namespace)
		deps.Health["redis"] = redisClient.Ping
	default:
		deps.Cache = cache.NewMemory(cache.WithSweepProbability(cfg.Cache.SweepProbability))
		deps.Locks = cache.NewLocalLock()
		deps.Bus = cache.NewLocalBus()
		deps.Limiter = cache.NewLocalRateLimiter()
	}

	// --- Chain backends ---
	chains, err := cfg.Chain.ChainIDs()
	if err != nil {
		return fail("chains", err)
	}
	deps.Backends = make(source.Backends, len(chains))
	for chainID, url := range chains {
		ec, err := ethclient.DialContext(ctx, url)
		if err != nil {
			return fail(fmt.Sprintf("dial chain %d", chainID), err)
		}
		closers = append(closers, ec.Close)
		deps.Backends[chainID] = ec
	}

	// --- Discovery contract ---
	if cfg.Contract.Address != "" {
		c, err := wireContract(ctx, cfg, deps.Backends, logger)
		if err != nil {
			return fail("contract", err)
		}
		deps.Contract = c
		deps.Health["chain"] = func(ctx context.Context) error {
			_, err := c.LatestBlock(ctx)
			return err
		}
	}

	// --- Sources ---
	timeout := cfg.Sources.RequestTimeout.Duration
	ladder := source.DefaultHolderLadder(
		source.NewIndexerHolders(cfg.Sources.HolderIndexerURL, cfg.Sources.HolderIndexerAPIKey, timeout),
		logger,
	)
	erc20 := source.NewERC20Reader(deps.Backends, ladder, cfg.Chain.CallTimeout.Duration, logger)
	yield := source.NewYieldSource(cfg.Sources.YieldURL, timeout, logger,
		source.WithPoolCache(deps.Cache, ttls.Candidates))

	sources := []discovery.CandidateSource{yield}
	if cfg.Sources.MarketplaceURL != "" {
		sources = append(sources, source.NewMarketplaceSource(
			cfg.Sources.MarketplaceURL, cfg.Sources.MarketplaceAPIKey, timeout, logger,
		))
	}
	watchlist, err := cfg.Sources.WatchlistRefs()
	if err != nil {
		return fail("watchlist", err)
	}
	if len(watchlist) > 0 {
		sources = append(sources, source.NewWatchlistSource(
			deps.Backends, erc20, watchlist, uint64(max(cfg.Sources.ActivityWindow, 0)), timeout, logger,
		))
	}

	deps.Discovery = discovery.NewAggregator(sources, deps.Cache, ttls.Candidates, cfg.Sources.PerSourceCap, logger)
	deps.Analysis = analysis.NewOrchestrator(erc20, yield, deps.Cache, ttls.Analysis, logger)

	// --- User collections ---
	var collectionStore domain.CollectionStore = memory.NewCollectionStore()
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail("postgres", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail("postgres migrations", err)
			}
		}
		collectionStore = postgres.NewCollectionStore(pgClient.Pool())
		deps.Health["postgres"] = pgClient.Health
	}
	deps.Collections = service.NewCollectionService(collectionStore, deps.Cache, ttls.UserCards, logger)

	// --- Asset lookups ---
	var cards service.CardReader
	if deps.Contract != nil {
		cards = deps.Contract
	}
	deps.Assets = service.NewAssetService(
		deps.Discovery, cards, deps.Analysis, deps.Cache, ttls, cfg.Chain.DefaultChainID, logger,
	)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			notify.DefaultTelegramAPI,
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	if deps.Contract == nil {
		return deps, cleanup, nil
	}

	// --- Ledger and minting (contract only) ---
	deps.Ledger = ledger.NewAggregator(
		deps.Contract, deps.Cache, ttls.Leaderboard, uint64(max(cfg.Contract.DeployBlock, 0)), logger,
	)

	opts := []minting.Option{
		minting.WithEventBus(deps.Bus),
		minting.WithCollections(deps.Collections),
	}
	if deps.Notifier.Enabled() {
		opts = append(opts, minting.WithAnnouncer(deps.Notifier))
	}
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
			PublicURL:      cfg.S3.PublicURL,
		})
		if err != nil {
			return fail("s3", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		publisher := s3blob.NewPublisher(s3Client, s3Client.PublicURL())
		opts = append(opts, minting.WithPublisher(publisher))
		deps.Health["s3"] = s3Client.Health
	}
	deps.Minter = minting.NewMinter(
		deps.Contract, deps.Cache, deps.Locks, cfg.Contract.MintDelay.Duration, logger, opts...,
	)

	return deps, cleanup, nil
}

// wireContract binds the contract to its chain's backend and loads the
// optional signer.
func wireContract(ctx context.Context, cfg *config.Config, backends source.Backends, logger *slog.Logger) (*contract.Client, error) {
	chainID := cfg.Contract.ChainID
	if chainID == 0 {
		chainID = cfg.Chain.DefaultChainID
	}
	reader, err := backends.For(chainID)
	if err != nil {
		return nil, err
	}
	backend, ok := reader.(contract.Backend)
	if !ok {
		return nil, fmt.Errorf("%w: chain %d backend cannot send transactions", domain.ErrConfiguration, chainID)
	}

	var signer *crypto.Signer
	if cfg.Contract.HasSigner() {
		pk, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Contract.PrivateKey,
			EncryptedKeyPath: cfg.Contract.EncryptedKeyPath,
			KeyPassword:      cfg.Contract.KeyPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("load signer key: %w", err)
		}
		signer, err = crypto.NewSigner(pk, chainID)
		if err != nil {
			return nil, fmt.Errorf("signer: %w", err)
		}
		logger.InfoContext(ctx, "contract signer loaded", slog.String("address", signer.Address().Hex()))
	} else {
		logger.WarnContext(ctx, "no signer configured, minting disabled")
	}

	return contract.New(backend, contract.Config{
		Address:        cfg.Contract.Address,
		ChainID:        chainID,
		LogChunk:       uint64(max(cfg.Contract.LogChunk, 0)),
		ReceiptTimeout: cfg.Contract.ReceiptTimeout.Duration,
	}, signer, logger)
}
