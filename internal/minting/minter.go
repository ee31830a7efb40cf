// Package minting writes batches of discovery cards on chain, one
// transaction at a time, and invalidates the cached views they change.
package minting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/rwadiscovery/internal/cache"
	"github.com/alanyoungcy/rwadiscovery/internal/discovery"
	"github.com/alanyoungcy/rwadiscovery/internal/domain"
)

// Defaults for batch pacing and locking.
const (
	DefaultDelay   = 2 * time.Second
	DefaultLockTTL = 10 * time.Minute

	// BatchLockKey serializes batches across processes.
	BatchLockKey = "mint:batch"

	// EventMinted is the notifier event type for announcements.
	EventMinted = "discovery.minted"
)

// Writer is the on-chain side of a mint.
type Writer interface {
	CanWrite() bool
	IsAssetDiscovered(ctx context.Context, address string) (bool, error)
	WriteDiscovery(ctx context.Context, p domain.MintParams) (domain.MintResult, error)
}

// Announcer delivers human-readable mint announcements.
type Announcer interface {
	Notify(ctx context.Context, event, title, message string) error
}

// CardCollector records minted cards in the recipient's collection.
type CardCollector interface {
	AddCard(ctx context.Context, address string, card domain.CollectionCard) error
}

// Minter runs mint batches.
type Minter struct {
	writer  Writer
	store   cache.Store
	locks   domain.LockManager
	delay   time.Duration
	lockTTL time.Duration

	publisher   domain.MetadataPublisher
	bus         domain.EventBus
	announcer   Announcer
	collections CardCollector

	now    func() time.Time
	sleep  func(context.Context, time.Duration) error
	logger *slog.Logger
}

// Option configures optional Minter collaborators.
type Option func(*Minter)

// WithPublisher pins metadata documents to object storage instead of
// embedding them as data URIs.
func WithPublisher(p domain.MetadataPublisher) Option { return func(m *Minter) { m.publisher = p } }

// WithEventBus publishes a minted event after each batch.
func WithEventBus(b domain.EventBus) Option { return func(m *Minter) { m.bus = b } }

// WithAnnouncer sends a chat announcement after each batch.
func WithAnnouncer(a Announcer) Option { return func(m *Minter) { m.announcer = a } }

// WithCollections appends minted cards to the recipient's collection.
func WithCollections(c CardCollector) Option { return func(m *Minter) { m.collections = c } }

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(d time.Duration) Option {
	return func(m *Minter) {
		if d > 0 {
			m.lockTTL = d
		}
	}
}

// NewMinter creates a Minter. A non-positive delay falls back to DefaultDelay.
func NewMinter(writer Writer, store cache.Store, locks domain.LockManager, delay time.Duration, logger *slog.Logger, opts ...Option) *Minter {
	if delay <= 0 {
		delay = DefaultDelay
	}
	m := &Minter{
		writer:  writer,
		store:   store,
		locks:   locks,
		delay:   delay,
		lockTTL: DefaultLockTTL,
		now:     time.Now,
		sleep:   sleepCtx,
		logger:  logger.With(slog.String("component", "minter")),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MintBatch validates every asset, then mints them sequentially to
// recipient, pausing between transactions. Assets already discovered on
// chain are skipped. A failed write is recorded in its result and the batch
// continues; an unavailable writer or a cancelled context stops it.
func (m *Minter) MintBatch(ctx context.Context, recipient string, assets []domain.DiscoveredAsset) ([]domain.MintResult, error) {
	if len(assets) == 0 {
		return nil, &domain.ValidationError{Field: "assets", Reason: "at least one asset is required"}
	}
	for i, a := range assets {
		if err := (domain.MintParams{Recipient: recipient, Asset: a}).Validate(); err != nil {
			return nil, fmt.Errorf("minting: asset %d: %w", i, err)
		}
	}
	if !m.writer.CanWrite() {
		return nil, fmt.Errorf("minting: %w: no signing key configured", domain.ErrUnavailable)
	}

	unlock, err := m.locks.Acquire(ctx, BatchLockKey, m.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("minting: acquire batch lock: %w", err)
	}
	defer unlock()

	recipient = strings.ToLower(recipient)
	logger := m.logger.With(slog.String("recipient", recipient))
	logger.Info("mint batch started", slog.Int("assets", len(assets)))

	results := make([]domain.MintResult, 0, len(assets))
	var minted []domain.DiscoveredAsset
	wrote := false
	var stopErr error

	for _, a := range assets {
		addr := strings.ToLower(a.Address)

		done, err := m.writer.IsAssetDiscovered(ctx, addr)
		if err != nil {
			logger.Warn("discovered check failed", slog.String("asset", addr), slog.String("error", err.Error()))
			results = append(results, domain.MintResult{Asset: addr, Skipped: true, Reason: err.Error()})
			continue
		}
		if done {
			results = append(results, domain.MintResult{Asset: addr, Skipped: true, Reason: "already discovered"})
			continue
		}

		if wrote {
			if err := m.sleep(ctx, m.delay); err != nil {
				stopErr = err
				break
			}
		}

		if a.TokenURI == "" {
			uri, err := m.tokenURI(ctx, a)
			if err != nil {
				results = append(results, domain.MintResult{Asset: addr, Reason: err.Error()})
				continue
			}
			a.TokenURI = uri
		}

		res, err := m.writer.WriteDiscovery(ctx, domain.MintParams{Recipient: recipient, Asset: a})
		wrote = true
		if err != nil {
			logger.Error("mint failed", slog.String("asset", addr), slog.String("error", err.Error()))
			if errors.Is(err, domain.ErrUnavailable) || ctx.Err() != nil {
				stopErr = err
				break
			}
			results = append(results, domain.MintResult{Asset: addr, Reason: err.Error()})
			continue
		}
		results = append(results, res)
		minted = append(minted, a)
		m.collect(ctx, recipient, a, res)
	}

	if len(minted) > 0 {
		m.afterBatch(ctx, recipient, minted, results)
	}
	logger.Info("mint batch finished", slog.Int("minted", len(minted)), slog.Int("results", len(results)))

	if stopErr != nil {
		return results, fmt.Errorf("minting: batch stopped: %w", stopErr)
	}
	return results, nil
}

func (m *Minter) tokenURI(ctx context.Context, a domain.DiscoveredAsset) (string, error) {
	doc := discovery.MetadataDocument(a.Name, a.Symbol, a.AssetType)
	if m.publisher == nil {
		return discovery.TokenURI(doc)
	}
	body, err := doc.JSON()
	if err != nil {
		return "", fmt.Errorf("minting: encode metadata: %w", err)
	}
	path := fmt.Sprintf("metadata/%d/%s.json", a.ChainID, strings.ToLower(a.Address))
	url, err := m.publisher.Publish(ctx, path, body)
	if err != nil {
		return "", fmt.Errorf("minting: publish metadata: %w", err)
	}
	return url, nil
}

func (m *Minter) collect(ctx context.Context, recipient string, a domain.DiscoveredAsset, res domain.MintResult) {
	if m.collections == nil {
		return
	}
	card := domain.CollectionCard{
		TokenID:      res.TokenID.String(),
		AssetAddress: strings.ToLower(a.Address),
		ChainID:      a.ChainID,
		Name:         a.Name,
		Symbol:       a.Symbol,
		AssetType:    a.AssetType,
		RarityTier:   a.RarityTier,
		RarityScore:  a.RarityScore,
		TxHash:       res.TxHash,
		AddedAt:      m.now().UTC(),
	}
	if err := m.collections.AddCard(ctx, recipient, card); err != nil {
		m.logger.Warn("collection update failed", slog.String("recipient", recipient), slog.String("error", err.Error()))
	}
}

// mintedEvent is the payload published on domain.ChannelDiscoveryMinted.
type mintedEvent struct {
	Recipient string              `json:"recipient"`
	Results   []domain.MintResult `json:"results"`
	At        time.Time           `json:"at"`
}

func (m *Minter) afterBatch(ctx context.Context, recipient string, minted []domain.DiscoveredAsset, results []domain.MintResult) {
	for _, prefix := range []string{cache.PrefixLeaderboard, cache.UserCardsKey(recipient), cache.PrefixAssets} {
		if _, err := m.store.Invalidate(ctx, prefix); err != nil {
			m.logger.Warn("cache invalidation failed", slog.String("prefix", prefix), slog.String("error", err.Error()))
		}
	}

	if m.bus != nil {
		payload, err := json.Marshal(mintedEvent{Recipient: recipient, Results: results, At: m.now().UTC()})
		if err == nil {
			err = m.bus.Publish(ctx, domain.ChannelDiscoveryMinted, payload)
		}
		if err != nil {
			m.logger.Warn("minted event publish failed", slog.String("error", err.Error()))
		}
	}

	if m.announcer != nil {
		names := make([]string, 0, len(minted))
		for _, a := range minted {
			names = append(names, fmt.Sprintf("%s (%s, rarity %.1f)", a.Symbol, a.RarityTier, a.RarityScore))
		}
		title := fmt.Sprintf("%d discovery card(s) minted", len(minted))
		msg := fmt.Sprintf("Recipient %s\n%s", recipient, strings.Join(names, "\n"))
		if err := m.announcer.Notify(ctx, EventMinted, title, msg); err != nil {
			m.logger.Warn("announcement failed", slog.String("error", err.Error()))
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
