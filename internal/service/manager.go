// Package service exposes the shop store to callers. The Manager owns the
// in-memory Tracker and pairs every mutation with a write to its
// StorageProvider: immediately and awaited for row-level backends, or by
// marking the store dirty for a periodic flush when the provider buffers.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vietanh2810/shopstore/internal/domain"
	"github.com/vietanh2810/shopstore/internal/tracker"
)

const (
	DefaultFlushInterval = 30 * time.Second
	maxShopNameLength    = 32
)

// Option configures a Manager before it loads its data.
type Option func(*Manager)

// WithFlushInterval sets the period of the background flush for buffering providers.
func WithFlushInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithMigrationSource sets the provider copied into the store when the store
// starts out empty.
func WithMigrationSource(source StorageProvider) Option {
	return func(m *Manager) { m.migrationSource = source }
}

// Stats summarizes the store.
type Stats struct {
	Backend  string `json:"backend"`
	Listings int    `json:"listings"`
	Owners   int    `json:"owners"`
	Dirty    bool   `json:"dirty"`
}

type Manager struct {
	store           StorageProvider
	flusher         Flusher
	migrationSource StorageProvider
	observer        Observer
	interval        time.Duration

	tracker atomic.Pointer[tracker.Tracker]

	// flushMu serializes flushes and reloads. It is always taken before
	// writeMu, never while holding it.
	flushMu sync.Mutex
	// writeMu serializes mutations so each tracker change and its storage
	// write are applied in call order. Queries never take it.
	writeMu sync.Mutex
	closed  bool

	stopFlush chan struct{}
	flushDone chan struct{}
}

// New initializes store, loads it and, when it is empty and a migration
// source is configured, copies the source into it. The returned Manager is
// fully loaded. Buffering providers get a background flush loop that Close stops.
func New(ctx context.Context, store StorageProvider, opts ...Option) (*Manager, error) {
	m := &Manager{
		store:    store,
		interval: DefaultFlushInterval,
	}
	for _, opt := range opts {
		opt(m)
	}
	if f, ok := store.(Flusher); ok {
		m.flusher = f
	}

	if err := store.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("s.store.Initialize -> %w", err)
	}

	t, err := m.load(ctx)
	if err != nil {
		zap.L().Warn("failed to load shop data, starting empty",
			zap.String("backend", store.Name()), zap.Error(err))
		t = tracker.New()
	} else if !hasData(t) && m.migrationSource != nil {
		if m.migrate(ctx) > 0 {
			if reloaded, err := m.load(ctx); err != nil {
				zap.L().Warn("failed to reload shop data after migration", zap.Error(err))
			} else {
				t = reloaded
			}
		}
	}
	m.tracker.Store(t)

	zap.L().Info("shop store ready",
		zap.String("backend", store.Name()),
		zap.Int("owners", t.OwnerCount()),
		zap.Int("listings", t.ListingCount()))

	if m.flusher != nil {
		m.stopFlush = make(chan struct{})
		m.flushDone = make(chan struct{})
		go m.runFlushLoop()
	}

	return m, nil
}

func (m *Manager) load(ctx context.Context) (*tracker.Tracker, error) {
	t := tracker.New()
	if err := m.store.LoadAll(ctx, t); err != nil {
		return nil, fmt.Errorf("s.store.LoadAll -> %w", err)
	}
	return t, nil
}

func (m *Manager) runFlushLoop() {
	defer close(m.flushDone)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopFlush:
			return
		case <-ticker.C:
			if m.flusher.Dirty() {
				_ = m.flush(context.Background())
			}
		}
	}
}

// flush writes buffered changes. It must not be called with writeMu held.
func (m *Manager) flush(ctx context.Context) error {
	if m.flusher == nil {
		return nil
	}
	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	return m.flushWith(ctx, m.snapshot)
}

// flushWith writes the snapshot returned by snapshot. The caller holds flushMu.
func (m *Manager) flushWith(ctx context.Context, snapshot func() tracker.Snapshot) error {
	err := m.flusher.Flush(ctx, snapshot)
	if err != nil {
		zap.L().Error("failed to flush shop data", zap.String("backend", m.store.Name()), zap.Error(err))
		return fmt.Errorf("%w: s.flusher.Flush -> %w", ErrNotPersisted, err)
	}
	return nil
}

func (m *Manager) snapshot() tracker.Snapshot {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return m.tracker.Load().Snapshot()
}

// persisted logs a failed backend write and wraps it in ErrNotPersisted.
func (m *Manager) persisted(op string, err error, fields ...zap.Field) error {
	if err == nil {
		return nil
	}
	fields = append(fields, zap.String("op", op), zap.String("backend", m.store.Name()), zap.Error(err))
	zap.L().Error("failed to persist shop change", fields...)
	return fmt.Errorf("%w: s.store.%s -> %w", ErrNotPersisted, op, err)
}

// lock acquires writeMu and returns the current tracker, or ErrManagerClosed.
func (m *Manager) lock() (*tracker.Tracker, error) {
	m.writeMu.Lock()
	if m.closed {
		m.writeMu.Unlock()
		return nil, ErrManagerClosed
	}
	return m.tracker.Load(), nil
}

func (m *Manager) unlock() {
	m.writeMu.Unlock()
}

// ensureOwner lazily creates the owner record of a player listing.
func (m *Manager) ensureOwner(ctx context.Context, t *tracker.Tracker, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	o, created := t.EnsureOwner(id)
	if !created {
		return nil
	}
	m.notify(ownerEvent(o))
	return m.persisted("SaveOwnerInfo", m.store.SaveOwnerInfo(ctx, o), zap.Stringer("owner_id", id))
}

func validateDraft(t *tracker.Tracker, d domain.ListingDraft) error {
	switch {
	case strings.TrimSpace(d.ItemType) == "":
		return fmt.Errorf("%w: item type is required", ErrInvalidListing)
	case d.Quantity <= 0:
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidListing)
	case d.BuyPrice.IsNegative() || d.SellPrice.IsNegative():
		return fmt.Errorf("%w: prices must not be negative", ErrInvalidListing)
	case d.Durability < 0 || d.MaxDurability < 0:
		return fmt.Errorf("%w: durability must not be negative", ErrInvalidListing)
	case d.Stock < 0:
		return fmt.Errorf("%w: stock must not be negative", ErrInvalidListing)
	}
	if d.Tab != domain.UncategorizedTab && !t.HasTab(d.OwnerID, d.Tab) {
		return fmt.Errorf("%w: %q", ErrTabNotFound, d.Tab)
	}
	return nil
}

// AddListing creates a new listing and returns it with its id.
func (m *Manager) AddListing(ctx context.Context, d domain.ListingDraft) (domain.Listing, error) {
	t, err := m.lock()
	if err != nil {
		return domain.Listing{}, err
	}
	defer m.unlock()

	if err := validateDraft(t, d); err != nil {
		return domain.Listing{}, err
	}
	return m.addListing(ctx, t, d)
}

func (m *Manager) addListing(ctx context.Context, t *tracker.Tracker, d domain.ListingDraft) (domain.Listing, error) {
	ownerErr := m.ensureOwner(ctx, t, d.OwnerID)

	l, err := m.store.AddListing(ctx, d.Listing())
	if err != nil {
		return domain.Listing{}, m.persisted("AddListing", err, zap.Stringer("owner_id", d.OwnerID))
	}
	stored := t.AddListing(l)
	m.notify(listingEvent(EventListingAdded, stored))
	return stored, ownerErr
}

// AddOrUpdateListing stacks d onto an existing listing of the same owner with
// the same item type, tab and durability (within DurabilityTolerance): its
// stock grows by d.Stock and its prices are replaced only when they differ by
// more than PriceTolerance. Otherwise a new listing is created. The boolean
// reports whether an existing listing was merged into.
func (m *Manager) AddOrUpdateListing(ctx context.Context, d domain.ListingDraft) (domain.Listing, bool, error) {
	t, err := m.lock()
	if err != nil {
		return domain.Listing{}, false, err
	}
	defer m.unlock()

	if err := validateDraft(t, d); err != nil {
		return domain.Listing{}, false, err
	}

	for _, existing := range t.ListingsByOwner(d.OwnerID) {
		if !existing.Stacks(d) {
			continue
		}
		merged, _ := t.ModifyListing(existing.ID, func(l *domain.Listing) {
			l.Stock += d.Stock
			if domain.PriceDiffers(l.BuyPrice, d.BuyPrice) {
				l.BuyPrice = d.BuyPrice
			}
			if domain.PriceDiffers(l.SellPrice, d.SellPrice) {
				l.SellPrice = d.SellPrice
			}
		})
		m.notify(listingEvent(EventListingUpdated, merged))
		err := m.persisted("UpdateListing", m.store.UpdateListing(ctx, merged), zap.Int64("listing_id", merged.ID))
		return merged, true, err
	}

	l, err := m.addListing(ctx, t, d)
	return l, false, err
}

// RemoveListing deletes a listing. Buffering providers are flushed before it
// returns so a removal is never lost on a crash.
func (m *Manager) RemoveListing(ctx context.Context, id int64) (bool, error) {
	t, err := m.lock()
	if err != nil {
		return false, err
	}
	l, ok := t.GetListing(id)
	if !ok || !t.RemoveListing(id) {
		m.unlock()
		return false, nil
	}
	m.notify(listingEvent(EventListingRemoved, l))
	err = m.persisted("RemoveListing", m.store.RemoveListing(ctx, id), zap.Int64("listing_id", id))
	m.unlock()

	if err != nil {
		return true, err
	}
	return true, m.flush(ctx)
}

// PurgeOwnerListings removes every listing of owner and returns how many
// were removed. It is flushed like RemoveListing.
func (m *Manager) PurgeOwnerListings(ctx context.Context, owner uuid.UUID) (int, error) {
	t, err := m.lock()
	if err != nil {
		return 0, err
	}
	removed := t.RemoveOwnerListings(owner)
	if len(removed) == 0 {
		m.unlock()
		return 0, nil
	}
	m.notify(Event{Kind: EventListingsPurged, OwnerID: owner})
	err = m.persisted("RemoveOwnerListings", m.store.RemoveOwnerListings(ctx, owner), zap.Stringer("owner_id", owner))
	m.unlock()

	if err != nil {
		return len(removed), err
	}
	return len(removed), m.flush(ctx)
}

// UpdateListing overwrites the mutable fields of the listing with l.ID. The
// owner of a listing cannot be changed.
func (m *Manager) UpdateListing(ctx context.Context, l domain.Listing) (domain.Listing, bool, error) {
	t, err := m.lock()
	if err != nil {
		return domain.Listing{}, false, err
	}
	defer m.unlock()

	current, ok := t.GetListing(l.ID)
	if !ok {
		return domain.Listing{}, false, nil
	}
	l.OwnerID = current.OwnerID
	if err := validateDraft(t, draftOf(l)); err != nil {
		return domain.Listing{}, false, err
	}

	t.UpdateListing(l)
	m.notify(listingEvent(EventListingUpdated, l))
	return l, true, m.persisted("UpdateListing", m.store.UpdateListing(ctx, l), zap.Int64("listing_id", l.ID))
}

// DecreaseStock lowers the stock of a listing by amount, stopping at zero.
// A listing with no stock left stays in place.
func (m *Manager) DecreaseStock(ctx context.Context, id int64, amount int) (domain.Listing, bool, error) {
	if amount <= 0 {
		return domain.Listing{}, false, ErrInvalidAmount
	}
	return m.modifyListing(ctx, id, func(l *domain.Listing) {
		l.Stock = max(l.Stock-amount, 0)
	})
}

func (m *Manager) IncreaseStock(ctx context.Context, id int64, amount int) (domain.Listing, bool, error) {
	if amount <= 0 {
		return domain.Listing{}, false, ErrInvalidAmount
	}
	return m.modifyListing(ctx, id, func(l *domain.Listing) {
		l.Stock += amount
	})
}

func (m *Manager) UpdatePrice(ctx context.Context, id int64, buy, sell decimal.Decimal) (domain.Listing, bool, error) {
	if buy.IsNegative() || sell.IsNegative() {
		return domain.Listing{}, false, ErrInvalidAmount
	}
	return m.modifyListing(ctx, id, func(l *domain.Listing) {
		l.BuyPrice = buy
		l.SellPrice = sell
	})
}

func (m *Manager) modifyListing(ctx context.Context, id int64, fn func(*domain.Listing)) (domain.Listing, bool, error) {
	t, err := m.lock()
	if err != nil {
		return domain.Listing{}, false, err
	}
	defer m.unlock()

	l, ok := t.ModifyListing(id, fn)
	if !ok {
		return domain.Listing{}, false, nil
	}
	m.notify(listingEvent(EventListingUpdated, l))
	return l, true, m.persisted("UpdateListing", m.store.UpdateListing(ctx, l), zap.Int64("listing_id", id))
}

func (m *Manager) GetListing(id int64) (domain.Listing, bool) {
	return m.tracker.Load().GetListing(id)
}

func (m *Manager) ListingsByOwner(owner uuid.UUID) []domain.Listing {
	return m.tracker.Load().ListingsByOwner(owner)
}

// ListingsByTab returns the owner's listings under tab. The empty tab
// returns uncategorized listings.
func (m *Manager) ListingsByTab(owner uuid.UUID, tab string) []domain.Listing {
	return m.tracker.Load().ListingsByTab(owner, tab)
}

// SetOwnerNick records the player's current name, creating the owner record
// if needed. Shop name and icon are left untouched.
func (m *Manager) SetOwnerNick(ctx context.Context, owner uuid.UUID, nick string) (domain.Owner, error) {
	nick = strings.TrimSpace(nick)
	if nick == "" || owner == uuid.Nil {
		return domain.Owner{}, ErrInvalidName
	}
	t, err := m.lock()
	if err != nil {
		return domain.Owner{}, err
	}
	defer m.unlock()

	o, _ := t.UpsertOwner(owner, nick)
	m.notify(ownerEvent(o))
	return o, m.saveOwner(ctx, o)
}

// RenameShop sets the display name of the owner's shop.
func (m *Manager) RenameShop(ctx context.Context, owner uuid.UUID, name string) (domain.Owner, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxShopNameLength || owner == uuid.Nil {
		return domain.Owner{}, ErrInvalidName
	}
	return m.modifyOwner(ctx, owner, func(o *domain.Owner) { o.CustomName = name })
}

// SetIcon sets the item type shown as the shop icon. An empty icon clears it.
func (m *Manager) SetIcon(ctx context.Context, owner uuid.UUID, icon string) (domain.Owner, error) {
	if owner == uuid.Nil {
		return domain.Owner{}, ErrInvalidName
	}
	icon = strings.TrimSpace(icon)
	return m.modifyOwner(ctx, owner, func(o *domain.Owner) { o.Icon = icon })
}

func (m *Manager) SetShopOpen(ctx context.Context, owner uuid.UUID, open bool) (domain.Owner, error) {
	if owner == uuid.Nil {
		return domain.Owner{}, ErrInvalidName
	}
	t, err := m.lock()
	if err != nil {
		return domain.Owner{}, err
	}
	defer m.unlock()

	o := t.SetShopOpen(owner, open)
	m.notify(ownerEvent(o))
	return o, m.saveOwner(ctx, o)
}

func (m *Manager) modifyOwner(ctx context.Context, owner uuid.UUID, fn func(*domain.Owner)) (domain.Owner, error) {
	t, err := m.lock()
	if err != nil {
		return domain.Owner{}, err
	}
	defer m.unlock()

	o, _ := t.ModifyOwner(owner, fn)
	m.notify(ownerEvent(o))
	return o, m.saveOwner(ctx, o)
}

func (m *Manager) saveOwner(ctx context.Context, o domain.Owner) error {
	return m.persisted("SaveOwnerInfo", m.store.SaveOwnerInfo(ctx, o), zap.Stringer("owner_id", o.ID))
}

// IsShopOpen reports whether the shop is browsable. Unknown shops are closed.
func (m *Manager) IsShopOpen(owner uuid.UUID) bool {
	return m.tracker.Load().IsShopOpen(owner)
}

func (m *Manager) Owner(owner uuid.UUID) (domain.Owner, bool) {
	return m.tracker.Load().Owner(owner)
}

// OpenShops returns the owners whose shops are currently open.
func (m *Manager) OpenShops() []domain.Owner {
	var open []domain.Owner
	for _, o := range m.tracker.Load().Owners() {
		if o.IsOpen {
			open = append(open, o)
		}
	}
	return open
}

func normalizeTab(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > domain.MaxTabNameLength {
		return "", ErrInvalidName
	}
	return name, nil
}

// CreateTab adds a tab to the owner's shop. Creating an existing tab is a
// no-op; an owner never has more than domain.MaxTabs tabs.
func (m *Manager) CreateTab(ctx context.Context, owner uuid.UUID, name string) error {
	name, err := normalizeTab(name)
	if err != nil {
		return err
	}
	if owner == uuid.Nil {
		return ErrInvalidName
	}
	t, err := m.lock()
	if err != nil {
		return err
	}
	defer m.unlock()

	if t.HasTab(owner, name) {
		return nil
	}
	if len(t.Tabs(owner)) >= domain.MaxTabs {
		return ErrTabLimitReached
	}

	o, created := t.ModifyOwner(owner, func(o *domain.Owner) { o.Tabs = append(o.Tabs, name) })
	m.notify(Event{Kind: EventTabCreated, OwnerID: owner, Tab: name})
	if created {
		return m.saveOwner(ctx, o)
	}
	return m.persisted("CreateTab", m.store.CreateTab(ctx, owner, name),
		zap.Stringer("owner_id", owner), zap.String("tab", name))
}

// RemoveTab deletes the tab together with every listing filed under it.
// Returns whether the tab existed.
func (m *Manager) RemoveTab(ctx context.Context, owner uuid.UUID, name string) (bool, error) {
	t, err := m.lock()
	if err != nil {
		return false, err
	}
	if !t.RemoveTab(owner, name) {
		m.unlock()
		return false, nil
	}
	m.notify(Event{Kind: EventTabRemoved, OwnerID: owner, Tab: name})
	err = m.persisted("RemoveTab", m.store.RemoveTab(ctx, owner, name),
		zap.Stringer("owner_id", owner), zap.String("tab", name))
	m.unlock()

	if err != nil {
		return true, err
	}
	return true, m.flush(ctx)
}

func (m *Manager) HasTab(owner uuid.UUID, name string) bool {
	return m.tracker.Load().HasTab(owner, name)
}

func (m *Manager) AllTabs(owner uuid.UUID) []string {
	return m.tracker.Load().Tabs(owner)
}

func (m *Manager) Stats() Stats {
	t := m.tracker.Load()
	s := Stats{
		Backend:  m.store.Name(),
		Listings: t.ListingCount(),
		Owners:   t.OwnerCount(),
	}
	if m.flusher != nil {
		s.Dirty = m.flusher.Dirty()
	}
	return s
}

// Reload writes pending changes and re-reads the store into a fresh
// tracker. Mutations wait until the new tracker is in place, so none is
// lost between the flush and the swap. If the read fails the current
// contents are kept.
func (m *Manager) Reload(ctx context.Context) error {
	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	current, err := m.lock()
	if err != nil {
		return err
	}
	defer m.unlock()

	if m.flusher != nil {
		if err := m.flushWith(ctx, current.Snapshot); err != nil {
			return err
		}
	}

	t, err := m.load(ctx)
	if err != nil {
		zap.L().Warn("reload failed, keeping current shop data", zap.Error(err))
		return err
	}
	m.tracker.Store(t)
	m.notify(Event{Kind: EventReloaded})

	zap.L().Info("shop store reloaded",
		zap.Int("owners", t.OwnerCount()),
		zap.Int("listings", t.ListingCount()))
	return nil
}

// Close stops the flush loop, persists every owner record and pending
// change, then shuts the provider down. The steps run strictly in order so
// no write reaches a provider that is already stopping.
func (m *Manager) Close(ctx context.Context) error {
	m.writeMu.Lock()
	if m.closed {
		m.writeMu.Unlock()
		return nil
	}
	m.closed = true
	m.writeMu.Unlock()

	if m.stopFlush != nil {
		close(m.stopFlush)
		<-m.flushDone
	}

	var failed int
	for _, o := range m.tracker.Load().Owners() {
		if err := m.store.SaveOwnerInfo(ctx, o); err != nil {
			failed++
			zap.L().Error("failed to persist owner on shutdown", zap.Stringer("owner_id", o.ID), zap.Error(err))
		}
	}
	flushErr := m.flush(ctx)

	if err := m.store.Shutdown(ctx); err != nil {
		return fmt.Errorf("s.store.Shutdown -> %w", err)
	}
	if flushErr != nil {
		return flushErr
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d owner records", ErrNotPersisted, failed)
	}
	return nil
}

func draftOf(l domain.Listing) domain.ListingDraft {
	return domain.ListingDraft{
		ItemType:      l.ItemType,
		Quantity:      l.Quantity,
		BuyPrice:      l.BuyPrice,
		SellPrice:     l.SellPrice,
		OwnerID:       l.OwnerID,
		Durability:    l.Durability,
		MaxDurability: l.MaxDurability,
		Stock:         l.Stock,
		Tab:           l.Tab,
	}
}
