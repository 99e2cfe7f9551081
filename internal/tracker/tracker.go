// Package tracker holds the authoritative in-memory index of shop listings and
// owner records. It performs no I/O and never decides when to persist; callers
// pair every mutation with a storage write according to their own policy.
//
// All methods are safe for concurrent use. Returned listings and owners are
// copies, so mutating them does not affect the tracker.
package tracker

import (
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/vietanh2810/shopstore/internal/domain"
)

type Tracker struct {
	mu       sync.RWMutex
	nextID   int64
	listings map[int64]*domain.Listing
	byOwner  map[uuid.UUID]map[int64]struct{}
	owners   map[uuid.UUID]*domain.Owner
}

// Snapshot is a consistent copy of the tracker contents.
type Snapshot struct {
	NextID   int64
	Listings []domain.Listing
	Owners   []domain.Owner
}

func New() *Tracker {
	return &Tracker{
		nextID:   1,
		listings: make(map[int64]*domain.Listing),
		byOwner:  make(map[uuid.UUID]map[int64]struct{}),
		owners:   make(map[uuid.UUID]*domain.Owner),
	}
}

// AddListing stores l and returns the stored copy. A zero l.ID is replaced by
// the next unused id; a non-zero id was assigned by an external generator and
// is kept, advancing the counter past it so it is never handed out again.
func (t *Tracker) AddListing(l domain.Listing) domain.Listing {
	t.mu.Lock()
	defer t.mu.Unlock()

	if l.ID == 0 {
		l.ID = t.nextID
		t.nextID++
	} else if l.ID >= t.nextID {
		t.nextID = l.ID + 1
	}

	if old, ok := t.listings[l.ID]; ok {
		t.unindex(old)
	}
	stored := l
	t.listings[l.ID] = &stored
	t.index(&stored)

	return stored
}

// UpdateListing replaces the stored listing carrying l.ID. Returns false when
// no such listing exists.
func (t *Tracker) UpdateListing(l domain.Listing) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	old, ok := t.listings[l.ID]
	if !ok {
		return false
	}
	t.unindex(old)
	stored := l
	t.listings[l.ID] = &stored
	t.index(&stored)
	return true
}

// ModifyListing applies fn to the stored listing under the write lock and
// returns the result. fn must not call back into the tracker.
func (t *Tracker) ModifyListing(id int64, fn func(*domain.Listing)) (domain.Listing, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.listings[id]
	if !ok {
		return domain.Listing{}, false
	}
	owner, tab := l.OwnerID, l.Tab
	fn(l)
	l.ID = id
	if l.OwnerID != owner || l.Tab != tab {
		moved := *l
		moved.OwnerID, moved.Tab = owner, tab
		t.unindex(&moved)
		t.index(l)
	}
	return *l, true
}

func (t *Tracker) RemoveListing(id int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.listings[id]
	if !ok {
		return false
	}
	t.unindex(l)
	delete(t.listings, id)
	return true
}

// RemoveOwnerListings removes every listing of owner and returns them.
func (t *Tracker) RemoveOwnerListings(owner uuid.UUID) []domain.Listing {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.removeWhere(owner, func(*domain.Listing) bool { return true })
}

func (t *Tracker) GetListing(id int64) (domain.Listing, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	l, ok := t.listings[id]
	if !ok {
		return domain.Listing{}, false
	}
	return *l, true
}

// ListingsByOwner returns the owner's listings ordered by id.
func (t *Tracker) ListingsByOwner(owner uuid.UUID) []domain.Listing {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.collect(owner, func(*domain.Listing) bool { return true })
}

// ListingsByTab returns the owner's listings under tab ordered by id. The
// empty tab selects uncategorized listings.
func (t *Tracker) ListingsByTab(owner uuid.UUID, tab string) []domain.Listing {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.collect(owner, func(l *domain.Listing) bool { return l.Tab == tab })
}

// Listings returns every listing ordered by id.
func (t *Tracker) Listings() []domain.Listing {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.sortedListings()
}

func (t *Tracker) ListingCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.listings)
}

func (t *Tracker) NextID() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.nextID
}

// SetNextID raises the id counter to id. It never lowers it.
func (t *Tracker) SetNextID(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id > t.nextID {
		t.nextID = id
	}
}

// UpsertOwner creates the owner record if absent. An existing record only has
// its nick updated. Returns the stored record and whether it was created.
func (t *Tracker) UpsertOwner(id uuid.UUID, nick string) (domain.Owner, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	o, ok := t.owners[id]
	if ok {
		o.Nick = nick
		return o.Clone(), false
	}
	o = t.createOwner(id)
	o.Nick = nick
	return o.Clone(), true
}

// EnsureOwner creates an empty owner record if absent and reports whether it did.
func (t *Tracker) EnsureOwner(id uuid.UUID) (domain.Owner, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if o, ok := t.owners[id]; ok {
		return o.Clone(), false
	}
	return t.createOwner(id).Clone(), true
}

// PutOwner stores a complete owner record, replacing any existing one.
func (t *Tracker) PutOwner(o domain.Owner) {
	t.mu.Lock()
	defer t.mu.Unlock()

	stored := o.Clone()
	t.owners[o.ID] = &stored
}

// ModifyOwner applies fn to the stored owner record, creating it first when
// absent. Returns the result and whether the record was created.
func (t *Tracker) ModifyOwner(id uuid.UUID, fn func(*domain.Owner)) (domain.Owner, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	o, ok := t.owners[id]
	if !ok {
		o = t.createOwner(id)
	}
	fn(o)
	o.ID = id
	return o.Clone(), !ok
}

func (t *Tracker) Owner(id uuid.UUID) (domain.Owner, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	o, ok := t.owners[id]
	if !ok {
		return domain.Owner{}, false
	}
	return o.Clone(), true
}

// Owners returns every owner record ordered by id.
func (t *Tracker) Owners() []domain.Owner {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.sortedOwners()
}

func (t *Tracker) OwnerCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.owners)
}

// Empty reports whether the tracker holds no owner records.
func (t *Tracker) Empty() bool {
	return t.OwnerCount() == 0
}

func (t *Tracker) SetShopOpen(id uuid.UUID, open bool) domain.Owner {
	o, _ := t.ModifyOwner(id, func(o *domain.Owner) { o.IsOpen = open })
	return o
}

// IsShopOpen reports the open state of a shop. Unknown owners are closed.
func (t *Tracker) IsShopOpen(id uuid.UUID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	o, ok := t.owners[id]
	return ok && o.IsOpen
}

// AddTab appends name to the owner's tabs unless already present. The tab cap
// is enforced by callers.
func (t *Tracker) AddTab(id uuid.UUID, name string) {
	t.ModifyOwner(id, func(o *domain.Owner) {
		if !slices.Contains(o.Tabs, name) {
			o.Tabs = append(o.Tabs, name)
		}
	})
}

// RemoveTab removes the tab and every listing filed under it. Returns whether
// the tab existed.
func (t *Tracker) RemoveTab(id uuid.UUID, name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	o, ok := t.owners[id]
	if !ok {
		return false
	}
	i := slices.Index(o.Tabs, name)
	if i < 0 {
		return false
	}
	o.Tabs = slices.Delete(o.Tabs, i, i+1)
	t.removeWhere(id, func(l *domain.Listing) bool { return l.Tab == name })
	return true
}

func (t *Tracker) HasTab(id uuid.UUID, name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	o, ok := t.owners[id]
	return ok && o.HasTab(name)
}

// Tabs returns the owner's tabs in creation order.
func (t *Tracker) Tabs(id uuid.UUID) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	o, ok := t.owners[id]
	if !ok {
		return []string{}
	}
	return slices.Clone(o.Tabs)
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return Snapshot{
		NextID:   t.nextID,
		Listings: t.sortedListings(),
		Owners:   t.sortedOwners(),
	}
}

func (t *Tracker) createOwner(id uuid.UUID) *domain.Owner {
	o := &domain.Owner{ID: id, Tabs: []string{}}
	t.owners[id] = o
	return o
}

func (t *Tracker) index(l *domain.Listing) {
	ids, ok := t.byOwner[l.OwnerID]
	if !ok {
		ids = make(map[int64]struct{})
		t.byOwner[l.OwnerID] = ids
	}
	ids[l.ID] = struct{}{}
}

func (t *Tracker) unindex(l *domain.Listing) {
	ids, ok := t.byOwner[l.OwnerID]
	if !ok {
		return
	}
	delete(ids, l.ID)
	if len(ids) == 0 {
		delete(t.byOwner, l.OwnerID)
	}
}

func (t *Tracker) collect(owner uuid.UUID, keep func(*domain.Listing) bool) []domain.Listing {
	ids := t.byOwner[owner]
	out := make([]domain.Listing, 0, len(ids))
	for id := range ids {
		if l := t.listings[id]; keep(l) {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (t *Tracker) removeWhere(owner uuid.UUID, match func(*domain.Listing) bool) []domain.Listing {
	removed := t.collect(owner, match)
	for _, l := range removed {
		t.unindex(t.listings[l.ID])
		delete(t.listings, l.ID)
	}
	return removed
}

func (t *Tracker) sortedListings() []domain.Listing {
	out := make([]domain.Listing, 0, len(t.listings))
	for _, l := range t.listings {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (t *Tracker) sortedOwners() []domain.Owner {
	out := make([]domain.Owner, 0, len(t.owners))
	for _, o := range t.owners {
		out = append(out, o.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}
