package service

import (
	"github.com/google/uuid"

	"github.com/vietanh2810/shopstore/internal/domain"
)

type EventKind string

const (
	EventListingAdded   EventKind = "listing_added"
	EventListingUpdated EventKind = "listing_updated"
	EventListingRemoved EventKind = "listing_removed"
	EventListingsPurged EventKind = "listings_purged"
	EventOwnerUpdated   EventKind = "owner_updated"
	EventTabCreated     EventKind = "tab_created"
	EventTabRemoved     EventKind = "tab_removed"
	EventReloaded       EventKind = "reloaded"
)

// Event describes a change applied to the in-memory store. Events are
// emitted even when the backend write failed, since the change is kept.
type Event struct {
	Kind      EventKind       `json:"kind"`
	OwnerID   uuid.UUID       `json:"owner_id"`
	ListingID int64           `json:"listing_id,omitempty"`
	Tab       string          `json:"tab,omitempty"`
	Listing   *domain.Listing `json:"listing,omitempty"`
	Owner     *domain.Owner   `json:"owner,omitempty"`
}

// Observer receives store events. Notify is called while the store is
// locked for writing and must not block.
type Observer interface {
	Notify(e Event)
}

// WithObserver registers o to receive every store event.
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

func (m *Manager) notify(e Event) {
	if m.observer != nil {
		m.observer.Notify(e)
	}
}

func listingEvent(kind EventKind, l domain.Listing) Event {
	return Event{Kind: kind, OwnerID: l.OwnerID, ListingID: l.ID, Tab: l.Tab, Listing: &l}
}

func ownerEvent(o domain.Owner) Event {
	return Event{Kind: EventOwnerUpdated, OwnerID: o.ID, Owner: &o}
}
