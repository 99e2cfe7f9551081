package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/vietanh2810/shopstore/internal/domain"
	"github.com/vietanh2810/shopstore/internal/tracker"
)

// StorageProvider persists and reloads the contents of a Tracker.
type StorageProvider interface {
	Name() string
	Initialize(ctx context.Context) error
	LoadAll(ctx context.Context, into *tracker.Tracker) error
	// AddListing returns l with its id filled in when the backend generates
	// ids, or l unchanged when the tracker assigns them.
	AddListing(ctx context.Context, l domain.Listing) (domain.Listing, error)
	RemoveListing(ctx context.Context, id int64) error
	RemoveOwnerListings(ctx context.Context, owner uuid.UUID) error
	UpdateListing(ctx context.Context, l domain.Listing) error
	SaveOwnerInfo(ctx context.Context, o domain.Owner) error
	CreateTab(ctx context.Context, owner uuid.UUID, name string) error
	RemoveTab(ctx context.Context, owner uuid.UUID, name string) error
	Shutdown(ctx context.Context) error
}

// Flusher is implemented by providers that buffer writes. Dirty reports
// unflushed changes; Flush clears the flag and then writes the snapshot it
// obtains from snapshot.
type Flusher interface {
	Dirty() bool
	Flush(ctx context.Context, snapshot func() tracker.Snapshot) error
}

// ownerImporter is implemented by providers that can insert an owner without
// overwriting an existing one. Migration prefers it over SaveOwnerInfo.
type ownerImporter interface {
	ImportOwner(ctx context.Context, o domain.Owner) error
}
