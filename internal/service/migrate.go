package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/vietanh2810/shopstore/internal/tracker"
)

// migrate copies every owner and listing of the migration source into the
// store. Records that fail are logged and skipped. Listings receive new ids
// from the store. The source is read only and left in place. Returns the
// number of records written.
func (m *Manager) migrate(ctx context.Context) int {
	source := m.migrationSource
	if err := source.Initialize(ctx); err != nil {
		zap.L().Warn("migration source unavailable", zap.String("source", source.Name()), zap.Error(err))
		return 0
	}

	scratch := tracker.New()
	if err := source.LoadAll(ctx, scratch); err != nil {
		zap.L().Warn("failed to load migration source", zap.String("source", source.Name()), zap.Error(err))
		return 0
	}
	if !hasData(scratch) {
		return 0
	}

	zap.L().Info("migrating shop data",
		zap.String("from", source.Name()),
		zap.String("to", m.store.Name()),
		zap.Int("owners", scratch.OwnerCount()),
		zap.Int("listings", scratch.ListingCount()))

	importer, canImport := m.store.(ownerImporter)
	skipped := make(map[string]struct{})
	var owners, listings int

	for _, o := range scratch.Owners() {
		var err error
		if canImport {
			err = importer.ImportOwner(ctx, o)
		} else {
			err = m.store.SaveOwnerInfo(ctx, o)
		}
		switch {
		case errors.Is(err, ErrOwnerExists):
			skipped[o.ID.String()] = struct{}{}
			zap.L().Warn("owner already stored, skipping its listings", zap.Stringer("owner_id", o.ID))
		case err != nil:
			zap.L().Error("failed to migrate owner", zap.Stringer("owner_id", o.ID), zap.Error(err))
		default:
			owners++
		}
	}

	for _, l := range scratch.Listings() {
		if _, ok := skipped[l.OwnerID.String()]; ok && l.HasOwner() {
			continue
		}
		oldID := l.ID
		l.ID = 0
		if _, err := m.store.AddListing(ctx, l); err != nil {
			zap.L().Error("failed to migrate listing", zap.Int64("listing_id", oldID), zap.Error(err))
			continue
		}
		listings++
	}

	zap.L().Info("migration complete",
		zap.Int("owners", owners),
		zap.Int("listings", listings),
		zap.Int("skipped_owners", len(skipped)))

	return owners + listings
}

// hasData reports whether t holds any owner or listing.
func hasData(t *tracker.Tracker) bool {
	return !t.Empty() || t.ListingCount() > 0
}
