package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietanh2810/shopstore/internal/db"
	"github.com/vietanh2810/shopstore/internal/domain"
	"github.com/vietanh2810/shopstore/internal/tracker"
)

func newSQLiteProvider(t *testing.T) *SQLProvider {
	t.Helper()
	gormDB, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)

	p := NewSQLProvider(gormDB, 2)
	require.NoError(t, p.Initialize(context.Background()))
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	return p
}

func loadTracker(t *testing.T, p *SQLProvider) *tracker.Tracker {
	t.Helper()
	tr := tracker.New()
	require.NoError(t, p.LoadAll(context.Background(), tr))
	return tr
}

func oreListing(owner uuid.UUID, tab string) domain.Listing {
	return domain.Listing{
		ItemType:  "ore",
		Quantity:  10,
		BuyPrice:  decimal.NewFromInt(5),
		SellPrice: decimal.NewFromInt(3),
		OwnerID:   owner,
		Stock:     10,
		Tab:       tab,
	}
}

func TestSQLProvider_Listings(t *testing.T) {
	ctx := context.Background()
	p := newSQLiteProvider(t)
	owner := uuid.New()

	first, err := p.AddListing(ctx, oreListing(owner, ""))
	require.NoError(t, err)
	second, err := p.AddListing(ctx, oreListing(uuid.Nil, ""))
	require.NoError(t, err)
	assert.Positive(t, first.ID)
	assert.Greater(t, second.ID, first.ID)

	first.Stock = 2
	first.SellPrice = decimal.RequireFromString("2.75")
	require.NoError(t, p.UpdateListing(ctx, first))

	tr := loadTracker(t, p)
	assert.Equal(t, 2, tr.ListingCount())
	got, ok := tr.GetListing(first.ID)
	require.True(t, ok)
	assert.Equal(t, 2, got.Stock)
	assert.True(t, got.SellPrice.Equal(decimal.RequireFromString("2.75")))
	house, ok := tr.GetListing(second.ID)
	require.True(t, ok)
	assert.False(t, house.HasOwner())
	assert.Greater(t, tr.NextID(), second.ID)

	t.Run("update of a missing listing fails", func(t *testing.T) {
		missing := oreListing(owner, "")
		missing.ID = 999
		assert.ErrorIs(t, p.UpdateListing(ctx, missing), ErrListingNotFound)
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, p.RemoveListing(ctx, first.ID))
		require.NoError(t, p.RemoveListing(ctx, first.ID))
		tr := loadTracker(t, p)
		_, ok := tr.GetListing(first.ID)
		assert.False(t, ok)
		assert.Equal(t, 1, tr.ListingCount())
	})
}

func TestSQLProvider_AddListingIgnoresCancellation(t *testing.T) {
	p := newSQLiteProvider(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l, err := p.AddListing(ctx, oreListing(uuid.New(), ""))
	require.NoError(t, err)
	assert.Positive(t, l.ID)

	tr := loadTracker(t, p)
	_, ok := tr.GetListing(l.ID)
	assert.True(t, ok)
}

func TestSQLProvider_Owners(t *testing.T) {
	ctx := context.Background()
	p := newSQLiteProvider(t)
	id := uuid.New()

	o := domain.Owner{ID: id, Nick: "alice", Tabs: []string{"Ores", "Tools"}}
	require.NoError(t, p.SaveOwnerInfo(ctx, o))

	o.CustomName = "Alice's Forge"
	o.IsOpen = true
	o.Tabs = []string{"Tools", "Food"}
	require.NoError(t, p.SaveOwnerInfo(ctx, o))

	tr := loadTracker(t, p)
	got, ok := tr.Owner(id)
	require.True(t, ok)
	assert.Equal(t, "Alice's Forge", got.CustomName)
	assert.True(t, got.IsOpen)
	assert.Equal(t, []string{"Tools", "Food"}, got.Tabs)

	t.Run("import does not overwrite", func(t *testing.T) {
		err := p.ImportOwner(ctx, domain.Owner{ID: id, Nick: "mallory"})
		assert.ErrorIs(t, err, ErrOwnerExists)

		fresh := uuid.New()
		require.NoError(t, p.ImportOwner(ctx, domain.Owner{ID: fresh, Nick: "bob", Tabs: []string{"Misc"}}))

		tr := loadTracker(t, p)
		got, _ := tr.Owner(id)
		assert.Equal(t, "alice", got.Nick)
		imported, ok := tr.Owner(fresh)
		require.True(t, ok)
		assert.Equal(t, []string{"Misc"}, imported.Tabs)
	})
}

func TestSQLProvider_Tabs(t *testing.T) {
	ctx := context.Background()
	p := newSQLiteProvider(t)
	owner := uuid.New()

	require.NoError(t, p.SaveOwnerInfo(ctx, domain.Owner{ID: owner, Nick: "carol"}))
	require.NoError(t, p.CreateTab(ctx, owner, "Ores"))
	require.NoError(t, p.CreateTab(ctx, owner, "Ores"))

	kept, err := p.AddListing(ctx, oreListing(owner, ""))
	require.NoError(t, err)
	_, err = p.AddListing(ctx, oreListing(owner, "Ores"))
	require.NoError(t, err)

	require.NoError(t, p.RemoveTab(ctx, owner, "Ores"))

	tr := loadTracker(t, p)
	o, _ := tr.Owner(owner)
	assert.Empty(t, o.Tabs)
	listings := tr.ListingsByOwner(owner)
	require.Len(t, listings, 1)
	assert.Equal(t, kept.ID, listings[0].ID)

	require.NoError(t, p.RemoveOwnerListings(ctx, owner))
	assert.Empty(t, loadTracker(t, p).ListingsByOwner(owner))
}

func TestSQLProvider_ShutdownRejectsWrites(t *testing.T) {
	ctx := context.Background()
	gormDB, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	p := NewSQLProvider(gormDB, 1)
	require.NoError(t, p.Initialize(ctx))

	require.NoError(t, p.Shutdown(ctx))

	_, err = p.AddListing(ctx, oreListing(uuid.New(), ""))
	assert.ErrorIs(t, err, ErrExecutorClosed)
	assert.ErrorIs(t, p.RemoveListing(ctx, 1), ErrExecutorClosed)
}
