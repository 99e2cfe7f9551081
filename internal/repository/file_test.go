package repository

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietanh2810/shopstore/internal/domain"
	"github.com/vietanh2810/shopstore/internal/tracker"
)

func newFileProvider(t *testing.T) *FileProvider {
	t.Helper()
	p := NewFileProvider(filepath.Join(t.TempDir(), "data", "shops.json"))
	require.NoError(t, p.Initialize(context.Background()))
	return p
}

func flush(t *testing.T, p *FileProvider, tr *tracker.Tracker) {
	t.Helper()
	require.NoError(t, p.Flush(context.Background(), tr.Snapshot))
}

func TestFileProvider_RoundTrip(t *testing.T) {
	ctx := context.Background()
	p := newFileProvider(t)
	owner := uuid.New()

	src := tracker.New()
	src.UpsertOwner(owner, "alice")
	src.AddTab(owner, "Ores")
	src.SetShopOpen(owner, true)
	l := src.AddListing(domain.Listing{
		ItemType:      "pickaxe",
		Quantity:      1,
		BuyPrice:      decimal.RequireFromString("12.5"),
		SellPrice:     decimal.NewFromInt(8),
		OwnerID:       owner,
		Durability:    40.5,
		MaxDurability: 100,
		Stock:         3,
		Tab:           "Ores",
	})
	house := src.AddListing(domain.Listing{ItemType: "bread", Quantity: 4, Stock: 99})
	flush(t, p, src)

	dst := tracker.New()
	require.NoError(t, p.LoadAll(ctx, dst))

	got, ok := dst.GetListing(l.ID)
	require.True(t, ok)
	assert.Equal(t, "pickaxe", got.ItemType)
	assert.True(t, got.BuyPrice.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, 40.5, got.Durability)
	assert.Equal(t, "Ores", got.Tab)
	assert.Equal(t, owner, got.OwnerID)

	gotHouse, ok := dst.GetListing(house.ID)
	require.True(t, ok)
	assert.False(t, gotHouse.HasOwner())

	o, ok := dst.Owner(owner)
	require.True(t, ok)
	assert.Equal(t, "alice", o.Nick)
	assert.True(t, o.IsOpen)
	assert.Equal(t, []string{"Ores"}, o.Tabs)

	assert.Equal(t, src.NextID(), dst.NextID())
}

func TestFileProvider_LoadAll(t *testing.T) {
	ctx := context.Background()

	t.Run("missing file is an empty store", func(t *testing.T) {
		p := newFileProvider(t)
		tr := tracker.New()
		require.NoError(t, p.LoadAll(ctx, tr))
		assert.Zero(t, tr.ListingCount())
		assert.True(t, tr.Empty())
	})

	t.Run("legacy records get defaults", func(t *testing.T) {
		p := newFileProvider(t)
		doc := `{"listings":[{"id":3,"itemType":"ore","quantity":0,"stock":-4,"buyPrice":"1","sellPrice":"1"}],
			"owners":[{"id":"not-a-uuid","nick":"ghost"}]}`
		require.NoError(t, os.WriteFile(p.Path(), []byte(doc), 0o644))

		tr := tracker.New()
		require.NoError(t, p.LoadAll(ctx, tr))

		l, ok := tr.GetListing(3)
		require.True(t, ok)
		assert.Equal(t, 1, l.Quantity)
		assert.Equal(t, 0, l.Stock)
		assert.True(t, tr.Empty())
		assert.Equal(t, int64(4), tr.NextID())
	})

	t.Run("corrupt file is moved aside", func(t *testing.T) {
		p := newFileProvider(t)
		require.NoError(t, os.WriteFile(p.Path(), []byte("{not json"), 0o644))

		err := p.LoadAll(ctx, tracker.New())
		require.ErrorIs(t, err, ErrLoadFailed)

		_, statErr := os.Stat(p.Path())
		assert.True(t, os.IsNotExist(statErr))

		matches, err := filepath.Glob(p.Path() + ".corrupt-*")
		require.NoError(t, err)
		assert.Len(t, matches, 1)
	})
}

func TestFileProvider_PreservesUnknownFields(t *testing.T) {
	ctx := context.Background()
	p := newFileProvider(t)
	owner := uuid.New()

	doc := `{
		"version": 2,
		"nextId": 8,
		"listings": [{"id": 7, "itemType": "ore", "quantity": 2, "buyPrice": "5", "sellPrice": "3",
			"ownerId": "` + owner.String() + `", "stock": 1, "tab": "", "enchantments": ["sharp"]}],
		"owners": [{"id": "` + owner.String() + `", "nick": "bob", "tabs": [], "banner": "red"}]
	}`
	require.NoError(t, os.WriteFile(p.Path(), []byte(doc), 0o644))

	tr := tracker.New()
	require.NoError(t, p.LoadAll(ctx, tr))
	tr.ModifyListing(7, func(l *domain.Listing) { l.Stock = 5 })
	flush(t, p, tr)

	data, err := os.ReadFile(p.Path())
	require.NoError(t, err)

	var out struct {
		Version  int              `json:"version"`
		Listings []map[string]any `json:"listings"`
		Owners   []map[string]any `json:"owners"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, 2, out.Version)
	require.Len(t, out.Listings, 1)
	assert.Equal(t, []any{"sharp"}, out.Listings[0]["enchantments"])
	assert.EqualValues(t, 5, out.Listings[0]["stock"])
	require.Len(t, out.Owners, 1)
	assert.Equal(t, "red", out.Owners[0]["banner"])
}

func TestFileProvider_KeepsUnloadedRecords(t *testing.T) {
	ctx := context.Background()
	p := newFileProvider(t)
	owner := uuid.New()

	doc := `{
		"nextId": 3,
		"listings": [
			{"id": 2, "itemType": "ore", "quantity": 1, "buyPrice": 2.5, "sellPrice": "1.25", "ownerId": "` + owner.String() + `", "stock": 1},
			{"id": 5, "itemType": "gem", "quantity": 1, "buyPrice": 9, "sellPrice": 9, "ownerId": "also-bad", "stock": 1}
		],
		"owners": [{"id": "not-a-uuid", "nick": "ghost", "tabs": ["Old"]}]
	}`
	require.NoError(t, os.WriteFile(p.Path(), []byte(doc), 0o644))

	tr := tracker.New()
	require.NoError(t, p.LoadAll(ctx, tr))
	assert.Equal(t, 1, tr.ListingCount())
	assert.Equal(t, int64(6), tr.NextID())

	l, ok := tr.GetListing(2)
	require.True(t, ok)
	assert.True(t, l.BuyPrice.Equal(decimal.RequireFromString("2.5")))
	assert.True(t, l.SellPrice.Equal(decimal.RequireFromString("1.25")))

	flush(t, p, tr)

	data, err := os.ReadFile(p.Path())
	require.NoError(t, err)

	var out struct {
		NextID   int64            `json:"nextId"`
		Listings []map[string]any `json:"listings"`
		Owners   []map[string]any `json:"owners"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, int64(6), out.NextID)

	require.Len(t, out.Owners, 1)
	assert.Equal(t, "not-a-uuid", out.Owners[0]["id"])
	assert.Equal(t, []any{"Old"}, out.Owners[0]["tabs"])

	require.Len(t, out.Listings, 2)
	assert.Equal(t, 2.5, out.Listings[0]["buyPrice"])
	assert.Equal(t, 1.25, out.Listings[0]["sellPrice"])
	assert.Equal(t, "also-bad", out.Listings[1]["ownerId"])
	assert.Equal(t, "gem", out.Listings[1]["itemType"])
}

func TestFileProvider_Dirty(t *testing.T) {
	ctx := context.Background()
	p := newFileProvider(t)
	tr := tracker.New()

	assert.False(t, p.Dirty())

	l, err := p.AddListing(ctx, domain.Listing{ID: 9, ItemType: "ore"})
	require.NoError(t, err)
	assert.Equal(t, int64(9), l.ID)
	assert.True(t, p.Dirty())

	flush(t, p, tr)
	assert.False(t, p.Dirty())

	require.NoError(t, p.RemoveTab(ctx, uuid.New(), "x"))
	assert.True(t, p.Dirty())

	t.Run("failed flush stays dirty", func(t *testing.T) {
		blocked := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(blocked, nil, 0o644))
		bad := NewFileProvider(filepath.Join(blocked, "shops.json"))
		bad.dirty.Store(true)

		err := bad.Flush(ctx, tr.Snapshot)
		require.ErrorIs(t, err, ErrSaveFailed)
		assert.True(t, bad.Dirty())
	})
}

func TestFileProvider_FlushTakesSnapshotAfterClearingDirty(t *testing.T) {
	p := newFileProvider(t)
	tr := tracker.New()
	p.dirty.Store(true)

	err := p.Flush(context.Background(), func() tracker.Snapshot {
		assert.False(t, p.Dirty())
		return tr.Snapshot()
	})
	require.NoError(t, err)
}
