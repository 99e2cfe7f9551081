package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestListing_Stacks(t *testing.T) {
	owner := uuid.New()
	base := Listing{ItemType: "IRON_ORE", OwnerID: owner, Durability: 0.5, Tab: "Ores"}

	tests := []struct {
		name  string
		draft ListingDraft
		want  bool
	}{
		{name: "identical", draft: ListingDraft{ItemType: "IRON_ORE", OwnerID: owner, Durability: 0.5, Tab: "Ores"}, want: true},
		{name: "durability within tolerance", draft: ListingDraft{ItemType: "IRON_ORE", OwnerID: owner, Durability: 0.505, Tab: "Ores"}, want: true},
		{name: "durability outside tolerance", draft: ListingDraft{ItemType: "IRON_ORE", OwnerID: owner, Durability: 0.53, Tab: "Ores"}, want: false},
		{name: "other item", draft: ListingDraft{ItemType: "GOLD_ORE", OwnerID: owner, Durability: 0.5, Tab: "Ores"}, want: false},
		{name: "other tab", draft: ListingDraft{ItemType: "IRON_ORE", OwnerID: owner, Durability: 0.5, Tab: "Misc"}, want: false},
		{name: "other owner", draft: ListingDraft{ItemType: "IRON_ORE", OwnerID: uuid.New(), Durability: 0.5, Tab: "Ores"}, want: false},
		{name: "house", draft: ListingDraft{ItemType: "IRON_ORE", Durability: 0.5, Tab: "Ores"}, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, base.Stacks(tc.draft))
		})
	}
}

func TestPriceDiffers(t *testing.T) {
	assert.False(t, PriceDiffers(decimal.RequireFromString("10.00"), decimal.RequireFromString("10.005")))
	assert.False(t, PriceDiffers(decimal.RequireFromString("10.00"), decimal.RequireFromString("10.01")))
	assert.True(t, PriceDiffers(decimal.RequireFromString("10.00"), decimal.RequireFromString("10.02")))
	assert.True(t, PriceDiffers(decimal.RequireFromString("3"), decimal.RequireFromString("2")))
}

func TestListingDraft_Listing(t *testing.T) {
	owner := uuid.New()
	d := ListingDraft{ItemType: "STONE", Quantity: 64, OwnerID: owner, Stock: 3, Tab: "Blocks"}

	l := d.Listing()
	assert.Zero(t, l.ID)
	assert.Equal(t, "STONE", l.ItemType)
	assert.Equal(t, 64, l.Quantity)
	assert.Equal(t, 3, l.Stock)
	assert.True(t, l.HasOwner())
	assert.False(t, Listing{}.HasOwner())
}

func TestOwner(t *testing.T) {
	o := Owner{ID: uuid.New(), Nick: "alice", Tabs: []string{"Ores"}}
	assert.Equal(t, "alice", o.DisplayName())

	o.CustomName = "Alice's Ores"
	assert.Equal(t, "Alice's Ores", o.DisplayName())

	assert.True(t, o.HasTab("Ores"))
	assert.False(t, o.HasTab("ores"))

	c := o.Clone()
	c.Tabs[0] = "Food"
	assert.Equal(t, "Ores", o.Tabs[0])

	assert.NotNil(t, Owner{}.Clone().Tabs)
}
