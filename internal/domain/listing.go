package domain

import (
	"math"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// DurabilityTolerance is the absolute difference under which two durability values stack.
	DurabilityTolerance = 0.01
	// UncategorizedTab scopes legacy listings created before tabs existed.
	UncategorizedTab = ""
)

// PriceTolerance is the absolute difference under which a price is considered unchanged.
var PriceTolerance = decimal.NewFromFloat(0.01)

type Listing struct {
	ID            int64           `json:"id"`
	ItemType      string          `json:"item_type"`
	Quantity      int             `json:"quantity"`
	BuyPrice      decimal.Decimal `json:"buy_price"`
	SellPrice     decimal.Decimal `json:"sell_price"`
	OwnerID       uuid.UUID       `json:"owner_id"` // uuid.Nil for house listings
	Durability    float64         `json:"durability"`
	MaxDurability float64         `json:"max_durability"`
	Stock         int             `json:"stock"`
	Tab           string          `json:"tab"`
}

// ListingDraft carries the caller-supplied fields of a listing that has no id yet.
type ListingDraft struct {
	ItemType      string
	Quantity      int
	BuyPrice      decimal.Decimal
	SellPrice     decimal.Decimal
	OwnerID       uuid.UUID
	Durability    float64
	MaxDurability float64
	Stock         int
	Tab           string
}

func (d ListingDraft) Listing() Listing {
	return Listing{
		ItemType:      d.ItemType,
		Quantity:      d.Quantity,
		BuyPrice:      d.BuyPrice,
		SellPrice:     d.SellPrice,
		OwnerID:       d.OwnerID,
		Durability:    d.Durability,
		MaxDurability: d.MaxDurability,
		Stock:         d.Stock,
		Tab:           d.Tab,
	}
}

// HasOwner reports whether the listing belongs to a player rather than the house.
func (l Listing) HasOwner() bool {
	return l.OwnerID != uuid.Nil
}

// Stacks reports whether a draft can be merged into l instead of creating a new listing.
func (l Listing) Stacks(d ListingDraft) bool {
	return l.OwnerID == d.OwnerID &&
		l.ItemType == d.ItemType &&
		l.Tab == d.Tab &&
		math.Abs(l.Durability-d.Durability) <= DurabilityTolerance
}

// PriceDiffers reports whether two prices differ by more than PriceTolerance.
func PriceDiffers(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().GreaterThan(PriceTolerance)
}
