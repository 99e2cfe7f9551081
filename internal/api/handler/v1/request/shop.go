package request

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vietanh2810/shopstore/internal/domain"
)

var nonNegativeDecimal = validation.By(func(value interface{}) error {
	d, ok := value.(decimal.Decimal)
	if !ok {
		return errors.New("must be a decimal")
	}
	if d.IsNegative() {
		return errors.New("must not be negative")
	}
	return nil
})

type SetNickRequest struct {
	Nick string `json:"nick"`
}

func (req *SetNickRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Nick, validation.Required, validation.Length(1, 32)),
	)
}

type RenameShopRequest struct {
	Name string `json:"name"`
}

func (req *RenameShopRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Name, validation.Required, validation.Length(1, 32)),
	)
}

type SetIconRequest struct {
	Icon string `json:"icon"`
}

func (req *SetIconRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Icon, validation.Length(0, 64)),
	)
}

type SetOpenRequest struct {
	Open *bool `json:"open"`
}

func (req *SetOpenRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Open, validation.NotNil),
	)
}

type CreateTabRequest struct {
	Name string `json:"name"`
}

func (req *CreateTabRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Name, validation.Required, validation.Length(1, domain.MaxTabNameLength)),
	)
}

type ListingRequest struct {
	ItemType      string          `json:"item_type"`
	Quantity      int             `json:"quantity"`
	BuyPrice      decimal.Decimal `json:"buy_price"`
	SellPrice     decimal.Decimal `json:"sell_price"`
	Durability    float64         `json:"durability"`
	MaxDurability float64         `json:"max_durability"`
	Stock         int             `json:"stock"`
	Tab           string          `json:"tab"`
}

func (req *ListingRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.ItemType, validation.Required, validation.Length(1, 64)),
		validation.Field(&req.Quantity, validation.Required, validation.Min(1)),
		validation.Field(&req.BuyPrice, nonNegativeDecimal),
		validation.Field(&req.SellPrice, nonNegativeDecimal),
		validation.Field(&req.Durability, validation.Min(0.0)),
		validation.Field(&req.MaxDurability, validation.Min(0.0)),
		validation.Field(&req.Stock, validation.Min(0)),
		validation.Field(&req.Tab, validation.Length(0, domain.MaxTabNameLength)),
	)
}

func (req *ListingRequest) Draft(owner uuid.UUID) domain.ListingDraft {
	return domain.ListingDraft{
		ItemType:      req.ItemType,
		Quantity:      req.Quantity,
		BuyPrice:      req.BuyPrice,
		SellPrice:     req.SellPrice,
		OwnerID:       owner,
		Durability:    req.Durability,
		MaxDurability: req.MaxDurability,
		Stock:         req.Stock,
		Tab:           req.Tab,
	}
}

type AmountRequest struct {
	Amount int `json:"amount"`
}

func (req *AmountRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Amount, validation.Required, validation.Min(1)),
	)
}

type PriceRequest struct {
	BuyPrice  decimal.Decimal `json:"buy_price"`
	SellPrice decimal.Decimal `json:"sell_price"`
}

func (req *PriceRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.BuyPrice, nonNegativeDecimal),
		validation.Field(&req.SellPrice, nonNegativeDecimal),
	)
}
