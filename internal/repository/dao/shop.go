package dao

import (
	"time"

	"github.com/shopspring/decimal"
)

type Owner struct {
	ID         string `gorm:"primaryKey;type:varchar(36)"`
	Nick       string `gorm:"not null;default:''"`
	CustomName string
	Icon       string
	IsOpen     bool `gorm:"not null;default:false"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Tab struct {
	ID      uint   `gorm:"primaryKey"`
	OwnerID string `gorm:"type:varchar(36);not null;uniqueIndex:idx_tabs_owner_name"`
	Name    string `gorm:"not null;uniqueIndex:idx_tabs_owner_name"`
}

type Listing struct {
	ID            int64           `gorm:"primaryKey;autoIncrement"`
	OwnerID       *string         `gorm:"type:varchar(36);index:idx_listings_owner_tab"`
	ItemType      string          `gorm:"not null"`
	Quantity      int             `gorm:"not null"`
	BuyPrice      decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	SellPrice     decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	Durability    float64         `gorm:"not null;default:0"`
	MaxDurability float64         `gorm:"not null;default:0"`
	Stock         int             `gorm:"not null;default:0"`
	Tab           string          `gorm:"not null;default:'';index:idx_listings_owner_tab"`
}
