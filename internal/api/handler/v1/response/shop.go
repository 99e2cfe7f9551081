package response

import (
	"github.com/vietanh2810/shopstore/internal/domain"
)

type Healthcheck struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
}

type ShopSummary struct {
	OwnerID     string `json:"owner_id"`
	DisplayName string `json:"display_name"`
	Icon        string `json:"icon,omitempty"`
	Tabs        int    `json:"tabs"`
}

func NewShopSummary(o domain.Owner) ShopSummary {
	return ShopSummary{
		OwnerID:     o.ID.String(),
		DisplayName: o.DisplayName(),
		Icon:        o.Icon,
		Tabs:        len(o.Tabs),
	}
}

type StackedListing struct {
	Listing domain.Listing `json:"listing"`
	Merged  bool           `json:"merged"`
}

type Removed struct {
	Removed bool `json:"removed"`
}

type Purged struct {
	Removed int `json:"removed"`
}

type Tabs struct {
	OwnerID string   `json:"owner_id"`
	Tabs    []string `json:"tabs"`
	Max     int      `json:"max"`
}
