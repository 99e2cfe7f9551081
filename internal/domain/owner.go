package domain

import (
	"slices"

	"github.com/google/uuid"
)

const (
	MaxTabs          = 7
	MaxTabNameLength = 24
)

type Owner struct {
	ID         uuid.UUID `json:"id"`
	Nick       string    `json:"nick"`
	CustomName string    `json:"custom_name,omitempty"`
	Icon       string    `json:"icon,omitempty"`
	IsOpen     bool      `json:"is_open"`
	Tabs       []string  `json:"tabs"`
}

// DisplayName returns the custom shop name when set, otherwise the owner's nick.
func (o Owner) DisplayName() string {
	if o.CustomName != "" {
		return o.CustomName
	}
	return o.Nick
}

func (o Owner) HasTab(name string) bool {
	return slices.Contains(o.Tabs, name)
}

// Clone returns a copy that shares no slices with o.
func (o Owner) Clone() Owner {
	o.Tabs = slices.Clone(o.Tabs)
	if o.Tabs == nil {
		o.Tabs = []string{}
	}
	return o
}
