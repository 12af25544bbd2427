// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vestiary Contributors

package state

import (
	"log/slog"

	"github.com/vestiary/vestiary/internal/assets"
	"github.com/vestiary/vestiary/internal/item"
)

// RoomState is the room's own inventory (devices, furniture),
// independent of any character. Immutable.
type RoomState struct {
	items []*item.Item
}

// NewRoomState builds an empty room inventory state.
func NewRoomState() *RoomState {
	return &RoomState{}
}

// Items returns the root item sequence. Callers must not modify it.
func (r *RoomState) Items() []*item.Item { return r.items }

// WithItems returns a sibling state with the given items.
func (r *RoomState) WithItems(items []*item.Item) *RoomState {
	out := *r
	out.items = items
	return &out
}

// Validate runs structural validation on the inventory.
func (r *RoomState) Validate(m *assets.Manager) error {
	return item.ValidateItems(m, r.items, false)
}

// RoomInventoryBundle is the serializable form of a room state.
type RoomInventoryBundle struct {
	Items []item.Bundle `json:"items"`
}

// Export converts the state into a bundle.
func (r *RoomState) Export() RoomInventoryBundle {
	bundles := make([]item.Bundle, 0, len(r.items))
	for _, it := range r.items {
		bundles = append(bundles, it.Export())
	}
	return RoomInventoryBundle{Items: bundles}
}

// LoadRoomState reconstructs a room state from a bundle, dropping
// items with unknown assets. Validation happens at the global load.
func LoadRoomState(m *assets.Manager, b RoomInventoryBundle, logger *slog.Logger) *RoomState {
	return &RoomState{items: item.LoadAndNormalize(m, b.Items, false, logger)}
}
