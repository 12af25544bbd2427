// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vestiary Contributors

// Package item implements the copy-on-write item tree: immutable item
// values with nested module sub-inventories, path addressing, scoped
// manipulators, and structural validation.
package item

import (
	"sort"
	"strings"

	"github.com/vestiary/vestiary/internal/assets"
)

// ID identifies one item instance, e.g. "i/50b2faf0".
type ID string

// Validate checks the id shape.
func (id ID) Validate() error {
	if !strings.HasPrefix(string(id), "i/") || len(id) < 3 {
		return &ValidationError{Field: "id", Message: "must have form i/<suffix>"}
	}
	return nil
}

// DescriptorID names a chat-visible effect of a tree mutation.
type DescriptorID string

const (
	DescriptorItemAdd     DescriptorID = "itemAdd"
	DescriptorItemAttach  DescriptorID = "itemAttach"
	DescriptorItemStore   DescriptorID = "itemStore"
	DescriptorItemReplace DescriptorID = "itemReplace"
	DescriptorItemRemove  DescriptorID = "itemRemove"
	DescriptorItemDetach  DescriptorID = "itemDetach"
	DescriptorItemUnload  DescriptorID = "itemUnload"
)

// ChatDescriptor is one chat-visible effect produced while mutating a
// tree. The room layer renders it into an action message.
type ChatDescriptor struct {
	ID            DescriptorID   `json:"id"`
	Asset         assets.AssetID `json:"asset"`
	PreviousAsset assets.AssetID `json:"previousAsset,omitempty"`
}

// ModuleAction is a request against one module of an item. The only
// transition typed modules support is selecting a variant.
type ModuleAction struct {
	SetVariant string `json:"setVariant"`
}

// Item is an immutable instance of an asset. Every mutation produces a
// new value; published items are never modified in place.
type Item struct {
	id      ID
	asset   *assets.Asset
	color   []string
	modules map[string]moduleState
}

// moduleState is the per-item state of one module slot.
type moduleState struct {
	// variant is the active variant of a typed module.
	variant string
	// items are the contents of a storage module.
	items []*Item
}

// New instantiates an item of the given asset with default module
// states and no colors.
func New(id ID, asset *assets.Asset) *Item {
	it := &Item{
		id:    id,
		asset: asset,
	}
	if len(asset.Modules) > 0 {
		it.modules = make(map[string]moduleState, len(asset.Modules))
		for name, def := range asset.Modules {
			switch def.Type {
			case assets.ModuleTypeTyped:
				it.modules[name] = moduleState{variant: def.DefaultVariant()}
			case assets.ModuleTypeStorage:
				it.modules[name] = moduleState{}
			}
		}
	}
	return it
}

// ID returns the item's instance id.
func (it *Item) ID() ID { return it.id }

// Asset returns the item's catalog definition.
func (it *Item) Asset() *assets.Asset { return it.asset }

// Color returns the item's color list. Callers must not modify it.
func (it *Item) Color() []string { return it.color }

// ModuleNames returns the item's module slot names in sorted order.
func (it *Item) ModuleNames() []string {
	names := make([]string, 0, len(it.modules))
	for name := range it.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ModuleItems returns the contents of a storage module. The second
// return is false if the module does not exist or is not storage.
func (it *Item) ModuleItems(name string) ([]*Item, bool) {
	def := it.asset.Module(name)
	if def == nil || def.Type != assets.ModuleTypeStorage {
		return nil, false
	}
	return it.modules[name].items, true
}

// ModuleVariant returns the active variant of a typed module.
func (it *Item) ModuleVariant(name string) (string, bool) {
	def := it.asset.Module(name)
	if def == nil || def.Type != assets.ModuleTypeTyped {
		return "", false
	}
	return it.modules[name].variant, true
}

// clone returns a shallow copy with its own module map.
func (it *Item) clone() *Item {
	out := *it
	out.modules = make(map[string]moduleState, len(it.modules))
	for name, st := range it.modules {
		out.modules[name] = st
	}
	return &out
}

// WithColor returns a copy with the given color list, or false if the
// count does not match the asset's color slots.
func (it *Item) WithColor(color []string) (*Item, bool) {
	if len(color) != it.asset.ColorSlots {
		return nil, false
	}
	out := it.clone()
	out.color = append([]string(nil), color...)
	return out, true
}

// WithModuleItems returns a copy with the storage module's contents
// replaced. Capacity is enforced by tree validation, not here.
func (it *Item) WithModuleItems(name string, items []*Item) (*Item, bool) {
	def := it.asset.Module(name)
	if def == nil || def.Type != assets.ModuleTypeStorage {
		return nil, false
	}
	out := it.clone()
	out.modules[name] = moduleState{items: items}
	return out, true
}

// ApplyModuleAction delegates the action to the named module's own
// transition logic. Typed modules switch variants and may queue a chat
// descriptor; any other module or unknown variant fails.
func (it *Item) ApplyModuleAction(name string, action ModuleAction, queue func(ChatDescriptor)) (*Item, bool) {
	def := it.asset.Module(name)
	if def == nil || def.Type != assets.ModuleTypeTyped {
		return nil, false
	}
	variant := def.Variant(action.SetVariant)
	if variant == nil {
		return nil, false
	}
	if it.modules[name].variant == variant.Name {
		return it, true
	}
	out := it.clone()
	out.modules[name] = moduleState{variant: variant.Name}
	if variant.ChatDescriptor != "" && queue != nil {
		queue(ChatDescriptor{
			ID:    DescriptorID(variant.ChatDescriptor),
			Asset: it.asset.ID,
		})
	}
	return out, true
}

// Properties folds the asset's own properties with those of every
// active typed module variant.
func (it *Item) Properties() assets.Properties {
	props := it.asset.Properties
	for _, name := range it.ModuleNames() {
		def := it.asset.Module(name)
		if def.Type != assets.ModuleTypeTyped {
			continue
		}
		if variant := def.Variant(it.modules[name].variant); variant != nil {
			props = assets.Fold(props, variant.Properties)
		}
	}
	return props
}
