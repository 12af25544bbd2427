// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vestiary Contributors

package item

import (
	"log/slog"
	"sort"

	"github.com/vestiary/vestiary/internal/assets"
)

// Bundle is the serializable form of one item, nested bundles included.
type Bundle struct {
	ID      ID                      `json:"id"`
	Asset   assets.AssetID          `json:"asset"`
	Color   []string                `json:"color,omitempty"`
	Modules map[string]ModuleBundle `json:"modules,omitempty"`
}

// ModuleBundle is the serializable state of one module slot.
type ModuleBundle struct {
	Variant string   `json:"variant,omitempty"`
	Items   []Bundle `json:"items,omitempty"`
}

// Export converts the item (and its subtree) into a bundle.
func (it *Item) Export() Bundle {
	b := Bundle{
		ID:    it.id,
		Asset: it.asset.ID,
		Color: it.color,
	}
	if len(it.modules) > 0 {
		b.Modules = make(map[string]ModuleBundle, len(it.modules))
		for _, name := range it.ModuleNames() {
			st := it.modules[name]
			mb := ModuleBundle{Variant: st.variant}
			for _, child := range st.items {
				mb.Items = append(mb.Items, child.Export())
			}
			b.Modules[name] = mb
		}
	}
	return b
}

// LoadFromBundle reconstructs an item from its bundle. An unknown root
// asset fails the load (the caller drops the bundle with a warning);
// unknown assets nested inside module contents are dropped here, also
// with a warning. Typed module variants fall back to the default when
// the stored variant no longer exists.
func LoadFromBundle(m *assets.Manager, b Bundle, logger *slog.Logger) (*Item, bool) {
	asset := m.GetAssetByID(b.Asset)
	if asset == nil {
		return nil, false
	}

	it := New(b.ID, asset)
	if len(b.Color) == asset.ColorSlots && asset.ColorSlots > 0 {
		it.color = append([]string(nil), b.Color...)
	}

	for name, mb := range b.Modules {
		def := asset.Module(name)
		if def == nil {
			if logger != nil {
				logger.Warn("skipping unknown module in bundle", "asset", b.Asset, "module", name)
			}
			continue
		}
		switch def.Type {
		case assets.ModuleTypeTyped:
			variant := mb.Variant
			if def.Variant(variant) == nil {
				variant = def.DefaultVariant()
			}
			it.modules[name] = moduleState{variant: variant}
		case assets.ModuleTypeStorage:
			var contents []*Item
			for _, child := range mb.Items {
				loaded, ok := LoadFromBundle(m, child, logger)
				if !ok {
					if logger != nil {
						logger.Warn("skipping unknown asset in bundle", "asset", child.Asset)
					}
					continue
				}
				contents = append(contents, loaded)
			}
			it.modules[name] = moduleState{items: contents}
		}
	}
	return it, true
}

// LoadAndNormalize loads a sequence of item bundles, dropping bundles
// of unknown assets with a warning, and moving character bodypart
// items into catalog order ahead of everything else.
func LoadAndNormalize(m *assets.Manager, bundles []Bundle, isCharacter bool, logger *slog.Logger) []*Item {
	var items []*Item
	for _, b := range bundles {
		it, ok := LoadFromBundle(m, b, logger)
		if !ok {
			if logger != nil {
				logger.Warn("skipping unknown asset in bundle", "asset", b.Asset)
			}
			continue
		}
		items = append(items, it)
	}
	if !isCharacter {
		return items
	}

	// Stable partition: bodyparts in catalog order first.
	var bodyparts, rest []*Item
	for _, it := range items {
		if it.Asset().Bodypart != "" {
			bodyparts = append(bodyparts, it)
		} else {
			rest = append(rest, it)
		}
	}
	sort.SliceStable(bodyparts, func(i, j int) bool {
		return m.BodypartOrder(bodyparts[i].Asset().Bodypart) < m.BodypartOrder(bodyparts[j].Asset().Bodypart)
	})
	return append(bodyparts, rest...)
}
