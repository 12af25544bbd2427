// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vestiary Contributors

// Package assets holds the immutable asset catalog: static definitions
// of wearable items, bodyparts, bones, and pose presets. The catalog is
// read-only at runtime; everything above it consumes it by lookup.
package assets

import "fmt"

// AssetID identifies an asset definition, e.g. "a/body/base".
type AssetID string

// Properties are physical effects an equipped asset (or an active
// module variant) imposes on its wearer. They compose by folding over
// all equipped items; see the restriction package.
type Properties struct {
	// BlockHands makes the wearer unable to use their hands.
	BlockHands bool `yaml:"blockHands" json:"blockHands,omitempty"`
	// MuffleMouth adds to the wearer's speech muffle strength (0-10).
	MuffleMouth int `yaml:"muffleMouth" json:"muffleMouth,omitempty"`
}

// add folds other into p.
func (p Properties) add(other Properties) Properties {
	p.BlockHands = p.BlockHands || other.BlockHands
	p.MuffleMouth += other.MuffleMouth
	return p
}

// Fold combines a sequence of property sets into one.
func Fold(props ...Properties) Properties {
	var out Properties
	for _, p := range props {
		out = out.add(p)
	}
	return out
}

// ModuleType discriminates module definitions.
type ModuleType string

const (
	// ModuleTypeStorage is a nested sub-inventory.
	ModuleTypeStorage ModuleType = "storage"
	// ModuleTypeTyped is a named variant selector (e.g. lock states).
	ModuleTypeTyped ModuleType = "typed"
)

// ModuleVariant is one selectable state of a typed module.
type ModuleVariant struct {
	Name       string     `yaml:"name" json:"name"`
	Properties Properties `yaml:"properties" json:"properties,omitempty"`
	// ChatDescriptor, when non-empty, is the descriptor id emitted
	// when the module switches to this variant.
	ChatDescriptor string `yaml:"chatDescriptor" json:"chatDescriptor,omitempty"`
}

// ModuleDefinition declares a module slot on an asset.
type ModuleDefinition struct {
	Type ModuleType `yaml:"type" json:"type"`

	// Storage module fields.

	// Capacity is the maximum number of items the slot holds.
	Capacity int `yaml:"capacity" json:"capacity,omitempty"`
	// Equipped marks slot contents as physically worn rather than
	// merely stored; it selects attach/detach chat wording.
	Equipped bool `yaml:"equipped" json:"equipped,omitempty"`

	// Typed module fields.

	Variants []ModuleVariant `yaml:"variants" json:"variants,omitempty"`
	Default  string          `yaml:"default" json:"default,omitempty"`
}

// Variant returns the named variant definition, or nil.
func (d *ModuleDefinition) Variant(name string) *ModuleVariant {
	for i := range d.Variants {
		if d.Variants[i].Name == name {
			return &d.Variants[i]
		}
	}
	return nil
}

// DefaultVariant returns the variant a typed module starts in.
func (d *ModuleDefinition) DefaultVariant() string {
	if d.Default != "" {
		return d.Default
	}
	if len(d.Variants) > 0 {
		return d.Variants[0].Name
	}
	return ""
}

// BodypartDefinition declares a bodypart slot. Order in the catalog is
// the canonical worn order for character roots.
type BodypartDefinition struct {
	Name string `yaml:"name" json:"name"`
	// AllowMultiple permits more than one equipped instance.
	AllowMultiple bool `yaml:"allowMultiple" json:"allowMultiple,omitempty"`
}

// Asset is one immutable static definition owned by the catalog.
type Asset struct {
	ID   AssetID `yaml:"id" json:"id"`
	Name string  `yaml:"name" json:"name"`
	// Bodypart, when non-empty, names the bodypart slot this asset
	// occupies on a character root.
	Bodypart string `yaml:"bodypart" json:"bodypart,omitempty"`
	// ColorSlots is how many color entries an item of this asset has.
	ColorSlots int `yaml:"colorSlots" json:"colorSlots,omitempty"`
	// RequireFreeHands gates add/remove interactions behind usable
	// hands.
	RequireFreeHands bool       `yaml:"requireFreeHands" json:"requireFreeHands,omitempty"`
	Properties       Properties `yaml:"properties" json:"properties,omitempty"`
	Modules          map[string]ModuleDefinition `yaml:"modules" json:"modules,omitempty"`
}

// Module returns the named module definition, or nil.
func (a *Asset) Module(name string) *ModuleDefinition {
	def, ok := a.Modules[name]
	if !ok {
		return nil
	}
	return &def
}

// Validate checks internal consistency of the definition.
func (a *Asset) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("asset: id cannot be empty")
	}
	if a.Name == "" {
		return fmt.Errorf("asset %s: name cannot be empty", a.ID)
	}
	if a.ColorSlots < 0 {
		return fmt.Errorf("asset %s: colorSlots cannot be negative", a.ID)
	}
	for name, mod := range a.Modules {
		switch mod.Type {
		case ModuleTypeStorage:
			if mod.Capacity <= 0 {
				return fmt.Errorf("asset %s: storage module %q needs positive capacity", a.ID, name)
			}
		case ModuleTypeTyped:
			if len(mod.Variants) == 0 {
				return fmt.Errorf("asset %s: typed module %q needs at least one variant", a.ID, name)
			}
			if mod.Default != "" && mod.Variant(mod.Default) == nil {
				return fmt.Errorf("asset %s: typed module %q default %q is not a variant", a.ID, name, mod.Default)
			}
		default:
			return fmt.Errorf("asset %s: module %q has unknown type %q", a.ID, name, mod.Type)
		}
	}
	return nil
}
