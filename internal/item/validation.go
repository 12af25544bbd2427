// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vestiary Contributors

package item

import (
	"fmt"

	"github.com/vestiary/vestiary/internal/assets"
)

// ValidationError describes why an item tree is structurally invalid.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateItems runs the cross-cutting structural validation over a
// root inventory: unique ids, bodypart placement and exclusivity,
// bodypart ordering, and storage capacity. isCharacter selects the
// character-root rules (bodyparts allowed, exclusivity enforced).
func ValidateItems(m *assets.Manager, items []*Item, isCharacter bool) error {
	seen := make(map[ID]struct{})
	if err := validateTree(m, items, isCharacter, true, seen); err != nil {
		return err
	}
	if isCharacter {
		return validateBodypartOrder(m, items)
	}
	return nil
}

func validateTree(m *assets.Manager, items []*Item, isCharacter, isRoot bool, seen map[ID]struct{}) error {
	bodypartCount := make(map[string]int)

	for _, it := range items {
		if err := it.ID().Validate(); err != nil {
			return err
		}
		if _, dup := seen[it.ID()]; dup {
			return &ValidationError{Field: string(it.ID()), Message: "duplicate item id"}
		}
		seen[it.ID()] = struct{}{}

		if bp := it.Asset().Bodypart; bp != "" {
			if !isCharacter || !isRoot {
				return &ValidationError{Field: string(it.ID()), Message: "bodypart item outside character root"}
			}
			def := m.Bodypart(bp)
			if def == nil {
				return &ValidationError{Field: string(it.ID()), Message: fmt.Sprintf("unknown bodypart %q", bp)}
			}
			bodypartCount[bp]++
			if !def.AllowMultiple && bodypartCount[bp] > 1 {
				return &ValidationError{Field: string(it.ID()), Message: fmt.Sprintf("multiple items of bodypart %q", bp)}
			}
		}

		for _, name := range it.ModuleNames() {
			def := it.Asset().Module(name)
			if def == nil || def.Type != assets.ModuleTypeStorage {
				continue
			}
			contents, _ := it.ModuleItems(name)
			if len(contents) > def.Capacity {
				return &ValidationError{
					Field:   string(it.ID()),
					Message: fmt.Sprintf("module %q holds %d items, capacity %d", name, len(contents), def.Capacity),
				}
			}
			if err := validateTree(m, contents, isCharacter, false, seen); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateBodypartOrder requires bodypart items to precede everything
// else at a character root, sorted by catalog bodypart order.
func validateBodypartOrder(m *assets.Manager, items []*Item) error {
	lastOrder := -1
	bodypartsDone := false
	for _, it := range items {
		bp := it.Asset().Bodypart
		if bp == "" {
			bodypartsDone = true
			continue
		}
		if bodypartsDone {
			return &ValidationError{Field: string(it.ID()), Message: "bodypart item after non-bodypart item"}
		}
		order := m.BodypartOrder(bp)
		if order < lastOrder {
			return &ValidationError{Field: string(it.ID()), Message: "bodypart items out of catalog order"}
		}
		lastOrder = order
	}
	return nil
}
