// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vestiary Contributors

package restriction

import (
	"fmt"

	"github.com/vestiary/vestiary/internal/assets"
	"github.com/vestiary/vestiary/internal/item"
	"github.com/vestiary/vestiary/internal/state"
)

// InteractionType classifies what an action wants to do to an item.
type InteractionType string

const (
	// InteractionAccess is looking at an item or its contents.
	InteractionAccess InteractionType = "access"
	// InteractionStyling is changing colors.
	InteractionStyling InteractionType = "styling"
	// InteractionModify is operating an item's modules.
	InteractionModify InteractionType = "modify"
	// InteractionAddRemove is equipping, storing, removing, or moving.
	InteractionAddRemove InteractionType = "addRemove"
)

// Manager is the derived policy view of one character in one snapshot.
// It answers "can do X" queries from the character's pre-action
// appearance. Always derive a fresh manager from the current snapshot;
// managers from older snapshots reflect stale limits.
type Manager struct {
	snapshot *state.GlobalState
	self     *state.CharacterState
	roles    *Roles
	limits   assets.Properties
}

// ManagerFor derives (or returns memoized) restrictions for the
// character within the snapshot. Returns nil if the character is not
// part of the snapshot.
func ManagerFor(g *state.GlobalState, id state.CharacterID, roles *Roles) *Manager {
	c := g.Character(id)
	if c == nil {
		return nil
	}
	limits, _ := g.Memoize(id, func() any {
		return deriveLimits(c)
	}).(assets.Properties)
	return &Manager{snapshot: g, self: c, roles: roles, limits: limits}
}

// deriveLimits folds the physical effects of every equipped item,
// nested storage contents excluded: stored items are not worn.
func deriveLimits(c *state.CharacterState) assets.Properties {
	var limits assets.Properties
	for _, it := range c.Items() {
		limits = assets.Fold(limits, it.Properties())
	}
	return limits
}

// Character returns the character this manager describes.
func (m *Manager) Character() *state.CharacterState { return m.self }

// CanUseHands reports whether the character's hands are usable.
func (m *Manager) CanUseHands() bool {
	return !m.limits.BlockHands
}

// MouthMuffleStrength returns the folded speech muffle strength.
func (m *Manager) MouthMuffleStrength() int {
	return m.limits.MuffleMouth
}

// IsInSafemode reports whether the character is in safe-mode.
func (m *Manager) IsInSafemode() bool {
	return m.roles.InSafemode(m.self.ID())
}

// resource builds the permission resource string for a target.
func (m *Manager) resource(target state.TargetSelector, interaction InteractionType) string {
	switch {
	case target.Type == state.TargetRoomInventory:
		return fmt.Sprintf("room:items:%s", interaction)
	case target.Character == m.self.ID():
		return fmt.Sprintf("self:items:%s", interaction)
	default:
		return fmt.Sprintf("character:%s:items:%s", target.Character, interaction)
	}
}

// canInteract is the shared gate behind the public predicates.
func (m *Manager) canInteract(target state.TargetSelector, asset *assets.Asset, interaction InteractionType) bool {
	// Safe-mode isolates a character from cross-character item
	// interactions in both directions.
	if target.Type == state.TargetCharacter && target.Character != m.self.ID() {
		if m.IsInSafemode() || m.roles.InSafemode(target.Character) {
			return false
		}
	}
	if asset != nil && asset.RequireFreeHands && interaction != InteractionAccess && !m.CanUseHands() {
		return false
	}
	return m.roles.Check(m.self.ID(), m.resource(target, interaction))
}

// CanUseItemDirect asks whether the character may apply the
// interaction to a free-standing item headed for the target container.
// Used for create, where the item is not part of any state yet.
func (m *Manager) CanUseItemDirect(target state.TargetSelector, container item.ContainerPath, it *item.Item, interaction InteractionType) bool {
	items, ok := m.snapshot.Items(target)
	if !ok {
		return false
	}
	if _, ok := item.ResolveContainer(items, container); !ok {
		return false
	}
	return m.canInteract(target, it.Asset(), interaction)
}

// CanUseItem asks whether the character may apply the interaction to
// the item addressed by path on the target.
func (m *Manager) CanUseItem(target state.TargetSelector, path item.Path, interaction InteractionType) bool {
	it, ok := m.findItem(target, path)
	if !ok {
		return false
	}
	return m.canInteract(target, it.Asset(), interaction)
}

// CanUseItemModule asks whether the character may operate the named
// module of the addressed item.
func (m *Manager) CanUseItemModule(target state.TargetSelector, path item.Path, module string) bool {
	it, ok := m.findItem(target, path)
	if !ok {
		return false
	}
	if it.Asset().Module(module) == nil {
		return false
	}
	return m.canInteract(target, it.Asset(), InteractionModify)
}

func (m *Manager) findItem(target state.TargetSelector, path item.Path) (*item.Item, bool) {
	items, ok := m.snapshot.Items(target)
	if !ok {
		return nil, false
	}
	return item.FindItem(items, path)
}
