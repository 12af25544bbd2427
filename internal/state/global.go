// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vestiary Contributors

package state

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/samber/oops"

	"github.com/vestiary/vestiary/internal/assets"
	"github.com/vestiary/vestiary/internal/item"
	"github.com/vestiary/vestiary/internal/pose"
)

// TargetType discriminates target selectors.
type TargetType string

const (
	// TargetCharacter addresses a character's appearance.
	TargetCharacter TargetType = "character"
	// TargetRoomInventory addresses the room's own inventory.
	TargetRoomInventory TargetType = "roomInventory"
)

// TargetSelector addresses one root inventory within a global state.
type TargetSelector struct {
	Type      TargetType  `json:"type"`
	Character CharacterID `json:"character,omitempty"`
}

// CharacterTarget selects a character's appearance.
func CharacterTarget(id CharacterID) TargetSelector {
	return TargetSelector{Type: TargetCharacter, Character: id}
}

// RoomTarget selects the room inventory.
func RoomTarget() TargetSelector {
	return TargetSelector{Type: TargetRoomInventory}
}

// GlobalState is one immutable snapshot of a room's inventory plus
// every present character's appearance. It is produced only by load
// and by the application of one validated action; old snapshots stay
// valid forever.
type GlobalState struct {
	assets     *assets.Manager
	room       *RoomState
	characters map[CharacterID]*CharacterState

	// memo caches values derived from this snapshot (restriction
	// managers). The cache is owned by, and dies with, the snapshot.
	memo *snapshotMemo
}

// snapshotMemo is a per-snapshot derivation cache. Snapshots may be
// read from the cleanup timer goroutine, hence the lock.
type snapshotMemo struct {
	mu      sync.Mutex
	entries map[CharacterID]any
}

// NewGlobalState aggregates a room state and character states into a
// fresh snapshot. Characters are keyed by their own ids.
func NewGlobalState(m *assets.Manager, room *RoomState, characters []*CharacterState) *GlobalState {
	if room == nil {
		room = NewRoomState()
	}
	chars := make(map[CharacterID]*CharacterState, len(characters))
	for _, c := range characters {
		chars[c.ID()] = c
	}
	return &GlobalState{
		assets:     m,
		room:       room,
		characters: chars,
		memo:       &snapshotMemo{entries: make(map[CharacterID]any)},
	}
}

// Assets returns the catalog this snapshot resolves against.
func (g *GlobalState) Assets() *assets.Manager { return g.assets }

// Room returns the room inventory state.
func (g *GlobalState) Room() *RoomState { return g.room }

// Character returns the character's state, or nil if absent.
func (g *GlobalState) Character(id CharacterID) *CharacterState {
	return g.characters[id]
}

// CharacterIDs returns the present character ids in sorted order.
func (g *GlobalState) CharacterIDs() []CharacterID {
	out := make([]CharacterID, 0, len(g.characters))
	for id := range g.characters {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Items resolves a target selector to its root item sequence. Returns
// nil (and false) for an unresolvable target.
func (g *GlobalState) Items(sel TargetSelector) ([]*item.Item, bool) {
	switch sel.Type {
	case TargetCharacter:
		c := g.characters[sel.Character]
		if c == nil {
			return nil, false
		}
		return c.Items(), true
	case TargetRoomInventory:
		return g.room.Items(), true
	default:
		return nil, false
	}
}

// Memoize returns the cached derivation for id, building it on first
// use. Used by the restriction layer; the stored value is opaque here.
func (g *GlobalState) Memoize(id CharacterID, build func() any) any {
	g.memo.mu.Lock()
	defer g.memo.mu.Unlock()
	if v, ok := g.memo.entries[id]; ok {
		return v
	}
	v := build()
	g.memo.entries[id] = v
	return v
}

// derive returns a sibling snapshot sharing all untouched structure,
// with a fresh memo cache.
func (g *GlobalState) derive() *GlobalState {
	chars := make(map[CharacterID]*CharacterState, len(g.characters))
	for id, c := range g.characters {
		chars[id] = c
	}
	return &GlobalState{
		assets:     g.assets,
		room:       g.room,
		characters: chars,
		memo:       &snapshotMemo{entries: make(map[CharacterID]any)},
	}
}

// WithRoomItems produces a sibling snapshot with new room items.
func (g *GlobalState) WithRoomItems(items []*item.Item) *GlobalState {
	out := g.derive()
	out.room = g.room.WithItems(items)
	return out
}

// WithCharacterItems produces a sibling snapshot with one character's
// items replaced. Fails if the character is absent.
func (g *GlobalState) WithCharacterItems(id CharacterID, items []*item.Item) (*GlobalState, bool) {
	c := g.characters[id]
	if c == nil {
		return nil, false
	}
	out := g.derive()
	out.characters[id] = c.WithItems(items)
	return out, true
}

// WithCharacterPose produces a sibling snapshot with one character's
// pose replaced. Fails if the character is absent.
func (g *GlobalState) WithCharacterPose(id CharacterID, p pose.Pose) (*GlobalState, bool) {
	c := g.characters[id]
	if c == nil {
		return nil, false
	}
	out := g.derive()
	out.characters[id] = c.WithPose(p)
	return out, true
}

// WithCharacter produces a sibling snapshot with the character added
// or replaced.
func (g *GlobalState) WithCharacter(c *CharacterState) *GlobalState {
	out := g.derive()
	out.characters[c.ID()] = c
	return out
}

// WithoutCharacter produces a sibling snapshot with the character
// removed.
func (g *GlobalState) WithoutCharacter(id CharacterID) *GlobalState {
	out := g.derive()
	delete(out.characters, id)
	return out
}

// Validate checks the room inventory and every character appearance.
func (g *GlobalState) Validate() error {
	if err := g.room.Validate(g.assets); err != nil {
		return oops.In("state").Wrapf(err, "room inventory invalid")
	}
	for _, id := range g.CharacterIDs() {
		if err := g.characters[id].Validate(g.assets); err != nil {
			return oops.In("state").With("character", string(id)).Wrapf(err, "character appearance invalid")
		}
	}
	return nil
}

// Bundle is the serializable form of a global state.
type Bundle struct {
	Room       RoomInventoryBundle              `json:"room"`
	Characters map[CharacterID]AppearanceBundle `json:"characters,omitempty"`
}

// Export converts the snapshot into a bundle.
func (g *GlobalState) Export() Bundle {
	b := Bundle{Room: g.room.Export()}
	if len(g.characters) > 0 {
		b.Characters = make(map[CharacterID]AppearanceBundle, len(g.characters))
		for id, c := range g.characters {
			b.Characters[id] = c.Export()
		}
	}
	return b
}

// Load reconstructs a global state from a stored bundle. Items whose
// assets are no longer in the catalog are dropped with a warning; a
// state that fails validation after that pruning is a fatal load
// error, never served.
func Load(m *assets.Manager, b Bundle, logger *slog.Logger) (*GlobalState, error) {
	room := LoadRoomState(m, b.Room, logger)
	characters := make([]*CharacterState, 0, len(b.Characters))
	for id, cb := range b.Characters {
		if err := id.Validate(); err != nil {
			return nil, oops.In("state").Wrapf(err, "load global state")
		}
		characters = append(characters, LoadCharacterState(m, id, cb, logger))
	}
	g := NewGlobalState(m, room, characters)
	if err := g.Validate(); err != nil {
		return nil, oops.In("state").Code("INVALID_STATE").Wrapf(err, "state invalid after load")
	}
	return g, nil
}
