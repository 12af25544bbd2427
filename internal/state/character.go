// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vestiary Contributors

// Package state holds the immutable snapshot model: per-character
// appearance states, the room inventory state, and the global state
// container aggregating them into one consistent view.
package state

import (
	"fmt"
	"log/slog"
	"regexp"

	"github.com/vestiary/vestiary/internal/assets"
	"github.com/vestiary/vestiary/internal/item"
	"github.com/vestiary/vestiary/internal/pose"
)

// CharacterID identifies a character, e.g. "c42".
type CharacterID string

var characterIDPattern = regexp.MustCompile(`^c[1-9][0-9]*$`)

// Validate checks the id shape.
func (id CharacterID) Validate() error {
	if !characterIDPattern.MatchString(string(id)) {
		return fmt.Errorf("invalid character id %q", id)
	}
	return nil
}

// CharacterState is one character's full appearance: worn item tree
// plus pose. Immutable; producers return new values.
type CharacterState struct {
	id    CharacterID
	items []*item.Item
	pose  pose.Pose
}

// NewCharacterState builds a bare character state with a neutral pose.
func NewCharacterState(id CharacterID) *CharacterState {
	return &CharacterState{id: id, pose: pose.Default()}
}

// ID returns the character id.
func (c *CharacterState) ID() CharacterID { return c.id }

// Items returns the root item sequence. Callers must not modify it.
func (c *CharacterState) Items() []*item.Item { return c.items }

// Pose returns the character's pose.
func (c *CharacterState) Pose() pose.Pose { return c.pose }

// WithItems returns a sibling state with the given root items.
func (c *CharacterState) WithItems(items []*item.Item) *CharacterState {
	out := *c
	out.items = items
	return &out
}

// WithPose returns a sibling state with the given pose.
func (c *CharacterState) WithPose(p pose.Pose) *CharacterState {
	out := *c
	out.pose = p
	return &out
}

// Validate runs structural validation on the appearance.
func (c *CharacterState) Validate(m *assets.Manager) error {
	if err := c.id.Validate(); err != nil {
		return err
	}
	return item.ValidateItems(m, c.items, true)
}

// AppearanceBundle is the serializable form of a character state.
type AppearanceBundle struct {
	Items []item.Bundle `json:"items"`
	Pose  pose.Pose     `json:"pose"`
}

// Export converts the state into a bundle.
func (c *CharacterState) Export() AppearanceBundle {
	bundles := make([]item.Bundle, 0, len(c.items))
	for _, it := range c.items {
		bundles = append(bundles, it.Export())
	}
	return AppearanceBundle{Items: bundles, Pose: c.pose}
}

// LoadCharacterState reconstructs a character state from a bundle.
// Items referencing unknown assets are dropped with a warning; the
// pose is normalized against the catalog's declared bones. The result
// is not yet validated; the global state load validates the whole.
func LoadCharacterState(m *assets.Manager, id CharacterID, b AppearanceBundle, logger *slog.Logger) *CharacterState {
	return &CharacterState{
		id:    id,
		items: item.LoadAndNormalize(m, b.Items, true, logger),
		pose:  normalizePose(m, b.Pose),
	}
}

// normalizePose rebuilds a stored pose on top of the default pose,
// dropping unknown bones and clamping the rest. Unknown enum values
// fall back to defaults rather than failing the load.
func normalizePose(m *assets.Manager, stored pose.Pose) pose.Pose {
	partial := pose.Partial{Bones: stored.Bones}
	switch stored.Legs {
	case pose.LegsStanding, pose.LegsSitting, pose.LegsKneeling:
		legs := stored.Legs
		partial.Legs = &legs
	}
	switch stored.View {
	case pose.ViewFront, pose.ViewBack:
		view := stored.View
		partial.View = &view
	}
	partial.LeftArm = partialFromArm(stored.LeftArm)
	partial.RightArm = partialFromArm(stored.RightArm)
	return pose.Produce(pose.Default(), m.AllBones(), pose.ProduceOptions{}, partial)
}

func partialFromArm(arm pose.ArmPose) *pose.PartialArmPose {
	out := &pose.PartialArmPose{}
	switch arm.Position {
	case pose.ArmPositionFront, pose.ArmPositionBack:
		p := arm.Position
		out.Position = &p
	}
	switch arm.Rotation {
	case pose.ArmRotationUp, pose.ArmRotationDown, pose.ArmRotationForward, pose.ArmRotationBackward:
		r := arm.Rotation
		out.Rotation = &r
	}
	switch arm.Fingers {
	case pose.ArmFingersSpread, pose.ArmFingersFist:
		f := arm.Fingers
		out.Fingers = &f
	}
	return out
}
