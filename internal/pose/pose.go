// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vestiary Contributors

// Package pose defines the character posture model: bone rotations,
// arm and leg poses, and the merge rules for partial pose updates.
package pose

// Bone rotation bounds in degrees.
const (
	BoneMin = -180
	BoneMax = 180
)

// BoneType categorizes a bone by what kind of update may touch it.
type BoneType string

const (
	// BoneTypePose bones move freely with pose updates.
	BoneTypePose BoneType = "pose"
	// BoneTypeBody bones describe body shape and may only be changed
	// by the character itself.
	BoneTypeBody BoneType = "body"
)

// BoneDefinition declares a bone known to the asset catalog.
type BoneDefinition struct {
	Name string   `yaml:"name" json:"name"`
	Type BoneType `yaml:"type" json:"type"`
}

// ArmPosition says whether an arm is held in front of or behind the body.
type ArmPosition string

const (
	ArmPositionFront ArmPosition = "front"
	ArmPositionBack  ArmPosition = "back"
)

// ArmRotation is the gross rotation of an arm.
type ArmRotation string

const (
	ArmRotationUp       ArmRotation = "up"
	ArmRotationDown     ArmRotation = "down"
	ArmRotationForward  ArmRotation = "forward"
	ArmRotationBackward ArmRotation = "backward"
)

// ArmFingers is the hand state of an arm.
type ArmFingers string

const (
	ArmFingersSpread ArmFingers = "spread"
	ArmFingersFist   ArmFingers = "fist"
)

// LegsPose is the stance of the character's legs.
type LegsPose string

const (
	LegsStanding LegsPose = "standing"
	LegsSitting  LegsPose = "sitting"
	LegsKneeling LegsPose = "kneeling"
)

// View is which side of the character faces the viewer.
type View string

const (
	ViewFront View = "front"
	ViewBack  View = "back"
)

// ArmPose is the full state of one arm.
type ArmPose struct {
	Position ArmPosition `json:"position"`
	Rotation ArmRotation `json:"rotation"`
	Fingers  ArmFingers  `json:"fingers"`
}

// Pose is a complete character posture. Values are never mutated in
// place; use Produce to derive an updated pose.
type Pose struct {
	Bones    map[string]int `json:"bones"`
	LeftArm  ArmPose        `json:"leftArm"`
	RightArm ArmPose        `json:"rightArm"`
	Legs     LegsPose       `json:"legs"`
	View     View           `json:"view"`
}

// DefaultArmPose returns the neutral arm state.
func DefaultArmPose() ArmPose {
	return ArmPose{
		Position: ArmPositionFront,
		Rotation: ArmRotationForward,
		Fingers:  ArmFingersSpread,
	}
}

// Default returns the neutral pose.
func Default() Pose {
	return Pose{
		Bones:    map[string]int{},
		LeftArm:  DefaultArmPose(),
		RightArm: DefaultArmPose(),
		Legs:     LegsStanding,
		View:     ViewFront,
	}
}

// clone returns a deep copy safe to mutate during Produce.
func (p Pose) clone() Pose {
	bones := make(map[string]int, len(p.Bones))
	for k, v := range p.Bones {
		bones[k] = v
	}
	p.Bones = bones
	return p
}

// PartialArmPose is a sparse arm update; nil fields are left untouched.
type PartialArmPose struct {
	Position *ArmPosition `yaml:"position" json:"position,omitempty"`
	Rotation *ArmRotation `yaml:"rotation" json:"rotation,omitempty"`
	Fingers  *ArmFingers  `yaml:"fingers" json:"fingers,omitempty"`
}

// apply overlays non-nil fields of the patch onto base.
func (p *PartialArmPose) apply(base ArmPose) ArmPose {
	if p == nil {
		return base
	}
	if p.Position != nil {
		base.Position = *p.Position
	}
	if p.Rotation != nil {
		base.Rotation = *p.Rotation
	}
	if p.Fingers != nil {
		base.Fingers = *p.Fingers
	}
	return base
}

// merge overlays non-nil fields of other onto a copy of p.
func (p *PartialArmPose) merge(other *PartialArmPose) *PartialArmPose {
	if other == nil {
		return p
	}
	if p == nil {
		return other
	}
	out := *p
	if other.Position != nil {
		out.Position = other.Position
	}
	if other.Rotation != nil {
		out.Rotation = other.Rotation
	}
	if other.Fingers != nil {
		out.Fingers = other.Fingers
	}
	return &out
}

// Partial is a sparse pose update. Arms seeds both LeftArm and
// RightArm before the per-side patches apply.
type Partial struct {
	Bones    map[string]int  `yaml:"bones" json:"bones,omitempty"`
	Arms     *PartialArmPose `yaml:"arms" json:"arms,omitempty"`
	LeftArm  *PartialArmPose `yaml:"leftArm" json:"leftArm,omitempty"`
	RightArm *PartialArmPose `yaml:"rightArm" json:"rightArm,omitempty"`
	Legs     *LegsPose       `yaml:"legs" json:"legs,omitempty"`
	View     *View           `yaml:"view" json:"view,omitempty"`
}

// Preset is a named partial pose from the catalog.
type Preset struct {
	Name string  `yaml:"name" json:"name"`
	Pose Partial `yaml:"pose" json:"pose"`
}

// PresetCategory groups presets for client display.
type PresetCategory struct {
	Category string   `yaml:"category" json:"category"`
	Poses    []Preset `yaml:"poses" json:"poses"`
}

// MergePartials merges extend over base: the latest non-nil value wins
// per field, and arm sub-objects merge field by field.
func MergePartials(base, extend Partial) Partial {
	out := Partial{
		Arms:     base.Arms.merge(extend.Arms),
		LeftArm:  base.LeftArm.merge(extend.LeftArm),
		RightArm: base.RightArm.merge(extend.RightArm),
		Legs:     base.Legs,
		View:     base.View,
	}
	if extend.Legs != nil {
		out.Legs = extend.Legs
	}
	if extend.View != nil {
		out.View = extend.View
	}
	if len(base.Bones) > 0 || len(extend.Bones) > 0 {
		out.Bones = make(map[string]int, len(base.Bones)+len(extend.Bones))
		for k, v := range base.Bones {
			out.Bones[k] = v
		}
		for k, v := range extend.Bones {
			out.Bones[k] = v
		}
	}
	return out
}

// ProduceOptions control how Produce applies bone updates.
type ProduceOptions struct {
	// BoneTypeFilter, when non-empty, restricts bone updates to bones
	// of the given type.
	BoneTypeFilter BoneType
	// MissingBonesAsZero resets bones absent from the patch to zero
	// instead of leaving them untouched.
	MissingBonesAsZero bool
}

// clampBone rounds to an integer and clamps to the bone range.
func clampBone(v int) int {
	if v < BoneMin {
		return BoneMin
	}
	if v > BoneMax {
		return BoneMax
	}
	return v
}

// Produce merges one or more partial patches left to right and applies
// the result to base, returning a new pose. Bone updates only touch
// bones declared in the catalog, honoring the type filter.
func Produce(base Pose, bones []BoneDefinition, opts ProduceOptions, patches ...Partial) Pose {
	if len(patches) == 0 {
		return base
	}
	patch := patches[0]
	for _, p := range patches[1:] {
		patch = MergePartials(patch, p)
	}

	out := base.clone()

	if patch.View != nil {
		out.View = *patch.View
	}

	// Arms seeds both sides, then per-side patches override.
	out.LeftArm = patch.LeftArm.apply(patch.Arms.apply(base.LeftArm))
	out.RightArm = patch.RightArm.apply(patch.Arms.apply(base.RightArm))

	if patch.Legs != nil {
		out.Legs = *patch.Legs
	}

	for _, bone := range bones {
		if opts.BoneTypeFilter != "" && bone.Type != opts.BoneTypeFilter {
			continue
		}
		value, present := patch.Bones[bone.Name]
		if !present && !opts.MissingBonesAsZero {
			continue
		}
		if !present {
			out.Bones[bone.Name] = 0
			continue
		}
		out.Bones[bone.Name] = clampBone(value)
	}

	return out
}
