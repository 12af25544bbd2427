// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vestiary Contributors

// Package action implements the appearance action engine: decoding of
// tagged-union action requests and their atomic application against a
// global state snapshot.
package action

import (
	"encoding/json"

	"github.com/samber/oops"

	"github.com/vestiary/vestiary/internal/assets"
	"github.com/vestiary/vestiary/internal/item"
	"github.com/vestiary/vestiary/internal/pose"
	"github.com/vestiary/vestiary/internal/state"
)

// Kind discriminates the action union.
type Kind string

const (
	KindCreate       Kind = "create"
	KindDelete       Kind = "delete"
	KindMove         Kind = "move"
	KindColor        Kind = "color"
	KindModuleAction Kind = "moduleAction"
	KindPose         Kind = "pose"
	KindBody         Kind = "body"
	KindSetView      Kind = "setView"
)

// Action is one discrete, atomically applied state transition request.
// The set of implementations is closed; the engine treats an unknown
// kind as a contract violation.
type Action interface {
	Kind() Kind
}

// Create instantiates a new item and adds it to a container.
type Create struct {
	// ItemID is the id to give the new item.
	ItemID item.ID `json:"itemId"`
	// Asset is the catalog asset to create the item from.
	Asset assets.AssetID `json:"asset"`
	// Target is where the item should be added after creation.
	Target state.TargetSelector `json:"target"`
	// Container is the container path on the target.
	Container item.ContainerPath `json:"container"`
}

func (Create) Kind() Kind { return KindCreate }

// Delete removes an item and destroys it.
type Delete struct {
	Target state.TargetSelector `json:"target"`
	Item   item.Path            `json:"item"`
}

func (Delete) Kind() Kind { return KindDelete }

// Move shifts an item within its container, reordering the worn order.
type Move struct {
	Target state.TargetSelector `json:"target"`
	Item   item.Path            `json:"item"`
	// Shift is the relative index delta, clamped to the container.
	Shift int `json:"shift"`
}

func (Move) Kind() Kind { return KindMove }

// Color replaces an item's color list.
type Color struct {
	Target state.TargetSelector `json:"target"`
	Item   item.Path            `json:"item"`
	Color  []string             `json:"color"`
}

func (Color) Kind() Kind { return KindColor }

// ModuleAction delegates to an item module's own transition logic.
type ModuleAction struct {
	Target state.TargetSelector `json:"target"`
	Item   item.Path            `json:"item"`
	Module string               `json:"module"`
	Action item.ModuleAction    `json:"action"`
}

func (ModuleAction) Kind() Kind { return KindModuleAction }

// Pose merges a partial pose patch into a character's appearance.
// Arms is a shorthand patch applied to both arms after the main patch.
type Pose struct {
	Target state.CharacterID    `json:"target"`
	Pose   pose.Partial         `json:"pose"`
	Arms   *pose.PartialArmPose `json:"armsPose,omitempty"`
}

func (Pose) Kind() Kind { return KindPose }

// Body adjusts body-type bones. Only the character itself may do this.
type Body struct {
	Target state.CharacterID `json:"target"`
	Bones  map[string]int    `json:"bones"`
}

func (Body) Kind() Kind { return KindBody }

// SetView turns the character to face front or back.
type SetView struct {
	Target state.CharacterID `json:"target"`
	View   pose.View         `json:"view"`
}

func (SetView) Kind() Kind { return KindSetView }

// Decode parses a tagged-union action request. Unknown kinds and
// unknown enum values are decode errors; they never reach the engine.
func Decode(data []byte) (Action, error) {
	errb := oops.In("action").Code("MALFORMED_ACTION")
	var probe struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, errb.Wrapf(err, "decode action envelope")
	}

	var (
		act Action
		err error
	)
	switch probe.Type {
	case KindCreate:
		var a Create
		err = json.Unmarshal(data, &a)
		act = a
	case KindDelete:
		var a Delete
		err = json.Unmarshal(data, &a)
		act = a
	case KindMove:
		var a Move
		err = json.Unmarshal(data, &a)
		act = a
	case KindColor:
		var a Color
		err = json.Unmarshal(data, &a)
		act = a
	case KindModuleAction:
		var a ModuleAction
		err = json.Unmarshal(data, &a)
		act = a
	case KindPose:
		var a Pose
		err = json.Unmarshal(data, &a)
		if err == nil {
			err = validatePartialPose(a.Pose, a.Arms)
		}
		act = a
	case KindBody:
		var a Body
		err = json.Unmarshal(data, &a)
		act = a
	case KindSetView:
		var a SetView
		err = json.Unmarshal(data, &a)
		if err == nil && !validView(a.View) {
			err = oops.Errorf("unknown view %q", a.View)
		}
		act = a
	default:
		return nil, errb.With("type", string(probe.Type)).Errorf("unknown action type")
	}
	if err != nil {
		return nil, errb.With("type", string(probe.Type)).Wrapf(err, "decode action")
	}
	return act, nil
}

func validView(v pose.View) bool {
	switch v {
	case pose.ViewFront, pose.ViewBack:
		return true
	}
	return false
}

func validatePartialPose(p pose.Partial, arms *pose.PartialArmPose) error {
	for _, a := range []*pose.PartialArmPose{p.Arms, p.LeftArm, p.RightArm, arms} {
		if a == nil {
			continue
		}
		if a.Position != nil {
			switch *a.Position {
			case pose.ArmPositionFront, pose.ArmPositionBack:
			default:
				return oops.Errorf("unknown arm position %q", *a.Position)
			}
		}
		if a.Rotation != nil {
			switch *a.Rotation {
			case pose.ArmRotationUp, pose.ArmRotationDown, pose.ArmRotationForward, pose.ArmRotationBackward:
			default:
				return oops.Errorf("unknown arm rotation %q", *a.Rotation)
			}
		}
		if a.Fingers != nil {
			switch *a.Fingers {
			case pose.ArmFingersSpread, pose.ArmFingersFist:
			default:
				return oops.Errorf("unknown arm fingers %q", *a.Fingers)
			}
		}
	}
	if p.Legs != nil {
		switch *p.Legs {
		case pose.LegsStanding, pose.LegsSitting, pose.LegsKneeling:
		default:
			return oops.Errorf("unknown legs pose %q", *p.Legs)
		}
	}
	if p.View != nil && !validView(*p.View) {
		return oops.Errorf("unknown view %q", *p.View)
	}
	return nil
}
