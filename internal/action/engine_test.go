// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vestiary Contributors

package action_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vestiary/vestiary/internal/action"
	"github.com/vestiary/vestiary/internal/assets"
	"github.com/vestiary/vestiary/internal/assets/assetstest"
	"github.com/vestiary/vestiary/internal/item"
	"github.com/vestiary/vestiary/internal/pose"
	"github.com/vestiary/vestiary/internal/restriction"
	"github.com/vestiary/vestiary/internal/state"
)

func newWorld(t *testing.T) (*assets.Manager, *state.GlobalState) {
	t.Helper()
	m := assetstest.NewManager(t)
	alice := state.NewCharacterState("c1")
	bob := state.NewCharacterState("c2")
	return m, state.NewGlobalState(m, state.NewRoomState(), []*state.CharacterState{alice, bob})
}

func newEngine(t *testing.T) *action.Engine {
	t.Helper()
	return action.NewEngine(restriction.MustDefaultRoles(), nil)
}

func apply(t *testing.T, e *action.Engine, g *state.GlobalState, actor state.CharacterID, act action.Action) *state.GlobalState {
	t.Helper()
	res := e.Apply(context.Background(), g, actor, act, action.Options{})
	require.True(t, res.Applied, "problem: %s", res.Problem)
	require.NotNil(t, res.State)
	return res.State
}

func TestEngine_Create(t *testing.T) {
	_, g := newWorld(t)
	e := newEngine(t)

	t.Run("adds to self and announces", func(t *testing.T) {
		res := e.Apply(context.Background(), g, "c1", action.Create{
			ItemID: "i/shirt",
			Asset:  assetstest.AssetShirt,
			Target: state.CharacterTarget("c1"),
		}, action.Options{})
		require.True(t, res.Applied)
		items, _ := res.State.Items(state.CharacterTarget("c1"))
		require.Len(t, items, 1)
		require.Len(t, res.Messages, 1)
		assert.Equal(t, item.DescriptorItemAdd, res.Messages[0].ID)
		assert.Equal(t, assetstest.AssetShirt, res.Messages[0].Asset)
	})

	t.Run("unknown asset is not found", func(t *testing.T) {
		res := e.Apply(context.Background(), g, "c1", action.Create{
			ItemID: "i/x",
			Asset:  "a/missing",
			Target: state.CharacterTarget("c1"),
		}, action.Options{})
		assert.False(t, res.Applied)
		assert.Equal(t, action.ProblemNotFound, res.Problem)
	})

	t.Run("member cannot dress another character", func(t *testing.T) {
		res := e.Apply(context.Background(), g, "c1", action.Create{
			ItemID: "i/shirt",
			Asset:  assetstest.AssetShirt,
			Target: state.CharacterTarget("c2"),
		}, action.Options{})
		assert.False(t, res.Applied)
		assert.Equal(t, action.ProblemPermission, res.Problem)
	})

	t.Run("duplicate item id is invalid", func(t *testing.T) {
		g := apply(t, e, g, "c1", action.Create{
			ItemID: "i/shirt", Asset: assetstest.AssetShirt, Target: state.CharacterTarget("c1"),
		})
		res := e.Apply(context.Background(), g, "c1", action.Create{
			ItemID: "i/shirt", Asset: assetstest.AssetGag, Target: state.CharacterTarget("c1"),
		}, action.Options{})
		assert.False(t, res.Applied)
		assert.Equal(t, action.ProblemInvalid, res.Problem)
	})

	t.Run("stores into containers with capacity", func(t *testing.T) {
		g := apply(t, e, g, "c1", action.Create{
			ItemID: "i/pack", Asset: assetstest.AssetBackpack, Target: state.RoomTarget(),
		})
		pocket := item.ContainerPath{{Item: "i/pack", Module: "pockets"}}
		for i, id := range []item.ID{"i/s1", "i/s2", "i/s3"} {
			res := e.Apply(context.Background(), g, "c1", action.Create{
				ItemID: id, Asset: assetstest.AssetTableLamp,
				Target: state.RoomTarget(), Container: pocket,
			}, action.Options{})
			require.True(t, res.Applied, "item %d", i)
			require.Len(t, res.Messages, 1)
			assert.Equal(t, item.DescriptorItemStore, res.Messages[0].ID)
			g = res.State
		}

		t.Run("overflow is invalid", func(t *testing.T) {
			res := e.Apply(context.Background(), g, "c1", action.Create{
				ItemID: "i/s4", Asset: assetstest.AssetTableLamp,
				Target: state.RoomTarget(), Container: pocket,
			}, action.Options{})
			assert.False(t, res.Applied)
			assert.Equal(t, action.ProblemInvalid, res.Problem)
		})

		t.Run("equipped modules announce attach", func(t *testing.T) {
			res := e.Apply(context.Background(), g, "c1", action.Create{
				ItemID: "i/strapped", Asset: assetstest.AssetTableLamp,
				Target:    state.RoomTarget(),
				Container: item.ContainerPath{{Item: "i/pack", Module: "straps"}},
			}, action.Options{})
			require.True(t, res.Applied)
			require.Len(t, res.Messages, 1)
			assert.Equal(t, item.DescriptorItemAttach, res.Messages[0].ID)
		})
	})
}

func TestEngine_BodypartExclusivity(t *testing.T) {
	_, g := newWorld(t)
	e := newEngine(t)

	g = apply(t, e, g, "c1", action.Create{
		ItemID: "i/head1", Asset: assetstest.AssetBodyHead, Target: state.CharacterTarget("c1"),
	})

	res := e.Apply(context.Background(), g, "c1", action.Create{
		ItemID: "i/head2", Asset: assetstest.AssetBodyHead, Target: state.CharacterTarget("c1"),
	}, action.Options{})
	require.True(t, res.Applied)

	items, _ := res.State.Items(state.CharacterTarget("c1"))
	heads := 0
	for _, it := range items {
		if it.Asset().Bodypart == "head" {
			heads++
			assert.Equal(t, item.ID("i/head2"), it.ID())
		}
	}
	assert.Equal(t, 1, heads)

	require.Len(t, res.Messages, 1)
	assert.Equal(t, item.DescriptorItemReplace, res.Messages[0].ID)
	assert.Equal(t, assetstest.AssetBodyHead, res.Messages[0].PreviousAsset)
}

func TestEngine_Delete(t *testing.T) {
	_, g := newWorld(t)
	e := newEngine(t)
	g = apply(t, e, g, "c1", action.Create{
		ItemID: "i/shirt", Asset: assetstest.AssetShirt, Target: state.CharacterTarget("c1"),
	})

	t.Run("removes exactly one and announces", func(t *testing.T) {
		res := e.Apply(context.Background(), g, "c1", action.Delete{
			Target: state.CharacterTarget("c1"),
			Item:   item.Path{Item: "i/shirt"},
		}, action.Options{})
		require.True(t, res.Applied)
		items, _ := res.State.Items(state.CharacterTarget("c1"))
		assert.Empty(t, items)
		require.Len(t, res.Messages, 1)
		assert.Equal(t, item.DescriptorItemRemove, res.Messages[0].ID)
	})

	t.Run("missing item is not found", func(t *testing.T) {
		res := e.Apply(context.Background(), g, "c1", action.Delete{
			Target: state.CharacterTarget("c1"),
			Item:   item.Path{Item: "i/ghost"},
		}, action.Options{})
		assert.False(t, res.Applied)
		assert.Equal(t, action.ProblemNotFound, res.Problem)
	})
}

func TestEngine_MoveAndColor(t *testing.T) {
	_, g := newWorld(t)
	e := newEngine(t)
	g = apply(t, e, g, "c1", action.Create{
		ItemID: "i/lamp1", Asset: assetstest.AssetTableLamp, Target: state.RoomTarget(),
	})
	g = apply(t, e, g, "c1", action.Create{
		ItemID: "i/lamp2", Asset: assetstest.AssetTableLamp, Target: state.RoomTarget(),
	})

	t.Run("move reorders silently and clamps", func(t *testing.T) {
		res := e.Apply(context.Background(), g, "c1", action.Move{
			Target: state.RoomTarget(),
			Item:   item.Path{Item: "i/lamp1"},
			Shift:  10,
		}, action.Options{})
		require.True(t, res.Applied)
		assert.Empty(t, res.Messages)
		items, _ := res.State.Items(state.RoomTarget())
		require.Len(t, items, 2)
		assert.Equal(t, item.ID("i/lamp1"), items[1].ID())
	})

	t.Run("color replaces the list silently", func(t *testing.T) {
		res := e.Apply(context.Background(), g, "c1", action.Color{
			Target: state.RoomTarget(),
			Item:   item.Path{Item: "i/lamp1"},
			Color:  []string{"#ff0000"},
		}, action.Options{})
		require.True(t, res.Applied)
		assert.Empty(t, res.Messages)
		it, ok := item.FindItem(mustItems(t, res.State, state.RoomTarget()), item.Path{Item: "i/lamp1"})
		require.True(t, ok)
		assert.Equal(t, []string{"#ff0000"}, it.Color())
	})

	t.Run("wrong color count is invalid", func(t *testing.T) {
		res := e.Apply(context.Background(), g, "c1", action.Color{
			Target: state.RoomTarget(),
			Item:   item.Path{Item: "i/lamp1"},
			Color:  []string{"#ff0000", "#00ff00"},
		}, action.Options{})
		assert.False(t, res.Applied)
		assert.Equal(t, action.ProblemInvalid, res.Problem)
	})
}

func mustItems(t *testing.T, g *state.GlobalState, sel state.TargetSelector) []*item.Item {
	t.Helper()
	items, ok := g.Items(sel)
	require.True(t, ok)
	return items
}

func TestEngine_ModuleAction(t *testing.T) {
	_, g := newWorld(t)
	e := newEngine(t)
	g = apply(t, e, g, "c1", action.Create{
		ItemID: "i/cuffs", Asset: assetstest.AssetCuffs, Target: state.CharacterTarget("c1"),
	})

	t.Run("variant switch queues the module descriptor", func(t *testing.T) {
		res := e.Apply(context.Background(), g, "c1", action.ModuleAction{
			Target: state.CharacterTarget("c1"),
			Item:   item.Path{Item: "i/cuffs"},
			Module: "lock",
			Action: item.ModuleAction{SetVariant: "closed"},
		}, action.Options{})
		require.True(t, res.Applied)
		require.Len(t, res.Messages, 1)
		assert.Equal(t, item.DescriptorID("lockClose"), res.Messages[0].ID)
	})

	t.Run("unknown variant is invalid", func(t *testing.T) {
		res := e.Apply(context.Background(), g, "c1", action.ModuleAction{
			Target: state.CharacterTarget("c1"),
			Item:   item.Path{Item: "i/cuffs"},
			Module: "lock",
			Action: item.ModuleAction{SetVariant: "welded"},
		}, action.Options{})
		assert.False(t, res.Applied)
		assert.Equal(t, action.ProblemInvalid, res.Problem)
	})

	t.Run("unknown module is permission-shaped", func(t *testing.T) {
		res := e.Apply(context.Background(), g, "c1", action.ModuleAction{
			Target: state.CharacterTarget("c1"),
			Item:   item.Path{Item: "i/cuffs"},
			Module: "hinge",
			Action: item.ModuleAction{SetVariant: "closed"},
		}, action.Options{})
		assert.False(t, res.Applied)
	})
}

func TestEngine_CuffsAndGagScenario(t *testing.T) {
	_, g := newWorld(t)
	e := newEngine(t)
	roles := restriction.MustDefaultRoles()
	ctx := context.Background()

	g = apply(t, e, g, "c1", action.Create{
		ItemID: "i/cuffs", Asset: assetstest.AssetCuffs, Target: state.CharacterTarget("c1"),
	})
	g = apply(t, e, g, "c1", action.ModuleAction{
		Target: state.CharacterTarget("c1"),
		Item:   item.Path{Item: "i/cuffs"},
		Module: "lock",
		Action: item.ModuleAction{SetVariant: "closed"},
	})

	r := restriction.ManagerFor(g, "c1", roles)
	require.False(t, r.CanUseHands())

	t.Run("gag still goes on while cuffed", func(t *testing.T) {
		res := e.Apply(ctx, g, "c1", action.Create{
			ItemID: "i/gag", Asset: assetstest.AssetGag, Target: state.CharacterTarget("c1"),
		}, action.Options{})
		require.True(t, res.Applied)
		r := restriction.ManagerFor(res.State, "c1", roles)
		assert.Equal(t, 5, r.MouthMuffleStrength())
		assert.False(t, r.CanUseHands())
	})

	t.Run("hands-requiring item does not", func(t *testing.T) {
		res := e.Apply(ctx, g, "c1", action.Create{
			ItemID: "i/shirt", Asset: assetstest.AssetShirt, Target: state.CharacterTarget("c1"),
		}, action.Options{})
		assert.False(t, res.Applied)
		assert.Equal(t, action.ProblemPermission, res.Problem)
	})
}

func TestEngine_DryRun(t *testing.T) {
	_, g := newWorld(t)
	e := newEngine(t)
	ctx := context.Background()
	act := action.Create{
		ItemID: "i/shirt", Asset: assetstest.AssetShirt, Target: state.CharacterTarget("c1"),
	}

	t.Run("same verdict, nothing published", func(t *testing.T) {
		dry := e.Apply(ctx, g, "c1", act, action.Options{DryRun: true})
		assert.True(t, dry.Applied)
		assert.Nil(t, dry.State)
		assert.Empty(t, dry.Messages)

		items, _ := g.Items(state.CharacterTarget("c1"))
		assert.Empty(t, items)

		wet := e.Apply(ctx, g, "c1", act, action.Options{})
		assert.Equal(t, dry.Applied, wet.Applied)
		assert.Equal(t, dry.Problem, wet.Problem)
	})

	t.Run("repeated dry runs agree", func(t *testing.T) {
		first := e.Apply(ctx, g, "c1", act, action.Options{DryRun: true})
		second := e.Apply(ctx, g, "c1", act, action.Options{DryRun: true})
		assert.Equal(t, first, second)
	})

	t.Run("rejections match real runs", func(t *testing.T) {
		bad := action.Create{ItemID: "i/x", Asset: "a/missing", Target: state.CharacterTarget("c1")}
		dry := e.Apply(ctx, g, "c1", bad, action.Options{DryRun: true})
		wet := e.Apply(ctx, g, "c1", bad, action.Options{})
		assert.Equal(t, dry, wet)
	})
}

func TestEngine_Atomicity(t *testing.T) {
	_, g := newWorld(t)
	e := newEngine(t)

	before := g.Export()
	res := e.Apply(context.Background(), g, "c1", action.Create{
		ItemID: "i/head", Asset: assetstest.AssetBodyHead, Target: state.RoomTarget(),
	}, action.Options{})
	require.False(t, res.Applied)
	assert.Equal(t, action.ProblemInvalid, res.Problem)
	assert.Equal(t, before, g.Export())
}

func TestEngine_PoseActions(t *testing.T) {
	_, g := newWorld(t)
	e := newEngine(t)
	ctx := context.Background()

	t.Run("pose merges and applies arms shorthand", func(t *testing.T) {
		back := pose.ArmPositionBack
		fist := pose.ArmFingersFist
		res := e.Apply(ctx, g, "c1", action.Pose{
			Target: "c1",
			Pose: pose.Partial{
				Bones:   map[string]int{"arm_l": 200, "hips": 30},
				LeftArm: &pose.PartialArmPose{Fingers: &fist},
			},
			Arms: &pose.PartialArmPose{Position: &back},
		}, action.Options{})
		require.True(t, res.Applied)

		p := res.State.Character("c1").Pose()
		assert.Equal(t, pose.BoneMax, p.Bones["arm_l"])
		_, touched := p.Bones["hips"]
		assert.False(t, touched, "body bones stay out of pose updates")
		assert.Equal(t, pose.ArmPositionBack, p.LeftArm.Position)
		assert.Equal(t, pose.ArmFingersFist, p.LeftArm.Fingers)
		assert.Equal(t, pose.ArmPositionBack, p.RightArm.Position)
	})

	t.Run("pose works on other present characters", func(t *testing.T) {
		kneel := pose.LegsKneeling
		res := e.Apply(ctx, g, "c1", action.Pose{
			Target: "c2",
			Pose:   pose.Partial{Legs: &kneel},
		}, action.Options{})
		require.True(t, res.Applied)
		assert.Equal(t, pose.LegsKneeling, res.State.Character("c2").Pose().Legs)
	})

	t.Run("body is self only", func(t *testing.T) {
		res := e.Apply(ctx, g, "c1", action.Body{
			Target: "c2", Bones: map[string]int{"hips": 10},
		}, action.Options{})
		assert.False(t, res.Applied)
		assert.Equal(t, action.ProblemPermission, res.Problem)

		res = e.Apply(ctx, g, "c1", action.Body{
			Target: "c1", Bones: map[string]int{"hips": 10, "arm_l": 50},
		}, action.Options{})
		require.True(t, res.Applied)
		p := res.State.Character("c1").Pose()
		assert.Equal(t, 10, p.Bones["hips"])
		_, touched := p.Bones["arm_l"]
		assert.False(t, touched, "pose bones stay out of body updates")
	})

	t.Run("setView flips the view", func(t *testing.T) {
		res := e.Apply(ctx, g, "c1", action.SetView{Target: "c2", View: pose.ViewBack}, action.Options{})
		require.True(t, res.Applied)
		assert.Equal(t, pose.ViewBack, res.State.Character("c2").Pose().View)
	})

	t.Run("absent character is not found", func(t *testing.T) {
		res := e.Apply(ctx, g, "c1", action.SetView{Target: "c9", View: pose.ViewBack}, action.Options{})
		assert.False(t, res.Applied)
		assert.Equal(t, action.ProblemNotFound, res.Problem)
	})
}

type bogusAction struct{}

func (bogusAction) Kind() action.Kind { return "bogus" }

func TestEngine_UnknownKindPanics(t *testing.T) {
	_, g := newWorld(t)
	e := newEngine(t)
	assert.Panics(t, func() {
		e.Apply(context.Background(), g, "c1", bogusAction{}, action.Options{})
	})
}
