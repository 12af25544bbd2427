// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vestiary Contributors

package state_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vestiary/vestiary/internal/assets/assetstest"
	"github.com/vestiary/vestiary/internal/item"
	"github.com/vestiary/vestiary/internal/pose"
	"github.com/vestiary/vestiary/internal/state"
)

func TestLoad(t *testing.T) {
	m := assetstest.NewManager(t)

	t.Run("unknown assets are pruned, load still succeeds", func(t *testing.T) {
		g, err := state.Load(m, state.Bundle{
			Room: state.RoomInventoryBundle{Items: []item.Bundle{
				{ID: "i/lamp", Asset: assetstest.AssetTableLamp},
				{ID: "i/old", Asset: "a/retired/poster"},
			}},
			Characters: map[state.CharacterID]state.AppearanceBundle{
				"c1": {Items: []item.Bundle{
					{ID: "i/body", Asset: assetstest.AssetBodyBase},
					{ID: "i/ghost", Asset: "a/retired/hat"},
				}},
			},
		}, nil)
		require.NoError(t, err)

		roomItems, ok := g.Items(state.RoomTarget())
		require.True(t, ok)
		require.Len(t, roomItems, 1)
		assert.Equal(t, item.ID("i/lamp"), roomItems[0].ID())

		charItems, ok := g.Items(state.CharacterTarget("c1"))
		require.True(t, ok)
		require.Len(t, charItems, 1)
	})

	t.Run("invalid state after pruning is fatal", func(t *testing.T) {
		_, err := state.Load(m, state.Bundle{
			Characters: map[state.CharacterID]state.AppearanceBundle{
				"c1": {Items: []item.Bundle{
					{ID: "i/1", Asset: assetstest.AssetBodyBase},
					{ID: "i/1", Asset: assetstest.AssetShirt},
				}},
			},
		}, nil)
		require.Error(t, err)
	})

	t.Run("invalid character id fails load", func(t *testing.T) {
		_, err := state.Load(m, state.Bundle{
			Characters: map[state.CharacterID]state.AppearanceBundle{"zebra": {}},
		}, nil)
		require.Error(t, err)
	})

	t.Run("stored pose is normalized", func(t *testing.T) {
		g, err := state.Load(m, state.Bundle{
			Characters: map[state.CharacterID]state.AppearanceBundle{
				"c1": {Pose: pose.Pose{
					Bones: map[string]int{"arm_l": 999, "tail": 5},
					Legs:  "flying",
				}},
			},
		}, nil)
		require.NoError(t, err)
		p := g.Character("c1").Pose()
		assert.Equal(t, pose.BoneMax, p.Bones["arm_l"])
		_, hasTail := p.Bones["tail"]
		assert.False(t, hasTail)
		assert.Equal(t, pose.LegsStanding, p.Legs)
	})
}

func TestGlobalStateProduce(t *testing.T) {
	m := assetstest.NewManager(t)

	base := state.NewGlobalState(m, nil, []*state.CharacterState{
		state.NewCharacterState("c1"),
		state.NewCharacterState("c2"),
	})

	t.Run("sibling shares untouched structure", func(t *testing.T) {
		lamp := item.New("i/lamp", m.GetAssetByID(assetstest.AssetTableLamp))
		next := base.WithRoomItems([]*item.Item{lamp})

		// Base unchanged.
		baseItems, _ := base.Items(state.RoomTarget())
		assert.Empty(t, baseItems)
		nextItems, _ := next.Items(state.RoomTarget())
		assert.Len(t, nextItems, 1)

		// Characters shared by pointer.
		assert.Same(t, base.Character("c1"), next.Character("c1"))
	})

	t.Run("character pose replacement", func(t *testing.T) {
		p := pose.Default()
		p.View = pose.ViewBack
		next, ok := base.WithCharacterPose("c1", p)
		require.True(t, ok)
		assert.Equal(t, pose.ViewBack, next.Character("c1").Pose().View)
		assert.Equal(t, pose.ViewFront, base.Character("c1").Pose().View)
	})

	t.Run("absent character fails", func(t *testing.T) {
		_, ok := base.WithCharacterItems("c9", nil)
		assert.False(t, ok)
	})

	t.Run("memo is per snapshot", func(t *testing.T) {
		calls := 0
		build := func() any { calls++; return calls }
		v1 := base.Memoize("c1", build)
		v2 := base.Memoize("c1", build)
		assert.Equal(t, v1, v2)
		assert.Equal(t, 1, calls)

		next := base.WithCharacter(state.NewCharacterState("c3"))
		_ = next.Memoize("c1", build)
		assert.Equal(t, 2, calls, "derived snapshot gets a fresh cache")
	})

	t.Run("export round trip", func(t *testing.T) {
		lamp := item.New("i/lamp", m.GetAssetByID(assetstest.AssetTableLamp))
		next := base.WithRoomItems([]*item.Item{lamp})
		reloaded, err := state.Load(m, next.Export(), nil)
		require.NoError(t, err)
		items, _ := reloaded.Items(state.RoomTarget())
		require.Len(t, items, 1)
		assert.Equal(t, item.ID("i/lamp"), items[0].ID())
		assert.NotNil(t, reloaded.Character("c2"))
	})
}
