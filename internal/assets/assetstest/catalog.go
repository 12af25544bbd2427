// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vestiary Contributors

// Package assetstest provides a small in-memory catalog for tests.
package assetstest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vestiary/vestiary/internal/assets"
	"github.com/vestiary/vestiary/internal/pose"
)

// Well-known asset ids in the test catalog.
const (
	AssetBodyBase  assets.AssetID = "a/body/base"
	AssetBodyHead  assets.AssetID = "a/body/head"
	AssetShirt     assets.AssetID = "a/clothing/shirt"
	AssetCuffs     assets.AssetID = "a/restraint/cuffs"
	AssetGag       assets.AssetID = "a/restraint/gag"
	AssetBackpack  assets.AssetID = "a/container/backpack"
	AssetTableLamp assets.AssetID = "a/furniture/lamp"
)

// NewManager builds the test catalog, failing the test on error.
func NewManager(t *testing.T) *assets.Manager {
	t.Helper()

	m, err := assets.NewManager(assets.ManagerConfig{
		Version: "1.2.0",
		Bones: []pose.BoneDefinition{
			{Name: "arm_l", Type: pose.BoneTypePose},
			{Name: "arm_r", Type: pose.BoneTypePose},
			{Name: "hips", Type: pose.BoneTypeBody},
		},
		Bodyparts: []assets.BodypartDefinition{
			{Name: "base"},
			{Name: "head"},
			{Name: "mouth"},
			{Name: "hair", AllowMultiple: true},
		},
		Assets: []*assets.Asset{
			{ID: AssetBodyBase, Name: "Body", Bodypart: "base"},
			{ID: AssetBodyHead, Name: "Head", Bodypart: "head"},
			{ID: AssetShirt, Name: "Shirt", ColorSlots: 2, RequireFreeHands: true},
			{
				ID:   AssetCuffs,
				Name: "Cuffs",
				Modules: map[string]assets.ModuleDefinition{
					"lock": {
						Type:    assets.ModuleTypeTyped,
						Default: "open",
						Variants: []assets.ModuleVariant{
							{Name: "open"},
							{
								Name:           "closed",
								Properties:     assets.Properties{BlockHands: true},
								ChatDescriptor: "lockClose",
							},
						},
					},
				},
			},
			{
				ID:       AssetGag,
				Name:     "Gag",
				Bodypart: "mouth",
				Properties: assets.Properties{
					MuffleMouth: 5,
				},
			},
			{
				ID:   AssetBackpack,
				Name: "Backpack",
				Modules: map[string]assets.ModuleDefinition{
					"pockets": {Type: assets.ModuleTypeStorage, Capacity: 3},
					"straps":  {Type: assets.ModuleTypeStorage, Capacity: 1, Equipped: true},
				},
			},
			{ID: AssetTableLamp, Name: "Lamp", ColorSlots: 1},
		},
		Presets: []pose.PresetCategory{
			{Category: "Basic", Poses: []pose.Preset{{Name: "Neutral"}}},
		},
	})
	require.NoError(t, err)
	return m
}
