// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vestiary Contributors

package assets

import (
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/vestiary/vestiary/internal/pose"
)

// Manager is the versioned, immutable asset catalog. It is safe for
// concurrent use without synchronization once constructed.
type Manager struct {
	version   *semver.Version
	assets    map[AssetID]*Asset
	bones     []pose.BoneDefinition
	boneIndex map[string]*pose.BoneDefinition
	bodyparts []BodypartDefinition
	bodyIndex map[string]*BodypartDefinition
	presets   []pose.PresetCategory
}

// ManagerConfig is the raw material for a catalog.
type ManagerConfig struct {
	Version   string
	Assets    []*Asset
	Bones     []pose.BoneDefinition
	Bodyparts []BodypartDefinition
	Presets   []pose.PresetCategory
}

// NewManager validates the config and builds an immutable catalog.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	version, err := semver.NewVersion(cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("catalog version %q: %w", cfg.Version, err)
	}

	m := &Manager{
		version:   version,
		assets:    make(map[AssetID]*Asset, len(cfg.Assets)),
		bones:     cfg.Bones,
		boneIndex: make(map[string]*pose.BoneDefinition, len(cfg.Bones)),
		bodyparts: cfg.Bodyparts,
		bodyIndex: make(map[string]*BodypartDefinition, len(cfg.Bodyparts)),
		presets:   cfg.Presets,
	}

	for i := range cfg.Bones {
		bone := &cfg.Bones[i]
		if _, dup := m.boneIndex[bone.Name]; dup {
			return nil, fmt.Errorf("duplicate bone %q", bone.Name)
		}
		m.boneIndex[bone.Name] = bone
	}
	for i := range cfg.Bodyparts {
		bp := &cfg.Bodyparts[i]
		if _, dup := m.bodyIndex[bp.Name]; dup {
			return nil, fmt.Errorf("duplicate bodypart %q", bp.Name)
		}
		m.bodyIndex[bp.Name] = bp
	}
	for _, asset := range cfg.Assets {
		if err := asset.Validate(); err != nil {
			return nil, err
		}
		if _, dup := m.assets[asset.ID]; dup {
			return nil, fmt.Errorf("duplicate asset %s", asset.ID)
		}
		if asset.Bodypart != "" {
			if _, known := m.bodyIndex[asset.Bodypart]; !known {
				return nil, fmt.Errorf("asset %s references unknown bodypart %q", asset.ID, asset.Bodypart)
			}
		}
		m.assets[asset.ID] = asset
	}

	return m, nil
}

// Version returns the catalog version.
func (m *Manager) Version() *semver.Version {
	return m.version
}

// GetAssetByID returns the asset definition, or nil if unknown.
func (m *Manager) GetAssetByID(id AssetID) *Asset {
	return m.assets[id]
}

// AllBones returns the declared bones in catalog order.
func (m *Manager) AllBones() []pose.BoneDefinition {
	return m.bones
}

// Bone returns the named bone definition, or nil.
func (m *Manager) Bone(name string) *pose.BoneDefinition {
	return m.boneIndex[name]
}

// Bodyparts returns the bodypart slots in canonical worn order.
func (m *Manager) Bodyparts() []BodypartDefinition {
	return m.bodyparts
}

// Bodypart returns the named bodypart definition, or nil.
func (m *Manager) Bodypart(name string) *BodypartDefinition {
	return m.bodyIndex[name]
}

// BodypartOrder returns the canonical position of the named bodypart,
// or -1 if unknown.
func (m *Manager) BodypartOrder(name string) int {
	for i := range m.bodyparts {
		if m.bodyparts[i].Name == name {
			return i
		}
	}
	return -1
}

// PosePresets returns the preset groups for client display.
func (m *Manager) PosePresets() []pose.PresetCategory {
	return m.presets
}
