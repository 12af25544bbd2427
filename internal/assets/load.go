// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vestiary Contributors

package assets

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/vestiary/vestiary/internal/pose"
)

//go:embed catalog.schema.json
var catalogSchemaJSON []byte

// schemaCache holds the compiled schema to avoid recompilation.
var schemaCache *jschema.Schema

// catalogFile is the on-disk YAML layout of one catalog document.
// Multiple documents merge; version must agree across all of them.
type catalogFile struct {
	Version   string                `yaml:"version"`
	Bones     []pose.BoneDefinition `yaml:"bones"`
	Bodyparts []BodypartDefinition  `yaml:"bodyparts"`
	Assets    []*Asset              `yaml:"assets"`
	Presets   []pose.PresetCategory `yaml:"presets"`
}

// compiledSchema returns the cached compiled catalog schema.
func compiledSchema() (*jschema.Schema, error) {
	if schemaCache != nil {
		return schemaCache, nil
	}

	var schemaData any
	if err := json.Unmarshal(catalogSchemaJSON, &schemaData); err != nil {
		return nil, fmt.Errorf("parse embedded catalog schema: %w", err)
	}

	c := jschema.NewCompiler()
	if err := c.AddResource("catalog.schema.json", schemaData); err != nil {
		return nil, fmt.Errorf("add catalog schema resource: %w", err)
	}
	sch, err := c.Compile("catalog.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile catalog schema: %w", err)
	}

	schemaCache = sch
	return sch, nil
}

// validateDocument checks one YAML document against the catalog schema.
func validateDocument(data []byte) error {
	var yamlData any
	if err := yaml.Unmarshal(data, &yamlData); err != nil {
		return fmt.Errorf("invalid YAML: %w", err)
	}

	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	if err := sch.Validate(jsonCompatible(yamlData)); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// jsonCompatible rewrites YAML-decoded values into the shapes the
// schema validator expects. yaml.v3 already yields map[string]any, so
// only nested containers need the recursive walk.
func jsonCompatible(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = jsonCompatible(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = jsonCompatible(item)
		}
		return out
	default:
		return val
	}
}

// ParseCatalog parses and validates a single catalog document.
func ParseCatalog(data []byte) (*ManagerConfig, error) {
	if err := validateDocument(data); err != nil {
		return nil, err
	}
	var file catalogFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return &ManagerConfig{
		Version:   file.Version,
		Assets:    file.Assets,
		Bones:     file.Bones,
		Bodyparts: file.Bodyparts,
		Presets:   file.Presets,
	}, nil
}

// LoadDirectory reads every *.yaml file in dir (sorted by name),
// validates each against the catalog schema, and builds a Manager.
// Any invalid file is a hard error; the catalog never loads partially.
func LoadDirectory(dir string) (*Manager, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read catalog directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil, fmt.Errorf("no catalog files in %s", dir)
	}

	var merged ManagerConfig
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read catalog file %s: %w", name, err)
		}
		cfg, err := ParseCatalog(data)
		if err != nil {
			return nil, fmt.Errorf("catalog file %s: %w", name, err)
		}
		if merged.Version == "" {
			merged.Version = cfg.Version
		} else if merged.Version != cfg.Version {
			return nil, fmt.Errorf("catalog file %s: version %q differs from %q", name, cfg.Version, merged.Version)
		}
		merged.Assets = append(merged.Assets, cfg.Assets...)
		merged.Bones = append(merged.Bones, cfg.Bones...)
		merged.Bodyparts = append(merged.Bodyparts, cfg.Bodyparts...)
		merged.Presets = append(merged.Presets, cfg.Presets...)
	}

	return NewManager(merged)
}
