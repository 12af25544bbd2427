// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vestiary Contributors

package state

import (
	"encoding/json"
	"path"
	"reflect"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
)

// GenerateBundleSchema reflects the stored bundle format into a JSON
// schema. The output documents the rows the store persists and the
// state snapshot sent to clients at join.
func GenerateBundleSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		// item.Bundle and state.Bundle share a bare type name;
		// qualify $defs keys by package to keep them distinct.
		Namer: func(t reflect.Type) string {
			if t.Name() == "" || t.PkgPath() == "" {
				return ""
			}
			return path.Base(t.PkgPath()) + "." + t.Name()
		},
	}
	schema := r.Reflect(&Bundle{})
	schema.Title = "Vestiary State Bundle"
	schema.Description = "Serialized room inventory and character appearances"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.In("state").Wrapf(err, "marshal bundle schema")
	}
	return data, nil
}
