// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vestiary Contributors

package state

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateBundleSchema(t *testing.T) {
	data, err := GenerateBundleSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))
	assert.Equal(t, "Vestiary State Bundle", schema["title"])
	assert.Contains(t, schema, "$defs")

	defs, ok := schema["$defs"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, defs, "state.Bundle")
	assert.Contains(t, defs, "state.AppearanceBundle")
	assert.Contains(t, defs, "state.RoomInventoryBundle")
	assert.Contains(t, defs, "item.Bundle")
}
