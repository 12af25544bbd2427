// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vestiary Contributors

package errutil_test

import (
	"testing"

	"github.com/samber/oops"

	"github.com/vestiary/vestiary/pkg/errutil"
)

func TestAssertErrorCode(t *testing.T) {
	err := oops.Code("ROOM_LOAD_FAILED").Errorf("load failed")
	errutil.AssertErrorCode(t, err, "ROOM_LOAD_FAILED")
}

func TestAssertErrorContext(t *testing.T) {
	err := oops.With("room_id", "lobby").Errorf("load failed")
	errutil.AssertErrorContext(t, err, "room_id", "lobby")
}
