// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vestiary Contributors

// Package restriction derives read-only policy views from character
// appearances: who may touch which items, whether hands are usable,
// and how strongly speech is muffled.
package restriction

import (
	"sync"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/vestiary/vestiary/internal/state"
)

// compiledPermission holds a permission pattern and its compiled glob.
type compiledPermission struct {
	pattern string
	glob    glob.Glob
}

// Roles maps characters to named roles whose permission patterns gate
// item interactions. Patterns use ':' separated segments with glob
// wildcards, e.g. "character:*:items:addRemove".
//
// Thread-safety: roles is immutable after construction; subjects and
// safemode are protected by mu.
type Roles struct {
	roles    map[string][]compiledPermission
	subjects map[state.CharacterID]string
	safemode map[state.CharacterID]bool
	mu       sync.RWMutex
}

// DefaultRoleName is assigned to characters without an explicit role.
const DefaultRoleName = "member"

// DefaultRoles returns the built-in role definitions.
func DefaultRoles() map[string][]string {
	return map[string][]string{
		// Members act freely on themselves and the room, and may only
		// look at other characters' items.
		"member": {
			"self:items:*",
			"room:items:*",
			"character:*:items:access",
		},
		// Moderators additionally act on other characters.
		"moderator": {
			"self:items:*",
			"room:items:*",
			"character:*:items:*",
		},
	}
}

// NewRoles compiles role definitions. Returns an error on an invalid
// glob pattern.
func NewRoles(defs map[string][]string) (*Roles, error) {
	compiled := make(map[string][]compiledPermission, len(defs))
	for role, patterns := range defs {
		perms := make([]compiledPermission, 0, len(patterns))
		for _, p := range patterns {
			g, err := glob.Compile(p, ':')
			if err != nil {
				return nil, oops.In("restriction").
					Code("INVALID_PERMISSION_PATTERN").
					With("role", role).
					With("pattern", p).
					Wrap(err)
			}
			perms = append(perms, compiledPermission{pattern: p, glob: g})
		}
		compiled[role] = perms
	}
	return &Roles{
		roles:    compiled,
		subjects: make(map[state.CharacterID]string),
		safemode: make(map[state.CharacterID]bool),
	}, nil
}

// MustDefaultRoles builds the default role set. The patterns are
// hardcoded; a compile failure is a code bug worth failing fast on.
func MustDefaultRoles() *Roles {
	r, err := NewRoles(DefaultRoles())
	if err != nil {
		panic("invalid permission pattern in DefaultRoles: " + err.Error())
	}
	return r
}

// Assign gives the character a role. Unknown roles fall back to the
// default at check time.
func (r *Roles) Assign(id state.CharacterID, role string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subjects[id] = role
}

// SetSafemode marks or unmarks a character as being in safe-mode.
func (r *Roles) SetSafemode(id state.CharacterID, on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if on {
		r.safemode[id] = true
	} else {
		delete(r.safemode, id)
	}
}

// InSafemode reports whether the character is in safe-mode.
func (r *Roles) InSafemode(id state.CharacterID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.safemode[id]
}

// Check reports whether the subject's role grants the resource.
func (r *Roles) Check(subject state.CharacterID, resource string) bool {
	r.mu.RLock()
	role, ok := r.subjects[subject]
	r.mu.RUnlock()
	if !ok {
		role = DefaultRoleName
	}
	perms, ok := r.roles[role]
	if !ok {
		perms = r.roles[DefaultRoleName]
	}
	for _, p := range perms {
		if p.glob.Match(resource) {
			return true
		}
	}
	return false
}
