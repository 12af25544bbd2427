// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vestiary Contributors

package room

import (
	"hash/fnv"
	"strings"
	"unicode"
)

// MaxMuffleStrength caps the muffle scale; at this strength every
// letter is replaced.
const MaxMuffleStrength = 10

// MuffleSpokenText degrades speech according to the gag strength on a
// 1 to 10 scale. The transform is a pure function of text and
// strength; every recipient sees the same muffled output, and
// repeating the call never changes the result.
func MuffleSpokenText(text string, strength int) string {
	if strength <= 0 {
		return text
	}
	if strength > MaxMuffleStrength {
		strength = MaxMuffleStrength
	}

	var out strings.Builder
	out.Grow(len(text))
	for i, r := range text {
		if !unicode.IsLetter(r) {
			out.WriteRune(r)
			continue
		}
		if !muffled(text, i, strength) {
			out.WriteRune(r)
			continue
		}
		sub := muffleSound(r)
		if unicode.IsUpper(r) {
			sub = unicode.ToUpper(sub)
		}
		out.WriteRune(sub)
	}
	return out.String()
}

// muffled decides deterministically whether the letter at byte offset
// i is replaced. Strength n replaces n out of every 10 letters.
func muffled(text string, i, strength int) bool {
	h := fnv.New32a()
	h.Write([]byte{byte(i), byte(i >> 8), byte(i >> 16), byte(i >> 24)})
	h.Write([]byte(text))
	return int(h.Sum32()%MaxMuffleStrength) < strength
}

// muffleSound maps a letter to the closed-mouth sound it comes out as.
func muffleSound(r rune) rune {
	switch unicode.ToLower(r) {
	case 'a', 'e', 'i', 'o', 'u', 'y':
		return 'm'
	default:
		return 'h'
	}
}
