// Copyright 2025 vycdev.
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

// Package simhash implements the message fingerprints used by the
// activity pipeline: a Unicode text normaliser, a 64-bit SimHash over
// the normalised text, and an exact-duplicate content hash.
//
// The fingerprints are persisted and compared against history, so
// their definitions are frozen: Normalize, Hash and Content must keep
// producing identical output for the same input across releases.
package simhash

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize maps text to its canonical comparison form: compatibility
// decomposition (NFKD) followed by lowercasing, whitespace runs
// collapsed to a single ASCII space, combining marks (Mn, Mc) and the
// punctuation, symbol and control-like categories (P*, S*, C*)
// removed, decimal digits replaced with '0', and leading/trailing
// spaces trimmed.
//
// Whitespace is detected before the category filter so that control
// whitespace such as '\n' still collapses into a space. Any
// non-whitespace character ends the current whitespace run, including
// characters the category filter then drops, so "a ! b" keeps both
// spaces. U+FE0F (VS16), U+200D (ZWJ) and U+200B (ZWSP) are dropped
// explicitly.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	folded := strings.ToLower(norm.NFKD.String(s))
	var b strings.Builder
	b.Grow(len(folded))
	space := false
	for _, r := range folded {
		if unicode.IsSpace(r) {
			if !space {
				b.WriteByte(' ')
				space = true
			}
			continue
		}
		space = false
		switch {
		case unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r):
			continue
		case r == '\uFE0F' || r == '\u200D' || r == '\u200B':
			continue
		case unicode.In(r, unicode.P, unicode.S, unicode.C):
			continue
		case unicode.IsDigit(r):
			r = '0'
		}
		b.WriteRune(r)
	}
	return strings.Trim(b.String(), " ")
}

// UTF16Len returns the length of s in UTF-16 code units, which is the
// length unit of the persisted message rows.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}
