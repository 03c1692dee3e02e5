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

package simhash

import (
	"math/bits"
	"unicode/utf16"
)

const (
	fnvOffset = 14695981039346656037
	fnvPrime  = 1099511628211
)

// fnv1a hashes a trigram of UTF-16 code units, low byte before high
// byte for each unit. The byte order is part of the persisted
// fingerprint definition.
func fnv1a(units []uint16) uint64 {
	h := uint64(fnvOffset)
	for _, u := range units {
		h ^= uint64(u & 0xff)
		h *= fnvPrime
		h ^= uint64(u >> 8)
		h *= fnvPrime
	}
	return h
}

// Hash computes the 64-bit SimHash of text and returns it together
// with the length of text in UTF-16 code units. Callers normalise the
// text first; Hash fingerprints exactly what it is given.
//
// The hash slides a window of three UTF-16 code units over the text
// (code points above the BMP count as their surrogate pair, so the
// result is stable across string encodings), FNV-1a hashes each
// window, and accumulates per-bit votes. Texts shorter than one
// window hash to zero.
func Hash(text string) (sim uint64, n int) {
	units := utf16.Encode([]rune(text))
	n = len(units)
	if n < 3 {
		return 0, n
	}
	var weights [64]int32
	for i := 0; i+3 <= n; i++ {
		h := fnv1a(units[i : i+3])
		for b := 0; b < 64; b++ {
			if h&(1<<b) != 0 {
				weights[b]++
			} else {
				weights[b]--
			}
		}
	}
	for b := 0; b < 64; b++ {
		if weights[b] >= 0 {
			sim |= 1 << b
		}
	}
	return sim, n
}

// Distance returns the Hamming distance between two SimHash values.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}
