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
	"encoding/base64"
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Content returns the exact-duplicate fingerprint of a raw message:
// the standard base64 encoding of the little-endian xxh64 digest of
// its UTF-8 bytes. The result is always 12 characters and ends with
// one '=' of padding.
func Content(s string) string {
	var d [8]byte
	binary.LittleEndian.PutUint64(d[:], xxhash.Sum64String(s))
	return base64.StdEncoding.EncodeToString(d[:])
}
