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

package export

import (
	"bytes"
	"compress/gzip"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"
)

// decompressors maps compression suffixes to stream decoders. A plain
// .json file has no entry and is read as-is.
var decompressors = map[string]func(r io.Reader) (io.Reader, error){
	".gz": func(r io.Reader) (io.Reader, error) {
		return gzip.NewReader(r)
	},
	".zst": func(r io.Reader) (io.Reader, error) {
		zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	},
}

// Load reads, decompresses and parses the export at path. The second
// return value is a content tag: the hex BLAKE2b-256 digest of the
// file bytes as stored, usable to spot re-imports of the same dump.
func Load(path string) (*Export, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	sum := blake2b.Sum256(raw)
	etag := hex.EncodeToString(sum[:])

	data := raw
	if dec := decompressors[strings.ToLower(filepath.Ext(path))]; dec != nil {
		r, err := dec(bytes.NewReader(raw))
		if err != nil {
			return nil, "", &ParseError{Path: path, Err: err}
		}
		data, err = io.ReadAll(r)
		if c, ok := r.(io.Closer); ok {
			c.Close()
		}
		if err != nil {
			return nil, "", &ParseError{Path: path, Err: err}
		}
	}

	ex, err := Decode(data, path)
	if err != nil {
		return nil, "", err
	}
	return ex, etag, nil
}
