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
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
)

const sample = `{"guild":{"id":"1","name":"g"},"channel":{"id":"2"},
"messages":[{"id":"3","content":"hey","timestamp":"2021-01-02T03:04:05Z",
"author":{"id":"4","name":"u","isBot":false}}]}`

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, data, 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func checkSample(t *testing.T, ex *Export) {
	t.Helper()
	if ex.Guild.ID != 1 || ex.Channel.ID != 2 || len(ex.Messages) != 1 {
		t.Fatalf("bad export: %+v", ex)
	}
	if ex.Messages[0].Content != "hey" {
		t.Fatalf("content: %q", ex.Messages[0].Content)
	}
}

func TestLoadPlain(t *testing.T) {
	p := writeFile(t, "chan.json", []byte(sample))
	ex, etag, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	checkSample(t, ex)
	if len(etag) != 64 {
		t.Errorf("etag %q: want 64 hex chars", etag)
	}
	_, etag2, err := Load(p)
	if err != nil || etag2 != etag {
		t.Errorf("etag unstable: %q then %q (%v)", etag, etag2, err)
	}
}

func TestLoadGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(sample)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	p := writeFile(t, "chan.json.gz", buf.Bytes())
	ex, _, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	checkSample(t, ex)
}

func TestLoadZstd(t *testing.T) {
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := zw.Write([]byte(sample)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	p := writeFile(t, "chan.json.zst", buf.Bytes())
	ex, _, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	checkSample(t, ex)
}

func TestLoadCorruptGzip(t *testing.T) {
	p := writeFile(t, "chan.json.gz", []byte("definitely not gzip"))
	if _, _, err := Load(p); err == nil {
		t.Fatal("corrupt gzip accepted")
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.json", "a.json", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "c.json"), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	files, err := Discover(dir, "*.json")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("got %v, want two files", files)
	}
	// Name order, and nothing from the subdirectory.
	if filepath.Base(files[0]) != "a.json" || filepath.Base(files[1]) != "b.json" {
		t.Errorf("got %v", files)
	}

	none, err := Discover(dir, "*.xml")
	if err != nil || len(none) != 0 {
		t.Errorf("got %v, %v; want empty", none, err)
	}

	if _, err := Discover(dir, "["); err == nil {
		t.Error("bad pattern accepted")
	}
}
