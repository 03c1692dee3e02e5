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

package dotenv

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := `
# database
DOTENV_TEST_DSN = Host=localhost;Database=bot
DOTENV_TEST_EMPTY=
DOTENV_TEST_EQ=a=b=c

not a pair
=nokey
DOTENV_TEST_KEPT=from-file
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOTENV_TEST_KEPT", "from-env")
	for _, key := range []string{"DOTENV_TEST_DSN", "DOTENV_TEST_EMPTY", "DOTENV_TEST_EQ"} {
		os.Unsetenv(key)
		t.Cleanup(func() { os.Unsetenv(key) })
	}

	if err := Load(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("DOTENV_TEST_DSN"); got != "Host=localhost;Database=bot" {
		t.Errorf("DSN = %q", got)
	}
	// values keep everything after the first '='
	if got := os.Getenv("DOTENV_TEST_EQ"); got != "a=b=c" {
		t.Errorf("EQ = %q", got)
	}
	if v, set := os.LookupEnv("DOTENV_TEST_EMPTY"); !set || v != "" {
		t.Errorf("EMPTY = %q (set=%v)", v, set)
	}
	// the process environment wins over the file
	if got := os.Getenv("DOTENV_TEST_KEPT"); got != "from-env" {
		t.Errorf("KEPT = %q", got)
	}
}

func TestLoadMissing(t *testing.T) {
	if err := Load(filepath.Join(t.TempDir(), "nope.env")); !os.IsNotExist(err) {
		t.Errorf("err = %v, want not-exist", err)
	}
}
