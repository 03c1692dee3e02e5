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

// Package dotenv loads KEY=VALUE environment files.
//
// The format is one pair per line. Blank lines, lines starting with
// '#', and lines without '=' are ignored; keys and values are trimmed
// of surrounding whitespace. Values are taken literally: no quoting,
// escaping, or variable expansion.
package dotenv

import (
	"bufio"
	"os"
	"strings"
)

// Load reads the file at path and sets each pair into the process
// environment. Variables that are already set keep their value, so
// the real environment always wins over the file.
func Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, set := os.LookupEnv(k); set {
			continue
		}
		if err := os.Setenv(k, strings.TrimSpace(v)); err != nil {
			return err
		}
	}
	return sc.Err()
}
