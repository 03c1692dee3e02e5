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

package store

import "strings"

// dsnKeys maps Npgsql connection-string keys (lowercased) to the libpq
// keywords pgx understands. Keys not listed here are ignored.
var dsnKeys = map[string]string{
	"host":            "host",
	"server":          "host",
	"hostname":        "host",
	"port":            "port",
	"username":        "user",
	"user id":         "user",
	"userid":          "user",
	"user":            "user",
	"password":        "password",
	"pwd":             "password",
	"database":        "dbname",
	"initial catalog": "dbname",
	"ssl mode":        "sslmode",
}

// dsnOrder is the emit order of translated keywords.
var dsnOrder = [...]string{"host", "port", "user", "password", "dbname", "sslmode"}

// ParseDSN normalizes a connection string for pgx. postgres:// and
// postgresql:// URLs pass through untouched; anything else is treated
// as an Npgsql-style "Key=Value;..." string and translated to libpq
// keyword syntax. Pairs without '=' and unknown keys are skipped; an
// empty input stays empty.
func ParseDSN(s string) string {
	s = strings.TrimSpace(s)
	if s == "" ||
		strings.HasPrefix(s, "postgres://") ||
		strings.HasPrefix(s, "postgresql://") {
		return s
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.TrimSpace(v)
		dst, ok := dsnKeys[k]
		if !ok {
			continue
		}
		if k == "ssl mode" {
			v = sslMode(v)
		}
		out[dst] = v
	}
	var parts []string
	for _, key := range dsnOrder {
		if v := out[key]; v != "" {
			parts = append(parts, key+"="+v)
		}
	}
	return strings.Join(parts, " ")
}

// sslMode folds the Npgsql Ssl Mode spellings onto libpq values.
func sslMode(v string) string {
	switch v = strings.ToLower(v); v {
	case "disable", "disabled":
		return "disable"
	case "require", "required":
		return "require"
	default:
		return v
	}
}
