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

import "testing"

func TestParseDSN(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		// URLs pass through untouched
		{"postgres://app:pw@db:5432/morpheus", "postgres://app:pw@db:5432/morpheus"},
		{"postgresql://db/morpheus?sslmode=disable", "postgresql://db/morpheus?sslmode=disable"},
		// Npgsql keyword pairs
		{
			"Host=localhost;Port=5432;Username=morpheus;Password=secret;Database=morpheus",
			"host=localhost port=5432 user=morpheus password=secret dbname=morpheus",
		},
		// key aliases
		{
			"Server=db.example.com;User Id=app;Pwd=hunter2;Initial Catalog=prod",
			"host=db.example.com user=app password=hunter2 dbname=prod",
		},
		{"Hostname=h;UserId=u", "host=h user=u"},
		// emit order is fixed regardless of input order
		{
			"Database=d;Password=p;Port=1;Host=h;Username=u",
			"host=h port=1 user=u password=p dbname=d",
		},
		// later duplicates win
		{"Host=a;Server=b", "host=b"},
		// unknown keys and malformed pairs are dropped
		{"Host=h;Pooling=true;Timeout=15;garbage;=", "host=h"},
		// blanks and stray separators
		{" Host = h ; ; Port = 5433 ", "host=h port=5433"},
		// empty values are dropped
		{"Host=;Port=5432", "port=5432"},
		{"", ""},
		{"   ", ""},
	}
	for _, c := range cases {
		if got := ParseDSN(c.in); got != c.want {
			t.Errorf("ParseDSN(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseDSNSslMode(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Disable", "disable"},
		{"Disabled", "disable"},
		{"Require", "require"},
		{"Required", "require"},
		{"Prefer", "prefer"},
		// unrecognized values pass through lowered
		{"VerifyFull", "verifyfull"},
	}
	for _, c := range cases {
		got := ParseDSN("Host=h;Ssl Mode=" + c.in)
		want := "host=h sslmode=" + c.want
		if got != want {
			t.Errorf("Ssl Mode=%s: got %q, want %q", c.in, got, want)
		}
	}
}
