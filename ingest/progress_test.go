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

package ingest

import (
	"bytes"
	"strings"
	"testing"
)

func TestProgressDraw(t *testing.T) {
	var buf bytes.Buffer
	p := newProgress(&buf, 100)
	p.Add(50)
	p.Finish()

	out := buf.String()
	if !strings.HasSuffix(out, "\n") {
		t.Error("missing trailing newline")
	}
	if !strings.Contains(out, "50/100") {
		t.Errorf("missing counter: %q", out)
	}
	if !strings.Contains(out, strings.Repeat("#", 15)+strings.Repeat("-", 15)) {
		t.Errorf("missing half-full bar: %q", out)
	}
	if !strings.Contains(out, " 50.0%") {
		t.Errorf("missing percentage: %q", out)
	}
	if !strings.Contains(out, "ETA") {
		t.Errorf("missing ETA: %q", out)
	}
}

func TestProgressOverflowClamps(t *testing.T) {
	var buf bytes.Buffer
	p := newProgress(&buf, 10)
	p.Add(25)
	p.Finish()
	if !strings.Contains(buf.String(), "10/10") {
		t.Errorf("overshoot not clamped: %q", buf.String())
	}
}

func TestProgressNilSafe(t *testing.T) {
	var p *progress
	p.Add(1)
	p.Finish()

	if newProgress(nil, 10) != nil {
		t.Error("nil writer should disable the bar")
	}
	var buf bytes.Buffer
	if newProgress(&buf, 0) != nil {
		t.Error("zero total should disable the bar")
	}
}
