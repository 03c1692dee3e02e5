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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"sigs.k8s.io/yaml"
)

// Default tuning knobs, used wherever a Definition (or flag) leaves
// one unset.
const (
	DefaultWindow    = 10 * time.Minute
	DefaultSmoothing = 500
	DefaultRecentCap = 200
)

// Definition is an import definition file: tuning knobs plus optional
// input locations. JSON and YAML both decode.
type Definition struct {
	// WindowMinutes is the similarity window; 0 means DefaultWindow.
	WindowMinutes int `json:"window_minutes,omitempty"`
	// SmoothingN is the EMA smoothing constant; 0 means DefaultSmoothing.
	SmoothingN int `json:"smoothing_n,omitempty"`
	// RecentCap bounds each user's fingerprint window; 0 means
	// DefaultRecentCap.
	RecentCap int `json:"recent_cap,omitempty"`
	// Inputs lists export files or directories to import, in order.
	Inputs []Input `json:"input,omitempty"`
}

// Input is one entry of Definition.Inputs: either a single file, or a
// directory scanned with a pattern.
type Input struct {
	File    string `json:"file,omitempty"`
	Dir     string `json:"dir,omitempty"`
	Pattern string `json:"pattern,omitempty"`
}

// a definition larger than this is almost certainly a mistaken path
const maxDefSize = 1024 * 1024

// DecodeDefinition decodes a definition in the format implied by ext
// (".json", ".yaml", ".yml"; empty tries YAML, which accepts both).
func DecodeDefinition(src io.Reader, ext string) (*Definition, error) {
	data, err := io.ReadAll(io.LimitReader(src, maxDefSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxDefSize {
		return nil, fmt.Errorf("definition exceeds %d bytes", maxDefSize)
	}
	def := new(Definition)
	switch ext {
	case ".json":
		err = json.Unmarshal(data, def)
	case ".yaml", ".yml", "":
		err = yaml.Unmarshal(data, def)
	default:
		return nil, fmt.Errorf("unsupported definition format %q", ext)
	}
	if err != nil {
		return nil, err
	}
	return def, nil
}

// OpenDefinition reads the definition file at path.
func OpenDefinition(path string) (*Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	def, err := DecodeDefinition(f, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Window returns the effective similarity window. Safe on nil.
func (d *Definition) Window() time.Duration {
	if d == nil || d.WindowMinutes <= 0 {
		return DefaultWindow
	}
	return time.Duration(d.WindowMinutes) * time.Minute
}

// Smoothing returns the effective EMA constant N. Safe on nil.
func (d *Definition) Smoothing() int {
	if d == nil || d.SmoothingN <= 0 {
		return DefaultSmoothing
	}
	return d.SmoothingN
}

// Cap returns the effective fingerprint window cap. Safe on nil.
func (d *Definition) Cap() int {
	if d == nil || d.RecentCap <= 0 {
		return DefaultRecentCap
	}
	return d.RecentCap
}
