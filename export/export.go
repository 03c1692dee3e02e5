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

// Package export reads exported chat history files.
//
// An export file is UTF-8 JSON with the shape
//
//	{"guild": {"id", "name"}, "channel": {"id"},
//	 "messages": [{"id", "content", "timestamp", "author": {"id", "name", "isBot"}}]}
//
// holding one channel's messages. Unknown fields are ignored and
// missing fields default to empty, zero or false. Files may be stored
// gzip- or zstd-compressed (see Load).
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Snowflake is a chat-service object id. Exports serialise ids as
// decimal strings, but older dumps carry bare numbers; both decode.
type Snowflake uint64

func (s *Snowflake) UnmarshalJSON(b []byte) error {
	raw := string(bytes.Trim(b, `"`))
	if raw == "" || raw == "null" {
		*s = 0
		return nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %s", b)
	}
	*s = Snowflake(v)
	return nil
}

// UTCTime is an ISO-8601 instant with an explicit UTC offset ("Z"
// included), normalised to UTC on decode. Null and missing timestamps
// decode to the zero time.
type UTCTime struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
}

func (t *UTCTime) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timeLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			t.Time = v.UTC()
			return nil
		}
	}
	return fmt.Errorf("timestamp %q: not ISO-8601 with an offset", s)
}

// Export is one parsed export file: a single channel's message stream
// plus the guild it belongs to.
type Export struct {
	Guild    Guild     `json:"guild"`
	Channel  Channel   `json:"channel"`
	Messages []Message `json:"messages"`
}

type Guild struct {
	ID   Snowflake `json:"id"`
	Name string    `json:"name"`
}

type Channel struct {
	ID Snowflake `json:"id"`
}

type Message struct {
	ID        Snowflake `json:"id"`
	Content   string    `json:"content"`
	Timestamp UTCTime   `json:"timestamp"`
	Author    Author    `json:"author"`
}

type Author struct {
	ID    Snowflake `json:"id"`
	Name  string    `json:"name"`
	IsBot bool      `json:"isBot"`
}

// ParseError describes a malformed input file. Line and Col are
// 1-based and set when the position is known (JSON syntax and type
// errors).
type ParseError struct {
	Path string
	Line int
	Col  int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d, column %d: %v", e.Path, e.Line, e.Col, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Decode parses export JSON. Failures are reported as *ParseError
// naming path and, where the decoder can tell, the position.
func Decode(data []byte, path string) (*Export, error) {
	ex := new(Export)
	if err := json.Unmarshal(data, ex); err != nil {
		pe := &ParseError{Path: path, Err: err}
		var syn *json.SyntaxError
		var typ *json.UnmarshalTypeError
		switch {
		case errors.As(err, &syn):
			pe.Line, pe.Col = lineCol(data, syn.Offset)
		case errors.As(err, &typ):
			pe.Line, pe.Col = lineCol(data, typ.Offset)
		}
		return nil, pe
	}
	return ex, nil
}

func lineCol(data []byte, off int64) (line, col int) {
	if off > int64(len(data)) {
		off = int64(len(data))
	}
	line, col = 1, 1
	for _, b := range data[:off] {
		if b == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}
