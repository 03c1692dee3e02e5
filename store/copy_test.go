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

import (
	"math"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/vycdev/chatxp/ingest"
)

func TestNumericID(t *testing.T) {
	n := numericID(math.MaxUint64)
	if !n.Valid {
		t.Fatal("not valid")
	}
	if got := n.Int.String(); got != "18446744073709551615" {
		t.Errorf("MaxUint64: got %s", got)
	}
	if n.Exp != 0 {
		t.Errorf("Exp = %d, want 0", n.Exp)
	}
	if got := numericID(0).Int.String(); got != "0" {
		t.Errorf("zero: got %s", got)
	}
}

func TestActivityValues(t *testing.T) {
	at := time.Date(2023, 4, 5, 6, 7, 8, 0, time.UTC)
	row := &ingest.Row{
		ChannelID:   math.MaxUint64,
		GuildID:     3,
		UserID:      4,
		At:          at,
		Hash:        "aGFzaA==",
		Length:      42,
		Sim:         -9, // unsigned fingerprint reinterpreted
		NormLen:     40,
		XP:          5,
		GuildAvgLen: 17.5,
		GuildCount:  900,
	}
	vals := activityValues(row)
	if len(vals) != len(activityColumns) {
		t.Fatalf("%d values for %d columns", len(vals), len(activityColumns))
	}
	if got := vals[0].(pgtype.Numeric).Int.String(); got != "18446744073709551615" {
		t.Errorf("channel id: got %s", got)
	}
	if vals[1] != int64(3) || vals[2] != int64(4) {
		t.Errorf("ids: got %v, %v", vals[1], vals[2])
	}
	if !vals[3].(time.Time).Equal(at) {
		t.Errorf("timestamp: got %v", vals[3])
	}
	if vals[4] != "aGFzaA==" || vals[5] != 42 || vals[6] != int64(-9) || vals[7] != 40 {
		t.Errorf("hash block: got %v %v %v %v", vals[4], vals[5], vals[6], vals[7])
	}
	if vals[8] != 5 || vals[9] != 17.5 || vals[10] != int64(900) {
		t.Errorf("stats block: got %v %v %v", vals[8], vals[9], vals[10])
	}
}

func TestCopySourceDrains(t *testing.T) {
	ch := make(chan []any, 2)
	ch <- []any{1}
	ch <- []any{2}
	close(ch)

	src := &copySource{rows: ch}
	for want := 1; want <= 2; want++ {
		if !src.Next() {
			t.Fatalf("Next() = false before row %d", want)
		}
		vals, err := src.Values()
		if err != nil {
			t.Fatal(err)
		}
		if len(vals) != 1 || vals[0] != want {
			t.Fatalf("row %d: got %v", want, vals)
		}
	}
	if src.Next() {
		t.Fatal("Next() = true after close")
	}
	if src.Next() {
		t.Fatal("Next() = true on second call after close")
	}
	if src.Err() != nil {
		t.Fatal(src.Err())
	}
}
