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

package xp

import (
	"strings"
	"testing"
	"time"

	"github.com/vycdev/chatxp/simhash"
)

var t0 = time.Date(2021, 10, 26, 17, 50, 4, 0, time.UTC)

func TestRateFirstMessage(t *testing.T) {
	// No history at all: length ratio falls back to 1, no penalties,
	// so xp = floor(1 + 4*log(1.025)/log(1.025)) = 5.
	sc := Rate("hello world", t0, Context{})
	if sc.XP != 5 {
		t.Errorf("xp: got %d, want 5", sc.XP)
	}
	if sc.Length != 11 || sc.NormLen != 11 {
		t.Errorf("lengths: got (%d, %d), want (11, 11)", sc.Length, sc.NormLen)
	}
	if len(sc.Hash) != 12 {
		t.Errorf("hash %q: want 12 chars", sc.Hash)
	}
	if sc.Sim == 0 {
		t.Error("simhash is zero for an 11-unit text")
	}
}

func TestRateEmptyContent(t *testing.T) {
	sc := Rate("", t0, Context{})
	if sc.Length != 0 || sc.NormLen != 0 || sc.Sim != 0 {
		t.Errorf("got %+v, want zero lengths and simhash", sc)
	}
	// Without guild history the ratio is still 1, so even an empty
	// message lands the full first-message score.
	if sc.XP != 5 {
		t.Errorf("xp: got %d, want 5", sc.XP)
	}
	// With an established average the ratio is 0 and only the base
	// point survives.
	sc = Rate("", t0, Context{Guild: GuildStats{AvgLen: 20, Count: 10}})
	if sc.XP != 1 {
		t.Errorf("xp with history: got %d, want 1", sc.XP)
	}
}

func TestRateExactDuplicate(t *testing.T) {
	prev := &PrevActivity{At: t0, Hash: simhash.Content("hello")}
	sc := Rate("hello", t0.Add(30*time.Second), Context{Prev: prev})
	if sc.XP != 0 {
		t.Errorf("duplicate within 60s: got %d, want 0", sc.XP)
	}
	// At exactly 60s the duplicate check no longer applies and the
	// keystroke gap is long saturated.
	sc = Rate("hello", t0.Add(60*time.Second), Context{Prev: prev})
	if sc.XP != 5 {
		t.Errorf("duplicate at 60s: got %d, want 5", sc.XP)
	}
	// Different content inside the window is not a duplicate.
	sc = Rate("goodbye", t0.Add(30*time.Second), Context{Prev: prev})
	if sc.XP != 5 {
		t.Errorf("distinct content: got %d, want 5", sc.XP)
	}
}

func TestRateKeystrokeGap(t *testing.T) {
	prev := &PrevActivity{At: t0, Hash: simhash.Content("something else")}
	// dt=0 zeroes the speed factor outright.
	sc := Rate("hi", t0, Context{Prev: prev})
	if sc.XP != 0 {
		t.Errorf("zero gap: got %d, want 0", sc.XP)
	}
	// dt=1s: factor log(10)/log(46) ~ 0.6014, so floor(5*0.6014) = 3.
	sc = Rate("hi", t0.Add(time.Second), Context{Prev: prev})
	if sc.XP != 3 {
		t.Errorf("1s gap: got %d, want 3", sc.XP)
	}
	// The gap saturates at 5s.
	five := Rate("hi", t0.Add(5*time.Second), Context{Prev: prev})
	hour := Rate("hi", t0.Add(time.Hour), Context{Prev: prev})
	if five.XP != hour.XP || five.XP != 5 {
		t.Errorf("saturation: got %d and %d, want 5 and 5", five.XP, hour.XP)
	}
}

func TestRateSimilarityBands(t *testing.T) {
	const text = "the quick brown fox"
	sim, n := simhash.Hash(simhash.Normalize(text))
	if n < minSimLength {
		t.Fatalf("test text too short: %d", n)
	}
	entry := func(s uint64, n int) []SimEntry {
		return []SimEntry{{Sim: s, NormLen: n, At: t0.Add(-time.Minute)}}
	}
	cases := []struct {
		name   string
		recent []SimEntry
		want   int
	}{
		{"identical", entry(sim, n), 0},                 // similarity 1
		{"distance 5", entry(sim^0x1f, n), 0},           // 1-5/64 ~ 0.922
		{"distance 6", entry(sim^0x3f, n), 1},           // 0.906: quartered
		{"distance 9", entry(sim^0x1ff, n), 1},          // 0.859: quartered
		{"distance 10", entry(sim^0x3ff, n), 5},         // 0.844: clean
		{"short prior", entry(sim, minSimLength-1), 5},  // prior below min length
		{"zero prior", entry(0, n), 5},                  // unhashable prior
		{"empty window", nil, 5},
	}
	for _, tc := range cases {
		sc := Rate(text, t0, Context{Recent: tc.recent})
		if sc.XP != tc.want {
			t.Errorf("%s: got %d, want %d", tc.name, sc.XP, tc.want)
		}
	}
}

func TestRateSimilaritySkipsShortText(t *testing.T) {
	// Below 12 normalised units the similarity check never applies,
	// even against an identical prior fingerprint.
	sim, _ := simhash.Hash(simhash.Normalize("short"))
	recent := []SimEntry{{Sim: sim, NormLen: 5, At: t0}}
	if sc := Rate("short", t0, Context{Recent: recent}); sc.XP != 5 {
		t.Errorf("got %d, want 5", sc.XP)
	}
}

func TestRateWordsPerMinute(t *testing.T) {
	long := strings.Repeat("x", 100)
	prev := &PrevActivity{At: t0, Hash: simhash.Content("other")}
	// 100 units in 0.2s is 6000 wpm: zeroed.
	sc := Rate(long, t0.Add(200*time.Millisecond), Context{Prev: prev})
	if sc.XP != 0 {
		t.Errorf("6000 wpm: got %d, want 0", sc.XP)
	}
	// 100 units in 4.8s is 250 wpm: factor 1-log10(5.5) ~ 0.2596,
	// speed ~ 0.9896, so floor(5*0.9896*0.2596) = 1.
	sc = Rate(long, t0.Add(4800*time.Millisecond), Context{Prev: prev})
	if sc.XP != 1 {
		t.Errorf("250 wpm: got %d, want 1", sc.XP)
	}
	// A minute gap is 20 wpm: no penalty.
	sc = Rate(long, t0.Add(time.Minute), Context{Prev: prev})
	if sc.XP != 5 {
		t.Errorf("20 wpm: got %d, want 5", sc.XP)
	}
	// Under 50 units the check is skipped no matter the rate.
	sc = Rate(strings.Repeat("x", 49), t0.Add(time.Second), Context{Prev: prev})
	if sc.XP == 0 {
		t.Error("49 units still hit the wpm check")
	}
}

func TestRateLengthMonotonic(t *testing.T) {
	ctx := Context{Guild: GuildStats{AvgLen: 20, Count: 100}}
	last := -1
	for n := 1; n <= 300; n++ {
		sc := Rate(strings.Repeat("a", n), t0, ctx)
		if sc.XP < last {
			t.Fatalf("xp dropped from %d to %d at length %d", last, sc.XP, n)
		}
		last = sc.XP
	}
}

func TestRateLengthRatioCap(t *testing.T) {
	// The length ratio clamps at 100, so once a message is 100x the
	// guild average the bonus stops growing.
	ctx := Context{Guild: GuildStats{AvgLen: 0.5, Count: 100}}
	atCap := Rate(strings.Repeat("a", 50), t0, ctx)
	beyond := Rate(strings.Repeat("a", 300), t0, ctx)
	if atCap.XP != beyond.XP {
		t.Errorf("cap: got %d then %d", atCap.XP, beyond.XP)
	}
}
