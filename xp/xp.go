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

// Package xp scores chat messages for activity XP.
//
// A message earns one base point plus a logarithmic bonus for length
// relative to the guild's moving average, multiplied by four penalty
// factors in [0, 1]: exact duplication of the user's previous message,
// keystroke-gap speed, SimHash similarity against the user's recent
// window, and words-per-minute plausibility. XP is the floor of the
// product, so any zero factor zeroes the message.
//
// Scoring is path-dependent only through Context; given the same
// content, timestamp and context it is deterministic.
package xp

import (
	"math"
	"time"

	"github.com/vycdev/chatxp/simhash"
)

const (
	lengthBonus = 4.0
	lengthScale = 0.025
	speedScale  = 9.0

	// Keystroke gap saturates at this many seconds.
	maxGap = 5.0

	// Exact-duplicate hashes only count within this interval.
	dupWindow = 60 * time.Second

	// Similarity is checked only for texts at least this long after
	// normalisation; shorter texts collide too easily.
	minSimLength = 12

	// Words-per-minute is checked only from this raw length up.
	minSpeedLength = 50

	simHigh = 0.92 // zeroes the message
	simLow  = 0.85 // quarters the message
)

// PrevActivity is the newest prior message of a user within a guild:
// its timestamp and exact-duplicate fingerprint.
type PrevActivity struct {
	At   time.Time
	Hash string
}

// SimEntry is one entry of a user's recent-simhash window.
type SimEntry struct {
	Sim     uint64
	NormLen int
	At      time.Time
}

// GuildStats is the guild-wide rolling message statistics carried on
// the most recent activity row: an EMA of message length and the
// running count of scored messages, bots excluded.
type GuildStats struct {
	AvgLen float64
	Count  int64
}

// Context is the rolling state consulted when scoring one message.
// The zero value means "no history": a nil Prev disables the duplicate
// and speed checks, an empty Recent disables the similarity check, and
// a zero-average Guild falls back to a length ratio of 1.
type Context struct {
	Prev   *PrevActivity
	Recent []SimEntry // already filtered to the similarity window, newest first
	Guild  GuildStats
}

// Score is the outcome of rating one message. The fingerprints and
// lengths are returned alongside the XP because the caller persists
// them and feeds them back into future Contexts.
type Score struct {
	XP      int
	Hash    string // exact-duplicate fingerprint of the raw content
	Sim     uint64 // SimHash of the normalised content
	NormLen int    // normalised length, UTF-16 code units
	Length  int    // raw length, UTF-16 code units
}

// Rate scores one message against its rolling context.
func Rate(content string, at time.Time, ctx Context) Score {
	norm := simhash.Normalize(content)
	sim, normLen := simhash.Hash(norm)
	sc := Score{
		Hash:    simhash.Content(content),
		Sim:     sim,
		NormLen: normLen,
		Length:  simhash.UTF16Len(content),
	}

	r := 1.0
	if ctx.Guild.AvgLen > 0 {
		r = float64(sc.Length) / ctx.Guild.AvgLen
	}
	if r < 0 {
		r = 0
	} else if r > 100 {
		r = 100
	}
	lengthXP := lengthBonus * math.Log(1+lengthScale*r) / math.Log(1+lengthScale)

	dup, speed := 1.0, 1.0
	if p := ctx.Prev; p != nil {
		if sc.Hash == p.Hash && at.Sub(p.At).Abs() < dupWindow {
			dup = 0
		}
		dt := at.Sub(p.At).Seconds()
		if dt < 0 {
			dt = 0
		} else if dt > maxGap {
			dt = maxGap
		}
		speed = math.Log(1+speedScale*dt) / math.Log(1+speedScale*maxGap)
	}

	similar := 1.0
	if sc.NormLen >= minSimLength && sc.Sim != 0 {
		best := 0.0
		for _, e := range ctx.Recent {
			if e.Sim == 0 || e.NormLen < minSimLength {
				continue
			}
			if s := 1 - float64(simhash.Distance(sc.Sim, e.Sim))/64; s > best {
				best = s
			}
		}
		switch {
		case best >= simHigh:
			similar = 0
		case best >= simLow:
			similar = 0.25
		}
	}

	wpm := 1.0
	if ctx.Prev != nil && sc.Length >= minSpeedLength {
		mins := at.Sub(ctx.Prev.At).Minutes()
		if mins < 1e-6 {
			mins = 1e-6
		}
		v := float64(sc.Length) / mins / 5
		switch {
		case v >= 300:
			wpm = 0
		case v > 200:
			wpm = 1 - math.Log10(1+speedScale*(v-200)/100)
		}
	}

	sc.XP = int(math.Floor((1 + lengthXP) * dup * similar * speed * wpm))
	return sc
}
