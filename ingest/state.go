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
	"time"

	"github.com/vycdev/chatxp/xp"
)

// ema folds v into avg; a non-positive avg adopts v outright.
func ema(avg, v, alpha float64) float64 {
	if avg <= 0 {
		return v
	}
	return (1-alpha)*avg + alpha*v
}

// State is the rolling scoring state of one guild ingest: the guild
// length EMA and message count, each user's previous message, and
// each user's recent fingerprint window. It lives for exactly one
// guild transaction.
type State struct {
	guild  xp.GuildStats
	prev   map[int64]xp.PrevActivity
	recent map[int64][]xp.SimEntry
	window time.Duration
	limit  int
	alpha  float64
}

// NewState returns an empty State with the given similarity window,
// per-user window cap, and EMA smoothing constant N.
func NewState(window time.Duration, cap, emaN int) *State {
	return &State{
		prev:   make(map[int64]xp.PrevActivity),
		recent: make(map[int64][]xp.SimEntry),
		window: window,
		limit:  cap,
		alpha:  2 / (float64(emaN) + 1),
	}
}

// SeedGuild installs the guild statistics persisted before this
// ingest's first message.
func (s *State) SeedGuild(g xp.GuildStats) { s.guild = g }

// SeedPrev installs each user's latest persisted activity.
func (s *State) SeedPrev(m map[int64]xp.PrevActivity) {
	for k, v := range m {
		s.prev[k] = v
	}
}

// SeedRecent installs each user's persisted fingerprint window,
// newest first.
func (s *State) SeedRecent(m map[int64][]xp.SimEntry) {
	for k, v := range m {
		s.recent[k] = v
	}
}

// Context assembles the scoring context for one message: the user's
// previous activity, their fingerprints within [at-window, at), and
// the guild statistics as of the previous message.
func (s *State) Context(userID int64, at time.Time) xp.Context {
	ctx := xp.Context{Guild: s.guild}
	if p, ok := s.prev[userID]; ok {
		ctx.Prev = &p
	}
	cutoff := at.Add(-s.window)
	for _, e := range s.recent[userID] {
		if e.At.Before(cutoff) || !e.At.Before(at) {
			continue
		}
		ctx.Recent = append(ctx.Recent, e)
		if len(ctx.Recent) >= s.limit {
			break
		}
	}
	return ctx
}

// Observe folds one scored message into the state and returns the
// post-update guild statistics that go on its activity row.
func (s *State) Observe(userID int64, at time.Time, sc xp.Score) xp.GuildStats {
	s.guild.Count++
	s.guild.AvgLen = ema(s.guild.AvgLen, float64(sc.Length), s.alpha)
	s.prev[userID] = xp.PrevActivity{At: at, Hash: sc.Hash}

	win := append([]xp.SimEntry{{Sim: sc.Sim, NormLen: sc.NormLen, At: at}}, s.recent[userID]...)
	cutoff := at.Add(-s.window)
	for len(win) > 0 && win[len(win)-1].At.Before(cutoff) {
		win = win[:len(win)-1]
	}
	if len(win) > s.limit {
		win = win[:s.limit]
	}
	s.recent[userID] = win
	return s.guild
}

// Accumulator collects per-user aggregate deltas over one guild
// ingest; Flush folds them into their persisted snapshots. Only
// XP-earning messages contribute.
type Accumulator struct {
	guildID int64
	alpha   float64
	start   map[int64]Levels
	delta   map[int64]*userDelta
	order   []int64 // first-touch order keeps flushes deterministic
}

type userDelta struct {
	xp     int64
	count  int64
	length int64
	ema    float64
}

// NewAccumulator returns an empty Accumulator for one guild with EMA
// smoothing constant N.
func NewAccumulator(guildID int64, emaN int) *Accumulator {
	return &Accumulator{
		guildID: guildID,
		alpha:   2 / (float64(emaN) + 1),
		start:   make(map[int64]Levels),
		delta:   make(map[int64]*userDelta),
	}
}

// Seed caches the persisted aggregate snapshot of a user.
func (a *Accumulator) Seed(userID int64, lv Levels) { a.start[userID] = lv }

// Seeded reports whether the user's snapshot is already cached.
func (a *Accumulator) Seeded(userID int64) bool {
	_, ok := a.start[userID]
	return ok
}

// Add folds one XP-earning message into the user's delta.
func (a *Accumulator) Add(userID int64, gained, msgLen int) {
	d := a.delta[userID]
	if d == nil {
		d = &userDelta{ema: a.start[userID].EmaLen}
		a.delta[userID] = d
		a.order = append(a.order, userID)
	}
	d.xp += int64(gained)
	d.count++
	d.length += int64(msgLen)
	d.ema = ema(d.ema, float64(msgLen), a.alpha)
}

// Flush computes the update row of every touched user, in first-touch
// order. Users whose messages all scored zero get no row.
func (a *Accumulator) Flush() []LevelsUpdate {
	ups := make([]LevelsUpdate, 0, len(a.order))
	for _, uid := range a.order {
		d := a.delta[uid]
		st := a.start[uid]
		total := st.TotalXP + d.xp
		count := st.Count + d.count
		avg := 0.0
		if count > 0 {
			avg = (st.AvgLen*float64(st.Count) + float64(d.length)) / float64(count)
		}
		emaLen := d.ema
		if emaLen <= 0 {
			emaLen = st.EmaLen
		}
		ups = append(ups, LevelsUpdate{
			UserID:  uid,
			GuildID: a.guildID,
			TotalXP: total,
			Level:   xp.Level(total),
			Count:   count,
			AvgLen:  avg,
			EmaLen:  emaLen,
		})
	}
	return ups
}
