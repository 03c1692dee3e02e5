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

// Package ingest replays chat export files into the activity store.
//
// Every message is scored by package xp against rolling per-user and
// per-guild state, then written as one activity row; per-user level
// aggregates are folded up and written back at the end. The
// per-message path opens one transaction per file and answers every
// history question with a query. The fast path applies the same
// scoring rules but merges a whole guild's channels chronologically
// first, seeds the rolling state once, and streams rows through a
// bulk append, so out-of-order files cannot hide duplicates from the
// history checks.
package ingest

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/dchest/siphash"
	"github.com/google/uuid"

	"github.com/vycdev/chatxp/export"
	"github.com/vycdev/chatxp/xp"
)

// Config holds the ingest tuning knobs. The zero value selects the
// per-message path with default scoring parameters.
type Config struct {
	// Window is the near-duplicate similarity window.
	Window time.Duration
	// Smoothing is the EMA smoothing constant N for rolling
	// message-length averages.
	Smoothing int
	// RecentCap bounds each user's fingerprint window.
	RecentCap int

	// Fast selects the guild-at-a-time bulk path.
	Fast bool
	// DryRun parses and scores everything but persists nothing.
	DryRun bool
	// SkipBad logs and skips export files that fail to load instead
	// of aborting the run.
	SkipBad bool
	// Guild restricts the import to one guild when nonzero.
	Guild uint64
	// Jobs is the number of concurrent guild ingests on the fast
	// path; values below 2 mean serial.
	Jobs int

	// Logf receives run logging; nil discards it.
	Logf func(f string, args ...interface{})
	// Progress receives a terminal progress bar. The bar only draws
	// on serial runs, where a single line has a single writer.
	Progress io.Writer
	// Verbose enables per-file logging.
	Verbose bool
}

func (c Config) defaults() Config {
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.Smoothing <= 0 {
		c.Smoothing = DefaultSmoothing
	}
	if c.RecentCap <= 0 {
		c.RecentCap = DefaultRecentCap
	}
	if c.Jobs <= 0 {
		c.Jobs = 1
	}
	return c
}

func (c *Config) logf(f string, args ...interface{}) {
	if c.Logf != nil {
		c.Logf(f, args...)
	}
}

func (c *Config) bar(total int) *progress {
	if c.Jobs > 1 {
		return nil
	}
	return newProgress(c.Progress, int64(total))
}

// Runner executes imports against a Store.
type Runner struct {
	Store  Store
	Config Config
}

// Summary is the outcome of one Run.
type Summary struct {
	Files    int64 // export files loaded
	Skipped  int64 // export files skipped (SkipBad)
	Guilds   int64 // guilds touched
	Messages int64 // messages examined, bots included
	Rows     int64 // activity rows produced
	XP       int64 // total XP awarded
}

type guildResult struct {
	messages int64
	rows     int64
	xp       int64
}

func (s *Summary) add(r guildResult) {
	s.Messages += r.messages
	s.Rows += r.rows
	s.XP += r.xp
}

// Run imports the export files at paths. On error the returned
// Summary still reflects the work committed before the failure;
// the transaction in flight is rolled back.
func (r *Runner) Run(ctx context.Context, paths []string) (*Summary, error) {
	cfg := r.Config.defaults()
	store := r.Store
	if cfg.DryRun {
		store = new(dryStore)
	}

	runID := uuid.New()
	cfg.logf("import %s: %d files, window %s, smoothing %d",
		runID, len(paths), cfg.Window, cfg.Smoothing)

	sum := new(Summary)
	if cfg.Fast {
		groups, err := loadGroups(cfg, sum, paths)
		if err != nil {
			return sum, err
		}
		sum.Guilds = int64(len(groups))
		if err := runFast(ctx, cfg, store, sum, groups); err != nil {
			return sum, err
		}
	} else {
		seen := make(map[uint64]bool)
		for _, p := range paths {
			ex, etag, err := export.Load(p)
			if err != nil {
				if cfg.SkipBad {
					cfg.logf("skipping %s: %v", p, err)
					sum.Skipped++
					observeSkippedFile()
					continue
				}
				return sum, err
			}
			sum.Files++
			if cfg.Verbose {
				cfg.logf("loaded %s (%s, %d messages)", p, etag[:12], len(ex.Messages))
			}
			if cfg.Guild != 0 && uint64(ex.Guild.ID) != cfg.Guild {
				continue
			}
			seen[uint64(ex.Guild.ID)] = true
			res, err := ingestFile(ctx, cfg, store, ex)
			if err != nil {
				return sum, fmt.Errorf("%s: %w", p, err)
			}
			sum.add(res)
		}
		sum.Guilds = int64(len(seen))
	}
	cfg.logf("import %s done: %d files (%d skipped), %d guilds, %d messages, %d rows, %d xp",
		runID, sum.Files, sum.Skipped, sum.Guilds, sum.Messages, sum.Rows, sum.XP)
	return sum, nil
}

// group is the unit of fast-path work: one guild's export files in
// first-appearance order.
type group struct {
	guildID uint64
	name    string
	exports []*export.Export
}

func loadGroups(cfg Config, sum *Summary, paths []string) ([]*group, error) {
	var groups []*group
	index := make(map[uint64]*group)
	for _, p := range paths {
		ex, etag, err := export.Load(p)
		if err != nil {
			if cfg.SkipBad {
				cfg.logf("skipping %s: %v", p, err)
				sum.Skipped++
				observeSkippedFile()
				continue
			}
			return nil, err
		}
		sum.Files++
		if cfg.Verbose {
			cfg.logf("loaded %s (%s, %d messages)", p, etag[:12], len(ex.Messages))
		}
		gid := uint64(ex.Guild.ID)
		if cfg.Guild != 0 && gid != cfg.Guild {
			continue
		}
		g := index[gid]
		if g == nil {
			g = &group{guildID: gid}
			index[gid] = g
			groups = append(groups, g)
		}
		if g.name == "" {
			g.name = ex.Guild.Name
		}
		g.exports = append(g.exports, ex)
	}
	return groups, nil
}

func runFast(ctx context.Context, cfg Config, store Store, sum *Summary, groups []*group) error {
	if cfg.Jobs < 2 || len(groups) < 2 {
		for _, g := range groups {
			res, err := ingestGuild(ctx, cfg, store, g)
			if err != nil {
				return fmt.Errorf("guild %d: %w", g.guildID, err)
			}
			sum.add(res)
		}
		return nil
	}

	// All files of a guild hash to one worker, so each guild still
	// ingests serially inside its own transaction.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	buckets := make([][]*group, cfg.Jobs)
	for _, g := range groups {
		w := workerFor(g.guildID, cfg.Jobs)
		buckets[w] = append(buckets[w], g)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, bucket := range buckets {
		if len(bucket) == 0 {
			continue
		}
		wg.Add(1)
		go func(bucket []*group) {
			defer wg.Done()
			for _, g := range bucket {
				if ctx.Err() != nil {
					return
				}
				res, err := ingestGuild(ctx, cfg, store, g)
				mu.Lock()
				if err != nil {
					if firstErr == nil {
						firstErr = fmt.Errorf("guild %d: %w", g.guildID, err)
					}
					mu.Unlock()
					cancel()
					return
				}
				sum.add(res)
				mu.Unlock()
			}
		}(bucket)
	}
	wg.Wait()
	return firstErr
}

// just two fixed random values
const (
	partitionKey0 = uint64(0x8c6ab1fe)
	partitionKey1 = uint64(0x27e95d04)
)

func workerFor(guildID uint64, workers int) int {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], guildID)
	h := siphash.Hash(partitionKey0, partitionKey1, buf[:])
	maxUint64 := ^uint64(0)
	w := int(h / (maxUint64 / uint64(workers)))
	if w >= workers {
		w = workers - 1
	}
	return w
}

// ingestGuild replays one guild inside one transaction: merge all its
// channels chronologically, seed the rolling state as of the first
// message, stream activity rows through a bulk sink, then write the
// level aggregates back.
func ingestGuild(ctx context.Context, cfg Config, store Store, g *group) (guildResult, error) {
	var res guildResult
	begin := time.Now()

	tx, err := store.Begin(ctx)
	if err != nil {
		return res, err
	}
	defer tx.Rollback(ctx)

	guildID, err := tx.EnsureGuild(ctx, g.guildID, g.name)
	if err != nil {
		return res, err
	}

	// The seed boundary spans bot traffic: persisted history before
	// the first message of any author stays out of scope either way.
	var (
		m       Merge
		firstTS time.Time
		order   []uint64
		names   = make(map[uint64]string)
	)
	for _, ex := range g.exports {
		m.Add(uint64(ex.Channel.ID), ex.Messages)
		for i := range ex.Messages {
			msg := &ex.Messages[i]
			if firstTS.IsZero() || msg.Timestamp.Time.Before(firstTS) {
				firstTS = msg.Timestamp.Time
			}
			if msg.Author.IsBot {
				continue
			}
			id := uint64(msg.Author.ID)
			if _, ok := names[id]; !ok {
				order = append(order, id)
			}
			names[id] = msg.Author.Name // newest export name wins
		}
	}
	if m.Total() == 0 {
		if err := tx.Commit(ctx); err != nil {
			return res, err
		}
		cfg.logf("guild %d: no messages", g.guildID)
		return res, nil
	}

	users := make(map[uint64]int64, len(order))
	levels := NewAccumulator(guildID, cfg.Smoothing)
	for _, id := range order {
		uid, err := tx.EnsureUser(ctx, id, names[id])
		if err != nil {
			return res, err
		}
		users[id] = uid
		lv, err := tx.UserLevels(ctx, uid, guildID)
		if err != nil {
			return res, err
		}
		levels.Seed(uid, lv)
	}

	state := NewState(cfg.Window, cfg.RecentCap, cfg.Smoothing)
	gs, ok, err := tx.GuildStatsBefore(ctx, guildID, firstTS)
	if err != nil {
		return res, err
	}
	if ok {
		state.SeedGuild(gs)
	}
	prev, err := tx.SeedPrevUsers(ctx, guildID, firstTS)
	if err != nil {
		return res, err
	}
	state.SeedPrev(prev)
	recent, err := tx.SeedRecentSimhashes(ctx, guildID, firstTS, cfg.Window, cfg.RecentCap)
	if err != nil {
		return res, err
	}
	state.SeedRecent(recent)

	if err := tx.RelaxDurability(ctx); err != nil && cfg.Verbose {
		cfg.logf("guild %d: relaxed durability unavailable: %v", g.guildID, err)
	}

	sink, err := tx.ActivitySink(ctx)
	if err != nil {
		return res, err
	}
	bar := cfg.bar(m.Total())
	for {
		if res.messages&1023 == 0 {
			if err := ctx.Err(); err != nil {
				_ = sink.Close(ctx)
				return res, err
			}
		}
		msg, channel, more := m.Next()
		if !more {
			break
		}
		res.messages++
		bar.Add(1)
		observeMessage()
		if msg.Author.IsBot {
			continue
		}
		uid := users[uint64(msg.Author.ID)]
		at := msg.Timestamp.Time
		sc := xp.Rate(msg.Content, at, state.Context(uid, at))
		now := state.Observe(uid, at, sc)
		row := &Row{
			ChannelID:   channel,
			GuildID:     guildID,
			UserID:      uid,
			At:          at,
			Hash:        sc.Hash,
			Length:      sc.Length,
			Sim:         int64(sc.Sim),
			NormLen:     sc.NormLen,
			XP:          sc.XP,
			GuildAvgLen: now.AvgLen,
			GuildCount:  now.Count,
		}
		if err := sink.Write(ctx, row); err != nil {
			_ = sink.Close(ctx)
			return res, err
		}
		res.rows++
		res.xp += int64(sc.XP)
		observeRow(sc.XP)
		if sc.XP > 0 {
			levels.Add(uid, sc.XP, sc.Length)
		}
	}
	if err := sink.Close(ctx); err != nil {
		return res, err
	}

	ups := levels.Flush()
	if err := tx.UpdateUserLevels(ctx, ups); err != nil {
		return res, err
	}
	if err := tx.Commit(ctx); err != nil {
		return res, err
	}
	bar.Finish()
	observeGuild(time.Since(begin), len(ups))
	cfg.logf("guild %d: %d messages, %d rows, %d xp in %s",
		g.guildID, res.messages, res.rows, res.xp,
		time.Since(begin).Round(time.Millisecond))
	return res, nil
}

// ingestFile replays one export file inside one transaction, asking
// the store for each message's history. Queries observe rows inserted
// earlier in the same transaction, so in-file duplicates score the
// same as on the fast path.
func ingestFile(ctx context.Context, cfg Config, store Store, ex *export.Export) (guildResult, error) {
	var res guildResult
	begin := time.Now()

	tx, err := store.Begin(ctx)
	if err != nil {
		return res, err
	}
	defer tx.Rollback(ctx)

	guildID, err := tx.EnsureGuild(ctx, uint64(ex.Guild.ID), ex.Guild.Name)
	if err != nil {
		return res, err
	}

	msgs := slices.Clone(ex.Messages)
	slices.SortStableFunc(msgs, func(a, b export.Message) int {
		return a.Timestamp.Compare(b.Timestamp.Time)
	})

	alpha := 2 / (float64(cfg.Smoothing) + 1)
	users := make(map[uint64]int64)
	levels := NewAccumulator(guildID, cfg.Smoothing)
	bar := cfg.bar(len(msgs))
	for i := range msgs {
		msg := &msgs[i]
		if res.messages&1023 == 0 {
			if err := ctx.Err(); err != nil {
				return res, err
			}
		}
		res.messages++
		bar.Add(1)
		observeMessage()
		if msg.Author.IsBot {
			continue
		}
		uid, known := users[uint64(msg.Author.ID)]
		if !known {
			uid, err = tx.EnsureUser(ctx, uint64(msg.Author.ID), msg.Author.Name)
			if err != nil {
				return res, err
			}
			users[uint64(msg.Author.ID)] = uid
		}
		if !levels.Seeded(uid) {
			lv, err := tx.UserLevels(ctx, uid, guildID)
			if err != nil {
				return res, err
			}
			levels.Seed(uid, lv)
		}

		at := msg.Timestamp.Time
		var xctx xp.Context
		gs, ok, err := tx.GuildStatsBefore(ctx, guildID, at)
		if err != nil {
			return res, err
		}
		if ok {
			xctx.Guild = gs
		}
		if xctx.Prev, err = tx.PrevUserActivity(ctx, uid, guildID, at); err != nil {
			return res, err
		}
		if xctx.Recent, err = tx.RecentSimhashes(ctx, uid, guildID, at, cfg.Window, cfg.RecentCap); err != nil {
			return res, err
		}

		sc := xp.Rate(msg.Content, at, xctx)
		now := xctx.Guild
		now.Count++
		now.AvgLen = ema(now.AvgLen, float64(sc.Length), alpha)
		row := &Row{
			ChannelID:   uint64(ex.Channel.ID),
			GuildID:     guildID,
			UserID:      uid,
			At:          at,
			Hash:        sc.Hash,
			Length:      sc.Length,
			Sim:         int64(sc.Sim),
			NormLen:     sc.NormLen,
			XP:          sc.XP,
			GuildAvgLen: now.AvgLen,
			GuildCount:  now.Count,
		}
		if err := tx.InsertActivity(ctx, row); err != nil {
			return res, err
		}
		res.rows++
		res.xp += int64(sc.XP)
		observeRow(sc.XP)
		if sc.XP > 0 {
			levels.Add(uid, sc.XP, sc.Length)
		}
	}

	ups := levels.Flush()
	if err := tx.UpdateUserLevels(ctx, ups); err != nil {
		return res, err
	}
	if err := tx.Commit(ctx); err != nil {
		return res, err
	}
	bar.Finish()
	observeGuild(time.Since(begin), len(ups))
	if cfg.Verbose {
		cfg.logf("guild %d: %d messages, %d rows, %d xp in %s",
			uint64(ex.Guild.ID), res.messages, res.rows, res.xp,
			time.Since(begin).Round(time.Millisecond))
	}
	return res, nil
}
