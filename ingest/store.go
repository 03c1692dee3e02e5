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
	"context"
	"time"

	"github.com/vycdev/chatxp/xp"
)

// Store opens transactions against the persistence layer. Each guild
// (fast path) or file (per-message path) is ingested inside exactly
// one transaction.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is the narrow transactional surface the ingest loop depends on.
// Guild and user arguments named discordID are chat-service ids; bare
// int64 ids are internal row ids.
type Tx interface {
	// EnsureGuild returns the internal id of the guild, creating its
	// row if missing. A created row gets name, or a placeholder when
	// name is empty.
	EnsureGuild(ctx context.Context, discordID uint64, name string) (int64, error)
	// EnsureUser returns the internal id of the user, creating the row
	// if missing and refreshing a changed username.
	EnsureUser(ctx context.Context, discordID uint64, username string) (int64, error)
	// UserLevels returns the aggregate row for (user, guild), creating
	// a zero row on first sight.
	UserLevels(ctx context.Context, userID, guildID int64) (Levels, error)

	// GuildStatsBefore returns the post-update guild statistics
	// carried on the newest activity row strictly before the instant.
	GuildStatsBefore(ctx context.Context, guildID int64, before time.Time) (xp.GuildStats, bool, error)
	// PrevUserActivity returns the user's newest activity strictly
	// before the instant, or nil without history.
	PrevUserActivity(ctx context.Context, userID, guildID int64, before time.Time) (*xp.PrevActivity, error)
	// RecentSimhashes returns the user's fingerprints within
	// [before-window, before), newest first, at most limit entries.
	RecentSimhashes(ctx context.Context, userID, guildID int64, before time.Time, window time.Duration, limit int) ([]xp.SimEntry, error)

	// SeedPrevUsers and SeedRecentSimhashes answer the two point
	// queries above for every user of the guild in one round trip,
	// keyed by internal user id.
	SeedPrevUsers(ctx context.Context, guildID int64, before time.Time) (map[int64]xp.PrevActivity, error)
	SeedRecentSimhashes(ctx context.Context, guildID int64, before time.Time, window time.Duration, limit int) (map[int64][]xp.SimEntry, error)

	// RelaxDurability trades commit durability for speed within this
	// transaction only. Failure is advisory.
	RelaxDurability(ctx context.Context) error

	// ActivitySink opens a bulk append stream on the activity table.
	// No other Tx method may be called until the sink is closed.
	ActivitySink(ctx context.Context) (RowSink, error)
	// InsertActivity appends a single activity row.
	InsertActivity(ctx context.Context, row *Row) error
	// UpdateUserLevels applies the accumulated aggregates, one update
	// per row.
	UpdateUserLevels(ctx context.Context, ups []LevelsUpdate) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// RowSink streams activity rows into the store.
type RowSink interface {
	Write(ctx context.Context, row *Row) error
	// Close flushes the stream and reports the first write error.
	Close(ctx context.Context) error
}

// Row is one activity row as persisted.
type Row struct {
	ChannelID   uint64
	GuildID     int64
	UserID      int64
	At          time.Time
	Hash        string
	Length      int
	Sim         int64 // SimHash bit pattern, reinterpreted signed
	NormLen     int
	XP          int
	GuildAvgLen float64 // post-update
	GuildCount  int64   // post-update
}

// Levels is the persisted aggregate snapshot of one (user, guild).
type Levels struct {
	TotalXP int64
	Level   int
	Count   int64
	AvgLen  float64
	EmaLen  float64
}

// LevelsUpdate is one post-ingest aggregate row written back.
type LevelsUpdate struct {
	UserID  int64
	GuildID int64
	TotalXP int64
	Level   int
	Count   int64
	AvgLen  float64
	EmaLen  float64
}

// dryStore satisfies Store without touching anything. Internal ids
// are handed out sequentially per chat-service id so scoring still
// distinguishes users; every history query answers empty.
type dryStore struct {
	next int64
	ids  map[uint64]int64
}

func (d *dryStore) Begin(context.Context) (Tx, error) {
	if d.ids == nil {
		d.ids = make(map[uint64]int64)
	}
	return (*dryTx)(d), nil
}

type dryTx dryStore

func (t *dryTx) id(discordID uint64) int64 {
	if v, ok := t.ids[discordID]; ok {
		return v
	}
	t.next++
	t.ids[discordID] = t.next
	return t.next
}

func (t *dryTx) EnsureGuild(_ context.Context, discordID uint64, _ string) (int64, error) {
	return t.id(discordID), nil
}

func (t *dryTx) EnsureUser(_ context.Context, discordID uint64, _ string) (int64, error) {
	return t.id(discordID), nil
}

func (t *dryTx) UserLevels(context.Context, int64, int64) (Levels, error) {
	return Levels{}, nil
}

func (t *dryTx) GuildStatsBefore(context.Context, int64, time.Time) (xp.GuildStats, bool, error) {
	return xp.GuildStats{}, false, nil
}

func (t *dryTx) PrevUserActivity(context.Context, int64, int64, time.Time) (*xp.PrevActivity, error) {
	return nil, nil
}

func (t *dryTx) RecentSimhashes(context.Context, int64, int64, time.Time, time.Duration, int) ([]xp.SimEntry, error) {
	return nil, nil
}

func (t *dryTx) SeedPrevUsers(context.Context, int64, time.Time) (map[int64]xp.PrevActivity, error) {
	return nil, nil
}

func (t *dryTx) SeedRecentSimhashes(context.Context, int64, time.Time, time.Duration, int) (map[int64][]xp.SimEntry, error) {
	return nil, nil
}

func (t *dryTx) RelaxDurability(context.Context) error { return nil }

func (t *dryTx) ActivitySink(context.Context) (RowSink, error) { return discardSink{}, nil }

func (t *dryTx) InsertActivity(context.Context, *Row) error { return nil }

func (t *dryTx) UpdateUserLevels(context.Context, []LevelsUpdate) error { return nil }

func (t *dryTx) Commit(context.Context) error   { return nil }
func (t *dryTx) Rollback(context.Context) error { return nil }

type discardSink struct{}

func (discardSink) Write(context.Context, *Row) error { return nil }
func (discardSink) Close(context.Context) error       { return nil }
