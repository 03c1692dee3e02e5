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

// Package store persists activity rows in PostgreSQL using the schema
// of the bot that reads them back: quoted PascalCase identifiers,
// numeric(20,0) chat-service ids, identity integer row ids.
package store

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vycdev/chatxp/ingest"
	"github.com/vycdev/chatxp/xp"
)

// DB is a PostgreSQL-backed ingest.Store on a pgx connection pool.
type DB struct {
	pool *pgxpool.Pool
}

var _ ingest.Store = (*DB)(nil)

// Open connects to the database at dsn. Both postgres:// URLs and
// Npgsql-style "Key=Value;..." strings are accepted; see ParseDSN.
func Open(ctx context.Context, dsn string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(ParseDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return &DB{pool: pool}, nil
}

// Close releases the connection pool.
func (db *DB) Close() { db.pool.Close() }

// Begin opens one ingest transaction.
func (db *DB) Begin(ctx context.Context) (ingest.Tx, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgTx{tx: tx}, nil
}

// numericID converts a chat-service id to the numeric(20,0) the schema
// stores 64-bit unsigned ids in.
func numericID(v uint64) pgtype.Numeric {
	return pgtype.Numeric{Int: new(big.Int).SetUint64(v), Valid: true}
}

type pgTx struct {
	tx pgx.Tx
}

var _ ingest.Tx = (*pgTx)(nil)

// New guilds get the bot's defaults so its own queries keep working on
// imported rows.
const insertGuild = `
INSERT INTO "Guilds" (
	"DiscordId", "Name", "Prefix",
	"WelcomeChannelId", "PinsChannelId",
	"LevelUpMessagesChannelId", "LevelUpQuotesChannelId",
	"LevelUpMessages", "LevelUpQuotes", "UseGlobalQuotes",
	"QuotesApprovalChannelId", "QuoteAddRequiredApprovals", "QuoteRemoveRequiredApprovals",
	"WelcomeMessages", "UseActivityRoles", "InsertDate"
) VALUES ($1, $2, $3, 0, 0, 0, 0, false, false, false, 0, 5, 5, false, false, $4)
RETURNING "Id"`

func (t *pgTx) EnsureGuild(ctx context.Context, discordID uint64, name string) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`SELECT "Id" FROM "Guilds" WHERE "DiscordId" = $1`,
		numericID(discordID)).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("ensure guild %d: %w", discordID, err)
	}
	if name == "" {
		name = "Imported Guild"
	}
	err = t.tx.QueryRow(ctx, insertGuild,
		numericID(discordID), name, "m!", time.Now().UTC()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ensure guild %d: %w", discordID, err)
	}
	return id, nil
}

const insertUser = `
INSERT INTO "Users" (
	"DiscordId", "Username", "InsertDate", "LastUsernameCheck",
	"LevelUpMessages", "LevelUpQuotes"
) VALUES ($1, $2, $3, $4, true, true)
RETURNING "Id"`

func (t *pgTx) EnsureUser(ctx context.Context, discordID uint64, username string) (int64, error) {
	var (
		id      int64
		current pgtype.Text
	)
	err := t.tx.QueryRow(ctx,
		`SELECT "Id", "Username" FROM "Users" WHERE "DiscordId" = $1`,
		numericID(discordID)).Scan(&id, &current)
	if err == nil {
		if username != "" && username != current.String {
			_, err = t.tx.Exec(ctx,
				`UPDATE "Users" SET "Username" = $1, "LastUsernameCheck" = $2 WHERE "Id" = $3`,
				username, time.Now().UTC(), id)
			if err != nil {
				return 0, fmt.Errorf("ensure user %d: %w", discordID, err)
			}
		}
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("ensure user %d: %w", discordID, err)
	}
	now := time.Now().UTC()
	err = t.tx.QueryRow(ctx, insertUser,
		numericID(discordID), username, now, now).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ensure user %d: %w", discordID, err)
	}
	return id, nil
}

func (t *pgTx) UserLevels(ctx context.Context, userID, guildID int64) (ingest.Levels, error) {
	var lv ingest.Levels
	err := t.tx.QueryRow(ctx, `
SELECT "TotalXp", "Level",
       COALESCE("UserMessageCount", 0),
       COALESCE("UserAverageMessageLength", 0),
       COALESCE("UserAverageMessageLengthEma", 0)
FROM "UserLevels"
WHERE "UserId" = $1 AND "GuildId" = $2`,
		userID, guildID).Scan(&lv.TotalXP, &lv.Level, &lv.Count, &lv.AvgLen, &lv.EmaLen)
	if err == nil {
		return lv, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return ingest.Levels{}, fmt.Errorf("user levels: %w", err)
	}
	_, err = t.tx.Exec(ctx, `
INSERT INTO "UserLevels" (
	"UserId", "GuildId", "Level", "TotalXp", "UserMessageCount",
	"UserAverageMessageLength", "UserAverageMessageLengthEma"
) VALUES ($1, $2, 0, 0, 0, 0, 0)`,
		userID, guildID)
	if err != nil {
		return ingest.Levels{}, fmt.Errorf("user levels: %w", err)
	}
	return ingest.Levels{}, nil
}

func (t *pgTx) GuildStatsBefore(ctx context.Context, guildID int64, before time.Time) (xp.GuildStats, bool, error) {
	var gs xp.GuildStats
	err := t.tx.QueryRow(ctx, `
SELECT "GuildAverageMessageLength", "GuildMessageCount"
FROM "UserActivity"
WHERE "GuildId" = $1 AND "InsertDate" < $2
ORDER BY "InsertDate" DESC LIMIT 1`,
		guildID, before).Scan(&gs.AvgLen, &gs.Count)
	if errors.Is(err, pgx.ErrNoRows) {
		return xp.GuildStats{}, false, nil
	}
	if err != nil {
		return xp.GuildStats{}, false, fmt.Errorf("guild stats: %w", err)
	}
	return gs, true, nil
}

func (t *pgTx) PrevUserActivity(ctx context.Context, userID, guildID int64, before time.Time) (*xp.PrevActivity, error) {
	var prev xp.PrevActivity
	err := t.tx.QueryRow(ctx, `
SELECT "InsertDate", "MessageHash"
FROM "UserActivity"
WHERE "UserId" = $1 AND "GuildId" = $2 AND "InsertDate" < $3
ORDER BY "InsertDate" DESC LIMIT 1`,
		userID, guildID, before).Scan(&prev.At, &prev.Hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("prev activity: %w", err)
	}
	return &prev, nil
}

func (t *pgTx) RecentSimhashes(ctx context.Context, userID, guildID int64, before time.Time, window time.Duration, limit int) ([]xp.SimEntry, error) {
	rows, err := t.tx.Query(ctx, `
SELECT "MessageSimHash", "NormalizedLength", "InsertDate"
FROM "UserActivity"
WHERE "UserId" = $1 AND "GuildId" = $2 AND "InsertDate" >= $3 AND "InsertDate" < $4
ORDER BY "InsertDate" DESC LIMIT $5`,
		userID, guildID, before.Add(-window), before, limit)
	if err != nil {
		return nil, fmt.Errorf("recent simhashes: %w", err)
	}
	defer rows.Close()
	var out []xp.SimEntry
	for rows.Next() {
		var (
			sim int64
			e   xp.SimEntry
		)
		if err := rows.Scan(&sim, &e.NormLen, &e.At); err != nil {
			return nil, fmt.Errorf("recent simhashes: %w", err)
		}
		e.Sim = uint64(sim)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent simhashes: %w", err)
	}
	return out, nil
}

func (t *pgTx) SeedPrevUsers(ctx context.Context, guildID int64, before time.Time) (map[int64]xp.PrevActivity, error) {
	rows, err := t.tx.Query(ctx, `
SELECT DISTINCT ON ("UserId") "UserId", "InsertDate", "MessageHash"
FROM "UserActivity"
WHERE "GuildId" = $1 AND "InsertDate" < $2
ORDER BY "UserId", "InsertDate" DESC`,
		guildID, before)
	if err != nil {
		return nil, fmt.Errorf("seed prev activity: %w", err)
	}
	defer rows.Close()
	out := make(map[int64]xp.PrevActivity)
	for rows.Next() {
		var (
			uid  int64
			prev xp.PrevActivity
		)
		if err := rows.Scan(&uid, &prev.At, &prev.Hash); err != nil {
			return nil, fmt.Errorf("seed prev activity: %w", err)
		}
		out[uid] = prev
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("seed prev activity: %w", err)
	}
	return out, nil
}

func (t *pgTx) SeedRecentSimhashes(ctx context.Context, guildID int64, before time.Time, window time.Duration, limit int) (map[int64][]xp.SimEntry, error) {
	rows, err := t.tx.Query(ctx, `
SELECT "UserId", "MessageSimHash", "NormalizedLength", "InsertDate"
FROM "UserActivity"
WHERE "GuildId" = $1 AND "InsertDate" >= $2 AND "InsertDate" < $3
ORDER BY "UserId", "InsertDate" DESC`,
		guildID, before.Add(-window), before)
	if err != nil {
		return nil, fmt.Errorf("seed simhashes: %w", err)
	}
	defer rows.Close()
	out := make(map[int64][]xp.SimEntry)
	for rows.Next() {
		var (
			uid int64
			sim int64
			e   xp.SimEntry
		)
		if err := rows.Scan(&uid, &sim, &e.NormLen, &e.At); err != nil {
			return nil, fmt.Errorf("seed simhashes: %w", err)
		}
		// Rows arrive newest-first within each user, so the cap keeps
		// the newest entries.
		if len(out[uid]) >= limit {
			continue
		}
		e.Sim = uint64(sim)
		out[uid] = append(out[uid], e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("seed simhashes: %w", err)
	}
	return out, nil
}

func (t *pgTx) RelaxDurability(ctx context.Context) error {
	_, err := t.tx.Exec(ctx, `SET LOCAL synchronous_commit = OFF`)
	return err
}

func (t *pgTx) InsertActivity(ctx context.Context, row *ingest.Row) error {
	_, err := t.tx.Exec(ctx, insertActivity, activityValues(row)...)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

const updateLevels = `
UPDATE "UserLevels"
SET "TotalXp" = $1, "Level" = $2, "UserMessageCount" = $3,
    "UserAverageMessageLength" = $4, "UserAverageMessageLengthEma" = $5
WHERE "UserId" = $6 AND "GuildId" = $7`

func (t *pgTx) UpdateUserLevels(ctx context.Context, ups []ingest.LevelsUpdate) error {
	if len(ups) == 0 {
		return nil
	}
	var b pgx.Batch
	for i := range ups {
		u := &ups[i]
		b.Queue(updateLevels, u.TotalXP, u.Level, u.Count, u.AvgLen, u.EmaLen, u.UserID, u.GuildID)
	}
	if err := t.tx.SendBatch(ctx, &b).Close(); err != nil {
		return fmt.Errorf("update user levels: %w", err)
	}
	return nil
}

func (t *pgTx) Commit(ctx context.Context) error { return t.tx.Commit(ctx) }

func (t *pgTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}
