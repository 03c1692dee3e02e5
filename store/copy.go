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
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vycdev/chatxp/ingest"
)

// activityColumns is the COPY column list for "UserActivity". The
// identity "Id" column is left to the database.
var activityColumns = []string{
	"DiscordChannelId", "GuildId", "UserId", "InsertDate",
	"MessageHash", "MessageLength", "MessageSimHash", "NormalizedLength",
	"XpGained", "GuildAverageMessageLength", "GuildMessageCount",
}

const insertActivity = `
INSERT INTO "UserActivity" (
	"DiscordChannelId", "GuildId", "UserId", "InsertDate",
	"MessageHash", "MessageLength", "MessageSimHash", "NormalizedLength",
	"XpGained", "GuildAverageMessageLength", "GuildMessageCount"
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

// activityValues lays out one row in activityColumns order.
func activityValues(row *ingest.Row) []any {
	return []any{
		numericID(row.ChannelID),
		row.GuildID,
		row.UserID,
		row.At,
		row.Hash,
		row.Length,
		row.Sim,
		row.NormLen,
		row.XP,
		row.GuildAvgLen,
		row.GuildCount,
	}
}

// copyQueue is the sink's channel depth: enough to keep the wire
// encoder busy without buffering a whole guild.
const copyQueue = 512

// pgSink streams rows into a COPY running on the transaction's
// connection. CopyFrom owns the connection until the source is
// drained, which is why the Tx contract forbids other calls while a
// sink is open.
type pgSink struct {
	rows   chan []any
	done   chan struct{}
	err    error // set before done closes
	closed bool
}

var _ ingest.RowSink = (*pgSink)(nil)

func (t *pgTx) ActivitySink(ctx context.Context) (ingest.RowSink, error) {
	s := &pgSink{
		rows: make(chan []any, copyQueue),
		done: make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		_, err := t.tx.CopyFrom(ctx, pgx.Identifier{"UserActivity"},
			activityColumns, &copySource{rows: s.rows})
		if err != nil {
			s.err = fmt.Errorf("copy activity: %w", err)
		}
	}()
	return s, nil
}

func (s *pgSink) Write(ctx context.Context, row *ingest.Row) error {
	select {
	case s.rows <- activityValues(row):
		return nil
	case <-s.done:
		// The COPY never finishes on its own while the row channel is
		// still open, so reaching done here means it failed.
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *pgSink) Close(ctx context.Context) error {
	if !s.closed {
		s.closed = true
		close(s.rows)
	}
	select {
	case <-s.done:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// copySource adapts the sink's row channel to pgx.CopyFromSource.
type copySource struct {
	rows chan []any
	cur  []any
}

func (c *copySource) Next() bool {
	row, ok := <-c.rows
	c.cur = row
	return ok
}

func (c *copySource) Values() ([]any, error) { return c.cur, nil }

func (c *copySource) Err() error { return nil }
