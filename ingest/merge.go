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
	"slices"
	"time"

	"github.com/vycdev/chatxp/export"
)

// Merge drains messages from per-channel streams in non-decreasing
// timestamp order. It keeps a min-heap of one head per stream keyed
// by (timestamp, stream index), so ties go to the earlier-added
// stream and ordering is fully deterministic.
type Merge struct {
	streams []stream
	heads   []head
	total   int
}

type stream struct {
	channel uint64
	msgs    []export.Message
	pos     int
}

type head struct {
	at  time.Time
	idx int
}

// Add registers one channel's messages as a stream, sorting a copy
// stably by timestamp so unsorted input cannot break the merge order.
// Empty streams are skipped.
func (m *Merge) Add(channelID uint64, msgs []export.Message) {
	m.total += len(msgs)
	if len(msgs) == 0 {
		return
	}
	sorted := slices.Clone(msgs)
	slices.SortStableFunc(sorted, func(a, b export.Message) int {
		return a.Timestamp.Compare(b.Timestamp.Time)
	})
	m.streams = append(m.streams, stream{channel: channelID, msgs: sorted})
	m.push(head{at: sorted[0].Timestamp.Time, idx: len(m.streams) - 1})
}

// Total returns the number of messages across all streams, drained or
// not.
func (m *Merge) Total() int { return m.total }

// Next pops the chronologically next message and its channel id.
func (m *Merge) Next() (export.Message, uint64, bool) {
	if len(m.heads) == 0 {
		return export.Message{}, 0, false
	}
	h := m.heads[0]
	st := &m.streams[h.idx]
	msg := st.msgs[st.pos]
	st.pos++
	if st.pos < len(st.msgs) {
		m.heads[0] = head{at: st.msgs[st.pos].Timestamp.Time, idx: h.idx}
	} else {
		m.heads[0] = m.heads[len(m.heads)-1]
		m.heads = m.heads[:len(m.heads)-1]
	}
	if len(m.heads) > 0 {
		m.siftDown(0)
	}
	return msg, st.channel, true
}

func (m *Merge) less(a, b head) bool {
	if !a.at.Equal(b.at) {
		return a.at.Before(b.at)
	}
	return a.idx < b.idx
}

func (m *Merge) push(h head) {
	m.heads = append(m.heads, h)
	i := len(m.heads) - 1
	for i > 0 {
		parent := (i - 1) / 2
		if !m.less(m.heads[i], m.heads[parent]) {
			break
		}
		m.heads[i], m.heads[parent] = m.heads[parent], m.heads[i]
		i = parent
	}
}

func (m *Merge) siftDown(i int) {
	for {
		left := i*2 + 1
		if left >= len(m.heads) {
			return
		}
		least := left
		if right := left + 1; right < len(m.heads) && m.less(m.heads[right], m.heads[left]) {
			least = right
		}
		if !m.less(m.heads[least], m.heads[i]) {
			return
		}
		m.heads[i], m.heads[least] = m.heads[least], m.heads[i]
		i = least
	}
}
