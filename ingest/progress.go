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
	"fmt"
	"io"
	"strings"
	"time"
)

// progress is a single-line terminal progress bar.
// All methods are safe on a nil receiver so callers can
// plumb it through unconditionally.
type progress struct {
	w       io.Writer
	total   int64
	done    int64
	started time.Time
	drawn   time.Time
}

func newProgress(w io.Writer, total int64) *progress {
	if w == nil || total <= 0 {
		return nil
	}
	return &progress{w: w, total: total, started: time.Now()}
}

// Add records n more completed items and redraws the bar,
// throttled to at most four redraws per second.
func (p *progress) Add(n int) {
	if p == nil {
		return
	}
	p.done += int64(n)
	now := time.Now()
	if now.Sub(p.drawn) < 250*time.Millisecond {
		return
	}
	p.drawn = now
	p.draw(now)
}

// Finish draws the final state and terminates the line.
func (p *progress) Finish() {
	if p == nil {
		return
	}
	p.draw(time.Now())
	fmt.Fprintln(p.w)
}

func (p *progress) draw(now time.Time) {
	done := p.done
	if done > p.total {
		done = p.total
	}
	const width = 30
	fill := int(done * width / p.total)
	bar := strings.Repeat("#", fill) + strings.Repeat("-", width-fill)
	pct := float64(done) * 100 / float64(p.total)
	elapsed := now.Sub(p.started).Seconds()
	var rate float64
	if elapsed > 0 {
		rate = float64(done) / elapsed
	}
	eta := "--:--:--"
	if rate > 0 {
		left := int64(float64(p.total-done) / rate)
		eta = fmt.Sprintf("%d:%02d:%02d", left/3600, left/60%60, left%60)
	}
	fmt.Fprintf(p.w, "\r[%s] %5.1f%% %d/%d | %6.1f msg/s | ETA %s",
		bar, pct, done, p.total, rate, eta)
}
