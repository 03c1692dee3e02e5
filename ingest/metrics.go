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
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsOn gates all observations; collectors register eagerly but
// stay at zero until EnableMetrics, so disabled runs pay one atomic
// load per call.
var metricsOn atomic.Bool

var (
	messagesProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatxp_messages_processed_total",
		Help: "Messages examined during import, including bot messages",
	})
	activityRows = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatxp_activity_rows_total",
		Help: "Activity rows produced (scored but unwritten rows count in dry runs)",
	})
	xpAwarded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatxp_xp_awarded_total",
		Help: "Total XP awarded across imported messages",
	})
	filesSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatxp_files_skipped_total",
		Help: "Export files skipped because they failed to load or parse",
	})
	guildSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chatxp_guild_ingest_seconds",
		Help:    "Wall time spent ingesting a single guild",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
	flushRows = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chatxp_userlevels_flush_rows",
		Help:    "User level rows updated per guild commit",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
)

func init() {
	// Eager registration is harmless when no endpoint is exposed.
	prometheus.MustRegister(
		messagesProcessed,
		activityRows,
		xpAwarded,
		filesSkipped,
		guildSeconds,
		flushRows,
	)
}

// EnableMetrics turns on metric collection and serves the Prometheus
// /metrics endpoint on addr for the remainder of the process,
// returning the bound address. The listener is opened synchronously
// so a bad addr fails here rather than in the background.
func EnableMetrics(addr string) (string, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	metricsOn.Store(true)
	go func() {
		_ = server.Serve(ln)
	}()
	return ln.Addr().String(), nil
}

func observeMessage() {
	if !metricsOn.Load() {
		return
	}
	messagesProcessed.Inc()
}

func observeRow(xp int) {
	if !metricsOn.Load() {
		return
	}
	activityRows.Inc()
	xpAwarded.Add(float64(xp))
}

func observeSkippedFile() {
	if !metricsOn.Load() {
		return
	}
	filesSkipped.Inc()
}

func observeGuild(d time.Duration, updates int) {
	if !metricsOn.Load() {
		return
	}
	guildSeconds.Observe(d.Seconds())
	flushRows.Observe(float64(updates))
}
