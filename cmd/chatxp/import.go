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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/vycdev/chatxp/export"
	"github.com/vycdev/chatxp/ingest"
	"github.com/vycdev/chatxp/internal/dotenv"
	"github.com/vycdev/chatxp/store"
)

// environment variables shared with the bot that owns the schema
const (
	dsnVar    = "DB_CONNECTION_STRING"
	windowVar = "ACTIVITY_SIMILARITY_WINDOW_MINUTES"
)

func runImport(args []string) {
	cmd := flag.NewFlagSet("import", flag.ExitOnError)
	file := cmd.String("file", "", "path to a single export file")
	dir := cmd.String("dir", "", "directory of export files (non-recursive)")
	pattern := cmd.String("pattern", "*.json", "file name pattern for -dir")
	guild := cmd.Uint64("guild", 0, "only import this guild id")
	dryRun := cmd.Bool("dry-run", false, "parse and score, but do not touch the database")
	fast := cmd.Bool("fast", false, "merge each guild's files and bulk-load them")
	skipBad := cmd.Bool("skip-bad-files", false, "warn and continue when an export fails to load")
	defPath := cmd.String("def", "", "import definition file (json or yaml)")
	window := cmd.Int("window", 0, "similarity window in minutes (default: $"+windowVar+" or 10)")
	jobs := cmd.Int("jobs", 1, "concurrent guild ingests with -fast")
	metrics := cmd.String("metrics", "", "serve Prometheus metrics on this address")
	envFile := cmd.String("env", ".env", "environment file to load")
	verbose := cmd.Bool("v", false, "verbose")
	if cmd.Parse(args) != nil {
		os.Exit(1)
	}
	if cmd.NArg() != 0 {
		exitf("unexpected argument %q\n", cmd.Arg(0))
	}

	// the default .env is best-effort; a named one must exist
	if err := dotenv.Load(*envFile); err != nil {
		if *envFile != ".env" || !os.IsNotExist(err) {
			exitf("%s\n", err)
		}
	}

	var def *ingest.Definition
	if *defPath != "" {
		var err error
		def, err = ingest.OpenDefinition(*defPath)
		if err != nil {
			exitf("%s\n", err)
		}
	}

	paths := inputPaths(cmd, *file, *dir, *pattern, def)
	if len(paths) == 0 {
		logf("no export files matched")
		return
	}

	cfg := ingest.Config{
		Window:    resolveWindow(*window, def),
		Smoothing: def.Smoothing(),
		RecentCap: def.Cap(),
		Fast:      *fast,
		DryRun:    *dryRun,
		SkipBad:   *skipBad,
		Guild:     *guild,
		Jobs:      *jobs,
		Logf:      logf,
		Progress:  os.Stderr,
		Verbose:   *verbose,
	}

	if *metrics != "" {
		addr, err := ingest.EnableMetrics(*metrics)
		if err != nil {
			exitf("metrics: %s\n", err)
		}
		logf("serving /metrics on http://%s/metrics", addr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := ingest.Runner{Config: cfg}
	if !*dryRun {
		dsn := os.Getenv(dsnVar)
		if dsn == "" {
			fmt.Fprintf(os.Stderr, "%s not set; provide %s or the environment\n", dsnVar, *envFile)
			os.Exit(2)
		}
		db, err := store.Open(ctx, dsn)
		if err != nil {
			exitf("%s\n", err)
		}
		defer db.Close()
		runner.Store = db
	}

	sum, err := runner.Run(ctx, paths)
	if err != nil {
		exitf("import: %s\n", err)
	}
	verb := "imported"
	if *dryRun {
		verb = "scored"
	}
	fmt.Printf("%s %d rows (%d xp) from %d files across %d guilds\n",
		verb, sum.Rows, sum.XP, sum.Files, sum.Guilds)
	if sum.Skipped > 0 {
		fmt.Printf("skipped %d files\n", sum.Skipped)
	}
}

// inputPaths resolves the import file list: -file or -dir wins, then
// the definition's inputs. Having nothing to read is a usage error.
func inputPaths(cmd *flag.FlagSet, file, dir, pattern string, def *ingest.Definition) []string {
	if file != "" && dir != "" {
		exitf("-file and -dir are mutually exclusive\n")
	}
	switch {
	case file != "":
		return []string{file}
	case dir != "":
		paths, err := export.Discover(dir, pattern)
		if err != nil {
			exitf("%s\n", err)
		}
		return paths
	case def != nil && len(def.Inputs) > 0:
		var paths []string
		for i := range def.Inputs {
			in := &def.Inputs[i]
			switch {
			case in.File != "" && in.Dir != "":
				exitf("definition input %d: file and dir are mutually exclusive\n", i)
			case in.File != "":
				paths = append(paths, in.File)
			case in.Dir != "":
				pat := in.Pattern
				if pat == "" {
					pat = "*.json"
				}
				more, err := export.Discover(in.Dir, pat)
				if err != nil {
					exitf("%s\n", err)
				}
				paths = append(paths, more...)
			default:
				exitf("definition input %d: needs file or dir\n", i)
			}
		}
		return paths
	}
	fmt.Fprintf(os.Stderr, "one of -file or -dir is required\n")
	cmd.Usage()
	os.Exit(1)
	return nil
}

// resolveWindow picks the similarity window: an explicit -window wins,
// then the definition file, then the environment, then ten minutes.
func resolveWindow(minutes int, def *ingest.Definition) time.Duration {
	if minutes > 0 {
		return time.Duration(minutes) * time.Minute
	}
	if def != nil && def.WindowMinutes > 0 {
		return def.Window()
	}
	if env := os.Getenv(windowVar); env != "" {
		if n, err := strconv.Atoi(env); err == nil && n > 0 {
			return time.Duration(n) * time.Minute
		}
	}
	return ingest.DefaultWindow
}
