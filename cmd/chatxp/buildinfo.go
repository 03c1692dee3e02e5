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
	"flag"
	"fmt"
	"os"
	"runtime/debug"
)

// BuildInfo returns the build info data of the binary.
func BuildInfo() (*debug.BuildInfo, bool) {
	return debug.ReadBuildInfo()
}

// Version returns the version of the binary, based on BuildInfo data.
func Version() (string, bool) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "", false
	}

	rev, hasRev := findSetting(bi, "vcs.revision")
	date, hasDate := findSetting(bi, "vcs.time")
	if hasRev && hasDate {
		return fmt.Sprintf("date: %s, revision: %s", date, rev), true
	} else if hasRev {
		return fmt.Sprintf("revision: %s", rev), true
	} else if hasDate {
		return fmt.Sprintf("date: %s", date), true
	}

	return "", false
}

func findSetting(bi *debug.BuildInfo, key string) (string, bool) {
	for i := range bi.Settings {
		if bi.Settings[i].Key == key {
			return bi.Settings[i].Value, true
		}
	}

	return "", false
}

func runVersion(args []string) {
	cmd := flag.NewFlagSet("version", flag.ExitOnError)
	build := cmd.Bool("build", false, "print the full build info")
	if cmd.Parse(args) != nil {
		os.Exit(1)
	}
	if *build {
		bi, ok := BuildInfo()
		if !ok {
			exitf("build info not available\n")
		}
		fmt.Print(bi)
		return
	}
	v, ok := Version()
	if ok {
		fmt.Println(v)
	} else {
		fmt.Println("version not available, please check -build")
	}
}
