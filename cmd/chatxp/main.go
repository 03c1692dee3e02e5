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

// Command chatxp replays exported chat history into the activity
// database, scoring XP exactly as the live bot would have.
package main

import (
	"fmt"
	"os"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		usage()
	}
	switch args[0] {
	case "import":
		runImport(args[1:])
	case "version":
		runVersion(args[1:])
	case "help", "-h", "-help", "--help":
		usage()
	default:
		exitf("unknown command %q (commands: import, version)\n", args[0])
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "    %s import -file <export.json> [flags]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "    %s import -dir <dir> [-pattern '*.json'] [flags]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "        replay chat exports into the activity database\n")
	fmt.Fprintf(os.Stderr, "        (%s import -h lists the flags)\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "    %s version [-build]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "        print the binary version\n")
	os.Exit(1)
}

func exitf(f string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, f, args...)
	os.Exit(1)
}

// logf logs one line to stderr, supplying the trailing newline so
// callers can pass bare format strings.
func logf(f string, args ...interface{}) {
	if f == "" || f[len(f)-1] != '\n' {
		f += "\n"
	}
	fmt.Fprintf(os.Stderr, f, args...)
}
