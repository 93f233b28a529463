// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// validate checks a storyreel configuration file and the users file it
// points at, without starting the engine.
//
// Usage:
//
//	validate -f config.yaml
//
// Exit codes:
//   - 0: configuration is valid
//   - 1: configuration or users file is invalid
//   - 2: usage error
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ManuGH/storyreel/internal/config"
	"github.com/ManuGH/storyreel/internal/story"
	"github.com/ManuGH/storyreel/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var file string
	var showVersion bool
	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")
	fs.BoolVar(&showVersion, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if showVersion {
		_, _ = fmt.Fprintln(stdout, version.String())
		return 0
	}
	if file == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --file is required")
		_, _ = fmt.Fprintln(stderr, "Usage: validate -f config.yaml")
		return 2
	}

	cfg, err := config.NewLoader(file, version.Version).Load()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", file, err)
		return 1
	}
	if err := config.Validate(cfg); err != nil {
		_, _ = fmt.Fprintf(stderr, "Validation error in %s:\n  %v\n", file, err)
		return 1
	}

	users, err := story.LoadUsersFile(cfg.UsersFile)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Users file error in %s:\n  %v\n", cfg.UsersFile, err)
		return 1
	}
	stories := 0
	for _, u := range users {
		stories += len(u.Stories)
	}

	_, _ = fmt.Fprintf(stdout, "%s is valid (%d users, %d stories)\n", file, len(users), stories)
	return 0
}
