// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
)

// CheckMode selects how thorough VerifyIntegrity is.
type CheckMode string

const (
	// CheckQuick runs PRAGMA quick_check. It skips index consistency and is
	// what the cache runs on every open.
	CheckQuick CheckMode = "quick"
	// CheckFull runs PRAGMA integrity_check.
	CheckFull CheckMode = "full"
)

func (m CheckMode) pragma() (string, error) {
	switch m {
	case CheckQuick, "":
		return "PRAGMA quick_check;", nil
	case CheckFull:
		return "PRAGMA integrity_check;", nil
	default:
		return "", fmt.Errorf("sqlite: unknown check mode %q", string(m))
	}
}

// VerifyIntegrity opens the database at path read-only and checks it. It
// returns nil problems for a healthy file and the reported rows otherwise.
// An error means the check itself could not run, which for a cache file
// usually means it is not a database at all.
func VerifyIntegrity(path string, mode CheckMode) ([]string, error) {
	pragma, err := mode.pragma()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(2000)", path))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s read-only: %w", path, err)
	}
	defer db.Close()

	rows, err := db.Query(pragma)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %s check of %s: %w", mode, path, err)
	}
	defer rows.Close()

	var problems []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("sqlite: read check result: %w", err)
		}
		if !strings.EqualFold(line, "ok") {
			problems = append(problems, line)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: read check result: %w", err)
	}
	return problems, nil
}
