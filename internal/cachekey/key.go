// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package cachekey maps source URLs to stable, filesystem-safe cache keys.
package cachekey

import (
	"crypto/md5" // #nosec G501 -- content addressing, not a security boundary
	"encoding/hex"
)

// Size is the length of a key in hex characters.
const Size = md5.Size * 2

// Key returns the lowercase hex MD5 digest of rawURL. The mapping has no
// salt and no failure mode: a malformed URL still hashes.
func Key(rawURL string) string {
	sum := md5.Sum([]byte(rawURL)) // #nosec G401
	return hex.EncodeToString(sum[:])
}

// Valid reports whether s looks like a key produced by Key.
func Valid(s string) bool {
	if len(s) != Size {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
