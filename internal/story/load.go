// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package story

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// ErrInvalidUsersFile is returned when a users file fails validation.
var ErrInvalidUsersFile = errors.New("invalid users file")

type usersFile struct {
	Users []userEntry `yaml:"users"`
}

type userEntry struct {
	ID      string       `yaml:"id"`
	Name    string       `yaml:"name"`
	Avatar  string       `yaml:"avatar"`
	Stories []storyEntry `yaml:"stories"`
}

type storyEntry struct {
	ID        string    `yaml:"id"`
	URL       string    `yaml:"url"`
	Kind      MediaKind `yaml:"kind"`
	CreatedAt time.Time `yaml:"created_at"`
	Caption   string    `yaml:"caption"`
	Duration  float64   `yaml:"duration"`
	Seen      bool      `yaml:"seen"`
}

// LoadUsersFile reads a YAML users file from disk.
func LoadUsersFile(path string) ([]*User, error) {
	// #nosec G304 -- path is operator supplied
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read users file: %w", err)
	}
	return DecodeUsers(bytes.NewReader(data))
}

// DecodeUsers parses the YAML users document. Unknown keys are rejected.
// Names and captions are normalised to NFC.
func DecodeUsers(r io.Reader) ([]*User, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc usersFile
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUsersFile, err)
	}

	seen := make(map[string]struct{}, len(doc.Users))
	users := make([]*User, 0, len(doc.Users))
	for i, ue := range doc.Users {
		id := ue.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: duplicate user id %q", ErrInvalidUsersFile, id)
		}
		seen[id] = struct{}{}

		u := &User{ID: id, Name: norm.NFC.String(ue.Name), AvatarURL: ue.Avatar}
		for j, se := range ue.Stories {
			if se.URL == "" {
				return nil, fmt.Errorf("%w: users[%d].stories[%d]: url is required", ErrInvalidUsersFile, i, j)
			}
			if se.Kind != "" && !se.Kind.Valid() {
				return nil, fmt.Errorf("%w: users[%d].stories[%d]: unknown kind %q", ErrInvalidUsersFile, i, j, se.Kind)
			}
			if se.Duration < 0 {
				return nil, fmt.Errorf("%w: users[%d].stories[%d]: duration must be positive", ErrInvalidUsersFile, i, j)
			}
			s := &Story{
				ID:        se.ID,
				MediaURL:  se.URL,
				CreatedAt: se.CreatedAt,
				Caption:   norm.NFC.String(se.Caption),
				Duration:  se.Duration,
				Kind:      se.Kind,
			}
			if se.Seen {
				s.State = Seen
			}
			s.Normalize()
			u.Stories = append(u.Stories, s)
		}
		users = append(users, u)
	}
	return users, nil
}
