// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package queue

import (
	"time"

	"github.com/ManuGH/storyreel/internal/story"
)

// StorySummary is a copy of one story taken under the queue lock.
type StorySummary struct {
	ID        string          `json:"id"`
	Kind      story.MediaKind `json:"kind"`
	MediaURL  string          `json:"media_url"`
	Caption   string          `json:"caption,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Duration  float64         `json:"duration"`
	Seen      bool            `json:"seen"`
}

// UserSummary is a copy of one user taken under the queue lock.
type UserSummary struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	AvatarURL string         `json:"avatar_url,omitempty"`
	SeenCount int            `json:"seen_count"`
	AllSeen   bool           `json:"all_seen"`
	Stories   []StorySummary `json:"stories"`
}

// Summaries returns a consistent copy of the queue in display order.
func (q *Queue) Summaries() []UserSummary {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]UserSummary, 0, len(q.users))
	for _, u := range q.users {
		us := UserSummary{
			ID:        u.ID,
			Name:      u.Name,
			AvatarURL: u.AvatarURL,
			SeenCount: u.SeenCount(),
			AllSeen:   u.AllSeen(),
			Stories:   make([]StorySummary, 0, len(u.Stories)),
		}
		for _, s := range u.Stories {
			us.Stories = append(us.Stories, StorySummary{
				ID:        s.ID,
				Kind:      s.Kind,
				MediaURL:  s.MediaURL,
				Caption:   s.Caption,
				CreatedAt: s.CreatedAt,
				Duration:  s.Duration,
				Seen:      s.IsSeen(),
			})
		}
		out = append(out, us)
	}
	return out
}
