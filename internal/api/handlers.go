// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/ManuGH/storyreel/internal/cache"
	xglog "github.com/ManuGH/storyreel/internal/log"
	"github.com/ManuGH/storyreel/internal/playback"
	"github.com/ManuGH/storyreel/internal/queue"
	"github.com/ManuGH/storyreel/internal/story"
	"github.com/ManuGH/storyreel/internal/viewer"
	"github.com/go-chi/chi/v5"
)

type stateResponse struct {
	Viewing bool `json:"viewing"`
	playback.Snapshot
	Caption string `json:"caption,omitempty"`
	// Posted is the relative creation time of the active story.
	Posted string `json:"posted,omitempty"`
}

type userResponse struct {
	queue.UserSummary
	Stories []storyResponse `json:"stories"`
}

type storyResponse struct {
	queue.StorySummary
	Posted string `json:"posted"`
}

type sweepResponse struct {
	Cutoff  time.Time      `json:"cutoff"`
	Removed map[string]int `json:"removed"`
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	snap := s.engine.Snapshot()
	resp := stateResponse{Viewing: snap.Viewing(), Snapshot: snap}
	if snap.StoryID != "" {
		for _, u := range s.engine.Summaries() {
			if u.ID != snap.UserID {
				continue
			}
			for _, st := range u.Stories {
				if st.ID == snap.StoryID {
					resp.Caption = st.Caption
					resp.Posted = story.Relative(st.CreatedAt, time.Now())
				}
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUsers(w http.ResponseWriter, _ *http.Request) {
	now := time.Now()
	summaries := s.engine.Summaries()
	out := make([]userResponse, 0, len(summaries))
	for _, u := range summaries {
		ur := userResponse{UserSummary: u, Stories: make([]storyResponse, 0, len(u.Stories))}
		for _, st := range u.Stories {
			ur.Stories = append(ur.Stories, storyResponse{StorySummary: st, Posted: story.Relative(st.CreatedAt, now)})
		}
		out = append(out, ur)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.engine.Open(id); err != nil {
		switch {
		case errors.Is(err, viewer.ErrUnknownUser):
			RespondError(w, r, 0, ErrUnknownUser, id)
		case errors.Is(err, viewer.ErrClosed):
			RespondError(w, r, 0, ErrUnavailable, err.Error())
		default:
			RespondError(w, r, http.StatusInternalServerError, ErrUnavailable, err.Error())
		}
		return
	}
	xglog.FromContext(r.Context()).Info().
		Str(xglog.FieldEvent, "api.open").
		Str(xglog.FieldUserID, id).
		Msg("playback opened")
	s.writeState(w)
}

func (s *Server) handleNext(w http.ResponseWriter, _ *http.Request) {
	s.engine.Next()
	s.writeState(w)
}

func (s *Server) handlePrevious(w http.ResponseWriter, _ *http.Request) {
	s.engine.Previous()
	s.writeState(w)
}

func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request) {
	s.engine.SetPaused(true)
	s.writeState(w)
}

func (s *Server) handleResume(w http.ResponseWriter, _ *http.Request) {
	s.engine.SetPaused(false)
	s.writeState(w)
}

func (s *Server) handleClose(w http.ResponseWriter, _ *http.Request) {
	s.engine.Dismiss()
	s.writeState(w)
}

func (s *Server) writeState(w http.ResponseWriter) {
	snap := s.engine.Snapshot()
	writeJSON(w, http.StatusOK, stateResponse{Viewing: snap.Viewing(), Snapshot: snap})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	class, err := cache.ParseClass(chi.URLParam(r, "class"))
	if err != nil {
		RespondError(w, r, 0, ErrInvalidClass, err.Error())
		return
	}
	s.engine.Store().ClearAll(r.Context(), class)
	w.WriteHeader(http.StatusNoContent)
}

// handleCacheSweep removes story media created before the "before" query
// parameter (RFC 3339), defaulting to one expiry period ago. Profile
// entries are never swept.
func (s *Server) handleCacheSweep(w http.ResponseWriter, r *http.Request) {
	cutoff := time.Now().Add(-story.DefaultCacheExpiry)
	if raw := r.URL.Query().Get("before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			RespondError(w, r, 0, ErrInvalidInput, "before must be RFC 3339")
			return
		}
		cutoff = t
	}

	store := s.engine.Store()
	resp := sweepResponse{Cutoff: cutoff, Removed: map[string]int{}}
	for _, class := range []cache.Class{cache.ClassStoryImage, cache.ClassStoryVideo} {
		resp.Removed[string(class)] = store.SweepExpired(r.Context(), cutoff, class)
	}
	writeJSON(w, http.StatusOK, resp)
}
