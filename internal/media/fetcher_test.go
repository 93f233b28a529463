// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFetcher(t *testing.T, srv *httptest.Server, mutate func(*FetchConfig)) *HTTPFetcher {
	t.Helper()
	cfg := FetchConfig{
		Timeout:     5 * time.Second,
		MaxAttempts: 3,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	f, err := NewHTTPFetcher(cfg, srv.Client())
	require.NoError(t, err)
	return f
}

func TestHTTPFetcher_Success(t *testing.T) {
	var ua atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua.Store(r.UserAgent())
		_, _ = w.Write([]byte("image-bytes"))
	}))
	defer srv.Close()

	data, err := testFetcher(t, srv, nil).Fetch(context.Background(), srv.URL+"/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("image-bytes"), data)
	assert.Equal(t, "storyreel", ua.Load())
}

func TestHTTPFetcher_ClientErrorIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.NotFound(w, nil)
	}))
	defer srv.Close()

	_, err := testFetcher(t, srv, nil).Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, ErrNetwork)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), hits.Load())
}

func TestHTTPFetcher_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	data, err := testFetcher(t, srv, nil).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), data)
	assert.Equal(t, int32(3), hits.Load())
}

func TestHTTPFetcher_GivesUpAfterMaxAttempts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testFetcher(t, srv, func(c *FetchConfig) { c.MaxAttempts = 2 }).Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, int32(2), hits.Load())
}

func TestHTTPFetcher_RejectsOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	_, err := testFetcher(t, srv, func(c *FetchConfig) { c.MaxBytes = 16 }).Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, ErrNetwork)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestHTTPFetcher_InvalidURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected")
	}))
	defer srv.Close()
	f := testFetcher(t, srv, nil)

	for _, u := range []string{"", "ftp://example.com/a.jpg", "example.com/a.jpg", "http://", "://broken"} {
		_, err := f.Fetch(context.Background(), u)
		assert.ErrorIs(t, err, ErrInvalidURL, "url %q", u)
	}
}

func TestHTTPFetcher_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := testFetcher(t, srv, nil).Fetch(ctx, srv.URL)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReason(t *testing.T) {
	assert.Equal(t, "none", Reason(nil))
	assert.Equal(t, "network", Reason(ErrNetwork))
	assert.Equal(t, "export_failed", Reason(&ExportError{Detail: "moov atom not found"}))
	assert.Equal(t, "other", Reason(context.Canceled))
}

func TestHTTPFetcher_HostAllowlist(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	allowed := testFetcher(t, srv, func(c *FetchConfig) { c.AllowCIDRs = []string{"127.0.0.0/8"} })
	_, err := allowed.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	denied := testFetcher(t, srv, func(c *FetchConfig) { c.AllowHosts = []string{"cdn.example.com"} })
	_, err = denied.Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, ErrInvalidURL)
	assert.Equal(t, int32(1), hits.Load())

	_, err = NewHTTPFetcher(FetchConfig{AllowCIDRs: []string{"bogus"}}, nil)
	assert.Error(t, err)
}
