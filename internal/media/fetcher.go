// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	xglog "github.com/ManuGH/storyreel/internal/log"
	"github.com/ManuGH/storyreel/internal/metrics"
	"github.com/ManuGH/storyreel/internal/platform/httpx"
	platformnet "github.com/ManuGH/storyreel/internal/platform/net"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Fetcher downloads the bytes behind a media URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// FetchConfig tunes HTTPFetcher.
type FetchConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	MaxBytes    int64         `yaml:"max_bytes"`
	RatePerSec  float64       `yaml:"rate_per_sec"`
	Burst       int           `yaml:"burst"`
	MaxAttempts int           `yaml:"max_attempts"`
	BaseBackoff time.Duration `yaml:"base_backoff"`
	MaxBackoff  time.Duration `yaml:"max_backoff"`
	UserAgent   string        `yaml:"user_agent"`
	// AllowHosts and AllowCIDRs restrict downloads to the listed hosts.
	// Both empty means any public host.
	AllowHosts []string `yaml:"allow_hosts"`
	AllowCIDRs []string `yaml:"allow_cidrs"`
}

// HostPolicy builds the download allowlist, or nil when none is configured.
func (c FetchConfig) HostPolicy() (*platformnet.HostPolicy, error) {
	if len(c.AllowHosts) == 0 && len(c.AllowCIDRs) == 0 {
		return nil, nil
	}
	return platformnet.NewHostPolicy(c.AllowHosts, c.AllowCIDRs)
}

// DefaultFetchConfig returns the settings used when the config file leaves
// the fetch section empty.
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		Timeout:     30 * time.Second,
		MaxBytes:    64 << 20,
		RatePerSec:  20,
		Burst:       10,
		MaxAttempts: 3,
		BaseBackoff: 200 * time.Millisecond,
		MaxBackoff:  2 * time.Second,
		UserAgent:   "storyreel",
	}
}

// HTTPFetcher is the Fetcher used in production. Concurrent requests for
// the same URL share one download.
type HTTPFetcher struct {
	cfg     FetchConfig
	client  *http.Client
	limiter *rate.Limiter
	policy  *platformnet.HostPolicy
	group   singleflight.Group
	logger  zerolog.Logger
}

// NewHTTPFetcher builds a fetcher. A nil client selects httpx.NewClient.
func NewHTTPFetcher(cfg FetchConfig, client *http.Client) (*HTTPFetcher, error) {
	policy, err := cfg.HostPolicy()
	if err != nil {
		return nil, fmt.Errorf("fetch allowlist: %w", err)
	}
	def := DefaultFetchConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = def.MaxBytes
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = def.BaseBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if client == nil {
		client = httpx.NewClient(cfg.Timeout)
	}

	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &HTTPFetcher{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
		policy:  policy,
		logger:  xglog.WithComponent("fetch"),
	}, nil
}

// ValidateURL checks that rawURL is an absolute http or https URL.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return ErrInvalidURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return nil
}

// Fetch implements Fetcher. Errors wrap ErrInvalidURL or ErrNetwork, except
// that a cancelled ctx returns ctx.Err().
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}
	if err := f.policy.Check(ctx, rawURL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	ch := f.group.DoChan(rawURL, func() (any, error) {
		return f.fetchWithRetry(ctx, rawURL)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			// The shared download may have been cancelled by another caller.
			if res.Shared && errors.Is(res.Err, context.Canceled) && ctx.Err() == nil {
				return f.fetchWithRetry(ctx, rawURL)
			}
			return nil, res.Err
		}
		data := res.Val.([]byte)
		if res.Shared {
			out := make([]byte, len(data))
			copy(out, data)
			return out, nil
		}
		return data, nil
	}
}

func (f *HTTPFetcher) fetchWithRetry(ctx context.Context, rawURL string) ([]byte, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = f.cfg.BaseBackoff
	exp.Multiplier = 2
	exp.MaxInterval = f.cfg.MaxBackoff
	exp.Reset()

	start := time.Now()
	var (
		data []byte
		err  error
	)
	for attempt := 1; ; attempt++ {
		data, err = f.fetchOnce(ctx, rawURL)
		if err == nil {
			metrics.FetchDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var perm *backoff.PermanentError
		if errors.As(err, &perm) || attempt >= f.cfg.MaxAttempts {
			break
		}

		wait := exp.NextBackOff()
		f.logger.Debug().
			Err(err).
			Str(xglog.FieldURL, platformnet.SanitizeURL(rawURL)).
			Int("attempt", attempt).
			Dur("wait", wait).
			Msg("media fetch failed, retrying")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}
	metrics.FetchDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
	metrics.FetchErrors.WithLabelValues(Reason(err)).Inc()
	f.logger.Warn().
		Err(err).
		Str(xglog.FieldEvent, "media.fetch_failed").
		Str(xglog.FieldURL, platformnet.SanitizeURL(rawURL)).
		Msg("media fetch failed")
	return nil, err
}

// fetchOnce performs a single GET. Client errors (4xx) and oversized
// bodies are wrapped as permanent so they are not retried.
func (f *HTTPFetcher) fetchOnce(ctx context.Context, rawURL string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit: %v", ErrNetwork, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("%w: %v", ErrInvalidURL, err))
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		statusErr := fmt.Errorf("%w: unexpected status %d", ErrNetwork, resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(statusErr)
		}
		return nil, statusErr
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrNetwork, err)
	}
	if int64(len(data)) > f.cfg.MaxBytes {
		return nil, backoff.Permanent(fmt.Errorf("%w: body exceeds %d bytes", ErrNetwork, f.cfg.MaxBytes))
	}
	return data, nil
}
