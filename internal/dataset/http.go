package dataset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPConfig tunes the HTTP raw-table source. Zero values get defaults:
// 30s timeout, 3 retries, 200ms initial backoff capped at 5s.
type HTTPConfig struct {
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Transport is an optional custom RoundTripper for tests.
	Transport http.RoundTripper
}

// HTTPSource fetches raw tables from baseURL/<table>.csv with retry and
// exponential backoff on transient failures. A 404 maps to ErrMissingInput,
// same as a missing local file.
type HTTPSource struct {
	base    string
	client  *http.Client
	retries int
	backoff time.Duration
	maxWait time.Duration

	// sleep is injectable to make retry tests fast and deterministic.
	sleep func(time.Duration)
}

// NewHTTPSource returns a Source fetching from the given base URL.
func NewHTTPSource(baseURL string, cfg HTTPConfig) *HTTPSource {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}
	return &HTTPSource{
		base:    strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		retries: cfg.MaxRetries,
		backoff: cfg.InitialBackoff,
		maxWait: cfg.MaxBackoff,
		sleep:   time.Sleep,
	}
}

// Open fetches the named table. Transient failures (network errors, 5xx) are
// retried; 404 fails immediately with ErrMissingInput.
func (s *HTTPSource) Open(ctx context.Context, table string) (io.ReadCloser, error) {
	url := s.base + "/" + table + ".csv"

	wait := s.backoff
	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
			s.sleep(wait)
			wait *= 2
			if wait > s.maxWait {
				wait = s.maxWait
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return resp.Body, nil
		case resp.StatusCode == http.StatusNotFound:
			resp.Body.Close()
			return nil, fmt.Errorf("%w: %s (%s)", ErrMissingInput, table, url)
		case resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = fmt.Errorf("fetch %s: %s", url, resp.Status)
			continue
		default:
			resp.Body.Close()
			return nil, fmt.Errorf("fetch %s: %s", url, resp.Status)
		}
	}
	return nil, fmt.Errorf("fetch %s: retries exhausted: %w", url, lastErr)
}
