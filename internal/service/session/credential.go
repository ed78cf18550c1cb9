package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"interview-session-service/internal/clock"
	"interview-session-service/internal/observability/logging"
	"interview-session-service/internal/transport"
)

// CredentialSource obtains a connection credential for a session.
type CredentialSource interface {
	Fetch(ctx context.Context, sessionId string) (transport.Credential, error)
}

// CredentialCache holds prefetched credentials. An entry is handed out at most
// once and only while younger than the freshness window.
type CredentialCache struct {
	mu        sync.Mutex
	clock     clock.Clock
	freshness time.Duration
	entries   map[string]cachedCredential
}

type cachedCredential struct {
	cred    transport.Credential
	fetched time.Time
}

// NewCredentialCache creates an empty cache.
func NewCredentialCache(freshness time.Duration, clk clock.Clock) *CredentialCache {
	if clk == nil {
		clk = clock.New()
	}
	return &CredentialCache{clock: clk, freshness: freshness, entries: make(map[string]cachedCredential)}
}

// Put stores a credential fetched now.
func (c *CredentialCache) Put(sessionId string, cred transport.Credential) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sessionId] = cachedCredential{cred: cred, fetched: c.clock.Now()}
}

// Take removes and returns the credential when it is still fresh. Stale
// entries are removed too.
func (c *CredentialCache) Take(sessionId string) (transport.Credential, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[sessionId]
	if !ok {
		return transport.Credential{}, false
	}
	delete(c.entries, sessionId)
	if c.clock.Now().Sub(entry.fetched) >= c.freshness {
		return transport.Credential{}, false
	}
	return entry.cred, true
}

// CachingSource serves from the cache first and falls back to the upstream
// source.
type CachingSource struct {
	Cache    *CredentialCache
	Upstream CredentialSource
}

func (s *CachingSource) Fetch(ctx context.Context, sessionId string) (transport.Credential, error) {
	if cred, ok := s.Cache.Take(sessionId); ok {
		logger := logging.WithSessionComponent(sessionId, "credential")
		logger.Debug().Msg("Using prefetched credential")
		return cred, nil
	}
	return s.Upstream.Fetch(ctx, sessionId)
}

// Prefetch fetches a credential ahead of Start and caches it.
func (s *CachingSource) Prefetch(ctx context.Context, sessionId string) error {
	cred, err := s.Upstream.Fetch(ctx, sessionId)
	if err != nil {
		return err
	}
	s.Cache.Put(sessionId, cred)
	return nil
}

// CredentialStatusError is a non-2xx credential endpoint response.
type CredentialStatusError struct {
	Code int
	Body string
}

func (e *CredentialStatusError) Error() string {
	return fmt.Sprintf("credential endpoint returned %d: %s", e.Code, e.Body)
}

// HTTPSource fetches credentials from an HTTP endpoint returning
// {"url": ..., "token": ...}. Server errors and network failures are retried
// with linear backoff.
type HTTPSource struct {
	Endpoint   string
	Attempts   int
	RetryDelay time.Duration
	Client     *http.Client
}

// NewHTTPSource creates a credential source with a pooled client.
func NewHTTPSource(endpoint string, attempts int, retryDelay time.Duration) *HTTPSource {
	return &HTTPSource{
		Endpoint:   endpoint,
		Attempts:   attempts,
		RetryDelay: retryDelay,
		Client: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// linearBackoff waits delay, 2*delay, 3*delay, ...
func linearBackoff(delay time.Duration) retry.Backoff {
	var n int64
	return retry.BackoffFunc(func() (time.Duration, bool) {
		n++
		return time.Duration(n) * delay, false
	})
}

func (s *HTTPSource) Fetch(ctx context.Context, sessionId string) (transport.Credential, error) {
	attempts := s.Attempts
	if attempts < 1 {
		attempts = 1
	}
	logger := logging.WithSessionComponent(sessionId, "credential")

	var cred transport.Credential
	attempt := 0
	backoff := retry.WithMaxRetries(uint64(attempts-1), linearBackoff(s.RetryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		c, err := s.fetchOnce(ctx, sessionId)
		if err == nil {
			cred = c
			return nil
		}
		var statusErr *CredentialStatusError
		if errors.As(err, &statusErr) && statusErr.Code < http.StatusInternalServerError {
			return err
		}
		logger.Warn().Err(err).Int("attempt", attempt).Msg("Credential fetch failed, retrying")
		return retry.RetryableError(err)
	})
	if err != nil {
		return transport.Credential{}, fmt.Errorf("fetch credential after %d attempt(s): %w", attempt, err)
	}
	return cred, nil
}

func (s *HTTPSource) fetchOnce(ctx context.Context, sessionId string) (transport.Credential, error) {
	u, err := url.Parse(s.Endpoint)
	if err != nil {
		return transport.Credential{}, fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("sessionId", sessionId)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return transport.Credential{}, err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return transport.Credential{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return transport.Credential{}, &CredentialStatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var cred transport.Credential
	if err := json.NewDecoder(resp.Body).Decode(&cred); err != nil {
		return transport.Credential{}, fmt.Errorf("decode credential: %w", err)
	}
	if cred.Token == "" {
		return transport.Credential{}, errors.New("credential response has no token")
	}
	return cred, nil
}
