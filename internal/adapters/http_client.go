package adapters

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
)

const defaultHTTPTimeout = 60 * time.Second
const defaultHTTPRetries = 3
const defaultHTTPRetryDelay = 200 * time.Millisecond
const maxHTTPRetryDelay = 2 * time.Second
const maxRetryAfter = 10 * time.Second
const maxErrorBody = 512

type httpRetryConfig struct {
	timeout   time.Duration
	retries   int
	baseDelay time.Duration
}

func normalizeHTTPConfig(timeoutSec int, retries int, delayMs int) httpRetryConfig {
	timeout := time.Duration(timeoutSec) * time.Second
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	retryCount := retries
	if retryCount <= 0 {
		retryCount = defaultHTTPRetries
	}
	baseDelay := time.Duration(delayMs) * time.Millisecond
	if baseDelay <= 0 {
		baseDelay = defaultHTTPRetryDelay
	}
	return httpRetryConfig{
		timeout:   timeout,
		retries:   retryCount,
		baseDelay: baseDelay,
	}
}

// registryClient is the one HTTP client shared by every query of a run, so
// connections to the same registry stay warm.
type registryClient struct {
	client *http.Client
	cfg    httpRetryConfig
}

func newRegistryClient(cfg httpRetryConfig) registryClient {
	return registryClient{
		client: &http.Client{Timeout: cfg.timeout},
		cfg:    cfg,
	}
}

// get retries transport errors, 5xx and 429. A Retry-After header from the
// registry overrides the exponential backoff. Any other response is returned
// to the caller, which owns the body.
func (c registryClient) get(ctx context.Context, url string, accept string) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.retries; attempt++ {
		if attempt > 0 {
			log.Debug().Str("url", url).Int("attempt", attempt+1).Err(lastErr).Msg("retrying registry request")
		}
		resp, wait, err := c.try(ctx, url, accept)
		if err != nil && wait < 0 {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("invalid registry URL %s", url)).
				WithCause(err)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, canceled(ctx)
			}
			lastErr = err
		} else if wait < 0 || attempt == c.cfg.retries-1 {
			return resp, nil
		} else {
			lastErr = fmt.Errorf("status=%d url=%s", resp.StatusCode, url)
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		if attempt == c.cfg.retries-1 {
			break
		}
		if wait <= 0 {
			wait = httpRetryDelay(attempt, c.cfg)
		}
		if !sleepContext(ctx, wait) {
			return nil, canceled(ctx)
		}
	}
	return nil, errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg("request failed").
		WithCause(lastErr)
}

// try sends one request. A negative wait means the response is final; zero
// means retry with the default backoff.
func (c registryClient) try(ctx context.Context, url string, accept string) (*http.Response, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, -1, err
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	req.Header.Set("User-Agent", "pixi-outdated")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode < http.StatusInternalServerError && resp.StatusCode != http.StatusTooManyRequests {
		return resp, -1, nil
	}
	return resp, retryAfter(resp.Header.Get("Retry-After"), time.Now()), nil
}

// retryAfter reads a Retry-After value given in seconds or as an HTTP date.
// Unknown values yield zero; long waits are capped.
func retryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	var wait time.Duration
	if seconds, err := strconv.Atoi(value); err == nil {
		wait = time.Duration(seconds) * time.Second
	} else if at, err := http.ParseTime(value); err == nil {
		wait = at.Sub(now)
	}
	if wait <= 0 {
		return 0
	}
	if wait > maxRetryAfter {
		return maxRetryAfter
	}
	return wait
}

func canceled(ctx context.Context) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg("request canceled").
		WithCause(ctx.Err())
}

func httpRetryDelay(attempt int, cfg httpRetryConfig) time.Duration {
	delay := cfg.baseDelay << attempt
	if delay > maxHTTPRetryDelay || delay <= 0 {
		delay = maxHTTPRetryDelay
	}
	return delay + rand.N(delay/2+1)
}

// errorBody reads a bounded prefix of an error response for diagnostics.
func errorBody(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return string(data)
}

// sleepContext waits for d or until ctx is done; it reports whether the full
// delay elapsed.
func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
