package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const maxAttempts = 5

// Fetcher performs rate-limited GETs with bounded retry on 429s and
// transport errors. Every request, retry or not, first takes a slot from the
// shared limiter.
type Fetcher struct {
	HTTP       *http.Client
	Limiter    *Limiter
	RetryDelay time.Duration
	Log        *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewFetcher builds a fetcher around a shared limiter.
func NewFetcher(client *http.Client, limiter *Limiter, retryDelay time.Duration, log *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Fetcher{
		HTTP:       client,
		Limiter:    limiter,
		RetryDelay: retryDelay,
		Log:        log,
		sleep:      sleepCtx,
	}
}

// GetJSON fetches url and decodes the body into dest.
//
// 429 responses and transport errors are retried up to 5 attempts with
// exponential backoff (retryDelay * 2^min(attempt,3)), honoring a
// server-supplied Retry-After. Exhausting the budget yields ErrRateLimited.
// Any other non-2xx status fails immediately with *APIError: it signals a
// client-side problem that retrying cannot fix.
func (f *Fetcher) GetJSON(ctx context.Context, url string, dest any) error {
	var retryAfter time.Duration

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := f.RetryDelay * (1 << min(attempt, 3))
			if retryAfter > delay {
				delay = retryAfter
			}
			f.Log.Warn("retrying explorer request", "attempt", attempt+1, "delay", delay, "url", url)
			if err := f.sleep(ctx, delay); err != nil {
				return err
			}
		}
		retryAfter = 0

		if err := f.Limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}

		resp, err := f.HTTP.Do(req)
		if err != nil {
			f.Log.Warn("explorer request failed", "error", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
			drain(resp)
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			drain(resp)
			return &APIError{Status: resp.StatusCode}
		}

		err = json.NewDecoder(resp.Body).Decode(dest)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}

	return ErrRateLimited
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}
