// Package httputil runs outbound HTTP requests under a bounded attempt budget.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Policy bounds how many times a request is sent. The zero value sends once.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Logger      zerolog.Logger
}

// SingleAttempt never re-sends: a failed request is reported to the caller,
// which logs it and moves on.
var SingleAttempt = Policy{MaxAttempts: 1, Logger: zerolog.Nop()}

// StatusError is a response the server rejected with a retryable status
// (5xx or 429) on the final attempt.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// Do sends the request built by buildReq until it gets a non-retryable
// response or the budget runs out. buildReq is called per attempt so request
// bodies are fresh. Responses below 500 (except 429) are returned as-is for
// the caller to inspect.
func Do(ctx context.Context, client *http.Client, p Policy, buildReq func() (*http.Request, error)) (*http.Response, error) {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}

	var lastErr error
	delay := p.BaseDelay

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		req, err := buildReq()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := client.Do(req)
		if err == nil && !retryable(resp.StatusCode) {
			return resp, nil
		}

		if err != nil {
			lastErr = err
		} else {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			lastErr = &StatusError{Code: resp.StatusCode, Body: string(body)}
		}

		if attempt == p.MaxAttempts || ctx.Err() != nil {
			break
		}

		p.Logger.Warn().
			Err(lastErr).
			Int("attempt", attempt).
			Int("max_attempts", p.MaxAttempts).
			Dur("backoff", delay).
			Str("url", req.URL.Redacted()).
			Msg("request failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	if p.MaxAttempts == 1 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("all %d attempts failed, last error: %w", p.MaxAttempts, lastErr)
}

// IsStatus reports whether err carries a final HTTP status equal to code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

func retryable(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}
