// Package backend delivers formatted profiles to their destinations: a
// local file, a generic HTTP endpoint, an OTLP trace collector, or a
// Pyroscope server. Every backend shares the same retry/async contract.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/excimetry/excimetry/internal/retry"
	"github.com/excimetry/excimetry/pkg/profile"
)

// Configuration errors raised by backend constructors.
var (
	ErrMissingURL       = errors.New("backend: url is required")
	ErrMissingDirectory = errors.New("backend: directory is required")
	ErrMissingEndpoint  = errors.New("backend: collector endpoint is required")
	ErrMissingServer    = errors.New("backend: pyroscope server address is required")
	ErrMissingAppName   = errors.New("backend: application name is required")
)

// Backend is the uniform delivery contract. Send formats the profile and
// ships the bytes; the boolean result is the only failure signal in
// synchronous mode. Available probes whether the destination is reachable.
type Backend interface {
	Send(ctx context.Context, p *profile.Profile) bool
	Available(ctx context.Context) bool
}

// Default delivery policy.
const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 1 * time.Second
	defaultTimeout    = 10 * time.Second
)

// Options is the delivery policy shared by all backends. A backend is
// configured once at construction; changing the policy means building a new
// backend instance.
type Options struct {
	// MaxRetries is the number of retries after a failed attempt, so a
	// send makes at most MaxRetries+1 attempts. Zero selects the default
	// of 3; a negative value disables retries.
	MaxRetries int

	// RetryDelay is the pause between attempts. Zero selects the default
	// of one second.
	RetryDelay time.Duration

	// Async detaches the send. Send then returns true immediately; the
	// transport outcome is only observable through the logger.
	Async bool

	// Logger receives delivery failures. Defaults to a no-op logger.
	Logger zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxRetries == 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryDelay == 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	return o
}

// deliver runs send through the retry policy. In async mode the whole loop
// is detached onto a goroutine with no handle: there is no cancellation and
// no result propagation, failures surface only in the log.
func deliver(ctx context.Context, opts Options, logger zerolog.Logger, send func(ctx context.Context) error, shouldRetry retry.ShouldRetryFunc) bool {
	cfg := retry.Config{MaxRetries: opts.MaxRetries, Delay: opts.RetryDelay}

	if opts.Async {
		detached := context.WithoutCancel(ctx)
		go func() {
			attempts, err := retry.Do(detached, cfg, func() error { return send(detached) }, shouldRetry)
			if err != nil {
				logger.Error().Err(err).Int("attempts", attempts).Msg("async delivery failed")
				return
			}
			logger.Debug().Int("attempts", attempts).Msg("async delivery succeeded")
		}()
		return true
	}

	attempts, err := retry.Do(ctx, cfg, func() error { return send(ctx) }, shouldRetry)
	if err != nil {
		logger.Error().Err(err).Int("attempts", attempts).Msg("delivery failed")
		return false
	}
	return true
}

// postBytes issues one HTTP POST attempt. Any status outside [200,300) is a
// transport failure.
func postBytes(ctx context.Context, client *http.Client, url, contentType string, headers map[string]string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return nil
}

// probeURL issues a lightweight HEAD existence probe. The destination is
// considered available when it answers at all and is not failing outright.
func probeURL(ctx context.Context, client *http.Client, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode < 500
}
