package backend

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/excimetry/excimetry/pkg/format"
	"github.com/excimetry/excimetry/pkg/profile"
)

// HTTPConfig configures a generic HTTP POST backend.
type HTTPConfig struct {
	// URL is the destination of the POST.
	URL string

	// Headers are extra request headers sent with every attempt.
	Headers map[string]string

	// Formatter renders the profile and supplies the Content-Type.
	// Defaults to the collapsed formatter.
	Formatter format.Formatter

	// Timeout bounds each individual attempt. The retry sequence as a
	// whole has no budget. Defaults to 10s.
	Timeout time.Duration

	// Options is the delivery policy.
	Options Options
}

// HTTP POSTs formatted profiles to a single URL. A response status in
// [200,300) is a success; anything else is retried under the policy.
type HTTP struct {
	cfg    HTTPConfig
	client *http.Client
	logger zerolog.Logger
}

// NewHTTP returns an HTTP backend. A missing URL is a configuration error.
func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	if cfg.URL == "" {
		return nil, ErrMissingURL
	}
	if cfg.Formatter == nil {
		cfg.Formatter = format.NewCollapsed(format.CollapsedOptions{})
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.Options = cfg.Options.withDefaults()
	return &HTTP{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: cfg.Options.Logger.With().Str("backend", "http").Str("url", cfg.URL).Logger(),
	}, nil
}

// Send implements Backend.
func (b *HTTP) Send(ctx context.Context, p *profile.Profile) bool {
	payload, err := b.cfg.Formatter.Format(p)
	if err != nil {
		b.logger.Error().Err(err).Msg("formatting profile failed")
		return false
	}

	return deliver(ctx, b.cfg.Options, b.logger, func(ctx context.Context) error {
		return postBytes(ctx, b.client, b.cfg.URL, b.cfg.Formatter.ContentType(), b.cfg.Headers, payload)
	}, nil)
}

// Available probes the configured URL with a HEAD request.
func (b *HTTP) Available(ctx context.Context) bool {
	return probeURL(ctx, b.client, b.cfg.URL)
}
