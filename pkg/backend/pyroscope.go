package backend

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/excimetry/excimetry/pkg/format"
	"github.com/excimetry/excimetry/pkg/profile"
)

// ingestPath is the Pyroscope ingestion path.
const ingestPath = "/ingest"

// PyroscopeConfig configures a Pyroscope backend.
type PyroscopeConfig struct {
	// ServerAddress is the Pyroscope base URL; the backend always posts
	// to <ServerAddress>/ingest.
	ServerAddress string

	// AppName is sent as the "name" query parameter.
	AppName string

	// Labels are attached to every ingested profile as a comma-joined
	// key=value list, sorted by key for reproducible URLs.
	Labels map[string]string

	// AuthToken, when set, is sent as a bearer token.
	AuthToken string

	// Formatter renders the profile. Defaults to the collapsed
	// formatter, which is what Pyroscope's ingest endpoint expects.
	Formatter format.Formatter

	// Timeout bounds each individual attempt. Defaults to 10s.
	Timeout time.Duration

	// Options is the delivery policy.
	Options Options
}

// Pyroscope ships profiles to a continuous-profiling server. The ingestion
// window is derived per send: "from" is the profile's capture timestamp and
// "until" is the send time.
type Pyroscope struct {
	cfg    PyroscopeConfig
	client *http.Client
	base   string
	logger zerolog.Logger
}

// NewPyroscope returns a Pyroscope backend. A missing server address or
// application name is a configuration error.
func NewPyroscope(cfg PyroscopeConfig) (*Pyroscope, error) {
	if cfg.ServerAddress == "" {
		return nil, ErrMissingServer
	}
	if cfg.AppName == "" {
		return nil, ErrMissingAppName
	}
	if cfg.Formatter == nil {
		cfg.Formatter = format.NewCollapsed(format.CollapsedOptions{})
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.Options = cfg.Options.withDefaults()
	return &Pyroscope{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		base:   strings.TrimRight(cfg.ServerAddress, "/"),
		logger: cfg.Options.Logger.With().Str("backend", "pyroscope").Str("app", cfg.AppName).Logger(),
	}, nil
}

// Send implements Backend.
func (b *Pyroscope) Send(ctx context.Context, p *profile.Profile) bool {
	payload, err := b.cfg.Formatter.Format(p)
	if err != nil {
		b.logger.Error().Err(err).Msg("formatting profile failed")
		return false
	}

	from := p.Timestamp()
	until := time.Now()
	if from.IsZero() {
		from = until
	}

	params := url.Values{}
	params.Set("name", b.cfg.AppName)
	params.Set("from", strconv.FormatInt(from.Unix(), 10))
	params.Set("until", strconv.FormatInt(until.Unix(), 10))
	if labels := joinLabels(b.cfg.Labels); labels != "" {
		params.Set("labels", labels)
	}
	ingestURL := b.base + ingestPath + "?" + params.Encode()

	headers := map[string]string{}
	if b.cfg.AuthToken != "" {
		headers["Authorization"] = "Bearer " + b.cfg.AuthToken
	}

	return deliver(ctx, b.cfg.Options, b.logger, func(ctx context.Context) error {
		return postBytes(ctx, b.client, ingestURL, b.cfg.Formatter.ContentType(), headers, payload)
	}, nil)
}

// Available probes the server base URL.
func (b *Pyroscope) Available(ctx context.Context) bool {
	return probeURL(ctx, b.client, b.base)
}

// joinLabels renders a label mapping as "k1=v1,k2=v2" with keys sorted.
func joinLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + labels[k]
	}
	return strings.Join(parts, ",")
}
