package backend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/excimetry/excimetry/pkg/format"
	"github.com/excimetry/excimetry/pkg/profile"
)

// FileConfig configures a File backend.
type FileConfig struct {
	// Directory is where profiles are written. Created if absent.
	Directory string

	// Filename overrides the generated name. When empty each send writes
	// a timestamped file named from the formatter's suggested extension.
	Filename string

	// Formatter renders the profile. Defaults to the collapsed formatter.
	Formatter format.Formatter

	// Options is the delivery policy.
	Options Options
}

// File writes one file per send call. Local I/O failures are not worth
// retrying, so a failed write reports false after a single attempt
// regardless of the retry budget.
type File struct {
	cfg    FileConfig
	logger zerolog.Logger
}

// NewFile returns a file backend. A missing directory is a configuration
// error.
func NewFile(cfg FileConfig) (*File, error) {
	if cfg.Directory == "" {
		return nil, ErrMissingDirectory
	}
	if cfg.Formatter == nil {
		cfg.Formatter = format.NewCollapsed(format.CollapsedOptions{})
	}
	cfg.Options = cfg.Options.withDefaults()
	return &File{
		cfg:    cfg,
		logger: cfg.Options.Logger.With().Str("backend", "file").Logger(),
	}, nil
}

// Send implements Backend.
func (b *File) Send(ctx context.Context, p *profile.Profile) bool {
	payload, err := b.cfg.Formatter.Format(p)
	if err != nil {
		b.logger.Error().Err(err).Msg("formatting profile failed")
		return false
	}

	path := filepath.Join(b.cfg.Directory, b.filename())

	return deliver(ctx, b.cfg.Options, b.logger, func(context.Context) error {
		if err := os.MkdirAll(b.cfg.Directory, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", b.cfg.Directory, err)
		}
		if err := os.WriteFile(path, payload, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		b.logger.Debug().Str("path", path).Int("bytes", len(payload)).Msg("profile written")
		return nil
	}, func(error) bool { return false })
}

// Available reports whether the target directory exists or can be created.
func (b *File) Available(context.Context) bool {
	return os.MkdirAll(b.cfg.Directory, 0o755) == nil
}

func (b *File) filename() string {
	if b.cfg.Filename != "" {
		return b.cfg.Filename
	}
	stamp := time.Now().Format("20060102-150405")
	return fmt.Sprintf("excimetry-%s.%s", stamp, b.cfg.Formatter.FileExtension())
}
