// Package session manages one profiling session against an external
// sampling engine: the start/stop/reset lifecycle, its precondition errors,
// and the assembly of the captured raw log into a profile with session
// metadata attached.
package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/excimetry/excimetry/pkg/profile"
)

// Configuration errors, raised by New.
var (
	ErrMissingSource = errors.New("session: source is required")
	ErrInvalidPeriod = errors.New("session: period must be positive")
)

// State errors, raised when a lifecycle step is requested out of order.
// They are distinct from configuration errors: the configuration is fine,
// the call sequence is not.
var (
	ErrAlreadyStarted = errors.New("session: already started")
	ErrNotRunning     = errors.New("session: not running")
	ErrNotStopped     = errors.New("session: profiling has not been stopped")
)

// DefaultPeriod is the sampling period applied when none is configured.
const DefaultPeriod = 0.01

// Source is the interface presented by the external sampling engine. The
// engine walks call stacks on its own; this package only drives its
// lifecycle and consumes the finished raw log.
type Source interface {
	// Start begins sampling with the given period (seconds) and mode.
	Start(period float64, mode Mode) error
	// Stop ends sampling. The raw log is complete after Stop returns.
	Stop() error
	// Reset discards the collected log.
	Reset()
	// RawSamples returns the raw sample log collected so far, one
	// "frame1;frame2;... <count>" line per sample.
	RawSamples() string
}

// Config configures a session.
type Config struct {
	// Source is the sampling engine. Required.
	Source Source
	// Period is the sampling period in seconds. Defaults to 10ms.
	Period float64
	// Mode selects wall or CPU sampling. Defaults to ModeWall.
	Mode Mode
	// Tags are user metadata attached to every exported profile.
	Tags map[string]string
	// HostMetadata enables host enrichment (hostname, os, pid).
	HostMetadata bool
	// Logger receives lifecycle diagnostics.
	Logger zerolog.Logger
}

type state int

const (
	stateIdle state = iota
	stateRunning
	stateStopped
)

// Session owns one profiling run. Profiles can only be read after Stop, and
// repeated Profile calls reuse the memoized parse of the same raw log.
type Session struct {
	cfg    Config
	logger zerolog.Logger

	mu        sync.Mutex
	state     state
	startedAt time.Time
	parser    *profile.Parser
}

// New validates the configuration and returns an idle session.
func New(cfg Config) (*Session, error) {
	if cfg.Source == nil {
		return nil, ErrMissingSource
	}
	if cfg.Period == 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.Period < 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPeriod, cfg.Period)
	}
	if cfg.Mode == 0 {
		cfg.Mode = ModeWall
	}
	if cfg.Mode != ModeWall && cfg.Mode != ModeCPU {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, int(cfg.Mode))
	}
	return &Session{
		cfg:    cfg,
		logger: cfg.Logger.With().Str("component", "session").Logger(),
		parser: profile.NewParser(),
	}, nil
}

// Start begins sampling. Starting a session that is running or already
// holds a finished log fails with ErrAlreadyStarted; Reset first.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateIdle {
		return ErrAlreadyStarted
	}
	if err := s.cfg.Source.Start(s.cfg.Period, s.cfg.Mode); err != nil {
		return fmt.Errorf("starting sampling engine: %w", err)
	}
	s.state = stateRunning
	s.startedAt = time.Now()
	s.logger.Debug().
		Float64("period", s.cfg.Period).
		Str("mode", s.cfg.Mode.String()).
		Msg("profiling started")
	return nil
}

// Stop ends sampling. The profile becomes readable once Stop returns.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateRunning {
		return ErrNotRunning
	}
	if err := s.cfg.Source.Stop(); err != nil {
		return fmt.Errorf("stopping sampling engine: %w", err)
	}
	s.state = stateStopped
	s.logger.Debug().Msg("profiling stopped")
	return nil
}

// Reset discards the collected log and returns the session to idle.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg.Source.Reset()
	s.state = stateIdle
	s.startedAt = time.Time{}
	s.parser = profile.NewParser()
}

// Profile assembles the captured raw log into a profile. Requesting it
// before the session has been stopped fails with ErrNotStopped.
func (s *Session) Profile() (*profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateStopped {
		return nil, ErrNotStopped
	}

	samples := s.parser.Parse(s.cfg.Source.RawSamples())

	md := profile.NewMetadata()
	md.Set(profile.KeyTimestamp, profile.IntValue(s.startedAt.Unix()))
	md.Set(profile.KeyPeriod, profile.FloatValue(s.cfg.Period))
	md.Set(profile.KeyMode, profile.StringValue(s.cfg.Mode.String()))
	if s.cfg.HostMetadata {
		hostMetadata(md, s.logger)
	}
	for _, k := range sortedKeys(s.cfg.Tags) {
		md.Set(k, profile.StringValue(s.cfg.Tags[k]))
	}

	return profile.New(samples, md), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
