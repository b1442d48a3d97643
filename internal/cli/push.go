package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/excimetry/excimetry/internal/logging"
	"github.com/excimetry/excimetry/pkg/backend"
	"github.com/excimetry/excimetry/pkg/format"
	"github.com/excimetry/excimetry/pkg/session"
)

// NewPushCmd creates the push command: raw sample log in, delivery to a
// backend out.
func NewPushCmd() *cobra.Command {
	var (
		configPath string
		input      string
		backendSel string
		formatName string
		name       string
		encoding   string
		mode       string
		period     float64

		urlFlag   string
		directory string
		filename  string

		serverAddress string
		appName       string
		authToken     string
		labels        map[string]string

		endpoint    string
		serviceName string
		traceID     string
		spanID      string

		maxRetries int
		retryDelay time.Duration
		async      bool

		logLevel  string
		logPretty bool
	)

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Deliver a raw sample log to a backend",
		Long: `Format a raw sample log and deliver it to a destination.

Examples:
  # Write a speedscope document next to the log
  excimetry push --input samples.txt --backend file --dir ./profiles --format speedscope

  # Continuous profiling server
  excimetry push --input samples.txt --backend pyroscope \
      --server http://pyroscope:4040 --app myapp --label env=prod

  # OTLP trace collector, binary encoding
  excimetry push --input samples.txt --backend collector \
      --endpoint http://otel:4318 --service myapp --encoding binary`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fileCfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			applyConfigDefaults(cmd, fileCfg, &logLevel, &logPretty, &maxRetries, &retryDelay, &async,
				&appName, &serverAddress, &authToken, &labels, &endpoint, &serviceName)

			logger := logging.New(logging.Config{Level: logLevel, Pretty: logPretty})

			opts := backend.Options{
				MaxRetries: maxRetries,
				RetryDelay: retryDelay,
				Async:      async,
				Logger:     logger,
			}

			formatter, err := buildFormatter(formatterOpts{
				format:   formatName,
				name:     name,
				encoding: encoding,
			})
			if err != nil {
				return err
			}

			b, err := buildBackend(backendSel, backendOpts{
				formatter:     formatter,
				options:       opts,
				url:           urlFlag,
				directory:     directory,
				filename:      filename,
				serverAddress: serverAddress,
				appName:       appName,
				authToken:     authToken,
				labels:        labels,
				endpoint:      endpoint,
				serviceName:   serviceName,
				encoding:      encoding,
				traceID:       traceID,
				spanID:        spanID,
			})
			if err != nil {
				return err
			}

			prof, err := loadProfile(input, mode, period)
			if err != nil {
				return err
			}

			if !b.Send(cmd.Context(), prof) {
				return fmt.Errorf("delivery to %s backend failed", backendSel)
			}
			logger.Info().Str("backend", backendSel).Int("samples", len(prof.Samples)).Msg("profile delivered")
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "optional YAML config file")
	cmd.Flags().StringVarP(&input, "input", "i", "-", "raw sample log file (- for stdin)")
	cmd.Flags().StringVarP(&backendSel, "backend", "b", "file", "backend: file, http, collector, pyroscope")
	cmd.Flags().StringVarP(&formatName, "format", "f", "collapsed", "output format: collapsed, speedscope, otlp, pprof")
	cmd.Flags().StringVar(&name, "name", "excimetry", "profile or service name")
	cmd.Flags().StringVar(&encoding, "encoding", "readable", "otlp encoding: readable, binary")
	cmd.Flags().StringVar(&mode, "mode", "wall", "sampling mode recorded in metadata: wall, cpu")
	cmd.Flags().Float64Var(&period, "period", session.DefaultPeriod, "sampling period in seconds recorded in metadata")

	cmd.Flags().StringVar(&urlFlag, "url", "", "http backend: destination URL")
	cmd.Flags().StringVar(&directory, "dir", ".", "file backend: output directory")
	cmd.Flags().StringVar(&filename, "filename", "", "file backend: fixed filename (default timestamped)")

	cmd.Flags().StringVar(&serverAddress, "server", "", "pyroscope backend: server address")
	cmd.Flags().StringVar(&appName, "app", "", "pyroscope backend: application name")
	cmd.Flags().StringVar(&authToken, "auth-token", "", "pyroscope backend: bearer token")
	cmd.Flags().StringToStringVar(&labels, "label", nil, "pyroscope backend: label key=value (repeatable)")

	cmd.Flags().StringVar(&endpoint, "endpoint", "", "collector backend: OTLP collector base URL")
	cmd.Flags().StringVar(&serviceName, "service", "", "collector backend: service name")
	cmd.Flags().StringVar(&traceID, "trace-id", "", "collector backend: hex trace id tag")
	cmd.Flags().StringVar(&spanID, "span-id", "", "collector backend: hex span id tag")

	cmd.Flags().IntVar(&maxRetries, "retries", backend.DefaultMaxRetries, "retries after a failed attempt")
	cmd.Flags().DurationVar(&retryDelay, "retry-delay", backend.DefaultRetryDelay, "delay between attempts")
	cmd.Flags().BoolVar(&async, "async", false, "fire-and-forget delivery")

	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	cmd.Flags().BoolVar(&logPretty, "log-pretty", false, "human-readable log output")

	return cmd
}

type backendOpts struct {
	formatter format.Formatter
	options   backend.Options

	url       string
	directory string
	filename  string

	serverAddress string
	appName       string
	authToken     string
	labels        map[string]string

	endpoint    string
	serviceName string
	encoding    string
	traceID     string
	spanID      string
}

func buildBackend(sel string, o backendOpts) (backend.Backend, error) {
	switch sel {
	case "file":
		return backend.NewFile(backend.FileConfig{
			Directory: o.directory,
			Filename:  o.filename,
			Formatter: o.formatter,
			Options:   o.options,
		})
	case "http":
		return backend.NewHTTP(backend.HTTPConfig{
			URL:       o.url,
			Formatter: o.formatter,
			Options:   o.options,
		})
	case "collector":
		enc, err := format.ParseEncoding(o.encoding)
		if err != nil {
			return nil, err
		}
		return backend.NewCollector(backend.CollectorConfig{
			Endpoint:    o.endpoint,
			ServiceName: o.serviceName,
			Encoding:    enc,
			TraceID:     o.traceID,
			SpanID:      o.spanID,
			Options:     o.options,
		})
	case "pyroscope":
		return backend.NewPyroscope(backend.PyroscopeConfig{
			ServerAddress: o.serverAddress,
			AppName:       o.appName,
			AuthToken:     o.authToken,
			Labels:        o.labels,
			Formatter:     o.formatter,
			Options:       o.options,
		})
	default:
		return nil, fmt.Errorf("unknown backend %q (want file, http, collector or pyroscope)", sel)
	}
}

// applyConfigDefaults fills flag values from the YAML config for flags the
// user did not set explicitly.
func applyConfigDefaults(cmd *cobra.Command, cfg *FileConfig,
	logLevel *string, logPretty *bool,
	maxRetries *int, retryDelay *time.Duration, async *bool,
	appName, serverAddress, authToken *string, labels *map[string]string,
	endpoint, serviceName *string,
) {
	flags := cmd.Flags()
	if cfg.LogLevel != "" && !flags.Changed("log-level") {
		*logLevel = cfg.LogLevel
	}
	if cfg.LogPretty && !flags.Changed("log-pretty") {
		*logPretty = true
	}
	if cfg.MaxRetries != 0 && !flags.Changed("retries") {
		*maxRetries = cfg.MaxRetries
	}
	if cfg.RetryDelay != 0 && !flags.Changed("retry-delay") {
		*retryDelay = cfg.RetryDelay
	}
	if cfg.Async && !flags.Changed("async") {
		*async = true
	}
	if cfg.AppName != "" && !flags.Changed("app") {
		*appName = cfg.AppName
	}
	if cfg.ServerAddress != "" && !flags.Changed("server") {
		*serverAddress = cfg.ServerAddress
	}
	if cfg.AuthToken != "" && !flags.Changed("auth-token") {
		*authToken = cfg.AuthToken
	}
	if len(cfg.Labels) > 0 && !flags.Changed("label") {
		*labels = cfg.Labels
	}
	if cfg.Endpoint != "" && !flags.Changed("endpoint") {
		*endpoint = cfg.Endpoint
	}
	if cfg.ServiceName != "" && !flags.Changed("service") {
		*serviceName = cfg.ServiceName
	}
}
