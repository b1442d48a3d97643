// Package cli implements the excimetry command-line subcommands.
package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/excimetry/excimetry/pkg/format"
	"github.com/excimetry/excimetry/pkg/profile"
	"github.com/excimetry/excimetry/pkg/session"
)

// NewConvertCmd creates the convert command: raw sample log in, formatted
// profile out.
func NewConvertCmd() *cobra.Command {
	var (
		input      string
		output     string
		formatName string
		name       string
		encoding   string
		mode       string
		period     float64
		reverse    bool
		delimiter  string
	)

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a raw sample log to an output format",
		Long: `Convert a raw sample log ("frame1;frame2;... <count>" lines) into one of
the supported output formats.

Examples:
  # Collapsed stacks for flamegraph.pl
  excimetry convert --input samples.txt --format collapsed | flamegraph.pl > cpu.svg

  # Speedscope document
  excimetry convert --input samples.txt --format speedscope --output profile.json

  # OTLP spans as JSON
  excimetry convert --input samples.txt --format otlp --encoding readable --name myapp`,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := buildFormatter(formatterOpts{
				format:    formatName,
				name:      name,
				encoding:  encoding,
				reverse:   reverse,
				delimiter: delimiter,
			})
			if err != nil {
				return err
			}

			prof, err := loadProfile(input, mode, period)
			if err != nil {
				return err
			}

			payload, err := formatter.Format(prof)
			if err != nil {
				return fmt.Errorf("formatting profile: %w", err)
			}

			return writeOutput(cmd.OutOrStdout(), output, payload)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "-", "raw sample log file (- for stdin)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (defaults to stdout)")
	cmd.Flags().StringVarP(&formatName, "format", "f", "collapsed", "output format: collapsed, speedscope, otlp, pprof")
	cmd.Flags().StringVar(&name, "name", "excimetry", "profile or service name")
	cmd.Flags().StringVar(&encoding, "encoding", "readable", "otlp encoding: readable, binary")
	cmd.Flags().StringVar(&mode, "mode", "wall", "sampling mode recorded in metadata: wall, cpu")
	cmd.Flags().Float64Var(&period, "period", session.DefaultPeriod, "sampling period in seconds recorded in metadata")
	cmd.Flags().BoolVar(&reverse, "reverse", false, "emit collapsed stacks leaf-to-root")
	cmd.Flags().StringVar(&delimiter, "delimiter", ";", "collapsed stack delimiter")

	return cmd
}

type formatterOpts struct {
	format    string
	name      string
	encoding  string
	reverse   bool
	delimiter string
}

func buildFormatter(o formatterOpts) (format.Formatter, error) {
	kind, err := format.ParseKind(o.format)
	if err != nil {
		return nil, err
	}
	switch kind {
	case format.KindCollapsed:
		return format.NewCollapsed(format.CollapsedOptions{
			ReverseStack: o.reverse,
			Delimiter:    o.delimiter,
		}), nil
	case format.KindSpeedscope:
		return format.NewSpeedscope(format.SpeedscopeOptions{ProfileName: o.name}), nil
	case format.KindOTLP:
		enc, err := format.ParseEncoding(o.encoding)
		if err != nil {
			return nil, err
		}
		f, err := format.NewOTLP(format.OTLPOptions{ServiceName: o.name, Encoding: enc})
		if err != nil {
			return nil, err
		}
		return f, nil
	case format.KindPprof:
		return format.NewPprof(format.PprofOptions{}), nil
	default:
		return nil, format.ErrUnknownKind
	}
}

// loadProfile reads a raw sample log and wraps it in a profile with the
// capture metadata the formatters expect.
func loadProfile(input, mode string, period float64) (*profile.Profile, error) {
	m, err := session.ParseMode(mode)
	if err != nil {
		return nil, err
	}
	if period <= 0 {
		return nil, fmt.Errorf("%w: %v", session.ErrInvalidPeriod, period)
	}

	var raw []byte
	if input == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(input)
	}
	if err != nil {
		return nil, fmt.Errorf("reading raw log: %w", err)
	}

	samples := profile.NewParser().Parse(string(raw))

	md := profile.NewMetadata()
	md.Set(profile.KeyTimestamp, profile.IntValue(time.Now().Unix()))
	md.Set(profile.KeyPeriod, profile.FloatValue(period))
	md.Set(profile.KeyMode, profile.StringValue(m.String()))

	return profile.New(samples, md), nil
}

func writeOutput(stdout io.Writer, output string, payload []byte) error {
	if output == "" {
		_, err := stdout.Write(payload)
		return err
	}
	if err := os.WriteFile(output, payload, 0o644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}
