package eventsink

import (
	"fmt"
	"io"
	"os"
	"strings"

	cblog "github.com/charmbracelet/log"
)

// StructuredOptions configures the charmbracelet/log-backed sink.
type StructuredOptions struct {
	Writer    io.Writer
	Level     string
	Component string
}

// Structured reports through charmbracelet/log, tagging every record with
// the owning component. This is the sink cmd/forge wires in under
// --verbose, matching the density of logging the teacher repo used for
// its own infrastructure layer.
type Structured struct {
	logger *cblog.Logger
}

// NewStructured builds a Structured sink from the supplied options.
func NewStructured(opts StructuredOptions) (*Structured, error) {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}

	level := cblog.InfoLevel
	if opts.Level != "" {
		parsed, err := cblog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		level = parsed
	}

	logger := cblog.NewWithOptions(writer, cblog.Options{
		Level:           level,
		ReportTimestamp: true,
	})
	if opts.Component != "" {
		logger = logger.With("component", opts.Component)
	}

	return &Structured{logger: logger}, nil
}

func (s *Structured) Output(text string) {
	s.logger.Info(text)
}

func (s *Structured) Error(text string) {
	s.logger.Error(text)
}

// Plain writes output to one stream and errors to another, unadorned.
// This is the default sink when --verbose is not set, matching forge's
// traditional terse CLI output.
type Plain struct {
	Out io.Writer
	Err io.Writer
}

// NewPlain returns a Plain sink writing to stdout/stderr.
func NewPlain() *Plain {
	return &Plain{Out: os.Stdout, Err: os.Stderr}
}

func (p *Plain) Output(text string) {
	fmt.Fprintln(p.Out, text)
}

func (p *Plain) Error(text string) {
	fmt.Fprintln(p.Err, text)
}
