// Package logs provides a common logging facility for kforge commands.
// Logs go to stderr by default so that stdout stays free for command output
// and for the emulator console.
package logs

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
	"golang.org/x/term"
)

// LogOutput defines the output destination for logs
type LogOutput string

const (
	// OutputStderr sends logs to standard error
	OutputStderr LogOutput = "stderr"
	// OutputStdout sends logs to standard output
	OutputStdout LogOutput = "stdout"
	// OutputDiscard drops all log output
	OutputDiscard LogOutput = "discard"
)

// Logger wraps the charm log.Logger with additional configuration
type Logger struct {
	*log.Logger
	output LogOutput
}

// Config holds the configuration for the logger
type Config struct {
	// Output specifies where logs should be sent (stderr, stdout, discard)
	Output LogOutput
	// Level sets the minimum log level (debug, info, warn, error)
	Level string
	// Prefix sets a prefix for all log messages
	Prefix string
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		Output: OutputStderr,
		Level:  "info",
		Prefix: "",
	}
}

// ParseLevel converts a string level to log.Level
func ParseLevel(level string) log.Level {
	switch level {
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// New creates a new Logger with the given configuration
func New(cfg Config) *Logger {
	var writer io.Writer
	var output LogOutput

	switch cfg.Output {
	case OutputStdout:
		writer = os.Stdout
		output = OutputStdout
	case OutputDiscard:
		writer = io.Discard
		output = OutputDiscard
	default:
		writer = os.Stderr
		output = OutputStderr
	}

	return NewWithWriter(writer, output, cfg)
}

// NewWithWriter creates a Logger writing to an arbitrary writer. Text
// formatting is used when the writer is a terminal, logfmt otherwise.
func NewWithWriter(w io.Writer, output LogOutput, cfg Config) *Logger {
	formatter := log.LogfmtFormatter
	if IsTerminal(w) {
		formatter = log.TextFormatter
	}

	logger := log.NewWithOptions(w, log.Options{
		Level:           ParseLevel(cfg.Level),
		Prefix:          cfg.Prefix,
		ReportTimestamp: true,
		ReportCaller:    false,
		Formatter:       formatter,
	})

	return &Logger{
		Logger: logger,
		output: output,
	}
}

// NewDefault creates a new Logger with default configuration
func NewDefault() *Logger {
	return New(DefaultConfig())
}

// Output returns the current output destination
func (l *Logger) Output() LogOutput {
	return l.output
}

// IsTerminal reports whether w is an interactive terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
