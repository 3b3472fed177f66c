package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gammadia/freetier/runner/flags"
	"github.com/spf13/viper"
)

// For some reason, gopls imports a bad package when using a package-global variable 'log'
// Let's move it to an actual package so that it doesn't get confused...

// Base is a bare logger without attributes
var Base *slog.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

// logger is the runner logger with default attributes
var logger = Base

var file *os.File

// Init builds the loggers from the log flags. Logs go to stderr unless quiet,
// and are also appended to the log file when one is configured.
func Init() error {
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(viper.GetString(flags.LogLevel))); err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}

	options := slog.HandlerOptions{
		AddSource: viper.GetBool(flags.LogSource),
		Level:     logLevel,
	}

	var console io.Writer = os.Stderr
	if viper.GetBool(flags.Quiet) {
		console = io.Discard
	}

	output := console
	if path := viper.GetString(flags.LogFile); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		file = f
		output = io.MultiWriter(console, f)
	}

	handler, err := newHandler(viper.GetString(flags.LogFormat), output, &options)
	if err != nil {
		return err
	}

	Base = slog.New(handler)
	logger = Base.With("component", "runner")
	return nil
}

func newHandler(format string, output io.Writer, options *slog.HandlerOptions) (slog.Handler, error) {
	switch format {
	case "json":
		return slog.NewJSONHandler(output, options), nil
	case "text":
		return slog.NewTextHandler(output, options), nil
	default:
		return nil, fmt.Errorf("unknown log format '%s'", format)
	}
}

// Close closes the log file, if any.
func Close() error {
	if file == nil {
		return nil
	}
	return file.Close()
}

// Proxies for slog.Logger methods

func Info(msg string, args ...any) {
	logger.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	logger.Warn(msg, args...)
}

func With(args ...any) *slog.Logger {
	return logger.With(args...)
}
