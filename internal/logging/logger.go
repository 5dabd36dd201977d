// Package logging provides structured logging for the CLI and library components.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps zerolog with an optional rotating JSON log file.
type Logger struct {
	zlog    zerolog.Logger
	base    zerolog.Logger // zlog without the "source" field
	console io.Writer
	file    *lumberjack.Logger
}

// Options configures NewLogger.
type Options struct {
	// Console receives human-readable output (nil = stderr).
	Console io.Writer

	// File is the path of a rotating JSON log file (empty = no file logging).
	// The JSON lines written there are what the activity log model parses.
	File string

	// Component is attached to every entry as the "source" field.
	Component string
}

// NewLogger creates a logger writing to the console and, optionally, a rotating file.
func NewLogger(opts Options) *Logger {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	l := &Logger{
		console: zerolog.ConsoleWriter{
			Out:        console,
			TimeFormat: "15:04:05",
		},
	}

	var output io.Writer = l.console
	if opts.File != "" {
		l.file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		output = zerolog.MultiLevelWriter(l.console, l.file)
	}

	l.base = zerolog.New(output).With().Timestamp().Logger()
	l.zlog = l.base
	if opts.Component != "" {
		l.zlog = l.base.With().Str("source", opts.Component).Logger()
	}

	return l
}

// NewDefaultCLILogger creates a console-only logger on stderr.
func NewDefaultCLILogger() *Logger {
	return NewLogger(Options{})
}

// Nop returns a logger that discards everything. Used as the default for library types.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop(), base: zerolog.Nop()}
}

// Component returns a child logger tagged with the given source name. The
// name replaces the source of l rather than adding a second one.
func (l *Logger) Component(name string) *Logger {
	return &Logger{
		zlog:    l.base.With().Str("source", name).Logger(),
		base:    l.base,
		console: l.console,
		file:    l.file,
	}
}

// Info returns an info level event.
func (l *Logger) Info() *zerolog.Event {
	return l.zlog.Info()
}

// Error returns an error level event.
func (l *Logger) Error() *zerolog.Event {
	return l.zlog.Error()
}

// Debug returns a debug level event.
func (l *Logger) Debug() *zerolog.Event {
	return l.zlog.Debug()
}

// Warn returns a warn level event.
func (l *Logger) Warn() *zerolog.Event {
	return l.zlog.Warn()
}

// With creates a child logger context with additional fields.
func (l *Logger) With() zerolog.Context {
	return l.zlog.With()
}

// Debugf logs a debug message with printf-style formatting.
// This is only shown when debug/verbose mode is enabled.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.zlog.Debug().Msgf(format, args...)
}

// Infof logs an info message with printf-style formatting.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.zlog.Info().Msgf(format, args...)
}

// Errorf logs an error message with printf-style formatting.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.zlog.Error().Msgf(format, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.zlog.Warn().Msgf(format, args...)
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// SetGlobalLevel sets the global log level.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

func init() {
	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Configure global logger
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	})
}
