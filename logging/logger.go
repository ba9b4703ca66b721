// Package logging builds the zerolog loggers used across the service.
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/najoast/runtimeapi/config"
	"github.com/rs/zerolog"
)

// Logger is a zerolog logger whose level can be changed while it and the
// loggers derived from it are in use.
type Logger struct {
	zerolog.Logger

	level  *atomic.Int32
	closer io.Closer
}

// New builds a logger from the log configuration.
func New(cfg config.LogConfig, app string) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	out, closer, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}

	var w io.Writer = out
	if cfg.Format != config.LogFormatJSON {
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    !cfg.Color,
		}
	}

	l := &Logger{level: new(atomic.Int32), closer: closer}
	l.store(level)

	ctx := zerolog.New(&levelWriter{w: w, level: l.level}).With().Timestamp()
	if app != "" {
		ctx = ctx.Str("app", app)
	}

	keys := make([]string, 0, len(cfg.Fields))
	for k := range cfg.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ctx = ctx.Str(k, cfg.Fields[k])
	}

	l.Logger = ctx.Logger()
	return l, nil
}

// SetLevel changes the level of the logger and every logger derived from it.
func (l *Logger) SetLevel(level config.LogLevel) error {
	parsed, err := ParseLevel(level)
	if err != nil {
		return err
	}
	l.store(parsed)
	return nil
}

// store sets the level, lowering zerolog's global floor when needed so
// trace events are not filtered before they reach the writer.
func (l *Logger) store(level zerolog.Level) {
	if level < zerolog.GlobalLevel() {
		zerolog.SetGlobalLevel(level)
	}
	l.level.Store(int32(level))
}

// CurrentLevel returns the level set by New or SetLevel.
func (l *Logger) CurrentLevel() zerolog.Level {
	return zerolog.Level(l.level.Load())
}

// Close releases the output file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Nop returns a disabled logger.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// ParseLevel maps a configured level to a zerolog level. An empty level is info.
func ParseLevel(level config.LogLevel) (zerolog.Level, error) {
	switch config.LogLevel(strings.ToLower(strings.TrimSpace(string(level)))) {
	case config.LogLevelTrace:
		return zerolog.TraceLevel, nil
	case config.LogLevelDebug:
		return zerolog.DebugLevel, nil
	case config.LogLevelInfo, "":
		return zerolog.InfoLevel, nil
	case config.LogLevelWarn:
		return zerolog.WarnLevel, nil
	case config.LogLevelError:
		return zerolog.ErrorLevel, nil
	case config.LogLevelFatal:
		return zerolog.FatalLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("%w: %q", config.ErrInvalidLogLevel, level)
	}
}

// levelWriter drops events below the current level.
type levelWriter struct {
	w     io.Writer
	level *atomic.Int32
}

func (lw *levelWriter) Write(p []byte) (int, error) {
	return lw.w.Write(p)
}

func (lw *levelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < zerolog.Level(lw.level.Load()) {
		return len(p), nil
	}
	return lw.w.Write(p)
}

func openOutput(output string) (io.Writer, io.Closer, error) {
	switch strings.ToLower(output) {
	case "", "stdout":
		return os.Stdout, nil, nil
	case "stderr":
		return os.Stderr, nil, nil
	}

	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log output %s: %w", output, err)
	}
	return f, f, nil
}
