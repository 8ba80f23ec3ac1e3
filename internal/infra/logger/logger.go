// Package logger configures the global zerolog logger.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Config represents logger configuration.
type Config struct {
	Output string            // "stdout", "stderr", or a file path
	Level  string            // "debug", "info", "warn", "error"
	Fields map[string]string // attached to every entry, e.g. a process session id
}

// Init initializes the global logger. Console outputs get colored human
// output; files get JSON lines. The returned closer releases the log file
// and is a no-op for console outputs.
func Init(cfg Config) (io.Closer, error) {
	level := parseLevel(cfg.Level)

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.TimeOnly
	zerolog.TimestampFieldName = "time"
	zerolog.LevelFieldName = "level"
	zerolog.MessageFieldName = "message"
	zerolog.CallerMarshalFunc = shortCaller

	writer, closer, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}

	var ctx zerolog.Context
	if isConsole(cfg.Output) {
		console := zerolog.ConsoleWriter{Out: writer, TimeFormat: time.TimeOnly}
		if level == zerolog.DebugLevel {
			console.PartsOrder = []string{"time", "level", "message", "caller"}
			console.FormatCaller = func(i any) string {
				s, _ := i.(string)
				return "(" + s + ")"
			}
		}
		ctx = zerolog.New(console).With().Timestamp()
	} else {
		ctx = zerolog.New(writer).With().Timestamp()
	}
	if level == zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	for k, v := range cfg.Fields {
		ctx = ctx.Str(k, v)
	}

	logger := ctx.Logger()
	zerolog.DefaultContextLogger = &logger
	zlog.Logger = logger

	return closer, nil
}

func isConsole(output string) bool {
	switch strings.ToLower(output) {
	case "", "stdout", "stderr":
		return true
	}
	return false
}

func openOutput(output string) (io.Writer, io.Closer, error) {
	switch strings.ToLower(output) {
	case "stdout", "":
		return os.Stdout, nopCloser{}, nil
	case "stderr":
		return os.Stderr, nopCloser{}, nil
	}
	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, errors.Wrapf(err, "failed to create log directory %s", dir)
		}
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open log file %s", output)
	}
	return f, f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// shortCaller renders a caller as "dir/file.go:line".
func shortCaller(_ uintptr, file string, line int) string {
	parts := strings.Split(file, string(filepath.Separator))
	if len(parts) > 1 {
		return filepath.Join(parts[len(parts)-2:]...) + ":" + strconv.Itoa(line)
	}
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}

// parseLevel parses the log level string.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
