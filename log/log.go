// Package log provides a process-wide structured logger built on zerolog.
// Key/value helpers (the "w" suffixed functions) take an alternating list of
// keys and values, following the convention used across the repository.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

const (
	LogLevelDebug    = "debug"
	LogLevelInfo     = "info"
	LogLevelWarn     = "warn"
	LogLevelError    = "error"
	LogLevelDisabled = "disabled"

	logTestWriterName = "log_test_writer"
)

var (
	log      zerolog.Logger
	logLevel = LogLevelDisabled

	// logTestWriter is only used by tests and benchmarks.
	logTestWriter io.Writer

	// panicOnInvalidChars makes the logger panic when a message contains
	// invalid UTF-8, which is useful to catch raw byte slices printed with %s.
	panicOnInvalidChars = os.Getenv("LOG_PANIC_ON_INVALIDCHARS") == "true"
)

func init() {
	level := LogLevelError
	if s := os.Getenv("LOG_LEVEL"); s != "" {
		level = s
	}
	Init(level, "stderr", nil)
}

// errorLevelWriter only forwards warn and above to the wrapped writer.
type errorLevelWriter struct {
	io.Writer
}

func (w *errorLevelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < zerolog.WarnLevel {
		return len(p), nil
	}
	return w.Write(p)
}

type invalidCharChecker struct{}

func (invalidCharChecker) Run(_ *zerolog.Event, _ zerolog.Level, msg string) {
	if panicOnInvalidChars && !utf8.ValidString(msg) {
		panic(fmt.Sprintf("log message contains invalid characters: %q", msg))
	}
}

// Init initializes the logger. Output can be "stdout", "stderr" or a file
// path. If errorOutput is not nil, warnings and errors are also written to it.
func Init(level, output string, errorOutput io.Writer) {
	var out io.Writer
	switch output {
	case "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	case logTestWriterName:
		out = logTestWriter
	default:
		f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			panic(fmt.Sprintf("cannot create log output: %v", err))
		}
		out = f
	}
	if output == "stdout" || output == "stderr" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339Nano}
	}
	outputs := []io.Writer{out}
	if errorOutput != nil {
		outputs = append(outputs, &errorLevelWriter{zerolog.ConsoleWriter{
			Out:        errorOutput,
			TimeFormat: time.RFC3339Nano,
			NoColor:    true,
		}})
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		panic(fmt.Sprintf("invalid log level %q", level))
	}
	log = zerolog.New(zerolog.MultiLevelWriter(outputs...)).
		Level(lvl).
		With().Timestamp().CallerWithSkipFrameCount(3).Logger().
		Hook(invalidCharChecker{})
	logLevel = lvl.String()
}

// Logger returns the underlying zerolog logger.
func Logger() *zerolog.Logger {
	return &log
}

// Level returns the current log level.
func Level() string {
	return logLevel
}

func Debug(args ...any) {
	log.Debug().Msg(fmt.Sprint(args...))
}

func Debugf(template string, args ...any) {
	log.Debug().Msgf(template, args...)
}

func Debugw(msg string, keyvalues ...any) {
	log.Debug().Fields(keyvalues).Msg(msg)
}

func Info(args ...any) {
	log.Info().Msg(fmt.Sprint(args...))
}

func Infof(template string, args ...any) {
	log.Info().Msgf(template, args...)
}

func Infow(msg string, keyvalues ...any) {
	log.Info().Fields(keyvalues).Msg(msg)
}

func Warn(args ...any) {
	log.Warn().Msg(fmt.Sprint(args...))
}

func Warnf(template string, args ...any) {
	log.Warn().Msgf(template, args...)
}

func Warnw(msg string, keyvalues ...any) {
	log.Warn().Fields(keyvalues).Msg(msg)
}

func Error(args ...any) {
	log.Error().Msg(fmt.Sprint(args...))
}

func Errorf(template string, args ...any) {
	log.Error().Msgf(template, args...)
}

// Errorw logs the error together with the message and key/value pairs.
func Errorw(err error, msg string, keyvalues ...any) {
	log.Error().Err(err).Fields(keyvalues).Msg(msg)
}

func Fatal(args ...any) {
	log.Fatal().Msg(fmt.Sprint(args...))
}

func Fatalf(template string, args ...any) {
	log.Fatal().Msgf(template, args...)
}
