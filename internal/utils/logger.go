package utils

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Logger is a leveled logger that tags every line with an optional request id.
type Logger struct {
	level      LogLevel
	zl         zerolog.Logger
	RawBodyLog bool
}

// NewLogger writes human readable lines when console is true and JSON otherwise.
func NewLogger(level string, rawBodyLog bool, console bool) *Logger {
	var out io.Writer = os.Stdout
	if console {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}
	}
	return newLogger(out, level, rawBodyLog)
}

func NewDiscardLogger() *Logger {
	return newLogger(io.Discard, string(LevelInfo), false)
}

func newLogger(out io.Writer, level string, rawBodyLog bool) *Logger {
	logLevel := parseLogLevel(level)

	zl := zerolog.New(out).
		Level(toZerologLevel(logLevel)).
		With().
		Timestamp().
		Logger()

	return &Logger{
		level:      logLevel,
		zl:         zl,
		RawBodyLog: rawBodyLog,
	}
}

func parseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func toZerologLevel(level LogLevel) zerolog.Level {
	switch level {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (l *Logger) Level() LogLevel {
	return l.level
}

func (l *Logger) Info(reqID *string, format string, v ...any) {
	withRequestID(l.zl.Info(), reqID).Msgf(format, v...)
}

func (l *Logger) Warn(reqID *string, format string, v ...any) {
	withRequestID(l.zl.Warn(), reqID).Msgf(format, v...)
}

func (l *Logger) Error(reqID *string, format string, v ...any) {
	withRequestID(l.zl.Error(), reqID).Msgf(format, v...)
}

func (l *Logger) Debug(reqID *string, format string, v ...any) {
	withRequestID(l.zl.Debug(), reqID).Msgf(format, v...)
}

func (l *Logger) Fatal(v ...any) {
	l.zl.Fatal().Msg(fmt.Sprint(v...))
}

func withRequestID(e *zerolog.Event, reqID *string) *zerolog.Event {
	if reqID != nil && *reqID != "" {
		return e.Str("reqid", *reqID)
	}
	return e
}
