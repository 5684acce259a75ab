// Package logger provides the process-wide leveled logger.
//
// The API is printf-style (logger.Info("listing %s", path)) so call sites stay
// short. Output is produced by zerolog, which gives us a human readable console
// format for development and JSON lines for log shippers.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	mu           sync.RWMutex
	currentLevel = LevelInfo
	base         = newLogger(os.Stdout, "text")
	closer       io.Closer
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
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

// ParseLevel converts a case-insensitive level name. Unknown names map to INFO.
func ParseLevel(level string) Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return LevelDebug
	case "WARN":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// SetLevel sets the minimum level that is written. Unknown names are ignored.
func SetLevel(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return
	}

	mu.Lock()
	defer mu.Unlock()
	currentLevel = ParseLevel(level)
}

// GetLevel returns the current minimum level.
func GetLevel() Level {
	mu.RLock()
	defer mu.RUnlock()
	return currentLevel
}

// Init configures level, format and destination in one call.
//
// Parameters:
//   - level: DEBUG, INFO, WARN or ERROR
//   - format: "text" (console) or "json"
//   - output: "stdout", "stderr" or a file path (opened in append mode)
func Init(level, format, output string) error {
	var (
		w io.Writer
		c io.Closer
	)

	switch output {
	case "", "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %q: %w", output, err)
		}
		w, c = f, f
	}

	mu.Lock()
	defer mu.Unlock()
	swapOutputLocked(w, format, c)
	currentLevel = ParseLevel(level)
	return nil
}

// SetOutput redirects log output. Used by tests to capture lines. A log file
// opened by Init is closed.
func SetOutput(w io.Writer, format string) {
	mu.Lock()
	defer mu.Unlock()
	swapOutputLocked(w, format, nil)
}

// swapOutputLocked installs a new destination and closes the previous file.
// Writers hold the read lock for the whole write, so none is still using the
// old file when it is closed.
func swapOutputLocked(w io.Writer, format string, c io.Closer) {
	old := closer
	base = newLogger(w, format)
	closer = c
	if old != nil {
		_ = old.Close()
	}
}

func newLogger(w io.Writer, format string) zerolog.Logger {
	if format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.DateTime, NoColor: true}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

func log(level Level, format string, v ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if level < currentLevel {
		return
	}
	base.WithLevel(level.zerolog()).Msgf(format, v...)
}

func Debug(format string, v ...any) {
	log(LevelDebug, format, v...)
}

func Info(format string, v ...any) {
	log(LevelInfo, format, v...)
}

func Warn(format string, v ...any) {
	log(LevelWarn, format, v...)
}

func Error(format string, v ...any) {
	log(LevelError, format, v...)
}
