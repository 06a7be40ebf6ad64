package logging

import (
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures NewLogger.
type Options struct {
	Level       string
	Format      string // "text" or "json"
	File        string
	MaxBytes    int
	BackupCount int
	Output      io.Writer
}

// Logger writes leveled key/value records. Console output goes to stderr
// because stdout carries the MCP stdio stream.
type Logger struct {
	*charmlog.Logger
	closer io.Closer
}

// NewLogger creates a new Logger. When opts.File is set, records are also
// written as JSON lines to a size-rotated file.
func NewLogger(opts Options) (*Logger, error) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var closer io.Closer
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, err
		}
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    megabytes(opts.MaxBytes),
			MaxBackups: opts.BackupCount,
		}
		closer = rotator
		out = io.MultiWriter(out, rotator)
	}

	l := charmlog.NewWithOptions(out, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           ParseLevel(opts.Level),
	})
	if opts.File != "" || strings.EqualFold(opts.Format, "json") {
		l.SetFormatter(charmlog.JSONFormatter)
	}

	return &Logger{Logger: l, closer: closer}, nil
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: charmlog.NewWithOptions(io.Discard, charmlog.Options{})}
}

// With returns a Logger carrying the given key/value pairs on every record.
func (l *Logger) With(keyvals ...any) *Logger {
	return &Logger{Logger: l.Logger.With(keyvals...), closer: l.closer}
}

// StandardLog adapts the logger to the standard library interface at error level.
func (l *Logger) StandardLog() *stdlog.Logger {
	return l.Logger.StandardLog(charmlog.StandardLogOptions{ForceLevel: charmlog.ErrorLevel})
}

// Close flushes and closes the rotating file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// ParseLevel maps a textual level to the logger level; unknown values mean info.
func ParseLevel(level string) charmlog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return charmlog.DebugLevel
	case "warn", "warning":
		return charmlog.WarnLevel
	case "error":
		return charmlog.ErrorLevel
	case "fatal", "critical":
		return charmlog.FatalLevel
	default:
		return charmlog.InfoLevel
	}
}

// lumberjack rotates on whole megabytes.
func megabytes(n int) int {
	const mb = 1024 * 1024
	if n <= 0 {
		return 0
	}
	if n < mb {
		return 1
	}
	return n / mb
}
