// Package logging builds the structured logger shared by every command.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"cdr.dev/slog/v3"
	"cdr.dev/slog/v3/sloggers/sloghuman"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the sink and level.
type Options struct {
	Level string
	// File, when set, receives the log through a rotating writer instead
	// of Stderr.
	File       string
	MaxSize    int // megabytes
	MaxBackups int
	Verbose    bool

	Stderr io.Writer
}

// ParseLevel maps a config level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// New returns a logger and a function that releases its sink.
func New(opts Options) (slog.Logger, func(), error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return slog.Logger{}, func() {}, err
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}

	if opts.File == "" {
		w := opts.Stderr
		if w == nil {
			w = os.Stderr
		}
		return slog.Make(sloghuman.Sink(w)).Leveled(level), func() {}, nil
	}

	maxSize := opts.MaxSize
	if maxSize <= 0 {
		maxSize = 10
	}
	logWriter := &WriteCloseFixer{Writer: &lumberjack.Logger{
		Filename: opts.File,
		MaxSize:  maxSize,
		// Without this, rotated logs will never be deleted.
		MaxBackups: opts.MaxBackups,
	}}
	logger := slog.Make(sloghuman.Sink(logWriter)).Leveled(level)
	return logger, func() {
		logger.Sync()
		_ = logWriter.Close()
	}, nil
}

// WriteCloseFixer prevents writes after Close. lumberjack re-opens the file
// on Write, so a late log line would otherwise resurrect a closed log.
type WriteCloseFixer struct {
	Writer io.WriteCloser

	mu     sync.Mutex // Protects following.
	closed bool
}

func (c *WriteCloseFixer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return c.Writer.Close()
}

func (c *WriteCloseFixer) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, io.ErrClosedPipe
	}
	return c.Writer.Write(p)
}
