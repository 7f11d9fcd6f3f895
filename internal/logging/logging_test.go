package logging

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"cdr.dev/slog/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for name, want := range cases {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewHumanSinkRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closeLog, err := New(Options{Level: "warn", Stderr: &buf})
	require.NoError(t, err)
	defer closeLog()

	ctx := context.Background()
	logger.Info(ctx, "quiet line")
	logger.Warn(ctx, "loud line", slog.F("subject_id", 42))
	logger.Sync()

	out := buf.String()
	assert.NotContains(t, out, "quiet line")
	assert.Contains(t, out, "loud line")
	assert.Contains(t, out, "subject_id")
}

func TestNewVerboseForcesDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, closeLog, err := New(Options{Level: "error", Verbose: true, Stderr: &buf})
	require.NoError(t, err)
	defer closeLog()

	logger.Debug(context.Background(), "debug line")
	logger.Sync()
	assert.Contains(t, buf.String(), "debug line")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, closeLog, err := New(Options{Level: "chatty"})
	assert.Error(t, err)
	closeLog()
}

func TestNewFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mostviewed.log")
	logger, closeLog, err := New(Options{Level: "info", File: path, MaxBackups: 1})
	require.NoError(t, err)

	logger.Info(context.Background(), "written to file")
	closeLog()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

type nopWriteCloser struct{ bytes.Buffer }

func (*nopWriteCloser) Close() error { return nil }

func TestWriteCloseFixer(t *testing.T) {
	inner := &nopWriteCloser{}
	w := &WriteCloseFixer{Writer: inner}

	n, err := w.Write([]byte("before"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	require.NoError(t, w.Close())

	_, err = w.Write([]byte("after"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
	assert.Equal(t, "before", inner.String())
}
