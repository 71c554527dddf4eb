// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/exp/slog"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level  string // debug, info, warn, error
	Format string // text or json
	// File, when set, also receives the logs, rotated by lumberjack.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// New returns a logger writing to stdout and, optionally, a rotated file. The
// returned closer releases the file and is never nil.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
		level = slog.LevelInfo
	}

	writers := []io.Writer{os.Stdout}
	var closer io.Closer = nopCloser{}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, nil, err
		}
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		}
		writers = append(writers, file)
		closer = file
	}

	return slog.New(NewHandler(io.MultiWriter(writers...), opts.Format, level)), closer, nil
}

// NewHandler picks the JSON or text handler.
func NewHandler(w io.Writer, format string, level slog.Leveler) slog.Handler {
	ho := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, ho)
	}
	return slog.NewTextHandler(w, ho)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
