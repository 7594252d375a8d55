// Package logging configures the global zerolog logger: human readable output
// on stderr plus a size-rotated JSON log file per process start.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxSizeMB  = 5
	maxBackups = 3
	fileLayout = "01_02_2006_15_04_05"
)

// FileName returns the log file name for a process started at t.
func FileName(t time.Time) string {
	return t.Format(fileLayout) + ".log"
}

// Setup sets the global level and routes log output to stderr and, when dir
// is not empty, to a rotating file in dir. The returned closer flushes the file.
func Setup(level, dir string) (io.Closer, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	if dir == "" {
		log.Logger = log.Output(console)
		return nopCloser{}, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	file := &lumberjack.Logger{
		Filename:   filepath.Join(dir, FileName(time.Now())),
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(console, file)).With().Timestamp().Logger()
	return file, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
