// Package csvsink appends records to a comma separated file shared by all
// pipeline workers.
package csvsink

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/moviemeter-scraper/internal/scraper"
)

// Config controls where and how rows are written.
type Config struct {
	Path string `mapstructure:"path"`
	// Header writes the column names when the file is created empty.
	Header bool `mapstructure:"header"`
}

// Sink is a scraper.Sink over a single append-only CSV file. The file is
// opened once; every Append writes and flushes one row under a mutex so rows
// from concurrent workers never interleave.
type Sink struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
	closed bool

	path   string
	logger *zap.Logger
}

// Open creates or opens cfg.Path for appending.
func Open(cfg Config, logger *zap.Logger) (*Sink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("sink path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, &scraper.IOError{Op: "mkdir", Err: err}
		}
	}

	fresh := true
	if info, err := os.Stat(cfg.Path); err == nil {
		if info.IsDir() {
			return nil, fmt.Errorf("sink path %s is a directory", cfg.Path)
		}
		fresh = info.Size() == 0
	}

	// #nosec G304 -- the output path comes from operator configuration.
	f, err := os.OpenFile(cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, &scraper.IOError{Op: "open", Err: err}
	}

	s := &Sink{
		file:   f,
		writer: csv.NewWriter(f),
		path:   cfg.Path,
		logger: logger,
	}
	if cfg.Header && fresh {
		if err := s.writeRow(scraper.Columns); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	logger.Debug("csv sink opened", zap.String("path", cfg.Path), zap.Bool("new_file", fresh))
	return s, nil
}

// Path returns the file being appended to.
func (s *Sink) Path() string {
	return s.path
}

// Append writes one complete record as a single row.
func (s *Sink) Append(ctx context.Context, record scraper.Record) error {
	if err := ctx.Err(); err != nil {
		return &scraper.IOError{Op: "append", Err: err}
	}
	if missing := record.Missing(); len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", scraper.ErrIncompleteRecord, strings.Join(missing, ","))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &scraper.IOError{Op: "append", Err: os.ErrClosed}
	}
	return s.writeRow(record.Row())
}

// writeRow must be called with mu held (or before the sink is shared).
func (s *Sink) writeRow(row []string) error {
	if err := s.writer.Write(row); err != nil {
		return &scraper.IOError{Op: "write", Err: err}
	}
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return &scraper.IOError{Op: "flush", Err: err}
	}
	return nil
}

// Close flushes and closes the file. Further appends fail.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.writer.Flush()
	flushErr := s.writer.Error()
	closeErr := s.file.Close()
	if err := errors.Join(flushErr, closeErr); err != nil {
		return &scraper.IOError{Op: "close", Err: err}
	}
	return nil
}
