// Package watch follows a growing log file and hands matching lines to a
// callback, the way the auto-pilot mode feeds alerts into a pipeline.
package watch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultMatch selects lines that look like security events.
const DefaultMatch = `(?i)failed|failure|invalid user|unauthorized|denied|sudo|error`

// Handler receives each matching line without its trailing newline.
type Handler func(ctx context.Context, line string) error

// Tailer follows a file from its current end.
type Tailer struct {
	path     string
	match    *regexp.Regexp
	interval time.Duration
	logger   *slog.Logger
	fromZero bool
}

// Option configures a Tailer.
type Option func(*Tailer)

// WithPollInterval sets how often the file is checked in addition to change
// notifications. Some filesystems do not deliver write events.
func WithPollInterval(d time.Duration) Option {
	return func(t *Tailer) { t.interval = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tailer) { t.logger = l }
}

// FromStart reads existing content before following.
func FromStart() Option {
	return func(t *Tailer) { t.fromZero = true }
}

// NewTailer creates a tailer for path. An empty pattern uses DefaultMatch.
func NewTailer(path, pattern string, opts ...Option) (*Tailer, error) {
	if path == "" {
		return nil, fmt.Errorf("log file path is required")
	}
	if pattern == "" {
		pattern = DefaultMatch
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid match pattern: %w", err)
	}
	t := &Tailer{
		path:     path,
		match:    re,
		interval: time.Second,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", t.interval)
	}
	return t, nil
}

// Run follows the file until ctx is done or handler returns an error.
// A truncated file is read again from the beginning.
func (t *Tailer) Run(ctx context.Context, handler Handler) error {
	f, err := os.Open(t.path)
	if err != nil {
		return err
	}
	defer f.Close()

	var offset int64
	if !t.fromZero {
		if offset, err = f.Seek(0, io.SeekEnd); err != nil {
			return err
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(t.path); err != nil {
		return fmt.Errorf("watch %s: %w", t.path, err)
	}

	t.logger.Info("watching log file", slog.String("path", t.path), slog.String("match", t.match.String()))

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	var partial string
	drain := func() error {
		info, err := f.Stat()
		if err != nil {
			return err
		}
		if info.Size() < offset {
			t.logger.Info("log file truncated, rereading", slog.String("path", t.path))
			offset, partial = 0, ""
		}
		if info.Size() == offset {
			return nil
		}
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return err
		}

		r := bufio.NewReader(f)
		for {
			chunk, err := r.ReadString('\n')
			offset += int64(len(chunk))
			if err != nil {
				partial += chunk
				if errors.Is(err, io.EOF) {
					return nil
				}
				return err
			}
			line := strings.TrimRight(partial+chunk, "\r\n")
			partial = ""
			if !t.match.MatchString(line) {
				continue
			}
			if err := handler(ctx, line); err != nil {
				return err
			}
		}
	}

	if err := drain(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if err := drain(); err != nil {
					return err
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			t.logger.Warn("log watch error", slog.String("error", err.Error()))
		case <-ticker.C:
			if err := drain(); err != nil {
				return err
			}
		}
	}
}
