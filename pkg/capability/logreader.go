package capability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LogReaderName is the registry name of the log file reader.
const LogReaderName = "read_log_file"

const defaultMaxLogBytes = 256 << 10

// LogReader reads log files from beneath a root directory.
type LogReader struct {
	root     string
	maxBytes int64
}

// NewLogReader creates a reader confined to root.
func NewLogReader(root string) (*LogReader, error) {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve log root: %w", err)
	}
	return &LogReader{root: abs, maxBytes: defaultMaxLogBytes}, nil
}

// Name returns the registry name.
func (r *LogReader) Name() string {
	return LogReaderName
}

// Description is shown to the model.
func (r *LogReader) Description() string {
	return "Reads the content of a log file. Argument: the file path relative to the log directory. " +
		"Useful for analyzing system events, authentication failures, and errors."
}

// Invoke returns the file content as a string.
func (r *LogReader) Invoke(_ context.Context, argument string) (any, error) {
	rel, err := r.resolve(argument)
	if err != nil {
		return nil, err
	}

	// Opening through os.Root also rejects symlinks that leave the directory.
	root, err := os.OpenRoot(r.root)
	if err != nil {
		return nil, fmt.Errorf("open log directory: %w", err)
	}
	defer root.Close()

	f, err := root.Open(rel)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("file %s not found", strings.TrimSpace(argument))
		}
		return nil, fmt.Errorf("open %s: %w", strings.TrimSpace(argument), err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, r.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", argument, err)
	}
	return string(data), nil
}

// resolve returns argument as a path relative to the root.
func (r *LogReader) resolve(argument string) (string, error) {
	name := strings.Trim(strings.TrimSpace(argument), `"'`)
	if name == "" {
		return "", fmt.Errorf("file path is required")
	}

	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.root, path)
	}
	path = filepath.Clean(path)

	rel, err := filepath.Rel(r.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside the log directory", name)
	}
	return rel, nil
}
