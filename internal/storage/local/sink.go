// Package local implements a Sink on the local filesystem, for development
// runs that should leave an inspectable artifact behind.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sink writes objects to {BaseDir}/{bucket}/{key}.
type Sink struct {
	baseDir string
}

// New creates the base directory when missing and checks it is writable.
func New(baseDir string) (*Sink, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(baseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(baseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	probe, err := os.CreateTemp(baseDir, ".writable-*")
	if err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	_ = probe.Close()
	if err := os.Remove(probe.Name()); err != nil {
		return nil, fmt.Errorf("clean up probe file: %w", err)
	}

	return &Sink{baseDir: filepath.Clean(baseDir)}, nil
}

// Put writes data to a temporary file and renames it into place, so a reader
// never sees a partial object.
func (s *Sink) Put(_ context.Context, bucket, key string, data []byte) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("key is required")
	}
	fullPath := filepath.Join(s.baseDir, bucket, key)
	if !strings.HasPrefix(fullPath, s.baseDir+string(filepath.Separator)) {
		return fmt.Errorf("path traversal detected")
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create parent directories: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".put-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return fmt.Errorf("rename into %s: %w", fullPath, err)
	}
	return nil
}

// Path returns where Put stores bucket/key.
func (s *Sink) Path(bucket, key string) string {
	return filepath.Join(s.baseDir, bucket, key)
}
