package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const rotatedTimeFormat = "20060102-150405.000"

// RotatingWriter is an io.WriteCloser that starts a new file once the
// current one would grow past maxBytes. Rotated files are named
// <base>-<timestamp><ext> next to the live file.
type RotatingWriter struct {
	mu         sync.Mutex
	file       *os.File
	path       string
	size       int64
	maxBytes   int64
	maxBackups int
	maxAge     time.Duration
	now        func() time.Time
}

// NewRotatingWriter opens path for appending, creating parent directories
// as needed. At most maxBackups rotated files are kept and rotated files
// older than maxAgeDays are removed.
func NewRotatingWriter(path string, maxSizeMB, maxBackups, maxAgeDays int) (*RotatingWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	rw := &RotatingWriter{
		path:       path,
		maxBytes:   int64(maxSizeMB) << 20,
		maxBackups: maxBackups,
		maxAge:     time.Duration(maxAgeDays) * 24 * time.Hour,
		now:        time.Now,
	}
	if err := rw.open(); err != nil {
		return nil, err
	}
	return rw, nil
}

func (rw *RotatingWriter) open() error {
	f, err := os.OpenFile(rw.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	rw.file = f
	rw.size = info.Size()
	return nil
}

// Write implements io.Writer.
func (rw *RotatingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.file == nil {
		return 0, os.ErrClosed
	}
	var rotateErr error
	if rw.size > 0 && rw.size+int64(len(p)) > rw.maxBytes {
		rotateErr = rw.rotate()
		if rw.file == nil {
			return 0, rotateErr
		}
	}

	n, err := rw.file.Write(p)
	rw.size += int64(n)
	if err == nil {
		err = rotateErr
	}
	return n, err
}

// Close closes the underlying file. Further writes fail with os.ErrClosed.
func (rw *RotatingWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.file == nil {
		return nil
	}
	err := rw.file.Close()
	rw.file = nil
	return err
}

func (rw *RotatingWriter) base() (prefix, ext string) {
	ext = filepath.Ext(rw.path)
	prefix = strings.TrimSuffix(rw.path, ext)
	if ext == "" {
		ext = ".log"
	}
	return prefix, ext
}

// rotate moves the live file aside and opens a fresh one. If the move
// fails the live file is reopened and keeps growing, so logging continues
// and the next oversized write tries again.
func (rw *RotatingWriter) rotate() error {
	var rotateErr error
	if err := rw.file.Close(); err != nil {
		rotateErr = fmt.Errorf("closing log file: %w", err)
	}
	rw.file = nil

	if rotateErr == nil {
		prefix, ext := rw.base()
		rotated := fmt.Sprintf("%s-%s%s", prefix, rw.now().Format(rotatedTimeFormat), ext)
		if err := os.Rename(rw.path, rotated); err != nil {
			rotateErr = fmt.Errorf("rotating log file: %w", err)
		}
	}

	if err := rw.open(); err != nil {
		return err
	}
	if rotateErr != nil {
		return rotateErr
	}
	rw.prune()
	return nil
}

// prune removes rotated files beyond maxBackups or older than maxAge.
func (rw *RotatingWriter) prune() {
	prefix, ext := rw.base()
	dir := filepath.Dir(rw.path)
	namePrefix := filepath.Base(prefix) + "-"

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	var rotated []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == filepath.Base(rw.path) {
			continue
		}
		if strings.HasPrefix(name, namePrefix) && strings.HasSuffix(name, ext) {
			rotated = append(rotated, name)
		}
	}
	// Timestamps sort lexically, newest last.
	sort.Strings(rotated)

	for len(rotated) > rw.maxBackups {
		os.Remove(filepath.Join(dir, rotated[0])) //nolint:errcheck
		rotated = rotated[1:]
	}

	if rw.maxAge <= 0 {
		return
	}
	cutoff := rw.now().Add(-rw.maxAge)
	for _, name := range rotated {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && info.ModTime().Before(cutoff) {
			os.Remove(p) //nolint:errcheck
		}
	}
}
