//go:build windows

package tracestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const lockName = ".lock"

// writeLock records the writing process. Windows has no flock, so this
// only serializes writers inside one process via Store.mu.
type writeLock struct {
	path string
	file *os.File
}

func acquireLock(_ context.Context, dir string) (*writeLock, error) {
	path := filepath.Join(dir, lockName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}
	if _, err := file.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("writing PID to lock file: %w", err)
	}
	return &writeLock{path: path, file: file}, nil
}

func (l *writeLock) release() {
	if l == nil || l.file == nil {
		return
	}
	_ = l.file.Close()
	l.file = nil
}
