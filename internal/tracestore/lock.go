//go:build !windows

package tracestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	cierrors "codeintel/internal/errors"
)

const (
	lockName     = ".lock"
	lockPoll     = 25 * time.Millisecond
	lockDeadline = 5 * time.Second
)

// writeLock is an exclusive advisory lock on a traces directory. It keeps
// separate processes from allocating the same trace ID or interleaving
// manifest writes.
type writeLock struct {
	path string
	file *os.File
}

// acquireLock waits up to lockDeadline for the directory lock.
func acquireLock(ctx context.Context, dir string) (*writeLock, error) {
	path := filepath.Join(dir, lockName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	deadline := time.Now().Add(lockDeadline)
	for {
		err = syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			break
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			_ = file.Close()
			msg := "trace store is locked by another process"
			if content, readErr := os.ReadFile(path); readErr == nil && len(content) > 0 {
				msg = fmt.Sprintf("trace store is locked by another process (PID %s)", strings.TrimSpace(string(content)))
			}
			return nil, cierrors.New(cierrors.StoreLocked, msg, err)
		}
		time.Sleep(lockPoll)
	}

	if err := file.Truncate(0); err == nil {
		if _, err := file.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0); err != nil {
			_ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
			_ = file.Close()
			return nil, fmt.Errorf("writing PID to lock file: %w", err)
		}
	}
	return &writeLock{path: path, file: file}, nil
}

// release unlocks. The lock file stays so that a waiting process keeps
// locking the same inode.
func (l *writeLock) release() {
	if l == nil || l.file == nil {
		return
	}
	_ = l.file.Truncate(0)
	_ = syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	_ = l.file.Close()
	l.file = nil
}
