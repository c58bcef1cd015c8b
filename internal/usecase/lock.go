package usecase

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"codectx/internal/domain"
)

// runLock is a single-process advisory guard: a lock file created with
// O_EXCL per project index, so two indexing runs on the same project
// cannot race. It is not a distributed lock.
type runLock struct {
	path string
}

// acquireLock creates the lock file, failing with ErrIndexLocked when it
// already exists.
func acquireLock(path string) (*runLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrIndexLocked, path)
		}
		return nil, err
	}
	_, _ = f.WriteString(strconv.Itoa(os.Getpid()))
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, err
	}
	return &runLock{path: path}, nil
}

func (l *runLock) release() {
	os.Remove(l.path)
}
