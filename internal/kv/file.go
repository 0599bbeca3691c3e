package kv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/gofrs/flock"
)

const (
	fileSuffix        = ".json"
	lockFileName      = ".roster.lock"
	lockTimeout       = 3 * time.Second
	lockRetryInterval = 100 * time.Millisecond
)

// FileBackend stores each key as a JSON file on a billy filesystem. Writes go
// to a temporary file that is renamed over the target, and an optional
// flock serializes access across processes sharing the same data directory.
type FileBackend struct {
	fs   billy.Filesystem
	dir  string
	lock *flock.Flock
	mu   sync.Mutex
}

// NewFileBackend stores values under dir on the host filesystem and guards
// them with a lock file in the same directory.
func NewFileBackend(dir string) *FileBackend {
	return &FileBackend{
		fs:   osfs.New(dir),
		dir:  dir,
		lock: flock.New(filepath.Join(dir, lockFileName)),
	}
}

// NewFilesystemBackend stores values on an arbitrary billy filesystem with no
// cross-process lock. Tests use it with memfs.
func NewFilesystemBackend(fs billy.Filesystem) *FileBackend {
	return &FileBackend{fs: fs}
}

func (f *FileBackend) Init(context.Context) error {
	if f.dir == "" {
		return nil
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("kv: create data dir: %w", err)
	}
	return nil
}

func (f *FileBackend) Get(ctx context.Context, key string) ([]byte, error) {
	unlock, err := f.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	file, err := f.fs.Open(filename(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("kv: open %q: %w", key, err)
	}
	defer file.Close()

	return io.ReadAll(file)
}

func (f *FileBackend) Set(ctx context.Context, key string, value []byte) error {
	unlock, err := f.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	target := filename(key)
	if dir := path.Dir(target); dir != "." {
		if err := f.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("kv: mkdir %q: %w", dir, err)
		}
	}

	tmp, err := util.TempFile(f.fs, path.Dir(target), "."+path.Base(target)+".tmp-")
	if err != nil {
		return fmt.Errorf("kv: temp file for %q: %w", key, err)
	}
	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = f.fs.Remove(tmp.Name())
		return fmt.Errorf("kv: write %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = f.fs.Remove(tmp.Name())
		return fmt.Errorf("kv: close %q: %w", key, err)
	}
	if err := f.fs.Rename(tmp.Name(), target); err != nil {
		_ = f.fs.Remove(tmp.Name())
		return fmt.Errorf("kv: rename %q: %w", key, err)
	}
	return nil
}

func (f *FileBackend) Delete(ctx context.Context, key string) error {
	unlock, err := f.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := f.fs.Remove(filename(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("kv: remove %q: %w", key, err)
	}
	return nil
}

func (f *FileBackend) Close() error {
	if f.lock == nil {
		return nil
	}
	return f.lock.Close()
}

// acquire takes the in-process mutex and, when configured, the file lock.
func (f *FileBackend) acquire(ctx context.Context) (func(), error) {
	f.mu.Lock()
	if f.lock == nil {
		return f.mu.Unlock, nil
	}

	ctx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	locked, err := f.lock.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		f.mu.Unlock()
		return nil, fmt.Errorf("kv: acquire lock: %w", err)
	}
	if !locked {
		f.mu.Unlock()
		return nil, errors.New("kv: could not acquire file lock")
	}
	return func() {
		_ = f.lock.Unlock()
		f.mu.Unlock()
	}, nil
}

func filename(key string) string {
	return path.Clean(key) + fileSuffix
}
