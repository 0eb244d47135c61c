// Package storage persists per-user JSON documents on disk.
//
// Every user has a directory under the data root holding today.json,
// profile.json, history.json and counters.json. Each file has a companion
// .lock file used for advisory locking; the lock file is never read as
// data. Writes go to a temporary sibling that is renamed over the target,
// so a reader sees either the old or the new document, never a partial
// write.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// ErrStoreUnavailable is returned when the advisory lock for a document
// cannot be acquired within the store's timeout. The operation that hit it
// is safe to retry wholesale: nothing was written.
var ErrStoreUnavailable = errors.New("store unavailable")

const (
	defaultLockTimeout = 5 * time.Second
	lockRetryDelay     = 25 * time.Millisecond
)

// Store reads and writes the per-user document files.
type Store struct {
	dataDir     string
	lockTimeout time.Duration
}

// New returns a store rooted at dataDir. The directory is created on first
// use if it does not exist.
func New(dataDir string) *Store {
	return &Store{dataDir: dataDir, lockTimeout: defaultLockTimeout}
}

// UserDir returns the directory holding the documents of one user,
// creating it if necessary.
func (s *Store) UserDir(userID string) (string, error) {
	dir := filepath.Join(s.dataDir, userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating user directory: %w", err)
	}
	return dir, nil
}

func lockPath(path string) string {
	return path + ".lock"
}

// withLock runs fn while holding the advisory lock for path. Lock
// acquisition is retried until the store's timeout elapses, after which
// the operation fails with ErrStoreUnavailable.
func (s *Store) withLock(path string, fn func() error) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.lockTimeout)
	defer cancel()

	fileLock := flock.New(lockPath(path))
	locked, err := fileLock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		return fmt.Errorf("%w: lock %s: %v", ErrStoreUnavailable, lockPath(path), err)
	}
	defer fileLock.Unlock()

	return fn()
}

// Load reads the JSON document at path into out under the file's advisory
// lock. A missing, empty or unparseable file leaves out at its zero value
// and reports no error: a corrupted live document is recoverable by the
// user re-logging, crashing the service is not.
func (s *Store) Load(path string, out any) error {
	return s.withLock(path, func() error {
		readJSON(path, out)
		return nil
	})
}

// readJSON reads path into out without locking. Callers must hold the
// document lock.
func readJSON(path string, out any) {
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return
	}
	if err := json.Unmarshal(data, out); err != nil {
		log.Printf("Ignoring corrupted document %s: %v", path, err)
	}
}

// Save atomically writes doc as JSON to path under the file's advisory
// lock. Serialization happens before any file is touched, so a marshal
// failure leaves the previously persisted document byte-for-byte intact.
func (s *Store) Save(path string, doc any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating document directory: %w", err)
	}
	return s.withLock(path, func() error {
		return writeFileAtomic(path, data)
	})
}

// writeFileAtomic writes data to a temporary sibling of path, syncs it and
// renames it into place. Callers must hold the document lock.
func writeFileAtomic(path string, data []byte) error {
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temporary file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming %s into place: %w", tmpPath, err)
	}

	// Sync the parent directory so the rename survives a power loss
	// between the rename and the OS flushing directory metadata.
	if dir, err := os.Open(filepath.Dir(path)); err == nil {
		dir.Sync()
		dir.Close()
	}
	return nil
}
