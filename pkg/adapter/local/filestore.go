// Package local implements the adapter.Bundle interfaces against a plain
// directory tree: one JSON file per entity, mutex-guarded read-modify-write,
// and atomic <uuid>.tmp -> target rename for every write so a crash mid-write
// never leaves a torn file behind.
//
// Grounded on pkg/store/ledger's FileLedger (mutex + load/save JSON), with
// the write path hardened to the spec's atomic-rename requirement.
package local

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// fileStore is a generic mutex-guarded, atomic-write JSON map persisted to a
// single file. One fileStore instance backs one entity collection (fp
// events, consent records, ...).
type fileStore[T any] struct {
	mu   sync.Mutex
	path string
	data map[string]T
}

func newFileStore[T any](dir, name string) (*fileStore[T], error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	fs := &fileStore[T]{
		path: filepath.Join(dir, name+".json"),
		data: make(map[string]T),
	}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *fileStore[T]) load() error {
	if _, err := os.Stat(fs.path); os.IsNotExist(err) {
		return nil
	}
	raw, err := os.ReadFile(fs.path)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, &fs.data)
}

// save persists fs.data via a unique-suffix temp file and atomic rename.
// Callers must hold fs.mu.
func (fs *fileStore[T]) save() error {
	raw, err := json.MarshalIndent(fs.data, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(fs.path)
	tmp := filepath.Join(dir, uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, fs.path)
}

// withLock runs fn under fs.mu, saving afterward if fn returns true.
func (fs *fileStore[T]) withLock(fn func() (dirty bool, err error)) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	dirty, err := fn()
	if err != nil {
		return err
	}
	if dirty {
		return fs.save()
	}
	return nil
}

func (fs *fileStore[T]) get(key string) (T, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	v, ok := fs.data[key]
	return v, ok
}

func (fs *fileStore[T]) snapshot() map[string]T {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	out := make(map[string]T, len(fs.data))
	for k, v := range fs.data {
		out[k] = v
	}
	return out
}
