package local

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/dissonance-oracle/oracle/internal/oracleerr"
	"github.com/google/uuid"
)

// baselineRecord is the on-disk envelope for one stored blob: raw bytes plus
// string metadata, written as a single JSON file per id.
type baselineRecord struct {
	Data     []byte            `json:"data"`
	Metadata map[string]string `json:"metadata"`
}

// BaselineStorage is the local file-backed adapter.BaselineStorage
// implementation. One file per id under dir, same atomic-rename discipline
// as fileStore.
type BaselineStorage struct {
	mu  sync.Mutex
	dir string
}

func newBaselineStorage(dir string) (*BaselineStorage, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &BaselineStorage{dir: dir}, nil
}

func (b *BaselineStorage) pathFor(id string) string {
	return filepath.Join(b.dir, id+".json")
}

func (b *BaselineStorage) Put(ctx context.Context, id string, data []byte, metadata map[string]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	raw, err := json.Marshal(baselineRecord{Data: data, Metadata: metadata})
	if err != nil {
		return err
	}
	tmp := filepath.Join(b.dir, uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, b.pathFor(id))
}

func (b *BaselineStorage) Get(ctx context.Context, id string) ([]byte, map[string]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	raw, err := os.ReadFile(b.pathFor(id))
	if os.IsNotExist(err) {
		return nil, nil, oracleerr.New(oracleerr.KindInvalidInput, "baseline not found: "+id)
	}
	if err != nil {
		return nil, nil, err
	}
	var rec baselineRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, nil, err
	}
	return rec.Data, rec.Metadata, nil
}

func (b *BaselineStorage) List(ctx context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if filepath.Ext(name) == ".json" {
			out = append(out, name[:len(name)-len(".json")])
		}
	}
	return out, nil
}

func (b *BaselineStorage) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	err := os.Remove(b.pathFor(id))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
