package local

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dissonance-oracle/oracle/pkg/model"
	"github.com/google/uuid"
)

// keystore is the on-disk shape, grounded on pkg/kms/kms.go's Keystore
// struct (active version pointer + version->value map), generalized from a
// single active encryption key to the spec's "many versions may validate
// simultaneously" nonce model.
type keystore struct {
	ActiveVersion int            `json:"active_version"`
	Nonces        map[int]string `json:"nonces"` // version -> 64-hex value
}

// SecretStore is the local file-backed adapter.SecretStore implementation.
type SecretStore struct {
	mu    sync.RWMutex
	path  string
	store keystore
}

func newSecretStore(dir string) (*SecretStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	s := &SecretStore{
		path:  filepath.Join(dir, "secrets.json"),
		store: keystore{Nonces: make(map[int]string)},
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	if len(s.store.Nonces) == 0 {
		value, err := randomNonceValue()
		if err != nil {
			return nil, err
		}
		s.store.ActiveVersion = 1
		s.store.Nonces[1] = value
		if err := s.persist(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func randomNonceValue() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func (s *SecretStore) load() error {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return nil
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, &s.store)
}

func (s *SecretStore) persist() error {
	raw, err := json.MarshalIndent(s.store, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	tmp := filepath.Join(dir, uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// GetNonce returns model.NonceLoaded{version} if version (or, when version
// is 0, the active version) is currently loaded, model.NonceNotFound
// otherwise. The local backend is always reachable by construction — it
// never returns NonceUnreachable — so degraded cache-only mode is purely a
// cloud-adapter concern.
func (s *SecretStore) GetNonce(ctx context.Context, version int) (model.NonceLookup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := version
	if v == 0 {
		v = s.store.ActiveVersion
	}
	value, ok := s.store.Nonces[v]
	if !ok {
		return model.NonceNotFound{}, nil
	}
	return model.NonceLoaded{Nonce: model.Nonce{Version: v, Value: value, LoadedAt: time.Now()}}, nil
}

func (s *SecretStore) ListAvailableVersions(ctx context.Context) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int, 0, len(s.store.Nonces))
	for v := range s.store.Nonces {
		out = append(out, v)
	}
	return out, nil
}

// Rotate adds a new highest version while keeping all prior versions loaded
// for their grace period — callers are responsible for eventually removing
// old versions (not modeled here; the spec treats grace-period expiry as an
// external operational action, not a SecretStore method).
func (s *SecretStore) Rotate(ctx context.Context, newValue string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if newValue == "" {
		var err error
		newValue, err = randomNonceValue()
		if err != nil {
			return 0, err
		}
	}

	newVersion := s.store.ActiveVersion + 1
	s.store.Nonces[newVersion] = newValue
	s.store.ActiveVersion = newVersion
	if err := s.persist(); err != nil {
		return 0, fmt.Errorf("persist rotated keystore: %w", err)
	}
	return newVersion, nil
}

func (s *SecretStore) IsReachable(ctx context.Context) bool { return true }

// RemoveVersion drops a nonce version from the loaded set, ending its grace
// period. Exposed for tests exercising the S4 rotation-grace scenario; not
// part of the adapter.SecretStore interface.
func (s *SecretStore) RemoveVersion(version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.store.Nonces, version)
	return s.persist()
}
