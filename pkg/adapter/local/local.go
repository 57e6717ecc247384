package local

import "path/filepath"

// Stores bundles the five local-backend implementations. adapter.Config's
// factory wraps this into an adapter.Bundle.
type Stores struct {
	FPStore         *FPStore
	ConsentStore    *ConsentStore
	BlockCounter    *BlockCounter
	SecretStore     *SecretStore
	BaselineStorage *BaselineStorage
}

// New constructs every local store under dataDir, one subdirectory per
// entity collection: <dataDir>/{fp_events,consent,block_counter,secrets,baselines}/.
func New(dataDir string) (*Stores, error) {
	fp, err := newFPStore(filepath.Join(dataDir, "fp_events"))
	if err != nil {
		return nil, err
	}
	consent, err := newConsentStore(filepath.Join(dataDir, "consent"))
	if err != nil {
		return nil, err
	}
	breaker, err := newBlockCounter(filepath.Join(dataDir, "block_counter"))
	if err != nil {
		return nil, err
	}
	secrets, err := newSecretStore(filepath.Join(dataDir, "secrets"))
	if err != nil {
		return nil, err
	}
	baselines, err := newBaselineStorage(filepath.Join(dataDir, "baselines"))
	if err != nil {
		return nil, err
	}
	return &Stores{
		FPStore:         fp,
		ConsentStore:    consent,
		BlockCounter:    breaker,
		SecretStore:     secrets,
		BaselineStorage: baselines,
	}, nil
}
