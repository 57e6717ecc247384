package aws

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/dissonance-oracle/oracle/internal/oracleerr"
	"github.com/dissonance-oracle/oracle/pkg/adapter/resiliency"
	"github.com/dissonance-oracle/oracle/pkg/model"
)

// SecretStore implements adapter.SecretStore on Secrets Manager. All nonce
// versions are kept in a single secret's JSON value (map[version]value plus
// an active pointer) rather than relying on Secrets Manager's own
// VersionId/VersionStage staging, because the spec's "many versions may
// validate simultaneously" grace-period model needs arbitrarily many
// concurrently-valid versions, not just AWSCURRENT/AWSPREVIOUS.
type SecretStore struct {
	sm       *secretsmanager.Client
	secretID string
	retrier  *resiliency.Retrier
}

type secretPayload struct {
	ActiveVersion int            `json:"active_version"`
	Nonces        map[int]string `json:"nonces"`
}

func (s *SecretStore) fetch(ctx context.Context) (secretPayload, error) {
	var out *secretsmanager.GetSecretValueOutput
	err := s.retrier.Do(ctx, resiliency.AlwaysRetry, func() error {
		var getErr error
		out, getErr = s.sm.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: aws.String(s.secretID),
		})
		return getErr
	})
	if err != nil {
		return secretPayload{}, oracleerr.Wrap(oracleerr.KindSecretStoreUnavailable, "get secret value", err)
	}
	var payload secretPayload
	if out.SecretString == nil {
		return secretPayload{Nonces: make(map[int]string)}, nil
	}
	if err := json.Unmarshal([]byte(*out.SecretString), &payload); err != nil {
		return secretPayload{}, oracleerr.Wrap(oracleerr.KindSecretStoreUnavailable, "unmarshal secret payload", err)
	}
	if payload.Nonces == nil {
		payload.Nonces = make(map[int]string)
	}
	return payload, nil
}

func (s *SecretStore) put(ctx context.Context, payload secretPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return oracleerr.Wrap(oracleerr.KindSecretStoreUnavailable, "marshal secret payload", err)
	}
	err = s.retrier.Do(ctx, resiliency.AlwaysRetry, func() error {
		_, putErr := s.sm.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
			SecretId:     aws.String(s.secretID),
			SecretString: aws.String(string(raw)),
		})
		return putErr
	})
	if err != nil {
		return oracleerr.Wrap(oracleerr.KindSecretStoreUnavailable, "put secret value", err)
	}
	return nil
}

func (s *SecretStore) GetNonce(ctx context.Context, version int) (model.NonceLookup, error) {
	payload, err := s.fetch(ctx)
	if err != nil {
		return model.NonceUnreachable{Cause: err}, nil
	}
	v := version
	if v == 0 {
		v = payload.ActiveVersion
	}
	value, ok := payload.Nonces[v]
	if !ok {
		return model.NonceNotFound{}, nil
	}
	return model.NonceLoaded{Nonce: model.Nonce{Version: v, Value: value, LoadedAt: time.Now()}}, nil
}

func (s *SecretStore) ListAvailableVersions(ctx context.Context) ([]int, error) {
	payload, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, len(payload.Nonces))
	for v := range payload.Nonces {
		out = append(out, v)
	}
	sort.Ints(out)
	return out, nil
}

func (s *SecretStore) Rotate(ctx context.Context, newValue string) (int, error) {
	payload, err := s.fetch(ctx)
	if err != nil {
		return 0, err
	}
	if newValue == "" {
		buf := make([]byte, 32)
		if _, randErr := rand.Read(buf); randErr != nil {
			return 0, oracleerr.Wrap(oracleerr.KindSecretStoreUnavailable, "generate nonce", randErr)
		}
		newValue = hex.EncodeToString(buf)
	}
	newVersion := payload.ActiveVersion + 1
	payload.Nonces[newVersion] = newValue
	payload.ActiveVersion = newVersion
	if err := s.put(ctx, payload); err != nil {
		return 0, err
	}
	return newVersion, nil
}

func (s *SecretStore) IsReachable(ctx context.Context) bool {
	_, err := s.sm.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{SecretId: aws.String(s.secretID)})
	return err == nil
}
