package gcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretmanagerpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/dissonance-oracle/oracle/internal/oracleerr"
	"github.com/dissonance-oracle/oracle/pkg/adapter/resiliency"
	"github.com/dissonance-oracle/oracle/pkg/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// SecretStore implements adapter.SecretStore on Secret Manager, using its
// native add-version/list-versions/access-version-by-id operations
// directly rather than stuffing a JSON blob into one secret value — unlike
// Secrets Manager's flat VersionStage model, Secret Manager numbers
// versions monotonically the same way the oracle's nonce versions do, so
// "version" maps 1:1 onto the secret's own version number.
type SecretStore struct {
	sm         *secretmanager.Client
	projectID  string
	secretName string // fully-qualified: projects/<project>/secrets/<name>
	retrier    *resiliency.Retrier
}

func (s *SecretStore) versionName(version int) string {
	return fmt.Sprintf("%s/versions/%d", s.secretName, version)
}

// retryUnlessNotFound skips the retry loop on a definitive not-found
// outcome rather than a transient fault.
func retryUnlessNotFound(err error) bool {
	return !isNotFound(err)
}

func (s *SecretStore) GetNonce(ctx context.Context, version int) (model.NonceLookup, error) {
	v := version
	if v == 0 {
		latest, err := s.latestEnabledVersion(ctx)
		if err != nil {
			return model.NonceUnreachable{Cause: err}, nil
		}
		v = latest
	}
	var resp *secretmanagerpb.AccessSecretVersionResponse
	err := s.retrier.Do(ctx, retryUnlessNotFound, func() error {
		var accessErr error
		resp, accessErr = s.sm.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
			Name: s.versionName(v),
		})
		return accessErr
	})
	if err != nil {
		if isNotFound(err) {
			return model.NonceNotFound{}, nil
		}
		return model.NonceUnreachable{Cause: err}, nil
	}
	return model.NonceLoaded{Nonce: model.Nonce{
		Version:  v,
		Value:    string(resp.Payload.Data),
		LoadedAt: time.Now(),
	}}, nil
}

func (s *SecretStore) latestEnabledVersion(ctx context.Context) (int, error) {
	versions, err := s.ListAvailableVersions(ctx)
	if err != nil {
		return 0, err
	}
	if len(versions) == 0 {
		return 0, oracleerr.New(oracleerr.KindSecretStoreUnavailable, "no enabled secret versions")
	}
	return versions[len(versions)-1], nil
}

func (s *SecretStore) ListAvailableVersions(ctx context.Context) ([]int, error) {
	it := s.sm.ListSecretVersions(ctx, &secretmanagerpb.ListSecretVersionsRequest{
		Parent: s.secretName,
	})
	var versions []int
	for {
		v, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, oracleerr.Wrap(oracleerr.KindSecretStoreUnavailable, "list secret versions", err)
		}
		if v.State != secretmanagerpb.SecretVersion_ENABLED {
			continue
		}
		n, err := versionNumberFromName(v.Name)
		if err != nil {
			continue
		}
		versions = append(versions, n)
	}
	sort.Ints(versions)
	return versions, nil
}

func (s *SecretStore) Rotate(ctx context.Context, newValue string) (int, error) {
	if newValue == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return 0, oracleerr.Wrap(oracleerr.KindSecretStoreUnavailable, "generate nonce", err)
		}
		newValue = hex.EncodeToString(buf)
	}
	var resp *secretmanagerpb.SecretVersion
	err := s.retrier.Do(ctx, resiliency.AlwaysRetry, func() error {
		var addErr error
		resp, addErr = s.sm.AddSecretVersion(ctx, &secretmanagerpb.AddSecretVersionRequest{
			Parent: s.secretName,
			Payload: &secretmanagerpb.SecretPayload{
				Data: []byte(newValue),
			},
		})
		return addErr
	})
	if err != nil {
		return 0, oracleerr.Wrap(oracleerr.KindSecretStoreUnavailable, "add secret version", err)
	}
	return versionNumberFromName(resp.Name)
}

func (s *SecretStore) IsReachable(ctx context.Context) bool {
	_, err := s.sm.GetSecret(ctx, &secretmanagerpb.GetSecretRequest{Name: s.secretName})
	return err == nil
}

func versionNumberFromName(name string) (int, error) {
	idx := strings.LastIndexByte(name, '/')
	if idx < 0 {
		return 0, oracleerr.New(oracleerr.KindSecretStoreUnavailable, "malformed version name: "+name)
	}
	return strconv.Atoi(name[idx+1:])
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}
