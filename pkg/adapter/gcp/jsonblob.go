package gcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"cloud.google.com/go/storage"
	"github.com/dissonance-oracle/oracle/internal/oracleerr"
	"github.com/dissonance-oracle/oracle/pkg/adapter/resiliency"
)

// retryUnlessPrecondition skips the retry loop when the object genuinely
// does not exist, a definitive outcome rather than a transient fault.
func retryUnlessPrecondition(err error) bool {
	return !errors.Is(err, storage.ErrObjectNotExist)
}

// readJSON reads and decodes object name from bucket into v. It reports
// (false, nil, nil) when the object does not exist.
func readJSON(ctx context.Context, retrier *resiliency.Retrier, bucket *storage.BucketHandle, name string, v any) (bool, int64, error) {
	obj := bucket.Object(name)
	var attrs *storage.ObjectAttrs
	err := retrier.Do(ctx, retryUnlessPrecondition, func() error {
		var attrErr error
		attrs, attrErr = obj.Attrs(ctx)
		return attrErr
	})
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, err
	}

	var raw []byte
	err = retrier.Do(ctx, resiliency.AlwaysRetry, func() error {
		r, readErr := obj.NewReader(ctx)
		if readErr != nil {
			return readErr
		}
		defer r.Close()
		raw, readErr = io.ReadAll(r)
		return readErr
	})
	if err != nil {
		return false, 0, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, 0, err
	}
	return true, attrs.Generation, nil
}

// writeJSONIfAbsent writes v to name only if no object currently exists,
// the GCS analogue of DynamoDB's attribute_not_exists condition.
func writeJSONIfAbsent(ctx context.Context, retrier *resiliency.Retrier, bucket *storage.BucketHandle, name string, v any) (bool, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	obj := bucket.Object(name).If(storage.Conditions{DoesNotExist: true})

	preconditionFailed := false
	err = retrier.Do(ctx, resiliency.AlwaysRetry, func() error {
		w := obj.NewWriter(ctx)
		if _, writeErr := w.Write(raw); writeErr != nil {
			_ = w.Close()
			return writeErr
		}
		if closeErr := w.Close(); closeErr != nil {
			preconditionFailed = true // precondition-failed surfaces as a write error: treat as "already exists"
			return nil
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return !preconditionFailed, nil
}

// writeJSONGenMatch replaces name's content conditioned on its current
// generation (0 meaning "must not exist yet"), giving the compare-and-swap
// semantics the block counter's atomic increment and consent revoke need.
func writeJSONGenMatch(ctx context.Context, retrier *resiliency.Retrier, bucket *storage.BucketHandle, name string, generation int64, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return oracleerr.Wrap(oracleerr.KindInvalidInput, "marshal gcs object", err)
	}
	obj := bucket.Object(name).If(storage.Conditions{GenerationMatch: generation})
	return retrier.Do(ctx, resiliency.AlwaysRetry, func() error {
		w := obj.NewWriter(ctx)
		if _, writeErr := w.Write(raw); writeErr != nil {
			_ = w.Close()
			return writeErr
		}
		return w.Close()
	})
}

func writeJSON(ctx context.Context, retrier *resiliency.Retrier, bucket *storage.BucketHandle, name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return retrier.Do(ctx, resiliency.AlwaysRetry, func() error {
		w := bucket.Object(name).NewWriter(ctx)
		if _, writeErr := w.Write(raw); writeErr != nil {
			_ = w.Close()
			return writeErr
		}
		return w.Close()
	})
}
