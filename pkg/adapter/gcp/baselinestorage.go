package gcp

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"
	"github.com/dissonance-oracle/oracle/internal/oracleerr"
	"github.com/dissonance-oracle/oracle/pkg/adapter/resiliency"
	"google.golang.org/api/iterator"
)

// BaselineStorage implements adapter.BaselineStorage on Cloud Storage.
// Metadata is carried as GCS object metadata, data as the object body.
type BaselineStorage struct {
	bucket  *storage.BucketHandle
	retrier *resiliency.Retrier
}

func (b *BaselineStorage) Put(ctx context.Context, id string, data []byte, metadata map[string]string) error {
	obj := b.bucket.Object(id)
	err := b.retrier.Do(ctx, resiliency.AlwaysRetry, func() error {
		w := obj.NewWriter(ctx)
		w.Metadata = metadata
		if _, writeErr := w.Write(data); writeErr != nil {
			_ = w.Close()
			return writeErr
		}
		return w.Close()
	})
	if err != nil {
		return oracleerr.Wrap(oracleerr.KindBaselineStoreUnavailable, "write baseline object", err)
	}
	return nil
}

func (b *BaselineStorage) Get(ctx context.Context, id string) ([]byte, map[string]string, error) {
	obj := b.bucket.Object(id)
	var attrs *storage.ObjectAttrs
	err := b.retrier.Do(ctx, retryUnlessPrecondition, func() error {
		var attrErr error
		attrs, attrErr = obj.Attrs(ctx)
		return attrErr
	})
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, nil, oracleerr.New(oracleerr.KindInvalidInput, "baseline not found: "+id)
	}
	if err != nil {
		return nil, nil, oracleerr.Wrap(oracleerr.KindBaselineStoreUnavailable, "get baseline attrs", err)
	}
	var data []byte
	err = b.retrier.Do(ctx, resiliency.AlwaysRetry, func() error {
		r, readErr := obj.NewReader(ctx)
		if readErr != nil {
			return readErr
		}
		defer r.Close()
		data, readErr = io.ReadAll(r)
		return readErr
	})
	if err != nil {
		return nil, nil, oracleerr.Wrap(oracleerr.KindBaselineStoreUnavailable, "read baseline body", err)
	}
	return data, attrs.Metadata, nil
}

func (b *BaselineStorage) List(ctx context.Context) ([]string, error) {
	it := b.bucket.Objects(ctx, nil)
	var ids []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, oracleerr.Wrap(oracleerr.KindBaselineStoreUnavailable, "list baseline objects", err)
		}
		ids = append(ids, attrs.Name)
	}
	return ids, nil
}

func (b *BaselineStorage) Delete(ctx context.Context, id string) error {
	err := b.retrier.Do(ctx, retryUnlessPrecondition, func() error {
		return b.bucket.Object(id).Delete(ctx)
	})
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	if err != nil {
		return oracleerr.Wrap(oracleerr.KindBaselineStoreUnavailable, "delete baseline object", err)
	}
	return nil
}
