package aws

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dissonance-oracle/oracle/internal/oracleerr"
	"github.com/dissonance-oracle/oracle/pkg/adapter/resiliency"
)

// BaselineStorage implements adapter.BaselineStorage on S3. Metadata is
// carried as S3 user metadata (x-amz-meta-*), data as the object body.
type BaselineStorage struct {
	s3      *s3.Client
	bucket  string
	retrier *resiliency.Retrier
}

func retryUnlessNoSuchKey(err error) bool {
	var nsk *s3types.NoSuchKey
	return !errors.As(err, &nsk)
}

func (b *BaselineStorage) Put(ctx context.Context, id string, data []byte, metadata map[string]string) error {
	err := b.retrier.Do(ctx, resiliency.AlwaysRetry, func() error {
		_, putErr := b.s3.PutObject(ctx, &s3.PutObjectInput{
			Bucket:   aws.String(b.bucket),
			Key:      aws.String(id),
			Body:     bytes.NewReader(data),
			Metadata: metadata,
		})
		return putErr
	})
	if err != nil {
		return oracleerr.Wrap(oracleerr.KindBaselineStoreUnavailable, "put baseline object", err)
	}
	return nil
}

func (b *BaselineStorage) Get(ctx context.Context, id string) ([]byte, map[string]string, error) {
	var out *s3.GetObjectOutput
	err := b.retrier.Do(ctx, retryUnlessNoSuchKey, func() error {
		var getErr error
		out, getErr = b.s3.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(id),
		})
		return getErr
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, nil, oracleerr.New(oracleerr.KindInvalidInput, "baseline not found: "+id)
		}
		return nil, nil, oracleerr.Wrap(oracleerr.KindBaselineStoreUnavailable, "get baseline object", err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, nil, oracleerr.Wrap(oracleerr.KindBaselineStoreUnavailable, "read baseline body", err)
	}
	return data, out.Metadata, nil
}

func (b *BaselineStorage) List(ctx context.Context) ([]string, error) {
	var ids []string
	paginator := s3.NewListObjectsV2Paginator(b.s3, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, oracleerr.Wrap(oracleerr.KindBaselineStoreUnavailable, "list baseline objects", err)
		}
		for _, obj := range page.Contents {
			if obj.Key != nil {
				ids = append(ids, *obj.Key)
			}
		}
	}
	return ids, nil
}

func (b *BaselineStorage) Delete(ctx context.Context, id string) error {
	err := b.retrier.Do(ctx, resiliency.AlwaysRetry, func() error {
		_, deleteErr := b.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(id),
		})
		return deleteErr
	})
	if err != nil {
		return oracleerr.Wrap(oracleerr.KindBaselineStoreUnavailable, "delete baseline object", err)
	}
	return nil
}
