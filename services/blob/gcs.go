package blobsvc

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"github.com/trezcool/educa/core"
)

// GCSStore keeps blobs in a Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
}

var _ core.BlobStore = (*GCSStore)(nil)

func NewGCSStore(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCSStore, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating storage client")
	}
	return &GCSStore{client: client, bucket: client.Bucket(bucket), name: bucket}, nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return errors.Wrap(err, "uploading blob")
	}
	return errors.Wrap(w.Close(), "closing blob writer")
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	if err := s.bucket.Object(key).Delete(ctx); err != nil && err != storage.ErrObjectNotExist {
		return errors.Wrap(err, "deleting blob")
	}
	return nil
}

func (s *GCSStore) URL(key string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.name, key)
}

// New returns the blob store selected by conf.Storage.Backend.
func New(ctx context.Context, conf *core.Config) (core.BlobStore, error) {
	switch conf.Storage.Backend {
	case "gcs":
		return NewGCSStore(ctx, conf.Storage.Bucket)
	case "local", "":
		return NewLocalStore(conf.Storage.LocalDir, conf.Storage.BaseURL), nil
	}
	return nil, errors.Errorf("unknown storage backend %q", conf.Storage.Backend)
}
