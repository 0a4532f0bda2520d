package objstore

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
)

// gcsClient implements ObjectStorage on a Cloud Storage bucket.
type gcsClient struct {
	bucketName string
	client     *storage.Client
}

// NewGCS creates a Cloud Storage backed ObjectStorage for bucketName.
func NewGCS(ctx context.Context, bucketName string) (ObjectStorage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}
	return &gcsClient{
		bucketName: bucketName,
		client:     client,
	}, nil
}

func (s *gcsClient) List(ctx context.Context, prefix string) ([]string, error) {
	it := s.client.Bucket(s.bucketName).Objects(ctx, &storage.Query{Prefix: prefix})

	var keys []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list objects", goerr.Value("prefix", prefix))
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

func (s *gcsClient) Get(ctx context.Context, key string) ([]byte, error) {
	reader, err := s.client.Bucket(s.bucketName).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, goerr.Wrap(ErrNotFound, "object missing", goerr.Value("key", key))
		}
		return nil, goerr.Wrap(err, "failed to read object", goerr.Value("key", key))
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read object body", goerr.Value("key", key))
	}
	return data, nil
}
