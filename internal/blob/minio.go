package blob

import (
	"bytes"
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Spok95/course-tracker/internal/apperr"
)

// MinioOptions: адрес и доступ к бакету.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Secure    bool
}

// MinioStore: S3-совместимое хранилище. PutObject атомарен на стороне сервера.
type MinioStore struct {
	client *minio.Client
	bucket string
}

func NewMinioStore(ctx context.Context, opts MinioOptions) (*MinioStore, error) {
	const op = "blob.NewMinioStore"
	if opts.Endpoint == "" || opts.Bucket == "" {
		return nil, apperr.New(op, apperr.ErrValidation, "minio endpoint and bucket are required")
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.Secure,
	})
	if err != nil {
		return nil, apperr.Wrap(op, apperr.ErrStorage, "client", err)
	}
	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.ErrStorage, "bucket exists", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, apperr.Wrap(op, apperr.ErrStorage, "make bucket", err)
		}
	}
	return &MinioStore{client: client, bucket: opts.Bucket}, nil
}

func (s *MinioStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", apperr.Wrap("blob.MinioStore.Put", apperr.ErrStorage, key, err)
	}
	return key, nil
}

func (s *MinioStore) Get(ctx context.Context, locator string) ([]byte, error) {
	const op = "blob.MinioStore.Get"
	obj, err := s.client.GetObject(ctx, s.bucket, locator, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.classify(op, locator, err)
	}
	defer func() { _ = obj.Close() }()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.classify(op, locator, err)
	}
	return data, nil
}

func (s *MinioStore) classify(op, locator string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return apperr.Wrap(op, apperr.ErrNotFound, locator, err)
	}
	return apperr.Wrap(op, apperr.ErrStorage, locator, err)
}
