package objstore

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yungbote/speech-to-contract/internal/platform/logger"
)

const SchemeS3 = "s3"

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

// MinioStore keeps blobs in an S3 compatible bucket.
type MinioStore struct {
	log    *logger.Logger
	client *minio.Client
	bucket string
}

func NewMinioStore(ctx context.Context, log *logger.Logger, cfg MinioConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio endpoint and bucket required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("minio make bucket: %w", err)
		}
	}
	l := log.With("service", "MinioStore")
	l.Info("Object storage initialized", "backend", "minio", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket)
	return &MinioStore{log: l, client: client, bucket: cfg.Bucket}, nil
}

func (s *MinioStore) Put(ctx context.Context, key string, r io.Reader, contentType string) (string, int64, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", 0, err
	}
	info, err := s.client.PutObject(ctx, s.bucket, key, r, -1, minio.PutObjectOptions{
		ContentType: contentType,
		PartSize:    16 << 20,
	})
	if err != nil {
		return "", 0, fmt.Errorf("minio put: %w", err)
	}
	return Ref{Scheme: SchemeS3, Bucket: s.bucket, Key: key}.String(), info.Size, nil
}

func (s *MinioStore) Open(ctx context.Context, raw string) (io.ReadCloser, error) {
	ref, err := s.ref(raw)
	if err != nil {
		return nil, err
	}
	if _, err := s.client.StatObject(ctx, ref.Bucket, ref.Key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("minio stat: %w", err)
	}
	obj, err := s.client.GetObject(ctx, ref.Bucket, ref.Key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio get: %w", err)
	}
	return obj, nil
}

func (s *MinioStore) Delete(ctx context.Context, raw string) error {
	ref, err := s.ref(raw)
	if err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, ref.Bucket, ref.Key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio remove: %w", err)
	}
	return nil
}

func (s *MinioStore) ref(raw string) (Ref, error) {
	ref, err := ParseRef(raw)
	if err != nil {
		return Ref{}, err
	}
	if ref.Scheme != SchemeS3 || ref.Bucket != s.bucket {
		return Ref{}, fmt.Errorf("ref %q does not belong to bucket %s", raw, s.bucket)
	}
	return ref, nil
}
