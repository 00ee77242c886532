package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/yungbote/speech-to-contract/internal/platform/gcp"
	"github.com/yungbote/speech-to-contract/internal/platform/logger"
	"github.com/yungbote/speech-to-contract/internal/platform/objstore"
)

const (
	BlobBackendLocal = "local"
	BlobBackendGCS   = "gcs"
	BlobBackendMinio = "minio"
)

var (
	newLocalStore  = func(log *logger.Logger, root string) (objstore.Store, error) { return objstore.NewLocalStore(log, root) }
	newBucketStore = func(ctx context.Context, log *logger.Logger, cfg gcp.BucketConfig) (objstore.Store, error) {
		return gcp.NewBucketStore(ctx, log, cfg)
	}
	newMinioStore = func(ctx context.Context, log *logger.Logger, cfg objstore.MinioConfig) (objstore.Store, error) {
		return objstore.NewMinioStore(ctx, log, cfg)
	}
)

type StorageProviderBootstrapErrorCode string

const (
	StorageProviderBootstrapErrorInvalidBackend StorageProviderBootstrapErrorCode = "invalid_backend"
	StorageProviderBootstrapErrorInvalidConfig  StorageProviderBootstrapErrorCode = "invalid_config"
	StorageProviderBootstrapErrorConnectFailed  StorageProviderBootstrapErrorCode = "connect_failed"
)

type StorageProviderBootstrapError struct {
	Code    StorageProviderBootstrapErrorCode
	Backend string
	Cause   error
}

func (e *StorageProviderBootstrapError) Error() string {
	if e == nil {
		return "blob storage bootstrap failed"
	}
	return fmt.Sprintf("blob storage bootstrap failed (code=%s backend=%q): %v", e.Code, e.Backend, e.Cause)
}

func (e *StorageProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveBlobStore builds the Store named by BLOB_BACKEND.
func resolveBlobStore(ctx context.Context, log *logger.Logger, cfg Config) (objstore.Store, error) {
	backend := cfg.BlobBackend
	log.Info("Selecting blob storage provider", "backend", backend)

	var (
		store objstore.Store
		err   error
	)
	switch backend {
	case BlobBackendLocal, "":
		backend = BlobBackendLocal
		store, err = newLocalStore(log, cfg.LocalBlobDir)
	case BlobBackendGCS:
		bucketCfg, cfgErr := gcp.ResolveBucketConfig(cfg.GCSBucket)
		if cfgErr != nil {
			return nil, bootstrapFailed(log, backend, StorageProviderBootstrapErrorInvalidConfig, cfgErr)
		}
		store, err = newBucketStore(ctx, log, bucketCfg)
	case BlobBackendMinio:
		m := cfg.Minio
		if m.Endpoint == "" || m.Bucket == "" {
			return nil, bootstrapFailed(log, backend, StorageProviderBootstrapErrorInvalidConfig,
				errors.New("MINIO_ENDPOINT and MINIO_BUCKET are required"))
		}
		store, err = newMinioStore(ctx, log, objstore.MinioConfig{
			Endpoint:  m.Endpoint,
			AccessKey: m.AccessKey,
			SecretKey: m.SecretKey,
			Bucket:    m.Bucket,
			UseSSL:    m.UseSSL,
			Region:    m.Region,
		})
	default:
		return nil, bootstrapFailed(log, backend, StorageProviderBootstrapErrorInvalidBackend,
			fmt.Errorf("unsupported BLOB_BACKEND %q", backend))
	}
	if err != nil {
		return nil, bootstrapFailed(log, backend, StorageProviderBootstrapErrorConnectFailed, err)
	}
	return store, nil
}

func bootstrapFailed(log *logger.Logger, backend string, code StorageProviderBootstrapErrorCode, cause error) error {
	err := &StorageProviderBootstrapError{Code: code, Backend: backend, Cause: cause}
	log.Error("Blob storage provider bootstrap failed", "backend", backend, "error_code", code, "error", cause)
	return err
}
