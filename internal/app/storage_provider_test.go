package app

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/speech-to-contract/internal/platform/gcp"
	"github.com/yungbote/speech-to-contract/internal/platform/logger"
	"github.com/yungbote/speech-to-contract/internal/platform/objstore"
)

func bootstrapCode(t *testing.T, err error) StorageProviderBootstrapErrorCode {
	t.Helper()
	var got *StorageProviderBootstrapError
	if !errors.As(err, &got) {
		t.Fatalf("expected StorageProviderBootstrapError, got=%T (%v)", err, err)
	}
	return got.Code
}

func TestResolveBlobStoreLocal(t *testing.T) {
	store, err := resolveBlobStore(context.Background(), logger.Nop(), Config{BlobBackend: BlobBackendLocal, LocalBlobDir: t.TempDir()})
	if err != nil {
		t.Fatalf("resolveBlobStore: %v", err)
	}
	if _, ok := store.(*objstore.LocalStore); !ok {
		t.Fatalf("store type = %T", store)
	}
}

func TestResolveBlobStoreInvalidBackend(t *testing.T) {
	_, err := resolveBlobStore(context.Background(), logger.Nop(), Config{BlobBackend: "ftp"})
	if code := bootstrapCode(t, err); code != StorageProviderBootstrapErrorInvalidBackend {
		t.Fatalf("code: want=%q got=%q", StorageProviderBootstrapErrorInvalidBackend, code)
	}
}

func TestResolveBlobStoreMinioRequiresEndpoint(t *testing.T) {
	_, err := resolveBlobStore(context.Background(), logger.Nop(), Config{BlobBackend: BlobBackendMinio, Minio: MinioEnv{Bucket: "audio"}})
	if code := bootstrapCode(t, err); code != StorageProviderBootstrapErrorInvalidConfig {
		t.Fatalf("code: want=%q got=%q", StorageProviderBootstrapErrorInvalidConfig, code)
	}
}

func TestResolveBlobStoreGCSRequiresBucket(t *testing.T) {
	t.Setenv("OBJECT_STORAGE_MODE", "")
	t.Setenv("STORAGE_EMULATOR_HOST", "")
	_, err := resolveBlobStore(context.Background(), logger.Nop(), Config{BlobBackend: BlobBackendGCS})
	if code := bootstrapCode(t, err); code != StorageProviderBootstrapErrorInvalidConfig {
		t.Fatalf("code: want=%q got=%q", StorageProviderBootstrapErrorInvalidConfig, code)
	}
}

func TestResolveBlobStoreConnectFailed(t *testing.T) {
	t.Setenv("OBJECT_STORAGE_MODE", "gcs_emulator")
	t.Setenv("STORAGE_EMULATOR_HOST", "http://fake-gcs:4443")
	orig := newBucketStore
	t.Cleanup(func() { newBucketStore = orig })
	var seen gcp.BucketConfig
	newBucketStore = func(_ context.Context, _ *logger.Logger, cfg gcp.BucketConfig) (objstore.Store, error) {
		seen = cfg
		return nil, errors.New("dial tcp: connection refused")
	}

	_, err := resolveBlobStore(context.Background(), logger.Nop(), Config{BlobBackend: BlobBackendGCS, GCSBucket: "contracts"})
	if code := bootstrapCode(t, err); code != StorageProviderBootstrapErrorConnectFailed {
		t.Fatalf("code: want=%q got=%q", StorageProviderBootstrapErrorConnectFailed, code)
	}
	if seen.Mode != gcp.StorageModeGCSEmulator || seen.Bucket != "contracts" {
		t.Fatalf("bucket config: %+v", seen)
	}
}
