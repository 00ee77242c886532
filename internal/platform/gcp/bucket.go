package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/speech-to-contract/internal/platform/logger"
	"github.com/yungbote/speech-to-contract/internal/platform/objstore"
)

const SchemeGCS = "gs"

type StorageMode string

const (
	StorageModeGCS         StorageMode = "gcs"
	StorageModeGCSEmulator StorageMode = "gcs_emulator"
)

type BucketConfig struct {
	Bucket       string
	Mode         StorageMode
	EmulatorHost string
}

// ResolveBucketConfig reads GCS_BUCKET, OBJECT_STORAGE_MODE and
// STORAGE_EMULATOR_HOST. An emulator host without an explicit mode selects
// the emulator.
func ResolveBucketConfig(bucket string) (BucketConfig, error) {
	cfg := BucketConfig{
		Bucket:       strings.TrimSpace(bucket),
		EmulatorHost: strings.TrimRight(strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST")), "/"),
	}
	rawMode := strings.TrimSpace(os.Getenv("OBJECT_STORAGE_MODE"))
	switch StorageMode(strings.ToLower(rawMode)) {
	case "":
		cfg.Mode = StorageModeGCS
		if cfg.EmulatorHost != "" {
			cfg.Mode = StorageModeGCSEmulator
		}
	case StorageModeGCS:
		cfg.Mode = StorageModeGCS
	case StorageModeGCSEmulator:
		cfg.Mode = StorageModeGCSEmulator
	default:
		return cfg, fmt.Errorf("invalid OBJECT_STORAGE_MODE=%q (allowed: %q, %q)", rawMode, StorageModeGCS, StorageModeGCSEmulator)
	}
	return cfg, cfg.Validate()
}

func (cfg BucketConfig) Validate() error {
	if cfg.Bucket == "" {
		return fmt.Errorf("missing env var GCS_BUCKET")
	}
	switch cfg.Mode {
	case StorageModeGCS:
		return nil
	case StorageModeGCSEmulator:
		u, err := url.Parse(cfg.EmulatorHost)
		if cfg.EmulatorHost == "" || err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid STORAGE_EMULATOR_HOST=%q; expected absolute URL like http://fake-gcs:4443", cfg.EmulatorHost)
		}
		return nil
	default:
		return fmt.Errorf("invalid storage mode %q", cfg.Mode)
	}
}

// BucketStore is the GCS implementation of objstore.Store. Its refs are gs://
// URIs, which the Cloud Speech transcriber reads directly.
type BucketStore struct {
	log    *logger.Logger
	client *storage.Client
	bucket string
}

func NewBucketStore(ctx context.Context, log *logger.Logger, cfg BucketConfig) (*BucketStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := newStorageClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	l := log.With("service", "BucketStore")
	l.Info("Object storage initialized", "backend", "gcs", "mode", cfg.Mode, "bucket", cfg.Bucket, "emulator_host", cfg.EmulatorHost)
	return &BucketStore{log: l, client: client, bucket: cfg.Bucket}, nil
}

func newStorageClient(ctx context.Context, cfg BucketConfig) (*storage.Client, error) {
	if cfg.Mode == StorageModeGCSEmulator {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", cfg.EmulatorHost)
		return storage.NewClient(ctx, option.WithoutAuthentication())
	}
	opts := ClientOptionsFromEnv()
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	return storage.NewClient(ctx, opts...)
}

func (b *BucketStore) Close() error { return b.client.Close() }

func (b *BucketStore) Put(ctx context.Context, key string, r io.Reader, contentType string) (string, int64, error) {
	key, err := objstore.CleanKey(key)
	if err != nil {
		return "", 0, err
	}
	w := b.client.Bucket(b.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if w.ContentType == "" {
		w.ContentType = contentTypeForKey(key)
	}
	n, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return "", n, fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", n, fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return objstore.Ref{Scheme: SchemeGCS, Bucket: b.bucket, Key: key}.String(), n, nil
}

func (b *BucketStore) Open(ctx context.Context, raw string) (io.ReadCloser, error) {
	ref, err := b.ref(raw)
	if err != nil {
		return nil, err
	}
	rc, err := b.client.Bucket(ref.Bucket).Object(ref.Key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, objstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open GCS object: %w", err)
	}
	return rc, nil
}

// Delete treats a missing object as already deleted.
func (b *BucketStore) Delete(ctx context.Context, raw string) error {
	ref, err := b.ref(raw)
	if err != nil {
		return err
	}
	err = b.client.Bucket(ref.Bucket).Object(ref.Key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete GCS object: %w", err)
	}
	return nil
}

func (b *BucketStore) ref(raw string) (objstore.Ref, error) {
	ref, err := objstore.ParseRef(raw)
	if err != nil {
		return objstore.Ref{}, err
	}
	if ref.Scheme != SchemeGCS || ref.Bucket != b.bucket {
		return objstore.Ref{}, fmt.Errorf("ref %q does not belong to bucket %s", raw, b.bucket)
	}
	return ref, nil
}

func contentTypeForKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
