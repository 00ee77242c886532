// Package objstore holds the blob store contract shared by the upload
// intake, the orchestrators and the speech collaborators.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Store persists opaque blobs. Put returns a ref of the form scheme://bucket/key
// that Open and Delete accept; refs are what job rows store.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (ref string, written int64, err error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) error
}

var ErrNotFound = errors.New("blob not found")

// Ref is a parsed blob reference.
type Ref struct {
	Scheme string
	Bucket string
	Key    string
}

func (r Ref) String() string { return r.Scheme + "://" + r.Bucket + "/" + r.Key }

func ParseRef(raw string) (Ref, error) {
	scheme, rest, ok := strings.Cut(strings.TrimSpace(raw), "://")
	if !ok || scheme == "" {
		return Ref{}, fmt.Errorf("invalid blob ref %q", raw)
	}
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return Ref{}, fmt.Errorf("invalid blob ref %q", raw)
	}
	return Ref{Scheme: scheme, Bucket: bucket, Key: key}, nil
}

// CleanKey rejects keys that could escape the bucket.
func CleanKey(key string) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return "", fmt.Errorf("empty blob key")
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." || part == "" {
			return "", fmt.Errorf("invalid blob key %q", key)
		}
	}
	return key, nil
}

// ReadAll opens ref and returns its contents.
func ReadAll(ctx context.Context, s Store, ref string) ([]byte, error) {
	rc, err := s.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
