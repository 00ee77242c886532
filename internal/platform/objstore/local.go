package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/yungbote/speech-to-contract/internal/platform/logger"
)

const SchemeLocal = "local"

// LocalStore keeps blobs under a directory. Used for development and tests.
type LocalStore struct {
	log  *logger.Logger
	root string
	name string
}

func NewLocalStore(log *logger.Logger, root string) (*LocalStore, error) {
	if root == "" {
		return nil, fmt.Errorf("local blob dir required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &LocalStore{log: log.With("service", "LocalStore"), root: abs, name: "uploads"}, nil
}

func (s *LocalStore) path(key string) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, _ string) (string, int64, error) {
	p, err := s.path(key)
	if err != nil {
		return "", 0, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", 0, err
	}
	f, err := os.Create(p)
	if err != nil {
		return "", 0, err
	}
	n, err := io.Copy(f, &ctxReader{ctx: ctx, r: r})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(p)
		return "", n, err
	}
	ref := Ref{Scheme: SchemeLocal, Bucket: s.name, Key: key}
	return ref.String(), n, nil
}

func (s *LocalStore) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	p, err := s.refPath(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// Delete treats a missing blob as already deleted.
func (s *LocalStore) Delete(_ context.Context, ref string) error {
	p, err := s.refPath(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStore) refPath(raw string) (string, error) {
	ref, err := ParseRef(raw)
	if err != nil {
		return "", err
	}
	if ref.Scheme != SchemeLocal || ref.Bucket != s.name {
		return "", fmt.Errorf("ref %q does not belong to the local store", raw)
	}
	return s.path(ref.Key)
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
