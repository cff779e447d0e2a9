// Package blob releases locally cached document and image files.
package blob

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
)

// Store releases cached files by path
type Store interface {
	Release(ctx context.Context, paths ...string) error
}

// FileStore keeps blobs under a local media directory
type FileStore struct {
	root string
}

// NewFileStore returns a store rooted at dir
func NewFileStore(dir string) *FileStore {
	return &FileStore{root: dir}
}

// Release removes the files. Paths that no longer exist are ignored.
func (s *FileStore) Release(ctx context.Context, paths ...string) error {
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		full, err := s.resolve(p)
		if err != nil {
			return err
		}
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "failed to release %s", p)
		}
	}
	return nil
}

func (s *FileStore) resolve(p string) (string, error) {
	if filepath.IsAbs(p) {
		return filepath.Clean(p), nil
	}
	full := filepath.Join(s.root, p)
	rel, err := filepath.Rel(s.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("path %s escapes media root", p)
	}
	return full, nil
}

// GCSStore keeps blobs in a Cloud Storage bucket
type GCSStore struct {
	bucket *storage.BucketHandle
}

// NewGCSStore returns a store for bucket
func NewGCSStore(client *storage.Client, bucket string) *GCSStore {
	return &GCSStore{bucket: client.Bucket(bucket)}
}

// Release deletes the objects. Missing objects are ignored.
func (s *GCSStore) Release(ctx context.Context, paths ...string) error {
	for _, p := range paths {
		err := s.bucket.Object(strings.TrimPrefix(p, "/")).Delete(ctx)
		if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			return errors.Wrapf(err, "failed to release gs object %s", p)
		}
	}
	return nil
}
