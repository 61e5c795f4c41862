// Package objectstore is a filesystem-backed bucket store for pipeline
// artifacts: raw/clean exports, downloaded images and database backups.
package objectstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	BucketImages  = "images"
	BucketExports = "exports"
	BucketBackups = "backups"
)

// Store writes objects under baseDir/<bucket>/<name> and hands back
// file:// URIs.
type Store struct {
	baseDir string
}

// NewStore creates the bucket directories under baseDir.
func NewStore(baseDir string) (*Store, error) {
	for _, bucket := range []string{BucketImages, BucketExports, BucketBackups} {
		if err := os.MkdirAll(filepath.Join(baseDir, bucket), 0755); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
	}
	return &Store{baseDir: baseDir}, nil
}

// BaseDir returns the store's root directory.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// Upload writes an object and returns its URI. Objects are immutable by
// convention; same-named uploads overwrite.
func (s *Store) Upload(bucket, name string, data []byte) (string, error) {
	name = sanitizeName(name)
	path := filepath.Join(s.baseDir, bucket, name)

	if dir := filepath.Dir(path); dir != filepath.Join(s.baseDir, bucket) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create object dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write object %s/%s: %w", bucket, name, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return "file://" + abs, nil
}

// Read returns an object's contents.
func (s *Store) Read(bucket, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, bucket, sanitizeName(name)))
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s/%s: %w", bucket, name, err)
	}
	return data, nil
}

// List returns the object names in a bucket, sorted.
func (s *Store) List(bucket string) ([]string, error) {
	root := filepath.Join(s.baseDir, bucket)
	var names []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list bucket %s: %w", bucket, err)
	}
	sort.Strings(names)
	return names, nil
}

// sanitizeName keeps object names inside the bucket directory.
func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	return strings.TrimLeft(filepath.ToSlash(name), "/")
}
