package storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// LocalStore serves files below a root directory.
type LocalStore struct {
	root string
}

// NewLocalStore creates a local store rooted at root.
func NewLocalStore(root string) (*LocalStore, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrap(err, "storage root is not accessible")
	}
	if !info.IsDir() {
		return nil, errors.Newf("storage root %s is not a directory", root)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) path(location string) (string, error) {
	rel, err := cleanLocation(location)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(rel)), nil
}

// Resolve returns the file path for a location.
func (s *LocalStore) Resolve(_ context.Context, location string) (Content, error) {
	p, err := s.path(location)
	if err != nil {
		return Content{}, err
	}
	info, err := os.Stat(p)
	if errors.Is(err, os.ErrNotExist) || (err == nil && info.IsDir()) {
		return Content{}, errors.Wrapf(ErrNotFound, "%s", location)
	}
	if err != nil {
		return Content{}, errors.Wrap(err, "failed to stat content")
	}
	return Content{Path: p}, nil
}

// Exists reports whether a regular file exists at the location.
func (s *LocalStore) Exists(ctx context.Context, location string) (bool, error) {
	_, err := s.Resolve(ctx, location)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Name returns the storage type.
func (s *LocalStore) Name() string {
	return "local"
}
