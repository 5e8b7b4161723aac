package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"

	"rcaflow/pkg/platform/sentinel"
)

// FSStore keeps objects below a local directory. All access goes through
// os.Root so keys cannot escape it.
type FSStore struct {
	root *os.Root
}

func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open storage root: %w", err)
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) Put(_ context.Context, key string, r io.Reader) (int64, error) {
	if err := s.root.MkdirAll(path.Dir(key), 0o750); err != nil {
		return 0, fmt.Errorf("create object dir: %w", err)
	}
	f, err := s.root.OpenFile(key, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return 0, sentinel.ErrConflict
		}
		return 0, fmt.Errorf("create object: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = s.root.Remove(key)
		return n, fmt.Errorf("write object: %w", err)
	}
	return n, nil
}

func (s *FSStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := s.root.Open(key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("open object: %w", err)
	}
	return f, nil
}

func (s *FSStore) Delete(_ context.Context, key string) error {
	if err := s.root.Remove(key); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (s *FSStore) Close() error {
	return s.root.Close()
}
