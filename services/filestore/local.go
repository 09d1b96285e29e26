package filestore

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
)

type localStore struct {
	dir     string
	maxSize int64
}

var _ core.FileStore = (*localStore)(nil)

func NewLocalStore(dir string, maxSize int64) (core.FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "filestore.NewLocalStore")
	}
	return &localStore{dir: dir, maxSize: maxSize}, nil
}

func (s *localStore) path(key string) (string, error) {
	if !validKey(key) {
		return "", errInvalidKey
	}
	return filepath.Join(s.dir, filepath.FromSlash(key)), nil
}

func (s *localStore) Save(_ context.Context, prefix, filename string, r io.Reader) (string, error) {
	buf, mime, err := read(r, s.maxSize)
	if err != nil {
		return "", err
	}
	key := newKey(prefix, filename, mime)
	fp, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return "", errors.Wrap(err, "filestore.Save")
	}
	if err := os.WriteFile(fp, buf.Bytes(), 0o644); err != nil {
		return "", errors.Wrap(err, "filestore.Save")
	}
	return key, nil
}

func (s *localStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	fp, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fp)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.NewNotFoundError("file", key)
		}
		return nil, errors.Wrap(err, "filestore.Open")
	}
	return f, nil
}

func (s *localStore) Delete(_ context.Context, key string) error {
	fp, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fp); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "filestore.Delete")
	}
	return nil
}
