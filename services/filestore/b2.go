package filestore

import (
	"context"
	"io"

	"github.com/kurin/blazer/b2"
	"github.com/pkg/errors"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
)

type b2Store struct {
	bucket  *b2.Bucket
	maxSize int64
}

var _ core.FileStore = (*b2Store)(nil)

func NewB2Store(ctx context.Context, conf core.StorageConfig, maxSize int64) (core.FileStore, error) {
	client, err := b2.NewClient(ctx, conf.B2AccountID, conf.B2ApplicationKey)
	if err != nil {
		return nil, errors.Wrap(err, "creating b2 client")
	}
	bucket, err := client.Bucket(ctx, conf.B2Bucket)
	if err != nil {
		return nil, errors.Wrap(err, "getting b2 bucket")
	}
	return &b2Store{bucket: bucket, maxSize: maxSize}, nil
}

func (s *b2Store) Save(ctx context.Context, prefix, filename string, r io.Reader) (string, error) {
	buf, mime, err := read(r, s.maxSize)
	if err != nil {
		return "", err
	}
	key := newKey(prefix, filename, mime)
	w := s.bucket.Object(key).NewWriter(ctx, b2.WithAttrsOption(&b2.Attrs{ContentType: mime.String()}))
	if _, err := io.Copy(w, buf); err != nil {
		_ = w.Close()
		return "", errors.Wrap(err, "writing b2 object")
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, "closing b2 writer")
	}
	return key, nil
}

func (s *b2Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if !validKey(key) {
		return nil, errInvalidKey
	}
	obj := s.bucket.Object(key)
	if _, err := obj.Attrs(ctx); err != nil {
		if b2.IsNotExist(err) {
			return nil, core.NewNotFoundError("file", key)
		}
		return nil, errors.Wrap(err, "reading b2 object attrs")
	}
	return obj.NewReader(ctx), nil
}

func (s *b2Store) Delete(ctx context.Context, key string) error {
	if !validKey(key) {
		return errInvalidKey
	}
	if err := s.bucket.Object(key).Delete(ctx); err != nil && !b2.IsNotExist(err) {
		return errors.Wrap(err, "deleting b2 object")
	}
	return nil
}
