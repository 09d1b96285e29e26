package filestore

import (
	"bytes"
	"context"
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
)

var (
	allowedTypes = []string{
		"application/pdf",
		"application/zip",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"image/jpeg",
		"image/png",
		"text/plain",
	}

	errTooLarge   = core.NewValidationError(nil, core.FieldError{Field: "file", Error: "file is too large"})
	errBadType    = core.NewValidationError(nil, core.FieldError{Field: "file", Error: "file type is not allowed"})
	errEmptyFile  = core.NewValidationError(nil, core.FieldError{Field: "file", Error: "file is empty"})
	errInvalidKey = errors.New("invalid file key")
)

// read buffers r, enforcing the size limit and the type allow-list.
func read(r io.Reader, maxSize int64) (*bytes.Buffer, *mimetype.MIME, error) {
	buf := new(bytes.Buffer)
	n, err := io.Copy(buf, io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, nil, errors.Wrap(err, "reading upload")
	}
	if n == 0 {
		return nil, nil, errEmptyFile
	}
	if n > maxSize {
		return nil, nil, errTooLarge
	}
	mime := mimetype.Detect(buf.Bytes())
	if !mimetype.EqualsAny(mime.String(), allowedTypes...) {
		return nil, nil, errBadType
	}
	return buf, mime, nil
}

// newKey returns "<prefix>/<uuid><ext>". The extension comes from the detected type, the filename is a fallback.
func newKey(prefix, filename string, mime *mimetype.MIME) string {
	ext := mime.Extension()
	if ext == "" {
		ext = strings.ToLower(path.Ext(filename))
	}
	return path.Join(prefix, uuid.New().String()+ext)
}

func validKey(key string) bool {
	return key != "" && !strings.HasPrefix(key, "/") && path.Clean(key) == key && !strings.HasPrefix(key, "..")
}

// NewStore returns the store selected by conf.Storage.Driver.
func NewStore(ctx context.Context, conf *core.Config) (core.FileStore, error) {
	if conf.Storage.Driver == "b2" {
		return NewB2Store(ctx, conf.Storage, conf.Server.MaxUploadSize)
	}
	return NewLocalStore(conf.Storage.Dir, conf.Server.MaxUploadSize)
}
