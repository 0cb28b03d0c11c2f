package storage

import (
	"context"
	"errors"
	"io"
)

var ErrObjectNotFound = errors.New("object not found")

// Storage stores opaque blobs under slash-separated keys.
type Storage interface {
	// Save stores the content at key, replacing any previous object
	Save(ctx context.Context, key string, r io.Reader, contentType string) error

	// Open returns a reader for the object; callers close it
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error
}

// ReadAll loads a whole object into memory.
func ReadAll(ctx context.Context, s Storage, key string) ([]byte, error) {
	rc, err := s.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return io.ReadAll(rc)
}
