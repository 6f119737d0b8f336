package gcsarchive

import (
	"context"
	"io"
)

var ErrNotFound = errNotFound

type ObjectStore interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

func NewWithStore(store ObjectStore, opts ...Option) *Archive {
	return newArchive(store, opts...)
}
