package storage

import (
	"context"
	"io"
)

// ObjectStore stores publicly readable objects such as lesson plans and profile images.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	DeleteObject(ctx context.Context, key string) error
}
