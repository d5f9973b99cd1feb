// Package storage keeps archived product images and HTML audit snapshots.
package storage

import (
	"context"
	"strings"
)

type Store interface {
	Put(ctx context.Context, path string, data []byte, contentType string) error
	Open(ctx context.Context, path string) ([]byte, string, error)
	Exists(ctx context.Context, path string) (bool, error)
	PublicURL(path string) string
}

func publicURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

var (
	_ Store = (*GridFS)(nil)
	_ Store = (*Memory)(nil)
)
