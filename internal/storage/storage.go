// Package storage holds the object store abstraction used for listing
// snapshots. Publishers write parquet snapshots through it and the DuckDB
// executor reads them back.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

var ErrObjectNotFound = errors.New("object not found")

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

type PutOptions struct {
	ContentType string
}

// Reader is the read half of an object store.
type Reader interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// Writer is the write half of an object store.
type Writer interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) (ObjectInfo, error)
}

type ObjectStore interface {
	Reader
	Writer
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// PutBytes uploads an in-memory payload under key.
func PutBytes(ctx context.Context, w Writer, key string, data []byte, contentType string) (ObjectInfo, error) {
	return w.Put(ctx, key, bytes.NewReader(data), int64(len(data)), PutOptions{ContentType: contentType})
}

// CopyTo streams the object at key into dst and returns the byte count.
func CopyTo(ctx context.Context, r Reader, key string, dst io.Writer) (int64, error) {
	body, err := r.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	n, copyErr := io.Copy(dst, body)
	closeErr := body.Close()
	if copyErr != nil {
		return n, fmt.Errorf("read object %q: %w", key, copyErr)
	}
	if closeErr != nil {
		return n, fmt.Errorf("close object %q: %w", key, closeErr)
	}
	return n, nil
}
