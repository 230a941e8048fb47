// Copyright (c) 2026 Atelier. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package storage persists canonical artifacts by key.

Keys are slash-separated paths relative to the upload root, for example
"featured-works/images/featured-internal-1718000000000-42.webp". The same key
is used as the public URL suffix under /uploads/.

Backends:

  - [Local]: Files under a root directory. Writes are atomic (temp file + rename).
  - [S3]: Objects in an S3-compatible bucket, uploaded through the transfer manager.

Every backend reports a missing key as [ErrNotFound] so that callers can treat
cleanup of an already-deleted artifact as success.
*/
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrNotFound is returned when no artifact exists under the key.
	ErrNotFound = errors.New("storage: artifact not found")

	// ErrInvalidKey is returned for keys that escape the store root.
	ErrInvalidKey = errors.New("storage: invalid artifact key")
)

// Object is an open artifact ready to be streamed.
type Object struct {
	io.ReadSeekCloser
	Size    int64
	ModTime time.Time
}

// Store is the artifact persistence contract shared by all backends.
type Store interface {
	// Write stores data under key, replacing any previous content atomically.
	Write(context context.Context, key string, data []byte, contentType string) error

	// Read returns the full content of key.
	Read(context context.Context, key string) ([]byte, error)

	// Open returns a seekable handle on key. The caller must close it.
	Open(context context.Context, key string) (*Object, error)

	// Delete removes key. A missing key yields ErrNotFound.
	Delete(context context.Context, key string) error

	// Exists reports whether key is present.
	Exists(context context.Context, key string) (bool, error)
}

// nopSeekCloser gives an in-memory reader the Object interface.
type nopSeekCloser struct {
	io.ReadSeeker
}

func (nopSeekCloser) Close() error { return nil }
