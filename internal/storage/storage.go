package storage

import (
	"context"
	"errors"
	"strings"
)

// ErrUploadFailed wraps any blob store rejection during Put.
var ErrUploadFailed = errors.New("upload failed")

// BlobStore is the artifact store the clinic services depend on. Put returns
// a public URL for the stored object. Delete accepts either a bare key or a
// full URL from a previous Put and reports whether the store confirmed the
// removal; it must not fail on an already absent object.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, keyOrURL string) bool
}

// KeyFromURL strips a URL down to its object key (the last path segment).
// A bare key passes through unchanged, so replacement paths can hand either
// form to Delete.
func KeyFromURL(keyOrURL string) string {
	if i := strings.LastIndex(keyOrURL, "/"); i >= 0 {
		return keyOrURL[i+1:]
	}
	return keyOrURL
}
