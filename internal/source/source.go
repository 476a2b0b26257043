// Package source resolves the file identifiers carried by image and sticker
// jobs into raw bytes: uploads kept on disk, or content downloaded over HTTP.
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ErrNotFound is returned for an identifier no source can resolve
var ErrNotFound = errors.New("file not found")

// Fetcher returns the raw bytes behind a file identifier
type Fetcher interface {
	Fetch(ctx context.Context, fileID string) ([]byte, error)
}

// Resolver looks in the upload store first, then downloads. Uploads are
// removed once read. Identifiers that
// are not URLs are resolved against the downloader's base URL when one is set.
type Resolver struct {
	store      *Store
	downloader *Downloader
}

// NewResolver combines a store and a downloader. Either may be nil.
func NewResolver(store *Store, downloader *Downloader) *Resolver {
	return &Resolver{store: store, downloader: downloader}
}

// Fetch implements Fetcher
func (r *Resolver) Fetch(ctx context.Context, fileID string) ([]byte, error) {
	if fileID == "" {
		return nil, fmt.Errorf("%w: empty file id", ErrNotFound)
	}

	if IsURL(fileID) {
		if r.downloader == nil {
			return nil, fmt.Errorf("downloads are disabled, cannot fetch %s", fileID)
		}
		return r.downloader.Fetch(ctx, fileID)
	}

	if r.store != nil && r.store.Has(fileID) {
		return r.store.Take(ctx, fileID)
	}

	if r.downloader != nil && r.downloader.baseURL != "" {
		return r.downloader.Fetch(ctx, fileID)
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, fileID)
}

// IsURL reports whether id is an absolute http(s) URL
func IsURL(id string) bool {
	return strings.HasPrefix(id, "http://") || strings.HasPrefix(id, "https://")
}

// sniffExt guesses a file extension, without the dot, from content
func sniffExt(data []byte) string {
	ext := strings.TrimPrefix(mimetype.Detect(data).Extension(), ".")
	if ext == "" {
		return "bin"
	}
	return ext
}
