// Package blob stores the binary content of video assets.
//
// Uploads land in a staging area first and are promoted to their final key
// in a single step, so a final key either holds the complete content or does
// not exist.
package blob

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"path"
	"time"
)

var (
	ErrNotFound   = errors.New("blob not found")
	ErrInvalidKey = errors.New("invalid blob key")
)

// Store is the binary side of the catalog.
type Store interface {
	// Stage writes r to a fresh staging location and returns its key and
	// the number of bytes written.
	Stage(ctx context.Context, r io.Reader) (stagingKey string, size int64, err error)
	// Promote moves staged content to finalKey.
	Promote(ctx context.Context, stagingKey, finalKey string) error
	// Discard drops staged content that will not be promoted.
	Discard(ctx context.Context, stagingKey string) error
	Open(ctx context.Context, key string) (*Object, error)
	// Delete removes promoted content. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Object is an open blob. Content may additionally implement io.Seeker.
type Object struct {
	Content io.ReadCloser
	Size    int64
	ModTime time.Time
}

// Key builds the final key for an upload: "<id>/<fileName>".
func Key(id, fileName string) string {
	return path.Join(id, fileName)
}

// validKey accepts slash-separated relative keys without "." or ".." elements.
func validKey(key string) error {
	if key == "." || !fs.ValidPath(key) {
		return ErrInvalidKey
	}
	return nil
}
