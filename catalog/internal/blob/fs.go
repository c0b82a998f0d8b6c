package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nevc-media/vidstream/common/logging"
)

const stagingDir = ".staging"

// FSStore keeps blobs under a root directory on the local filesystem.
// Staging files live in <root>/.staging so promotion is a same-device rename.
type FSStore struct {
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve blob root: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(abs, stagingDir), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create blob root: %w", err)
	}
	return &FSStore{root: abs}, nil
}

func (s *FSStore) Root() string { return s.root }

func (s *FSStore) resolve(key string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	rel := filepath.FromSlash(key)
	if !filepath.IsLocal(rel) {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.root, rel), nil
}

func (s *FSStore) Stage(ctx context.Context, r io.Reader) (string, int64, error) {
	tmp, err := os.CreateTemp(filepath.Join(s.root, stagingDir), "upload-*")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create staging file: %w", err)
	}
	key := stagingDir + "/" + filepath.Base(tmp.Name())

	n, err := io.Copy(tmp, contextReader{ctx: ctx, r: r})
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("failed to write staging file: %w", err)
	}
	return key, n, nil
}

func (s *FSStore) Promote(_ context.Context, stagingKey, finalKey string) error {
	if !strings.HasPrefix(stagingKey, stagingDir+"/") || strings.HasPrefix(finalKey, stagingDir+"/") {
		return ErrInvalidKey
	}
	src, err := s.resolve(stagingKey)
	if err != nil {
		return err
	}
	dst, err := s.resolve(finalKey)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("blob %q already exists", finalKey)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("failed to create blob directory: %w", err)
	}
	if err := os.Rename(src, dst); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to promote blob: %w", err)
	}
	return nil
}

func (s *FSStore) Discard(_ context.Context, stagingKey string) error {
	if !strings.HasPrefix(stagingKey, stagingDir+"/") {
		return ErrInvalidKey
	}
	p, err := s.resolve(stagingKey)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to discard staging file: %w", err)
	}
	return nil
}

// Open returns the file itself as Content, which is an io.ReadSeeker.
func (s *FSStore) Open(_ context.Context, key string) (*Object, error) {
	p, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat blob: %w", err)
	}
	if info.IsDir() {
		f.Close()
		return nil, ErrNotFound
	}
	return &Object{Content: f, Size: info.Size(), ModTime: info.ModTime()}, nil
}

func (s *FSStore) Delete(_ context.Context, key string) error {
	p, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	// Drop the per-asset directory once empty; a non-empty directory stays.
	if dir := filepath.Dir(p); dir != s.root {
		if err := os.Remove(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Debug("blob directory kept", logging.BlobKey(key), logging.Error(err))
		}
	}
	return nil
}

// contextReader stops a long copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
