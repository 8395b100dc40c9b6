package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"
)

var (
	ErrInvalidHandle = errors.New("invalid blob handle")
	ErrTooLarge      = errors.New("file too large")
)

var handlePattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// LocalStore keeps blobs as files under a root directory. Handles are random
// UUIDs, never derived from the client file name.
type LocalStore struct {
	root     string
	maxBytes int64
}

func NewLocalStore(root string, maxBytes int64) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &LocalStore{root: root, maxBytes: maxBytes}, nil
}

func (s *LocalStore) Store(ctx context.Context, r io.Reader, name, mimeType string) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	handle := uuid.NewString()
	f, err := os.OpenFile(s.path(handle), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return "", 0, err
	}

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.maxBytes > 0 && n > s.maxBytes {
		err = fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, name, s.maxBytes)
	}
	if err != nil {
		_ = os.Remove(s.path(handle))
		return "", 0, err
	}
	return handle, n, nil
}

func (s *LocalStore) Open(_ context.Context, handle string) (io.ReadCloser, error) {
	if !handlePattern.MatchString(handle) {
		return nil, ErrInvalidHandle
	}
	return os.Open(s.path(handle))
}

func (s *LocalStore) Delete(_ context.Context, handle string) error {
	if !handlePattern.MatchString(handle) {
		return ErrInvalidHandle
	}
	return os.Remove(s.path(handle))
}

func (s *LocalStore) path(handle string) string {
	return filepath.Join(s.root, handle)
}
