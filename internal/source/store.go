package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store keeps uploaded files under a base directory as upload_<uuid>.<ext>.
// The file name is the upload's identifier.
type Store struct {
	base     string
	maxBytes int64
	logger   *zap.Logger
}

// NewStore creates the base directory if needed. maxBytes <= 0 disables the
// size cap.
func NewStore(base string, maxBytes int64, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", base, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		base:     base,
		maxBytes: maxBytes,
		logger:   logger.With(zap.String("component", "store")),
	}, nil
}

// Save writes r to a new upload file and returns its identifier. An empty
// ext is guessed from the content.
func (s *Store) Save(r io.Reader, ext string) (string, error) {
	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return "", fmt.Errorf("upload exceeds %d bytes", s.maxBytes)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("upload is empty")
	}

	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		ext = sniffExt(data)
	}

	id := fmt.Sprintf("upload_%s.%s", uuid.NewString(), ext)
	if err := os.WriteFile(filepath.Join(s.base, id), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to store upload: %w", err)
	}

	s.logger.Debug("upload stored", zap.String("file_id", id), zap.Int("bytes", len(data)))
	return id, nil
}

// Has reports whether id names a stored upload
func (s *Store) Has(id string) bool {
	path, ok := s.path(id)
	if !ok {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Fetch reads a stored upload
func (s *Store) Fetch(ctx context.Context, id string) ([]byte, error) {
	path, ok := s.path(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return data, err
}

// Take reads a stored upload and deletes it. Uploads belong to the one job
// they were posted with; a failed delete is logged and the bytes returned.
func (s *Store) Take(ctx context.Context, id string) ([]byte, error) {
	data, err := s.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.Remove(id); err != nil {
		s.logger.Warn("failed to remove upload", zap.String("file_id", id), zap.Error(err))
	}
	return data, nil
}

// Remove deletes a stored upload
func (s *Store) Remove(id string) error {
	path, ok := s.path(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return os.Remove(path)
}

// path maps id to a file under base, refusing anything that is not an
// upload file name
func (s *Store) path(id string) (string, bool) {
	if !strings.HasPrefix(id, "upload_") || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", false
	}
	return filepath.Join(s.base, id), true
}
