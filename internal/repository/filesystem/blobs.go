package filesystem

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Rrens/support-chat/internal/domain"
)

// BlobStore writes uploaded files into a directory and serves them under
// a public URL prefix
type BlobStore struct {
	dir       string
	publicURL string
	maxBytes  int64
}

// NewBlobStore creates the upload directory if needed. maxBytes <= 0
// disables the size cap.
func NewBlobStore(dir, publicURL string, maxBytes int64) (*BlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &BlobStore{
		dir:       dir,
		publicURL: strings.TrimSuffix(publicURL, "/"),
		maxBytes:  maxBytes,
	}, nil
}

// Dir returns the directory blobs are written to
func (s *BlobStore) Dir() string {
	return s.dir
}

// Put stores body under a unique name that keeps the original extension
func (s *BlobStore) Put(ctx context.Context, name string, body io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// unique filename to avoid collisions
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	uniqueName := domain.NewID() + ext
	destPath := filepath.Join(s.dir, uniqueName)

	dst, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	src := body
	if s.maxBytes > 0 {
		src = io.LimitReader(body, s.maxBytes+1)
	}

	written, err := io.Copy(dst, src)
	if err != nil {
		os.Remove(destPath)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if s.maxBytes > 0 && written > s.maxBytes {
		os.Remove(destPath)
		return "", fmt.Errorf("file exceeds %d bytes", s.maxBytes)
	}

	return s.publicURL + "/" + uniqueName, nil
}
