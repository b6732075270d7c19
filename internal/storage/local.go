package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/M365x55907051/juice-shop/internal/telemetry"
)

// LocalStore writes profile images into a directory served as static files
type LocalStore struct {
	dir       string
	publicURL string
}

// NewLocalStore creates the directory if needed.
// publicURL is the URL prefix the directory is served under.
func NewLocalStore(dir, publicURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}

	return &LocalStore{
		dir:       dir,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}, nil
}

// Dir returns the directory images are written to
func (s *LocalStore) Dir() string {
	return s.dir
}

// PutProfileImage writes to a temp file and renames it into place so readers
// never observe a partially written image
func (s *LocalStore) PutProfileImage(ctx context.Context, userID, extension string, data []byte) (*UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name, err := profileImageObjectName(userID, extension)
	if err != nil {
		return nil, err
	}

	_, span := telemetry.TraceStorageCall(ctx, "local", "put_object", name)
	defer span.End()

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return nil, fmt.Errorf("failed to write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("failed to close image: %w", err)
	}

	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("failed to move image into place: %w", err)
	}

	return &UploadResult{
		Key:         name,
		URL:         s.publicURL + "/" + name,
		ContentType: ContentTypeForExtension(filepath.Ext(name)),
		Size:        int64(len(data)),
	}, nil
}

// DeleteFile removes a stored image; a missing file is not an error
func (s *LocalStore) DeleteFile(ctx context.Context, key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("invalid key %q", key)
	}

	err := os.Remove(filepath.Join(s.dir, key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}

// CheckAccess verifies the directory is writable
func (s *LocalStore) CheckAccess(ctx context.Context) error {
	probe, err := os.CreateTemp(s.dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("upload dir %s is not writable: %w", s.dir, err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}
