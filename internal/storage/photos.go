package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// UploadResult identifies a stored photo.
type UploadResult struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

// PhotoStore is the narrow port the core uses for photo evidence. The
// production object-storage provider lives behind this interface.
type PhotoStore interface {
	Upload(ctx context.Context, filename string, r io.Reader) (*UploadResult, error)
	Delete(ctx context.Context, publicID string) error
}

// DiskStore is the local-filesystem default used in development.
type DiskStore struct {
	Dir     string
	BaseURL string
}

func NewDiskStore(dir, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &DiskStore{Dir: dir, BaseURL: baseURL}, nil
}

func (s *DiskStore) Upload(_ context.Context, filename string, r io.Reader) (*UploadResult, error) {
	publicID := uuid.New().String() + filepath.Ext(filename)

	f, err := os.Create(filepath.Join(s.Dir, publicID))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return nil, err
	}

	return &UploadResult{
		URL:      s.BaseURL + "/" + publicID,
		PublicID: publicID,
	}, nil
}

func (s *DiskStore) Delete(_ context.Context, publicID string) error {
	err := os.Remove(filepath.Join(s.Dir, publicID))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
