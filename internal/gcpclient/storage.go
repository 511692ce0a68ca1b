package gcpclient

import (
	"context"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
)

// StorageAdapter wraps the GCS client for the Object Fetcher (C2): streaming
// a catalog-referenced object down to a worker-scoped temp file before
// validation/extraction.
type StorageAdapter struct {
	client *storage.Client
}

// NewStorageAdapter creates a StorageAdapter.
func NewStorageAdapter(ctx context.Context) (*StorageAdapter, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcpclient.NewStorageAdapter: %w", err)
	}
	return &StorageAdapter{client: client}, nil
}

// Download reads an object from GCS into memory.
func (a *StorageAdapter) Download(ctx context.Context, bucket, object string) ([]byte, error) {
	r, err := a.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcpclient.Download: %w", err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

// DownloadToFile streams an object to the local file at destPath. Used ahead of validation/extraction, which need a seekable file
// rather than an in-memory buffer (spec §4.4 step 3).
func (a *StorageAdapter) DownloadToFile(ctx context.Context, bucket, object, destPath string) error {
	r, err := a.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("gcpclient.DownloadToFile: open reader: %w", err)
	}
	defer r.Close()

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("gcpclient.DownloadToFile: create %s: %w", destPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("gcpclient.DownloadToFile: copy: %w", err)
	}
	return nil
}

// Attrs returns the size in bytes of an object, used for processing metrics
// (ProcessingMetrics.ByteCount).
func (a *StorageAdapter) Attrs(ctx context.Context, bucket, object string) (int64, error) {
	attrs, err := a.client.Bucket(bucket).Object(object).Attrs(ctx)
	if err != nil {
		return 0, fmt.Errorf("gcpclient.Attrs: %w", err)
	}
	return attrs.Size, nil
}

// Close closes the underlying client.
func (a *StorageAdapter) Close() {
	a.client.Close()
}
