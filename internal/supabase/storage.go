package supabase

import (
	"fmt"
	"strings"

	storage "github.com/supabase-community/storage-go"
)

// StorageClient reads the source photos the upload flow put into the
// user-images bucket. Files are keyed by "{order_id}-{index}", so everything
// for one order shares the order id prefix.
type StorageClient struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

func NewStorageClient(supabaseURL, serviceRoleKey, bucket string) (*StorageClient, error) {
	baseURL := strings.TrimSuffix(supabaseURL, "/")
	client := storage.NewClient(baseURL+"/storage/v1", serviceRoleKey, nil)

	return &StorageClient{
		client:  client,
		bucket:  bucket,
		baseURL: baseURL,
	}, nil
}

// ImagePrefix is the storage key prefix shared by all source photos of an
// order.
func ImagePrefix(orderID string) string {
	return orderID + "-"
}

// ListOrderImages returns the storage paths of every source photo uploaded
// for the order, in listing order.
func (s *StorageClient) ListOrderImages(orderID string) ([]string, error) {
	files, err := s.client.ListFiles(s.bucket, ImagePrefix(orderID), storage.FileSearchOptions{
		Limit: 1000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	paths := make([]string, len(files))
	for i, file := range files {
		paths[i] = file.Name
	}

	return paths, nil
}

func (s *StorageClient) GetPublicURL(storagePath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s",
		s.baseURL, s.bucket, storagePath)
}

func (s *StorageClient) DownloadFile(storagePath string) ([]byte, error) {
	data, err := s.client.DownloadFile(s.bucket, storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}

	return data, nil
}
