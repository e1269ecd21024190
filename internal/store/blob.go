package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const blobUploadTimeout = 60 * time.Second

// HTTPBlobStore writes documents to an object-storage HTTP API:
// PUT {base}/object/{bucket}/{key}, readable back at
// {base}/object/public/{bucket}/{key}.
type HTTPBlobStore struct {
	BaseURL    string
	Bucket     string
	APIKey     string
	HTTPClient *http.Client
}

func NewHTTPBlobStore(baseURL string, bucket string, apiKey string) *HTTPBlobStore {
	return &HTTPBlobStore{
		BaseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		Bucket:     strings.Trim(bucket, "/"),
		APIKey:     strings.TrimSpace(apiKey),
		HTTPClient: &http.Client{Timeout: blobUploadTimeout},
	}
}

// Upload stores data under key and returns the public reference URL.
func (s *HTTPBlobStore) Upload(ctx context.Context, key string, mimeType string, data []byte) (string, error) {
	if s.BaseURL == "" || s.Bucket == "" {
		return "", fmt.Errorf("blob store is not configured")
	}
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return "", fmt.Errorf("blob key cannot be empty")
	}

	uploadURL := fmt.Sprintf("%s/object/%s/%s", s.BaseURL, s.Bucket, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	if mimeType != "" {
		req.Header.Set("Content-Type", mimeType)
	}
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload blob: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("upload blob: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return fmt.Sprintf("%s/object/public/%s/%s", s.BaseURL, s.Bucket, key), nil
}
