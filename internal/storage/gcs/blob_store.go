// Package gcs stores snapshot objects in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// Config names the bucket and an optional object prefix that overrides
// storage.prefix for this backend.
type Config struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// BlobStore uploads snapshot objects to one bucket.
type BlobStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
	owned  bool
}

// New wraps an existing client. The caller keeps ownership of it.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, errors.New("gcs client is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("storage.gcs.bucket is required")
	}
	return &BlobStore{client: client, bucket: client.Bucket(cfg.Bucket), name: cfg.Bucket}, nil
}

// Open creates a client from Application Default Credentials, or opts, and returns
// a store that closes it on Close.
func Open(ctx context.Context, cfg Config, opts ...option.ClientOption) (*BlobStore, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	s, err := New(client, cfg)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// PutObject uploads r as key in a single request and returns its gs:// URI.
// An existing object under key is replaced.
func (s *BlobStore) PutObject(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errors.New("object key is required")
	}
	w := s.bucket.Object(key).NewWriter(ctx)
	// Snapshots are small CSV files; skip resumable uploads.
	w.ChunkSize = 0
	w.ContentType = contentType
	w.Metadata = map[string]string{"producer": "konutcrawler"}

	_, copyErr := io.Copy(w, r)
	closeErr := w.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return "gs://" + s.name + "/" + key, nil
}

// Close releases the client if the store created it.
func (s *BlobStore) Close() error {
	if !s.owned {
		return nil
	}
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close gcs client: %w", err)
	}
	return nil
}
