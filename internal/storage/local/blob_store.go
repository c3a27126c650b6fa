// Package local stores snapshot objects below a directory on the local disk.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const dirPerm = 0o750

// Config captures the parameters for the local filesystem blob store.
type Config struct {
	// BaseDir is the root directory where snapshots will be stored.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// BlobStore writes snapshot objects as files under root.
type BlobStore struct {
	root string
}

// New prepares cfg.BaseDir, creating it when missing, and checks that it accepts
// writes.
func New(cfg Config) (*BlobStore, error) {
	root := strings.TrimSpace(cfg.BaseDir)
	if root == "" {
		return nil, errors.New("storage.local.base_dir is required")
	}
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, fmt.Errorf("prepare snapshot directory: %w", err)
	}
	check, err := os.CreateTemp(root, ".writable-*")
	if err != nil {
		return nil, fmt.Errorf("snapshot directory %s is not writable: %w", root, err)
	}
	_ = check.Close()
	if err := os.Remove(check.Name()); err != nil {
		return nil, fmt.Errorf("remove write check file: %w", err)
	}
	return &BlobStore{root: root}, nil
}

// PutObject writes data to root/key and returns a file:// URI. Data goes to a
// temporary sibling that is renamed into place, so a reader sees either the old
// snapshot or the complete new one.
func (s *BlobStore) PutObject(_ context.Context, key, _ string, data io.Reader) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errors.New("object key is required")
	}
	target := filepath.Join(s.root, filepath.FromSlash(key))
	if rel, err := filepath.Rel(s.root, target); err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path traversal detected in key %q", key)
	}
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", fmt.Errorf("create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return "", fmt.Errorf("create temp snapshot: %w", err)
	}
	_, copyErr := io.Copy(tmp, data)
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write snapshot %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("move snapshot into place: %w", err)
	}
	return "file://" + target, nil
}
