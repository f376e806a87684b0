package imagecache

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// namespaces inside one collector's cache directory. Full images and
// thumbnails are stored and evicted independently of each other.
const (
	NamespaceImages     = "images"
	NamespaceThumbnails = "thumbs"
)

// BlobStore persists cache payloads. Write may fail with a capacity signal
// from the underlying storage; the cache reacts by evicting and retrying.
type BlobStore interface {
	Write(namespace, key string, payload []byte) error
	Read(namespace, key string) ([]byte, error)
	Delete(namespace, key string) error
	// List returns key -> payload size for a namespace, used to rebuild the
	// size index after a restart.
	List(namespace string) (map[string]int64, error)
}

// fsStore implements BlobStore on the local filesystem. Keys are arbitrary
// strings (card identities), so they are base64-encoded into filenames and
// decoded back when listing.
type fsStore struct {
	baseDir string
}

// NewFSStore creates a filesystem-backed blob store rooted at baseDir.
func NewFSStore(baseDir string) (BlobStore, error) {
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("invalid cache directory '%s': %w", baseDir, err)
	}
	if err := os.MkdirAll(absBase, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory '%s': %w", absBase, err)
	}
	return &fsStore{baseDir: absBase}, nil
}

func encodeKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

func decodeKey(name string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(name)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (s *fsStore) path(namespace, key string) (string, error) {
	dir := filepath.Join(s.baseDir, namespace)
	full := filepath.Join(dir, encodeKey(key))
	if !strings.HasPrefix(filepath.Clean(full), s.baseDir) {
		return "", fmt.Errorf("cache key resolves outside base directory")
	}
	return full, nil
}

func (s *fsStore) Write(namespace, key string, payload []byte) error {
	full, err := s.path(namespace, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("failed to create namespace directory: %w", err)
	}
	// write to a sibling temp file and rename so a crashed write never leaves
	// a partial entry behind
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, payload, 0644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize cache entry: %w", err)
	}
	return nil
}

func (s *fsStore) Read(namespace, key string) ([]byte, error) {
	full, err := s.path(namespace, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}
	return data, nil
}

func (s *fsStore) Delete(namespace, key string) error {
	full, err := s.path(namespace, key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

func (s *fsStore) List(namespace string) (map[string]int64, error) {
	dir := filepath.Join(s.baseDir, namespace)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]int64{}, nil
		}
		return nil, fmt.Errorf("failed to list cache namespace '%s': %w", namespace, err)
	}

	sizes := make(map[string]int64, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".tmp") {
			continue
		}
		key, err := decodeKey(entry.Name())
		if err != nil {
			continue // not one of ours
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		sizes[key] = info.Size()
	}
	return sizes, nil
}
