package media

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// SharedSubDir is the subdirectory of the media storage root that holds
// community reference images.
const SharedSubDir = "shared"

// Store is the interface for persisting shared image payloads.
type Store interface {
	// SaveShared writes data under the content-addressed path for
	// fingerprint and returns the relative path used. format is the sniffed
	// image format name from UploadPolicy.Validate.
	SaveShared(fingerprint, format string, data io.Reader) (string, error)
	// Get retrieves a reader for an asset by its relative path.
	Get(relativePath string) (io.ReadCloser, os.FileInfo, error)
	// Delete removes an asset; deleting an absent asset is not an error.
	Delete(relativePath string) error
	// GetFullPath returns the absolute filesystem path for a relative asset
	// path after a traversal check.
	GetFullPath(relativePath string) (string, error)
}

// LocalStorage implements Store on the local filesystem.
type LocalStorage struct {
	basePath string // absolute media storage root
}

// NewLocalStorage creates a local filesystem store rooted at basePath.
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	absBasePath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base storage path '%s': %w", basePath, err)
	}
	if err := os.MkdirAll(filepath.Join(absBasePath, SharedSubDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create shared storage directory: %w", err)
	}
	log.Printf("media.store: initialized LocalStorage at %s", absBasePath)
	return &LocalStorage{basePath: absBasePath}, nil
}

// SharedImagePath returns the relative, content-addressed storage path for a
// fingerprint. The fingerprint is hashed so arbitrary attribute text never
// reaches the filesystem. The extension follows the sniffed format so file
// serving infers the correct content type.
func SharedImagePath(fingerprint, format string) string {
	ext := "jpg"
	switch format {
	case "png", "gif":
		ext = format
	}
	sum := sha256.Sum256([]byte(fingerprint))
	return filepath.ToSlash(filepath.Join(SharedSubDir, hex.EncodeToString(sum[:])+"."+ext))
}

// SaveShared writes data to a uuid-named temp file and renames it into the
// content-addressed location. Callers must already own the fingerprint (the
// database row insert has succeeded), so no other writer targets this path.
func (ls *LocalStorage) SaveShared(fingerprint, format string, data io.Reader) (string, error) {
	relPath := SharedImagePath(fingerprint, format)
	fullPath := filepath.Join(ls.basePath, relPath)

	tmpName, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate temp file name: %w", err)
	}
	tmpPath := filepath.Join(ls.basePath, SharedSubDir, tmpName.String()+".tmp")

	outFile, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file '%s': %w", tmpPath, err)
	}
	if _, err := io.Copy(outFile, data); err != nil {
		outFile.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write shared image data: %w", err)
	}
	if err := outFile.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to flush shared image data: %w", err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to finalize shared image '%s': %w", relPath, err)
	}

	log.Printf("media.store: saved shared image at %s", fullPath)
	return relPath, nil
}

func (ls *LocalStorage) Get(relativePath string) (io.ReadCloser, os.FileInfo, error) {
	fullPath, err := ls.GetFullPath(relativePath)
	if err != nil {
		return nil, nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("asset not found at '%s': %w", relativePath, err)
		}
		return nil, nil, fmt.Errorf("failed to open asset '%s': %w", relativePath, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("failed to stat asset '%s': %w", relativePath, err)
	}
	return file, info, nil
}

// Delete removes an asset file, ignoring "not exist" errors.
func (ls *LocalStorage) Delete(relativePath string) error {
	fullPath, err := ls.GetFullPath(relativePath)
	if err != nil {
		return err
	}
	err = os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete asset '%s': %w", relativePath, err)
	}
	if err == nil {
		log.Printf("media.store: deleted asset %s", fullPath)
	}
	return nil
}

// GetFullPath calculates the absolute path and performs the traversal check.
func (ls *LocalStorage) GetFullPath(relativePath string) (string, error) {
	cleanRelativePath := filepath.Clean(relativePath)
	fullPath := filepath.Join(ls.basePath, cleanRelativePath)

	absFullPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for '%s': %w", relativePath, err)
	}
	if !strings.HasPrefix(absFullPath, ls.basePath) {
		return "", fmt.Errorf("invalid path: access denied for '%s'", relativePath)
	}
	return absFullPath, nil
}
