package imagecache

import (
	"path/filepath"
	"sync"
)

// Manager hands out one Cache per collector, each rooted in its own
// subdirectory of the cache storage path and carrying the configured quotas.
// Caches are created lazily on first touch; the size index is rebuilt from
// disk at that point so restarts do not lose quota accounting.
type Manager struct {
	mu      sync.Mutex
	caches  map[string]*Cache
	baseDir string
	deriver ThumbnailDeriver

	imageQuota int64
	thumbQuota int64
}

// NewManager creates a cache manager rooted at baseDir.
func NewManager(baseDir string, deriver ThumbnailDeriver, imageQuota, thumbQuota int64) *Manager {
	return &Manager{
		caches:     make(map[string]*Cache),
		baseDir:    baseDir,
		deriver:    deriver,
		imageQuota: imageQuota,
		thumbQuota: thumbQuota,
	}
}

// For returns the cache for ownerID, creating it if needed. Owner IDs are
// encoded into directory names the same way cache keys are encoded into
// filenames, so arbitrary identifiers are safe.
func (m *Manager) For(ownerID string) (*Cache, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cache, ok := m.caches[ownerID]; ok {
		return cache, nil
	}

	store, err := NewFSStore(filepath.Join(m.baseDir, encodeKey(ownerID)))
	if err != nil {
		return nil, err
	}
	cache, err := NewCache(store, m.deriver, m.imageQuota, m.thumbQuota)
	if err != nil {
		return nil, err
	}
	m.caches[ownerID] = cache
	return cache, nil
}
