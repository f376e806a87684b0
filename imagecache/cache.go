package imagecache

import (
	"log"
	"sort"
	"sync"
)

// ThumbnailDeriver re-encodes a full image payload into a bounded-dimension
// thumbnail. Implemented by media.Processor.
type ThumbnailDeriver interface {
	DeriveThumbnail(payload []byte) ([]byte, error)
}

// Entry describes one cached card image for listing surfaces.
type Entry struct {
	Key          string `json:"key"`
	Size         int64  `json:"size"`
	HasThumbnail bool   `json:"has_thumbnail"`
}

// sizeIndex tracks key -> payload size for one namespace so eviction can pick
// the largest entry without rescanning the blob store.
type sizeIndex struct {
	sizes map[string]int64
	total int64
}

func newSizeIndex(sizes map[string]int64) *sizeIndex {
	idx := &sizeIndex{sizes: make(map[string]int64, len(sizes))}
	for k, v := range sizes {
		idx.sizes[k] = v
		idx.total += v
	}
	return idx
}

func (idx *sizeIndex) set(key string, size int64) {
	idx.total += size - idx.sizes[key]
	idx.sizes[key] = size
}

func (idx *sizeIndex) remove(key string) {
	if size, ok := idx.sizes[key]; ok {
		idx.total -= size
		delete(idx.sizes, key)
	}
}

// largestExcept returns the biggest entry whose key differs from skip. Ties
// break on key order so eviction is deterministic.
func (idx *sizeIndex) largestExcept(skip string) (string, int64, bool) {
	var bestKey string
	var bestSize int64
	found := false
	for k, v := range idx.sizes {
		if k == skip {
			continue
		}
		if !found || v > bestSize || (v == bestSize && k < bestKey) {
			bestKey, bestSize, found = k, v, true
		}
	}
	return bestKey, bestSize, found
}

// Cache is one collector's quota-bounded image store with a paired thumbnail
// namespace. All operations for a single cache are serialized by its mutex,
// so calls for one key are totally ordered by call order.
//
// Capacity exhaustion is never an error: writes that cannot be satisfied
// report false and leave the cache unchanged rather than failing the caller.
type Cache struct {
	mu      sync.Mutex
	store   BlobStore
	deriver ThumbnailDeriver

	imageQuota int64
	thumbQuota int64
	images     *sizeIndex
	thumbs     *sizeIndex
}

// NewCache builds a cache over the given store, rebuilding both size indexes
// from the store so quotas survive restarts.
func NewCache(store BlobStore, deriver ThumbnailDeriver, imageQuota, thumbQuota int64) (*Cache, error) {
	imageSizes, err := store.List(NamespaceImages)
	if err != nil {
		return nil, err
	}
	thumbSizes, err := store.List(NamespaceThumbnails)
	if err != nil {
		return nil, err
	}
	return &Cache{
		store:      store,
		deriver:    deriver,
		imageQuota: imageQuota,
		thumbQuota: thumbQuota,
		images:     newSizeIndex(imageSizes),
		thumbs:     newSizeIndex(thumbSizes),
	}, nil
}

// Put stores payload under key, replacing any existing entry. When the
// namespace is over quota it evicts existing entries largest-first, one at a
// time, until the write fits. A payload that cannot fit even alone is
// abandoned and the cache is left untouched.
//
// Largest-first is deliberate: quota exhaustion is normally caused by a few
// oversized photos, and evicting many small entries to make room for one big
// one costs the user more than it buys.
func (c *Cache) Put(key string, payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.putLocked(NamespaceImages, c.images, c.imageQuota, key, payload)
}

func (c *Cache) putLocked(namespace string, idx *sizeIndex, quota int64, key string, payload []byte) bool {
	size := int64(len(payload))
	if size > quota {
		log.Printf("imagecache: entry %q (%d bytes) exceeds %s quota (%d bytes), not stored", key, size, namespace, quota)
		return false
	}

	for idx.total-idx.sizes[key]+size > quota {
		victim, victimSize, ok := idx.largestExcept(key)
		if !ok {
			// only the key being replaced remains; replacing it always fits
			break
		}
		if err := c.store.Delete(namespace, victim); err != nil {
			log.Printf("imagecache: failed to evict %q from %s: %v", victim, namespace, err)
			return false
		}
		idx.remove(victim)
		log.Printf("imagecache: evicted %q (%d bytes) from %s to make room for %q", victim, victimSize, namespace, key)
	}

	for {
		err := c.store.Write(namespace, key, payload)
		if err == nil {
			break
		}
		// the backing storage can still refuse with its own capacity signal;
		// keep evicting and retrying until nothing is left to evict
		victim, victimSize, ok := idx.largestExcept(key)
		if !ok {
			log.Printf("imagecache: write of %q to %s failed with nothing left to evict: %v", key, namespace, err)
			return false
		}
		if delErr := c.store.Delete(namespace, victim); delErr != nil {
			log.Printf("imagecache: failed to evict %q from %s: %v", victim, namespace, delErr)
			return false
		}
		idx.remove(victim)
		log.Printf("imagecache: evicted %q (%d bytes) from %s after storage refused write: %v", victim, victimSize, namespace, err)
	}

	idx.set(key, size)
	return true
}

// PutThumbnail derives a bounded-dimension thumbnail from imagePayload and
// stores it under key in the thumbnail namespace. The derived payload is
// returned alongside the storage outcome. Callers must invoke this on every
// image write so a stored thumbnail always matches the stored image.
func (c *Cache) PutThumbnail(key string, imagePayload []byte) ([]byte, bool) {
	thumb, err := c.deriver.DeriveThumbnail(imagePayload)
	if err != nil {
		log.Printf("imagecache: thumbnail derivation failed for %q: %v", key, err)
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ok := c.putLocked(NamespaceThumbnails, c.thumbs, c.thumbQuota, key, thumb)
	return thumb, ok
}

// Get returns the cached image payload for key, or ok=false when absent.
func (c *Cache) Get(key string) ([]byte, bool) {
	return c.get(NamespaceImages, key)
}

// GetThumbnail returns the cached thumbnail payload for key, or ok=false.
func (c *Cache) GetThumbnail(key string) ([]byte, bool) {
	return c.get(NamespaceThumbnails, key)
}

func (c *Cache) get(namespace, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.images
	if namespace == NamespaceThumbnails {
		idx = c.thumbs
	}
	if _, ok := idx.sizes[key]; !ok {
		return nil, false
	}
	data, err := c.store.Read(namespace, key)
	if err != nil {
		log.Printf("imagecache: read of %q from %s failed: %v", key, namespace, err)
		return nil, false
	}
	return data, true
}

// Remove deletes both the image and thumbnail entries for key. Removing an
// absent key is a no-op.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Delete(NamespaceImages, key); err != nil {
		log.Printf("imagecache: failed to remove image %q: %v", key, err)
	} else {
		c.images.remove(key)
	}
	if err := c.store.Delete(NamespaceThumbnails, key); err != nil {
		log.Printf("imagecache: failed to remove thumbnail %q: %v", key, err)
	} else {
		c.thumbs.remove(key)
	}
}

// ReplaceAll swaps the entire image namespace for next, used by backup
// restore. If the incoming set itself exceeds quota its largest entries are
// dropped first; the return value is false when anything was dropped so the
// caller can warn the user. The thumbnail namespace is cleared; callers are
// expected to queue a rebuild.
func (c *Cache) ReplaceAll(next map[string][]byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	type incoming struct {
		key  string
		size int64
	}
	entries := make([]incoming, 0, len(next))
	var total int64
	for k, v := range next {
		entries = append(entries, incoming{key: k, size: int64(len(v))})
		total += int64(len(v))
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].size != entries[j].size {
			return entries[i].size > entries[j].size
		}
		return entries[i].key < entries[j].key
	})

	complete := true
	for total > c.imageQuota && len(entries) > 0 {
		dropped := entries[0]
		entries = entries[1:]
		total -= dropped.size
		complete = false
		log.Printf("imagecache: restore dropped %q (%d bytes): incoming set exceeds quota", dropped.key, dropped.size)
	}

	// clear the current contents of both namespaces
	for key := range c.images.sizes {
		if err := c.store.Delete(NamespaceImages, key); err != nil {
			log.Printf("imagecache: restore failed to clear image %q: %v", key, err)
		}
	}
	c.images = newSizeIndex(nil)
	c.clearThumbnailsLocked()

	for _, entry := range entries {
		if !c.putLocked(NamespaceImages, c.images, c.imageQuota, entry.key, next[entry.key]) {
			complete = false
		}
	}
	return complete
}

// Keys returns the cached card keys in unspecified order; callers sort.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.images.sizes))
	for k := range c.images.sizes {
		keys = append(keys, k)
	}
	return keys
}

// Entries returns a listing of the cached images with sizes and thumbnail
// presence, for the gallery surface.
func (c *Cache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := make([]Entry, 0, len(c.images.sizes))
	for k, size := range c.images.sizes {
		_, hasThumb := c.thumbs.sizes[k]
		entries = append(entries, Entry{Key: k, Size: size, HasThumbnail: hasThumb})
	}
	return entries
}

// Usage reports current byte usage of the image and thumbnail namespaces.
func (c *Cache) Usage() (imageBytes, thumbBytes int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.images.total, c.thumbs.total
}

func (c *Cache) clearThumbnailsLocked() {
	for key := range c.thumbs.sizes {
		if err := c.store.Delete(NamespaceThumbnails, key); err != nil {
			log.Printf("imagecache: failed to clear thumbnail %q: %v", key, err)
		}
	}
	c.thumbs = newSizeIndex(nil)
}
