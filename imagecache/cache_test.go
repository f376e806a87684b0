package imagecache

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubDeriver returns a fixed-size fake thumbnail without decoding anything.
type stubDeriver struct {
	fail bool
}

func (d stubDeriver) DeriveThumbnail(payload []byte) ([]byte, error) {
	if d.fail {
		return nil, errors.New("derive failed")
	}
	// half-size stand-in for a downscaled re-encode
	return bytes.Repeat([]byte{0xAB}, len(payload)/2+1), nil
}

func newTestCache(t *testing.T, imageQuota, thumbQuota int64) *Cache {
	t.Helper()
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	cache, err := NewCache(store, stubDeriver{}, imageQuota, thumbQuota)
	require.NoError(t, err)
	return cache
}

func payload(size int) []byte {
	return bytes.Repeat([]byte{0x42}, size)
}

func TestPutAndGetRoundTrip(t *testing.T) {
	cache := newTestCache(t, 100, 100)

	assert.True(t, cache.Put("card-1", payload(10)))
	got, ok := cache.Get("card-1")
	assert.True(t, ok)
	assert.Len(t, got, 10)

	_, ok = cache.Get("card-2")
	assert.False(t, ok)
}

func TestPutReplacesExistingEntry(t *testing.T) {
	cache := newTestCache(t, 100, 100)

	require.True(t, cache.Put("card-1", payload(10)))
	require.True(t, cache.Put("card-1", payload(20)))

	got, ok := cache.Get("card-1")
	require.True(t, ok)
	assert.Len(t, got, 20)

	used, _ := cache.Usage()
	assert.Equal(t, int64(20), used)
}

func TestEvictionIsLargestFirst(t *testing.T) {
	// at capacity with [10,5,3]; a write of 6 must evict only the 10
	cache := newTestCache(t, 18, 100)
	require.True(t, cache.Put("big", payload(10)))
	require.True(t, cache.Put("mid", payload(5)))
	require.True(t, cache.Put("small", payload(3)))

	assert.True(t, cache.Put("new", payload(6)))

	_, ok := cache.Get("big")
	assert.False(t, ok, "largest entry should have been evicted")
	_, ok = cache.Get("mid")
	assert.True(t, ok)
	_, ok = cache.Get("small")
	assert.True(t, ok)
	_, ok = cache.Get("new")
	assert.True(t, ok)
}

func TestEvictionStopsOnceWriteFits(t *testing.T) {
	cache := newTestCache(t, 20, 100)
	require.True(t, cache.Put("a", payload(12)))
	require.True(t, cache.Put("b", payload(4)))
	require.True(t, cache.Put("c", payload(4)))

	// 12 must go; 4+4+10 = 18 fits, so b and c survive
	assert.True(t, cache.Put("d", payload(10)))
	_, ok := cache.Get("a")
	assert.False(t, ok)
	_, ok = cache.Get("b")
	assert.True(t, ok)
	_, ok = cache.Get("c")
	assert.True(t, ok)
}

func TestOversizedWriteLeavesCacheUnchanged(t *testing.T) {
	cache := newTestCache(t, 20, 100)
	require.True(t, cache.Put("a", payload(10)))
	require.True(t, cache.Put("b", payload(5)))

	// 25 can never fit in a 20-byte quota, even with everything evicted
	assert.False(t, cache.Put("huge", payload(25)))

	_, ok := cache.Get("a")
	assert.True(t, ok)
	_, ok = cache.Get("b")
	assert.True(t, ok)
	_, ok = cache.Get("huge")
	assert.False(t, ok)
	used, _ := cache.Usage()
	assert.Equal(t, int64(15), used)
}

func TestReplacingOwnEntryNeverEvictsOthers(t *testing.T) {
	cache := newTestCache(t, 20, 100)
	require.True(t, cache.Put("a", payload(15)))
	require.True(t, cache.Put("b", payload(5)))

	// replacing a's 15 bytes with 14 fits without touching b
	assert.True(t, cache.Put("a", payload(14)))
	_, ok := cache.Get("b")
	assert.True(t, ok)
}

func TestThumbnailNamespaceIsIndependent(t *testing.T) {
	cache := newTestCache(t, 30, 10)
	require.True(t, cache.Put("card-1", payload(20)))

	thumb, ok := cache.PutThumbnail("card-1", payload(16))
	assert.True(t, ok)
	assert.NotEmpty(t, thumb)

	// filling the thumbnail namespace must not evict full images
	_, ok = cache.PutThumbnail("card-2", payload(18))
	assert.True(t, ok)
	_, ok = cache.Get("card-1")
	assert.True(t, ok, "thumbnail eviction must not touch the image namespace")

	got, ok := cache.GetThumbnail("card-2")
	assert.True(t, ok)
	assert.Equal(t, 10, len(got))
}

func TestPutThumbnailDeriveFailure(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	cache, err := NewCache(store, stubDeriver{fail: true}, 100, 100)
	require.NoError(t, err)

	thumb, ok := cache.PutThumbnail("card-1", payload(10))
	assert.False(t, ok)
	assert.Nil(t, thumb)
	_, ok = cache.GetThumbnail("card-1")
	assert.False(t, ok)
}

func TestRemoveIsIdempotentAndDeletesBoth(t *testing.T) {
	cache := newTestCache(t, 100, 100)
	require.True(t, cache.Put("card-1", payload(10)))
	_, ok := cache.PutThumbnail("card-1", payload(10))
	require.True(t, ok)

	cache.Remove("card-1")
	_, ok = cache.Get("card-1")
	assert.False(t, ok)
	_, ok = cache.GetThumbnail("card-1")
	assert.False(t, ok)

	cache.Remove("card-1") // second remove is a no-op
	cache.Remove("never-existed")
}

func TestReplaceAllFitsCompletely(t *testing.T) {
	cache := newTestCache(t, 30, 100)
	require.True(t, cache.Put("old", payload(25)))

	ok := cache.ReplaceAll(map[string][]byte{
		"a": payload(10),
		"b": payload(10),
	})
	assert.True(t, ok)

	_, found := cache.Get("old")
	assert.False(t, found)
	_, found = cache.Get("a")
	assert.True(t, found)
	_, found = cache.Get("b")
	assert.True(t, found)
}

func TestReplaceAllDropsLargestIncoming(t *testing.T) {
	cache := newTestCache(t, 20, 100)

	ok := cache.ReplaceAll(map[string][]byte{
		"big":   payload(15),
		"mid":   payload(10),
		"small": payload(5),
	})
	assert.False(t, ok, "restore that drops entries must report partial success")

	_, found := cache.Get("big")
	assert.False(t, found)
	_, found = cache.Get("mid")
	assert.True(t, found)
	_, found = cache.Get("small")
	assert.True(t, found)
}

func TestReplaceAllClearsThumbnails(t *testing.T) {
	cache := newTestCache(t, 100, 100)
	require.True(t, cache.Put("card-1", payload(10)))
	_, ok := cache.PutThumbnail("card-1", payload(10))
	require.True(t, ok)

	require.True(t, cache.ReplaceAll(map[string][]byte{"card-1": payload(10)}))
	_, ok = cache.GetThumbnail("card-1")
	assert.False(t, ok, "restore must clear stale thumbnails")
}

func TestIndexSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSStore(dir)
	require.NoError(t, err)
	cache, err := NewCache(store, stubDeriver{}, 20, 100)
	require.NoError(t, err)
	require.True(t, cache.Put("a", payload(12)))

	// reopen over the same directory
	store2, err := NewFSStore(dir)
	require.NoError(t, err)
	reopened, err := NewCache(store2, stubDeriver{}, 20, 100)
	require.NoError(t, err)

	got, ok := reopened.Get("a")
	assert.True(t, ok)
	assert.Len(t, got, 12)

	// quota accounting carried over: a 10-byte write must evict the 12
	assert.True(t, reopened.Put("b", payload(10)))
	_, ok = reopened.Get("a")
	assert.False(t, ok)
}

func TestManagerIsolatesOwners(t *testing.T) {
	mgr := NewManager(t.TempDir(), stubDeriver{}, 100, 100)

	alice, err := mgr.For("alice")
	require.NoError(t, err)
	bob, err := mgr.For("bob")
	require.NoError(t, err)

	require.True(t, alice.Put("card-1", payload(10)))
	_, ok := bob.Get("card-1")
	assert.False(t, ok)

	again, err := mgr.For("alice")
	require.NoError(t, err)
	assert.Same(t, alice, again)
}
