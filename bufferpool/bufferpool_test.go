package bufferpool

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bsnyl5/bufferpool/diskio"
	"github.com/bsnyl5/bufferpool/replacer"
)

func newTestPool(t *testing.T, numFrames, kDist int) *BufferPoolManager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	dm, err := diskio.NewFileDiskManager(path)
	require.NoError(t, err)
	bpm := NewBufferPoolManager(numFrames, dm, kDist, nil)
	t.Cleanup(func() { _ = bpm.Shutdown() })
	return bpm
}

func TestBufferPoolManager_CacheHitPreservesDirty(t *testing.T) {
	bpm := newTestPool(t, 3, 2)
	ctx := context.Background()

	pageID := bpm.NewPage()
	assert.Equal(t, 0, pageID)

	wg := bpm.WritePage(ctx, pageID, replacer.AccessUnknown)
	copy(wg.GetDataMut(), []byte("HELLO"))
	wg.Drop()

	rg := bpm.ReadPage(ctx, pageID, replacer.AccessUnknown)
	_ = rg.GetData()
	rg.Drop()

	pinCount, ok := bpm.GetPinCount(pageID)
	require.True(t, ok)
	assert.Equal(t, int64(0), pinCount)

	f, ok := bpm.getFrame(pageID)
	require.True(t, ok)
	assert.True(t, f.Dirty, "a read on a previously dirty resident page must not clear the dirty bit")
}

func TestBufferPoolManager_EvictionWithFlush(t *testing.T) {
	bpm := newTestPool(t, 1, 2)
	ctx := context.Background()

	page0 := bpm.NewPage()
	wg := bpm.WritePage(ctx, page0, replacer.AccessUnknown)
	copy(wg.GetDataMut(), []byte("A"))
	wg.Drop()

	page1 := bpm.NewPage()
	guard, ok := bpm.CheckedReadPage(ctx, page1, replacer.AccessUnknown)
	require.True(t, ok, "evicting the only frame must succeed once it is unpinned")
	guard.Drop()

	rg := bpm.ReadPage(ctx, page0, replacer.AccessUnknown)
	defer rg.Drop()
	assert.Equal(t, byte('A'), rg.GetData()[0], "flushed page must round-trip through disk")
}

func TestBufferPoolManager_OutOfMemory(t *testing.T) {
	bpm := newTestPool(t, 2, 2)
	ctx := context.Background()

	page0 := bpm.NewPage()
	page1 := bpm.NewPage()
	g0 := bpm.WritePage(ctx, page0, replacer.AccessUnknown)
	g1 := bpm.WritePage(ctx, page1, replacer.AccessUnknown)

	page2 := bpm.NewPage()
	_, ok := bpm.CheckedReadPage(ctx, page2, replacer.AccessUnknown)
	assert.False(t, ok, "both frames pinned, the pool must report out of memory")

	g0.Drop()

	guard, ok := bpm.CheckedReadPage(ctx, page2, replacer.AccessUnknown)
	require.True(t, ok, "after unpinning a frame, the request must succeed")
	guard.Drop()
	g1.Drop()
}

func TestBufferPoolManager_DeletePageRefusesPinned(t *testing.T) {
	bpm := newTestPool(t, 3, 2)
	ctx := context.Background()

	page0 := bpm.NewPage()
	guard := bpm.ReadPage(ctx, page0, replacer.AccessUnknown)

	assert.False(t, bpm.DeletePage(page0))

	guard.Drop()

	assert.True(t, bpm.DeletePage(page0))
	assert.True(t, bpm.DeletePage(page0), "deleting an absent page is idempotent")
}

func TestBufferPoolManager_FlushClearsDirty(t *testing.T) {
	bpm := newTestPool(t, 3, 2)
	ctx := context.Background()

	page0 := bpm.NewPage()
	wg := bpm.WritePage(ctx, page0, replacer.AccessUnknown)
	copy(wg.GetDataMut(), []byte("DATA"))
	wg.Drop()

	assert.True(t, bpm.FlushPage(page0))

	f, ok := bpm.getFrame(page0)
	require.True(t, ok)
	assert.False(t, f.Dirty)
}

func TestBufferPoolManager_FlushPageNotResident(t *testing.T) {
	bpm := newTestPool(t, 3, 2)
	assert.False(t, bpm.FlushPage(42))
}

func TestBufferPoolManager_NewPageMonotonic(t *testing.T) {
	bpm := newTestPool(t, 3, 2)
	p0 := bpm.NewPage()
	p1 := bpm.NewPage()
	p2 := bpm.NewPage()
	assert.Equal(t, 0, p0)
	assert.Equal(t, 1, p1)
	assert.Equal(t, 2, p2)
}

func TestBufferPoolManager_FlushAllPages(t *testing.T) {
	bpm := newTestPool(t, 3, 2)
	ctx := context.Background()

	var pages []int
	for i := 0; i < 3; i++ {
		pageID := bpm.NewPage()
		wg := bpm.WritePage(ctx, pageID, replacer.AccessUnknown)
		copy(wg.GetDataMut(), []byte("X"))
		wg.Drop()
		pages = append(pages, pageID)
	}

	bpm.FlushAllPages()

	for _, pageID := range pages {
		f, ok := bpm.getFrame(pageID)
		require.True(t, ok)
		assert.False(t, f.Dirty)
	}
}

func TestBufferPoolManager_Size(t *testing.T) {
	bpm := newTestPool(t, 5, 2)
	assert.Equal(t, 5, bpm.Size())
}

func TestBufferPoolManager_GetPinCountAbsent(t *testing.T) {
	bpm := newTestPool(t, 3, 2)
	_, ok := bpm.GetPinCount(123)
	assert.False(t, ok)
}
