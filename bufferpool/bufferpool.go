// Package bufferpool implements the buffer pool manager: the component
// that mediates between a fixed-size pool of in-memory frames and a much
// larger on-disk page space, bringing pages into memory on demand and
// evicting them under an LRU-K policy when memory pressure arises.
package bufferpool

import (
	"container/list"
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/bsnyl5/bufferpool/bpmerrors"
	"github.com/bsnyl5/bufferpool/diskio"
	"github.com/bsnyl5/bufferpool/frame"
	"github.com/bsnyl5/bufferpool/replacer"
)

// InvalidPageID is the sentinel meaning "no page".
const InvalidPageID = frame.InvalidPageID

// BufferPoolManager owns every in-memory frame, the page table mapping
// resident pages to frames, the free list, the LRU-K replacer, and the
// disk scheduler used to bring pages in and flush them back out.
type BufferPoolManager struct {
	numFrames  int
	nextPageID atomic.Int64

	frames    []*frame.Frame
	pageTable map[int]frame.ID
	freeList  *list.List // stack of free frame.ID, front = most recently freed

	replacer  *replacer.LRUKReplacer
	scheduler *diskio.Scheduler
	logMgr    *LogManagerHandle

	mu      sync.Mutex // the BPM latch
	logger  *slog.Logger
	metrics *Metrics

	closed atomic.Bool
}

// NewBufferPoolManager allocates numFrames frames up front, wires them to
// a free list, and constructs an LRU-K replacer parameterized by kDist.
// logMgr is accepted to match the reference construction signature but is
// not driven by the core.
func NewBufferPoolManager(numFrames int, dm diskio.DiskManager, kDist int, logMgr *LogManagerHandle, opts ...Option) *BufferPoolManager {
	frames := make([]*frame.Frame, numFrames)
	freeList := list.New()
	for i := 0; i < numFrames; i++ {
		frames[i] = frame.New(frame.ID(i))
		freeList.PushFront(frame.ID(i))
	}

	b := &BufferPoolManager{
		numFrames: numFrames,
		frames:    frames,
		pageTable: make(map[int]frame.ID, numFrames),
		freeList:  freeList,
		replacer:  replacer.New(numFrames, kDist),
		scheduler: diskio.NewScheduler(dm),
		logMgr:    logMgr,
		logger:    slog.Default(),
		metrics:   &Metrics{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Size returns the number of frames this buffer pool manages. It never
// blocks.
func (b *BufferPoolManager) Size() int {
	return b.numFrames
}

// Metrics returns the pool's activity counters.
func (b *BufferPoolManager) Metrics() MetricsSnapshot {
	return b.metrics.Snapshot()
}

// NewPage allocates a new page id on disk and returns it without bringing
// the page into memory. It cannot fail: disk space is assumed unbounded.
func (b *BufferPoolManager) NewPage() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	pageID := int(b.nextPageID.Load())
	b.nextPageID.Add(1)
	_ = b.scheduler.IncreaseDiskSpace(pageID)
	return pageID
}

// DeletePage removes a page from the pool and asks the disk scheduler to
// deallocate it. It returns true if the page was not resident, or was
// resident with a zero pin count and has now been removed; it returns
// false, leaving everything untouched, if the page is resident and
// pinned.
func (b *BufferPoolManager) DeletePage(pageID int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	fid, ok := b.pageTable[pageID]
	if !ok {
		return true
	}
	f := b.frames[fid]
	if f.PinCount.Load() > 0 {
		return false
	}

	if f.Dirty {
		b.flushLocked(f)
	}

	b.freeList.PushFront(fid)
	_ = b.scheduler.DeallocatePage(pageID)
	_ = b.replacer.Remove(fid)
	delete(b.pageTable, pageID)
	f.Reset()
	return true
}

// getFrame looks up the frame currently holding pageID, if any. Must be
// called with the BPM latch held.
func (b *BufferPoolManager) getFrame(pageID int) (*frame.Frame, bool) {
	fid, ok := b.pageTable[pageID]
	if !ok {
		return nil, false
	}
	return b.frames[fid], true
}

// getFreeFrame pops a frame off the free list, if any. Must be called
// with the BPM latch held.
func (b *BufferPoolManager) getFreeFrame() (*frame.Frame, bool) {
	elem := b.freeList.Front()
	if elem == nil {
		return nil, false
	}
	b.freeList.Remove(elem)
	fid := elem.Value.(frame.ID)
	return b.frames[fid], true
}

// findFreeOrEvict returns a frame to repurpose: from the free list first,
// falling back to the replacer's victim. Returns nil if neither yields a
// frame (every frame is pinned). Must be called with the BPM latch held.
func (b *BufferPoolManager) findFreeOrEvict() *frame.Frame {
	if f, ok := b.getFreeFrame(); ok {
		return f
	}
	if fid, ok := b.replacer.Evict(); ok {
		b.metrics.Evictions.Add(1)
		return b.frames[fid]
	}
	return nil
}

// pinFrame increments a frame's pin count, attaches it to pageID, marks it
// dirty if this is a write access, and tells the replacer the frame is
// pinned (non-evictable) and has just been accessed. Must be called with
// the BPM latch held.
func (b *BufferPoolManager) pinFrame(f *frame.Frame, pageID int, markDirty bool) {
	f.PinCount.Add(1)
	f.PageID = pageID
	if markDirty {
		f.Dirty = true
	}
	_ = b.replacer.SetEvictable(f.ID, false)
	_ = b.replacer.RecordAccess(f.ID, replacer.AccessUnknown)
}

// swapIn reads pageID from disk into f's buffer and updates the page
// table to reflect the swap. Must be called with the BPM latch held.
func (b *BufferPoolManager) swapIn(ctx context.Context, pageID int, f *frame.Frame) error {
	req, done := b.scheduler.CreateRequest(false, f.GetDataMut(), pageID)
	b.scheduler.Schedule(req)
	if err := waitForRequest(ctx, done); err != nil {
		return err
	}

	delete(b.pageTable, f.PageID)
	b.pageTable[pageID] = f.ID
	return nil
}

func waitForRequest(ctx context.Context, done <-chan error) error {
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CheckedReadPage acquires a shared, read-only guard over pageID, bringing
// it into memory if necessary. It returns false if no frame could be
// obtained (every frame is pinned).
func (b *BufferPoolManager) CheckedReadPage(ctx context.Context, pageID int, accessType replacer.AccessType) (*ReadPageGuard, bool) {
	b.mu.Lock()

	if f, ok := b.getFrame(pageID); ok {
		b.metrics.Hits.Add(1)
		b.pinFrame(f, pageID, false)
		f.Latch.RLock()
		b.mu.Unlock()

		return &ReadPageGuard{pageID: pageID, frame: f, replacer: b.replacer, bpmLatch: &b.mu}, true
	}

	f := b.findFreeOrEvict()
	if f == nil {
		b.mu.Unlock()
		b.logger.Warn("checked read: out of memory", "page_id", pageID)
		return nil, false
	}
	b.metrics.Misses.Add(1)

	if f.PageID != frame.InvalidPageID && f.Dirty {
		b.flushLocked(f)
	}

	if err := b.swapIn(ctx, pageID, f); err != nil {
		b.mu.Unlock()
		b.logger.Error("checked read: swap in failed", "page_id", pageID, "error", err)
		return nil, false
	}
	b.pinFrame(f, pageID, false)
	f.Latch.RLock()
	b.mu.Unlock()

	return &ReadPageGuard{pageID: pageID, frame: f, replacer: b.replacer, bpmLatch: &b.mu}, true
}

// CheckedWritePage acquires an exclusive, mutable guard over pageID,
// bringing it into memory if necessary. It returns false if no frame
// could be obtained.
func (b *BufferPoolManager) CheckedWritePage(ctx context.Context, pageID int, accessType replacer.AccessType) (*WritePageGuard, bool) {
	b.mu.Lock()

	if f, ok := b.getFrame(pageID); ok {
		b.metrics.Hits.Add(1)
		b.pinFrame(f, pageID, true)
		f.Latch.Lock()
		b.mu.Unlock()

		return &WritePageGuard{pageID: pageID, frame: f, replacer: b.replacer, bpmLatch: &b.mu}, true
	}

	f := b.findFreeOrEvict()
	if f == nil {
		b.mu.Unlock()
		b.logger.Warn("checked write: out of memory", "page_id", pageID)
		return nil, false
	}
	b.metrics.Misses.Add(1)

	if f.PageID != frame.InvalidPageID && f.Dirty {
		b.flushLocked(f)
	}

	if err := b.swapIn(ctx, pageID, f); err != nil {
		b.mu.Unlock()
		b.logger.Error("checked write: swap in failed", "page_id", pageID, "error", err)
		return nil, false
	}
	b.pinFrame(f, pageID, true)
	f.Latch.Lock()
	b.mu.Unlock()

	return &WritePageGuard{pageID: pageID, frame: f, replacer: b.replacer, bpmLatch: &b.mu}, true
}

// ReadPage is the unchecked counterpart to CheckedReadPage: it aborts the
// process if a page cannot be brought into memory. Use it only for tests
// and callers that have already established the pool has capacity.
func (b *BufferPoolManager) ReadPage(ctx context.Context, pageID int, accessType replacer.AccessType) *ReadPageGuard {
	guard, ok := b.CheckedReadPage(ctx, pageID, accessType)
	if !ok {
		b.logger.Error("ReadPage: CheckedReadPage failed to bring in page", "page_id", pageID)
		os.Exit(1)
	}
	return guard
}

// WritePage is the unchecked counterpart to CheckedWritePage. See
// ReadPage.
func (b *BufferPoolManager) WritePage(ctx context.Context, pageID int, accessType replacer.AccessType) *WritePageGuard {
	guard, ok := b.CheckedWritePage(ctx, pageID, accessType)
	if !ok {
		b.logger.Error("WritePage: CheckedWritePage failed to bring in page", "page_id", pageID)
		os.Exit(1)
	}
	return guard
}

// flushLocked schedules a write of f's buffer and waits for it, clearing
// the dirty bit on success. Must be called with the BPM latch held; it
// does not change pin count or evictability.
func (b *BufferPoolManager) flushLocked(f *frame.Frame) {
	req, done := b.scheduler.CreateRequest(true, f.GetData(), f.PageID)
	b.scheduler.Schedule(req)
	if err := <-done; err != nil {
		b.logger.Error("flush failed", "page_id", f.PageID, "error", err)
		return
	}
	f.Dirty = false
	b.metrics.Flushes.Add(1)
}

// FlushPage writes pageID's frame back to disk if it is resident,
// returning false if it is not. It does not change pin count or
// evictability.
func (b *BufferPoolManager) FlushPage(pageID int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	f, ok := b.getFrame(pageID)
	if !ok {
		return false
	}
	if f.PageID != pageID {
		panic(fmt.Errorf("%w: frame %d holds page %d, expected %d", bpmerrors.ErrFrameInconsistent, f.ID, f.PageID, pageID))
	}

	req, done := b.scheduler.CreateRequest(true, f.GetData(), pageID)
	b.scheduler.Schedule(req)
	if err := <-done; err != nil {
		b.logger.Error("FlushPage failed", "page_id", pageID, "error", err)
		return false
	}
	f.Dirty = false
	b.metrics.Flushes.Add(1)
	return true
}

// FlushAllPages flushes every dirty resident page. The reference
// implementation this was grown from left it unimplemented; this is the
// completed version, iterating the page table under the BPM latch as the
// spec requires.
func (b *BufferPoolManager) FlushAllPages() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, fid := range b.pageTable {
		f := b.frames[fid]
		if f.Dirty {
			b.flushLocked(f)
		}
	}
}

// GetPinCount returns the current pin count of pageID, or false if it is
// not resident.
func (b *BufferPoolManager) GetPinCount(pageID int) (int64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	f, ok := b.getFrame(pageID)
	if !ok {
		return 0, false
	}
	return f.PinCount.Load(), true
}

// Shutdown flushes every dirty page and stops the disk scheduler. Only the
// first call does this; any later call returns bpmerrors.ErrPoolClosed.
func (b *BufferPoolManager) Shutdown() error {
	if !b.closed.CompareAndSwap(false, true) {
		return bpmerrors.ErrPoolClosed
	}
	b.FlushAllPages()
	return b.scheduler.Shutdown()
}
