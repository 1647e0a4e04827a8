package bufferpool

import (
	"sync"
	"sync/atomic"

	"github.com/bsnyl5/bufferpool/frame"
	"github.com/bsnyl5/bufferpool/replacer"
)

// ReadPageGuard grants shared, read-only access to a page's bytes. Any
// number of read guards for the same page may be live at once, across
// different goroutines.
type ReadPageGuard struct {
	pageID   int
	frame    *frame.Frame
	replacer *replacer.LRUKReplacer
	bpmLatch *sync.Mutex
	released atomic.Bool
}

// PageID returns the guarded page's id.
func (g *ReadPageGuard) PageID() int { return g.pageID }

// GetData returns the page's bytes for reading.
func (g *ReadPageGuard) GetData() []byte { return g.frame.GetData() }

// Drop releases the pin this guard holds. If the pin count reaches zero,
// the frame becomes evictable. Drop is idempotent; dropping an
// already-dropped guard is a no-op, the equivalent of a moved-from guard
// doing nothing on destruction.
func (g *ReadPageGuard) Drop() {
	if !g.released.CompareAndSwap(false, true) {
		return
	}
	g.frame.Latch.RUnlock()
	releasePin(g.bpmLatch, g.replacer, g.frame)
}

// WritePageGuard grants exclusive, mutable access to a page's bytes. At
// most one write guard for a page may be live at a time, and no read
// guard may be live concurrently with it.
type WritePageGuard struct {
	pageID   int
	frame    *frame.Frame
	replacer *replacer.LRUKReplacer
	bpmLatch *sync.Mutex
	released atomic.Bool
}

// PageID returns the guarded page's id.
func (g *WritePageGuard) PageID() int { return g.pageID }

// GetData returns the page's bytes for reading.
func (g *WritePageGuard) GetData() []byte { return g.frame.GetData() }

// GetDataMut returns the page's bytes for writing.
func (g *WritePageGuard) GetDataMut() []byte { return g.frame.GetDataMut() }

// Drop releases the pin this guard holds, mirroring ReadPageGuard.Drop.
func (g *WritePageGuard) Drop() {
	if !g.released.CompareAndSwap(false, true) {
		return
	}
	g.frame.Latch.Unlock()
	releasePin(g.bpmLatch, g.replacer, g.frame)
}

// releasePin decrements a frame's pin count and, if it has fallen to
// zero, marks the frame evictable in the replacer. This happens under the
// BPM latch so it is atomic with respect to other buffer pool operations,
// per the concurrency model.
func releasePin(bpmLatch *sync.Mutex, r *replacer.LRUKReplacer, f *frame.Frame) {
	bpmLatch.Lock()
	defer bpmLatch.Unlock()

	remaining := f.PinCount.Add(-1)
	if remaining == 0 {
		_ = r.SetEvictable(f.ID, true)
	}
}
