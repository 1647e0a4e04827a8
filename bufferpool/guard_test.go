package bufferpool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bsnyl5/bufferpool/replacer"
)

func TestGuard_DropIsIdempotent(t *testing.T) {
	bpm := newTestPool(t, 3, 2)
	ctx := context.Background()
	pageID := bpm.NewPage()

	guard := bpm.ReadPage(ctx, pageID, replacer.AccessUnknown)
	guard.Drop()
	guard.Drop() // must not double-release the pin or the frame latch

	pinCount, ok := bpm.GetPinCount(pageID)
	assert.True(t, ok)
	assert.Equal(t, int64(0), pinCount)
}

func TestGuard_MultipleReadersAllowed(t *testing.T) {
	bpm := newTestPool(t, 3, 2)
	ctx := context.Background()
	pageID := bpm.NewPage()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g := bpm.ReadPage(ctx, pageID, replacer.AccessUnknown)
			_ = g.GetData()
			g.Drop()
		}()
	}
	wg.Wait()

	pinCount, ok := bpm.GetPinCount(pageID)
	assert.True(t, ok)
	assert.Equal(t, int64(0), pinCount)
}

func TestGuard_ExclusiveWriterBlocksReaders(t *testing.T) {
	bpm := newTestPool(t, 3, 2)
	ctx := context.Background()
	pageID := bpm.NewPage()

	writer := bpm.WritePage(ctx, pageID, replacer.AccessUnknown)

	started := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		close(started)
		g := bpm.ReadPage(ctx, pageID, replacer.AccessUnknown)
		g.Drop()
		close(finished)
	}()
	<-started
	time.Sleep(20 * time.Millisecond)

	select {
	case <-finished:
		t.Fatal("reader must not proceed while the write guard is live")
	default:
	}

	writer.Drop()
	<-finished
}
