//go:build linux

package diskio

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/ncw/directio"

	"github.com/bsnyl5/bufferpool/frame"
)

// DirectIODiskManager is a DiskManager that bypasses the kernel page cache
// via O_DIRECT, giving the buffer pool full control over when a page's
// bytes actually leave the process. Reads and writes go through
// directio-aligned scratch buffers since O_DIRECT requires page-aligned
// memory and offsets.
type DirectIODiskManager struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// NewDirectIODiskManager opens path with O_DIRECT, creating it if
// necessary.
func NewDirectIODiskManager(path string) (*DirectIODiskManager, error) {
	f, err := directio.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		slog.Error("failed to open file with direct I/O", "path", path, "error", err)
		return nil, err
	}
	return &DirectIODiskManager{file: f, path: path}, nil
}

func (d *DirectIODiskManager) WritePage(pageID PageID, src []byte) error {
	if len(src) != frame.PageSize {
		return fmt.Errorf("diskio: buffer must be %d bytes, got %d", frame.PageSize, len(src))
	}
	block := directio.AlignedBlock(frame.PageSize)
	copy(block, src)

	d.mu.Lock()
	defer d.mu.Unlock()

	offset := int64(pageID) * frame.PageSize
	n, err := d.file.WriteAt(block, offset)
	if err != nil {
		return err
	}
	if n != frame.PageSize {
		return fmt.Errorf("diskio: short direct write, expected %d bytes, wrote %d", frame.PageSize, n)
	}
	return nil
}

func (d *DirectIODiskManager) ReadPage(pageID PageID, dst []byte) error {
	if len(dst) != frame.PageSize {
		return fmt.Errorf("diskio: buffer must be %d bytes, got %d", frame.PageSize, len(dst))
	}
	block := directio.AlignedBlock(frame.PageSize)

	d.mu.Lock()
	defer d.mu.Unlock()

	offset := int64(pageID) * frame.PageSize
	n, err := d.file.ReadAt(block, offset)
	if err != nil {
		return err
	}
	if n != frame.PageSize {
		return fmt.Errorf("diskio: short direct read, expected %d bytes, got %d", frame.PageSize, n)
	}
	copy(dst, block)
	return nil
}

// IncreaseDiskSpace ensures the file is long enough to hold pageID, the
// same requirement as FileDiskManager.IncreaseDiskSpace: O_DIRECT reads
// still fail short if asked to read past the end of the file.
func (d *DirectIODiskManager) IncreaseDiskSpace(pageID PageID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	want := (int64(pageID) + 1) * frame.PageSize
	info, err := d.file.Stat()
	if err != nil {
		return err
	}
	if info.Size() >= want {
		return nil
	}
	return d.file.Truncate(want)
}

func (d *DirectIODiskManager) DeallocatePage(pageID PageID) error {
	return nil
}

func (d *DirectIODiskManager) Shutdown() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.file.Close()
}
