// Package diskio provides the disk-facing collaborators the buffer pool
// manager depends on: a page-granular disk manager and an asynchronous
// scheduler that serializes requests onto it.
package diskio

import (
	"fmt"
	"os"
	"sync"

	"github.com/bsnyl5/bufferpool/frame"
)

// PageID identifies a page on disk. -1 denotes "no page".
type PageID = int

// DiskManager is the minimal contract the buffer pool manager needs from
// whatever is actually persisting pages: synchronous, page-granular
// read/write, plus the two housekeeping calls that don't need to be
// scheduled as I/O requests.
type DiskManager interface {
	ReadPage(pageID PageID, dst []byte) error
	WritePage(pageID PageID, src []byte) error
	IncreaseDiskSpace(pageID PageID) error
	DeallocatePage(pageID PageID) error
	Shutdown() error
}

// FileDiskManager is a DiskManager backed by a regular *os.File, addressed
// by page-sized, page-aligned offsets.
type FileDiskManager struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileDiskManager opens (creating if necessary) the backing file at
// path.
func NewFileDiskManager(path string) (*FileDiskManager, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return nil, err
	}
	return &FileDiskManager{file: f}, nil
}

func (d *FileDiskManager) WritePage(pageID PageID, src []byte) error {
	if len(src) != frame.PageSize {
		return fmt.Errorf("diskio: buffer must be %d bytes, got %d", frame.PageSize, len(src))
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	offset := int64(pageID) * frame.PageSize
	if _, err := d.file.Seek(offset, 0); err != nil {
		return err
	}
	n, err := d.file.Write(src)
	if err != nil {
		return err
	}
	if n != frame.PageSize {
		return fmt.Errorf("diskio: short write, expected %d bytes, wrote %d", frame.PageSize, n)
	}
	return d.file.Sync()
}

func (d *FileDiskManager) ReadPage(pageID PageID, dst []byte) error {
	if len(dst) != frame.PageSize {
		return fmt.Errorf("diskio: buffer must be %d bytes, got %d", frame.PageSize, len(dst))
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	offset := int64(pageID) * frame.PageSize
	if _, err := d.file.Seek(offset, 0); err != nil {
		return err
	}
	n, err := d.file.Read(dst[:frame.PageSize])
	if err != nil {
		return err
	}
	if n != frame.PageSize {
		return fmt.Errorf("diskio: short read, expected %d bytes, got %d", frame.PageSize, n)
	}
	return nil
}

// IncreaseDiskSpace ensures the on-disk slot for pageID exists, so that a
// ReadPage against a page that was allocated but never written back sees a
// full page of zeroes rather than a short read past the end of the file.
func (d *FileDiskManager) IncreaseDiskSpace(pageID PageID) error {
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

// DeallocatePage is a hint; this implementation does not reclaim disk
// space (see spec Non-goals).
func (d *FileDiskManager) DeallocatePage(pageID PageID) error {
	return nil
}

func (d *FileDiskManager) Shutdown() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.file.Close()
}
