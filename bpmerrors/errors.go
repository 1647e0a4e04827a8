// Package bpmerrors collects the sentinel errors shared by the replacer,
// disk I/O, and buffer pool packages.
package bpmerrors

import "errors"

var (
	// ErrInvalidFrame is returned when a frame id passed to the replacer is
	// out of range, or names a node that exists but is not evictable and was
	// asked to be removed anyway.
	ErrInvalidFrame = errors.New("bufferpool: invalid frame id")

	// ErrOutOfMemory names the condition in which no frame can be obtained:
	// every frame is pinned and the free list and replacer are both empty.
	// The checked page-access paths report this condition as a false result
	// and do not return this error.
	ErrOutOfMemory = errors.New("bufferpool: out of memory, no frame available")

	// ErrPageNotResident names the condition in which an operation needs a
	// page to already be in the pool and it is not. FlushPage and
	// GetPinCount report this condition as a false result and do not return
	// this error.
	ErrPageNotResident = errors.New("bufferpool: page is not resident")

	// ErrFrameInconsistent marks an invariant violation: a frame's page id
	// disagrees with the page id an operation expected to find there. This
	// is fatal and is never expected to be observed by a caller following
	// the documented contract.
	ErrFrameInconsistent = errors.New("bufferpool: frame page id inconsistent")

	// ErrPoolClosed is returned by Shutdown when the pool has already been
	// shut down. Other operations do not check for it.
	ErrPoolClosed = errors.New("bufferpool: pool is shut down")
)
