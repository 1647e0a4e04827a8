package diskio

import "sync"

// Request is one scheduled unit of I/O: a read or write of exactly one
// page-sized buffer. Done carries the completion signal; the request owns
// its own completion channel instead of a separate promise object.
type Request struct {
	IsWrite bool
	Data    []byte
	PageID  PageID
	Done    chan error
}

// Scheduler serializes disk requests from many callers onto a single
// background worker, the way a real storage engine pipelines I/O through
// one executor rather than letting every caller touch the file
// concurrently.
type Scheduler struct {
	dm       DiskManager
	requests chan Request
	wg       sync.WaitGroup
	once     sync.Once
}

// NewScheduler starts a worker goroutine consuming requests against dm.
func NewScheduler(dm DiskManager) *Scheduler {
	s := &Scheduler{
		dm:       dm,
		requests: make(chan Request, 32),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *Scheduler) run() {
	defer s.wg.Done()
	for req := range s.requests {
		var err error
		if req.IsWrite {
			err = s.dm.WritePage(req.PageID, req.Data)
		} else {
			err = s.dm.ReadPage(req.PageID, req.Data)
		}
		req.Done <- err
	}
}

// CreateRequest builds a Request and its completion channel, ready to
// pass to Schedule and then wait on.
func (s *Scheduler) CreateRequest(isWrite bool, data []byte, pageID PageID) (Request, <-chan error) {
	done := make(chan error, 1)
	return Request{IsWrite: isWrite, Data: data, PageID: pageID, Done: done}, done
}

// Schedule enqueues req for the worker to process. It must not be called
// after Shutdown.
func (s *Scheduler) Schedule(req Request) {
	s.requests <- req
}

// IncreaseDiskSpace delegates straight to the disk manager; it is
// housekeeping, not I/O that needs to be queued behind in-flight reads and
// writes.
func (s *Scheduler) IncreaseDiskSpace(pageID PageID) error {
	return s.dm.IncreaseDiskSpace(pageID)
}

// DeallocatePage delegates straight to the disk manager.
func (s *Scheduler) DeallocatePage(pageID PageID) error {
	return s.dm.DeallocatePage(pageID)
}

// Shutdown drains in-flight requests and stops the worker, then shuts down
// the underlying disk manager.
func (s *Scheduler) Shutdown() error {
	s.once.Do(func() {
		close(s.requests)
	})
	s.wg.Wait()
	return s.dm.Shutdown()
}
