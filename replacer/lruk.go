// Package replacer implements the LRU-K eviction policy used by the buffer
// pool manager to pick which resident frame to reclaim under memory
// pressure.
package replacer

import (
	"math"
	"sync"

	"github.com/bsnyl5/bufferpool/bpmerrors"
	"github.com/bsnyl5/bufferpool/frame"
)

// AccessType classifies the kind of access being recorded. The replacer
// does not currently act on it, but callers (and tests) can rely on it
// being threaded through RecordAccess rather than erased.
type AccessType int

const (
	AccessUnknown AccessType = iota
	AccessGet
	AccessScan
)

const infiniteDistance = math.MaxUint64

// node is one LRU-K bookkeeping slot, one per frame the replacer was
// constructed for.
type node struct {
	fid       frame.ID
	k         int
	history   []uint64 // newest-first, capped at k entries
	evictable bool
	exists    bool
}

// access records a new timestamp, dropping the oldest entry once the
// history would grow past k.
func (n *node) access(ts uint64) {
	n.exists = true
	if len(n.history) >= n.k {
		n.history = n.history[:len(n.history)-1]
	}
	n.history = append([]uint64{ts}, n.history...)
}

// kDistance returns the backward k-distance as of ts: the gap between now
// and the k-th most recent access, or +inf if fewer than k accesses have
// been recorded.
func (n *node) kDistance(ts uint64) uint64 {
	if len(n.history) < n.k {
		return infiniteDistance
	}
	return ts - n.history[len(n.history)-1]
}

// oldestRetained is the earliest timestamp still present in history: the
// tie-break key among frames sharing the same k-distance.
func (n *node) oldestRetained() uint64 {
	if len(n.history) == 0 {
		return infiniteDistance
	}
	return n.history[len(n.history)-1]
}

func (n *node) evict() {
	n.history = nil
	n.evictable = false
	n.exists = false
}

// LRUKReplacer selects eviction victims by largest backward k-distance,
// breaking ties by earliest oldest-retained timestamp.
type LRUKReplacer struct {
	mu               sync.Mutex
	nodes            map[frame.ID]*node
	numFrames        int
	k                int
	currentTimestamp uint64
	currSize         int
}

// New constructs a replacer for exactly numFrames frames, indexed
// [0, numFrames), each tracking up to k recent accesses.
func New(numFrames int, k int) *LRUKReplacer {
	r := &LRUKReplacer{
		nodes:     make(map[frame.ID]*node, numFrames),
		numFrames: numFrames,
		k:         k,
	}
	for i := 0; i < numFrames; i++ {
		fid := frame.ID(i)
		r.nodes[fid] = &node{fid: fid, k: k}
	}
	return r
}

func (r *LRUKReplacer) inRange(fid frame.ID) bool {
	return fid >= 0 && int(fid) < r.numFrames
}

// RecordAccess appends the current timestamp to the frame's history and
// advances the replacer's clock. It does not change evictability.
func (r *LRUKReplacer) RecordAccess(fid frame.ID, accessType AccessType) error {
	if !r.inRange(fid) {
		return bpmerrors.ErrInvalidFrame
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.nodes[fid]
	n.access(r.currentTimestamp)
	r.currentTimestamp++
	return nil
}

// SetEvictable marks fid as a candidate (or not) for eviction. It is
// idempotent: requesting the current state is a no-op.
func (r *LRUKReplacer) SetEvictable(fid frame.ID, evictable bool) error {
	if !r.inRange(fid) {
		return bpmerrors.ErrInvalidFrame
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.nodes[fid]
	if n.evictable == evictable {
		return nil
	}
	n.evictable = evictable
	if evictable {
		r.currSize++
	} else {
		r.currSize--
	}
	return nil
}

// Remove clears a frame's history and evictability, typically when the
// buffer pool manager repurposes or deletes its page outside of normal
// eviction. It is a no-op for an out-of-range or never-accessed frame, and
// an error if the frame exists but is currently non-evictable.
func (r *LRUKReplacer) Remove(fid frame.ID) error {
	if !r.inRange(fid) {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.nodes[fid]
	if !n.exists {
		return nil
	}
	if !n.evictable {
		return bpmerrors.ErrInvalidFrame
	}
	n.evict()
	r.currSize--
	return nil
}

// Evict picks the evictable frame with the largest backward k-distance,
// breaking ties by smallest oldest-retained timestamp, clears its
// bookkeeping, and returns its id. It returns false when no frame is
// currently evictable.
func (r *LRUKReplacer) Evict() (frame.ID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.currSize == 0 {
		return 0, false
	}

	var (
		victim          *node
		largestDistance uint64
		earliestTS      uint64 = math.MaxUint64
	)
	for _, n := range r.nodes {
		if !n.evictable {
			continue
		}
		dist := n.kDistance(r.currentTimestamp)
		ts := n.oldestRetained()

		if victim == nil || dist > largestDistance || (dist == largestDistance && ts < earliestTS) {
			victim = n
			largestDistance = dist
			earliestTS = ts
		}
	}

	if victim == nil {
		return 0, false
	}
	fid := victim.fid
	victim.evict()
	r.currSize--
	return fid, true
}

// Size returns the number of frames currently marked evictable.
func (r *LRUKReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currSize
}
