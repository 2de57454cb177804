package opctx

import (
	"fmt"
	"sync"

	"github.com/born-ml/gconv/internal/tensor"
)

// ScratchSpace is the scratch allocator of one stream.
//
// It keeps one growable host buffer per data type and lends it out as a 1D
// view. A stream has a single borrower at a time: Acquire while a view is
// outstanding panics, so operators sharing a stream must serialize.
type ScratchSpace struct {
	mu       sync.Mutex
	buffers  map[tensor.DataType]*tensor.RawTensor
	borrowed *tensor.RawTensor

	// Statistics
	acquires  uint64
	grows     uint64
	held      int
	peakBytes int
}

// ScratchStats describes ScratchSpace usage.
type ScratchStats struct {
	Acquires  uint64 // Views handed out
	Grows     uint64 // Backing buffer (re)allocations
	Bytes     int    // Bytes currently held by backing buffers
	PeakBytes int    // Largest Bytes observed
}

// NewScratchSpace creates an empty scratch allocator.
func NewScratchSpace() *ScratchSpace {
	return &ScratchSpace{
		buffers: make(map[tensor.DataType]*tensor.RawTensor),
	}
}

// Acquire lends a view of n elements of dtype. The contents are unspecified.
// The view must be handed back with Release before the next Acquire.
func (s *ScratchSpace) Acquire(n int, dtype tensor.DataType) *tensor.RawTensor {
	if n < 1 {
		panic(fmt.Sprintf("scratch: invalid size %d", n))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.borrowed != nil {
		panic(fmt.Sprintf("scratch: acquire of %d %s elements while %d elements are borrowed",
			n, dtype, s.borrowed.NumElements()))
	}

	buf := s.buffers[dtype]
	if buf == nil || buf.NumElements() < n {
		if buf != nil {
			s.held -= buf.ByteSize()
			buf.Release()
		}
		var err error
		buf, err = tensor.NewRaw(tensor.Shape{n}, dtype, tensor.CPU)
		if err != nil {
			panic(fmt.Sprintf("scratch: %v", err))
		}
		s.buffers[dtype] = buf
		s.grows++
		s.held += buf.ByteSize()
		s.peakBytes = max(s.peakBytes, s.held)
	}

	s.acquires++
	s.borrowed = buf.MustView(0, tensor.Shape{n}, []int{1})
	return s.borrowed
}

// Release hands back the view returned by the last Acquire.
func (s *ScratchSpace) Release(view *tensor.RawTensor) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if view == nil || view != s.borrowed {
		panic("scratch: release of a view that is not borrowed")
	}
	view.Release()
	s.borrowed = nil
}

// Borrowed reports whether a view is outstanding.
func (s *ScratchSpace) Borrowed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.borrowed != nil
}

// Clear drops all backing buffers. Views still borrowed stay valid until
// released, since they hold a reference to their buffer.
func (s *ScratchSpace) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for dt, buf := range s.buffers {
		buf.Release()
		delete(s.buffers, dt)
	}
	s.held = 0
}

// Stats returns statistics about scratch usage.
func (s *ScratchSpace) Stats() ScratchStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return ScratchStats{
		Acquires:  s.acquires,
		Grows:     s.grows,
		Bytes:     s.held,
		PeakBytes: s.peakBytes,
	}
}
