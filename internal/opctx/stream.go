// Package opctx provides the execution context operators run in: a stream
// bound to one DNN handle, with the scratch allocator shared by every
// operator issuing work on that stream.
package opctx

import (
	"sync"

	"github.com/born-ml/gconv/internal/dnn"
	"github.com/born-ml/gconv/internal/tensor"
)

// Stream owns a DNN handle and its scratch space.
type Stream struct {
	handle  dnn.Handle
	scratch *ScratchSpace

	closeOnce sync.Once
	closeErr  error
}

// NewStream creates a stream that issues its work through h.
// The stream takes ownership of h.
func NewStream(h dnn.Handle) *Stream {
	return &Stream{
		handle:  h,
		scratch: NewScratchSpace(),
	}
}

// Handle returns the DNN handle of the stream.
func (s *Stream) Handle() dnn.Handle {
	return s.handle
}

// Scratch returns the scratch allocator of the stream.
func (s *Stream) Scratch() *ScratchSpace {
	return s.scratch
}

// Close drops the scratch buffers and closes the handle.
// Later calls return the result of the first.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.scratch.Clear()
		s.closeErr = s.handle.Close()
	})
	return s.closeErr
}

// Context is what an operator receives for one invocation.
type Context struct {
	Stream  *Stream
	IsTrain bool
}

// NewContext returns an inference context on s.
func NewContext(s *Stream) *Context {
	return &Context{Stream: s}
}

// Handle returns the DNN handle of the context's stream.
func (c *Context) Handle() dnn.Handle {
	return c.Stream.Handle()
}

// RequestWorkspace borrows n elements of dtype from the stream's scratch
// space. The caller hands them back with ReleaseWorkspace before returning.
func (c *Context) RequestWorkspace(n int, dtype tensor.DataType) *tensor.RawTensor {
	return c.Stream.Scratch().Acquire(n, dtype)
}

// ReleaseWorkspace returns a view obtained from RequestWorkspace.
func (c *Context) ReleaseWorkspace(ws *tensor.RawTensor) {
	c.Stream.Scratch().Release(ws)
}
