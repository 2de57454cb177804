//go:build windows

package webgpu

import (
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"
)

const (
	// bufferAlign is the granularity pooled buffer sizes are rounded up to.
	bufferAlign = 256
	// maxPooled is the number of idle buffers kept per usage.
	maxPooled = 32
)

// pooledBuffer wraps a GPU buffer with metadata.
type pooledBuffer struct {
	buffer *wgpu.Buffer
	size   uint64
}

// BufferPool keeps released storage buffers for reuse, keyed by usage.
// Sizes are rounded up to bufferAlign so that slightly different operand
// spans share buffers.
type BufferPool struct {
	device *wgpu.Device

	idle map[wgpu.BufferUsage][]*pooledBuffer
	size map[*wgpu.Buffer]uint64 // capacity of buffers handed out

	mu    sync.Mutex
	stats PoolStats
}

// PoolStats describes BufferPool usage.
type PoolStats struct {
	Allocated uint64 // Buffers created
	Released  uint64 // Buffers handed back
	Hits      uint64
	Misses    uint64
	Pooled    int // Idle buffers
}

// NewBufferPool creates a new buffer pool for the given device.
func NewBufferPool(device *wgpu.Device) *BufferPool {
	return &BufferPool{
		device: device,
		idle:   make(map[wgpu.BufferUsage][]*pooledBuffer),
		size:   make(map[*wgpu.Buffer]uint64),
	}
}

// alignSize rounds size up to a multiple of bufferAlign.
func alignSize(size uint64) uint64 {
	return (size + bufferAlign - 1) &^ (bufferAlign - 1)
}

// Acquire returns a buffer of at least size bytes with exactly usage.
func (p *BufferPool) Acquire(size uint64, usage wgpu.BufferUsage) *wgpu.Buffer {
	size = alignSize(size)

	p.mu.Lock()
	defer p.mu.Unlock()

	// Smallest idle buffer that fits.
	idle := p.idle[usage]
	best := -1
	for i, pb := range idle {
		if pb.size >= size && (best < 0 || pb.size < idle[best].size) {
			best = i
		}
	}
	if best >= 0 {
		pb := idle[best]
		p.idle[usage] = append(idle[:best], idle[best+1:]...)
		p.size[pb.buffer] = pb.size
		p.stats.Hits++
		return pb.buffer
	}

	p.stats.Misses++
	p.stats.Allocated++
	buffer := p.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: usage,
		Size:  size,
	})
	p.size[buffer] = size
	return buffer
}

// Release returns a buffer obtained from Acquire. If the pool for its usage
// is full, the buffer is released immediately.
func (p *BufferPool) Release(buffer *wgpu.Buffer, usage wgpu.BufferUsage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	size, ok := p.size[buffer]
	if !ok {
		return
	}
	delete(p.size, buffer)
	p.stats.Released++

	if len(p.idle[usage]) >= maxPooled {
		buffer.Release()
		return
	}
	p.idle[usage] = append(p.idle[usage], &pooledBuffer{buffer: buffer, size: size})
}

// Clear releases all idle buffers.
func (p *BufferPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for usage, idle := range p.idle {
		for _, pb := range idle {
			pb.buffer.Release()
		}
		delete(p.idle, usage)
	}
}

// Stats returns statistics about buffer pool usage.
func (p *BufferPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.stats
	for _, idle := range p.idle {
		s.Pooled += len(idle)
	}
	return s
}
