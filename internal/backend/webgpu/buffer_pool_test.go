//go:build windows

package webgpu

import (
	"testing"

	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
)

func TestAlignSize(t *testing.T) {
	assert.Equal(t, uint64(256), alignSize(1))
	assert.Equal(t, uint64(256), alignSize(256))
	assert.Equal(t, uint64(512), alignSize(257))
}

func TestBufferPoolAcquireRelease(t *testing.T) {
	backend := newTestBackend(t)
	defer backend.Close()
	pool := backend.bufferPool

	usage := wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc
	buffer1 := pool.Acquire(1000, usage)
	stats := pool.Stats()
	assert.Equal(t, uint64(1), stats.Allocated)
	assert.Equal(t, uint64(1), stats.Misses)

	pool.Release(buffer1, usage)
	assert.Equal(t, 1, pool.Stats().Pooled)

	// Same aligned size: reused.
	buffer2 := pool.Acquire(1024, usage)
	assert.Same(t, buffer1, buffer2)
	assert.Equal(t, uint64(1), pool.Stats().Hits)

	// Other usage: new buffer.
	buffer3 := pool.Acquire(1024, usage|wgpu.BufferUsageCopyDst)
	assert.NotSame(t, buffer2, buffer3)

	pool.Release(buffer2, usage)
	pool.Release(buffer3, usage|wgpu.BufferUsageCopyDst)
	assert.Equal(t, 2, pool.Stats().Pooled)

	pool.Clear()
	assert.Equal(t, 0, pool.Stats().Pooled)
}
