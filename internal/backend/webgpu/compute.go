//go:build windows

package webgpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"github.com/born-ml/gconv/internal/dnn"
	"github.com/go-webgpu/webgpu/wgpu"
)

// compileShader compiles WGSL shader code into a ShaderModule.
// Results are cached in the Backend's shaders map.
func (b *Backend) compileShader(name, code string) *wgpu.ShaderModule {
	b.mu.RLock()
	if shader, exists := b.shaders[name]; exists {
		b.mu.RUnlock()
		return shader
	}
	b.mu.RUnlock()

	shader := b.device.CreateShaderModuleWGSL(code)

	b.mu.Lock()
	b.shaders[name] = shader
	b.mu.Unlock()

	return shader
}

// getOrCreatePipeline returns a cached ComputePipeline or creates a new one.
func (b *Backend) getOrCreatePipeline(name string, shader *wgpu.ShaderModule) *wgpu.ComputePipeline {
	b.mu.RLock()
	if pipeline, exists := b.pipelines[name]; exists {
		b.mu.RUnlock()
		return pipeline
	}
	b.mu.RUnlock()

	// Create compute pipeline with auto layout (nil layout)
	pipeline := b.device.CreateComputePipelineSimple(nil, shader, "main")

	b.mu.Lock()
	b.pipelines[name] = pipeline
	b.mu.Unlock()

	return pipeline
}

// createBuffer creates a GPU buffer holding a copy of data.
func (b *Backend) createBuffer(data []byte, usage wgpu.BufferUsage) *wgpu.Buffer {
	size := uint64(len(data))

	buffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            usage,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
	copy(mappedSlice, data)
	buffer.Unmap()

	return buffer
}

// createUniformBuffer creates a uniform buffer from 32-bit words.
// Uniform buffers require 16-byte alignment.
func (b *Backend) createUniformBuffer(words []uint32) (*wgpu.Buffer, uint64) {
	size := uint64(len(words) * 4)
	alignedSize := (size + 15) &^ 15

	data := make([]byte, alignedSize)
	for i, w := range words {
		binary.LittleEndian.PutUint32(data[i*4:], w)
	}
	return b.createBuffer(data, wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst), alignedSize
}

// readBuffer reads size bytes back from a GPU buffer to CPU memory.
// Uses a staging buffer since storage buffers can't be mapped directly.
func (b *Backend) readBuffer(srcBuffer *wgpu.Buffer, size uint64) ([]byte, error) {
	stagingBuffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer stagingBuffer.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(srcBuffer, 0, stagingBuffer, 0, size)
	cmdBuffer := encoder.Finish(nil)
	b.queue.Submit(cmdBuffer)

	if err := stagingBuffer.MapAsync(b.device, wgpu.MapModeRead, 0, size); err != nil {
		return nil, fmt.Errorf("failed to map staging buffer: %w", err)
	}

	mappedPtr := stagingBuffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
	result := make([]byte, size)
	copy(result, mappedSlice)
	stagingBuffer.Unmap()

	return result, nil
}

// binding is one storage or uniform buffer of a dispatch, bound in order.
type binding struct {
	buffer *wgpu.Buffer
	size   uint64
}

// dispatch runs the named shader over a (x, y, z) grid of workgroups.
func (b *Backend) dispatch(name, code string, bindings []binding, x, y, z uint32) {
	shader := b.compileShader(name, code)
	pipeline := b.getOrCreatePipeline(name, shader)

	entries := make([]wgpu.BindGroupEntry, len(bindings))
	for i, bd := range bindings {
		//nolint:gosec // G115: binding count is tiny
		entries[i] = wgpu.BufferBindingEntry(uint32(i), bd.buffer, 0, bd.size)
	}
	bindGroupLayout := pipeline.GetBindGroupLayout(0)
	bindGroup := b.device.CreateBindGroupSimple(bindGroupLayout, entries)
	defer bindGroup.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	computePass := encoder.BeginComputePass(nil)
	computePass.SetPipeline(pipeline)
	computePass.SetBindGroup(0, bindGroup, nil)
	computePass.DispatchWorkgroups(x, y, z)
	computePass.End()

	cmdBuffer := encoder.Finish(nil)
	b.queue.Submit(cmdBuffer)
}

// workgroups returns ceil(n / size).
func workgroups(n, size int) uint32 {
	//nolint:gosec // G115: n is a non-negative element count
	return uint32((n + size - 1) / size)
}

// f32bits encodes a float uniform field.
func f32bits(v float64) uint32 {
	return math.Float32bits(float32(v))
}

func float32Bytes(f []float32) []byte {
	if len(f) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy conversion
	return unsafe.Slice((*byte)(unsafe.Pointer(&f[0])), len(f)*4)
}

func bytesFloat32(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy conversion
	return unsafe.Slice((*float32)(unsafe.Pointer(&data[0])), len(data)/4)
}

// walkDescriptor calls f with the span index of every element described by d
// in packed NCHW order.
func walkDescriptor(d *dnn.TensorDescriptor, f func(i int)) {
	n, c, h, w := d.Dims()
	sn, sc, sh, sw := d.Strides()
	for in := 0; in < n; in++ {
		for ic := 0; ic < c; ic++ {
			for ih := 0; ih < h; ih++ {
				for iw := 0; iw < w; iw++ {
					f(in*sn + ic*sc + ih*sh + iw*sw)
				}
			}
		}
	}
}
