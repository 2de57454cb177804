//go:build windows

// Package webgpu implements the dnn contract on a GPU through WebGPU.
// Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU bindings.
//
// Operands live in host memory. Each compute call uploads the spans of the
// operand views to pooled storage buffers, dispatches a WGSL kernel that
// indexes with the descriptor strides, and reads the result back.
package webgpu

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/born-ml/gconv/internal/dnn"
	"github.com/born-ml/gconv/internal/tensor"
	"github.com/go-webgpu/webgpu/wgpu"
)

// Version is the backend revision reported through Capabilities.
const Version = 8000

// Verify that Backend implements dnn.Handle.
var _ dnn.Handle = (*Backend)(nil)

// Backend implements dnn.Handle on a WebGPU device.
type Backend struct {
	*dnn.Registry

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	// Shader and pipeline cache
	shaders   map[string]*wgpu.ShaderModule
	pipelines map[string]*wgpu.ComputePipeline
	mu        sync.RWMutex

	// Device info
	adapterInfo *wgpu.AdapterInfo

	// Storage buffers reused across compute calls
	bufferPool *BufferPool

	closed atomic.Bool
}

// New creates a new WebGPU backend.
// Returns an error if WebGPU is not available or initialization fails.
func New() (backend *Backend, err error) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			backend = nil
			err = fmt.Errorf("webgpu: native library not available: %v", r)
		}
	}()

	instance := wgpu.CreateInstance(nil)
	adapter, adapterErr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if adapterErr != nil {
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request adapter: %w", adapterErr)
	}

	adapterInfo := adapter.GetInfo()

	device, deviceErr := adapter.RequestDevice(nil)
	if deviceErr != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request device: %w", deviceErr)
	}

	queue := device.GetQueue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to get queue")
	}

	caps := dnn.CapabilitiesForVersion(Version)
	caps.DTypes = map[tensor.DataType]bool{tensor.Float32: true}
	caps.Algorithms = []dnn.FwdAlgo{dnn.AlgoDirect}
	caps.Features = []string{adapterInfo.Device}

	return &Backend{
		Registry:    dnn.NewRegistry(caps),
		instance:    instance,
		adapter:     adapter,
		device:      device,
		queue:       queue,
		shaders:     make(map[string]*wgpu.ShaderModule),
		pipelines:   make(map[string]*wgpu.ComputePipeline),
		adapterInfo: &adapterInfo,
		bufferPool:  NewBufferPool(device),
	}, nil
}

// Close releases all WebGPU resources. Live descriptors are reported as an
// error after the device has been released.
func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return dnn.Errorf("Close", dnn.StatusBadParam, "handle already closed")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.bufferPool.Clear()
	for _, p := range b.pipelines {
		p.Release()
	}
	b.pipelines = nil
	for _, s := range b.shaders {
		s.Release()
	}
	b.shaders = nil

	b.queue.Release()
	b.device.Release()
	b.adapter.Release()
	b.instance.Release()

	return b.CheckLeaks("Close")
}

// Name returns the backend name.
func (b *Backend) Name() string {
	if b.adapterInfo != nil && b.adapterInfo.Device != "" {
		return fmt.Sprintf("WebGPU (%s %s)", b.adapterInfo.Device, b.adapterInfo.Vendor)
	}
	return "WebGPU"
}

// Device returns the compute device.
func (b *Backend) Device() tensor.Device {
	return tensor.WebGPU
}

// AdapterInfo returns information about the GPU adapter.
func (b *Backend) AdapterInfo() *wgpu.AdapterInfo {
	return b.adapterInfo
}

// PoolStats returns statistics of the storage buffer pool.
func (b *Backend) PoolStats() PoolStats {
	return b.bufferPool.Stats()
}

func (b *Backend) checkOpen(call string) error {
	if b.closed.Load() {
		return dnn.Errorf(call, dnn.StatusNotInitialized, "handle closed")
	}
	return nil
}

// IsAvailable checks if WebGPU is available on this system.
func IsAvailable() (available bool) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()

	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()

	return true
}
