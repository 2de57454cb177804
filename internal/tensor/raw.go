package tensor

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"
)

// Device represents the compute device a tensor's memory is associated with.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
	WebGPU
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case WebGPU:
		return "WebGPU"
	default:
		return "Unknown"
	}
}

// tensorBuffer is a reference-counted shared buffer.
// Views and clones share one buffer; the memory is dropped when the last
// reference is released.
type tensorBuffer struct {
	data     []byte
	refCount atomic.Int32
	mu       sync.Mutex // For safe deallocation
}

// newTensorBuffer creates a new reference-counted buffer with refCount = 1.
func newTensorBuffer(size int) *tensorBuffer {
	buf := &tensorBuffer{
		data: make([]byte, size),
	}
	buf.refCount.Store(1)
	return buf
}

func (tb *tensorBuffer) addRef() {
	tb.refCount.Add(1)
}

func (tb *tensorBuffer) release() {
	if tb.refCount.Add(-1) == 0 {
		tb.mu.Lock()
		defer tb.mu.Unlock()
		tb.data = nil
	}
}

// RawTensor is the low-level tensor representation: a shape, explicit strides
// and a byte offset into a shared buffer.
//
// A RawTensor created by NewRaw is packed row-major. Views created by View may
// carry arbitrary strides and start anywhere inside the shared buffer.
type RawTensor struct {
	buffer *tensorBuffer
	shape  Shape
	stride []int    // Memory strides in elements
	dtype  DataType // Runtime type information
	device Device
	offset int // Byte offset of the first element
}

// NewRaw creates a new packed RawTensor with the given shape and type.
// Memory is zero-initialized.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	numElements := shape.NumElements()
	byteSize := numElements * dtype.Size()

	return &RawTensor{
		buffer: newTensorBuffer(byteSize),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
		device: device,
		offset: 0,
	}, nil
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Strides returns the tensor's memory strides in elements.
func (r *RawTensor) Strides() []int {
	return r.stride
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// Device returns the tensor's compute device.
func (r *RawTensor) Device() Device {
	return r.device
}

// NumElements returns the number of logical elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the logical size in bytes.
func (r *RawTensor) ByteSize() int {
	return r.NumElements() * r.dtype.Size()
}

// ElementOffset returns the position of the first element within the shared buffer.
func (r *RawTensor) ElementOffset() int {
	return r.offset / r.dtype.Size()
}

// Span returns the number of elements between the first and the last
// addressable element of the tensor, inclusive.
func (r *RawTensor) Span() int {
	return Span(r.shape, r.stride)
}

// IsContiguous reports whether the tensor is packed row-major with no gaps.
func (r *RawTensor) IsContiguous() bool {
	want := r.shape.ComputeStrides()
	for i, s := range r.stride {
		if r.shape[i] == 1 {
			continue
		}
		if s != want[i] {
			return false
		}
	}
	return true
}

// Data returns the bytes covered by the tensor's span.
// WARNING: Direct access to underlying memory. Use with caution.
func (r *RawTensor) Data() []byte {
	return r.buffer.data[r.offset : r.offset+r.Span()*r.dtype.Size()]
}

// AsFloat32 interprets the tensor's span as []float32.
// Index the result with the tensor's strides.
// Panics if the tensor's dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 {
	if r.dtype != Float32 {
		panic(fmt.Sprintf("tensor dtype is %s, not float32", r.dtype))
	}
	data := r.buffer.data[r.offset:]
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by Span()
	return unsafe.Slice((*float32)(unsafe.Pointer(&data[0])), r.Span())
}

// AsFloat64 interprets the tensor's span as []float64.
// Panics if the tensor's dtype is not Float64.
func (r *RawTensor) AsFloat64() []float64 {
	if r.dtype != Float64 {
		panic(fmt.Sprintf("tensor dtype is %s, not float64", r.dtype))
	}
	data := r.buffer.data[r.offset:]
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by Span()
	return unsafe.Slice((*float64)(unsafe.Pointer(&data[0])), r.Span())
}

// View returns a strided view into r's buffer. The view starts elemOffset
// elements past r's first element and shares r's buffer and reference count.
//
// The view may address elements outside r's own logical extent, as long as it
// stays inside the shared buffer. That is how per-group slices of a packed
// NCHW tensor keep the full-tensor batch stride.
func (r *RawTensor) View(elemOffset int, shape Shape, strides []int) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("view: invalid shape: %w", err)
	}
	if len(strides) != len(shape) {
		return nil, fmt.Errorf("view: %d strides for %dD shape", len(strides), len(shape))
	}
	if elemOffset < 0 {
		return nil, fmt.Errorf("view: negative offset %d", elemOffset)
	}
	for i, s := range strides {
		if s < 0 {
			return nil, fmt.Errorf("view: negative stride %d at dim %d", s, i)
		}
	}

	size := r.dtype.Size()
	start := r.offset + elemOffset*size
	end := start + Span(shape, strides)*size
	if end > len(r.buffer.data) {
		return nil, fmt.Errorf("view: offset %d with shape %v strides %v exceeds buffer of %d elements",
			elemOffset, shape, strides, len(r.buffer.data)/size)
	}

	r.buffer.addRef()
	return &RawTensor{
		buffer: r.buffer,
		shape:  shape.Clone(),
		stride: append([]int(nil), strides...),
		dtype:  r.dtype,
		device: r.device,
		offset: start,
	}, nil
}

// MustView is like View but panics on error.
func (r *RawTensor) MustView(elemOffset int, shape Shape, strides []int) *RawTensor {
	v, err := r.View(elemOffset, shape, strides)
	if err != nil {
		panic(err)
	}
	return v
}

// Clone creates a shallow copy of the RawTensor (shares buffer with reference counting).
func (r *RawTensor) Clone() *RawTensor {
	r.buffer.addRef()
	return &RawTensor{
		buffer: r.buffer,
		shape:  r.shape.Clone(),
		stride: append([]int(nil), r.stride...),
		dtype:  r.dtype,
		device: r.device,
		offset: r.offset,
	}
}

// Release decrements the reference count and deallocates if it reaches 0.
func (r *RawTensor) Release() {
	r.buffer.release()
}

// IsUnique returns true if this tensor is the only reference to the buffer.
func (r *RawTensor) IsUnique() bool {
	return r.buffer.refCount.Load() == 1
}

// SharesBuffer reports whether r and other are backed by the same buffer.
func (r *RawTensor) SharesBuffer(other *RawTensor) bool {
	return r.buffer == other.buffer
}
