package dnn

import (
	"fmt"
	"sync"

	"github.com/born-ml/gconv/internal/tensor"
)

type descriptorKind int

const (
	kindTensor descriptorKind = iota
	kindFilter
	kindConvolution
)

func (k descriptorKind) String() string {
	switch k {
	case kindTensor:
		return "tensor"
	case kindFilter:
		return "filter"
	default:
		return "convolution"
	}
}

// Registry implements the descriptor half of Handle: creation, parameter
// validation, destruction and leak accounting. Backends embed it and only
// implement the query and compute calls.
type Registry struct {
	caps Capabilities

	mu     sync.Mutex
	nextID uint64
	live   map[uint64]descriptorKind
}

// NewRegistry creates a registry that validates against caps.
func NewRegistry(caps Capabilities) *Registry {
	return &Registry{
		caps: caps.Clone(),
		live: make(map[uint64]descriptorKind),
	}
}

// Capabilities returns a copy of the capabilities the registry validates against.
func (r *Registry) Capabilities() Capabilities {
	return r.caps.Clone()
}

// Live returns the number of descriptors created and not yet destroyed.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// CheckLeaks returns an error naming the live descriptors, if any.
// Backends call it from Close.
func (r *Registry) CheckLeaks(call string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.live) == 0 {
		return nil
	}
	counts := map[descriptorKind]int{}
	for _, k := range r.live {
		counts[k]++
	}
	return Errorf(call, StatusBadParam, "%d descriptors still alive (tensor=%d filter=%d convolution=%d)",
		len(r.live), counts[kindTensor], counts[kindFilter], counts[kindConvolution])
}

func (r *Registry) register(kind descriptorKind) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.live[r.nextID] = kind
	return r.nextID
}

func (r *Registry) unregister(call string, id uint64, kind descriptorKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	got, ok := r.live[id]
	if !ok || got != kind {
		return Errorf(call, StatusBadParam, "%s descriptor #%d is not alive", kind, id)
	}
	delete(r.live, id)
	return nil
}

func (r *Registry) checkDType(call string, dt tensor.DataType) error {
	if !r.caps.SupportsDType(dt) {
		return Errorf(call, StatusNotSupported, "data type %s", dt)
	}
	return nil
}

// CreateTensorDescriptor allocates an unset tensor descriptor.
func (r *Registry) CreateTensorDescriptor() (*TensorDescriptor, error) {
	return &TensorDescriptor{id: r.register(kindTensor), owner: r}, nil
}

// SetTensor4dDescriptor configures d as a packed tensor in the given format.
func (r *Registry) SetTensor4dDescriptor(d *TensorDescriptor, format TensorFormat, dtype tensor.DataType, n, c, h, w int) error {
	const call = "SetTensor4dDescriptor"
	var ns, cs, hs, ws int
	switch format {
	case FormatNCHW:
		ns, cs, hs, ws = c*h*w, h*w, w, 1
	case FormatNHWC:
		ns, cs, hs, ws = h*w*c, 1, w*c, c
	default:
		return Errorf(call, StatusBadParam, "format %s", format)
	}
	if err := r.setTensor(call, d, dtype, n, c, h, w, ns, cs, hs, ws); err != nil {
		return err
	}
	d.format = format
	return nil
}

// SetTensor4dDescriptorEx configures d with explicit strides.
func (r *Registry) SetTensor4dDescriptorEx(d *TensorDescriptor, dtype tensor.DataType, n, c, h, w, nStride, cStride, hStride, wStride int) error {
	return r.setTensor("SetTensor4dDescriptorEx", d, dtype, n, c, h, w, nStride, cStride, hStride, wStride)
}

func (r *Registry) setTensor(call string, d *TensorDescriptor, dtype tensor.DataType, n, c, h, w, ns, cs, hs, ws int) error {
	if err := r.owns(call, d); err != nil {
		return err
	}
	if n <= 0 || c <= 0 || h <= 0 || w <= 0 {
		return Errorf(call, StatusBadParam, "dimensions %dx%dx%dx%d", n, c, h, w)
	}
	if ns <= 0 || cs <= 0 || hs <= 0 || ws <= 0 {
		return Errorf(call, StatusBadParam, "strides %d,%d,%d,%d", ns, cs, hs, ws)
	}
	if err := r.checkDType(call, dtype); err != nil {
		return err
	}
	d.dtype = dtype
	d.format = FormatUnspecified
	d.dims = [4]int{n, c, h, w}
	d.strides = [4]int{ns, cs, hs, ws}
	d.set = true
	return nil
}

// DestroyTensorDescriptor releases d.
func (r *Registry) DestroyTensorDescriptor(d *TensorDescriptor) error {
	const call = "DestroyTensorDescriptor"
	if d == nil || d.owner != r {
		return Errorf(call, StatusBadParam, "descriptor not owned by this handle")
	}
	if err := r.unregister(call, d.id, kindTensor); err != nil {
		return err
	}
	d.set = false
	return nil
}

// CreateFilterDescriptor allocates an unset filter descriptor.
func (r *Registry) CreateFilterDescriptor() (*FilterDescriptor, error) {
	return &FilterDescriptor{id: r.register(kindFilter), owner: r}, nil
}

// SetFilter4dDescriptor configures d. Backends without explicit filter
// layouts require FormatUnspecified and imply NCHW.
func (r *Registry) SetFilter4dDescriptor(d *FilterDescriptor, dtype tensor.DataType, format TensorFormat, k, c, h, w int) error {
	const call = "SetFilter4dDescriptor"
	if d == nil || d.owner != r {
		return Errorf(call, StatusBadParam, "descriptor not owned by this handle")
	}
	if r.caps.FilterFormat {
		if format != FormatNCHW && format != FormatNHWC {
			return Errorf(call, StatusBadParam, "format %s", format)
		}
	} else if format != FormatUnspecified {
		return Errorf(call, StatusNotSupported, "filter format argument needs revision %d, have %d",
			VersionFilterFormat, r.caps.Version)
	}
	if k <= 0 || c <= 0 || h <= 0 || w <= 0 {
		return Errorf(call, StatusBadParam, "dimensions %dx%dx%dx%d", k, c, h, w)
	}
	if err := r.checkDType(call, dtype); err != nil {
		return err
	}
	if format == FormatUnspecified {
		format = FormatNCHW
	}
	d.dtype = dtype
	d.format = format
	d.dims = [4]int{k, c, h, w}
	d.set = true
	return nil
}

// DestroyFilterDescriptor releases d.
func (r *Registry) DestroyFilterDescriptor(d *FilterDescriptor) error {
	const call = "DestroyFilterDescriptor"
	if d == nil || d.owner != r {
		return Errorf(call, StatusBadParam, "descriptor not owned by this handle")
	}
	if err := r.unregister(call, d.id, kindFilter); err != nil {
		return err
	}
	d.set = false
	return nil
}

// CreateConvolutionDescriptor allocates an unset convolution descriptor.
func (r *Registry) CreateConvolutionDescriptor() (*ConvolutionDescriptor, error) {
	return &ConvolutionDescriptor{id: r.register(kindConvolution), owner: r}, nil
}

// SetConvolution2dDescriptor configures padding, strides, dilation and mode.
func (r *Registry) SetConvolution2dDescriptor(d *ConvolutionDescriptor, padH, padW, u, v, dilationH, dilationW int, mode ConvolutionMode) error {
	const call = "SetConvolution2dDescriptor"
	if d == nil || d.owner != r {
		return Errorf(call, StatusBadParam, "descriptor not owned by this handle")
	}
	if padH < 0 || padW < 0 {
		return Errorf(call, StatusBadParam, "padding %dx%d", padH, padW)
	}
	if u <= 0 || v <= 0 {
		return Errorf(call, StatusBadParam, "stride %dx%d", u, v)
	}
	if dilationH <= 0 || dilationW <= 0 {
		return Errorf(call, StatusBadParam, "dilation %dx%d", dilationH, dilationW)
	}
	if mode != Convolution && mode != CrossCorrelation {
		return Errorf(call, StatusBadParam, "mode %s", mode)
	}
	d.padH, d.padW = padH, padW
	d.strideH, d.strideW = u, v
	d.dilationH, d.dilationW = dilationH, dilationW
	d.mode = mode
	d.set = true
	return nil
}

// DestroyConvolutionDescriptor releases d.
func (r *Registry) DestroyConvolutionDescriptor(d *ConvolutionDescriptor) error {
	const call = "DestroyConvolutionDescriptor"
	if d == nil || d.owner != r {
		return Errorf(call, StatusBadParam, "descriptor not owned by this handle")
	}
	if err := r.unregister(call, d.id, kindConvolution); err != nil {
		return err
	}
	d.set = false
	return nil
}

// GetConvolution2dForwardOutputDim returns the output dimensions of the
// forward convolution.
func (r *Registry) GetConvolution2dForwardOutputDim(conv *ConvolutionDescriptor, x *TensorDescriptor, w *FilterDescriptor) (n, c, h, wd int, err error) {
	const call = "GetConvolution2dForwardOutputDim"
	if err := r.checkSet(call, conv, x, w); err != nil {
		return 0, 0, 0, 0, err
	}
	if _, xc, _, _ := x.Dims(); xc != w.dims[1] {
		return 0, 0, 0, 0, Errorf(call, StatusBadParam, "input has %d channels, filter expects %d", xc, w.dims[1])
	}
	n, c, h, wd = OutputDim(conv, x, w)
	if h <= 0 || wd <= 0 {
		return 0, 0, 0, 0, Errorf(call, StatusBadParam, "empty output %dx%d", h, wd)
	}
	return n, c, h, wd, nil
}

// ValidateForward checks that the descriptors of a forward convolution are
// alive, owned by r and mutually consistent. Backends call it at the top of
// algorithm queries and ConvolutionForward.
func (r *Registry) ValidateForward(call string, x *TensorDescriptor, w *FilterDescriptor, conv *ConvolutionDescriptor, y *TensorDescriptor) error {
	if err := r.checkSet(call, conv, x, w); err != nil {
		return err
	}
	if err := r.owns(call, y); err != nil {
		return err
	}
	if !y.set {
		return Errorf(call, StatusNotInitialized, "output descriptor not set")
	}
	if x.dtype != w.dtype || x.dtype != y.dtype {
		return Errorf(call, StatusBadParam, "mixed data types %s/%s/%s", x.dtype, w.dtype, y.dtype)
	}
	if x.dims[1] != w.dims[1] {
		return Errorf(call, StatusBadParam, "input has %d channels, filter expects %d", x.dims[1], w.dims[1])
	}
	n, c, h, wd := OutputDim(conv, x, w)
	if y.dims != [4]int{n, c, h, wd} {
		return Errorf(call, StatusBadParam, "output is %v, convolution produces %v", y.dims, [4]int{n, c, h, wd})
	}
	return nil
}

// ValidateAdd checks the descriptors of AddTensor under mode.
func (r *Registry) ValidateAdd(call string, mode AddMode, b, y *TensorDescriptor) error {
	if err := r.owns(call, b); err != nil {
		return err
	}
	if err := r.owns(call, y); err != nil {
		return err
	}
	if !b.set || !y.set {
		return Errorf(call, StatusNotInitialized, "descriptor not set")
	}
	if b.dtype != y.dtype {
		return Errorf(call, StatusBadParam, "mixed data types %s/%s", b.dtype, y.dtype)
	}
	switch {
	case mode == AddSameC && !r.caps.LegacyAddTensor:
		return Errorf(call, StatusNotSupported, "mode %s needs revision < %d", mode, VersionModernAddTensor)
	case mode == AddFullTensor && r.caps.LegacyAddTensor:
		return Errorf(call, StatusNotSupported, "mode %s needs revision >= %d", mode, VersionModernAddTensor)
	case mode == AddSameC:
		if b.dims != [4]int{1, y.dims[1], 1, 1} {
			return Errorf(call, StatusBadParam, "same_c source must be 1x%dx1x1, got %v", y.dims[1], b.dims)
		}
	case mode == AddFullTensor:
		for i := range b.dims {
			if b.dims[i] != 1 && b.dims[i] != y.dims[i] {
				return Errorf(call, StatusBadParam, "cannot broadcast %v onto %v", b.dims, y.dims)
			}
		}
	default:
		return Errorf(call, StatusBadParam, "mode %s", mode)
	}
	return nil
}

func (r *Registry) owns(call string, d *TensorDescriptor) error {
	if d == nil || d.owner != r {
		return Errorf(call, StatusBadParam, "descriptor not owned by this handle")
	}
	r.mu.Lock()
	_, alive := r.live[d.id]
	r.mu.Unlock()
	if !alive {
		return Errorf(call, StatusBadParam, "%s used after destroy", d)
	}
	return nil
}

func (r *Registry) checkSet(call string, conv *ConvolutionDescriptor, x *TensorDescriptor, w *FilterDescriptor) error {
	if err := r.owns(call, x); err != nil {
		return err
	}
	if conv == nil || conv.owner != r || w == nil || w.owner != r {
		return Errorf(call, StatusBadParam, "descriptor not owned by this handle")
	}
	switch {
	case !x.set:
		return Errorf(call, StatusNotInitialized, "input descriptor not set")
	case !w.set:
		return Errorf(call, StatusNotInitialized, "filter descriptor not set")
	case !conv.set:
		return Errorf(call, StatusNotInitialized, "convolution descriptor not set")
	}
	return nil
}

// CheckMemory verifies that t can back a tensor described by d.
func CheckMemory(call, name string, d *TensorDescriptor, t *tensor.RawTensor) error {
	if t == nil {
		return Errorf(call, StatusBadParam, "%s memory is nil", name)
	}
	if t.DType() != d.dtype {
		return Errorf(call, StatusBadParam, "%s memory is %s, descriptor is %s", name, t.DType(), d.dtype)
	}
	if t.Span() < d.Span() {
		return Errorf(call, StatusBadParam, "%s memory spans %d elements, descriptor needs %d", name, t.Span(), d.Span())
	}
	return nil
}

// CheckFilterMemory verifies that t can back the filter described by d.
func CheckFilterMemory(call string, d *FilterDescriptor, t *tensor.RawTensor) error {
	if t == nil {
		return Errorf(call, StatusBadParam, "filter memory is nil")
	}
	if t.DType() != d.dtype {
		return Errorf(call, StatusBadParam, "filter memory is %s, descriptor is %s", t.DType(), d.dtype)
	}
	if need := d.Shape().NumElements(); t.Span() < need {
		return Errorf(call, StatusBadParam, "filter memory spans %d elements, descriptor needs %d", t.Span(), need)
	}
	return nil
}

// String describes the registry for diagnostics.
func (r *Registry) String() string {
	return fmt.Sprintf("registry{version %d, live %d}", r.caps.Version, r.Live())
}
