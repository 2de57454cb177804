package dnn

import (
	"slices"

	"github.com/born-ml/gconv/internal/tensor"
)

// Handle is a backend context. Every descriptor and every compute call goes
// through the handle that created the descriptors.
//
// Descriptor and query calls are synchronous. Compute calls may enqueue work
// on the handle's device; results are visible to the caller when the call
// returns for the host backends in this module.
//
// Implementations:
//   - cpu: host reference backend (internal/backend/cpu)
//   - webgpu: GPU backend over WebGPU (internal/backend/webgpu, windows)
type Handle interface {
	Name() string
	Capabilities() Capabilities

	CreateTensorDescriptor() (*TensorDescriptor, error)
	SetTensor4dDescriptor(d *TensorDescriptor, format TensorFormat, dtype tensor.DataType, n, c, h, w int) error
	SetTensor4dDescriptorEx(d *TensorDescriptor, dtype tensor.DataType, n, c, h, w, nStride, cStride, hStride, wStride int) error
	DestroyTensorDescriptor(d *TensorDescriptor) error

	CreateFilterDescriptor() (*FilterDescriptor, error)
	SetFilter4dDescriptor(d *FilterDescriptor, dtype tensor.DataType, format TensorFormat, k, c, h, w int) error
	DestroyFilterDescriptor(d *FilterDescriptor) error

	CreateConvolutionDescriptor() (*ConvolutionDescriptor, error)
	SetConvolution2dDescriptor(d *ConvolutionDescriptor, padH, padW, u, v, dilationH, dilationW int, mode ConvolutionMode) error
	DestroyConvolutionDescriptor(d *ConvolutionDescriptor) error

	// GetConvolution2dForwardOutputDim returns the output dimensions of
	// convolving x with w under conv.
	GetConvolution2dForwardOutputDim(conv *ConvolutionDescriptor, x *TensorDescriptor, w *FilterDescriptor) (n, c, h, wd int, err error)

	// GetConvolutionForwardAlgorithm picks an algorithm according to pref.
	// With PreferSpecifyWorkspaceLimit, only algorithms whose workspace fits
	// in limitBytes are considered; if none fits the call fails.
	GetConvolutionForwardAlgorithm(x *TensorDescriptor, w *FilterDescriptor, conv *ConvolutionDescriptor,
		y *TensorDescriptor, pref FwdPreference, limitBytes int) (FwdAlgo, error)

	// GetConvolutionForwardWorkspaceSize returns the scratch bytes algo needs.
	GetConvolutionForwardWorkspaceSize(x *TensorDescriptor, w *FilterDescriptor, conv *ConvolutionDescriptor,
		y *TensorDescriptor, algo FwdAlgo) (int, error)

	// ConvolutionForward computes y = alpha*conv(x, w) + beta*y.
	// When beta is zero the previous contents of y are not read.
	ConvolutionForward(alpha float64, xDesc *TensorDescriptor, x *tensor.RawTensor,
		wDesc *FilterDescriptor, w *tensor.RawTensor, conv *ConvolutionDescriptor, algo FwdAlgo,
		workspace *tensor.RawTensor, workspaceBytes int,
		beta float64, yDesc *TensorDescriptor, y *tensor.RawTensor) error

	// AddTensor computes y = alpha*b + beta*y, broadcasting b according to mode.
	AddTensor(mode AddMode, alpha float64, bDesc *TensorDescriptor, b *tensor.RawTensor,
		beta float64, yDesc *TensorDescriptor, y *tensor.RawTensor) error

	// Close releases the handle. Descriptors still alive are reported as an error.
	Close() error
}

// Capabilities describes what a backend revision supports. The operator reads
// them once when it builds its descriptors.
type Capabilities struct {
	// Version is the backend revision, major*1000 + minor*100 + patch.
	Version int

	// FilterFormat is true when SetFilter4dDescriptor takes an explicit
	// layout. Without it the format argument must be FormatUnspecified.
	FilterFormat bool

	// LegacyAddTensor is true when AddTensor only accepts an explicit
	// AddSameC mode for bias broadcasts.
	LegacyAddTensor bool

	// DTypes lists the element types the backend computes in.
	DTypes map[tensor.DataType]bool

	// Algorithms lists the forward algorithms offered, fastest first.
	Algorithms []FwdAlgo

	// Features names optional hardware features the backend detected.
	Features []string
}

// Revision thresholds for version-dependent behaviour.
const (
	VersionFilterFormat    = 5000
	VersionModernAddTensor = 4000
)

// CapabilitiesForVersion returns the version-dependent capability flags for
// revision v. DTypes, Algorithms and Features are left for the backend to fill.
func CapabilitiesForVersion(v int) Capabilities {
	return Capabilities{
		Version:         v,
		FilterFormat:    v >= VersionFilterFormat,
		LegacyAddTensor: v < VersionModernAddTensor,
	}
}

// SupportsDType reports whether dt is a compute type of the backend.
func (c Capabilities) SupportsDType(dt tensor.DataType) bool {
	return c.DTypes[dt]
}

// SupportsAlgo reports whether algo is offered by the backend.
func (c Capabilities) SupportsAlgo(algo FwdAlgo) bool {
	return slices.Contains(c.Algorithms, algo)
}

// Clone makes a deep copy of the Capabilities.
func (c Capabilities) Clone() Capabilities {
	c2 := c
	c2.DTypes = make(map[tensor.DataType]bool, len(c.DTypes))
	for k, v := range c.DTypes {
		c2.DTypes[k] = v
	}
	c2.Algorithms = slices.Clone(c.Algorithms)
	c2.Features = slices.Clone(c.Features)
	return c2
}
