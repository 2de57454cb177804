// Package dnn defines the contract between the convolution operator and a
// vendor-style deep learning backend: opaque descriptors for tensors, filters
// and convolutions, algorithm queries and the forward primitives.
package dnn

import "fmt"

// TensorFormat is the memory layout bound to a 4D descriptor.
type TensorFormat int

// Tensor formats. FormatUnspecified is used with backends whose filter
// descriptors predate explicit layouts.
const (
	FormatUnspecified TensorFormat = iota
	FormatNCHW
	FormatNHWC
)

// String returns the format name.
func (f TensorFormat) String() string {
	switch f {
	case FormatUnspecified:
		return "unspecified"
	case FormatNCHW:
		return "NCHW"
	case FormatNHWC:
		return "NHWC"
	default:
		return fmt.Sprintf("TensorFormat(%d)", int(f))
	}
}

// ConvolutionMode selects whether the kernel is flipped.
type ConvolutionMode int

// Convolution modes.
const (
	// Convolution flips the kernel (mathematical convolution).
	Convolution ConvolutionMode = iota
	// CrossCorrelation applies the kernel as stored.
	CrossCorrelation
)

// String returns the mode name.
func (m ConvolutionMode) String() string {
	switch m {
	case Convolution:
		return "convolution"
	case CrossCorrelation:
		return "cross_correlation"
	default:
		return fmt.Sprintf("ConvolutionMode(%d)", int(m))
	}
}

// FwdAlgo identifies a forward convolution algorithm.
type FwdAlgo int

// Forward algorithms. Backends advertise the subset they implement.
const (
	AlgoImplicitGEMM FwdAlgo = iota
	AlgoImplicitPrecompGEMM
	AlgoGEMM
	AlgoDirect
	AlgoFFT
	AlgoWinograd
)

// String returns the algorithm name.
func (a FwdAlgo) String() string {
	switch a {
	case AlgoImplicitGEMM:
		return "implicit_gemm"
	case AlgoImplicitPrecompGEMM:
		return "implicit_precomp_gemm"
	case AlgoGEMM:
		return "gemm"
	case AlgoDirect:
		return "direct"
	case AlgoFFT:
		return "fft"
	case AlgoWinograd:
		return "winograd"
	default:
		return fmt.Sprintf("FwdAlgo(%d)", int(a))
	}
}

// FwdPreference is the policy used when asking the backend for an algorithm.
type FwdPreference int

// Algorithm selection policies.
const (
	PreferNoWorkspace FwdPreference = iota
	PreferFastest
	PreferSpecifyWorkspaceLimit
)

// String returns the preference name.
func (p FwdPreference) String() string {
	switch p {
	case PreferNoWorkspace:
		return "no_workspace"
	case PreferFastest:
		return "prefer_fastest"
	case PreferSpecifyWorkspaceLimit:
		return "specify_workspace_limit"
	default:
		return fmt.Sprintf("FwdPreference(%d)", int(p))
	}
}

// AddMode describes how AddTensor broadcasts its source over the destination.
type AddMode int

// Add modes.
const (
	// AddFullTensor broadcasts any source dimension of size 1.
	AddFullTensor AddMode = iota
	// AddSameC adds a 1xCx1x1 source to every image and pixel. Older backend
	// revisions require the mode to be named explicitly.
	AddSameC
)

// String returns the mode name.
func (m AddMode) String() string {
	switch m {
	case AddFullTensor:
		return "full_tensor"
	case AddSameC:
		return "same_c"
	default:
		return fmt.Sprintf("AddMode(%d)", int(m))
	}
}
