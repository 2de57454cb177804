package dnn

import (
	"fmt"

	"github.com/born-ml/gconv/internal/tensor"
)

// TensorDescriptor describes a strided 4D tensor: element type, dimensions
// in N, C, H, W order and the stride of each dimension in elements.
type TensorDescriptor struct {
	id    uint64
	owner *Registry
	set   bool

	dtype   tensor.DataType
	format  TensorFormat
	dims    [4]int
	strides [4]int
}

// DType returns the element type.
func (d *TensorDescriptor) DType() tensor.DataType { return d.dtype }

// Format returns the format the descriptor was set with. Descriptors set
// with explicit strides report FormatUnspecified.
func (d *TensorDescriptor) Format() TensorFormat { return d.format }

// Dims returns N, C, H, W.
func (d *TensorDescriptor) Dims() (n, c, h, w int) {
	return d.dims[0], d.dims[1], d.dims[2], d.dims[3]
}

// Strides returns the N, C, H, W strides in elements.
func (d *TensorDescriptor) Strides() (n, c, h, w int) {
	return d.strides[0], d.strides[1], d.strides[2], d.strides[3]
}

// Shape returns the dimensions as a tensor.Shape.
func (d *TensorDescriptor) Shape() tensor.Shape {
	return tensor.Shape{d.dims[0], d.dims[1], d.dims[2], d.dims[3]}
}

// StrideSlice returns the strides as a slice, suitable for tensor views.
func (d *TensorDescriptor) StrideSlice() []int {
	return []int{d.strides[0], d.strides[1], d.strides[2], d.strides[3]}
}

// Span returns the number of elements the described tensor can address.
func (d *TensorDescriptor) Span() int {
	return tensor.Span(d.Shape(), d.StrideSlice())
}

// IsSet reports whether the descriptor has been configured.
func (d *TensorDescriptor) IsSet() bool { return d.set }

func (d *TensorDescriptor) String() string {
	return fmt.Sprintf("tensor#%d{%s %v strides %v}", d.id, d.dtype, d.dims, d.strides)
}

// FilterDescriptor describes a 4D filter bank: K output maps of C channels
// with an H x W kernel.
type FilterDescriptor struct {
	id    uint64
	owner *Registry
	set   bool

	dtype  tensor.DataType
	format TensorFormat
	dims   [4]int
}

// DType returns the element type.
func (d *FilterDescriptor) DType() tensor.DataType { return d.dtype }

// Format returns the filter layout.
func (d *FilterDescriptor) Format() TensorFormat { return d.format }

// Dims returns K, C, H, W.
func (d *FilterDescriptor) Dims() (k, c, h, w int) {
	return d.dims[0], d.dims[1], d.dims[2], d.dims[3]
}

// Shape returns the dimensions as a tensor.Shape.
func (d *FilterDescriptor) Shape() tensor.Shape {
	return tensor.Shape{d.dims[0], d.dims[1], d.dims[2], d.dims[3]}
}

// IsSet reports whether the descriptor has been configured.
func (d *FilterDescriptor) IsSet() bool { return d.set }

func (d *FilterDescriptor) String() string {
	return fmt.Sprintf("filter#%d{%s %s %v}", d.id, d.dtype, d.format, d.dims)
}

// ConvolutionDescriptor holds 2D convolution parameters.
type ConvolutionDescriptor struct {
	id    uint64
	owner *Registry
	set   bool

	padH, padW           int
	strideH, strideW     int
	dilationH, dilationW int
	mode                 ConvolutionMode
}

// Pad returns the zero padding applied to each side.
func (d *ConvolutionDescriptor) Pad() (h, w int) { return d.padH, d.padW }

// Stride returns the vertical and horizontal filter strides.
func (d *ConvolutionDescriptor) Stride() (h, w int) { return d.strideH, d.strideW }

// Dilation returns the filter dilation.
func (d *ConvolutionDescriptor) Dilation() (h, w int) { return d.dilationH, d.dilationW }

// Mode returns the convolution mode.
func (d *ConvolutionDescriptor) Mode() ConvolutionMode { return d.mode }

// IsSet reports whether the descriptor has been configured.
func (d *ConvolutionDescriptor) IsSet() bool { return d.set }

func (d *ConvolutionDescriptor) String() string {
	return fmt.Sprintf("conv#%d{pad %dx%d stride %dx%d dilation %dx%d %s}",
		d.id, d.padH, d.padW, d.strideH, d.strideW, d.dilationH, d.dilationW, d.mode)
}

// OutputDim computes the forward output dimensions of convolving an
// N x C x H x W input with a K x C x KH x KW filter.
func OutputDim(conv *ConvolutionDescriptor, x *TensorDescriptor, w *FilterDescriptor) (n, c, h, wd int) {
	xn, _, xh, xw := x.Dims()
	k, _, kh, kw := w.Dims()
	effKH := (kh-1)*conv.dilationH + 1
	effKW := (kw-1)*conv.dilationW + 1
	h = (xh+2*conv.padH-effKH)/conv.strideH + 1
	wd = (xw+2*conv.padW-effKW)/conv.strideW + 1
	return xn, k, h, wd
}
