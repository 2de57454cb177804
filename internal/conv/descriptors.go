package conv

import (
	"errors"

	"github.com/born-ml/gconv/internal/dnn"
	"github.com/born-ml/gconv/internal/tensor"
)

// DescriptorSet holds the backend descriptors of one operator. They describe
// a single group: channel and filter counts are divided by the group count,
// while strides span the full tensors so that group g is addressed by an
// element offset alone.
type DescriptorSet struct {
	Input  *dnn.TensorDescriptor
	Output *dnn.TensorDescriptor
	Bias   *dnn.TensorDescriptor // nil without bias
	Filter *dnn.FilterDescriptor
	Conv   *dnn.ConvolutionDescriptor

	DType        tensor.DataType
	FilterFormat dnn.TensorFormat
	AddMode      dnn.AddMode
}

// shapes are the operand dimensions observed on the first Forward.
type shapes struct {
	n, c, h, w int
	k, kh, kw  int
	oh, ow     int
	bias       int // bias length, zero without bias
	dtype      tensor.DataType
}

// buildDescriptors creates and configures every descriptor on h. If any
// backend call fails, the descriptors created so far are destroyed before the
// failure propagates.
func (op *Operator) buildDescriptors(h dnn.Handle, s shapes) (ds *DescriptorSet) {
	g := op.cfg.NumGroup
	ds = &DescriptorSet{DType: s.dtype}

	complete := false
	defer func() {
		if !complete {
			if err := ds.release(h); err != nil {
				op.logger.Warn("release after failed init", "op", op.id, "err", err)
			}
		}
	}()

	caps := h.Capabilities()
	if !caps.SupportsDType(s.dtype) {
		op.check("Capabilities", dnn.Errorf("Capabilities", dnn.StatusNotSupported,
			"%s does not compute in %s", h.Name(), s.dtype))
	}
	ds.FilterFormat = dnn.FormatUnspecified
	if caps.FilterFormat {
		ds.FilterFormat = dnn.FormatNCHW
	}
	ds.AddMode = dnn.AddFullTensor
	if caps.LegacyAddTensor {
		ds.AddMode = dnn.AddSameC
	}

	var err error
	ds.Input, err = h.CreateTensorDescriptor()
	op.check("CreateTensorDescriptor", err)
	ds.Output, err = h.CreateTensorDescriptor()
	op.check("CreateTensorDescriptor", err)
	if s.bias > 0 {
		ds.Bias, err = h.CreateTensorDescriptor()
		op.check("CreateTensorDescriptor", err)
	}
	ds.Filter, err = h.CreateFilterDescriptor()
	op.check("CreateFilterDescriptor", err)
	ds.Conv, err = h.CreateConvolutionDescriptor()
	op.check("CreateConvolutionDescriptor", err)

	op.check("SetFilter4dDescriptor", h.SetFilter4dDescriptor(ds.Filter, s.dtype, ds.FilterFormat,
		s.k/g, s.c/g, s.kh, s.kw))
	op.check("SetConvolution2dDescriptor", h.SetConvolution2dDescriptor(ds.Conv,
		op.cfg.Pad[0], op.cfg.Pad[1], op.cfg.Stride[0], op.cfg.Stride[1], 1, 1, dnn.CrossCorrelation))
	op.check("SetTensor4dDescriptorEx", h.SetTensor4dDescriptorEx(ds.Input, s.dtype,
		s.n, s.c/g, s.h, s.w,
		s.c*s.h*s.w, s.h*s.w, s.w, 1))
	op.check("SetTensor4dDescriptorEx", h.SetTensor4dDescriptorEx(ds.Output, s.dtype,
		s.n, s.k/g, s.oh, s.ow,
		s.k*s.oh*s.ow, s.oh*s.ow, s.ow, 1))
	if ds.Bias != nil {
		op.check("SetTensor4dDescriptor", h.SetTensor4dDescriptor(ds.Bias, dnn.FormatNCHW, s.dtype,
			1, s.bias/g, 1, 1))
	}

	// The backend must agree with the output operand on the group shape.
	n, k, oh, ow, err := h.GetConvolution2dForwardOutputDim(ds.Conv, ds.Input, ds.Filter)
	op.check("GetConvolution2dForwardOutputDim", err)
	if n != s.n || k != s.k/g || oh != s.oh || ow != s.ow {
		op.check("GetConvolution2dForwardOutputDim", dnn.Errorf("GetConvolution2dForwardOutputDim",
			dnn.StatusBadParam, "backend output %dx%dx%dx%d, operand group %dx%dx%dx%d",
			n, k, oh, ow, s.n, s.k/g, s.oh, s.ow))
	}

	complete = true
	return ds
}

// release destroys every descriptor still held. It is idempotent.
func (ds *DescriptorSet) release(h dnn.Handle) error {
	var errs []error
	if ds.Input != nil {
		errs = append(errs, h.DestroyTensorDescriptor(ds.Input))
		ds.Input = nil
	}
	if ds.Output != nil {
		errs = append(errs, h.DestroyTensorDescriptor(ds.Output))
		ds.Output = nil
	}
	if ds.Bias != nil {
		errs = append(errs, h.DestroyTensorDescriptor(ds.Bias))
		ds.Bias = nil
	}
	if ds.Filter != nil {
		errs = append(errs, h.DestroyFilterDescriptor(ds.Filter))
		ds.Filter = nil
	}
	if ds.Conv != nil {
		errs = append(errs, h.DestroyConvolutionDescriptor(ds.Conv))
		ds.Conv = nil
	}
	return errors.Join(errs...)
}
