//go:build windows

package webgpu

import (
	"github.com/born-ml/gconv/internal/dnn"
	"github.com/born-ml/gconv/internal/tensor"
	"github.com/go-webgpu/webgpu/wgpu"
)

const storageOut = wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst

func u32(v int) uint32 {
	//nolint:gosec // G115: descriptor dimensions and strides are validated positive
	return uint32(v)
}

func flag(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// GetConvolutionForwardAlgorithm returns AlgoDirect, which needs no
// workspace and so satisfies every preference.
func (b *Backend) GetConvolutionForwardAlgorithm(x *dnn.TensorDescriptor, w *dnn.FilterDescriptor,
	conv *dnn.ConvolutionDescriptor, y *dnn.TensorDescriptor, pref dnn.FwdPreference, limitBytes int,
) (dnn.FwdAlgo, error) {
	const call = "GetConvolutionForwardAlgorithm"
	if err := b.checkOpen(call); err != nil {
		return 0, err
	}
	if err := b.ValidateForward(call, x, w, conv, y); err != nil {
		return 0, err
	}
	if pref == dnn.PreferSpecifyWorkspaceLimit && limitBytes < 0 {
		return 0, dnn.Errorf(call, dnn.StatusBadParam, "negative workspace limit %d", limitBytes)
	}
	return dnn.AlgoDirect, nil
}

// GetConvolutionForwardWorkspaceSize returns zero for AlgoDirect.
func (b *Backend) GetConvolutionForwardWorkspaceSize(x *dnn.TensorDescriptor, w *dnn.FilterDescriptor,
	conv *dnn.ConvolutionDescriptor, y *dnn.TensorDescriptor, algo dnn.FwdAlgo,
) (int, error) {
	const call = "GetConvolutionForwardWorkspaceSize"
	if err := b.checkOpen(call); err != nil {
		return 0, err
	}
	if err := b.ValidateForward(call, x, w, conv, y); err != nil {
		return 0, err
	}
	if algo != dnn.AlgoDirect {
		return 0, dnn.Errorf(call, dnn.StatusNotSupported, "algorithm %s", algo)
	}
	return 0, nil
}

// ConvolutionForward computes y = alpha*conv(x, w) + beta*y on the GPU.
// The convolution runs on the device; alpha and beta are applied while the
// packed result is scattered into y.
func (b *Backend) ConvolutionForward(alpha float64, xDesc *dnn.TensorDescriptor, x *tensor.RawTensor,
	wDesc *dnn.FilterDescriptor, w *tensor.RawTensor, conv *dnn.ConvolutionDescriptor, algo dnn.FwdAlgo,
	_ *tensor.RawTensor, _ int,
	beta float64, yDesc *dnn.TensorDescriptor, y *tensor.RawTensor,
) error {
	const call = "ConvolutionForward"
	if err := b.checkOpen(call); err != nil {
		return err
	}
	if err := b.ValidateForward(call, xDesc, wDesc, conv, yDesc); err != nil {
		return err
	}
	if algo != dnn.AlgoDirect {
		return dnn.Errorf(call, dnn.StatusNotSupported, "algorithm %s", algo)
	}
	if err := dnn.CheckMemory(call, "input", xDesc, x); err != nil {
		return err
	}
	if err := dnn.CheckFilterMemory(call, wDesc, w); err != nil {
		return err
	}
	if err := dnn.CheckMemory(call, "output", yDesc, y); err != nil {
		return err
	}

	n, c, h, wd := xDesc.Dims()
	xn, xc, xh, xw := xDesc.Strides()
	k, _, kh, kw := wDesc.Dims()
	padH, padW := conv.Pad()
	strideH, strideW := conv.Stride()
	dilH, dilW := conv.Dilation()
	_, _, oh, ow := yDesc.Dims()

	xBuf := b.createBuffer(x.Data()[:xDesc.Span()*4], wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc)
	defer xBuf.Release()
	wBytes := wDesc.Shape().NumElements() * 4
	wBuf := b.createBuffer(w.Data()[:wBytes], wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc)
	defer wBuf.Release()

	outBytes := uint64(n * k * oh * ow * 4)
	outBuf := b.bufferPool.Acquire(outBytes, storageOut)
	defer b.bufferPool.Release(outBuf, storageOut)

	params, paramsSize := b.createUniformBuffer([]uint32{
		u32(n), u32(c), u32(h), u32(wd),
		u32(xn), u32(xc), u32(xh), u32(xw),
		u32(k), u32(kh), u32(kw), flag(conv.Mode() == dnn.Convolution),
		u32(padH), u32(padW), u32(strideH), u32(strideW),
		u32(dilH), u32(dilW), u32(oh), u32(ow),
		flag(wDesc.Format() == dnn.FormatNHWC), 0, 0, 0,
	})
	defer params.Release()

	b.dispatch("conv2d_forward", conv2dForwardShader, []binding{
		{xBuf, uint64(xDesc.Span() * 4)},
		{wBuf, uint64(wBytes)},
		{outBuf, outBytes},
		{params, paramsSize},
	}, workgroups(ow, conv2dTile), workgroups(oh, conv2dTile), u32(n*k))

	raw, err := b.readBuffer(outBuf, outBytes)
	if err != nil {
		return dnn.Errorf(call, dnn.StatusExecutionFailed, "%v", err)
	}

	result := bytesFloat32(raw)
	ys := y.AsFloat32()
	a, bt := float32(alpha), float32(beta)
	i := 0
	walkDescriptor(yDesc, func(idx int) {
		v := a * result[i]
		if bt != 0 {
			v += bt * ys[idx]
		}
		ys[idx] = v
		i++
	})
	return nil
}

// AddTensor computes y = alpha*b + beta*y on the GPU, broadcasting every
// dimension of b that is 1.
func (b *Backend) AddTensor(mode dnn.AddMode, alpha float64, bDesc *dnn.TensorDescriptor, src *tensor.RawTensor,
	beta float64, yDesc *dnn.TensorDescriptor, y *tensor.RawTensor,
) error {
	const call = "AddTensor"
	if err := b.checkOpen(call); err != nil {
		return err
	}
	if err := b.ValidateAdd(call, mode, bDesc, yDesc); err != nil {
		return err
	}
	if err := dnn.CheckMemory(call, "source", bDesc, src); err != nil {
		return err
	}
	if err := dnn.CheckMemory(call, "destination", yDesc, y); err != nil {
		return err
	}

	ys := y.AsFloat32()
	packed := make([]float32, 0, yDesc.Shape().NumElements())
	walkDescriptor(yDesc, func(idx int) { packed = append(packed, ys[idx]) })

	bn, bc, bh, bw := bDesc.Dims()
	sn, sc, sh, sw := bDesc.Strides()
	broadcast := func(dim, stride int) uint32 {
		if dim == 1 {
			return 0
		}
		return u32(stride)
	}
	_, yc, yh, yw := yDesc.Dims()

	srcBuf := b.createBuffer(src.Data()[:bDesc.Span()*4], wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc)
	defer srcBuf.Release()
	dstBytes := uint64(len(packed) * 4)
	dstBuf := b.createBuffer(float32Bytes(packed), storageOut)
	defer dstBuf.Release()

	params, paramsSize := b.createUniformBuffer([]uint32{
		u32(len(packed)), u32(yc), u32(yh), u32(yw),
		broadcast(bn, sn), broadcast(bc, sc), broadcast(bh, sh), broadcast(bw, sw),
		f32bits(alpha), f32bits(beta), 0, 0,
	})
	defer params.Release()

	b.dispatch("add_tensor", addTensorShader, []binding{
		{srcBuf, uint64(bDesc.Span() * 4)},
		{dstBuf, dstBytes},
		{params, paramsSize},
	}, workgroups(len(packed), workgroupSize), 1, 1)

	raw, err := b.readBuffer(dstBuf, dstBytes)
	if err != nil {
		return dnn.Errorf(call, dnn.StatusExecutionFailed, "%v", err)
	}
	result := bytesFloat32(raw)
	i := 0
	walkDescriptor(yDesc, func(idx int) {
		ys[idx] = result[i]
		i++
	})
	return nil
}
