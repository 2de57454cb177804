package conv

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/born-ml/gconv/internal/backend/cpu"
	"github.com/born-ml/gconv/internal/dnn"
	"github.com/born-ml/gconv/internal/opctx"
	"github.com/born-ml/gconv/internal/tensor"
	"github.com/stretchr/testify/require"
)

// countingHandle counts backend calls and can fail one of them.
type countingHandle struct {
	*cpu.CPUBackend

	mu    sync.Mutex
	calls map[string]int
	fail  string

	// When block is set, ConvolutionForward signals entered and waits for
	// block to be closed.
	entered chan struct{}
	block   chan struct{}
}

func newCountingHandle(opts ...cpu.Option) *countingHandle {
	return &countingHandle{
		CPUBackend: cpu.New(opts...),
		calls:      make(map[string]int),
	}
}

func (h *countingHandle) hit(call string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls[call]++
	if call == h.fail {
		return dnn.Errorf(call, dnn.StatusInternalError, "injected failure")
	}
	return nil
}

func (h *countingHandle) count(call string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[call]
}

func (h *countingHandle) creates() int {
	return h.count("CreateTensorDescriptor") + h.count("CreateFilterDescriptor") + h.count("CreateConvolutionDescriptor")
}

func (h *countingHandle) destroys() int {
	return h.count("DestroyTensorDescriptor") + h.count("DestroyFilterDescriptor") + h.count("DestroyConvolutionDescriptor")
}

func (h *countingHandle) CreateTensorDescriptor() (*dnn.TensorDescriptor, error) {
	if err := h.hit("CreateTensorDescriptor"); err != nil {
		return nil, err
	}
	return h.CPUBackend.CreateTensorDescriptor()
}

func (h *countingHandle) CreateFilterDescriptor() (*dnn.FilterDescriptor, error) {
	if err := h.hit("CreateFilterDescriptor"); err != nil {
		return nil, err
	}
	return h.CPUBackend.CreateFilterDescriptor()
}

func (h *countingHandle) CreateConvolutionDescriptor() (*dnn.ConvolutionDescriptor, error) {
	if err := h.hit("CreateConvolutionDescriptor"); err != nil {
		return nil, err
	}
	return h.CPUBackend.CreateConvolutionDescriptor()
}

func (h *countingHandle) DestroyTensorDescriptor(d *dnn.TensorDescriptor) error {
	_ = h.hit("DestroyTensorDescriptor")
	return h.CPUBackend.DestroyTensorDescriptor(d)
}

func (h *countingHandle) DestroyFilterDescriptor(d *dnn.FilterDescriptor) error {
	_ = h.hit("DestroyFilterDescriptor")
	return h.CPUBackend.DestroyFilterDescriptor(d)
}

func (h *countingHandle) DestroyConvolutionDescriptor(d *dnn.ConvolutionDescriptor) error {
	_ = h.hit("DestroyConvolutionDescriptor")
	return h.CPUBackend.DestroyConvolutionDescriptor(d)
}

func (h *countingHandle) SetConvolution2dDescriptor(d *dnn.ConvolutionDescriptor, padH, padW, u, v, dilationH, dilationW int, mode dnn.ConvolutionMode) error {
	if err := h.hit("SetConvolution2dDescriptor"); err != nil {
		return err
	}
	return h.CPUBackend.SetConvolution2dDescriptor(d, padH, padW, u, v, dilationH, dilationW, mode)
}

func (h *countingHandle) GetConvolutionForwardAlgorithm(x *dnn.TensorDescriptor, w *dnn.FilterDescriptor,
	conv *dnn.ConvolutionDescriptor, y *dnn.TensorDescriptor, pref dnn.FwdPreference, limitBytes int,
) (dnn.FwdAlgo, error) {
	if err := h.hit("GetConvolutionForwardAlgorithm"); err != nil {
		return 0, err
	}
	return h.CPUBackend.GetConvolutionForwardAlgorithm(x, w, conv, y, pref, limitBytes)
}

func (h *countingHandle) ConvolutionForward(alpha float64, xDesc *dnn.TensorDescriptor, x *tensor.RawTensor,
	wDesc *dnn.FilterDescriptor, w *tensor.RawTensor, conv *dnn.ConvolutionDescriptor, algo dnn.FwdAlgo,
	workspace *tensor.RawTensor, workspaceBytes int,
	beta float64, yDesc *dnn.TensorDescriptor, y *tensor.RawTensor,
) error {
	if err := h.hit("ConvolutionForward"); err != nil {
		return err
	}
	if h.block != nil {
		select {
		case h.entered <- struct{}{}:
		default:
		}
		<-h.block
	}
	return h.CPUBackend.ConvolutionForward(alpha, xDesc, x, wDesc, w, conv, algo, workspace, workspaceBytes, beta, yDesc, y)
}

func (h *countingHandle) AddTensor(mode dnn.AddMode, alpha float64, bDesc *dnn.TensorDescriptor, b *tensor.RawTensor,
	beta float64, yDesc *dnn.TensorDescriptor, y *tensor.RawTensor,
) error {
	if err := h.hit("AddTensor"); err != nil {
		return err
	}
	return h.CPUBackend.AddTensor(mode, alpha, bDesc, b, beta, yDesc, y)
}

// float32Only reports Float32 as the only supported data type.
type float32Only struct {
	*countingHandle
}

func (h float32Only) Capabilities() dnn.Capabilities {
	caps := h.countingHandle.Capabilities()
	caps.DTypes = map[tensor.DataType]bool{tensor.Float32: true}
	return caps
}

// operands allocates data, weight, optional bias and output for cfg.
type operands struct {
	data, weight, bias, out *tensor.RawTensor
}

func newOperands(t *testing.T, cfg Config, n, c, h, w int, rng *rand.Rand) *operands {
	t.Helper()
	var err error
	o := &operands{}
	o.data, err = tensor.Randn(tensor.Shape{n, c, h, w}, tensor.Float64, rng)
	require.NoError(t, err)
	o.weight, err = tensor.Randn(tensor.Shape{cfg.NumFilter, c / cfg.NumGroup, cfg.Kernel[0], cfg.Kernel[1]}, tensor.Float64, rng)
	require.NoError(t, err)
	if !cfg.NoBias {
		o.bias, err = tensor.Randn(tensor.Shape{cfg.NumFilter}, tensor.Float64, rng)
		require.NoError(t, err)
	}
	oh, ow := cfg.OutputSize(h, w)
	o.out, err = tensor.NewRaw(tensor.Shape{n, cfg.NumFilter, oh, ow}, tensor.Float64, tensor.CPU)
	require.NoError(t, err)
	return o
}

func (o *operands) in() []*tensor.RawTensor {
	if o.bias == nil {
		return []*tensor.RawTensor{o.data, o.weight}
	}
	return []*tensor.RawTensor{o.data, o.weight, o.bias}
}

func (o *operands) outs() []*tensor.RawTensor {
	return []*tensor.RawTensor{o.out}
}

// referenceGrouped computes the grouped cross-correlation plus bias directly.
func referenceGrouped(cfg Config, o *operands) []float64 {
	n, c, h, w := o.data.Shape().NCHW()
	k := cfg.NumFilter
	oh, ow := cfg.OutputSize(h, w)
	cg, kg := c/cfg.NumGroup, k/cfg.NumGroup
	kh, kw := cfg.Kernel[0], cfg.Kernel[1]
	x, f := o.data.AsFloat64(), o.weight.AsFloat64()

	out := make([]float64, n*k*oh*ow)
	for in := 0; in < n; in++ {
		for ik := 0; ik < k; ik++ {
			g := ik / kg
			for y := 0; y < oh; y++ {
				for xx := 0; xx < ow; xx++ {
					var sum float64
					if o.bias != nil {
						sum = o.bias.AsFloat64()[ik]
					}
					for ic := 0; ic < cg; ic++ {
						for r := 0; r < kh; r++ {
							for s := 0; s < kw; s++ {
								ih := y*cfg.Stride[0] - cfg.Pad[0] + r
								iw := xx*cfg.Stride[1] - cfg.Pad[1] + s
								if ih < 0 || ih >= h || iw < 0 || iw >= w {
									continue
								}
								sum += x[((in*c+g*cg+ic)*h+ih)*w+iw] * f[((ik*cg+ic)*kh+r)*kw+s]
							}
						}
					}
					out[((in*k+ik)*oh+y)*ow+xx] = sum
				}
			}
		}
	}
	return out
}

// panicValue runs f and returns what it panicked with, or nil.
func panicValue(f func()) (v any) {
	defer func() { v = recover() }()
	f()
	return nil
}

func newContext(h dnn.Handle) *opctx.Context {
	return opctx.NewContext(opctx.NewStream(h))
}
