package cpu

import (
	"context"
	"unsafe"

	"github.com/born-ml/gconv/internal/dnn"
	"github.com/born-ml/gconv/internal/parallel"
	"github.com/born-ml/gconv/internal/tensor"
)

// float is the set of element types the CPU backend computes in.
type float interface {
	float32 | float64
}

// elems returns the span of t as a slice of T.
func elems[T float](t *tensor.RawTensor) []T {
	var zero T
	switch any(zero).(type) {
	case float32:
		return any(t.AsFloat32()).([]T)
	default:
		return any(t.AsFloat64()).([]T)
	}
}

// geometry flattens the three descriptors of a forward convolution into the
// integers the kernels index with.
type geometry struct {
	n, c, h, w int
	xs         [4]int

	k, kh, kw  int
	filterNHWC bool
	flip       bool

	padH, padW       int
	strideH, strideW int
	dilH, dilW       int

	oh, ow int
	ys     [4]int
}

func newGeometry(x *dnn.TensorDescriptor, w *dnn.FilterDescriptor, conv *dnn.ConvolutionDescriptor, y *dnn.TensorDescriptor) *geometry {
	g := &geometry{}
	g.n, g.c, g.h, g.w = x.Dims()
	g.xs[0], g.xs[1], g.xs[2], g.xs[3] = x.Strides()
	g.k, _, g.kh, g.kw = w.Dims()
	g.filterNHWC = w.Format() == dnn.FormatNHWC
	g.flip = conv.Mode() == dnn.Convolution
	g.padH, g.padW = conv.Pad()
	g.strideH, g.strideW = conv.Stride()
	g.dilH, g.dilW = conv.Dilation()
	_, _, g.oh, g.ow = y.Dims()
	g.ys[0], g.ys[1], g.ys[2], g.ys[3] = y.Strides()
	return g
}

// taps returns the number of filter taps per output map: C*KH*KW.
func (g *geometry) taps() int {
	return g.c * g.kh * g.kw
}

// filterIndex returns the position of tap (c, r, s) of output map k in the
// packed filter buffer. Convolution mode reads the kernel flipped.
func (g *geometry) filterIndex(k, c, r, s int) int {
	if g.flip {
		r = g.kh - 1 - r
		s = g.kw - 1 - s
	}
	if g.filterNHWC {
		return ((k*g.kh+r)*g.kw+s)*g.c + c
	}
	return ((k*g.c+c)*g.kh+r)*g.kw + s
}

// store writes alpha*v + beta*y into y. With beta zero, y is not read.
func store[T float](g *geometry, y []T, n, k, oh, ow int, v, alpha, beta T) {
	idx := n*g.ys[0] + k*g.ys[1] + oh*g.ys[2] + ow*g.ys[3]
	if beta == 0 {
		y[idx] = alpha * v
		return
	}
	y[idx] = alpha*v + beta*y[idx]
}

// ConvolutionForward computes y = alpha*conv(x, w) + beta*y with algo.
//
// Input: x described by xDesc, any strides.
// Filter: K x C x KH x KW packed in the filter descriptor's layout.
// Output: y described by yDesc, any strides.
func (cpu *CPUBackend) ConvolutionForward(alpha float64, xDesc *dnn.TensorDescriptor, x *tensor.RawTensor,
	wDesc *dnn.FilterDescriptor, w *tensor.RawTensor, conv *dnn.ConvolutionDescriptor, algo dnn.FwdAlgo,
	workspace *tensor.RawTensor, workspaceBytes int,
	beta float64, yDesc *dnn.TensorDescriptor, y *tensor.RawTensor,
) error {
	const call = "ConvolutionForward"
	if err := cpu.checkOpen(call); err != nil {
		return err
	}
	if err := cpu.ValidateForward(call, xDesc, wDesc, conv, yDesc); err != nil {
		return err
	}
	if !cpu.offers(algo, xDesc, wDesc, conv) {
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

	need := workspaceSize(algo, xDesc, wDesc, yDesc)
	if need > 0 {
		if workspace == nil || workspaceBytes < need || len(workspace.Data()) < need {
			return dnn.Errorf(call, dnn.StatusBadParam, "algorithm %s needs %d workspace bytes, got %d", algo, need, workspaceBytes)
		}
		if workspace.DType() != xDesc.DType() {
			return dnn.Errorf(call, dnn.StatusBadParam, "workspace is %s, operands are %s", workspace.DType(), xDesc.DType())
		}
	}

	g := newGeometry(xDesc, wDesc, conv, yDesc)
	switch xDesc.DType() {
	case tensor.Float32:
		return forward(cpu.par, g, algo, elems[float32](x), elems[float32](w), workspace, float32(alpha), float32(beta), elems[float32](y))
	case tensor.Float64:
		return forward(cpu.par, g, algo, elems[float64](x), elems[float64](w), workspace, alpha, beta, elems[float64](y))
	default:
		return dnn.Errorf(call, dnn.StatusNotSupported, "data type %s", xDesc.DType())
	}
}

func forward[T float](par parallel.Config, g *geometry, algo dnn.FwdAlgo, x, w []T, ws *tensor.RawTensor, alpha, beta T, y []T) error {
	switch algo {
	case dnn.AlgoImplicitGEMM:
		return implicitGEMM(par, g, x, w, alpha, beta, y)
	case dnn.AlgoImplicitPrecompGEMM:
		return implicitPrecompGEMM(par, g, x, w, int32Table(ws, g.taps()), alpha, beta, y)
	case dnn.AlgoGEMM:
		gemm(par, g, x, w, elems[T](ws)[:g.taps()*g.oh*g.ow], alpha, beta, y)
		return nil
	default:
		return dnn.Errorf("ConvolutionForward", dnn.StatusNotSupported, "algorithm %s", algo)
	}
}

// implicitGEMM accumulates every output element straight from the input,
// recomputing tap offsets. One job per (image, output map).
func implicitGEMM[T float](par parallel.Config, g *geometry, x, w []T, alpha, beta T, y []T) error {
	return parallel.ForEach(context.Background(), g.n*g.k, func(_ context.Context, job int) error {
		n, k := job/g.k, job%g.k
		xb := n * g.xs[0]
		for oh := 0; oh < g.oh; oh++ {
			for ow := 0; ow < g.ow; ow++ {
				var sum T
				for c := 0; c < g.c; c++ {
					for r := 0; r < g.kh; r++ {
						ih := oh*g.strideH - g.padH + r*g.dilH
						if ih < 0 || ih >= g.h {
							continue
						}
						for s := 0; s < g.kw; s++ {
							iw := ow*g.strideW - g.padW + s*g.dilW
							if iw < 0 || iw >= g.w {
								continue
							}
							sum += x[xb+c*g.xs[1]+ih*g.xs[2]+iw*g.xs[3]] * w[g.filterIndex(k, c, r, s)]
						}
					}
				}
				store(g, y, n, k, oh, ow, sum, alpha, beta)
			}
		}
		return nil
	}, par)
}

// int32Table reinterprets the first taps*precompEntry int32 values of the
// workspace as the precomputed offset table.
func int32Table(ws *tensor.RawTensor, taps int) []int32 {
	data := ws.Data()
	//nolint:gosec // unsafe.Slice over the workspace bytes, length checked against workspaceSize
	return unsafe.Slice((*int32)(unsafe.Pointer(&data[0])), taps*precompEntry)
}

// implicitPrecompGEMM builds a table with, per tap (c, r, s), the input
// offset, the row and column displacement and the filter index of map 0,
// then accumulates outputs reading taps from the table.
func implicitPrecompGEMM[T float](par parallel.Config, g *geometry, x, w []T, table []int32, alpha, beta T, y []T) error {
	t := 0
	for c := 0; c < g.c; c++ {
		for r := 0; r < g.kh; r++ {
			for s := 0; s < g.kw; s++ {
				dh, dw := r*g.dilH, s*g.dilW
				table[t] = int32(c*g.xs[1] + dh*g.xs[2] + dw*g.xs[3])
				table[t+1] = int32(dh)
				table[t+2] = int32(dw)
				table[t+3] = int32(g.filterIndex(0, c, r, s))
				t += precompEntry
			}
		}
	}

	mapSize := g.taps()
	return parallel.ForEach(context.Background(), g.n*g.k, func(_ context.Context, job int) error {
		n, k := job/g.k, job%g.k
		wb := k * mapSize
		for oh := 0; oh < g.oh; oh++ {
			ih0 := oh*g.strideH - g.padH
			for ow := 0; ow < g.ow; ow++ {
				iw0 := ow*g.strideW - g.padW
				base := n*g.xs[0] + ih0*g.xs[2] + iw0*g.xs[3]
				var sum T
				for e := 0; e < len(table); e += precompEntry {
					ih := ih0 + int(table[e+1])
					iw := iw0 + int(table[e+2])
					if ih < 0 || ih >= g.h || iw < 0 || iw >= g.w {
						continue
					}
					sum += x[base+int(table[e])] * w[wb+int(table[e+3])]
				}
				store(g, y, n, k, oh, ow, sum, alpha, beta)
			}
		}
		return nil
	}, par)
}

// gemm lowers each image with im2col into the workspace column buffer
// [C*KH*KW, OH*OW] and multiplies the [K, C*KH*KW] filter matrix with it.
// Images run one after another since they share the column buffer.
func gemm[T float](par parallel.Config, g *geometry, x, w, col []T, alpha, beta T, y []T) {
	ohw := g.oh * g.ow
	taps := g.taps()

	// Filter rows in tap order, resolving layout and flipping once.
	rows := make([]T, g.k*taps)
	for k := 0; k < g.k; k++ {
		t := 0
		for c := 0; c < g.c; c++ {
			for r := 0; r < g.kh; r++ {
				for s := 0; s < g.kw; s++ {
					rows[k*taps+t] = w[g.filterIndex(k, c, r, s)]
					t++
				}
			}
		}
	}

	for n := 0; n < g.n; n++ {
		im2col(g, x[n*g.xs[0]:], col)

		parallel.For(g.k, func(k int) {
			row := rows[k*taps : (k+1)*taps]
			for p := 0; p < ohw; p++ {
				var sum T
				for t, wv := range row {
					sum += wv * col[t*ohw+p]
				}
				store(g, y, n, k, p/g.ow, p%g.ow, sum, alpha, beta)
			}
		}, par)
	}
}

// im2col transforms one image into the column matrix.
//
// Row t = (c, r, s) holds, for every output position, the input value under
// tap (r, s) of channel c, or zero where the tap falls into the padding.
func im2col[T float](g *geometry, x, col []T) {
	ohw := g.oh * g.ow
	t := 0
	for c := 0; c < g.c; c++ {
		for r := 0; r < g.kh; r++ {
			for s := 0; s < g.kw; s++ {
				dst := col[t*ohw : (t+1)*ohw]
				for oh := 0; oh < g.oh; oh++ {
					ih := oh*g.strideH - g.padH + r*g.dilH
					for ow := 0; ow < g.ow; ow++ {
						iw := ow*g.strideW - g.padW + s*g.dilW
						if ih >= 0 && ih < g.h && iw >= 0 && iw < g.w {
							dst[oh*g.ow+ow] = x[c*g.xs[1]+ih*g.xs[2]+iw*g.xs[3]]
						} else {
							dst[oh*g.ow+ow] = 0
						}
					}
				}
				t++
			}
		}
	}
}
