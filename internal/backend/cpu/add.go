package cpu

import (
	"github.com/born-ml/gconv/internal/dnn"
	"github.com/born-ml/gconv/internal/parallel"
	"github.com/born-ml/gconv/internal/tensor"
)

// AddTensor computes y = alpha*b + beta*y. Every dimension of b that is 1 is
// broadcast over the matching dimension of y; a bias is a 1xCx1x1 tensor.
func (cpu *CPUBackend) AddTensor(mode dnn.AddMode, alpha float64, bDesc *dnn.TensorDescriptor, b *tensor.RawTensor,
	beta float64, yDesc *dnn.TensorDescriptor, y *tensor.RawTensor,
) error {
	const call = "AddTensor"
	if err := cpu.checkOpen(call); err != nil {
		return err
	}
	if err := cpu.ValidateAdd(call, mode, bDesc, yDesc); err != nil {
		return err
	}
	if err := dnn.CheckMemory(call, "source", bDesc, b); err != nil {
		return err
	}
	if err := dnn.CheckMemory(call, "destination", yDesc, y); err != nil {
		return err
	}

	switch yDesc.DType() {
	case tensor.Float32:
		addBroadcast(cpu.par, bDesc, elems[float32](b), float32(alpha), float32(beta), yDesc, elems[float32](y))
	case tensor.Float64:
		addBroadcast(cpu.par, bDesc, elems[float64](b), alpha, beta, yDesc, elems[float64](y))
	default:
		return dnn.Errorf(call, dnn.StatusNotSupported, "data type %s", yDesc.DType())
	}
	return nil
}

func addBroadcast[T float](par parallel.Config, bDesc *dnn.TensorDescriptor, b []T, alpha, beta T, yDesc *dnn.TensorDescriptor, y []T) {
	bn, bc, bh, bw := bDesc.Dims()
	bs0, bs1, bs2, bs3 := bDesc.Strides()
	// A broadcast dimension has stride 0 on the source side.
	if bn == 1 {
		bs0 = 0
	}
	if bc == 1 {
		bs1 = 0
	}
	if bh == 1 {
		bs2 = 0
	}
	if bw == 1 {
		bs3 = 0
	}

	yn, yc, yh, yw := yDesc.Dims()
	ys0, ys1, ys2, ys3 := yDesc.Strides()
	// One job per (image, channel) plane of y.
	parallel.ForBatch(yn, yc, func(n, c int) {
		for h := 0; h < yh; h++ {
			for w := 0; w < yw; w++ {
				src := b[n*bs0+c*bs1+h*bs2+w*bs3]
				idx := n*ys0 + c*ys1 + h*ys2 + w*ys3
				if beta == 0 {
					y[idx] = alpha * src
				} else {
					y[idx] = alpha*src + beta*y[idx]
				}
			}
		}
	}, par)
}
