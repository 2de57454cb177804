package cpu

import (
	"math"

	"github.com/born-ml/gconv/internal/dnn"
)

// precompEntry is the number of int32 values stored per (c, kh, kw) tap in
// the implicit precomputed-GEMM offset table.
const precompEntry = 4

// workspaceSize returns the scratch bytes algo needs for the given problem.
//
//   - implicit GEMM: none, offsets are recomputed per tap
//   - implicit precomputed GEMM: an int32 table with one entry per (c, kh, kw)
//   - GEMM: one im2col column buffer [C*KH*KW, OH*OW] for a single image
func workspaceSize(algo dnn.FwdAlgo, x *dnn.TensorDescriptor, w *dnn.FilterDescriptor, y *dnn.TensorDescriptor) int {
	_, c, kh, kw := w.Dims()
	_, _, oh, ow := y.Dims()
	taps := c * kh * kw
	switch algo {
	case dnn.AlgoImplicitGEMM:
		return 0
	case dnn.AlgoImplicitPrecompGEMM:
		return precompEntry * 4 * taps
	case dnn.AlgoGEMM:
		return taps * oh * ow * x.DType().Size()
	default:
		return -1
	}
}

// precompFits reports whether every input offset of the precomputed table
// fits in an int32 entry.
func precompFits(x *dnn.TensorDescriptor, w *dnn.FilterDescriptor, conv *dnn.ConvolutionDescriptor) bool {
	_, c, kh, kw := w.Dims()
	_, cs, hs, ws := x.Strides()
	dilH, dilW := conv.Dilation()
	last := (c-1)*cs + (kh-1)*dilH*hs + (kw-1)*dilW*ws
	return last <= math.MaxInt32 && c*kh*kw <= math.MaxInt32
}

// offers reports whether algo can run the given problem.
func (cpu *CPUBackend) offers(algo dnn.FwdAlgo, x *dnn.TensorDescriptor, w *dnn.FilterDescriptor, conv *dnn.ConvolutionDescriptor) bool {
	if !cpu.supports(algo) {
		return false
	}
	return algo != dnn.AlgoImplicitPrecompGEMM || precompFits(x, w, conv)
}

// GetConvolutionForwardAlgorithm returns the fastest offered algorithm that
// satisfies pref. Algorithms are ranked GEMM, precomputed implicit GEMM,
// implicit GEMM. Precomputed implicit GEMM is skipped when input offsets
// overflow its int32 table.
func (cpu *CPUBackend) GetConvolutionForwardAlgorithm(x *dnn.TensorDescriptor, w *dnn.FilterDescriptor,
	conv *dnn.ConvolutionDescriptor, y *dnn.TensorDescriptor, pref dnn.FwdPreference, limitBytes int,
) (dnn.FwdAlgo, error) {
	const call = "GetConvolutionForwardAlgorithm"
	if err := cpu.checkOpen(call); err != nil {
		return 0, err
	}
	if err := cpu.ValidateForward(call, x, w, conv, y); err != nil {
		return 0, err
	}
	if pref == dnn.PreferSpecifyWorkspaceLimit && limitBytes < 0 {
		return 0, dnn.Errorf(call, dnn.StatusBadParam, "negative workspace limit %d", limitBytes)
	}

	for _, algo := range cpu.algos {
		if !cpu.offers(algo, x, w, conv) {
			continue
		}
		size := workspaceSize(algo, x, w, y)
		switch pref {
		case dnn.PreferFastest:
			return algo, nil
		case dnn.PreferNoWorkspace:
			if size == 0 {
				return algo, nil
			}
		case dnn.PreferSpecifyWorkspaceLimit:
			if size <= limitBytes {
				return algo, nil
			}
		default:
			return 0, dnn.Errorf(call, dnn.StatusBadParam, "preference %s", pref)
		}
	}
	return 0, dnn.Errorf(call, dnn.StatusNotSupported, "no forward algorithm for %s within %d bytes", pref, limitBytes)
}

// GetConvolutionForwardWorkspaceSize returns the scratch bytes algo needs.
func (cpu *CPUBackend) GetConvolutionForwardWorkspaceSize(x *dnn.TensorDescriptor, w *dnn.FilterDescriptor,
	conv *dnn.ConvolutionDescriptor, y *dnn.TensorDescriptor, algo dnn.FwdAlgo,
) (int, error) {
	const call = "GetConvolutionForwardWorkspaceSize"
	if err := cpu.checkOpen(call); err != nil {
		return 0, err
	}
	if err := cpu.ValidateForward(call, x, w, conv, y); err != nil {
		return 0, err
	}
	if !cpu.offers(algo, x, w, conv) {
		return 0, dnn.Errorf(call, dnn.StatusNotSupported, "algorithm %s", algo)
	}
	return workspaceSize(algo, x, w, y), nil
}
