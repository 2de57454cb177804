package conv

import (
	"github.com/born-ml/gconv/internal/dnn"
)

// AlgorithmChoice is the forward algorithm picked at initialization and the
// workspace it needs.
type AlgorithmChoice struct {
	Algo              dnn.FwdAlgo
	WorkspaceBytes    int
	WorkspaceElements int // WorkspaceBytes / element size + 1
}

// selectAlgorithm asks h for the fastest algorithm whose workspace fits in
// limitBytes. A budget nothing fits in is fatal.
func (op *Operator) selectAlgorithm(h dnn.Handle, ds *DescriptorSet, limitBytes int) AlgorithmChoice {
	algo, err := h.GetConvolutionForwardAlgorithm(ds.Input, ds.Filter, ds.Conv, ds.Output,
		dnn.PreferSpecifyWorkspaceLimit, limitBytes)
	op.check("GetConvolutionForwardAlgorithm", err)

	size, err := h.GetConvolutionForwardWorkspaceSize(ds.Input, ds.Filter, ds.Conv, ds.Output, algo)
	op.check("GetConvolutionForwardWorkspaceSize", err)

	return AlgorithmChoice{
		Algo:              algo,
		WorkspaceBytes:    size,
		WorkspaceElements: size/ds.DType.Size() + 1,
	}
}
