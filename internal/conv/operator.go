// Package conv implements a grouped 2D convolution forward operator on top of
// a DNN backend handle.
//
// The operator builds its backend descriptors once, from the operand shapes of
// its first Forward call, and picks the fastest forward algorithm whose
// workspace fits the configured budget. Every Forward then issues one backend
// convolution per group, addressing group g by element offsets into the
// packed NCHW operands, followed by a bias add when bias is configured.
//
// Backend failures and operand contract violations are not recoverable: they
// panic with a *FatalError or a *PreconditionError.
package conv

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/born-ml/gconv/internal/dnn"
	"github.com/born-ml/gconv/internal/opctx"
	"github.com/born-ml/gconv/internal/tensor"
	"github.com/google/uuid"
)

type state int

const (
	stateUninitialized state = iota
	stateReady
	stateClosed
)

func (s state) String() string {
	switch s {
	case stateUninitialized:
		return "uninitialized"
	case stateReady:
		return "ready"
	case stateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Operator is a grouped 2D convolution. Concurrent first calls initialize it
// once. Calls sharing a stream share its scratch space and must be serialized
// by the caller.
type Operator struct {
	id     string
	cfg    Config
	logger *slog.Logger

	run    sync.RWMutex // held for reading while groups are dispatched
	mu     sync.Mutex
	state  state
	handle dnn.Handle // handle the descriptors belong to
	ds     *DescriptorSet
	algo   AlgorithmChoice
	offs   Offsets
	shapes shapes

	backwardOnce sync.Once
}

// Option configures an Operator.
type Option func(*Operator)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(op *Operator) { op.logger = l }
}

// New creates an operator for cfg. Descriptors are built on first Forward.
func New(cfg Config, opts ...Option) (*Operator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new convolution: %w", err)
	}
	op := &Operator{
		id:     uuid.NewString(),
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(op)
	}
	return op, nil
}

// ID returns the operator's unique identifier.
func (op *Operator) ID() string {
	return op.id
}

// Config returns the operator's configuration.
func (op *Operator) Config() Config {
	return op.cfg
}

// State returns "uninitialized", "ready" or "closed".
func (op *Operator) State() string {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.state.String()
}

// Algorithm returns the selected algorithm. ok is false before initialization.
func (op *Operator) Algorithm() (choice AlgorithmChoice, ok bool) {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.algo, op.state == stateReady
}

// Offsets returns the per-group offsets. ok is false before initialization.
func (op *Operator) Offsets() (offs Offsets, ok bool) {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.offs, op.state == stateReady
}

// Forward computes out[0] = conv(in[0], in[1]) + in[2] group by group.
//
// in holds data [N,C,H,W], weight [K,C/G,KH,KW] and, unless NoBias is set,
// bias [K]. out holds one [N,K,OH,OW] tensor. All operands must be
// contiguous. req may be nil, which means ReqWriteTo.
func (op *Operator) Forward(ctx *opctx.Context, in []*tensor.RawTensor, req []OpReq, out []*tensor.RawTensor) {
	s := op.validate(ctx, in, req, out)
	if len(req) > 0 && req[0] == ReqNull {
		return
	}

	op.run.RLock()
	defer op.run.RUnlock()

	h := ctx.Handle()
	ds, choice, offs := op.ensureInitialized(h, s)

	ws := ctx.RequestWorkspace(choice.WorkspaceElements, s.dtype)
	defer ctx.ReleaseWorkspace(ws)

	var bias *tensor.RawTensor
	if ds.Bias != nil {
		bias = in[2]
	}
	for g := 0; g < op.cfg.NumGroup; g++ {
		op.forwardGroup(h, ds, choice, offs, g, in[0], in[1], bias, out[0], ws)
	}
}

func (op *Operator) forwardGroup(h dnn.Handle, ds *DescriptorSet, choice AlgorithmChoice, offs Offsets, g int,
	data, weight, bias, output, ws *tensor.RawTensor,
) {
	x := data.MustView(g*offs.Data, ds.Input.Shape(), ds.Input.StrideSlice())
	defer x.Release()
	wShape := ds.Filter.Shape()
	w := weight.MustView(g*offs.Weight, wShape, wShape.ComputeStrides())
	defer w.Release()
	y := output.MustView(g*offs.Out, ds.Output.Shape(), ds.Output.StrideSlice())
	defer y.Release()

	op.check("ConvolutionForward", h.ConvolutionForward(1, ds.Input, x, ds.Filter, w, ds.Conv,
		choice.Algo, ws, choice.WorkspaceBytes, 0, ds.Output, y))

	if bias == nil {
		return
	}
	b := bias.MustView(g*offs.Bias, ds.Bias.Shape(), ds.Bias.StrideSlice())
	defer b.Release()
	op.check("AddTensor", h.AddTensor(ds.AddMode, 1, ds.Bias, b, 1, ds.Output, y))
}

// ensureInitialized builds descriptors, algorithm and offsets on the first
// call and returns the cached ones afterwards.
func (op *Operator) ensureInitialized(h dnn.Handle, s shapes) (*DescriptorSet, AlgorithmChoice, Offsets) {
	op.mu.Lock()
	defer op.mu.Unlock()

	switch op.state {
	case stateClosed:
		op.require(false, "forward on a closed operator")
	case stateReady:
		op.require(op.handle == h, "descriptors belong to handle %s, called with %s", op.handle.Name(), h.Name())
		op.require(op.shapes == s, "operand shapes %+v differ from %+v seen at initialization", s, op.shapes)
		return op.ds, op.algo, op.offs
	}

	ds := op.buildDescriptors(h, s)
	complete := false
	defer func() {
		if !complete {
			if err := ds.release(h); err != nil {
				op.logger.Warn("release after failed init", "op", op.id, "err", err)
			}
		}
	}()
	choice := op.selectAlgorithm(h, ds, op.cfg.WorkspaceLimitBytes(s.dtype))
	complete = true

	op.handle = h
	op.ds = ds
	op.algo = choice
	op.offs = computeOffsets(s, op.cfg.NumGroup, ds.Bias != nil)
	op.shapes = s
	op.state = stateReady

	op.logger.Debug("convolution initialized",
		"op", op.id,
		"backend", h.Name(),
		"groups", op.cfg.NumGroup,
		"filter_format", ds.FilterFormat.String(),
		"add_mode", ds.AddMode.String(),
		"algo", choice.Algo.String(),
		"workspace_bytes", choice.WorkspaceBytes,
		"workspace_limit", op.cfg.WorkspaceLimitBytes(s.dtype),
	)
	return op.ds, op.algo, op.offs
}

// validate checks the operand contract before any backend call and returns
// the observed shapes.
func (op *Operator) validate(ctx *opctx.Context, in []*tensor.RawTensor, req []OpReq, out []*tensor.RawTensor) shapes {
	op.require(ctx != nil && ctx.Stream != nil, "nil execution context")

	want := 3
	if op.cfg.NoBias {
		want = 2
	}
	op.require(len(in) == want, "expected %d inputs with no_bias=%t, got %d", want, op.cfg.NoBias, len(in))
	op.require(len(out) == 1, "expected 1 output, got %d", len(out))
	op.require(req == nil || len(req) == len(out), "%d requests for %d outputs", len(req), len(out))
	if len(req) > 0 {
		op.require(req[0] != ReqAddTo, "request %s is not supported", req[0])
		op.require(req[0] >= ReqNull && req[0] <= ReqWriteInplace, "unknown request %d", int(req[0]))
	}

	names := [...]string{"data", "weight", "bias"}
	for i, t := range in {
		op.require(t != nil, "%s is nil", names[i])
		op.require(t.IsContiguous(), "%s is not contiguous", names[i])
	}
	op.require(out[0] != nil, "output is nil")
	op.require(out[0].IsContiguous(), "output is not contiguous")

	data, weight, output := in[0], in[1], out[0]
	op.require(len(data.Shape()) == 4, "data must be 4D, got %v", data.Shape())
	op.require(len(weight.Shape()) == 4, "weight must be 4D, got %v", weight.Shape())
	op.require(len(output.Shape()) == 4, "output must be 4D, got %v", output.Shape())

	dtype := data.DType()
	op.require(weight.DType() == dtype && output.DType() == dtype, "mixed data types %s/%s/%s",
		dtype, weight.DType(), output.DType())

	g := op.cfg.NumGroup
	n, c, h, w := data.Shape().NCHW()
	k, wc, kh, kw := weight.Shape().NCHW()
	op.require(c%g == 0, "%d input channels not divisible by %d groups", c, g)
	op.require(k == op.cfg.NumFilter, "weight has %d filters, configured %d", k, op.cfg.NumFilter)
	op.require(wc == c/g, "weight has %d channels per filter, want %d", wc, c/g)
	op.require(kh == op.cfg.Kernel[0] && kw == op.cfg.Kernel[1], "weight kernel %dx%d, configured %v", kh, kw, op.cfg.Kernel)

	oh, ow := op.cfg.OutputSize(h, w)
	op.require(oh >= 1 && ow >= 1, "input %dx%d too small for kernel %v with pad %v", h, w, op.cfg.Kernel, op.cfg.Pad)
	op.require(output.Shape().Equal(tensor.Shape{n, k, oh, ow}), "output is %v, want %v",
		output.Shape(), tensor.Shape{n, k, oh, ow})

	s := shapes{n: n, c: c, h: h, w: w, k: k, kh: kh, kw: kw, oh: oh, ow: ow, dtype: dtype}
	if !op.cfg.NoBias {
		bias := in[2]
		op.require(bias.DType() == dtype, "bias is %s, data is %s", bias.DType(), dtype)
		op.require(bias.Shape().Equal(tensor.Shape{k}), "bias is %v, want [%d]", bias.Shape(), k)
		s.bias = k
	}
	return s
}

// Backward does nothing: this operator computes no gradients.
func (op *Operator) Backward(_ *opctx.Context, _, _, _ []*tensor.RawTensor, _ []OpReq, _ []*tensor.RawTensor) {
	op.backwardOnce.Do(func() {
		op.logger.Debug("backward is a no-op", "op", op.id)
	})
}

// Close destroys the descriptors once every running Forward has returned.
// It is safe to call more than once; Forward after Close panics.
func (op *Operator) Close() error {
	op.run.Lock()
	defer op.run.Unlock()
	op.mu.Lock()
	defer op.mu.Unlock()

	if op.state == stateClosed {
		return nil
	}
	var err error
	if op.state == stateReady {
		if err = op.ds.release(op.handle); err != nil {
			op.logger.Warn("release descriptors", "op", op.id, "err", err)
		}
	}
	op.state = stateClosed
	op.handle = nil
	return err
}
