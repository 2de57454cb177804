// Package cpu implements the host reference backend of the dnn contract:
// descriptor management, algorithm selection with workspace sizing, forward
// convolution and tensor addition on CPU memory.
package cpu

import (
	"slices"
	"sync/atomic"

	"github.com/born-ml/gconv/internal/dnn"
	"github.com/born-ml/gconv/internal/parallel"
	"github.com/born-ml/gconv/internal/tensor"
)

// DefaultVersion is the backend revision emulated unless WithVersion is given.
const DefaultVersion = 5000

// defaultAlgorithms are the forward algorithms of the CPU backend, fastest first.
var defaultAlgorithms = []dnn.FwdAlgo{
	dnn.AlgoGEMM,
	dnn.AlgoImplicitPrecompGEMM,
	dnn.AlgoImplicitGEMM,
}

// Verify that CPUBackend implements dnn.Handle.
var _ dnn.Handle = (*CPUBackend)(nil)

// CPUBackend implements dnn.Handle on host memory.
type CPUBackend struct {
	*dnn.Registry

	device tensor.Device
	algos  []dnn.FwdAlgo
	par    parallel.Config
	closed atomic.Bool
}

type options struct {
	version int
	algos   []dnn.FwdAlgo
	par     parallel.Config
}

// Option configures a CPUBackend.
type Option func(*options)

// WithVersion emulates backend revision v. Revisions below 5000 take no filter
// layout argument and revisions below 4000 need AddSameC for bias adds.
func WithVersion(v int) Option {
	return func(o *options) { o.version = v }
}

// WithAlgorithms restricts the forward algorithms the backend offers.
// Unknown algorithms are ignored; the speed ranking is preserved.
func WithAlgorithms(algos ...dnn.FwdAlgo) Option {
	return func(o *options) { o.algos = algos }
}

// WithParallel sets the fan-out configuration used by the compute calls.
func WithParallel(cfg parallel.Config) Option {
	return func(o *options) { o.par = cfg }
}

// New creates a new CPU backend.
func New(opts ...Option) *CPUBackend {
	o := options{
		version: DefaultVersion,
		algos:   defaultAlgorithms,
		par:     parallel.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	algos := make([]dnn.FwdAlgo, 0, len(defaultAlgorithms))
	for _, a := range defaultAlgorithms {
		if slices.Contains(o.algos, a) {
			algos = append(algos, a)
		}
	}

	caps := dnn.CapabilitiesForVersion(o.version)
	caps.DTypes = map[tensor.DataType]bool{
		tensor.Float32: true,
		tensor.Float64: true,
	}
	caps.Algorithms = algos
	caps.Features = detectFeatures()

	return &CPUBackend{
		Registry: dnn.NewRegistry(caps),
		device:   tensor.CPU,
		algos:    algos,
		par:      o.par,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Close releases the handle. It fails if descriptors are still alive.
func (cpu *CPUBackend) Close() error {
	if cpu.closed.Swap(true) {
		return dnn.Errorf("Close", dnn.StatusBadParam, "handle already closed")
	}
	return cpu.CheckLeaks("Close")
}

func (cpu *CPUBackend) checkOpen(call string) error {
	if cpu.closed.Load() {
		return dnn.Errorf(call, dnn.StatusNotInitialized, "handle closed")
	}
	return nil
}

func (cpu *CPUBackend) supports(algo dnn.FwdAlgo) bool {
	return slices.Contains(cpu.algos, algo)
}
