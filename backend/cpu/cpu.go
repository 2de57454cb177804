// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/born-ml/gconv/internal/backend/cpu"
	"github.com/born-ml/gconv/internal/dnn"
	"github.com/born-ml/gconv/internal/parallel"
)

// Backend represents the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Option configures a Backend.
type Option = internalcpu.Option

// Compile-time check that Backend implements dnn.Handle.
var _ dnn.Handle = (*Backend)(nil)

// Forward algorithms offered by the CPU backend, fastest first.
const (
	AlgoGEMM                = dnn.AlgoGEMM
	AlgoImplicitPrecompGEMM = dnn.AlgoImplicitPrecompGEMM
	AlgoImplicitGEMM        = dnn.AlgoImplicitGEMM
)

// New creates a new CPU backend.
//
// Example:
//
//	import (
//	    "github.com/born-ml/gconv/backend/cpu"
//	    "github.com/born-ml/gconv/conv"
//	)
//
//	func main() {
//	    stream := conv.NewStream(cpu.New(cpu.WithVersion(3000)))
//	    defer stream.Close()
//	}
func New(opts ...Option) *Backend {
	return internalcpu.New(opts...)
}

// WithVersion emulates backend revision v.
func WithVersion(v int) Option {
	return internalcpu.WithVersion(v)
}

// WithAlgorithms restricts the forward algorithms the backend offers.
func WithAlgorithms(algos ...dnn.FwdAlgo) Option {
	return internalcpu.WithAlgorithms(algos...)
}

// WithWorkers bounds the goroutines a compute call fans out to.
// Zero or one runs sequentially.
func WithWorkers(n int) Option {
	cfg := parallel.DefaultConfig()
	cfg.NumWorkers = n
	cfg.Enabled = n > 1
	return internalcpu.WithParallel(cfg)
}
