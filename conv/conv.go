// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package conv

import (
	"io"

	"github.com/born-ml/gconv/internal/conv"
	"github.com/born-ml/gconv/internal/dnn"
	"github.com/born-ml/gconv/internal/opctx"
)

// Operator is a grouped 2D convolution forward operator.
type Operator = conv.Operator

// Config holds the convolution parameters.
type Config = conv.Config

// Option configures an Operator.
type Option = conv.Option

// AlgorithmChoice is the algorithm an operator selected and its workspace.
type AlgorithmChoice = conv.AlgorithmChoice

// Offsets are the per-group element offsets of an operator.
type Offsets = conv.Offsets

// OpReq tells Forward how to store into an output.
type OpReq = conv.OpReq

// FatalError is the panic value of a failed backend call.
type FatalError = conv.FatalError

// PreconditionError is the panic value of an operand contract violation.
type PreconditionError = conv.PreconditionError

// Handle is a DNN backend context, implemented by backend/cpu and backend/webgpu.
type Handle = dnn.Handle

// Stream owns a Handle and the scratch space operators on it share.
type Stream = opctx.Stream

// Context is passed to every Forward call.
type Context = opctx.Context

// Output requests.
const (
	ReqNull         = conv.ReqNull
	ReqWriteTo      = conv.ReqWriteTo
	ReqWriteInplace = conv.ReqWriteInplace
	ReqAddTo        = conv.ReqAddTo
)

// DefaultWorkspaceMiB is the default workspace budget in mebibytes.
const DefaultWorkspaceMiB = conv.DefaultWorkspaceMiB

// ErrInvalidConfig is wrapped by every Config validation failure.
var ErrInvalidConfig = conv.ErrInvalidConfig

// New creates an operator. Descriptors are built on the first Forward.
func New(cfg Config, opts ...Option) (*Operator, error) {
	return conv.New(cfg, opts...)
}

// DefaultConfig returns a config with unit stride, no padding, one group and
// the default workspace budget.
func DefaultConfig() Config {
	return conv.DefaultConfig()
}

// LoadConfig decodes and validates a YAML config.
//
// Example:
//
//	kernel: [3, 3]
//	pad: [1, 1]
//	num_filter: 64
//	num_group: 2
//	workspace: 256
func LoadConfig(r io.Reader) (Config, error) {
	return conv.LoadConfig(r)
}

// WithLogger sets the operator's logger.
var WithLogger = conv.WithLogger

// NewStream creates a stream that takes ownership of h.
func NewStream(h Handle) *Stream {
	return opctx.NewStream(h)
}

// NewContext returns an inference context on s.
func NewContext(s *Stream) *Context {
	return opctx.NewContext(s)
}
