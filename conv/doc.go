// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package conv provides a grouped 2D convolution forward operator that
// dispatches to a DNN backend.
//
// # Overview
//
// The operator builds its backend descriptors once, from the shapes of the
// first Forward call, and asks the backend for the fastest forward algorithm
// whose workspace fits the configured budget. Each Forward borrows that
// workspace from the stream's scratch space and runs one backend convolution
// per group, plus a bias add unless NoBias is set.
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/gconv/backend/cpu"
//	    "github.com/born-ml/gconv/conv"
//	    "github.com/born-ml/gconv/tensor"
//	)
//
//	func main() {
//	    cfg := conv.DefaultConfig()
//	    cfg.Kernel = [2]int{3, 3}
//	    cfg.Pad = [2]int{1, 1}
//	    cfg.NumFilter = 4
//
//	    op, _ := conv.New(cfg)
//	    defer op.Close()
//
//	    stream := conv.NewStream(cpu.New())
//	    defer stream.Close()
//
//	    x, _ := tensor.NewRaw(tensor.Shape{1, 3, 8, 8}, tensor.Float32, tensor.CPU)
//	    w, _ := tensor.NewRaw(tensor.Shape{4, 3, 3, 3}, tensor.Float32, tensor.CPU)
//	    b, _ := tensor.NewRaw(tensor.Shape{4}, tensor.Float32, tensor.CPU)
//	    y, _ := tensor.NewRaw(tensor.Shape{1, 4, 8, 8}, tensor.Float32, tensor.CPU)
//
//	    op.Forward(conv.NewContext(stream), []*tensor.RawTensor{x, w, b}, nil, []*tensor.RawTensor{y})
//	}
//
// # Errors
//
// Configuration errors are returned by New and LoadConfig. Failures during
// Forward are not recoverable: a failing backend call panics with a
// *FatalError naming the call, and operands that break the contract panic
// with a *PreconditionError before any backend call is made.
//
// # Thread Safety
//
// Concurrent first calls initialize the operator once. Calls sharing a stream
// share its scratch space and must be serialized by the caller.
package conv
