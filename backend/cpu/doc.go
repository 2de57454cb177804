// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go DNN backend for the convolution operator.
//
// # Overview
//
// This package implements the backend contract on host memory with:
//   - Pure Go implementation (no CGO)
//   - Three forward algorithms: im2col GEMM, implicit GEMM with a
//     precomputed offset table, and plain implicit GEMM
//   - Workspace sizing and algorithm selection under a byte budget
//   - Float32 and Float64 support
//   - Emulation of older backend revisions (filter layout argument, legacy
//     bias add mode)
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/gconv/backend/cpu"
//	    "github.com/born-ml/gconv/conv"
//	)
//
//	func main() {
//	    stream := conv.NewStream(cpu.New())
//	    defer stream.Close()
//	}
//
// # Thread Safety
//
// The CPU backend is safe for concurrent use. Descriptor bookkeeping is
// guarded by a mutex and compute calls share no mutable state.
package cpu
