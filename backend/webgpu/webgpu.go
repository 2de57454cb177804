//go:build windows

// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the WebGPU DNN backend for the convolution operator.
//
// Example:
//
//	import (
//	    "github.com/born-ml/gconv/backend/webgpu"
//	    "github.com/born-ml/gconv/conv"
//	)
//
//	func main() {
//	    gpu, err := webgpu.New()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    stream := conv.NewStream(gpu)
//	    defer stream.Close()
//	}
package webgpu

import (
	internalwebgpu "github.com/born-ml/gconv/internal/backend/webgpu"
	"github.com/born-ml/gconv/internal/dnn"
)

// Backend represents the WebGPU backend implementation.
type Backend = internalwebgpu.Backend

// Compile-time check that Backend implements dnn.Handle.
var _ dnn.Handle = (*Backend)(nil)

// New creates a new WebGPU backend.
//
// Returns an error if WebGPU initialization fails (e.g., no compatible GPU).
// Close the backend, or the stream owning it, to free GPU resources.
func New() (*Backend, error) {
	return internalwebgpu.New()
}

// IsAvailable checks if WebGPU is available on the current system.
func IsAvailable() bool {
	return internalwebgpu.IsAvailable()
}
