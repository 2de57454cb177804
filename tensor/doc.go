// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the host tensors the convolution operator reads and
// writes.
//
// # Overview
//
// A RawTensor is a shape, strides and a data type over a reference-counted
// byte buffer. Views share the buffer of the tensor they were taken from, so
// per-group slices of a packed NCHW tensor cost no copy.
//
// # Basic Usage
//
//	import "github.com/born-ml/gconv/tensor"
//
//	func main() {
//	    x, _ := tensor.NewRaw(tensor.Shape{1, 3, 8, 8}, tensor.Float32, tensor.CPU)
//	    tensor.Fill(x, 1)
//
//	    // Second channel of every image, keeping the full batch stride.
//	    c1 := x.MustView(64, tensor.Shape{1, 1, 8, 8}, []int{192, 64, 8, 1})
//	    defer c1.Release()
//	}
package tensor
