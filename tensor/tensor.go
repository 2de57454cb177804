// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"math/rand"

	"github.com/born-ml/gconv/internal/tensor"
)

// RawTensor is a strided view over a shared host buffer.
type RawTensor = tensor.RawTensor

// Shape is a tensor's dimensions.
type Shape = tensor.Shape

// DataType is a tensor's element type.
type DataType = tensor.DataType

// Device is the device a tensor's memory belongs to.
type Device = tensor.Device

// Element types.
const (
	Float32 = tensor.Float32
	Float64 = tensor.Float64
)

// Devices.
const (
	CPU    = tensor.CPU
	WebGPU = tensor.WebGPU
)

// NewRaw creates a zeroed packed tensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// FromFloat32 creates a packed Float32 tensor holding a copy of data.
func FromFloat32(shape Shape, data []float32) (*RawTensor, error) {
	return tensor.FromFloat32(shape, data)
}

// FromFloat64 creates a packed Float64 tensor holding a copy of data.
func FromFloat64(shape Shape, data []float64) (*RawTensor, error) {
	return tensor.FromFloat64(shape, data)
}

// Randn creates a packed tensor with standard normal values.
func Randn(shape Shape, dtype DataType, rng *rand.Rand) (*RawTensor, error) {
	return tensor.Randn(shape, dtype, rng)
}

// Fill sets every element of r to value.
func Fill(r *RawTensor, value float64) {
	tensor.Fill(r, value)
}

// ParseDataType returns the data type named name ("float32" or "float64").
func ParseDataType(name string) (DataType, bool) {
	return tensor.ParseDataType(name)
}
