package tensor

import (
	"fmt"
	"math/rand"
)

// FromFloat32 creates a packed Float32 tensor holding a copy of data.
func FromFloat32(shape Shape, data []float32) (*RawTensor, error) {
	raw, err := NewRaw(shape, Float32, CPU)
	if err != nil {
		return nil, err
	}
	if len(data) != raw.NumElements() {
		return nil, fmt.Errorf("from float32: %d values for shape %v (%d elements)", len(data), shape, raw.NumElements())
	}
	copy(raw.AsFloat32(), data)
	return raw, nil
}

// FromFloat64 creates a packed Float64 tensor holding a copy of data.
func FromFloat64(shape Shape, data []float64) (*RawTensor, error) {
	raw, err := NewRaw(shape, Float64, CPU)
	if err != nil {
		return nil, err
	}
	if len(data) != raw.NumElements() {
		return nil, fmt.Errorf("from float64: %d values for shape %v (%d elements)", len(data), shape, raw.NumElements())
	}
	copy(raw.AsFloat64(), data)
	return raw, nil
}

// Fill sets every element addressed by the tensor to value.
// Only floating-point tensors are supported.
func Fill(r *RawTensor, value float64) {
	switch r.DType() {
	case Float32:
		data := r.AsFloat32()
		Walk(r, func(i int) { data[i] = float32(value) })
	case Float64:
		data := r.AsFloat64()
		Walk(r, func(i int) { data[i] = value })
	default:
		panic(fmt.Sprintf("fill: unsupported dtype %s", r.DType()))
	}
}

// Randn creates a packed tensor of the given type with standard normal values.
func Randn(shape Shape, dtype DataType, rng *rand.Rand) (*RawTensor, error) {
	raw, err := NewRaw(shape, dtype, CPU)
	if err != nil {
		return nil, err
	}
	switch dtype {
	case Float32:
		data := raw.AsFloat32()
		for i := range data {
			data[i] = float32(rng.NormFloat64())
		}
	case Float64:
		data := raw.AsFloat64()
		for i := range data {
			data[i] = rng.NormFloat64()
		}
	default:
		return nil, fmt.Errorf("randn: unsupported dtype %s", dtype)
	}
	return raw, nil
}

// Walk calls f with the span index of every logical element of r in
// row-major order.
func Walk(r *RawTensor, f func(i int)) {
	shape := r.Shape()
	strides := r.Strides()
	if len(shape) == 0 {
		f(0)
		return
	}
	idx := make([]int, len(shape))
	for n := r.NumElements(); n > 0; n-- {
		pos := 0
		for d, v := range idx {
			pos += v * strides[d]
		}
		f(pos)
		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < shape[d] {
				break
			}
			idx[d] = 0
		}
	}
}
