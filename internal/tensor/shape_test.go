package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShapeComputeStrides(t *testing.T) {
	tests := []struct {
		shape Shape
		want  []int
	}{
		{Shape{}, []int{}},
		{Shape{5}, []int{1}},
		{Shape{2, 3}, []int{3, 1}},
		{Shape{1, 4, 8, 8}, []int{256, 64, 8, 1}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.shape.ComputeStrides(), "shape %v", tt.shape)
	}
}

func TestShapeNCHW(t *testing.T) {
	n, c, h, w := Shape{1, 3, 8, 6}.NCHW()
	assert.Equal(t, []int{1, 3, 8, 6}, []int{n, c, h, w})

	assert.Panics(t, func() { Shape{3, 8}.NCHW() })
}

func TestSpan(t *testing.T) {
	assert.Equal(t, 24, Span(Shape{2, 3, 4}, Shape{2, 3, 4}.ComputeStrides()))
	assert.Equal(t, 1, Span(Shape{}, nil))
	// Per-group input slice: N=2, C/G=2, H=W=8 inside a 4-channel tensor.
	assert.Equal(t, 256+128, Span(Shape{2, 2, 8, 8}, []int{256, 64, 8, 1}))
}

func TestDataTypeRoundTrip(t *testing.T) {
	for _, dt := range []DataType{Float32, Float64} {
		got, ok := ParseDataType(dt.String())
		assert.True(t, ok)
		assert.Equal(t, dt, got)
	}
	_, ok := ParseDataType("float16")
	assert.False(t, ok)
	assert.Equal(t, 4, Float32.Size())
	assert.Equal(t, 8, Float64.Size())
}
