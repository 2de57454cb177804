package tensor_test

import (
	"math/rand"
	"testing"

	"github.com/born-ml/gconv/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupView(t *testing.T) {
	x, err := tensor.FromFloat32(tensor.Shape{1, 2, 2, 2}, []float32{1, 2, 3, 4, 5, 6, 7, 8})
	require.NoError(t, err)

	c1 := x.MustView(4, tensor.Shape{1, 1, 2, 2}, []int{8, 4, 2, 1})
	defer c1.Release()

	tensor.Fill(c1, 0)
	assert.Equal(t, []float32{1, 2, 3, 4, 0, 0, 0, 0}, x.AsFloat32())
}

func TestRandnIsSeeded(t *testing.T) {
	a, err := tensor.Randn(tensor.Shape{4}, tensor.Float64, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	b, err := tensor.Randn(tensor.Shape{4}, tensor.Float64, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	assert.Equal(t, a.AsFloat64(), b.AsFloat64())
}

func TestParseDataType(t *testing.T) {
	dt, ok := tensor.ParseDataType("float64")
	require.True(t, ok)
	assert.Equal(t, tensor.Float64, dt)

	_, ok = tensor.ParseDataType("bfloat16")
	assert.False(t, ok)
}
