//go:build windows

package webgpu

import (
	"math/rand"
	"testing"

	"github.com/born-ml/gconv/internal/backend/cpu"
	"github.com/born-ml/gconv/internal/dnn"
	"github.com/born-ml/gconv/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	backend, err := New()
	if err != nil {
		t.Logf("WebGPU not available: %v", err)
		t.Skip("WebGPU not available on this system")
	}
	return backend
}

func TestIsAvailable(t *testing.T) {
	t.Logf("WebGPU available: %v", IsAvailable())
}

func TestNew(t *testing.T) {
	backend := newTestBackend(t)
	t.Logf("Backend name: %s", backend.Name())

	assert.Equal(t, tensor.WebGPU, backend.Device())
	caps := backend.Capabilities()
	assert.Equal(t, Version, caps.Version)
	assert.True(t, caps.FilterFormat)
	assert.True(t, caps.SupportsDType(tensor.Float32))
	assert.False(t, caps.SupportsDType(tensor.Float64))
	assert.Equal(t, []dnn.FwdAlgo{dnn.AlgoDirect}, caps.Algorithms)

	require.NoError(t, backend.Close())
	assert.Error(t, backend.Close())
}

// setup describes one group of a grouped convolution on h.
func setup(t *testing.T, h dnn.Handle, n, c, hh, w, k, groups int) (x, y *dnn.TensorDescriptor, f *dnn.FilterDescriptor, conv *dnn.ConvolutionDescriptor) {
	t.Helper()
	cg, kg := c/groups, k/groups
	var err error
	x, err = h.CreateTensorDescriptor()
	require.NoError(t, err)
	y, err = h.CreateTensorDescriptor()
	require.NoError(t, err)
	f, err = h.CreateFilterDescriptor()
	require.NoError(t, err)
	conv, err = h.CreateConvolutionDescriptor()
	require.NoError(t, err)
	require.NoError(t, h.SetTensor4dDescriptorEx(x, tensor.Float32, n, cg, hh, w, c*hh*w, hh*w, w, 1))
	require.NoError(t, h.SetTensor4dDescriptorEx(y, tensor.Float32, n, kg, hh, w, k*hh*w, hh*w, w, 1))
	require.NoError(t, h.SetFilter4dDescriptor(f, tensor.Float32, dnn.FormatNCHW, kg, cg, 3, 3))
	require.NoError(t, h.SetConvolution2dDescriptor(conv, 1, 1, 1, 1, 1, 1, dnn.CrossCorrelation))
	return x, y, f, conv
}

// TestConvolutionForward_MatchesCPU runs the second group of a grouped
// convolution plus bias on both backends.
func TestConvolutionForward_MatchesCPU(t *testing.T) {
	backend := newTestBackend(t)
	defer backend.Close()
	host := cpu.New()

	const n, c, h, w, k, groups = 2, 4, 6, 6, 4, 2
	rng := rand.New(rand.NewSource(1))
	data, _ := tensor.Randn(tensor.Shape{n, c, h, w}, tensor.Float32, rng)
	weight, _ := tensor.Randn(tensor.Shape{k, c / groups, 3, 3}, tensor.Float32, rng)
	bias, _ := tensor.FromFloat32(tensor.Shape{k}, []float32{0.5, -1, 2, 3})

	run := func(hd dnn.Handle, algo dnn.FwdAlgo) []float32 {
		out, _ := tensor.NewRaw(tensor.Shape{n, k, h, w}, tensor.Float32, tensor.CPU)
		xd, yd, fd, cd := setup(t, hd, n, c, h, w, k, groups)
		bd, _ := hd.CreateTensorDescriptor()
		require.NoError(t, hd.SetTensor4dDescriptor(bd, dnn.FormatNCHW, tensor.Float32, 1, k/groups, 1, 1))

		xv := data.MustView(c/groups*h*w, xd.Shape(), xd.StrideSlice())
		wv := weight.MustView(k/groups*c/groups*9, fd.Shape(), fd.Shape().ComputeStrides())
		yv := out.MustView(k/groups*h*w, yd.Shape(), yd.StrideSlice())
		bv := bias.MustView(k/groups, bd.Shape(), bd.StrideSlice())
		require.NoError(t, hd.ConvolutionForward(1, xd, xv, fd, wv, cd, algo, nil, 0, 0, yd, yv))
		require.NoError(t, hd.AddTensor(dnn.AddFullTensor, 1, bd, bv, 1, yd, yv))

		require.NoError(t, hd.DestroyTensorDescriptor(xd))
		require.NoError(t, hd.DestroyTensorDescriptor(yd))
		require.NoError(t, hd.DestroyTensorDescriptor(bd))
		require.NoError(t, hd.DestroyFilterDescriptor(fd))
		require.NoError(t, hd.DestroyConvolutionDescriptor(cd))
		return out.AsFloat32()
	}

	want := run(host, dnn.AlgoImplicitGEMM)
	got := run(backend, dnn.AlgoDirect)
	assert.InDeltaSlice(t, want, got, 1e-4)
	assert.Equal(t, uint64(1), backend.PoolStats().Allocated)
}

func TestGetConvolutionForwardAlgorithm(t *testing.T) {
	backend := newTestBackend(t)
	defer backend.Close()

	x, y, f, conv := setup(t, backend, 1, 2, 4, 4, 2, 1)
	for _, pref := range []dnn.FwdPreference{dnn.PreferNoWorkspace, dnn.PreferFastest, dnn.PreferSpecifyWorkspaceLimit} {
		algo, err := backend.GetConvolutionForwardAlgorithm(x, f, conv, y, pref, 0)
		require.NoError(t, err)
		assert.Equal(t, dnn.AlgoDirect, algo)
	}
	size, err := backend.GetConvolutionForwardWorkspaceSize(x, f, conv, y, dnn.AlgoDirect)
	require.NoError(t, err)
	assert.Zero(t, size)

	_, err = backend.GetConvolutionForwardWorkspaceSize(x, f, conv, y, dnn.AlgoGEMM)
	assert.ErrorIs(t, err, dnn.ErrNotSupported)

	require.NoError(t, backend.DestroyTensorDescriptor(x))
	require.NoError(t, backend.DestroyTensorDescriptor(y))
	require.NoError(t, backend.DestroyFilterDescriptor(f))
	require.NoError(t, backend.DestroyConvolutionDescriptor(conv))
}
