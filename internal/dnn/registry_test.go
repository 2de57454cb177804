package dnn

import (
	"errors"
	"testing"

	"github.com/born-ml/gconv/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCaps(version int) Capabilities {
	caps := CapabilitiesForVersion(version)
	caps.DTypes = map[tensor.DataType]bool{tensor.Float32: true}
	caps.Algorithms = []FwdAlgo{AlgoImplicitGEMM}
	return caps
}

func TestCapabilitiesForVersion(t *testing.T) {
	tests := []struct {
		version      int
		filterFormat bool
		legacyAdd    bool
	}{
		{2000, false, true},
		{3000, false, true},
		{4000, false, false},
		{5000, true, false},
		{7605, true, false},
	}
	for _, tt := range tests {
		caps := CapabilitiesForVersion(tt.version)
		assert.Equal(t, tt.filterFormat, caps.FilterFormat, "version %d", tt.version)
		assert.Equal(t, tt.legacyAdd, caps.LegacyAddTensor, "version %d", tt.version)
	}
}

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry(testCaps(5000))

	x, err := r.CreateTensorDescriptor()
	require.NoError(t, err)
	w, err := r.CreateFilterDescriptor()
	require.NoError(t, err)
	conv, err := r.CreateConvolutionDescriptor()
	require.NoError(t, err)
	assert.Equal(t, 3, r.Live())

	require.NoError(t, r.SetTensor4dDescriptor(x, FormatNCHW, tensor.Float32, 1, 3, 8, 8))
	ns, cs, hs, ws := x.Strides()
	assert.Equal(t, []int{192, 64, 8, 1}, []int{ns, cs, hs, ws})
	assert.Equal(t, FormatNCHW, x.Format())

	require.NoError(t, r.SetFilter4dDescriptor(w, tensor.Float32, FormatNCHW, 4, 3, 3, 3))
	require.NoError(t, r.SetConvolution2dDescriptor(conv, 1, 1, 1, 1, 1, 1, CrossCorrelation))

	n, c, h, wd, err := r.GetConvolution2dForwardOutputDim(conv, x, w)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4, 8, 8}, []int{n, c, h, wd})

	require.NoError(t, r.DestroyTensorDescriptor(x))
	require.Error(t, r.CheckLeaks("Close"))
	require.NoError(t, r.DestroyFilterDescriptor(w))
	require.NoError(t, r.DestroyConvolutionDescriptor(conv))
	assert.Equal(t, 0, r.Live())
	assert.NoError(t, r.CheckLeaks("Close"))

	err = r.DestroyTensorDescriptor(x)
	assert.ErrorIs(t, err, ErrBadParam, "double destroy must fail")
}

func TestRegistryRejectsBadParams(t *testing.T) {
	r := NewRegistry(testCaps(5000))
	x, _ := r.CreateTensorDescriptor()
	w, _ := r.CreateFilterDescriptor()
	conv, _ := r.CreateConvolutionDescriptor()

	assert.ErrorIs(t, r.SetTensor4dDescriptor(x, FormatNCHW, tensor.Float32, 1, 0, 8, 8), ErrBadParam)
	assert.ErrorIs(t, r.SetTensor4dDescriptor(x, FormatNCHW, tensor.Float64, 1, 1, 8, 8), ErrNotSupported)
	assert.ErrorIs(t, r.SetTensor4dDescriptorEx(x, tensor.Float32, 1, 1, 8, 8, 64, 64, 0, 1), ErrBadParam)
	assert.ErrorIs(t, r.SetFilter4dDescriptor(w, tensor.Float32, FormatUnspecified, 1, 1, 3, 3), ErrBadParam)
	assert.ErrorIs(t, r.SetConvolution2dDescriptor(conv, -1, 0, 1, 1, 1, 1, CrossCorrelation), ErrBadParam)
	assert.ErrorIs(t, r.SetConvolution2dDescriptor(conv, 0, 0, 0, 1, 1, 1, CrossCorrelation), ErrBadParam)
	assert.ErrorIs(t, r.SetConvolution2dDescriptor(conv, 0, 0, 1, 1, 0, 1, CrossCorrelation), ErrBadParam)

	_, _, _, _, err := r.GetConvolution2dForwardOutputDim(conv, x, w)
	assert.ErrorIs(t, err, ErrNotInitialized)

	other := NewRegistry(testCaps(5000))
	assert.ErrorIs(t, other.DestroyTensorDescriptor(x), ErrBadParam, "foreign descriptor")
}

func TestRegistryLegacyFilterFormat(t *testing.T) {
	r := NewRegistry(testCaps(4000))
	w, _ := r.CreateFilterDescriptor()

	err := r.SetFilter4dDescriptor(w, tensor.Float32, FormatNCHW, 2, 2, 3, 3)
	assert.ErrorIs(t, err, ErrNotSupported)

	require.NoError(t, r.SetFilter4dDescriptor(w, tensor.Float32, FormatUnspecified, 2, 2, 3, 3))
	assert.Equal(t, FormatNCHW, w.Format(), "unspecified filter layout implies NCHW")
}

func TestValidateAddModes(t *testing.T) {
	newPair := func(r *Registry) (*TensorDescriptor, *TensorDescriptor) {
		b, _ := r.CreateTensorDescriptor()
		y, _ := r.CreateTensorDescriptor()
		require.NoError(t, r.SetTensor4dDescriptor(b, FormatNCHW, tensor.Float32, 1, 2, 1, 1))
		require.NoError(t, r.SetTensor4dDescriptorEx(y, tensor.Float32, 2, 2, 4, 4, 64, 16, 4, 1))
		return b, y
	}

	modern := NewRegistry(testCaps(5000))
	b, y := newPair(modern)
	assert.NoError(t, modern.ValidateAdd("AddTensor", AddFullTensor, b, y))
	assert.ErrorIs(t, modern.ValidateAdd("AddTensor", AddSameC, b, y), ErrNotSupported)

	legacy := NewRegistry(testCaps(3000))
	b, y = newPair(legacy)
	assert.NoError(t, legacy.ValidateAdd("AddTensor", AddSameC, b, y))
	assert.ErrorIs(t, legacy.ValidateAdd("AddTensor", AddFullTensor, b, y), ErrNotSupported)
}

func TestValidateForwardShapeMismatch(t *testing.T) {
	r := NewRegistry(testCaps(5000))
	x, _ := r.CreateTensorDescriptor()
	y, _ := r.CreateTensorDescriptor()
	w, _ := r.CreateFilterDescriptor()
	conv, _ := r.CreateConvolutionDescriptor()
	require.NoError(t, r.SetTensor4dDescriptor(x, FormatNCHW, tensor.Float32, 1, 3, 8, 8))
	require.NoError(t, r.SetTensor4dDescriptor(y, FormatNCHW, tensor.Float32, 1, 4, 6, 6))
	require.NoError(t, r.SetFilter4dDescriptor(w, tensor.Float32, FormatNCHW, 4, 3, 3, 3))
	require.NoError(t, r.SetConvolution2dDescriptor(conv, 1, 1, 1, 1, 1, 1, CrossCorrelation))

	err := r.ValidateForward("ConvolutionForward", x, w, conv, y)
	require.Error(t, err)
	assert.Equal(t, StatusBadParam, StatusOf(err))
	assert.Contains(t, err.Error(), "ConvolutionForward")
}

func TestErrorFormatting(t *testing.T) {
	err := Errorf("GetConvolutionForwardAlgorithm", StatusNotSupported, "no algorithm within %d bytes", 0)
	assert.Equal(t, "GetConvolutionForwardAlgorithm: DNN_STATUS_NOT_SUPPORTED: no algorithm within 0 bytes", err.Error())
	assert.True(t, errors.Is(err, ErrNotSupported))
	assert.False(t, errors.Is(err, ErrBadParam))

	assert.Equal(t, StatusSuccess, StatusOf(nil))
	assert.Equal(t, StatusInternalError, StatusOf(errors.New("boom")))
}
