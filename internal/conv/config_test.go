package conv

import (
	"strings"
	"testing"

	"github.com/born-ml/gconv/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader(`
kernel: [3, 3]
pad: [1, 1]
num_filter: 8
num_group: 2
`))
	require.NoError(t, err)
	assert.Equal(t, [2]int{3, 3}, cfg.Kernel)
	assert.Equal(t, [2]int{1, 1}, cfg.Stride, "default stride")
	assert.Equal(t, [2]int{1, 1}, cfg.Pad)
	assert.Equal(t, 8, cfg.NumFilter)
	assert.Equal(t, 2, cfg.NumGroup)
	assert.Equal(t, DefaultWorkspaceMiB, cfg.WorkspaceMiB)
	assert.False(t, cfg.NoBias)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "kernel: [3, 3]\nnum_filter: 4\ndilate: [2, 2]\n"},
		{"missing kernel", "num_filter: 4\n"},
		{"short kernel", "kernel: [3]\nnum_filter: 4\n"},
		{"groups do not divide filters", "kernel: [3, 3]\nnum_filter: 6\nnum_group: 4\n"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(strings.NewReader(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	valid := DefaultConfig()
	valid.Kernel = [2]int{3, 3}
	valid.NumFilter = 4
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero kernel", func(c *Config) { c.Kernel[1] = 0 }},
		{"zero stride", func(c *Config) { c.Stride[0] = 0 }},
		{"negative pad", func(c *Config) { c.Pad[0] = -1 }},
		{"no filters", func(c *Config) { c.NumFilter = 0 }},
		{"no groups", func(c *Config) { c.NumGroup = 0 }},
		{"indivisible", func(c *Config) { c.NumGroup = 3 }},
		{"negative workspace", func(c *Config) { c.WorkspaceMiB = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			assert.ErrorIs(t, err, ErrInvalidConfig)

			_, err = New(cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestConfigWorkspace(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, (512<<20)/4, cfg.WorkspaceElements(tensor.Float32))
	assert.Equal(t, (512<<20)/8, cfg.WorkspaceElements(tensor.Float64))
	assert.Equal(t, 512<<20, cfg.WorkspaceLimitBytes(tensor.Float32))

	cfg.WorkspaceMiB = 0
	assert.Equal(t, 0, cfg.WorkspaceElements(tensor.Float32))
	assert.Equal(t, 0, cfg.WorkspaceLimitBytes(tensor.Float64))
}

func TestConfigOutputSize(t *testing.T) {
	cfg := Config{Kernel: [2]int{3, 5}, Stride: [2]int{2, 1}, Pad: [2]int{1, 2}}
	oh, ow := cfg.OutputSize(8, 8)
	assert.Equal(t, 4, oh) // (8+2-3)/2+1
	assert.Equal(t, 8, ow) // (8+4-5)/1+1
}
