package conv

import (
	"errors"
	"fmt"
	"io"

	"github.com/born-ml/gconv/internal/tensor"
	"gopkg.in/yaml.v3"
)

// DefaultWorkspaceMiB is the default workspace budget in mebibytes.
const DefaultWorkspaceMiB = 512

// ErrInvalidConfig is wrapped by every Config validation failure.
var ErrInvalidConfig = errors.New("invalid convolution config")

// Config holds the convolution parameters. It is immutable once passed to New.
type Config struct {
	Kernel       [2]int `yaml:"kernel"`     // KH, KW
	Stride       [2]int `yaml:"stride"`     // SH, SW
	Pad          [2]int `yaml:"pad"`        // PH, PW
	NumFilter    int    `yaml:"num_filter"` // Output channels K
	NumGroup     int    `yaml:"num_group"`  // Groups G, divides C and K
	WorkspaceMiB int    `yaml:"workspace"`  // Scratch budget for algorithm selection
	NoBias       bool   `yaml:"no_bias"`
}

// DefaultConfig returns a config with unit stride, no padding, one group and
// the default workspace budget. Kernel and NumFilter must still be set.
func DefaultConfig() Config {
	return Config{
		Stride:       [2]int{1, 1},
		NumGroup:     1,
		WorkspaceMiB: DefaultWorkspaceMiB,
	}
}

// LoadConfig decodes a YAML config on top of DefaultConfig and validates it.
// Unknown keys are rejected.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the parameters that do not depend on operand shapes.
// The input channel count is checked against NumGroup on first Forward.
func (c Config) Validate() error {
	switch {
	case c.Kernel[0] < 1 || c.Kernel[1] < 1:
		return fmt.Errorf("%w: kernel %v", ErrInvalidConfig, c.Kernel)
	case c.Stride[0] < 1 || c.Stride[1] < 1:
		return fmt.Errorf("%w: stride %v", ErrInvalidConfig, c.Stride)
	case c.Pad[0] < 0 || c.Pad[1] < 0:
		return fmt.Errorf("%w: pad %v", ErrInvalidConfig, c.Pad)
	case c.NumFilter < 1:
		return fmt.Errorf("%w: num_filter %d", ErrInvalidConfig, c.NumFilter)
	case c.NumGroup < 1:
		return fmt.Errorf("%w: num_group %d", ErrInvalidConfig, c.NumGroup)
	case c.NumFilter%c.NumGroup != 0:
		return fmt.Errorf("%w: num_filter %d not divisible by num_group %d", ErrInvalidConfig, c.NumFilter, c.NumGroup)
	case c.WorkspaceMiB < 0:
		return fmt.Errorf("%w: workspace %d", ErrInvalidConfig, c.WorkspaceMiB)
	}
	return nil
}

// WorkspaceElements converts the workspace budget into elements of dtype.
func (c Config) WorkspaceElements(dtype tensor.DataType) int {
	return (c.WorkspaceMiB << 20) / dtype.Size()
}

// WorkspaceLimitBytes is the byte limit handed to algorithm selection:
// the element budget of dtype converted back to bytes.
func (c Config) WorkspaceLimitBytes(dtype tensor.DataType) int {
	return c.WorkspaceElements(dtype) * dtype.Size()
}

// OutputSize returns the spatial output size for an h x w input.
func (c Config) OutputSize(h, w int) (oh, ow int) {
	oh = (h+2*c.Pad[0]-c.Kernel[0])/c.Stride[0] + 1
	ow = (w+2*c.Pad[1]-c.Kernel[1])/c.Stride[1] + 1
	return oh, ow
}
