//go:build windows

package main

import (
	"fmt"

	"github.com/born-ml/gconv/backend/webgpu"
	"github.com/born-ml/gconv/conv"
)

func backendNames() []string {
	return []string{"cpu", "webgpu"}
}

func newBackend(name string, cpuVersion int) (conv.Handle, error) {
	switch name {
	case "cpu":
		return newCPU(cpuVersion), nil
	case "webgpu":
		if !webgpu.IsAvailable() {
			return nil, fmt.Errorf("webgpu is not available")
		}
		return webgpu.New()
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}
