//go:build !windows

package main

import (
	"fmt"

	"github.com/born-ml/gconv/conv"
)

func backendNames() []string {
	return []string{"cpu"}
}

func newBackend(name string, cpuVersion int) (conv.Handle, error) {
	if name != "cpu" {
		return nil, fmt.Errorf("backend %q is not available on this platform", name)
	}
	return newCPU(cpuVersion), nil
}
