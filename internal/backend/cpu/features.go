package cpu

import (
	syscpu "golang.org/x/sys/cpu"
)

// detectFeatures lists the SIMD extensions of the host that the backend
// reports through its capabilities.
func detectFeatures() []string {
	var features []string
	if syscpu.X86.HasSSE41 || syscpu.X86.HasSSE42 {
		features = append(features, "SSE4")
	}
	if syscpu.X86.HasAVX {
		features = append(features, "AVX")
	}
	if syscpu.X86.HasAVX2 {
		features = append(features, "AVX2")
	}
	if syscpu.X86.HasFMA {
		features = append(features, "FMA")
	}
	if syscpu.X86.HasAVX512F {
		features = append(features, "AVX512F")
	}
	if syscpu.ARM64.HasASIMD {
		features = append(features, "ASIMD")
	}
	if syscpu.ARM64.HasFPHP && syscpu.ARM64.HasASIMDHP {
		features = append(features, "FP16")
	}
	return features
}
