package backend

import "fmt"

// The GPU backends bind to their compute APIs through build-tagged
// shims. This build carries no shims, so every probe reports the
// backend unavailable and selection falls through to the CPU.

func openCUDA() (Device, error) {
	return nil, fmt.Errorf("cuda: driver bindings not built in")
}

func openMetal() (Device, error) {
	return nil, fmt.Errorf("metal: framework bindings not built in")
}

func openVulkan() (Device, error) {
	return nil, fmt.Errorf("vulkan: loader bindings not built in")
}
