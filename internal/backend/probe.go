package backend

import (
	"fmt"
	"log/slog"
)

// probe attempts to open one backend. A failed probe returns an error
// describing why the backend is unavailable; selection moves on to the
// next candidate.
type probe struct {
	name string
	open func() (Device, error)
}

// selectConfig carries selection knobs. The zero value probes the full
// preference order with the CPU fallback enabled.
type selectConfig struct {
	disableCPU bool
	extra      []probe
}

// SelectOption customizes backend selection.
type SelectOption func(*selectConfig)

// WithoutCPUFallback disables the CPU fallback, making selection fail
// with ErrNoBackendAvailable when no GPU backend opens. Used to surface
// probe failures in environments that require a GPU.
func WithoutCPUFallback() SelectOption {
	return func(c *selectConfig) { c.disableCPU = true }
}

// WithDevice prepends an already-open device to the probe order. It
// takes precedence over every built-in backend.
func WithDevice(d Device) SelectOption {
	return func(c *selectConfig) {
		c.extra = append(c.extra, probe{
			name: d.Name(),
			open: func() (Device, error) { return d, nil },
		})
	}
}

// Select probes backends in fixed preference order, CUDA then Metal
// then Vulkan, and falls back to the CPU when none opens. The order is
// deliberate: on machines exposing several APIs the native one wins.
func Select(logger *slog.Logger, opts ...SelectOption) (Device, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var cfg selectConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	probes := append([]probe{}, cfg.extra...)
	probes = append(probes,
		probe{name: "cuda", open: openCUDA},
		probe{name: "metal", open: openMetal},
		probe{name: "vulkan", open: openVulkan},
	)
	if !cfg.disableCPU {
		probes = append(probes, probe{name: "cpu", open: func() (Device, error) {
			return NewCPU(), nil
		}})
	}

	for _, p := range probes {
		dev, err := p.open()
		if err != nil {
			logger.Debug("backend probe failed", "backend", p.name, "error", err)
			continue
		}
		logger.Info("backend selected",
			"backend", dev.Name(),
			"kind", dev.Kind().String(),
			"vendor", dev.Describe().Vendor.String(),
		)
		return dev, nil
	}
	return nil, fmt.Errorf("probed %d backends: %w", len(probes), ErrNoBackendAvailable)
}
