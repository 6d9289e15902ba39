package cmd

import (
	"errors"
	"fmt"

	"github.com/achilleasa/wavefront/renderer"
	"github.com/achilleasa/wavefront/tracer"
	"github.com/achilleasa/wavefront/tracer/emulated"
	"github.com/achilleasa/wavefront/tracer/opencl"
	"github.com/achilleasa/wavefront/tracer/opencl/device"
	"github.com/achilleasa/wavefront/tracer/split"
	"github.com/urfave/cli"
)

// Select the device to render with. Opencl devices that cannot run the split
// kernels with the given options are skipped. The returned function releases
// any device-level resources.
func selectDevice(ctx *cli.Context, opts renderer.Options) (tracer.Device, func(), error) {
	backend := ctx.String("device")
	switch backend {
	case "emulated":
		return newEmulatedDevice(ctx), func() {}, nil
	case "opencl", "auto":
		dev, err := opencl.Select(deviceTypeMask(ctx.String("device-type")), ctx.String("device-name"), deviceRequirements(opts.LocalSize, opts.Features), ctx.String("kernel-source"))
		if err == nil {
			return dev, dev.Close, nil
		}
		if backend == "opencl" {
			return nil, nil, err
		}

		if !errors.Is(err, opencl.ErrMissingKernelSource) && !errors.Is(err, opencl.ErrDeviceNotFound) {
			logger.Warningf("opencl device unavailable: %v", err)
		}
		logger.Notice("falling back to the emulated device")
		return newEmulatedDevice(ctx), func() {}, nil
	}

	return nil, nil, fmt.Errorf("unknown device backend %q", backend)
}

func newEmulatedDevice(ctx *cli.Context) *emulated.Device {
	return emulated.New(emulated.Options{
		MemorySize: int64(ctx.Int("emulated-memory")) << 20,
		Workers:    ctx.Int("workers"),
	})
}

// Get the resources a device needs to run one work group of the split kernels.
func deviceRequirements(localSize [2]int, features tracer.RequestedFeatures) device.Requirements {
	if localSize[0] <= 0 || localSize[1] <= 0 {
		localSize = split.DefaultLocalSize
	}
	return device.Requirements{
		LocalSize:   localSize,
		BytesPerRay: split.BytesPerRay(features.ClosureCount(), renderer.PerThreadOutputSize),
	}
}

func deviceTypeMask(name string) device.DeviceType {
	switch name {
	case "cpu":
		return device.CpuDevice
	case "gpu":
		return device.GpuDevice
	}
	return device.AllDevices
}
