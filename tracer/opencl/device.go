package opencl

import (
	"fmt"

	"github.com/achilleasa/gopencl/v1.2/cl"
	"github.com/achilleasa/wavefront/log"
	"github.com/achilleasa/wavefront/tracer"
	"github.com/achilleasa/wavefront/tracer/opencl/device"
)

const (
	// Prefix shared by all split kernel entry points in the CL sources.
	kernelPrefix = "kernel_ocl_path_trace_"

	// The data init kernel is not part of the path iteration stages.
	dataInitKernel = "data_init"

	// Size reserved for the device-side KernelGlobals struct.
	sizeofKernelGlobals = 1024
)

// Device exposes an opencl device to the split kernel scheduler.
type Device struct {
	logger log.Logger

	device *device.Device

	// Features of the most recently requested split kernel; the data init
	// kernel is built from the same program.
	features    tracer.RequestedFeatures
	hasFeatures bool

	dataInit     *device.Kernel
	dataInitOpts string
}

// Initialize dev with the split kernel sources found in programFile and wrap
// it as a tracer.Device.
func New(dev *device.Device, programFile string) (*Device, error) {
	if programFile == "" {
		return nil, ErrMissingKernelSource
	}

	err := dev.Init(programFile)
	if err != nil {
		return nil, err
	}

	return &Device{
		logger: log.New(fmt.Sprintf("opencl tracer (%s)", dev.Name)),
		device: dev,
	}, nil
}

// Select the first device matching the type mask and name filter that can
// run the split kernels with the given requirements.
func Select(typeMask device.DeviceType, matchName string, req device.Requirements, programFile string) (*Device, error) {
	devList, err := device.SelectDevices(typeMask, matchName, req)
	if err != nil {
		return nil, err
	}
	if len(devList) == 0 {
		return nil, ErrDeviceNotFound
	}

	return New(devList[0], programFile)
}

// Get device name.
func (d *Device) Name() string {
	return d.device.Name
}

// Get the device global memory size in bytes.
func (d *Device) MemorySize() int64 {
	return int64(d.device.MemorySize)
}

// Get the size of the KernelGlobals struct.
func (d *Device) KernelGlobalsSize() int {
	return sizeofKernelGlobals
}

// Resolve a split kernel stage from the program specialised for features.
func (d *Device) SplitKernel(name string, features tracer.RequestedFeatures) (tracer.Kernel, error) {
	if !d.device.Initialized() {
		return nil, ErrNotInitialized
	}

	opts := features.BuildOptions()
	k, err := d.device.KernelWithOptions(kernelPrefix+name, opts)
	if err != nil {
		return nil, err
	}

	d.features = features
	d.hasFeatures = true

	d.logger.Debugf("loaded kernel %s (options: %s)", name, opts)
	return &kernel{name: name, kernel: k}, nil
}

// Allocate a read-write device buffer.
func (d *Device) Buffer(name string, size int) (tracer.Buffer, error) {
	if !d.device.Initialized() {
		return nil, ErrNotInitialized
	}

	buf := d.device.Buffer(name)
	err := buf.Allocate(size, cl.MEM_READ_WRITE)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Run the data init kernel that seeds the split state for a tile.
func (d *Device) InitTileData(dims tracer.Dimensions, tile *tracer.RenderTile, numElements, numParallelSamples int, kernelData tracer.Buffer, bufs *tracer.SplitBuffers) error {
	if !d.hasFeatures {
		return ErrNoFeatures
	}
	if !d.device.Initialized() {
		return ErrNotInitialized
	}

	k, err := d.dataInitKernel()
	if err != nil {
		return err
	}

	args := make([]interface{}, 0, 20)
	for _, b := range []tracer.Buffer{bufs.KernelGlobals, kernelData, bufs.SplitData} {
		clBuf, err := asBuffer(b)
		if err != nil {
			return err
		}
		args = append(args, clBuf)
	}

	rayState, err := asBuffer(bufs.RayState)
	if err != nil {
		return err
	}
	output, err := asBuffer(tile.Output)
	if err != nil {
		return err
	}
	queueIndex, err := asBuffer(bufs.QueueIndex)
	if err != nil {
		return err
	}
	useQueuesFlag, err := asBuffer(bufs.UseQueuesFlag)
	if err != nil {
		return err
	}

	// The work pool is absent when the sizing policy does not steal work.
	var workPool interface{}
	if bufs.WorkPool != nil {
		if workPool, err = asBuffer(bufs.WorkPool); err != nil {
			return err
		}
	}

	args = append(args,
		int32(numElements),
		rayState,
		output,
		int32(tile.StartSample),
		int32(tile.StartSample+tile.NumSamples),
		int32(tile.X),
		int32(tile.Y),
		int32(tile.W),
		int32(tile.H),
		int32(tile.Offset),
		int32(tile.Stride),
		queueIndex,
		int32(dims.WorkItems()),
		useQueuesFlag,
		workPool,
		uint32(numParallelSamples),
	)

	if err = k.SetArgs(args...); err != nil {
		return err
	}

	_, err = k.Exec2D(0, 0, dims.Global[0], dims.Global[1], dims.Local[0], dims.Local[1])
	return err
}

// Release the data init kernel and shut down the device.
func (d *Device) Close() {
	if d.dataInit != nil {
		d.dataInit.Release()
		d.dataInit = nil
	}
	d.device.Close()
}

// Get the data init kernel for the current feature set, rebuilding it when
// the features change.
func (d *Device) dataInitKernel() (*device.Kernel, error) {
	opts := d.features.BuildOptions()
	if d.dataInit != nil && d.dataInitOpts == opts {
		return d.dataInit, nil
	}

	k, err := d.device.KernelWithOptions(kernelPrefix+dataInitKernel, opts)
	if err != nil {
		return nil, err
	}

	if d.dataInit != nil {
		d.dataInit.Release()
	}
	d.dataInit, d.dataInitOpts = k, opts
	return k, nil
}

// A split kernel stage bound to an opencl kernel.
type kernel struct {
	name   string
	kernel *device.Kernel
}

func (k *kernel) Name() string {
	return k.name
}

// Bind the kernel globals and kernel data buffers and run the stage to
// completion.
func (k *kernel) Enqueue(dims tracer.Dimensions, globals, data tracer.Buffer) error {
	kg, err := asBuffer(globals)
	if err != nil {
		return err
	}
	kd, err := asBuffer(data)
	if err != nil {
		return err
	}

	if err = k.kernel.SetArgs(kg, kd); err != nil {
		return err
	}

	_, err = k.kernel.Exec2D(0, 0, dims.Global[0], dims.Global[1], dims.Local[0], dims.Local[1])
	return err
}

func (k *kernel) Release() {
	k.kernel.Release()
}

func asBuffer(b tracer.Buffer) (*device.Buffer, error) {
	clBuf, ok := b.(*device.Buffer)
	if !ok || clBuf == nil {
		return nil, ErrForeignBuffer
	}
	return clBuf, nil
}

var _ tracer.Device = (*Device)(nil)
