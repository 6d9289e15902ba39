package emulated

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/achilleasa/wavefront/log"
	"github.com/achilleasa/wavefront/tracer"
)

// Emulated device options.
type Options struct {
	// Name reported by the device.
	Name string

	// Amount of emulated device memory in bytes.
	MemorySize int64

	// Number of goroutines used to execute a kernel dispatch.
	Workers int

	// Stages that the device reports as unavailable.
	Unsupported []string
}

const (
	defaultMemorySize   = 256 << 20
	sizeofKernelGlobals = 64
)

// A Device runs the split kernel stages on the host. Ray behavior is a
// stochastic stand-in for real scene intersection and shading which keeps the
// ray state transitions of the device kernels: rays bounce until they escape,
// get absorbed or hit the bounce limit, are then regenerated for the next
// sample and retire once their last sample completes.
type Device struct {
	logger log.Logger

	name        string
	memorySize  int64
	allocated   int64
	workers     int
	unsupported map[string]struct{}

	// State of the tile being traced; set by InitTileData.
	tile *tileState
}

// Create a new emulated device.
func New(opts Options) *Device {
	if opts.Name == "" {
		opts.Name = "emulated"
	}
	if opts.MemorySize <= 0 {
		opts.MemorySize = defaultMemorySize
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}

	unsupported := make(map[string]struct{}, len(opts.Unsupported))
	for _, name := range opts.Unsupported {
		unsupported[name] = struct{}{}
	}

	return &Device{
		logger:      log.New(fmt.Sprintf("emulated device (%s)", opts.Name)),
		name:        opts.Name,
		memorySize:  opts.MemorySize,
		workers:     opts.Workers,
		unsupported: unsupported,
	}
}

func (d *Device) Name() string {
	return d.name
}

// Total emulated device memory.
func (d *Device) MemorySize() int64 {
	return d.memorySize
}

// Bytes currently held by allocated buffers.
func (d *Device) Allocated() int64 {
	return d.allocated
}

func (d *Device) KernelGlobalsSize() int {
	return sizeofKernelGlobals
}

// Allocate a zeroed host-backed buffer.
func (d *Device) Buffer(name string, size int) (tracer.Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("emulated device (%s): invalid size %d for buffer %s", d.name, size, name)
	}
	if d.allocated+int64(size) > d.memorySize {
		return nil, fmt.Errorf("emulated device (%s): could not allocate buffer %s of size %d; %d of %d bytes in use", d.name, name, size, d.allocated, d.memorySize)
	}

	d.allocated += int64(size)
	return &Buffer{device: d, name: name, data: make([]byte, size)}, nil
}

// Resolve a split kernel stage.
func (d *Device) SplitKernel(name string, features tracer.RequestedFeatures) (tracer.Kernel, error) {
	if _, found := d.unsupported[name]; found {
		return nil, fmt.Errorf("emulated device (%s): kernel %s is not available", d.name, name)
	}

	fn, found := stageFuncs[name]
	if !found {
		return nil, fmt.Errorf("emulated device (%s): unknown kernel %s", d.name, name)
	}

	return &Kernel{device: d, name: name, fn: fn}, nil
}

// Seed the ray slots for a new tile.
func (d *Device) InitTileData(dims tracer.Dimensions, tile *tracer.RenderTile, numElements, numParallelSamples int, kernelData tracer.Buffer, bufs *tracer.SplitBuffers) error {
	if kernelData == nil {
		return fmt.Errorf("emulated device (%s): missing kernel data", d.name)
	}
	if bufs.RayState == nil || bufs.RayState.Size() < numElements {
		return fmt.Errorf("emulated device (%s): ray state buffer cannot hold %d rays", d.name, numElements)
	}
	if dims.WorkItems() > numElements {
		return fmt.Errorf("emulated device (%s): grid of %d work items exceeds %d ray slots", d.name, dims.WorkItems(), numElements)
	}
	if numParallelSamples <= 0 {
		return fmt.Errorf("emulated device (%s): invalid parallel sample count %d", d.name, numParallelSamples)
	}

	raw := make([]byte, tracer.SizeofKernelData)
	if err := kernelData.Read(0, raw); err != nil {
		return err
	}
	var kd tracer.KernelData
	if err := kd.UnmarshalBinary(raw); err != nil {
		return err
	}

	rayState, ok := bufs.RayState.(*Buffer)
	if !ok {
		return fmt.Errorf("emulated device (%s): ray state buffer was not allocated by this device", d.name)
	}

	ts := newTileState(dims, tile, numElements, numParallelSamples, kd, rayState)
	ts.queueIndex, _ = bufs.QueueIndex.(*Buffer)
	ts.useQueuesFlag, _ = bufs.UseQueuesFlag.(*Buffer)
	d.tile = ts

	d.logger.Debugf("initialized %s with %d ray slots (%d parallel samples)", tile, dims.WorkItems(), numParallelSamples)
	return nil
}

// Run fn for every index in [0, n) using the device workers.
func (d *Device) parallelFor(n int, fn func(i int)) {
	workers := d.workers
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	var wg sync.WaitGroup
	chunk := (n + workers - 1) / workers
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				fn(i)
			}
		}(start, end)
	}
	wg.Wait()
}

var _ tracer.Device = (*Device)(nil)
