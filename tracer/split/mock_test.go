package split

import (
	"errors"
	"fmt"

	"github.com/achilleasa/wavefront/tracer"
)

type mockBuffer struct {
	name     string
	data     []byte
	released int
}

func (b *mockBuffer) Name() string { return b.name }
func (b *mockBuffer) Size() int    { return len(b.data) }

func (b *mockBuffer) Read(offset int, dst []byte) error {
	if offset+len(dst) > len(b.data) {
		return fmt.Errorf("read past end of %s", b.name)
	}
	copy(dst, b.data[offset:])
	return nil
}

func (b *mockBuffer) Write(offset int, src []byte) error {
	if offset+len(src) > len(b.data) {
		return fmt.Errorf("write past end of %s", b.name)
	}
	copy(b.data[offset:], src)
	return nil
}

func (b *mockBuffer) Release() { b.released++ }

type dispatch struct {
	stage string
	dims  tracer.Dimensions
}

type mockKernel struct {
	dev      *mockDevice
	name     string
	released int
}

func (k *mockKernel) Name() string { return k.name }

func (k *mockKernel) Enqueue(dims tracer.Dimensions, globals, data tracer.Buffer) error {
	dev := k.dev
	if dev.failStage == k.name {
		return errors.New("enqueue failed")
	}

	dev.dispatches = append(dev.dispatches, dispatch{k.name, dims})
	dev.stageCounts[k.name]++

	// Retire all rays once the configured number of iterations completes
	if k.name == "next_iteration_setup" {
		dev.iterations++
		if dev.retireAfter > 0 && dev.iterations >= dev.retireAfter {
			rs := dev.buffers["rayState"]
			for i := range rs.data {
				rs.data[i] = byte(RayInactive)
			}
		}
	}
	return nil
}

func (k *mockKernel) Release() { k.released++ }

type mockDevice struct {
	// Stages that fail to resolve or enqueue.
	missingStage string
	failStage    string
	failInit     bool
	failAlloc    string

	// Number of path iterations after which every ray becomes inactive.
	retireAfter int

	kernels     []*mockKernel
	buffers     map[string]*mockBuffer
	allocs      int
	initCalls   int
	iterations  int
	dispatches  []dispatch
	stageCounts map[string]int
	lastInit    struct {
		dims               tracer.Dimensions
		numElements        int
		numParallelSamples int
	}
}

func newMockDevice(retireAfter int) *mockDevice {
	return &mockDevice{
		retireAfter: retireAfter,
		buffers:     make(map[string]*mockBuffer),
		stageCounts: make(map[string]int),
	}
}

func (d *mockDevice) Name() string { return "mock" }

func (d *mockDevice) SplitKernel(name string, features tracer.RequestedFeatures) (tracer.Kernel, error) {
	if name == d.missingStage {
		return nil, errors.New("kernel not found")
	}
	k := &mockKernel{dev: d, name: name}
	d.kernels = append(d.kernels, k)
	return k, nil
}

func (d *mockDevice) Buffer(name string, size int) (tracer.Buffer, error) {
	if name == d.failAlloc {
		return nil, errors.New("out of memory")
	}
	d.allocs++
	buf := &mockBuffer{name: name, data: make([]byte, size)}
	d.buffers[name] = buf
	return buf, nil
}

func (d *mockDevice) KernelGlobalsSize() int { return 128 }

func (d *mockDevice) InitTileData(dims tracer.Dimensions, tile *tracer.RenderTile, numElements, numParallelSamples int, kernelData tracer.Buffer, bufs *tracer.SplitBuffers) error {
	if d.failInit {
		return errors.New("init failed")
	}
	d.initCalls++
	d.iterations = 0
	d.lastInit.dims = dims
	d.lastInit.numElements = numElements
	d.lastInit.numParallelSamples = numParallelSamples

	// Slots covered by the grid start active; the rest of the pool is idle.
	rs := bufs.RayState.(*mockBuffer)
	for i := range rs.data {
		if i < dims.WorkItems() {
			rs.data[i] = byte(RayActive)
		} else {
			rs.data[i] = byte(RayInactive)
		}
	}
	return nil
}

// Cancel after the given number of polls.
func cancelAfter(polls int) tracer.Task {
	count := 0
	return tracer.TaskFunc(func() bool {
		count++
		return count > polls
	})
}
