package split

import (
	"fmt"

	"github.com/achilleasa/wavefront/tracer"
)

// Size of buffer elements in bytes.
const (
	// Number of ray queues used by the queue_enqueue stage.
	NumQueues = 4

	sizeofQueueIndex   = 4 // int32
	sizeofWorkPoolSlot = 4 // uint32
	sizeofRayState     = 1

	// Fixed per-ray split state: path state, rays, intersections, throughput,
	// rng state and the shader data header.
	sizeofSplitDataPerRay = 448

	sizeofShaderClosure = 80
)

// Calculate the size of the split data buffer for numElements ray slots.
func splitDataSize(numElements, maxClosure, perThreadOutputSize int) int {
	return numElements * (sizeofSplitDataPerRay + maxClosure*sizeofShaderClosure + perThreadOutputSize)
}

// A BufferPool owns the persistent device buffers shared by the split kernel
// stages. The buffers are sized once for the largest tile and then reused by
// every subsequent tile.
type BufferPool struct {
	device tracer.Device
	policy SizingPolicy
	local  [2]int

	buffers  tracer.SplitBuffers
	maxTile  [2]int
	capacity int

	allocated bool
}

// Create a pool that allocates its buffers on the given device.
func NewBufferPool(dev tracer.Device, policy SizingPolicy, local [2]int) *BufferPool {
	return &BufferPool{
		device: dev,
		policy: policy,
		local:  local,
	}
}

// Allocate all buffers for tiles of up to maxTile pixels. Only the first call
// allocates; later calls are no-ops until the pool is released. If any
// allocation fails the buffers allocated so far are released.
func (bp *BufferPool) EnsureAllocated(maxTile [2]int, maxClosure, perThreadOutputSize int) error {
	if bp.allocated {
		return nil
	}

	capacity := maxTile[0] * maxTile[1]

	type allocation struct {
		target *tracer.Buffer
		name   string
		size   int
	}
	var (
		workPool      tracer.Buffer
		queueIndex    tracer.Buffer
		useQueuesFlag tracer.Buffer
		kernelGlobals tracer.Buffer
		rayState      tracer.Buffer
		splitData     tracer.Buffer
	)
	allocs := []allocation{
		{&queueIndex, "queueIndex", NumQueues * sizeofQueueIndex},
		{&useQueuesFlag, "useQueuesFlag", 1},
		{&kernelGlobals, "kernelGlobals", bp.device.KernelGlobalsSize()},
		{&rayState, "rayState", capacity * sizeofRayState},
		{&splitData, "splitData", splitDataSize(capacity, maxClosure, perThreadOutputSize)},
	}
	if numGroups := bp.policy.WorkPoolSize(maxTile, bp.local); numGroups > 0 {
		allocs = append([]allocation{{&workPool, "workPool", numGroups * sizeofWorkPoolSlot}}, allocs...)
	}

	var err error
	for idx, alloc := range allocs {
		*alloc.target, err = bp.device.Buffer(alloc.name, alloc.size)
		if err != nil {
			for _, done := range allocs[:idx] {
				(*done.target).Release()
			}
			return fmt.Errorf("split: could not allocate %s buffer (%d bytes): %w", alloc.name, alloc.size, err)
		}
	}

	bp.buffers = tracer.SplitBuffers{
		KernelGlobals: kernelGlobals,
		SplitData:     splitData,
		RayState:      rayState,
		QueueIndex:    queueIndex,
		UseQueuesFlag: useQueuesFlag,
		WorkPool:      workPool,
	}
	bp.maxTile = maxTile
	bp.capacity = capacity
	bp.allocated = true

	return nil
}

// True if the buffers have been allocated.
func (bp *BufferPool) Allocated() bool {
	return bp.allocated
}

// Number of ray slots the buffers were sized for.
func (bp *BufferPool) Capacity() int {
	return bp.capacity
}

// The tile size the buffers were sized for.
func (bp *BufferPool) MaxTile() [2]int {
	return bp.maxTile
}

// Access the allocated buffers.
func (bp *BufferPool) Buffers() *tracer.SplitBuffers {
	return &bp.buffers
}

// Release all buffers. The pool can be allocated again afterwards.
func (bp *BufferPool) Release() {
	if !bp.allocated {
		return
	}

	for _, buf := range []tracer.Buffer{
		bp.buffers.KernelGlobals,
		bp.buffers.SplitData,
		bp.buffers.RayState,
		bp.buffers.QueueIndex,
		bp.buffers.UseQueuesFlag,
		bp.buffers.WorkPool,
	} {
		if buf != nil {
			buf.Release()
		}
	}

	bp.buffers = tracer.SplitBuffers{}
	bp.maxTile = [2]int{}
	bp.capacity = 0
	bp.allocated = false
}
