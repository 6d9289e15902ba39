package tracer

// Global and local work sizes for a 2D kernel dispatch.
type Dimensions struct {
	Global [2]int
	Local  [2]int
}

// Total number of work items.
func (d Dimensions) WorkItems() int {
	return d.Global[0] * d.Global[1]
}

// A device-resident memory region.
type Buffer interface {
	// A name for identifying the buffer.
	Name() string

	// Allocated size in bytes.
	Size() int

	// Copy len(dst) bytes starting at the given byte offset back to the host.
	// This call blocks until the copy completes.
	Read(offset int, dst []byte) error

	// Copy src into the buffer starting at the given byte offset.
	Write(offset int, src []byte) error

	// Free the device memory. Calling Release more than once is a no-op.
	Release()
}

// An opaque dispatchable compute stage.
type Kernel interface {
	Name() string

	// Enqueue the kernel with the supplied work dimensions. Kernels receive
	// the kernel globals buffer and the constant kernel data buffer.
	Enqueue(dims Dimensions, globals, data Buffer) error

	Release()
}

// The persistent buffers shared by all split kernel stages.
type SplitBuffers struct {
	KernelGlobals Buffer
	SplitData     Buffer
	RayState      Buffer
	QueueIndex    Buffer
	UseQueuesFlag Buffer

	// Only allocated by the work-stealing sizing policy.
	WorkPool Buffer
}

// The device services required for driving a split kernel path tracer.
type Device interface {
	Name() string

	// Resolve the named split kernel stage for the given feature request.
	SplitKernel(name string, features RequestedFeatures) (Kernel, error)

	// Allocate a device buffer of the given size in bytes.
	Buffer(name string, size int) (Buffer, error)

	// Size in bytes of the device-side kernel globals structure.
	KernelGlobalsSize() int

	// Run the per-tile data initialization step that seeds the ray state and
	// split data for a new batch of rays.
	InitTileData(dims Dimensions, tile *RenderTile, numElements, numParallelSamples int, kernelData Buffer, bufs *SplitBuffers) error
}
