package device

import (
	"fmt"
	"unsafe"

	"github.com/achilleasa/gopencl/v1.2/cl"
)

// A device memory buffer. Buffer satisfies the byte-oriented buffer contract
// used by the split scheduler.
type Buffer struct {
	// Handle to opencl buffer.
	bufHandle cl.Mem

	// Associated Device.
	device *Device

	// A name for identifying the buffer.
	name string

	// Allocated size.
	size int
}

// Get buffer name.
func (b *Buffer) Name() string {
	return b.name
}

// Get buffer size.
func (b *Buffer) Size() int {
	return b.size
}

// Allocate a buffer with the given size and flags. Any previously allocated
// storage is released first.
func (b *Buffer) Allocate(size int, flags cl.MemFlags) error {
	var errCode cl.ErrorCode

	if size <= 0 {
		return fmt.Errorf("opencl device (%s): invalid size %d for buffer %s", b.device.Name, size, b.name)
	}

	b.Release()

	b.bufHandle = cl.CreateBuffer(
		*b.device.ctx,
		flags,
		cl.MemFlags(size),
		nil,
		(*int32)(&errCode),
	)

	if errCode != cl.SUCCESS {
		b.bufHandle = nil
		return fmt.Errorf("opencl device (%s): could not allocate buffer %s of size %d (error: %s; code %d)", b.device.Name, b.name, size, ErrorName(errCode), errCode)
	}

	b.size = size

	return nil
}

// Copy src to the device buffer starting at the given byte offset. The call
// blocks until the transfer completes.
func (b *Buffer) Write(offset int, src []byte) error {
	if len(src) == 0 {
		return nil
	}
	if offset < 0 || offset+len(src) > b.size {
		return fmt.Errorf("opencl device (%s): insufficient buffer space (%d) in %s for copying %d bytes at offset %d", b.device.Name, b.size, b.name, len(src), offset)
	}

	errCode := cl.EnqueueWriteBuffer(
		b.device.cmdQueue,
		b.bufHandle,
		cl.TRUE,
		uint64(offset),
		uint64(len(src)),
		unsafe.Pointer(&src[0]),
		0,
		nil,
		nil,
	)

	if errCode != cl.SUCCESS {
		return fmt.Errorf("opencl device (%s): error copying host data to device buffer %s (error: %s; code %d)", b.device.Name, b.name, ErrorName(errCode), errCode)
	}

	return nil
}

// Fill dst with device data starting at the given byte offset. The call
// blocks until the transfer completes.
func (b *Buffer) Read(offset int, dst []byte) error {
	if len(dst) == 0 {
		return nil
	}
	if offset < 0 || offset+len(dst) > b.size {
		return fmt.Errorf("opencl device (%s): cannot read %d bytes at offset %d from %s (size %d)", b.device.Name, len(dst), offset, b.name, b.size)
	}

	errCode := cl.EnqueueReadBuffer(
		b.device.cmdQueue,
		b.bufHandle,
		cl.TRUE,
		uint64(offset),
		uint64(len(dst)),
		unsafe.Pointer(&dst[0]),
		0,
		nil,
		nil,
	)

	if errCode != cl.SUCCESS {
		return fmt.Errorf("opencl device (%s): error copying device data from %s to host buffer (error: %s; code %d)", b.device.Name, b.name, ErrorName(errCode), errCode)
	}

	return nil
}

// Release buffer.
func (b *Buffer) Release() {
	if b.bufHandle != nil {
		cl.ReleaseMemObject(b.bufHandle)
		b.bufHandle = nil
		b.size = 0
	}
}

// Get opencl buffer handle.
func (b *Buffer) Handle() cl.Mem {
	if b == nil {
		return nil
	}
	return b.bufHandle
}
