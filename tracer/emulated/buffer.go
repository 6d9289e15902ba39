package emulated

import (
	"encoding/binary"
	"fmt"
	"math"
)

// A device buffer backed by host memory.
type Buffer struct {
	device *Device
	name   string
	data   []byte
}

func (b *Buffer) Name() string {
	return b.name
}

func (b *Buffer) Size() int {
	return len(b.data)
}

// Copy buffer contents starting at offset into dst.
func (b *Buffer) Read(offset int, dst []byte) error {
	if b.data == nil {
		return fmt.Errorf("emulated device (%s): read from released buffer %s", b.device.name, b.name)
	}
	if offset < 0 || offset+len(dst) > len(b.data) {
		return fmt.Errorf("emulated device (%s): read of %d bytes at offset %d exceeds size %d of buffer %s", b.device.name, len(dst), offset, len(b.data), b.name)
	}
	copy(dst, b.data[offset:])
	return nil
}

// Copy src into the buffer starting at offset.
func (b *Buffer) Write(offset int, src []byte) error {
	if b.data == nil {
		return fmt.Errorf("emulated device (%s): write to released buffer %s", b.device.name, b.name)
	}
	if offset < 0 || offset+len(src) > len(b.data) {
		return fmt.Errorf("emulated device (%s): insufficient buffer space (%d) in %s for copying data of length %d at offset %d", b.device.name, len(b.data), b.name, len(src), offset)
	}
	copy(b.data[offset:], src)
	return nil
}

// Release buffer.
func (b *Buffer) Release() {
	if b.data != nil {
		b.device.allocated -= int64(len(b.data))
		b.data = nil
	}
}

func (b *Buffer) float32At(index int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b.data[index*4:]))
}

func (b *Buffer) setFloat32At(index int, v float32) {
	binary.LittleEndian.PutUint32(b.data[index*4:], math.Float32bits(v))
}
