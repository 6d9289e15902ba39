package tracer

import (
	"encoding/binary"
	"fmt"
)

// Number of float32 values stored per output pixel (RGB radiance and the
// sample count).
const PassStride = 4

// Size of the serialized KernelData in bytes.
const SizeofKernelData = 16

// Integrator constants shared by all split kernel stages. The layout matches
// the device-side struct: four little-endian uint32 values.
type KernelData struct {
	MaxBounces uint32

	// Bounce count after which russian roulette may terminate paths.
	MinBouncesForRR uint32

	Seed uint32

	// Frame sample counter for progressive rendering.
	FrameCount uint32
}

// Implements encoding.BinaryMarshaler.
func (kd KernelData) MarshalBinary() ([]byte, error) {
	data := make([]byte, SizeofKernelData)
	binary.LittleEndian.PutUint32(data[0:], kd.MaxBounces)
	binary.LittleEndian.PutUint32(data[4:], kd.MinBouncesForRR)
	binary.LittleEndian.PutUint32(data[8:], kd.Seed)
	binary.LittleEndian.PutUint32(data[12:], kd.FrameCount)
	return data, nil
}

// Implements encoding.BinaryUnmarshaler.
func (kd *KernelData) UnmarshalBinary(data []byte) error {
	if len(data) < SizeofKernelData {
		return fmt.Errorf("tracer: kernel data needs %d bytes; got %d", SizeofKernelData, len(data))
	}
	kd.MaxBounces = binary.LittleEndian.Uint32(data[0:])
	kd.MinBouncesForRR = binary.LittleEndian.Uint32(data[4:])
	kd.Seed = binary.LittleEndian.Uint32(data[8:])
	kd.FrameCount = binary.LittleEndian.Uint32(data[12:])
	return nil
}

// Upload the kernel data into a device buffer.
func (kd KernelData) Upload(buf Buffer) error {
	data, _ := kd.MarshalBinary()
	return buf.Write(0, data)
}
