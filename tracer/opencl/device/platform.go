package device

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unsafe"

	"github.com/achilleasa/gopencl/v1.2/cl"
)

const (
	platformBufferSize = 100
	deviceBufferSize   = 100
	dataBufferSize     = 1024
)

// Returned (wrapped) by Requirements.Check for devices that cannot run the
// split kernels.
var ErrIneligible = errors.New("opencl device: device cannot run the split kernels")

// Information about a system's opencl platform and supported devices.
type PlatformInfo struct {
	Profile    string
	Version    string
	Name       string
	Vendor     string
	Extensions string
	Devices    []*Device
}

func (pl PlatformInfo) String() string {
	var buf bytes.Buffer

	buf.WriteString(
		fmt.Sprintf(
			"Version:    %s\nName:       %s\nVendor:     %s\nExtensions: %s\nDevices:\n",
			pl.Version,
			pl.Name,
			pl.Vendor,
			pl.Extensions,
		),
	)

	for dIdx, d := range pl.Devices {
		buf.WriteString(fmt.Sprintf("  Device %02d:\n", dIdx))
		buf.WriteString(indentRegex.ReplaceAllString(d.String(), "    "))
		buf.WriteString("\n\n")
	}

	return buf.String()
}

// The resources a device must provide to run one work group of the split
// kernels.
type Requirements struct {
	// Local work size of the path tracing stages.
	LocalSize [2]int

	// Device memory needed per ray slot.
	BytesPerRay int
}

// Check that the device can schedule a work group of the requested local size
// and hold the ray slots of at least one work group. The zero Requirements
// accept every device.
func (req Requirements) Check(d *Device) error {
	groupSize := uint64(req.LocalSize[0]) * uint64(req.LocalSize[1])
	if d.MaxWorkGroupSize > 0 && groupSize > d.MaxWorkGroupSize {
		return fmt.Errorf("%w: local size %dx%d exceeds max work group size %d", ErrIneligible, req.LocalSize[0], req.LocalSize[1], d.MaxWorkGroupSize)
	}

	if need := groupSize * uint64(req.BytesPerRay); need > d.MemorySize {
		return fmt.Errorf("%w: one work group of ray slots needs %d bytes; device has %d", ErrIneligible, need, d.MemorySize)
	}

	return nil
}

// Get information about supported opencl platforms and devices.
func GetPlatformInfo() ([]PlatformInfo, error) {
	pids := make([]cl.PlatformID, platformBufferSize)
	pidCount := uint32(0)
	cl.GetPlatformIDs(uint32(len(pids)), &pids[0], &pidCount)

	infoList := make([]PlatformInfo, int(pidCount))
	for pIdx := 0; pIdx < int(pidCount); pIdx++ {
		info := &infoList[pIdx]
		data := make([]byte, dataBufferSize)
		dataLen := uint64(0)
		cl.GetPlatformInfo(pids[pIdx], cl.PLATFORM_PROFILE, dataBufferSize, unsafe.Pointer(&data[0]), &dataLen)
		info.Profile = clString(data, dataLen)
		cl.GetPlatformInfo(pids[pIdx], cl.PLATFORM_VERSION, dataBufferSize, unsafe.Pointer(&data[0]), &dataLen)
		info.Version = clString(data, dataLen)
		cl.GetPlatformInfo(pids[pIdx], cl.PLATFORM_NAME, dataBufferSize, unsafe.Pointer(&data[0]), &dataLen)
		info.Name = clString(data, dataLen)
		cl.GetPlatformInfo(pids[pIdx], cl.PLATFORM_VENDOR, dataBufferSize, unsafe.Pointer(&data[0]), &dataLen)
		info.Vendor = clString(data, dataLen)
		cl.GetPlatformInfo(pids[pIdx], cl.PLATFORM_EXTENSIONS, dataBufferSize, unsafe.Pointer(&data[0]), &dataLen)
		info.Extensions = clString(data, dataLen)

		info.Devices = append(enumerateDevices(pids[pIdx], CpuDevice), enumerateDevices(pids[pIdx], GpuDevice)...)

		// Query the limits the split kernel scheduler depends on
		for _, dev := range info.Devices {
			err := dev.queryLimits()
			if err != nil {
				return nil, err
			}
		}
	}

	return infoList, nil
}

// Scan all available opencl platforms and select devices that match the given
// query and can run the split kernels with the given requirements.
func SelectDevices(typeMask DeviceType, matchName string, req Requirements) ([]*Device, error) {
	platforms, err := GetPlatformInfo()
	if err != nil {
		return nil, err
	}
	return filterDevices(platforms, typeMask, matchName, req), nil
}

func filterDevices(platforms []PlatformInfo, typeMask DeviceType, matchName string, req Requirements) []*Device {
	list := make([]*Device, 0)
	for _, p := range platforms {
		for _, d := range p.Devices {
			// Match type
			if d.Type&typeMask != d.Type {
				continue
			}

			// Match name
			if matchName != "" && !strings.Contains(d.Name, matchName) {
				continue
			}

			if req.Check(d) != nil {
				continue
			}

			list = append(list, d)
		}
	}
	return list
}

func enumerateDevices(pid cl.PlatformID, devType DeviceType) []*Device {
	ids := make([]cl.DeviceId, deviceBufferSize)
	count := uint32(0)
	switch devType {
	case GpuDevice:
		cl.GetDeviceIDs(pid, cl.DEVICE_TYPE_GPU, uint32(deviceBufferSize), &ids[0], &count)
	default:
		cl.GetDeviceIDs(pid, cl.DEVICE_TYPE_CPU, uint32(deviceBufferSize), &ids[0], &count)
	}

	data := make([]byte, dataBufferSize)
	devices := make([]*Device, 0, count)
	for dIdx := 0; dIdx < int(count); dIdx++ {
		dataLen := uint64(0)
		cl.GetDeviceInfo(ids[dIdx], cl.DEVICE_NAME, dataBufferSize, unsafe.Pointer(&data[0]), &dataLen)
		devices = append(devices, &Device{
			Name: clString(data, dataLen),
			Id:   ids[dIdx],
			Type: devType,
		})
	}
	return devices
}

// Convert a NUL-terminated info value to a string.
func clString(data []byte, dataLen uint64) string {
	if dataLen == 0 || dataLen > uint64(len(data)) {
		return ""
	}
	return string(data[0 : dataLen-1])
}

// Query device speed, memory and work group limits.
func (d *Device) queryLimits() error {
	// Calculate theoretical device speed as: compute units * 2ops/cycle * clock speed
	errCode := cl.GetDeviceInfo(d.Id, cl.DEVICE_MAX_COMPUTE_UNITS, 4, unsafe.Pointer(&d.compUnits), nil)
	if errCode != cl.SUCCESS {
		return fmt.Errorf("opencl device (%s): could not query MAX_COMPUTE_UNITS (error: %s; code %d)", d.Name, ErrorName(errCode), errCode)
	}
	errCode = cl.GetDeviceInfo(d.Id, cl.DEVICE_MAX_CLOCK_FREQUENCY, 4, unsafe.Pointer(&d.clockSpeed), nil)
	if errCode != cl.SUCCESS {
		return fmt.Errorf("opencl device (%s): could not query MAX_CLOCK_FREQUENCY (error: %s; code %d)", d.Name, ErrorName(errCode), errCode)
	}
	d.Speed = d.compUnits * d.clockSpeed / 1000

	errCode = cl.GetDeviceInfo(d.Id, cl.DEVICE_GLOBAL_MEM_SIZE, 8, unsafe.Pointer(&d.MemorySize), nil)
	if errCode != cl.SUCCESS {
		return fmt.Errorf("opencl device (%s): could not query GLOBAL_MEM_SIZE (error: %s; code %d)", d.Name, ErrorName(errCode), errCode)
	}

	// size_t on the device side
	errCode = cl.GetDeviceInfo(d.Id, cl.DEVICE_MAX_WORK_GROUP_SIZE, 8, unsafe.Pointer(&d.MaxWorkGroupSize), nil)
	if errCode != cl.SUCCESS {
		return fmt.Errorf("opencl device (%s): could not query MAX_WORK_GROUP_SIZE (error: %s; code %d)", d.Name, ErrorName(errCode), errCode)
	}

	return nil
}
