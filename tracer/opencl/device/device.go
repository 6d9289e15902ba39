package device

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"unsafe"

	"github.com/achilleasa/gopencl/v1.2/cl"
)

type DeviceType uint8

// Supported device types.
const (
	CpuDevice   DeviceType = 1 << iota
	GpuDevice              = 1 << iota
	OtherDevice            = 1 << iota
	AllDevices             = 0xFF
)

var (
	indentRegex = regexp.MustCompile("(?m)^")
)

func (dt DeviceType) String() string {
	switch dt {
	case CpuDevice:
		return "CPU"
	case GpuDevice:
		return "GPU"
	case OtherDevice:
		return "Other"
	}
	panic("opencl: unsupported device type")
}

// Wrapper around opencl-supported devices.
type Device struct {
	Name string
	Id   cl.DeviceId
	Type DeviceType

	compUnits  uint32
	clockSpeed uint32

	// Speed estimate in GFlops.
	Speed uint32

	// Global memory size in bytes.
	MemorySize uint64

	// Max number of work items in a work group.
	MaxWorkGroupSize uint64

	// Opencl handles; allocated when device is initialized.
	ctx      *cl.Context
	cmdQueue cl.CommandQueue

	// Kernel source and include dir used for building programs.
	programSrc string
	includeDir string

	// Compiled programs keyed by their build options.
	programs map[string]cl.Program
}

// Implements Stringer.
func (d Device) String() string {
	return fmt.Sprintf(
		"Name: %s\nType: %s\nSpecs: %d computation units, %d Mhz clock, %d GFlops approximate speed, %d MiB memory, %d max work group size",
		d.Name,
		d.Type.String(),
		d.compUnits,
		d.clockSpeed,
		d.Speed,
		d.MemorySize>>20,
		d.MaxWorkGroupSize,
	)
}

// Initialize device and load the kernel source from programFile. Programs
// are compiled lazily for each distinct set of build options.
func (d *Device) Init(programFile string) error {
	var errCode cl.ErrorCode

	// Already initialized
	if d.ctx != nil {
		return nil
	}

	// Create context
	d.ctx = cl.CreateContext(nil, 1, &d.Id, nil, nil, (*int32)(&errCode))
	if errCode != cl.SUCCESS {
		defer d.Close()
		return fmt.Errorf("opencl device (%s): could not create opencl context (error: %s; code %d)", d.Name, ErrorName(errCode), errCode)
	}

	// Create command queue
	d.cmdQueue = cl.CreateCommandQueue(*d.ctx, d.Id, 0, (*int32)(&errCode))
	if errCode != cl.SUCCESS {
		defer d.Close()
		return fmt.Errorf("opencl device (%s): could not create command queue (error: %s; code %d)", d.Name, ErrorName(errCode), errCode)
	}

	// Load program source
	absProgramPath, err := filepath.Abs(programFile)
	if err != nil {
		defer d.Close()
		return err
	}

	data, err := os.ReadFile(absProgramPath)
	if err != nil {
		defer d.Close()
		return err
	}

	d.programSrc = string(data)
	d.includeDir = filepath.Dir(absProgramPath)
	d.programs = make(map[string]cl.Program)

	return nil
}

// Check whether Init has created the device context.
func (d *Device) Initialized() bool {
	return d.ctx != nil
}

// Shut down the device.
func (d *Device) Close() {
	for opts, program := range d.programs {
		cl.ReleaseProgram(program)
		delete(d.programs, opts)
	}

	if d.cmdQueue != nil {
		cl.ReleaseCommandQueue(d.cmdQueue)
		d.cmdQueue = nil
	}

	if d.ctx != nil {
		cl.ReleaseContext(d.ctx)
		d.ctx = nil
	}
}

// Get the program compiled with the given build options, building it on
// first use.
func (d *Device) Program(buildOptions string) (cl.Program, error) {
	var errCode cl.ErrorCode

	if d.ctx == nil {
		return nil, fmt.Errorf("opencl device (%s): device not initialized", d.Name)
	}

	if program, found := d.programs[buildOptions]; found {
		return program, nil
	}

	progSrc := cl.Str(d.programSrc + "\x00")
	program := cl.CreateProgramWithSource(
		*d.ctx,
		1,
		&progSrc,
		nil,
		(*int32)(&errCode),
	)
	if errCode != cl.SUCCESS {
		return nil, fmt.Errorf("opencl device (%s): could not create program (error: %s; code %d)", d.Name, ErrorName(errCode), errCode)
	}

	errCode = cl.BuildProgram(
		program,
		1,
		&d.Id,
		cl.Str(fmt.Sprintf("-I %s %s\x00", d.includeDir, buildOptions)),
		nil,
		nil,
	)
	if errCode != cl.SUCCESS {
		var dataLen uint64
		data := make([]byte, 120000)

		cl.GetProgramBuildInfo(program, d.Id, cl.PROGRAM_BUILD_LOG, uint64(len(data)), unsafe.Pointer(&data[0]), &dataLen)
		cl.ReleaseProgram(program)
		if dataLen > 0 {
			dataLen--
		}
		return nil, fmt.Errorf("opencl device (%s): could not build kernels with options %q (error: %s; code %d):\n%s", d.Name, buildOptions, ErrorName(errCode), errCode, string(data[0:dataLen]))
	}

	d.programs[buildOptions] = program
	return program, nil
}

// Load kernel by name from the program built without extra options.
func (d *Device) Kernel(name string) (*Kernel, error) {
	return d.KernelWithOptions(name, "")
}

// Load kernel by name from the program built with the given options.
func (d *Device) KernelWithOptions(name, buildOptions string) (*Kernel, error) {
	var errCode cl.ErrorCode

	program, err := d.Program(buildOptions)
	if err != nil {
		return nil, err
	}

	kernelHandle := cl.CreateKernel(
		program,
		cl.Str(name+"\x00"),
		(*int32)(&errCode),
	)

	if errCode != cl.SUCCESS {
		return nil, fmt.Errorf("opencl device (%s): could not load kernel %s (error: %s; code %d)", d.Name, name, ErrorName(errCode), errCode)
	}

	return &Kernel{
		device:       d,
		kernelHandle: kernelHandle,
		name:         name,
	}, nil
}

// Create an empty buffer.
func (d *Device) Buffer(name string) *Buffer {
	return &Buffer{
		device: d,
		name:   name,
	}
}
