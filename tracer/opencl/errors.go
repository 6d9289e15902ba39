package opencl

import "errors"

var (
	ErrNotInitialized      = errors.New("opencl tracer: device not initialized")
	ErrNoFeatures          = errors.New("opencl tracer: data init requested before any split kernel was loaded")
	ErrForeignBuffer       = errors.New("opencl tracer: buffer was not allocated by an opencl device")
	ErrDeviceNotFound      = errors.New("opencl tracer: no opencl device matches the selection")
	ErrMissingKernelSource = errors.New("opencl tracer: no kernel source file specified")
)
