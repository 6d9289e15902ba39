package split

import (
	"errors"
	"fmt"
)

var (
	ErrKernelsNotLoaded = errors.New("split: kernels not loaded")
	ErrSchedulerClosed  = errors.New("split: scheduler closed")
)

// Returned by LoadKernels when the device cannot provide one of the split
// kernel stages for the requested features.
type MissingStageError struct {
	Stage  string
	Device string
	Err    error
}

func (e *MissingStageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("split: device %s does not provide stage %s", e.Device, e.Stage)
	}
	return fmt.Sprintf("split: device %s does not provide stage %s: %v", e.Device, e.Stage, e.Err)
}

func (e *MissingStageError) Unwrap() error {
	return e.Err
}
