package renderer

import "errors"

var (
	ErrNoDevice        = errors.New("renderer: no device specified")
	ErrInvalidFrame    = errors.New("renderer: invalid frame options")
	ErrTileTooLarge    = errors.New("renderer: tile does not fit in device memory")
	ErrInterrupted     = errors.New("renderer: interrupted while rendering")
	ErrNothingRendered = errors.New("renderer: no frame has been rendered")
)
