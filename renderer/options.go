package renderer

import (
	"fmt"

	"github.com/achilleasa/wavefront/tracer"
	"github.com/achilleasa/wavefront/tracer/split"
)

type Options struct {
	// Frame dims.
	FrameW int
	FrameH int

	// Tile dims; defaults to the whole frame.
	TileW int
	TileH int

	// Order in which tiles are traced.
	TileOrder tracer.TileOrder

	// Number of samples.
	SamplesPerPixel int

	// Number of indirect bounces.
	NumBounces uint32

	// Min bounces before applying russian roulette for path elimination.
	MinBouncesForRR uint32

	// Seed for the per-pixel random streams.
	Seed uint32

	// Exposure for tonemapping.
	Exposure float32

	// Split kernel scheduling.
	Policy             split.SizingPolicy
	LocalSize          [2]int
	IterationIncrement int

	// Fraction of device memory the ray slots may use when the device
	// reports its memory size; defaults to 0.5.
	MemoryBudget float64

	// Features requested from the split kernels.
	Features tracer.RequestedFeatures
}

// Fill in defaults and validate the options.
func (opts *Options) normalize() error {
	if opts.FrameW <= 0 || opts.FrameH <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidFrame, opts.FrameW, opts.FrameH)
	}
	if opts.SamplesPerPixel <= 0 {
		return fmt.Errorf("%w: %d samples per pixel", ErrInvalidFrame, opts.SamplesPerPixel)
	}
	if opts.TileW <= 0 || opts.TileW > opts.FrameW {
		opts.TileW = opts.FrameW
	}
	if opts.TileH <= 0 || opts.TileH > opts.FrameH {
		opts.TileH = opts.FrameH
	}
	if opts.Policy == nil {
		opts.Policy = split.WorkStealing{}
	}
	if opts.LocalSize[0] <= 0 || opts.LocalSize[1] <= 0 {
		opts.LocalSize = split.DefaultLocalSize
	}
	if opts.IterationIncrement <= 0 {
		opts.IterationIncrement = split.DefaultIterationIncrement
	}
	if opts.MemoryBudget <= 0 || opts.MemoryBudget > 1 {
		opts.MemoryBudget = 0.5
	}
	if opts.Exposure <= 0 {
		opts.Exposure = 1.0
	}
	if opts.MinBouncesForRR == 0 || opts.MinBouncesForRR >= opts.NumBounces {
		opts.MinBouncesForRR = opts.NumBounces + 1
	}
	return nil
}
