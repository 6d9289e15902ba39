package renderer

import (
	"time"

	"github.com/achilleasa/wavefront/tracer/split"
)

type FrameStats struct {
	// Per-tile scheduler statistics in render order.
	Tiles []split.TileStats

	// Totals across all tiles.
	OuterPasses       int
	HostInterventions int
	Iterations        int

	// The iteration budget carried over to the next frame.
	NextBudget int

	// Total render time for entire frame.
	RenderTime time.Duration
}

func (fs *FrameStats) add(ts *split.TileStats) {
	fs.Tiles = append(fs.Tiles, *ts)
	fs.OuterPasses += ts.OuterPasses
	fs.HostInterventions += ts.HostInterventions
	fs.Iterations += ts.Iterations
	fs.NextBudget = ts.NextBudget
}
