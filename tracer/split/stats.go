package split

import (
	"time"

	"github.com/achilleasa/wavefront/tracer"
)

// Statistics for a single PathTrace call.
type TileStats struct {
	Tile tracer.RenderTile
	Plan Plan

	// Number of host round trips (ray state copy-backs).
	OuterPasses int

	// Number of round trips after which rays were still active.
	HostInterventions int

	// Number of path iterations dispatched.
	Iterations int

	// The iteration budget the next tile will start with.
	NextBudget int

	// True if the task was cancelled; the radiance reduction was skipped.
	Cancelled bool

	Duration time.Duration
}
