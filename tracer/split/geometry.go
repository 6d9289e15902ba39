package split

import (
	"fmt"
	"math"

	"github.com/achilleasa/wavefront/tracer"
)

// Some devices schedule threads in groups of this many work items.
const wavefrontSize = 64

// The launch geometry for one tile.
type Plan struct {
	Dims tracer.Dimensions

	// Number of samples of the same pixel traced side by side in the grid.
	NumParallelSamples int
}

// A SizingPolicy decides how the rays for a tile are laid out on the
// dispatch grid.
type SizingPolicy interface {
	// Plan the dispatch grid for a tile of tileW x tileH pixels with numSamples
	// samples per pixel. maxTile is the tile size the buffers were sized for.
	Plan(tileW, tileH int, maxTile [2]int, numSamples int, local [2]int) Plan

	// The number of work-pool counters required for the largest tile; zero
	// if the policy does not use a work pool.
	WorkPoolSize(maxTile [2]int, local [2]int) int

	String() string
}

// Each work item steals rays from a shared pool so samples are processed
// one after the other by the same ray slot.
type WorkStealing struct{}

func (WorkStealing) Plan(tileW, tileH int, maxTile [2]int, numSamples int, local [2]int) Plan {
	plan := Plan{
		Dims: tracer.Dimensions{
			Global: [2]int{roundUp(tileW, local[0]), roundUp(tileH, local[1])},
			Local:  local,
		},
		NumParallelSamples: 1,
	}
	checkCapacity(plan, maxTile)
	return plan
}

func (WorkStealing) WorkPoolSize(maxTile [2]int, local [2]int) int {
	return (roundUp(maxTile[0], local[0]) * roundUp(maxTile[1], local[1])) / (local[0] * local[1])
}

func (WorkStealing) String() string {
	return "work-stealing"
}

// The tile is replicated along the first grid axis once per parallel sample.
type FixedParallelSamples struct{}

func (FixedParallelSamples) Plan(tileW, tileH int, maxTile [2]int, numSamples int, local [2]int) Plan {
	globalY := roundUp(tileH, local[1])
	numThreads := maxTile[0] * maxTile[1]
	numThreadColumns := numThreads / globalY

	numParallelSamples := ParallelSamples(numThreadColumns/tileW, numSamples)
	if numParallelSamples == 0 {
		panic(fmt.Sprintf("split: no parallel samples fit a %dx%d tile with max tile %dx%d", tileW, tileH, maxTile[0], maxTile[1]))
	}

	plan := Plan{
		Dims: tracer.Dimensions{
			Global: [2]int{tileW * numParallelSamples, globalY},
			Local:  local,
		},
		NumParallelSamples: numParallelSamples,
	}
	checkCapacity(plan, maxTile)
	return plan
}

func (FixedParallelSamples) WorkPoolSize(maxTile [2]int, local [2]int) int {
	return 0
}

func (FixedParallelSamples) String() string {
	return "fixed-parallel-samples"
}

// Calculate the number of samples to trace side by side given the number of
// tile copies that fit the grid. Counts of at least wavefrontSize are rounded
// down to a wavefrontSize multiple; smaller counts are returned as-is.
func ParallelSamples(tileColumnsPossible, numSamples int) int {
	n := tileColumnsPossible
	if numSamples < n {
		n = numSamples
	}
	if n < 0 {
		return 0
	}

	if n >= wavefrontSize {
		n = (n / wavefrontSize) * wavefrontSize
	}
	return n
}

// Map a policy name to a SizingPolicy.
func ParsePolicy(name string) (SizingPolicy, error) {
	switch name {
	case "work-stealing", "":
		return WorkStealing{}, nil
	case "fixed-parallel-samples":
		return FixedParallelSamples{}, nil
	}
	return nil, fmt.Errorf("split: unknown sizing policy %q", name)
}

// Number of bytes of device memory needed per ray slot.
func BytesPerRay(maxClosure, perThreadOutputSize int) int {
	return 1 + splitDataSize(1, maxClosure, perThreadOutputSize)
}

// Estimate the largest tile whose ray slots fit in the given amount of device
// memory. The result is as square as possible and a multiple of the local size
// in both axes; a zero size is returned when not even one work group fits.
func FeasibleTileSize(memBytes int64, bytesPerRay int, local [2]int) [2]int {
	if memBytes <= 0 || bytesPerRay <= 0 {
		return [2]int{}
	}

	numRays := memBytes / int64(bytesPerRay)
	w := int(math.Sqrt(float64(numRays)))
	w = (w / local[0]) * local[0]
	if w == 0 {
		return [2]int{}
	}

	h := int(numRays / int64(w))
	h = (h / local[1]) * local[1]
	if h == 0 {
		return [2]int{}
	}

	return [2]int{w, h}
}

func checkCapacity(plan Plan, maxTile [2]int) {
	if plan.Dims.WorkItems() > maxTile[0]*maxTile[1] {
		panic(fmt.Sprintf(
			"split: planned grid %dx%d exceeds the capacity of max tile %dx%d",
			plan.Dims.Global[0], plan.Dims.Global[1], maxTile[0], maxTile[1],
		))
	}
}

// Round v up to the next multiple of m.
func roundUp(v, m int) int {
	return ((v-1)/m + 1) * m
}
