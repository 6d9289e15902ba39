package emulated

import (
	"math/rand/v2"

	"github.com/achilleasa/wavefront/tracer"
	"github.com/achilleasa/wavefront/tracer/split"
	"github.com/achilleasa/wavefront/types"
)

// Color of the light carried by every emulated path.
var radianceTint = types.XYZ(1, 0.9, 0.8)

// Per ray slot path state.
type slot struct {
	valid bool

	// Tile pixel traced by this slot.
	x, y int

	// Next sample to trace and the end of this slot's sample range. Slots
	// advance by the number of parallel samples.
	sample, endSample int

	bounce     int
	throughput float32
	radiance   float32

	// Direct light contribution waiting for the shadow test.
	pendingLight float32

	// Sum of the radiance of all completed samples.
	accum    types.Vec3
	nSamples int

	rng *rand.Rand
}

type tileState struct {
	dims               tracer.Dimensions
	tile               tracer.RenderTile
	numParallelSamples int
	kernelData         tracer.KernelData

	rayState      *Buffer
	queueIndex    *Buffer
	useQueuesFlag *Buffer

	slots []slot
}

func newTileState(dims tracer.Dimensions, tile *tracer.RenderTile, numElements, numParallelSamples int, kd tracer.KernelData, rayState *Buffer) *tileState {
	ts := &tileState{
		dims:               dims,
		tile:               *tile,
		numParallelSamples: numParallelSamples,
		kernelData:         kd,
		rayState:           rayState,
		slots:              make([]slot, dims.WorkItems()),
	}

	// Slots outside the planned grid never carry rays.
	for i := range rayState.data[:numElements] {
		rayState.data[i] = byte(split.RayInactive)
	}

	endSample := tile.StartSample + tile.NumSamples
	for i := range ts.slots {
		gx, gy := i%dims.Global[0], i/dims.Global[0]
		px, sampleOffset := gx%tile.W, gx/tile.W
		if gy >= tile.H || sampleOffset >= numParallelSamples {
			continue
		}

		s := &ts.slots[i]
		s.x, s.y = px, gy
		s.sample = tile.StartSample + sampleOffset
		s.endSample = endSample
		if s.sample >= s.endSample {
			continue
		}

		pixel := uint64(tile.X+px) | uint64(tile.Y+gy)<<24
		s.rng = rand.New(rand.NewPCG(uint64(kd.Seed)<<32|uint64(kd.FrameCount), pixel<<16|uint64(sampleOffset)))
		s.valid = true
		s.startPath()
		rayState.data[i] = byte(split.RayActive)
	}

	return ts
}

func (s *slot) startPath() {
	s.bounce = 0
	s.throughput = 1
	s.radiance = 0
	s.pendingLight = 0
}

// Store the finished sample and either start the next one or retire the
// slot. Returns the new ray state.
func (s *slot) finishSample(numParallelSamples int) split.RayState {
	s.accum = s.accum.Add(radianceTint.Mul(s.radiance))
	s.nSamples++

	s.sample += numParallelSamples
	if s.sample >= s.endSample {
		return split.RayInactive
	}

	s.startPath()
	return split.RayRegenerated
}
