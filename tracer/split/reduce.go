package split

import (
	"fmt"

	"github.com/achilleasa/wavefront/tracer"
)

// Local work size of the radiance reduction.
var sumAllRadianceLocalSize = [2]int{16, 16}

// The reduction grid covers the tile pixels rather than the ray slots.
func radianceDims(tile *tracer.RenderTile) tracer.Dimensions {
	local := sumAllRadianceLocalSize
	return tracer.Dimensions{
		Global: [2]int{roundUp(tile.W, local[0]), roundUp(tile.H, local[1])},
		Local:  local,
	}
}

// Fold the per-sample radiance of every ray slot into the tile output buffer.
func (s *Scheduler) accumulateRadiance(tile *tracer.RenderTile, kernelData tracer.Buffer) error {
	kernel := s.kernels.kernel(sumAllRadiance)
	err := kernel.Enqueue(radianceDims(tile), s.pool.Buffers().KernelGlobals, kernelData)
	if err != nil {
		return fmt.Errorf("split: %s failed for %s: %w", kernel.Name(), tile, err)
	}
	return nil
}
