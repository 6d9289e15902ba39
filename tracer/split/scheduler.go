package split

import (
	"fmt"
	"time"

	"github.com/achilleasa/wavefront/log"
	"github.com/achilleasa/wavefront/tracer"
)

// Default number of path iterations added to the budget whenever the host
// finds active rays after running the current budget.
const DefaultIterationIncrement = 8

// Default local work size for the path tracing stages.
var DefaultLocalSize = [2]int{64, 1}

// Scheduler options.
type Options struct {
	// The grid sizing policy; defaults to WorkStealing.
	Policy SizingPolicy

	// Local work size of the path tracing stages; defaults to DefaultLocalSize.
	LocalSize [2]int

	// Budget increment and lower bound; defaults to DefaultIterationIncrement.
	IterationIncrement int

	// Budget for the first tile; defaults to IterationIncrement.
	InitialBudget int
}

// A Scheduler drives the split kernel stages for one tile at a time. It keeps
// the persistent buffers and the iteration budget across tiles and is not
// safe for concurrent use.
type Scheduler struct {
	logger log.Logger
	device tracer.Device

	policy    SizingPolicy
	localSize [2]int
	increment int

	kernels *KernelSet
	pool    *BufferPool

	// Number of path iterations to run between ray state checks.
	pathIterations int

	closed bool
}

// Create a new scheduler for the given device.
func NewScheduler(dev tracer.Device, opts Options) *Scheduler {
	if opts.Policy == nil {
		opts.Policy = WorkStealing{}
	}
	if opts.LocalSize[0] <= 0 || opts.LocalSize[1] <= 0 {
		opts.LocalSize = DefaultLocalSize
	}
	if opts.IterationIncrement <= 0 {
		opts.IterationIncrement = DefaultIterationIncrement
	}
	if opts.InitialBudget < opts.IterationIncrement {
		opts.InitialBudget = opts.IterationIncrement
	}

	return &Scheduler{
		logger:         log.New(fmt.Sprintf("split scheduler (%s)", dev.Name())),
		device:         dev,
		policy:         opts.Policy,
		localSize:      opts.LocalSize,
		increment:      opts.IterationIncrement,
		pool:           NewBufferPool(dev, opts.Policy, opts.LocalSize),
		pathIterations: opts.InitialBudget,
	}
}

// Resolve the split kernels for the requested features. Any previously
// loaded kernels are released. If the new request needs more closures than
// the allocated buffers were sized for, the buffers are reallocated on the
// next tile.
func (s *Scheduler) LoadKernels(features tracer.RequestedFeatures) error {
	if s.closed {
		return ErrSchedulerClosed
	}

	kernels, err := LoadKernels(s.device, features)
	if err != nil {
		return err
	}

	if s.kernels != nil {
		if kernels.MaxClosure() > s.kernels.MaxClosure() {
			s.pool.Release()
		}
		s.kernels.Release()
	}
	s.kernels = kernels

	s.logger.Infof("loaded %d split kernels (max closure %d, policy %s, options %q)", numStages, kernels.MaxClosure(), s.policy, kernels.Features().BuildOptions())
	return nil
}

// The number of path iterations the next tile will run before its first
// ray state check.
func (s *Scheduler) Budget() int {
	return s.pathIterations
}

// The grid sizing policy.
func (s *Scheduler) Policy() SizingPolicy {
	return s.policy
}

// The local work size of the path tracing stages.
func (s *Scheduler) LocalSize() [2]int {
	return s.localSize
}

// Access the persistent buffer pool.
func (s *Scheduler) Pool() *BufferPool {
	return s.pool
}

// Release the kernels and all persistent buffers.
func (s *Scheduler) Close() {
	if s.closed {
		return
	}
	if s.kernels != nil {
		s.kernels.Release()
		s.kernels = nil
	}
	s.pool.Release()
	s.closed = true
}

// Path trace a tile. maxTile is the size of the largest tile that will ever be
// submitted to this scheduler and must be a multiple of the local size; the
// persistent buffers are sized for it when the first tile is processed. The
// tile must fit within maxTile.
//
// Cancellation is reported through the returned stats and is not an error;
// the radiance of a cancelled tile is not accumulated.
func (s *Scheduler) PathTrace(task tracer.Task, tile *tracer.RenderTile, maxTile [2]int, perThreadOutputSize int, kernelData tracer.Buffer) (*TileStats, error) {
	if s.closed {
		return nil, ErrSchedulerClosed
	}
	if s.kernels == nil {
		return nil, ErrKernelsNotLoaded
	}
	if maxTile[0]%s.localSize[0] != 0 || maxTile[1]%s.localSize[1] != 0 {
		panic(fmt.Sprintf("split: max tile %dx%d is not a multiple of the local size %dx%d", maxTile[0], maxTile[1], s.localSize[0], s.localSize[1]))
	}

	startTime := time.Now()

	if err := s.pool.EnsureAllocated(maxTile, s.kernels.MaxClosure(), perThreadOutputSize); err != nil {
		return nil, err
	}
	if pooled := s.pool.MaxTile(); maxTile[0]*maxTile[1] > pooled[0]*pooled[1] {
		panic(fmt.Sprintf("split: max tile %dx%d exceeds the allocated %dx%d", maxTile[0], maxTile[1], pooled[0], pooled[1]))
	}

	plan := s.policy.Plan(tile.W, tile.H, maxTile, tile.NumSamples, s.localSize)
	bufs := s.pool.Buffers()

	err := s.device.InitTileData(plan.Dims, tile, s.pool.Capacity(), plan.NumParallelSamples, kernelData, bufs)
	if err != nil {
		return nil, fmt.Errorf("split: could not initialize data for %s: %w", tile, err)
	}

	stats := &TileStats{
		Tile: *tile,
		Plan: plan,
	}

	shadowDims := plan.Dims
	shadowDims.Global[0] *= 2

	rayState := make([]byte, plan.Dims.WorkItems())
	budget := s.pathIterations
	totalIterations := s.pathIterations

	for activeRays := true; activeRays; {
		stats.OuterPasses++

		for iter := 0; iter < budget && !stats.Cancelled; iter++ {
			// An iteration counts once all of its stages were dispatched
			dispatched := 0
			for st := stageType(0); st < numIterationStages; st++ {
				dims := plan.Dims
				if stageDescriptors[st].grid == shadowGrid {
					dims = shadowDims
				}

				kernel := s.kernels.kernel(st)
				if err = kernel.Enqueue(dims, bufs.KernelGlobals, kernelData); err != nil {
					return nil, fmt.Errorf("split: %s failed for %s: %w", kernel.Name(), tile, err)
				}
				dispatched++

				if task.Cancelled() {
					stats.Cancelled = true
					break
				}
			}
			if dispatched == int(numIterationStages) {
				stats.Iterations++
			}
		}

		if stats.Cancelled {
			break
		}

		// Check whether all rays have been retired
		if err = bufs.RayState.Read(0, rayState); err != nil {
			return nil, fmt.Errorf("split: could not read ray state for %s: %w", tile, err)
		}
		activeRays = anyActive(rayState)

		if activeRays {
			stats.HostInterventions++
			budget = s.increment
			totalIterations += s.increment
		}

		if task.Cancelled() {
			stats.Cancelled = true
			break
		}
	}

	if !stats.Cancelled {
		if err = s.accumulateRadiance(tile, kernelData); err != nil {
			return nil, err
		}
	}

	// If the budget was never exceeded this tile over-dispatched; try with
	// one increment less next time. Otherwise start from the iterations this
	// tile actually needed.
	if stats.HostInterventions == 0 {
		s.pathIterations = totalIterations - s.increment
		if s.pathIterations < s.increment {
			s.pathIterations = s.increment
		}
	} else {
		s.pathIterations = totalIterations
	}

	stats.NextBudget = s.pathIterations
	stats.Duration = time.Since(startTime)

	s.logger.Debugf(
		"%s: %d passes, %d interventions, %d iterations, cancelled: %t, next budget %d (%s)",
		tile, stats.OuterPasses, stats.HostInterventions, stats.Iterations, stats.Cancelled, stats.NextBudget, stats.Duration,
	)

	return stats, nil
}
