package emulated

import (
	"encoding/binary"
	"fmt"

	"github.com/achilleasa/wavefront/tracer"
	"github.com/achilleasa/wavefront/tracer/split"
	"github.com/achilleasa/wavefront/types"
)

// Shading constants of the emulated scene.
const (
	escapeProbability   = 0.25
	emitterProbability  = 0.1
	emitterRadiance     = 0.5
	backgroundRadiance  = 0.5
	surfaceAlbedo       = 0.7
	directLightFraction = 0.3
	shadowProbability   = 0.3
	minSurvival         = 0.05
)

type stageFunc func(d *Device, ts *tileState, dims tracer.Dimensions) error

// A split kernel stage executed on the host.
type Kernel struct {
	device   *Device
	name     string
	fn       stageFunc
	released bool
}

func (k *Kernel) Name() string {
	return k.name
}

// Execute the stage. The call returns once all work items have completed.
func (k *Kernel) Enqueue(dims tracer.Dimensions, globals, data tracer.Buffer) error {
	if k.released {
		return fmt.Errorf("emulated device (%s): kernel %s was released", k.device.name, k.name)
	}
	if k.device.tile == nil {
		return fmt.Errorf("emulated device (%s): kernel %s enqueued before tile data initialization", k.device.name, k.name)
	}
	if globals == nil {
		return fmt.Errorf("emulated device (%s): kernel %s requires the kernel globals buffer", k.device.name, k.name)
	}
	if dims.Local[0] <= 0 || dims.Local[1] <= 0 {
		return fmt.Errorf("emulated device (%s): invalid local work size %v for kernel %s", k.device.name, dims.Local, k.name)
	}

	return k.fn(k.device, k.device.tile, dims)
}

func (k *Kernel) Release() {
	k.released = true
}

var stageFuncs = map[string]stageFunc{
	"scene_intersect":          pathStage(sceneIntersect),
	"lamp_emission":            pathStage(lampEmission),
	"queue_enqueue":            queueEnqueue,
	"background_buffer_update": pathStage(backgroundBufferUpdate),
	"shader_eval":              pathStage(shaderEval),
	"holdout_emission_blurring_pathtermination_ao": pathStage(pathTermination),
	"direct_lighting":      pathStage(directLighting),
	"shadow_blocked":       shadowBlocked,
	"next_iteration_setup": pathStage(nextIterationSetup),
	"sum_all_radiance":     sumAllRadiance,
}

// Adapt a per-slot state transition to a stage executed over the path grid.
func pathStage(fn func(ts *tileState, s *slot, state split.RayState) split.RayState) stageFunc {
	return func(d *Device, ts *tileState, dims tracer.Dimensions) error {
		if dims.Global != ts.dims.Global {
			return fmt.Errorf("emulated device (%s): expected global size %v; got %v", d.name, ts.dims.Global, dims.Global)
		}

		d.parallelFor(len(ts.slots), func(i int) {
			s := &ts.slots[i]
			if !s.valid {
				return
			}
			state := split.RayState(ts.rayState.data[i])
			if state == split.RayInactive {
				return
			}
			ts.rayState.data[i] = byte(fn(ts, s, state))
		})
		return nil
	}
}

func sceneIntersect(ts *tileState, s *slot, state split.RayState) split.RayState {
	if state == split.RayRegenerated {
		state = split.RayActive
	}
	if state != split.RayActive {
		return state
	}

	if s.rng.Float32() < escapeProbability {
		return split.RayHitBackground
	}
	return split.RayActive
}

func lampEmission(ts *tileState, s *slot, state split.RayState) split.RayState {
	if state == split.RayActive && s.rng.Float32() < emitterProbability {
		s.radiance += s.throughput * emitterRadiance
	}
	return state
}

func backgroundBufferUpdate(ts *tileState, s *slot, state split.RayState) split.RayState {
	if state != split.RayHitBackground {
		return state
	}
	s.radiance += s.throughput * backgroundRadiance
	return split.RayToRegenerate
}

func shaderEval(ts *tileState, s *slot, state split.RayState) split.RayState {
	if state == split.RayActive {
		s.throughput *= surfaceAlbedo
	}
	return state
}

func pathTermination(ts *tileState, s *slot, state split.RayState) split.RayState {
	if state != split.RayActive {
		return state
	}

	if s.bounce >= int(ts.kernelData.MaxBounces) {
		return split.RayToRegenerate
	}

	if s.bounce >= int(ts.kernelData.MinBouncesForRR) {
		survival := s.throughput
		if survival < minSurvival {
			survival = minSurvival
		}
		if survival < 1 {
			if s.rng.Float32() >= survival {
				return split.RayToRegenerate
			}
			s.throughput /= survival
		}
	}
	return state
}

func directLighting(ts *tileState, s *slot, state split.RayState) split.RayState {
	if state == split.RayActive {
		s.pendingLight = s.throughput * directLightFraction
	}
	return state
}

func nextIterationSetup(ts *tileState, s *slot, state split.RayState) split.RayState {
	switch state {
	case split.RayActive:
		s.bounce++
	case split.RayToRegenerate:
		return s.finishSample(ts.numParallelSamples)
	}
	return state
}

// Record queue occupancy: queue 0 holds rays to shade, queue 1 holds rays
// whose sample is complete.
func queueEnqueue(d *Device, ts *tileState, dims tracer.Dimensions) error {
	if dims.Global != ts.dims.Global {
		return fmt.Errorf("emulated device (%s): expected global size %v; got %v", d.name, ts.dims.Global, dims.Global)
	}

	var counts [split.NumQueues]int32
	for i := range ts.slots {
		switch split.RayState(ts.rayState.data[i]) {
		case split.RayActive, split.RayRegenerated:
			counts[0]++
		case split.RayHitBackground, split.RayToRegenerate:
			counts[1]++
		}
	}

	if ts.queueIndex != nil {
		for q, count := range counts {
			binary.LittleEndian.PutUint32(ts.queueIndex.data[q*4:], uint32(count))
		}
	}
	if ts.useQueuesFlag != nil {
		ts.useQueuesFlag.data[0] = 0
		if counts[0] > 0 {
			ts.useQueuesFlag.data[0] = 1
		}
	}
	return nil
}

// Resolve shadow rays. The grid has two work items per ray slot.
func shadowBlocked(d *Device, ts *tileState, dims tracer.Dimensions) error {
	exp := [2]int{ts.dims.Global[0] * 2, ts.dims.Global[1]}
	if dims.Global != exp {
		return fmt.Errorf("emulated device (%s): expected shadow global size %v; got %v", d.name, exp, dims.Global)
	}

	d.parallelFor(len(ts.slots), func(i int) {
		s := &ts.slots[i]
		if !s.valid || s.pendingLight == 0 {
			return
		}
		if s.rng.Float32() >= shadowProbability {
			s.radiance += s.pendingLight
		}
		s.pendingLight = 0
	})
	return nil
}

// Add the accumulated radiance of every slot to the tile output buffer.
func sumAllRadiance(d *Device, ts *tileState, dims tracer.Dimensions) error {
	tile := &ts.tile
	if dims.Global[0] < tile.W || dims.Global[1] < tile.H {
		return fmt.Errorf("emulated device (%s): radiance grid %v does not cover %s", d.name, dims.Global, tile)
	}

	out, ok := tile.Output.(*Buffer)
	if !ok || out.data == nil {
		return fmt.Errorf("emulated device (%s): %s has no output buffer allocated by this device", d.name, tile)
	}
	if last := tile.OutputIndex(tile.W-1, tile.H-1) + tracer.PassStride; last*4 > len(out.data) {
		return fmt.Errorf("emulated device (%s): %s exceeds output buffer %s", d.name, tile, out.name)
	}

	d.parallelFor(tile.Pixels(), func(p int) {
		x, y := p%tile.W, p/tile.W

		var sum types.Vec3
		var nSamples int
		for sampleOffset := 0; sampleOffset < ts.numParallelSamples; sampleOffset++ {
			s := &ts.slots[y*ts.dims.Global[0]+sampleOffset*tile.W+x]
			sum = sum.Add(s.accum)
			nSamples += s.nSamples
		}

		index := tile.OutputIndex(x, y)
		for c := 0; c < 3; c++ {
			out.setFloat32At(index+c, out.float32At(index+c)+sum[c])
		}
		out.setFloat32At(index+3, out.float32At(index+3)+float32(nSamples))
	})
	return nil
}
