package renderer

import (
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"math"
	"time"

	"github.com/achilleasa/wavefront/log"
	"github.com/achilleasa/wavefront/tracer"
	"github.com/achilleasa/wavefront/tracer/split"
	"github.com/achilleasa/wavefront/types"
)

type Renderer interface {
	// Render frame.
	Render(ctx context.Context) error

	// Get the tonemapped contents of the last rendered frame.
	Frame() (*image.RGBA, error)

	// Shutdown renderer and release device resources.
	Close()

	// Get render statistics.
	Stats() FrameStats
}

// Devices that can report their memory size let the renderer check that the
// ray slots for a tile fit.
type memorySizer interface {
	MemorySize() int64
}

// A renderer that splits the frame into tiles and path traces them one after
// the other with the split kernel scheduler.
type tileRenderer struct {
	logger log.Logger

	device    tracer.Device
	scheduler *split.Scheduler
	opts      Options

	// Ray slot grid the scheduler buffers are sized for.
	maxTile [2]int

	kernelData tracer.KernelData

	// Device buffers owned by the renderer.
	kernelDataBuf tracer.Buffer
	outputBuf     tracer.Buffer

	tiles    []tracer.RenderTile
	stats    FrameStats
	rendered bool
}

// Create a renderer that traces frames on dev.
func New(dev tracer.Device, opts Options) (Renderer, error) {
	if dev == nil {
		return nil, ErrNoDevice
	}

	if err := opts.normalize(); err != nil {
		return nil, err
	}

	r := &tileRenderer{
		logger: log.New(fmt.Sprintf("renderer (%s)", dev.Name())),
		device: dev,
		opts:   opts,
		kernelData: tracer.KernelData{
			MaxBounces:      opts.NumBounces,
			MinBouncesForRR: opts.MinBouncesForRR,
			Seed:            opts.Seed,
		},
	}

	r.scheduler = split.NewScheduler(dev, split.Options{
		Policy:             opts.Policy,
		LocalSize:          opts.LocalSize,
		IterationIncrement: opts.IterationIncrement,
	})

	err := r.scheduler.LoadKernels(opts.Features)
	if err != nil {
		r.Close()
		return nil, err
	}

	r.maxTile, err = r.planMaxTile()
	if err != nil {
		r.Close()
		return nil, err
	}

	r.kernelDataBuf, err = dev.Buffer("kernelData", tracer.SizeofKernelData)
	if err != nil {
		r.Close()
		return nil, err
	}

	r.outputBuf, err = dev.Buffer("output", r.outputSize())
	if err != nil {
		r.Close()
		return nil, err
	}

	r.tiles = tracer.SplitFrame(opts.FrameW, opts.FrameH, opts.TileW, opts.TileH, opts.SamplesPerPixel, opts.TileOrder, r.outputBuf)

	r.logger.Infof(
		"frame %dx%d split into %d tiles of %dx%d; ray slots sized for %dx%d (%s)",
		opts.FrameW, opts.FrameH, len(r.tiles), opts.TileW, opts.TileH, r.maxTile[0], r.maxTile[1], opts.Policy,
	)

	return r, nil
}

// Size the scheduler's ray slot grid. Work stealing needs one slot per tile
// pixel while fixed parallel samples benefits from as many tile copies as
// there are samples and device memory allows.
func (r *tileRenderer) planMaxTile() ([2]int, error) {
	local := r.opts.LocalSize
	maxTile := [2]int{roundUp(r.opts.TileW, local[0]), roundUp(r.opts.TileH, local[1])}
	area := maxTile[0] * maxTile[1]

	copies := 1
	if _, fixed := r.opts.Policy.(split.FixedParallelSamples); fixed {
		copies = r.opts.SamplesPerPixel
	}

	if ms, ok := r.device.(memorySizer); ok {
		bytesPerRay := split.BytesPerRay(r.opts.Features.ClosureCount(), PerThreadOutputSize)
		memBytes := int64(float64(ms.MemorySize()) * r.opts.MemoryBudget)
		feasible := split.FeasibleTileSize(memBytes, bytesPerRay, local)
		feasibleArea := feasible[0] * feasible[1]
		if feasibleArea < area {
			return maxTile, fmt.Errorf("%w: %dx%d tile needs %d ray slots; device memory fits %d", ErrTileTooLarge, r.opts.TileW, r.opts.TileH, area, feasibleArea)
		}
		if fit := feasibleArea / area; fit < copies {
			copies = fit
		}
	}

	maxTile[0] *= copies
	return maxTile, nil
}

// Each ray slot accumulates one float4 pass.
const PerThreadOutputSize = tracer.PassStride * 4

func (r *tileRenderer) outputSize() int {
	return r.opts.FrameW * r.opts.FrameH * tracer.PassStride * 4
}

// Shutdown renderer and release device resources.
func (r *tileRenderer) Close() {
	if r.scheduler != nil {
		r.scheduler.Close()
		r.scheduler = nil
	}
	if r.kernelDataBuf != nil {
		r.kernelDataBuf.Release()
		r.kernelDataBuf = nil
	}
	if r.outputBuf != nil {
		r.outputBuf.Release()
		r.outputBuf = nil
	}
}

// Render a frame tile by tile. Each call starts from a cleared output buffer
// and advances the frame counter so successive frames use new random
// streams. Cancelling ctx stops the frame after the current dispatch and
// returns ErrInterrupted.
func (r *tileRenderer) Render(ctx context.Context) error {
	if r.scheduler == nil {
		return ErrNoDevice
	}

	start := time.Now()
	r.rendered = false
	r.stats = FrameStats{NextBudget: r.scheduler.Budget()}

	err := r.outputBuf.Write(0, make([]byte, r.outputBuf.Size()))
	if err != nil {
		return err
	}

	err = r.kernelData.Upload(r.kernelDataBuf)
	if err != nil {
		return err
	}
	r.kernelData.FrameCount++

	task := tracer.ContextTask(ctx)
	for i := range r.tiles {
		if task.Cancelled() {
			r.stats.RenderTime = time.Since(start)
			return ErrInterrupted
		}

		tileStats, err := r.scheduler.PathTrace(task, &r.tiles[i], r.maxTile, PerThreadOutputSize, r.kernelDataBuf)
		if err != nil {
			return err
		}
		r.stats.add(tileStats)

		if tileStats.Cancelled {
			r.stats.RenderTime = time.Since(start)
			r.logger.Noticef("render interrupted at %s", &r.tiles[i])
			return ErrInterrupted
		}
	}

	r.stats.RenderTime = time.Since(start)
	r.rendered = true

	r.logger.Infof(
		"rendered %d tiles in %s (%d iterations, %d host interventions)",
		len(r.tiles), r.stats.RenderTime, r.stats.Iterations, r.stats.HostInterventions,
	)
	return nil
}

// Read back the accumulated radiance and tonemap it using the simple
// Reinhard operator.
func (r *tileRenderer) Frame() (*image.RGBA, error) {
	if !r.rendered || r.outputBuf == nil {
		return nil, ErrNothingRendered
	}

	data := make([]byte, r.outputSize())
	if err := r.outputBuf.Read(0, data); err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, r.opts.FrameW, r.opts.FrameH))
	var pass types.Vec4
	for y := 0; y < r.opts.FrameH; y++ {
		for x := 0; x < r.opts.FrameW; x++ {
			offset := (y*r.opts.FrameW + x) * tracer.PassStride * 4
			for c := range pass {
				pass[c] = math.Float32frombits(binary.LittleEndian.Uint32(data[offset+4*c:]))
			}

			rgb := r.tonemap(pass)
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(rgb[0]),
				G: uint8(rgb[1]),
				B: uint8(rgb[2]),
				A: 255,
			})
		}
	}

	return img, nil
}

// Map the radiance sum and sample count of a pixel to 8-bit color values.
func (r *tileRenderer) tonemap(pass types.Vec4) types.Vec3 {
	if pass[3] <= 0 {
		return types.Vec3{}
	}

	return pass.Vec3().Mul(r.opts.Exposure / pass[3]).Map(func(v float32) float32 {
		v = v / (1 + v)
		return float32(math.Min(math.Floor(float64(v)*255+0.5), 255))
	})
}

// Get render statistics.
func (r *tileRenderer) Stats() FrameStats {
	return r.stats
}

func roundUp(v, m int) int {
	return ((v-1)/m + 1) * m
}
