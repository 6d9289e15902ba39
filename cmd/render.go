package cmd

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"os/signal"
	"time"

	"github.com/achilleasa/wavefront/renderer"
	"github.com/achilleasa/wavefront/tracer"
	"github.com/achilleasa/wavefront/tracer/split"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Flags accepted by the render command.
var RenderFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "config, c",
		Usage: "TOML session config file",
	},
	cli.IntFlag{
		Name:  "width",
		Value: 512,
		Usage: "frame width",
	},
	cli.IntFlag{
		Name:  "height",
		Value: 512,
		Usage: "frame height",
	},
	cli.IntFlag{
		Name:  "tile-width",
		Value: 64,
		Usage: "tile width",
	},
	cli.IntFlag{
		Name:  "tile-height",
		Value: 64,
		Usage: "tile height",
	},
	cli.StringFlag{
		Name:  "tile-order",
		Value: "top-to-bottom",
		Usage: "tile order (top-to-bottom, bottom-to-top, left-to-right, right-to-left, center)",
	},
	cli.IntFlag{
		Name:  "spp",
		Value: 16,
		Usage: "samples per pixel",
	},
	cli.Float64Flag{
		Name:  "exposure",
		Value: 1.0,
		Usage: "camera exposure for tone-mapping",
	},
	cli.IntFlag{
		Name:  "num-bounces",
		Value: 5,
		Usage: "number of indirect ray bounces",
	},
	cli.IntFlag{
		Name:  "rr-bounces",
		Value: 3,
		Usage: "min number of bounces before using russian roulette for path elimination (0 disables RR)",
	},
	cli.IntFlag{
		Name:  "seed",
		Value: 0,
		Usage: "seed for the per-pixel random streams",
	},
	cli.StringFlag{
		Name:  "policy",
		Value: "work-stealing",
		Usage: "ray slot sizing policy (work-stealing, fixed-parallel-samples)",
	},
	cli.StringFlag{
		Name:  "local-size",
		Value: "64x1",
		Usage: "local work size of the path tracing kernels",
	},
	cli.IntFlag{
		Name:  "iteration-increment",
		Value: 8,
		Usage: "path iterations added whenever rays outlive the current budget",
	},
	cli.IntFlag{
		Name:  "max-closure",
		Value: 16,
		Usage: "max shader closures per ray (-1 for the device maximum)",
	},
	cli.StringFlag{
		Name:  "device",
		Value: "auto",
		Usage: "render device (auto, opencl, emulated)",
	},
	cli.StringFlag{
		Name:  "device-type",
		Value: "all",
		Usage: "opencl device type (all, cpu, gpu)",
	},
	cli.StringFlag{
		Name:  "device-name",
		Usage: "select the opencl device whose name contains this value",
	},
	cli.StringFlag{
		Name:  "kernel-source, k",
		Usage: "opencl source file defining the split kernels",
	},
	cli.IntFlag{
		Name:  "emulated-memory",
		Value: 1024,
		Usage: "memory size in MiB of the emulated device",
	},
	cli.IntFlag{
		Name:  "workers",
		Usage: "worker goroutines of the emulated device (0 uses all CPUs)",
	},
	cli.StringFlag{
		Name:  "out, o",
		Value: "frame.png",
		Usage: "image filename for the rendered frame",
	},
}

// Render a still frame.
func RenderFrame(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	opts, err := renderOptions(ctx)
	if err != nil {
		return err
	}

	dev, closeDevice, err := selectDevice(ctx, opts)
	if err != nil {
		return err
	}
	defer closeDevice()

	logger.Noticef("compiling split kernels for device %s", dev.Name())
	start := time.Now()
	r, err := renderer.New(dev, opts)
	if err != nil {
		return err
	}
	defer r.Close()
	logger.Infof("renderer setup in %s", time.Since(start))

	// Interrupt the render on SIGINT
	renderCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = r.Render(renderCtx)
	displayFrameStats(r.Stats())
	if err != nil {
		return err
	}

	frame, err := r.Frame()
	if err != nil {
		return err
	}

	imgFile := ctx.String("out")
	f, err := os.Create(imgFile)
	if err != nil {
		return err
	}
	defer f.Close()

	start = time.Now()
	err = png.Encode(f, frame)
	if err != nil {
		return fmt.Errorf("error encoding png file: %w", err)
	}
	logger.Noticef("wrote frame to %s in %s", imgFile, time.Since(start))

	return nil
}

// Build the renderer options from the command flags. Values from a session
// file replace the flag defaults while explicitly set flags take precedence.
func renderOptions(ctx *cli.Context) (renderer.Options, error) {
	opts := renderer.Options{
		FrameW:             ctx.Int("width"),
		FrameH:             ctx.Int("height"),
		TileW:              ctx.Int("tile-width"),
		TileH:              ctx.Int("tile-height"),
		SamplesPerPixel:    ctx.Int("spp"),
		Exposure:           float32(ctx.Float64("exposure")),
		NumBounces:         uint32(ctx.Int("num-bounces")),
		MinBouncesForRR:    uint32(ctx.Int("rr-bounces")),
		Seed:               uint32(ctx.Int("seed")),
		IterationIncrement: ctx.Int("iteration-increment"),
		Features: tracer.RequestedFeatures{
			MaxClosure: ctx.Int("max-closure"),
		},
	}

	var err error
	if opts.LocalSize, err = parseLocalSize(ctx.String("local-size")); err != nil {
		return opts, err
	}
	if opts.Policy, err = split.ParsePolicy(ctx.String("policy")); err != nil {
		return opts, err
	}
	if opts.TileOrder, err = tracer.ParseTileOrder(ctx.String("tile-order")); err != nil {
		return opts, err
	}

	cfgFile := ctx.String("config")
	if cfgFile == "" {
		return opts, nil
	}

	cfg, err := loadSessionConfig(cfgFile)
	if err != nil {
		return opts, err
	}

	flagOpts := opts
	if err = cfg.apply(&opts); err != nil {
		return opts, err
	}

	// Explicit flags override the session file
	overrides := []struct {
		flag  string
		apply func()
	}{
		{"width", func() { opts.FrameW = flagOpts.FrameW }},
		{"height", func() { opts.FrameH = flagOpts.FrameH }},
		{"tile-width", func() { opts.TileW = flagOpts.TileW }},
		{"tile-height", func() { opts.TileH = flagOpts.TileH }},
		{"tile-order", func() { opts.TileOrder = flagOpts.TileOrder }},
		{"spp", func() { opts.SamplesPerPixel = flagOpts.SamplesPerPixel }},
		{"exposure", func() { opts.Exposure = flagOpts.Exposure }},
		{"num-bounces", func() { opts.NumBounces = flagOpts.NumBounces }},
		{"rr-bounces", func() { opts.MinBouncesForRR = flagOpts.MinBouncesForRR }},
		{"seed", func() { opts.Seed = flagOpts.Seed }},
		{"policy", func() { opts.Policy = flagOpts.Policy }},
		{"local-size", func() { opts.LocalSize = flagOpts.LocalSize }},
		{"iteration-increment", func() { opts.IterationIncrement = flagOpts.IterationIncrement }},
		{"max-closure", func() { opts.Features.MaxClosure = flagOpts.Features.MaxClosure }},
	}
	for _, o := range overrides {
		if ctx.IsSet(o.flag) {
			o.apply()
		}
	}

	return opts, nil
}

func displayFrameStats(stats renderer.FrameStats) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Tile", "Grid", "Parallel samples", "Passes", "Interventions", "Iterations", "Next budget", "Render time"})
	for _, stat := range stats.Tiles {
		status := stat.Duration.String()
		if stat.Cancelled {
			status = "cancelled"
		}
		table.Append([]string{
			stat.Tile.String(),
			fmt.Sprintf("%dx%d", stat.Plan.Dims.Global[0], stat.Plan.Dims.Global[1]),
			fmt.Sprintf("%d", stat.Plan.NumParallelSamples),
			fmt.Sprintf("%d", stat.OuterPasses),
			fmt.Sprintf("%d", stat.HostInterventions),
			fmt.Sprintf("%d", stat.Iterations),
			fmt.Sprintf("%d", stat.NextBudget),
			status,
		})
	}
	table.SetFooter([]string{
		"", "", "TOTAL",
		fmt.Sprintf("%d", stats.OuterPasses),
		fmt.Sprintf("%d", stats.HostInterventions),
		fmt.Sprintf("%d", stats.Iterations),
		fmt.Sprintf("%d", stats.NextBudget),
		stats.RenderTime.String(),
	})

	table.Render()
	logger.Noticef("frame statistics\n%s", buf.String())
}
