package cmd

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/urfave/cli"

	"github.com/achilleasa/wavefront/tracer"
	"github.com/achilleasa/wavefront/tracer/split"
)

const testSession = `
[frame]
width = 320
height = 240
tile_width = 32
tile_height = 16
tile_order = "center"
spp = 64

[integrator]
bounces = 8
rr_bounces = 4
seed = 99

[scheduler]
policy = "fixed-parallel-samples"
local_size = [32, 2]
iteration_increment = 4

[features]
max_closure = 8
hair = true
volume = true
`

func writeSession(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "session.toml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// Build a cli context for the render command with the given arguments.
func renderContext(t *testing.T, args ...string) *cli.Context {
	set := flag.NewFlagSet("render", flag.ContinueOnError)
	for _, f := range RenderFlags {
		f.Apply(set)
	}
	if err := set.Parse(args); err != nil {
		t.Fatal(err)
	}
	return cli.NewContext(cli.NewApp(), set, nil)
}

func TestRenderOptionsFromFlags(t *testing.T) {
	opts, err := renderOptions(renderContext(t, "-spp", "4", "-policy", "fixed-parallel-samples", "-local-size", "16x4"))
	if err != nil {
		t.Fatal(err)
	}

	if opts.SamplesPerPixel != 4 {
		t.Errorf("expected spp to be 4; got %d", opts.SamplesPerPixel)
	}
	if opts.FrameW != 512 || opts.FrameH != 512 {
		t.Errorf("expected default frame size 512x512; got %dx%d", opts.FrameW, opts.FrameH)
	}
	if _, ok := opts.Policy.(split.FixedParallelSamples); !ok {
		t.Errorf("expected fixed parallel samples policy; got %s", opts.Policy)
	}
	if opts.LocalSize != [2]int{16, 4} {
		t.Errorf("expected local size 16x4; got %v", opts.LocalSize)
	}
	if opts.Features.MaxClosure != 16 {
		t.Errorf("expected max closure 16; got %d", opts.Features.MaxClosure)
	}
}

func TestRenderOptionsFromSession(t *testing.T) {
	session := writeSession(t, testSession)

	opts, err := renderOptions(renderContext(t, "-config", session, "-spp", "8"))
	if err != nil {
		t.Fatal(err)
	}

	if opts.FrameW != 320 || opts.FrameH != 240 {
		t.Errorf("expected frame size 320x240; got %dx%d", opts.FrameW, opts.FrameH)
	}
	if opts.TileW != 32 || opts.TileH != 16 {
		t.Errorf("expected tile size 32x16; got %dx%d", opts.TileW, opts.TileH)
	}
	if opts.TileOrder != tracer.Center {
		t.Errorf("expected center tile order; got %s", opts.TileOrder)
	}

	// The explicit flag wins over the session file
	if opts.SamplesPerPixel != 8 {
		t.Errorf("expected spp to be 8; got %d", opts.SamplesPerPixel)
	}

	if opts.NumBounces != 8 || opts.MinBouncesForRR != 4 || opts.Seed != 99 {
		t.Errorf("unexpected integrator settings: bounces %d, rr %d, seed %d", opts.NumBounces, opts.MinBouncesForRR, opts.Seed)
	}
	if _, ok := opts.Policy.(split.FixedParallelSamples); !ok {
		t.Errorf("expected fixed parallel samples policy; got %s", opts.Policy)
	}
	if opts.LocalSize != [2]int{32, 2} {
		t.Errorf("expected local size 32x2; got %v", opts.LocalSize)
	}
	if opts.IterationIncrement != 4 {
		t.Errorf("expected iteration increment 4; got %d", opts.IterationIncrement)
	}

	expFeatures := tracer.RequestedFeatures{MaxClosure: 8, UseHair: true, UseVolume: true}
	if opts.Features != expFeatures {
		t.Errorf("expected features %+v; got %+v", expFeatures, opts.Features)
	}
}

func TestSessionConfigErrors(t *testing.T) {
	specs := []string{
		"[frame]\nwidht = 10\n",
		"[scheduler]\npolicy = \"round-robin\"\n",
		"[scheduler]\nlocal_size = [64]\n",
		"[frame]\ntile_order = \"spiral\"\n",
		"[frame\n",
	}

	for specIndex, spec := range specs {
		_, err := renderOptions(renderContext(t, "-config", writeSession(t, spec)))
		if err == nil {
			t.Errorf("[spec %d] expected an error", specIndex)
		}
	}

	if _, err := loadSessionConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected an error loading a missing session file")
	}
}

func TestParseLocalSize(t *testing.T) {
	specs := []struct {
		in     string
		exp    [2]int
		expErr bool
	}{
		{"64x1", [2]int{64, 1}, false},
		{"16X16", [2]int{16, 16}, false},
		{" 8 x 2", [2]int{8, 2}, false},
		{"64", [2]int{}, true},
		{"0x1", [2]int{}, true},
		{"ax1", [2]int{}, true},
	}

	for specIndex, spec := range specs {
		got, err := parseLocalSize(spec.in)
		if spec.expErr {
			if err == nil {
				t.Errorf("[spec %d] expected an error parsing %q", specIndex, spec.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("[spec %d] unexpected error: %v", specIndex, err)
			continue
		}
		if got != spec.exp {
			t.Errorf("[spec %d] expected %v; got %v", specIndex, spec.exp, got)
		}
	}
}
