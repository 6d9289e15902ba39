package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/achilleasa/wavefront/renderer"
	"github.com/achilleasa/wavefront/tracer"
	"github.com/achilleasa/wavefront/tracer/split"
)

// A render session loaded from a TOML file. Zero values leave the
// corresponding option untouched.
type sessionConfig struct {
	Frame struct {
		Width      int     `toml:"width"`
		Height     int     `toml:"height"`
		TileWidth  int     `toml:"tile_width"`
		TileHeight int     `toml:"tile_height"`
		TileOrder  string  `toml:"tile_order"`
		Samples    int     `toml:"spp"`
		Exposure   float64 `toml:"exposure"`
	} `toml:"frame"`

	Integrator struct {
		Bounces   uint32 `toml:"bounces"`
		RRBounces uint32 `toml:"rr_bounces"`
		Seed      uint32 `toml:"seed"`
	} `toml:"integrator"`

	Scheduler struct {
		Policy             string  `toml:"policy"`
		LocalSize          []int   `toml:"local_size"`
		IterationIncrement int     `toml:"iteration_increment"`
		MemoryBudget       float64 `toml:"memory_budget"`
	} `toml:"scheduler"`

	Features *featureConfig `toml:"features"`
}

type featureConfig struct {
	MaxClosure         int  `toml:"max_closure"`
	MaxNodesGroup      int  `toml:"max_nodes_group"`
	NodesFeatures      int  `toml:"nodes_features"`
	Hair               bool `toml:"hair"`
	ObjectMotion       bool `toml:"object_motion"`
	CameraMotion       bool `toml:"camera_motion"`
	Baking             bool `toml:"baking"`
	Subsurface         bool `toml:"subsurface"`
	Volume             bool `toml:"volume"`
	IntegratorBranched bool `toml:"integrator_branched"`
	PatchEvaluation    bool `toml:"patch_evaluation"`
	Transparent        bool `toml:"transparent"`
}

// Parse a session file. Unknown keys are rejected so typos do not silently
// fall back to defaults.
func loadSessionConfig(path string) (*sessionConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := &sessionConfig{}
	err = toml.NewDecoder(f).DisallowUnknownFields().Decode(cfg)
	if err != nil {
		return nil, fmt.Errorf("session config %s: %w", path, err)
	}

	return cfg, nil
}

// Overlay the session values on top of opts.
func (cfg *sessionConfig) apply(opts *renderer.Options) error {
	setInt(&opts.FrameW, cfg.Frame.Width)
	setInt(&opts.FrameH, cfg.Frame.Height)
	setInt(&opts.TileW, cfg.Frame.TileWidth)
	setInt(&opts.TileH, cfg.Frame.TileHeight)
	setInt(&opts.SamplesPerPixel, cfg.Frame.Samples)
	if cfg.Frame.Exposure > 0 {
		opts.Exposure = float32(cfg.Frame.Exposure)
	}
	if cfg.Frame.TileOrder != "" {
		order, err := tracer.ParseTileOrder(cfg.Frame.TileOrder)
		if err != nil {
			return err
		}
		opts.TileOrder = order
	}

	if cfg.Integrator.Bounces > 0 {
		opts.NumBounces = cfg.Integrator.Bounces
	}
	if cfg.Integrator.RRBounces > 0 {
		opts.MinBouncesForRR = cfg.Integrator.RRBounces
	}
	if cfg.Integrator.Seed > 0 {
		opts.Seed = cfg.Integrator.Seed
	}

	if cfg.Scheduler.Policy != "" {
		policy, err := split.ParsePolicy(cfg.Scheduler.Policy)
		if err != nil {
			return err
		}
		opts.Policy = policy
	}
	if len(cfg.Scheduler.LocalSize) != 0 {
		if len(cfg.Scheduler.LocalSize) != 2 {
			return fmt.Errorf("session config: local_size needs 2 values; got %d", len(cfg.Scheduler.LocalSize))
		}
		opts.LocalSize = [2]int{cfg.Scheduler.LocalSize[0], cfg.Scheduler.LocalSize[1]}
	}
	setInt(&opts.IterationIncrement, cfg.Scheduler.IterationIncrement)
	if cfg.Scheduler.MemoryBudget > 0 {
		opts.MemoryBudget = cfg.Scheduler.MemoryBudget
	}

	if f := cfg.Features; f != nil {
		opts.Features = tracer.RequestedFeatures{
			MaxClosure:            f.MaxClosure,
			MaxNodesGroup:         f.MaxNodesGroup,
			NodesFeatures:         f.NodesFeatures,
			UseHair:               f.Hair,
			UseObjectMotion:       f.ObjectMotion,
			UseCameraMotion:       f.CameraMotion,
			UseBaking:             f.Baking,
			UseSubsurface:         f.Subsurface,
			UseVolume:             f.Volume,
			UseIntegratorBranched: f.IntegratorBranched,
			UsePatchEvaluation:    f.PatchEvaluation,
			UseTransparent:        f.Transparent,
		}
	}

	return nil
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

// Parse a local work size in WxH format.
func parseLocalSize(v string) ([2]int, error) {
	var size [2]int

	parts := strings.Split(strings.ToLower(v), "x")
	if len(parts) != 2 {
		return size, fmt.Errorf("invalid local size %q; expected WxH", v)
	}

	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n <= 0 {
			return size, fmt.Errorf("invalid local size %q; expected WxH", v)
		}
		size[i] = n
	}

	return size, nil
}
