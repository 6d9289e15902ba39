package tracer

import (
	"fmt"
	"strings"
)

// A rectangular frame region that is path-traced as a single unit of work.
type RenderTile struct {
	// Tile origin and dimensions in frame pixels.
	X, Y int
	W, H int

	// The first sample index and the number of samples to trace for
	// every tile pixel.
	StartSample int
	NumSamples  int

	// Output addressing: tile pixel (x, y) is written to pixel index
	// Offset + (X+x) + (Y+y)*Stride of the Output buffer. Each pixel holds
	// PassStride float32 values.
	Offset int
	Stride int

	// The device buffer that receives the accumulated radiance.
	Output Buffer
}

// Index of the first float of tile pixel (x, y) in the output buffer.
func (t *RenderTile) OutputIndex(x, y int) int {
	return (t.Offset + t.X + x + (t.Y+y)*t.Stride) * PassStride
}

// Number of pixels covered by the tile.
func (t *RenderTile) Pixels() int {
	return t.W * t.H
}

// Implements Stringer.
func (t *RenderTile) String() string {
	return fmt.Sprintf("tile(%d, %d, %dx%d, spp %d)", t.X, t.Y, t.W, t.H, t.NumSamples)
}

// The set of kernel features that the scene requires. Devices use it to pick
// (or build) a feature-specialized variant of each split kernel.
type RequestedFeatures struct {
	// The max number of shading closures that can be active for a single ray.
	// A negative value means unknown; buffers are then sized for MaxClosureLimit.
	MaxClosure int

	// Shader node groups and features.
	MaxNodesGroup int
	NodesFeatures int

	UseHair               bool
	UseObjectMotion       bool
	UseCameraMotion       bool
	UseBaking             bool
	UseSubsurface         bool
	UseVolume             bool
	UseIntegratorBranched bool
	UsePatchEvaluation    bool
	UseTransparent        bool
}

// The closure count used for sizing when the requested count is unknown.
const MaxClosureLimit = 64

// Return the closure count to use for buffer sizing.
func (f RequestedFeatures) ClosureCount() int {
	if f.MaxClosure < 0 || f.MaxClosure > MaxClosureLimit {
		return MaxClosureLimit
	}
	return f.MaxClosure
}

// Render the compiler defines that disable every feature that is not
// requested. Two feature requests with the same build options can share
// the same compiled kernels.
func (f RequestedFeatures) BuildOptions() string {
	var opts []string

	if !f.UseHair {
		opts = append(opts, "-D__NO_HAIR__")
	}
	if !f.UseObjectMotion {
		opts = append(opts, "-D__NO_OBJECT_MOTION__")
	}
	if !f.UseCameraMotion {
		opts = append(opts, "-D__NO_CAMERA_MOTION__")
	}
	if !f.UseBaking {
		opts = append(opts, "-D__NO_BAKING__")
	}
	if !f.UseVolume {
		opts = append(opts, "-D__NO_VOLUME__")
	}
	if !f.UseSubsurface {
		opts = append(opts, "-D__NO_SUBSURFACE__")
	}
	if !f.UseIntegratorBranched {
		opts = append(opts, "-D__NO_BRANCHED_PATH__")
	}
	if !f.UsePatchEvaluation {
		opts = append(opts, "-D__NO_PATCH_EVAL__")
	}
	if !f.UseTransparent && !f.UseVolume {
		opts = append(opts, "-D__NO_TRANSPARENT__")
	}

	opts = append(opts,
		fmt.Sprintf("-D__NODES_MAX_GROUP__=%d", f.MaxNodesGroup),
		fmt.Sprintf("-D__NODES_FEATURES__=%d", f.NodesFeatures),
		fmt.Sprintf("-D__MAX_CLOSURE__=%d", f.ClosureCount()),
	)

	return strings.Join(opts, " ")
}
