package split

import (
	"fmt"

	"github.com/achilleasa/wavefront/tracer"
)

// Selects the dispatch grid a stage is launched with.
type gridSelector uint8

const (
	// The path-tracing grid planned by the sizing policy.
	pathGrid gridSelector = iota

	// The path-tracing grid with a doubled first axis; each ray slot may
	// cast both an AO and a direct lighting shadow ray.
	shadowGrid

	// A grid over the tile pixels used by the radiance reduction.
	radianceGrid
)

type stageType uint8

// The split kernel stages in dispatch order.
const (
	sceneIntersect stageType = iota
	lampEmission
	queueEnqueue
	backgroundBufferUpdate
	shaderEval
	holdoutEmission
	directLighting
	shadowBlocked
	nextIterationSetup
	sumAllRadiance
	//
	numStages
)

// The stages executed for every path iteration.
const numIterationStages = sumAllRadiance

type stageDescriptor struct {
	name string
	grid gridSelector
}

var stageDescriptors = [numStages]stageDescriptor{
	sceneIntersect:         {"scene_intersect", pathGrid},
	lampEmission:           {"lamp_emission", pathGrid},
	queueEnqueue:           {"queue_enqueue", pathGrid},
	backgroundBufferUpdate: {"background_buffer_update", pathGrid},
	shaderEval:             {"shader_eval", pathGrid},
	holdoutEmission:        {"holdout_emission_blurring_pathtermination_ao", pathGrid},
	directLighting:         {"direct_lighting", pathGrid},
	shadowBlocked:          {"shadow_blocked", shadowGrid},
	nextIterationSetup:     {"next_iteration_setup", pathGrid},
	sumAllRadiance:         {"sum_all_radiance", radianceGrid},
}

// Implements Stringer; map stage type to the kernel name requested from the device.
func (st stageType) String() string {
	if st >= numStages {
		panic(fmt.Sprintf("split: unsupported stage type %d", st))
	}
	return stageDescriptors[st].name
}

// Return the names of all split kernel stages in dispatch order.
func StageNames() []string {
	names := make([]string, numStages)
	for st := stageType(0); st < numStages; st++ {
		names[st] = st.String()
	}
	return names
}

// The resolved split kernel stages for a feature request.
type KernelSet struct {
	kernels    [numStages]tracer.Kernel
	features   tracer.RequestedFeatures
	maxClosure int
}

// Resolve all split kernel stages. Loading fails on the first stage that the
// device cannot provide; any stages resolved up to that point are released.
func LoadKernels(dev tracer.Device, features tracer.RequestedFeatures) (*KernelSet, error) {
	ks := &KernelSet{
		features:   features,
		maxClosure: features.ClosureCount(),
	}

	var err error
	for st := stageType(0); st < numStages; st++ {
		ks.kernels[st], err = dev.SplitKernel(st.String(), features)
		if err == nil && ks.kernels[st] == nil {
			err = fmt.Errorf("no kernel returned")
		}
		if err != nil {
			ks.kernels[st] = nil
			ks.Release()
			return nil, &MissingStageError{Stage: st.String(), Device: dev.Name(), Err: err}
		}
	}

	return ks, nil
}

// The max closure count implied by the feature request.
func (ks *KernelSet) MaxClosure() int {
	return ks.maxClosure
}

// The feature request the kernels were resolved for.
func (ks *KernelSet) Features() tracer.RequestedFeatures {
	return ks.features
}

// Release all kernels.
func (ks *KernelSet) Release() {
	for st, kernel := range ks.kernels {
		if kernel != nil {
			kernel.Release()
			ks.kernels[st] = nil
		}
	}
}

func (ks *KernelSet) kernel(st stageType) tracer.Kernel {
	return ks.kernels[st]
}
