package split

import (
	"errors"
	"testing"

	"github.com/achilleasa/wavefront/tracer"
)

func TestLoadKernels(t *testing.T) {
	dev := newMockDevice(1)
	ks, err := LoadKernels(dev, tracer.RequestedFeatures{MaxClosure: 12})
	if err != nil {
		t.Fatal(err)
	}

	if ks.MaxClosure() != 12 {
		t.Fatalf("expected max closure 12; got %d", ks.MaxClosure())
	}
	if ks.Features() != (tracer.RequestedFeatures{MaxClosure: 12}) {
		t.Fatalf("expected the requested features to be recorded; got %+v", ks.Features())
	}

	expNames := []string{
		"scene_intersect",
		"lamp_emission",
		"queue_enqueue",
		"background_buffer_update",
		"shader_eval",
		"holdout_emission_blurring_pathtermination_ao",
		"direct_lighting",
		"shadow_blocked",
		"next_iteration_setup",
		"sum_all_radiance",
	}
	if len(dev.kernels) != len(expNames) {
		t.Fatalf("expected %d kernels to be resolved; got %d", len(expNames), len(dev.kernels))
	}
	for index, name := range expNames {
		if dev.kernels[index].name != name {
			t.Fatalf("expected kernel %d to be %s; got %s", index, name, dev.kernels[index].name)
		}
		if StageNames()[index] != name {
			t.Fatalf("expected stage %d to be %s; got %s", index, name, StageNames()[index])
		}
	}

	ks.Release()
	ks.Release()
	for _, k := range dev.kernels {
		if k.released != 1 {
			t.Fatalf("expected kernel %s to be released once; got %d", k.name, k.released)
		}
	}
}

func TestLoadKernelsMissingStage(t *testing.T) {
	dev := newMockDevice(1)
	dev.missingStage = "direct_lighting"

	_, err := LoadKernels(dev, tracer.RequestedFeatures{})
	var missing *MissingStageError
	if !errors.As(err, &missing) {
		t.Fatalf("expected a MissingStageError; got %v", err)
	}
	if missing.Stage != "direct_lighting" {
		t.Fatalf("expected missing stage to be direct_lighting; got %s", missing.Stage)
	}

	// Stages resolved before the failure must be released
	if len(dev.kernels) != int(directLighting) {
		t.Fatalf("expected %d resolved kernels; got %d", directLighting, len(dev.kernels))
	}
	for _, k := range dev.kernels {
		if k.released != 1 {
			t.Fatalf("expected kernel %s to be released; got %d releases", k.name, k.released)
		}
	}
}

func TestLoadKernelsUnknownClosureCount(t *testing.T) {
	ks, err := LoadKernels(newMockDevice(1), tracer.RequestedFeatures{MaxClosure: -1})
	if err != nil {
		t.Fatal(err)
	}
	if ks.MaxClosure() != tracer.MaxClosureLimit {
		t.Fatalf("expected max closure %d; got %d", tracer.MaxClosureLimit, ks.MaxClosure())
	}
}
