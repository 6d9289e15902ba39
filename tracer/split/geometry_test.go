package split

import (
	"testing"
)

func TestWorkStealingGlobalSize(t *testing.T) {
	locals := [][2]int{{64, 1}, {16, 16}, {32, 8}}

	for _, local := range locals {
		for tileW := 1; tileW <= 130; tileW++ {
			for tileH := 1; tileH <= 33; tileH += 4 {
				maxTile := [2]int{roundUp(tileW, local[0]), roundUp(tileH, local[1])}
				plan := WorkStealing{}.Plan(tileW, tileH, maxTile, 16, local)

				for axis, dim := range []int{tileW, tileH} {
					g := plan.Dims.Global[axis]
					if g%local[axis] != 0 || g < dim || g-local[axis] >= dim {
						t.Fatalf("local %v, tile %dx%d: axis %d global size %d is not the smallest multiple of %d >= %d", local, tileW, tileH, axis, g, local[axis], dim)
					}
				}
				if plan.NumParallelSamples != 1 {
					t.Fatalf("expected work stealing to use 1 parallel sample; got %d", plan.NumParallelSamples)
				}
				if plan.Dims.Local != local {
					t.Fatalf("expected local size %v; got %v", local, plan.Dims.Local)
				}
			}
		}
	}
}

func TestParallelSamples(t *testing.T) {
	for columns := 1; columns <= 300; columns++ {
		for samples := 1; samples <= 300; samples += 7 {
			n := ParallelSamples(columns, samples)
			if n > samples {
				t.Fatalf("columns %d, samples %d: got %d parallel samples", columns, samples, n)
			}
			if n >= wavefrontSize && n%wavefrontSize != 0 {
				t.Fatalf("columns %d, samples %d: expected a multiple of %d; got %d", columns, samples, wavefrontSize, n)
			}
			if n == 0 {
				t.Fatalf("columns %d, samples %d: got 0 parallel samples", columns, samples)
			}
		}
	}
}

// Counts below the wavefront size are intentionally left unaligned.
func TestParallelSamplesBelowWavefrontAreNotRounded(t *testing.T) {
	type spec struct {
		columns, samples int
		exp              int
	}
	specs := []spec{
		{50, 100, 50},
		{100, 50, 50},
		{63, 1000, 63},
		{64, 1000, 64},
		{100, 200, 64},
		{130, 1000, 128},
		{1000, 16, 16},
		{0, 16, 0},
	}

	for index, s := range specs {
		if got := ParallelSamples(s.columns, s.samples); got != s.exp {
			t.Fatalf("[spec %d] expected %d parallel samples; got %d", index, s.exp, got)
		}
	}
}

func TestFixedParallelSamplesPlan(t *testing.T) {
	type spec struct {
		tileW, tileH int
		maxTile      [2]int
		samples      int
		expSamples   int
		expGlobal    [2]int
	}
	specs := []spec{
		{16, 8, [2]int{64, 64}, 4, 4, [2]int{64, 8}},
		{8, 4, [2]int{512, 512}, 1000, 960, [2]int{7680, 4}},
		{64, 64, [2]int{64, 64}, 16, 1, [2]int{64, 64}},
		{10, 10, [2]int{128, 64}, 100, 64, [2]int{640, 10}},
	}

	for index, s := range specs {
		plan := FixedParallelSamples{}.Plan(s.tileW, s.tileH, s.maxTile, s.samples, [2]int{64, 1})
		if plan.NumParallelSamples != s.expSamples {
			t.Fatalf("[spec %d] expected %d parallel samples; got %d", index, s.expSamples, plan.NumParallelSamples)
		}
		if plan.Dims.Global != s.expGlobal {
			t.Fatalf("[spec %d] expected global size %v; got %v", index, s.expGlobal, plan.Dims.Global)
		}
		if plan.Dims.WorkItems() > s.maxTile[0]*s.maxTile[1] {
			t.Fatalf("[spec %d] grid exceeds capacity", index)
		}
	}
}

func TestFixedParallelSamplesPanicsWithoutSamples(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected planning a tile with zero parallel samples to panic")
		}
	}()
	FixedParallelSamples{}.Plan(64, 64, [2]int{64, 64}, 0, [2]int{64, 1})
}

func TestPlanPanicsWhenTileExceedsCapacity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected planning a tile larger than the max tile to panic")
		}
	}()
	WorkStealing{}.Plan(128, 64, [2]int{64, 64}, 1, [2]int{64, 1})
}

func TestWorkPoolSize(t *testing.T) {
	if got := (WorkStealing{}).WorkPoolSize([2]int{128, 64}, [2]int{64, 1}); got != 128 {
		t.Fatalf("expected 128 work groups; got %d", got)
	}
	if got := (WorkStealing{}).WorkPoolSize([2]int{64, 64}, [2]int{16, 16}); got != 16 {
		t.Fatalf("expected 16 work groups; got %d", got)
	}
	if got := (FixedParallelSamples{}).WorkPoolSize([2]int{128, 64}, [2]int{64, 1}); got != 0 {
		t.Fatalf("expected no work pool; got %d", got)
	}
}

func TestFeasibleTileSize(t *testing.T) {
	type spec struct {
		mem         int64
		bytesPerRay int
		local       [2]int
		exp         [2]int
	}
	specs := []spec{
		{1 << 20, 16, [2]int{64, 1}, [2]int{256, 256}},
		{1 << 20, 16, [2]int{16, 16}, [2]int{256, 256}},
		{1 << 20, 1 << 20, [2]int{64, 1}, [2]int{}},
		{0, 16, [2]int{64, 1}, [2]int{}},
	}

	for index, s := range specs {
		got := FeasibleTileSize(s.mem, s.bytesPerRay, s.local)
		if got != s.exp {
			t.Fatalf("[spec %d] expected %v; got %v", index, s.exp, got)
		}
	}
}

func TestParsePolicy(t *testing.T) {
	for _, policy := range []SizingPolicy{WorkStealing{}, FixedParallelSamples{}} {
		parsed, err := ParsePolicy(policy.String())
		if err != nil {
			t.Fatal(err)
		}
		if parsed != policy {
			t.Fatalf("expected %s; got %s", policy, parsed)
		}
	}

	if _, err := ParsePolicy("round-robin"); err == nil {
		t.Fatal("expected an error for an unknown policy")
	}
}
