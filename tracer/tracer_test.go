package tracer

import (
	"context"
	"strings"
	"testing"
)

func TestSplitFrame(t *testing.T) {
	type spec struct {
		frameW, frameH int
		tileW, tileH   int
		expTiles       int
		expLastW       int
		expLastH       int
	}
	specs := []spec{
		{64, 64, 64, 64, 1, 64, 64},
		{100, 50, 64, 32, 4, 36, 18},
		{10, 10, 3, 3, 16, 1, 1},
		{0, 10, 3, 3, 0, 0, 0},
	}

	for index, s := range specs {
		tiles := SplitFrame(s.frameW, s.frameH, s.tileW, s.tileH, 8, TopToBottom, nil)
		if len(tiles) != s.expTiles {
			t.Fatalf("[spec %d] expected %d tiles; got %d", index, s.expTiles, len(tiles))
		}
		if s.expTiles == 0 {
			continue
		}

		last := tiles[len(tiles)-1]
		if last.W != s.expLastW || last.H != s.expLastH {
			t.Fatalf("[spec %d] expected last tile to be %dx%d; got %dx%d", index, s.expLastW, s.expLastH, last.W, last.H)
		}

		covered := 0
		for _, tile := range tiles {
			covered += tile.Pixels()
			if tile.Stride != s.frameW {
				t.Fatalf("[spec %d] expected tile stride %d; got %d", index, s.frameW, tile.Stride)
			}
			if tile.NumSamples != 8 {
				t.Fatalf("[spec %d] expected 8 samples; got %d", index, tile.NumSamples)
			}
		}
		if covered != s.frameW*s.frameH {
			t.Fatalf("[spec %d] expected tiles to cover %d pixels; got %d", index, s.frameW*s.frameH, covered)
		}
	}
}

func TestSplitFrameOrder(t *testing.T) {
	tiles := SplitFrame(96, 96, 32, 32, 1, Center, nil)
	if tiles[0].X != 32 || tiles[0].Y != 32 {
		t.Fatalf("expected center tile first; got (%d, %d)", tiles[0].X, tiles[0].Y)
	}

	tiles = SplitFrame(96, 96, 32, 32, 1, BottomToTop, nil)
	if tiles[0].Y != 64 || tiles[len(tiles)-1].Y != 0 {
		t.Fatalf("expected bottom row first; got first Y %d, last Y %d", tiles[0].Y, tiles[len(tiles)-1].Y)
	}

	for o := TopToBottom; o <= Center; o++ {
		parsed, err := ParseTileOrder(o.String())
		if err != nil || parsed != o {
			t.Fatalf("expected %s to round-trip; got %s (err %v)", o, parsed, err)
		}
	}
}

func TestBuildOptions(t *testing.T) {
	opts := RequestedFeatures{MaxClosure: 8, UseHair: true, UseVolume: true}.BuildOptions()

	for _, exp := range []string{"-D__NO_BAKING__", "-D__MAX_CLOSURE__=8", "-D__NO_SUBSURFACE__"} {
		if !strings.Contains(opts, exp) {
			t.Fatalf("expected build options %q to contain %q", opts, exp)
		}
	}
	for _, unexp := range []string{"-D__NO_HAIR__", "-D__NO_VOLUME__", "-D__NO_TRANSPARENT__"} {
		if strings.Contains(opts, unexp) {
			t.Fatalf("expected build options %q not to contain %q", opts, unexp)
		}
	}

	if got := (RequestedFeatures{MaxClosure: -1}).ClosureCount(); got != MaxClosureLimit {
		t.Fatalf("expected unknown closure count to map to %d; got %d", MaxClosureLimit, got)
	}
}

func TestContextTask(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	task := ContextTask(ctx)
	if task.Cancelled() {
		t.Fatal("expected task not to be cancelled")
	}
	cancel()
	if !task.Cancelled() {
		t.Fatal("expected task to be cancelled")
	}
	if Background.Cancelled() {
		t.Fatal("expected background task never to be cancelled")
	}
}
