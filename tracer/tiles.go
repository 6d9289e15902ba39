package tracer

import (
	"fmt"
	"sort"
)

// The order in which frame tiles are handed to the scheduler.
type TileOrder uint8

const (
	TopToBottom TileOrder = iota
	BottomToTop
	LeftToRight
	RightToLeft
	Center
)

// Implements Stringer.
func (o TileOrder) String() string {
	switch o {
	case TopToBottom:
		return "top-to-bottom"
	case BottomToTop:
		return "bottom-to-top"
	case LeftToRight:
		return "left-to-right"
	case RightToLeft:
		return "right-to-left"
	case Center:
		return "center"
	}
	panic(fmt.Sprintf("tracer: unsupported tile order %d", o))
}

// Map a tile order name to a TileOrder.
func ParseTileOrder(name string) (TileOrder, error) {
	for o := TopToBottom; o <= Center; o++ {
		if o.String() == name {
			return o, nil
		}
	}
	return TopToBottom, fmt.Errorf("tracer: unknown tile order %q", name)
}

// Split a frame into tiles of at most tileW x tileH pixels. Tiles on the right
// and bottom frame edges are clipped to the frame. Every tile writes to output
// using the frame width as its stride.
func SplitFrame(frameW, frameH, tileW, tileH, numSamples int, order TileOrder, output Buffer) []RenderTile {
	if frameW <= 0 || frameH <= 0 || tileW <= 0 || tileH <= 0 {
		return nil
	}

	tiles := make([]RenderTile, 0, ((frameW+tileW-1)/tileW)*((frameH+tileH-1)/tileH))
	for y := 0; y < frameH; y += tileH {
		for x := 0; x < frameW; x += tileW {
			tiles = append(tiles, RenderTile{
				X:          x,
				Y:          y,
				W:          minInt(tileW, frameW-x),
				H:          minInt(tileH, frameH-y),
				NumSamples: numSamples,
				Stride:     frameW,
				Output:     output,
			})
		}
	}

	switch order {
	case BottomToTop:
		sort.SliceStable(tiles, func(i, j int) bool { return tiles[i].Y > tiles[j].Y })
	case LeftToRight:
		sort.SliceStable(tiles, func(i, j int) bool { return tiles[i].X < tiles[j].X })
	case RightToLeft:
		sort.SliceStable(tiles, func(i, j int) bool { return tiles[i].X > tiles[j].X })
	case Center:
		// Sort by the squared distance of the tile center to the frame center
		cx, cy := frameW/2, frameH/2
		dist := func(t *RenderTile) int {
			dx, dy := t.X+t.W/2-cx, t.Y+t.H/2-cy
			return dx*dx + dy*dy
		}
		sort.SliceStable(tiles, func(i, j int) bool { return dist(&tiles[i]) < dist(&tiles[j]) })
	}

	return tiles
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
