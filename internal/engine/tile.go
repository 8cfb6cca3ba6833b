package engine

import "image"

// Tile is one cell of the tiling grid laid over a frame.
type Tile struct {
	// Region is the tile's own area of the frame. The regions of all
	// tiles partition the frame exactly, with no gap and no overlap.
	Region image.Rectangle

	// Padded is Region grown by the padding margin on every side. It may
	// extend past the frame bounds; extraction fills those pixels by
	// replicating the nearest frame edge.
	Padded image.Rectangle
}

// Layout splits bounds into a grid of tiles at most edge pixels per side,
// each padded by pad pixels. The final row and column may be smaller than
// edge when the frame dimensions are not an exact multiple.
func Layout(bounds image.Rectangle, edge, pad int) []Tile {
	if bounds.Empty() || edge <= 0 {
		return nil
	}

	tiles := make([]Tile, 0, tileCount(bounds.Dx(), edge)*tileCount(bounds.Dy(), edge))
	for y := bounds.Min.Y; y < bounds.Max.Y; y += edge {
		for x := bounds.Min.X; x < bounds.Max.X; x += edge {
			region := image.Rect(x, y, min(x+edge, bounds.Max.X), min(y+edge, bounds.Max.Y))
			tiles = append(tiles, Tile{
				Region: region,
				Padded: region.Inset(-pad),
			})
		}
	}
	return tiles
}

func tileCount(length, edge int) int {
	return (length + edge - 1) / edge
}

// extractPadded copies t.Padded out of src into a new image with origin at
// (0,0). Pixels outside src's bounds replicate the nearest edge pixel, so a
// border tile still carries a full padding margin for the model to consume.
func extractPadded(src *image.NRGBA, t Tile) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, t.Padded.Dx(), t.Padded.Dy()))

	for dy := 0; dy < t.Padded.Dy(); dy++ {
		srcY := clamp(t.Padded.Min.Y+dy, b.Min.Y, b.Max.Y-1)
		row := dst.Pix[dy*dst.Stride:]
		for dx := 0; dx < t.Padded.Dx(); dx++ {
			srcX := clamp(t.Padded.Min.X+dx, b.Min.X, b.Max.X-1)
			off := src.PixOffset(srcX, srcY)
			copy(row[dx*4:dx*4+4], src.Pix[off:off+4])
		}
	}
	return dst
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
