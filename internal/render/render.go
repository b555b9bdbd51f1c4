// Package render draws diagnostic diagrams of masks, attack sets and hash
// table usage, as SVG or PNG.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	svg "github.com/ajstarks/svgo"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/draw"

	"github.com/hailam/slidermagic/internal/board"
	"github.com/hailam/slidermagic/internal/magic"
)

const (
	cellSize = 60

	// Oversampling factor before the final downscale.
	renderScale = 2
)

// Cell colors
const (
	lightFill   = "fill:#f0d9b5"
	darkFill    = "fill:#b58863"
	maskFill    = "fill:#6fa8dc;fill-opacity:0.75"
	attackFill  = "fill:#93c47d;fill-opacity:0.85"
	blockerFill = "fill:#cc0000"
	originFill  = "fill:#3c3c3c"
	usedFill    = "fill:#3d85c6"
	freeFill    = "fill:#eeeeee"
	holeFill    = "fill:#e69138"
)

// Diagram is one square's geometry on an otherwise empty board.
type Diagram struct {
	Square   board.Square
	Mask     board.Bitboard
	Attacks  board.Bitboard
	Occupied board.Bitboard
}

// NewDiagram computes the mask and the attacks of sq under occupied.
func NewDiagram(sq board.Square, fam board.Family, occupied board.Bitboard) Diagram {
	return Diagram{
		Square:   sq,
		Mask:     board.RelevantMask(sq, fam),
		Attacks:  board.Attacks(sq, fam, occupied),
		Occupied: occupied,
	}
}

// WriteSVG writes the diagram with rank 8 at the top.
func (d Diagram) WriteSVG(w io.Writer) {
	const side = 8 * cellSize
	canvas := svg.New(w)
	canvas.Startview(side, side, 0, 0, side, side)

	for rank := 7; rank >= 0; rank-- {
		for file := 0; file < 8; file++ {
			sq := board.NewSquare(file, rank)
			x, y := file*cellSize, (7-rank)*cellSize

			base := lightFill
			if (file+rank)%2 == 0 {
				base = darkFill
			}
			canvas.Rect(x, y, cellSize, cellSize, base)

			switch {
			case sq == d.Square:
				canvas.Rect(x, y, cellSize, cellSize, originFill)
			case d.Occupied.IsSet(sq) && d.Attacks.IsSet(sq):
				canvas.Rect(x, y, cellSize, cellSize, attackFill)
				canvas.Circle(x+cellSize/2, y+cellSize/2, cellSize/4, blockerFill)
			case d.Attacks.IsSet(sq):
				canvas.Rect(x, y, cellSize, cellSize, attackFill)
			case d.Occupied.IsSet(sq):
				canvas.Circle(x+cellSize/2, y+cellSize/2, cellSize/4, blockerFill)
			}
			if d.Mask.IsSet(sq) {
				canvas.Rect(x+cellSize/3, y+cellSize/3, cellSize/3, cellSize/3, maskFill)
			}
		}
	}

	canvas.End()
}

// SVG returns the diagram as a document.
func (d Diagram) SVG() []byte {
	var buf bytes.Buffer
	d.WriteSVG(&buf)
	return buf.Bytes()
}

// WriteUsageSVG draws the slots [lo, hi] of a hash table as a strip of
// columns, cols slots per row: used slots in blue, free in grey, and free
// slots that belong to one of the holes in orange.
func WriteUsageSVG(w io.Writer, used []bool, lo, hi, cols int, holes []magic.Hole) {
	const slot = 6
	n := hi - lo + 1
	rows := (n + cols - 1) / cols

	inHole := func(j int) bool {
		for _, h := range holes {
			if j >= h.Position && j < h.Position+h.Size {
				return true
			}
		}
		return false
	}

	canvas := svg.New(w)
	canvas.Startview(cols*slot, rows*slot, 0, 0, cols*slot, rows*slot)
	for j := lo; j <= hi; j++ {
		k := j - lo
		x, y := (k%cols)*slot, (k/cols)*slot
		style := freeFill
		switch {
		case used[j]:
			style = usedFill
		case inHole(j):
			style = holeFill
		}
		canvas.Rect(x, y, slot, slot, style)
	}
	canvas.End()
}

// Rasterize renders an SVG document to a width x height image.
func Rasterize(doc []byte, width, height int) (*image.RGBA, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}

	// Render at higher resolution for quality, then scale down.
	rw, rh := width*renderScale, height*renderScale
	icon.SetTarget(0, 0, float64(rw), float64(rh))

	hi := image.NewRGBA(image.Rect(0, 0, rw, rh))
	draw.Draw(hi, hi.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(rw, rh, hi, hi.Bounds())
	raster := rasterx.NewDasher(rw, rh, scanner)
	icon.Draw(raster, 1.0)

	out := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(out, out.Bounds(), hi, hi.Bounds(), draw.Src, nil)
	return out, nil
}

// WritePNG rasterizes the diagram and encodes it as PNG.
func (d Diagram) WritePNG(w io.Writer, size int) error {
	img, err := Rasterize(d.SVG(), size, size)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}
