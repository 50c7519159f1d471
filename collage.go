// Photobox collage compositor
//
// A collage is a fixed-aspect grid of cells, one committed photo per cell in
// slot order. The grid shape is a pure function of the photo count, each
// photo cover-fills its cell (scaled up to fill, centered, cropped at the
// cell edges), and a photo that fails to decode becomes a placeholder cell
// instead of failing the whole render.

package main

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"io"
	"math"

	"github.com/nfnt/resize"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	collageCellWidth  = 400
	collageCellHeight = 300

	// A lone photo gets a bigger canvas; same 4:3 cell, just larger.
	collageSoloCellWidth  = 800
	collageSoloCellHeight = 600

	collageJPEGQuality = 90

	placeholderLabel = "photo"
)

var placeholderColor = color.RGBA{R: 0xFF, G: 0xCE, B: 0x00, A: 0xFF}

var errEmptyCollage = errors.New("no images to compose")

// collageGrid maps a photo count to grid dimensions.
func collageGrid(count int) (cols, rows int) {
	switch {
	case count <= 1:
		return 1, 1
	case count == 2:
		return 2, 1
	case count <= 4:
		return 2, 2
	case count <= 6:
		return 3, 2
	default:
		return 3, 3
	}
}

// composeCollage renders the ordered image payloads into a single flattened
// raster. Each payload lands in cell (i%cols, i/cols); one undecodable
// payload never fails the batch.
func composeCollage(payloads [][]byte) (image.Image, error) {
	if len(payloads) == 0 {
		return nil, errEmptyCollage
	}

	cols, rows := collageGrid(len(payloads))

	cellWidth, cellHeight := collageCellWidth, collageCellHeight
	if len(payloads) == 1 {
		cellWidth, cellHeight = collageSoloCellWidth, collageSoloCellHeight
	}

	canvas := image.NewRGBA(image.Rect(0, 0, cols*cellWidth, rows*cellHeight))

	for i, payload := range payloads {
		col := i % cols
		row := i / cols
		cell := image.Rect(col*cellWidth, row*cellHeight, (col+1)*cellWidth, (row+1)*cellHeight)

		img, _, err := image.Decode(bytes.NewReader(payload))
		if err != nil {
			drawPlaceholder(canvas, cell)
			continue
		}

		drawCover(canvas, cell, img)
	}

	return canvas, nil
}

// drawCover scales img up to fill the cell entirely, centers it, and lets
// draw.Draw crop the overflow at the cell boundary so nothing bleeds into
// neighboring cells.
func drawCover(dst *image.RGBA, cell image.Rectangle, img image.Image) {
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		drawPlaceholder(dst, cell)
		return
	}

	scale := math.Max(
		float64(cell.Dx())/float64(bounds.Dx()),
		float64(cell.Dy())/float64(bounds.Dy()),
	)
	scaledWidth := int(math.Round(float64(bounds.Dx()) * scale))
	scaledHeight := int(math.Round(float64(bounds.Dy()) * scale))

	scaled := resize.Resize(uint(scaledWidth), uint(scaledHeight), img, resize.Lanczos3)

	// Source offset of the centered crop window.
	srcX := (scaledWidth - cell.Dx()) / 2
	srcY := (scaledHeight - cell.Dy()) / 2

	draw.Draw(dst, cell, scaled, image.Pt(srcX, srcY), draw.Src)
}

// drawPlaceholder fills the cell with a solid color and a centered label.
func drawPlaceholder(dst *image.RGBA, cell image.Rectangle) {
	draw.Draw(dst, cell, image.NewUniform(placeholderColor), image.Point{}, draw.Src)

	face := basicfont.Face7x13
	labelWidth := font.MeasureString(face, placeholderLabel).Ceil()

	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.Black),
		Face: face,
		Dot: fixed.P(
			cell.Min.X+(cell.Dx()-labelWidth)/2,
			cell.Min.Y+cell.Dy()/2,
		),
	}
	drawer.DrawString(placeholderLabel)
}

// encodeCollage writes img as a JPEG at the collage quality setting.
func encodeCollage(w io.Writer, img image.Image) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: collageJPEGQuality})
}
