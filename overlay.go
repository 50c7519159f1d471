// Decorative overlay placement.
//
// A client runs face detection against its own camera feed and reports a
// normalized face box; the server answers with the pixel rectangle an overlay
// variant should occupy in the client's display container. Keeping the math
// here means the live view and the final baked image place overlays
// identically, whatever renders them.

package main

import "math"

// faceBox is a detected face, normalized to [0,1] of the source frame.
type faceBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// When no face was detected, assume one roughly where a single centered
// subject's face sits. Refusing to render would be worse than a slightly
// misplaced overlay.
var assumedFaceBox = faceBox{X: 0.35, Y: 0.26, Width: 0.30, Height: 0.42}

// overlayVariant holds hand-tuned multipliers, all relative to the displayed
// face box: width/height scale the box, the offsets shift the overlay as
// fractions of the box after horizontal centering.
type overlayVariant struct {
	widthFactor      float64
	heightFactor     float64
	topOffsetFactor  float64
	leftOffsetFactor float64
}

var overlayVariants = map[string]overlayVariant{
	"crown":     {widthFactor: 1.25, heightFactor: 0.65, topOffsetFactor: -0.62, leftOffsetFactor: 0},
	"glasses":   {widthFactor: 1.05, heightFactor: 0.34, topOffsetFactor: 0.20, leftOffsetFactor: 0},
	"mustache":  {widthFactor: 0.72, heightFactor: 0.22, topOffsetFactor: 0.60, leftOffsetFactor: 0},
	"party-hat": {widthFactor: 1.10, heightFactor: 0.95, topOffsetFactor: -0.88, leftOffsetFactor: 0.04},
}

// rectF is a placement rectangle in displayed pixel space.
type rectF struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// coverFit maps source-frame coordinates onto a container the frame
// cover-fills: scaled up until both axes are covered, centered, overflow
// cropped. Returns the scale plus the (non-positive) centering offsets.
func coverFit(containerW, containerH, videoW, videoH float64) (scale, offsetX, offsetY float64) {
	scale = math.Max(containerW/videoW, containerH/videoH)
	offsetX = (containerW - videoW*scale) / 2
	offsetY = (containerH - videoH*scale) / 2
	return scale, offsetX, offsetY
}

// mirrorRect flips a rectangle horizontally within the container. The live
// camera is mirrored for self-view, so every placement is mirrored before
// display, and the identical flip is applied when the final image is baked.
func mirrorRect(r rectF, containerW float64) rectF {
	r.Left = containerW - (r.Left + r.Width)
	return r
}

// placeOverlay computes the displayed, mirrored rectangle for an overlay
// variant. A nil face falls back to the assumed box.
func placeOverlay(v overlayVariant, containerW, containerH, videoW, videoH float64, face *faceBox) rectF {
	if face == nil {
		fallback := assumedFaceBox
		face = &fallback
	}

	scale, offsetX, offsetY := coverFit(containerW, containerH, videoW, videoH)

	faceLeft := face.X*videoW*scale + offsetX
	faceTop := face.Y*videoH*scale + offsetY
	faceWidth := face.Width * videoW * scale
	faceHeight := face.Height * videoH * scale

	width := faceWidth * v.widthFactor
	height := faceHeight * v.heightFactor

	r := rectF{
		Left:   faceLeft + (faceWidth-width)/2 + faceWidth*v.leftOffsetFactor,
		Top:    faceTop + faceHeight*v.topOffsetFactor,
		Width:  width,
		Height: height,
	}

	return mirrorRect(r, containerW)
}
