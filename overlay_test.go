package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoverFitScalesToFill(t *testing.T) {
	// Same aspect: pure upscale, no offsets.
	scale, offsetX, offsetY := coverFit(800, 600, 400, 300)
	assert.Equal(t, 2.0, scale)
	assert.Equal(t, 0.0, offsetX)
	assert.Equal(t, 0.0, offsetY)

	// Wide video in a narrower container: vertical axis dictates the
	// scale and the horizontal overflow centers.
	scale, offsetX, offsetY = coverFit(800, 600, 800, 300)
	assert.Equal(t, 2.0, scale)
	assert.Equal(t, -400.0, offsetX)
	assert.Equal(t, 0.0, offsetY)
}

func TestMirrorRectRoundTrips(t *testing.T) {
	r := rectF{Left: 100, Top: 40, Width: 50, Height: 30}

	mirrored := mirrorRect(r, 800)
	assert.Equal(t, 650.0, mirrored.Left)
	assert.Equal(t, r.Top, mirrored.Top)
	assert.Equal(t, r.Width, mirrored.Width)
	assert.Equal(t, r.Height, mirrored.Height)

	assert.Equal(t, r, mirrorRect(mirrored, 800), "mirroring twice restores the original")
}

func TestPlaceOverlayIdentityMapping(t *testing.T) {
	// Container matches the video frame, so cover-fit is the identity
	// and the math reduces to the face box itself.
	identity := overlayVariant{widthFactor: 1, heightFactor: 1}
	face := &faceBox{X: 0.1, Y: 0.25, Width: 0.5, Height: 0.5}

	r := placeOverlay(identity, 400, 300, 400, 300, face)

	// Unmirrored box: left 40, width 200; mirrored: 400-(40+200).
	assert.InDelta(t, 160.0, r.Left, 1e-9)
	assert.InDelta(t, 75.0, r.Top, 1e-9)
	assert.InDelta(t, 200.0, r.Width, 1e-9)
	assert.InDelta(t, 150.0, r.Height, 1e-9)
}

func TestPlaceOverlayAppliesVariantFactors(t *testing.T) {
	v := overlayVariant{widthFactor: 2, heightFactor: 0.5, topOffsetFactor: -1, leftOffsetFactor: 0}
	face := &faceBox{X: 0.25, Y: 0.5, Width: 0.5, Height: 0.25}

	r := placeOverlay(v, 400, 400, 400, 400, face)

	// face: left 100, top 200, 200x100. Overlay doubles the width
	// (centered: left 0), halves the height, shifts up one face height.
	assert.InDelta(t, 0.0, r.Left, 1e-9)
	assert.InDelta(t, 100.0, r.Top, 1e-9)
	assert.InDelta(t, 400.0, r.Width, 1e-9)
	assert.InDelta(t, 50.0, r.Height, 1e-9)
}

func TestPlaceOverlayFallsBackToAssumedBox(t *testing.T) {
	v := overlayVariants["glasses"]

	withNil := placeOverlay(v, 640, 480, 640, 480, nil)
	explicit := assumedFaceBox
	withAssumed := placeOverlay(v, 640, 480, 640, 480, &explicit)

	assert.Equal(t, withAssumed, withNil, "nil face must behave exactly like the assumed box")
}

func TestOverlayVariantsKnown(t *testing.T) {
	for _, name := range []string{"crown", "glasses", "mustache", "party-hat"} {
		_, ok := overlayVariants[name]
		assert.True(t, ok, "variant %q missing", name)
	}
}
