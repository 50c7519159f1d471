package main

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseImageDataURL(t *testing.T) {
	payload := encodeTestJPEG(t, 4, 4, color.RGBA{R: 0xFF, A: 0xFF})

	data, err := parseImageDataURL(encodeJPEGDataURL(payload))
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	for _, invalid := range []string{
		"",
		"data:text/plain;base64,aGk=",
		"data:image/jpeg,notbase64header",
		"data:image/jpeg;base64,%%%",
	} {
		_, err := parseImageDataURL(invalid)
		assert.Error(t, err, "input %q", invalid)
	}
}

func TestNormalizeThumbnailDownscales(t *testing.T) {
	big := encodeJPEGDataURL(encodeTestJPEG(t, 640, 360, color.RGBA{G: 0xFF, A: 0xFF}))

	normalized := normalizeThumbnail(big, 160)
	require.NotEqual(t, big, normalized)

	data, err := parseImageDataURL(normalized)
	require.NoError(t, err)

	config, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 160, config.Width)
	assert.Equal(t, 90, config.Height)
}

func TestNormalizeThumbnailPassthrough(t *testing.T) {
	small := encodeJPEGDataURL(encodeTestJPEG(t, 32, 32, color.RGBA{B: 0xFF, A: 0xFF}))
	assert.Equal(t, small, normalizeThumbnail(small, 160))

	// Anything unparseable is stored as-is; previews are best-effort.
	assert.Equal(t, "not-an-image", normalizeThumbnail("not-an-image", 160))

	garbage := "data:image/jpeg;base64,aGVsbG8="
	assert.Equal(t, garbage, normalizeThumbnail(garbage, 160))
}
