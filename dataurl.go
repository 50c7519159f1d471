package main

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"

	"github.com/nfnt/resize"
)

// Clients submit photos and thumbnails as base64 data URLs, the format camera
// captures arrive in from a browser canvas.

var errNotImageDataURL = errors.New("not an image data URL")

// parseImageDataURL decodes a "data:image/...;base64," payload into raw bytes.
func parseImageDataURL(dataURL string) ([]byte, error) {
	if !strings.HasPrefix(dataURL, "data:image/") {
		return nil, errNotImageDataURL
	}

	header, encoded, found := strings.Cut(dataURL, ",")
	if !found || !strings.HasSuffix(header, ";base64") {
		return nil, errNotImageDataURL
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode image payload: %w", err)
	}

	return data, nil
}

func encodeJPEGDataURL(data []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)
}

// normalizeThumbnail downscales an incoming preview thumbnail so its longest
// edge fits maxDim, re-encoded as JPEG. Previews are best-effort by contract,
// so anything that fails to parse or decode is stored untouched rather than
// rejected.
func normalizeThumbnail(dataURL string, maxDim int) string {
	data, err := parseImageDataURL(dataURL)
	if err != nil {
		return dataURL
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return dataURL
	}

	bounds := img.Bounds()
	if bounds.Dx() <= maxDim && bounds.Dy() <= maxDim {
		return dataURL
	}

	thumb := resize.Thumbnail(uint(maxDim), uint(maxDim), img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 75}); err != nil {
		return dataURL
	}

	return encodeJPEGDataURL(buf.Bytes())
}
