// Package imagecodec converts between camera frames and the base64 data URIs
// exchanged with the face login endpoints.
package imagecodec

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"strings"

	"golang.org/x/image/draw"
)

// DataURIPrefix is the only data URI prefix stripped from submitted images.
const DataURIPrefix = "data:image/png;base64,"

// ErrInvalidImage is returned for empty payloads and payloads that are not
// strict standard base64.
var ErrInvalidImage = errors.New("image is not valid base64")

// DecodeDataURI strips DataURIPrefix when present and decodes the rest.
func DecodeDataURI(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, DataURIPrefix)
	if value == "" {
		return nil, ErrInvalidImage
	}

	data, err := base64.StdEncoding.Strict().DecodeString(value)
	if err != nil || len(data) == 0 {
		return nil, ErrInvalidImage
	}
	return data, nil
}

// EncodeDataURI renders PNG bytes the way a browser canvas does.
func EncodeDataURI(pngData []byte) string {
	return DataURIPrefix + base64.StdEncoding.EncodeToString(pngData)
}

// Scale resizes img by factor using bilinear interpolation. Factors outside
// (0, 1] return the image unchanged.
func Scale(img image.Image, factor float64) image.Image {
	if factor <= 0 || factor >= 1 {
		return img
	}
	bounds := img.Bounds()
	width := int(float64(bounds.Dx()) * factor)
	height := int(float64(bounds.Dy()) * factor)
	if width < 1 || height < 1 {
		return img
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// PrepareFrame decodes a PNG or JPEG frame, scales it by factor and
// re-encodes it as PNG.
func PrepareFrame(raw []byte, factor float64) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, Scale(img, factor)); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}
