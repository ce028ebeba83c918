// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package imaging normalizes uploaded event images before they are stored.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp" // WebP decoder
)

// Defaults for NewNormalizer.
const (
	DefaultMaxWidth  = 1600
	DefaultMaxHeight = 1600
	DefaultQuality   = 85

	// maxPixels guards against decompression bombs.
	maxPixels = 40_000_000
)

// Errors returned by Transform.
var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrTooManyPixels     = errors.New("image dimensions too large")
)

// Normalizer re-encodes images. EXIF orientation is applied and then
// discarded with the rest of the metadata, and images larger than the
// bounds are scaled down to fit.
type Normalizer struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
}

// NewNormalizer creates a normalizer with the default bounds and quality.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		MaxWidth:  DefaultMaxWidth,
		MaxHeight: DefaultMaxHeight,
		Quality:   DefaultQuality,
	}
}

// Transform implements storage.Transformer. GIFs are passed through
// unchanged to keep animation. WebP is stored as JPEG.
func (n *Normalizer) Transform(data []byte) ([]byte, string, error) {
	format := detectFormat(data)
	if format == "" {
		return nil, "", ErrUnsupportedFormat
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("reading image header: %w", err)
	}
	if cfg.Width*cfg.Height > maxPixels {
		return nil, "", ErrTooManyPixels
	}

	if format == "gif" {
		return data, extensionFor(format), nil
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decoding image: %w", err)
	}

	img = applyOrientation(img, readExifOrientation(bytes.NewReader(data)))
	img = n.fit(img)

	out, err := encodeImage(img, format, n.Quality)
	if err != nil {
		return nil, "", fmt.Errorf("encoding image: %w", err)
	}
	if format == "webp" {
		format = "jpeg"
	}
	return out, extensionFor(format), nil
}

func (n *Normalizer) fit(img image.Image) image.Image {
	b := img.Bounds()
	if n.MaxWidth <= 0 || n.MaxHeight <= 0 || (b.Dx() <= n.MaxWidth && b.Dy() <= n.MaxHeight) {
		return img
	}
	return imaging.Fit(img, n.MaxWidth, n.MaxHeight, imaging.Lanczos)
}

// readExifOrientation reads the EXIF orientation tag from image data.
// Returns 1 (normal) if orientation cannot be determined.
func readExifOrientation(r io.Reader) int {
	x, err := exif.Decode(r)
	if err != nil {
		return 1
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}

	orientation, err := tag.Int(0)
	if err != nil {
		return 1
	}

	return orientation
}

// applyOrientation undoes the camera rotation recorded in EXIF.
// Orientation values:
// 1: Normal
// 2: Flip horizontal
// 3: Rotate 180°
// 4: Flip vertical
// 5: Rotate 90° CW + flip horizontal
// 6: Rotate 90° CW
// 7: Rotate 90° CCW + flip horizontal
// 8: Rotate 90° CCW
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.FlipH(imaging.Rotate270(img))
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.FlipH(imaging.Rotate90(img))
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// encodeImage encodes img. WebP has no pure Go encoder and becomes JPEG.
func encodeImage(img image.Image, format string, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "gif":
		err = gif.Encode(&buf, img, nil)
	default:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// detectFormat sniffs the image format. TIFF is rejected outright
// (CVE-2023-36308 in disintegration/imaging).
func detectFormat(data []byte) string {
	switch mimetype.Detect(data).String() {
	case "image/jpeg":
		return "jpeg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	default:
		return ""
	}
}

func extensionFor(format string) string {
	switch format {
	case "png":
		return ".png"
	case "gif":
		return ".gif"
	default:
		return ".jpg"
	}
}
