// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/olegiv/eventboard/internal/storage"
)

// createTestImage creates a simple test image with the given dimensions.
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func decodeConfig(t *testing.T, data []byte) (image.Config, string) {
	t.Helper()
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}
	return cfg, format
}

func TestTransform_ScalesDownLargeImages(t *testing.T) {
	n := NewNormalizer()
	out, ext, err := n.Transform(encodePNG(t, createTestImage(3200, 800)))
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if ext != ".png" {
		t.Errorf("ext = %q, want .png", ext)
	}
	cfg, format := decodeConfig(t, out)
	if format != "png" || cfg.Width != 1600 || cfg.Height != 400 {
		t.Errorf("got %s %dx%d, want png 1600x400", format, cfg.Width, cfg.Height)
	}
}

func TestTransform_KeepsSmallJPEG(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, createTestImage(120, 80), nil); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}

	out, ext, err := NewNormalizer().Transform(buf.Bytes())
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if ext != ".jpg" {
		t.Errorf("ext = %q, want .jpg", ext)
	}
	cfg, format := decodeConfig(t, out)
	if format != "jpeg" || cfg.Width != 120 || cfg.Height != 80 {
		t.Errorf("got %s %dx%d, want jpeg 120x80", format, cfg.Width, cfg.Height)
	}
}

func TestTransform_GIFPassesThrough(t *testing.T) {
	pal := image.NewPaletted(image.Rect(0, 0, 4, 4), []color.Color{color.Black, color.White})
	var buf bytes.Buffer
	if err := gif.Encode(&buf, pal, nil); err != nil {
		t.Fatalf("gif.Encode: %v", err)
	}

	out, ext, err := NewNormalizer().Transform(buf.Bytes())
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if ext != ".gif" || !bytes.Equal(out, buf.Bytes()) {
		t.Errorf("GIF was rewritten (ext %q)", ext)
	}
}

func TestTransform_Rejects(t *testing.T) {
	// GIF header claiming 60000x60000 pixels and no image data.
	bomb := []byte{'G', 'I', 'F', '8', '9', 'a', 0x60, 0xEA, 0x60, 0xEA, 0, 0, 0}
	tiff := []byte{'I', 'I', '*', 0, 8, 0, 0, 0, 0, 0}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"text", []byte("just some text"), ErrUnsupportedFormat},
		{"tiff", tiff, ErrUnsupportedFormat},
		{"decompression bomb", bomb, ErrTooManyPixels},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := NewNormalizer().Transform(tt.data); !errors.Is(err, tt.want) {
				t.Errorf("Transform() error = %v, want %v", err, tt.want)
			}
		})
	}

	t.Run("truncated png", func(t *testing.T) {
		data := encodePNG(t, createTestImage(10, 10))
		if _, _, err := NewNormalizer().Transform(data[:40]); err == nil {
			t.Error("Transform() accepted a truncated PNG")
		}
	})
}

func TestApplyOrientation(t *testing.T) {
	tests := []struct {
		orientation int
		wantW       int
		wantH       int
	}{
		{0, 20, 10},
		{1, 20, 10},
		{2, 20, 10},
		{3, 20, 10},
		{4, 20, 10},
		{5, 10, 20},
		{6, 10, 20},
		{7, 10, 20},
		{8, 10, 20},
		{9, 20, 10},
	}

	for _, tt := range tests {
		img := applyOrientation(createTestImage(20, 10), tt.orientation)
		b := img.Bounds()
		if b.Dx() != tt.wantW || b.Dy() != tt.wantH {
			t.Errorf("orientation %d: got %dx%d, want %dx%d", tt.orientation, b.Dx(), b.Dy(), tt.wantW, tt.wantH)
		}
	}
}

func TestNormalizer_WithLocalStorage(t *testing.T) {
	dir := t.TempDir()
	l, err := storage.NewLocal(dir, 0, storage.WithTransformer(NewNormalizer()))
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}

	name, err := l.Save(bytes.NewReader(encodePNG(t, createTestImage(40, 30))), "poster.png")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !strings.HasSuffix(name, ".png") {
		t.Errorf("name = %q, want .png suffix", name)
	}
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if cfg, _ := decodeConfig(t, data); cfg.Width != 40 || cfg.Height != 30 {
		t.Errorf("stored %dx%d, want 40x30", cfg.Width, cfg.Height)
	}

	// A PNG signature without a decodable image is refused.
	sig := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}
	if _, err := l.Save(bytes.NewReader(sig), "fake.png"); !errors.Is(err, storage.ErrUnsupportedType) {
		t.Errorf("Save(fake) error = %v, want ErrUnsupportedType", err)
	}
}
