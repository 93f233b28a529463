// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

// Size is a pixel bounding box. Zero means unconstrained.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// IsZero reports whether s imposes no constraint.
func (s Size) IsZero() bool { return s.Width <= 0 && s.Height <= 0 }

// ImageCodec turns fetched bytes into an image.
type ImageCodec interface {
	Decode(data []byte) (image.Image, error)
	Downsample(img image.Image, target Size) image.Image
}

// StdCodec decodes JPEG, PNG, GIF and WebP and downsamples with a
// Catmull-Rom kernel.
type StdCodec struct {
	// MaxPixels rejects images whose header declares more pixels. Zero
	// disables the check.
	MaxPixels int
}

// Decode implements ImageCodec. Every failure wraps ErrDecoding.
func (c StdCodec) Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrDecoding)
	}
	if c.MaxPixels > 0 {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecoding, err)
		}
		if cfg.Width*cfg.Height > c.MaxPixels {
			return nil, fmt.Errorf("%w: %dx%d exceeds pixel limit", ErrDecoding, cfg.Width, cfg.Height)
		}
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecoding, err)
	}
	return img, nil
}

// Downsample scales img to fit inside target, keeping the aspect ratio.
// Images already inside the box are returned unchanged; it never upscales.
func (c StdCodec) Downsample(img image.Image, target Size) image.Image {
	if img == nil || target.IsZero() {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return img
	}

	scale := 1.0
	if target.Width > 0 && w > target.Width {
		scale = float64(target.Width) / float64(w)
	}
	if target.Height > 0 && h > target.Height {
		scale = min(scale, float64(target.Height)/float64(h))
	}
	if scale >= 1.0 {
		return img
	}

	nw := max(1, int(float64(w)*scale))
	nh := max(1, int(float64(h)*scale))
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
