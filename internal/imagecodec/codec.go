// Package imagecodec re-encodes uploaded photos into bounded JPEGs.
package imagecodec

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/cordobacasas/casas/internal/domain"
)

const (
	DefaultMaxWidth  = 1200
	DefaultMaxHeight = 900
	DefaultQuality   = 80

	// DefaultMaxPixels bounds the decoded size of an upload. 50 megapixels
	// covers full-frame camera output.
	DefaultMaxPixels = 50_000_000
)

// ClampDimensions scales w×h down to fit within maxW×maxH, preserving the
// aspect ratio. Width is clamped first, then height.
func ClampDimensions(w, h, maxW, maxH int) (int, int) {
	if w > maxW {
		h = int(math.Round(float64(h) * (float64(maxW) / float64(w))))
		w = maxW
	}
	if h > maxH {
		w = int(math.Round(float64(w) * (float64(maxH) / float64(h))))
		h = maxH
	}
	return max(w, 1), max(h, 1)
}

// Codec turns an uploaded image into a JPEG no larger than MaxWidth×MaxHeight.
type Codec struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
	// MaxPixels rejects sources whose header declares more pixels. Zero
	// means DefaultMaxPixels.
	MaxPixels int
}

// New creates a Codec. Non-positive arguments fall back to the defaults.
func New(maxWidth, maxHeight, quality int) *Codec {
	c := Default()
	if maxWidth > 0 {
		c.MaxWidth = maxWidth
	}
	if maxHeight > 0 {
		c.MaxHeight = maxHeight
	}
	if quality > 0 && quality <= 100 {
		c.Quality = quality
	}
	return c
}

// Default returns a 1200×900 codec at quality 80.
func Default() *Codec {
	return &Codec{
		MaxWidth:  DefaultMaxWidth,
		MaxHeight: DefaultMaxHeight,
		Quality:   DefaultQuality,
		MaxPixels: DefaultMaxPixels,
	}
}

// Encode decodes asset, resizes it to fit the codec bounds, and re-encodes it
// as JPEG.
func (c *Codec) Encode(asset domain.ImageAsset) (*domain.OptimizedAsset, error) {
	if len(asset.Data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", domain.ErrDecode, asset.Filename)
	}

	// The header is checked first so a small file declaring huge dimensions
	// is rejected before any pixel buffer is allocated.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(asset.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrDecode, asset.Filename, err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > int64(c.maxPixels()) {
		return nil, fmt.Errorf("%w: %s is %dx%d, above the %d pixel limit",
			domain.ErrDecode, asset.Filename, cfg.Width, cfg.Height, c.maxPixels())
	}

	src, err := imaging.Decode(bytes.NewReader(asset.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrDecode, asset.Filename, err)
	}

	b := src.Bounds()
	w, h := ClampDimensions(b.Dx(), b.Dy(), c.MaxWidth, c.MaxHeight)

	var img image.Image = src
	if w != b.Dx() || h != b.Dy() {
		img = imaging.Resize(src, w, h, imaging.Lanczos)
	}

	// JPEG has no alpha channel; transparent pixels would otherwise turn black.
	flat := imaging.New(w, h, color.White)
	flat = imaging.Overlay(flat, img, image.Pt(0, 0), 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, flat, imaging.JPEG, imaging.JPEGQuality(c.Quality)); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrEncode, asset.Filename, err)
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("%w: %s produced no output", domain.ErrEncode, asset.Filename)
	}

	return &domain.OptimizedAsset{
		Filename:    jpegName(asset.Filename),
		ContentType: "image/jpeg",
		Width:       w,
		Height:      h,
		Data:        buf.Bytes(),
	}, nil
}

func (c *Codec) maxPixels() int {
	if c.MaxPixels > 0 {
		return c.MaxPixels
	}
	return DefaultMaxPixels
}

func jpegName(filename string) string {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	if base == "" {
		base = "image"
	}
	return base + ".jpg"
}
