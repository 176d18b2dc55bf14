package imagecodec_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/cordobacasas/casas/internal/domain"
	"github.com/cordobacasas/casas/internal/imagecodec"
)

func TestClampDimensions(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"wide", 2000, 500, 1200, 300},
		{"tall", 900, 2000, 405, 900},
		{"both too big", 4000, 3000, 1200, 900},
		{"wide then tall", 2400, 2400, 900, 900},
		{"already fits", 800, 600, 800, 600},
		{"exact bounds", 1200, 900, 1200, 900},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w, h := imagecodec.ClampDimensions(tc.w, tc.h, 1200, 900)
			if w != tc.wantW || h != tc.wantH {
				t.Fatalf("ClampDimensions(%d, %d) = %dx%d, want %dx%d", tc.w, tc.h, w, h, tc.wantW, tc.wantH)
			}
		})
	}
}

func TestClampDimensions_NeverExceedsBounds(t *testing.T) {
	for w := 1; w <= 5000; w += 137 {
		for h := 1; h <= 5000; h += 211 {
			cw, ch := imagecodec.ClampDimensions(w, h, 1200, 900)
			if cw > 1200 || ch > 900 || cw < 1 || ch < 1 {
				t.Fatalf("ClampDimensions(%d, %d) = %dx%d out of bounds", w, h, cw, ch)
			}
		}
	}
}

func pngBytes(t *testing.T, w, h int, fill color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestEncode_ResizesAndConvertsToJPEG(t *testing.T) {
	codec := imagecodec.Default()
	asset := domain.ImageAsset{
		Filename:    "fachada frente.png",
		ContentType: "image/png",
		Data:        pngBytes(t, 2400, 600, color.NRGBA{R: 200, G: 30, B: 30, A: 255}),
	}

	out, err := codec.Encode(asset)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if out.Width != 1200 || out.Height != 300 {
		t.Fatalf("expected 1200x300, got %dx%d", out.Width, out.Height)
	}
	if out.ContentType != "image/jpeg" {
		t.Fatalf("expected image/jpeg, got %q", out.ContentType)
	}
	if out.Filename != "fachada frente.jpg" {
		t.Fatalf("expected .jpg filename, got %q", out.Filename)
	}

	decoded, err := jpeg.Decode(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("output is not a JPEG: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 1200 || b.Dy() != 300 {
		t.Fatalf("decoded bounds %v", b)
	}
}

func TestEncode_SmallImageKeepsSize(t *testing.T) {
	out, err := imagecodec.Default().Encode(domain.ImageAsset{
		Filename: "chica.png",
		Data:     pngBytes(t, 40, 30, color.Black),
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if out.Width != 40 || out.Height != 30 {
		t.Fatalf("expected 40x30, got %dx%d", out.Width, out.Height)
	}
}

func TestEncode_TransparentBecomesWhite(t *testing.T) {
	out, err := imagecodec.Default().Encode(domain.ImageAsset{
		Filename: "logo.png",
		Data:     pngBytes(t, 16, 16, color.NRGBA{}),
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := jpeg.Decode(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	r, g, b, _ := decoded.At(8, 8).RGBA()
	if r>>8 < 240 || g>>8 < 240 || b>>8 < 240 {
		t.Fatalf("expected white background, got rgb(%d, %d, %d)", r>>8, g>>8, b>>8)
	}
}

func TestEncode_InvalidData(t *testing.T) {
	codec := imagecodec.Default()

	_, err := codec.Encode(domain.ImageAsset{Filename: "x.jpg", Data: []byte("not an image")})
	if !errors.Is(err, domain.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}

	_, err = codec.Encode(domain.ImageAsset{Filename: "empty.jpg"})
	if !errors.Is(err, domain.ErrDecode) {
		t.Fatalf("expected ErrDecode for empty data, got %v", err)
	}
}

// pngHeader returns a PNG signature and IHDR chunk declaring w×h truecolor
// pixels, with no image data.
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	chunk := make([]byte, 4+13)
	copy(chunk, "IHDR")
	binary.BigEndian.PutUint32(chunk[4:], w)
	binary.BigEndian.PutUint32(chunk[8:], h)
	chunk[12] = 8 // bit depth
	chunk[13] = 2 // truecolor
	binary.Write(&buf, binary.BigEndian, uint32(13))
	buf.Write(chunk)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestEncode_RejectsHugeDeclaredDimensions(t *testing.T) {
	codec := imagecodec.Default()

	_, err := codec.Encode(domain.ImageAsset{Filename: "bomba.png", Data: pngHeader(50000, 50000)})
	if !errors.Is(err, domain.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestEncode_MaxPixels(t *testing.T) {
	codec := imagecodec.Default()
	codec.MaxPixels = 100

	_, err := codec.Encode(domain.ImageAsset{Filename: "chica.png", Data: pngBytes(t, 20, 20, color.White)})
	if !errors.Is(err, domain.ErrDecode) {
		t.Fatalf("expected ErrDecode above the pixel limit, got %v", err)
	}

	codec.MaxPixels = 400
	if _, err := codec.Encode(domain.ImageAsset{Filename: "chica.png", Data: pngBytes(t, 20, 20, color.White)}); err != nil {
		t.Fatalf("expected image at the limit to encode, got %v", err)
	}
}

func TestNew_FallsBackToDefaults(t *testing.T) {
	c := imagecodec.New(0, 600, 150)
	if c.MaxWidth != imagecodec.DefaultMaxWidth || c.MaxHeight != 600 || c.Quality != imagecodec.DefaultQuality {
		t.Fatalf("unexpected codec %+v", c)
	}
}
