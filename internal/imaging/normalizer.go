// Package imaging produces fixed-size square display images from
// arbitrary raster input.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"os"
	"path/filepath"

	_ "image/gif"
	_ "image/png"

	xdraw "golang.org/x/image/draw"

	"github.com/vialaky/ProductImagePipeline/internal/observability"
)

var (
	// ErrInvalidImage indicates zero-byte or undecodable input.
	ErrInvalidImage = errors.New("invalid image")
	// ErrUnsupportedColorMode indicates a channel layout that cannot be
	// reduced to RGB deterministically.
	ErrUnsupportedColorMode = errors.New("unsupported color mode")
)

// Normalizer resizes rasters into square JPEG output.
type Normalizer struct {
	side    int
	quality int
	logger  *observability.Logger
}

// NewNormalizer creates a Normalizer producing side×side JPEG output at
// the given quality.
func NewNormalizer(side, quality int, logger *observability.Logger) *Normalizer {
	return &Normalizer{side: side, quality: quality, logger: logger.WithStage("process")}
}

// Side returns the output dimension.
func (n *Normalizer) Side() int {
	return n.side
}

// Normalize produces the square output raster for src: an
// aspect-preserving fit scaling the shorter edge to the target side,
// followed by a symmetric center-crop of the longer edge. Input is never
// stretched anisotropically. Alpha and palette inputs are flattened to
// opaque RGB first.
func (n *Normalizer) Normalize(src image.Image) (image.Image, error) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, ErrInvalidImage
	}

	flat := flattenRGB(src)

	// Scale so the shorter edge equals the target side.
	var scaledW, scaledH int
	if w <= h {
		scaledW = n.side
		scaledH = (h*n.side + w/2) / w
	} else {
		scaledH = n.side
		scaledW = (w*n.side + h/2) / h
	}
	if scaledW < n.side {
		scaledW = n.side
	}
	if scaledH < n.side {
		scaledH = n.side
	}

	scaled := image.NewRGBA(image.Rect(0, 0, scaledW, scaledH))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), flat, flat.Bounds(), xdraw.Over, nil)

	// Symmetric crop of the longer edge.
	x0 := (scaledW - n.side) / 2
	y0 := (scaledH - n.side) / 2
	out := image.NewRGBA(image.Rect(0, 0, n.side, n.side))
	draw.Draw(out, out.Bounds(), scaled, image.Pt(x0, y0), draw.Src)

	return out, nil
}

// NormalizeBytes decodes raw image bytes and normalizes them.
func (n *Normalizer) NormalizeBytes(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrInvalidImage
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return n.Normalize(src)
}

// NormalizeFile reads, decodes and normalizes the image at path, writing
// the JPEG result to destPath. Returns the output byte size.
func (n *Normalizer) NormalizeFile(path, destPath string) (int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read image: %w", err)
	}
	out, err := n.NormalizeBytes(data)
	if err != nil {
		return 0, err
	}
	return n.WriteJPEG(out, destPath)
}

// FromRaster wraps raw interleaved pixel data as an image. Only grayscale
// and RGB channel layouts reduce to RGB deterministically; anything else
// fails with ErrUnsupportedColorMode.
func FromRaster(pixels []byte, width, height, channels int) (image.Image, error) {
	if width <= 0 || height <= 0 || len(pixels) != width*height*channels {
		return nil, ErrInvalidImage
	}

	switch channels {
	case 1:
		img := image.NewGray(image.Rect(0, 0, width, height))
		copy(img.Pix, pixels)
		return img, nil
	case 3:
		img := image.NewRGBA(image.Rect(0, 0, width, height))
		for i := 0; i < width*height; i++ {
			img.Pix[i*4+0] = pixels[i*3+0]
			img.Pix[i*4+1] = pixels[i*3+1]
			img.Pix[i*4+2] = pixels[i*3+2]
			img.Pix[i*4+3] = 0xff
		}
		return img, nil
	default:
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedColorMode, channels)
	}
}

// WriteJPEG encodes img as JPEG at the normalizer's quality.
func (n *Normalizer) WriteJPEG(img image.Image, destPath string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return 0, fmt.Errorf("create output dir: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: n.quality}); err != nil {
		return 0, fmt.Errorf("encode jpeg: %w", err)
	}
	if err := os.WriteFile(destPath, buf.Bytes(), 0o644); err != nil {
		return 0, fmt.Errorf("write jpeg: %w", err)
	}
	return int64(buf.Len()), nil
}

// flattenRGB composites src over an opaque white background, dropping
// alpha and palette indirection.
func flattenRGB(src image.Image) *image.RGBA {
	b := src.Bounds()
	flat := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(flat, flat.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), src, b.Min, draw.Over)
	return flat
}
