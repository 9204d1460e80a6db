// Package codec provides the image side of the pipeline: decoding
// arbitrary raster formats, Lanczos resizing and JPEG encoding with
// explicit control over quality, chroma subsampling and the
// optimize/progressive coder flags.
package codec

import (
	"bytes"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"
	"github.com/pixiv/go-libjpeg/jpeg"
)

// Subsampling selects the chroma layout of an encoded JPEG.
type Subsampling int

const (
	// SubsamplingDefault uses 4:2:0 below quality 95 and full chroma at
	// 95 and above, matching what common encoders pick on their own.
	SubsamplingDefault Subsampling = iota
	Subsampling420
	Subsampling444
)

// JPEGOptions configures a single encode.
type JPEGOptions struct {
	Quality     int
	Subsampling Subsampling
	Optimize    bool
	Progressive bool
}

// Codec is stateless and safe for concurrent use.
type Codec struct{}

func New() *Codec { return &Codec{} }

// Decode decodes image bytes into an in-memory raster. JPEG/PNG/GIF come
// from the stdlib decoders, BMP/TIFF/WebP from x/image.
func (c *Codec) Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// ToRGB normalizes any raster to a three-channel RGB-equivalent working
// image. Alpha is dropped, palettes are expanded.
func (c *Codec) ToRGB(img image.Image) image.Image {
	return imaging.Clone(img)
}

// Resize scales img to w x h with Lanczos resampling.
func (c *Codec) Resize(img image.Image, w, h int) image.Image {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

// EncodeJPEG encodes img as JPEG. The quality is clamped to [1,100]; the
// chroma layout is materialized by converting to YCbCr planes at the
// requested ratio before handing off to libjpeg.
func (c *Codec) EncodeJPEG(img image.Image, o JPEGOptions) ([]byte, error) {
	q := o.Quality
	if q < 1 {
		q = 1
	}
	if q > 100 {
		q = 100
	}

	ratio := image.YCbCrSubsampleRatio420
	switch o.Subsampling {
	case Subsampling444:
		ratio = image.YCbCrSubsampleRatio444
	case Subsampling420:
		ratio = image.YCbCrSubsampleRatio420
	default:
		if q >= 95 {
			ratio = image.YCbCrSubsampleRatio444
		}
	}

	var buf bytes.Buffer
	opts := &jpeg.EncoderOptions{
		Quality:         q,
		OptimizeCoding:  o.Optimize,
		ProgressiveMode: o.Progressive,
	}
	if err := jpeg.Encode(&buf, toYCbCr(img, ratio), opts); err != nil {
		return nil, fmt.Errorf("encode jpeg q=%d: %w", q, err)
	}
	return buf.Bytes(), nil
}
