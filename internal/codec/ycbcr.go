package codec

import (
	"image"
	"image/color"
)

// toYCbCr converts any raster to YCbCr planes at the given subsample
// ratio. For 4:2:0 each chroma cell is the average of its 2x2 luma block;
// 4:4:4 keeps chroma per pixel. Only the two ratios the encoder asks for
// are produced.
func toYCbCr(img image.Image, ratio image.YCbCrSubsampleRatio) *image.YCbCr {
	if src, ok := img.(*image.YCbCr); ok && src.SubsampleRatio == ratio {
		return src
	}

	bounds := img.Bounds()
	// Normalize to a zero-origin rectangle so plane indexing stays simple.
	rect := image.Rect(0, 0, bounds.Dx(), bounds.Dy())
	dst := image.NewYCbCr(rect, ratio)

	w, h := rect.Dx(), rect.Dy()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			yy, _, _ := color.RGBToYCbCr(uint8(r>>8), uint8(g>>8), uint8(b>>8))
			dst.Y[dst.YOffset(x, y)] = yy
		}
	}

	switch ratio {
	case image.YCbCrSubsampleRatio444:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
				_, cb, cr := color.RGBToYCbCr(uint8(r>>8), uint8(g>>8), uint8(b>>8))
				off := dst.COffset(x, y)
				dst.Cb[off] = cb
				dst.Cr[off] = cr
			}
		}
	default: // 4:2:0
		for cy := 0; cy < (h+1)/2; cy++ {
			for cx := 0; cx < (w+1)/2; cx++ {
				var sumCb, sumCr, n int
				for dy := 0; dy < 2; dy++ {
					for dx := 0; dx < 2; dx++ {
						x, y := cx*2+dx, cy*2+dy
						if x >= w || y >= h {
							continue
						}
						r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
						_, cb, cr := color.RGBToYCbCr(uint8(r>>8), uint8(g>>8), uint8(b>>8))
						sumCb += int(cb)
						sumCr += int(cr)
						n++
					}
				}
				off := dst.COffset(cx*2, cy*2)
				dst.Cb[off] = uint8(sumCb / n)
				dst.Cr[off] = uint8(sumCr / n)
			}
		}
	}

	return dst
}
