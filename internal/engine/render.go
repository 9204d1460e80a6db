package engine

import (
	"image"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfpress/internal/classify"
	"github.com/local/pdfpress/internal/codec"
	"github.com/local/pdfpress/internal/levels"
	"github.com/local/pdfpress/internal/metrics"
)

const (
	// maxRasterPixels caps page rasters at ~80 megapixels.
	maxRasterPixels = 80_000_000
	minDPI          = 72
)

// capDPI reduces dpi so the rendered page stays at or below
// maxRasterPixels, never going under minDPI.
func capDPI(widthPt, heightPt float64, dpi int) int {
	px := (widthPt * float64(dpi) / 72.0) * (heightPt * float64(dpi) / 72.0)
	if px <= maxRasterPixels {
		return dpi
	}
	scale := math.Sqrt(maxRasterPixels / px)
	capped := int(float64(dpi) * scale)
	if capped < minDPI {
		return minDPI
	}
	return capped
}

// rasterizePageJPEG renders one PDF page at a capped DPI and encodes it
// as a 4:2:0 JPEG at the given quality.
func (e *Engine) rasterizePageJPEG(pdf []byte, pageIdx, dpi, quality int) ([]byte, error) {
	wPt, hPt, err := e.tk.PageDims(pdf, pageIdx)
	if err != nil {
		return nil, err
	}
	eff := capDPI(wPt, hPt, dpi)

	img, err := e.tk.RenderPage(pdf, pageIdx, float64(eff))
	if err != nil {
		return nil, err
	}

	data, err := e.cdc.EncodeJPEG(img, codec.JPEGOptions{
		Quality:     quality,
		Subsampling: codec.Subsampling420,
		Optimize:    true,
	})
	if err != nil {
		return nil, &EncodeError{Quality: quality, Err: err}
	}
	return data, nil
}

// rasterizePagePDF wraps the rasterized page into a one-page document.
func (e *Engine) rasterizePagePDF(pdf []byte, pageIdx, dpi, quality int) ([]byte, error) {
	jpg, err := e.rasterizePageJPEG(pdf, pageIdx, dpi, quality)
	if err != nil {
		return nil, err
	}
	return e.tk.ImagesToPDF([][]byte{jpg})
}

// RenderPage produces the real output bytes for one page at a level.
// Guaranteed not larger than the verbatim copy of the same page.
func (e *Engine) RenderPage(src Source, pageIdx int, level levels.Level) ([]byte, error) {
	if src.Kind == SourceImage {
		return e.renderImage(src, level)
	}
	return e.renderPDFPage(src, pageIdx, level)
}

func (e *Engine) renderPDFPage(src Source, pageIdx int, level levels.Level) ([]byte, error) {
	count, err := e.tk.PageCount(src.Data)
	if err != nil {
		return nil, err
	}
	if pageIdx < 0 || pageIdx >= count {
		return nil, &PageIndexError{Index: pageIdx, Count: count}
	}

	verbatim, err := e.tk.ExtractPage(src.Data, pageIdx)
	if err != nil {
		return nil, err
	}

	p := levels.Get(level)
	if p.Mode == levels.ModeNone {
		metrics.PageProcessed("copied")
		return verbatim, nil
	}

	if p.Mode == levels.ModeSmart {
		rasterOnly, sig := classify.RasterOnly(e.tk, src.Data, pageIdx)
		log.Debug().
			Str("source", src.Name).
			Int("page", pageIdx).
			Stringer("text", sig.Text).
			Stringer("vector", sig.Vector).
			Bool("raster_only", rasterOnly).
			Msg("classified page")
		if !rasterOnly {
			metrics.PageProcessed("copied")
			return verbatim, nil
		}
	}

	candidate, err := e.rasterizePagePDF(src.Data, pageIdx, p.DPI, p.JPGQ)
	if err != nil {
		// Guard-rail chain: a failed transformation falls back to the
		// untransformed copy instead of propagating.
		log.Warn().Err(err).Str("source", src.Name).Int("page", pageIdx).
			Msg("rasterization failed; keeping verbatim page")
		metrics.PageProcessed("copied")
		return verbatim, nil
	}
	if len(candidate) < len(verbatim) {
		metrics.PageProcessed("rasterized")
		metrics.AddBytesSaved(int64(len(verbatim) - len(candidate)))
		return candidate, nil
	}
	metrics.PageProcessed("copied")
	return verbatim, nil
}

// imageBaseline is the lossless single-page conversion of the original
// image. The band is anchored to this document length, never to the raw
// file length.
func (e *Engine) imageBaseline(src Source) []byte {
	base, err := e.tk.ImagesToPDF([][]byte{src.Data})
	if err != nil {
		log.Warn().Err(err).Str("source", src.Name).Msg("lossless wrap failed; using raw bytes as baseline")
		return src.Data
	}
	return base
}

func (e *Engine) renderImage(src Source, level levels.Level) ([]byte, error) {
	baseline := e.imageBaseline(src)

	preset, ok := levels.ImageParams(level)
	if !ok {
		return baseline, nil
	}

	img, err := e.cdc.Decode(src.Data)
	if err != nil {
		return nil, &DecodeError{Name: src.Name, Err: err}
	}
	work := e.preScale(e.cdc.ToRGB(img), preset.MaxSide)

	res, err := e.EncodeInBand(work, Band{
		QStart:      preset.QStart,
		KeepMin:     preset.KeepMin,
		KeepMax:     preset.KeepMax,
		BaselineLen: len(baseline),
		QFloor:      preset.QFloor,
		Subsampling: preset.Subsampling,
	})
	if err != nil {
		log.Warn().Err(err).Str("source", src.Name).Msg("band encode failed; keeping baseline")
		metrics.PageProcessed("copied")
		return baseline, nil
	}
	metrics.BandEncode(res.Iterations, res.ReachedFloor)

	candidate, err := e.tk.ImagesToPDF([][]byte{res.Data})
	if err != nil {
		log.Warn().Err(err).Str("source", src.Name).Msg("candidate wrap failed; keeping baseline")
		metrics.PageProcessed("copied")
		return baseline, nil
	}

	// Final guard-rail: only a strictly smaller document wins.
	if len(candidate) < len(baseline) {
		metrics.PageProcessed("converted")
		metrics.AddBytesSaved(int64(len(baseline) - len(candidate)))
		return candidate, nil
	}
	metrics.PageProcessed("copied")
	return baseline, nil
}

// preScale caps the long side of an image before the band search runs.
func (e *Engine) preScale(img image.Image, maxSide int) image.Image {
	if maxSide <= 0 {
		return img
	}
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	long := max(w, h)
	if long <= maxSide {
		return img
	}
	scale := float64(maxSide) / float64(long)
	return e.cdc.Resize(img, max(1, int(float64(w)*scale)), max(1, int(float64(h)*scale)))
}
