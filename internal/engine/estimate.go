package engine

import (
	"github.com/rs/zerolog/log"

	"github.com/local/pdfpress/internal/classify"
	"github.com/local/pdfpress/internal/levels"
)

// wrapOverheadBytes pads a bare JPEG length when the one-page wrap fails,
// a conservative stand-in for the document framing.
const wrapOverheadBytes = 1024

// EstimatePageSize projects the stored size of one page at a level
// without producing final output where a cheaper proxy suffices. It is
// read-only: safe to call repeatedly and concurrently.
func (e *Engine) EstimatePageSize(src Source, pageIdx int, level levels.Level) (int, error) {
	if src.Kind == SourceImage {
		return e.estimateImage(src, level)
	}
	return e.estimatePDFPage(src, pageIdx, level)
}

func (e *Engine) estimatePDFPage(src Source, pageIdx int, level levels.Level) (int, error) {
	count, err := e.tk.PageCount(src.Data)
	if err != nil {
		return 0, err
	}
	if pageIdx < 0 || pageIdx >= count {
		return 0, &PageIndexError{Index: pageIdx, Count: count}
	}

	p := levels.Get(level)
	switch p.Mode {
	case levels.ModeAll:
		return e.rasterEstimate(src.Data, pageIdx, p)
	case levels.ModeSmart:
		if rasterOnly, _ := classify.RasterOnly(e.tk, src.Data, pageIdx); rasterOnly {
			return e.rasterEstimate(src.Data, pageIdx, p)
		}
		return e.verbatimEstimate(src.Data, pageIdx)
	default:
		return e.verbatimEstimate(src.Data, pageIdx)
	}
}

// verbatimEstimate is the length of the minimal single-page
// re-serialization, the "before" baseline shown to callers.
func (e *Engine) verbatimEstimate(pdf []byte, pageIdx int) (int, error) {
	page, err := e.tk.ExtractPage(pdf, pageIdx)
	if err != nil {
		return 0, err
	}
	return len(page), nil
}

func (e *Engine) rasterEstimate(pdf []byte, pageIdx int, p levels.Params) (int, error) {
	jpg, err := e.rasterizePageJPEG(pdf, pageIdx, p.DPI, p.JPGQ)
	if err != nil {
		return 0, err
	}
	if doc, werr := e.tk.ImagesToPDF([][]byte{jpg}); werr == nil {
		return len(doc), nil
	}
	return len(jpg) + wrapOverheadBytes, nil
}

func (e *Engine) estimateImage(src Source, level levels.Level) (int, error) {
	baseline := e.imageBaseline(src)

	preset, ok := levels.ImageParams(level)
	if !ok {
		return len(baseline), nil
	}

	img, err := e.cdc.Decode(src.Data)
	if err != nil {
		return 0, &DecodeError{Name: src.Name, Err: err}
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
		return len(baseline), nil
	}

	candidate, err := e.tk.ImagesToPDF([][]byte{res.Data})
	if err != nil {
		if n := len(res.Data) + wrapOverheadBytes; n < len(baseline) {
			return n, nil
		}
		return len(baseline), nil
	}
	if len(candidate) < len(baseline) {
		return len(candidate), nil
	}
	return len(baseline), nil
}

// EstimateDocumentSize projects a whole document at one level by summing
// per-page estimates with the same decision tree the renderer uses.
func (e *Engine) EstimateDocumentSize(src Source, level levels.Level) (int, error) {
	if src.Kind == SourceImage {
		return e.estimateImage(src, level)
	}
	if levels.Get(level).Mode == levels.ModeNone {
		return len(src.Data), nil
	}

	count, err := e.tk.PageCount(src.Data)
	if err != nil {
		return 0, err
	}
	total := 0
	for i := 0; i < count; i++ {
		n, err := e.estimatePDFPage(src, i, level)
		if err != nil {
			log.Warn().Err(err).Str("source", src.Name).Int("page", i).
				Msg("page estimate failed; counting zero")
			continue
		}
		total += n
	}
	return total, nil
}

// Estimate runs the caller-facing estimate over ordered plans, returning
// the verbatim total and the projected total. A failing page contributes
// zero to either sum instead of aborting the whole estimate.
func (e *Engine) Estimate(plans []PagePlan) (before, after int64) {
	for _, pl := range plans {
		if !pl.Keep {
			continue
		}
		if n, err := e.EstimatePageSize(pl.Source, pl.PageIndex, levels.None); err == nil {
			before += int64(n)
		} else {
			log.Warn().Err(err).Str("source", pl.Source.Name).Int("page", pl.PageIndex).
				Msg("baseline estimate failed; counting zero")
		}
		if n, err := e.EstimatePageSize(pl.Source, pl.PageIndex, pl.Level); err == nil {
			after += int64(n)
		} else {
			log.Warn().Err(err).Str("source", pl.Source.Name).Int("page", pl.PageIndex).
				Msg("level estimate failed; counting zero")
		}
	}
	return before, after
}
