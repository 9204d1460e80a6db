package engine

import (
	"image"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfpress/internal/codec"
)

// Band defines the acceptable output-size window for one encode attempt,
// measured against BaselineLen. A zero ratio disables that bound.
type Band struct {
	QStart      int
	KeepMin     float64
	KeepMax     float64
	BaselineLen int
	QFloor      int
	Subsampling codec.Subsampling
}

// EncodeResult carries the chosen encoding. ReachedFloor is informational
// only: some levels have no floor and are allowed to undershoot.
type EncodeResult struct {
	Data         []byte
	Quality      int
	ReachedFloor bool
	Iterations   int
}

const (
	qualityStep = 3
	qualityMax  = 95

	// minLongSide stops the downscale fallback from destroying small
	// images.
	minLongSide = 960

	// maxBandSteps bounds each search loop beyond what the quality and
	// size bounds already imply, so adversarial inputs cannot spin.
	maxBandSteps = 64

	fattenQuality = 100
)

// EncodeInBand re-encodes img as JPEG, walking quality down until the
// size fits under baseline*KeepMax, falling back to spatial downscale
// when quality alone cannot get there, then walking quality back up if
// the result dropped under baseline*KeepMin. Parameters only ever move
// in the correcting direction; the search never oscillates.
func (e *Engine) EncodeInBand(img image.Image, band Band) (EncodeResult, error) {
	work := e.cdc.ToRGB(img)
	res := EncodeResult{ReachedFloor: true}

	enc := func(q int, sub codec.Subsampling, optimize, progressive bool) ([]byte, error) {
		res.Iterations++
		return e.cdc.EncodeJPEG(work, codec.JPEGOptions{
			Quality:     q,
			Subsampling: sub,
			Optimize:    optimize,
			Progressive: progressive,
		})
	}

	q := band.QStart
	if q < 1 {
		q = 1
	}
	if q > qualityMax {
		q = qualityMax
	}

	out, err := enc(q, band.Subsampling, true, true)
	if err != nil {
		return EncodeResult{}, &EncodeError{Quality: q, Err: err}
	}

	if band.KeepMax > 0 {
		ceiling := int(float64(band.BaselineLen) * band.KeepMax)

		// Ceiling pass: linear descent in steps of 3, not bisection.
		// The band is wide and coarse steps keep output sizes
		// comparable between runs.
		for steps := 0; len(out) > ceiling && q > band.QFloor && steps < maxBandSteps; steps++ {
			q -= qualityStep
			if out, err = enc(q, band.Subsampling, true, true); err != nil {
				return EncodeResult{}, &EncodeError{Quality: q, Err: err}
			}
		}

		// Downscale fallback, only when quality headroom is exhausted
		// on the aggressive presets. Byte size scales roughly with
		// pixel area, hence the square root.
		if len(out) > ceiling && q <= band.QFloor && band.QFloor <= 32 {
			targetRatio := float64(ceiling) / float64(max(1, len(out)))
			scale := math.Sqrt(targetRatio) * 0.98
			scale = math.Min(0.98, math.Max(0.60, scale))

			w := work.Bounds().Dx()
			h := work.Bounds().Dy()
			for steps := 0; len(out) > ceiling && max(w, h) > minLongSide && steps < maxBandSteps; steps++ {
				w = max(1, int(float64(w)*scale))
				h = max(1, int(float64(h)*scale))
				work = e.cdc.Resize(work, w, h)
				if out, err = enc(q, band.Subsampling, true, true); err != nil {
					return EncodeResult{}, &EncodeError{Quality: q, Err: err}
				}
			}
		}
	}

	if band.KeepMin > 0 {
		floor := int(float64(band.BaselineLen) * band.KeepMin)

		// Floor pass: quality ascent to avoid drying the image out.
		for steps := 0; len(out) < floor && q < qualityMax && steps < maxBandSteps; steps++ {
			q += qualityStep
			if out, err = enc(q, band.Subsampling, true, true); err != nil {
				return EncodeResult{}, &EncodeError{Quality: q, Err: err}
			}
		}

		// Last-resort fattening: full chroma at 100, then the same
		// without entropy optimization or progressive scan. Keep
		// whichever is largest; never regress below the best so far.
		if len(out) < floor {
			if fat, ferr := enc(fattenQuality, codec.Subsampling444, true, true); ferr == nil && len(fat) > len(out) {
				out = fat
			}
			if len(out) < floor {
				if fat, ferr := enc(fattenQuality, codec.Subsampling444, false, false); ferr == nil && len(fat) > len(out) {
					out = fat
				}
			}
		}

		res.ReachedFloor = len(out) >= floor
		if !res.ReachedFloor {
			log.Debug().
				Int("size", len(out)).
				Int("floor", floor).
				Int("quality", q).
				Msg("band floor not reached; keeping undershoot")
		}
	}

	res.Data = out
	res.Quality = q
	return res, nil
}
