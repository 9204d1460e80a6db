package engine

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfpress/internal/metrics"
)

// ErrNoPages is returned when every plan entry was skipped or dropped.
var ErrNoPages = errors.New("assemble: no pages in output")

// NormalizeRotation maps any absolute angle onto the stored rotation.
// PDF page rotation is quarter-turn only; anything else degrades to 0,
// the same way an unparseable angle does upstream.
func NormalizeRotation(angle int) int {
	a := ((angle % 360) + 360) % 360
	if a%90 != 0 {
		return 0
	}
	return a
}

// Assemble composes the kept plans, in caller order, into one document.
// Plan order is the single ordering authority for output pages. A page
// that fails to process is dropped and assembly continues; only an empty
// result or a failed merge is an error.
func (e *Engine) Assemble(plans []PagePlan) ([]byte, error) {
	parts := make([][]byte, 0, len(plans))

	for i, pl := range plans {
		if !pl.Keep {
			continue
		}

		page, err := e.RenderPage(pl.Source, pl.PageIndex, pl.Level)
		if err != nil {
			log.Warn().Err(err).
				Str("source", pl.Source.Name).
				Int("page", pl.PageIndex).
				Int("position", i).
				Msg("page failed; dropped from output")
			metrics.PageProcessed("dropped")
			continue
		}

		if angle := NormalizeRotation(pl.Rotate); angle != 0 {
			rotated, err := e.tk.Rotate(page, angle)
			if err != nil {
				// Rotation failure keeps the page, just unrotated.
				log.Warn().Err(err).
					Str("source", pl.Source.Name).
					Int("page", pl.PageIndex).
					Int("angle", angle).
					Msg("rotation failed; keeping page unrotated")
			} else {
				page = rotated
			}
		}

		parts = append(parts, page)
	}

	if len(parts) == 0 {
		return nil, ErrNoPages
	}

	merged, err := e.tk.Merge(parts)
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}
	out, err := e.tk.Optimize(merged)
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}
	return out, nil
}
