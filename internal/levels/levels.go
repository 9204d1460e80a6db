// Package levels defines the static compression presets and the rules for
// resolving the effective level of a single page.
package levels

import "github.com/local/pdfpress/internal/codec"

// Level names a compression preset.
type Level string

const (
	None Level = "none"
	Min  Level = "min"
	Med  Level = "med"
	Max  Level = "max"
)

// Mode selects which pages of a PDF get rasterized.
type Mode string

const (
	// ModeNone copies every page verbatim.
	ModeNone Mode = "none"
	// ModeSmart rasterizes only pages classified as raster-only.
	ModeSmart Mode = "smart"
	// ModeAll rasterizes every page.
	ModeAll Mode = "all"
)

// Params is the fixed parameter tuple behind a level when applied to PDF pages.
type Params struct {
	Mode Mode
	DPI  int
	JPGQ int
}

// presets mirrors the original desktop app levels. Static configuration,
// not derived state.
var presets = map[Level]Params{
	None: {Mode: ModeNone},
	Min:  {Mode: ModeSmart, DPI: 200, JPGQ: 85},
	Med:  {Mode: ModeAll, DPI: 150, JPGQ: 70},
	Max:  {Mode: ModeAll, DPI: 110, JPGQ: 50},
}

// Get returns the parameters for a level, falling back to None for
// unknown values.
func Get(l Level) Params {
	if p, ok := presets[l]; ok {
		return p
	}
	return presets[None]
}

// Valid reports whether l names a known level.
func Valid(l Level) bool {
	_, ok := presets[l]
	return ok
}

// ImagePreset holds the band-encoder parameters used when a level is
// applied to a standalone image. Ratios are relative to the lossless
// single-page baseline; a zero ratio means the bound is not enforced.
type ImagePreset struct {
	QStart      int
	KeepMax     float64
	KeepMin     float64
	MaxSide     int // pre-encode long-side cap in px; 0 = no cap
	QFloor      int
	Subsampling codec.Subsampling
}

var imagePresets = map[Level]ImagePreset{
	Min: {QStart: 88, KeepMax: 0.75, KeepMin: 0.65, MaxSide: 0, QFloor: 45, Subsampling: codec.SubsamplingDefault},
	Med: {QStart: 75, KeepMax: 0.48, KeepMin: 0.30, MaxSide: 1280, QFloor: 30, Subsampling: codec.Subsampling420},
	Max: {QStart: 65, KeepMax: 0.30, KeepMin: 0, MaxSide: 2000, QFloor: 24, Subsampling: codec.Subsampling420},
}

// ImageParams returns the image band preset for a level. The second
// return is false for None and unknown levels, which leave images untouched.
func ImageParams(l Level) (ImagePreset, bool) {
	p, ok := imagePresets[l]
	return p, ok
}

// Resolve computes the effective level of page i: the per-page entry wins
// when present and valid, then the global level, then None.
func Resolve(perPage []Level, global Level, i int) Level {
	if i >= 0 && i < len(perPage) && Valid(perPage[i]) {
		return perPage[i]
	}
	if Valid(global) {
		return global
	}
	return None
}
