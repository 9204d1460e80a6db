// Package thumbs renders small page previews as inline data URLs so the
// upload response can show every page without a second round trip.
package thumbs

import (
	"encoding/base64"
	"fmt"
	"image"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfpress/internal/codec"
	"github.com/local/pdfpress/internal/engine"
)

const (
	thumbDPI     = 60
	thumbMaxW    = 200
	thumbMaxH    = 300
	thumbQuality = 68
)

type Renderer struct {
	tk  engine.Toolkit
	cdc engine.Codec
}

func New(tk engine.Toolkit, cdc engine.Codec) *Renderer {
	return &Renderer{tk: tk, cdc: cdc}
}

// Page renders a thumbnail for one page of a source. A failed render
// returns an empty string; previews are best-effort.
func (r *Renderer) Page(src engine.Source, pageIdx int) string {
	var img image.Image
	var err error
	switch src.Kind {
	case engine.SourceImage:
		img, err = r.cdc.Decode(src.Data)
	default:
		img, err = r.tk.RenderPage(src.Data, pageIdx, thumbDPI)
	}
	if err != nil {
		log.Warn().Err(err).Str("source", src.Name).Int("page", pageIdx).Msg("thumbnail render failed")
		return ""
	}
	return r.encode(img)
}

func (r *Renderer) encode(img image.Image) string {
	img = r.cdc.ToRGB(img)
	b := img.Bounds()
	w, h := fit(b.Dx(), b.Dy(), thumbMaxW, thumbMaxH)
	if w < b.Dx() || h < b.Dy() {
		img = r.cdc.Resize(img, w, h)
	}
	data, err := r.cdc.EncodeJPEG(img, codec.JPEGOptions{Quality: thumbQuality, Subsampling: codec.Subsampling420})
	if err != nil {
		log.Warn().Err(err).Msg("thumbnail encode failed")
		return ""
	}
	return fmt.Sprintf("data:image/jpeg;base64,%s", base64.StdEncoding.EncodeToString(data))
}

// fit scales (w,h) down to the bounding box preserving aspect ratio.
func fit(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	sw := float64(maxW) / float64(w)
	sh := float64(maxH) / float64(h)
	s := sw
	if sh < s {
		s = sh
	}
	nw, nh := int(float64(w)*s), int(float64(h)*s)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}
