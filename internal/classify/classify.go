// Package classify decides whether a PDF page is raster-only, i.e. a
// scanned image with no text layer and no vector drawings. Smart-mode
// compression rasterizes only such pages; everything else is copied
// verbatim to keep text searchable and vectors sharp.
package classify

import (
	"regexp"
	"strings"
)

// Prober supplies the two content signals for a page.
type Prober interface {
	PageText(pdf []byte, pageIdx int) (string, error)
	PageSVG(pdf []byte, pageIdx int) (string, error)
}

// Signal is the tri-state outcome of probing one content kind.
// Extraction failures map to SignalUnknown, which the decision treats as
// absent: a page is only rasterized when we positively saw nothing worth
// preserving in either channel.
type Signal int

const (
	SignalAbsent Signal = iota
	SignalPresent
	SignalUnknown
)

func (s Signal) String() string {
	switch s {
	case SignalPresent:
		return "present"
	case SignalUnknown:
		return "unknown"
	default:
		return "absent"
	}
}

// Signals holds both per-page probes.
type Signals struct {
	Text   Signal
	Vector Signal
}

// RasterOnly reports whether the page has neither extractable text nor
// vector drawings. Unknown counts as absent.
func (s Signals) RasterOnly() bool {
	return s.Text != SignalPresent && s.Vector != SignalPresent
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// RasterOnly classifies page pageIdx of pdf.
func RasterOnly(p Prober, pdf []byte, pageIdx int) (bool, Signals) {
	sig := Signals{Text: textSignal(p, pdf, pageIdx), Vector: vectorSignal(p, pdf, pageIdx)}
	return sig.RasterOnly(), sig
}

func textSignal(p Prober, pdf []byte, pageIdx int) Signal {
	text, err := p.PageText(pdf, pageIdx)
	if err != nil {
		return SignalUnknown
	}
	if whitespaceRe.ReplaceAllString(text, "") == "" {
		return SignalAbsent
	}
	return SignalPresent
}

func vectorSignal(p Prober, pdf []byte, pageIdx int) Signal {
	svg, err := p.PageSVG(pdf, pageIdx)
	if err != nil {
		return SignalUnknown
	}
	if hasDrawingPrimitives(svg) {
		return SignalPresent
	}
	return SignalAbsent
}

// drawingTags are SVG elements MuPDF emits for stroked/filled geometry.
// <image> is deliberately not in the list: an embedded raster is what a
// raster-only page is made of.
var drawingTags = []string{"<path", "<rect", "<line", "<polyline", "<polygon", "<circle", "<ellipse"}

// hasDrawingPrimitives scans SVG markup for vector geometry in page
// content. Glyph outlines live inside <defs> and clipping geometry inside
// <clipPath>; both are stripped first so a plain scan stays honest.
func hasDrawingPrimitives(svg string) bool {
	svg = stripBlocks(svg, "<defs", "</defs>")
	svg = stripBlocks(svg, "<clipPath", "</clipPath>")
	for _, tag := range drawingTags {
		if strings.Contains(svg, tag) {
			return true
		}
	}
	return false
}

// stripBlocks removes every openTag..closeTag block from s. Unterminated
// blocks are cut to the end of the string.
func stripBlocks(s, openTag, closeTag string) string {
	var b strings.Builder
	for {
		i := strings.Index(s, openTag)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		rest := s[i:]
		j := strings.Index(rest, closeTag)
		if j < 0 {
			return b.String()
		}
		s = rest[j+len(closeTag):]
	}
}
