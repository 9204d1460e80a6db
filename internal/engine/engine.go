// Package engine implements the adaptive size-banding compression core:
// page classification, the quality-band JPEG encoder, size estimation,
// real page rendering with guard-rails and document assembly.
//
// The engine holds no mutable state; every operation works on the bytes
// it is handed and opens its own native handles, so concurrent calls for
// different pages are safe.
package engine

import (
	"image"

	"github.com/local/pdfpress/internal/codec"
	"github.com/local/pdfpress/internal/levels"
)

// Toolkit is the PDF capability the engine drives. *pdfdoc.Toolkit
// implements it; tests substitute fakes.
type Toolkit interface {
	PageCount(pdf []byte) (int, error)
	ExtractPage(pdf []byte, pageIdx int) ([]byte, error)
	Rotate(pdf []byte, angle int) ([]byte, error)
	Merge(parts [][]byte) ([]byte, error)
	Optimize(pdf []byte) ([]byte, error)
	ImagesToPDF(images [][]byte) ([]byte, error)
	RenderPage(pdf []byte, pageIdx int, dpi float64) (image.Image, error)
	PageDims(pdf []byte, pageIdx int) (w, h float64, err error)
	PageText(pdf []byte, pageIdx int) (string, error)
	PageSVG(pdf []byte, pageIdx int) (string, error)
}

// Codec is the raster capability. *codec.Codec implements it.
type Codec interface {
	Decode(data []byte) (image.Image, error)
	ToRGB(img image.Image) image.Image
	Resize(img image.Image, w, h int) image.Image
	EncodeJPEG(img image.Image, o codec.JPEGOptions) ([]byte, error)
}

// SourceKind discriminates uploaded blobs.
type SourceKind string

const (
	SourcePDF   SourceKind = "pdf"
	SourceImage SourceKind = "image"
)

// Source is a borrowed view of one uploaded file. The engine never
// mutates or retains Data beyond the current operation.
type Source struct {
	Name string
	Kind SourceKind
	Data []byte
}

// PagePlan is one entry of an estimate/process request: a page reference
// plus the caller's per-page decisions. Plan order defines output order.
type PagePlan struct {
	Source    Source
	PageIndex int // always 0 for image sources
	Level     levels.Level
	Rotate    int
	Keep      bool
}

// Engine drives the toolkit and codec.
type Engine struct {
	tk  Toolkit
	cdc Codec
}

func New(tk Toolkit, cdc Codec) *Engine {
	return &Engine{tk: tk, cdc: cdc}
}
