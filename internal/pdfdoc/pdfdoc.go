// Package pdfdoc is the PDF toolkit boundary: document structure goes
// through pdfcpu, rendering and content signals through go-fitz (MuPDF).
// Everything operates on byte slices; no temp files, no shared handles.
package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"strconv"

	fitz "github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrEncrypted marks password-protected input, which this service does
// not handle.
var ErrEncrypted = errors.New("encrypted document unsupported")

// Toolkit is stateless; each call opens its own document, so concurrent
// use never shares a native handle.
type Toolkit struct{}

func New() *Toolkit { return &Toolkit{} }

func (t *Toolkit) conf() *model.Configuration {
	c := model.NewDefaultConfiguration()
	c.ValidationMode = model.ValidationRelaxed
	return c
}

// PageCount returns the number of pages in a PDF. Password-protected
// input surfaces as ErrEncrypted.
func (t *Toolkit) PageCount(pdf []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(pdf), t.conf())
	if err != nil {
		// pdfcpu reports encryption as a generic read failure; reopen
		// with MuPDF to tell a locked document from a corrupt one.
		if doc, ferr := t.open(pdf); ferr != nil {
			if errors.Is(ferr, ErrEncrypted) {
				return 0, ferr
			}
		} else {
			doc.Close()
		}
		return 0, fmt.Errorf("pdf page count: %w", err)
	}
	return n, nil
}

// ExtractPage re-serializes page pageIdx (0-based) as a minimal
// single-page document with unreferenced objects dropped and streams
// deflated. This is the verbatim copy of a page, and its length is the
// "before" baseline for estimates.
func (t *Toolkit) ExtractPage(pdf []byte, pageIdx int) ([]byte, error) {
	var trimmed bytes.Buffer
	sel := []string{strconv.Itoa(pageIdx + 1)}
	if err := api.Trim(bytes.NewReader(pdf), &trimmed, sel, t.conf()); err != nil {
		return nil, fmt.Errorf("extract page %d: %w", pageIdx, err)
	}
	return t.Optimize(trimmed.Bytes())
}

// Rotate sets an absolute clockwise rotation on every page of pdf.
// Callers pass single-page documents. angle must be a multiple of 90.
func (t *Toolkit) Rotate(pdf []byte, angle int) ([]byte, error) {
	var buf bytes.Buffer
	if err := api.Rotate(bytes.NewReader(pdf), &buf, angle, nil, t.conf()); err != nil {
		return nil, fmt.Errorf("rotate %d: %w", angle, err)
	}
	return buf.Bytes(), nil
}

// Merge concatenates the given documents in order into one document.
func (t *Toolkit) Merge(parts [][]byte) ([]byte, error) {
	if len(parts) == 0 {
		return nil, errors.New("merge: no input documents")
	}
	rs := make([]io.ReadSeeker, len(parts))
	for i, p := range parts {
		rs[i] = bytes.NewReader(p)
	}
	var buf bytes.Buffer
	if err := api.MergeRaw(rs, &buf, false, t.conf()); err != nil {
		return nil, fmt.Errorf("merge %d documents: %w", len(parts), err)
	}
	return buf.Bytes(), nil
}

// Optimize garbage-collects unreferenced objects and deflates streams.
func (t *Toolkit) Optimize(pdf []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := api.Optimize(bytes.NewReader(pdf), &buf, t.conf()); err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}
	return buf.Bytes(), nil
}

// ImagesToPDF wraps one or more encoded images (JPEG/PNG/TIFF/WebP) into
// a document with one page per image, sized to the image.
func (t *Toolkit) ImagesToPDF(images [][]byte) ([]byte, error) {
	if len(images) == 0 {
		return nil, errors.New("images to pdf: no input images")
	}
	readers := make([]io.Reader, len(images))
	for i, img := range images {
		readers[i] = bytes.NewReader(img)
	}
	var buf bytes.Buffer
	if err := api.ImportImages(nil, &buf, readers, nil, t.conf()); err != nil {
		return nil, fmt.Errorf("images to pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (t *Toolkit) open(pdf []byte) (*fitz.Document, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		if errors.Is(err, fitz.ErrNeedsPassword) {
			return nil, fmt.Errorf("open pdf: %w", ErrEncrypted)
		}
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return doc, nil
}

// RenderPage rasterizes page pageIdx at the given DPI into an RGB image.
func (t *Toolkit) RenderPage(pdf []byte, pageIdx int, dpi float64) (image.Image, error) {
	doc, err := t.open(pdf)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	img, err := doc.ImageDPI(pageIdx, dpi)
	if err != nil {
		return nil, fmt.Errorf("render page %d at %.0f dpi: %w", pageIdx, dpi, err)
	}
	return img, nil
}

// PageDims returns the page media box in points (1/72 inch).
func (t *Toolkit) PageDims(pdf []byte, pageIdx int) (w, h float64, err error) {
	doc, err := t.open(pdf)
	if err != nil {
		return 0, 0, err
	}
	defer doc.Close()

	bound, err := doc.Bound(pageIdx)
	if err != nil {
		return 0, 0, fmt.Errorf("page %d bounds: %w", pageIdx, err)
	}
	return float64(bound.Dx()), float64(bound.Dy()), nil
}

// PageText returns the extractable text of a page.
func (t *Toolkit) PageText(pdf []byte, pageIdx int) (string, error) {
	doc, err := t.open(pdf)
	if err != nil {
		return "", err
	}
	defer doc.Close()

	text, err := doc.Text(pageIdx)
	if err != nil {
		return "", fmt.Errorf("page %d text: %w", pageIdx, err)
	}
	return text, nil
}

// PageSVG returns the page rendered as SVG markup. The classifier scans
// it for vector drawing primitives.
func (t *Toolkit) PageSVG(pdf []byte, pageIdx int) (string, error) {
	doc, err := t.open(pdf)
	if err != nil {
		return "", err
	}
	defer doc.Close()

	svg, err := doc.SVG(pageIdx)
	if err != nil {
		return "", fmt.Errorf("page %d svg: %w", pageIdx, err)
	}
	return svg, nil
}
