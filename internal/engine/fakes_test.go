package engine

import (
	"bytes"
	"fmt"
	"image"

	"github.com/local/pdfpress/internal/codec"
)

// fakeToolkit implements Toolkit with overridable behavior. Nil fields
// fall back to deterministic defaults keyed off the input bytes.
type fakeToolkit struct {
	pageCount   func(pdf []byte) (int, error)
	extractPage func(pdf []byte, idx int) ([]byte, error)
	rotate      func(pdf []byte, angle int) ([]byte, error)
	merge       func(parts [][]byte) ([]byte, error)
	optimize    func(pdf []byte) ([]byte, error)
	imagesToPDF func(images [][]byte) ([]byte, error)
	renderPage  func(pdf []byte, idx int, dpi float64) (image.Image, error)
	pageDims    func(pdf []byte, idx int) (float64, float64, error)
	pageText    func(pdf []byte, idx int) (string, error)
	pageSVG     func(pdf []byte, idx int) (string, error)
}

func (t *fakeToolkit) PageCount(pdf []byte) (int, error) {
	if t.pageCount != nil {
		return t.pageCount(pdf)
	}
	return 1, nil
}

func (t *fakeToolkit) ExtractPage(pdf []byte, idx int) ([]byte, error) {
	if t.extractPage != nil {
		return t.extractPage(pdf, idx)
	}
	return []byte(fmt.Sprintf("%s#%d", pdf, idx)), nil
}

func (t *fakeToolkit) Rotate(pdf []byte, angle int) ([]byte, error) {
	if t.rotate != nil {
		return t.rotate(pdf, angle)
	}
	return []byte(fmt.Sprintf("%s@%d", pdf, angle)), nil
}

func (t *fakeToolkit) Merge(parts [][]byte) ([]byte, error) {
	if t.merge != nil {
		return t.merge(parts)
	}
	return bytes.Join(parts, []byte("|")), nil
}

func (t *fakeToolkit) Optimize(pdf []byte) ([]byte, error) {
	if t.optimize != nil {
		return t.optimize(pdf)
	}
	return append([]byte("opt:"), pdf...), nil
}

func (t *fakeToolkit) ImagesToPDF(images [][]byte) ([]byte, error) {
	if t.imagesToPDF != nil {
		return t.imagesToPDF(images)
	}
	out := []byte("doc:")
	for _, im := range images {
		out = append(out, im...)
	}
	return out, nil
}

func (t *fakeToolkit) RenderPage(pdf []byte, idx int, dpi float64) (image.Image, error) {
	if t.renderPage != nil {
		return t.renderPage(pdf, idx, dpi)
	}
	return image.NewRGBA(image.Rect(0, 0, 10, 10)), nil
}

func (t *fakeToolkit) PageDims(pdf []byte, idx int) (float64, float64, error) {
	if t.pageDims != nil {
		return t.pageDims(pdf, idx)
	}
	return 612, 792, nil
}

func (t *fakeToolkit) PageText(pdf []byte, idx int) (string, error) {
	if t.pageText != nil {
		return t.pageText(pdf, idx)
	}
	return "", nil
}

func (t *fakeToolkit) PageSVG(pdf []byte, idx int) (string, error) {
	if t.pageSVG != nil {
		return t.pageSVG(pdf, idx)
	}
	return "<svg></svg>", nil
}

// encodeCall records one EncodeJPEG invocation.
type encodeCall struct {
	w, h int
	opts codec.JPEGOptions
}

// fakeCodec produces synthetic JPEG byte lengths from a size function so
// the band search can be exercised without a native encoder.
type fakeCodec struct {
	decode func(data []byte) (image.Image, error)
	size   func(w, h int, o codec.JPEGOptions) int
	encErr error
	calls  []encodeCall
}

func (c *fakeCodec) Decode(data []byte) (image.Image, error) {
	if c.decode != nil {
		return c.decode(data)
	}
	return image.NewRGBA(image.Rect(0, 0, 100, 100)), nil
}

func (c *fakeCodec) ToRGB(img image.Image) image.Image { return img }

func (c *fakeCodec) Resize(img image.Image, w, h int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func (c *fakeCodec) EncodeJPEG(img image.Image, o codec.JPEGOptions) ([]byte, error) {
	b := img.Bounds()
	c.calls = append(c.calls, encodeCall{w: b.Dx(), h: b.Dy(), opts: o})
	if c.encErr != nil {
		return nil, c.encErr
	}
	n := 100
	if c.size != nil {
		n = c.size(b.Dx(), b.Dy(), o)
	}
	return make([]byte, n), nil
}
