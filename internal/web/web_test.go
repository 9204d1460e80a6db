package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/pdfpress/internal/codec"
	"github.com/local/pdfpress/internal/engine"
	"github.com/local/pdfpress/internal/jobs"
	"github.com/local/pdfpress/internal/levels"
	"github.com/local/pdfpress/internal/pdfdoc"
	"github.com/local/pdfpress/internal/session"
	"github.com/local/pdfpress/internal/thumbs"
)

type memSessions struct {
	blobs map[string][]session.SourceBlob
	next  int
}

func newMemSessions() *memSessions {
	return &memSessions{blobs: map[string][]session.SourceBlob{}}
}

func (m *memSessions) NewToken() string {
	m.next++
	return "tok-" + strconv.Itoa(m.next)
}

func (m *memSessions) Append(_ context.Context, token string, blobs []session.SourceBlob) (int, error) {
	base := len(m.blobs[token])
	m.blobs[token] = append(m.blobs[token], blobs...)
	return base, nil
}

func (m *memSessions) Get(_ context.Context, token string, srcID int) (session.SourceBlob, bool, error) {
	blobs := m.blobs[token]
	if srcID < 0 || srcID >= len(blobs) {
		return session.SourceBlob{}, false, nil
	}
	return blobs[srcID], true, nil
}

type memArtifacts struct {
	arts map[string]jobs.Artifact
}

func (m *memArtifacts) Put(_ context.Context, a jobs.Artifact) (string, error) {
	if m.arts == nil {
		m.arts = map[string]jobs.Artifact{}
	}
	id := "job-" + strconv.Itoa(len(m.arts)+1)
	m.arts[id] = a
	return id, nil
}

func (m *memArtifacts) Take(_ context.Context, jobID string) (jobs.Artifact, bool, error) {
	a, ok := m.arts[jobID]
	if ok {
		delete(m.arts, jobID)
	}
	return a, ok, nil
}

// stubToolkit satisfies engine.Toolkit; only PageCount is steerable,
// the rest return fixed placeholders.
type stubToolkit struct {
	pageCount func(pdf []byte) (int, error)
}

func (s *stubToolkit) PageCount(pdf []byte) (int, error) {
	if s.pageCount != nil {
		return s.pageCount(pdf)
	}
	return 1, nil
}

func (s *stubToolkit) ExtractPage(pdf []byte, pageIdx int) ([]byte, error) { return pdf, nil }
func (s *stubToolkit) Rotate(pdf []byte, angle int) ([]byte, error)        { return pdf, nil }
func (s *stubToolkit) Merge(parts [][]byte) ([]byte, error)                { return bytes.Join(parts, nil), nil }
func (s *stubToolkit) Optimize(pdf []byte) ([]byte, error)                 { return pdf, nil }
func (s *stubToolkit) ImagesToPDF(images [][]byte) ([]byte, error)         { return images[0], nil }
func (s *stubToolkit) RenderPage(pdf []byte, pageIdx int, dpi float64) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 8, 8)), nil
}
func (s *stubToolkit) PageDims(pdf []byte, pageIdx int) (float64, float64, error) {
	return 612, 792, nil
}
func (s *stubToolkit) PageText(pdf []byte, pageIdx int) (string, error) { return "", nil }
func (s *stubToolkit) PageSVG(pdf []byte, pageIdx int) (string, error)  { return "<svg/>", nil }

type stubCodec struct {
	decode func(data []byte) (image.Image, error)
}

func (c *stubCodec) Decode(data []byte) (image.Image, error) {
	if c.decode != nil {
		return c.decode(data)
	}
	return image.NewRGBA(image.Rect(0, 0, 8, 8)), nil
}

func (c *stubCodec) ToRGB(img image.Image) image.Image { return img }
func (c *stubCodec) Resize(img image.Image, w, h int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}
func (c *stubCodec) EncodeJPEG(img image.Image, o codec.JPEGOptions) ([]byte, error) {
	return []byte("jpg"), nil
}

type upFile struct {
	name string
	data []byte
}

func multipartUpload(t *testing.T, files []upFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		fw, err := mw.CreateFormFile("files", f.name)
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func sessionWith(t *testing.T, blobs ...session.SourceBlob) (*API, string) {
	t.Helper()
	ms := newMemSessions()
	tok := ms.NewToken()
	_, err := ms.Append(context.Background(), tok, blobs)
	require.NoError(t, err)
	return New(Dependencies{Sessions: ms}), tok
}

func TestUploadReportsEncryptedAndUndecodable(t *testing.T) {
	tk := &stubToolkit{pageCount: func(pdf []byte) (int, error) {
		return 0, fmt.Errorf("open pdf: %w", pdfdoc.ErrEncrypted)
	}}
	cdc := &stubCodec{decode: func(data []byte) (image.Image, error) {
		if bytes.Equal(data, []byte("junk")) {
			return nil, errors.New("unknown image format")
		}
		return image.NewRGBA(image.Rect(0, 0, 8, 8)), nil
	}}
	api := New(Dependencies{
		Sessions:       newMemSessions(),
		Toolkit:        tk,
		Codec:          cdc,
		Thumbs:         thumbs.New(tk, cdc),
		MaxUploadBytes: 1 << 20,
	})

	req := multipartUpload(t, []upFile{
		{"locked.pdf", []byte("%PDF-1.7 locked")},
		{"broken.img", []byte("junk")},
		{"fine.img", []byte("fine")},
	})
	rec := httptest.NewRecorder()
	api.handleUpload(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp uploadResp
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Items, 3)

	assert.Equal(t, "file is password protected", resp.Items[0].Error)
	assert.Zero(t, resp.Items[0].Pages)
	assert.Empty(t, resp.Items[0].Thumbs)

	assert.Equal(t, "file could not be read", resp.Items[1].Error)
	assert.Zero(t, resp.Items[1].Pages)
	assert.Empty(t, resp.Items[1].Thumbs)

	assert.Empty(t, resp.Items[2].Error)
	assert.Equal(t, 1, resp.Items[2].Pages)
	require.Len(t, resp.Items[2].Thumbs, 1)
	assert.Contains(t, resp.Items[2].Thumbs[0], "data:image/jpeg;base64,")
}

func TestUploadReportsUnreadablePDF(t *testing.T) {
	tk := &stubToolkit{pageCount: func(pdf []byte) (int, error) {
		return 0, errors.New("pdf page count: broken xref")
	}}
	api := New(Dependencies{
		Sessions:       newMemSessions(),
		Toolkit:        tk,
		Codec:          &stubCodec{},
		Thumbs:         thumbs.New(tk, &stubCodec{}),
		MaxUploadBytes: 1 << 20,
	})

	rec := httptest.NewRecorder()
	api.handleUpload(rec, multipartUpload(t, []upFile{{"bad.pdf", []byte("%PDF-1.4 truncated")}}))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp uploadResp
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "file could not be read", resp.Items[0].Error)
}

func TestBuildPlansValidation(t *testing.T) {
	api, tok := sessionWith(t, session.SourceBlob{Name: "a.pdf", Kind: engine.SourcePDF, Data: []byte("A")})
	ctx := context.Background()

	_, _, err := api.buildPlans(ctx, planReq{})
	assert.ErrorContains(t, err, "missing token")

	_, _, err = api.buildPlans(ctx, planReq{Token: tok})
	assert.ErrorContains(t, err, "empty order")

	_, _, err = api.buildPlans(ctx, planReq{Token: tok, Order: []pageRef{{0, 0}}})
	assert.ErrorContains(t, err, "keep length")

	_, _, err = api.buildPlans(ctx, planReq{
		Token:  tok,
		Order:  []pageRef{{0, 0}},
		Keep:   []bool{true},
		Rotate: []json.Number{"90", "0"},
	})
	assert.ErrorContains(t, err, "rotate length")

	_, _, err = api.buildPlans(ctx, planReq{
		Token:       tok,
		Order:       []pageRef{{0, 0}},
		Keep:        []bool{true},
		LevelGlobal: "extreme",
	})
	assert.ErrorContains(t, err, "unknown level")

	_, _, err = api.buildPlans(ctx, planReq{
		Token: tok,
		Order: []pageRef{{5, 0}},
		Keep:  []bool{true},
	})
	assert.ErrorContains(t, err, "unknown src_id")

	_, _, err = api.buildPlans(ctx, planReq{
		Token: tok,
		Order: []pageRef{{-1, 0}},
		Keep:  []bool{true},
	})
	assert.ErrorContains(t, err, "unknown src_id")

	_, _, err = api.buildPlans(ctx, planReq{
		Token: "nope",
		Order: []pageRef{{0, 0}},
		Keep:  []bool{true},
	})
	assert.ErrorContains(t, err, "expired session")
}

func TestBuildPlansResolvesLevelsAndRotation(t *testing.T) {
	api, tok := sessionWith(t,
		session.SourceBlob{Name: "a.pdf", Kind: engine.SourcePDF, Data: []byte("A")},
		session.SourceBlob{Name: "b.jpg", Kind: engine.SourceImage, Data: []byte("B")},
	)

	plans, _, err := api.buildPlans(context.Background(), planReq{
		Token:       tok,
		Order:       []pageRef{{1, 0}, {0, 2}},
		Keep:        []bool{true, false},
		LevelPage:   []levels.Level{"", levels.Max},
		LevelGlobal: levels.Med,
		Rotate:      []json.Number{"450", "not-a-number"},
	})
	require.NoError(t, err)
	require.Len(t, plans, 2)

	// Order defines output order, not upload order.
	assert.Equal(t, "b.jpg", plans[0].Source.Name)
	assert.Equal(t, levels.Med, plans[0].Level)
	assert.Equal(t, 450, plans[0].Rotate)
	assert.True(t, plans[0].Keep)

	assert.Equal(t, "a.pdf", plans[1].Source.Name)
	assert.Equal(t, 2, plans[1].PageIndex)
	assert.Equal(t, levels.Max, plans[1].Level)
	assert.Equal(t, 0, plans[1].Rotate) // unparseable angle means none
	assert.False(t, plans[1].Keep)
}

func TestBuildPlansCountsEachSourceOnce(t *testing.T) {
	api, tok := sessionWith(t,
		session.SourceBlob{Name: "a.pdf", Kind: engine.SourcePDF, Data: make([]byte, 100)},
		session.SourceBlob{Name: "b.pdf", Kind: engine.SourcePDF, Data: make([]byte, 40)},
	)

	plans, before, err := api.buildPlans(context.Background(), planReq{
		Token: tok,
		Order: []pageRef{{0, 0}, {0, 1}, {0, 2}, {1, 0}},
		Keep:  []bool{true, true, true, false},
	})
	require.NoError(t, err)
	assert.Len(t, plans, 4)
	// Three kept pages of the 100-byte source count it once; the source
	// with no kept pages does not count at all.
	assert.Equal(t, int64(100), before)
}

func TestDownloadIsOneShot(t *testing.T) {
	arts := &memArtifacts{}
	id, err := arts.Put(context.Background(), jobs.Artifact{Filename: "out.pdf", Data: []byte("%PDF-1.7")})
	require.NoError(t, err)

	api := New(Dependencies{Jobs: arts})

	rec := httptest.NewRecorder()
	api.handleDownload(rec, httptest.NewRequest(http.MethodGet, "/download/"+id, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.7", rec.Body.String())

	// Second fetch of the same job must miss.
	rec = httptest.NewRecorder()
	api.handleDownload(rec, httptest.NewRequest(http.MethodGet, "/download/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadRejectsMissingID(t *testing.T) {
	api := New(Dependencies{Jobs: &memArtifacts{}})
	rec := httptest.NewRecorder()
	api.handleDownload(rec, httptest.NewRequest(http.MethodGet, "/download/", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnsurePDFExt(t *testing.T) {
	assert.Equal(t, "output.pdf", ensurePDFExt(""))
	assert.Equal(t, "report.pdf", ensurePDFExt("report"))
	assert.Equal(t, "report.pdf", ensurePDFExt("report.pdf"))
	assert.Equal(t, "Report.PDF", ensurePDFExt("Report.PDF"))
}
