// Package web exposes the compression engine over HTTP: upload sources
// into a session, estimate output sizes, run the real compression and
// download the result.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfpress/internal/engine"
	"github.com/local/pdfpress/internal/history"
	"github.com/local/pdfpress/internal/jobs"
	"github.com/local/pdfpress/internal/levels"
	"github.com/local/pdfpress/internal/limiter"
	"github.com/local/pdfpress/internal/metrics"
	"github.com/local/pdfpress/internal/pdfdoc"
	"github.com/local/pdfpress/internal/session"
	"github.com/local/pdfpress/internal/thumbs"
)

// Exporter persists finished PDFs outside the artifact store.
type Exporter interface {
	Export(ctx context.Context, jobID, filename string, data []byte) (string, error)
}

// SessionStore holds uploaded source blobs. *session.Store implements it.
type SessionStore interface {
	NewToken() string
	Append(ctx context.Context, token string, blobs []session.SourceBlob) (int, error)
	Get(ctx context.Context, token string, srcID int) (session.SourceBlob, bool, error)
}

// ArtifactStore holds finished outputs until download. *jobs.Store
// implements it.
type ArtifactStore interface {
	Put(ctx context.Context, a jobs.Artifact) (string, error)
	Take(ctx context.Context, jobID string) (jobs.Artifact, bool, error)
}

// HistoryStore records completed jobs. *history.Store implements it.
type HistoryStore interface {
	Add(r history.Record) error
	Recent(limit int) ([]history.Record, error)
}

type Dependencies struct {
	Engine   *engine.Engine
	Toolkit  engine.Toolkit
	Codec    engine.Codec
	Sessions SessionStore
	Jobs     ArtifactStore
	History  HistoryStore
	Exporter Exporter
	Thumbs   *thumbs.Renderer
	Limiter  *limiter.Limiter

	MaxUploadBytes int64
}

type API struct {
	deps Dependencies
}

func New(deps Dependencies) *API {
	return &API{deps: deps}
}

func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); _, _ = w.Write([]byte("ok")) })
	mux.HandleFunc("/upload", a.handleUpload)
	mux.HandleFunc("/estimate", a.handleEstimate)
	mux.HandleFunc("/process", a.handleProcess)
	mux.HandleFunc("/download/", a.handleDownload)
	mux.HandleFunc("/history", a.handleHistory)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type uploadItem struct {
	SrcID  int      `json:"src_id"`
	Name   string   `json:"name"`
	Kind   string   `json:"kind"`
	Pages  int      `json:"pages"`
	Thumbs []string `json:"thumbs"`
	Error  string   `json:"error,omitempty"`
}

type uploadResp struct {
	Token string       `json:"token"`
	Items []uploadItem `json:"items"`
}

// handleUpload accepts multipart files, stores them in the session and
// returns per-page thumbnails. Passing an existing token extends that
// session; otherwise a new one is minted.
func (a *API) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, a.deps.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	token := r.FormValue("token")
	if token == "" {
		token = a.deps.Sessions.NewToken()
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeErr(w, http.StatusBadRequest, "no files")
		return
	}

	var blobs []session.SourceBlob
	for _, hdr := range files {
		f, err := hdr.Open()
		if err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Sprintf("open %s failed", hdr.Filename))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Sprintf("read %s failed", hdr.Filename))
			return
		}
		blobs = append(blobs, session.SourceBlob{
			Name: hdr.Filename,
			Kind: session.DetectKind(hdr.Filename, data),
			Data: data,
		})
	}

	base, err := a.deps.Sessions.Append(r.Context(), token, blobs)
	if err != nil {
		log.Error().Err(err).Msg("session append failed")
		writeErr(w, http.StatusInternalServerError, "session store failed")
		return
	}

	resp := uploadResp{Token: token}
	for i, b := range blobs {
		item := uploadItem{SrcID: base + i, Name: b.Name, Kind: string(b.Kind)}
		src := engine.Source{Name: b.Name, Kind: b.Kind, Data: b.Data}
		switch b.Kind {
		case engine.SourcePDF:
			n, err := a.deps.Toolkit.PageCount(b.Data)
			if err != nil {
				if errors.Is(err, pdfdoc.ErrEncrypted) {
					item.Error = "file is password protected"
				} else {
					item.Error = "file could not be read"
				}
				resp.Items = append(resp.Items, item)
				continue
			}
			item.Pages = n
			for p := 0; p < n; p++ {
				item.Thumbs = append(item.Thumbs, a.deps.Thumbs.Page(src, p))
			}
		default:
			if _, err := a.deps.Codec.Decode(b.Data); err != nil {
				item.Error = "file could not be read"
				resp.Items = append(resp.Items, item)
				continue
			}
			item.Pages = 1
			item.Thumbs = []string{a.deps.Thumbs.Page(src, 0)}
		}
		resp.Items = append(resp.Items, item)
	}

	log.Info().Str("token", token).Int("files", len(blobs)).Msg("sources uploaded")
	writeJSON(w, http.StatusOK, resp)
}

type pageRef struct {
	SrcID     int `json:"src_id"`
	PageIndex int `json:"page_index"`
}

type planReq struct {
	Token       string         `json:"token"`
	Order       []pageRef      `json:"order"`
	Keep        []bool         `json:"keep"`
	LevelPage   []levels.Level `json:"level_page"`
	LevelGlobal levels.Level   `json:"level_global"`
	Rotate      []json.Number  `json:"rotate"`
	FilenameOut string         `json:"filename_out"`
}

// buildPlans resolves a plan request against the session. Order defines
// output order; keep must match it entry for entry. The second return is
// the combined size of the distinct sources that contribute at least one
// kept page, counted once per source.
func (a *API) buildPlans(ctx context.Context, req planReq) ([]engine.PagePlan, int64, error) {
	if req.Token == "" {
		return nil, 0, fmt.Errorf("missing token")
	}
	if len(req.Order) == 0 {
		return nil, 0, fmt.Errorf("empty order")
	}
	if len(req.Keep) != len(req.Order) {
		return nil, 0, fmt.Errorf("keep length %d does not match order length %d", len(req.Keep), len(req.Order))
	}
	if len(req.LevelPage) > 0 && len(req.LevelPage) != len(req.Order) {
		return nil, 0, fmt.Errorf("level_page length %d does not match order length %d", len(req.LevelPage), len(req.Order))
	}
	if len(req.Rotate) > 0 && len(req.Rotate) != len(req.Order) {
		return nil, 0, fmt.Errorf("rotate length %d does not match order length %d", len(req.Rotate), len(req.Order))
	}
	if req.LevelGlobal != "" && !levels.Valid(req.LevelGlobal) {
		return nil, 0, fmt.Errorf("unknown level %q", req.LevelGlobal)
	}
	for _, l := range req.LevelPage {
		if l != "" && !levels.Valid(l) {
			return nil, 0, fmt.Errorf("unknown level %q", l)
		}
	}

	// Fetch each referenced source once, however many pages use it.
	blobs := make(map[int]session.SourceBlob)
	counted := make(map[int]bool)
	var sourceBytes int64
	plans := make([]engine.PagePlan, 0, len(req.Order))
	for i, ref := range req.Order {
		b, seen := blobs[ref.SrcID]
		if !seen {
			if ref.SrcID < 0 {
				return nil, 0, fmt.Errorf("order[%d]: unknown src_id %d", i, ref.SrcID)
			}
			var ok bool
			var err error
			b, ok, err = a.deps.Sessions.Get(ctx, req.Token, ref.SrcID)
			if err != nil {
				return nil, 0, fmt.Errorf("session load failed")
			}
			if !ok {
				return nil, 0, fmt.Errorf("order[%d]: unknown src_id %d or expired session", i, ref.SrcID)
			}
			blobs[ref.SrcID] = b
		}
		if req.Keep[i] && !counted[ref.SrcID] {
			counted[ref.SrcID] = true
			sourceBytes += int64(len(b.Data))
		}
		plan := engine.PagePlan{
			Source:    engine.Source{Name: b.Name, Kind: b.Kind, Data: b.Data},
			PageIndex: ref.PageIndex,
			Level:     levels.Resolve(req.LevelPage, req.LevelGlobal, i),
			Keep:      req.Keep[i],
		}
		if len(req.Rotate) > 0 {
			// Anything unparseable counts as no rotation.
			if n, err := req.Rotate[i].Int64(); err == nil {
				plan.Rotate = int(n)
			}
		}
		plans = append(plans, plan)
	}
	return plans, sourceBytes, nil
}

type estimateResp struct {
	TotalBeforeBytes int64 `json:"total_before_bytes"`
	TotalAfterBytes  int64 `json:"total_after_bytes"`
}

func (a *API) handleEstimate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()
	var req planReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	plans, _, err := a.buildPlans(r.Context(), req)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	release, ok := a.deps.Limiter.Allow("estimate")
	if !ok {
		writeErr(w, http.StatusTooManyRequests, "too many concurrent operations")
		return
	}
	defer release()

	start := time.Now()
	before, after := a.deps.Engine.Estimate(plans)
	metrics.ObserveOperation("estimate", time.Since(start))

	writeJSON(w, http.StatusOK, estimateResp{TotalBeforeBytes: before, TotalAfterBytes: after})
}

type processResp struct {
	JobID    string `json:"job_id"`
	Filename string `json:"filename"`
	Bytes    int    `json:"bytes"`
}

func (a *API) handleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()
	var req planReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	plans, beforeBytes, err := a.buildPlans(r.Context(), req)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	release, ok := a.deps.Limiter.Allow("process")
	if !ok {
		writeErr(w, http.StatusTooManyRequests, "too many concurrent operations")
		return
	}
	defer release()

	filename := ensurePDFExt(req.FilenameOut)

	start := time.Now()
	out, err := a.deps.Engine.Assemble(plans)
	metrics.ObserveOperation("process", time.Since(start))
	if err != nil {
		if errors.Is(err, engine.ErrNoPages) {
			metrics.JobCompleted("empty")
			writeErr(w, http.StatusUnprocessableEntity, "no pages produced output")
			return
		}
		log.Error().Err(err).Msg("assembly failed")
		metrics.JobCompleted("failed")
		writeErr(w, http.StatusInternalServerError, "assembly failed")
		return
	}

	jobID, err := a.deps.Jobs.Put(r.Context(), jobs.Artifact{Filename: filename, Data: out})
	if err != nil {
		log.Error().Err(err).Msg("artifact store failed")
		metrics.JobCompleted("failed")
		writeErr(w, http.StatusInternalServerError, "artifact store failed")
		return
	}

	if a.deps.Exporter != nil {
		if _, err := a.deps.Exporter.Export(r.Context(), jobID, filename, out); err != nil {
			log.Warn().Err(err).Str("job_id", jobID).Msg("result export failed")
		}
	}

	if a.deps.History != nil {
		rec := history.Record{
			JobID:       jobID,
			Filename:    filename,
			Pages:       countKept(plans),
			Level:       string(req.LevelGlobal),
			BytesBefore: beforeBytes,
			BytesAfter:  int64(len(out)),
			Duration:    time.Since(start).Milliseconds(),
		}
		if err := a.deps.History.Add(rec); err != nil {
			log.Warn().Err(err).Str("job_id", jobID).Msg("history write failed")
		}
	}

	metrics.JobCompleted("ok")
	log.Info().Str("job_id", jobID).Str("filename", filename).Int("bytes", len(out)).Msg("job completed")
	writeJSON(w, http.StatusOK, processResp{JobID: jobID, Filename: filename, Bytes: len(out)})
}

// handleDownload serves a finished PDF exactly once.
func (a *API) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	jobID := strings.TrimPrefix(r.URL.Path, "/download/")
	if jobID == "" {
		writeErr(w, http.StatusBadRequest, "missing job id")
		return
	}
	art, ok, err := a.deps.Jobs.Take(r.Context(), jobID)
	if err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("artifact load failed")
		writeErr(w, http.StatusInternalServerError, "artifact load failed")
		return
	}
	if !ok {
		writeErr(w, http.StatusNotFound, "unknown, expired or already downloaded job")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Filename))
	_, _ = w.Write(art.Data)
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if a.deps.History == nil {
		writeJSON(w, http.StatusOK, []history.Record{})
		return
	}
	recs, err := a.deps.History.Recent(50)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "history load failed")
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func ensurePDFExt(name string) string {
	if name == "" {
		return "output.pdf"
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return name + ".pdf"
	}
	return name
}

func countKept(plans []engine.PagePlan) int {
	n := 0
	for _, p := range plans {
		if p.Keep {
			n++
		}
	}
	return n
}
