package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfviewer/internal/source"
	"github.com/local/pdfviewer/internal/viewer"
)

// maxUploadBytes bounds the multipart upload path.
const maxUploadBytes = 100 << 20

// Web serves the viewer HTTP surface.
type Web struct {
	mgr *viewer.Manager
}

func New(mgr *viewer.Manager) *Web {
	return &Web{mgr: mgr}
}

func (w *Web) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", func(wr http.ResponseWriter, r *http.Request) {
		wr.WriteHeader(http.StatusOK)
		_, _ = wr.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /viewer", w.handleOpen)
	mux.HandleFunc("POST /viewer/upload", w.handleUpload)
	mux.HandleFunc("GET /viewer/{id}", w.handleContainer)
	mux.HandleFunc("POST /viewer/{id}/near/{page}", w.handleNear)
	mux.HandleFunc("GET /viewer/{id}/page/{page}", w.handlePage)
	mux.HandleFunc("GET /viewer/{id}/status", w.handleStatus)
	mux.HandleFunc("DELETE /viewer/{id}", w.handleClose)
}

type openReq struct {
	FilePath string `json:"file_path"`
	FileURL  string `json:"file_url"`
	Password string `json:"password"`
}

type openResp struct {
	SessionID string `json:"session_id"`
	Pages     int    `json:"pages"`
	Status    string `json:"status"`
}

func (w *Web) handleOpen(wr http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req openReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(wr, "invalid json", http.StatusBadRequest)
		return
	}
	ref := req.FilePath
	if ref == "" {
		ref = req.FileURL
	}
	if ref == "" {
		http.Error(wr, "missing file_path or file_url", http.StatusBadRequest)
		return
	}

	sess, err := w.mgr.Open(r.Context(), ref, req.Password)
	if err != nil {
		writeOpenError(wr, err)
		return
	}
	writeJSON(wr, http.StatusCreated, openResp{SessionID: sess.ID, Pages: sess.Pages, Status: "ready"})
}

func (w *Web) handleUpload(wr http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(wr, "invalid multipart form", http.StatusBadRequest)
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		http.Error(wr, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(wr, "read upload failed", http.StatusBadRequest)
		return
	}

	sess, err := w.mgr.OpenBytes(r.Context(), hdr.Filename, data, r.FormValue("password"))
	if err != nil {
		writeOpenError(wr, err)
		return
	}
	writeJSON(wr, http.StatusCreated, openResp{SessionID: sess.ID, Pages: sess.Pages, Status: "ready"})
}

func (w *Web) handleContainer(wr http.ResponseWriter, r *http.Request) {
	sess, ok := w.mgr.Get(r.PathValue("id"))
	if !ok {
		http.NotFound(wr, r)
		return
	}
	wr.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := sess.WriteContainer(wr); err != nil {
		log.Error().Err(err).Str("session", sess.ID).Msg("container render failed")
	}
}

// handleNear ingests one viewport proximity notification. Repeats for the
// same page are accepted and ignored downstream.
func (w *Web) handleNear(wr http.ResponseWriter, r *http.Request) {
	sess, ok := w.mgr.Get(r.PathValue("id"))
	if !ok {
		http.NotFound(wr, r)
		return
	}
	page, err := strconv.Atoi(r.PathValue("page"))
	if err != nil {
		http.Error(wr, "invalid page", http.StatusBadRequest)
		return
	}
	if err := sess.Near(page); err != nil {
		switch {
		case errors.Is(err, viewer.ErrPageOutOfRange):
			http.Error(wr, err.Error(), http.StatusBadRequest)
		case errors.Is(err, viewer.ErrSessionClosed):
			http.Error(wr, err.Error(), http.StatusGone)
		default:
			http.Error(wr, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	wr.WriteHeader(http.StatusAccepted)
}

func (w *Web) handlePage(wr http.ResponseWriter, r *http.Request) {
	sess, ok := w.mgr.Get(r.PathValue("id"))
	if !ok {
		http.NotFound(wr, r)
		return
	}
	page, err := strconv.Atoi(r.PathValue("page"))
	if err != nil {
		http.Error(wr, "invalid page", http.StatusBadRequest)
		return
	}
	ph, err := sess.Page(page)
	if err != nil {
		http.Error(wr, err.Error(), http.StatusBadRequest)
		return
	}
	switch ph.State {
	case viewer.StateFailed:
		http.Error(wr, ph.Error, http.StatusGone)
		return
	case viewer.StatePending, viewer.StateRendering:
		http.Error(wr, fmt.Sprintf("page %d is %s", page, ph.State), http.StatusConflict)
		return
	}

	sf, err := sess.Surface(r.Context(), page)
	if err != nil {
		http.Error(wr, err.Error(), http.StatusInternalServerError)
		return
	}
	wr.Header().Set("Content-Type", "image/jpeg")
	wr.Header().Set("Content-Length", strconv.Itoa(len(sf.JPEG)))
	_, _ = wr.Write(sf.JPEG)
}

type statusResp struct {
	SessionID    string               `json:"session_id"`
	Status       string               `json:"status"`
	Progress     int                  `json:"progress"`
	Message      string               `json:"message,omitempty"`
	Placeholders []viewer.Placeholder `json:"placeholders,omitempty"`
}

func (w *Web) handleStatus(wr http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	resp := statusResp{SessionID: id}

	if st, ok, err := w.mgr.Status(r.Context(), id); err == nil && ok {
		resp.Status = st.Status
		resp.Progress = st.Progress
		resp.Message = st.Message
	}

	sess, live := w.mgr.Get(id)
	if live {
		resp.Placeholders = sess.Placeholders()
	}
	if !live && resp.Status == "" {
		http.NotFound(wr, r)
		return
	}
	writeJSON(wr, http.StatusOK, resp)
}

func (w *Web) handleClose(wr http.ResponseWriter, r *http.Request) {
	if !w.mgr.Close(r.PathValue("id")) {
		http.NotFound(wr, r)
		return
	}
	wr.WriteHeader(http.StatusNoContent)
}

// writeOpenError maps the fatal whole-document error classes to responses.
// Source validation and document-open failures are both the caller's data
// problem; they surface as one human-readable message.
func writeOpenError(wr http.ResponseWriter, err error) {
	code := http.StatusUnprocessableEntity
	if !errors.Is(err, source.ErrTooSmall) && !errors.Is(err, source.ErrUnsupportedType) && !errors.Is(err, source.ErrEmptyRef) {
		// fetch or parse failure rather than validation
		code = http.StatusBadGateway
	}
	http.Error(wr, err.Error(), code)
}

func writeJSON(wr http.ResponseWriter, code int, v any) {
	wr.Header().Set("Content-Type", "application/json")
	wr.WriteHeader(code)
	_ = json.NewEncoder(wr).Encode(v)
}
