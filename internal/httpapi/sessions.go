package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goproof/internal/report"
	"github.com/hyperifyio/goproof/internal/score"
	"github.com/hyperifyio/goproof/internal/session"
)

// Registry is the in-memory session store. Nothing is persisted; a restart
// forgets every session.
type Registry struct {
	mu       sync.Mutex
	factory  func() *session.Session
	sessions map[string]*session.Session
}

// NewRegistry creates an empty registry that mints sessions with factory.
func NewRegistry(factory func() *session.Session) *Registry {
	return &Registry{factory: factory, sessions: make(map[string]*session.Session)}
}

// Create mints a new session and stores it under its ID.
func (reg *Registry) Create() *session.Session {
	sess := reg.factory()
	reg.mu.Lock()
	reg.sessions[sess.ID] = sess
	reg.mu.Unlock()
	return sess
}

// Get looks a session up by ID.
func (reg *Registry) Get(id string) (*session.Session, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	sess, ok := reg.sessions[id]
	return sess, ok
}

// Delete removes a session, reporting whether it existed.
func (reg *Registry) Delete(id string) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, ok := reg.sessions[id]; !ok {
		return false
	}
	delete(reg.sessions, id)
	return true
}

type sessionHandler struct {
	registry *Registry
}

func (h *sessionHandler) register(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Route("/{sessionID}", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Delete("/", h.handleDelete)
		r.Post("/analyze", h.handleAnalyze)
		r.Post("/segments/{index}/apply", h.handleApply)
		r.Post("/apply-all", h.handleApplyAll)
		r.Post("/select", h.handleSelect)
		r.Post("/clear-selection", h.handleClearSelection)
		r.Post("/reset", h.handleReset)
		r.Get("/report", h.handleReport)
	})
}

type analyzeRequest struct {
	Text string `json:"text"`
}

type applyRequest struct {
	Choice int `json:"choice"`
}

type selectRequest struct {
	Index int `json:"index"`
}

type applyAllResponse struct {
	Applied int              `json:"applied"`
	Session session.Snapshot `json:"session"`
}

func (h *sessionHandler) handleCreate(w http.ResponseWriter, _ *http.Request) {
	sess := h.registry.Create()
	log.Debug().Str("session", sess.ID).Msg("session created")
	respondJSON(w, http.StatusCreated, sess.Snapshot())
}

func (h *sessionHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, sess.Snapshot())
}

func (h *sessionHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if !h.registry.Delete(id) {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	log.Debug().Str("session", id).Msg("session deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *sessionHandler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	// Background context: the analysis outlives this request on purpose and
	// its outcome is read back through GET.
	if err := sess.StartAnalysisAsync(context.Background(), req.Text); err != nil {
		respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, sess.Snapshot())
}

func (h *sessionHandler) handleApply(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "segment index must be an integer")
		return
	}
	// An absent body means "take the first suggestion".
	var req applyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := sess.ApplySuggestion(index, req.Choice); err != nil {
		respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess.Snapshot())
}

func (h *sessionHandler) handleApplyAll(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	applied, err := sess.ApplyAllSuggestions()
	if err != nil {
		respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, applyAllResponse{Applied: applied, Session: sess.Snapshot()})
}

func (h *sessionHandler) handleSelect(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := sess.SelectSegment(req.Index); err != nil {
		respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess.Snapshot())
}

func (h *sessionHandler) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := sess.ClearSelection(); err != nil {
		respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess.Snapshot())
}

func (h *sessionHandler) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	sess.Reset()
	respondJSON(w, http.StatusOK, sess.Snapshot())
}

func (h *sessionHandler) handleReport(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	snap := sess.Snapshot()
	if snap.Status != session.StatusSuccess || snap.Result == nil {
		respondError(w, http.StatusConflict, "no analysis result to report")
		return
	}
	md := report.RenderMarkdown(snap.Result, report.Options{GeneratedAt: time.Now().UTC()})

	switch format := r.URL.Query().Get("format"); format {
	case "", "markdown", "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(md))
	case "pdf":
		raw, err := report.PDF(md)
		if err != nil {
			log.Warn().Str("session", snap.ID).Err(err).Msg("pdf rendering failed")
			respondError(w, http.StatusInternalServerError, "could not render the PDF")
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(raw)
	default:
		respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown report format %q", format))
	}
}

func (h *sessionHandler) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := h.registry.Get(chi.URLParam(r, "sessionID"))
	if !ok {
		respondError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return sess, true
}

// respondSessionError maps session and scoring errors onto status codes:
// wrong state is a conflict, an invalid index or too-short input is
// unprocessable, anything else is a plain failure.
func respondSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrAnalysisInFlight), errors.Is(err, session.ErrNoResult):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrInputTooShort),
		errors.Is(err, score.ErrSegmentOutOfRange),
		errors.Is(err, score.ErrSuggestionOutOfRange),
		errors.Is(err, score.ErrNoSuggestions):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
