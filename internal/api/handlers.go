package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"signconnect/tutor/internal/auth"
	"signconnect/tutor/internal/health"
	"signconnect/tutor/internal/store"
	"signconnect/tutor/internal/types"
)

// ReadyFunc reports provider readiness for /readyz.
type ReadyFunc func(ctx context.Context) health.HealthStatus

type Handlers struct {
	store  *store.Store
	signer *auth.Signer
	ready  ReadyFunc
}

func NewHandlers(st *store.Store, signer *auth.Signer, ready ReadyFunc) *Handlers {
	return &Handlers{store: st, signer: signer, ready: ready}
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Readyz runs the provider checks. Unconfigured providers leave the service
// ready in degraded form.
func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready == nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	st := h.ready(ctx)
	code := http.StatusOK
	if !st.OK {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, st)
}

// CreateSession registers a session and, when auth is on, mints its token.
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	id := uuid.New().String()
	sess := &types.Session{ID: id, CreatedAt: time.Now().UTC()}
	if err := h.store.CreateSession(sess); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.store.AppendEvent(id, "session_created", nil)

	q := url.Values{}
	q.Set("session_id", id)
	resp := map[string]any{"session_id": id}
	if h.signer.Enabled() {
		tok, exp := h.signer.Mint(id, time.Now())
		q.Set("token", tok)
		resp["token"] = tok
		resp["expires_at"] = exp.UTC()
	}
	resp["ws_path"] = "/ws/session?" + q.Encode()
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	sess := h.store.GetSession(chi.URLParam(r, "id"))
	if sess == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.store.GetSession(id) == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"events":     h.store.ListEvents(id),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
