package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"jtlab/internal/geometry"
	"jtlab/internal/intro"
)

const (
	visitorCookie     = "jtlab_visitor"
	keepAliveInterval = 25 * time.Second
	// maxGlyphs bounds a layout report; no sane name is longer.
	maxGlyphs = 256
)

var defaultViewport = geometry.Size{Width: 1280, Height: 800}

type IntroHandler struct {
	store  *intro.Store
	logger *log.Logger
}

func NewIntroHandler(store *intro.Store, logger *log.Logger) *IntroHandler {
	return &IntroHandler{store: store, logger: logger}
}

// RegisterStream mounts the long-lived snapshot stream. It must not sit
// behind a request timeout.
func (h *IntroHandler) RegisterStream(r chi.Router) {
	r.Get("/intro/stream", h.stream)
}

func (h *IntroHandler) RegisterRoutes(r chi.Router) {
	r.Route("/intro/{id}", func(r chi.Router) {
		r.Get("/state", h.state)
		r.Post("/theme", h.toggleTheme)
		r.Post("/viewport", h.viewport)
		r.Post("/layout", h.layout)
		r.Post("/cancel", h.cancel)
	})
}

// stream starts an intro for the visitor and relays every snapshot until the
// client goes away, which ends the session.
func (h *IntroHandler) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	visitor := ensureVisitor(w, r)
	size := geometry.Size{
		Width:  parseFloat(r.URL.Query().Get("w"), defaultViewport.Width),
		Height: parseFloat(r.URL.Query().Get("h"), defaultViewport.Height),
	}
	sess, err := h.store.Begin(visitor, size)
	if err != nil {
		h.logger.Error("begin intro", "err", err)
		http.Error(w, "could not start intro", http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := h.store.End(sess.ID); err != nil && !errors.Is(err, intro.ErrNotFound) {
			h.logger.Warn("end intro", "session", sess.ID, "err", err)
		}
	}()

	// The server's write timeout is for ordinary requests.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("cannot lift write deadline", "err", err)
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	hub := sess.Hub()
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	writeSSE(w, "session", sess.ID)
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-sub:
			if !open {
				return
			}
			writeSSE(w, "state", event)
			flusher.Flush()
		case <-keepAlive.C:
			_, _ = w.Write([]byte(": keepalive\n\n"))
			flusher.Flush()
		}
	}
}

func (h *IntroHandler) session(w http.ResponseWriter, r *http.Request) (*intro.Session, bool) {
	sess, ok := h.store.Get(chi.URLParam(r, "id"))
	if !ok || sess.Visitor != visitorFromCookie(r) {
		http.NotFound(w, r)
		return nil, false
	}
	return sess, true
}

func (h *IntroHandler) state(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	_, data := sess.Snapshot()
	writeJSON(w, json.RawMessage(data))
}

func (h *IntroHandler) toggleTheme(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	accepted, err := sess.ToggleTheme(r.Context())
	if err != nil {
		http.Error(w, "session ended", http.StatusGone)
		return
	}
	if !accepted {
		http.Error(w, "intro still running", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *IntroHandler) viewport(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	width := parseFloat(r.FormValue("w"), -1)
	height := parseFloat(r.FormValue("h"), -1)
	if width <= 0 || height <= 0 {
		http.Error(w, "w and h must be positive", http.StatusBadRequest)
		return
	}
	sess.Resize(geometry.Size{Width: width, Height: height})
	w.WriteHeader(http.StatusNoContent)
}

type layoutReport struct {
	FontPx float64         `json:"fontPx"`
	Glyphs []geometry.Rect `json:"glyphs"`
}

// layout accepts the glyph boxes of the name as the browser measured them,
// along with the font size they were measured at.
func (h *IntroHandler) layout(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var report layoutReport
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&report); err != nil {
		http.Error(w, "invalid layout", http.StatusBadRequest)
		return
	}
	if report.FontPx <= 0 || len(report.Glyphs) == 0 || len(report.Glyphs) > maxGlyphs {
		http.Error(w, "invalid layout", http.StatusBadRequest)
		return
	}
	sess.ReportLayout(report.FontPx, report.Glyphs)
	w.WriteHeader(http.StatusNoContent)
}

func (h *IntroHandler) cancel(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	_ = h.store.End(sess.ID)
	w.WriteHeader(http.StatusNoContent)
}

func ensureVisitor(w http.ResponseWriter, r *http.Request) string {
	if id := visitorFromCookie(r); id != "" {
		return id
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     visitorCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(365 * 24 * time.Hour),
	})
	return id
}

func visitorFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(visitorCookie)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(cookie.Value); err != nil {
		return ""
	}
	return cookie.Value
}

func parseFloat(value string, fallback float64) float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed <= 0 || parsed > 100000 {
		return fallback
	}
	return parsed
}
