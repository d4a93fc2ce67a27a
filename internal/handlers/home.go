package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"jtlab/internal/choreo"
	"jtlab/internal/viewmodel"
	"jtlab/views/pages"
)

type HomeHandler struct {
	intro   choreo.Config
	baseURL string
}

// NewHomeHandler serves the landing page. baseURL, when set, is used as the
// canonical URL instead of the request host.
func NewHomeHandler(intro choreo.Config, baseURL string) *HomeHandler {
	return &HomeHandler{intro: intro, baseURL: baseURL}
}

func (h *HomeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.home)
}

func (h *HomeHandler) home(w http.ResponseWriter, r *http.Request) {
	render(w, r, pages.HomePage(viewmodel.Home(h.intro, h.canonicalURL(r))))
}

func (h *HomeHandler) canonicalURL(r *http.Request) string {
	if h.baseURL != "" {
		return strings.TrimRight(h.baseURL, "/") + "/"
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/"
}
