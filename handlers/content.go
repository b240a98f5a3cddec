package handlers

import (
	"context"
	"errors"
	"net/http"

	"prismcast/models"
	contentpkg "prismcast/services/content"
	"prismcast/services/provider"
)

// contentService is the listing surface the handler consumes.
type contentService interface {
	Channels(ctx context.Context) ([]models.LiveChannel, error)
	Movies(ctx context.Context) ([]models.Movie, error)
	Series(ctx context.Context) ([]models.Series, error)
	RefreshChannels(ctx context.Context) ([]models.LiveChannel, error)
}

var _ contentService = (*contentpkg.Service)(nil)

// ContentHandler exposes the channel/movie/series listings. Listings render
// identically whether or not guide enrichment has completed; guide data is
// strictly best-effort here.
type ContentHandler struct {
	Service contentService
}

func NewContentHandler(s contentService) *ContentHandler {
	return &ContentHandler{Service: s}
}

func (h *ContentHandler) Channels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.Service.Channels(r.Context())
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, channels)
}

func (h *ContentHandler) Movies(w http.ResponseWriter, r *http.Request) {
	movies, err := h.Service.Movies(r.Context())
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, movies)
}

func (h *ContentHandler) Series(w http.ResponseWriter, r *http.Request) {
	series, err := h.Service.Series(r.Context())
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, series)
}

func (h *ContentHandler) RefreshChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.Service.RefreshChannels(r.Context())
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, channels)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, provider.ErrAuthFailed):
		return http.StatusUnauthorized
	case errors.Is(err, provider.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, provider.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
