package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"prismcast/config"
	"prismcast/models"
	epgpkg "prismcast/services/epg"
)

// guideCoordinator is the coordinator surface the handler consumes.
type guideCoordinator interface {
	Snapshot(ctx context.Context) (*epgpkg.Snapshot, error)
	Refresh(ctx context.Context) error
	ClearCache()
	Status() models.GuideStatus
}

var _ guideCoordinator = (*epgpkg.Coordinator)(nil)

// EPGHandler exposes the guide read surface to downstream consumers. It only
// calls snapshot queries and coordinator operations; rendering is someone
// else's problem.
type EPGHandler struct {
	Guide      guideCoordinator
	CfgManager *config.Manager
}

func NewEPGHandler(guide guideCoordinator, cfgManager *config.Manager) *EPGHandler {
	return &EPGHandler{Guide: guide, CfgManager: cfgManager}
}

// NowPlaying returns the current/next pair for a comma-separated list of
// guide channel ids.
func (h *EPGHandler) NowPlaying(w http.ResponseWriter, r *http.Request) {
	idsParam := strings.TrimSpace(r.URL.Query().Get("ids"))
	if idsParam == "" {
		http.Error(w, "missing ids parameter", http.StatusBadRequest)
		return
	}

	snap, err := h.Guide.Snapshot(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	now := time.Now().UTC()
	var result []models.GuideNowNext
	for _, id := range strings.Split(idsParam, ",") {
		id = strings.ToLower(strings.TrimSpace(id))
		if id == "" {
			continue
		}
		result = append(result, snap.NowNext(id, now))
	}
	writeJSON(w, result)
}

// Schedule returns programs for one channel overlapping [from, to). Both
// bounds default to a day around now.
func (h *EPGHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	channelID := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("channel")))
	if channelID == "" {
		http.Error(w, "missing channel parameter", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	from := parseTimeParam(r.URL.Query().Get("from"), now.Add(-2*time.Hour))
	to := parseTimeParam(r.URL.Query().Get("to"), now.Add(22*time.Hour))
	if !from.Before(to) {
		http.Error(w, "from must precede to", http.StatusBadRequest)
		return
	}

	snap, err := h.Guide.Snapshot(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, snap.ProgramsInRange(channelID, from, to))
}

// Day returns the full schedule of one channel for a calendar day
// (date=YYYY-MM-DD, default today).
func (h *EPGHandler) Day(w http.ResponseWriter, r *http.Request) {
	channelID := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("channel")))
	if channelID == "" {
		http.Error(w, "missing channel parameter", http.StatusBadRequest)
		return
	}

	date := time.Now().UTC()
	if d := strings.TrimSpace(r.URL.Query().Get("date")); d != "" {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			http.Error(w, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		date = parsed
	}

	snap, err := h.Guide.Snapshot(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, snap.DailySchedule(channelID, date))
}

// Status reports coordinator state plus whether the guide is enabled at all.
func (h *EPGHandler) Status(w http.ResponseWriter, r *http.Request) {
	status := h.Guide.Status()
	if settings, err := h.CfgManager.Load(); err == nil {
		status.Enabled = settings.Guide.Enabled
	}
	writeJSON(w, status)
}

// Refresh triggers a forced guide refresh.
func (h *EPGHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.Guide.Refresh(r.Context()); err != nil {
		log.Printf("[api] guide refresh failed: %v", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, h.Guide.Status())
}

// Clear drops cached guide data without refetching.
func (h *EPGHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.Guide.ClearCache()
	w.WriteHeader(http.StatusNoContent)
}

func parseTimeParam(s string, fallback time.Time) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] failed to encode response: %v", err)
	}
}
