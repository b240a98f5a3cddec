package api

import (
	"net/http"

	"prismcast/handlers"

	"github.com/gorilla/mux"
)

// corsMiddleware handles CORS for API routes.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RegisterRoutes wires the read surface onto the router.
func RegisterRoutes(r *mux.Router, content *handlers.ContentHandler, epg *handlers.EPGHandler) {
	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.Use(corsMiddleware)

	apiRouter.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	apiRouter.HandleFunc("/channels", content.Channels).Methods(http.MethodGet)
	apiRouter.HandleFunc("/channels/refresh", content.RefreshChannels).Methods(http.MethodPost)
	apiRouter.HandleFunc("/movies", content.Movies).Methods(http.MethodGet)
	apiRouter.HandleFunc("/series", content.Series).Methods(http.MethodGet)

	apiRouter.HandleFunc("/epg/nowplaying", epg.NowPlaying).Methods(http.MethodGet)
	apiRouter.HandleFunc("/epg/schedule", epg.Schedule).Methods(http.MethodGet)
	apiRouter.HandleFunc("/epg/day", epg.Day).Methods(http.MethodGet)
	apiRouter.HandleFunc("/epg/status", epg.Status).Methods(http.MethodGet)
	apiRouter.HandleFunc("/epg/refresh", epg.Refresh).Methods(http.MethodPost)
	apiRouter.HandleFunc("/epg/clear", epg.Clear).Methods(http.MethodPost)
}
