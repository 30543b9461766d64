package httpserver

import (
	"net/http"
	"sort"
	"strings"

	"bessanalytics/backend/services/bess-service/internal/http/handlers"
)

// Routes defines HTTP endpoints.
type Routes struct {
	Assets     *handlers.AssetsHandlers
	Health     http.Handler
	Feed       http.Handler
	Metrics    http.Handler
	Instrument func(route string, next http.Handler) http.Handler
}

// NewRouter sets up HTTP routing.
func NewRouter(routes Routes) http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern, route string, h http.Handler) {
		if routes.Instrument != nil {
			h = routes.Instrument(route, h)
		}
		mux.Handle(pattern, h)
	}

	if routes.Health != nil {
		handle("/health", "health", method(http.MethodGet, routes.Health))
	}
	if routes.Assets != nil {
		a := routes.Assets
		handle("/api/bess/assets", "assets", methods(map[string]http.Handler{
			http.MethodGet:  http.HandlerFunc(a.List),
			http.MethodPost: http.HandlerFunc(a.Create),
		}))
		handle("/api/bess/assets/{assetId}/metrics", "asset_metrics", method(http.MethodPost, http.HandlerFunc(a.AppendMetric)))
		handle("/api/bess/dashboard", "dashboard", method(http.MethodGet, http.HandlerFunc(a.Dashboard)))
		handle("/api/bess/ingest", "ingest", method(http.MethodPost, http.HandlerFunc(a.Ingest)))
		handle("/api/bess/telemetry/summary", "summary", method(http.MethodGet, http.HandlerFunc(a.Summary)))
	}
	if routes.Feed != nil {
		mux.Handle("/ws/dashboard", method(http.MethodGet, routes.Feed))
	}
	if routes.Metrics != nil {
		mux.Handle("/metrics", method(http.MethodGet, routes.Metrics))
	}
	return mux
}

func method(expected string, handler http.Handler) http.Handler {
	return methods(map[string]http.Handler{expected: handler})
}

func methods(byMethod map[string]http.Handler) http.Handler {
	allow := make([]string, 0, len(byMethod))
	for m := range byMethod {
		allow = append(allow, m)
	}
	sort.Strings(allow)
	allowHeader := strings.Join(allow, ", ")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler, ok := byMethod[r.Method]
		if !ok {
			w.Header().Set("Allow", allowHeader)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
