package httptransport

import (
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"shoe-tracker/internal/config"
	"shoe-tracker/internal/mcpserver"
	"shoe-tracker/internal/store"
	"shoe-tracker/internal/tracker"
	"shoe-tracker/internal/ws"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

func NewRouter(st store.Adapter, mgr *tracker.Manager, cfg config.ServerConfig) *chi.Mux {
	trackerHandlers := NewTrackerHandlers(mgr)
	adminHandlers := NewAdminHandlers(st, mgr, cfg)
	wsSrv := ws.NewServer(mgr)
	mcpSrv := mcpserver.New(mgr, cfg)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", adminHandlers.Health())
	r.With(APILogMiddleware()).MethodFunc(http.MethodOptions, "/mcp", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Allow", "POST, GET, DELETE, OPTIONS")
		w.WriteHeader(http.StatusNoContent)
	})
	r.With(APILogMiddleware()).Method(http.MethodPost, "/mcp", mcpSrv.Handler())
	r.With(APILogMiddleware()).Method(http.MethodGet, "/mcp", mcpSrv.Handler())
	r.With(APILogMiddleware()).Method(http.MethodDelete, "/mcp", mcpSrv.Handler())

	r.Get("/ws/snapshots", wsSrv.HandleSnapshots)
	r.Get("/ws/status", wsSrv.HandleStatus)

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())
		r.Post("/snapshots", trackerHandlers.Snapshot())
		r.Get("/status", trackerHandlers.Status())
		r.Get("/shoes/{name}", trackerHandlers.Shoe())
		r.Get("/shoes/{name}/rounds", trackerHandlers.Rounds())

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminAPIKey))
			r.Get("/sessions/{session_id}", adminHandlers.Session())

			r.Group(func(r chi.Router) {
				r.Use(BodyCaptureMiddleware(4096))
				r.Post("/shoes/active", adminHandlers.SetActive())
				r.Post("/shoes/end", adminHandlers.EndShoe())
			})

			r.Route("/debug", func(r chi.Router) {
				r.Get("/vars", expvar.Handler().ServeHTTP)
			})
		})
	})
	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 32)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
