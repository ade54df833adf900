package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"shoe-tracker/internal/config"
	"shoe-tracker/internal/shuffle"
	"shoe-tracker/internal/store"
	"shoe-tracker/internal/tracker"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type AdminHandlers struct {
	store   store.Adapter
	tracker *tracker.Manager
	cfg     config.ServerConfig
}

func NewAdminHandlers(st store.Adapter, mgr *tracker.Manager, cfg config.ServerConfig) *AdminHandlers {
	return &AdminHandlers{store: st, tracker: mgr, cfg: cfg}
}

func (h *AdminHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.store.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "db": "down", "backend": h.cfg.StoreBackend})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "db": "up", "backend": h.cfg.StoreBackend})
	}
}

func (h *AdminHandlers) SetActive() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		body.Name = strings.TrimSpace(body.Name)
		if body.Name == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		metricControlActionsTotal.Add(1)
		if err := h.tracker.SetActive(r.Context(), body.Name); err != nil {
			writeTrackerError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "active_shoe": body.Name})
	}
}

// EndShoe ends the active shoe and prepares the other one. An empty body uses
// the configured shuffle parameters.
func (h *AdminHandlers) EndShoe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Iterations   *int     `json:"iterations"`
			Chunks       *int     `json:"chunks"`
			Seed         *int64   `json:"seed"`
			Imperfection *float64 `json:"imperfection"`
		}
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
				return
			}
		}
		p := shuffle.Params{Iterations: h.cfg.ShuffleIterations, Chunks: h.cfg.ShuffleChunks, Seed: body.Seed}
		if body.Iterations != nil {
			p.Iterations = *body.Iterations
		}
		if body.Chunks != nil {
			p.Chunks = *body.Chunks
		}
		if body.Imperfection != nil {
			if *body.Imperfection < 0 || *body.Imperfection > 1 {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
				return
			}
			p.Imperfection = body.Imperfection
		}

		metricControlActionsTotal.Add(1)
		res, err := h.tracker.EndCurrentAndPrepareOther(r.Context(), p)
		if err != nil {
			writeTrackerError(w, err)
			return
		}
		if res.Busy {
			log.Warn().Str("shoe", res.Prepared).Msg("end_shoe_rejected_busy")
			WriteHTTPError(w, http.StatusConflict, "shuffle_busy")
			return
		}
		_ = json.NewEncoder(w).Encode(struct {
			Ok bool `json:"ok"`
			tracker.EndResult
		}{Ok: true, EndResult: res})
	}
}

func (h *AdminHandlers) Session() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.store.GetSession(r.Context(), chi.URLParam(r, "session_id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				WriteHTTPError(w, http.StatusNotFound, "session_not_found")
				return
			}
			WriteHTTPError(w, http.StatusServiceUnavailable, "store_unavailable")
			return
		}
		_ = json.NewEncoder(w).Encode(sess)
	}
}
