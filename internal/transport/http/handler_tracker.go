package httptransport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"shoe-tracker/internal/round"
	"shoe-tracker/internal/tracker"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

const maxSnapshotBytes = 1 << 20

type TrackerHandlers struct {
	tracker *tracker.Manager
}

func NewTrackerHandlers(mgr *tracker.Manager) *TrackerHandlers {
	return &TrackerHandlers{tracker: mgr}
}

func writeTrackerError(w http.ResponseWriter, err error) {
	status, code := tracker.MapError(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("code", code).Msg("tracker_request_failed")
	}
	WriteHTTPError(w, status, code)
}

// Snapshot ingests one scraped round snapshot.
func (h *TrackerHandlers) Snapshot() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricSnapshotIngestTotal.Add(1)
		body, err := io.ReadAll(io.LimitReader(r.Body, maxSnapshotBytes))
		if err != nil {
			metricSnapshotIngestErrors.Add(1)
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		snap, err := round.Decode(body)
		if err == nil {
			err = h.tracker.Observe(r.Context(), snap)
		}
		if err != nil {
			metricSnapshotIngestErrors.Add(1)
			if errors.Is(err, round.ErrMissingGameID) {
				log.Warn().Msg("snapshot_missing_game_id")
			}
			writeTrackerError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "game_id": snap.GameID})
	}
}

func (h *TrackerHandlers) Status() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(h.tracker.Status())
	}
}

func (h *TrackerHandlers) Shoe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := h.tracker.Shoe(r.Context(), chi.URLParam(r, "name"))
		if err != nil {
			writeTrackerError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(view)
	}
}

func (h *TrackerHandlers) Rounds() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := ParseLimit(r)
		items, err := h.tracker.Rounds(r.Context(), chi.URLParam(r, "name"), limit)
		if err != nil {
			writeTrackerError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items, "limit": limit})
	}
}
