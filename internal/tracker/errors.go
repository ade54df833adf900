package tracker

import (
	"errors"
	"net/http"

	"shoe-tracker/internal/round"
)

var (
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrNoActiveShoe       = errors.New("no active shoe")
	ErrUnknownShoe        = errors.New("unknown shoe")
	ErrShoeShuffling      = errors.New("shoe is being shuffled")
)

// MapError turns a manager or snapshot decoding error into an HTTP status and
// a stable error code shared by every service surface.
func MapError(err error) (int, string) {
	switch {
	case errors.Is(err, round.ErrMalformedJSON):
		return http.StatusBadRequest, "malformed_snapshot"
	case errors.Is(err, round.ErrMissingGameID):
		return http.StatusBadRequest, "missing_game_id"
	case errors.Is(err, ErrUnknownShoe):
		return http.StatusNotFound, "unknown_shoe"
	case errors.Is(err, ErrNoActiveShoe):
		return http.StatusConflict, "no_active_shoe"
	case errors.Is(err, ErrShoeShuffling):
		return http.StatusConflict, "shoe_shuffling"
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	case errors.Is(err, ErrInvariantViolation):
		return http.StatusInternalServerError, "invariant_violation"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
