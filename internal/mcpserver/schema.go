package mcpserver

import "shoe-tracker/internal/shoe"

const (
	defaultRoundsLimit = 20
	maxRoundsLimit     = 200
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultRoundsLimit
	}
	if limit > maxRoundsLimit {
		return maxRoundsLimit
	}
	return limit
}

// normalizeShoeName accepts "1" and "2" as shorthand for the two shoe names.
func normalizeShoeName(v string) string {
	switch v {
	case "1":
		return shoe.NameOne
	case "2":
		return shoe.NameTwo
	default:
		return v
	}
}
