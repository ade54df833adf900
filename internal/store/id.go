package store

import "github.com/oklog/ulid/v2"

// NewID returns a lexically sortable session id.
func NewID() string {
	return ulid.Make().String()
}
