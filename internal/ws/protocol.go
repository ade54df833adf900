package ws

import "shoe-tracker/internal/tracker"

const ProtocolVersion = "1.0"

// Ack answers every snapshot frame received on the ingest socket.
type Ack struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	GameID          string `json:"game_id,omitempty"`
	Ok              bool   `json:"ok"`
	Error           string `json:"error,omitempty"`
	ActiveShoe      string `json:"active_shoe,omitempty"`
}

// StatusUpdate is pushed to watchers after every accepted snapshot.
type StatusUpdate struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	TimestampMS     int64          `json:"timestamp_ms"`
	Status          tracker.Status `json:"status"`
}
