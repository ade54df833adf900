// Package round turns scraped round snapshots into canonical card order and
// builds the discard block of a finished round.
package round

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrMissingGameID = errors.New("missing_game_id")
	ErrMalformedJSON = errors.New("malformed_snapshot")
)

// Entry is one card slot as reported by the scraper. T orders cards by deal time.
type Entry struct {
	Value string `json:"value"`
	T     int64  `json:"t"`
}

// Hand is a dealer or seat hand. Score and State pass through untouched.
type Hand struct {
	Cards []Entry         `json:"cards"`
	Score json.RawMessage `json:"score,omitempty"`
	State json.RawMessage `json:"state,omitempty"`
}

// Snapshot is the part of a scraped payload the tracker reads.
type Snapshot struct {
	GameID string
	Dealer Hand
	// Seats maps seat keys ("0".."6") to the seat's first hand.
	Seats map[string]Hand
	// Dropped counts card entries that were discarded while decoding.
	Dropped int
}

// Decode reads a snapshot leniently: a missing dealer or seats map decodes as
// empty and card entries without a value are dropped. Only invalid JSON or a
// missing gameId is an error.
func Decode(data []byte) (Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return Snapshot{}, errors.Join(ErrMalformedJSON, err)
	}
	return FromMap(raw)
}

func FromMap(raw map[string]any) (Snapshot, error) {
	s := Snapshot{Seats: map[string]Hand{}}
	s.GameID = scalarString(raw["gameId"])
	if dealer, ok := raw["dealer"].(map[string]any); ok {
		s.Dealer = decodeHand(dealer, &s.Dropped)
	}
	if seats, ok := raw["seats"].(map[string]any); ok {
		for key, v := range seats {
			seat, ok := v.(map[string]any)
			if !ok {
				continue
			}
			first, ok := seat["first"].(map[string]any)
			if !ok {
				continue
			}
			s.Seats[key] = decodeHand(first, &s.Dropped)
		}
	}
	if s.GameID == "" {
		return s, ErrMissingGameID
	}
	return s, nil
}

func decodeHand(m map[string]any, dropped *int) Hand {
	var h Hand
	if v, ok := m["score"]; ok && v != nil {
		h.Score, _ = json.Marshal(v)
	}
	if v, ok := m["state"]; ok && v != nil {
		h.State, _ = json.Marshal(v)
	}
	list, _ := m["cards"].([]any)
	for _, item := range list {
		cm, ok := item.(map[string]any)
		if !ok {
			*dropped++
			continue
		}
		value := strings.TrimSpace(scalarString(cm["value"]))
		if value == "" {
			*dropped++
			continue
		}
		h.Cards = append(h.Cards, Entry{Value: value, T: scalarInt(cm["t"])})
	}
	return h
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

func scalarInt(v any) int64 {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return int64(math.Round(f))
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
			return n
		}
	case float64:
		return int64(math.Round(t))
	}
	return 0
}

// SeatKeys returns the seat keys in string order.
func (s Snapshot) SeatKeys() []string {
	keys := make([]string, 0, len(s.Seats))
	for k := range s.Seats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarshalHands produces the dealer and per-seat JSON persisted with the round.
func (s Snapshot) MarshalHands() (dealer, seats json.RawMessage, err error) {
	dealer, err = json.Marshal(s.Dealer)
	if err != nil {
		return nil, nil, err
	}
	seatMap := s.Seats
	if seatMap == nil {
		seatMap = map[string]Hand{}
	}
	seats, err = json.Marshal(seatMap)
	if err != nil {
		return nil, nil, err
	}
	return dealer, seats, nil
}

// UnmarshalHands reverses MarshalHands.
func UnmarshalHands(dealer, seats json.RawMessage) (Hand, map[string]Hand, error) {
	var d Hand
	if len(dealer) > 0 {
		if err := json.Unmarshal(dealer, &d); err != nil {
			return Hand{}, nil, err
		}
	}
	out := map[string]Hand{}
	if len(seats) > 0 {
		if err := json.Unmarshal(seats, &out); err != nil {
			return Hand{}, nil, err
		}
	}
	return d, out, nil
}
