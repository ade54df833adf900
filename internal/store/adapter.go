package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// Round is one persisted round, keyed by shoe and game id. Dealer and Seats hold
// the hand JSON exactly as the observer produced it.
type Round struct {
	Shoe      string          `json:"shoe"`
	GameID    string          `json:"game_id"`
	Dealer    json.RawMessage `json:"dealer"`
	Seats     json.RawMessage `json:"seats"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ShoeState is the persisted pile layout of one shoe. Cards are display strings.
type ShoeState struct {
	Name      string   `json:"name"`
	Undealt   []string `json:"undealt"`
	Dealt     []string `json:"dealt"`
	Current   []string `json:"current"`
	Discarded []string `json:"discarded"`
	NextStack []string `json:"next_stack"`
}

const (
	SessionActive    = "active"
	SessionCompleted = "completed"
)

// Session spans one shoe from a wholesale undealt replacement until it is ended.
type Session struct {
	ID         string     `json:"id"`
	Shoe       string     `json:"shoe"`
	Decks      int        `json:"decks"`
	Status     string     `json:"status"`
	Rounds     int        `json:"rounds"`
	CardsDealt int        `json:"cards_dealt"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

// ShoeWriter holds the pile writes. Writes against a shoe without a row fail
// with ErrNotFound on the SQL and memory backends.
type ShoeWriter interface {
	UpdateCurrentDealt(ctx context.Context, name string, cards []string) error
	AppendDealt(ctx context.Context, name string, cards []string) error
	SetDealt(ctx context.Context, name string, cards []string) error
	ReplaceUndealt(ctx context.Context, name string, cards []string) error
	PrependDiscarded(ctx context.Context, name string, cards []string) error
	SetDiscarded(ctx context.Context, name string, cards []string) error
	SetNextShuffleStack(ctx context.Context, name string, cards []string) error
}

// Adapter is the persistence boundary of the tracker. Implementations serialize
// writes internally; reads return point-in-time copies.
type Adapter interface {
	ShoeWriter

	// Atomic applies every write fn makes as one unit: all of them land or none do.
	Atomic(ctx context.Context, fn func(w ShoeWriter) error) error

	EnsureRow(ctx context.Context, name string) error
	GetShoeState(ctx context.Context, name string) (*ShoeState, error)

	UpsertRound(ctx context.Context, shoe, gameID string, dealer, seats json.RawMessage, ts time.Time) error
	GetRound(ctx context.Context, shoe, gameID string) (*Round, error)
	// ListRounds returns the most recently updated rounds first.
	ListRounds(ctx context.Context, shoe string, limit int) ([]Round, error)

	StartSession(ctx context.Context, shoe string, decks int) (string, error)
	EndSession(ctx context.Context, id string, rounds, cardsDealt int) error
	GetSession(ctx context.Context, id string) (*Session, error)

	Ping(ctx context.Context) error
	Close()
}

// ResetShoe replaces undealt and clears every other pile in one update.
func ResetShoe(ctx context.Context, a Adapter, name string, undealt []string) error {
	return a.Atomic(ctx, func(w ShoeWriter) error {
		if err := w.ReplaceUndealt(ctx, name, undealt); err != nil {
			return err
		}
		for _, reset := range []func(context.Context, string, []string) error{
			w.SetDealt, w.UpdateCurrentDealt, w.SetDiscarded, w.SetNextShuffleStack,
		} {
			if err := reset(ctx, name, nil); err != nil {
				return err
			}
		}
		return nil
	})
}

func encodeCards(cards []string) []byte {
	if cards == nil {
		cards = []string{}
	}
	b, _ := json.Marshal(cards)
	return b
}

func decodeCards(b []byte) ([]string, error) {
	out := []string{}
	if len(b) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func cloneCards(cards []string) []string {
	out := make([]string, len(cards))
	copy(out, cards)
	return out
}

func prepend(block, pile []string) []string {
	out := make([]string, 0, len(block)+len(pile))
	out = append(out, block...)
	return append(out, pile...)
}
