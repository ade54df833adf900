package tracker

import (
	"context"
	"fmt"

	"shoe-tracker/internal/counting"
	"shoe-tracker/internal/shoe"
	"shoe-tracker/internal/store"
)

const defaultZones = 4

// Status is the minimal observation API: which shoe is live, whether the other
// is shuffling, and the live counts.
type Status struct {
	ActiveShoe        string             `json:"active_shoe"`
	ShuffleInProgress bool               `json:"shuffle_in_progress"`
	ShufflingShoe     string             `json:"shuffling_shoe,omitempty"`
	LastShuffleError  string             `json:"last_shuffle_error,omitempty"`
	GameID            string             `json:"game_id,omitempty"`
	LastDealtCard     string             `json:"last_dealt_card,omitempty"`
	Counts            *counting.Snapshot `json:"counts,omitempty"`
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Status{
		ActiveShoe:        m.active,
		ShuffleInProgress: m.shuffling != "",
		ShufflingShoe:     m.shuffling,
		GameID:            m.lastGameID,
	}
	if m.lastShuffleErr != nil {
		st.LastShuffleError = m.lastShuffleErr.Error()
	}
	if sl, ok := m.slots[m.active]; ok {
		counts := sl.counter.Snapshot()
		st.Counts = &counts
		st.LastDealtCard = sl.lastCard
	}
	return st
}

// ShoeView is the detailed state of one shoe.
type ShoeView struct {
	Name           string            `json:"name"`
	Active         bool              `json:"active"`
	Shuffling      bool              `json:"shuffling"`
	Decks          int               `json:"decks"`
	Size           int               `json:"size"`
	Undealt        int               `json:"undealt"`
	Dealt          int               `json:"dealt"`
	Discarded      int               `json:"discarded"`
	NextStack      int               `json:"next_stack"`
	CurrentRound   []string          `json:"current_round"`
	LastDealtCard  string            `json:"last_dealt_card,omitempty"`
	Rounds         int               `json:"rounds"`
	Desyncs        int               `json:"desyncs"`
	SessionID      string            `json:"session_id,omitempty"`
	Counts         counting.Snapshot `json:"counts"`
	Zones          []shoe.Zone       `json:"zones"`
	PenetrationPct float64           `json:"penetration_pct"`
}

// Shoe returns the view of name, loading it from the store if the manager has
// not touched it yet.
func (m *Manager) Shoe(ctx context.Context, name string) (ShoeView, error) {
	if !shoe.IsKnown(name) {
		return ShoeView{}, fmt.Errorf("%w: %q", ErrUnknownShoe, name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sl, err := m.slotLocked(ctx, name)
	if err != nil {
		return ShoeView{}, err
	}
	sh := sl.shoe
	v := ShoeView{
		Name:          name,
		Active:        name == m.active,
		Shuffling:     name == m.shuffling,
		Decks:         sh.Decks,
		Size:          sh.Size(),
		Undealt:       sh.Undealt.Len(),
		Dealt:         sh.Dealt.Len(),
		Discarded:     sh.Discarded.Len(),
		NextStack:     sh.NextShuffleStack.Len(),
		CurrentRound:  sh.CurrentRound.Strings(),
		LastDealtCard: sl.lastCard,
		Rounds:        sl.rounds,
		Desyncs:       sl.desyncs,
		SessionID:     sl.sessionID,
		Counts:        sl.counter.Snapshot(),
		Zones:         shoe.Zones(sh.Undealt, defaultZones),
	}
	if size := sh.Size(); size > 0 {
		v.PenetrationPct = 100 * float64(sh.Dealt.Len()) / float64(size)
	}
	return v, nil
}

// Rounds lists the most recent persisted rounds of name.
func (m *Manager) Rounds(ctx context.Context, name string, limit int) ([]store.Round, error) {
	if !shoe.IsKnown(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownShoe, name)
	}
	rounds, err := m.store.ListRounds(ctx, name, limit)
	if err != nil {
		metricStoreErrors.Add(1)
		return nil, fmt.Errorf("%w: list rounds: %w", ErrStoreUnavailable, err)
	}
	return rounds, nil
}
