package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Memory keeps every record in process. It backs tests and single-process runs
// that do not need to survive a restart.
type Memory struct {
	mu       sync.RWMutex
	shoes    map[string]*ShoeState
	rounds   map[roundKey]Round
	sessions map[string]Session
}

type roundKey struct {
	shoe   string
	gameID string
}

func NewMemory() *Memory {
	return &Memory{
		shoes:    map[string]*ShoeState{},
		rounds:   map[roundKey]Round{},
		sessions: map[string]Session{},
	}
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() {}

func (m *Memory) EnsureRow(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.shoes[name]; !ok {
		m.shoes[name] = &ShoeState{Name: name}
	}
	return nil
}

func (m *Memory) GetShoeState(_ context.Context, name string) (*ShoeState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.shoes[name]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneState(st), nil
}

func cloneState(st *ShoeState) *ShoeState {
	return &ShoeState{
		Name:      st.Name,
		Undealt:   cloneCards(st.Undealt),
		Dealt:     cloneCards(st.Dealt),
		Current:   cloneCards(st.Current),
		Discarded: cloneCards(st.Discarded),
		NextStack: cloneCards(st.NextStack),
	}
}

func (m *Memory) Atomic(_ context.Context, fn func(w ShoeWriter) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	staged := make(map[string]*ShoeState, len(m.shoes))
	for name, st := range m.shoes {
		staged[name] = cloneState(st)
	}
	if err := fn(memWriter{shoes: staged}); err != nil {
		return err
	}
	m.shoes = staged
	return nil
}

func (m *Memory) write(ctx context.Context, fn func(w ShoeWriter) error) error {
	return m.Atomic(ctx, fn)
}

func (m *Memory) UpdateCurrentDealt(ctx context.Context, name string, cards []string) error {
	return m.write(ctx, func(w ShoeWriter) error { return w.UpdateCurrentDealt(ctx, name, cards) })
}

func (m *Memory) AppendDealt(ctx context.Context, name string, cards []string) error {
	return m.write(ctx, func(w ShoeWriter) error { return w.AppendDealt(ctx, name, cards) })
}

func (m *Memory) SetDealt(ctx context.Context, name string, cards []string) error {
	return m.write(ctx, func(w ShoeWriter) error { return w.SetDealt(ctx, name, cards) })
}

func (m *Memory) ReplaceUndealt(ctx context.Context, name string, cards []string) error {
	return m.write(ctx, func(w ShoeWriter) error { return w.ReplaceUndealt(ctx, name, cards) })
}

func (m *Memory) PrependDiscarded(ctx context.Context, name string, cards []string) error {
	return m.write(ctx, func(w ShoeWriter) error { return w.PrependDiscarded(ctx, name, cards) })
}

func (m *Memory) SetDiscarded(ctx context.Context, name string, cards []string) error {
	return m.write(ctx, func(w ShoeWriter) error { return w.SetDiscarded(ctx, name, cards) })
}

func (m *Memory) SetNextShuffleStack(ctx context.Context, name string, cards []string) error {
	return m.write(ctx, func(w ShoeWriter) error { return w.SetNextShuffleStack(ctx, name, cards) })
}

type memWriter struct {
	shoes map[string]*ShoeState
}

func (w memWriter) update(name string, fn func(st *ShoeState)) error {
	st, ok := w.shoes[name]
	if !ok {
		return ErrNotFound
	}
	fn(st)
	return nil
}

func (w memWriter) UpdateCurrentDealt(_ context.Context, name string, cards []string) error {
	return w.update(name, func(st *ShoeState) { st.Current = cloneCards(cards) })
}

func (w memWriter) AppendDealt(_ context.Context, name string, cards []string) error {
	return w.update(name, func(st *ShoeState) { st.Dealt = append(st.Dealt, cards...) })
}

func (w memWriter) SetDealt(_ context.Context, name string, cards []string) error {
	return w.update(name, func(st *ShoeState) { st.Dealt = cloneCards(cards) })
}

func (w memWriter) ReplaceUndealt(_ context.Context, name string, cards []string) error {
	return w.update(name, func(st *ShoeState) { st.Undealt = cloneCards(cards) })
}

func (w memWriter) PrependDiscarded(_ context.Context, name string, cards []string) error {
	return w.update(name, func(st *ShoeState) { st.Discarded = prepend(cards, st.Discarded) })
}

func (w memWriter) SetDiscarded(_ context.Context, name string, cards []string) error {
	return w.update(name, func(st *ShoeState) { st.Discarded = cloneCards(cards) })
}

func (w memWriter) SetNextShuffleStack(_ context.Context, name string, cards []string) error {
	return w.update(name, func(st *ShoeState) { st.NextStack = cloneCards(cards) })
}

func (m *Memory) UpsertRound(_ context.Context, shoe, gameID string, dealer, seats json.RawMessage, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rounds[roundKey{shoe, gameID}] = Round{
		Shoe:      shoe,
		GameID:    gameID,
		Dealer:    append(json.RawMessage(nil), dealer...),
		Seats:     append(json.RawMessage(nil), seats...),
		UpdatedAt: ts,
	}
	return nil
}

func (m *Memory) GetRound(_ context.Context, shoe, gameID string) (*Round, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rounds[roundKey{shoe, gameID}]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *Memory) ListRounds(_ context.Context, shoe string, limit int) ([]Round, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Round{}
	for k, r := range m.rounds {
		if k.shoe == shoe {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].GameID > out[j].GameID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) StartSession(_ context.Context, shoe string, decks int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := NewID()
	m.sessions[id] = Session{
		ID:        id,
		Shoe:      shoe,
		Decks:     decks,
		Status:    SessionActive,
		StartedAt: time.Now().UTC(),
	}
	return id, nil
}

func (m *Memory) EndSession(_ context.Context, id string, rounds, cardsDealt int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	sess.Status = SessionCompleted
	sess.Rounds = rounds
	sess.CardsDealt = cardsDealt
	sess.EndedAt = &now
	m.sessions[id] = sess
	return nil
}

func (m *Memory) GetSession(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &sess, nil
}
