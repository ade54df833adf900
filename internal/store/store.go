package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the Postgres adapter. Piles live in JSONB columns of shoe_state.
type Store struct {
	Pool *pgxpool.Pool
	mu   sync.Mutex
}

func New(dsn string) (*Store, error) {
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.Pool.Ping(ctx)
}

func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *Store) EnsureRow(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.Pool.Exec(ctx, `INSERT INTO shoe_state (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name)
	return err
}

func (s *Store) GetShoeState(ctx context.Context, name string) (*ShoeState, error) {
	var undealt, dealt, current, discarded, next []byte
	err := s.Pool.QueryRow(ctx, `
SELECT undealt, dealt, current_cards, discarded, next_stack
FROM shoe_state WHERE name = $1`, name).Scan(&undealt, &dealt, &current, &discarded, &next)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return decodeState(name, undealt, dealt, current, discarded, next)
}

func decodeState(name string, undealt, dealt, current, discarded, next []byte) (*ShoeState, error) {
	st := &ShoeState{Name: name}
	var err error
	for _, f := range []struct {
		dst *[]string
		raw []byte
	}{
		{&st.Undealt, undealt},
		{&st.Dealt, dealt},
		{&st.Current, current},
		{&st.Discarded, discarded},
		{&st.NextStack, next},
	} {
		if *f.dst, err = decodeCards(f.raw); err != nil {
			return nil, err
		}
	}
	return st, nil
}

func (s *Store) Atomic(ctx context.Context, fn func(w ShoeWriter) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := fn(pgWriter{db: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) exec(ctx context.Context, fn func(w pgWriter) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(pgWriter{db: s.Pool})
}

func (s *Store) UpdateCurrentDealt(ctx context.Context, name string, cards []string) error {
	return s.exec(ctx, func(w pgWriter) error { return w.UpdateCurrentDealt(ctx, name, cards) })
}

func (s *Store) AppendDealt(ctx context.Context, name string, cards []string) error {
	return s.exec(ctx, func(w pgWriter) error { return w.AppendDealt(ctx, name, cards) })
}

func (s *Store) SetDealt(ctx context.Context, name string, cards []string) error {
	return s.exec(ctx, func(w pgWriter) error { return w.SetDealt(ctx, name, cards) })
}

func (s *Store) ReplaceUndealt(ctx context.Context, name string, cards []string) error {
	return s.exec(ctx, func(w pgWriter) error { return w.ReplaceUndealt(ctx, name, cards) })
}

func (s *Store) PrependDiscarded(ctx context.Context, name string, cards []string) error {
	return s.exec(ctx, func(w pgWriter) error { return w.PrependDiscarded(ctx, name, cards) })
}

func (s *Store) SetDiscarded(ctx context.Context, name string, cards []string) error {
	return s.exec(ctx, func(w pgWriter) error { return w.SetDiscarded(ctx, name, cards) })
}

func (s *Store) SetNextShuffleStack(ctx context.Context, name string, cards []string) error {
	return s.exec(ctx, func(w pgWriter) error { return w.SetNextShuffleStack(ctx, name, cards) })
}

type pgExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type pgWriter struct {
	db pgExecer
}

func (w pgWriter) run(ctx context.Context, sql, name string, cards []string) error {
	tag, err := w.db.Exec(ctx, sql, name, string(encodeCards(cards)))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (w pgWriter) UpdateCurrentDealt(ctx context.Context, name string, cards []string) error {
	return w.run(ctx, `UPDATE shoe_state SET current_cards = $2::jsonb, updated_at = now() WHERE name = $1`, name, cards)
}

func (w pgWriter) AppendDealt(ctx context.Context, name string, cards []string) error {
	return w.run(ctx, `UPDATE shoe_state SET dealt = dealt || $2::jsonb, updated_at = now() WHERE name = $1`, name, cards)
}

func (w pgWriter) SetDealt(ctx context.Context, name string, cards []string) error {
	return w.run(ctx, `UPDATE shoe_state SET dealt = $2::jsonb, updated_at = now() WHERE name = $1`, name, cards)
}

func (w pgWriter) ReplaceUndealt(ctx context.Context, name string, cards []string) error {
	return w.run(ctx, `UPDATE shoe_state SET undealt = $2::jsonb, updated_at = now() WHERE name = $1`, name, cards)
}

func (w pgWriter) PrependDiscarded(ctx context.Context, name string, cards []string) error {
	return w.run(ctx, `UPDATE shoe_state SET discarded = $2::jsonb || discarded, updated_at = now() WHERE name = $1`, name, cards)
}

func (w pgWriter) SetDiscarded(ctx context.Context, name string, cards []string) error {
	return w.run(ctx, `UPDATE shoe_state SET discarded = $2::jsonb, updated_at = now() WHERE name = $1`, name, cards)
}

func (w pgWriter) SetNextShuffleStack(ctx context.Context, name string, cards []string) error {
	return w.run(ctx, `UPDATE shoe_state SET next_stack = $2::jsonb, updated_at = now() WHERE name = $1`, name, cards)
}

func (s *Store) UpsertRound(ctx context.Context, shoe, gameID string, dealer, seats json.RawMessage, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.Pool.Exec(ctx, `
INSERT INTO rounds (shoe_name, game_id, dealer, seats, updated_at)
VALUES ($1, $2, $3::jsonb, $4::jsonb, $5)
ON CONFLICT (shoe_name, game_id)
DO UPDATE SET dealer = EXCLUDED.dealer, seats = EXCLUDED.seats, updated_at = EXCLUDED.updated_at`,
		shoe, gameID, string(orEmptyObject(dealer)), string(orEmptyObject(seats)), ts)
	return err
}

func orEmptyObject(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return raw
}

func (s *Store) GetRound(ctx context.Context, shoe, gameID string) (*Round, error) {
	r := Round{Shoe: shoe, GameID: gameID}
	var dealer, seats []byte
	err := s.Pool.QueryRow(ctx, `
SELECT dealer, seats, updated_at FROM rounds WHERE shoe_name = $1 AND game_id = $2`,
		shoe, gameID).Scan(&dealer, &seats, &r.UpdatedAt)
	if err != nil {
		return nil, mapNotFound(err)
	}
	r.Dealer, r.Seats = dealer, seats
	return &r, nil
}

func (s *Store) ListRounds(ctx context.Context, shoe string, limit int) ([]Round, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx, `
SELECT game_id, dealer, seats, updated_at FROM rounds
WHERE shoe_name = $1
ORDER BY updated_at DESC, game_id DESC
LIMIT $2`, shoe, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Round{}
	for rows.Next() {
		r := Round{Shoe: shoe}
		var dealer, seats []byte
		if err := rows.Scan(&r.GameID, &dealer, &seats, &r.UpdatedAt); err != nil {
			return nil, err
		}
		r.Dealer, r.Seats = dealer, seats
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) StartSession(ctx context.Context, shoe string, decks int) (string, error) {
	id := NewID()
	_, err := s.Pool.Exec(ctx, `
INSERT INTO shoe_sessions (id, shoe_name, decks, status) VALUES ($1, $2, $3, $4)`,
		id, shoe, decks, SessionActive)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) EndSession(ctx context.Context, id string, rounds, cardsDealt int) error {
	tag, err := s.Pool.Exec(ctx, `
UPDATE shoe_sessions
SET status = $2, total_rounds = $3, total_cards_dealt = $4, ended_at = now()
WHERE id = $1`, id, SessionCompleted, rounds, cardsDealt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	var sess Session
	err := s.Pool.QueryRow(ctx, `
SELECT id, shoe_name, decks, status, total_rounds, total_cards_dealt, started_at, ended_at
FROM shoe_sessions WHERE id = $1`, id).Scan(
		&sess.ID, &sess.Shoe, &sess.Decks, &sess.Status, &sess.Rounds, &sess.CardsDealt, &sess.StartedAt, &sess.EndedAt)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &sess, nil
}
