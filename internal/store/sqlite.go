package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS shoe_state (
    name TEXT PRIMARY KEY,
    undealt TEXT NOT NULL DEFAULT '[]',
    dealt TEXT NOT NULL DEFAULT '[]',
    current_cards TEXT NOT NULL DEFAULT '[]',
    discarded TEXT NOT NULL DEFAULT '[]',
    next_stack TEXT NOT NULL DEFAULT '[]',
    updated_at_ms INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS rounds (
    shoe_name TEXT NOT NULL,
    game_id TEXT NOT NULL,
    dealer TEXT NOT NULL DEFAULT '{}',
    seats TEXT NOT NULL DEFAULT '{}',
    updated_at_ms INTEGER NOT NULL,
    PRIMARY KEY (shoe_name, game_id)
);
CREATE INDEX IF NOT EXISTS rounds_shoe_updated_idx ON rounds (shoe_name, updated_at_ms DESC);
CREATE TABLE IF NOT EXISTS shoe_sessions (
    id TEXT PRIMARY KEY,
    shoe_name TEXT NOT NULL,
    decks INTEGER NOT NULL,
    status TEXT NOT NULL DEFAULT 'active',
    total_rounds INTEGER NOT NULL DEFAULT 0,
    total_cards_dealt INTEGER NOT NULL DEFAULT 0,
    started_at_ms INTEGER NOT NULL,
    ended_at_ms INTEGER
);
`

// SQLite stores piles as JSON text on a single connection.
type SQLite struct {
	db *sql.DB
	mu sync.Mutex
}

func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if path != ":memory:" {
		if parent := filepath.Dir(path); parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for _, pragma := range []string{`PRAGMA busy_timeout = 5000;`, `PRAGMA journal_mode = WAL;`} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *SQLite) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

func sqlNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *SQLite) EnsureRow(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `INSERT INTO shoe_state (name) VALUES (?) ON CONFLICT (name) DO NOTHING`, name)
	return err
}

func (s *SQLite) GetShoeState(ctx context.Context, name string) (*ShoeState, error) {
	return sqliteWriter{db: s.db}.load(ctx, name)
}

func (s *SQLite) Atomic(ctx context.Context, fn func(w ShoeWriter) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(sqliteWriter{db: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLite) UpdateCurrentDealt(ctx context.Context, name string, cards []string) error {
	return s.Atomic(ctx, func(w ShoeWriter) error { return w.UpdateCurrentDealt(ctx, name, cards) })
}

func (s *SQLite) AppendDealt(ctx context.Context, name string, cards []string) error {
	return s.Atomic(ctx, func(w ShoeWriter) error { return w.AppendDealt(ctx, name, cards) })
}

func (s *SQLite) SetDealt(ctx context.Context, name string, cards []string) error {
	return s.Atomic(ctx, func(w ShoeWriter) error { return w.SetDealt(ctx, name, cards) })
}

func (s *SQLite) ReplaceUndealt(ctx context.Context, name string, cards []string) error {
	return s.Atomic(ctx, func(w ShoeWriter) error { return w.ReplaceUndealt(ctx, name, cards) })
}

func (s *SQLite) PrependDiscarded(ctx context.Context, name string, cards []string) error {
	return s.Atomic(ctx, func(w ShoeWriter) error { return w.PrependDiscarded(ctx, name, cards) })
}

func (s *SQLite) SetDiscarded(ctx context.Context, name string, cards []string) error {
	return s.Atomic(ctx, func(w ShoeWriter) error { return w.SetDiscarded(ctx, name, cards) })
}

func (s *SQLite) SetNextShuffleStack(ctx context.Context, name string, cards []string) error {
	return s.Atomic(ctx, func(w ShoeWriter) error { return w.SetNextShuffleStack(ctx, name, cards) })
}

type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sqliteWriter edits pile columns by read-modify-write; it always runs inside
// a transaction on the single connection.
type sqliteWriter struct {
	db sqlQuerier
}

func (w sqliteWriter) load(ctx context.Context, name string) (*ShoeState, error) {
	var undealt, dealt, current, discarded, next string
	err := w.db.QueryRowContext(ctx, `
SELECT undealt, dealt, current_cards, discarded, next_stack
FROM shoe_state WHERE name = ?`, name).Scan(&undealt, &dealt, &current, &discarded, &next)
	if err != nil {
		return nil, sqlNotFound(err)
	}
	return decodeState(name, []byte(undealt), []byte(dealt), []byte(current), []byte(discarded), []byte(next))
}

func (w sqliteWriter) set(ctx context.Context, column, name string, cards []string) error {
	res, err := w.db.ExecContext(ctx,
		`UPDATE shoe_state SET `+column+` = ?, updated_at_ms = ? WHERE name = ?`,
		string(encodeCards(cards)), time.Now().UTC().UnixMilli(), name)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (w sqliteWriter) UpdateCurrentDealt(ctx context.Context, name string, cards []string) error {
	return w.set(ctx, "current_cards", name, cards)
}

func (w sqliteWriter) AppendDealt(ctx context.Context, name string, cards []string) error {
	st, err := w.load(ctx, name)
	if err != nil {
		return err
	}
	return w.set(ctx, "dealt", name, append(st.Dealt, cards...))
}

func (w sqliteWriter) SetDealt(ctx context.Context, name string, cards []string) error {
	return w.set(ctx, "dealt", name, cards)
}

func (w sqliteWriter) ReplaceUndealt(ctx context.Context, name string, cards []string) error {
	return w.set(ctx, "undealt", name, cards)
}

func (w sqliteWriter) PrependDiscarded(ctx context.Context, name string, cards []string) error {
	st, err := w.load(ctx, name)
	if err != nil {
		return err
	}
	return w.set(ctx, "discarded", name, prepend(cards, st.Discarded))
}

func (w sqliteWriter) SetDiscarded(ctx context.Context, name string, cards []string) error {
	return w.set(ctx, "discarded", name, cards)
}

func (w sqliteWriter) SetNextShuffleStack(ctx context.Context, name string, cards []string) error {
	return w.set(ctx, "next_stack", name, cards)
}

func (s *SQLite) UpsertRound(ctx context.Context, shoe, gameID string, dealer, seats json.RawMessage, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO rounds (shoe_name, game_id, dealer, seats, updated_at_ms)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (shoe_name, game_id)
DO UPDATE SET dealer = excluded.dealer, seats = excluded.seats, updated_at_ms = excluded.updated_at_ms
`, shoe, gameID, string(orEmptyObject(dealer)), string(orEmptyObject(seats)), ts.UTC().UnixMilli())
	return err
}

func (s *SQLite) GetRound(ctx context.Context, shoe, gameID string) (*Round, error) {
	var dealer, seats string
	var ms int64
	err := s.db.QueryRowContext(ctx, `
SELECT dealer, seats, updated_at_ms FROM rounds WHERE shoe_name = ? AND game_id = ?`,
		shoe, gameID).Scan(&dealer, &seats, &ms)
	if err != nil {
		return nil, sqlNotFound(err)
	}
	return &Round{
		Shoe:      shoe,
		GameID:    gameID,
		Dealer:    json.RawMessage(dealer),
		Seats:     json.RawMessage(seats),
		UpdatedAt: time.UnixMilli(ms).UTC(),
	}, nil
}

func (s *SQLite) ListRounds(ctx context.Context, shoe string, limit int) ([]Round, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT game_id, dealer, seats, updated_at_ms FROM rounds
WHERE shoe_name = ?
ORDER BY updated_at_ms DESC, game_id DESC
LIMIT ?`, shoe, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Round{}
	for rows.Next() {
		var gameID, dealer, seats string
		var ms int64
		if err := rows.Scan(&gameID, &dealer, &seats, &ms); err != nil {
			return nil, err
		}
		out = append(out, Round{
			Shoe:      shoe,
			GameID:    gameID,
			Dealer:    json.RawMessage(dealer),
			Seats:     json.RawMessage(seats),
			UpdatedAt: time.UnixMilli(ms).UTC(),
		})
	}
	return out, rows.Err()
}

func (s *SQLite) StartSession(ctx context.Context, shoe string, decks int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := NewID()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO shoe_sessions (id, shoe_name, decks, status, started_at_ms) VALUES (?, ?, ?, ?, ?)`,
		id, shoe, decks, SessionActive, time.Now().UTC().UnixMilli())
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLite) EndSession(ctx context.Context, id string, rounds, cardsDealt int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `
UPDATE shoe_sessions
SET status = ?, total_rounds = ?, total_cards_dealt = ?, ended_at_ms = ?
WHERE id = ?`, SessionCompleted, rounds, cardsDealt, time.Now().UTC().UnixMilli(), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) GetSession(ctx context.Context, id string) (*Session, error) {
	var sess Session
	var started int64
	var ended sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
SELECT id, shoe_name, decks, status, total_rounds, total_cards_dealt, started_at_ms, ended_at_ms
FROM shoe_sessions WHERE id = ?`, id).Scan(
		&sess.ID, &sess.Shoe, &sess.Decks, &sess.Status, &sess.Rounds, &sess.CardsDealt, &started, &ended)
	if err != nil {
		return nil, sqlNotFound(err)
	}
	sess.StartedAt = time.UnixMilli(started).UTC()
	if ended.Valid {
		t := time.UnixMilli(ended.Int64).UTC()
		sess.EndedAt = &t
	}
	return &sess, nil
}
