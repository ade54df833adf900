package store

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisPrefix = "tracker"

// Redis keeps each pile as a list under <prefix>:shoe:<name>:<pile>, rounds as
// hashes indexed by a per-shoe sorted set, and sessions as hashes.
type Redis struct {
	client *redis.Client
	prefix string
	mu     sync.Mutex
}

func NewRedis(ctx context.Context, opts *redis.Options, prefix string) (*Redis, error) {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Redis{client: client, prefix: prefix}, nil
}

func (r *Redis) Close() {
	_ = r.client.Close()
}

func (r *Redis) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

func (r *Redis) shoesKey() string { return r.prefix + ":shoes" }

func (r *Redis) roundKey(shoe, gameID string) string {
	return r.prefix + ":round:" + shoe + ":" + gameID
}

func (r *Redis) roundIndexKey(shoe string) string { return r.prefix + ":rounds:" + shoe }

func (r *Redis) sessionKey(id string) string { return r.prefix + ":session:" + id }

func pileKey(prefix, name, pile string) string {
	return prefix + ":shoe:" + name + ":" + pile
}

const (
	pileUndealt   = "undealt"
	pileDealt     = "dealt"
	pileCurrent   = "current"
	pileDiscarded = "discarded"
	pileNext      = "next"
)

func (r *Redis) EnsureRow(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client.SAdd(ctx, r.shoesKey(), name).Err()
}

func (r *Redis) GetShoeState(ctx context.Context, name string) (*ShoeState, error) {
	ok, err := r.client.SIsMember(ctx, r.shoesKey(), name).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	st := &ShoeState{Name: name}
	targets := []struct {
		pile string
		dst  *[]string
	}{
		{pileUndealt, &st.Undealt},
		{pileDealt, &st.Dealt},
		{pileCurrent, &st.Current},
		{pileDiscarded, &st.Discarded},
		{pileNext, &st.NextStack},
	}
	cmds := make([]*redis.StringSliceCmd, len(targets))
	if _, err := r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, t := range targets {
			cmds[i] = p.LRange(ctx, pileKey(r.prefix, name, t.pile), 0, -1)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	for i, t := range targets {
		vals, err := cmds[i].Result()
		if err != nil {
			return nil, err
		}
		*t.dst = append([]string{}, vals...)
	}
	return st, nil
}

// Atomic queues the writes fn makes into one MULTI/EXEC block.
func (r *Redis) Atomic(ctx context.Context, fn func(w ShoeWriter) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		return fn(redisWriter{c: p, prefix: r.prefix})
	})
	return err
}

func (r *Redis) UpdateCurrentDealt(ctx context.Context, name string, cards []string) error {
	return r.Atomic(ctx, func(w ShoeWriter) error { return w.UpdateCurrentDealt(ctx, name, cards) })
}

func (r *Redis) AppendDealt(ctx context.Context, name string, cards []string) error {
	return r.Atomic(ctx, func(w ShoeWriter) error { return w.AppendDealt(ctx, name, cards) })
}

func (r *Redis) SetDealt(ctx context.Context, name string, cards []string) error {
	return r.Atomic(ctx, func(w ShoeWriter) error { return w.SetDealt(ctx, name, cards) })
}

func (r *Redis) ReplaceUndealt(ctx context.Context, name string, cards []string) error {
	return r.Atomic(ctx, func(w ShoeWriter) error { return w.ReplaceUndealt(ctx, name, cards) })
}

func (r *Redis) PrependDiscarded(ctx context.Context, name string, cards []string) error {
	return r.Atomic(ctx, func(w ShoeWriter) error { return w.PrependDiscarded(ctx, name, cards) })
}

func (r *Redis) SetDiscarded(ctx context.Context, name string, cards []string) error {
	return r.Atomic(ctx, func(w ShoeWriter) error { return w.SetDiscarded(ctx, name, cards) })
}

func (r *Redis) SetNextShuffleStack(ctx context.Context, name string, cards []string) error {
	return r.Atomic(ctx, func(w ShoeWriter) error { return w.SetNextShuffleStack(ctx, name, cards) })
}

// redisWriter only queues commands; failures surface when the block executes.
type redisWriter struct {
	c      redis.Cmdable
	prefix string
}

func values(cards []string) []any {
	out := make([]any, len(cards))
	for i, c := range cards {
		out[i] = c
	}
	return out
}

func (w redisWriter) replace(ctx context.Context, name, pile string, cards []string) error {
	key := pileKey(w.prefix, name, pile)
	w.c.Del(ctx, key)
	if len(cards) > 0 {
		w.c.RPush(ctx, key, values(cards)...)
	}
	return nil
}

func (w redisWriter) UpdateCurrentDealt(ctx context.Context, name string, cards []string) error {
	return w.replace(ctx, name, pileCurrent, cards)
}

func (w redisWriter) AppendDealt(ctx context.Context, name string, cards []string) error {
	if len(cards) > 0 {
		w.c.RPush(ctx, pileKey(w.prefix, name, pileDealt), values(cards)...)
	}
	return nil
}

func (w redisWriter) SetDealt(ctx context.Context, name string, cards []string) error {
	return w.replace(ctx, name, pileDealt, cards)
}

func (w redisWriter) ReplaceUndealt(ctx context.Context, name string, cards []string) error {
	return w.replace(ctx, name, pileUndealt, cards)
}

// PrependDiscarded pushes the block in reverse so LPUSH leaves it in order at the head.
func (w redisWriter) PrependDiscarded(ctx context.Context, name string, cards []string) error {
	if len(cards) == 0 {
		return nil
	}
	rev := make([]any, len(cards))
	for i, c := range cards {
		rev[len(cards)-1-i] = c
	}
	w.c.LPush(ctx, pileKey(w.prefix, name, pileDiscarded), rev...)
	return nil
}

func (w redisWriter) SetDiscarded(ctx context.Context, name string, cards []string) error {
	return w.replace(ctx, name, pileDiscarded, cards)
}

func (w redisWriter) SetNextShuffleStack(ctx context.Context, name string, cards []string) error {
	return w.replace(ctx, name, pileNext, cards)
}

func (r *Redis) UpsertRound(ctx context.Context, shoe, gameID string, dealer, seats json.RawMessage, ts time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ms := ts.UTC().UnixMilli()
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, r.roundKey(shoe, gameID), map[string]any{
			"dealer":        string(orEmptyObject(dealer)),
			"seats":         string(orEmptyObject(seats)),
			"updated_at_ms": ms,
		})
		p.ZAdd(ctx, r.roundIndexKey(shoe), redis.Z{Score: float64(ms), Member: gameID})
		return nil
	})
	return err
}

func roundFromHash(shoe, gameID string, h map[string]string) Round {
	ms, _ := strconv.ParseInt(h["updated_at_ms"], 10, 64)
	return Round{
		Shoe:      shoe,
		GameID:    gameID,
		Dealer:    json.RawMessage(h["dealer"]),
		Seats:     json.RawMessage(h["seats"]),
		UpdatedAt: time.UnixMilli(ms).UTC(),
	}
}

func (r *Redis) GetRound(ctx context.Context, shoe, gameID string) (*Round, error) {
	h, err := r.client.HGetAll(ctx, r.roundKey(shoe, gameID)).Result()
	if err != nil {
		return nil, err
	}
	if len(h) == 0 {
		return nil, ErrNotFound
	}
	round := roundFromHash(shoe, gameID, h)
	return &round, nil
}

func (r *Redis) ListRounds(ctx context.Context, shoe string, limit int) ([]Round, error) {
	if limit <= 0 {
		limit = 50
	}
	ids, err := r.client.ZRevRange(ctx, r.roundIndexKey(shoe), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	if len(ids) > 0 {
		if _, err := r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
			for i, id := range ids {
				cmds[i] = p.HGetAll(ctx, r.roundKey(shoe, id))
			}
			return nil
		}); err != nil {
			return nil, err
		}
	}
	out := make([]Round, 0, len(ids))
	for i, id := range ids {
		h, err := cmds[i].Result()
		if err != nil {
			return nil, err
		}
		if len(h) == 0 {
			continue
		}
		out = append(out, roundFromHash(shoe, id, h))
	}
	return out, nil
}

func (r *Redis) StartSession(ctx context.Context, shoe string, decks int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := NewID()
	err := r.client.HSet(ctx, r.sessionKey(id), map[string]any{
		"shoe":          shoe,
		"decks":         decks,
		"status":        SessionActive,
		"rounds":        0,
		"cards_dealt":   0,
		"started_at_ms": time.Now().UTC().UnixMilli(),
	}).Err()
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *Redis) EndSession(ctx context.Context, id string, rounds, cardsDealt int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, err := r.client.Exists(ctx, r.sessionKey(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return r.client.HSet(ctx, r.sessionKey(id), map[string]any{
		"status":      SessionCompleted,
		"rounds":      rounds,
		"cards_dealt": cardsDealt,
		"ended_at_ms": time.Now().UTC().UnixMilli(),
	}).Err()
}

func (r *Redis) GetSession(ctx context.Context, id string) (*Session, error) {
	h, err := r.client.HGetAll(ctx, r.sessionKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(h) == 0 {
		return nil, ErrNotFound
	}
	sess := &Session{ID: id, Shoe: h["shoe"], Status: h["status"]}
	sess.Decks, _ = strconv.Atoi(h["decks"])
	sess.Rounds, _ = strconv.Atoi(h["rounds"])
	sess.CardsDealt, _ = strconv.Atoi(h["cards_dealt"])
	started, _ := strconv.ParseInt(h["started_at_ms"], 10, 64)
	sess.StartedAt = time.UnixMilli(started).UTC()
	if v, ok := h["ended_at_ms"]; ok {
		ended, _ := strconv.ParseInt(v, 10, 64)
		t := time.UnixMilli(ended).UTC()
		sess.EndedAt = &t
	}
	return sess, nil
}
