// Package tracker owns the two alternating shoes of a table. It turns round
// snapshots into pile movements, finalizes rounds at gameId boundaries and
// runs the shuffle of the idle shoe in a background worker.
package tracker

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"shoe-tracker/internal/cards"
	"shoe-tracker/internal/counting"
	"shoe-tracker/internal/round"
	"shoe-tracker/internal/shoe"
	"shoe-tracker/internal/store"

	"github.com/rs/zerolog/log"
)

const recentRoundsKept = 16

type Options struct {
	// Decks per fresh shoe; defaults to shoe.DefaultDecks.
	Decks int
	// Rand seeds fresh shoes. Nil uses a time seeded source.
	Rand *rand.Rand
	// Now stamps persisted rounds. Nil uses time.Now.
	Now func() time.Time
}

// Manager serializes every pile mutation behind one mutex. Store I/O happens
// while the mutex is held so the in-memory piles never run ahead of the store.
type Manager struct {
	store store.Adapter
	decks int
	now   func() time.Time

	mu         sync.Mutex
	rnd        *rand.Rand
	slots      map[string]*slot
	active     string
	lastGameID string
	finalized  recentIDs

	shuffling      string
	shuffleDone    chan struct{}
	lastShuffleErr error
}

// slot is the manager's view of one shoe.
type slot struct {
	shoe      *shoe.Shoe
	counter   *counting.Counter
	sessionID string
	rounds    int
	desyncs   int
	lastCard  string
}

func New(st store.Adapter, opts Options) *Manager {
	if opts.Decks <= 0 {
		opts.Decks = shoe.DefaultDecks
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		store: st,
		decks: opts.Decks,
		now:   opts.Now,
		rnd:   opts.Rand,
		slots: map[string]*slot{},
	}
}

// SetActive routes future observations to name. A round still pending on the
// previously active shoe is finalized first. If the shoe has no undealt cards
// it is replaced by a fresh random shoe.
func (m *Manager) SetActive(ctx context.Context, name string) error {
	if !shoe.IsKnown(name) {
		return fmt.Errorf("%w: %q", ErrUnknownShoe, name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shuffling == name {
		return fmt.Errorf("%w: %q", ErrShoeShuffling, name)
	}
	if err := m.finalizePendingLocked(ctx); err != nil {
		return err
	}

	sl, err := m.slotLocked(ctx, name)
	if err != nil {
		return err
	}
	if sl.shoe.Undealt.Len() == 0 {
		if err := m.installFreshLocked(ctx, name, sl); err != nil {
			return err
		}
	}
	if err := m.checkLocked(sl.shoe); err != nil {
		return err
	}
	m.active = name
	m.lastGameID = ""
	log.Info().Str("shoe", name).Int("undealt", sl.shoe.Undealt.Len()).Msg("active_shoe_set")
	return nil
}

// Observe applies one round snapshot to the active shoe. Snapshots without a
// gameId and late snapshots of already finalized rounds are dropped.
func (m *Manager) Observe(ctx context.Context, snap round.Snapshot) error {
	metricSnapshotsTotal.Add(1)
	if snap.GameID == "" {
		metricSnapshotsDropped.Add(1)
		log.Warn().Err(round.ErrMissingGameID).Msg("snapshot_dropped")
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == "" {
		return ErrNoActiveShoe
	}
	if m.finalized.contains(snap.GameID) {
		metricSnapshotsDropped.Add(1)
		log.Debug().Str("game_id", snap.GameID).Msg("stale_snapshot_dropped")
		return nil
	}
	if m.lastGameID != "" && m.lastGameID != snap.GameID {
		if err := m.finalizeLocked(ctx, m.lastGameID); err != nil {
			return err
		}
	}

	name := m.active
	sl := m.slots[name]
	canonical, bad := snap.Canonical()
	if bad > 0 || snap.Dropped > 0 {
		log.Warn().Str("shoe", name).Str("game_id", snap.GameID).
			Int("unparseable", bad).Int("dropped", snap.Dropped).Msg("snapshot_entries_skipped")
	}

	dealer, seats, err := snap.MarshalHands()
	if err != nil {
		return fmt.Errorf("marshal hands: %w", err)
	}
	if err := m.store.UpsertRound(ctx, name, snap.GameID, dealer, seats, m.now()); err != nil {
		return m.storeFailureLocked(ctx, name, "upsert_round", err)
	}
	current := cards.Pile(canonical)
	if err := m.store.UpdateCurrentDealt(ctx, name, current.Strings()); err != nil {
		return m.storeFailureLocked(ctx, name, "update_current", err)
	}

	sl.shoe.CurrentRound = current
	sl.counter.Observe(snap.GameID, canonical)
	if len(canonical) > 0 {
		sl.lastCard = canonical[len(canonical)-1].String()
	}
	m.lastGameID = snap.GameID
	return m.checkLocked(sl.shoe)
}

// FinalizePending closes the round in progress, if any, without waiting for
// the next gameId.
func (m *Manager) FinalizePending(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finalizePendingLocked(ctx)
}

func (m *Manager) finalizePendingLocked(ctx context.Context) error {
	if m.active == "" || m.lastGameID == "" {
		return nil
	}
	return m.finalizeLocked(ctx, m.lastGameID)
}

// finalizeLocked moves the round's cards from undealt into dealt and prepends
// its discard block. The round row is only needed for the discard block, so a
// failed read leaves the block empty instead of failing the round.
func (m *Manager) finalizeLocked(ctx context.Context, gameID string) error {
	name := m.active
	sl := m.slots[name]
	current := sl.shoe.CurrentRound.Clone()

	var block cards.Pile
	if r, err := m.store.GetRound(ctx, name, gameID); err != nil {
		log.Error().Err(err).Str("shoe", name).Str("game_id", gameID).Msg("round_read_failed")
	} else if dealer, seats, err := round.UnmarshalHands(r.Dealer, r.Seats); err != nil {
		log.Error().Err(err).Str("shoe", name).Str("game_id", gameID).Msg("round_decode_failed")
	} else {
		block = round.DiscardBlock(dealer, seats)
	}

	undealt := sl.shoe.Undealt.Clone()
	dealt := make(cards.Pile, 0, current.Len())
	desyncs := 0
	for _, c := range current {
		taken, how := shoe.Take(&undealt, c)
		switch how {
		case shoe.RemovedDesync:
			desyncs++
			log.Warn().Str("shoe", name).Str("game_id", gameID).Str("card", c.String()).
				Str("removed", taken.String()).Msg("shoe_desync")
		case shoe.RemovedNothing:
			// No physical card left to account for it, so it stays out of dealt.
			desyncs++
			log.Error().Str("shoe", name).Str("game_id", gameID).Str("card", c.String()).Msg("shoe_exhausted")
			continue
		case shoe.RemovedRankSwap:
			log.Debug().Str("shoe", name).Str("card", c.String()).Str("removed", taken.String()).Msg("rank_swap")
		}
		dealt = append(dealt, c)
	}

	staged := sl.shoe.Clone()
	staged.Undealt = undealt
	staged.Dealt.PushBack(dealt...)
	staged.Discarded.PushFront(block...)
	staged.CurrentRound = nil
	if err := m.checkLocked(staged); err != nil {
		return err
	}

	err := m.store.Atomic(ctx, func(w store.ShoeWriter) error {
		if err := w.AppendDealt(ctx, name, dealt.Strings()); err != nil {
			return err
		}
		if err := w.ReplaceUndealt(ctx, name, undealt.Strings()); err != nil {
			return err
		}
		if err := w.PrependDiscarded(ctx, name, block.Strings()); err != nil {
			return err
		}
		return w.UpdateCurrentDealt(ctx, name, nil)
	})
	if err != nil {
		return m.storeFailureLocked(ctx, name, "finalize_round", err)
	}

	sl.shoe = staged
	sl.rounds++
	sl.desyncs += desyncs
	metricDesyncTotal.Add(int64(desyncs))
	metricRoundsFinalized.Add(1)
	m.finalized.add(gameID)
	m.lastGameID = ""
	log.Info().Str("shoe", name).Str("game_id", gameID).Int("cards", len(dealt)).
		Int("undealt", undealt.Len()).Int("desyncs", desyncs).Msg("round_finalized")
	return nil
}

// slotLocked returns the cached slot for name, loading it from the store on
// first use.
func (m *Manager) slotLocked(ctx context.Context, name string) (*slot, error) {
	if sl, ok := m.slots[name]; ok {
		return sl, nil
	}
	sl, err := m.loadLocked(ctx, name)
	if err != nil {
		return nil, err
	}
	m.slots[name] = sl
	return sl, nil
}

// loadLocked rebuilds a shoe from its persisted piles. The counter is replayed
// from the dealt pile; the round in progress is recounted by its next snapshot.
func (m *Manager) loadLocked(ctx context.Context, name string) (*slot, error) {
	if err := m.store.EnsureRow(ctx, name); err != nil {
		metricStoreErrors.Add(1)
		return nil, fmt.Errorf("%w: ensure row: %w", ErrStoreUnavailable, err)
	}
	st, err := m.store.GetShoeState(ctx, name)
	if err != nil {
		metricStoreErrors.Add(1)
		return nil, fmt.Errorf("%w: load shoe: %w", ErrStoreUnavailable, err)
	}
	sh := &shoe.Shoe{Name: name, Decks: m.decks}
	skipped := 0
	for _, f := range []struct {
		dst *cards.Pile
		raw []string
	}{
		{&sh.Undealt, st.Undealt},
		{&sh.Dealt, st.Dealt},
		{&sh.CurrentRound, st.Current},
		{&sh.Discarded, st.Discarded},
		{&sh.NextShuffleStack, st.NextStack},
	} {
		p, n := cards.ParsePile(f.raw)
		*f.dst = p
		skipped += n
	}
	if skipped > 0 {
		log.Warn().Str("shoe", name).Int("skipped", skipped).Msg("persisted_cards_skipped")
	}
	counter := counting.New(m.decks)
	counter.Observe("restored", sh.Dealt)
	sl := &slot{shoe: sh, counter: counter}
	if n := sh.Dealt.Len(); n > 0 {
		sl.lastCard = sh.Dealt[n-1].String()
	}
	return sl, nil
}

// installFreshLocked replaces name with a freshly shuffled shoe.
func (m *Manager) installFreshLocked(ctx context.Context, name string, sl *slot) error {
	fresh := cards.NewShoe(m.decks, m.rnd)
	if err := store.ResetShoe(ctx, m.store, name, cards.Pile(fresh).Strings()); err != nil {
		return m.storeFailureLocked(ctx, name, "fresh_shoe", err)
	}
	m.resetSlotLocked(ctx, name, sl, fresh)
	log.Info().Str("shoe", name).Int("decks", m.decks).Msg("fresh_shoe_installed")
	return nil
}

// resetSlotLocked mirrors a persisted wholesale replacement of undealt.
func (m *Manager) resetSlotLocked(ctx context.Context, name string, sl *slot, undealt []cards.Card) {
	sl.shoe.ResetUndealt(undealt)
	sl.counter = counting.New(m.decks)
	sl.rounds = 0
	sl.desyncs = 0
	sl.lastCard = ""
	id, err := m.store.StartSession(ctx, name, m.decks)
	if err != nil {
		metricStoreErrors.Add(1)
		log.Error().Err(err).Str("shoe", name).Msg("start_session_failed")
		id = ""
	}
	sl.sessionID = id
}

// storeFailureLocked resyncs the shoe from the store after a failed write so
// memory reflects whatever was actually persisted.
func (m *Manager) storeFailureLocked(ctx context.Context, name, op string, err error) error {
	metricStoreErrors.Add(1)
	log.Error().Err(err).Str("shoe", name).Str("op", op).Msg("store_write_failed")
	prev := m.slots[name]
	fresh, loadErr := m.loadLocked(ctx, name)
	switch {
	case loadErr != nil:
		log.Error().Err(loadErr).Str("shoe", name).Msg("store_resync_failed")
		delete(m.slots, name)
		if name == m.active {
			m.active = ""
			m.lastGameID = ""
		}
	case prev != nil:
		fresh.sessionID = prev.sessionID
		fresh.rounds = prev.rounds
		fresh.desyncs = prev.desyncs
		m.slots[name] = fresh
	default:
		m.slots[name] = fresh
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

func (m *Manager) checkLocked(sh *shoe.Shoe) error {
	if err := sh.CheckInvariants(); err != nil {
		metricInvariantViolations.Add(1)
		log.Error().Err(err).Str("shoe", sh.Name).Msg("invariant_violation")
		return fmt.Errorf("%w: %w", ErrInvariantViolation, err)
	}
	return nil
}

// recentIDs remembers the last few finalized gameIds.
type recentIDs struct {
	ids  [recentRoundsKept]string
	next int
}

func (r *recentIDs) add(id string) {
	r.ids[r.next] = id
	r.next = (r.next + 1) % len(r.ids)
}

func (r *recentIDs) contains(id string) bool {
	for _, v := range r.ids {
		if v != "" && v == id {
			return true
		}
	}
	return false
}
