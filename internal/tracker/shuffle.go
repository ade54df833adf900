package tracker

import (
	"context"
	"fmt"
	"time"

	"shoe-tracker/internal/cards"
	"shoe-tracker/internal/shoe"
	"shoe-tracker/internal/shuffle"
	"shoe-tracker/internal/store"

	"github.com/rs/zerolog/log"
)

// EndResult reports what EndCurrentAndPrepareOther did. Busy means a shuffle
// was already running and nothing changed.
type EndResult struct {
	Busy bool `json:"busy"`
	// Ended is the shoe whose next shuffle stack was computed.
	Ended string `json:"ended,omitempty"`
	// Prepared is the other shoe, either freshly installed or being shuffled.
	Prepared string `json:"prepared,omitempty"`
	// Fresh is set when Prepared had no stored stack and got a random shoe.
	Fresh bool `json:"fresh"`
	// ShuffleStarted is set when a background shuffle of Prepared was launched.
	ShuffleStarted bool `json:"shuffle_started"`
}

// EndCurrentAndPrepareOther closes the active shoe and readies the other one.
// The active shoe's next shuffle stack becomes reverse(undealt ++ discarded).
// The other shoe is shuffled from its own stored stack in the background, or
// replaced by a fresh random shoe when it has none. Observations keep flowing
// to the active shoe while the worker runs.
func (m *Manager) EndCurrentAndPrepareOther(ctx context.Context, p shuffle.Params) (EndResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shuffling != "" {
		metricShuffleBusy.Add(1)
		log.Warn().Str("shoe", m.shuffling).Msg("shuffle_busy")
		return EndResult{Busy: true, Prepared: m.shuffling}, nil
	}
	if m.active == "" {
		return EndResult{}, ErrNoActiveShoe
	}
	if err := m.finalizePendingLocked(ctx); err != nil {
		return EndResult{}, err
	}

	a := m.active
	sa := m.slots[a]
	stack := m.reconcileLocked(a, "next_stack", sa.shoe.ShuffleStack())
	if err := m.store.SetNextShuffleStack(ctx, a, stack.Strings()); err != nil {
		return EndResult{}, m.storeFailureLocked(ctx, a, "set_next_stack", err)
	}
	sa.shoe.NextShuffleStack = stack
	m.endSessionLocked(ctx, a, sa)

	b := shoe.Other(a)
	sb, err := m.slotLocked(ctx, b)
	if err != nil {
		return EndResult{}, err
	}
	res := EndResult{Ended: a, Prepared: b}
	if sb.shoe.NextShuffleStack.Len() == 0 {
		if err := m.installFreshLocked(ctx, b, sb); err != nil {
			return EndResult{}, err
		}
		res.Fresh = true
		log.Info().Str("ended", a).Str("prepared", b).Int("next_stack", stack.Len()).Msg("shoe_ended")
		return res, m.checkLocked(sb.shoe)
	}

	input := m.reconcileLocked(b, "shuffle_input", sb.shoe.NextShuffleStack.Clone())
	done := make(chan struct{})
	m.shuffling = b
	m.shuffleDone = done
	m.lastShuffleErr = nil
	go m.runShuffle(context.WithoutCancel(ctx), b, input, p, done)

	res.ShuffleStarted = true
	log.Info().Str("ended", a).Str("prepared", b).Int("next_stack", stack.Len()).
		Int("shuffle_input", input.Len()).Msg("shoe_ended")
	return res, nil
}

// reconcileLocked brings a shuffle stack back to a full shoe. Stacks drift
// when rounds were finalized without their discard block or after the shoe
// ran out of undealt cards.
func (m *Manager) reconcileLocked(name, stage string, stack cards.Pile) cards.Pile {
	out, added, removed := shoe.Reconcile(stack, m.decks)
	if added > 0 || removed > 0 {
		metricStackReconciled.Add(1)
		log.Warn().Str("shoe", name).Str("stage", stage).Int("cards", stack.Len()).
			Int("added", added).Int("removed", removed).Msg("shuffle_stack_reconciled")
	}
	return out
}

func (m *Manager) endSessionLocked(ctx context.Context, name string, sl *slot) {
	if sl.sessionID == "" {
		return
	}
	if err := m.store.EndSession(ctx, sl.sessionID, sl.rounds, sl.shoe.Dealt.Len()); err != nil {
		metricStoreErrors.Add(1)
		log.Error().Err(err).Str("shoe", name).Str("session_id", sl.sessionID).Msg("end_session_failed")
		return
	}
	sl.sessionID = ""
}

// runShuffle is the single background worker. While it runs, name can be
// neither activated nor ended, so the shuffle and its store write happen
// without the manager lock; only the in-memory swap takes it.
func (m *Manager) runShuffle(ctx context.Context, name string, input cards.Pile, p shuffle.Params, done chan struct{}) {
	start := time.Now()
	out := shuffle.Run([]cards.Card(input), p)
	writeErr := store.ResetShoe(ctx, m.store, name, cards.Pile(out).Strings())

	m.mu.Lock()
	defer m.mu.Unlock()
	defer func() {
		m.shuffling = ""
		m.shuffleDone = nil
		close(done)
	}()
	metricShuffleRuns.Add(1)

	if writeErr != nil {
		m.lastShuffleErr = m.storeFailureLocked(ctx, name, "shuffle_swap", writeErr)
		return
	}
	sl, ok := m.slots[name]
	if !ok {
		loaded, err := m.loadLocked(ctx, name)
		if err != nil {
			m.lastShuffleErr = err
			log.Error().Err(err).Str("shoe", name).Msg("shuffle_reload_failed")
			return
		}
		sl = loaded
		m.slots[name] = sl
	}
	m.resetSlotLocked(ctx, name, sl, out)
	if err := m.checkLocked(sl.shoe); err != nil {
		m.lastShuffleErr = err
		return
	}
	log.Info().Str("shoe", name).Int("cards", len(out)).Int("iterations", p.Normalize().Iterations).
		Int("chunks", p.Normalize().Chunks).Dur("elapsed", time.Since(start)).Msg("shuffle_complete")
}

// ShuffleInProgress is a non-blocking status read.
func (m *Manager) ShuffleInProgress() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shuffling != ""
}

// WaitForShuffle blocks until the running shuffle, if any, has been swapped in
// and returns its error.
func (m *Manager) WaitForShuffle(ctx context.Context) error {
	m.mu.Lock()
	done := m.shuffleDone
	m.mu.Unlock()
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return fmt.Errorf("wait for shuffle: %w", ctx.Err())
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastShuffleErr
}
