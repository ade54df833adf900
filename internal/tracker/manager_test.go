package tracker

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"sync"
	"testing"
	"time"

	"shoe-tracker/internal/cards"
	"shoe-tracker/internal/round"
	"shoe-tracker/internal/shoe"
	"shoe-tracker/internal/shuffle"
	"shoe-tracker/internal/store"
	"shoe-tracker/internal/testutil"
)

// faultyStore wraps an adapter so tests can fail or hold atomic writes.
type faultyStore struct {
	store.Adapter

	mu   sync.Mutex
	fail error
	gate chan struct{}
}

func (f *faultyStore) Atomic(ctx context.Context, fn func(w store.ShoeWriter) error) error {
	f.mu.Lock()
	fail, gate := f.fail, f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if fail != nil {
		return fail
	}
	return f.Adapter.Atomic(ctx, fn)
}

func (f *faultyStore) setFail(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

func (f *faultyStore) setGate(ch chan struct{}) {
	f.mu.Lock()
	f.gate = ch
	f.mu.Unlock()
}

// deckStartingWith returns one deck whose first cards are top, followed by the
// rest of the deck in rank-major order.
func deckStartingWith(top ...string) []string {
	used := map[string]bool{}
	out := append([]string{}, top...)
	for _, v := range top {
		used[v] = true
	}
	for _, c := range cards.NewDeck() {
		if !used[c.String()] {
			out = append(out, c.String())
		}
	}
	return out
}

func seedShoe(t *testing.T, st store.Adapter, name string, undealt []string) {
	t.Helper()
	ctx := context.Background()
	if err := st.EnsureRow(ctx, name); err != nil {
		t.Fatalf("ensure row: %v", err)
	}
	if err := st.ReplaceUndealt(ctx, name, undealt); err != nil {
		t.Fatalf("replace undealt: %v", err)
	}
}

func newTestManager(t *testing.T, st store.Adapter, decks int) *Manager {
	t.Helper()
	return New(st, Options{Decks: decks, Rand: rand.New(rand.NewSource(1))})
}

func decode(t *testing.T, raw string) round.Snapshot {
	t.Helper()
	s, err := round.Decode([]byte(raw))
	if err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return s
}

const snapG1 = `{
	"gameId": "G1",
	"dealer": {"cards": [{"value": "TH", "t": 5}, {"value": "**", "t": 6}]},
	"seats": {"0": {"first": {"cards": [{"value": "7S", "t": 1}, {"value": "9D", "t": 3}]}}}
}`

const snapG2 = `{"gameId": "G2"}`

func state(t *testing.T, st store.Adapter, name string) *store.ShoeState {
	t.Helper()
	s, err := st.GetShoeState(context.Background(), name)
	if err != nil {
		t.Fatalf("get shoe state: %v", err)
	}
	return s
}

func wantCards(t *testing.T, field string, got, want []string) {
	t.Helper()
	if len(got) == 0 && len(want) == 0 {
		return
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("%s = %v, want %v", field, got, want)
	}
}

func assertConserved(t *testing.T, m *Manager, name string) {
	t.Helper()
	v, err := m.Shoe(context.Background(), name)
	if err != nil {
		t.Fatalf("shoe view: %v", err)
	}
	if v.Undealt+v.Dealt != v.Size {
		t.Fatalf("undealt %d + dealt %d != size %d", v.Undealt, v.Dealt, v.Size)
	}
}

func TestMinimalDealFinalizesOnNextGameID(t *testing.T) {
	runMinimalDeal(t, store.NewMemory())
}

func TestMinimalDealOnSQLite(t *testing.T) {
	runMinimalDeal(t, testutil.OpenTestSQLite(t))
}

func TestMinimalDealOnPostgres(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()
	runMinimalDeal(t, st)
}

func runMinimalDeal(t *testing.T, st store.Adapter) {
	t.Helper()
	ctx := context.Background()
	seedShoe(t, st, shoe.NameOne, deckStartingWith("TH", "7S", "9D", "KC", "2H"))
	m := newTestManager(t, st, 1)
	if err := m.SetActive(ctx, shoe.NameOne); err != nil {
		t.Fatalf("set active: %v", err)
	}

	if err := m.Observe(ctx, decode(t, snapG1)); err != nil {
		t.Fatalf("observe G1: %v", err)
	}
	s := state(t, st, shoe.NameOne)
	wantCards(t, "current", s.Current, []string{"7S", "9D", "TH"})
	if got := m.Status().LastDealtCard; got != "TH" {
		t.Fatalf("last dealt card = %q, want TH", got)
	}

	if err := m.Observe(ctx, decode(t, snapG2)); err != nil {
		t.Fatalf("observe G2: %v", err)
	}
	s = state(t, st, shoe.NameOne)
	wantCards(t, "current", s.Current, nil)
	wantCards(t, "dealt", s.Dealt, []string{"7S", "9D", "TH"})
	wantCards(t, "undealt head", s.Undealt[:2], []string{"KC", "2H"})
	wantCards(t, "discarded", s.Discarded, []string{"TH", "**", "7S", "9D"})
	if len(s.Undealt) != 49 {
		t.Fatalf("undealt len = %d, want 49", len(s.Undealt))
	}
	assertConserved(t, m, shoe.NameOne)

	status := m.Status()
	if status.Counts == nil || status.Counts.HiLoRunning != -1 || status.Counts.CardsSeen != 3 {
		t.Fatalf("unexpected counts: %+v", status.Counts)
	}
	if status.GameID != "G2" {
		t.Fatalf("game id = %q, want G2", status.GameID)
	}
}

func TestDuplicateSnapshotIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	seedShoe(t, st, shoe.NameOne, deckStartingWith("TH", "7S", "9D", "KC", "2H"))
	m := newTestManager(t, st, 1)
	if err := m.SetActive(ctx, shoe.NameOne); err != nil {
		t.Fatalf("set active: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := m.Observe(ctx, decode(t, snapG1)); err != nil {
			t.Fatalf("observe G1 #%d: %v", i, err)
		}
		wantCards(t, "current", state(t, st, shoe.NameOne).Current, []string{"7S", "9D", "TH"})
	}
	if err := m.Observe(ctx, decode(t, snapG2)); err != nil {
		t.Fatalf("observe G2: %v", err)
	}
	s := state(t, st, shoe.NameOne)
	wantCards(t, "dealt", s.Dealt, []string{"7S", "9D", "TH"})
	wantCards(t, "discarded", s.Discarded, []string{"TH", "**", "7S", "9D"})
	wantCards(t, "undealt head", s.Undealt[:2], []string{"KC", "2H"})
	if got := m.Status().Counts.CardsSeen; got != 3 {
		t.Fatalf("cards seen = %d, want 3", got)
	}
}

func TestDesyncPopsFrontAndCounts(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	seedShoe(t, st, shoe.NameOne, deckStartingWith("AC", "AD", "AH", "AS", "5C", "6C"))
	m := newTestManager(t, st, 1)
	if err := m.SetActive(ctx, shoe.NameOne); err != nil {
		t.Fatalf("set active: %v", err)
	}
	aces := round.Snapshot{
		GameID: "G1",
		Seats: map[string]round.Hand{
			"0": {Cards: []round.Entry{{Value: "AC", T: 1}, {Value: "AD", T: 2}, {Value: "AH", T: 3}, {Value: "AS", T: 4}}},
		},
	}
	// A fifth ace in a single deck has neither an exact nor a rank match.
	fifth := round.Snapshot{
		GameID: "G2",
		Seats:  map[string]round.Hand{"0": {Cards: []round.Entry{{Value: "AC", T: 1}}}},
	}
	for _, snap := range []round.Snapshot{aces, fifth} {
		if err := m.Observe(ctx, snap); err != nil {
			t.Fatalf("observe %s: %v", snap.GameID, err)
		}
	}
	if err := m.FinalizePending(ctx); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	s := state(t, st, shoe.NameOne)
	wantCards(t, "dealt", s.Dealt, []string{"AC", "AD", "AH", "AS", "AC"})
	wantCards(t, "undealt head", s.Undealt[:1], []string{"6C"})

	v, err := m.Shoe(ctx, shoe.NameOne)
	if err != nil {
		t.Fatalf("shoe view: %v", err)
	}
	if v.Desyncs != 1 || v.Rounds != 2 {
		t.Fatalf("desyncs = %d rounds = %d, want 1 and 2", v.Desyncs, v.Rounds)
	}
	assertConserved(t, m, shoe.NameOne)
}

func TestRankSwapKeepsConservation(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	seedShoe(t, st, shoe.NameOne, deckStartingWith("KH", "2C", "3C", "KD", "4C"))
	m := newTestManager(t, st, 1)
	if err := m.SetActive(ctx, shoe.NameOne); err != nil {
		t.Fatalf("set active: %v", err)
	}
	// The second KH is a misread suit: the first king in undealt is swapped out.
	for _, id := range []string{"G1", "G2"} {
		snap := round.Snapshot{GameID: id, Dealer: round.Hand{Cards: []round.Entry{{Value: "KH", T: 1}}}}
		if err := m.Observe(ctx, snap); err != nil {
			t.Fatalf("observe %s: %v", id, err)
		}
	}
	if err := m.FinalizePending(ctx); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	s := state(t, st, shoe.NameOne)
	wantCards(t, "undealt head", s.Undealt[:3], []string{"3C", "2C", "4C"})
	wantCards(t, "dealt", s.Dealt, []string{"KH", "KH"})
	wantCards(t, "discarded", s.Discarded, []string{"KH", "KH"})
	assertConserved(t, m, shoe.NameOne)
}

func TestDealingPastTheLastCardKeepsTracking(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	deck := cards.Pile(cards.NewDeck()).Strings()
	seedShoe(t, st, shoe.NameOne, deck)
	m := newTestManager(t, st, 1)
	if err := m.SetActive(ctx, shoe.NameOne); err != nil {
		t.Fatalf("set active: %v", err)
	}

	all := make([]round.Entry, 0, len(deck))
	for i, v := range deck {
		all = append(all, round.Entry{Value: v, T: int64(i + 1)})
	}
	snaps := []round.Snapshot{
		{GameID: "G1", Seats: map[string]round.Hand{"0": {Cards: all}}},
		{GameID: "G2", Seats: map[string]round.Hand{"0": {Cards: []round.Entry{{Value: "AS", T: 1}}}}},
		{GameID: "G3", Seats: map[string]round.Hand{"0": {Cards: []round.Entry{{Value: "2H", T: 1}}}}},
		{GameID: "G4"},
	}
	for _, snap := range snaps {
		if err := m.Observe(ctx, snap); err != nil {
			t.Fatalf("observe %s: %v", snap.GameID, err)
		}
	}
	s := state(t, st, shoe.NameOne)
	if len(s.Undealt) != 0 || len(s.Dealt) != len(deck) {
		t.Fatalf("undealt=%d dealt=%d, want 0 and %d", len(s.Undealt), len(s.Dealt), len(deck))
	}
	v, err := m.Shoe(ctx, shoe.NameOne)
	if err != nil {
		t.Fatalf("shoe view: %v", err)
	}
	if v.Desyncs != 2 || v.Rounds != 3 {
		t.Fatalf("desyncs = %d rounds = %d, want 2 and 3", v.Desyncs, v.Rounds)
	}
	assertConserved(t, m, shoe.NameOne)

	seed := int64(1)
	if _, err := m.EndCurrentAndPrepareOther(ctx, shuffle.Params{Iterations: 1, Chunks: 2, Seed: &seed}); err != nil {
		t.Fatalf("end shoe: %v", err)
	}
	if n := len(state(t, st, shoe.NameOne).NextStack); n != len(deck) {
		t.Fatalf("next stack holds %d cards, want %d", n, len(deck))
	}
}

func TestSetActiveRejectsMiscountedShoe(t *testing.T) {
	ctx := context.Background()

	truncated := store.NewMemory()
	seedShoe(t, truncated, shoe.NameOne, []string{"AC", "2C", "3C"})
	m := newTestManager(t, truncated, 8)
	if err := m.SetActive(ctx, shoe.NameOne); !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("truncated shoe err = %v, want ErrInvariantViolation", err)
	}
	if got := m.Status().ActiveShoe; got != "" {
		t.Fatalf("truncated shoe became active: %q", got)
	}

	overfull := store.NewMemory()
	seedShoe(t, overfull, shoe.NameOne, cards.Pile(cards.NewDeck()).Strings())
	if err := overfull.SetDealt(ctx, shoe.NameOne, []string{"AS"}); err != nil {
		t.Fatalf("seed dealt: %v", err)
	}
	m = newTestManager(t, overfull, 1)
	if err := m.SetActive(ctx, shoe.NameOne); !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("over-full shoe err = %v, want ErrInvariantViolation", err)
	}
}

func TestObserveDropsMissingGameIDAndStaleRounds(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	seedShoe(t, st, shoe.NameOne, deckStartingWith("TH", "7S", "9D"))
	m := newTestManager(t, st, 1)

	if err := m.Observe(ctx, decode(t, snapG1)); !errors.Is(err, ErrNoActiveShoe) {
		t.Fatalf("observe without active shoe err = %v", err)
	}
	if err := m.SetActive(ctx, shoe.NameOne); err != nil {
		t.Fatalf("set active: %v", err)
	}
	if err := m.Observe(ctx, round.Snapshot{}); err != nil {
		t.Fatalf("observe without game id: %v", err)
	}
	if got := m.Status().GameID; got != "" {
		t.Fatalf("game id = %q after dropped snapshot", got)
	}

	if err := m.Observe(ctx, decode(t, snapG1)); err != nil {
		t.Fatalf("observe G1: %v", err)
	}
	if err := m.Observe(ctx, decode(t, snapG2)); err != nil {
		t.Fatalf("observe G2: %v", err)
	}
	// A late G1 snapshot must not close G2 or reopen G1.
	if err := m.Observe(ctx, decode(t, snapG1)); err != nil {
		t.Fatalf("late G1: %v", err)
	}
	if got := m.Status().GameID; got != "G2" {
		t.Fatalf("game id = %q, want G2", got)
	}
	wantCards(t, "dealt", state(t, st, shoe.NameOne).Dealt, []string{"7S", "9D", "TH"})
}

func TestSetActiveValidatesAndFinalizesPending(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	seedShoe(t, st, shoe.NameOne, deckStartingWith("TH", "7S", "9D"))
	m := newTestManager(t, st, 1)

	if err := m.SetActive(ctx, "Shoe 3"); !errors.Is(err, ErrUnknownShoe) {
		t.Fatalf("unknown shoe err = %v", err)
	}
	if err := m.SetActive(ctx, shoe.NameOne); err != nil {
		t.Fatalf("set active: %v", err)
	}
	if err := m.Observe(ctx, decode(t, snapG1)); err != nil {
		t.Fatalf("observe G1: %v", err)
	}
	if err := m.SetActive(ctx, shoe.NameTwo); err != nil {
		t.Fatalf("switch active: %v", err)
	}
	wantCards(t, "shoe 1 dealt", state(t, st, shoe.NameOne).Dealt, []string{"7S", "9D", "TH"})

	v, err := m.Shoe(ctx, shoe.NameTwo)
	if err != nil {
		t.Fatalf("shoe view: %v", err)
	}
	if !v.Active || v.Undealt != 52 || v.SessionID == "" {
		t.Fatalf("expected fresh active shoe 2, got %+v", v)
	}
}

func TestStoreFailureResyncsAndRetries(t *testing.T) {
	ctx := context.Background()
	fs := &faultyStore{Adapter: store.NewMemory()}
	seedShoe(t, fs, shoe.NameOne, deckStartingWith("TH", "7S", "9D", "KC"))
	m := newTestManager(t, fs, 1)
	if err := m.SetActive(ctx, shoe.NameOne); err != nil {
		t.Fatalf("set active: %v", err)
	}
	if err := m.Observe(ctx, decode(t, snapG1)); err != nil {
		t.Fatalf("observe G1: %v", err)
	}

	fs.setFail(errors.New("disk gone"))
	err := m.Observe(ctx, decode(t, snapG2))
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("observe G2 err = %v, want ErrStoreUnavailable", err)
	}
	v, err := m.Shoe(ctx, shoe.NameOne)
	if err != nil {
		t.Fatalf("shoe view: %v", err)
	}
	if v.Dealt != 0 || len(v.CurrentRound) != 3 {
		t.Fatalf("memory ran ahead of store: %+v", v)
	}

	fs.setFail(nil)
	if err := m.Observe(ctx, decode(t, snapG2)); err != nil {
		t.Fatalf("retry G2: %v", err)
	}
	s := state(t, fs, shoe.NameOne)
	wantCards(t, "dealt", s.Dealt, []string{"7S", "9D", "TH"})
	wantCards(t, "undealt head", s.Undealt[:1], []string{"KC"})
	assertConserved(t, m, shoe.NameOne)
}

func TestManagerReloadsFromStore(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	seedShoe(t, st, shoe.NameOne, deckStartingWith("TH", "7S", "9D"))
	m := newTestManager(t, st, 1)
	if err := m.SetActive(ctx, shoe.NameOne); err != nil {
		t.Fatalf("set active: %v", err)
	}
	for _, raw := range []string{snapG1, snapG2} {
		if err := m.Observe(ctx, decode(t, raw)); err != nil {
			t.Fatalf("observe: %v", err)
		}
	}

	restarted := newTestManager(t, st, 1)
	if err := restarted.SetActive(ctx, shoe.NameOne); err != nil {
		t.Fatalf("set active after restart: %v", err)
	}
	v, err := restarted.Shoe(ctx, shoe.NameOne)
	if err != nil {
		t.Fatalf("shoe view: %v", err)
	}
	if v.Size != 52 || v.Dealt != 3 || v.Counts.CardsSeen != 3 || v.Counts.HiLoRunning != -1 {
		t.Fatalf("unexpected restored view: %+v", v)
	}
	if v.Discarded != 4 {
		t.Fatalf("discarded = %d, want 4", v.Discarded)
	}
}

func playRounds(t *testing.T, m *Manager, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		snap := round.Snapshot{
			GameID: "R" + string(rune('A'+i)),
			Dealer: round.Hand{Cards: []round.Entry{{Value: "TH", T: 3}, {Value: "**", T: 4}}},
			Seats: map[string]round.Hand{
				"0": {Cards: []round.Entry{{Value: "5D", T: 1}, {Value: "6D", T: 2}}},
			},
		}
		if err := m.Observe(ctx, snap); err != nil {
			t.Fatalf("observe round %d: %v", i, err)
		}
	}
	if err := m.FinalizePending(ctx); err != nil {
		t.Fatalf("finalize: %v", err)
	}
}

func TestAlternatingShoes(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	m := newTestManager(t, st, 8)
	if err := m.SetActive(ctx, shoe.NameOne); err != nil {
		t.Fatalf("set active: %v", err)
	}
	playRounds(t, m, 3)

	before := state(t, st, shoe.NameOne)
	seed := int64(7)
	params := shuffle.Params{Iterations: 2, Chunks: 4, Seed: &seed}
	res, err := m.EndCurrentAndPrepareOther(ctx, params)
	if err != nil {
		t.Fatalf("end shoe: %v", err)
	}
	if res.Busy || !res.Fresh || res.ShuffleStarted || res.Ended != shoe.NameOne || res.Prepared != shoe.NameTwo {
		t.Fatalf("unexpected end result: %+v", res)
	}

	var wantStack []string
	for _, c := range before.Discarded {
		if c != cards.HiddenValue {
			wantStack = append(wantStack, c)
		}
	}
	wantStack = append(append([]string{}, before.Undealt...), wantStack...)
	for i, j := 0, len(wantStack)-1; i < j; i, j = i+1, j-1 {
		wantStack[i], wantStack[j] = wantStack[j], wantStack[i]
	}
	s1 := state(t, st, shoe.NameOne)
	wantCards(t, "shoe 1 next stack", s1.NextStack, wantStack)

	s2 := state(t, st, shoe.NameTwo)
	if len(s2.Undealt) != 8*52 || len(s2.Dealt)+len(s2.Current)+len(s2.Discarded)+len(s2.NextStack) != 0 {
		t.Fatalf("shoe 2 is not a fresh shoe: undealt=%d", len(s2.Undealt))
	}
	if m.ShuffleInProgress() {
		t.Fatal("fresh install must not start a shuffle")
	}

	// Switch to shoe 2 and end it: shoe 1 now shuffles from its stored stack.
	if err := m.SetActive(ctx, shoe.NameTwo); err != nil {
		t.Fatalf("activate shoe 2: %v", err)
	}
	res, err = m.EndCurrentAndPrepareOther(ctx, params)
	if err != nil {
		t.Fatalf("end shoe 2: %v", err)
	}
	if !res.ShuffleStarted || res.Prepared != shoe.NameOne {
		t.Fatalf("unexpected end result: %+v", res)
	}
	if err := m.WaitForShuffle(ctx); err != nil {
		t.Fatalf("wait for shuffle: %v", err)
	}
	stack, _ := cards.ParsePile(wantStack)
	want := cards.Pile(shuffle.Run([]cards.Card(stack), params)).Strings()
	s1 = state(t, st, shoe.NameOne)
	wantCards(t, "shuffled shoe 1", s1.Undealt, want)
	if len(s1.Dealt)+len(s1.Current)+len(s1.Discarded)+len(s1.NextStack) != 0 {
		t.Fatalf("shoe 1 piles not cleared: %+v", s1)
	}
	v, err := m.Shoe(ctx, shoe.NameOne)
	if err != nil {
		t.Fatalf("shoe view: %v", err)
	}
	if v.Counts.CardsSeen != 0 || v.Size != len(want) {
		t.Fatalf("counter not reset after shuffle: %+v", v)
	}
}

func TestEndShoeRejectsWhileShuffling(t *testing.T) {
	ctx := context.Background()
	fs := &faultyStore{Adapter: store.NewMemory()}
	seedShoe(t, fs, shoe.NameOne, deckStartingWith("TH", "7S", "9D"))
	seedShoe(t, fs, shoe.NameTwo, nil)
	if err := fs.SetNextShuffleStack(ctx, shoe.NameTwo, deckStartingWith("AS")); err != nil {
		t.Fatalf("seed next stack: %v", err)
	}
	m := newTestManager(t, fs, 1)
	if err := m.SetActive(ctx, shoe.NameOne); err != nil {
		t.Fatalf("set active: %v", err)
	}

	gate := make(chan struct{})
	fs.setGate(gate)
	res, err := m.EndCurrentAndPrepareOther(ctx, shuffle.DefaultParams())
	if err != nil || !res.ShuffleStarted {
		t.Fatalf("end shoe: %+v %v", res, err)
	}
	if !m.ShuffleInProgress() {
		t.Fatal("expected shuffle in progress")
	}

	before := state(t, fs, shoe.NameOne)
	res, err = m.EndCurrentAndPrepareOther(ctx, shuffle.DefaultParams())
	if err != nil || !res.Busy {
		t.Fatalf("second end: %+v %v, want busy", res, err)
	}
	wantCards(t, "next stack untouched", state(t, fs, shoe.NameOne).NextStack, before.NextStack)

	if err := m.SetActive(ctx, shoe.NameTwo); !errors.Is(err, ErrShoeShuffling) {
		t.Fatalf("activate shuffling shoe err = %v", err)
	}
	// Observations keep flowing to the active shoe.
	if err := m.Observe(ctx, decode(t, snapG1)); err != nil {
		t.Fatalf("observe during shuffle: %v", err)
	}

	fs.setGate(nil)
	close(gate)
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := m.WaitForShuffle(waitCtx); err != nil {
		t.Fatalf("wait for shuffle: %v", err)
	}
	if m.ShuffleInProgress() {
		t.Fatal("shuffle still in progress")
	}
	if got := len(state(t, fs, shoe.NameTwo).Undealt); got != 52 {
		t.Fatalf("shoe 2 undealt = %d, want 52", got)
	}
}

func TestHiddenCardNeverEntersPhysicalPiles(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	seedShoe(t, st, shoe.NameOne, deckStartingWith("TH", "7S", "9D"))
	m := newTestManager(t, st, 1)
	if err := m.SetActive(ctx, shoe.NameOne); err != nil {
		t.Fatalf("set active: %v", err)
	}
	for _, raw := range []string{snapG1, snapG2} {
		if err := m.Observe(ctx, decode(t, raw)); err != nil {
			t.Fatalf("observe: %v", err)
		}
	}
	s := state(t, st, shoe.NameOne)
	for _, pile := range [][]string{s.Undealt, s.Dealt, s.Current} {
		for _, c := range pile {
			if c == cards.HiddenValue {
				t.Fatalf("hidden card in physical pile: %v", pile)
			}
		}
	}
}

func TestMapError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{round.ErrMalformedJSON, 400, "malformed_snapshot"},
		{round.ErrMissingGameID, 400, "missing_game_id"},
		{ErrUnknownShoe, 404, "unknown_shoe"},
		{ErrNoActiveShoe, 409, "no_active_shoe"},
		{ErrShoeShuffling, 409, "shoe_shuffling"},
		{errors.Join(ErrStoreUnavailable, errors.New("conn reset")), 503, "store_unavailable"},
		{ErrInvariantViolation, 500, "invariant_violation"},
		{errors.New("boom"), 500, "internal_error"},
	}
	for _, tc := range cases {
		status, code := MapError(tc.err)
		if status != tc.status || code != tc.code {
			t.Fatalf("MapError(%v) = %d %q, want %d %q", tc.err, status, code, tc.status, tc.code)
		}
	}
}
