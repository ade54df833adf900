package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"shoe-tracker/internal/store"
	"shoe-tracker/internal/testutil"
)

func TestMemoryAdapter(t *testing.T) {
	runAdapterContract(t, store.NewMemory())
}

func TestSQLiteAdapter(t *testing.T) {
	runAdapterContract(t, testutil.OpenTestSQLite(t))
}

func TestPostgresAdapter(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()
	runAdapterContract(t, st)
}

func TestRedisAdapter(t *testing.T) {
	st, cleanup := testutil.OpenTestRedis(t)
	defer cleanup()
	runAdapterContract(t, st)
}

func TestSQLiteReopenKeepsState(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/tracker.db"
	st, err := store.NewSQLite(ctx, path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := st.EnsureRow(ctx, "Shoe 1"); err != nil {
		t.Fatalf("ensure row: %v", err)
	}
	if err := st.ReplaceUndealt(ctx, "Shoe 1", []string{"AS", "KD"}); err != nil {
		t.Fatalf("replace undealt: %v", err)
	}
	st.Close()

	st, err = store.NewSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen sqlite: %v", err)
	}
	defer st.Close()
	got, err := st.GetShoeState(ctx, "Shoe 1")
	if err != nil {
		t.Fatalf("get shoe state: %v", err)
	}
	if !reflect.DeepEqual(got.Undealt, []string{"AS", "KD"}) {
		t.Fatalf("undealt = %v", got.Undealt)
	}
}

func runAdapterContract(t *testing.T, a store.Adapter) {
	t.Helper()
	t.Run("piles", func(t *testing.T) { checkPiles(t, a) })
	t.Run("atomic", func(t *testing.T) { checkAtomic(t, a) })
	t.Run("rounds", func(t *testing.T) { checkRounds(t, a) })
	t.Run("sessions", func(t *testing.T) { checkSessions(t, a) })
}

func mustState(t *testing.T, a store.Adapter, name string) *store.ShoeState {
	t.Helper()
	st, err := a.GetShoeState(context.Background(), name)
	if err != nil {
		t.Fatalf("get shoe state %q: %v", name, err)
	}
	return st
}

func equalCards(t *testing.T, field string, got, want []string) {
	t.Helper()
	if len(got) == 0 && len(want) == 0 {
		return
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("%s = %v, want %v", field, got, want)
	}
}

func checkPiles(t *testing.T, a store.Adapter) {
	ctx := context.Background()
	if err := a.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if _, err := a.GetShoeState(ctx, "Shoe 1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("missing shoe err = %v, want ErrNotFound", err)
	}
	if err := a.EnsureRow(ctx, "Shoe 1"); err != nil {
		t.Fatalf("ensure row: %v", err)
	}
	if err := a.EnsureRow(ctx, "Shoe 1"); err != nil {
		t.Fatalf("ensure row twice: %v", err)
	}
	st := mustState(t, a, "Shoe 1")
	equalCards(t, "undealt", st.Undealt, nil)

	if err := a.ReplaceUndealt(ctx, "Shoe 1", []string{"TH", "7S", "9D", "KC"}); err != nil {
		t.Fatalf("replace undealt: %v", err)
	}
	if err := a.UpdateCurrentDealt(ctx, "Shoe 1", []string{"7S", "9D"}); err != nil {
		t.Fatalf("update current: %v", err)
	}
	if err := a.AppendDealt(ctx, "Shoe 1", []string{"2H"}); err != nil {
		t.Fatalf("append dealt: %v", err)
	}
	if err := a.AppendDealt(ctx, "Shoe 1", []string{"3H", "4H"}); err != nil {
		t.Fatalf("append dealt: %v", err)
	}
	if err := a.PrependDiscarded(ctx, "Shoe 1", []string{"5C", "6C"}); err != nil {
		t.Fatalf("prepend discarded: %v", err)
	}
	if err := a.PrependDiscarded(ctx, "Shoe 1", []string{"TH", "**", "7S"}); err != nil {
		t.Fatalf("prepend discarded: %v", err)
	}
	if err := a.SetNextShuffleStack(ctx, "Shoe 1", []string{"AS"}); err != nil {
		t.Fatalf("set next stack: %v", err)
	}

	st = mustState(t, a, "Shoe 1")
	equalCards(t, "undealt", st.Undealt, []string{"TH", "7S", "9D", "KC"})
	equalCards(t, "current", st.Current, []string{"7S", "9D"})
	equalCards(t, "dealt", st.Dealt, []string{"2H", "3H", "4H"})
	equalCards(t, "discarded", st.Discarded, []string{"TH", "**", "7S", "5C", "6C"})
	equalCards(t, "next", st.NextStack, []string{"AS"})

	if err := a.SetDiscarded(ctx, "Shoe 1", []string{"QS"}); err != nil {
		t.Fatalf("set discarded: %v", err)
	}
	if err := a.UpdateCurrentDealt(ctx, "Shoe 1", nil); err != nil {
		t.Fatalf("clear current: %v", err)
	}
	st = mustState(t, a, "Shoe 1")
	equalCards(t, "discarded", st.Discarded, []string{"QS"})
	equalCards(t, "current", st.Current, nil)

	if err := store.ResetShoe(ctx, a, "Shoe 1", []string{"2S", "3S"}); err != nil {
		t.Fatalf("reset shoe: %v", err)
	}
	st = mustState(t, a, "Shoe 1")
	equalCards(t, "undealt", st.Undealt, []string{"2S", "3S"})
	equalCards(t, "dealt", st.Dealt, nil)
	equalCards(t, "discarded", st.Discarded, nil)
	equalCards(t, "next", st.NextStack, nil)
}

func checkAtomic(t *testing.T, a store.Adapter) {
	ctx := context.Background()
	if err := a.EnsureRow(ctx, "Shoe 2"); err != nil {
		t.Fatalf("ensure row: %v", err)
	}
	if err := a.ReplaceUndealt(ctx, "Shoe 2", []string{"AH", "KH"}); err != nil {
		t.Fatalf("replace undealt: %v", err)
	}

	boom := errors.New("boom")
	err := a.Atomic(ctx, func(w store.ShoeWriter) error {
		if err := w.ReplaceUndealt(ctx, "Shoe 2", []string{"KH"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("atomic err = %v, want boom", err)
	}
	equalCards(t, "undealt", mustState(t, a, "Shoe 2").Undealt, []string{"AH", "KH"})

	err = a.Atomic(ctx, func(w store.ShoeWriter) error {
		if err := w.ReplaceUndealt(ctx, "Shoe 2", []string{"KH"}); err != nil {
			return err
		}
		if err := w.AppendDealt(ctx, "Shoe 2", []string{"AH"}); err != nil {
			return err
		}
		return w.PrependDiscarded(ctx, "Shoe 2", []string{"AH"})
	})
	if err != nil {
		t.Fatalf("atomic commit: %v", err)
	}
	st := mustState(t, a, "Shoe 2")
	equalCards(t, "undealt", st.Undealt, []string{"KH"})
	equalCards(t, "dealt", st.Dealt, []string{"AH"})
	equalCards(t, "discarded", st.Discarded, []string{"AH"})
}

func checkRounds(t *testing.T, a store.Adapter) {
	ctx := context.Background()
	if _, err := a.GetRound(ctx, "Shoe 1", "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("missing round err = %v, want ErrNotFound", err)
	}
	base := time.Now().UTC().Truncate(time.Millisecond)
	dealer := json.RawMessage(`{"cards":[{"value":"TH","t":5}]}`)
	seats := json.RawMessage(`{"0":{"cards":[{"value":"7S","t":1}]}}`)
	if err := a.UpsertRound(ctx, "Shoe 1", "G1", dealer, seats, base); err != nil {
		t.Fatalf("upsert round: %v", err)
	}
	if err := a.UpsertRound(ctx, "Shoe 1", "G2", dealer, seats, base.Add(time.Second)); err != nil {
		t.Fatalf("upsert round: %v", err)
	}
	updated := json.RawMessage(`{"cards":[{"value":"TH","t":5},{"value":"6D","t":6}]}`)
	if err := a.UpsertRound(ctx, "Shoe 1", "G1", updated, seats, base.Add(2*time.Second)); err != nil {
		t.Fatalf("upsert round again: %v", err)
	}

	r, err := a.GetRound(ctx, "Shoe 1", "G1")
	if err != nil {
		t.Fatalf("get round: %v", err)
	}
	var got, want any
	_ = json.Unmarshal(r.Dealer, &got)
	_ = json.Unmarshal(updated, &want)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("dealer = %s, want %s", r.Dealer, updated)
	}
	if !r.UpdatedAt.Equal(base.Add(2 * time.Second)) {
		t.Fatalf("updated_at = %v, want %v", r.UpdatedAt, base.Add(2*time.Second))
	}

	list, err := a.ListRounds(ctx, "Shoe 1", 10)
	if err != nil {
		t.Fatalf("list rounds: %v", err)
	}
	if len(list) != 2 || list[0].GameID != "G1" || list[1].GameID != "G2" {
		t.Fatalf("unexpected round order: %+v", list)
	}
	list, err = a.ListRounds(ctx, "Shoe 1", 1)
	if err != nil || len(list) != 1 {
		t.Fatalf("limited list = %+v, err %v", list, err)
	}
	if list, _ := a.ListRounds(ctx, "Shoe 2", 10); len(list) != 0 {
		t.Fatalf("other shoe rounds = %+v", list)
	}
}

func checkSessions(t *testing.T, a store.Adapter) {
	ctx := context.Background()
	id, err := a.StartSession(ctx, "Shoe 1", 8)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	sess, err := a.GetSession(ctx, id)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.Status != store.SessionActive || sess.Decks != 8 || sess.EndedAt != nil {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if err := a.EndSession(ctx, id, 12, 64); err != nil {
		t.Fatalf("end session: %v", err)
	}
	sess, err = a.GetSession(ctx, id)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.Status != store.SessionCompleted || sess.Rounds != 12 || sess.CardsDealt != 64 || sess.EndedAt == nil {
		t.Fatalf("unexpected ended session: %+v", sess)
	}
	if err := a.EndSession(ctx, "nope", 0, 0); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("end missing session err = %v, want ErrNotFound", err)
	}
	if _, err := a.GetSession(ctx, "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("get missing session err = %v, want ErrNotFound", err)
	}
}
