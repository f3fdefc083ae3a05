package ledger

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sadopc/chorechart/internal/clock"
	"github.com/sadopc/chorechart/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewMemory()
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestLedger(t *testing.T) (*Ledger, *store.Store) {
	t.Helper()
	s := newTestStore(t)
	loc, _ := time.LoadLocation(clock.DefaultTimezone)
	cal := clock.Fixed(loc, time.Date(2024, 1, 17, 9, 0, 0, 0, loc))
	l := New(s, cal, nil)
	n := 0
	l.newID = func() string {
		n++
		return "r" + string(rune('0'+n))
	}
	return l, s
}

func balance(t *testing.T, l *Ledger, childID string) int {
	t.Helper()
	b, err := l.Balance(childID)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

// ============================================================
// Book encoding
// ============================================================

func TestAccountJSONShape(t *testing.T) {
	book := Book{"1": {Tasks: map[string]int{"1": 2}, Redemption: -15}}
	data, err := json.Marshal(book)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"1":{"1":2,"redemption":-15}}`
	if string(data) != want {
		t.Fatalf("got %s, want %s", data, want)
	}

	var back Book
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.Count("1", "1") != 2 || back.Redemption("1") != -15 {
		t.Fatalf("unexpected decoded book: %+v", back["1"])
	}
	if _, ok := back["1"].Tasks[RedemptionKey]; ok {
		t.Fatal("redemption must not be decoded as a task")
	}
}

func TestAccountEntries(t *testing.T) {
	a := &Account{Tasks: map[string]int{"b": 1, "a": 3}, Redemption: -5}
	entries := a.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if tc, ok := entries[0].(TaskCompletion); !ok || tc.TaskID != "a" || tc.Count != 3 {
		t.Fatalf("unexpected first entry %#v", entries[0])
	}
	if rd, ok := entries[2].(RedemptionDeduction); !ok || rd.Amount != -5 {
		t.Fatalf("unexpected last entry %#v", entries[2])
	}
}

func TestLoadBookNull(t *testing.T) {
	s := newTestStore(t)
	s.Set(store.KeyCompletions, "null")
	book, err := LoadBook(s)
	if err != nil {
		t.Fatal(err)
	}
	if book == nil {
		t.Fatal("null record should load as an empty book")
	}
}

// ============================================================
// CalculatePoints
// ============================================================

func TestCalculatePoints(t *testing.T) {
	tasks := []store.Task{{ID: "1", Points: 10}, {ID: "2", Points: 5}}
	book := Book{
		"kid": {Tasks: map[string]int{"1": 2, "2": 1, "deleted": 4}, Redemption: -12},
	}

	if got := CalculatePoints("kid", book, tasks); got != 20+5-12 {
		t.Fatalf("CalculatePoints = %d, want 13", got)
	}
	if got := CalculatePoints("nobody", book, tasks); got != 0 {
		t.Fatalf("unknown child should have 0, got %d", got)
	}
}

// ============================================================
// Complete / remove
// ============================================================

func TestCompleteAndRemoveSequence(t *testing.T) {
	l, _ := newTestLedger(t)

	ops := []struct {
		complete bool
		want     int
	}{
		{true, 1}, {true, 2}, {false, 1}, {false, 0}, {false, 0}, {true, 1},
	}
	for i, op := range ops {
		var book Book
		var err error
		if op.complete {
			book, err = l.CompleteTask("1", "1")
		} else {
			book, err = l.RemoveCompletion("1", "1")
		}
		if err != nil {
			t.Fatalf("op %d: %v", i, err)
		}
		if got := book.Count("1", "1"); got != op.want {
			t.Fatalf("op %d: count = %d, want %d", i, got, op.want)
		}
		if got := balance(t, l, "1"); got != op.want*10 {
			t.Fatalf("op %d: balance = %d, want %d", i, got, op.want*10)
		}
	}
}

func TestRemoveDeletesEntryAtZero(t *testing.T) {
	l, _ := newTestLedger(t)
	l.CompleteTask("1", "2")
	book, _ := l.RemoveCompletion("1", "2")
	if _, ok := book["1"].Tasks["2"]; ok {
		t.Fatal("entry should be deleted when count reaches zero")
	}
}

func TestRemoveAbsentIsNoop(t *testing.T) {
	l, s := newTestLedger(t)
	ch, cancel := s.Subscribe()
	defer cancel()

	if _, err := l.RemoveCompletion("1", "1"); err != nil {
		t.Fatal(err)
	}
	select {
	case <-ch:
		t.Fatal("no-op undo should not notify")
	default:
	}
}

func TestCompleteHasNoDuplicateGuard(t *testing.T) {
	l, _ := newTestLedger(t)
	l.CompleteTask("1", "1")
	book, _ := l.CompleteTask("1", "1")
	if book.Count("1", "1") != 2 {
		t.Fatal("repeated completion should accumulate")
	}
}

// ============================================================
// Redemption
// ============================================================

func TestRedeemUnknownReward(t *testing.T) {
	l, s := newTestLedger(t)
	l.CompleteTask("1", "4")

	rec, err := l.RedeemReward("1", "missing")
	if !errors.Is(err, ErrUnknownReward) {
		t.Fatalf("expected ErrUnknownReward, got %v", err)
	}
	if rec != nil {
		t.Fatal("declined redemption should return nil")
	}
	log, _ := store.Redemptions(s)
	if len(log) != 0 {
		t.Fatal("declined redemption must not log")
	}
}

func TestRedeemInsufficient(t *testing.T) {
	l, s := newTestLedger(t)
	l.CompleteTask("1", "1") // 10 points

	before, _ := s.Get(store.KeyCompletions)
	rec, err := l.RedeemReward("1", "1") // dessert costs 30
	if !errors.Is(err, ErrInsufficientPoints) {
		t.Fatalf("expected ErrInsufficientPoints, got %v", err)
	}
	if rec != nil {
		t.Fatal("declined redemption should return nil")
	}
	after, _ := s.Get(store.KeyCompletions)
	if before != after {
		t.Fatal("declined redemption mutated the book")
	}
	if balance(t, l, "1") != 10 {
		t.Fatal("balance changed on declined redemption")
	}
}

func TestRedeemExactBalance(t *testing.T) {
	l, _ := newTestLedger(t)
	l.CompleteTask("1", "1")
	l.CompleteTask("1", "4") // 30 points

	rec, err := l.RedeemReward("1", "1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Cost != 30 || rec.RewardName != "Dessert" || rec.ChildID != "1" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if balance(t, l, "1") != 0 {
		t.Fatal("balance should be exactly zero")
	}
}

func TestRedeemScenario(t *testing.T) {
	l, s := newTestLedger(t)
	store.SaveRewards(s, []store.Reward{{ID: "r", Name: "Sticker", Cost: 15}})

	l.CompleteTask("kid", "1")
	l.CompleteTask("kid", "1")
	if got := balance(t, l, "kid"); got != 20 {
		t.Fatalf("balance = %d, want 20", got)
	}

	rec, err := l.RedeemReward("kid", "r")
	if err != nil {
		t.Fatal(err)
	}
	if got := balance(t, l, "kid"); got != 5 {
		t.Fatalf("balance after redeem = %d, want 5", got)
	}
	book, _ := l.Book()
	if book.Redemption("kid") != -15 {
		t.Fatalf("redemption accumulator = %d, want -15", book.Redemption("kid"))
	}
	log, _ := l.Redemptions("kid")
	if len(log) != 1 || log[0].ID != rec.ID {
		t.Fatalf("expected one log entry, got %+v", log)
	}
	if log[0].Date != "2024-01-17T17:00:00Z" {
		t.Fatalf("unexpected date %q", log[0].Date)
	}

	// Undo is not re-validated against past redemptions.
	book, _ = l.RemoveCompletion("kid", "1")
	if book.Count("kid", "1") != 1 {
		t.Fatal("count should drop to 1")
	}
	if got := balance(t, l, "kid"); got != -5 {
		t.Fatalf("balance after undo = %d, want -5", got)
	}
}

func TestRedemptionsFilter(t *testing.T) {
	l, _ := newTestLedger(t)
	for i := 0; i < 5; i++ {
		l.CompleteTask("1", "4")
		l.CompleteTask("2", "4")
	}
	l.RedeemReward("1", "1")
	l.RedeemReward("2", "2")
	l.RedeemReward("2", "1")

	all, _ := l.Redemptions("")
	if len(all) != 3 {
		t.Fatalf("expected 3 redemptions, got %d", len(all))
	}
	two, _ := l.Redemptions("2")
	if len(two) != 2 {
		t.Fatalf("expected 2 redemptions for child 2, got %d", len(two))
	}
}

func TestBalances(t *testing.T) {
	l, _ := newTestLedger(t)
	l.CompleteTask("1", "3")
	l.CompleteTask("2", "2")

	got, err := l.Balances()
	if err != nil {
		t.Fatal(err)
	}
	if got["1"] != 15 || got["2"] != 5 {
		t.Fatalf("unexpected balances %v", got)
	}
}
