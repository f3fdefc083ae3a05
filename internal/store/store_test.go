package store

import (
	"errors"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewMemory()
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func waitSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected change notification")
	}
}

func expectNoSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
		t.Fatal("unexpected change notification")
	default:
	}
}

// ============================================================
// Store initialization
// ============================================================

func TestNewMemory(t *testing.T) {
	s, err := NewMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	var version int
	s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if version != 1 {
		t.Fatalf("expected user_version 1, got %d", version)
	}
}

func TestNewWithPath(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/sub/chorechart.db"
	s, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(KeyParentPassword, "1234"); err != nil {
		t.Fatal(err)
	}
	s.Close()

	// Reopen: data survives and migration does not rerun.
	s2, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	pw, err := ParentPassword(s2)
	if err != nil {
		t.Fatal(err)
	}
	if pw != "1234" {
		t.Fatalf("expected persisted password, got %q", pw)
	}
}

func TestDefaultDBPath(t *testing.T) {
	path, err := DefaultDBPath()
	if err != nil {
		t.Fatal(err)
	}
	if path == "" {
		t.Fatal("empty path")
	}
}

func TestMigrationIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.migrate(); err != nil {
		t.Fatalf("second migration failed: %v", err)
	}
}

// ============================================================
// Records
// ============================================================

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)
	v, ok, err := s.Get("nope")
	if err != nil {
		t.Fatal(err)
	}
	if ok || v != "" {
		t.Fatalf("expected missing record, got %q ok=%v", v, ok)
	}
}

func TestSetAndGet(t *testing.T) {
	s := newTestStore(t)
	if err := s.Set("a", "1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("a", "2"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := s.Get("a")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if v != "2" {
		t.Fatalf("expected overwritten value 2, got %q", v)
	}
}

func TestSnapshot(t *testing.T) {
	s := newTestStore(t)
	s.SetMany(map[string]string{"b": "2", "a": "1"})

	snap, err := s.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if len(snap) != 2 || snap["a"] != "1" || snap["b"] != "2" {
		t.Fatalf("unexpected snapshot: %v", snap)
	}
}

func TestUpdateRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	boom := errors.New("boom")

	err := s.Update(func(tx *Tx) error {
		if err := tx.Set("a", "1"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, ok, _ := s.Get("a"); ok {
		t.Fatal("write inside failed update should be rolled back")
	}
}

func TestUpdateReadsOwnWrites(t *testing.T) {
	s := newTestStore(t)
	err := s.Update(func(tx *Tx) error {
		tx.Set("a", "1")
		v, ok, err := tx.Get("a")
		if err != nil {
			return err
		}
		if !ok || v != "1" {
			t.Errorf("tx should see its own write, got %q ok=%v", v, ok)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

// ============================================================
// Notifications and hooks
// ============================================================

func TestSetNotifiesSubscribers(t *testing.T) {
	s := newTestStore(t)
	ch, cancel := s.Subscribe()
	defer cancel()

	s.Set("a", "1")
	waitSignal(t, ch)
}

func TestNotificationsCoalesce(t *testing.T) {
	s := newTestStore(t)
	ch, cancel := s.Subscribe()
	defer cancel()

	s.Set("a", "1")
	s.Set("b", "2")
	s.Set("c", "3")

	waitSignal(t, ch)
	expectNoSignal(t, ch)
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	s := newTestStore(t)
	ch, cancel := s.Subscribe()
	cancel()
	cancel() // second cancel is a no-op

	s.Set("a", "1")
	expectNoSignal(t, ch)
}

func TestEmptyUpdateDoesNotNotify(t *testing.T) {
	s := newTestStore(t)
	ch, cancel := s.Subscribe()
	defer cancel()

	if err := s.Update(func(tx *Tx) error { return nil }); err != nil {
		t.Fatal(err)
	}
	expectNoSignal(t, ch)
}

func TestWriteHookReceivesCommittedChanges(t *testing.T) {
	s := newTestStore(t)
	var got map[string]string
	s.OnWrite(func(changes map[string]string) { got = changes })

	s.SetMany(map[string]string{"a": "1", "b": "2"})
	if len(got) != 2 || got["a"] != "1" || got["b"] != "2" {
		t.Fatalf("unexpected hook changes: %v", got)
	}
}

func TestOverwriteSkipsHooksButNotifies(t *testing.T) {
	s := newTestStore(t)
	called := false
	s.OnWrite(func(map[string]string) { called = true })
	ch, cancel := s.Subscribe()
	defer cancel()

	if err := s.Overwrite(map[string]string{"a": "remote"}); err != nil {
		t.Fatal(err)
	}
	if called {
		t.Fatal("remote overwrite must not reach write hooks")
	}
	waitSignal(t, ch)

	v, _, _ := s.Get("a")
	if v != "remote" {
		t.Fatalf("expected remote value, got %q", v)
	}
}

func TestOverwriteUnchangedKeepsNewerLocalWrites(t *testing.T) {
	s := newTestStore(t)
	s.Set("a", "seen")
	s.Set("b", "seen")
	base, err := s.Snapshot()
	if err != nil {
		t.Fatal(err)
	}

	// Written locally after the snapshot was taken.
	s.Set("b", "local")

	applied, err := s.OverwriteUnchanged(base, map[string]string{
		"a": "remote",
		"b": "remote",
		"c": "remote",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(applied) != 2 || applied[0] != "a" || applied[1] != "c" {
		t.Fatalf("unexpected applied keys %v", applied)
	}
	if v, _, _ := s.Get("a"); v != "remote" {
		t.Errorf("a = %q, want remote", v)
	}
	if v, _, _ := s.Get("b"); v != "local" {
		t.Errorf("b = %q, newer local write was overwritten", v)
	}
	if v, _, _ := s.Get("c"); v != "remote" {
		t.Errorf("c = %q, want remote", v)
	}
}

// ============================================================
// Typed records
// ============================================================

func TestCatalogDefaults(t *testing.T) {
	s := newTestStore(t)

	children, err := Children(s)
	if err != nil {
		t.Fatal(err)
	}
	if len(children) != 2 {
		t.Fatalf("expected 2 default children, got %d", len(children))
	}
	tasks, _ := Tasks(s)
	if len(tasks) != 4 || tasks[0].Points != 10 {
		t.Fatalf("unexpected default tasks: %+v", tasks)
	}
	rewards, _ := Rewards(s)
	if len(rewards) != 4 || rewards[3].Cost != 100 {
		t.Fatalf("unexpected default rewards: %+v", rewards)
	}

	// Mutating the returned slice must not leak into the defaults.
	tasks[0].Points = 999
	if DefaultTasks[0].Points != 10 {
		t.Fatal("defaults were mutated through returned slice")
	}
}

func TestCatalogRoundTrip(t *testing.T) {
	s := newTestStore(t)
	want := []Task{{ID: "9", Name: "Feed Cat", Points: 7, RequiresApproval: true}}
	if err := SaveTasks(s, want); err != nil {
		t.Fatal(err)
	}
	got, err := Tasks(s)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "9" || !got[0].RequiresApproval {
		t.Fatalf("unexpected tasks: %+v", got)
	}
}

func TestCorruptRecordIsError(t *testing.T) {
	s := newTestStore(t)
	s.Set(KeyTasks, "{not json")
	if _, err := Tasks(s); err == nil {
		t.Fatal("expected decode error for corrupt record")
	}
}

func TestLoadWeeklyStatsEmpty(t *testing.T) {
	s := newTestStore(t)
	stats, err := LoadWeeklyStats(s)
	if err != nil {
		t.Fatal(err)
	}
	if stats.WeekStartDate != "" {
		t.Fatalf("expected unstarted week, got %q", stats.WeekStartDate)
	}
	if stats.Children == nil {
		t.Fatal("children map should be initialized")
	}
}

func TestWeeklyStatsAcceptsNullWeekStart(t *testing.T) {
	s := newTestStore(t)
	s.Set(KeyWeeklyStats, `{"weekStartDate":null,"children":{}}`)
	stats, err := LoadWeeklyStats(s)
	if err != nil {
		t.Fatal(err)
	}
	if stats.WeekStartDate != "" {
		t.Fatalf("null week start should decode as empty, got %q", stats.WeekStartDate)
	}
}

func TestLastDailyReset(t *testing.T) {
	s := newTestStore(t)

	last, err := LastDailyReset(s)
	if err != nil {
		t.Fatal(err)
	}
	if !last.IsZero() {
		t.Fatal("missing marker should be zero")
	}

	when := time.Date(2024, 1, 14, 8, 0, 0, 0, time.UTC)
	SaveLastDailyReset(s, when)
	last, _ = LastDailyReset(s)
	if !last.Equal(when) {
		t.Fatalf("expected %v, got %v", when, last)
	}

	// Markers written by the web client carry milliseconds.
	s.Set(KeyLastDailyReset, "2024-01-14T08:00:00.000Z")
	last, _ = LastDailyReset(s)
	if !last.Equal(when) {
		t.Fatalf("expected %v from ISO marker, got %v", when, last)
	}

	s.Set(KeyLastDailyReset, "garbage")
	last, err = LastDailyReset(s)
	if err != nil || !last.IsZero() {
		t.Fatalf("unparseable marker should read as zero, got %v err=%v", last, err)
	}
}

func TestFindTaskAndReward(t *testing.T) {
	if _, ok := FindTask(DefaultTasks, "3"); !ok {
		t.Fatal("expected task 3")
	}
	if _, ok := FindTask(DefaultTasks, "missing"); ok {
		t.Fatal("unexpected task")
	}
	r, ok := FindReward(DefaultRewards, "2")
	if !ok || r.Name != "Screen Time" {
		t.Fatalf("unexpected reward %+v", r)
	}
}

func TestSyncedKeysCoverKeySpace(t *testing.T) {
	if len(SyncedKeys) != 11 {
		t.Fatalf("expected 11 synced keys, got %d", len(SyncedKeys))
	}
	seen := make(map[string]bool)
	for _, k := range SyncedKeys {
		if seen[k] {
			t.Fatalf("duplicate key %s", k)
		}
		seen[k] = true
	}
}
