package ledger

import (
	"encoding/json"
	"sort"

	"github.com/sadopc/chorechart/internal/store"
)

// RedemptionKey is the reserved task id under which the stored JSON keeps a
// child's redemption deduction.
const RedemptionKey = "redemption"

// Entry is one line of an account: a TaskCompletion or a
// RedemptionDeduction.
type Entry interface {
	isEntry()
}

// TaskCompletion counts how many times a task was completed since the last
// daily reset. Count is always positive.
type TaskCompletion struct {
	TaskID string
	Count  int
}

// RedemptionDeduction is the running total spent on rewards. Amount is
// never positive.
type RedemptionDeduction struct {
	Amount int
}

func (TaskCompletion) isEntry()      {}
func (RedemptionDeduction) isEntry() {}

// Account is one child's slice of the book. On the wire it is a flat
// object of task id to count, with the deduction under RedemptionKey.
type Account struct {
	Tasks      map[string]int
	Redemption int
}

// Entries lists task completions ordered by task id, followed by the
// redemption deduction when there is one.
func (a *Account) Entries() []Entry {
	ids := make([]string, 0, len(a.Tasks))
	for id, n := range a.Tasks {
		if n > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	entries := make([]Entry, 0, len(ids)+1)
	for _, id := range ids {
		entries = append(entries, TaskCompletion{TaskID: id, Count: a.Tasks[id]})
	}
	if a.Redemption != 0 {
		entries = append(entries, RedemptionDeduction{Amount: a.Redemption})
	}
	return entries
}

func (a *Account) empty() bool {
	return len(a.Tasks) == 0 && a.Redemption == 0
}

func (a Account) MarshalJSON() ([]byte, error) {
	flat := make(map[string]int, len(a.Tasks)+1)
	for id, n := range a.Tasks {
		flat[id] = n
	}
	if a.Redemption != 0 {
		flat[RedemptionKey] = a.Redemption
	}
	return json.Marshal(flat)
}

func (a *Account) UnmarshalJSON(data []byte) error {
	var flat map[string]int
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	a.Tasks = make(map[string]int, len(flat))
	a.Redemption = 0
	for id, n := range flat {
		if id == RedemptionKey {
			a.Redemption = n
			continue
		}
		if n > 0 {
			a.Tasks[id] = n
		}
	}
	return nil
}

// Book maps child id to account: the completion ledger.
type Book map[string]*Account

// Count is the number of completions of taskID for childID.
func (b Book) Count(childID, taskID string) int {
	if a, ok := b[childID]; ok {
		return a.Tasks[taskID]
	}
	return 0
}

// Redemption is the child's (non-positive) redemption deduction.
func (b Book) Redemption(childID string) int {
	if a, ok := b[childID]; ok {
		return a.Redemption
	}
	return 0
}

// Completed reports whether the child has at least one completion of taskID.
func (b Book) Completed(childID, taskID string) bool {
	return b.Count(childID, taskID) > 0
}

func (b Book) account(childID string) *Account {
	a, ok := b[childID]
	if !ok || a == nil {
		a = &Account{}
		b[childID] = a
	}
	if a.Tasks == nil {
		a.Tasks = make(map[string]int)
	}
	return a
}

// LoadBook reads the completion ledger; a missing record is an empty book.
func LoadBook(r store.Records) (Book, error) {
	book := make(Book)
	if _, err := store.LoadJSON(r, store.KeyCompletions, &book); err != nil {
		return nil, err
	}
	if book == nil {
		book = make(Book)
	}
	for id, a := range book {
		if a == nil {
			delete(book, id)
		}
	}
	return book, nil
}

func SaveBook(r store.Records, book Book) error {
	return store.SaveJSON(r, store.KeyCompletions, book)
}
