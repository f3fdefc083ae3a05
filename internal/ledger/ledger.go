// Package ledger owns the completion book, point balances, and reward
// redemptions.
package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sadopc/chorechart/internal/clock"
	"github.com/sadopc/chorechart/internal/metrics"
	"github.com/sadopc/chorechart/internal/store"
)

var (
	ErrUnknownReward      = errors.New("unknown reward")
	ErrInsufficientPoints = errors.New("not enough points")
)

type Ledger struct {
	store  *store.Store
	cal    *clock.Calendar
	logger *slog.Logger
	newID  func() string
}

func New(s *store.Store, cal *clock.Calendar, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{store: s, cal: cal, logger: logger, newID: uuid.NewString}
}

// CalculatePoints sums points × count over the child's completions of tasks
// still in the catalog, plus the redemption deduction. Completions of
// deleted tasks contribute nothing.
func CalculatePoints(childID string, book Book, tasks []store.Task) int {
	a, ok := book[childID]
	if !ok || a == nil {
		return 0
	}
	total := 0
	for _, e := range a.Entries() {
		switch e := e.(type) {
		case TaskCompletion:
			if t, ok := store.FindTask(tasks, e.TaskID); ok {
				total += t.Points * e.Count
			}
		case RedemptionDeduction:
			total += e.Amount
		}
	}
	return total
}

// Complete increments the child's count for taskID within r.
func Complete(r store.Records, childID, taskID string) (Book, error) {
	book, err := LoadBook(r)
	if err != nil {
		return nil, err
	}
	book.account(childID).Tasks[taskID]++
	if err := SaveBook(r, book); err != nil {
		return nil, err
	}
	return book, nil
}

// Remove decrements the child's count for taskID within r, deleting the
// entry at zero. It reports whether anything was removed.
func Remove(r store.Records, childID, taskID string) (Book, bool, error) {
	book, err := LoadBook(r)
	if err != nil {
		return nil, false, err
	}
	a, ok := book[childID]
	if !ok || a.Tasks[taskID] <= 0 {
		return book, false, nil
	}
	a.Tasks[taskID]--
	if a.Tasks[taskID] <= 0 {
		delete(a.Tasks, taskID)
	}
	if err := SaveBook(r, book); err != nil {
		return nil, false, err
	}
	return book, true, nil
}

// CompleteTask records one completion. Each call counts; callers issue it
// once per user action.
func (l *Ledger) CompleteTask(childID, taskID string) (Book, error) {
	var book Book
	err := l.store.Update(func(tx *store.Tx) error {
		var err error
		book, err = Complete(tx, childID, taskID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}
	metrics.Completions.WithLabelValues(metrics.SourceDirect).Inc()
	return book, nil
}

// RemoveCompletion undoes one completion. Absent entries are left alone.
func (l *Ledger) RemoveCompletion(childID, taskID string) (Book, error) {
	var book Book
	var removed bool
	err := l.store.Update(func(tx *store.Tx) error {
		var err error
		book, removed, err = Remove(tx, childID, taskID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("remove completion: %w", err)
	}
	if removed {
		metrics.Undos.Inc()
	}
	return book, nil
}

// RedeemReward spends the reward's cost from the child's balance and logs
// the redemption. It declines with ErrUnknownReward or ErrInsufficientPoints
// without changing anything.
func (l *Ledger) RedeemReward(childID, rewardID string) (*store.Redemption, error) {
	var rec *store.Redemption
	err := l.store.Update(func(tx *store.Tx) error {
		rewards, err := store.Rewards(tx)
		if err != nil {
			return err
		}
		reward, ok := store.FindReward(rewards, rewardID)
		if !ok {
			return ErrUnknownReward
		}

		tasks, err := store.Tasks(tx)
		if err != nil {
			return err
		}
		book, err := LoadBook(tx)
		if err != nil {
			return err
		}
		if balance := CalculatePoints(childID, book, tasks); balance < reward.Cost {
			return fmt.Errorf("%w: have %d, need %d", ErrInsufficientPoints, balance, reward.Cost)
		}

		book.account(childID).Redemption -= reward.Cost
		if err := SaveBook(tx, book); err != nil {
			return err
		}

		log, err := store.Redemptions(tx)
		if err != nil {
			return err
		}
		rec = &store.Redemption{
			ID:         l.newID(),
			ChildID:    childID,
			RewardID:   reward.ID,
			RewardName: reward.Name,
			Cost:       reward.Cost,
			Date:       l.cal.Now().UTC().Format(time.RFC3339Nano),
		}
		return store.SaveRedemptions(tx, append(log, *rec))
	})

	switch {
	case errors.Is(err, ErrUnknownReward):
		metrics.Redemptions.WithLabelValues(metrics.OutcomeUnknown).Inc()
		return nil, err
	case errors.Is(err, ErrInsufficientPoints):
		metrics.Redemptions.WithLabelValues(metrics.OutcomeInsufficient).Inc()
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("redeem reward: %w", err)
	}

	metrics.Redemptions.WithLabelValues(metrics.OutcomeRedeemed).Inc()
	l.logger.Info("reward redeemed", "child", childID, "reward", rec.RewardName, "cost", rec.Cost)
	return rec, nil
}

// Book returns the current completion ledger.
func (l *Ledger) Book() (Book, error) {
	return LoadBook(l.store)
}

// Balance is the child's current point balance.
func (l *Ledger) Balance(childID string) (int, error) {
	book, err := LoadBook(l.store)
	if err != nil {
		return 0, err
	}
	tasks, err := store.Tasks(l.store)
	if err != nil {
		return 0, err
	}
	return CalculatePoints(childID, book, tasks), nil
}

// Balances returns the balance of every child in the catalog.
func (l *Ledger) Balances() (map[string]int, error) {
	children, err := store.Children(l.store)
	if err != nil {
		return nil, err
	}
	book, err := LoadBook(l.store)
	if err != nil {
		return nil, err
	}
	tasks, err := store.Tasks(l.store)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(children))
	for _, c := range children {
		out[c.ID] = CalculatePoints(c.ID, book, tasks)
	}
	return out, nil
}

// Redemptions returns the redemption log, filtered to childID unless it is
// empty.
func (l *Ledger) Redemptions(childID string) ([]store.Redemption, error) {
	log, err := store.Redemptions(l.store)
	if err != nil {
		return nil, err
	}
	if childID == "" {
		return log, nil
	}
	var out []store.Redemption
	for _, r := range log {
		if r.ChildID == childID {
			out = append(out, r)
		}
	}
	return out, nil
}
