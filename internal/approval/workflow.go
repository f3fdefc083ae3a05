// Package approval gates task completions behind a parent: children submit
// tasks to a pending queue, or a parent verifies them on the spot with a PIN.
package approval

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/sadopc/chorechart/internal/ledger"
	"github.com/sadopc/chorechart/internal/metrics"
	"github.com/sadopc/chorechart/internal/reset"
	"github.com/sadopc/chorechart/internal/store"
)

var ErrIncorrectPIN = errors.New("incorrect PIN")

// Outcome is what a child's tap on a task led to.
type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomeNeedsVerification
	OutcomeCompleted
	OutcomeUndone
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNeedsVerification:
		return "needs verification"
	case OutcomeCompleted:
		return "completed"
	case OutcomeUndone:
		return "undone"
	default:
		return "ignored"
	}
}

type Workflow struct {
	store  *store.Store
	stats  *reset.Engine
	logger *slog.Logger
}

func New(s *store.Store, stats *reset.Engine, logger *slog.Logger) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{store: s, stats: stats, logger: logger}
}

// Submit queues the task for parent approval. Submitting twice is a no-op.
func (w *Workflow) Submit(childID, taskID string) error {
	added := false
	err := w.store.Update(func(tx *store.Tx) error {
		pending, err := store.LoadPendingApprovals(tx)
		if err != nil {
			return err
		}
		if slices.Contains(pending[childID], taskID) {
			return nil
		}
		pending[childID] = append(pending[childID], taskID)
		added = true
		return store.SavePendingApprovals(tx, pending)
	})
	if err != nil {
		return fmt.Errorf("submit for approval: %w", err)
	}
	if added {
		metrics.Approvals.WithLabelValues(metrics.DecisionSubmitted).Inc()
		w.logger.Info("task submitted for approval", "child", childID, "task", taskID)
	}
	return nil
}

// Approve removes the task from the queue, credits the weekly stats and
// records the completion, all in one transaction. A task no longer in the
// catalog still completes but earns no weekly points.
func (w *Workflow) Approve(childID, taskID string) (ledger.Book, error) {
	var book ledger.Book
	err := w.store.Update(func(tx *store.Tx) error {
		if _, err := dequeue(tx, childID, taskID); err != nil {
			return err
		}
		var err error
		book, err = w.complete(tx, childID, taskID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("approve task: %w", err)
	}
	metrics.Approvals.WithLabelValues(metrics.DecisionApproved).Inc()
	metrics.Completions.WithLabelValues(metrics.SourceApprove).Inc()
	w.logger.Info("task approved", "child", childID, "task", taskID)
	return book, nil
}

// Reject drops the task from the queue without crediting anything.
func (w *Workflow) Reject(childID, taskID string) error {
	removed := false
	err := w.store.Update(func(tx *store.Tx) error {
		var err error
		removed, err = dequeue(tx, childID, taskID)
		return err
	})
	if err != nil {
		return fmt.Errorf("reject task: %w", err)
	}
	if removed {
		metrics.Approvals.WithLabelValues(metrics.DecisionRejected).Inc()
		w.logger.Info("task rejected", "child", childID, "task", taskID)
	}
	return nil
}

func (w *Workflow) IsPending(childID, taskID string) (bool, error) {
	pending, err := store.LoadPendingApprovals(w.store)
	if err != nil {
		return false, err
	}
	return slices.Contains(pending[childID], taskID), nil
}

// Pending returns the whole queue, child id to task ids in submission order.
func (w *Workflow) Pending() (store.PendingApprovals, error) {
	return store.LoadPendingApprovals(w.store)
}

// VerifyInstant completes the task on the spot when pin matches the parent
// password. With no password set any PIN is accepted. A pending submission
// for the same task is cleared.
func (w *Workflow) VerifyInstant(childID, taskID, pin string) (ledger.Book, error) {
	var book ledger.Book
	err := w.store.Update(func(tx *store.Tx) error {
		pw, err := store.ParentPassword(tx)
		if err != nil {
			return err
		}
		if pw != "" && pin != pw {
			return ErrIncorrectPIN
		}
		if _, err := dequeue(tx, childID, taskID); err != nil {
			return err
		}
		book, err = w.complete(tx, childID, taskID)
		return err
	})
	if errors.Is(err, ErrIncorrectPIN) {
		w.logger.Warn("instant verification refused", "child", childID, "task", taskID)
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("verify task: %w", err)
	}
	metrics.Completions.WithLabelValues(metrics.SourceInstant).Inc()
	w.logger.Info("task verified by parent", "child", childID, "task", taskID)
	return book, nil
}

// Tap handles a child selecting a task on the board. A pending task asks
// for verification again; a completed one is undone; a task that needs
// approval asks for verification; anything else completes right away.
func (w *Workflow) Tap(childID, taskID string) (Outcome, error) {
	outcome := OutcomeIgnored
	err := w.store.Update(func(tx *store.Tx) error {
		tasks, err := store.Tasks(tx)
		if err != nil {
			return err
		}
		task, ok := store.FindTask(tasks, taskID)
		if !ok {
			return nil
		}

		pending, err := store.LoadPendingApprovals(tx)
		if err != nil {
			return err
		}
		if slices.Contains(pending[childID], taskID) {
			outcome = OutcomeNeedsVerification
			return nil
		}

		book, err := ledger.LoadBook(tx)
		if err != nil {
			return err
		}
		switch {
		case book.Completed(childID, taskID):
			if _, _, err := ledger.Remove(tx, childID, taskID); err != nil {
				return err
			}
			outcome = OutcomeUndone
			return w.stats.RecordUndo(tx, childID, task.Points)
		case task.RequiresApproval:
			outcome = OutcomeNeedsVerification
			return nil
		default:
			if _, err := ledger.Complete(tx, childID, taskID); err != nil {
				return err
			}
			outcome = OutcomeCompleted
			return w.stats.RecordCompletion(tx, childID, task.Points)
		}
	})
	if err != nil {
		return OutcomeIgnored, fmt.Errorf("tap task: %w", err)
	}

	switch outcome {
	case OutcomeCompleted:
		metrics.Completions.WithLabelValues(metrics.SourceDirect).Inc()
	case OutcomeUndone:
		metrics.Undos.Inc()
	}
	w.logger.Debug("task tapped", "child", childID, "task", taskID, "outcome", outcome.String())
	return outcome, nil
}

func (w *Workflow) complete(tx *store.Tx, childID, taskID string) (ledger.Book, error) {
	tasks, err := store.Tasks(tx)
	if err != nil {
		return nil, err
	}
	if task, ok := store.FindTask(tasks, taskID); ok {
		if err := w.stats.RecordCompletion(tx, childID, task.Points); err != nil {
			return nil, err
		}
	}
	return ledger.Complete(tx, childID, taskID)
}

func dequeue(r store.Records, childID, taskID string) (bool, error) {
	pending, err := store.LoadPendingApprovals(r)
	if err != nil {
		return false, err
	}
	ids, ok := pending[childID]
	if !ok || !slices.Contains(ids, taskID) {
		return false, nil
	}
	pending[childID] = slices.DeleteFunc(ids, func(id string) bool { return id == taskID })
	return true, store.SavePendingApprovals(r, pending)
}
