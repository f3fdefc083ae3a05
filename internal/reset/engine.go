// Package reset rolls the ledger over at civil day and week boundaries and
// keeps the weekly stats and their archive.
package reset

import (
	"fmt"
	"log/slog"

	"github.com/sadopc/chorechart/internal/clock"
	"github.com/sadopc/chorechart/internal/ledger"
	"github.com/sadopc/chorechart/internal/metrics"
	"github.com/sadopc/chorechart/internal/store"
)

// HistoryLimit caps the archive; with the live week that is six weeks.
const HistoryLimit = 5

type Engine struct {
	store  *store.Store
	cal    *clock.Calendar
	logger *slog.Logger
}

func New(s *store.Store, cal *clock.Calendar, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: s, cal: cal, logger: logger}
}

// Result reports which horizons rolled over during a Tick.
type Result struct {
	Daily  bool
	Weekly bool
}

// Tick evaluates the daily reset, then the weekly one. Both may fire in
// the same tick.
func (e *Engine) Tick() (Result, error) {
	var res Result
	var err error
	if res.Daily, err = e.CheckDaily(); err != nil {
		return res, err
	}
	if res.Weekly, err = e.CheckWeekly(); err != nil {
		return res, err
	}
	return res, nil
}

// CheckDaily clears today's checklist if a civil midnight has passed since
// the last daily reset, and advances the marker in the same transaction.
func (e *Engine) CheckDaily() (bool, error) {
	fired := false
	err := e.store.Update(func(tx *store.Tx) error {
		last, err := store.LastDailyReset(tx)
		if err != nil {
			return err
		}
		if !e.cal.ShouldResetDaily(last) {
			return nil
		}
		if err := resetDaily(tx); err != nil {
			return err
		}
		fired = true
		return store.SaveLastDailyReset(tx, e.cal.Now())
	})
	if err != nil {
		return false, fmt.Errorf("daily reset: %w", err)
	}
	if fired {
		metrics.Resets.WithLabelValues(metrics.HorizonDaily).Inc()
		e.logger.Info("daily reset applied", "date", e.cal.Today())
	}
	return fired, nil
}

// ResetDailyTasks drops every task completion and keeps each child's
// redemption deduction. Weekly stats are untouched.
func (e *Engine) ResetDailyTasks() error {
	err := e.store.Update(func(tx *store.Tx) error {
		return resetDaily(tx)
	})
	if err != nil {
		return fmt.Errorf("reset daily tasks: %w", err)
	}
	return nil
}

func resetDaily(r store.Records) error {
	book, err := ledger.LoadBook(r)
	if err != nil {
		return err
	}
	fresh := make(ledger.Book)
	for childID, a := range book {
		if a.Redemption != 0 {
			fresh[childID] = &ledger.Account{Tasks: map[string]int{}, Redemption: a.Redemption}
		}
	}
	return ledger.SaveBook(r, fresh)
}

// CheckWeekly starts a new week if the live stats belong to an earlier one.
func (e *Engine) CheckWeekly() (bool, error) {
	current := e.cal.WeekStartDate()
	fired := false
	err := e.store.Update(func(tx *store.Tx) error {
		stats, err := store.LoadWeeklyStats(tx)
		if err != nil {
			return err
		}
		if !e.cal.ShouldResetWeekly(stats.WeekStartDate) {
			return nil
		}
		fired = true
		return rollWeek(tx, stats, current)
	})
	if err != nil {
		return false, fmt.Errorf("weekly reset: %w", err)
	}
	if fired {
		metrics.Resets.WithLabelValues(metrics.HorizonWeekly).Inc()
		e.logger.Info("weekly reset applied", "week_start", current)
	}
	return fired, nil
}

// ResetWeeklyStats archives the live week (if one was started) and begins
// a fresh week at newWeekStart.
func (e *Engine) ResetWeeklyStats(newWeekStart string) error {
	err := e.store.Update(func(tx *store.Tx) error {
		stats, err := store.LoadWeeklyStats(tx)
		if err != nil {
			return err
		}
		return rollWeek(tx, stats, newWeekStart)
	})
	if err != nil {
		return fmt.Errorf("reset weekly stats: %w", err)
	}
	return nil
}

func rollWeek(r store.Records, live *store.WeeklyStats, newWeekStart string) error {
	if live.WeekStartDate != "" {
		history, err := store.WeeklyHistory(r)
		if err != nil {
			return err
		}
		archived := store.WeeklyStats{WeekStartDate: live.WeekStartDate, Children: live.Children}
		history = append([]store.WeeklyStats{archived}, history...)
		if len(history) > HistoryLimit {
			history = history[:HistoryLimit]
		}
		if err := store.SaveWeeklyHistory(r, history); err != nil {
			return err
		}
	}

	fresh := &store.WeeklyStats{
		WeekStartDate: newWeekStart,
		Children:      make(map[string]*store.ChildWeek),
	}
	if err := store.SaveWeeklyStats(r, fresh); err != nil {
		return err
	}
	return store.SaveLastWeeklyReset(r, newWeekStart)
}
