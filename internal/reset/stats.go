package reset

import "github.com/sadopc/chorechart/internal/store"

// RecordCompletion adds one task worth points to the child's live week and
// to today's bucket. r is usually the caller's transaction.
func (e *Engine) RecordCompletion(r store.Records, childID string, points int) error {
	return e.record(r, childID, points, false)
}

// RecordUndo reverses one completion, flooring every total at zero.
func (e *Engine) RecordUndo(r store.Records, childID string, points int) error {
	return e.record(r, childID, points, true)
}

func (e *Engine) record(r store.Records, childID string, points int, undo bool) error {
	stats, err := store.LoadWeeklyStats(r)
	if err != nil {
		return err
	}

	cw, ok := stats.Children[childID]
	if !ok || cw == nil {
		cw = &store.ChildWeek{}
		stats.Children[childID] = cw
	}
	if cw.DailyHistory == nil {
		cw.DailyHistory = make(map[string]store.DayTally)
	}

	today := e.cal.Today()
	day := cw.DailyHistory[today]
	if undo {
		cw.TasksCompleted = max(0, cw.TasksCompleted-1)
		cw.PointsEarned = max(0, cw.PointsEarned-points)
		day.Tasks = max(0, day.Tasks-1)
		day.Points = max(0, day.Points-points)
	} else {
		cw.TasksCompleted++
		cw.PointsEarned += points
		day.Tasks++
		day.Points += points
	}
	cw.DailyHistory[today] = day

	return store.SaveWeeklyStats(r, stats)
}

// Stats returns the live week.
func (e *Engine) Stats() (*store.WeeklyStats, error) {
	return store.LoadWeeklyStats(e.store)
}

// ChildWeek returns the child's totals for the live week; zero if the child
// has done nothing yet.
func (e *Engine) ChildWeek(childID string) (store.ChildWeek, error) {
	stats, err := store.LoadWeeklyStats(e.store)
	if err != nil {
		return store.ChildWeek{}, err
	}
	if cw, ok := stats.Children[childID]; ok && cw != nil {
		return *cw, nil
	}
	return store.ChildWeek{}, nil
}

// Weeks returns up to six weeks for display, oldest first: the archive
// followed by the live week.
func (e *Engine) Weeks() ([]store.WeeklyStats, error) {
	history, err := store.WeeklyHistory(e.store)
	if err != nil {
		return nil, err
	}
	live, err := store.LoadWeeklyStats(e.store)
	if err != nil {
		return nil, err
	}

	weeks := make([]store.WeeklyStats, 0, len(history)+1)
	for i := len(history) - 1; i >= 0; i-- {
		weeks = append(weeks, history[i])
	}
	if live.WeekStartDate != "" {
		weeks = append(weeks, *live)
	}
	return weeks, nil
}
