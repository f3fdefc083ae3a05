package store

import (
	"encoding/json"
	"fmt"
	"time"
)

var DefaultTasks = []Task{
	{ID: "1", Name: "Make the Bed", Points: 10, Emoji: "🛏️", Description: "Make your bed nice and neat!"},
	{ID: "2", Name: "Brush Teeth", Points: 5, Emoji: "🪥", Description: "Brush your teeth morning and night!"},
	{ID: "3", Name: "Clean Up Room", Points: 15, Emoji: "🧹", Description: "Put away toys and keep room tidy!"},
	{ID: "4", Name: "Play Violin", Points: 20, Emoji: "🎻", Description: "Practice violin for 15 minutes!"},
}

var DefaultRewards = []Reward{
	{ID: "1", Name: "Dessert", Cost: 30, Emoji: "🍰", Description: "Yummy dessert after dinner!"},
	{ID: "2", Name: "Screen Time", Cost: 50, Emoji: "📱", Description: "30 minutes of screen time!"},
	{ID: "3", Name: "Outdoor Play", Cost: 40, Emoji: "⚽", Description: "Extra outdoor playtime!"},
	{ID: "4", Name: "Party with Friends", Cost: 100, Emoji: "🎉", Description: "Have friends over for a party!"},
}

var DefaultChildren = []Child{
	{ID: "1", Name: "Child 1", Color: "#FF6B9D", Avatar: "🦄"},
	{ID: "2", Name: "Child 2", Color: "#4ECDC4", Avatar: "🚀"},
}

// LoadJSON decodes the record at key into v. It reports false, leaving v
// untouched, when the record is absent or empty.
func LoadJSON(r Records, key string, v any) (bool, error) {
	raw, ok, err := r.Get(key)
	if err != nil || !ok || raw == "" {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func SaveJSON(r Records, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return r.Set(key, string(data))
}

func Children(r Records) ([]Child, error) {
	var children []Child
	ok, err := LoadJSON(r, KeyChildren, &children)
	if err != nil {
		return nil, err
	}
	if !ok {
		return append([]Child(nil), DefaultChildren...), nil
	}
	return children, nil
}

func Tasks(r Records) ([]Task, error) {
	var tasks []Task
	ok, err := LoadJSON(r, KeyTasks, &tasks)
	if err != nil {
		return nil, err
	}
	if !ok {
		return append([]Task(nil), DefaultTasks...), nil
	}
	return tasks, nil
}

func Rewards(r Records) ([]Reward, error) {
	var rewards []Reward
	ok, err := LoadJSON(r, KeyRewards, &rewards)
	if err != nil {
		return nil, err
	}
	if !ok {
		return append([]Reward(nil), DefaultRewards...), nil
	}
	return rewards, nil
}

func SaveChildren(r Records, children []Child) error { return SaveJSON(r, KeyChildren, children) }
func SaveTasks(r Records, tasks []Task) error        { return SaveJSON(r, KeyTasks, tasks) }
func SaveRewards(r Records, rewards []Reward) error  { return SaveJSON(r, KeyRewards, rewards) }

func Redemptions(r Records) ([]Redemption, error) {
	var log []Redemption
	if _, err := LoadJSON(r, KeyRedemptions, &log); err != nil {
		return nil, err
	}
	return log, nil
}

func SaveRedemptions(r Records, log []Redemption) error {
	return SaveJSON(r, KeyRedemptions, log)
}

// LoadWeeklyStats returns the live week, or an unstarted one.
func LoadWeeklyStats(r Records) (*WeeklyStats, error) {
	stats := &WeeklyStats{}
	if _, err := LoadJSON(r, KeyWeeklyStats, stats); err != nil {
		return nil, err
	}
	if stats.Children == nil {
		stats.Children = make(map[string]*ChildWeek)
	}
	return stats, nil
}

func SaveWeeklyStats(r Records, stats *WeeklyStats) error {
	return SaveJSON(r, KeyWeeklyStats, stats)
}

// WeeklyHistory returns archived weeks, most recent first.
func WeeklyHistory(r Records) ([]WeeklyStats, error) {
	var history []WeeklyStats
	if _, err := LoadJSON(r, KeyWeeklyHistory, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func SaveWeeklyHistory(r Records, history []WeeklyStats) error {
	return SaveJSON(r, KeyWeeklyHistory, history)
}

func LoadPendingApprovals(r Records) (PendingApprovals, error) {
	pending := make(PendingApprovals)
	if _, err := LoadJSON(r, KeyPendingApprovals, &pending); err != nil {
		return nil, err
	}
	if pending == nil {
		pending = make(PendingApprovals)
	}
	return pending, nil
}

func SavePendingApprovals(r Records, pending PendingApprovals) error {
	return SaveJSON(r, KeyPendingApprovals, pending)
}

// ParentPassword returns the stored password, or "" when none is set.
func ParentPassword(r Records) (string, error) {
	pw, _, err := r.Get(KeyParentPassword)
	return pw, err
}

func SaveParentPassword(r Records, pw string) error {
	return r.Set(KeyParentPassword, pw)
}

// LastDailyReset returns the instant of the last daily reset, or the zero
// time if none is recorded or the marker cannot be parsed.
func LastDailyReset(r Records) (time.Time, error) {
	raw, ok, err := r.Get(KeyLastDailyReset)
	if err != nil || !ok {
		return time.Time{}, err
	}
	t, perr := time.Parse(time.RFC3339Nano, raw)
	if perr != nil {
		return time.Time{}, nil
	}
	return t, nil
}

func SaveLastDailyReset(r Records, t time.Time) error {
	return r.Set(KeyLastDailyReset, t.UTC().Format(time.RFC3339Nano))
}

// LastWeeklyReset returns the week-start date recorded by the last weekly
// reset, or "".
func LastWeeklyReset(r Records) (string, error) {
	v, _, err := r.Get(KeyLastWeeklyReset)
	return v, err
}

func SaveLastWeeklyReset(r Records, weekStart string) error {
	return r.Set(KeyLastWeeklyReset, weekStart)
}

func FindTask(tasks []Task, id string) (Task, bool) {
	for _, t := range tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

func FindReward(rewards []Reward, id string) (Reward, bool) {
	for _, r := range rewards {
		if r.ID == id {
			return r, true
		}
	}
	return Reward{}, false
}
