package store

type Child struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Color  string `json:"color"`
	Avatar string `json:"avatar"`
}

type Task struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Points           int    `json:"points"`
	Emoji            string `json:"emoji"`
	Description      string `json:"description"`
	RequiresApproval bool   `json:"requiresApproval,omitempty"`
}

type Reward struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Cost        int    `json:"cost"`
	Emoji       string `json:"emoji"`
	Description string `json:"description"`
}

// Redemption is an append-only log entry; nothing rewrites or removes it.
type Redemption struct {
	ID         string `json:"id"`
	ChildID    string `json:"childId"`
	RewardID   string `json:"rewardId"`
	RewardName string `json:"rewardName"`
	Cost       int    `json:"cost"`
	Date       string `json:"date"`
}

// DayTally is one civil day's contribution to a child's week.
type DayTally struct {
	Tasks  int `json:"tasks"`
	Points int `json:"points"`
}

type ChildWeek struct {
	TasksCompleted int                 `json:"tasksCompleted"`
	PointsEarned   int                 `json:"pointsEarned"`
	DailyHistory   map[string]DayTally `json:"dailyHistory"`
}

// WeeklyStats is the live week, and also the shape of each archived week.
// An empty WeekStartDate means no week has been started yet.
type WeeklyStats struct {
	WeekStartDate string                `json:"weekStartDate"`
	Children      map[string]*ChildWeek `json:"children"`
}

// PendingApprovals maps child id to task ids awaiting sign-off, in
// submission order, without duplicates.
type PendingApprovals map[string][]string
