package store

// Record keys. The prefix matches the records the browser client writes
// so an existing server file merges without renaming.
const (
	KeyChildren         = "kidsTaskTracker_children"
	KeyTasks            = "kidsTaskTracker_tasks"
	KeyRewards          = "kidsTaskTracker_rewards"
	KeyCompletions      = "kidsTaskTracker_completions"
	KeyRedemptions      = "kidsTaskTracker_redemptions"
	KeyWeeklyStats      = "kidsTaskTracker_weeklyStats"
	KeyWeeklyHistory    = "kidsTaskTracker_weeklyHistory"
	KeyLastDailyReset   = "kidsTaskTracker_lastResetDate"
	KeyLastWeeklyReset  = "kidsTaskTracker_lastReset"
	KeyPendingApprovals = "kidsTaskTracker_pendingApprovals"
	KeyParentPassword   = "kidsTaskTracker_parentPassword"
)

// SyncedKeys lists every record mirrored to the remote copy.
var SyncedKeys = []string{
	KeyChildren,
	KeyTasks,
	KeyRewards,
	KeyCompletions,
	KeyRedemptions,
	KeyWeeklyStats,
	KeyWeeklyHistory,
	KeyLastDailyReset,
	KeyLastWeeklyReset,
	KeyPendingApprovals,
	KeyParentPassword,
}
