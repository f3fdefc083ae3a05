package export

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/sadopc/chorechart/internal/store"
)

type jsonExport struct {
	ExportedAt  string           `json:"exported_at"`
	Count       int              `json:"count"`
	Redemptions []jsonRedemption `json:"redemptions"`
	Weeks       []jsonWeek       `json:"weeks"`
}

type jsonRedemption struct {
	ID       string `json:"id"`
	Child    string `json:"child"`
	ChildID  string `json:"child_id"`
	Reward   string `json:"reward"`
	RewardID string `json:"reward_id"`
	Cost     int    `json:"cost"`
	Date     string `json:"date"`
}

type jsonWeek struct {
	WeekStart string          `json:"week_start"`
	Children  []jsonChildWeek `json:"children"`
}

type jsonChildWeek struct {
	Child          string `json:"child"`
	ChildID        string `json:"child_id"`
	TasksCompleted int    `json:"tasks_completed"`
	PointsEarned   int    `json:"points_earned"`
}

// ToJSON writes the redemption log together with the weekly summaries,
// oldest week first as given.
func ToJSON(redemptions []store.Redemption, weeks []store.WeeklyStats, children []store.Child, loc *time.Location, path string) error {
	export := jsonExport{
		ExportedAt:  time.Now().UTC().Format(time.RFC3339),
		Count:       len(redemptions),
		Redemptions: []jsonRedemption{},
		Weeks:       []jsonWeek{},
	}

	names := childNames(children)
	for _, r := range redemptions {
		export.Redemptions = append(export.Redemptions, jsonRedemption{
			ID:       r.ID,
			Child:    childName(names, r.ChildID),
			ChildID:  r.ChildID,
			Reward:   r.RewardName,
			RewardID: r.RewardID,
			Cost:     r.Cost,
			Date:     formatDate(r.Date, loc),
		})
	}

	for _, w := range weeks {
		jw := jsonWeek{WeekStart: w.WeekStartDate, Children: []jsonChildWeek{}}
		ids := make([]string, 0, len(w.Children))
		for id := range w.Children {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			cw := w.Children[id]
			if cw == nil {
				continue
			}
			jw.Children = append(jw.Children, jsonChildWeek{
				Child:          childName(names, id),
				ChildID:        id,
				TasksCompleted: cw.TasksCompleted,
				PointsEarned:   cw.PointsEarned,
			})
		}
		export.Weeks = append(export.Weeks, jw)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	return nil
}
