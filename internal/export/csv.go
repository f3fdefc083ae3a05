package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sadopc/chorechart/internal/store"
)

// ToCSV writes the redemption log, one row per redemption, with dates shown
// in loc.
func ToCSV(redemptions []store.Redemption, children []store.Child, loc *time.Location, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	// Header
	if err := w.Write([]string{"ID", "Child", "Reward", "Cost", "Date"}); err != nil {
		return err
	}

	names := childNames(children)
	for _, r := range redemptions {
		row := []string{
			r.ID,
			childName(names, r.ChildID),
			r.RewardName,
			strconv.Itoa(r.Cost),
			formatDate(r.Date, loc),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func childNames(children []store.Child) map[string]string {
	names := make(map[string]string, len(children))
	for _, c := range children {
		names[c.ID] = c.Name
	}
	return names
}

func childName(names map[string]string, id string) string {
	if n, ok := names[id]; ok {
		return n
	}
	return "Unknown"
}

// formatDate renders a stored RFC 3339 instant in loc. Dates that do not
// parse are passed through unchanged.
func formatDate(date string, loc *time.Location) string {
	t, err := time.Parse(time.RFC3339Nano, date)
	if err != nil {
		return date
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(time.RFC3339)
}
