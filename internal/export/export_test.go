package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sadopc/chorechart/internal/store"
)

func pacific(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatal(err)
	}
	return loc
}

func sampleData() ([]store.Redemption, []store.WeeklyStats, []store.Child) {
	redemptions := []store.Redemption{
		{ID: "a1", ChildID: "1", RewardID: "1", RewardName: "Dessert", Cost: 30, Date: "2024-01-17T17:00:00Z"},
		{ID: "a2", ChildID: "2", RewardID: "2", RewardName: "Screen Time", Cost: 50, Date: "2024-01-18T03:30:00.123Z"},
		{ID: "a3", ChildID: "9", RewardID: "3", RewardName: "Outdoor Play", Cost: 40, Date: "not a date"},
	}
	weeks := []store.WeeklyStats{
		{WeekStartDate: "2024-01-07", Children: map[string]*store.ChildWeek{
			"2": {TasksCompleted: 4, PointsEarned: 45},
			"1": {TasksCompleted: 6, PointsEarned: 70},
		}},
		{WeekStartDate: "2024-01-14", Children: map[string]*store.ChildWeek{}},
	}
	return redemptions, weeks, store.DefaultChildren
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return records
}

// ============================================================
// CSV
// ============================================================

func TestToCSV(t *testing.T) {
	redemptions, _, children := sampleData()
	path := filepath.Join(t.TempDir(), "test.csv")

	if err := ToCSV(redemptions, children, pacific(t), path); err != nil {
		t.Fatalf("ToCSV: %v", err)
	}
	records := readCSV(t, path)

	// header + 3 data rows
	if len(records) != 4 {
		t.Fatalf("expected 4 rows (1 header + 3 data), got %d", len(records))
	}

	expectedHeader := []string{"ID", "Child", "Reward", "Cost", "Date"}
	for i, h := range expectedHeader {
		if records[0][i] != h {
			t.Fatalf("header[%d] = %q, want %q", i, records[0][i], h)
		}
	}

	row := records[1]
	if row[0] != "a1" || row[1] != "Child 1" || row[2] != "Dessert" || row[3] != "30" {
		t.Fatalf("unexpected first row %v", row)
	}
	if row[4] != "2024-01-17T09:00:00-08:00" {
		t.Fatalf("Date = %q, want civil time", row[4])
	}

	// 03:30 UTC on the 18th is still the 17th in Pacific time.
	if records[2][4] != "2024-01-17T19:30:00-08:00" {
		t.Fatalf("Date = %q", records[2][4])
	}

	// Unknown child and unparseable date.
	if records[3][1] != "Unknown" {
		t.Fatalf("expected 'Unknown' for missing child, got %q", records[3][1])
	}
	if records[3][4] != "not a date" {
		t.Fatalf("unparseable date should pass through, got %q", records[3][4])
	}
}

func TestToCSVEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	if err := ToCSV(nil, nil, nil, path); err != nil {
		t.Fatal(err)
	}
	if records := readCSV(t, path); len(records) != 1 {
		t.Fatalf("expected 1 row (header only), got %d", len(records))
	}
}

func TestToCSVBadPath(t *testing.T) {
	if err := ToCSV(nil, nil, nil, "/nonexistent/dir/file.csv"); err == nil {
		t.Fatal("expected error for bad path")
	}
}

func TestToCSVSpecialCharacters(t *testing.T) {
	redemptions := []store.Redemption{
		{ID: "x", ChildID: "1", RewardName: `Trip to "the park", maybe`, Cost: 5, Date: "2024-01-17T17:00:00Z"},
	}
	children := []store.Child{{ID: "1", Name: `Sam, "the kid"`}}
	path := filepath.Join(t.TempDir(), "special.csv")

	if err := ToCSV(redemptions, children, nil, path); err != nil {
		t.Fatal(err)
	}
	records := readCSV(t, path)
	if records[1][1] != `Sam, "the kid"` {
		t.Fatalf("child name mangled: %q", records[1][1])
	}
	if records[1][2] != `Trip to "the park", maybe` {
		t.Fatalf("reward name mangled: %q", records[1][2])
	}
}

// ============================================================
// JSON
// ============================================================

func TestToJSON(t *testing.T) {
	redemptions, weeks, children := sampleData()
	path := filepath.Join(t.TempDir(), "test.json")

	if err := ToJSON(redemptions, weeks, children, pacific(t), path); err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var result jsonExport
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if result.Count != 3 || len(result.Redemptions) != 3 {
		t.Fatalf("count = %d, redemptions = %d, want 3", result.Count, len(result.Redemptions))
	}
	if _, err := time.Parse(time.RFC3339, result.ExportedAt); err != nil {
		t.Fatalf("exported_at is not valid RFC3339: %q", result.ExportedAt)
	}

	r := result.Redemptions[0]
	if r.Child != "Child 1" || r.Reward != "Dessert" || r.Cost != 30 {
		t.Fatalf("unexpected redemption %+v", r)
	}

	if len(result.Weeks) != 2 {
		t.Fatalf("weeks = %d, want 2", len(result.Weeks))
	}
	first := result.Weeks[0]
	if first.WeekStart != "2024-01-07" || len(first.Children) != 2 {
		t.Fatalf("unexpected first week %+v", first)
	}
	if first.Children[0].ChildID != "1" || first.Children[0].PointsEarned != 70 {
		t.Fatalf("children should be ordered by id, got %+v", first.Children)
	}
	if result.Weeks[1].Children == nil {
		t.Fatal("empty week should have an empty children list")
	}
}

func TestToJSONEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	if err := ToJSON(nil, nil, nil, nil, path); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `"redemptions": []`) {
		t.Fatalf("empty export should carry an empty list, got %s", data)
	}
}

func TestToJSONBadPath(t *testing.T) {
	if err := ToJSON(nil, nil, nil, nil, "/nonexistent/dir/file.json"); err == nil {
		t.Fatal("expected error for bad path")
	}
}

func TestToJSONPrettyPrinted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pretty.json")
	ToJSON(nil, nil, nil, nil, path)

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "\n") {
		t.Fatal("JSON should be pretty-printed with newlines")
	}
	if !strings.Contains(string(data), "  ") {
		t.Fatal("JSON should be indented with spaces")
	}
}

// ============================================================
// formatDate (internal helper)
// ============================================================

func TestFormatDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2024-01-17T17:00:00Z", "2024-01-17T17:00:00Z"},
		{"2024-01-17T17:00:00.999Z", "2024-01-17T17:00:00Z"},
		{"", ""},
		{"garbage", "garbage"},
	}
	for _, tt := range tests {
		if got := formatDate(tt.in, nil); got != tt.want {
			t.Errorf("formatDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
