package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/chorechart/internal/approval"
	"github.com/sadopc/chorechart/internal/clock"
	"github.com/sadopc/chorechart/internal/ledger"
	"github.com/sadopc/chorechart/internal/reset"
	"github.com/sadopc/chorechart/internal/store"
)

// Services bundles what the views read and write through.
type Services struct {
	Store    *store.Store
	Calendar *clock.Calendar
	Ledger   *ledger.Ledger
	Workflow *approval.Workflow
	Resets   *reset.Engine
}

// NewServices wires the domain packages over one store.
func NewServices(s *store.Store, cal *clock.Calendar) Services {
	resets := reset.New(s, cal, nil)
	return Services{
		Store:    s,
		Calendar: cal,
		Ledger:   ledger.New(s, cal, nil),
		Workflow: approval.New(s, resets, nil),
		Resets:   resets,
	}
}

// viewState represents the currently active view.
type viewState int

const (
	viewBoard viewState = iota
	viewRewards
	viewParent
	viewCatalog
	viewHistory
)

var viewNames = []string{"Board", "Rewards", "Parent", "Catalog", "History"}

// --- Messages ---

type statusMsg struct {
	text    string
	isError bool
}

type tickMsg time.Time

type exportDoneMsg struct {
	path string
}

// storeChangedMsg arrives after any committed write, local or pulled from
// the merge server.
type storeChangedMsg struct{}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return storeChangedMsg{}
	}
}

func statusCmd(text string, isError bool) tea.Cmd {
	return func() tea.Msg { return statusMsg{text: text, isError: isError} }
}

// --- Helpers ---

func formatStars(n int) string {
	return fmt.Sprintf("⭐ %d", n)
}

func childBadge(c store.Child) string {
	dot := lipgloss.NewStyle().Foreground(lipgloss.Color(c.Color)).Bold(true)
	return dot.Render(c.Avatar + " " + c.Name)
}

func childByID(children []store.Child, id string) (store.Child, bool) {
	for _, c := range children {
		if c.ID == id {
			return c, true
		}
	}
	return store.Child{}, false
}

// wrapIndex moves i by delta within [0, n), wrapping around.
func wrapIndex(i, delta, n int) int {
	if n == 0 {
		return 0
	}
	return ((i+delta)%n + n) % n
}

// untilMidnight is the time left at now before the next daily reset.
func untilMidnight(cal *clock.Calendar, now time.Time) time.Duration {
	return cal.MidnightToday().AddDate(0, 0, 1).Sub(now)
}

func formatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %02dm", h, m)
}

func parseInstant(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
