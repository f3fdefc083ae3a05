package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/chorechart/internal/clock"
	"github.com/sadopc/chorechart/internal/store"
)

type historyMode int

const (
	historyWeekly historyMode = iota
	historyDaily
)

type historyModel struct {
	svc    Services
	width  int
	height int

	mode     historyMode
	weeks    []store.WeeklyStats // oldest first, live week last
	children []store.Child

	chart barchart.Model
}

func newHistoryModel(svc Services) historyModel {
	return historyModel{
		svc:   svc,
		chart: barchart.New(60, 12),
	}
}

func (h *historyModel) setSize(w, hgt int) {
	h.width = w
	h.height = hgt
}

type historyDataMsg struct {
	weeks    []store.WeeklyStats
	children []store.Child
}

func (h historyModel) refresh() tea.Cmd {
	svc := h.svc
	return func() tea.Msg {
		weeks, err := svc.Resets.Weeks()
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		children, err := store.Children(svc.Store)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		return historyDataMsg{weeks: weeks, children: children}
	}
}

func (h historyModel) update(msg tea.Msg) (historyModel, tea.Cmd) {
	switch msg := msg.(type) {
	case historyDataMsg:
		h.weeks = msg.weeks
		h.children = msg.children
		h.buildChart()
		return h, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Left) || key.Matches(msg, keys.Right) {
			if h.mode == historyWeekly {
				h.mode = historyDaily
			} else {
				h.mode = historyWeekly
			}
			h.buildChart()
		}
	}
	return h, nil
}

// currentWeek is the live week, or nil before the first weekly reset.
func (h historyModel) currentWeek() *store.WeeklyStats {
	if len(h.weeks) == 0 {
		return nil
	}
	last := h.weeks[len(h.weeks)-1]
	if last.WeekStartDate != h.svc.Calendar.WeekStartDate() {
		return nil
	}
	return &last
}

func (h *historyModel) buildChart() {
	chartWidth := max(h.width-8, 20)
	chartHeight := 12
	if h.height > 30 {
		chartHeight = 16
	}
	h.chart = barchart.New(chartWidth, chartHeight)

	var bars []barchart.BarData
	switch h.mode {
	case historyDaily:
		bars = h.dailyBars()
	default:
		bars = h.weeklyBars()
	}
	h.chart.PushAll(bars)
	h.chart.Draw()
}

func (h historyModel) childValues(week *store.WeeklyStats, points func(*store.ChildWeek) int) []barchart.BarValue {
	var values []barchart.BarValue
	for _, c := range h.children {
		cw := week.Children[c.ID]
		if cw == nil {
			continue
		}
		if v := points(cw); v > 0 {
			values = append(values, barchart.BarValue{
				Name:  c.Name,
				Value: float64(v),
				Style: lipgloss.NewStyle().Foreground(lipgloss.Color(c.Color)),
			})
		}
	}
	if len(values) == 0 {
		values = []barchart.BarValue{{Name: "", Value: 0, Style: lipgloss.NewStyle().Foreground(colorSubtle)}}
	}
	return values
}

func (h historyModel) weeklyBars() []barchart.BarData {
	var bars []barchart.BarData
	for i := range h.weeks {
		week := &h.weeks[i]
		label := week.WeekStartDate
		if t, err := time.Parse(clock.DateLayout, week.WeekStartDate); err == nil {
			label = t.Format("Jan 02")
		}
		bars = append(bars, barchart.BarData{
			Label:  label,
			Values: h.childValues(week, func(cw *store.ChildWeek) int { return cw.PointsEarned }),
		})
	}
	return bars
}

func (h historyModel) dailyBars() []barchart.BarData {
	week := h.currentWeek()
	start := h.svc.Calendar.WeekStart()

	var bars []barchart.BarData
	for d := 0; d < 7; d++ {
		day := start.AddDate(0, 0, d)
		date := day.Format(clock.DateLayout)
		values := []barchart.BarValue{{Name: "", Value: 0, Style: lipgloss.NewStyle().Foreground(colorSubtle)}}
		if week != nil {
			values = h.childValues(week, func(cw *store.ChildWeek) int { return cw.DailyHistory[date].Points })
		}
		bars = append(bars, barchart.BarData{Label: day.Format("Mon"), Values: values})
	}
	return bars
}

func (h historyModel) view() string {
	w := h.width - 4

	weeklyTab := inactiveTabStyle.Render("Weekly")
	dailyTab := inactiveTabStyle.Render("This week")
	if h.mode == historyWeekly {
		weeklyTab = activeTabStyle.Render("Weekly")
	} else {
		dailyTab = activeTabStyle.Render("This week")
	}
	modeTabs := lipgloss.JoinHorizontal(lipgloss.Bottom, weeklyTab, dailyTab)

	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("History"), "  ", modeTabs, "  ",
		mutedStyle.Render(h.svc.Calendar.WeekRangeDisplay()),
	)

	nav := mutedStyle.Render("  ←/→: switch mode")

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header, "", h.chart.View(), "", h.renderLegend(), "", h.renderSummaryTable(w), "", nav,
		),
	)
}

func (h historyModel) renderSummaryTable(w int) string {
	if len(h.weeks) == 0 {
		return mutedStyle.Render("  No weeks recorded yet")
	}

	var rows []string
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-12s %-20s %8s %8s", "Week of", "Child", "Tasks", "Stars")))
	rows = append(rows, mutedStyle.Render("  "+strings.Repeat("─", min(w-6, 52))))

	// Newest first in the table.
	for i := len(h.weeks) - 1; i >= 0; i-- {
		week := h.weeks[i]
		for _, c := range h.children {
			cw := week.Children[c.ID]
			if cw == nil {
				continue
			}
			dot := lipgloss.NewStyle().Foreground(lipgloss.Color(c.Color)).Render("●")
			rows = append(rows, fmt.Sprintf("  %-12s %s %-18s %8d %8d",
				week.WeekStartDate, dot, c.Name, cw.TasksCompleted, cw.PointsEarned))
		}
	}
	return strings.Join(rows, "\n")
}

func (h historyModel) renderLegend() string {
	var items []string
	for _, c := range h.children {
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color(c.Color)).Render("●")
		items = append(items, fmt.Sprintf("%s %s", dot, c.Name))
	}
	if len(items) == 0 {
		return ""
	}
	return "  " + strings.Join(items, "  ")
}
