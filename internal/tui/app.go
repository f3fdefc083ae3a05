package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/chorechart/internal/clock"
	"github.com/sadopc/chorechart/internal/export"
	"github.com/sadopc/chorechart/internal/store"
)

// App is the root Bubble Tea model.
type App struct {
	svc    Services
	width  int
	height int

	activeView    viewState
	showHelp      bool
	exportPicking bool
	exportCursor  int

	session *parentSession
	board   boardModel
	rewards rewardsModel
	parent  parentModel
	catalog catalogModel
	history historyModel

	changes     <-chan struct{}
	unsubscribe func()

	help          help.Model
	status        string
	statusIsError bool
	now           time.Time
}

// NewApp builds the root model and subscribes to store changes. Call Close
// once the program exits.
func NewApp(svc Services) App {
	h := help.New()
	h.ShowAll = false

	session := &parentSession{}
	changes, unsubscribe := svc.Store.Subscribe()

	return App{
		svc:         svc,
		activeView:  viewBoard,
		session:     session,
		board:       newBoardModel(svc),
		rewards:     newRewardsModel(svc),
		parent:      newParentModel(svc, session),
		catalog:     newCatalogModel(svc, session),
		history:     newHistoryModel(svc),
		changes:     changes,
		unsubscribe: unsubscribe,
		help:        h,
		now:         svc.Calendar.Now(),
	}
}

// Close stops listening for store changes.
func (a App) Close() {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
}

func (a App) Init() tea.Cmd {
	return tea.Batch(
		a.board.Init(),
		a.parent.refresh(),
		waitForChange(a.changes),
		tickCmd(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		contentHeight := a.height - 4 // header + footer
		a.board.setSize(a.width, contentHeight)
		a.rewards.setSize(a.width, contentHeight)
		a.parent.setSize(a.width, contentHeight)
		a.catalog.setSize(a.width, contentHeight)
		a.history.setSize(a.width, contentHeight)
		return a, nil

	case tea.KeyMsg:
		if a.exportPicking {
			return a.updateExportPicker(msg)
		}

		// If a child view is capturing input (e.g. form), delegate first.
		if a.isFormActive() {
			return a.updateActiveView(msg)
		}

		switch {
		case key.Matches(msg, keys.Export):
			a.exportPicking = true
			a.exportCursor = 0
			return a, nil
		case key.Matches(msg, keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, keys.Help):
			a.showHelp = !a.showHelp
			a.help.ShowAll = a.showHelp
			return a, nil
		case key.Matches(msg, keys.Tab1):
			a.activeView = viewBoard
			return a, a.refreshCurrentView()
		case key.Matches(msg, keys.Tab2):
			a.activeView = viewRewards
			return a, a.refreshCurrentView()
		case key.Matches(msg, keys.Tab3):
			a.activeView = viewParent
			return a, a.refreshCurrentView()
		case key.Matches(msg, keys.Tab4):
			a.activeView = viewCatalog
			return a, a.refreshCurrentView()
		case key.Matches(msg, keys.Tab5):
			a.activeView = viewHistory
			return a, a.refreshCurrentView()
		case key.Matches(msg, keys.Tab):
			a.activeView = (a.activeView + 1) % viewState(len(viewNames))
			return a, a.refreshCurrentView()
		}

	case tickMsg:
		a.now = time.Time(msg)
		return a, tickCmd()

	case storeChangedMsg:
		return a, tea.Batch(a.refreshAll(), waitForChange(a.changes))

	case statusMsg:
		a.status = msg.text
		a.statusIsError = msg.isError
		return a, nil

	case exportDoneMsg:
		a.status = "Exported to " + msg.path
		a.statusIsError = false
		a.exportPicking = false
		return a, nil

	// Data messages go to their owning view whichever tab is showing.
	case boardDataMsg, tapResultMsg, verifyResultMsg:
		var cmd tea.Cmd
		a.board, cmd = a.board.update(msg)
		return a, cmd
	case rewardsDataMsg, redeemResultMsg:
		var cmd tea.Cmd
		a.rewards, cmd = a.rewards.update(msg)
		return a, cmd
	case parentDataMsg, parentAuthMsg, decisionMsg:
		var cmd tea.Cmd
		a.parent, cmd = a.parent.update(msg)
		return a, cmd
	case catalogDataMsg:
		var cmd tea.Cmd
		a.catalog, cmd = a.catalog.update(msg)
		return a, cmd
	case historyDataMsg:
		var cmd tea.Cmd
		a.history, cmd = a.history.update(msg)
		return a, cmd
	}

	return a.updateActiveView(msg)
}

func (a App) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.activeView {
	case viewBoard:
		a.board, cmd = a.board.update(msg)
	case viewRewards:
		a.rewards, cmd = a.rewards.update(msg)
	case viewParent:
		a.parent, cmd = a.parent.update(msg)
	case viewCatalog:
		a.catalog, cmd = a.catalog.update(msg)
	case viewHistory:
		a.history, cmd = a.history.update(msg)
	}
	return a, cmd
}

// isFormActive reports whether the active view wants every key, including
// the ones the app would otherwise treat as global.
func (a App) isFormActive() bool {
	switch a.activeView {
	case viewBoard:
		return a.board.formActive || a.board.verifying != nil
	case viewParent:
		return a.parent.formActive
	case viewCatalog:
		return a.catalog.formActive
	}
	return false
}

func (a App) refreshCurrentView() tea.Cmd {
	switch a.activeView {
	case viewBoard:
		return a.board.loadData()
	case viewRewards:
		return a.rewards.refresh()
	case viewParent:
		return a.parent.refresh()
	case viewCatalog:
		return a.catalog.refresh()
	case viewHistory:
		return a.history.refresh()
	}
	return nil
}

func (a App) refreshAll() tea.Cmd {
	return tea.Batch(
		a.board.loadData(),
		a.rewards.refresh(),
		a.parent.refresh(),
		a.catalog.refresh(),
		a.history.refresh(),
	)
}

func (a App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	header := a.renderHeader()
	footer := a.renderFooter()

	var content string
	switch a.activeView {
	case viewBoard:
		content = a.board.view()
	case viewRewards:
		content = a.rewards.view()
	case viewParent:
		content = a.parent.view()
	case viewCatalog:
		content = a.catalog.view()
	case viewHistory:
		content = a.history.view()
	}

	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	contentHeight := max(a.height-headerHeight-footerHeight, 1)

	if a.exportPicking {
		content = a.renderExportPicker()
	}

	content = lipgloss.NewStyle().
		Width(a.width).
		Height(contentHeight).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (a App) renderHeader() string {
	var tabs []string
	for i, name := range viewNames {
		if viewState(i) == a.activeView {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}

	tabRow := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render("chorechart")
	gap := max(a.width-lipgloss.Width(title)-lipgloss.Width(tabRow)-4, 1)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return headerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Bottom, title, spacer, tabRow),
	)
}

func (a App) renderFooter() string {
	helpView := a.help.View(keys)

	status := ""
	if a.status != "" {
		if a.statusIsError {
			status = errorStyle.Render(" " + a.status)
		} else {
			status = mutedStyle.Render(" " + a.status)
		}
	}

	countdown := highlightStyle.Render(" ↻ " + formatCountdown(untilMidnight(a.svc.Calendar, a.now)))
	if a.session.loggedIn {
		countdown = accentStyle.Render(" 🔓") + countdown
	}

	left := footerStyle.Render(helpView)
	right := countdown + status

	gap := max(a.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Bottom, left, spacer, right)
}

func (a App) renderExportPicker() string {
	title := titleStyle.Render("Export Format")
	formats := []string{"CSV (redemptions)", "JSON (redemptions + weeks)"}
	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")
	for i, f := range formats {
		cursor := "  "
		style := normalItemStyle
		if i == a.exportCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+f))
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: export  esc: cancel"))

	w := a.width - 4
	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (a App) updateExportPicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if a.exportCursor > 0 {
			a.exportCursor--
		}
	case key.Matches(msg, keys.Down):
		if a.exportCursor < 1 {
			a.exportCursor++
		}
	case key.Matches(msg, keys.Enter):
		a.exportPicking = false
		return a, a.doExport(a.exportCursor)
	case key.Matches(msg, keys.Back):
		a.exportPicking = false
	}
	return a, nil
}

func (a App) doExport(format int) tea.Cmd {
	svc := a.svc
	return func() tea.Msg {
		home, err := os.UserHomeDir()
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Export error: %v", err), isError: true}
		}
		path, err := ExportTo(svc, format == 1, home)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Export error: %v", err), isError: true}
		}
		return exportDoneMsg{path: path}
	}
}

// ExportTo writes a dated export file into dir and returns its path.
func ExportTo(svc Services, asJSON bool, dir string) (string, error) {
	redemptions, err := svc.Ledger.Redemptions("")
	if err != nil {
		return "", err
	}
	children, err := store.Children(svc.Store)
	if err != nil {
		return "", err
	}
	loc := svc.Calendar.Location()
	dateStr := svc.Calendar.Now().Format(clock.DateLayout)

	if !asJSON {
		path := filepath.Join(dir, fmt.Sprintf("chorechart-export-%s.csv", dateStr))
		if err := export.ToCSV(redemptions, children, loc, path); err != nil {
			return "", fmt.Errorf("csv: %w", err)
		}
		return path, nil
	}

	weeks, err := svc.Resets.Weeks()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("chorechart-export-%s.json", dateStr))
	if err := export.ToJSON(redemptions, weeks, children, loc, path); err != nil {
		return "", fmt.Errorf("json: %w", err)
	}
	return path, nil
}
