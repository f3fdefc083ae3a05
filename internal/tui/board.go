package tui

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/chorechart/internal/approval"
	"github.com/sadopc/chorechart/internal/ledger"
	"github.com/sadopc/chorechart/internal/store"
)

// boardModel is the kids' daily checklist.
type boardModel struct {
	svc    Services
	width  int
	height int

	children []store.Child
	tasks    []store.Task
	book     ledger.Book
	pending  store.PendingApprovals
	balances map[string]int
	week     *store.WeeklyStats

	childIdx int
	cursor   int

	// verifying is the task waiting for "send to parent" or a PIN.
	verifying *store.Task

	formActive bool
	form       *huh.Form
	pin        *string
}

func newBoardModel(svc Services) boardModel {
	pin := ""
	return boardModel{
		svc:      svc,
		book:     ledger.Book{},
		pending:  store.PendingApprovals{},
		balances: map[string]int{},
		week:     &store.WeeklyStats{Children: map[string]*store.ChildWeek{}},
		pin:      &pin,
	}
}

func (b boardModel) Init() tea.Cmd {
	return b.loadData()
}

func (b *boardModel) setSize(w, h int) {
	b.width = w
	b.height = h
}

type boardDataMsg struct {
	children []store.Child
	tasks    []store.Task
	book     ledger.Book
	pending  store.PendingApprovals
	balances map[string]int
	week     *store.WeeklyStats
}

type tapResultMsg struct {
	childID string
	task    store.Task
	outcome approval.Outcome
}

type verifyResultMsg struct {
	task store.Task
	err  error
}

func (b boardModel) loadData() tea.Cmd {
	svc := b.svc
	return func() tea.Msg {
		children, err := store.Children(svc.Store)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		tasks, err := store.Tasks(svc.Store)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		book, err := svc.Ledger.Book()
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		pending, err := svc.Workflow.Pending()
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		week, err := svc.Resets.Stats()
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}

		balances := make(map[string]int, len(children))
		for _, c := range children {
			balances[c.ID] = ledger.CalculatePoints(c.ID, book, tasks)
		}
		return boardDataMsg{
			children: children,
			tasks:    tasks,
			book:     book,
			pending:  pending,
			balances: balances,
			week:     week,
		}
	}
}

func (b boardModel) currentChild() (store.Child, bool) {
	if b.childIdx < len(b.children) {
		return b.children[b.childIdx], true
	}
	return store.Child{}, false
}

func (b boardModel) update(msg tea.Msg) (boardModel, tea.Cmd) {
	if b.formActive && b.form != nil {
		return b.updateForm(msg)
	}

	switch msg := msg.(type) {
	case boardDataMsg:
		b.children = msg.children
		b.tasks = msg.tasks
		b.book = msg.book
		b.pending = msg.pending
		b.balances = msg.balances
		b.week = msg.week
		if b.childIdx >= len(b.children) {
			b.childIdx = 0
		}
		if b.cursor >= len(b.tasks) {
			b.cursor = max(0, len(b.tasks)-1)
		}
		return b, nil

	case tapResultMsg:
		switch msg.outcome {
		case approval.OutcomeNeedsVerification:
			t := msg.task
			b.verifying = &t
			return b, nil
		case approval.OutcomeCompleted:
			return b, tea.Batch(b.loadData(),
				statusCmd(fmt.Sprintf("Great job! +%d ⭐ for %s", msg.task.Points, msg.task.Name), false))
		case approval.OutcomeUndone:
			return b, tea.Batch(b.loadData(), statusCmd("Undid "+msg.task.Name, false))
		}
		return b, nil

	case verifyResultMsg:
		if errors.Is(msg.err, approval.ErrIncorrectPIN) {
			return b, statusCmd("Incorrect PIN. Try again!", true)
		}
		if msg.err != nil {
			return b, statusCmd(fmt.Sprintf("Error: %v", msg.err), true)
		}
		b.verifying = nil
		return b, tea.Batch(b.loadData(),
			statusCmd(fmt.Sprintf("Verified! +%d ⭐ for %s", msg.task.Points, msg.task.Name), false))

	case tea.KeyMsg:
		if b.verifying != nil {
			return b.updateVerify(msg)
		}

		switch {
		case key.Matches(msg, keys.Up):
			if b.cursor > 0 {
				b.cursor--
			}
		case key.Matches(msg, keys.Down):
			if b.cursor < len(b.tasks)-1 {
				b.cursor++
			}
		case key.Matches(msg, keys.Left):
			b.childIdx = wrapIndex(b.childIdx, -1, len(b.children))
		case key.Matches(msg, keys.Right):
			b.childIdx = wrapIndex(b.childIdx, 1, len(b.children))
		case key.Matches(msg, keys.Toggle):
			child, ok := b.currentChild()
			if !ok || b.cursor >= len(b.tasks) {
				return b, nil
			}
			return b, b.tap(child.ID, b.tasks[b.cursor])
		}
	}
	return b, nil
}

func (b boardModel) tap(childID string, task store.Task) tea.Cmd {
	wf := b.svc.Workflow
	return func() tea.Msg {
		outcome, err := wf.Tap(childID, task.ID)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		return tapResultMsg{childID: childID, task: task, outcome: outcome}
	}
}

func (b boardModel) updateVerify(msg tea.KeyMsg) (boardModel, tea.Cmd) {
	child, ok := b.currentChild()
	if !ok {
		b.verifying = nil
		return b, nil
	}
	task := *b.verifying

	switch {
	case key.Matches(msg, keys.Send):
		b.verifying = nil
		wf := b.svc.Workflow
		return b, func() tea.Msg {
			if err := wf.Submit(child.ID, task.ID); err != nil {
				return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
			}
			return statusMsg{text: "Sent " + task.Name + " to a parent for approval"}
		}
	case key.Matches(msg, keys.PIN):
		return b.showPINForm()
	case key.Matches(msg, keys.Back):
		b.verifying = nil
	}
	return b, nil
}

func (b boardModel) showPINForm() (boardModel, tea.Cmd) {
	*b.pin = ""
	b.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Parent PIN").
				EchoMode(huh.EchoModePassword).
				Value(b.pin),
		),
	).WithShowHelp(true).WithShowErrors(true)

	b.formActive = true
	return b, b.form.Init()
}

func (b boardModel) updateForm(msg tea.Msg) (boardModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			b.formActive = false
			b.form = nil
			return b, nil
		}
	}

	form, cmd := b.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		b.form = f
	}

	if b.form.State == huh.StateCompleted {
		b.formActive = false
		b.form = nil
		child, ok := b.currentChild()
		if !ok || b.verifying == nil {
			return b, nil
		}
		return b, b.verifyInstant(child.ID, *b.verifying, *b.pin)
	}

	return b, cmd
}

func (b boardModel) verifyInstant(childID string, task store.Task, pin string) tea.Cmd {
	wf := b.svc.Workflow
	return func() tea.Msg {
		_, err := wf.VerifyInstant(childID, task.ID, pin)
		return verifyResultMsg{task: task, err: err}
	}
}

func (b boardModel) isPending(childID, taskID string) bool {
	return slices.Contains(b.pending[childID], taskID)
}

func (b boardModel) view() string {
	if b.width < 20 {
		return "Terminal too small"
	}
	w := b.width - 4

	child, ok := b.currentChild()
	if !ok {
		return panelStyle.Width(w).Render(mutedStyle.Render("No children yet. Add them in the Catalog."))
	}

	top := b.renderChildPanel(child, w)

	var bottom string
	switch {
	case b.formActive && b.form != nil:
		bottom = pendingPanelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("Parent is here!"), "", b.form.View()))
	case b.verifying != nil:
		bottom = b.renderVerifyPanel(w)
	default:
		bottom = b.renderTaskList(child, w)
	}
	return lipgloss.JoinVertical(lipgloss.Left, top, bottom)
}

func (b boardModel) renderChildPanel(child store.Child, w int) string {
	stars := starsStyle.Render(formatStars(b.balances[child.ID]))
	header := fmt.Sprintf("%s   %s", childBadge(child), stars)

	weekLine := mutedStyle.Render("This week: no tasks yet")
	if b.week != nil {
		if cw, ok := b.week.Children[child.ID]; ok && cw != nil {
			weekLine = mutedStyle.Render(fmt.Sprintf("This week: %d tasks, %d ⭐", cw.TasksCompleted, cw.PointsEarned))
		}
	}

	var names []string
	for i, c := range b.children {
		if i == b.childIdx {
			names = append(names, selectedItemStyle.Render(c.Avatar+" "+c.Name))
		} else {
			names = append(names, mutedStyle.Render(c.Avatar+" "+c.Name))
		}
	}
	picker := mutedStyle.Render("◀ ") + strings.Join(names, "  ") + mutedStyle.Render(" ▶")

	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, header, weekLine, "", picker))
}

func (b boardModel) renderTaskList(child store.Child, w int) string {
	title := titleStyle.Render("Today's Tasks")
	if len(b.tasks) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title, mutedStyle.Render("No tasks yet")))
	}

	var rows []string
	rows = append(rows, title)
	for i, t := range b.tasks {
		cursor := "  "
		style := normalItemStyle
		if i == b.cursor {
			cursor = "> "
			style = selectedItemStyle
		}

		label := fmt.Sprintf("%s %s", t.Emoji, t.Name)
		var suffix string
		switch {
		case b.book.Completed(child.ID, t.ID):
			label = doneStyle.Render(label)
			suffix = successStyle.Render("Done! ✅")
			if n := b.book.Count(child.ID, t.ID); n > 1 {
				suffix += mutedStyle.Render(fmt.Sprintf(" ×%d", n))
			}
		case b.isPending(child.ID, t.ID):
			suffix = pendingStyle.Render("⏳ waiting for parent")
		case t.RequiresApproval:
			suffix = warningStyle.Render(fmt.Sprintf("🛡️ +%d ⭐", t.Points))
		default:
			suffix = starsStyle.Render(fmt.Sprintf("+%d ⭐", t.Points))
		}
		rows = append(rows, style.Render(cursor)+style.Render(label)+"  "+suffix)
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  space: done/undo  ←/→: switch child"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (b boardModel) renderVerifyPanel(w int) string {
	t := b.verifying
	rows := []string{
		titleStyle.Render(fmt.Sprintf("%s %s needs a grown-up", t.Emoji, t.Name)),
		"",
		normalItemStyle.Render("  s: send to parent for approval"),
		normalItemStyle.Render("  p: parent is here (enter PIN)"),
		"",
		mutedStyle.Render("  esc: cancel"),
	}
	return pendingPanelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
