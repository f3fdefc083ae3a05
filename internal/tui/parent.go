package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/chorechart/internal/approval"
	"github.com/sadopc/chorechart/internal/store"
)

// parentSession is shared by the views that sit behind the parent password.
// It is never persisted; restarting the app logs the parent out.
type parentSession struct {
	loggedIn bool
}

type passwordForm int

const (
	formLogin passwordForm = iota
	formSetup
)

// pendingItem is one row of the approvals queue.
type pendingItem struct {
	child store.Child
	task  store.Task
}

type parentModel struct {
	svc     Services
	session *parentSession
	width   int
	height  int

	hasPassword bool
	items       []pendingItem
	children    []store.Child
	balances    map[string]int
	cursor      int

	formActive bool
	form       *huh.Form
	formKind   passwordForm

	// Form values as pointers (survive value copies)
	password *string
	confirm  *string
}

func newParentModel(svc Services, session *parentSession) parentModel {
	pw, confirm := "", ""
	return parentModel{
		svc:      svc,
		session:  session,
		balances: map[string]int{},
		password: &pw,
		confirm:  &confirm,
	}
}

func (p *parentModel) setSize(w, h int) {
	p.width = w
	p.height = h
}

type parentDataMsg struct {
	hasPassword bool
	items       []pendingItem
	children    []store.Child
	balances    map[string]int
}

type parentAuthMsg struct {
	kind passwordForm
	ok   bool
	err  error
}

type decisionMsg struct {
	item     pendingItem
	approved bool
	err      error
}

func (p parentModel) refresh() tea.Cmd {
	svc := p.svc
	return func() tea.Msg {
		has, err := svc.Workflow.HasParentPassword()
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		children, err := store.Children(svc.Store)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		tasks, err := store.Tasks(svc.Store)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		pending, err := svc.Workflow.Pending()
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		balances, err := svc.Ledger.Balances()
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		return parentDataMsg{
			hasPassword: has,
			items:       pendingItems(children, tasks, pending),
			children:    children,
			balances:    balances,
		}
	}
}

// pendingItems flattens the queue in child order. Entries for deleted tasks
// stay visible under their id so a parent can still clear them.
func pendingItems(children []store.Child, tasks []store.Task, pending store.PendingApprovals) []pendingItem {
	var items []pendingItem
	for _, c := range children {
		for _, id := range pending[c.ID] {
			t, ok := store.FindTask(tasks, id)
			if !ok {
				t = store.Task{ID: id, Name: "Task " + id, Emoji: "❔"}
			}
			items = append(items, pendingItem{child: c, task: t})
		}
	}
	return items
}

func (p parentModel) update(msg tea.Msg) (parentModel, tea.Cmd) {
	if p.formActive && p.form != nil {
		return p.updateForm(msg)
	}

	switch msg := msg.(type) {
	case parentDataMsg:
		p.hasPassword = msg.hasPassword
		p.items = msg.items
		p.children = msg.children
		p.balances = msg.balances
		if p.cursor >= len(p.items) {
			p.cursor = max(0, len(p.items)-1)
		}
		return p, nil

	case parentAuthMsg:
		switch {
		case errors.Is(msg.err, approval.ErrPasswordMismatch):
			return p, statusCmd("Passwords don't match", true)
		case errors.Is(msg.err, approval.ErrPasswordTooShort):
			return p, statusCmd(fmt.Sprintf("Password must be at least %d characters", approval.MinPasswordLength), true)
		case msg.err != nil:
			return p, statusCmd(fmt.Sprintf("Error: %v", msg.err), true)
		case !msg.ok:
			return p, statusCmd("Incorrect password", true)
		}
		p.session.loggedIn = true
		text := "Welcome back!"
		if msg.kind == formSetup {
			text = "Parent password set"
		}
		return p, tea.Batch(p.refresh(), statusCmd(text, false))

	case decisionMsg:
		if msg.err != nil {
			return p, statusCmd(fmt.Sprintf("Error: %v", msg.err), true)
		}
		verb := "Rejected"
		if msg.approved {
			verb = "Approved"
		}
		return p, tea.Batch(p.refresh(),
			statusCmd(fmt.Sprintf("%s %s for %s", verb, msg.item.task.Name, msg.item.child.Name), false))

	case tea.KeyMsg:
		if !p.session.loggedIn {
			if key.Matches(msg, keys.Login) {
				return p.showForm()
			}
			return p, nil
		}

		switch {
		case key.Matches(msg, keys.Up):
			if p.cursor > 0 {
				p.cursor--
			}
		case key.Matches(msg, keys.Down):
			if p.cursor < len(p.items)-1 {
				p.cursor++
			}
		case key.Matches(msg, keys.Approve):
			if p.cursor < len(p.items) {
				return p, p.decide(p.items[p.cursor], true)
			}
		case key.Matches(msg, keys.Reject):
			if p.cursor < len(p.items) {
				return p, p.decide(p.items[p.cursor], false)
			}
		case key.Matches(msg, keys.Logout):
			p.session.loggedIn = false
			return p, statusCmd("Logged out", false)
		}
	}
	return p, nil
}

func (p parentModel) decide(item pendingItem, approve bool) tea.Cmd {
	wf := p.svc.Workflow
	return func() tea.Msg {
		var err error
		if approve {
			_, err = wf.Approve(item.child.ID, item.task.ID)
		} else {
			err = wf.Reject(item.child.ID, item.task.ID)
		}
		return decisionMsg{item: item, approved: approve, err: err}
	}
}

func (p parentModel) showForm() (parentModel, tea.Cmd) {
	*p.password = ""
	*p.confirm = ""

	if p.hasPassword {
		p.formKind = formLogin
		p.form = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Parent password").
					EchoMode(huh.EchoModePassword).
					Value(p.password),
			).Title("Parent login"),
		).WithShowHelp(true).WithShowErrors(true)
	} else {
		p.formKind = formSetup
		p.form = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("New password").
					EchoMode(huh.EchoModePassword).
					Validate(func(s string) error {
						if len(s) < approval.MinPasswordLength {
							return fmt.Errorf("at least %d characters", approval.MinPasswordLength)
						}
						return nil
					}).
					Value(p.password),
				huh.NewInput().
					Title("Confirm password").
					EchoMode(huh.EchoModePassword).
					Value(p.confirm),
			).Title("Set up a parent password"),
		).WithShowHelp(true).WithShowErrors(true)
	}

	p.formActive = true
	return p, p.form.Init()
}

func (p parentModel) updateForm(msg tea.Msg) (parentModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			p.formActive = false
			p.form = nil
			return p, nil
		}
	}

	form, cmd := p.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		p.form = f
	}

	if p.form.State == huh.StateCompleted {
		p.formActive = false
		p.form = nil
		return p, p.authenticate(p.formKind, *p.password, *p.confirm)
	}

	return p, cmd
}

func (p parentModel) authenticate(kind passwordForm, pw, confirm string) tea.Cmd {
	wf := p.svc.Workflow
	return func() tea.Msg {
		if kind == formSetup {
			if err := wf.SetParentPassword(pw, confirm); err != nil {
				return parentAuthMsg{kind: kind, err: err}
			}
			return parentAuthMsg{kind: kind, ok: true}
		}
		ok, err := wf.CheckParentPassword(pw)
		return parentAuthMsg{kind: kind, ok: ok, err: err}
	}
}

func (p parentModel) view() string {
	w := p.width - 4

	if p.formActive && p.form != nil {
		return activePanelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("Parent"), "", p.form.View()),
		)
	}

	if !p.session.loggedIn {
		hint := "Press enter to log in"
		if !p.hasPassword {
			hint = "Press enter to set a parent password"
		}
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("🔒 Parent area"), "", mutedStyle.Render(hint)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, p.renderQueue(w), p.renderBalances(w))
}

func (p parentModel) renderQueue(w int) string {
	title := titleStyle.Render(fmt.Sprintf("Waiting for approval (%d)", len(p.items)))
	rows := []string{title}
	if len(p.items) == 0 {
		rows = append(rows, mutedStyle.Render("  All caught up"))
	}
	for i, it := range p.items {
		cursor := "  "
		style := normalItemStyle
		if i == p.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor)+childBadge(it.child)+
			style.Render(fmt.Sprintf("  %s %s", it.task.Emoji, it.task.Name))+
			"  "+starsStyle.Render(fmt.Sprintf("+%d ⭐", it.task.Points)))
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  a: approve  x: reject  o: log out"))

	style := panelStyle
	if len(p.items) > 0 {
		style = pendingPanelStyle
	}
	return style.Width(w).Render(strings.Join(rows, "\n"))
}

func (p parentModel) renderBalances(w int) string {
	rows := []string{
		titleStyle.Render("Balances") + "  " + mutedStyle.Render(p.svc.Calendar.WeekRangeDisplay()),
	}
	for _, c := range p.children {
		label := lipgloss.NewStyle().Width(24).Render(childBadge(c))
		rows = append(rows, "  "+label+" "+starsStyle.Render(formatStars(p.balances[c.ID])))
	}
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
