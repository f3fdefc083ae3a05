package tui

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/sadopc/chorechart/internal/store"
)

var childColors = []string{"#FF6B9D", "#4ECDC4", "#6C63FF", "#F39C12", "#2ECC71", "#E74C3C", "#9B59B6", "#3498DB"}

type catalogSection int

const (
	sectionTasks catalogSection = iota
	sectionRewards
	sectionChildren
)

var sectionNames = []string{"Tasks", "Rewards", "Children"}

// catalogModel edits the task, reward, and child lists. Parent only.
type catalogModel struct {
	svc     Services
	session *parentSession
	width   int
	height  int

	tasks    []store.Task
	rewards  []store.Reward
	children []store.Child

	section catalogSection
	cursor  int

	formActive bool
	form       *huh.Form

	// Form field pointers (survive value copies)
	formName     *string
	formAmount   *string
	formEmoji    *string
	formDesc     *string
	formColor    *string
	formApproval *bool
}

func newCatalogModel(svc Services, session *parentSession) catalogModel {
	name, amount, emoji, desc, color := "", "", "", "", childColors[0]
	approval := false
	return catalogModel{
		svc:          svc,
		session:      session,
		formName:     &name,
		formAmount:   &amount,
		formEmoji:    &emoji,
		formDesc:     &desc,
		formColor:    &color,
		formApproval: &approval,
	}
}

func (c *catalogModel) setSize(w, h int) {
	c.width = w
	c.height = h
}

type catalogDataMsg struct {
	tasks    []store.Task
	rewards  []store.Reward
	children []store.Child
}

func (c catalogModel) refresh() tea.Cmd {
	s := c.svc.Store
	return func() tea.Msg {
		tasks, err := store.Tasks(s)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		rewards, err := store.Rewards(s)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		children, err := store.Children(s)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		return catalogDataMsg{tasks: tasks, rewards: rewards, children: children}
	}
}

func (c catalogModel) itemCount() int {
	switch c.section {
	case sectionRewards:
		return len(c.rewards)
	case sectionChildren:
		return len(c.children)
	default:
		return len(c.tasks)
	}
}

func (c catalogModel) update(msg tea.Msg) (catalogModel, tea.Cmd) {
	if c.formActive && c.form != nil {
		return c.updateForm(msg)
	}

	switch msg := msg.(type) {
	case catalogDataMsg:
		c.tasks = msg.tasks
		c.rewards = msg.rewards
		c.children = msg.children
		if c.cursor >= c.itemCount() {
			c.cursor = max(0, c.itemCount()-1)
		}
		return c, nil

	case tea.KeyMsg:
		if !c.session.loggedIn {
			return c, nil
		}
		switch {
		case key.Matches(msg, keys.Up):
			if c.cursor > 0 {
				c.cursor--
			}
		case key.Matches(msg, keys.Down):
			if c.cursor < c.itemCount()-1 {
				c.cursor++
			}
		case key.Matches(msg, keys.Left):
			c.section = catalogSection(wrapIndex(int(c.section), -1, len(sectionNames)))
			c.cursor = 0
		case key.Matches(msg, keys.Right):
			c.section = catalogSection(wrapIndex(int(c.section), 1, len(sectionNames)))
			c.cursor = 0
		case key.Matches(msg, keys.New):
			return c.showNewForm()
		case key.Matches(msg, keys.Delete):
			if c.cursor < c.itemCount() {
				return c, c.deleteSelected()
			}
		}
	}
	return c, nil
}

func validateAmount(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return errors.New("enter a whole number")
	}
	if n <= 0 {
		return errors.New("must be more than zero")
	}
	return nil
}

func validateName(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("name is required")
	}
	return nil
}

func (c catalogModel) showNewForm() (catalogModel, tea.Cmd) {
	*c.formName = ""
	*c.formAmount = ""
	*c.formEmoji = ""
	*c.formDesc = ""
	*c.formColor = childColors[len(c.children)%len(childColors)]
	*c.formApproval = false

	var group *huh.Group
	switch c.section {
	case sectionTasks:
		group = huh.NewGroup(
			huh.NewInput().Title("Task name").Validate(validateName).Value(c.formName),
			huh.NewInput().Title("Points").Validate(validateAmount).Value(c.formAmount),
			huh.NewInput().Title("Emoji").Value(c.formEmoji),
			huh.NewInput().Title("Description").Value(c.formDesc),
			huh.NewConfirm().Title("Needs a parent to approve?").Value(c.formApproval),
		).Title("New task")
	case sectionRewards:
		group = huh.NewGroup(
			huh.NewInput().Title("Reward name").Validate(validateName).Value(c.formName),
			huh.NewInput().Title("Cost").Validate(validateAmount).Value(c.formAmount),
			huh.NewInput().Title("Emoji").Value(c.formEmoji),
			huh.NewInput().Title("Description").Value(c.formDesc),
		).Title("New reward")
	case sectionChildren:
		colorOptions := make([]huh.Option[string], len(childColors))
		for i, col := range childColors {
			colorOptions[i] = huh.NewOption(fmt.Sprintf("● %s", col), col)
		}
		group = huh.NewGroup(
			huh.NewInput().Title("Name").Validate(validateName).Value(c.formName),
			huh.NewInput().Title("Avatar emoji").Value(c.formEmoji),
			huh.NewSelect[string]().Title("Color").Options(colorOptions...).Value(c.formColor),
		).Title("New child")
	}

	c.form = huh.NewForm(group).WithShowHelp(true).WithShowErrors(true)
	c.formActive = true
	return c, c.form.Init()
}

func (c catalogModel) updateForm(msg tea.Msg) (catalogModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			c.formActive = false
			c.form = nil
			return c, nil
		}
	}

	form, cmd := c.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		c.form = f
	}

	if c.form.State == huh.StateCompleted {
		c.formActive = false
		c.form = nil
		return c, c.create()
	}

	return c, cmd
}

func (c catalogModel) create() tea.Cmd {
	s := c.svc.Store
	section := c.section
	name := strings.TrimSpace(*c.formName)
	amount, _ := strconv.Atoi(strings.TrimSpace(*c.formAmount))
	emoji := strings.TrimSpace(*c.formEmoji)
	desc := strings.TrimSpace(*c.formDesc)
	color := *c.formColor
	needsApproval := *c.formApproval

	return func() tea.Msg {
		err := s.Update(func(tx *store.Tx) error {
			switch section {
			case sectionRewards:
				rewards, err := store.Rewards(tx)
				if err != nil {
					return err
				}
				if emoji == "" {
					emoji = "🎁"
				}
				return store.SaveRewards(tx, append(rewards, store.Reward{
					ID: uuid.NewString(), Name: name, Cost: amount, Emoji: emoji, Description: desc,
				}))
			case sectionChildren:
				children, err := store.Children(tx)
				if err != nil {
					return err
				}
				if emoji == "" {
					emoji = "🙂"
				}
				return store.SaveChildren(tx, append(children, store.Child{
					ID: uuid.NewString(), Name: name, Color: color, Avatar: emoji,
				}))
			default:
				tasks, err := store.Tasks(tx)
				if err != nil {
					return err
				}
				if emoji == "" {
					emoji = "✅"
				}
				return store.SaveTasks(tx, append(tasks, store.Task{
					ID: uuid.NewString(), Name: name, Points: amount, Emoji: emoji,
					Description: desc, RequiresApproval: needsApproval,
				}))
			}
		})
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		return statusMsg{text: fmt.Sprintf("Added %s", name)}
	}
}

// deleteSelected removes the item under the cursor. Completions of a
// deleted task stay in the book but stop counting toward balances.
func (c catalogModel) deleteSelected() tea.Cmd {
	s := c.svc.Store
	section := c.section
	var id, name string
	switch section {
	case sectionRewards:
		id, name = c.rewards[c.cursor].ID, c.rewards[c.cursor].Name
	case sectionChildren:
		id, name = c.children[c.cursor].ID, c.children[c.cursor].Name
	default:
		id, name = c.tasks[c.cursor].ID, c.tasks[c.cursor].Name
	}

	return func() tea.Msg {
		err := s.Update(func(tx *store.Tx) error {
			switch section {
			case sectionRewards:
				rewards, err := store.Rewards(tx)
				if err != nil {
					return err
				}
				return store.SaveRewards(tx, slices.DeleteFunc(rewards, func(r store.Reward) bool { return r.ID == id }))
			case sectionChildren:
				children, err := store.Children(tx)
				if err != nil {
					return err
				}
				return store.SaveChildren(tx, slices.DeleteFunc(children, func(ch store.Child) bool { return ch.ID == id }))
			default:
				tasks, err := store.Tasks(tx)
				if err != nil {
					return err
				}
				return store.SaveTasks(tx, slices.DeleteFunc(tasks, func(t store.Task) bool { return t.ID == id }))
			}
		})
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		return statusMsg{text: fmt.Sprintf("Deleted %s", name)}
	}
}

func (c catalogModel) view() string {
	w := c.width - 4

	if !c.session.loggedIn {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("🔒 Catalog"), "",
			mutedStyle.Render("Log in on the Parent tab to edit tasks and rewards.")))
	}

	if c.formActive && c.form != nil {
		return activePanelStyle.Width(w).Render(c.form.View())
	}

	var tabs []string
	for i, name := range sectionNames {
		if catalogSection(i) == c.section {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}
	header := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	var rows []string
	switch c.section {
	case sectionRewards:
		for i, r := range c.rewards {
			rows = append(rows, c.renderRow(i, fmt.Sprintf("%s %-24s", r.Emoji, r.Name),
				starsStyle.Render(fmt.Sprintf("%d ⭐", r.Cost))))
		}
	case sectionChildren:
		for i, ch := range c.children {
			rows = append(rows, c.renderRow(i, "", childBadge(ch)))
		}
	default:
		for i, t := range c.tasks {
			extra := starsStyle.Render(fmt.Sprintf("+%d ⭐", t.Points))
			if t.RequiresApproval {
				extra += warningStyle.Render("  🛡️ approval")
			}
			rows = append(rows, c.renderRow(i, fmt.Sprintf("%s %-24s", t.Emoji, t.Name), extra))
		}
	}
	if len(rows) == 0 {
		rows = append(rows, mutedStyle.Render("  Nothing here yet. Press n to add one."))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		header, "", strings.Join(rows, "\n"), "",
		mutedStyle.Render("  n: new  d: delete  ←/→: switch list"))
	return panelStyle.Width(w).Render(content)
}

func (c catalogModel) renderRow(i int, label, extra string) string {
	cursor := "  "
	style := normalItemStyle
	if i == c.cursor {
		cursor = "> "
		style = selectedItemStyle
	}
	return style.Render(cursor+label) + " " + extra
}
