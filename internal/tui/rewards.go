package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/chorechart/internal/ledger"
	"github.com/sadopc/chorechart/internal/store"
)

const recentRedemptions = 5

type rewardsModel struct {
	svc    Services
	width  int
	height int

	children    []store.Child
	rewards     []store.Reward
	balances    map[string]int
	redemptions []store.Redemption

	childIdx int
	cursor   int
}

func newRewardsModel(svc Services) rewardsModel {
	return rewardsModel{svc: svc, balances: map[string]int{}}
}

func (r *rewardsModel) setSize(w, h int) {
	r.width = w
	r.height = h
}

type rewardsDataMsg struct {
	children    []store.Child
	rewards     []store.Reward
	balances    map[string]int
	redemptions []store.Redemption
}

type redeemResultMsg struct {
	rec *store.Redemption
	err error
}

func (r rewardsModel) refresh() tea.Cmd {
	svc := r.svc
	return func() tea.Msg {
		children, err := store.Children(svc.Store)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		rewards, err := store.Rewards(svc.Store)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		balances, err := svc.Ledger.Balances()
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		log, err := svc.Ledger.Redemptions("")
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		return rewardsDataMsg{children: children, rewards: rewards, balances: balances, redemptions: log}
	}
}

func (r rewardsModel) currentChild() (store.Child, bool) {
	if r.childIdx < len(r.children) {
		return r.children[r.childIdx], true
	}
	return store.Child{}, false
}

func (r rewardsModel) update(msg tea.Msg) (rewardsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case rewardsDataMsg:
		r.children = msg.children
		r.rewards = msg.rewards
		r.balances = msg.balances
		r.redemptions = msg.redemptions
		if r.childIdx >= len(r.children) {
			r.childIdx = 0
		}
		if r.cursor >= len(r.rewards) {
			r.cursor = max(0, len(r.rewards)-1)
		}
		return r, nil

	case redeemResultMsg:
		switch {
		case errors.Is(msg.err, ledger.ErrInsufficientPoints):
			return r, statusCmd("Not enough stars yet. Keep going!", true)
		case errors.Is(msg.err, ledger.ErrUnknownReward):
			return r, statusCmd("That reward is no longer available", true)
		case msg.err != nil:
			return r, statusCmd(fmt.Sprintf("Error: %v", msg.err), true)
		}
		return r, tea.Batch(r.refresh(),
			statusCmd(fmt.Sprintf("Enjoy your %s! -%d ⭐", msg.rec.RewardName, msg.rec.Cost), false))

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Up):
			if r.cursor > 0 {
				r.cursor--
			}
		case key.Matches(msg, keys.Down):
			if r.cursor < len(r.rewards)-1 {
				r.cursor++
			}
		case key.Matches(msg, keys.Left):
			r.childIdx = wrapIndex(r.childIdx, -1, len(r.children))
		case key.Matches(msg, keys.Right):
			r.childIdx = wrapIndex(r.childIdx, 1, len(r.children))
		case key.Matches(msg, keys.Enter):
			child, ok := r.currentChild()
			if !ok || r.cursor >= len(r.rewards) {
				return r, nil
			}
			return r, r.redeem(child.ID, r.rewards[r.cursor].ID)
		}
	}
	return r, nil
}

func (r rewardsModel) redeem(childID, rewardID string) tea.Cmd {
	l := r.svc.Ledger
	return func() tea.Msg {
		rec, err := l.RedeemReward(childID, rewardID)
		return redeemResultMsg{rec: rec, err: err}
	}
}

func (r rewardsModel) view() string {
	w := r.width - 4

	child, ok := r.currentChild()
	if !ok {
		return panelStyle.Width(w).Render(mutedStyle.Render("No children yet"))
	}
	balance := r.balances[child.ID]

	header := fmt.Sprintf("%s   %s", childBadge(child), starsStyle.Render(formatStars(balance)))

	var rows []string
	rows = append(rows, titleStyle.Render("Rewards"))
	if len(r.rewards) == 0 {
		rows = append(rows, mutedStyle.Render("  No rewards yet"))
	}
	for i, rw := range r.rewards {
		cursor := "  "
		style := normalItemStyle
		if i == r.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		cost := starsStyle.Render(fmt.Sprintf("%d ⭐", rw.Cost))
		if balance < rw.Cost {
			cost = mutedStyle.Render(fmt.Sprintf("%d ⭐ (need %d more)", rw.Cost, rw.Cost-balance))
		}
		rows = append(rows, style.Render(fmt.Sprintf("%s%s %s", cursor, rw.Emoji, rw.Name))+"  "+cost)
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: redeem  ←/→: switch child"))

	list := activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, header, "", strings.Join(rows, "\n")))
	return lipgloss.JoinVertical(lipgloss.Left, list, r.renderRecent(child, w))
}

func (r rewardsModel) renderRecent(child store.Child, w int) string {
	var mine []store.Redemption
	for i := len(r.redemptions) - 1; i >= 0 && len(mine) < recentRedemptions; i-- {
		if r.redemptions[i].ChildID == child.ID {
			mine = append(mine, r.redemptions[i])
		}
	}

	rows := []string{titleStyle.Render("Recently redeemed")}
	if len(mine) == 0 {
		rows = append(rows, mutedStyle.Render("  Nothing yet"))
	}
	loc := r.svc.Calendar.Location()
	for _, rec := range mine {
		date := rec.Date
		if t, err := parseInstant(rec.Date); err == nil {
			date = t.In(loc).Format("Mon Jan 02 15:04")
		}
		rows = append(rows, fmt.Sprintf("  %s  %s  %s",
			mutedStyle.Render(date), rec.RewardName, accentStyle.Render(fmt.Sprintf("-%d", rec.Cost))))
	}
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
