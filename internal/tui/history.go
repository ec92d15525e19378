package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/lotas/tabgruppen/internal/types"
)

// HistoryList is the cursor-driven list of undoable actions, newest first.
type HistoryList struct {
	Actions []types.GroupingAction
	Cursor  int
	Width   int
	Height  int
}

func (m *HistoryList) SetActions(actions []types.GroupingAction) {
	m.Actions = actions
	if m.Cursor >= len(actions) {
		m.Cursor = max(len(actions)-1, 0)
	}
}

func (m *HistoryList) MoveUp() {
	if m.Cursor > 0 {
		m.Cursor--
	}
}

func (m *HistoryList) MoveDown() {
	if m.Cursor < len(m.Actions)-1 {
		m.Cursor++
	}
}

func (m HistoryList) Selected() *types.GroupingAction {
	if m.Cursor >= 0 && m.Cursor < len(m.Actions) {
		return &m.Actions[m.Cursor]
	}
	return nil
}

func (m HistoryList) View() string {
	if len(m.Actions) == 0 {
		return dimStyle.Render("No grouping actions yet.")
	}
	selectedStyle := lipgloss.NewStyle().Bold(true).Reverse(true)

	// Keep the cursor visible.
	start := 0
	if m.Height > 0 && m.Cursor >= m.Height {
		start = m.Cursor - m.Height + 1
	}

	var b strings.Builder
	for i := start; i < len(m.Actions); i++ {
		if m.Height > 0 && i-start >= m.Height {
			break
		}
		line := formatAction(m.Actions[i], time.Now())
		if m.Width > 0 {
			line = truncate(line, m.Width)
		}
		if i == m.Cursor {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func formatAction(a types.GroupingAction, now time.Time) string {
	verb := "joined"
	if a.CreatedNewGroup {
		verb = "created"
	}
	if a.Noop() {
		verb = "failed"
	}
	title := a.GroupTitle
	if title == "" {
		title = fmt.Sprintf("group %d", a.ToGroupID)
	}
	return fmt.Sprintf("%5s  tab %-6d %-7s %s", age(now.Sub(a.Timestamp)), a.TabID, verb, title)
}

func age(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dd", int(d.Hours()/24))
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 1 {
		return string(r[:width])
	}
	return string(r[:width-1]) + "…"
}
