package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lotas/tabgruppen/internal/grouping"
	"github.com/lotas/tabgruppen/internal/types"
)

var dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

// groupColors maps tab group colors to terminal colors.
var groupColors = map[types.Color]lipgloss.Color{
	types.ColorGrey:   lipgloss.Color("245"),
	types.ColorBlue:   lipgloss.Color("33"),
	types.ColorRed:    lipgloss.Color("196"),
	types.ColorYellow: lipgloss.Color("220"),
	types.ColorGreen:  lipgloss.Color("34"),
	types.ColorPink:   lipgloss.Color("205"),
	types.ColorPurple: lipgloss.Color("135"),
	types.ColorCyan:   lipgloss.Color("51"),
}

// GroupStyle returns the header style for a group of color c.
func GroupStyle(c types.Color) lipgloss.Style {
	fg, ok := groupColors[c]
	if !ok {
		fg = groupColors[types.ColorGrey]
	}
	return lipgloss.NewStyle().Bold(true).Foreground(fg)
}

// RenderPlan prints a batch plan with the titles of the tabs in each group.
// Empty groups are left out.
func RenderPlan(plan *grouping.Plan, tabs []*types.Tab, width int) string {
	byID := make(map[int]*types.Tab, len(tabs))
	for _, t := range tabs {
		byID[t.ID] = t
	}

	var b strings.Builder
	groups := plan.NonEmpty()
	b.WriteString(dimStyle.Render(fmt.Sprintf("%d tabs in %d groups (%s mode)", len(tabs), len(groups), plan.Mode)))
	b.WriteString("\n")
	for _, g := range groups {
		b.WriteString("\n")
		b.WriteString(GroupStyle(g.Color).Render(fmt.Sprintf("● %s", g.Name)))
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %s · %d tabs", g.Color, len(g.TabIDs))))
		b.WriteString("\n")
		if g.Reasoning != "" {
			b.WriteString("  " + dimStyle.Render(truncate(g.Reasoning, max(width-2, 20))) + "\n")
		}
		for _, id := range g.TabIDs {
			label := fmt.Sprintf("tab %d", id)
			if t, ok := byID[id]; ok {
				label = t.Title
				if label == "" {
					label = t.URL
				}
			}
			b.WriteString("    " + truncate(label, max(width-4, 20)) + "\n")
		}
	}
	return b.String()
}
