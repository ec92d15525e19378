package grouping

import (
	"strings"

	"github.com/lotas/tabgruppen/internal/fuzzy"
	"github.com/lotas/tabgruppen/internal/types"
)

// Catch-all group that receives tabs no suggested group claimed.
const (
	OtherGroupName      = "📌 Other"
	OtherGroupColor     = types.ColorGrey
	otherGroupReasoning = "Tabs that don't fit other groups"
)

// ReconcileTitles turns title-based groups into index-based ones.
//
// Each title maps to the first tab with exactly that title, or else to the
// tab whose lower-cased title is nearest by edit distance (first tab wins a
// tie). Tabs left unclaimed afterwards are matched against every title of
// every group, in group order, and join the group of the nearest title.
// Tabs that still match nothing are left out; Finalize collects them.
// Groups may end up empty. Index-based groups are copied unchanged.
func ReconcileTitles(s *Suggestion, tabs []*types.Tab) *Suggestion {
	lowered := make([]string, len(tabs))
	for i, t := range tabs {
		lowered[i] = strings.ToLower(t.Title)
	}

	out := &Suggestion{Groups: make([]SuggestedGroup, len(s.Groups))}
	var (
		flatTitles []string
		flatGroup  []int
	)
	for gi, g := range s.Groups {
		out.Groups[gi] = g
		if g.Members.Kind != MembersByTitle {
			out.Groups[gi].Members = Members{Kind: MembersByIndex, Indices: append([]int(nil), g.Members.Indices...)}
			continue
		}
		indices := make([]int, 0, len(g.Members.Titles))
		for _, title := range g.Members.Titles {
			if idx := matchTitle(title, tabs, lowered); idx >= 0 {
				indices = append(indices, idx)
			}
			flatTitles = append(flatTitles, strings.ToLower(title))
			flatGroup = append(flatGroup, gi)
		}
		out.Groups[gi].Members = Members{Kind: MembersByIndex, Indices: indices}
	}

	claimed := make(map[int]bool, len(tabs))
	for _, g := range out.Groups {
		for _, idx := range g.Members.Indices {
			claimed[idx] = true
		}
	}

	for i := range tabs {
		if claimed[i] {
			continue
		}
		best, _ := fuzzy.Closest(lowered[i], flatTitles)
		if best < 0 {
			continue
		}
		gi := flatGroup[best]
		out.Groups[gi].Members.Indices = append(out.Groups[gi].Members.Indices, i)
	}
	return out
}

func matchTitle(title string, tabs []*types.Tab, lowered []string) int {
	for i, t := range tabs {
		if t.Title == title {
			return i
		}
	}
	idx, _ := fuzzy.Closest(strings.ToLower(title), lowered)
	return idx
}

// PlannedGroup is a group ready to be created in the browser.
type PlannedGroup struct {
	Name       string      `json:"name"`
	Color      types.Color `json:"color"`
	Reasoning  string      `json:"reasoning,omitempty"`
	TabIndices []int       `json:"tabIndices"`
	TabIDs     []int       `json:"tabIds"`
}

// Finalize resolves an index-based suggestion into planned groups that
// cover each of the tabCount input tabs exactly once. Out-of-range indices
// are dropped, a tab claimed by several groups stays in the first, and
// unclaimed tabs are collected in a trailing catch-all group. Groups left
// without tabs are kept; callers creating browser groups skip them.
func Finalize(s *Suggestion, tabCount int) []PlannedGroup {
	seen := make([]bool, tabCount)
	plan := make([]PlannedGroup, 0, len(s.Groups)+1)
	for _, g := range s.Groups {
		pg := PlannedGroup{Name: g.Name, Color: g.Color, Reasoning: g.Reasoning}
		if g.Members.Kind == MembersByIndex {
			for _, idx := range g.Members.Indices {
				if idx < 0 || idx >= tabCount || seen[idx] {
					continue
				}
				seen[idx] = true
				pg.TabIndices = append(pg.TabIndices, idx)
			}
		}
		plan = append(plan, pg)
	}

	var rest []int
	for i, ok := range seen {
		if !ok {
			rest = append(rest, i)
		}
	}
	if len(rest) > 0 {
		plan = append(plan, PlannedGroup{
			Name:       OtherGroupName,
			Color:      OtherGroupColor,
			Reasoning:  otherGroupReasoning,
			TabIndices: rest,
		})
	}
	return plan
}
