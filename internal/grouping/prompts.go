package grouping

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/lotas/tabgruppen/internal/ai"
	"github.com/lotas/tabgruppen/internal/types"
)

// Mode selects how the model refers to tabs in a batch suggestion.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeDirect Mode = "direct" // zero-based indices
	ModeTitles Mode = "titles" // literal titles, reconciled afterwards
)

// ParseMode maps a settings value to a Mode; unknown values mean auto.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeDirect:
		return ModeDirect
	case ModeTitles:
		return ModeTitles
	}
	return ModeAuto
}

// tabInfo is what the model sees of a tab. Query strings and fragments are
// dropped from the URL.
type tabInfo struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type groupInfo struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

func describeTab(t *types.Tab) tabInfo {
	info := tabInfo{Title: t.Title, URL: t.URL}
	if u, err := url.Parse(t.URL); err == nil && u.Host != "" {
		info.URL = u.Scheme + "://" + u.Host + u.EscapedPath()
	}
	return info
}

func describeGroups(groups []*types.Group) []groupInfo {
	out := make([]groupInfo, 0, len(groups))
	for _, g := range groups {
		out = append(out, groupInfo{ID: g.ID, Name: g.Title, Color: string(g.Color)})
	}
	return out
}

func indent(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func colorList() string {
	names := make([]string, len(types.Colors))
	for i, c := range types.Colors {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

func customNote(custom string) string {
	custom = strings.TrimSpace(custom)
	if custom == "" {
		return ""
	}
	return "\nAlso follow these instructions from the user: " + custom
}

func stringSchema() map[string]any { return map[string]any{"type": "STRING"} }

// BuildBatchRequest asks the model to group tabs. In ModeDirect groups
// list tab indices; in ModeTitles they list tab titles.
func BuildBatchRequest(tabs []*types.Tab, maxTabsPerGroup int, custom string, mode Mode) ai.Request {
	infos := make([]tabInfo, len(tabs))
	for i, t := range tabs {
		infos[i] = describeTab(t)
	}

	memberKey, memberDesc, memberItem := "tab_indices", "zero-based positions in the tab list", "NUMBER"
	if mode == ModeTitles {
		memberKey, memberDesc, memberItem = "tab_titles", "exact tab titles copied from the tab list", "STRING"
	}

	system := fmt.Sprintf(`You organise browser tabs into groups.
Reply with a JSON object {"groups": [{"group_name": string, "group_color": string, "%s": [...], "reasoning": string}]}.
- %s lists the members of the group as %s.
- group_color is one of: %s.
- group_name is short and may start with an emoji.
- Put every tab in exactly one group. Prefer grouping by task over grouping by site.
- A group holds at most %d tabs unless many tabs are nearly identical.%s`,
		memberKey, memberKey, memberDesc, colorList(), maxTabsPerGroup, customNote(custom))

	user := "Tabs:\n" + indent(infos)
	if mode == ModeTitles {
		user += "\nRefer to tabs by title only."
	}

	schema := map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"groups": map[string]any{
				"type": "ARRAY",
				"items": map[string]any{
					"type": "OBJECT",
					"properties": map[string]any{
						"group_name":  stringSchema(),
						"group_color": stringSchema(),
						memberKey:     map[string]any{"type": "ARRAY", "items": map[string]any{"type": memberItem}},
						"reasoning":   stringSchema(),
					},
					"required": []string{"group_name", "group_color", memberKey},
				},
			},
		},
		"required": []string{"groups"},
	}
	return ai.Request{System: system, User: user, Schema: schema}
}

// BuildChoiceRequest asks whether tab should start a new group or join one
// of groups. Only group names and colors are shown.
func BuildChoiceRequest(tab *types.Tab, groups []*types.Group, custom string) ai.Request {
	system := `You decide whether a newly opened browser tab should join one of the existing tab groups or start a new group.
Judge only from the tab and the names and colors of the groups.
Reply with JSON {"create_new_group": boolean, "reasoning": string}.` + customNote(custom)
	user := "New tab:\n" + indent(describeTab(tab)) + "\n\nExisting groups:\n" + indent(describeGroups(groups))
	return ai.Request{
		System: system,
		User:   user,
		Schema: map[string]any{
			"type": "OBJECT",
			"properties": map[string]any{
				"create_new_group": map[string]any{"type": "BOOLEAN"},
				"reasoning":        stringSchema(),
			},
			"required": []string{"create_new_group", "reasoning"},
		},
	}
}

// BuildTargetRequest asks which of groups tab belongs in.
func BuildTargetRequest(tab *types.Tab, groups []*types.Group, custom string) ai.Request {
	system := `You pick the existing browser tab group that fits a new tab best.
Reply with JSON {"target_group_id": number, "reasoning": string} using one of the listed ids.` + customNote(custom)
	user := "New tab:\n" + indent(describeTab(tab)) + "\n\nExisting groups:\n" + indent(describeGroups(groups))
	return ai.Request{
		System: system,
		User:   user,
		Schema: map[string]any{
			"type": "OBJECT",
			"properties": map[string]any{
				"target_group_id": map[string]any{"type": "NUMBER"},
				"reasoning":       stringSchema(),
			},
			"required": []string{"target_group_id", "reasoning"},
		},
	}
}

// BuildNewGroupRequest asks for a name and color for a group started by tab.
func BuildNewGroupRequest(tab *types.Tab, custom string) ai.Request {
	system := fmt.Sprintf(`You name a new browser tab group for the tab below.
The name has at most %d characters and may start with an emoji. The color is one of: %s.
Reply with JSON {"suggested_name": string, "suggested_color": string, "reasoning": string}.`,
		MaxNameLen, colorList()) + customNote(custom)
	return ai.Request{
		System: system,
		User:   "New tab:\n" + indent(describeTab(tab)),
		Schema: map[string]any{
			"type": "OBJECT",
			"properties": map[string]any{
				"suggested_name":  stringSchema(),
				"suggested_color": stringSchema(),
				"reasoning":       stringSchema(),
			},
			"required": []string{"suggested_name", "suggested_color", "reasoning"},
		},
	}
}
