package types

import (
	"fmt"
	"strings"
	"time"
)

// NoGroup is the group id of an ungrouped tab, and of a missing group
// reference in a GroupingAction.
const NoGroup = -1

// Tab is a snapshot of a single browser tab as reported by the extension.
type Tab struct {
	ID           int
	Title        string
	URL          string // empty right after creation
	GroupID      int    // NoGroup if ungrouped
	WindowID     int
	Index        int
	Pinned       bool
	Discarded    bool
	Active       bool
	Status       string // "loading" or "complete"
	LastAccessed time.Time
	Favicon      string
}

// Grouped reports whether the tab belongs to a tab group.
func (t *Tab) Grouped() bool {
	return t.GroupID != NoGroup
}

// IsHTTP reports whether the tab shows a web page the engine may classify.
func (t *Tab) IsHTTP() bool {
	return strings.HasPrefix(t.URL, "http://") || strings.HasPrefix(t.URL, "https://")
}

// Group represents a browser tab group.
type Group struct {
	ID        int
	WindowID  int
	Title     string
	Color     Color
	Collapsed bool
}

// Color is one of the eight tab group colors browsers support.
type Color string

const (
	ColorGrey   Color = "grey"
	ColorBlue   Color = "blue"
	ColorRed    Color = "red"
	ColorYellow Color = "yellow"
	ColorGreen  Color = "green"
	ColorPink   Color = "pink"
	ColorPurple Color = "purple"
	ColorCyan   Color = "cyan"
)

// Colors lists the allowed group colors in their canonical order.
var Colors = []Color{
	ColorGrey, ColorBlue, ColorRed, ColorYellow,
	ColorGreen, ColorPink, ColorPurple, ColorCyan,
}

// Valid reports whether c is one of the allowed colors.
func (c Color) Valid() bool {
	for _, allowed := range Colors {
		if c == allowed {
			return true
		}
	}
	return false
}

// ParseColor returns the Color named by s. Matching is exact; the browser
// APIs only accept lower-case names.
func ParseColor(s string) (Color, error) {
	c := Color(s)
	if !c.Valid() {
		return "", fmt.Errorf("invalid group color %q", s)
	}
	return c, nil
}

// GroupingAction records one grouping decision so it can be undone.
type GroupingAction struct {
	ID              string    `json:"id"`
	TabID           int       `json:"tabId"`
	WindowID        int       `json:"windowId"`
	FromGroupID     int       `json:"fromGroupId"`
	ToGroupID       int       `json:"toGroupId"`
	CreatedNewGroup bool      `json:"createdNewGroup"`
	GroupTitle      string    `json:"groupTitle"`
	GroupColor      Color     `json:"groupColor"`
	Reasoning       string    `json:"reasoning"`
	Timestamp       time.Time `json:"timestamp"`
}

// Noop reports whether the action did not move the tab anywhere.
func (a GroupingAction) Noop() bool {
	return a.ToGroupID == NoGroup
}

// Profile represents a Firefox profile.
type Profile struct {
	Name       string
	Path       string // absolute path to profile directory
	IsDefault  bool
	IsRelative bool
}

// SessionData holds the tabs and groups of a browser session read from disk.
type SessionData struct {
	Groups   []*Group
	Tabs     []*Tab
	Profile  Profile
	ParsedAt time.Time
}
