package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lotas/tabgruppen/internal/types"
)

type wireTab struct {
	ID           int    `json:"id"`
	URL          string `json:"url"`
	Title        string `json:"title"`
	LastAccessed int64  `json:"lastAccessed"`
	GroupID      *int   `json:"groupId"`
	WindowID     int    `json:"windowId"`
	Index        int    `json:"index"`
	Pinned       bool   `json:"pinned"`
	Active       bool   `json:"active"`
	Discarded    bool   `json:"discarded"`
	Status       string `json:"status"`
	FavIconURL   string `json:"favIconUrl"`
}

type wireGroup struct {
	ID        int    `json:"id"`
	WindowID  int    `json:"windowId"`
	Title     string `json:"title"`
	Color     string `json:"color"`
	Collapsed bool   `json:"collapsed"`
}

func (wt wireTab) tab() *types.Tab {
	groupID := types.NoGroup
	if wt.GroupID != nil && *wt.GroupID > 0 {
		groupID = *wt.GroupID
	}
	t := &types.Tab{
		ID:        wt.ID,
		URL:       wt.URL,
		Title:     wt.Title,
		GroupID:   groupID,
		WindowID:  wt.WindowID,
		Index:     wt.Index,
		Pinned:    wt.Pinned,
		Active:    wt.Active,
		Discarded: wt.Discarded,
		Status:    wt.Status,
		Favicon:   wt.FavIconURL,
	}
	if wt.LastAccessed > 0 {
		t.LastAccessed = time.UnixMilli(wt.LastAccessed)
	}
	return t
}

func (wg wireGroup) group() *types.Group {
	// Unknown colors come from browsers with a larger palette.
	color := types.Color(wg.Color)
	if !color.Valid() {
		color = types.ColorGrey
	}
	return &types.Group{
		ID:        wg.ID,
		WindowID:  wg.WindowID,
		Title:     wg.Title,
		Color:     color,
		Collapsed: wg.Collapsed,
	}
}

// ParseTab converts a raw JSON tab into a Tab. A missing or negative
// groupId means the tab is ungrouped.
func ParseTab(raw json.RawMessage) (*types.Tab, error) {
	var wt wireTab
	if err := json.Unmarshal(raw, &wt); err != nil {
		return nil, fmt.Errorf("parse tab: %w", err)
	}
	return wt.tab(), nil
}

// ParseTabs converts a raw JSON tab array.
func ParseTabs(raw json.RawMessage) ([]*types.Tab, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var wts []wireTab
	if err := json.Unmarshal(raw, &wts); err != nil {
		return nil, fmt.Errorf("parse tabs: %w", err)
	}
	tabs := make([]*types.Tab, len(wts))
	for i, wt := range wts {
		tabs[i] = wt.tab()
	}
	return tabs, nil
}

// ParseGroups converts a raw JSON tab group array.
func ParseGroups(raw json.RawMessage) ([]*types.Group, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var wgs []wireGroup
	if err := json.Unmarshal(raw, &wgs); err != nil {
		return nil, fmt.Errorf("parse groups: %w", err)
	}
	groups := make([]*types.Group, len(wgs))
	for i, wg := range wgs {
		groups[i] = wg.group()
	}
	return groups, nil
}

// ParseSnapshot converts an IncomingMsg of type "snapshot" into a
// SessionData.
func ParseSnapshot(msg IncomingMsg) (*types.SessionData, error) {
	tabs, err := ParseTabs(msg.Tabs)
	if err != nil {
		return nil, err
	}
	groups, err := ParseGroups(msg.Groups)
	if err != nil {
		return nil, err
	}
	return &types.SessionData{
		Groups:   groups,
		Tabs:     tabs,
		ParsedAt: time.Now(),
	}, nil
}
