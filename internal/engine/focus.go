package engine

import (
	"context"

	"github.com/lotas/tabgruppen/internal/applog"
	"github.com/lotas/tabgruppen/internal/tabstore"
	"github.com/lotas/tabgruppen/internal/types"
)

// OnTabActivated expands the group of the newly active tab and, when
// closeOtherGroups is set, collapses the group that was active before.
func (e *Engine) OnTabActivated(ctx context.Context, tabID int) {
	tab, err := e.store.Tab(ctx, tabID)
	if err != nil {
		applog.Warn("focus.tab", err, "tab", tabID)
		return
	}
	if !tab.Grouped() {
		return
	}

	e.mu.Lock()
	previous := e.activeGroup
	e.mu.Unlock()
	if previous == tab.GroupID {
		return
	}

	s := e.currentSettings(ctx)
	if previous != types.NoGroup && s.CloseOtherGroups {
		collapsed := true
		if err := tabstore.UpdateGroup(ctx, e.store, previous, tabstore.GroupUpdate{Collapsed: &collapsed}, s.Delays.Retry()); err != nil {
			applog.Warn("focus.collapse", err, "group", previous)
		}
	}

	expanded := false
	err = tabstore.UpdateGroup(ctx, e.store, tab.GroupID, tabstore.GroupUpdate{Collapsed: &expanded}, s.Delays.Retry())

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		applog.Warn("focus.expand", err, "group", tab.GroupID)
		e.activeGroup = types.NoGroup
		return
	}
	e.activeGroup = tab.GroupID
}

// OnGroupRemoved forgets a group that no longer exists.
func (e *Engine) OnGroupRemoved(groupID int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.activeGroup == groupID {
		e.activeGroup = types.NoGroup
	}
}

// ActiveGroup returns the group the engine last expanded, or types.NoGroup.
func (e *Engine) ActiveGroup() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeGroup
}
