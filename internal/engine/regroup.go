package engine

import (
	"context"

	"github.com/lotas/tabgruppen/internal/applog"
	"github.com/lotas/tabgruppen/internal/config"
	"github.com/lotas/tabgruppen/internal/grouping"
	"github.com/lotas/tabgruppen/internal/tabstore"
	"github.com/lotas/tabgruppen/internal/types"
)

// Regroup re-evaluates a grouped tab after navigation: the tab leaves its
// group and is placed again among the other groups of its window. Calls for
// a tab that is already being regrouped return immediately.
func (e *Engine) Regroup(ctx context.Context, tabID int) {
	e.mu.Lock()
	if _, busy := e.regrouping[tabID]; busy {
		e.mu.Unlock()
		applog.Info("regroup.skip", "tab", tabID, "reason", "in progress")
		return
	}
	e.regrouping[tabID] = struct{}{}
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.regrouping, tabID)
		e.mu.Unlock()
	}()

	s := e.currentSettings(ctx)
	if !s.AutoRegroupTabs {
		return
	}
	tab, err := e.store.Tab(ctx, tabID)
	if err != nil {
		applog.Warn("regroup.tab", err, "tab", tabID)
		return
	}
	if !tab.IsHTTP() || (s.ExcludePinnedTabs && tab.Pinned) {
		return
	}

	original := tab.GroupID
	groups, err := e.store.ListGroups(ctx, tab.WindowID)
	if err != nil {
		applog.Error("regroup.groups", err, "tab", tabID)
		return
	}
	var others []*types.Group
	for _, g := range groups {
		if g.ID != original {
			others = append(others, g)
		}
	}

	if tab.Grouped() {
		if err := e.store.Ungroup(ctx, []int{tab.ID}); err != nil {
			applog.Error("regroup.ungroup", err, "tab", tabID)
			return
		}
		tab.GroupID = types.NoGroup
	}

	action, err := e.replace(ctx, tab, original, others, s)
	if err != nil {
		applog.Warn("regroup.fallback", err, "tab", tabID)
		action, err = e.localGroup(ctx, tab, s, reasonDecisionFailed)
		if err != nil {
			applog.Error("regroup.fallback_failed", err, "tab", tabID)
		}
	}
	action.FromGroupID = original
	e.record(ctx, action)
}

func (e *Engine) replace(ctx context.Context, tab *types.Tab, original int, others []*types.Group, s config.Settings) (types.GroupingAction, error) {
	if len(others) == 0 {
		return e.namedGroup(ctx, tab, s)
	}
	return e.decide(ctx, tab, others, s, func(ctx context.Context) (types.GroupingAction, error) {
		return e.restore(ctx, tab, original, s)
	})
}

// namedGroup asks the model for a name and color and puts tab into a new
// group with them.
func (e *Engine) namedGroup(ctx context.Context, tab *types.Tab, s config.Settings) (types.GroupingAction, error) {
	details, err := grouping.NewDecider(e.ai, s.CustomGroupingInstructions).NewGroupDetails(ctx, tab)
	if err != nil {
		return types.GroupingAction{}, err
	}
	groupID, err := tabstore.CreateGroup(ctx, e.store, []int{tab.ID}, details.Name, details.Color, s.Delays.Retry())
	if err != nil && groupID == types.NoGroup {
		return types.GroupingAction{}, err
	}
	if err != nil {
		applog.Warn("regroup.name", err, "tab", tab.ID, "group", groupID)
	}
	return e.newAction(tab, groupID, true, details.Name, details.Color, details.Reasoning), nil
}

// restore puts tab back into the group it left. If that group disappeared
// with the tab's departure a local group is created instead.
func (e *Engine) restore(ctx context.Context, tab *types.Tab, original int, s config.Settings) (types.GroupingAction, error) {
	if original != types.NoGroup {
		_, err := e.store.JoinGroup(ctx, []int{tab.ID}, original)
		if err == nil {
			applog.Info("regroup.restored", "tab", tab.ID, "group", original)
			return e.newAction(tab, original, false, "", "", reasonJoinFailed), nil
		}
		applog.Warn("regroup.restore", err, "tab", tab.ID, "group", original)
	}
	return e.localGroup(ctx, tab, s, reasonJoinFailed)
}
