package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/lotas/tabgruppen/internal/applog"
	"github.com/lotas/tabgruppen/internal/config"
	"github.com/lotas/tabgruppen/internal/grouping"
	"github.com/lotas/tabgruppen/internal/tabstore"
	"github.com/lotas/tabgruppen/internal/types"
)

const (
	reasonNoGroups       = "No existing groups to reuse."
	reasonJoinFailed     = "Fallback: failed to add to target group."
	reasonDecisionFailed = "Fallback: failed to make grouping decision."
)

// evaluate runs the decision for a pending tab. Only the first caller for a
// given tab gets past the Pending check; later load events and the timer are
// ignored.
func (e *Engine) evaluate(ctx context.Context, tabID int) {
	e.mu.Lock()
	p, ok := e.pending[tabID]
	if !ok || p.state != StatePending {
		e.mu.Unlock()
		return
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	e.setState(p, StateEvaluating)
	e.mu.Unlock()

	err := e.autoGroup(ctx, tabID)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.setState(p, StateFailed)
	}
	e.setState(p, StateResolved)
	if e.pending[tabID] == p {
		delete(e.pending, tabID)
	}
}

// autoGroup places a single new tab. A non-nil error means the decision
// failed and the tab went through the fallback path.
func (e *Engine) autoGroup(ctx context.Context, tabID int) error {
	s := e.currentSettings(ctx)
	if !s.AutoGroupNewTabs {
		return nil
	}

	tab, err := e.store.Tab(ctx, tabID)
	if err != nil {
		if !errors.Is(err, tabstore.ErrNotFound) {
			applog.Error("autogroup.tab", err, "tab", tabID)
		}
		return nil
	}
	if reason := skipReason(tab, s); reason != "" {
		applog.Info("autogroup.skip", "tab", tabID, "reason", reason)
		return nil
	}
	e.resolveTitle(ctx, tab, s)

	action, err := e.placeNewTab(ctx, tab, s)
	if err != nil {
		applog.Warn("autogroup.fallback", err, "tab", tabID)
		action, err = e.localGroup(ctx, tab, s, reasonDecisionFailed)
		if err != nil {
			applog.Error("autogroup.fallback_failed", err, "tab", tabID)
		}
		e.record(ctx, action)
		return errors.Join(errors.New("grouping decision failed"), err)
	}
	e.record(ctx, action)
	return nil
}

func skipReason(tab *types.Tab, s config.Settings) string {
	switch {
	case tab.Grouped():
		return "grouped"
	case !tab.IsHTTP():
		return "not http"
	case s.ExcludePinnedTabs && tab.Pinned:
		return "pinned"
	}
	return ""
}

// resolveTitle fills in a missing title so the model has something to go by.
func (e *Engine) resolveTitle(ctx context.Context, tab *types.Tab, s config.Settings) {
	if !s.FetchMissingTitles || e.opts.Titles == nil {
		return
	}
	if t := strings.TrimSpace(tab.Title); t != "" && t != tab.URL {
		return
	}
	title, err := e.opts.Titles.ResolveTitle(ctx, tab.URL)
	if err != nil {
		applog.Warn("autogroup.title", err, "tab", tab.ID)
		return
	}
	if title != "" {
		tab.Title = title
	}
}

func (e *Engine) placeNewTab(ctx context.Context, tab *types.Tab, s config.Settings) (types.GroupingAction, error) {
	groups, err := e.store.ListGroups(ctx, tab.WindowID)
	if err != nil {
		return types.GroupingAction{}, err
	}
	if len(groups) == 0 {
		return e.localGroup(ctx, tab, s, reasonNoGroups)
	}
	return e.decide(ctx, tab, groups, s, func(ctx context.Context) (types.GroupingAction, error) {
		return e.localGroup(ctx, tab, s, reasonJoinFailed)
	})
}

// decide asks the model where tab goes among candidates and applies the
// answer. onJoinFailure handles a target group that refuses the tab.
func (e *Engine) decide(ctx context.Context, tab *types.Tab, candidates []*types.Group, s config.Settings,
	onJoinFailure func(context.Context) (types.GroupingAction, error)) (types.GroupingAction, error) {
	d := grouping.NewDecider(e.ai, s.CustomGroupingInstructions)

	choice, err := d.Choose(ctx, tab, candidates)
	if err != nil {
		return types.GroupingAction{}, err
	}

	if choice.CreateNew {
		details, err := d.NewGroupDetails(ctx, tab)
		if err != nil {
			return types.GroupingAction{}, err
		}
		groupID, err := tabstore.CreateGroup(ctx, e.store, []int{tab.ID}, details.Name, details.Color, s.Delays.Retry())
		if err != nil {
			if groupID == types.NoGroup {
				return types.GroupingAction{}, err
			}
			applog.Warn("autogroup.name", err, "tab", tab.ID, "group", groupID)
		}
		reasoning := choice.Reasoning
		if details.Reasoning != "" {
			reasoning += " Name: " + details.Reasoning
		}
		return e.newAction(tab, groupID, true, details.Name, details.Color, strings.TrimSpace(reasoning)), nil
	}

	target, err := d.Target(ctx, tab, candidates)
	if err != nil {
		return types.GroupingAction{}, err
	}
	if _, err := e.store.JoinGroup(ctx, []int{tab.ID}, target.GroupID); err != nil {
		applog.Warn("autogroup.join", err, "tab", tab.ID, "group", target.GroupID)
		return onJoinFailure(ctx)
	}
	g := tabstore.FindGroup(candidates, target.GroupID)
	return e.newAction(tab, target.GroupID, false, g.Title, g.Color,
		strings.TrimSpace(choice.Reasoning+" Target: "+target.Reasoning)), nil
}

// localGroup puts tab into a new group named from its own title and URL.
func (e *Engine) localGroup(ctx context.Context, tab *types.Tab, s config.Settings, reasoning string) (types.GroupingAction, error) {
	name := grouping.DefaultName(tab)
	color := grouping.DefaultColor(tab.URL)
	groupID, err := tabstore.CreateGroup(ctx, e.store, []int{tab.ID}, name, color, s.Delays.Retry())
	if err != nil && groupID == types.NoGroup {
		return e.newAction(tab, types.NoGroup, false, "", "", reasoning), err
	}
	if err != nil {
		applog.Warn("autogroup.name", err, "tab", tab.ID, "group", groupID)
	}
	return e.newAction(tab, groupID, true, name, color, reasoning), nil
}

func (e *Engine) newAction(tab *types.Tab, groupID int, created bool, title string, color types.Color, reasoning string) types.GroupingAction {
	return types.GroupingAction{
		TabID:           tab.ID,
		WindowID:        tab.WindowID,
		FromGroupID:     tab.GroupID,
		ToGroupID:       groupID,
		CreatedNewGroup: created,
		GroupTitle:      title,
		GroupColor:      color,
		Reasoning:       reasoning,
	}
}

// record adds action to the undo history. Actions that moved nothing are
// kept as well so the history shows failed attempts.
func (e *Engine) record(ctx context.Context, action types.GroupingAction) {
	if e.ledger == nil {
		return
	}
	if _, err := e.ledger.Push(ctx, action); err != nil {
		applog.Error("autogroup.record", err, "tab", action.TabID)
		return
	}
	applog.Info("autogroup.done", "tab", action.TabID, "group", action.ToGroupID,
		"new", action.CreatedNewGroup, "title", action.GroupTitle)
}
