package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lotas/tabgruppen/internal/applog"
	"github.com/lotas/tabgruppen/internal/config"
	"github.com/lotas/tabgruppen/internal/grouping"
	"github.com/lotas/tabgruppen/internal/tabstore"
	"github.com/lotas/tabgruppen/internal/types"
)

// BatchOptions derives the batch strategy options from settings.
func BatchOptions(s config.Settings) grouping.Options {
	return grouping.Options{
		MaxTabsPerGroup:     s.MaxTabsPerGroup,
		Instructions:        s.CustomGroupingInstructions,
		Mode:                grouping.ParseMode(s.BatchMode),
		LargeBatchThreshold: s.LargeBatchThreshold,
	}
}

// GroupWindow regroups every web tab of a window with one model request.
// Existing groups in the window are dissolved first.
func (e *Engine) GroupWindow(ctx context.Context, windowID int) (*grouping.Plan, error) {
	s := e.currentSettings(ctx)
	all, err := e.store.ListTabs(ctx, tabstore.Filter{WindowID: windowID, NoPinned: s.ExcludePinnedTabs})
	if err != nil {
		return nil, err
	}

	var tabs []*types.Tab
	var grouped []int
	for _, t := range all {
		if !t.IsHTTP() {
			continue
		}
		tabs = append(tabs, t)
		if t.Grouped() {
			grouped = append(grouped, t.ID)
		}
	}
	if len(tabs) == 0 {
		return &grouping.Plan{}, nil
	}

	plan, err := e.strategy.Plan(ctx, tabs, BatchOptions(s))
	if err != nil {
		return nil, err
	}

	if len(grouped) > 0 {
		if err := e.store.Ungroup(ctx, grouped); err != nil {
			return plan, fmt.Errorf("ungroup window %d: %w", windowID, err)
		}
	}
	return plan, ApplyPlan(ctx, e.store, plan, activeTab(tabs), s.Delays.Retry())
}

func activeTab(tabs []*types.Tab) int {
	for _, t := range tabs {
		if t.Active {
			return t.ID
		}
	}
	return -1
}

// ApplyPlan creates one group per non-empty planned group. Groups that do
// not hold activeTabID start collapsed. Failures are collected and the
// remaining groups are still applied.
func ApplyPlan(ctx context.Context, store tabstore.Store, plan *grouping.Plan, activeTabID int, delay time.Duration) error {
	var errs []error
	for _, g := range plan.NonEmpty() {
		groupID, err := store.JoinGroup(ctx, g.TabIDs, types.NoGroup)
		if err != nil {
			errs = append(errs, fmt.Errorf("group %q: %w", g.Name, err))
			continue
		}
		title := g.Name
		collapsed := true
		for _, id := range g.TabIDs {
			if id == activeTabID {
				collapsed = false
			}
		}
		u := tabstore.GroupUpdate{Title: &title, Color: g.Color, Collapsed: &collapsed}
		if err := tabstore.UpdateGroup(ctx, store, groupID, u, delay); err != nil {
			errs = append(errs, fmt.Errorf("group %q: %w", g.Name, err))
		}
		applog.Info("batch.group", "group", groupID, "title", g.Name, "tabs", len(g.TabIDs))
	}
	return errors.Join(errs...)
}
