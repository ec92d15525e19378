// Package tabstore defines the tab and group operations the grouping engine
// needs from the browser, plus helpers shared by every implementation.
package tabstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lotas/tabgruppen/internal/applog"
	"github.com/lotas/tabgruppen/internal/retry"
	"github.com/lotas/tabgruppen/internal/types"
)

// ErrNotFound reports a tab or group that no longer exists.
var ErrNotFound = errors.New("not found")

// StoreError is a failed browser-level tab or group mutation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("tabstore %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Filter narrows ListTabs. Zero values match everything.
type Filter struct {
	WindowID  int // 0 matches every window
	Ungrouped bool
	NoPinned  bool
}

// Match reports whether t passes the filter.
func (f Filter) Match(t *types.Tab) bool {
	if f.WindowID != 0 && t.WindowID != f.WindowID {
		return false
	}
	if f.Ungrouped && t.Grouped() {
		return false
	}
	if f.NoPinned && t.Pinned {
		return false
	}
	return true
}

// GroupUpdate holds the group properties to change. Nil or empty fields
// are left alone.
type GroupUpdate struct {
	Title     *string
	Color     types.Color
	Collapsed *bool
}

// Store is the browser's tab and group API.
type Store interface {
	Tab(ctx context.Context, id int) (*types.Tab, error)
	ListTabs(ctx context.Context, f Filter) ([]*types.Tab, error)
	ListGroups(ctx context.Context, windowID int) ([]*types.Group, error)
	// JoinGroup moves tabs into groupID, or into a new group when groupID
	// is types.NoGroup, and returns the resulting group id.
	JoinGroup(ctx context.Context, tabIDs []int, groupID int) (int, error)
	UpdateGroup(ctx context.Context, groupID int, u GroupUpdate) error
	Ungroup(ctx context.Context, tabIDs []int) error
}

// UpdateAttempts is how often a group property update is tried.
const UpdateAttempts = 3

// UpdateGroup applies u with up to UpdateAttempts tries spaced delay apart.
// Group property updates are the call most likely to fail right after a
// group was created.
func UpdateGroup(ctx context.Context, s Store, groupID int, u GroupUpdate, delay time.Duration) error {
	policy := retry.Policy{
		Attempts: UpdateAttempts,
		Backoff:  retry.Fixed(delay),
		Retryable: func(err error) bool {
			return !errors.Is(err, ErrNotFound)
		},
		OnRetry: func(attempt int, err error) {
			applog.Warn("group.update.retry", err, "group", groupID, "attempt", attempt)
		},
	}
	return retry.Do(ctx, policy, func(ctx context.Context, _ int) error {
		return s.UpdateGroup(ctx, groupID, u)
	})
}

// CreateGroup puts tabIDs into a new group and names it.
func CreateGroup(ctx context.Context, s Store, tabIDs []int, title string, color types.Color, delay time.Duration) (int, error) {
	groupID, err := s.JoinGroup(ctx, tabIDs, types.NoGroup)
	if err != nil {
		return types.NoGroup, err
	}
	if err := UpdateGroup(ctx, s, groupID, GroupUpdate{Title: &title, Color: color}, delay); err != nil {
		return groupID, err
	}
	return groupID, nil
}

// FindGroup returns the group with id from groups, or nil.
func FindGroup(groups []*types.Group, id int) *types.Group {
	for _, g := range groups {
		if g.ID == id {
			return g
		}
	}
	return nil
}
