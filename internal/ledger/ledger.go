// Package ledger keeps the bounded, persisted history of grouping actions
// and reverses them on request.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lotas/tabgruppen/internal/applog"
	"github.com/lotas/tabgruppen/internal/config"
	"github.com/lotas/tabgruppen/internal/tabstore"
	"github.com/lotas/tabgruppen/internal/types"
)

// DefaultCapacity applies when the configured history size is not positive.
const DefaultCapacity = 10

// Reasons an undo was refused. None of them changes any tab.
var (
	ErrEmpty          = errors.New("no actions to undo")
	ErrActionNotFound = errors.New("action not found in history")
	ErrNothingToUndo  = errors.New("nothing to undo for that action")
	ErrTabGone        = errors.New("tab no longer exists")
	ErrTabMoved       = errors.New("tab was moved since the action")
)

// Repository persists the history, newest action first.
type Repository interface {
	Load(ctx context.Context) ([]types.GroupingAction, error)
	Save(ctx context.Context, actions []types.GroupingAction) error
}

// Ledger records grouping actions and undoes them.
type Ledger struct {
	mu       sync.Mutex
	repo     Repository
	store    tabstore.Store
	settings config.Source
	now      func() time.Time
}

// New creates a Ledger. The history size is read from settings on every
// push.
func New(repo Repository, store tabstore.Store, settings config.Source) *Ledger {
	return &Ledger{repo: repo, store: store, settings: settings, now: time.Now}
}

func (l *Ledger) capacity(ctx context.Context) int {
	s, err := l.settings.Settings(ctx)
	if err != nil || s.UndoHistorySize <= 0 {
		return DefaultCapacity
	}
	return s.UndoHistorySize
}

// Push assigns action a fresh id, puts it at the front of the history and
// drops the oldest entries beyond capacity.
func (l *Ledger) Push(ctx context.Context, action types.GroupingAction) (types.GroupingAction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	action.ID = uuid.NewString()
	if action.Timestamp.IsZero() {
		action.Timestamp = l.now()
	}

	history, err := l.repo.Load(ctx)
	if err != nil {
		return action, fmt.Errorf("load undo history: %w", err)
	}
	history = append([]types.GroupingAction{action}, history...)
	if n := l.capacity(ctx); len(history) > n {
		history = history[:n]
	}
	if err := l.repo.Save(ctx, history); err != nil {
		return action, fmt.Errorf("save undo history: %w", err)
	}

	applog.Info("ledger.push", "action", action.ID, "tab", action.TabID,
		"from", action.FromGroupID, "to", action.ToGroupID, "new", action.CreatedNewGroup)
	return action, nil
}

// List returns the history, newest first.
func (l *Ledger) List(ctx context.Context) ([]types.GroupingAction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.repo.Load(ctx)
}

// Last returns the most recent action, or nil.
func (l *Ledger) Last(ctx context.Context) (*types.GroupingAction, error) {
	history, err := l.List(ctx)
	if err != nil || len(history) == 0 {
		return nil, err
	}
	return &history[0], nil
}

// Clear drops the whole history.
func (l *Ledger) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	applog.Info("ledger.clear")
	return l.repo.Save(ctx, nil)
}

// Undo reverses the action with id, or the most recent one when id is
// empty. The tab goes back to the group it came from, or is ungrouped if it
// had none or that group no longer exists, and the entry is removed. Undo refuses with one of the Err
// values when the action cannot be reversed safely; if the tab is gone its
// entry is pruned as well.
func (l *Ledger) Undo(ctx context.Context, id string) (types.GroupingAction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	history, err := l.repo.Load(ctx)
	if err != nil {
		return types.GroupingAction{}, fmt.Errorf("load undo history: %w", err)
	}
	if len(history) == 0 {
		return types.GroupingAction{}, ErrEmpty
	}

	idx := 0
	if id != "" {
		idx = -1
		for i, a := range history {
			if a.ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return types.GroupingAction{}, ErrActionNotFound
		}
	}
	action := history[idx]

	if action.Noop() {
		return action, ErrNothingToUndo
	}

	tab, err := l.store.Tab(ctx, action.TabID)
	if errors.Is(err, tabstore.ErrNotFound) {
		applog.Info("ledger.prune", "action", action.ID, "tab", action.TabID)
		if err := l.repo.Save(ctx, remove(history, idx)); err != nil {
			return action, fmt.Errorf("save undo history: %w", err)
		}
		return action, ErrTabGone
	}
	if err != nil {
		return action, fmt.Errorf("undo: %w", err)
	}

	if tab.GroupID != action.ToGroupID {
		return action, ErrTabMoved
	}

	if action.FromGroupID != types.NoGroup {
		_, err := l.store.JoinGroup(ctx, []int{tab.ID}, action.FromGroupID)
		if errors.Is(err, tabstore.ErrNotFound) {
			// The browser deletes a group with its last tab.
			applog.Warn("ledger.origin_gone", err, "action", action.ID, "group", action.FromGroupID)
			err = l.store.Ungroup(ctx, []int{tab.ID})
		}
		if err != nil {
			return action, fmt.Errorf("undo: %w", err)
		}
	} else if tab.Grouped() {
		if err := l.store.Ungroup(ctx, []int{tab.ID}); err != nil {
			return action, fmt.Errorf("undo: %w", err)
		}
	}

	if err := l.repo.Save(ctx, remove(history, idx)); err != nil {
		return action, fmt.Errorf("save undo history: %w", err)
	}
	applog.Info("ledger.undo", "action", action.ID, "tab", action.TabID, "restored", action.FromGroupID)
	return action, nil
}

func remove(history []types.GroupingAction, i int) []types.GroupingAction {
	out := make([]types.GroupingAction, 0, len(history)-1)
	out = append(out, history[:i]...)
	return append(out, history[i+1:]...)
}
