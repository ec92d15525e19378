package server

import (
	"context"
	"errors"
	"time"

	"github.com/lotas/tabgruppen/internal/tabstore"
	"github.com/lotas/tabgruppen/internal/types"
)

// DefaultRequestTimeout bounds a single browser command.
const DefaultRequestTimeout = 10 * time.Second

// Browser commands understood by the extension.
const (
	ActionGetTab      = "getTab"
	ActionQueryTabs   = "queryTabs"
	ActionQueryGroups = "queryGroups"
	ActionGroup       = "group"
	ActionUpdateGroup = "updateGroup"
	ActionUngroup     = "ungroup"
	ActionReply       = "reply"
)

// errCodeNotFound is the error the extension reports for a missing tab or
// group.
const errCodeNotFound = "not_found"

// Requester sends a command and waits for its response.
type Requester interface {
	Request(ctx context.Context, msg OutgoingMsg) (IncomingMsg, error)
}

// Bridge is a tabstore.Store that drives the browser through the
// extension.
type Bridge struct {
	conn    Requester
	timeout time.Duration
}

var _ tabstore.Store = (*Bridge)(nil)

// NewBridge creates a Bridge on conn.
func NewBridge(conn Requester) *Bridge {
	return &Bridge{conn: conn, timeout: DefaultRequestTimeout}
}

func (b *Bridge) call(ctx context.Context, op string, msg OutgoingMsg) (IncomingMsg, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	msg.Action = op
	resp, err := b.conn.Request(ctx, msg)
	if err != nil {
		return resp, &tabstore.StoreError{Op: op, Err: err}
	}
	if resp.OK != nil && !*resp.OK {
		if resp.Error == errCodeNotFound {
			return resp, &tabstore.StoreError{Op: op, Err: tabstore.ErrNotFound}
		}
		return resp, &tabstore.StoreError{Op: op, Err: errors.New(resp.Error)}
	}
	return resp, nil
}

func (b *Bridge) Tab(ctx context.Context, id int) (*types.Tab, error) {
	resp, err := b.call(ctx, ActionGetTab, OutgoingMsg{TabID: id})
	if err != nil {
		return nil, err
	}
	if len(resp.Tab) == 0 {
		return nil, &tabstore.StoreError{Op: ActionGetTab, Err: tabstore.ErrNotFound}
	}
	return ParseTab(resp.Tab)
}

func (b *Bridge) ListTabs(ctx context.Context, f tabstore.Filter) ([]*types.Tab, error) {
	resp, err := b.call(ctx, ActionQueryTabs, OutgoingMsg{WindowID: f.WindowID, Ungrouped: f.Ungrouped, NoPinned: f.NoPinned})
	if err != nil {
		return nil, err
	}
	tabs, err := ParseTabs(resp.Tabs)
	if err != nil {
		return nil, err
	}
	// The extension may ignore filter fields it does not know.
	out := tabs[:0]
	for _, t := range tabs {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (b *Bridge) ListGroups(ctx context.Context, windowID int) ([]*types.Group, error) {
	resp, err := b.call(ctx, ActionQueryGroups, OutgoingMsg{WindowID: windowID})
	if err != nil {
		return nil, err
	}
	return ParseGroups(resp.Groups)
}

// JoinGroup sends no groupId when a new group is wanted.
func (b *Bridge) JoinGroup(ctx context.Context, tabIDs []int, groupID int) (int, error) {
	msg := OutgoingMsg{TabIDs: tabIDs}
	if groupID != types.NoGroup {
		msg.GroupID = groupID
	}
	resp, err := b.call(ctx, ActionGroup, msg)
	if err != nil {
		return types.NoGroup, err
	}
	return resp.GroupID, nil
}

func (b *Bridge) UpdateGroup(ctx context.Context, groupID int, u tabstore.GroupUpdate) error {
	_, err := b.call(ctx, ActionUpdateGroup, OutgoingMsg{
		GroupID:   groupID,
		Title:     u.Title,
		Color:     string(u.Color),
		Collapsed: u.Collapsed,
	})
	return err
}

func (b *Bridge) Ungroup(ctx context.Context, tabIDs []int) error {
	_, err := b.call(ctx, ActionUngroup, OutgoingMsg{TabIDs: tabIDs})
	return err
}
