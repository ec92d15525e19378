// Package dispatch routes messages from the extension to the engine, the
// undo ledger and the settings store.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lotas/tabgruppen/internal/applog"
	"github.com/lotas/tabgruppen/internal/config"
	"github.com/lotas/tabgruppen/internal/engine"
	"github.com/lotas/tabgruppen/internal/ledger"
	"github.com/lotas/tabgruppen/internal/server"
	"github.com/lotas/tabgruppen/internal/types"
)

// Sender delivers replies to the extension.
type Sender interface {
	Send(msg server.OutgoingMsg) error
}

// Event is a line of daemon activity shown in the terminal view.
type Event struct {
	Time   time.Time
	Kind   string
	Detail string
}

// Dispatcher handles extension messages, each on its own goroutine.
type Dispatcher struct {
	out      Sender
	engine   *engine.Engine
	ledger   *ledger.Ledger
	settings *config.Store

	events chan Event
	wg     sync.WaitGroup
}

// New creates a Dispatcher.
func New(out Sender, e *engine.Engine, l *ledger.Ledger, settings *config.Store) *Dispatcher {
	return &Dispatcher{
		out:      out,
		engine:   e,
		ledger:   l,
		settings: settings,
		events:   make(chan Event, 128),
	}
}

// Events returns daemon activity. Events are dropped while nobody reads.
func (d *Dispatcher) Events() <-chan Event {
	return d.events
}

func (d *Dispatcher) emit(kind, format string, args ...any) {
	select {
	case d.events <- Event{Time: time.Now(), Kind: kind, Detail: fmt.Sprintf(format, args...)}:
	default:
	}
}

// Run handles messages until ctx is done or msgs is closed, then waits for
// in-flight handlers. Tab lifecycle bookkeeping runs here in arrival order,
// so a tab's created, updated and removed events are seen as sent. Model
// calls, store round trips and popup requests continue on their own
// goroutines.
func (d *Dispatcher) Run(ctx context.Context, msgs <-chan server.IncomingMsg) {
	defer d.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			if work := d.accept(ctx, msg); work != nil {
				d.wg.Add(1)
				go func() {
					defer d.wg.Done()
					work()
				}()
			}
		}
	}
}

// Handle processes a single message to completion.
func (d *Dispatcher) Handle(ctx context.Context, msg server.IncomingMsg) {
	if work := d.accept(ctx, msg); work != nil {
		work()
	}
}

// accept applies the order-sensitive part of msg and returns the remaining
// work, or nil when there is none.
func (d *Dispatcher) accept(ctx context.Context, msg server.IncomingMsg) func() {
	switch msg.Type {
	case server.TypeTabCreated:
		tab, err := server.ParseTab(msg.Tab)
		if err != nil {
			applog.Error("dispatch.tab", err, "type", msg.Type)
			return nil
		}
		d.engine.OnTabCreated(ctx, tab)
		d.emit("tab", "created %d %s", tab.ID, tab.URL)

	case server.TypeTabUpdated:
		return d.tabUpdated(ctx, msg)

	case server.TypeTabRemoved:
		d.engine.OnTabRemoved(msg.TabID)

	case server.TypeTabActivated:
		return func() { d.engine.OnTabActivated(ctx, msg.TabID) }

	case server.TypeGroupRemoved:
		d.engine.OnGroupRemoved(msg.GroupID)

	case server.TypeSnapshot:
		data, err := server.ParseSnapshot(msg)
		if err != nil {
			applog.Error("dispatch.snapshot", err)
			return nil
		}
		d.emit("snapshot", "%d tabs in %d groups", len(data.Tabs), len(data.Groups))

	case server.TypeUndo, server.TypeUndoHistory, server.TypeClearUndoHistory,
		server.TypeGroupTabs, server.TypeGetConfig, server.TypeSetConfig:
		return func() {
			data, err := d.request(ctx, msg)
			d.reply(msg.ID, data, err)
		}

	default:
		applog.Warn("dispatch.unknown", nil, "type", msg.Type)
	}
	return nil
}

// tabUpdated schedules URL changes in order. Evaluation after the page has
// loaded is returned as work.
func (d *Dispatcher) tabUpdated(ctx context.Context, msg server.IncomingMsg) func() {
	if msg.ChangeInfo == nil {
		return nil
	}
	tab, err := server.ParseTab(msg.Tab)
	if err != nil {
		applog.Error("dispatch.tab", err, "type", msg.Type)
		return nil
	}
	if msg.ChangeInfo.URL != "" {
		d.engine.OnTabURLChanged(ctx, tab)
	}
	if msg.ChangeInfo.Status == "complete" {
		return func() { d.engine.OnTabLoaded(ctx, tab.ID) }
	}
	return nil
}

// request answers a popup request.
func (d *Dispatcher) request(ctx context.Context, msg server.IncomingMsg) (any, error) {
	switch msg.Type {
	case server.TypeUndo:
		action, err := d.ledger.Undo(ctx, msg.ActionID)
		if err != nil {
			return nil, err
		}
		d.emit("undo", "tab %d back to %s", action.TabID, groupLabel(action.FromGroupID))
		return action, nil

	case server.TypeUndoHistory:
		history, err := d.ledger.List(ctx)
		if history == nil {
			history = []types.GroupingAction{}
		}
		return history, err

	case server.TypeClearUndoHistory:
		return nil, d.ledger.Clear(ctx)

	case server.TypeGroupTabs:
		plan, err := d.engine.GroupWindow(ctx, msg.WindowID)
		if err != nil {
			return nil, err
		}
		d.emit("batch", "window %d: %d groups", msg.WindowID, len(plan.NonEmpty()))
		return plan.NonEmpty(), nil

	case server.TypeGetConfig:
		return d.settings.Settings(ctx)

	case server.TypeSetConfig:
		var values map[string]any
		if err := json.Unmarshal(msg.Settings, &values); err != nil {
			return nil, fmt.Errorf("settings: %w", err)
		}
		if err := d.settings.SetAll(ctx, values); err != nil {
			return nil, err
		}
		d.emit("config", "%d settings changed", len(values))
		return d.settings.Settings(ctx)
	}
	return nil, fmt.Errorf("unsupported request %q", msg.Type)
}

func (d *Dispatcher) reply(id string, data any, err error) {
	ok := err == nil
	out := server.OutgoingMsg{ID: id, Action: server.ActionReply, OK: &ok, Data: data}
	if err != nil {
		out.Error = err.Error()
		out.Data = nil
		applog.Warn("dispatch.request", err, "id", id)
	}
	if err := d.out.Send(out); err != nil {
		applog.Error("dispatch.reply", err, "id", id)
	}
}

func groupLabel(id int) string {
	if id == types.NoGroup {
		return "ungrouped"
	}
	return fmt.Sprintf("group %d", id)
}
