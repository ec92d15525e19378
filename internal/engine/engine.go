// Package engine decides where new and navigated tabs belong and applies
// the decision through a tabstore.Store.
//
// Every new tab moves through an explicit state machine:
//
//	Observed → Pending → Evaluating → Resolved
//	                      Evaluating → Failed → Resolved
//
// A pending tab is evaluated when its page finishes loading or when the
// fallback timer fires, whichever happens first. Grouped tabs whose URL
// changes are regrouped after a debounce, at most one regroup per tab at a
// time.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/lotas/tabgruppen/internal/ai"
	"github.com/lotas/tabgruppen/internal/applog"
	"github.com/lotas/tabgruppen/internal/config"
	"github.com/lotas/tabgruppen/internal/grouping"
	"github.com/lotas/tabgruppen/internal/ledger"
	"github.com/lotas/tabgruppen/internal/tabstore"
	"github.com/lotas/tabgruppen/internal/types"
)

// TabState is the position of a new tab in the auto-grouping lifecycle.
type TabState int

const (
	StateObserved TabState = iota
	StatePending
	StateEvaluating
	StateFailed
	StateResolved
)

func (s TabState) String() string {
	switch s {
	case StateObserved:
		return "observed"
	case StatePending:
		return "pending"
	case StateEvaluating:
		return "evaluating"
	case StateFailed:
		return "failed"
	case StateResolved:
		return "resolved"
	}
	return "unknown"
}

// Timer is a cancellable scheduled call.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// TitleResolver looks up the title of a page the browser has not named yet.
type TitleResolver interface {
	ResolveTitle(ctx context.Context, url string) (string, error)
}

// Options customises an Engine. The zero value is ready to use.
type Options struct {
	// AfterFunc replaces time.AfterFunc for the fallback and debounce timers.
	AfterFunc AfterFunc
	// OnTransition is called, with the engine lock held, on every state
	// change of a new tab. It must not call back into the Engine.
	OnTransition func(tabID int, from, to TabState)
	// Titles resolves missing titles when fetchMissingTitles is enabled.
	Titles TitleResolver
}

type pendingTab struct {
	tabID       int
	state       TabState
	scheduledAt time.Time
	timer       Timer
}

// Engine holds the per-tab bookkeeping of the grouping daemon. Create one
// with New and feed it browser events.
type Engine struct {
	store    tabstore.Store
	ai       ai.Completer
	ledger   *ledger.Ledger
	settings config.Source
	strategy *grouping.Strategy
	opts     Options

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	pending     map[int]*pendingTab
	regrouping  map[int]struct{}
	debounce    map[int]Timer
	activeGroup int
}

// New creates an Engine.
func New(store tabstore.Store, completer ai.Completer, l *ledger.Ledger, settings config.Source, opts Options) *Engine {
	if opts.AfterFunc == nil {
		opts.AfterFunc = realAfterFunc
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:       store,
		ai:          completer,
		ledger:      l,
		settings:    settings,
		strategy:    grouping.NewStrategy(completer),
		opts:        opts,
		ctx:         ctx,
		cancel:      cancel,
		pending:     make(map[int]*pendingTab),
		regrouping:  make(map[int]struct{}),
		debounce:    make(map[int]Timer),
		activeGroup: types.NoGroup,
	}
}

// Close stops all timers. Tabs still pending are dropped.
func (e *Engine) Close() {
	e.cancel()
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, p := range e.pending {
		if p.timer != nil {
			p.timer.Stop()
		}
		delete(e.pending, id)
	}
	for id, t := range e.debounce {
		t.Stop()
		delete(e.debounce, id)
	}
}

// State returns the lifecycle state of a tab waiting for or undergoing
// evaluation. Tabs the engine is not tracking report StateObserved.
func (e *Engine) State(tabID int) TabState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.pending[tabID]; ok {
		return p.state
	}
	return StateObserved
}

// Pending returns how many tabs wait for or undergo evaluation.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// setState moves p to state. Callers hold e.mu.
func (e *Engine) setState(p *pendingTab, to TabState) {
	from := p.state
	p.state = to
	if e.opts.OnTransition != nil {
		e.opts.OnTransition(p.tabID, from, to)
	}
}

func (e *Engine) currentSettings(ctx context.Context) config.Settings {
	s, err := e.settings.Settings(ctx)
	if err != nil {
		applog.Error("engine.settings", err)
		return config.Defaults()
	}
	return s
}

// OnTabCreated schedules a new tab for auto-grouping. The tab is evaluated
// by OnTabLoaded or, if the page never finishes loading, by the fallback
// timer.
func (e *Engine) OnTabCreated(ctx context.Context, tab *types.Tab) {
	s := e.currentSettings(ctx)
	if !s.AutoGroupNewTabs {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.pending[tab.ID]; ok {
		return
	}
	p := &pendingTab{tabID: tab.ID, state: StateObserved, scheduledAt: time.Now()}
	e.pending[tab.ID] = p
	e.setState(p, StatePending)

	id := tab.ID
	p.timer = e.opts.AfterFunc(s.Delays.Fallback(), func() {
		applog.Info("autogroup.fallback_timer", "tab", id)
		e.evaluate(e.ctx, id)
	})
	applog.Info("autogroup.scheduled", "tab", tab.ID, "fallback", s.Delays.Fallback())
}

// OnTabLoaded evaluates a pending tab once its page has finished loading.
func (e *Engine) OnTabLoaded(ctx context.Context, tabID int) {
	e.evaluate(ctx, tabID)
}

// OnTabURLChanged reacts to navigation. Grouped tabs are regrouped after
// the regroup delay; a later change re-arms the delay. Ungrouped tabs that
// are not already pending are scheduled like new tabs.
func (e *Engine) OnTabURLChanged(ctx context.Context, tab *types.Tab) {
	if !tab.Grouped() {
		e.mu.Lock()
		_, pending := e.pending[tab.ID]
		e.mu.Unlock()
		if !pending {
			e.OnTabCreated(ctx, tab)
		}
		return
	}

	s := e.currentSettings(ctx)
	if !s.AutoRegroupTabs {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.debounce[tab.ID]; ok {
		t.Stop()
	}
	id := tab.ID
	var timer Timer
	timer = e.opts.AfterFunc(s.Delays.Regroup(), func() {
		e.mu.Lock()
		if e.debounce[id] == timer {
			delete(e.debounce, id)
		}
		e.mu.Unlock()
		e.Regroup(e.ctx, id)
	})
	e.debounce[tab.ID] = timer
	applog.Info("regroup.scheduled", "tab", tab.ID, "delay", s.Delays.Regroup())
}

// OnTabRemoved forgets a closed tab and cancels its timers.
func (e *Engine) OnTabRemoved(tabID int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.pending[tabID]; ok {
		if p.timer != nil {
			p.timer.Stop()
		}
		delete(e.pending, tabID)
	}
	if t, ok := e.debounce[tabID]; ok {
		t.Stop()
		delete(e.debounce, tabID)
	}
	delete(e.regrouping, tabID)
}
