package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotas/tabgruppen/internal/ai"
	"github.com/lotas/tabgruppen/internal/config"
	"github.com/lotas/tabgruppen/internal/engine"
	"github.com/lotas/tabgruppen/internal/ledger"
	"github.com/lotas/tabgruppen/internal/server"
	"github.com/lotas/tabgruppen/internal/storage"
	"github.com/lotas/tabgruppen/internal/tabstore"
	"github.com/lotas/tabgruppen/internal/types"
)

type recorder struct {
	mu   sync.Mutex
	sent []server.OutgoingMsg
}

func (r *recorder) Send(msg server.OutgoingMsg) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recorder) last(t *testing.T) server.OutgoingMsg {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.sent)
	return r.sent[len(r.sent)-1]
}

// noModel fails every completion; tests here never reach the model.
type noModel struct{}

func (noModel) Complete(ctx context.Context, req ai.Request, validate func([]byte) error) ([]byte, error) {
	return nil, &ai.ConfigError{Msg: "no model in tests"}
}

// idleTimer never fires, so only load events can trigger evaluation.
type idleTimer struct{}

func (idleTimer) Stop() bool { return true }

func neverFire(time.Duration, func()) engine.Timer { return idleTimer{} }

type fixture struct {
	d      *Dispatcher
	out    *recorder
	store  *tabstore.Memory
	ledger *ledger.Ledger
	engine *engine.Engine
}

func newFixture(t *testing.T, tabs []*types.Tab, groups []*types.Group) *fixture {
	t.Helper()
	db, err := storage.OpenDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	settings := config.NewStore(db)
	store := tabstore.NewMemory(tabs, groups)
	l := ledger.New(ledger.NewSQLRepository(db), store, settings)
	e := engine.New(store, noModel{}, l, settings, engine.Options{AfterFunc: neverFire})
	t.Cleanup(e.Close)

	out := &recorder{}
	return &fixture{d: New(out, e, l, settings), out: out, store: store, ledger: l, engine: e}
}

func TestUndoRequest(t *testing.T) {
	f := newFixture(t,
		[]*types.Tab{{ID: 1, WindowID: 1, GroupID: 20, URL: "https://a.example"}, {ID: 2, WindowID: 1, GroupID: 10}},
		[]*types.Group{{ID: 10, WindowID: 1}, {ID: 20, WindowID: 1}})
	ctx := context.Background()
	a, err := f.ledger.Push(ctx, types.GroupingAction{TabID: 1, FromGroupID: 10, ToGroupID: 20})
	require.NoError(t, err)

	f.d.Handle(ctx, server.IncomingMsg{Type: server.TypeUndo, ID: "req-1", ActionID: a.ID})

	reply := f.out.last(t)
	assert.Equal(t, "req-1", reply.ID)
	assert.Equal(t, server.ActionReply, reply.Action)
	require.NotNil(t, reply.OK)
	assert.True(t, *reply.OK)

	tab, _ := f.store.Tab(ctx, 1)
	assert.Equal(t, 10, tab.GroupID)
}

func TestUndoEmptyHistoryReportsError(t *testing.T) {
	f := newFixture(t, nil, nil)

	f.d.Handle(context.Background(), server.IncomingMsg{Type: server.TypeUndo, ID: "req-2"})

	reply := f.out.last(t)
	assert.False(t, *reply.OK)
	assert.Equal(t, ledger.ErrEmpty.Error(), reply.Error)
	assert.Nil(t, reply.Data)
}

func TestUndoHistoryRequest(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	f.d.Handle(ctx, server.IncomingMsg{Type: server.TypeUndoHistory, ID: "h1"})
	data, _ := json.Marshal(f.out.last(t))
	assert.Contains(t, string(data), `"data":[]`)

	f.ledger.Push(ctx, types.GroupingAction{TabID: 5, ToGroupID: 3, Reasoning: "r"})
	f.d.Handle(ctx, server.IncomingMsg{Type: server.TypeUndoHistory, ID: "h2"})
	history, ok := f.out.last(t).Data.([]types.GroupingAction)
	require.True(t, ok)
	require.Len(t, history, 1)
	assert.Equal(t, 5, history[0].TabID)

	f.d.Handle(ctx, server.IncomingMsg{Type: server.TypeClearUndoHistory, ID: "h3"})
	assert.True(t, *f.out.last(t).OK)
	list, _ := f.ledger.List(ctx)
	assert.Empty(t, list)
}

func TestConfigRequests(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	f.d.Handle(ctx, server.IncomingMsg{
		Type:     server.TypeSetConfig,
		ID:       "c1",
		Settings: json.RawMessage(`{"maxTabsPerGroup": 4, "aiProvider": "ollama"}`),
	})
	require.True(t, *f.out.last(t).OK)

	f.d.Handle(ctx, server.IncomingMsg{Type: server.TypeGetConfig, ID: "c2"})
	s, ok := f.out.last(t).Data.(config.Settings)
	require.True(t, ok)
	assert.Equal(t, 4, s.MaxTabsPerGroup)
	assert.Equal(t, "ollama", s.AIProvider)

	f.d.Handle(ctx, server.IncomingMsg{Type: server.TypeSetConfig, ID: "c3", Settings: json.RawMessage(`{"bogus": 1}`)})
	assert.False(t, *f.out.last(t).OK)
}

func TestTabEventsReachEngine(t *testing.T) {
	f := newFixture(t, []*types.Tab{{ID: 7, WindowID: 1, GroupID: types.NoGroup, URL: "https://news.example.com", Title: "Headlines - News"}}, nil)
	ctx := context.Background()
	tab := json.RawMessage(`{"id": 7, "windowId": 1, "groupId": -1, "url": "https://news.example.com", "title": "Headlines - News"}`)

	f.d.Handle(ctx, server.IncomingMsg{Type: server.TypeTabCreated, Tab: tab})
	f.d.Handle(ctx, server.IncomingMsg{Type: server.TypeTabUpdated, Tab: tab, ChangeInfo: &server.ChangeInfo{Status: "complete"}})

	got, _ := f.store.Tab(ctx, 7)
	require.True(t, got.Grouped())
	assert.Equal(t, "Headlines", f.store.Group(got.GroupID).Title)

	last, err := f.ledger.Last(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, 7, last.TabID)

	select {
	case ev := <-f.d.Events():
		assert.Equal(t, "tab", ev.Kind)
	default:
		t.Fatal("expected an activity event")
	}
}

func TestRunStopsWhenChannelCloses(t *testing.T) {
	f := newFixture(t, nil, nil)
	msgs := make(chan server.IncomingMsg, 1)
	msgs <- server.IncomingMsg{Type: server.TypeUndoHistory, ID: "r1"}
	close(msgs)

	f.d.Run(context.Background(), msgs)
	assert.Equal(t, "r1", f.out.last(t).ID)
}

func TestRunKeepsTabEventOrder(t *testing.T) {
	const n = 50
	var tabs []*types.Tab
	msgs := make(chan server.IncomingMsg, 2*n)
	for id := 1; id <= n; id++ {
		// One window per tab keeps every decision local to its tab.
		tab := &types.Tab{ID: id, WindowID: id, GroupID: types.NoGroup, URL: "https://news.example.com", Title: "Headlines - News"}
		tabs = append(tabs, tab)
		raw := json.RawMessage(fmt.Sprintf(`{"id": %d, "windowId": %d, "groupId": -1, "url": "https://news.example.com", "title": "Headlines - News"}`, id, id))
		msgs <- server.IncomingMsg{Type: server.TypeTabCreated, Tab: raw}
		msgs <- server.IncomingMsg{Type: server.TypeTabUpdated, Tab: raw, ChangeInfo: &server.ChangeInfo{Status: "complete"}}
	}
	close(msgs)
	f := newFixture(t, tabs, nil)
	ctx := context.Background()

	f.d.Run(ctx, msgs)

	for id := 1; id <= n; id++ {
		assert.Equal(t, engine.StateObserved, f.engine.State(id), "tab %d still waiting", id)
		got, err := f.store.Tab(ctx, id)
		require.NoError(t, err)
		assert.True(t, got.Grouped(), "tab %d not grouped", id)
	}
	assert.Zero(t, f.engine.Pending())
}

func TestRunRemovedBeforeLoadLeavesNothingPending(t *testing.T) {
	tab := json.RawMessage(`{"id": 9, "windowId": 1, "groupId": -1, "url": "https://a.example", "title": "A"}`)
	msgs := make(chan server.IncomingMsg, 2)
	msgs <- server.IncomingMsg{Type: server.TypeTabCreated, Tab: tab}
	msgs <- server.IncomingMsg{Type: server.TypeTabRemoved, TabID: 9}
	close(msgs)
	f := newFixture(t, []*types.Tab{{ID: 9, WindowID: 1, GroupID: types.NoGroup, URL: "https://a.example", Title: "A"}}, nil)

	f.d.Run(context.Background(), msgs)

	assert.Zero(t, f.engine.Pending())
}
