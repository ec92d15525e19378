package tabstore

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/lotas/tabgruppen/internal/types"
)

// Call records one mutating call made against a Memory store.
type Call struct {
	Op      string // "join", "update", "ungroup"
	TabIDs  []int
	GroupID int
}

// Memory is an in-process Store. It backs offline planning and tests.
// Groups disappear once their last tab leaves, as they do in the browser.
type Memory struct {
	mu        sync.Mutex
	tabs      map[int]*types.Tab
	groups    map[int]*types.Group
	nextGroup int
	calls     []Call

	// Fail hooks, when set, are consulted before a mutation is applied. A
	// non-nil return aborts the call with that error.
	FailJoin    func(tabIDs []int, groupID int) error
	FailUpdate  func(groupID int, attempt int) error
	FailUngroup func(tabIDs []int) error

	updates map[int]int
}

// NewMemory creates a store holding copies of tabs and groups.
func NewMemory(tabs []*types.Tab, groups []*types.Group) *Memory {
	m := &Memory{
		tabs:      make(map[int]*types.Tab),
		groups:    make(map[int]*types.Group),
		nextGroup: 1,
		updates:   make(map[int]int),
	}
	for _, t := range tabs {
		c := *t
		m.tabs[t.ID] = &c
	}
	for _, g := range groups {
		c := *g
		m.groups[g.ID] = &c
		if g.ID >= m.nextGroup {
			m.nextGroup = g.ID + 1
		}
	}
	return m
}

// AddTab inserts or replaces a tab.
func (m *Memory) AddTab(t *types.Tab) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *t
	m.tabs[t.ID] = &c
}

// RemoveTab closes a tab.
func (m *Memory) RemoveTab(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tabs, id)
	m.pruneGroups()
}

// Calls returns the mutating calls made so far.
func (m *Memory) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// CountCalls returns how many op calls touched tabID.
func (m *Memory) CountCalls(op string, tabID int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Op == op && slices.Contains(c.TabIDs, tabID) {
			n++
		}
	}
	return n
}

// Group returns a copy of the group with id, or nil.
func (m *Memory) Group(id int) *types.Group {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return nil
	}
	c := *g
	return &c
}

func (m *Memory) Tab(ctx context.Context, id int) (*types.Tab, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tabs[id]
	if !ok {
		return nil, &StoreError{Op: "get tab", Err: ErrNotFound}
	}
	c := *t
	return &c, nil
}

func (m *Memory) ListTabs(ctx context.Context, f Filter) ([]*types.Tab, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.Tab
	for _, t := range m.tabs {
		if f.Match(t) {
			c := *t
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].WindowID != out[j].WindowID {
			return out[i].WindowID < out[j].WindowID
		}
		if out[i].Index != out[j].Index {
			return out[i].Index < out[j].Index
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) ListGroups(ctx context.Context, windowID int) ([]*types.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.Group
	for _, g := range m.groups {
		if windowID == 0 || g.WindowID == windowID {
			c := *g
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) JoinGroup(ctx context.Context, tabIDs []int, groupID int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Op: "join", TabIDs: slices.Clone(tabIDs), GroupID: groupID})

	if m.FailJoin != nil {
		if err := m.FailJoin(tabIDs, groupID); err != nil {
			return types.NoGroup, &StoreError{Op: "group", Err: err}
		}
	}
	if len(tabIDs) == 0 {
		return types.NoGroup, &StoreError{Op: "group", Err: ErrNotFound}
	}
	for _, id := range tabIDs {
		if _, ok := m.tabs[id]; !ok {
			return types.NoGroup, &StoreError{Op: "group", Err: ErrNotFound}
		}
	}

	if groupID == types.NoGroup {
		groupID = m.nextGroup
		m.nextGroup++
		m.groups[groupID] = &types.Group{ID: groupID, WindowID: m.tabs[tabIDs[0]].WindowID, Color: types.ColorGrey}
	} else if _, ok := m.groups[groupID]; !ok {
		return types.NoGroup, &StoreError{Op: "group", Err: ErrNotFound}
	}

	for _, id := range tabIDs {
		m.tabs[id].GroupID = groupID
	}
	m.pruneGroups()
	return groupID, nil
}

func (m *Memory) UpdateGroup(ctx context.Context, groupID int, u GroupUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Op: "update", GroupID: groupID})
	m.updates[groupID]++

	if m.FailUpdate != nil {
		if err := m.FailUpdate(groupID, m.updates[groupID]); err != nil {
			return &StoreError{Op: "update group", Err: err}
		}
	}
	g, ok := m.groups[groupID]
	if !ok {
		return &StoreError{Op: "update group", Err: ErrNotFound}
	}
	if u.Title != nil {
		g.Title = *u.Title
	}
	if u.Color != "" {
		g.Color = u.Color
	}
	if u.Collapsed != nil {
		g.Collapsed = *u.Collapsed
	}
	return nil
}

func (m *Memory) Ungroup(ctx context.Context, tabIDs []int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Op: "ungroup", TabIDs: slices.Clone(tabIDs)})

	if m.FailUngroup != nil {
		if err := m.FailUngroup(tabIDs); err != nil {
			return &StoreError{Op: "ungroup", Err: err}
		}
	}
	for _, id := range tabIDs {
		if t, ok := m.tabs[id]; ok {
			t.GroupID = types.NoGroup
		}
	}
	m.pruneGroups()
	return nil
}

// pruneGroups drops groups without tabs. Callers hold mu.
func (m *Memory) pruneGroups() {
	used := make(map[int]bool, len(m.groups))
	for _, t := range m.tabs {
		if t.Grouped() {
			used[t.GroupID] = true
		}
	}
	for id := range m.groups {
		if !used[id] {
			delete(m.groups, id)
		}
	}
}
