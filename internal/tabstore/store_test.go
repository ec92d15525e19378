package tabstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lotas/tabgruppen/internal/types"
)

func newTestStore() *Memory {
	return NewMemory([]*types.Tab{
		{ID: 1, WindowID: 1, GroupID: types.NoGroup, URL: "https://a.example"},
		{ID: 2, WindowID: 1, GroupID: 5, URL: "https://b.example"},
		{ID: 3, WindowID: 2, GroupID: types.NoGroup, URL: "https://c.example", Pinned: true},
	}, []*types.Group{
		{ID: 5, WindowID: 1, Title: "Docs", Color: types.ColorBlue},
	})
}

func TestUpdateGroupRetries(t *testing.T) {
	s := newTestStore()
	s.FailUpdate = func(groupID, attempt int) error {
		if attempt < 3 {
			return errors.New("group busy")
		}
		return nil
	}
	title := "Reading"
	if err := UpdateGroup(context.Background(), s, 5, GroupUpdate{Title: &title}, time.Millisecond); err != nil {
		t.Fatalf("UpdateGroup: %v", err)
	}
	if got := s.Group(5).Title; got != "Reading" {
		t.Errorf("title = %q, want Reading", got)
	}
	if n := len(s.Calls()); n != 3 {
		t.Errorf("calls = %d, want 3", n)
	}
}

func TestUpdateGroupGivesUp(t *testing.T) {
	s := newTestStore()
	s.FailUpdate = func(int, int) error { return errors.New("nope") }
	err := UpdateGroup(context.Background(), s, 5, GroupUpdate{Color: types.ColorRed}, 0)
	var se *StoreError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want StoreError", err)
	}
	if n := len(s.Calls()); n != UpdateAttempts {
		t.Errorf("calls = %d, want %d", n, UpdateAttempts)
	}
}

func TestUpdateGroupMissingIsNotRetried(t *testing.T) {
	s := newTestStore()
	err := UpdateGroup(context.Background(), s, 99, GroupUpdate{Color: types.ColorRed}, 0)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if n := len(s.Calls()); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestCreateGroup(t *testing.T) {
	s := newTestStore()
	id, err := CreateGroup(context.Background(), s, []int{1}, "News", types.ColorGreen, 0)
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	g := s.Group(id)
	if g == nil || g.Title != "News" || g.Color != types.ColorGreen || g.WindowID != 1 {
		t.Errorf("group = %+v", g)
	}
	tab, _ := s.Tab(context.Background(), 1)
	if tab.GroupID != id {
		t.Errorf("tab group = %d, want %d", tab.GroupID, id)
	}
}

func TestMemoryPrunesEmptyGroups(t *testing.T) {
	s := newTestStore()
	if err := s.Ungroup(context.Background(), []int{2}); err != nil {
		t.Fatal(err)
	}
	if s.Group(5) != nil {
		t.Error("group 5 should be gone after its last tab left")
	}
	if _, err := s.JoinGroup(context.Background(), []int{1}, 5); !errors.Is(err, ErrNotFound) {
		t.Errorf("join removed group: err = %v", err)
	}
}

func TestListTabsFilter(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	tabs, _ := s.ListTabs(ctx, Filter{WindowID: 1, Ungrouped: true})
	if len(tabs) != 1 || tabs[0].ID != 1 {
		t.Errorf("window 1 ungrouped = %v", tabs)
	}
	tabs, _ = s.ListTabs(ctx, Filter{NoPinned: true})
	if len(tabs) != 2 {
		t.Errorf("unpinned = %d tabs, want 2", len(tabs))
	}
	groups, _ := s.ListGroups(ctx, 2)
	if len(groups) != 0 {
		t.Errorf("window 2 groups = %v", groups)
	}
}
