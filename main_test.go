package main

import (
	"reflect"
	"testing"

	"github.com/lotas/tabgruppen/internal/types"
)

func TestReorderArgs(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{[]string{"--profile", "work"}, []string{"--profile", "work"}},
		{[]string{"x", "--window", "2"}, []string{"--window", "2", "x"}},
		{[]string{"--json", "--mode=titles"}, []string{"--json", "--mode=titles"}},
		{[]string{"--json", "x"}, []string{"--json", "x"}},
	}
	for _, tt := range tests {
		if got := reorderArgs(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("reorderArgs(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWindowIDs(t *testing.T) {
	tabs := []*types.Tab{{WindowID: 3}, {WindowID: 1}, {WindowID: 3}}
	if got := windowIDs(tabs, 0); !reflect.DeepEqual(got, []int{1, 3}) {
		t.Errorf("windowIDs = %v, want [1 3]", got)
	}
	if got := windowIDs(tabs, 2); !reflect.DeepEqual(got, []int{2}) {
		t.Errorf("windowIDs(only=2) = %v, want [2]", got)
	}
}

func TestResolveProfileName(t *testing.T) {
	t.Setenv("TABGRUPPEN_PROFILE", "env-profile")
	if got := resolveProfileName("flag"); got != "flag" {
		t.Errorf("got %q, want flag", got)
	}
	if got := resolveProfileName(""); got != "env-profile" {
		t.Errorf("got %q, want env-profile", got)
	}
}
