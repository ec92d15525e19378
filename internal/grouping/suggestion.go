// Package grouping builds batch grouping requests, parses the model's
// suggestions and reconciles them against the live tab list.
package grouping

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lotas/tabgruppen/internal/types"
)

var (
	// ErrEmptySuggestion is returned when the model proposed no groups.
	ErrEmptySuggestion = errors.New("suggestion contains no groups")
	// ErrMalformedSuggestion is returned when a group lacks a name, a
	// valid color, or any member list.
	ErrMalformedSuggestion = errors.New("malformed suggestion")
)

// MembersKind tells how a suggested group names its tabs.
type MembersKind int

const (
	MembersByIndex MembersKind = iota + 1
	MembersByTitle
)

// Members lists the tabs of a suggested group, either as positions in the
// input tab list or as tab titles to be reconciled.
type Members struct {
	Kind    MembersKind
	Indices []int
	Titles  []string
}

// SuggestedGroup is one group proposed by the model.
type SuggestedGroup struct {
	Name      string
	Color     types.Color
	Members   Members
	Reasoning string
}

// Suggestion is the parsed response to a batch grouping request.
type Suggestion struct {
	Groups []SuggestedGroup
}

type rawSuggestion struct {
	Groups json.RawMessage `json:"groups"`
}

type rawGroup struct {
	Name      any             `json:"group_name"`
	Color     any             `json:"group_color"`
	Indices   json.RawMessage `json:"tab_indices"`
	Titles    json.RawMessage `json:"tab_titles"`
	Reasoning string          `json:"reasoning"`
}

// ParseSuggestion decodes and validates a batch grouping response for
// tabCount input tabs. Member lists delivered as JSON-encoded strings are
// decoded in place. When a group carries both lists, indices win if every
// index is within range; otherwise titles are used.
func ParseSuggestion(raw []byte, tabCount int) (*Suggestion, error) {
	var rs rawSuggestion
	if err := json.Unmarshal(raw, &rs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSuggestion, err)
	}
	groupsJSON, err := unquoteList(rs.Groups)
	if err != nil {
		return nil, fmt.Errorf("%w: groups: %v", ErrMalformedSuggestion, err)
	}
	if groupsJSON == nil {
		return nil, fmt.Errorf("%w: missing groups list", ErrMalformedSuggestion)
	}

	var groups []rawGroup
	if err := json.Unmarshal(groupsJSON, &groups); err != nil {
		return nil, fmt.Errorf("%w: groups: %v", ErrMalformedSuggestion, err)
	}
	if len(groups) == 0 {
		return nil, ErrEmptySuggestion
	}

	s := &Suggestion{Groups: make([]SuggestedGroup, 0, len(groups))}
	for i, rg := range groups {
		g, err := parseGroup(rg, tabCount)
		if err != nil {
			return nil, fmt.Errorf("%w: group %d: %v", ErrMalformedSuggestion, i, err)
		}
		s.Groups = append(s.Groups, g)
	}
	return s, nil
}

// ValidateSuggestion returns a validator for ai.Completer that accepts
// only well-formed suggestions.
func ValidateSuggestion(tabCount int) func([]byte) error {
	return func(raw []byte) error {
		_, err := ParseSuggestion(raw, tabCount)
		return err
	}
}

func parseGroup(rg rawGroup, tabCount int) (SuggestedGroup, error) {
	name, ok := rg.Name.(string)
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return SuggestedGroup{}, errors.New("group_name must be a non-empty string")
	}
	colorStr, _ := rg.Color.(string)
	color, err := types.ParseColor(colorStr)
	if err != nil {
		return SuggestedGroup{}, err
	}

	g := SuggestedGroup{Name: name, Color: color, Reasoning: rg.Reasoning}

	indicesJSON, err := unquoteList(rg.Indices)
	if err != nil {
		return SuggestedGroup{}, fmt.Errorf("tab_indices: %v", err)
	}
	titlesJSON, err := unquoteList(rg.Titles)
	if err != nil {
		return SuggestedGroup{}, fmt.Errorf("tab_titles: %v", err)
	}
	if indicesJSON == nil && titlesJSON == nil {
		return SuggestedGroup{}, errors.New("neither tab_indices nor tab_titles given")
	}

	var indices []int
	if indicesJSON != nil {
		if indices, err = decodeIndices(indicesJSON); err != nil {
			return SuggestedGroup{}, fmt.Errorf("tab_indices: %v", err)
		}
	}
	var titles []string
	if titlesJSON != nil {
		if err := json.Unmarshal(titlesJSON, &titles); err != nil {
			return SuggestedGroup{}, fmt.Errorf("tab_titles: %v", err)
		}
	}

	switch {
	case indicesJSON != nil && (titlesJSON == nil || inRange(indices, tabCount)):
		g.Members = Members{Kind: MembersByIndex, Indices: indices}
	default:
		g.Members = Members{Kind: MembersByTitle, Titles: titles}
	}
	return g, nil
}

// unquoteList returns the JSON array in raw, decoding it first when the
// model wrapped the array in a string. It returns nil for absent or null
// values.
func unquoteList(raw json.RawMessage) (json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		raw = json.RawMessage(strings.TrimSpace(s))
	}
	if len(raw) == 0 || raw[0] != '[' {
		return nil, errors.New("not a list")
	}
	return raw, nil
}

func decodeIndices(raw json.RawMessage) ([]int, error) {
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case float64:
			if v != math.Trunc(v) {
				return nil, fmt.Errorf("index %v is not an integer", v)
			}
			out = append(out, int(v))
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("index %q is not an integer", v)
			}
			out = append(out, n)
		default:
			return nil, fmt.Errorf("index %v has type %T", v, v)
		}
	}
	return out, nil
}

func inRange(indices []int, n int) bool {
	for _, i := range indices {
		if i < 0 || i >= n {
			return false
		}
	}
	return true
}
