package grouping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/lotas/tabgruppen/internal/ai"
	"github.com/lotas/tabgruppen/internal/types"
)

// MaxNameLen is the longest group name, in characters, the engine applies.
const MaxNameLen = 20

// Choice is the answer to "new group or existing group".
type Choice struct {
	CreateNew bool
	Reasoning string
}

// Target is the existing group picked for a tab.
type Target struct {
	GroupID   int
	Reasoning string
}

// GroupDetails is a proposed name and color for a new group.
type GroupDetails struct {
	Name      string
	Color     types.Color
	Reasoning string
}

// Decider asks the model the three narrow questions behind a single-tab
// grouping decision. Each answer is validated before it is accepted, so an
// invalid answer is retried by the Completer.
type Decider struct {
	ai           ai.Completer
	instructions string
}

// NewDecider creates a Decider. instructions is the user's free-text
// grouping guidance and may be empty.
func NewDecider(c ai.Completer, instructions string) *Decider {
	return &Decider{ai: c, instructions: instructions}
}

// Choose asks whether tab should start a new group rather than join one of
// groups.
func (d *Decider) Choose(ctx context.Context, tab *types.Tab, groups []*types.Group) (Choice, error) {
	var out Choice
	_, err := d.ai.Complete(ctx, BuildChoiceRequest(tab, groups, d.instructions), func(raw []byte) error {
		var resp struct {
			CreateNew *bool   `json:"create_new_group"`
			Reasoning *string `json:"reasoning"`
		}
		if err := json.Unmarshal(raw, &resp); err != nil {
			return err
		}
		if resp.CreateNew == nil {
			return errors.New("create_new_group must be a boolean")
		}
		if resp.Reasoning == nil {
			return errors.New("reasoning must be a string")
		}
		out = Choice{CreateNew: *resp.CreateNew, Reasoning: *resp.Reasoning}
		return nil
	})
	if err != nil {
		return Choice{}, fmt.Errorf("group choice: %w", err)
	}
	return out, nil
}

// Target asks which of groups tab should join. Ids outside groups are
// rejected.
func (d *Decider) Target(ctx context.Context, tab *types.Tab, groups []*types.Group) (Target, error) {
	valid := make(map[int]bool, len(groups))
	for _, g := range groups {
		valid[g.ID] = true
	}

	var out Target
	_, err := d.ai.Complete(ctx, BuildTargetRequest(tab, groups, d.instructions), func(raw []byte) error {
		var resp struct {
			GroupID   *float64 `json:"target_group_id"`
			Reasoning string   `json:"reasoning"`
		}
		if err := json.Unmarshal(raw, &resp); err != nil {
			return err
		}
		if resp.GroupID == nil || *resp.GroupID != math.Trunc(*resp.GroupID) {
			return errors.New("target_group_id must be an integer")
		}
		id := int(*resp.GroupID)
		if !valid[id] {
			return fmt.Errorf("target_group_id %d is not one of the candidate groups", id)
		}
		out = Target{GroupID: id, Reasoning: resp.Reasoning}
		return nil
	})
	if err != nil {
		return Target{}, fmt.Errorf("group target: %w", err)
	}
	return out, nil
}

// NewGroupDetails asks for a name and color for a group started by tab.
// Names longer than MaxNameLen are cut.
func (d *Decider) NewGroupDetails(ctx context.Context, tab *types.Tab) (GroupDetails, error) {
	var out GroupDetails
	_, err := d.ai.Complete(ctx, BuildNewGroupRequest(tab, d.instructions), func(raw []byte) error {
		var resp struct {
			Name      *string `json:"suggested_name"`
			Color     string  `json:"suggested_color"`
			Reasoning string  `json:"reasoning"`
		}
		if err := json.Unmarshal(raw, &resp); err != nil {
			return err
		}
		if resp.Name == nil || strings.TrimSpace(*resp.Name) == "" {
			return errors.New("suggested_name must be a non-empty string")
		}
		color, err := types.ParseColor(resp.Color)
		if err != nil {
			return err
		}
		out = GroupDetails{
			Name:      truncateRunes(strings.TrimSpace(*resp.Name), MaxNameLen),
			Color:     color,
			Reasoning: resp.Reasoning,
		}
		return nil
	})
	if err != nil {
		return GroupDetails{}, fmt.Errorf("group details: %w", err)
	}
	return out, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
