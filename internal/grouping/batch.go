package grouping

import (
	"context"
	"fmt"

	"github.com/lotas/tabgruppen/internal/ai"
	"github.com/lotas/tabgruppen/internal/applog"
	"github.com/lotas/tabgruppen/internal/types"
)

// DefaultLargeBatchThreshold is the tab count from which auto mode asks for
// titles instead of indices.
const DefaultLargeBatchThreshold = 30

// Options tunes a batch grouping request.
type Options struct {
	MaxTabsPerGroup     int
	Instructions        string
	Mode                Mode
	LargeBatchThreshold int
}

// ModeFor returns the mode used for n tabs.
func (o Options) ModeFor(n int) Mode {
	switch o.Mode {
	case ModeDirect, ModeTitles:
		return o.Mode
	}
	threshold := o.LargeBatchThreshold
	if threshold <= 0 {
		threshold = DefaultLargeBatchThreshold
	}
	if n >= threshold {
		return ModeTitles
	}
	return ModeDirect
}

// Plan is a finalized batch assignment covering every input tab once.
type Plan struct {
	Mode   Mode
	Groups []PlannedGroup
}

// NonEmpty returns the planned groups that have at least one tab.
func (p *Plan) NonEmpty() []PlannedGroup {
	var out []PlannedGroup
	for _, g := range p.Groups {
		if len(g.TabIDs) > 0 {
			out = append(out, g)
		}
	}
	return out
}

// Strategy groups many tabs with one model request.
type Strategy struct {
	ai ai.Completer
}

// NewStrategy creates a Strategy backed by c.
func NewStrategy(c ai.Completer) *Strategy {
	return &Strategy{ai: c}
}

// Plan asks the model to group tabs and returns the finalized assignment.
func (s *Strategy) Plan(ctx context.Context, tabs []*types.Tab, opts Options) (*Plan, error) {
	mode := opts.ModeFor(len(tabs))
	if len(tabs) == 0 {
		return &Plan{Mode: mode}, nil
	}

	req := BuildBatchRequest(tabs, opts.MaxTabsPerGroup, opts.Instructions, mode)
	raw, err := s.ai.Complete(ctx, req, ValidateSuggestion(len(tabs)))
	if err != nil {
		return nil, fmt.Errorf("batch grouping: %w", err)
	}
	suggestion, err := ParseSuggestion(raw, len(tabs))
	if err != nil {
		return nil, fmt.Errorf("batch grouping: %w", err)
	}

	if mode == ModeTitles {
		suggestion = ReconcileTitles(suggestion, tabs)
	} else {
		for i, g := range suggestion.Groups {
			if g.Members.Kind == MembersByTitle {
				// The model answered with titles despite being asked for indices.
				suggestion = ReconcileTitles(suggestion, tabs)
				applog.Warn("batch.titles_in_direct_mode", nil, "group", i)
				break
			}
		}
	}

	plan := &Plan{Mode: mode, Groups: Finalize(suggestion, len(tabs))}
	for i := range plan.Groups {
		for _, idx := range plan.Groups[i].TabIndices {
			plan.Groups[i].TabIDs = append(plan.Groups[i].TabIDs, tabs[idx].ID)
		}
	}
	applog.Info("batch.plan", "mode", string(mode), "tabs", len(tabs), "groups", len(plan.Groups))
	return plan, nil
}
