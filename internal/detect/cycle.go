package detect

import (
	"context"

	"github.com/rawblock/ringbreaker-engine/internal/graph"
	"github.com/rawblock/ringbreaker-engine/pkg/models"
)

// Cycle Detector
//
// Enumerates simple directed cycles of length 3..MaxCycleLength with a
// depth-bounded DFS from every node. Worst case is exponential in the
// branching factor, bounded by the depth limit — an accepted trade-off:
// short cycles are the financially meaningful layering signature, and
// completeness for arbitrary lengths is a non-goal.
//
// Two self-limits keep dense graphs tractable:
//   - depth bound: paths never grow past MaxCycleLength
//   - MaxCycles cap: once that many raw cycles are collected the search
//     stops. This is explicit truncation, not an error.
//
// The same cycle is found once per start node, so raw hits are deduplicated
// by canonical identity (sorted member multiset) afterwards.

// FindCycles returns the deduplicated cycles of the graph. It fails only on
// context cancellation, which aborts the whole analysis (fail-fast).
func FindCycles(ctx context.Context, g *graph.Graph, cfg Config) ([]models.Cycle, error) {
	const minLength = 3

	var raw []models.Cycle
	capped := false

	type frame struct {
		node string
		path []string
	}

	for _, start := range g.Nodes() {
		if capped {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		stack := []frame{{node: start, path: []string{start}}}
		for len(stack) > 0 {
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if len(f.path) > cfg.MaxCycleLength {
				continue
			}

			for _, next := range g.Successors(f.node) {
				if next == start {
					if len(f.path) >= minLength {
						cycle := make(models.Cycle, len(f.path))
						copy(cycle, f.path)
						raw = append(raw, cycle)
					}
					continue
				}
				if containsNode(f.path, next) {
					continue
				}
				extended := make([]string, len(f.path)+1)
				copy(extended, f.path)
				extended[len(f.path)] = next
				stack = append(stack, frame{node: next, path: extended})
			}

			if len(raw) >= cfg.MaxCycles {
				capped = true
				break
			}
		}
	}

	// Collapse duplicates found from different start points.
	seen := make(map[string]struct{}, len(raw))
	unique := make([]models.Cycle, 0, len(raw))
	for _, cycle := range raw {
		key := cycle.CanonicalKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, cycle)
	}

	return unique, nil
}

// CycleAccounts collects every account that appears in any cycle.
func CycleAccounts(cycles []models.Cycle) map[string]struct{} {
	accounts := make(map[string]struct{})
	for _, cycle := range cycles {
		for _, id := range cycle {
			accounts[id] = struct{}{}
		}
	}
	return accounts
}

func containsNode(path []string, node string) bool {
	for _, p := range path {
		if p == node {
			return true
		}
	}
	return false
}
