package viz

import (
	"errors"
	"sort"

	"github.com/rawblock/ringbreaker-engine/internal/graph"
)

// Community Detection (Label Propagation)
//
// Groups accounts into visual communities for the frontend graph view.
// Label propagation over the undirected projection of the transaction graph:
// every node starts with its own label and repeatedly adopts the most common
// label among its neighbours. Updates are applied in place during a sweep in
// fixed node order with ties broken on the smallest label, so the outcome is
// fully deterministic for a given graph. Synchronous sweeps would oscillate
// on any two-node component; in-place sweeps settle instead.
//
// Purely cosmetic: detection and ring grouping never read these labels.

// maxPropagationRounds bounds the sweep; pathological graphs can keep
// flipping labels rather than settle.
const maxPropagationRounds = 50

// ErrNoConvergence reports that label propagation was still flipping labels
// after the round budget. Callers fall back to a flat single community.
var ErrNoConvergence = errors.New("label propagation did not converge")

// Communities returns a community index per account ID, with indexes
// renumbered to 0..k-1 in first-appearance order over sorted account IDs.
func Communities(g *graph.Graph) (map[string]int, error) {
	nodes := append([]string(nil), g.Nodes()...)
	sort.Strings(nodes)

	// undirected adjacency, neighbour lists sorted for the tie-break scan
	neighbours := make(map[string][]string, len(nodes))
	for _, id := range nodes {
		set := make(map[string]struct{})
		for _, s := range g.Successors(id) {
			set[s] = struct{}{}
		}
		for _, p := range g.Predecessors(id) {
			set[p] = struct{}{}
		}
		delete(set, id)
		adj := make([]string, 0, len(set))
		for n := range set {
			adj = append(adj, n)
		}
		sort.Strings(adj)
		neighbours[id] = adj
	}

	labels := make(map[string]int, len(nodes))
	for i, id := range nodes {
		labels[id] = i
	}

	converged := false
	for round := 0; round < maxPropagationRounds && !converged; round++ {
		converged = true
		for _, id := range nodes {
			adj := neighbours[id]
			if len(adj) == 0 {
				continue
			}
			counts := make(map[int]int, len(adj))
			for _, n := range adj {
				counts[labels[n]]++
			}
			best := labels[adj[0]]
			for label, count := range counts {
				if count > counts[best] || (count == counts[best] && label < best) {
					best = label
				}
			}
			if best != labels[id] {
				labels[id] = best
				converged = false
			}
		}
	}
	if !converged {
		return nil, ErrNoConvergence
	}

	// renumber to dense community indexes
	renumber := make(map[int]int)
	result := make(map[string]int, len(nodes))
	for _, id := range nodes {
		label := labels[id]
		if _, ok := renumber[label]; !ok {
			renumber[label] = len(renumber)
		}
		result[id] = renumber[label]
	}
	return result, nil
}
