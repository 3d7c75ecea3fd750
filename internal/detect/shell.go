package detect

import (
	"context"

	"github.com/rawblock/ringbreaker-engine/internal/graph"
	"github.com/rawblock/ringbreaker-engine/pkg/models"
)

// Shell-Chain Detector
//
// A shell candidate is a pass-through account: low total degree
// (ShellMinDegree..ShellMaxDegree) with both inflow and outflow — it moves
// funds without accumulating them. The detector then walks chains of
// consecutively connected candidates.
//
// Emission is deliberately overlapping: a chain of length 5 also emits its
// length-3 and length-4 prefixes, because intermediate segments are
// independently suspicious. Extension stops at ShellMaxChain and never
// revisits a node already in the current chain, which keeps shell cycles
// from looping forever.

// DetectShellChains returns every candidate chain of length >= ShellMinChain.
// It fails only on context cancellation.
func DetectShellChains(ctx context.Context, g *graph.Graph, cfg Config) ([]models.ShellChain, error) {
	candidates := make([]string, 0)
	candidateSet := make(map[string]struct{})
	for _, node := range g.Nodes() {
		deg := g.Degree(node)
		if deg >= cfg.ShellMinDegree && deg <= cfg.ShellMaxDegree &&
			g.InDegree(node) > 0 && g.OutDegree(node) > 0 {
			candidates = append(candidates, node)
			candidateSet[node] = struct{}{}
		}
	}

	var chains []models.ShellChain
	visited := make(map[string]struct{})

	var extend func(node string, chain []string)
	extend = func(node string, chain []string) {
		if len(chain) >= cfg.ShellMinChain {
			emitted := make(models.ShellChain, len(chain))
			copy(emitted, chain)
			chains = append(chains, emitted)
		}
		if len(chain) >= cfg.ShellMaxChain {
			return
		}
		for _, next := range g.Successors(node) {
			if _, ok := candidateSet[next]; !ok {
				continue
			}
			if containsNode(chain, next) {
				continue
			}
			extend(next, append(chain, next))
		}
	}

	for _, start := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, ok := visited[start]; ok {
			continue
		}
		extend(start, []string{start})
		visited[start] = struct{}{}
	}

	return chains, nil
}

// ShellAccounts collects every account appearing in any chain.
func ShellAccounts(chains []models.ShellChain) map[string]struct{} {
	accounts := make(map[string]struct{})
	for _, chain := range chains {
		for _, id := range chain {
			accounts[id] = struct{}{}
		}
	}
	return accounts
}
