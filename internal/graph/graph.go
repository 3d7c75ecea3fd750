package graph

import (
	"time"

	"github.com/rawblock/ringbreaker-engine/pkg/models"
)

// Directed Transaction Multigraph
//
// Nodes are account IDs, edges are individual transactions (one edge per
// record, parallel edges preserved). The graph is built fresh for every
// analysis run and never mutated afterwards: every detector reads the same
// immutable snapshot, which is what makes the parallel detector fan-out safe.
//
// Iteration order is deterministic: nodes in first-seen order, edges in
// ingest order. Re-running the pipeline on the same input therefore yields
// byte-identical output.

// Edge is one transaction projected onto the graph.
type Edge struct {
	From          string
	To            string
	Amount        float64
	Timestamp     time.Time
	TransactionID string
}

// NodeStats are per-account aggregates computed once at build time.
type NodeStats struct {
	TotalSent     float64
	TotalReceived float64
	TxCount       int
	FirstSeen     time.Time
	LastSeen      time.Time
}

// Graph is the immutable directed multigraph built from one transaction set.
type Graph struct {
	nodes   []string
	index   map[string]int
	out     map[string][]*Edge
	in      map[string][]*Edge
	stats   map[string]NodeStats
	numEdge int
}

// Build constructs the graph and per-node aggregate stats in one pass over
// the transaction records. It does not validate: the ingest layer guarantees
// clean input.
func Build(txs []models.Transaction) *Graph {
	g := &Graph{
		index: make(map[string]int),
		out:   make(map[string][]*Edge),
		in:    make(map[string][]*Edge),
		stats: make(map[string]NodeStats),
	}

	for i := range txs {
		tx := &txs[i]
		g.addNode(tx.SenderID)
		g.addNode(tx.ReceiverID)

		e := &Edge{
			From:          tx.SenderID,
			To:            tx.ReceiverID,
			Amount:        tx.Amount,
			Timestamp:     tx.Timestamp,
			TransactionID: tx.ID,
		}
		g.out[tx.SenderID] = append(g.out[tx.SenderID], e)
		g.in[tx.ReceiverID] = append(g.in[tx.ReceiverID], e)
		g.numEdge++
	}

	for _, node := range g.nodes {
		st := NodeStats{}
		first := time.Time{}
		last := time.Time{}
		touch := func(ts time.Time) {
			if first.IsZero() || ts.Before(first) {
				first = ts
			}
			if last.IsZero() || ts.After(last) {
				last = ts
			}
		}
		for _, e := range g.out[node] {
			st.TotalSent += e.Amount
			touch(e.Timestamp)
		}
		for _, e := range g.in[node] {
			st.TotalReceived += e.Amount
			touch(e.Timestamp)
		}
		st.TxCount = len(g.out[node]) + len(g.in[node])
		st.FirstSeen = first
		st.LastSeen = last
		g.stats[node] = st
	}

	return g
}

func (g *Graph) addNode(id string) {
	if _, ok := g.index[id]; ok {
		return
	}
	g.index[id] = len(g.nodes)
	g.nodes = append(g.nodes, id)
}

// Nodes returns all account IDs in first-seen order.
func (g *Graph) Nodes() []string { return g.nodes }

// NumNodes returns the number of distinct accounts.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// NumEdges returns the number of transactions (parallel edges counted).
func (g *Graph) NumEdges() int { return g.numEdge }

// HasNode reports whether the account appears in the graph.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.index[id]
	return ok
}

// OutEdges returns the node's outgoing transaction edges in ingest order.
func (g *Graph) OutEdges(id string) []*Edge { return g.out[id] }

// InEdges returns the node's incoming transaction edges in ingest order.
func (g *Graph) InEdges(id string) []*Edge { return g.in[id] }

// InDegree counts incoming transactions (not distinct senders).
func (g *Graph) InDegree(id string) int { return len(g.in[id]) }

// OutDegree counts outgoing transactions (not distinct receivers).
func (g *Graph) OutDegree(id string) int { return len(g.out[id]) }

// Degree is the node's total incident transaction count.
func (g *Graph) Degree(id string) int { return len(g.in[id]) + len(g.out[id]) }

// Successors returns the distinct accounts this node sends to, in the order
// they first appear among its outgoing edges.
func (g *Graph) Successors(id string) []string {
	return distinctEndpoints(g.out[id], func(e *Edge) string { return e.To })
}

// Predecessors returns the distinct accounts this node receives from, in the
// order they first appear among its incoming edges.
func (g *Graph) Predecessors(id string) []string {
	return distinctEndpoints(g.in[id], func(e *Edge) string { return e.From })
}

// UniqueSenders counts distinct counterparties paying into the node.
func (g *Graph) UniqueSenders(id string) int {
	return len(g.Predecessors(id))
}

// Stats returns the node's build-time aggregates. The zero value is returned
// for unknown accounts.
func (g *Graph) Stats(id string) NodeStats { return g.stats[id] }

func distinctEndpoints(edges []*Edge, pick func(*Edge) string) []string {
	seen := make(map[string]struct{}, len(edges))
	var result []string
	for _, e := range edges {
		id := pick(e)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
