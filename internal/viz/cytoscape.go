package viz

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rawblock/ringbreaker-engine/internal/graph"
	"github.com/rawblock/ringbreaker-engine/pkg/models"
)

// Cytoscape Projection
//
// Flattens the analysis into the elements-JSON shape Cytoscape.js consumes:
// every element is {"data": {...}}, nodes carry the analysis verdict and a
// community index for layout colouring, edges carry the transaction facts.

type NodeData struct {
	ID             string  `json:"id"`
	SuspicionScore float64 `json:"suspicion_score"`
	RingID         string  `json:"ring_id,omitempty"`
	Flagged        bool    `json:"flagged"`
	Community      int     `json:"community"`
	InDegree       int     `json:"in_degree"`
	OutDegree      int     `json:"out_degree"`
	TotalSent      float64 `json:"total_sent"`
	TotalReceived  float64 `json:"total_received"`
}

type EdgeData struct {
	ID        string  `json:"id"`
	Source    string  `json:"source"`
	Target    string  `json:"target"`
	Amount    float64 `json:"amount"`
	Timestamp string  `json:"timestamp"`
}

type NodeElement struct {
	Data NodeData `json:"data"`
}

type EdgeElement struct {
	Data EdgeData `json:"data"`
}

// ViewMetadata summarizes the projection, including how well the visual
// communities line up with the detected rings.
type ViewMetadata struct {
	NodeCount          int                `json:"node_count"`
	EdgeCount          int                `json:"edge_count"`
	CommunityCount     int                `json:"community_count"`
	PartitionAgreement PartitionAgreement `json:"partition_agreement"`
}

// CytoscapeGraph is the response body for the graph view endpoint.
type CytoscapeGraph struct {
	Nodes    []NodeElement `json:"nodes"`
	Edges    []EdgeElement `json:"edges"`
	Metadata ViewMetadata  `json:"metadata"`
}

// BuildCytoscape projects the latest analysis onto the Cytoscape element
// model. Community detection failure degrades to a single flat community
// rather than failing the whole view; the degradation is logged.
func BuildCytoscape(txs []models.Transaction, result *models.AnalysisResult, log *logrus.Entry) *CytoscapeGraph {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	g := graph.Build(txs)

	communities, err := Communities(g)
	if err != nil {
		log.WithError(err).Warn("community detection degraded, serving flat communities")
		communities = make(map[string]int, g.NumNodes())
	}

	flagged := make(map[string]*models.SuspiciousAccount, len(result.SuspiciousAccounts))
	for i := range result.SuspiciousAccounts {
		flagged[result.SuspiciousAccounts[i].AccountID] = &result.SuspiciousAccounts[i]
	}

	cg := &CytoscapeGraph{
		Nodes: make([]NodeElement, 0, g.NumNodes()),
		Edges: make([]EdgeElement, 0, g.NumEdges()),
	}

	for _, id := range g.Nodes() {
		stats := g.Stats(id)
		data := NodeData{
			ID:            id,
			Community:     communities[id],
			InDegree:      g.InDegree(id),
			OutDegree:     g.OutDegree(id),
			TotalSent:     stats.TotalSent,
			TotalReceived: stats.TotalReceived,
		}
		if acc, ok := flagged[id]; ok {
			data.Flagged = true
			data.SuspicionScore = acc.SuspicionScore
			data.RingID = acc.RingID
		}
		cg.Nodes = append(cg.Nodes, NodeElement{Data: data})
	}

	for _, tx := range txs {
		cg.Edges = append(cg.Edges, EdgeElement{Data: EdgeData{
			ID:        tx.ID,
			Source:    tx.SenderID,
			Target:    tx.ReceiverID,
			Amount:    tx.Amount,
			Timestamp: tx.Timestamp.UTC().Format(time.RFC3339),
		}})
	}

	seen := make(map[int]struct{})
	for _, c := range communities {
		seen[c] = struct{}{}
	}
	cg.Metadata = ViewMetadata{
		NodeCount:          len(cg.Nodes),
		EdgeCount:          len(cg.Edges),
		CommunityCount:     len(seen),
		PartitionAgreement: CompareRingsToCommunities(result.FraudRings, communities),
	}

	return cg
}
