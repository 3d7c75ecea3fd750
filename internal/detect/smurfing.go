package detect

import (
	"context"
	"math"
	"time"

	"github.com/rawblock/ringbreaker-engine/internal/graph"
	"github.com/rawblock/ringbreaker-engine/pkg/models"
)

// Smurfing Detector
//
// Flags structuring: splitting one large flow into many small transfers
// (fan-out) or collecting many small transfers into one account (fan-in),
// typically to stay under reporting thresholds.
//
// Gating, in order:
//   1. Nodes above SmurfMaxDegree total degree are skipped here — very
//      high-volume institutional traffic is the false-positive filter's
//      problem, not a structuring signature.
//   2. Inflows that are "too regular to be organic" (coefficient of
//      variation below SmurfCVThreshold) are treated as recurring billing
//      and skipped entirely.
//   3. Fan-out wins over fan-in when both degrees qualify: a node that both
//      collects and disperses is classified by its dispersal side.
//
// A qualifying node whose triggering edges all fall inside
// SmurfTemporalWindow gets the _temporal tag — high velocity is a stronger
// signal than volume alone.

// DetectSmurfing returns one record per qualifying account. It fails only on
// context cancellation.
func DetectSmurfing(ctx context.Context, g *graph.Graph, cfg Config) ([]models.SmurfingRecord, error) {
	var results []models.SmurfingRecord

	for _, node := range g.Nodes() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		inDeg := g.InDegree(node)
		outDeg := g.OutDegree(node)
		if inDeg+outDeg > cfg.SmurfMaxDegree {
			continue
		}

		if received := g.InEdges(node); len(received) > 0 {
			if cv, ok := amountCV(received); ok && cv < cfg.SmurfCVThreshold {
				continue
			}
		}

		var record *models.SmurfingRecord
		switch {
		case outDeg >= cfg.SmurfFanThreshold:
			record = classifyFan(node, models.PatternFanOut, g.OutEdges(node), inDeg, outDeg, cfg)
		case inDeg >= cfg.SmurfFanThreshold:
			record = classifyFan(node, models.PatternFanIn, g.InEdges(node), inDeg, outDeg, cfg)
		}
		if record != nil {
			results = append(results, *record)
		}
	}

	return results, nil
}

// SmurfingAccounts collects the flagged account IDs.
func SmurfingAccounts(records []models.SmurfingRecord) map[string]struct{} {
	accounts := make(map[string]struct{}, len(records))
	for _, r := range records {
		accounts[r.AccountID] = struct{}{}
	}
	return accounts
}

func classifyFan(node, basePattern string, edges []*graph.Edge, inDeg, outDeg int, cfg Config) *models.SmurfingRecord {
	record := &models.SmurfingRecord{
		AccountID: node,
		InDegree:  inDeg,
		OutDegree: outDeg,
	}

	pattern := basePattern
	if len(edges) >= 2 && timeSpan(edges) <= cfg.SmurfTemporalWindow {
		pattern += "_temporal"
		record.IsTemporal = true
	}
	record.Patterns = []string{pattern}
	return record
}

// amountCV returns the coefficient of variation (population std dev / mean)
// of the edge amounts. ok is false when the mean is zero.
func amountCV(edges []*graph.Edge) (float64, bool) {
	mean := 0.0
	for _, e := range edges {
		mean += e.Amount
	}
	mean /= float64(len(edges))
	if mean <= 0 {
		return 0, false
	}

	variance := 0.0
	for _, e := range edges {
		d := e.Amount - mean
		variance += d * d
	}
	variance /= float64(len(edges))

	return math.Sqrt(variance) / mean, true
}

func timeSpan(edges []*graph.Edge) time.Duration {
	min := edges[0].Timestamp
	max := edges[0].Timestamp
	for _, e := range edges[1:] {
		if e.Timestamp.Before(min) {
			min = e.Timestamp
		}
		if e.Timestamp.After(max) {
			max = e.Timestamp
		}
	}
	return max.Sub(min)
}
