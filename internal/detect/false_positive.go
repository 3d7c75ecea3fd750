package detect

import (
	"sort"

	"github.com/rawblock/ringbreaker-engine/internal/graph"
	"github.com/rawblock/ringbreaker-engine/pkg/models"
)

// False-Positive Filter
//
// Structural patterns catch legitimate businesses too: a busy merchant looks
// like fan-in, a payroll account looks like fan-out. Each candidate flagged
// by the detectors is checked against exclusion rules in a fixed order,
// short-circuiting on the first match:
//
//   1. Institutional hub — many distinct senders, inflow-heavy, outflow
//      materially smaller than inflow. A one-way collector, not a ring
//      participant.
//   2. Payroll-style disbursement — many near-equal payments out, almost no
//      inflow.
//   3. Mixed high-volume pass-through — generic high-traffic node rather
//      than a narrow structuring pattern.
//   4. Narrow static funding — a couple of (sender, amount) pairs repeated
//      many times is recurring bill-pay.
//   5. Isolated pair — a single transaction is too little evidence.
//
// The filter needs the raw transaction records as well as the graph: rule 4's
// distributional statistics cannot be expressed on degrees alone.

// FilterFalsePositives returns the subset of suspicious accounts to exclude
// from scoring.
func FilterFalsePositives(suspicious map[string]struct{}, g *graph.Graph, txs []models.Transaction, cfg Config) map[string]struct{} {
	excluded := make(map[string]struct{})
	if len(suspicious) == 0 {
		return excluded
	}

	// (sender, amount) pair counts per receiver, for rule 4.
	type pairKey struct {
		sender string
		amount float64
	}
	pairCounts := make(map[string]map[pairKey]int)
	for i := range txs {
		tx := &txs[i]
		if _, ok := suspicious[tx.ReceiverID]; !ok {
			continue
		}
		pairs := pairCounts[tx.ReceiverID]
		if pairs == nil {
			pairs = make(map[pairKey]int)
			pairCounts[tx.ReceiverID] = pairs
		}
		pairs[pairKey{sender: tx.SenderID, amount: tx.Amount}]++
	}

	candidates := make([]string, 0, len(suspicious))
	for id := range suspicious {
		candidates = append(candidates, id)
	}
	sort.Strings(candidates)

	for _, account := range candidates {
		if !g.HasNode(account) {
			continue
		}

		stats := g.Stats(account)
		inDeg := g.InDegree(account)
		outDeg := g.OutDegree(account)

		// Rule 1: institutional hub.
		if inDeg > cfg.FPHubInDegree &&
			g.UniqueSenders(account) > cfg.FPHubUniqueSenders &&
			stats.TotalReceived > 0 &&
			stats.TotalSent < stats.TotalReceived*cfg.FPHubOutflowRatio {
			excluded[account] = struct{}{}
			continue
		}

		// Rule 2: payroll-style disbursement.
		if outDeg > cfg.FPPayrollOutDegree && inDeg < cfg.FPPayrollMaxInDegree {
			if cv, ok := amountCV(g.OutEdges(account)); ok && cv < cfg.FPPayrollCVThreshold {
				excluded[account] = struct{}{}
				continue
			}
		}

		// Rule 3: mixed high-volume pass-through.
		if outDeg > cfg.FPPassThroughSentCount && inDeg > cfg.FPPassThroughInDegree {
			excluded[account] = struct{}{}
			continue
		}

		// Rule 4: narrow static funding.
		if pairs := pairCounts[account]; len(pairs) > 0 && len(pairs) < cfg.FPStaticMaxPatterns {
			maxRepeat := 0
			for _, n := range pairs {
				if n > maxRepeat {
					maxRepeat = n
				}
			}
			if maxRepeat > cfg.FPStaticMinRepeats {
				excluded[account] = struct{}{}
				continue
			}
		}

		// Rule 5: isolated pair.
		if inDeg+outDeg == 1 {
			excluded[account] = struct{}{}
		}
	}

	return excluded
}
