package detect

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/rawblock/ringbreaker-engine/internal/graph"
	"github.com/rawblock/ringbreaker-engine/pkg/models"
)

// Suspicion Scorer
//
// Fuses pattern memberships into one bounded score per account:
//
//   Score = clamp(0, 100, Σ(weight_i) × composite)
//
// Flat weights per evidence class: cycle membership (tagged with the cycle
// length), smurfing membership (tags copied from the record), shell-chain
// membership, a velocity bonus when the account's own transactions cluster
// inside VelocityWindow, and an outlier bonus when its largest transaction
// dwarfs the dataset mean. When two or more major categories (cycle /
// smurfing / shell / high velocity) corroborate each other the sum is
// multiplied by CompositeMultiplier before clamping.
//
// Adding qualifying evidence to a fixed account never lowers its score: all
// weights are non-negative and the multiplier is >= 1, so the score is
// monotonically non-decreasing up to the clamp.

// ScoreAccounts scores every account in (cycles ∪ smurfing ∪ shells) minus
// the false-positive set, and returns them sorted by descending score
// (account ID as the deterministic tie-break). RingID is left empty; the
// ring grouper stamps it.
func ScoreAccounts(
	g *graph.Graph,
	txs []models.Transaction,
	cycles []models.Cycle,
	smurfing []models.SmurfingRecord,
	shells []models.ShellChain,
	falsePositives map[string]struct{},
	cfg Config,
) []models.SuspiciousAccount {
	cycleAccounts := CycleAccounts(cycles)
	shellAccounts := ShellAccounts(shells)

	smurfByAccount := make(map[string]models.SmurfingRecord, len(smurfing))
	for _, r := range smurfing {
		smurfByAccount[r.AccountID] = r
	}

	suspicious := make(map[string]struct{})
	for id := range cycleAccounts {
		suspicious[id] = struct{}{}
	}
	for id := range smurfByAccount {
		suspicious[id] = struct{}{}
	}
	for id := range shellAccounts {
		suspicious[id] = struct{}{}
	}
	for id := range falsePositives {
		delete(suspicious, id)
	}

	meanAmount := 0.0
	if len(txs) > 0 {
		for i := range txs {
			meanAmount += txs[i].Amount
		}
		meanAmount /= float64(len(txs))
	}

	// Own-transaction windows and maxima, one pass over the records.
	type ownStats struct {
		count     int
		first     time.Time
		last      time.Time
		maxAmount float64
	}
	own := make(map[string]*ownStats, len(suspicious))
	observe := func(id string, tx *models.Transaction) {
		if _, ok := suspicious[id]; !ok {
			return
		}
		st := own[id]
		if st == nil {
			st = &ownStats{first: tx.Timestamp, last: tx.Timestamp}
			own[id] = st
		}
		st.count++
		if tx.Timestamp.Before(st.first) {
			st.first = tx.Timestamp
		}
		if tx.Timestamp.After(st.last) {
			st.last = tx.Timestamp
		}
		if tx.Amount > st.maxAmount {
			st.maxAmount = tx.Amount
		}
	}
	for i := range txs {
		observe(txs[i].SenderID, &txs[i])
		observe(txs[i].ReceiverID, &txs[i])
	}

	scored := make([]models.SuspiciousAccount, 0, len(suspicious))
	for account := range suspicious {
		if !g.HasNode(account) {
			continue
		}

		score := 0.0
		tags := make(map[string]struct{})
		majors := 0

		if _, ok := cycleAccounts[account]; ok {
			for _, cycle := range cycles {
				if containsNode(cycle, account) {
					tags[cycleLengthTag(len(cycle))] = struct{}{}
					score += cfg.ScoreCycleWeight
					break
				}
			}
			majors++
		}

		if record, ok := smurfByAccount[account]; ok {
			for _, p := range record.Patterns {
				tags[p] = struct{}{}
			}
			score += cfg.ScoreSmurfWeight
			majors++

			if record.IsTemporal {
				tags[models.PatternHighVelocity] = struct{}{}
				score += cfg.ScoreVelocityWeight
			}
		}

		if _, ok := shellAccounts[account]; ok {
			tags[models.PatternShellChain] = struct{}{}
			score += cfg.ScoreShellWeight
			majors++
		}

		st := own[account]
		if st != nil {
			if _, already := tags[models.PatternHighVelocity]; !already &&
				st.count >= cfg.VelocityMinTx && st.last.Sub(st.first) <= cfg.VelocityWindow {
				tags[models.PatternHighVelocity] = struct{}{}
				score += cfg.ScoreVelocityWeight
			}
			if meanAmount > 0 && st.maxAmount > meanAmount*cfg.OutlierMultiple {
				tags[models.PatternHighValue] = struct{}{}
				score += cfg.ScoreOutlierWeight
			}
		}

		if _, velocity := tags[models.PatternHighVelocity]; velocity {
			majors++
		}
		if majors >= 2 {
			score *= cfg.CompositeMultiplier
		}

		score = math.Min(score, 100)
		score = math.Round(score*10) / 10

		if score < cfg.MinScore {
			continue
		}

		patterns := make([]string, 0, len(tags))
		for tag := range tags {
			patterns = append(patterns, tag)
		}
		sort.Strings(patterns)

		scored = append(scored, models.SuspiciousAccount{
			AccountID:        account,
			SuspicionScore:   score,
			DetectedPatterns: patterns,
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].SuspicionScore != scored[j].SuspicionScore {
			return scored[i].SuspicionScore > scored[j].SuspicionScore
		}
		return scored[i].AccountID < scored[j].AccountID
	})

	return scored
}

func cycleLengthTag(length int) string {
	return "cycle_length_" + strconv.Itoa(length)
}
