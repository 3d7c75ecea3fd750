package viz

import (
	"math"
	"sort"

	"github.com/rawblock/ringbreaker-engine/pkg/models"
)

// Partition Diagnostics
//
// Compares the visual community partition against the ring partition the
// detector produced. Large disagreement on the flagged subgraph usually means
// the rings are being drawn apart by the layout, which is worth a log line
// when tuning thresholds.
//
//   ARI: -1 (worse than random) .. 1 (identical). 0 = random agreement.
//   VI:  0 = identical partitions; higher = more information lost.

// PartitionAgreement holds both diagnostics for one comparison.
type PartitionAgreement struct {
	AdjustedRandIndex      float64 `json:"adjusted_rand_index"`
	VariationOfInformation float64 `json:"variation_of_information"`
	AccountsCompared       int     `json:"accounts_compared"`
}

// CompareRingsToCommunities restricts both partitions to ring members and
// measures their agreement.
func CompareRingsToCommunities(rings []models.FraudRing, communities map[string]int) PartitionAgreement {
	var accounts []string
	ringLabel := make(map[string]int)
	for i, ring := range rings {
		for _, m := range ring.MemberAccounts {
			if _, ok := communities[m]; !ok {
				continue
			}
			ringLabel[m] = i
			accounts = append(accounts, m)
		}
	}
	sort.Strings(accounts)

	ringSide := make([]int, len(accounts))
	communitySide := make([]int, len(accounts))
	for i, m := range accounts {
		ringSide[i] = ringLabel[m]
		communitySide[i] = communities[m]
	}

	return PartitionAgreement{
		AdjustedRandIndex:      adjustedRandIndex(ringSide, communitySide),
		VariationOfInformation: variationOfInformation(ringSide, communitySide),
		AccountsCompared:       len(accounts),
	}
}

// contingency cross-tabulates two label vectors of equal length.
type contingency struct {
	cells   [][]int
	rowSums []int
	colSums []int
	n       int
}

func crossTabulate(left, right []int) contingency {
	leftIdx := denseIndex(left)
	rightIdx := denseIndex(right)

	cells := make([][]int, len(leftIdx))
	for i := range cells {
		cells[i] = make([]int, len(rightIdx))
	}
	for k := range left {
		cells[leftIdx[left[k]]][rightIdx[right[k]]]++
	}

	c := contingency{
		cells:   cells,
		rowSums: make([]int, len(leftIdx)),
		colSums: make([]int, len(rightIdx)),
		n:       len(left),
	}
	for i := range cells {
		for j := range cells[i] {
			c.rowSums[i] += cells[i][j]
			c.colSums[j] += cells[i][j]
		}
	}
	return c
}

func denseIndex(labels []int) map[int]int {
	idx := make(map[int]int)
	for _, l := range labels {
		if _, ok := idx[l]; !ok {
			idx[l] = len(idx)
		}
	}
	return idx
}

// adjustedRandIndex follows the permutation-model correction:
// (RI - E[RI]) / (max RI - E[RI]) over the pair counts.
func adjustedRandIndex(left, right []int) float64 {
	if len(left) != len(right) || len(left) < 2 {
		return 0
	}
	c := crossTabulate(left, right)

	var sumCells, sumRows, sumCols float64
	for i := range c.cells {
		for j := range c.cells[i] {
			sumCells += choose2(c.cells[i][j])
		}
	}
	for _, r := range c.rowSums {
		sumRows += choose2(r)
	}
	for _, col := range c.colSums {
		sumCols += choose2(col)
	}

	total := choose2(c.n)
	if total == 0 {
		return 0
	}
	expected := sumRows * sumCols / total
	maximum := (sumRows + sumCols) / 2

	denom := maximum - expected
	if math.Abs(denom) < 1e-12 {
		// both partitions are all-singletons or one big block on both sides
		return 1
	}
	return (sumCells - expected) / denom
}

// variationOfInformation is the symmetric conditional-entropy distance
// H(L|R) + H(R|L) in bits.
func variationOfInformation(left, right []int) float64 {
	if len(left) != len(right) || len(left) < 2 {
		return 0
	}
	c := crossTabulate(left, right)
	nf := float64(c.n)

	var vi float64
	for i := range c.cells {
		for j := range c.cells[i] {
			nij := c.cells[i][j]
			if nij == 0 {
				continue
			}
			pij := float64(nij) / nf
			vi -= pij * math.Log2(float64(nij)/float64(c.colSums[j]))
			vi -= pij * math.Log2(float64(nij)/float64(c.rowSums[i]))
		}
	}
	return vi
}

func choose2(n int) float64 {
	if n < 2 {
		return 0
	}
	return float64(n) * float64(n-1) / 2
}
