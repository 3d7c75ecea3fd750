package detect

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawblock/ringbreaker-engine/pkg/models"
)

// labelledDataset combines every calibration fixture: a laundering loop, a
// structuring hub, a pass-through chain, and two benign lookalikes.
func labelledDataset() []models.Transaction {
	b := &txBuilder{}
	cycleFixture(b)
	smurfFixture(b)
	shellFixture(b)
	merchantFixture(b)
	payrollFixture(b)
	return b.txs
}

func runPipeline(t *testing.T, txs []models.Transaction) *models.AnalysisResult {
	t.Helper()
	p := NewPipeline(DefaultConfig(), nil)
	result, err := p.Analyze(context.Background(), txs)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func findAccount(result *models.AnalysisResult, id string) *models.SuspiciousAccount {
	for i := range result.SuspiciousAccounts {
		if result.SuspiciousAccounts[i].AccountID == id {
			return &result.SuspiciousAccounts[i]
		}
	}
	return nil
}

func findRingWith(result *models.AnalysisResult, member string) *models.FraudRing {
	for i := range result.FraudRings {
		for _, m := range result.FraudRings[i].MemberAccounts {
			if m == member {
				return &result.FraudRings[i]
			}
		}
	}
	return nil
}

func TestAnalyze_LaunderingLoopFormsCycleRing(t *testing.T) {
	result := runPipeline(t, labelledDataset())

	ring := findRingWith(result, "FRAUD_A")
	require.NotNil(t, ring, "loop members must land in a ring")

	assert.Equal(t, models.RingPatternCycle, ring.PatternType)
	assert.ElementsMatch(t,
		[]string{"FRAUD_A", "FRAUD_B", "FRAUD_C", "FRAUD_D"},
		ring.MemberAccounts)

	for _, id := range ring.MemberAccounts {
		acc := findAccount(result, id)
		require.NotNil(t, acc, "ring member %s must be flagged", id)
		assert.Contains(t, acc.DetectedPatterns, "cycle_length_4")
		assert.Equal(t, ring.RingID, acc.RingID)
	}
}

func TestAnalyze_StructuringHubFlaggedTemporal(t *testing.T) {
	result := runPipeline(t, labelledDataset())

	acc := findAccount(result, "SMURF_TARGET")
	require.NotNil(t, acc, "structuring hub must be flagged")

	assert.Contains(t, acc.DetectedPatterns, models.PatternFanInTemporal)
	assert.GreaterOrEqual(t, acc.SuspicionScore, 60.0)

	ring := findRingWith(result, "SMURF_TARGET")
	require.NotNil(t, ring)
	assert.Equal(t, models.RingPatternSmurfing, ring.PatternType)
}

func TestAnalyze_PassThroughChainFormsShellRing(t *testing.T) {
	result := runPipeline(t, labelledDataset())

	ring := findRingWith(result, "SHELL_NODE_2")
	require.NotNil(t, ring, "chain intermediaries must land in a ring")
	assert.Equal(t, models.RingPatternShell, ring.PatternType)

	for _, id := range []string{"SHELL_NODE_1", "SHELL_NODE_2", "SHELL_NODE_3"} {
		acc := findAccount(result, id)
		require.NotNil(t, acc, "intermediary %s must be flagged", id)
		assert.Contains(t, acc.DetectedPatterns, models.PatternShellChain)
	}

	// Source and sink are endpoints of the funnel, not pass-through entities.
	assert.NotContains(t, ring.MemberAccounts, "SHELL_START")
	assert.NotContains(t, ring.MemberAccounts, "SHELL_CAYMAN")
}

func TestAnalyze_MerchantCollectorNotFlagged(t *testing.T) {
	result := runPipeline(t, labelledDataset())

	assert.Nil(t, findAccount(result, "SAFE_MERCHANT"),
		"high fan-in merchant with retained funds must be filtered out")
	assert.Nil(t, findRingWith(result, "SAFE_MERCHANT"))
}

func TestAnalyze_PayrollDisbursementNotFlagged(t *testing.T) {
	result := runPipeline(t, labelledDataset())

	assert.Nil(t, findAccount(result, "SAFE_PAYROLL_CORP"),
		"uniform-amount disbursement account must be filtered out")
	assert.Nil(t, findRingWith(result, "SAFE_PAYROLL_CORP"))
}

func TestAnalyze_RingsPartitionFlaggedAccounts(t *testing.T) {
	result := runPipeline(t, labelledDataset())

	seen := map[string]string{}
	for _, ring := range result.FraudRings {
		for _, m := range ring.MemberAccounts {
			assert.NotContains(t, seen, m, "account in two rings")
			seen[m] = ring.RingID
		}
	}
	for _, acc := range result.SuspiciousAccounts {
		if acc.RingID != "" {
			assert.Equal(t, acc.RingID, seen[acc.AccountID])
		}
	}
}

func TestAnalyze_Summary(t *testing.T) {
	result := runPipeline(t, labelledDataset())

	// 4 loop + 16 smurf + 5 shell + 32 merchant + 26 payroll accounts.
	assert.Equal(t, 83, result.Summary.TotalAccountsAnalyzed)
	assert.Equal(t, len(result.SuspiciousAccounts), result.Summary.SuspiciousAccountsFlagged)
	assert.Equal(t, len(result.FraudRings), result.Summary.FraudRingsDetected)
}

func TestAnalyze_Deterministic(t *testing.T) {
	txs := labelledDataset()
	first := runPipeline(t, txs)
	second := runPipeline(t, txs)

	assert.Equal(t, first.SuspiciousAccounts, second.SuspiciousAccounts)
	assert.Equal(t, first.FraudRings, second.FraudRings)
}

func TestAnalyze_CancelledContextFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPipeline(DefaultConfig(), nil)
	_, err := p.Analyze(ctx, labelledDataset())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
