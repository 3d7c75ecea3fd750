package detect

import (
	"fmt"
	"time"

	"github.com/rawblock/ringbreaker-engine/internal/graph"
	"github.com/rawblock/ringbreaker-engine/pkg/models"
)

var testBase = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

type txBuilder struct {
	txs []models.Transaction
	n   int
}

// add appends a transaction offset from the base time by the given number of
// hours, mirroring the labelled dataset the detectors were calibrated on.
func (b *txBuilder) add(sender, receiver string, amount, hours float64) {
	b.n++
	b.txs = append(b.txs, models.Transaction{
		ID:         fmt.Sprintf("TX_%05d", b.n),
		SenderID:   sender,
		ReceiverID: receiver,
		Amount:     amount,
		Timestamp:  testBase.Add(time.Duration(hours * float64(time.Hour))),
	})
}

func (b *txBuilder) graph() *graph.Graph {
	return graph.Build(b.txs)
}

// cycleFixture wires the canonical 4-node laundering loop.
func cycleFixture(b *txBuilder) {
	b.add("FRAUD_A", "FRAUD_B", 5000, 1)
	b.add("FRAUD_B", "FRAUD_C", 4900, 2)
	b.add("FRAUD_C", "FRAUD_D", 4800, 3)
	b.add("FRAUD_D", "FRAUD_A", 4700, 4)
}

// smurfFixture wires 14 sources paying one target, then one large egress.
// Amounts alternate so the inflow dispersion clears the billing gate.
func smurfFixture(b *txBuilder) {
	for i := 1; i <= 14; i++ {
		amount := 8200.0
		if i%2 == 0 {
			amount = 9800.0
		}
		b.add(fmt.Sprintf("SMURF_SRC_%d", i), "SMURF_TARGET", amount, 5+float64(i)*0.1)
	}
	b.add("SMURF_TARGET", "SMURF_DESTINATION", 125000, 10)
}

// shellFixture wires a straight pass-through chain.
func shellFixture(b *txBuilder) {
	b.add("SHELL_START", "SHELL_NODE_1", 20000, 11)
	b.add("SHELL_NODE_1", "SHELL_NODE_2", 19500, 12)
	b.add("SHELL_NODE_2", "SHELL_NODE_3", 19000, 13)
	b.add("SHELL_NODE_3", "SHELL_CAYMAN", 18500, 14)
}

// merchantFixture wires a benign institutional collector: 30 distinct
// customers in, one small supplier payment out.
func merchantFixture(b *txBuilder) {
	for i := 1; i <= 30; i++ {
		b.add(fmt.Sprintf("CUSTOMER_%d", i), "SAFE_MERCHANT", 100+float64(i)*10, 15+float64(i))
	}
	b.add("SAFE_MERCHANT", "MERCHANT_SUPPLIER", 500, 50)
}

// payrollFixture wires a benign disbursement account: one fixed salary to 25
// employees, no inflow.
func payrollFixture(b *txBuilder) {
	for i := 1; i <= 25; i++ {
		b.add("SAFE_PAYROLL_CORP", fmt.Sprintf("EMPLOYEE_%d", i), 3500, 60)
	}
}

func accountSet(ids ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
