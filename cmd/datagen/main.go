package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"
)

// datagen writes a labelled test ledger: one of each laundering pattern the
// engine detects, two benign lookalikes that the false-positive filter must
// clear, and configurable random noise. Deterministic for a given seed.

var baseTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

type generator struct {
	rows [][]string
	n    int
}

func (g *generator) add(sender, receiver string, amount, hours float64) {
	g.n++
	ts := baseTime.Add(time.Duration(hours * float64(time.Hour)))
	g.rows = append(g.rows, []string{
		fmt.Sprintf("TX_%05d", g.n),
		sender,
		receiver,
		strconv.FormatFloat(amount, 'f', 2, 64),
		ts.Format("2006-01-02 15:04:05"),
	})
}

func main() {
	var (
		out       = flag.String("out", "test_confirmed_rings.csv", "output CSV path")
		seed      = flag.Int64("seed", 42, "random seed for deterministic generation")
		noise     = flag.Int("noise", 100, "number of random benign transactions")
		smurfSrcs = flag.Int("smurf-sources", 14, "number of structuring source accounts")
	)
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	g := &generator{}

	// 1. Laundering loop: A -> B -> C -> D -> A
	g.add("FRAUD_A", "FRAUD_B", 5000, 1)
	g.add("FRAUD_B", "FRAUD_C", 4900, 2)
	g.add("FRAUD_C", "FRAUD_D", 4800, 3)
	g.add("FRAUD_D", "FRAUD_A", 4700, 4)

	// 2. Structuring: many deposits just under the 10k reporting limit,
	// then one large egress. Amounts jitter so the inflow does not look
	// like automated billing.
	for i := 1; i <= *smurfSrcs; i++ {
		amount := 8000 + rng.Float64()*1900
		g.add(fmt.Sprintf("SMURF_SRC_%d", i), "SMURF_TARGET", amount, 5+float64(i)*0.1)
	}
	g.add("SMURF_TARGET", "SMURF_DESTINATION", 125000, 10)

	// 3. Shell chain: straight line of pass-through transfers.
	g.add("SHELL_START", "SHELL_NODE_1", 20000, 11)
	g.add("SHELL_NODE_1", "SHELL_NODE_2", 19500, 12)
	g.add("SHELL_NODE_2", "SHELL_NODE_3", 19000, 13)
	g.add("SHELL_NODE_3", "SHELL_CAYMAN", 18500, 14)

	// 4. Benign institutional merchant: high in-volume, low out-volume.
	for i := 1; i <= 29; i++ {
		g.add(fmt.Sprintf("CUSTOMER_%d", i), "SAFE_MERCHANT", 50+rng.Float64()*450, 15+float64(i))
	}
	g.add("SAFE_MERCHANT", "MERCHANT_SUPPLIER", 4000, 50)

	// 5. Benign payroll: one fixed salary to every employee.
	for i := 1; i <= 24; i++ {
		g.add("SAFE_PAYROLL_CORP", fmt.Sprintf("EMPLOYEE_%d", i), 3500, 60)
	}

	// 6. Random benign noise between two disjoint account pools.
	for i := 0; i < *noise; i++ {
		sender := fmt.Sprintf("RANDOM_%d", rng.Intn(50)+1)
		receiver := fmt.Sprintf("RANDOM_%d", rng.Intn(50)+51)
		g.add(sender, receiver, 10+rng.Float64()*1990, rng.Float64()*100)
	}

	if err := writeCSV(*out, g.rows); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write dataset: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, "Created %s with %d transactions\n", *out, len(g.rows))
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"transaction_id", "sender_id", "receiver_id", "amount", "timestamp"}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
