package detect

import (
	"context"
	"testing"
)

func TestFindCycles_FourNodeLoop(t *testing.T) {
	b := &txBuilder{}
	cycleFixture(b)

	cycles, err := FindCycles(context.Background(), b.graph(), DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cycles) != 1 {
		t.Fatalf("expected exactly 1 cycle after dedup, got %d", len(cycles))
	}
	if len(cycles[0]) != 4 {
		t.Fatalf("expected cycle length 4, got %d", len(cycles[0]))
	}

	members := CycleAccounts(cycles)
	for _, id := range []string{"FRAUD_A", "FRAUD_B", "FRAUD_C", "FRAUD_D"} {
		if _, ok := members[id]; !ok {
			t.Fatalf("expected %s in cycle members", id)
		}
	}
}

func TestFindCycles_NoTwoNodeCycles(t *testing.T) {
	b := &txBuilder{}
	b.add("A", "B", 100, 1)
	b.add("B", "A", 100, 2)

	cycles, err := FindCycles(context.Background(), b.graph(), DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cycles) != 0 {
		t.Fatalf("length-2 loops must not be reported, got %d cycles", len(cycles))
	}
}

func TestFindCycles_RespectsMaxLength(t *testing.T) {
	b := &txBuilder{}
	// 6-node loop: above the default depth bound.
	nodes := []string{"A", "B", "C", "D", "E", "F"}
	for i := range nodes {
		b.add(nodes[i], nodes[(i+1)%len(nodes)], 100, float64(i))
	}

	cycles, err := FindCycles(context.Background(), b.graph(), DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cycles) != 0 {
		t.Fatalf("expected no cycles beyond max length, got %d", len(cycles))
	}

	cfg := DefaultConfig()
	cfg.MaxCycleLength = 6
	cycles, err = FindCycles(context.Background(), b.graph(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cycles) != 1 || len(cycles[0]) != 6 {
		t.Fatalf("expected the 6-cycle with a raised bound, got %v", cycles)
	}
}

func TestFindCycles_CanonicalDedupAcrossStartNodes(t *testing.T) {
	b := &txBuilder{}
	b.add("A", "B", 10, 1)
	b.add("B", "C", 10, 2)
	b.add("C", "A", 10, 3)

	cycles, err := FindCycles(context.Background(), b.graph(), DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The triangle is discoverable from all three start nodes but must be
	// reported once.
	if len(cycles) != 1 {
		t.Fatalf("expected 1 canonical cycle, got %d", len(cycles))
	}

	seen := map[string]bool{}
	for _, c := range cycles {
		key := c.CanonicalKey()
		if seen[key] {
			t.Fatalf("duplicate canonical identity %q", key)
		}
		seen[key] = true
	}
}

func TestFindCycles_CapTruncatesWithoutError(t *testing.T) {
	b := &txBuilder{}
	// Dense bipartite-ish core with many triangles.
	hubs := []string{"H1", "H2", "H3", "H4", "H5"}
	for i, h := range hubs {
		for j, k := range hubs {
			if i != j {
				b.add(h, k, 10, float64(i*5+j))
			}
		}
	}

	cfg := DefaultConfig()
	cfg.MaxCycles = 3

	cycles, err := FindCycles(context.Background(), b.graph(), cfg)
	if err != nil {
		t.Fatalf("cap truncation must not be an error: %v", err)
	}
	if len(cycles) == 0 {
		t.Fatal("expected some cycles before hitting the cap")
	}
	if len(cycles) > cfg.MaxCycles {
		t.Fatalf("raw collection exceeded the cap: %d > %d", len(cycles), cfg.MaxCycles)
	}
}

func TestFindCycles_CancelledContext(t *testing.T) {
	b := &txBuilder{}
	cycleFixture(b)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := FindCycles(ctx, b.graph(), DefaultConfig()); err == nil {
		t.Fatal("expected a cancellation error")
	}
}
