package detect

import (
	"testing"

	"github.com/rawblock/ringbreaker-engine/pkg/models"
)

func ringFor(t *testing.T, rings []models.FraudRing, member string) models.FraudRing {
	t.Helper()
	for _, r := range rings {
		for _, m := range r.MemberAccounts {
			if m == member {
				return r
			}
		}
	}
	t.Fatalf("no ring contains %s", member)
	return models.FraudRing{}
}

func TestGroupRings_PartitionIsDisjoint(t *testing.T) {
	cycles := []models.Cycle{{"A", "B", "C"}, {"C", "D", "E"}}
	smurfing := []models.SmurfingRecord{{AccountID: "E", Patterns: []string{models.PatternFanIn}, InDegree: 12}}
	shells := []models.ShellChain{{"F", "G", "H"}}

	scored := []models.SuspiciousAccount{
		{AccountID: "A", SuspicionScore: 80}, {AccountID: "B", SuspicionScore: 70},
		{AccountID: "C", SuspicionScore: 90}, {AccountID: "D", SuspicionScore: 60},
		{AccountID: "E", SuspicionScore: 85}, {AccountID: "F", SuspicionScore: 40},
		{AccountID: "G", SuspicionScore: 45}, {AccountID: "H", SuspicionScore: 42},
	}

	rings, _ := GroupRings(cycles, smurfing, shells, scored)

	seen := map[string]string{}
	for _, r := range rings {
		for _, m := range r.MemberAccounts {
			if other, dup := seen[m]; dup {
				t.Fatalf("account %s appears in both %s and %s", m, other, r.RingID)
			}
			seen[m] = r.RingID
		}
	}
}

func TestGroupRings_OverlappingStructuresMerge(t *testing.T) {
	cycles := []models.Cycle{{"A", "B", "C"}, {"C", "D", "E"}}
	scored := []models.SuspiciousAccount{
		{AccountID: "A", SuspicionScore: 50}, {AccountID: "B", SuspicionScore: 50},
		{AccountID: "C", SuspicionScore: 50}, {AccountID: "D", SuspicionScore: 50},
		{AccountID: "E", SuspicionScore: 72.5},
	}

	rings, _ := GroupRings(cycles, nil, nil, scored)

	if len(rings) != 1 {
		t.Fatalf("cycles sharing C must merge into one ring, got %d", len(rings))
	}
	r := rings[0]
	if len(r.MemberAccounts) != 5 {
		t.Fatalf("merged ring should hold 5 members, got %v", r.MemberAccounts)
	}
	if r.PatternType != models.RingPatternCycle {
		t.Fatalf("expected cycle ring, got %s", r.PatternType)
	}
	if r.RiskScore != 72.5 {
		t.Fatalf("ring risk must be the max member score, got %.1f", r.RiskScore)
	}
}

func TestGroupRings_SubsetStructureDoesNotRetag(t *testing.T) {
	// A degree-2 cycle member often shows up again inside a layering chain.
	// A chain fully contained in an existing ring must not flip its pattern.
	cycles := []models.Cycle{{"A", "B", "C", "D"}}
	shells := []models.ShellChain{{"B", "C", "D"}}
	scored := []models.SuspiciousAccount{
		{AccountID: "A", SuspicionScore: 90}, {AccountID: "B", SuspicionScore: 80},
		{AccountID: "C", SuspicionScore: 80}, {AccountID: "D", SuspicionScore: 80},
	}

	rings, _ := GroupRings(cycles, nil, shells, scored)

	if len(rings) != 1 {
		t.Fatalf("expected 1 ring, got %d", len(rings))
	}
	if rings[0].PatternType != models.RingPatternCycle {
		t.Fatalf("subset chain must not retag the ring: got %s", rings[0].PatternType)
	}
}

func TestGroupRings_MixedWhenStructuresExtend(t *testing.T) {
	cycles := []models.Cycle{{"A", "B", "C"}}
	shells := []models.ShellChain{{"C", "X", "Y"}}
	scored := []models.SuspiciousAccount{
		{AccountID: "A", SuspicionScore: 60}, {AccountID: "B", SuspicionScore: 60},
		{AccountID: "C", SuspicionScore: 60}, {AccountID: "X", SuspicionScore: 40},
		{AccountID: "Y", SuspicionScore: 40},
	}

	rings, _ := GroupRings(cycles, nil, shells, scored)

	if len(rings) != 1 {
		t.Fatalf("expected 1 ring, got %d", len(rings))
	}
	if rings[0].PatternType != models.RingPatternMixed {
		t.Fatalf("chain extending a cycle ring should yield mixed, got %s", rings[0].PatternType)
	}
}

func TestGroupRings_SmurfAccountsShareOneRing(t *testing.T) {
	smurfing := []models.SmurfingRecord{
		{AccountID: "HUB_1", Patterns: []string{models.PatternFanIn}, InDegree: 15},
		{AccountID: "HUB_2", Patterns: []string{models.PatternFanOut}, OutDegree: 18},
	}
	scored := []models.SuspiciousAccount{
		{AccountID: "HUB_1", SuspicionScore: 55}, {AccountID: "HUB_2", SuspicionScore: 58},
	}

	rings, _ := GroupRings(nil, smurfing, nil, scored)

	if len(rings) != 1 {
		t.Fatalf("unassigned smurf hubs group into one smurfing ring, got %d rings", len(rings))
	}
	if rings[0].PatternType != models.RingPatternSmurfing {
		t.Fatalf("expected smurfing ring, got %s", rings[0].PatternType)
	}
}

func TestGroupRings_RingIDsStampedAndSequential(t *testing.T) {
	cycles := []models.Cycle{{"A", "B", "C"}}
	shells := []models.ShellChain{{"P", "Q", "R"}}
	scored := []models.SuspiciousAccount{
		{AccountID: "A", SuspicionScore: 60}, {AccountID: "B", SuspicionScore: 60},
		{AccountID: "C", SuspicionScore: 60}, {AccountID: "P", SuspicionScore: 40},
		{AccountID: "Q", SuspicionScore: 40}, {AccountID: "R", SuspicionScore: 40},
	}

	rings, stamped := GroupRings(cycles, nil, shells, scored)

	if len(rings) != 2 {
		t.Fatalf("expected 2 rings, got %d", len(rings))
	}
	if rings[0].RingID != "RING_001" || rings[1].RingID != "RING_002" {
		t.Fatalf("unexpected ring ids: %s, %s", rings[0].RingID, rings[1].RingID)
	}

	cycleRing := ringFor(t, rings, "A")
	for _, acc := range stamped {
		if acc.AccountID == "A" && acc.RingID != cycleRing.RingID {
			t.Fatalf("member A not stamped with its ring id: %q", acc.RingID)
		}
		if acc.RingID == "" {
			t.Fatalf("account %s left without a ring id", acc.AccountID)
		}
	}
}

func TestGroupRings_MembersSortedRiskRounded(t *testing.T) {
	cycles := []models.Cycle{{"Z", "A", "M"}}
	scored := []models.SuspiciousAccount{
		{AccountID: "Z", SuspicionScore: 61.25}, {AccountID: "A", SuspicionScore: 60},
		{AccountID: "M", SuspicionScore: 60},
	}

	rings, _ := GroupRings(cycles, nil, nil, scored)

	if len(rings) != 1 {
		t.Fatalf("expected 1 ring, got %d", len(rings))
	}
	want := []string{"A", "M", "Z"}
	for i, m := range rings[0].MemberAccounts {
		if m != want[i] {
			t.Fatalf("members not sorted: %v", rings[0].MemberAccounts)
		}
	}
	if rings[0].RiskScore != 61.3 {
		t.Fatalf("risk not rounded to one decimal: %v", rings[0].RiskScore)
	}
}
