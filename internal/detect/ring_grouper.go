package detect

import (
	"fmt"
	"math"
	"sort"

	"github.com/rawblock/ringbreaker-engine/pkg/models"
)

// Ring Grouper
//
// Partitions flagged accounts into named fraud rings:
//
//   - every detected cycle seeds a ring (tag "cycle"); cycles that share
//     members with an existing ring are union-merged into it instead of
//     duplicating the member
//   - smurfing accounts not already in a ring share one "smurfing" ring
//   - each shell chain merges into any ring it overlaps (adding tag
//     "shell") or seeds its own
//
// Merging is union-merge across ALL overlapped rings, so the result is a
// true partition: an account belongs to at most one ring. Ring pattern type
// is the single accumulated tag, or "mixed" when tags disagree. Ring risk is
// the maximum suspicion score among members.

type ringBuilder struct {
	counter  int
	order    []string                       // ring IDs in creation order
	members  map[string]map[string]struct{} // ring ID -> member set
	tags     map[string]map[string]struct{} // ring ID -> accumulated tags
	assigned map[string]string              // account -> ring ID
}

func newRingBuilder() *ringBuilder {
	return &ringBuilder{
		members:  make(map[string]map[string]struct{}),
		tags:     make(map[string]map[string]struct{}),
		assigned: make(map[string]string),
	}
}

func (b *ringBuilder) newRing(accounts []string, tag string) {
	b.counter++
	ringID := fmt.Sprintf("RING_%03d", b.counter)
	b.order = append(b.order, ringID)
	b.members[ringID] = make(map[string]struct{}, len(accounts))
	b.tags[ringID] = map[string]struct{}{tag: {}}
	for _, id := range accounts {
		b.members[ringID][id] = struct{}{}
		b.assigned[id] = ringID
	}
}

// absorb merges every ring overlapping the account set, plus the accounts
// themselves, into the earliest-created overlapped ring. Returns false when
// nothing overlapped. A structure that is a pure subset of one existing ring
// is redundant evidence of the same group: it neither splits the ring nor
// adds its tag.
func (b *ringBuilder) absorb(accounts []string, tag string) bool {
	overlapped := make(map[string]struct{})
	fresh := 0
	for _, id := range accounts {
		if ringID, ok := b.assigned[id]; ok {
			overlapped[ringID] = struct{}{}
		} else {
			fresh++
		}
	}
	if len(overlapped) == 0 {
		return false
	}
	if len(overlapped) == 1 && fresh == 0 {
		return true
	}

	// Earliest-created ring survives; later ones fold into it.
	var target string
	var survivors []string
	for _, ringID := range b.order {
		if _, ok := overlapped[ringID]; ok && target == "" {
			target = ringID
		}
		if _, ok := overlapped[ringID]; !ok || ringID == target {
			survivors = append(survivors, ringID)
		}
	}

	for ringID := range overlapped {
		if ringID == target {
			continue
		}
		for id := range b.members[ringID] {
			b.members[target][id] = struct{}{}
			b.assigned[id] = target
		}
		for t := range b.tags[ringID] {
			b.tags[target][t] = struct{}{}
		}
		delete(b.members, ringID)
		delete(b.tags, ringID)
	}
	b.order = survivors

	for _, id := range accounts {
		b.members[target][id] = struct{}{}
		b.assigned[id] = target
	}
	b.tags[target][tag] = struct{}{}
	return true
}

// GroupRings builds the fraud rings and stamps every scored account with its
// ring assignment. Accounts that stay unassigned keep an empty RingID.
func GroupRings(
	cycles []models.Cycle,
	smurfing []models.SmurfingRecord,
	shells []models.ShellChain,
	scored []models.SuspiciousAccount,
) ([]models.FraudRing, []models.SuspiciousAccount) {
	b := newRingBuilder()

	for _, cycle := range cycles {
		if !b.absorb(cycle, models.RingPatternCycle) {
			b.newRing(cycle, models.RingPatternCycle)
		}
	}

	var unassignedSmurfs []string
	for _, r := range smurfing {
		if _, ok := b.assigned[r.AccountID]; !ok {
			unassignedSmurfs = append(unassignedSmurfs, r.AccountID)
		}
	}
	if len(unassignedSmurfs) > 0 {
		b.newRing(unassignedSmurfs, models.RingPatternSmurfing)
	}

	for _, chain := range shells {
		if !b.absorb(chain, models.RingPatternShell) {
			b.newRing(chain, models.RingPatternShell)
		}
	}

	scoreByAccount := make(map[string]float64, len(scored))
	for _, acc := range scored {
		scoreByAccount[acc.AccountID] = acc.SuspicionScore
	}

	rings := make([]models.FraudRing, 0, len(b.order))
	for _, ringID := range b.order {
		memberList := make([]string, 0, len(b.members[ringID]))
		for id := range b.members[ringID] {
			memberList = append(memberList, id)
		}
		sort.Strings(memberList)

		risk := 0.0
		for _, id := range memberList {
			if s := scoreByAccount[id]; s > risk {
				risk = s
			}
		}

		rings = append(rings, models.FraudRing{
			RingID:         ringID,
			MemberAccounts: memberList,
			PatternType:    ringPatternType(b.tags[ringID]),
			RiskScore:      math.Round(risk*10) / 10,
		})
	}

	stamped := make([]models.SuspiciousAccount, len(scored))
	copy(stamped, scored)
	for i := range stamped {
		stamped[i].RingID = b.assigned[stamped[i].AccountID]
	}

	return rings, stamped
}

func ringPatternType(tags map[string]struct{}) string {
	if len(tags) > 1 {
		return models.RingPatternMixed
	}
	for tag := range tags {
		return tag
	}
	return models.RingPatternMixed
}
