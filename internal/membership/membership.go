// Package membership implements the Membership Policy (MP): it smooths the
// Preselector's top-K choice across successive rebalances by imposing a
// rank buffer, a minimum holding-period floor, and a maximum per-rebalance
// turnover cap.
//
// There is no direct donor analogue for this stage (the donor folds a
// similar discipline directly into its in-place top-N cut in
// internal/selection/ranker.go). This package is built from scratch
// against SPEC_FULL.md §4.3, following the donor's general idiom of
// sorting before iterating a set whenever output order is
// observable (e.g. internal/risk/engine.go's calculateMetrics sorts
// holdings before picking the top-5 concentration) rather than relying on
// Go map iteration order.
package membership

import (
	"sort"

	"github.com/wonny/backtester/internal/contracts"
)

// Policy applies the membership discipline described in SPEC_FULL.md §4.3.
type Policy struct {
	cfg contracts.MembershipPolicyConfig
}

// New builds a Policy from its configuration.
func New(cfg contracts.MembershipPolicyConfig) *Policy {
	return &Policy{cfg: cfg}
}

// Apply computes the new member set and updated holding counts given the
// previous membership state and the Preselector's freshly ranked list.
//
// Resolution of an internal ambiguity in §4.3's step 4 wording ("restore
// the lowest-ranked removed members (highest rank value)") versus the
// worked example S5 ("restore one (the higher ranked of the removed)"):
// this implementation follows the worked example — restoring removed
// members in *ascending* rank order (best rank first) and evicting
// newly-admitted members in *descending* rank order (worst rank first) —
// since it is the concrete, testable behaviour and keeps the best-ranked
// assets in the portfolio, which is the policy's evident intent.
func (p *Policy) Apply(
	prev contracts.MembershipState,
	rankedList []contracts.Symbol,
	topK int,
) contracts.MembershipState {
	rankOf := make(map[contracts.Symbol]int, len(rankedList))
	for i, s := range rankedList {
		rankOf[s] = i
	}
	const worstRank = 1 << 30
	rank := func(s contracts.Symbol) int {
		if r, ok := rankOf[s]; ok {
			return r
		}
		return worstRank
	}

	insideEnd := topK
	if insideEnd > len(rankedList) {
		insideEnd = len(rankedList)
	}
	bufferEnd := topK + p.cfg.BufferRank
	if bufferEnd > len(rankedList) {
		bufferEnd = len(rankedList)
	}
	inside := rankedList[:insideEnd]
	buffer := rankedList[insideEnd:bufferEnd]

	insideSet := toSet(inside)
	bufferSet := toSet(buffer)

	prevMembers := append([]contracts.Symbol(nil), prev.CurrentMembers...)
	sort.Slice(prevMembers, func(i, j int) bool { return prevMembers[i] < prevMembers[j] })

	// The holding-period floor is unconditional: any previous member below
	// min_holding_periods is retained regardless of its new rank. See
	// DESIGN.md for why this literal step-2 reading is kept even though it
	// makes S5's own narrative (which removes B/C despite holding_count=1)
	// a no-op under that narrative's own holding counts.
	retainedSet := map[contracts.Symbol]bool{}
	for _, s := range prevMembers {
		if insideSet[s] || bufferSet[s] || prev.HoldingCounts[s] < p.cfg.MinHoldingPeriods {
			retainedSet[s] = true
		}
	}

	var newlyAdmitted []contracts.Symbol
	for _, s := range inside {
		if len(retainedSet)+len(newlyAdmitted) >= topK {
			break
		}
		if retainedSet[s] {
			continue
		}
		newlyAdmitted = append(newlyAdmitted, s)
	}

	final := map[contracts.Symbol]bool{}
	for s := range retainedSet {
		final[s] = true
	}
	for _, s := range newlyAdmitted {
		final[s] = true
	}

	var removed []contracts.Symbol
	for _, s := range prevMembers {
		if !final[s] {
			removed = append(removed, s)
		}
	}

	if p.cfg.MaxTurnover < 1 && len(prevMembers) > 0 {
		restoreOrder := append([]contracts.Symbol(nil), removed...)
		sort.Slice(restoreOrder, func(i, j int) bool {
			ri, rj := rank(restoreOrder[i]), rank(restoreOrder[j])
			if ri == rj {
				return restoreOrder[i] < restoreOrder[j]
			}
			return ri < rj
		})
		evictOrder := append([]contracts.Symbol(nil), newlyAdmitted...)
		sort.Slice(evictOrder, func(i, j int) bool {
			ri, rj := rank(evictOrder[i]), rank(evictOrder[j])
			if ri == rj {
				return evictOrder[i] < evictOrder[j]
			}
			return ri > rj
		})

		ri, ei := 0, 0
		for ratio(len(removed), len(prevMembers)) > p.cfg.MaxTurnover && ri < len(restoreOrder) {
			restore := restoreOrder[ri]
			ri++

			final[restore] = true
			removed = removeSymbol(removed, restore)

			if ei < len(evictOrder) {
				evict := evictOrder[ei]
				ei++
				delete(final, evict)
				newlyAdmitted = removeSymbol(newlyAdmitted, evict)
			}
		}
	}

	newHoldingCounts := make(map[contracts.Symbol]uint32, len(final))
	newlyAdmittedSet := toSet(newlyAdmitted)
	for s := range final {
		if newlyAdmittedSet[s] {
			newHoldingCounts[s] = 1
			continue
		}
		newHoldingCounts[s] = prev.HoldingCounts[s] + 1
	}

	members := make([]contracts.Symbol, 0, len(final))
	for s := range final {
		members = append(members, s)
	}
	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })

	return contracts.MembershipState{
		CurrentMembers: members,
		HoldingCounts:  newHoldingCounts,
	}
}

func toSet(symbols []contracts.Symbol) map[contracts.Symbol]bool {
	out := make(map[contracts.Symbol]bool, len(symbols))
	for _, s := range symbols {
		out[s] = true
	}
	return out
}

func removeSymbol(symbols []contracts.Symbol, target contracts.Symbol) []contracts.Symbol {
	out := symbols[:0:0]
	for _, s := range symbols {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}

func ratio(numerator, denominator int) float64 {
	if denominator == 0 {
		return 0
	}
	return float64(numerator) / float64(denominator)
}
