package membership

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wonny/backtester/internal/contracts"
)

func TestApply_InitialCallAdmitsInsideVerbatim(t *testing.T) {
	p := New(contracts.MembershipPolicyConfig{BufferRank: 1, MinHoldingPeriods: 2, MaxTurnover: 0.34})

	ranked := []contracts.Symbol{"A", "B", "C", "D", "E"}
	state := p.Apply(contracts.MembershipState{}, ranked, 3)

	require.Equal(t, []contracts.Symbol{"A", "B", "C"}, state.CurrentMembers)
	for _, s := range state.CurrentMembers {
		require.Equal(t, uint32(1), state.HoldingCounts[s])
	}
}

// S5 variant under this package's literal step-2 reading (see DESIGN.md):
// top_k=3, buffer_rank=1, min_holding_periods=2, max_turnover=0.34.
// Rebalance 1 picks [A,B,C], all with holding_count=1. Rebalance 2 ranks
// [D,E,F,A,B,C]. Because the holding-period floor is unconditional, A, B
// and C are *all* retained (every one of them has holding_count=1 <
// min_holding_periods=2), so nothing is actually removed and the policy
// round-trips the previous membership untouched -- the turnover cap never
// has anything to do here. TestApply_TurnoverCapRestoresAndEvicts below
// exercises the restore/evict machinery this scenario does not reach.
func TestApply_S5_MembershipRetention(t *testing.T) {
	p := New(contracts.MembershipPolicyConfig{BufferRank: 1, MinHoldingPeriods: 2, MaxTurnover: 0.34})

	prev := contracts.MembershipState{
		CurrentMembers: []contracts.Symbol{"A", "B", "C"},
		HoldingCounts:  map[contracts.Symbol]uint32{"A": 1, "B": 1, "C": 1},
	}
	ranked := []contracts.Symbol{"D", "E", "F", "A", "B", "C"}

	state := p.Apply(prev, ranked, 3)

	require.Contains(t, state.CurrentMembers, contracts.Symbol("A"), "A retained: holding_count < min_holding_periods")
	require.ElementsMatch(t, []contracts.Symbol{"A", "B", "C"}, state.CurrentMembers,
		"holding-period floor is unconditional: B and C are also below min_holding_periods, so nothing is removed")

	removedCount := 0
	for _, s := range prev.CurrentMembers {
		found := false
		for _, m := range state.CurrentMembers {
			if m == s {
				found = true
			}
		}
		if !found {
			removedCount++
		}
	}
	require.Equal(t, 0, removedCount)
	ratio := float64(removedCount) / float64(len(prev.CurrentMembers))
	require.LessOrEqual(t, ratio, 0.34+1.0/3.0, "property 7: turnover ratio within cap + rounding allowance")
}

// TestApply_TurnoverCapRestoresAndEvicts exercises the turnover-cap
// restore/evict path (§4.3 step 4) for real: same ranking and top_k/
// buffer_rank/max_turnover as the S5 scenario above, but with the
// previous members' holding_counts already at min_holding_periods, so the
// floor no longer shields B and C. A (rank 4, inside the buffer) is
// retained on rank alone; B (rank 5) and C (rank 6) are genuinely
// removed, a 2/3 ratio that exceeds max_turnover=0.34, so the cap must
// restore the better-ranked of the two removed members (B) and evict the
// worse-ranked of the two newly-admitted candidates (E) to bring the
// ratio back to 1/3 <= 0.34.
func TestApply_TurnoverCapRestoresAndEvicts(t *testing.T) {
	p := New(contracts.MembershipPolicyConfig{BufferRank: 1, MinHoldingPeriods: 2, MaxTurnover: 0.34})

	prev := contracts.MembershipState{
		CurrentMembers: []contracts.Symbol{"A", "B", "C"},
		HoldingCounts:  map[contracts.Symbol]uint32{"A": 2, "B": 2, "C": 2},
	}
	ranked := []contracts.Symbol{"D", "E", "F", "A", "B", "C"}

	state := p.Apply(prev, ranked, 3)

	require.ElementsMatch(t, []contracts.Symbol{"A", "B", "D"}, state.CurrentMembers,
		"B restored (better-ranked removed member), E evicted (worse-ranked new admit)")

	removedCount := 0
	for _, s := range prev.CurrentMembers {
		found := false
		for _, m := range state.CurrentMembers {
			if m == s {
				found = true
			}
		}
		if !found {
			removedCount++
		}
	}
	require.Equal(t, 1, removedCount, "only C actually leaves prev_members")
	ratio := float64(removedCount) / float64(len(prev.CurrentMembers))
	require.LessOrEqual(t, ratio, p.cfg.MaxTurnover, "turnover cap satisfied, not just within the rounding allowance")

	require.Equal(t, uint32(1), state.HoldingCounts["D"], "D is a fresh admit")
	require.Equal(t, uint32(3), state.HoldingCounts["A"], "A retained: holding_count increments")
	require.Equal(t, uint32(3), state.HoldingCounts["B"], "B restored: treated as retained, not re-admitted")
}

func TestApply_BufferRetainsNearMissMember(t *testing.T) {
	p := New(contracts.MembershipPolicyConfig{BufferRank: 2, MinHoldingPeriods: 1, MaxTurnover: 1.0})

	prev := contracts.MembershipState{
		CurrentMembers: []contracts.Symbol{"C"},
		HoldingCounts:  map[contracts.Symbol]uint32{"C": 5},
	}
	// C now ranks 4th (top_k=2, buffer_rank=2 -> buffer covers ranks 3-4).
	ranked := []contracts.Symbol{"A", "B", "D", "C"}

	state := p.Apply(prev, ranked, 2)

	require.Contains(t, state.CurrentMembers, contracts.Symbol("C"))
	require.Equal(t, uint32(6), state.HoldingCounts["C"])
}
