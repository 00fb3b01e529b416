package contracts

import "time"

// FactorSnapshot holds one factor's per-symbol scores and ranks at a given
// asof. Values may be NaN when data is insufficient; NaN sorts last.
type FactorSnapshot struct {
	Asof       time.Time
	FactorName string
	Values     map[Symbol]float64
	Ranks      map[Symbol]uint32
}

// MembershipState is the Membership Policy's mutable state, carried by the
// backtest engine across rebalances. Invariant: the key sets of
// HoldingCounts and the entries of CurrentMembers coincide.
type MembershipState struct {
	CurrentMembers []Symbol // ordered, deterministic (lexicographic)
	HoldingCounts  map[Symbol]uint32
}

// Contains reports whether s is currently a member.
func (m *MembershipState) Contains(s Symbol) bool {
	for _, x := range m.CurrentMembers {
		if x == s {
			return true
		}
	}
	return false
}
