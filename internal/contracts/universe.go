package contracts

import "time"

// EligibleUniverse is the investable symbol set handed to the Preselector
// at a given asof. Construction of this set (coarse-metadata filtering,
// asset classification) is an external-collaborator concern; this type is
// only the contract the core consumes.
//
// Excluded mirrors the donor's Universe.Excluded map[string]string idiom: a
// symbol that drops out mid-run (e.g. a delisting) is recorded here with a
// reason rather than silently removed, matching SPEC_FULL.md §13's
// decision to mark stale symbols rather than forget them.
type EligibleUniverse struct {
	Asof     time.Time
	Symbols  []Symbol
	Excluded map[Symbol]string
}

// Contains reports whether s is currently eligible.
func (u *EligibleUniverse) Contains(s Symbol) bool {
	for _, x := range u.Symbols {
		if x == s {
			return true
		}
	}
	return false
}

// IsExcluded reports whether s was excluded, and why.
func (u *EligibleUniverse) IsExcluded(s Symbol) (string, bool) {
	reason, ok := u.Excluded[s]
	return reason, ok
}
