package contracts

import "testing"

func TestPortfolio_TotalWeight(t *testing.T) {
	p := &Portfolio{
		Holdings: map[Symbol]Weight{
			"A": 0.30,
			"B": 0.25,
			"C": 0.20,
		},
	}

	expected := 0.30 + 0.25 + 0.20
	if total := p.TotalWeight(); total != expected {
		t.Errorf("TotalWeight() = %v, want %v", total, expected)
	}
}

func TestPortfolio_SortedSymbols(t *testing.T) {
	p := &Portfolio{
		Holdings: map[Symbol]Weight{
			"C": 0.1,
			"A": 0.1,
			"B": 0.1,
		},
	}

	got := p.SortedSymbols()
	want := []Symbol{"A", "B", "C"}
	if len(got) != len(want) {
		t.Fatalf("SortedSymbols() len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SortedSymbols()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestEligibleUniverse_Contains(t *testing.T) {
	u := &EligibleUniverse{
		Symbols:  []Symbol{"A", "B"},
		Excluded: map[Symbol]string{"C": "delisted"},
	}

	if !u.Contains("A") {
		t.Error("expected A to be eligible")
	}
	if u.Contains("C") {
		t.Error("expected C to not be eligible")
	}
	reason, ok := u.IsExcluded("C")
	if !ok || reason != "delisted" {
		t.Errorf("IsExcluded(C) = (%q, %v), want (delisted, true)", reason, ok)
	}
}
