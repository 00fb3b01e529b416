package constraints

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wonny/backtester/internal/contracts"
)

func TestProject_ClipsAndRenormalises(t *testing.T) {
	c := contracts.Constraints{
		MinWeight:   0,
		MaxWeight:   0.4,
		MaxPerAsset: 0.4,
		LeverageCap: 1.0,
		ClassCaps:   map[contracts.AssetClass]contracts.ClassCap{},
	}
	weights := map[contracts.Symbol]float64{"A": 0.6, "B": 0.3, "C": 0.1}

	out, err := Project(weights, c)
	require.NoError(t, err)
	require.LessOrEqual(t, out["A"], 0.4+1e-9)

	// A is clipped from 0.6 to 0.4; the clipped sum 0.8 is already within
	// leverage_cap, so nothing is rescaled and the remaining 0.2 is cash.
	var total float64
	for _, w := range out {
		total += w
	}
	require.InDelta(t, 0.8, total, 1e-6)
}

func TestProject_IsIdempotent(t *testing.T) {
	c := contracts.Constraints{MinWeight: 0.01, MaxWeight: 0.3, LeverageCap: 1.0}
	weights := map[contracts.Symbol]float64{"A": 0.5, "B": 0.2, "C": 0.3}

	once, err := Project(weights, c)
	require.NoError(t, err)
	twice, err := Project(once, c)
	require.NoError(t, err)

	for sym := range once {
		require.InDelta(t, once[sym], twice[sym], 1e-9)
	}
}

func TestProject_ClassCapSequentialScaling(t *testing.T) {
	c := contracts.Constraints{
		MinWeight:   0,
		MaxWeight:   1,
		LeverageCap: 1.0,
		AssetClassOf: map[contracts.Symbol]contracts.AssetClass{
			"A": "tech", "B": "tech", "C": "energy",
		},
		ClassCaps: map[contracts.AssetClass]contracts.ClassCap{
			"tech": {Min: 0, Max: 0.5},
		},
	}
	weights := map[contracts.Symbol]float64{"A": 0.4, "B": 0.4, "C": 0.2}

	out, err := Project(weights, c)
	require.NoError(t, err)
	require.InDelta(t, 0.5, out["A"]+out["B"], 1e-6)
}

func TestValidate_RejectsNegativeWeight(t *testing.T) {
	p := &contracts.Portfolio{Holdings: map[contracts.Symbol]float64{"A": -0.1}}
	c := contracts.Constraints{MinWeight: 0, MaxWeight: 1, LeverageCap: 1.0}
	err := Validate(p, c)
	require.Error(t, err)
}
