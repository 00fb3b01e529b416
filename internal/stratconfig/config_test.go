package stratconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const validYAML = `
meta:
  strategy_id: test_equal_weight
  version: "1"
run:
  start_date: "2024-01-01"
  end_date: "2024-12-31"
  initial_capital: 100000
  risk_free_rate: 0.02
  cache_capacity: 500
  strategy_lookback: 252
universe:
  symbols: ["AAA", "BBB", "CCC"]
  exclude_list: ["CCC"]
constraints:
  min_weight: 0
  max_weight: 0.4
  max_per_asset: 0.4
  leverage_cap: 1.0
preselection:
  enabled: true
  method: combined
  lookback: 126
  skip: 5
  min_periods: 60
  top_k: 2
  momentum_weight: 0.5
  low_vol_weight: 0.5
membership_policy:
  enabled: true
  buffer_rank: 3
  min_holding_periods: 5
  max_turnover: 0.3
strategy:
  name: risk_parity
  risk_aversion: 1.0
  max_iterations: 200
cost_model:
  commission_pct: 0.001
  min_commission: 1.0
  slippage_bps: 5
rebalance:
  frequency: monthly
  opportunistic_band: 0.05
  force_rebalance_on_drift: false
  skip_failed_rebalance: true
`

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeTemp(t, validYAML)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "test_equal_weight", cfg.Meta.StrategyID)
	require.Equal(t, []string{"AAA", "BBB", "CCC"}, cfg.Universe.Symbols)

	syms := cfg.Symbols()
	symStrs := make([]string, len(syms))
	for i, s := range syms {
		symStrs[i] = string(s)
	}
	require.ElementsMatch(t, []string{"AAA", "BBB"}, symStrs)

	bt, err := cfg.ToBacktestConfig()
	require.NoError(t, err)
	require.Equal(t, 100000.0, bt.InitialCapital)
	require.NotNil(t, bt.Preselection)
	require.NotNil(t, bt.MembershipPolicy)

	cons := cfg.ToConstraints()
	require.InDelta(t, 0.4, cons.MaxWeight, 1e-9)
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	path := writeTemp(t, validYAML+"\nbogus_field: true\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate_RejectsBadStrategyName(t *testing.T) {
	path := writeTemp(t, replaceOnce(validYAML, "name: risk_parity", "name: not_a_strategy"))
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "strategy.name")
}

func TestValidate_RejectsEmptySymbols(t *testing.T) {
	path := writeTemp(t, replaceOnce(validYAML, `symbols: ["AAA", "BBB", "CCC"]`, "symbols: []"))
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "universe.symbols")
}

func TestValidate_RejectsInvalidPreselectionWeights(t *testing.T) {
	path := writeTemp(t, replaceOnce(validYAML, "momentum_weight: 0.5", "momentum_weight: 0"))
	path2 := writeTemp(t, replaceOnce(mustRead(t, path), "low_vol_weight: 0.5", "low_vol_weight: 0"))
	_, err := Load(path2)
	require.Error(t, err)
	require.Contains(t, err.Error(), "preselection.momentum_weight")
}

func replaceOnce(s, old, new string) string {
	for i := 0; i+len(old) <= len(s); i++ {
		if s[i:i+len(old)] == old {
			return s[:i] + new + s[i+len(old):]
		}
	}
	return s
}

func mustRead(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
