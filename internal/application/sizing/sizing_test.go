package sizing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/StaithValanthis/xsmom-bot/internal/domain"
)

func twoSymbolTable(ampA, ampB, volA, volB float64) domain.SignalTable {
	return domain.SignalTable{
		Breadth: 1.0,
		Rows: []domain.SignalRow{
			{Symbol: "AAA", Amplified: ampA, ZScore: ampA, Volatility: volA, PassesFilters: true},
			{Symbol: "BBB", Amplified: ampB, ZScore: ampB, Volatility: volB, PassesFilters: true},
		},
	}
}

func baseConfig() Config {
	return Config{
		KMin: 1, KMax: 5,
		Mode:              ModeInverseVolatility,
		MarketNeutral:     true,
		NeutralEpsilon:    1e-6,
		GrossLeverage:     1.0,
		MaxWeightPerAsset: 1.0,
	}
}

func TestCompute_TwoSymbolToyUniverse_ProducesOffsettingHalfWeights(t *testing.T) {
	cfg := baseConfig()
	table := twoSymbolTable(1.5, -1.5, 0.02, 0.02)

	out := Compute(cfg, table, Inputs{Equity: 1000})

	assert.InDelta(t, 0.5, out.Lookup("AAA"), 1e-9)
	assert.InDelta(t, -0.5, out.Lookup("BBB"), 1e-9)
	assert.NoError(t, out.Validate())
}

func TestCompute_InverseVolatility_WeightRatioIsInverseOfVolRatio(t *testing.T) {
	cfg := baseConfig()
	cfg.MarketNeutral = false
	cfg.GrossLeverage = 3.0
	cfg.MaxWeightPerAsset = 3.0
	// both long, so centering/neutrality doesn't interfere with the raw ratio
	table := twoSymbolTable(1.0, 2.0, 0.02, 0.04)

	out := Compute(cfg, table, Inputs{Equity: 1000})

	wA := out.Lookup("AAA")
	wB := out.Lookup("BBB")
	assert.Greater(t, wA, 0.0)
	assert.Greater(t, wB, 0.0)
	// raw_A = 1/0.02 = 50, raw_B = 1/0.04 = 25 -> ratio 2:1 regardless of
	// the common gross-leverage scale factor applied to both.
	assert.InDelta(t, 2.0, wA/wB, 1e-6)
}

func TestCompute_PerAssetCapClipsOutsizedWeight(t *testing.T) {
	cfg := baseConfig()
	cfg.MarketNeutral = false
	cfg.MaxWeightPerAsset = 0.3
	cfg.GrossLeverage = 10 // leverage alone would blow past the per-asset cap
	table := twoSymbolTable(1.0, 1.0, 0.01, 0.01)

	out := Compute(cfg, table, Inputs{Equity: 1000})
	for _, w := range out.Weights {
		assert.LessOrEqual(t, w.Weight, 0.3+1e-9)
	}
}

func TestCompute_EmptyUniverseProducesEmptyBook(t *testing.T) {
	cfg := baseConfig()
	out := Compute(cfg, domain.SignalTable{}, Inputs{Equity: 1000})
	assert.Empty(t, out.Weights)
	assert.NoError(t, out.Validate())
}

func TestCompute_RowsNotPassingFiltersAreExcluded(t *testing.T) {
	cfg := baseConfig()
	table := domain.SignalTable{
		Rows: []domain.SignalRow{
			{Symbol: "AAA", Amplified: 1.5, PassesFilters: true, Volatility: 0.02},
			{Symbol: "BBB", Amplified: -1.5, PassesFilters: false, Volatility: 0.02},
		},
	}
	out := Compute(cfg, table, Inputs{Equity: 1000})
	assert.Equal(t, 0.0, out.Lookup("BBB"))
}

func TestDynamicK_MapsMedianDispersionIntoRange(t *testing.T) {
	cfg := Config{KMin: 2, KMax: 8, DynamicK: true}
	rows := []domain.SignalRow{
		{Symbol: "A", ZScore: 3.0, Amplified: 1},
		{Symbol: "B", ZScore: 3.0, Amplified: 1},
		{Symbol: "C", ZScore: 3.0, Amplified: 1},
	}
	k := dynamicK(cfg, rows)
	assert.Equal(t, 8, k) // median |z| == dispersion ceiling -> full KMax
}

func TestApplyHardPositionCap_KeepsLargestByAbsWeight(t *testing.T) {
	cfg := Config{MaxOpenPositionsHard: 1}
	raw := map[string]float64{"AAA": 0.1, "BBB": -0.4}
	out := applyHardPositionCap(cfg, raw)
	assert.Len(t, out, 1)
	assert.Contains(t, out, "BBB")
}
