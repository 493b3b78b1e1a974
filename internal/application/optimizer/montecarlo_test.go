package optimizer

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStress_EmptyReturnsProduceZeroResult(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	r := Stress(nil, MCConfig{Iterations: 100}, rng)
	assert.Equal(t, MCResult{}, r)
}

func TestStress_FlatReturnsProduceNearZeroDrawdown(t *testing.T) {
	returns := make([]float64, 200)
	for i := range returns {
		returns[i] = 0.0001
	}
	cfg := MCConfig{Iterations: 50, BlockSize: 24, FeeMultMin: 1.0, FeeMultMax: 1.0, SlippageRange: 0}
	rng := rand.New(rand.NewSource(2))
	r := Stress(returns, cfg, rng)
	assert.Less(t, r.P99Drawdown, 0.01)
}

func TestStress_QuantilesAreOrdered(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	returns := make([]float64, 300)
	for i := range returns {
		returns[i] = rng.NormFloat64() * 0.01
	}
	cfg := MCConfig{Iterations: 200, BlockSize: 20, FeeMultMin: 0.9, FeeMultMax: 1.3, SlippageRange: 5}
	r := Stress(returns, cfg, rand.New(rand.NewSource(4)))
	assert.LessOrEqual(t, r.P95Drawdown, r.P99Drawdown)
	assert.LessOrEqual(t, r.P99Drawdown, r.TailDrawdown+1e-9)
}

func TestBlockBootstrap_ProducesRequestedLength(t *testing.T) {
	returns := []float64{0.01, -0.02, 0.03, 0.0, -0.01}
	rng := rand.New(rand.NewSource(5))
	path := blockBootstrap(returns, 2, 11, rng)
	assert.Len(t, path, 11)
}
