package optimizer

import (
	"math/rand"
	"sort"
)

// Candidate is one sampled parameter set and its evaluated objective.
type Candidate struct {
	Params map[string]float64
	Score  float64
}

// Search runs a TPE-lite Bayesian search: early trials sample uniformly
// at random across the space for seeding, later trials resample near the
// best quartile found so far ("good" trials) with Gaussian perturbation
// of fixed width (10% of each parameter's range), approximating a tree-structured Parzen estimator without
// fitting an explicit density model.
func Search(space ParameterSpace, objective func(map[string]float64) float64, trials int, rng *rand.Rand) []Candidate {
	if trials <= 0 {
		return nil
	}
	randomTrials := trials / 4
	if randomTrials < 4 {
		randomTrials = min(4, trials)
	}

	var history []Candidate
	for i := 0; i < trials; i++ {
		var params map[string]float64
		if i < randomTrials || len(history) == 0 {
			params = sampleUniform(space, rng)
		} else {
			params = sampleNearGood(space, history, rng)
		}
		score := objective(params)
		history = append(history, Candidate{Params: params, Score: score})
	}

	sort.Slice(history, func(i, j int) bool { return history[i].Score > history[j].Score })
	return history
}

func sampleUniform(space ParameterSpace, rng *rand.Rand) map[string]float64 {
	out := make(map[string]float64, len(space))
	for name, r := range space {
		out[name] = r.Min + rng.Float64()*(r.Max-r.Min)
	}
	return out
}

// sampleNearGood perturbs a random draw from the top quartile of trials
// so far, with noise scaled to 10% of each parameter's range.
func sampleNearGood(space ParameterSpace, history []Candidate, rng *rand.Rand) map[string]float64 {
	sorted := make([]Candidate, len(history))
	copy(sorted, history)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	goodCount := len(sorted) / 4
	if goodCount < 1 {
		goodCount = 1
	}
	base := sorted[rng.Intn(goodCount)].Params

	out := make(map[string]float64, len(space))
	for name, r := range space {
		span := r.Max - r.Min
		noise := rng.NormFloat64() * span * 0.1
		out[name] = r.Clamp(base[name] + noise)
	}
	return out
}
