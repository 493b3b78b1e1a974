package optimizer

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/StaithValanthis/xsmom-bot/internal/application/signals"
	"github.com/StaithValanthis/xsmom-bot/internal/domain"
	"github.com/StaithValanthis/xsmom-bot/internal/ports"
)

// Config bundles the pipeline parameters for one optimizer run.
type Config struct {
	Symbols      []string
	Timeframe    domain.Timeframe
	TrainDays    int
	EmbargoDays  int
	OOSDays      int
	Trials       int
	TopK         int
	MC           MCConfig
	TailDDLimit  float64
	MaxDDIncrease float64
	MinImproveSharpe     float64
	MinImproveAnnualized float64
	WSharpe, WCagr, WCalmar, LambdaTurnover float64
	Sim          SimConfig
	Space        ParameterSpace
	Seed         int64
}

// Result is the outcome of one Run: the candidate that cleared every
// gate (nil if none did) plus, when a gate rejected it, the aggregate run
// metadata carrying the rejection reason.
type Result struct {
	Deployed   *domain.ConfigVersion
	Rejected   []domain.OptimizerRunMetadata
	BestParams map[string]float64
}

// Run executes the full optimizer pipeline: data load, walk-forward
// segmentation, per-segment Bayesian search, OOS evaluation, Monte-Carlo
// stress, aggregation, candidate selection, the deployment gate, and
// versioning. It is a single-shot operation invoked by an external
// scheduler.
func Run(ctx context.Context, ex ports.Exchange, versions *VersionStore, badCombos *BadComboMemory,
	baseline domain.OptimizerRunMetadata, cfg Config, now time.Time, log zerolog.Logger) (Result, error) {

	series, err := loadSeries(ctx, ex, cfg.Symbols, cfg.Timeframe, cfg.TrainDays+cfg.EmbargoDays+cfg.OOSDays)
	if err != nil {
		return Result{}, err
	}

	anchor := series[0].Bars
	segments := BuildSegments(anchor, cfg.TrainDays, cfg.EmbargoDays, cfg.OOSDays)
	if len(segments) == 0 {
		log.Warn().Msg("optimizer: insufficient history for even one walk-forward segment")
		return Result{}, nil
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	space := cfg.Space
	if space == nil {
		space = DefaultSpace()
	}

	var oosSharpes, oosCAGRs, oosDrawdowns []float64
	var lastRanked []Candidate
	var bestOverall Candidate
	bestOverall.Score = -1e18

	for i, seg := range segments {
		trainSeries := sliceSeries(series, seg.TrainStart, seg.TrainEnd)
		oosSeries := sliceSeries(series, seg.EmbargoEnd, seg.OOSEnd)

		objective := func(params map[string]float64) float64 {
			if badCombos != nil && badCombos.IsKnownBad(params) {
				return -1e9
			}
			r := Simulate(cfg.Sim, trainSeries, params)
			return Objective(r, cfg.WSharpe, cfg.WCagr, cfg.WCalmar, cfg.LambdaTurnover)
		}

		ranked := Search(space, objective, cfg.Trials, rng)
		lastRanked = ranked
		if len(ranked) == 0 {
			continue
		}

		topK := cfg.TopK
		if topK > len(ranked) {
			topK = len(ranked)
		}
		var bestOOS SimResult
		var bestOOSScore = -1e18
		var bestParams map[string]float64
		for _, cand := range ranked[:topK] {
			oosResult := Simulate(cfg.Sim, oosSeries, cand.Params)
			score := Objective(oosResult, cfg.WSharpe, cfg.WCagr, cfg.WCalmar, cfg.LambdaTurnover)
			if score > bestOOSScore {
				bestOOSScore = score
				bestOOS = oosResult
				bestParams = cand.Params
			}
		}

		oosSharpes = append(oosSharpes, bestOOS.Sharpe)
		oosCAGRs = append(oosCAGRs, bestOOS.CAGR)
		oosDrawdowns = append(oosDrawdowns, bestOOS.MaxDrawdown)

		if bestOOSScore > bestOverall.Score {
			bestOverall = Candidate{Params: bestParams, Score: bestOOSScore}
		}

		log.Info().Int("segment", i).Float64("oos_sharpe", bestOOS.Sharpe).Float64("oos_cagr", bestOOS.CAGR).
			Msg("optimizer: segment evaluated")
	}

	if badCombos != nil && len(lastRanked) > 0 {
		_ = badCombos.Record(lastRanked)
	}

	aggSharpe := meanOf(oosSharpes)
	aggCAGR := meanOf(oosCAGRs)

	stressReturns := Simulate(cfg.Sim, series, bestOverall.Params).DailyReturns
	mc := Stress(stressReturns, cfg.MC, rng)

	meta := domain.OptimizerRunMetadata{
		SegmentCount: len(segments), TrainDays: cfg.TrainDays, EmbargoDays: cfg.EmbargoDays, OOSDays: cfg.OOSDays,
		AggregateOOSSharpe: aggSharpe, AggregateOOSCAGR: aggCAGR,
		MCP95Drawdown: mc.P95Drawdown, MCP99Drawdown: mc.P99Drawdown,
		BaselineSharpe: baseline.AggregateOOSSharpe, BaselineCAGR: baseline.AggregateOOSCAGR,
	}

	result := Result{BestParams: bestOverall.Params}

	if mc.TailDrawdown > cfg.TailDDLimit {
		meta.RejectReason = "mc_tail_drawdown_exceeds_limit"
		result.Rejected = append(result.Rejected, meta)
		return result, nil
	}
	if baseline.MCP99Drawdown > 0 && mc.P99Drawdown > baseline.MCP99Drawdown*(1+cfg.MaxDDIncrease) {
		meta.RejectReason = "mc_drawdown_exceeds_baseline_by_more_than_allowed"
		result.Rejected = append(result.Rejected, meta)
		return result, nil
	}
	if !meta.ImprovesOn(cfg.MinImproveSharpe, cfg.MinImproveAnnualized) {
		meta.RejectReason = "insufficient_oos_improvement"
		result.Rejected = append(result.Rejected, meta)
		return result, nil
	}

	meta.Deployed = true
	version := domain.ConfigVersion{
		ID: NewVersionID(now), CreatedAt: now, Parameters: bestOverall.Params, Metadata: meta,
		BackupOf: versions.Active(),
	}
	if err := versions.Write(version); err != nil {
		return result, err
	}
	if err := versions.SetActive(version.ID); err != nil {
		return result, err
	}
	result.Deployed = &version
	return result, nil
}

func loadSeries(ctx context.Context, ex ports.Exchange, symbols []string, tf domain.Timeframe, totalDays int) ([]signals.BarSeries, error) {
	limit := totalDays*24 + 48
	out := make([]signals.BarSeries, 0, len(symbols))
	for _, sym := range symbols {
		bars, err := ex.FetchBars(ctx, sym, tf, limit)
		if err != nil {
			return nil, err
		}
		out = append(out, signals.BarSeries{Symbol: sym, Bars: bars})
	}
	return out, nil
}

func sliceSeries(series []signals.BarSeries, from, to time.Time) []signals.BarSeries {
	out := make([]signals.BarSeries, 0, len(series))
	for _, s := range series {
		out = append(out, signals.BarSeries{Symbol: s.Symbol, Bars: Slice(s.Bars, from, to)})
	}
	return out
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
