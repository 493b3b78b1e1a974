package signals

import (
	"fmt"
	"time"

	"github.com/StaithValanthis/xsmom-bot/internal/domain"
)

// RegimeFilterConfig gates entries on trend slope.
type RegimeFilterConfig struct {
	Enabled          bool
	EMALen           int
	SlopeMinBpsPerDay float64
	DirectionalOnly  bool // if true, require slope sign to match signal sign
}

// ADXFilterConfig optionally requires a minimum trend strength.
type ADXFilterConfig struct {
	Enabled bool
	MinADX  float64
}

// SymbolFilterConfig drops or downweights chronically losing symbols.
type SymbolFilterConfig struct {
	Enabled                bool
	MinWinRate             float64
	MinProfitFactor        float64
	StreakPauseAfterLosses int
}

// VolatilityBreakoutConfig requires current ATR expansion vs baseline.
type VolatilityBreakoutConfig struct {
	Enabled       bool
	ExpansionMult float64
	ATRLookback   int
}

// FilterChainConfig bundles every ordered entry filter.
type FilterChainConfig struct {
	Regime             RegimeFilterConfig
	ADX                ADXFilterConfig
	Symbol             SymbolFilterConfig
	VolatilityBreakout VolatilityBreakoutConfig
	BlackoutHoursUTC   []int
}

// FilterInputs carries the per-symbol data each filter needs beyond the
// already-computed SignalRow.
type FilterInputs struct {
	Bars        []domain.Bar
	ADX14       float64
	RollingATR  float64 // mean ATR over ATRLookback, excluding the current bar
	Stats       domain.SymbolStats
	MetaLabeler func(symbol string, features map[string]float64) bool
}

// ApplyFilterChain zeroes out rows that fail any filter, in the order:
// regime, ADX, symbol, volatility breakout, blackout hours, then the
// optional meta-labeler veto.
// Each zeroed row records which filter fired in FilterReason.
func ApplyFilterChain(cfg FilterChainConfig, now time.Time, rows []domain.SignalRow, inputs map[string]FilterInputs) {
	for i := range rows {
		row := &rows[i]
		if !row.PassesFilters || row.Amplified == 0 {
			continue
		}
		in, ok := inputs[row.Symbol]
		if !ok {
			continue
		}

		if reason, blocked := checkRegime(cfg.Regime, in.Bars, row.Amplified); blocked {
			zero(row, reason)
			continue
		}
		if reason, blocked := checkADX(cfg.ADX, in.ADX14); blocked {
			zero(row, reason)
			continue
		}
		if reason, blocked := checkSymbol(cfg.Symbol, in.Stats); blocked {
			zero(row, reason)
			continue
		}
		if reason, blocked := checkVolatilityBreakout(cfg.VolatilityBreakout, row.ATR, in.RollingATR); blocked {
			zero(row, reason)
			continue
		}
		if reason, blocked := checkBlackout(cfg.BlackoutHoursUTC, now); blocked {
			zero(row, reason)
			continue
		}
		if in.MetaLabeler != nil && !in.MetaLabeler(row.Symbol, map[string]float64{
			"zscore": row.ZScore, "atr": row.ATR, "vol": row.Volatility,
		}) {
			zero(row, "meta_labeler_veto")
			continue
		}
	}
}

func zero(row *domain.SignalRow, reason string) {
	row.Amplified = 0
	row.PassesFilters = false
	row.FilterReason = reason
}

func checkBlackout(hoursUTC []int, now time.Time) (string, bool) {
	if len(hoursUTC) == 0 {
		return "", false
	}
	h := now.UTC().Hour()
	for _, bh := range hoursUTC {
		if bh == h {
			return "blackout_hours", true
		}
	}
	return "", false
}

func checkRegime(cfg RegimeFilterConfig, bars []domain.Bar, amplified float64) (string, bool) {
	if !cfg.Enabled {
		return "", false
	}
	slope := SlopeBpsPerDay(bars, cfg.EMALen, inferTimeframe(bars))
	if absF(slope) < cfg.SlopeMinBpsPerDay {
		return "regime_slope_too_flat", true
	}
	if cfg.DirectionalOnly {
		if (slope > 0 && amplified < 0) || (slope < 0 && amplified > 0) {
			return "regime_direction_mismatch", true
		}
	}
	return "", false
}

func checkADX(cfg ADXFilterConfig, adx float64) (string, bool) {
	if !cfg.Enabled {
		return "", false
	}
	if adx < cfg.MinADX {
		return fmt.Sprintf("adx_below_%v", cfg.MinADX), true
	}
	return "", false
}

func checkSymbol(cfg SymbolFilterConfig, stats domain.SymbolStats) (string, bool) {
	if !cfg.Enabled {
		return "", false
	}
	if !stats.PassesSymbolFilter(cfg.MinWinRate, cfg.MinProfitFactor, cfg.StreakPauseAfterLosses) {
		return "symbol_filter", true
	}
	return "", false
}

func checkVolatilityBreakout(cfg VolatilityBreakoutConfig, atr, rollingATR float64) (string, bool) {
	if !cfg.Enabled {
		return "", false
	}
	if rollingATR <= 0 {
		return "", false
	}
	if atr < cfg.ExpansionMult*rollingATR {
		return "volatility_breakout_gate", true
	}
	return "", false
}

func inferTimeframe(bars []domain.Bar) domain.Timeframe {
	if len(bars) == 0 {
		return domain.Timeframe1h
	}
	return bars[0].Timeframe
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
