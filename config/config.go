package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/StaithValanthis/xsmom-bot/internal/application/exitmonitor"
	"github.com/StaithValanthis/xsmom-bot/internal/application/risk"
	"github.com/StaithValanthis/xsmom-bot/internal/application/signals"
	"github.com/StaithValanthis/xsmom-bot/internal/application/sizing"
	"github.com/StaithValanthis/xsmom-bot/internal/domain"
)

// Config is the full bot configuration. Schema validation beyond the
// defaulting below is left to the operator's YAML; this loader only
// parses and fills sensible defaults, the same contract the scanner's
// config loader carries.
type Config struct {
	Exchange  ExchangeConfig  `yaml:"exchange"`
	Data      DataConfig      `yaml:"data"`
	Signals   SignalsConfig   `yaml:"signals"`
	Filters   FiltersConfig   `yaml:"filters"`
	Sizing    SizingConfig    `yaml:"sizing"`
	Risk      RiskConfig      `yaml:"risk"`
	Execution ExecutionConfig `yaml:"execution"`
	ExitMon   ExitMonConfig   `yaml:"exit_monitor"`
	Paths     PathsConfig     `yaml:"paths"`
	Log       LogConfig       `yaml:"log"`
}

// ExchangeConfig holds the REST/auth surface parameters.
type ExchangeConfig struct {
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	APISecretEnv      string  `yaml:"api_secret_env"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	MarketDataRPS     float64 `yaml:"market_data_rps"`
	AccountRPS        float64 `yaml:"account_rps"`
	TradingRPS        float64 `yaml:"trading_rps"`
	BreakerMaxFails   int     `yaml:"breaker_max_fails"`
	BreakerTimeoutSec int     `yaml:"breaker_timeout_seconds"`
	QuoteCurrency     string  `yaml:"quote_currency"`
	MaxSymbols        int     `yaml:"max_symbols"`
	MinUSDVolume24h   float64 `yaml:"min_usd_volume_24h"`
	MinPrice          float64 `yaml:"min_price"`
}

// DataConfig controls the OHLCV cache and candle sourcing.
type DataConfig struct {
	Timeframe    string `yaml:"timeframe"`
	CandlesLimit int    `yaml:"candles_limit"`
	CachePath    string `yaml:"cache_path"`
}

// SignalsConfig mirrors signals.Config for YAML.
type SignalsConfig struct {
	Lookbacks      []LookbackConfig `yaml:"lookbacks"`
	SignalPower    float64          `yaml:"signal_power"`
	EntryZScoreMin float64          `yaml:"entry_zscore_min"`
	MinBreadthFrac float64          `yaml:"min_breadth_frac"`
	VolLookback    int              `yaml:"vol_lookback"`
}

// LookbackConfig is one (bars, weight) pair.
type LookbackConfig struct {
	Bars   int     `yaml:"bars"`
	Weight float64 `yaml:"weight"`
}

// FiltersConfig mirrors signals.FilterChainConfig for YAML.
type FiltersConfig struct {
	Regime             RegimeFilterYAML             `yaml:"regime"`
	ADX                ADXFilterYAML                `yaml:"adx"`
	Symbol             SymbolFilterYAML              `yaml:"symbol"`
	VolatilityBreakout VolatilityBreakoutFilterYAML `yaml:"volatility_breakout"`
	BlackoutHoursUTC   []int                        `yaml:"blackout_hours_utc"`
}

type RegimeFilterYAML struct {
	Enabled           bool    `yaml:"enabled"`
	EMALen            int     `yaml:"ema_len"`
	SlopeMinBpsPerDay float64 `yaml:"slope_min_bps_per_day"`
	DirectionalOnly   bool    `yaml:"directional_only"`
}

type ADXFilterYAML struct {
	Enabled bool    `yaml:"enabled"`
	MinADX  float64 `yaml:"min_adx"`
}

type SymbolFilterYAML struct {
	Enabled                bool    `yaml:"enabled"`
	MinWinRate             float64 `yaml:"min_win_rate"`
	MinProfitFactor        float64 `yaml:"min_profit_factor"`
	StreakPauseAfterLosses int     `yaml:"streak_pause_after_losses"`
}

type VolatilityBreakoutFilterYAML struct {
	Enabled       bool    `yaml:"enabled"`
	ExpansionMult float64 `yaml:"expansion_mult"`
	ATRLookback   int     `yaml:"atr_lookback"`
}

// SizingConfig mirrors sizing.Config for YAML.
type SizingConfig struct {
	KMin                 int     `yaml:"k_min"`
	KMax                 int     `yaml:"k_max"`
	DynamicK             bool    `yaml:"dynamic_k"`
	Mode                 string  `yaml:"mode"`
	VolLookback          int     `yaml:"vol_lookback"`
	RiskPerTradePct      float64 `yaml:"risk_per_trade_pct"`
	ATRMultSL            float64 `yaml:"atr_mult_sl"`
	MarketNeutral        bool    `yaml:"market_neutral"`
	NeutralEpsilon       float64 `yaml:"neutral_epsilon"`
	GrossLeverage        float64 `yaml:"gross_leverage"`
	MaxWeightPerAsset    float64 `yaml:"max_weight_per_asset"`
	NotionalCapUSDT      float64 `yaml:"notional_cap_usdt"`
	ADVPercentCap        float64 `yaml:"adv_percent_cap"`
	VolTargetEnabled     bool    `yaml:"vol_target_enabled"`
	TargetAnnVol         float64 `yaml:"target_ann_vol"`
	MinScale             float64 `yaml:"min_scale"`
	MaxScale             float64 `yaml:"max_scale"`
	KellyEnabled         bool    `yaml:"kelly_enabled"`
	KellyFraction        float64 `yaml:"kelly_fraction"`
	HighVolMult          float64 `yaml:"high_vol_mult"`
	MaxScaleDown         float64 `yaml:"max_scale_down"`
	CorrelationEnabled   bool    `yaml:"correlation_enabled"`
	MaxAllowedCorr       float64 `yaml:"max_allowed_corr"`
	MaxHighCorrPositions int     `yaml:"max_high_corr_positions"`
	LookbackHours        int     `yaml:"lookback_hours"`
	MaxOpenPositionsHard int     `yaml:"max_open_positions_hard"`
}

// RiskConfig mirrors risk.Config for YAML.
type RiskConfig struct {
	MaxDailyLossPct         float64 `yaml:"max_daily_loss_pct"`
	DailyLossUseTrailing    bool    `yaml:"daily_loss_use_trailing"`
	PortfolioDDWindowDays   int     `yaml:"portfolio_dd_window_days"`
	MaxPortfolioDrawdownPct float64 `yaml:"max_portfolio_drawdown_pct"`
	RecoveryFraction        float64 `yaml:"recovery_fraction"`
	LongTermDDWarnDays      []int   `yaml:"long_term_dd_warn_days"`
	LongTermDDWarnPct       float64 `yaml:"long_term_dd_warn_pct"`
	MarginSoftLimitPct      float64 `yaml:"margin_soft_limit_pct"`
	MarginHardLimitPct      float64 `yaml:"margin_hard_limit_pct"`
	MarginAction            string  `yaml:"margin_action"`
	APIWindowSeconds        int     `yaml:"api_window_seconds"`
	APIMaxErrors            int     `yaml:"api_max_errors"`
	APICooldownSeconds      int     `yaml:"api_cooldown_seconds"`
}

// ExecutionConfig mirrors tradingengine.Config for YAML.
type ExecutionConfig struct {
	RebalanceMinute      int     `yaml:"rebalance_minute"`
	PollSeconds          int     `yaml:"poll_seconds"`
	PostOnly             bool    `yaml:"post_only"`
	MinNotionalUSDT      float64 `yaml:"min_notional_usdt"`
	MinRebalanceDeltaBps float64 `yaml:"min_rebalance_delta_bps"`
	MaxSpreadBps         float64 `yaml:"max_spread_bps"`
	MinOBI               float64 `yaml:"min_obi"`
	MinTopOfBookDepthUSD float64 `yaml:"min_top_of_book_depth_usd"`
	BaseOffsetBps        float64 `yaml:"base_offset_bps"`
	PerSpreadCoeff       float64 `yaml:"per_spread_coeff"`
	MaxOffsetBps         float64 `yaml:"max_offset_bps"`
	StaleOrderMaxAgeSec  int     `yaml:"stale_order_max_age_seconds"`
	RepriceIfFarBps      float64 `yaml:"reprice_if_far_bps"`
	CarryBudgetFrac      float64 `yaml:"carry_budget_frac"`
}

// ExitMonConfig mirrors exitmonitor.Config for YAML.
type ExitMonConfig struct {
	FastCheckSeconds     int                 `yaml:"fast_check_seconds"`
	StopTimeframe        string              `yaml:"stop_timeframe"`
	CatastrophicATRMult  float64             `yaml:"catastrophic_atr_mult"`
	TrailingEnabled      bool                `yaml:"trailing_enabled"`
	TrailATRMult         float64             `yaml:"trail_atr_mult"`
	BreakevenAfterR      float64             `yaml:"breakeven_after_r"`
	ProfitLadder         []ProfitLevelConfig `yaml:"profit_ladder"`
	MaxHoursInTrade      float64             `yaml:"max_hours_in_trade"`
	NoProgressEnabled    bool                `yaml:"no_progress_enabled"`
	MinHoldMinutes       float64             `yaml:"min_hold_minutes"`
	NoProgressRThreshold float64             `yaml:"no_progress_r_threshold"`
	PostExitCooldownSec  int                 `yaml:"post_exit_cooldown_seconds"`
	PostStopCooldownSec  int                 `yaml:"post_stop_cooldown_seconds"`
	StreakPauseAfter     int                 `yaml:"streak_pause_after_losses"`
	StreakPauseMinutes   int                 `yaml:"streak_pause_minutes"`
}

// ProfitLevelConfig is one (r_multiple, exit_pct) rung.
type ProfitLevelConfig struct {
	RMultiple float64 `yaml:"r_multiple"`
	ExitPct   float64 `yaml:"exit_pct"`
}

// PathsConfig holds filesystem paths for state and optimizer artifacts.
type PathsConfig struct {
	StateFile      string `yaml:"state_file"`
	ConfigVersions string `yaml:"config_versions_dir"`
}

// LogConfig controls zerolog's level and format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the YAML config at path, layers .env overrides on top, and
// fills in defaults for anything left zero.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("XSMOM_BASE_URL"); v != "" {
		cfg.Exchange.BaseURL = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Exchange.TimeoutSeconds <= 0 {
		cfg.Exchange.TimeoutSeconds = 10
	}
	if cfg.Exchange.MarketDataRPS <= 0 {
		cfg.Exchange.MarketDataRPS = 10
	}
	if cfg.Exchange.AccountRPS <= 0 {
		cfg.Exchange.AccountRPS = 5
	}
	if cfg.Exchange.TradingRPS <= 0 {
		cfg.Exchange.TradingRPS = 5
	}
	if cfg.Exchange.BreakerMaxFails <= 0 {
		cfg.Exchange.BreakerMaxFails = 5
	}
	if cfg.Exchange.BreakerTimeoutSec <= 0 {
		cfg.Exchange.BreakerTimeoutSec = 60
	}
	if cfg.Exchange.QuoteCurrency == "" {
		cfg.Exchange.QuoteCurrency = "USDT"
	}
	if cfg.Exchange.MaxSymbols <= 0 {
		cfg.Exchange.MaxSymbols = 60
	}
	if cfg.Data.Timeframe == "" {
		cfg.Data.Timeframe = "1h"
	}
	if cfg.Data.CandlesLimit <= 0 {
		cfg.Data.CandlesLimit = 400
	}
	if cfg.Data.CachePath == "" {
		cfg.Data.CachePath = "ohlcv.db"
	}
	if cfg.Sizing.KMin <= 0 {
		cfg.Sizing.KMin = 4
	}
	if cfg.Sizing.KMax <= 0 {
		cfg.Sizing.KMax = 12
	}
	if cfg.Sizing.Mode == "" {
		cfg.Sizing.Mode = "inverse_volatility"
	}
	if cfg.Sizing.GrossLeverage <= 0 {
		cfg.Sizing.GrossLeverage = 1.0
	}
	if cfg.Sizing.MaxWeightPerAsset <= 0 {
		cfg.Sizing.MaxWeightPerAsset = 0.25
	}
	if cfg.Risk.MaxDailyLossPct <= 0 {
		cfg.Risk.MaxDailyLossPct = 0.05
	}
	if cfg.Risk.MarginAction == "" {
		cfg.Risk.MarginAction = "pause"
	}
	if cfg.Risk.MarginHardLimitPct <= 0 {
		cfg.Risk.MarginHardLimitPct = 0.9
	}
	if cfg.Risk.MarginSoftLimitPct <= 0 {
		cfg.Risk.MarginSoftLimitPct = 0.7
	}
	if cfg.Risk.APIWindowSeconds <= 0 {
		cfg.Risk.APIWindowSeconds = 300
	}
	if cfg.Risk.APIMaxErrors <= 0 {
		cfg.Risk.APIMaxErrors = 5
	}
	if cfg.Risk.APICooldownSeconds <= 0 {
		cfg.Risk.APICooldownSeconds = 300
	}
	if cfg.Execution.PollSeconds <= 0 {
		cfg.Execution.PollSeconds = 30
	}
	if cfg.Execution.StaleOrderMaxAgeSec <= 0 {
		cfg.Execution.StaleOrderMaxAgeSec = 120
	}
	if cfg.ExitMon.FastCheckSeconds <= 0 {
		cfg.ExitMon.FastCheckSeconds = 2
	}
	if cfg.ExitMon.StopTimeframe == "" {
		cfg.ExitMon.StopTimeframe = "5m"
	}
	if cfg.ExitMon.CatastrophicATRMult <= 0 {
		cfg.ExitMon.CatastrophicATRMult = 5
	}
	if cfg.ExitMon.TrailATRMult <= 0 {
		cfg.ExitMon.TrailATRMult = 2.5
	}
	if cfg.ExitMon.PostExitCooldownSec <= 0 {
		cfg.ExitMon.PostExitCooldownSec = 900
	}
	if cfg.ExitMon.PostStopCooldownSec <= 0 {
		cfg.ExitMon.PostStopCooldownSec = 3600
	}
	if cfg.ExitMon.StreakPauseMinutes <= 0 {
		cfg.ExitMon.StreakPauseMinutes = 720
	}
	if cfg.Paths.StateFile == "" {
		cfg.Paths.StateFile = "state.json"
	}
	if cfg.Paths.ConfigVersions == "" {
		cfg.Paths.ConfigVersions = "config_versions"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// Timeframe parses Data.Timeframe into a domain.Timeframe.
func (c *Config) Timeframe() domain.Timeframe {
	return domain.Timeframe(c.Data.Timeframe)
}

// ToSignalsConfig converts the YAML section into signals.Config.
func (c *Config) ToSignalsConfig() signals.Config {
	lbs := make([]signals.Lookback, len(c.Signals.Lookbacks))
	for i, lb := range c.Signals.Lookbacks {
		lbs[i] = signals.Lookback{Bars: lb.Bars, Weight: lb.Weight}
	}
	return signals.Config{
		Lookbacks:      lbs,
		SignalPower:    c.Signals.SignalPower,
		EntryZScoreMin: c.Signals.EntryZScoreMin,
		MinBreadthFrac: c.Signals.MinBreadthFrac,
		VolLookback:    c.Signals.VolLookback,
	}
}

// ToFilterChainConfig converts the YAML section into signals.FilterChainConfig.
func (c *Config) ToFilterChainConfig() signals.FilterChainConfig {
	return signals.FilterChainConfig{
		Regime: signals.RegimeFilterConfig{
			Enabled: c.Filters.Regime.Enabled, EMALen: c.Filters.Regime.EMALen,
			SlopeMinBpsPerDay: c.Filters.Regime.SlopeMinBpsPerDay, DirectionalOnly: c.Filters.Regime.DirectionalOnly,
		},
		ADX: signals.ADXFilterConfig{Enabled: c.Filters.ADX.Enabled, MinADX: c.Filters.ADX.MinADX},
		Symbol: signals.SymbolFilterConfig{
			Enabled: c.Filters.Symbol.Enabled, MinWinRate: c.Filters.Symbol.MinWinRate,
			MinProfitFactor: c.Filters.Symbol.MinProfitFactor, StreakPauseAfterLosses: c.Filters.Symbol.StreakPauseAfterLosses,
		},
		VolatilityBreakout: signals.VolatilityBreakoutConfig{
			Enabled: c.Filters.VolatilityBreakout.Enabled, ExpansionMult: c.Filters.VolatilityBreakout.ExpansionMult,
			ATRLookback: c.Filters.VolatilityBreakout.ATRLookback,
		},
		BlackoutHoursUTC: c.Filters.BlackoutHoursUTC,
	}
}

// ToSizingConfig converts the YAML section into sizing.Config.
func (c *Config) ToSizingConfig() sizing.Config {
	mode := sizing.ModeInverseVolatility
	if c.Sizing.Mode == "fixed_risk_per_trade" {
		mode = sizing.ModeFixedRiskPerTrade
	}
	s := c.Sizing
	return sizing.Config{
		KMin: s.KMin, KMax: s.KMax, DynamicK: s.DynamicK, Mode: mode, VolLookback: s.VolLookback,
		RiskPerTradePct: s.RiskPerTradePct, ATRMultSL: s.ATRMultSL,
		MarketNeutral: s.MarketNeutral, NeutralEpsilon: s.NeutralEpsilon,
		GrossLeverage: s.GrossLeverage, MaxWeightPerAsset: s.MaxWeightPerAsset,
		NotionalCapUSDT: s.NotionalCapUSDT, ADVPercentCap: s.ADVPercentCap,
		VolTargetEnabled: s.VolTargetEnabled, TargetAnnVol: s.TargetAnnVol,
		MinScale: s.MinScale, MaxScale: s.MaxScale,
		KellyEnabled: s.KellyEnabled, KellyFraction: s.KellyFraction,
		HighVolMult: s.HighVolMult, MaxScaleDown: s.MaxScaleDown,
		CorrelationEnabled: s.CorrelationEnabled, MaxAllowedCorr: s.MaxAllowedCorr,
		MaxHighCorrPositions: s.MaxHighCorrPositions, LookbackHours: s.LookbackHours,
		MaxOpenPositionsHard: s.MaxOpenPositionsHard,
	}
}

// ToRiskConfig converts the YAML section into risk.Config.
func (c *Config) ToRiskConfig() risk.Config {
	action := risk.MarginActionPause
	if c.Risk.MarginAction == "liquidate" {
		action = risk.MarginActionLiquidate
	}
	r := c.Risk
	return risk.Config{
		MaxDailyLossPct: r.MaxDailyLossPct, DailyLossUseTrailing: r.DailyLossUseTrailing,
		PortfolioDDWindowDays: r.PortfolioDDWindowDays, MaxPortfolioDrawdownPct: r.MaxPortfolioDrawdownPct,
		RecoveryFraction: r.RecoveryFraction, LongTermDDWarnDays: r.LongTermDDWarnDays,
		LongTermDDWarnPct: r.LongTermDDWarnPct, MarginSoftLimitPct: r.MarginSoftLimitPct,
		MarginHardLimitPct: r.MarginHardLimitPct, MarginAction: action,
		APIWindowSeconds: r.APIWindowSeconds, APIMaxErrors: r.APIMaxErrors, APICooldownSeconds: r.APICooldownSeconds,
	}
}

// ToExitMonitorConfig converts the YAML section into exitmonitor.Config.
func (c *Config) ToExitMonitorConfig() exitmonitor.Config {
	levels := make([]exitmonitor.ProfitLevel, len(c.ExitMon.ProfitLadder))
	for i, l := range c.ExitMon.ProfitLadder {
		levels[i] = exitmonitor.ProfitLevel{RMultiple: l.RMultiple, ExitPct: l.ExitPct}
	}
	e := c.ExitMon
	return exitmonitor.Config{
		FastCheckInterval: time.Duration(e.FastCheckSeconds) * time.Second,
		StopTimeframe:     domain.Timeframe(e.StopTimeframe),
		CatastrophicATRMult: e.CatastrophicATRMult, TrailingEnabled: e.TrailingEnabled, TrailATRMult: e.TrailATRMult,
		BreakevenAfterR: e.BreakevenAfterR, ProfitLadder: levels, MaxHoursInTrade: e.MaxHoursInTrade,
		NoProgressEnabled: e.NoProgressEnabled, MinHoldMinutes: e.MinHoldMinutes, NoProgressRThreshold: e.NoProgressRThreshold,
		PostExitCooldown: time.Duration(e.PostExitCooldownSec) * time.Second,
		PostStopCooldown: time.Duration(e.PostStopCooldownSec) * time.Second,
		StreakPauseAfter: e.StreakPauseAfter, StreakPauseDuration: time.Duration(e.StreakPauseMinutes) * time.Minute,
	}
}
