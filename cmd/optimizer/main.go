package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/StaithValanthis/xsmom-bot/config"
	"github.com/StaithValanthis/xsmom-bot/internal/adapters/exchange"
	"github.com/StaithValanthis/xsmom-bot/internal/application/optimizer"
	"github.com/StaithValanthis/xsmom-bot/internal/application/signals"
	"github.com/StaithValanthis/xsmom-bot/internal/domain"
)

// defaultLookbacks is the fixed multi-lookback weighting the optimizer
// always simulates with; the config's signal lookbacks are not read here.
func defaultLookbacks() []signals.Lookback {
	return []signals.Lookback{
		{Bars: 24, Weight: 0.5},
		{Bars: 24 * 7, Weight: 0.3},
		{Bars: 24 * 30, Weight: 0.2},
	}
}

// The optimizer is a single-shot process invoked on a schedule by an
// external scheduler; it does not run in the trading engine's address
// space. It exits 0 whether or not a candidate was deployed, and
// non-zero only on unrecoverable data or config errors.
func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	symbolsFlag := flag.String("symbols", "BTCUSDT,ETHUSDT,SOLUSDT", "comma-separated symbol universe")
	trials := flag.Int("trials", 60, "Bayesian search trials per segment")
	trainDays := flag.Int("train-days", 90, "training window length in days")
	embargoDays := flag.Int("embargo-days", 2, "purge gap between train and OOS, in days")
	oosDays := flag.Int("oos-days", 14, "out-of-sample window length in days")
	rollback := flag.String("rollback", "", "roll back to this config version id (or 'latest-prior') and exit")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error().Err(err).Str("path", *configPath).Msg("failed to load config")
		os.Exit(1)
	}

	versions, err := optimizer.NewVersionStore(cfg.Paths.ConfigVersions)
	if err != nil {
		log.Error().Err(err).Msg("failed to open version store")
		os.Exit(1)
	}

	if *rollback != "" {
		if err := versions.Rollback(*rollback); err != nil {
			log.Error().Err(err).Str("target", *rollback).Msg("rollback failed")
			os.Exit(1)
		}
		log.Info().Str("target", *rollback).Msg("rollback complete")
		return
	}

	apiKey := os.Getenv(cfg.Exchange.APIKeyEnv)
	apiSecret := os.Getenv(cfg.Exchange.APISecretEnv)
	client := exchange.NewClient(exchange.Config{
		BaseURL: cfg.Exchange.BaseURL, APIKey: apiKey, APISecret: apiSecret,
		Timeout:         time.Duration(cfg.Exchange.TimeoutSeconds) * time.Second,
		MarketDataRPS:   cfg.Exchange.MarketDataRPS,
		AccountRPS:      cfg.Exchange.AccountRPS,
		TradingRPS:      cfg.Exchange.TradingRPS,
		BreakerMaxFails: uint32(cfg.Exchange.BreakerMaxFails),
		BreakerTimeout:  time.Duration(cfg.Exchange.BreakerTimeoutSec) * time.Second,
	}, log)
	bybit := exchange.NewBybit(client, exchange.UniverseFilter{
		QuoteCurrency: cfg.Exchange.QuoteCurrency, MaxSymbols: cfg.Exchange.MaxSymbols,
	}, log)

	badCombos := optimizer.LoadBadComboMemory(cfg.Paths.ConfigVersions + "/bad_combos.json")

	var baseline domain.OptimizerRunMetadata
	if activeID := versions.Active(); activeID != "" {
		if v, err := versions.Load(activeID); err == nil {
			baseline = v.Metadata
		}
	}

	runCfg := optimizer.Config{
		Symbols: strings.Split(*symbolsFlag, ","), Timeframe: cfg.Timeframe(),
		TrainDays: *trainDays, EmbargoDays: *embargoDays, OOSDays: *oosDays,
		Trials: *trials, TopK: 5,
		MC: optimizer.MCConfig{Iterations: 500, BlockSize: 24, FeeMultMin: 0.8, FeeMultMax: 1.5, SlippageRange: 5},
		TailDDLimit: 0.35, MaxDDIncrease: 0.25,
		MinImproveSharpe: 0.1, MinImproveAnnualized: 0.02,
		WSharpe: 1.0, WCagr: 0.5, WCalmar: 0.3, LambdaTurnover: 0.05,
		Sim: optimizer.SimConfig{
			Lookbacks: defaultLookbacks(), VolLookback: 20, FeeBps: 6, SlippageBps: 3, BarsPerYear: 24 * 365,
		},
		Seed: time.Now().UnixNano(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	result, err := optimizer.Run(ctx, bybit, versions, badCombos, baseline, runCfg, time.Now().UTC(), log)
	if err != nil {
		log.Error().Err(err).Msg("optimizer run failed")
		os.Exit(1)
	}

	if result.Deployed != nil {
		log.Info().Str("version", result.Deployed.ID).Msg("optimizer: new config deployed")
	} else if len(result.Rejected) > 0 {
		log.Info().Str("reason", result.Rejected[0].RejectReason).Msg("optimizer: candidate rejected, no deployment")
	} else {
		log.Info().Msg("optimizer: no segments evaluated, no deployment")
	}
}
