package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/StaithValanthis/xsmom-bot/config"
	"github.com/StaithValanthis/xsmom-bot/internal/adapters/exchange"
	"github.com/StaithValanthis/xsmom-bot/internal/adapters/notify"
	"github.com/StaithValanthis/xsmom-bot/internal/adapters/ohlcvcache"
	"github.com/StaithValanthis/xsmom-bot/internal/adapters/statestore"
	"github.com/StaithValanthis/xsmom-bot/internal/application/exitmonitor"
	"github.com/StaithValanthis/xsmom-bot/internal/application/tradingengine"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one trading cycle and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full cycle table instead of a compact line")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		zerolog.New(os.Stderr).With().Timestamp().Logger().Error().Err(err).Str("path", *configPath).Msg("failed to load config")
		os.Exit(1)
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	log := setupLogger(cfg.Log)

	log.Info().Str("config", *configPath).Bool("once", *once).Msg("xsmom-bot starting")

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
		QuoteCurrency:   cfg.Exchange.QuoteCurrency,
		MaxSymbols:      cfg.Exchange.MaxSymbols,
		MinUSDVolume24h: cfg.Exchange.MinUSDVolume24h,
		MinPrice:        cfg.Exchange.MinPrice,
		MaxPagination:   10,
		ThrottleDelay:   50 * time.Millisecond,
	}, log)

	cache, err := ohlcvcache.Open(cfg.Data.CachePath)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.Data.CachePath).Msg("failed to open OHLCV cache")
		os.Exit(1)
	}
	defer cache.Close()

	store := statestore.New(cfg.Paths.StateFile, log)
	notifier := notify.NewConsole(*table)

	engineCfg := tradingengine.Config{
		Timeframe:            cfg.Timeframe(),
		CandlesLimit:         cfg.Data.CandlesLimit,
		RebalanceMinute:      cfg.Execution.RebalanceMinute,
		PollSeconds:          cfg.Execution.PollSeconds,
		PostOnly:             cfg.Execution.PostOnly,
		MinNotionalUSDT:      cfg.Execution.MinNotionalUSDT,
		MinRebalanceDeltaBps: cfg.Execution.MinRebalanceDeltaBps,
		MaxSpreadBps:         cfg.Execution.MaxSpreadBps,
		MinOBI:               cfg.Execution.MinOBI,
		MinTopOfBookDepthUSD: cfg.Execution.MinTopOfBookDepthUSD,
		BaseOffsetBps:        cfg.Execution.BaseOffsetBps,
		PerSpreadCoeff:       cfg.Execution.PerSpreadCoeff,
		MaxOffsetBps:         cfg.Execution.MaxOffsetBps,
		StaleOrderMaxAge:     time.Duration(cfg.Execution.StaleOrderMaxAgeSec) * time.Second,
		RepriceIfFarBps:      cfg.Execution.RepriceIfFarBps,
		CarryBudgetFrac:      cfg.Execution.CarryBudgetFrac,
		Signals:              cfg.ToSignalsConfig(),
		Filters:              cfg.ToFilterChainConfig(),
		Sizing:               cfg.ToSizingConfig(),
		Risk:                 cfg.ToRiskConfig(),
	}

	engine := tradingengine.New(bybit, cache, store, notifier, engineCfg, nil, nil, log)
	monitor := exitmonitor.New(bybit, store, cfg.ToExitMonitorConfig(), log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := reconcileOnStartup(ctx, bybit, store, log); err != nil {
		log.Warn().Err(err).Msg("startup position reconciliation failed, continuing with stored state")
	}

	if *once {
		result, err := engine.RunOnce(ctx)
		if err != nil {
			log.Error().Err(err).Msg("trading cycle failed")
			os.Exit(1)
		}
		log.Info().Interface("result", result).Msg("trading cycle complete")
		return
	}

	go func() {
		if err := monitor.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("exit monitor stopped unexpectedly")
		}
	}()

	runLoop(ctx, engine, log, time.Duration(cfg.Execution.PollSeconds)*time.Second)
	log.Info().Msg("xsmom-bot stopped cleanly")
}

func runLoop(ctx context.Context, engine *tradingengine.Engine, log zerolog.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := engine.RunOnce(ctx); err != nil {
				log.Error().Err(err).Msg("trading cycle failed")
			}
		}
	}
}

func setupLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var writer = os.Stderr
	if cfg.Format == "json" {
		return zerolog.New(writer).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: writer, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
}
