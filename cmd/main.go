package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/polyneko/bot"
	"github.com/web3guy0/polyneko/core"
	"github.com/web3guy0/polyneko/exec"
	"github.com/web3guy0/polyneko/execution"
	"github.com/web3guy0/polyneko/feeds"
	"github.com/web3guy0/polyneko/internal/config"
	"github.com/web3guy0/polyneko/internal/metrics"
	"github.com/web3guy0/polyneko/risk"
	"github.com/web3guy0/polyneko/storage"
	"github.com/web3guy0/polyneko/strategy"
)

func main() {
	// ═══════════════════════════════════════════════════════════════════════════════
	// BOOTSTRAP
	// ═══════════════════════════════════════════════════════════════════════════════

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Info().Msg("═══════════════════════════════════════════════════════════════")
	log.Info().Msg("          POLYNEKO - 15M UP/DOWN DIRECTIONAL BETTOR")
	log.Info().Msg("═══════════════════════════════════════════════════════════════")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ═══════════════════════════════════════════════════════════════════════════════
	// INITIALIZE COMPONENTS
	// ═══════════════════════════════════════════════════════════════════════════════

	// 1. Storage (trade history and hourly win rates)
	var db *storage.Database
	if cfg.DatabasePath != "" {
		db, err = storage.New(cfg.DatabasePath)
		if err != nil {
			log.Warn().Err(err).Msg("Database unavailable, continuing without persistence")
			db = nil
		} else {
			log.Info().Msg("✅ Storage layer initialized")
		}
	}

	// 2. Metrics endpoint
	if cfg.MetricsAddr != "" {
		go metrics.Serve(ctx, cfg.MetricsAddr)
		log.Info().Msg("✅ Metrics initialized")
	}

	// 3. Reference data
	binance := feeds.NewBinanceClient(cfg.BinanceURL)
	analyzer := strategy.NewAnalyzer(binance, cfg.Strategy)
	log.Info().Msg("✅ Reference feed initialized")

	// 4. Risk
	riskState := risk.NewState(cfg.Risk)
	sizer := risk.NewSizer(cfg.Sizing, cfg.Strategy.HighConfidence)
	log.Info().Msg("✅ Risk layer initialized")

	// 5. Execution
	paper := cfg.DryRun
	var gateway execution.Gateway
	if !paper && !cfg.LiveReady() {
		log.Warn().Msg("Live credentials incomplete (WALLET_PRIVATE_KEY, CLOB_API_KEY, CLOB_API_SECRET, CLOB_PASSPHRASE), falling back to SIM")
		paper = true
	}
	if !paper {
		client, err := exec.NewClient(cfg.CLOBURL, exec.Credentials{
			APIKey:        cfg.CLOBApiKey,
			APISecret:     cfg.CLOBApiSecret,
			Passphrase:    cfg.CLOBPassphrase,
			PrivateKey:    cfg.WalletPrivateKey,
			FunderAddress: cfg.FunderAddress,
			SignatureType: cfg.SignatureType,
		})
		if err == nil {
			err = client.Ping(ctx)
		}
		if err != nil {
			log.Error().Err(err).Msg("Live execution unavailable, falling back to SIM")
			paper = true
		} else {
			gateway = client
		}
	}
	executor := execution.NewExecutor(gateway, sizer, execution.ExecutorConfig{
		PaperMode: paper,
		Workers:   cfg.WorkerCount,
	})
	if db != nil {
		executor.SetRecorder(db)
	}
	log.Info().Str("mode", executor.Mode()).Msg("✅ Execution layer initialized")

	// 6. Telegram (optional)
	var tg *bot.TelegramBot
	if cfg.TelegramToken != "" {
		tg, err = bot.NewTelegramBot(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			log.Warn().Err(err).Msg("Telegram disabled")
			tg = nil
		} else {
			executor.SetNotifier(tg)
			log.Info().Msg("✅ Telegram initialized")
		}
	}

	// 7. Core engine
	deps := core.Deps{
		Feed:     feeds.NewMarketFeed(cfg.WSURL),
		Scanner:  feeds.NewWindowScanner(cfg.GammaURL),
		Analyzer: analyzer,
		Executor: executor,
		Risk:     riskState,
	}
	if db != nil {
		deps.Hours = db
		deps.Recorder = db
	}
	if tg != nil {
		deps.Notifier = tg
	}
	engine := core.NewEngine(cfg, deps)
	log.Info().Msg("✅ Core engine initialized")

	// ═══════════════════════════════════════════════════════════════════════════════
	// PRINT CONFIG
	// ═══════════════════════════════════════════════════════════════════════════════

	log.Info().Msg("")
	log.Info().Msg("╔══════════════════════════════════════════════════════════════╗")
	log.Info().Msgf("║  Mode: %-53s ║", executor.Mode())
	log.Info().Msgf("║  Symbols: %-50s ║", strings.Join(cfg.Symbols, ", "))
	log.Info().Msgf("║  Bet: $%-10s Max position: $%-25s ║", cfg.Sizing.BetSize.StringFixed(2), cfg.Sizing.MaxPosition.StringFixed(2))
	log.Info().Msgf("║  Min confidence: %-43.2f ║", cfg.Strategy.MinConfidence)
	log.Info().Msgf("║  Max hedges: %-3d Confirm: %-31s ║", cfg.Strategy.MaxHedges, cfg.Strategy.HedgeConfirm)
	log.Info().Msg("╚══════════════════════════════════════════════════════════════╝")
	log.Info().Msg("")

	// ═══════════════════════════════════════════════════════════════════════════════
	// START
	// ═══════════════════════════════════════════════════════════════════════════════

	if tg != nil {
		if db != nil {
			tg.SetProviders(engine, db)
		} else {
			tg.SetProviders(engine, nil)
		}
		tg.Start()
		tg.NotifyStartup(executor.Mode(), cfg.Symbols)
	}

	engine.Start(ctx)
	log.Info().Msg("🚀 All systems running...")

	// ═══════════════════════════════════════════════════════════════════════════════
	// GRACEFUL SHUTDOWN
	// ═══════════════════════════════════════════════════════════════════════════════

	<-ctx.Done()

	log.Info().Msg("🛑 Shutting down...")
	engine.Stop()
	executor.Close()
	if tg != nil {
		tg.Stop()
	}
	if db != nil {
		if err := db.Close(); err != nil {
			log.Warn().Err(err).Msg("Database close failed")
		}
	}
	log.Info().Msg("👋 Goodbye")
}
