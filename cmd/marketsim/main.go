package main

import (
	"context"
	"flag"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/agentforum/marketsim/internal/bus"
	"github.com/agentforum/marketsim/internal/config"
	"github.com/agentforum/marketsim/internal/eventlog"
	"github.com/agentforum/marketsim/internal/market"
	"github.com/agentforum/marketsim/internal/monitoring"
	"github.com/agentforum/marketsim/internal/regulation"
	"github.com/agentforum/marketsim/internal/simulation"
	"github.com/agentforum/marketsim/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		stdlog.Println("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		stdlog.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(cfg.LogLevel)
	if err != nil {
		stdlog.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	if err := run(cfg, zapLogger); err != nil {
		zapLogger.Fatal("Run failed", zap.Error(err))
	}
}

func run(cfg config.Config, zapLogger *zap.Logger) error {
	writer, err := eventlog.NewWriter(cfg.EventLogPath)
	if err != nil {
		return err
	}
	defer writer.Close()

	log := eventlog.New(zapLogger, eventlog.WithWriter(writer))

	stocks := make([]market.StockInit, 0, len(cfg.Stocks))
	for _, s := range cfg.Stocks {
		stocks = append(stocks, market.StockInit{
			Symbol:       s.Symbol,
			InitialPrice: decimal.NewFromFloat(s.InitialPrice),
		})
	}
	mkt, err := market.NewEngine(cfg.Market, stocks, cfg.Agents, log, zapLogger)
	if err != nil {
		return err
	}

	msgBus := bus.New(cfg.Agents, log, zapLogger)
	ledger := simulation.NewLedger(cfg.Agents, decimal.NewFromFloat(cfg.InitialCash))

	regulator, err := regulation.NewEngine(cfg.Regulation, zapLogger)
	if err != nil {
		return err
	}

	var emitter monitoring.Emitter = monitoring.NoopEmitter{}
	if cfg.TraceEndpoint != "" {
		wsEmitter := monitoring.NewWebsocketEmitter(cfg.TraceEndpoint, zapLogger)
		defer wsEmitter.Close()
		emitter = wsEmitter
	}

	agents := make([]simulation.Agent, 0, len(cfg.Agents))
	for _, id := range cfg.Agents {
		agents = append(agents, simulation.Agent{
			ID:      id,
			Decider: &simulation.OpportunistDecider{},
		})
	}

	world := &simulation.World{Log: log, Market: mkt, Bus: msgBus, Ledger: ledger}
	runner := simulation.NewRunner(world, agents, zapLogger,
		simulation.WithRegulator(regulator, cfg.ScanEveryRounds),
		simulation.WithEmitter(emitter),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zapLogger.Info("Starting simulation",
		zap.Int("rounds", cfg.Rounds),
		zap.Int("agents", len(cfg.Agents)),
		zap.Int("stocks", len(cfg.Stocks)))

	if err := runner.Run(ctx, cfg.Rounds); err != nil {
		return err
	}
	if err := log.Flush(); err != nil {
		zapLogger.Warn("Event log flush failed", zap.Error(err))
	}

	violations := regulator.Violations()
	if err := regulation.BuildReport(violations).WriteFile(cfg.ComplianceReportPath); err != nil {
		return err
	}
	if err := monitoring.BuildReport(log.Snapshot()).WriteFile(cfg.MonitoringReportPath); err != nil {
		return err
	}

	zapLogger.Info("Simulation complete",
		zap.Int("events", log.Len()),
		zap.Int("violations", len(violations)),
		zap.String("event_log", cfg.EventLogPath),
		zap.String("compliance_report", cfg.ComplianceReportPath),
		zap.String("monitoring_report", cfg.MonitoringReportPath))
	return nil
}
