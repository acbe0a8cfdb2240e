package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/feral-file/ff-dao-mirror/internal/adapter"
	"github.com/feral-file/ff-dao-mirror/internal/block"
	"github.com/feral-file/ff-dao-mirror/internal/config"
	"github.com/feral-file/ff-dao-mirror/internal/identity"
	"github.com/feral-file/ff-dao-mirror/internal/logger"
	"github.com/feral-file/ff-dao-mirror/internal/mirror"
	"github.com/feral-file/ff-dao-mirror/internal/providers/ethereum"
	"github.com/feral-file/ff-dao-mirror/internal/providers/jetstream"
	"github.com/feral-file/ff-dao-mirror/internal/snapshot"
	"github.com/feral-file/ff-dao-mirror/internal/store"
	"github.com/feral-file/ff-dao-mirror/internal/worker"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadMirrorWorkerConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "mirror-worker",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Mirror Worker")

	contracts, err := config.Descriptors(cfg.Contracts, config.ABIBaseDir(*configFile))
	if err != nil {
		logger.FatalCtx(ctx, "Invalid contract configuration", zap.Error(err))
	}

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err), zap.String("host", cfg.Database.Host))
	}
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database")

	dataStore := store.NewPGStore(db)

	// Initialize adapters
	clockAdapter := adapter.NewClock()
	jsonAdapter := adapter.NewJSON()
	natsJS := adapter.NewNatsJetStream()

	// Initialize ethereum client; the connection is dialed on first use
	ethClient := adapter.NewLazyEthClient(adapter.NewEthClientDialer(), cfg.Ethereum.RPCURL)
	defer ethClient.Close()
	ethereumClient := ethereum.NewClient(cfg.Ethereum.ChainID, ethClient)

	blockProvider := block.NewBlockProvider(
		ethereum.NewEthereumBlockFetcher(ethClient),
		block.Config{
			TTL:                 cfg.Ethereum.BlockHeadTTL,
			StaleWindow:         cfg.Ethereum.BlockHeadStaleWindow,
			MaxCachedTimestamps: cfg.Ethereum.MaxCachedTimestamps,
		},
		clockAdapter,
	)

	engine := mirror.NewEngine(
		dataStore,
		identity.NewResolver(dataStore),
		blockProvider,
		mirror.NewTitler(cfg.Mirror.TitleTemplate),
		mirror.PeriodClosingRule{
			Blockchain:   "ETH",
			BlockTime:    cfg.Mirror.BlockTime,
			IncludeGrace: cfg.Mirror.IncludeGrace,
		},
		mirror.Config{
			SubmissionEvents: cfg.Mirror.SubmissionEvents,
			VoteEvents:       cfg.Mirror.VoteEvents,
		},
	)

	mirrorWorker, err := worker.NewWorker(
		worker.Config{
			NATS: jetstream.Config{
				URL:            cfg.NATS.URL,
				StreamName:     cfg.NATS.StreamName,
				MaxReconnects:  cfg.NATS.MaxReconnects,
				ReconnectWait:  cfg.NATS.ReconnectWait,
				ConnectionName: cfg.NATS.ConnectionName,
			},
			ConsumerPrefix: cfg.NATS.ConsumerName,
			AckWaitTimeout: cfg.NATS.AckWait,
			MaxDeliver:     cfg.NATS.MaxDeliver,
			NakDelay:       cfg.NATS.NakDelay,
		},
		natsJS,
		contracts,
		snapshot.NewSnapshotter(ethereumClient),
		engine,
		jsonAdapter,
	)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create mirror worker", zap.Error(err), zap.String("url", cfg.NATS.URL))
	}
	defer mirrorWorker.Close()
	logger.InfoCtx(ctx, "Connected to NATS JetStream")

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel for worker errors
	errCh := make(chan error, 1)

	// Start the worker
	go func() {
		if err := mirrorWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "worker"))
		cancel()
	}

	// Give some time for graceful shutdown
	time.Sleep(time.Second)

	// Use non-context logger for final shutdown message since context is already canceled
	logger.Info("Mirror Worker stopped")
}
