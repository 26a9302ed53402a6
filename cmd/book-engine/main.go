package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ismaiel54/limit-order-book/internal/chaos"
	"github.com/ismaiel54/limit-order-book/internal/config"
	"github.com/ismaiel54/limit-order-book/internal/engine"
	"github.com/ismaiel54/limit-order-book/internal/logging"
	"github.com/ismaiel54/limit-order-book/internal/metrics"
	"github.com/ismaiel54/limit-order-book/internal/msg"
	"github.com/ismaiel54/limit-order-book/internal/observability"
	"github.com/ismaiel54/limit-order-book/internal/outbox"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// the service reports not ready while the outbox backlog exceeds this many batches
const maxBacklogBatches = 20

func main() {
	cfg, err := config.LoadConfig("book-engine")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting book-engine service",
		zap.String("symbol", cfg.Symbol),
		zap.String("tick_size", cfg.TickSize),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.Int("http_port", cfg.HTTPPort),
		zap.String("kafka_brokers", cfg.KafkaBrokers),
		zap.String("data_dir", cfg.DataDir),
	)

	tick, err := msg.ParseTickSize(cfg.TickSize)
	if err != nil {
		logger.Fatal("invalid tick size", zap.Error(err))
	}

	registry := metrics.Init(logger)

	dbPath := filepath.Join(cfg.DataDir, "book.db")
	store, err := outbox.Open(dbPath)
	if err != nil {
		logger.Fatal("failed to open outbox store", zap.Error(err))
	}
	defer store.Close()
	logger.Info("outbox store opened", zap.String("path", dbPath))

	chaosCfg := chaos.LoadConfig()
	var ch *chaos.Chaos
	if chaosCfg.Enabled {
		if ch, err = chaos.New(*chaosCfg, logger); err != nil {
			logger.Fatal("invalid chaos configuration", zap.Error(err))
		}
		logger.Warn("chaos injection enabled",
			zap.String("profile", chaosCfg.Profile),
			zap.String("target_symbol", chaosCfg.TargetSymbol),
			zap.Strings("target_commands", chaosCfg.TargetCommands),
			zap.Int("drop_pct", chaosCfg.DropPct),
			zap.Int("commit_fail_pct", chaosCfg.CommitFailPct),
		)
	}

	eng := engine.New(cfg.Symbol, tick, store, ch, logger)

	producer, err := msg.NewProducer(cfg.Brokers(), logger)
	if err != nil {
		logger.Fatal("failed to create kafka producer", zap.Error(err))
	}
	defer producer.Close()

	publisher := outbox.NewPublisher(store, producer, cfg.OutboxInterval(), cfg.OutboxBatchSize, logger)

	consumer, err := msg.NewConsumer(cfg.Brokers(), cfg.ConsumerGroup, []string{msg.TopicOrdersCommands}, logger)
	if err != nil {
		logger.Fatal("failed to create kafka consumer", zap.Error(err))
	}
	defer consumer.Close()

	healthChecker := observability.NewHealthChecker(logger)
	healthChecker.SetComponent(observability.ComponentKafka, false)

	grpcServer := grpc.NewServer()
	healthChecker.RegisterGRPC(grpcServer)

	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		logger.Fatal("failed to listen on gRPC port", zap.Error(err))
	}

	grpcErrCh := make(chan error, 1)
	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr()))
		if err := grpcServer.Serve(grpcListener); err != nil {
			grpcErrCh <- err
		}
	}()

	router := observability.NewRouter(healthChecker, eng, metrics.Handler(registry), logger)
	httpErrCh := make(chan error, 1)
	go func() {
		if err := healthChecker.Serve(cfg.HTTPAddr(), router); err != nil && err != http.ErrServerClosed {
			httpErrCh <- err
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumerErrCh := make(chan error, 1)
	go func() {
		if err := consumer.Run(ctx, eng.HandleRecord); err != nil && ctx.Err() == nil {
			consumerErrCh <- err
		}
	}()

	publisherErrCh := make(chan error, 1)
	go func() {
		if err := publisher.Run(ctx); err != nil && ctx.Err() == nil {
			publisherErrCh <- err
		}
	}()

	go watchReadiness(ctx, healthChecker, consumer, store, cfg.OutboxBatchSize*maxBacklogBatches)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-grpcErrCh:
		logger.Error("gRPC server error", zap.Error(err))
	case err := <-httpErrCh:
		logger.Error("HTTP server error", zap.Error(err))
	case err := <-consumerErrCh:
		logger.Error("consumer error", zap.Error(err))
	case err := <-publisherErrCh:
		logger.Error("publisher error", zap.Error(err))
	}

	logger.Info("shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := healthChecker.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down HTTP server", zap.Error(err))
	}
	grpcServer.GracefulStop()

	// drain what was committed before shutdown; anything left ships on restart
	for {
		n, err := publisher.PublishBatch(shutdownCtx)
		if err != nil {
			logger.Warn("final outbox flush failed", zap.Error(err))
			break
		}
		if n < cfg.OutboxBatchSize {
			break
		}
	}
	if pending, err := store.Pending(shutdownCtx); err == nil && pending > 0 {
		logger.Warn("outbox events left unpublished", zap.Int("pending", pending))
	}

	top := eng.TopOfBook()
	logger.Info("book-engine service stopped",
		zap.Uint64("seq", top.Seq),
		zap.Int("resting_orders", top.Orders),
	)
}

// watchReadiness polls the consumer and the outbox backlog until ctx is done
func watchReadiness(ctx context.Context, h *observability.HealthChecker, consumer *msg.Consumer, store *outbox.Store, maxBacklog int) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		h.SetComponent(observability.ComponentKafka, consumer.IsRunning())
		if pending, err := store.Pending(ctx); err == nil {
			h.SetComponent(observability.ComponentOutbox, pending <= maxBacklog)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
