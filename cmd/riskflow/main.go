package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/voltex/riskflow/internal/approval"
	"github.com/voltex/riskflow/internal/approval/events"
	"github.com/voltex/riskflow/internal/config"
	"github.com/voltex/riskflow/internal/engine"
	"github.com/voltex/riskflow/internal/server"
	"github.com/voltex/riskflow/internal/store"
	"github.com/voltex/riskflow/pkg/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load(os.Getenv("RISKFLOW_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Create logger
	zapLogger, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	// Open the task store
	taskStore, err := store.Open(cfg.Store, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to open task store", zap.Error(err))
	}

	// Build workflow event publishers
	var publishers []events.Publisher
	if cfg.Events.Kafka.Enabled {
		publishers = append(publishers, events.NewKafkaPublisher(cfg.Events.Kafka.Brokers, cfg.Events.Kafka.Topic))
	}
	if cfg.Events.Redis.Enabled {
		publishers = append(publishers, events.NewRedisPublisher(cfg.Events.Redis.Addr, cfg.Events.Redis.Channel))
	}

	opts := engine.Options{
		Publisher: events.NewFanout(zapLogger, publishers...),
	}
	if taskStore != nil {
		opts.Store = taskStore
	}

	eng := engine.New(cfg, zapLogger, opts)

	// Resume open approval tasks
	if taskStore != nil {
		snaps, err := taskStore.LoadOpenTasks(context.Background())
		if err != nil {
			zapLogger.Fatal("Failed to load open approval tasks", zap.Error(err))
		}
		eng.Restore(snaps)
		zapLogger.Info("resumed open approval tasks", zap.Int("count", countOpen(snaps)))
	}

	// Serve until interrupted
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(eng, cfg.Server, zapLogger)
	if err := srv.Run(ctx); err != nil {
		zapLogger.Fatal("Server exited with error", zap.Error(err))
	}
	zapLogger.Info("shutdown complete")
}

func countOpen(snaps []approval.Snapshot) int {
	n := 0
	for _, snap := range snaps {
		if !snap.Status.Terminal() {
			n++
		}
	}
	return n
}
