package cli

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/DrugEx/internal/application/training"
	"github.com/turtacn/DrugEx/internal/config"
	"github.com/turtacn/DrugEx/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/DrugEx/internal/interfaces/http"
	"github.com/turtacn/DrugEx/pkg/errors"
)

// WorkerOptions tunes the projection worker.
type WorkerOptions struct {
	// Migrate applies pending schema migrations before consuming.
	Migrate bool
	// FromLatest starts a new consumer group at the end of the topics.
	FromLatest bool
	// ConfigPath, when set, is watched for log level changes.
	ConfigPath string
}

// RunWorker projects training events from Kafka into Postgres until ctx is
// cancelled.  It serves the monitoring routes when the server is enabled.
func RunWorker(ctx context.Context, cfg *config.Config, opts WorkerOptions, logger logging.Logger) error {
	k := cfg.Messaging.Kafka
	if !k.Enabled || !cfg.Database.Postgres.Enabled {
		return errors.New(errors.ErrCodeConfigInvalid, "the worker requires messaging.kafka and database.postgres to be enabled")
	}

	inf, err := OpenInfra(ctx, cfg, InfraOptions{
		Postgres: true,
		Kafka:    true,
		Redis:    cfg.Database.Redis.Enabled,
		Metrics:  cfg.Monitoring.Prometheus.Enabled,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := inf.Close(); cerr != nil {
			logger.Warn("Failed to close backends", logging.Err(cerr))
		}
	}()

	if err := watchLogLevel(opts.ConfigPath, logger); err != nil {
		logger.Warn("Config watch disabled", logging.Err(err))
	}

	if opts.Migrate {
		if err := inf.Postgres.RunMigrations(cfg.Database.Postgres.MigrationPath); err != nil {
			return err
		}
	}

	offset := "earliest"
	if opts.FromLatest {
		offset = "latest"
	}
	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:         k.Brokers,
		GroupID:         k.GroupID,
		Topics:          []string{k.EpochTopic, k.RunTopic},
		AutoOffsetReset: offset,
		RetryConfig: kafka.RetryConfig{
			MaxRetries:      k.MaxRetries,
			RetryBackoff:    500 * time.Millisecond,
			MaxRetryBackoff: 10 * time.Second,
			DeadLetter:      true,
		},
	}, inf.Producer, logger)
	if err != nil {
		return err
	}

	if inf.Metrics != nil {
		registerConsumerMetrics(inf.Metrics, consumer)
	}

	projector := training.NewProjector(inf.Runs, inf.SampleRepository(), logger)
	consumer.Subscribe(k.EpochTopic, projector.Handle)
	consumer.Subscribe(k.RunTopic, projector.Handle)

	g, gctx := errgroup.WithContext(ctx)
	if err := consumer.Start(gctx); err != nil {
		return err
	}
	g.Go(func() error {
		<-gctx.Done()
		return consumer.Close()
	})
	if cfg.Server.Enabled {
		srv := httpserver.NewServer(cfg.Server, NewMonitoringHandler(cfg, inf, logger), logger)
		g.Go(func() error { return srv.Run(gctx) })
	}

	logger.Info("Worker started",
		logging.String("epoch_topic", k.EpochTopic),
		logging.String("run_topic", k.RunTopic),
		logging.String("group", k.GroupID),
	)
	err = g.Wait()
	logger.Info("Worker stopped")
	return err
}

//Personal.AI order the ending
