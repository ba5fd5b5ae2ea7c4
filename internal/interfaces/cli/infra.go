package cli

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/DrugEx/internal/config"
	"github.com/turtacn/DrugEx/internal/domain/run"
	"github.com/turtacn/DrugEx/internal/infrastructure/database/postgres"
	"github.com/turtacn/DrugEx/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/DrugEx/internal/infrastructure/database/redis"
	"github.com/turtacn/DrugEx/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/DrugEx/internal/infrastructure/storage/minio"
	"github.com/turtacn/DrugEx/internal/interfaces/http/handlers"
	"github.com/turtacn/DrugEx/pkg/errors"
)

// InfraOptions selects the backends OpenInfra connects to.
type InfraOptions struct {
	Redis    bool
	Postgres bool
	Kafka    bool
	MinIO    bool
	Metrics  bool
}

// EnabledInfra turns on every backend the config enables.
func EnabledInfra(cfg *config.Config) InfraOptions {
	return InfraOptions{
		Redis:    cfg.Database.Redis.Enabled,
		Postgres: cfg.Database.Postgres.Enabled,
		Kafka:    cfg.Messaging.Kafka.Enabled,
		MinIO:    cfg.Storage.MinIO.Enabled,
		Metrics:  cfg.Monitoring.Prometheus.Enabled,
	}
}

// Infra holds the optional backends of a process.  Members of backends that
// were not opened are nil.
type Infra struct {
	Redis *redis.Client
	Cache redis.Cache
	Locks redis.LockFactory

	Postgres *postgres.Connection
	Pool     *pgxpool.Pool
	Runs     run.RunRepository
	Samples  *repositories.SampleRepository

	Producer *kafka.Producer

	MinIO   *minio.MinIOClient
	Objects minio.ObjectStore

	Metrics  prometheus.MetricsCollector
	Training *prometheus.TrainingMetrics

	closers []func() error
	logger  logging.Logger
}

// OpenInfra connects the selected backends.  On failure everything opened so
// far is closed again.
func OpenInfra(ctx context.Context, cfg *config.Config, opts InfraOptions, logger logging.Logger) (*Infra, error) {
	inf := &Infra{logger: logger}
	steps := []struct {
		on   bool
		open func(context.Context, *config.Config) error
	}{
		{opts.Metrics, inf.openMetrics},
		{opts.Redis, inf.openRedis},
		{opts.Postgres, inf.openPostgres},
		{opts.Kafka, inf.openKafka},
		{opts.MinIO, inf.openMinIO},
	}
	for _, s := range steps {
		if !s.on {
			continue
		}
		if err := s.open(ctx, cfg); err != nil {
			_ = inf.Close()
			return nil, err
		}
	}
	return inf, nil
}

func (i *Infra) openMetrics(_ context.Context, cfg *config.Config) error {
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            cfg.Monitoring.Prometheus.Namespace,
		Subsystem:            "training",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, i.logger)
	if err != nil {
		return err
	}
	i.Metrics = collector
	i.Training = prometheus.NewTrainingMetrics(collector)
	return nil
}

func (i *Infra) openRedis(_ context.Context, cfg *config.Config) error {
	rc := cfg.Database.Redis
	client, err := redis.NewClient(&redis.RedisConfig{
		Addr:         rc.Addr,
		Password:     rc.Password,
		DB:           rc.DB,
		PoolSize:     rc.PoolSize,
		MinIdleConns: rc.MinIdleConns,
		DialTimeout:  rc.DialTimeout,
		ReadTimeout:  rc.ReadTimeout,
		WriteTimeout: rc.WriteTimeout,
	}, i.logger)
	if err != nil {
		return err
	}
	i.Redis = client
	i.Cache = redis.NewRedisCache(client, i.logger,
		redis.WithPrefix(rc.KeyPrefix),
		redis.WithDefaultTTL(cfg.Environment.CacheTTL),
		redis.WithTTLJitter(rc.TTLJitter),
	)
	i.Locks = redis.NewLockFactory(client, i.logger)
	i.closers = append(i.closers, client.Close)
	return nil
}

func (i *Infra) openPostgres(ctx context.Context, cfg *config.Config) error {
	conn, err := postgres.NewConnection(cfg.Database.Postgres, i.logger)
	if err != nil {
		return err
	}
	i.closers = append(i.closers, conn.Close)
	i.Postgres = conn
	i.Runs = repositories.NewPostgresRunRepo(conn, i.logger)

	pool, err := postgres.NewPool(ctx, cfg.Database.Postgres, i.logger)
	if err != nil {
		return err
	}
	i.closers = append(i.closers, func() error { pool.Close(); return nil })
	i.Pool = pool
	i.Samples = repositories.NewSampleRepository(pool, i.logger)
	return nil
}

func (i *Infra) openKafka(ctx context.Context, cfg *config.Config) error {
	kc := cfg.Messaging.Kafka
	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      kc.Brokers,
		MaxRetries:   kc.ProducerRetries,
		WriteTimeout: time.Duration(kc.TimeoutMS) * time.Millisecond,
	}, i.logger)
	if err != nil {
		return err
	}
	i.Producer = producer
	i.closers = append(i.closers, producer.Close)
	if i.Metrics != nil {
		registerProducerMetrics(i.Metrics, producer)
	}

	// Brokers with auto-creation enabled work without this, so a failure
	// is only logged.
	tm, err := kafka.NewTopicManager(kc.Brokers, i.logger)
	if err != nil {
		i.logger.Warn("Kafka topic manager unavailable", logging.Err(err))
		return nil
	}
	defer tm.Close()
	if err := tm.EnsureTopics(ctx, kafka.TrainingTopics(kc.EpochTopic, kc.RunTopic)...); err != nil {
		i.logger.Warn("Failed to ensure training topics", logging.Err(err))
	}
	return nil
}

type producerStats interface {
	GetMetrics() kafka.ProducerMetrics
}

type consumerStats interface {
	GetMetrics() kafka.ConsumerMetrics
}

func registerProducerMetrics(c prometheus.MetricsCollector, p producerStats) {
	c.RegisterCounterFunc("kafka_produced_messages_total", "Training events written to Kafka.", "outcome",
		func() map[string]float64 {
			m := p.GetMetrics()
			return map[string]float64{"sent": float64(m.MessagesSent), "failed": float64(m.MessagesFailed)}
		})
	c.RegisterCounterFunc("kafka_produced_bytes_total", "Payload bytes written to Kafka.", "",
		func() map[string]float64 {
			return map[string]float64{"": float64(p.GetMetrics().BytesSent)}
		})
}

func registerConsumerMetrics(c prometheus.MetricsCollector, s consumerStats) {
	c.RegisterCounterFunc("kafka_consumed_messages_total", "Training events read from Kafka by outcome.", "outcome",
		func() map[string]float64 {
			m := s.GetMetrics()
			return map[string]float64{
				"consumed":      float64(m.MessagesConsumed),
				"processed":     float64(m.MessagesProcessed),
				"failed":        float64(m.MessagesFailed),
				"retried":       float64(m.MessagesRetried),
				"dead_lettered": float64(m.MessagesDeadLettered),
			}
		})
}

func (i *Infra) openMinIO(ctx context.Context, cfg *config.Config) error {
	mc := cfg.Storage.MinIO
	client, err := minio.NewMinIOClient(&minio.MinIOConfig{
		Endpoint:        mc.Endpoint,
		AccessKeyID:     mc.AccessKey,
		SecretAccessKey: mc.SecretKey,
		UseSSL:          mc.UseSSL,
		Region:          mc.Region,
		ModelBucket:     mc.ModelBucket,
	}, i.logger)
	if err != nil {
		return err
	}
	i.closers = append(i.closers, client.Close)
	if err := client.EnsureBucket(ctx, client.ModelBucket()); err != nil {
		return err
	}
	i.MinIO = client
	i.Objects = minio.NewObjectStore(client, i.logger)
	return nil
}

// SampleRepository returns the sample store as an interface, nil when
// Postgres is not open.
func (i *Infra) SampleRepository() run.SampleRepository {
	if i.Samples == nil {
		return nil
	}
	return i.Samples
}

// HealthCheckers lists a readiness check per open backend.
func (i *Infra) HealthCheckers() []handlers.HealthChecker {
	var out []handlers.HealthChecker
	if i.Redis != nil {
		out = append(out, handlers.CheckFunc{Component: "redis", Fn: i.Redis.Ping})
	}
	if i.Postgres != nil {
		out = append(out, handlers.CheckFunc{Component: "postgres", Fn: i.Postgres.HealthCheck})
	}
	if i.Pool != nil {
		out = append(out, handlers.CheckFunc{Component: "postgres_pool", Fn: i.Pool.Ping})
	}
	if i.MinIO != nil {
		client := i.MinIO
		out = append(out, handlers.CheckFunc{Component: "minio", Fn: func(ctx context.Context) error {
			st, err := client.HealthCheck(ctx)
			if err != nil {
				return err
			}
			if !st.Healthy {
				return errors.New(errors.ErrCodeServiceUnavailable, "object storage unhealthy").WithDetail(st.Error)
			}
			return nil
		}})
	}
	return out
}

// Close releases the backends in reverse order of opening.
func (i *Infra) Close() error {
	var errs []error
	for k := len(i.closers) - 1; k >= 0; k-- {
		if err := i.closers[k](); err != nil {
			errs = append(errs, err)
		}
	}
	i.closers = nil
	return stderrors.Join(errs...)
}

//Personal.AI order the ending
