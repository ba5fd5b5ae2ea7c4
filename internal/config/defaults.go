package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultStrategy        = StrategyRollout
	DefaultEpsilon         = 0.1
	DefaultBaseline        = 0.1
	DefaultBatchSize       = 512
	DefaultMC              = 10
	DefaultDraws           = 1
	DefaultEpochs          = 1000
	DefaultSeed            = 1
	DefaultVocabularyPath  = "data/voc.txt"
	DefaultPriorPath       = "output/net_p.json"
	DefaultOutputDir       = "output"
	DefaultCheckpointStore = CheckpointStoreFile
	DefaultSampleTopK      = 50

	DefaultEmbeddingDim = 64
	DefaultDecay        = 0.5
	DefaultMaxLen       = 100
	DefaultLearningRate = 1e-3
	DefaultBeta1        = 0.9
	DefaultBeta2        = 0.999
	DefaultInitScale    = 0.1

	DefaultEnvModelPath       = "output/RF_cls_ecfp6.json"
	DefaultEnvK               = 5
	DefaultEnvRadius          = 3
	DefaultEnvBits            = 2048
	DefaultEnvActiveThreshold = 6.5
	DefaultEnvFolds           = 5
	DefaultEnvCacheTTL        = 24 * time.Hour

	DefaultDevice  = "cpu"
	DefaultThreads = 1

	DefaultServerPort            = 8080
	DefaultServerReadTimeout     = 15 * time.Second
	DefaultServerWriteTimeout    = 15 * time.Second
	DefaultServerShutdownTimeout = 30 * time.Second

	DefaultDBHost          = "localhost"
	DefaultDBPort          = 5432
	DefaultDBName          = "drugex"
	DefaultDBSSLMode       = "disable"
	DefaultDBMaxOpenConns  = 10
	DefaultDBMaxIdleConns  = 5
	DefaultDBConnLifetime  = 30 * time.Minute
	DefaultDBMigrationPath = "migrations"

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisPoolSize  = 10
	DefaultRedisKeyPrefix = "drugex:"
	DefaultRedisLockTTL   = 10 * time.Minute
	DefaultRedisTTLJitter = 0.1

	DefaultKafkaBroker     = "localhost:9092"
	DefaultKafkaGroupID    = "drugex-worker"
	DefaultKafkaEpochTopic = "drugex.training.epoch"
	DefaultKafkaRunTopic   = "drugex.training.run"
	DefaultKafkaTimeoutMS  = 10000
	DefaultKafkaRetries    = 3

	DefaultMinIOEndpoint    = "localhost:9000"
	DefaultMinIOModelBucket = "drugex-models"

	DefaultMetricsNamespace = "drugex"
	DefaultMetricsPath      = "/metrics"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// ApplyDefaults fills every zero-value field in cfg.  Explicitly set values
// always win.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Training ──────────────────────────────────────────────────────────────
	ApplyTrainingDefaults(&cfg.Training)

	// ── Generator ─────────────────────────────────────────────────────────────
	g := &cfg.Generator
	if g.EmbeddingDim == 0 {
		g.EmbeddingDim = DefaultEmbeddingDim
	}
	if g.Decay == 0 {
		g.Decay = DefaultDecay
	}
	if g.MaxLen == 0 {
		g.MaxLen = DefaultMaxLen
	}
	if g.LearningRate == 0 {
		g.LearningRate = DefaultLearningRate
	}
	if g.Beta1 == 0 {
		g.Beta1 = DefaultBeta1
	}
	if g.Beta2 == 0 {
		g.Beta2 = DefaultBeta2
	}
	if g.InitScale == 0 {
		g.InitScale = DefaultInitScale
	}

	// ── Environment ───────────────────────────────────────────────────────────
	e := &cfg.Environment
	if e.ModelPath == "" {
		e.ModelPath = DefaultEnvModelPath
	}
	if e.K == 0 {
		e.K = DefaultEnvK
	}
	if e.Radius == 0 {
		e.Radius = DefaultEnvRadius
	}
	if e.Bits == 0 {
		e.Bits = DefaultEnvBits
	}
	if e.ActiveThreshold == 0 {
		e.ActiveThreshold = DefaultEnvActiveThreshold
	}
	if e.Folds == 0 {
		e.Folds = DefaultEnvFolds
	}
	if e.CacheTTL == 0 {
		e.CacheTTL = DefaultEnvCacheTTL
	}

	// ── Backend ───────────────────────────────────────────────────────────────
	if cfg.Backend.Device == "" {
		cfg.Backend.Device = DefaultDevice
	}
	if cfg.Backend.Threads == 0 {
		cfg.Backend.Threads = DefaultThreads
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultServerReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultServerWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultServerShutdownTimeout
	}

	// ── Postgres ──────────────────────────────────────────────────────────────
	pg := &cfg.Database.Postgres
	if pg.Host == "" {
		pg.Host = DefaultDBHost
	}
	if pg.Port == 0 {
		pg.Port = DefaultDBPort
	}
	if pg.DBName == "" {
		pg.DBName = DefaultDBName
	}
	if pg.SSLMode == "" {
		pg.SSLMode = DefaultDBSSLMode
	}
	if pg.MaxOpenConns == 0 {
		pg.MaxOpenConns = DefaultDBMaxOpenConns
	}
	if pg.MaxIdleConns == 0 {
		pg.MaxIdleConns = DefaultDBMaxIdleConns
	}
	if pg.ConnMaxLifetime == 0 {
		pg.ConnMaxLifetime = DefaultDBConnLifetime
	}
	if pg.MigrationPath == "" {
		pg.MigrationPath = DefaultDBMigrationPath
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	r := &cfg.Database.Redis
	if r.Addr == "" {
		r.Addr = DefaultRedisAddr
	}
	if r.PoolSize == 0 {
		r.PoolSize = DefaultRedisPoolSize
	}
	if r.KeyPrefix == "" {
		r.KeyPrefix = DefaultRedisKeyPrefix
	}
	if r.LockTTL == 0 {
		r.LockTTL = DefaultRedisLockTTL
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	k := &cfg.Messaging.Kafka
	if len(k.Brokers) == 0 {
		k.Brokers = []string{DefaultKafkaBroker}
	}
	if k.GroupID == "" {
		k.GroupID = DefaultKafkaGroupID
	}
	if k.EpochTopic == "" {
		k.EpochTopic = DefaultKafkaEpochTopic
	}
	if k.RunTopic == "" {
		k.RunTopic = DefaultKafkaRunTopic
	}
	if k.TimeoutMS == 0 {
		k.TimeoutMS = DefaultKafkaTimeoutMS
	}
	if k.ProducerRetries == 0 {
		k.ProducerRetries = DefaultKafkaRetries
	}
	if k.MaxRetries == 0 {
		k.MaxRetries = DefaultKafkaRetries
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.Storage.MinIO.Endpoint == "" {
		cfg.Storage.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.Storage.MinIO.ModelBucket == "" {
		cfg.Storage.MinIO.ModelBucket = DefaultMinIOModelBucket
	}

	// ── Monitoring ────────────────────────────────────────────────────────────
	if cfg.Monitoring.Prometheus.Namespace == "" {
		cfg.Monitoring.Prometheus.Namespace = DefaultMetricsNamespace
	}
	if cfg.Monitoring.Prometheus.Path == "" {
		cfg.Monitoring.Prometheus.Path = DefaultMetricsPath
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}

// ApplyTrainingDefaults fills zero-valued hyperparameters.  Epsilon and
// baseline are left alone because zero is a meaningful setting for both; their
// defaults are registered with viper in setViperDefaults instead.
func ApplyTrainingDefaults(t *TrainingConfig) {
	if t.Strategy == "" {
		t.Strategy = DefaultStrategy
	}
	if t.BatchSize == 0 {
		t.BatchSize = DefaultBatchSize
	}
	if t.MC == 0 {
		t.MC = DefaultMC
	}
	if t.Draws == 0 {
		t.Draws = DefaultDraws
	}
	if t.Epochs == 0 {
		t.Epochs = DefaultEpochs
	}
	if t.Seed == 0 {
		t.Seed = DefaultSeed
	}
	if t.VocabularyPath == "" {
		t.VocabularyPath = DefaultVocabularyPath
	}
	if t.PriorPath == "" {
		t.PriorPath = DefaultPriorPath
	}
	if t.OutputDir == "" {
		t.OutputDir = DefaultOutputDir
	}
	if t.CheckpointStore == "" {
		t.CheckpointStore = DefaultCheckpointStore
	}
	if t.SampleTopK == 0 {
		t.SampleTopK = DefaultSampleTopK
	}
}

//Personal.AI order the ending
