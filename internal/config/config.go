// Package config defines the configuration structures for DrugEx.  No I/O or
// parsing lives here, only plain data types and validation.
package config

import (
	"fmt"
	"time"

	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/logging"
)

// Strategy names accepted by training.strategy.
const (
	StrategyPG      = "pg"
	StrategyRollout = "rollout"
)

// Checkpoint store kinds accepted by training.checkpoint_store.
const (
	CheckpointStoreFile  = "file"
	CheckpointStoreMinIO = "minio"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds the monitoring HTTP server tunables.
type ServerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// TrainingConfig holds the reinforcement-learning hyperparameters and the run
// inputs.  MC and Draws are distinct knobs: MC is the rollout repetition count
// of the per-token strategy, Draws the sampling multiplicity of the
// whole-sequence strategy.
type TrainingConfig struct {
	Strategy  string  `mapstructure:"strategy"`
	Epsilon   float64 `mapstructure:"epsilon"`
	Baseline  float64 `mapstructure:"baseline"`
	BatchSize int     `mapstructure:"batch_size"`
	MC        int     `mapstructure:"mc"`
	Draws     int     `mapstructure:"draws"`
	Epochs    int     `mapstructure:"epochs"`
	Seed      uint64  `mapstructure:"seed"`

	VocabularyPath  string `mapstructure:"vocabulary_path"`
	PriorPath       string `mapstructure:"prior_path"`
	AgentPath       string `mapstructure:"agent_path"`
	ExplorePath     string `mapstructure:"explore_path"`
	OutputDir       string `mapstructure:"output_dir"`
	CheckpointStore string `mapstructure:"checkpoint_store"`
	SampleTopK      int    `mapstructure:"sample_top_k"`
}

// GeneratorConfig holds the reference generator's shape and optimizer settings.
type GeneratorConfig struct {
	EmbeddingDim int     `mapstructure:"embedding_dim"`
	Decay        float64 `mapstructure:"decay"`
	MaxLen       int     `mapstructure:"max_len"`
	LearningRate float64 `mapstructure:"learning_rate"`
	Beta1        float64 `mapstructure:"beta1"`
	Beta2        float64 `mapstructure:"beta2"`
	InitScale    float64 `mapstructure:"init_scale"`
}

// EnvironmentConfig holds the reward predictor settings.
type EnvironmentConfig struct {
	ModelPath       string        `mapstructure:"model_path"`
	K               int           `mapstructure:"k"`
	Radius          int           `mapstructure:"radius"`
	Bits            int           `mapstructure:"bits"`
	ActiveThreshold float64       `mapstructure:"active_threshold"`
	Folds           int           `mapstructure:"folds"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
}

// BackendConfig selects the compute backend.  It is handed to the training
// driver at startup; nothing below the driver reads process-wide state.
type BackendConfig struct {
	Device  string `mapstructure:"device"`
	Threads int    `mapstructure:"threads"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationPath   string        `mapstructure:"migration_path"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
	LockTTL      time.Duration `mapstructure:"lock_ttl"`
	// LockWait is how long a trainer polls for a run lock held elsewhere.
	// Zero fails immediately.
	LockWait time.Duration `mapstructure:"lock_wait"`
	// TTLJitter spreads cache expirations by +/- this fraction of the TTL.
	TTLJitter float64 `mapstructure:"ttl_jitter"`
}

// DatabaseConfig groups the stores.
type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// KafkaConfig holds Kafka producer and consumer parameters.
type KafkaConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	Brokers         []string `mapstructure:"brokers"`
	GroupID         string   `mapstructure:"group_id"`
	EpochTopic      string   `mapstructure:"epoch_topic"`
	RunTopic        string   `mapstructure:"run_topic"`
	TimeoutMS       int      `mapstructure:"timeout_ms"`
	ProducerRetries int      `mapstructure:"producer_retries"`
	MaxRetries      int      `mapstructure:"max_retries"`
}

// MessagingConfig groups message brokers.
type MessagingConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
}

// MinIOConfig holds object-storage parameters for checkpoints and models.
type MinIOConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	AccessKey   string `mapstructure:"access_key"`
	SecretKey   string `mapstructure:"secret_key"`
	UseSSL      bool   `mapstructure:"use_ssl"`
	Region      string `mapstructure:"region"`
	ModelBucket string `mapstructure:"model_bucket"`
}

// StorageConfig groups object stores.
type StorageConfig struct {
	MinIO MinIOConfig `mapstructure:"minio"`
}

// PrometheusConfig controls metric registration.
type PrometheusConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// MonitoringConfig groups observability settings.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         logging.LogConfig `mapstructure:"log"`
	Training    TrainingConfig    `mapstructure:"training"`
	Generator   GeneratorConfig   `mapstructure:"generator"`
	Environment EnvironmentConfig `mapstructure:"environment"`
	Backend     BackendConfig     `mapstructure:"backend"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Messaging   MessagingConfig   `mapstructure:"messaging"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of a defaulted Config and returns the
// first problem found.  Infrastructure sections are only checked when enabled.
func (c *Config) Validate() error {
	if err := c.Training.Validate(); err != nil {
		return err
	}

	g := c.Generator
	if g.EmbeddingDim < 1 {
		return fmt.Errorf("config: generator.embedding_dim must be >= 1, got %d", g.EmbeddingDim)
	}
	if g.Decay < 0 || g.Decay >= 1 {
		return fmt.Errorf("config: generator.decay %v is out of range [0, 1)", g.Decay)
	}
	if g.MaxLen < 2 {
		return fmt.Errorf("config: generator.max_len must be >= 2, got %d", g.MaxLen)
	}
	if g.LearningRate <= 0 {
		return fmt.Errorf("config: generator.learning_rate must be > 0, got %v", g.LearningRate)
	}

	e := c.Environment
	if e.K < 1 {
		return fmt.Errorf("config: environment.k must be >= 1, got %d", e.K)
	}
	if e.Bits < 8 {
		return fmt.Errorf("config: environment.bits must be >= 8, got %d", e.Bits)
	}
	if e.Folds < 2 {
		return fmt.Errorf("config: environment.folds must be >= 2, got %d", e.Folds)
	}

	switch c.Backend.Device {
	case "cpu":
	default:
		return fmt.Errorf("config: backend.device %q is not supported; expected cpu", c.Backend.Device)
	}
	if c.Backend.Threads < 1 {
		return fmt.Errorf("config: backend.threads must be >= 1, got %d", c.Backend.Threads)
	}

	if c.Server.Enabled && (c.Server.Port < 1 || c.Server.Port > 65535) {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}

	if pg := c.Database.Postgres; pg.Enabled {
		if pg.Host == "" {
			return fmt.Errorf("config: database.postgres.host is required")
		}
		if pg.User == "" {
			return fmt.Errorf("config: database.postgres.user is required")
		}
		if pg.DBName == "" {
			return fmt.Errorf("config: database.postgres.db_name is required")
		}
	}
	if r := c.Database.Redis; r.Enabled && r.Addr == "" {
		return fmt.Errorf("config: database.redis.addr is required")
	}
	if c.Database.Redis.LockWait < 0 {
		return fmt.Errorf("config: database.redis.lock_wait must be non-negative, got %s", c.Database.Redis.LockWait)
	}
	if j := c.Database.Redis.TTLJitter; j < 0 || j >= 1 {
		return fmt.Errorf("config: database.redis.ttl_jitter must be in [0, 1), got %g", j)
	}
	if k := c.Messaging.Kafka; k.Enabled {
		if len(k.Brokers) == 0 {
			return fmt.Errorf("config: messaging.kafka.brokers must contain at least one broker address")
		}
		if k.EpochTopic == "" {
			return fmt.Errorf("config: messaging.kafka.epoch_topic is required")
		}
	}
	if m := c.Storage.MinIO; m.Enabled && m.Endpoint == "" {
		return fmt.Errorf("config: storage.minio.endpoint is required")
	}
	if c.Training.CheckpointStore == CheckpointStoreMinIO && !c.Storage.MinIO.Enabled {
		return fmt.Errorf("config: training.checkpoint_store=minio requires storage.minio.enabled")
	}

	switch c.Log.Level {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}

// Validate checks the hyperparameters alone.  The CLI calls it after applying
// flag overrides.
func (t TrainingConfig) Validate() error {
	switch t.Strategy {
	case StrategyPG, StrategyRollout:
	default:
		return fmt.Errorf("config: training.strategy %q is invalid; expected pg|rollout", t.Strategy)
	}
	if t.Epsilon < 0 || t.Epsilon > 1 {
		return fmt.Errorf("config: training.epsilon %v is out of range [0, 1]", t.Epsilon)
	}
	if t.BatchSize < 1 {
		return fmt.Errorf("config: training.batch_size must be >= 1, got %d", t.BatchSize)
	}
	if t.MC < 1 {
		return fmt.Errorf("config: training.mc must be >= 1, got %d", t.MC)
	}
	if t.Draws < 1 {
		return fmt.Errorf("config: training.draws must be >= 1, got %d", t.Draws)
	}
	if t.Epochs < 1 {
		return fmt.Errorf("config: training.epochs must be >= 1, got %d", t.Epochs)
	}
	switch t.CheckpointStore {
	case CheckpointStoreFile, CheckpointStoreMinIO:
	default:
		return fmt.Errorf("config: training.checkpoint_store %q is invalid; expected file|minio", t.CheckpointStore)
	}
	return nil
}

//Personal.AI order the ending
