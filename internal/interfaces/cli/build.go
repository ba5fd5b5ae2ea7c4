package cli

import (
	"math/rand/v2"
	"path/filepath"
	"time"

	"github.com/turtacn/DrugEx/internal/application/training"
	"github.com/turtacn/DrugEx/internal/config"
	"github.com/turtacn/DrugEx/internal/domain/policy"
	"github.com/turtacn/DrugEx/internal/domain/vocabulary"
	"github.com/turtacn/DrugEx/internal/infrastructure/database/redis"
	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DrugEx/internal/intelligence/generator"
	"github.com/turtacn/DrugEx/pkg/errors"
)

// Random streams derived from one seed.  Every consumer owns its own stream
// so adding a consumer never shifts the draws of another.
const (
	streamAgent uint64 = iota + 1
	streamPrior
	streamFolds
	streamPretrain
	streamSample
	streamExplore
)

// lockPollInterval is the slowest a trainer re-checks a busy run lock.
const lockPollInterval = time.Second

func newRNG(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream))
}

func generatorConfig(g config.GeneratorConfig) generator.Config {
	return generator.Config{
		EmbeddingDim: g.EmbeddingDim,
		Decay:        g.Decay,
		LearningRate: g.LearningRate,
		Beta1:        g.Beta1,
		Beta2:        g.Beta2,
		InitScale:    g.InitScale,
	}
}

// loadNetworks loads the prior, the agent and the exploration net.  The agent
// defaults to a copy of the prior and the exploration net to the prior itself.
// explore is nil when epsilon is zero.
func loadNetworks(t config.TrainingConfig, voc *vocabulary.Vocabulary, logger logging.Logger) (prior, agent *generator.Model, explore policy.Generator, err error) {
	prior, err = generator.Load(t.PriorPath, voc, newRNG(t.Seed, streamPrior), logger)
	if err != nil {
		return nil, nil, nil, err
	}
	if t.AgentPath != "" {
		agent, err = generator.Load(t.AgentPath, voc, newRNG(t.Seed, streamAgent), logger)
		if err != nil {
			return nil, nil, nil, err
		}
	} else {
		agent = prior.Clone(newRNG(t.Seed, streamAgent))
	}
	if t.Epsilon <= 0 {
		return prior, agent, nil, nil
	}
	if t.ExplorePath == "" {
		return prior, agent, prior, nil
	}
	ex, err := generator.Load(t.ExplorePath, voc, newRNG(t.Seed, streamExplore), logger)
	if err != nil {
		return nil, nil, nil, err
	}
	logger.Info("Loaded exploration network", logging.String("path", t.ExplorePath))
	return prior, agent, ex, nil
}

// lockRetry spreads a lock wait over polls no slower than lockPollInterval.
func lockRetry(wait time.Duration) (count int, delay time.Duration) {
	if wait <= 0 {
		return 0, lockPollInterval
	}
	delay = min(wait, lockPollInterval)
	return int(wait / delay), delay
}

// runLockOptions configures the run lock: a watchdog keeps it alive for the
// whole run and lock_wait bounds how long a second trainer queues for it.
func runLockOptions(rc config.RedisConfig) []redis.LockOption {
	count, delay := lockRetry(rc.LockWait)
	return []redis.LockOption{
		redis.WithLockTTL(rc.LockTTL),
		redis.WithRetryCount(count),
		redis.WithRetryDelay(delay),
		redis.WithWatchdog(true),
	}
}

func trainingParams(t config.TrainingConfig) training.Params {
	return training.Params{
		Strategy:  t.Strategy,
		Epsilon:   t.Epsilon,
		Baseline:  t.Baseline,
		BatchSize: t.BatchSize,
		MC:        t.MC,
		Draws:     t.Draws,
		Seed:      t.Seed,
	}
}

// buildStrategy maps training.strategy to a policy step.
func buildStrategy(t config.TrainingConfig, checker policy.Checker, logger logging.Logger) (policy.Strategy, error) {
	switch t.Strategy {
	case config.StrategyPG:
		return policy.NewPG(policy.PGConfig{
			BatchSize: t.BatchSize,
			Epsilon:   t.Epsilon,
			Draws:     t.Draws,
			Baseline:  t.Baseline,
		}, checker, logger)
	case config.StrategyRollout:
		return policy.NewRollout(policy.RolloutConfig{
			BatchSize: t.BatchSize,
			Epsilon:   t.Epsilon,
			Repeats:   t.MC,
			Baseline:  t.Baseline,
		}, checker, logger)
	default:
		return nil, errors.Newf(errors.ErrCodeConfigInvalid, "unknown strategy %q", t.Strategy)
	}
}

// buildMonitors always logs.  With Kafka the run is recorded by the worker
// through events; otherwise it is written to Postgres directly when open.
func buildMonitors(cfg *config.Config, inf *Infra, logger logging.Logger) []training.Monitor {
	monitors := []training.Monitor{training.NewLogMonitor(logger)}
	if inf.Training != nil {
		monitors = append(monitors, training.NewMetricsMonitor(inf.Training))
	}

	switch {
	case inf.Producer != nil:
		k := cfg.Messaging.Kafka
		var recorder training.EventRecorder
		if inf.Training != nil {
			recorder = inf.Training
		}
		monitors = append(monitors, training.NewEventMonitor(inf.Producer, k.EpochTopic, k.RunTopic, recorder))
	case inf.Runs != nil:
		monitors = append(monitors, training.NewRecordMonitor(inf.Runs))
		if samples := inf.SampleRepository(); samples != nil {
			monitors = append(monitors, training.NewSampleMonitor(samples, logger))
		}
	}
	return monitors
}

func buildCheckpointStore(cfg *config.Config, inf *Infra, logger logging.Logger) (training.CheckpointStore, error) {
	switch cfg.Training.CheckpointStore {
	case config.CheckpointStoreMinIO:
		if inf.Objects == nil {
			return nil, errors.New(errors.ErrCodeConfigInvalid, "checkpoint store minio requires storage.minio.enabled")
		}
		return training.NewObjectCheckpointStore(inf.Objects, logger), nil
	case config.CheckpointStoreFile, "":
		return training.NewFileCheckpointStore(filepath.Clean(cfg.Training.OutputDir), logger), nil
	default:
		return nil, errors.Newf(errors.ErrCodeConfigInvalid, "unknown checkpoint store %q", cfg.Training.CheckpointStore)
	}
}

//Personal.AI order the ending
