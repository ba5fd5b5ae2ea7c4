package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/DrugEx/internal/application/training"
	"github.com/turtacn/DrugEx/internal/config"
	"github.com/turtacn/DrugEx/internal/domain/policy"
	"github.com/turtacn/DrugEx/internal/domain/run"
	"github.com/turtacn/DrugEx/internal/domain/vocabulary"
	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DrugEx/internal/intelligence/environ"
	httpserver "github.com/turtacn/DrugEx/internal/interfaces/http"
	"github.com/turtacn/DrugEx/internal/interfaces/http/handlers"
	"github.com/turtacn/DrugEx/internal/interfaces/http/middleware"
	"github.com/turtacn/DrugEx/pkg/errors"
)

// runSummary is what train prints when a run ends.
type runSummary struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Strategy  string     `json:"strategy"`
	Status    run.Status `json:"status"`
	Epochs    int        `json:"epochs"`
	BestScore float64    `json:"best_score"`
	BestEpoch int        `json:"best_epoch"`
	Duration  string     `json:"duration"`
	Error     string     `json:"error,omitempty"`
}

func newRunSummary(r *run.Run) runSummary {
	s := runSummary{
		ID:        r.ID,
		Name:      r.Name,
		Strategy:  r.Strategy,
		Status:    r.Status,
		Epochs:    r.Epochs,
		BestScore: r.BestScore,
		BestEpoch: r.BestEpoch,
		Error:     r.Error,
	}
	if r.FinishedAt != nil {
		s.Duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
	}
	return s
}

func (s runSummary) TableHeaders() []string {
	return []string{"ID", "NAME", "STRATEGY", "STATUS", "EPOCHS", "BEST_SCORE", "BEST_EPOCH", "DURATION"}
}

func (s runSummary) TableRows() [][]string {
	return [][]string{{
		s.ID, s.Name, s.Strategy, string(s.Status), strconv.Itoa(s.Epochs),
		formatFloat(s.BestScore), strconv.Itoa(s.BestEpoch), s.Duration,
	}}
}

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fine-tune the agent against the environment with policy gradients",
		Long: "Starts from the prior (or --agent), samples batches, scores them with the\n" +
			"environment and updates the agent with the selected strategy:\n" +
			"  pg       whole-sequence REINFORCE\n" +
			"  rollout  Monte-Carlo per-token rewards\n" +
			"The agent is checkpointed whenever the mean batch score improves.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if err := applyTrainFlags(cmd, cliCtx.Config); err != nil {
				return err
			}
			if err := watchLogLevel(cliCtx.ConfigPath, cliCtx.Logger); err != nil {
				cliCtx.Logger.Warn("Config watch disabled", logging.Err(err))
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			r, err := runTrain(ctx, cliCtx.Config, cliCtx.Logger)
			if r == nil {
				return err
			}
			if perr := PrintResult(cmd, newRunSummary(r)); perr != nil {
				return perr
			}
			if errors.IsCode(err, errors.ErrCodeTrainingInterrupted) {
				return nil
			}
			return err
		},
	}

	f := cmd.Flags()
	f.String("strategy", "", "training strategy: pg|rollout")
	f.Float64("epsilon", 0, "probability of sampling a step from the prior")
	f.Float64("baseline", 0, "reward baseline subtracted before the update")
	f.Int("batch-size", 0, "molecules per step")
	f.Int("mc", 0, "rollout repetitions per position (rollout)")
	f.Int("draws", 0, "exploration draws averaged per sampled step (pg)")
	f.Int("epochs", 0, "training steps")
	f.Uint64("seed", 0, "random seed")
	f.String("voc", "", "vocabulary path")
	f.String("prior", "", "prior generator checkpoint")
	f.String("agent", "", "agent checkpoint to resume from (default: a copy of the prior)")
	f.String("explore", "", "exploration network checkpoint used with --epsilon (default: the prior)")
	f.String("env", "", "environment model path")
	f.String("out", "", "checkpoint directory for the file store")
	f.String("checkpoint-store", "", "checkpoint store: file|minio")
	f.Int("sample-top-k", 0, "best molecules recorded per epoch")
	return cmd
}

// applyTrainFlags copies explicitly set flags over the loaded config.
func applyTrainFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	t := &cfg.Training
	var err error
	set := func(name string, apply func()) {
		if err == nil && f.Changed(name) {
			apply()
		}
	}
	set("strategy", func() { t.Strategy, err = f.GetString("strategy") })
	set("epsilon", func() { t.Epsilon, err = f.GetFloat64("epsilon") })
	set("baseline", func() { t.Baseline, err = f.GetFloat64("baseline") })
	set("batch-size", func() { t.BatchSize, err = f.GetInt("batch-size") })
	set("mc", func() { t.MC, err = f.GetInt("mc") })
	set("draws", func() { t.Draws, err = f.GetInt("draws") })
	set("epochs", func() { t.Epochs, err = f.GetInt("epochs") })
	set("seed", func() { t.Seed, err = f.GetUint64("seed") })
	set("voc", func() { t.VocabularyPath, err = f.GetString("voc") })
	set("prior", func() { t.PriorPath, err = f.GetString("prior") })
	set("agent", func() { t.AgentPath, err = f.GetString("agent") })
	set("explore", func() { t.ExplorePath, err = f.GetString("explore") })
	set("out", func() { t.OutputDir, err = f.GetString("out") })
	set("checkpoint-store", func() { t.CheckpointStore, err = f.GetString("checkpoint-store") })
	set("sample-top-k", func() { t.SampleTopK, err = f.GetInt("sample-top-k") })
	set("env", func() { cfg.Environment.ModelPath, err = f.GetString("env") })
	if err != nil {
		return err
	}
	if err := t.Validate(); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid training flags")
	}
	return nil
}

// runTrain wires every collaborator of a run and drives it to the end.  The
// returned run is nil only when the run never started.
func runTrain(ctx context.Context, cfg *config.Config, logger logging.Logger) (*run.Run, error) {
	t := cfg.Training

	voc, err := vocabulary.Load(t.VocabularyPath, cfg.Generator.MaxLen)
	if err != nil {
		return nil, err
	}
	_, agent, explore, err := loadNetworks(t, voc, logger)
	if err != nil {
		return nil, err
	}

	knn, err := environ.Load(cfg.Environment.ModelPath, logger)
	if err != nil {
		return nil, err
	}

	inf, err := OpenInfra(ctx, cfg, EnabledInfra(cfg), logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := inf.Close(); cerr != nil {
			logger.Warn("Failed to close backends", logging.Err(cerr))
		}
	}()

	var env policy.Environment = knn
	if inf.Cache != nil {
		env = environ.NewCached(env, inf.Cache, cfg.Environment.CacheTTL, logger)
	}
	if inf.Training != nil {
		env = environ.NewInstrumented(env, inf.Training)
	}

	strategy, err := buildStrategy(t, vocabulary.NewSequenceChecker(voc), logger)
	if err != nil {
		return nil, err
	}
	store, err := buildCheckpointStore(cfg, inf, logger)
	if err != nil {
		return nil, err
	}

	params := trainingParams(t)
	opts := []training.Option{
		training.WithMonitors(buildMonitors(cfg, inf, logger)...),
		training.WithCheckpointStore(store),
	}
	if inf.Locks != nil {
		opts = append(opts, training.WithLock(inf.Locks.NewMutex("run:"+training.RunName(params),
			runLockOptions(cfg.Database.Redis)...)))
	}

	driver, err := training.NewDriver(training.Config{
		Params:     params,
		Epochs:     t.Epochs,
		Backend:    training.Backend{Device: cfg.Backend.Device, Threads: cfg.Backend.Threads},
		SampleTopK: t.SampleTopK,
	}, strategy, env, agent, explore, logger, opts...)
	if err != nil {
		return nil, err
	}

	if !cfg.Server.Enabled {
		return driver.Run(ctx)
	}

	srvCtx, stopServer := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(srvCtx)
	srv := httpserver.NewServer(cfg.Server, NewMonitoringHandler(cfg, inf, logger), logger)
	g.Go(func() error { return srv.Run(gctx) })

	r, runErr := driver.Run(ctx)
	stopServer()
	if err := g.Wait(); err != nil {
		logger.Warn("Monitoring server stopped with error", logging.Err(err))
	}
	return r, runErr
}

// NewMonitoringHandler builds the probe, metrics and run routes served
// while a process trains or projects events.
func NewMonitoringHandler(cfg *config.Config, inf *Infra, logger logging.Logger) http.Handler {
	rc := httpserver.RouterConfig{
		HealthHandler:     handlers.NewHealthHandler(Version, inf.HealthCheckers()...),
		LoggingMiddleware: middleware.NewLoggingMiddleware(logger, middleware.DefaultLoggingConfig()),
		MetricsPath:       cfg.Monitoring.Prometheus.Path,
	}
	if inf.Metrics != nil {
		rc.MetricsHandler = inf.Metrics.Handler()
	}
	if inf.Runs != nil {
		var cache handlers.RunCache
		if inf.Cache != nil {
			cache = inf.Cache
		}
		rc.RunHandler = handlers.NewRunHandler(inf.Runs, inf.SampleRepository(), cache, logger)
	}
	return httpserver.NewRouter(rc)
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

//Personal.AI order the ending
