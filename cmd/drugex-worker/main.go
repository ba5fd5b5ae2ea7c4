// Command drugex-worker consumes training events from Kafka and records runs,
// epochs and samples in PostgreSQL.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/DrugEx/internal/config"
	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DrugEx/internal/interfaces/cli"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: DRUGEX_* environment)")
	migrate := flag.Bool("migrate", true, "apply pending schema migrations on startup")
	fromLatest := flag.Bool("from-latest", false, "start a new consumer group at the end of the topics")
	flag.Parse()

	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting DrugEx worker",
		logging.String("version", version),
		logging.String("commit", commit),
	)
	if err := cli.RunWorker(ctx, cfg, cli.WorkerOptions{Migrate: *migrate, FromLatest: *fromLatest, ConfigPath: *configPath}, logger); err != nil {
		logger.Error("Worker failed", logging.Err(err))
		stop()
		os.Exit(1)
	}
}

//Personal.AI order the ending
