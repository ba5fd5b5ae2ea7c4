package cli

import (
	"github.com/turtacn/DrugEx/internal/config"
	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/logging"
)

// watchLogLevel applies log.level edits of the file at configPath to logger
// until the process exits.  An empty path disables watching.
func watchLogLevel(configPath string, logger logging.Logger) error {
	if configPath == "" {
		return nil
	}
	return config.Watch(configPath, func(cfg *config.Config) {
		applyLogLevel(logger, cfg.Log.Level)
	})
}

func applyLogLevel(logger logging.Logger, level string) {
	if logging.SetLevel(logger, level) {
		logger.Info("Log level changed", logging.String("level", level))
	}
}

//Personal.AI order the ending
