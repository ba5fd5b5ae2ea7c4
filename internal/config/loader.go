// Package config provides configuration loading, defaults, and validation for
// DrugEx.
package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all settings.
const envPrefix = "DRUGEX"

// newViper builds a Viper instance with YAML file type, DRUGEX_ env prefix,
// automatic env binding and a "." -> "_" key replacer, so training.batch_size
// resolves to DRUGEX_TRAINING_BATCH_SIZE.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setViperDefaults(v)
	return v
}

// setViperDefaults registers defaults for keys where zero is a legal explicit
// value.  It also makes AutomaticEnv see these keys during Unmarshal.
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("training.epsilon", DefaultEpsilon)
	v.SetDefault("training.baseline", DefaultBaseline)
	v.SetDefault("training.strategy", DefaultStrategy)
	v.SetDefault("training.batch_size", DefaultBatchSize)
	v.SetDefault("training.mc", DefaultMC)
	v.SetDefault("training.draws", DefaultDraws)
	v.SetDefault("training.epochs", DefaultEpochs)
	v.SetDefault("training.seed", DefaultSeed)
	v.SetDefault("backend.threads", DefaultThreads)
	v.SetDefault("database.redis.ttl_jitter", DefaultRedisTTLJitter)
	v.SetDefault("log.level", DefaultLogLevel)
}

// Load reads the YAML file at configPath, merges DRUGEX_* environment
// overrides, applies defaults and validates the result.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config from DRUGEX_* environment variables and
// defaults only.
//
//	DRUGEX_<SECTION>_<FIELD>   e.g.  DRUGEX_TRAINING_EPSILON, DRUGEX_BACKEND_THREADS
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

// LoadOrDefault loads configPath when it is non-empty and falls back to
// LoadFromEnv otherwise.  The CLI uses it so a config file stays optional.
func LoadOrDefault(configPath string) (*Config, error) {
	if configPath == "" {
		return LoadFromEnv()
	}
	return Load(configPath)
}

// unmarshalAndFinalize unmarshals viper state, applies defaults and validates.
func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// Watch monitors configPath and calls onChange with the re-parsed Config after
// every modification.  Invalid edits are skipped.  Only the log level is safe
// to apply to a run in progress; hyperparameters are fixed at startup.
func Watch(configPath string, onChange func(*Config)) error {
	v := newViper()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

//Personal.AI order the ending
