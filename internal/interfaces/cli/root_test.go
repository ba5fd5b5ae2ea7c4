package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/logging"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestNewRootCommand_Structure(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "drugex", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)

	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"voc", "env", "pretrain", "train", "sample", "migrate", "version"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestNewRootCommand_GlobalFlags(t *testing.T) {
	cmd := NewRootCommand()
	pf := cmd.PersistentFlags()

	for _, name := range []string{"config", "log-level", "output", "verbose", "timeout"} {
		assert.NotNil(t, pf.Lookup(name), "missing flag %q", name)
	}
	assert.Equal(t, "c", pf.Lookup("config").Shorthand)
	assert.Equal(t, "o", pf.Lookup("output").Shorthand)
	assert.Equal(t, "text", pf.Lookup("output").DefValue)
}

func TestTrainCommand_Flags(t *testing.T) {
	cmd := newTrainCmd()
	for _, name := range []string{"strategy", "epsilon", "baseline", "batch-size", "mc", "draws", "epochs", "seed", "prior", "agent", "env", "checkpoint-store"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing flag %q", name)
	}
}

func TestVersionCommand_JSON(t *testing.T) {
	out, err := execute(t, "-o", "json", "version")
	require.NoError(t, err)

	var info versionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")
}

func TestVersionCommand_Text(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "VERSION:")
	assert.Contains(t, out, Version)
}

func TestPersistentPreRun_RejectsUnknownOutput(t *testing.T) {
	_, err := execute(t, "-o", "xml", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xml")
}

func TestPersistentPreRun_MissingConfigFile(t *testing.T) {
	_, err := execute(t, "-c", t.TempDir()+"/absent.yaml", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config initialization failed")
}

func TestInitConfig_LogLevel(t *testing.T) {
	cfg, err := initConfig(&RootOptions{LogLevel: "DEBUG"})
	require.NoError(t, err)
	assert.Equal(t, logging.LevelDebug, cfg.Log.Level)

	cfg, err = initConfig(&RootOptions{Verbose: true})
	require.NoError(t, err)
	assert.Equal(t, logging.LevelDebug, cfg.Log.Level)

	_, err = initConfig(&RootOptions{LogLevel: "loud"})
	assert.Error(t, err)
}

func TestGetCLIContext_Missing(t *testing.T) {
	cmd := &cobra.Command{}
	_, err := GetCLIContext(cmd)
	assert.Error(t, err)

	cmd.SetContext(context.Background())
	_, err = GetCLIContext(cmd)
	assert.Error(t, err)
}

func TestWithTimeout(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	ctx, cancel := withTimeout(cmd, &CLIContext{})
	_, hasDeadline := ctx.Deadline()
	assert.False(t, hasDeadline)
	cancel()

	ctx, cancel = withTimeout(cmd, &CLIContext{Timeout: 1e9})
	defer cancel()
	_, hasDeadline = ctx.Deadline()
	assert.True(t, hasDeadline)
}

//Personal.AI order the ending
