package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "pointex", cmd.Use)
	assert.Contains(t, cmd.Long, "once per era")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"apply"},
		{"settle"},
		{"round"},
		{"state"},
		{"points", "set"},
		{"points", "add"},
		{"points", "show"},
		{"block", "show"},
		{"block", "set"},
		{"block", "advance"},
		{"challenge", "mark"},
		{"challenge", "clear"},
		{"challenge", "list"},
		{"payouts", "show"},
		{"payouts", "retry"},
		{"audit"},
		{"serve"},
		{"test"},
	}

	for _, path := range commands {
		name := path[len(path)-1]
		t.Run(filepath.Join(path...), func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, name, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	dbFlag := cmd.PersistentFlags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, "", dbFlag.DefValue)
}

func TestRoundCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	roundCmd, _, err := cmd.Find([]string{"round"})
	require.NoError(t, err)

	flag := roundCmd.Flags().Lookup("reward-list")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestServeCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	serveCmd, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)

	flag := serveCmd.Flags().Lookup("addr")
	require.NotNil(t, flag)
	assert.Equal(t, "", flag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	opts := &RootOptions{Environ: map[string]string{}}
	cmd := newRootCommand(opts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"state", "--format", "yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "yaml"`)
}

func TestConfigResolution(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "pointex.cue")
	require.NoError(t, os.WriteFile(configPath, []byte(`
era_length: 20
database: "from-file.db"
`), 0644))

	opts := &RootOptions{Environ: map[string]string{"POINTEX_MAX_REWARD_COUNT": "7"}}
	cmd := newRootCommand(opts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", configPath, "--db", filepath.Join(dir, "flag.db"), "block", "show"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, uint64(20), opts.Config.EraLength)
	assert.Equal(t, uint32(7), opts.Config.MaxRewardCount)
	assert.Equal(t, filepath.Join(dir, "flag.db"), opts.Config.Database)
}

func TestConfigErrorsAreCommandErrors(t *testing.T) {
	opts := &RootOptions{Environ: map[string]string{"POINTEX_REWARD_MODE": "shares"}}
	cmd := newRootCommand(opts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", filepath.Join(t.TempDir(), "x.db"), "state"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}
