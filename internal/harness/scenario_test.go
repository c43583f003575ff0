package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	scenarioPath := filepath.Join(dir, "test.yaml")

	content := `
name: test_scenario
description: "Test scenario for validation"
params:
  era_length: 5
  reward_mode: point
setup:
  - points: {alice: 10}
flow:
  - block: 5
  - apply: alice
  - settle: {era: 1, mint: "3"}
    expect_error: ERA_NOT_ENDED
assertions:
  - type: last_settled
`
	require.NoError(t, os.WriteFile(scenarioPath, []byte(content), 0644))

	scenario, err := LoadScenario(scenarioPath)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	assert.Len(t, scenario.Setup, 1)
	assert.Len(t, scenario.Flow, 3)
	assert.Len(t, scenario.Assertions, 1)
	assert.Equal(t, ActionBlock, scenario.Flow[0].Action())
	assert.Equal(t, "alice", scenario.Flow[1].Apply)
	assert.Equal(t, "ERA_NOT_ENDED", scenario.Flow[2].ExpectError)

	cfg := scenario.Params.Config()
	assert.Equal(t, uint64(5), cfg.EraLength)
	assert.Equal(t, "point", cfg.RewardMode)
	assert.Equal(t, uint32(3), cfg.MaxRewardCount)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_Testdata(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			_, err := LoadScenario(path)
			assert.NoError(t, err)
		})
	}
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown field",
			content: "name: x\nflow:\n  - apply: alice\nassertion: []\n",
			wantErr: "field assertion not found",
		},
		{
			name:    "missing name",
			content: "flow:\n  - apply: alice\n",
			wantErr: "name is required",
		},
		{
			name:    "empty flow",
			content: "name: x\n",
			wantErr: "flow must have at least one step",
		},
		{
			name:    "two actions in one step",
			content: "name: x\nflow:\n  - apply: alice\n    block: 3\n",
			wantErr: "flow[0]: step must set exactly one action",
		},
		{
			name:    "no action",
			content: "name: x\nflow:\n  - expect_error: EMPTY_ROUND\n",
			wantErr: "flow[0]: step must set exactly one action",
		},
		{
			name:    "expect_error on block",
			content: "name: x\nflow:\n  - block: 3\n    expect_error: EMPTY_ROUND\n",
			wantErr: "expect_error is only valid on apply and settle, not block",
		},
		{
			name:    "unknown error code",
			content: "name: x\nflow:\n  - apply: alice\n    expect_error: NOPE\n",
			wantErr: `unknown error code "NOPE"`,
		},
		{
			name:    "setup expects error",
			content: "name: x\nsetup:\n  - apply: alice\n    expect_error: EMPTY_ROUND\nflow:\n  - block: 1\n",
			wantErr: "setup[0]: setup steps cannot expect errors",
		},
		{
			name:    "bad mint",
			content: "name: x\nflow:\n  - settle: {era: 1, mint: \"-4\"}\n",
			wantErr: "flow[0]: settle mint",
		},
		{
			name:    "bad params",
			content: "name: x\nparams:\n  max_reward_count: 0\nflow:\n  - block: 1\n",
			wantErr: "params:",
		},
		{
			name:    "unknown assertion",
			content: "name: x\nflow:\n  - block: 1\nassertions:\n  - type: trace_contains\n",
			wantErr: `unknown assertion type "trace_contains"`,
		},
		{
			name:    "round without era",
			content: "name: x\nflow:\n  - block: 1\nassertions:\n  - type: round\n",
			wantErr: "era is required for round",
		},
		{
			name:    "balance without amounts",
			content: "name: x\nflow:\n  - block: 1\nassertions:\n  - type: balance\n    account: alice\n",
			wantErr: "points or tokens is required for balance",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
