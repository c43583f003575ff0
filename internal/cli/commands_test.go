package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pointex/internal/config"
	"github.com/roach88/pointex/internal/exchange"
	"github.com/roach88/pointex/internal/model"
	"github.com/roach88/pointex/internal/store"
)

const (
	alice = "0x00000000000000000000000000000000000000a1"
	bob   = "0x00000000000000000000000000000000000000b2"
	carol = "0x00000000000000000000000000000000000000c3"
)

// cli runs commands against one database with an isolated environment.
type cli struct {
	t       *testing.T
	db      string
	environ map[string]string
}

func newCLI(t *testing.T) *cli {
	return &cli{t: t, db: filepath.Join(t.TempDir(), "pointex.db"), environ: map[string]string{}}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	buf := &bytes.Buffer{}
	opts := &RootOptions{Environ: c.environ}
	cmd := newRootCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--db", c.db}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, "pointex %v: %s", args, out)
	return out
}

// data runs a JSON command and decodes its payload into v.
func (c *cli) data(v any, args ...string) {
	c.t.Helper()
	out := c.mustRun(append(args, "--format", "json")...)
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(c.t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(c.t, "ok", resp.Status, out)
	require.NoError(c.t, json.Unmarshal(resp.Data, v))
}

func (c *cli) rejected(code string, args ...string) {
	c.t.Helper()
	out, err := c.run(append(args, "--format", "json")...)
	require.Error(c.t, err)
	assert.Equal(c.t, ExitFailure, GetExitCode(err))
	var resp CLIResponse
	require.NoError(c.t, json.Unmarshal([]byte(out), &resp), out)
	assert.Equal(c.t, "error", resp.Status)
	require.NotNil(c.t, resp.Error)
	assert.Equal(c.t, code, resp.Error.Code)
}

func takes(view model.RoundView) []string {
	out := make([]string, len(view.Entries))
	for i, e := range view.Entries {
		out[i] = e.TakeToken
	}
	return out
}

func TestCommands_EndToEnd(t *testing.T) {
	c := newCLI(t)
	c.mustRun("points", "set", alice, "50")
	c.mustRun("points", "set", bob, "30")
	c.mustRun("points", "add", carol, "20")
	assert.Equal(t, "Block 50, era 5\n", c.mustRun("block", "set", "50"))

	var applied ApplyResult
	c.data(&applied, "apply", alice)
	assert.Equal(t, ApplyResult{Era: 5, Account: mustAccount(t, alice), Rank: 1, Points: 50}, applied)
	c.data(&applied, "apply", carol)
	assert.Equal(t, 2, applied.Rank)
	c.data(&applied, "apply", bob)
	assert.Equal(t, 2, applied.Rank)

	c.rejected("DUPLICATE_APPLICATION", "apply", bob)
	c.rejected("ERA_NOT_ENDED", "settle", "5", "100")

	assert.Equal(t, "Block 60, era 6\n", c.mustRun("block", "advance", "10"))

	var settled SettleResult
	c.data(&settled, "settle", "5", "100")
	assert.NotEmpty(t, settled.Batch)
	assert.True(t, settled.Settled)
	assert.Equal(t, "100", settled.Mint)
	assert.Equal(t, []string{"50", "30", "20"}, takes(settled.RoundView))
	assert.Zero(t, settled.Undelivered)

	c.rejected("ALREADY_SETTLED", "settle", "5", "100")

	var state StateResult
	c.data(&state, "state")
	assert.Equal(t, model.Era(6), state.CurrentEra)
	require.NotNil(t, state.LastSettledEra)
	assert.Equal(t, model.Era(5), *state.LastSettledEra)
	assert.Equal(t, "100", state.TokenSupply.String())

	var payouts []model.Payout
	c.data(&payouts, "payouts", "show", "5")
	require.Len(t, payouts, 3)
	for _, p := range payouts {
		assert.True(t, p.Delivered)
		assert.Equal(t, settled.Batch, p.Batch)
	}

	out := c.mustRun("round", "5")
	assert.Contains(t, out, "Era 5 (settled, mint 100)")
	assert.Contains(t, out, "0.500000000  50")
	assert.Regexp(t, `digest [0-9a-f]{64}`, out)

	assert.Equal(t, "1 round(s) audited, no findings\n", c.mustRun("audit"))

	var retry RetryResult
	c.data(&retry, "payouts", "retry")
	assert.Equal(t, RetryResult{}, retry)
}

func mustAccount(t *testing.T, raw string) model.AccountID {
	t.Helper()
	id, err := parseAccount(raw)
	require.NoError(t, err)
	return id
}

func TestCommands_RoundText(t *testing.T) {
	c := newCLI(t)
	c.mustRun("points", "set", alice, "1250000")
	c.mustRun("block", "set", "10")
	c.mustRun("apply", alice)

	out := c.mustRun("round", "1")
	assert.Contains(t, out, "Era 1 (open)")
	assert.Contains(t, out, "1,250,000")
	assert.Contains(t, out, "refreshed at block 10")

	assert.Equal(t, "Era 2 (open)\n  no applications\n", c.mustRun("round", "2"))
}

func TestCommands_RewardList(t *testing.T) {
	c := newCLI(t)
	c.mustRun("points", "set", alice, "3")
	c.mustRun("points", "set", bob, "2")
	c.mustRun("block", "set", "10")
	c.mustRun("apply", alice)
	c.mustRun("apply", bob)

	c.environ["POINTEX_MAX_REWARD_COUNT"] = "1"
	var view model.RoundView
	c.data(&view, "round", "1", "--reward-list")
	require.Len(t, view.Entries, 1)
	assert.Equal(t, uint64(3), view.Entries[0].Points)

	var result RoundResult
	c.data(&result, "round", "1")
	assert.Len(t, result.Entries, 2)
	require.NotNil(t, result.LastRefresh)
	assert.EqualValues(t, 10, *result.LastRefresh)
}

func TestCommands_ArgumentErrors(t *testing.T) {
	c := newCLI(t)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"bad account", []string{"apply", "alice"}, `invalid account "alice"`},
		{"bad era", []string{"round", "five"}, `invalid era "five"`},
		{"bad mint", []string{"settle", "1", "1.5"}, "invalid mint"},
		{"bad points", []string{"points", "set", alice, "lots"}, `invalid points "lots"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.run(tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCommands_BlockHeightIsMonotonic(t *testing.T) {
	c := newCLI(t)
	c.mustRun("block", "set", "30")

	_, err := c.run("block", "set", "20")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "below the current height 30")

	var block BlockResult
	c.data(&block, "block", "show")
	assert.Equal(t, BlockResult{BlockHeight: 30, CurrentEra: 3}, block)
}

func TestCommands_EraLengthFromEnvironment(t *testing.T) {
	c := newCLI(t)
	c.environ["POINTEX_ERA_LENGTH"] = "4"
	assert.Equal(t, "Block 10, era 2\n", c.mustRun("block", "set", "10"))
}

func TestCommands_Challenge(t *testing.T) {
	c := newCLI(t)
	c.mustRun("points", "set", alice, "5")
	c.mustRun("block", "set", "10")
	c.mustRun("apply", alice)
	c.mustRun("block", "set", "20")

	assert.Equal(t, "Era 1 challenged\n", c.mustRun("challenge", "mark", "1"))
	var eras []model.Era
	c.data(&eras, "challenge", "list")
	assert.Equal(t, []model.Era{1}, eras)

	c.rejected("ERA_CHALLENGED", "settle", "1", "10")
	c.rejected("PREVIOUS_ERA_UNSETTLED", "apply", alice)

	assert.Equal(t, "Era 1 cleared\n", c.mustRun("challenge", "clear", "1"))
	assert.Equal(t, "No challenged eras\n", c.mustRun("challenge", "list"))
	c.mustRun("settle", "1", "10")
}

func TestCommands_PointRewardMode(t *testing.T) {
	c := newCLI(t)
	c.environ["POINTEX_REWARD_MODE"] = "point"
	c.mustRun("points", "set", alice, "5")
	c.mustRun("block", "set", "10")
	c.mustRun("apply", alice)
	c.mustRun("block", "set", "20")
	c.mustRun("settle", "1", "7")

	var balances []store.PointBalance
	c.data(&balances, "points", "show", alice)
	require.Len(t, balances, 1)
	assert.Equal(t, model.PointAmount(12), balances[0].Points)
}

func TestCommands_PointOverflow(t *testing.T) {
	c := newCLI(t)
	c.mustRun("points", "set", alice, "18446744073709551615")

	_, err := c.run("points", "add", alice, "1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to update points")
}

func TestCommands_AuditFindings(t *testing.T) {
	c := newCLI(t)
	st, err := store.Open(c.db)
	require.NoError(t, err)
	round := model.Round{
		{Account: mustAccount(t, alice), Points: 1},
		{Account: mustAccount(t, bob), Points: 2},
	}
	require.NoError(t, st.Commit(context.Background(), &exchange.Update{
		Rounds: map[model.Era]model.Round{4: round},
	}))
	require.NoError(t, st.Close())

	out, err := c.run("audit")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E_AUDIT]: audit found 1 problem(s)")
	assert.Contains(t, out, "era 4: entries are not ranked by points")
}

func TestServeCommand(t *testing.T) {
	c := newCLI(t)
	c.mustRun("block", "set", "42")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Database = c.db
	opts := &ServeOptions{RootOptions: &RootOptions{Format: "text", Config: cfg}, Listener: ln}
	cmd := NewServeCommand(opts.RootOptions)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	cmd.SetContext(ctx)
	go func() {
		done <- runServe(opts, cmd)
	}()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + ln.Addr().String() + "/state")
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	defer resp.Body.Close()

	var state struct {
		BlockHeight uint64 `json:"block_height"`
		CurrentEra  uint64 `json:"current_era"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	assert.Equal(t, uint64(42), state.BlockHeight)
	assert.Equal(t, uint64(4), state.CurrentEra)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}
