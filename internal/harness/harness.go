package harness

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/pointex/internal/exchange"
	"github.com/roach88/pointex/internal/model"
	"github.com/roach88/pointex/internal/store"
)

// Harness is the test execution engine.
// It runs scenarios with a manual clock and sequential batch ids.
type Harness struct {
	store  *store.Store
	engine *exchange.Engine
	clock  *exchange.ManualClock
	names  map[model.AccountID]string
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database and engine
// 2. Execute setup steps, which must all succeed
// 3. Execute flow steps, recording the trace and checking expect_error
// 4. Snapshot the stored rounds and evaluate assertions
//
// A returned error means the scenario could not run at all; step and
// assertion mismatches are reported through Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	cfg := scenario.Params.Config()

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	sink, err := exchange.NewRewardSink(cfg.RewardMode, st, st)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		store:  st,
		clock:  exchange.NewManualClock(0),
		names:  make(map[model.AccountID]string),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	h.engine, err = exchange.New(st, h.clock, st, sink, cfg.Params(),
		exchange.WithLogger(h.logger),
		exchange.WithChallengeGate(st),
		exchange.WithBatchIDGenerator(&sequentialBatches{}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Setup {
		event, err := h.execute(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("setup[%d]: %w", i, err)
		}
		if event.Outcome != OutcomeOK {
			return nil, fmt.Errorf("setup[%d]: %s rejected with %s", i, event.Action, event.Outcome)
		}
	}

	for i, step := range scenario.Flow {
		event, err := h.execute(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("flow[%d]: %w", i, err)
		}
		event.Step = i + 1
		result.AddTrace(event)

		want := step.ExpectError
		if want == "" {
			want = OutcomeOK
		}
		if event.Outcome != want {
			result.AddError(fmt.Sprintf("step %d (%s): expected %s, got %s", event.Step, event.Action, want, event.Outcome))
		}
	}

	result.Rounds, err = h.snapshotRounds(ctx)
	if err != nil {
		return nil, err
	}

	actx := &AssertionContext{
		Ctx:     ctx,
		Store:   st,
		Params:  cfg.Params(),
		Rounds:  result.Rounds,
		Resolve: h.account,
	}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// execute runs one step. Exchange rejections become the event outcome; any
// other failure aborts the scenario.
func (h *Harness) execute(ctx context.Context, step Step) (TraceEvent, error) {
	event := TraceEvent{Action: step.Action(), Outcome: OutcomeOK}

	switch event.Action {
	case ActionBlock:
		h.clock.Set(idx.Block(*step.Block))
		event.Args = map[string]string{"height": formatUint(*step.Block)}
		event.Result = map[string]string{"era": h.engine.Clock().CurrentEra().String()}

	case ActionAdvance:
		height := h.clock.Advance(*step.Advance)
		event.Args = map[string]string{"blocks": formatUint(*step.Advance)}
		event.Result = map[string]string{
			"height": formatUint(uint64(height)),
			"era":    h.engine.Clock().CurrentEra().String(),
		}

	case ActionPoints:
		event.Args = make(map[string]string, len(step.Points))
		for _, name := range slices.Sorted(maps.Keys(step.Points)) {
			points := step.Points[name]
			if err := h.store.SetPoints(ctx, h.account(name), model.PointAmount(points)); err != nil {
				return event, err
			}
			event.Args[name] = formatUint(points)
		}

	case ActionApply:
		event.Args = map[string]string{"account": step.Apply}
		era, err := h.engine.Apply(ctx, h.account(step.Apply))
		if err != nil {
			return h.reject(event, err)
		}
		event.Result = map[string]string{"era": era.String()}

	case ActionSettle:
		event.Args = map[string]string{
			"era":  formatUint(step.Settle.Era),
			"mint": step.Settle.Mint,
		}
		mint, err := model.ParseTokenAmount(step.Settle.Mint)
		if err != nil {
			return event, err
		}
		s, err := h.engine.Settle(ctx, model.Era(step.Settle.Era), mint)
		if err != nil {
			var de *exchange.DeliveryError
			if s == nil || !errors.As(err, &de) {
				return h.reject(event, err)
			}
		}
		event.Result = map[string]string{
			"batch":   s.Batch,
			"entries": strconv.Itoa(len(s.Round)),
		}

	case ActionChallenge, ActionClear:
		era := step.Challenge
		if era == nil {
			era = step.Clear
		}
		event.Args = map[string]string{"era": formatUint(*era)}
		if err := h.store.SetChallenged(ctx, model.Era(*era), step.Challenge != nil); err != nil {
			return event, err
		}

	case ActionRetry:
		n, err := h.engine.DeliverPending(ctx)
		var de *exchange.DeliveryError
		if err != nil && !errors.As(err, &de) {
			return event, err
		}
		event.Result = map[string]string{"delivered": strconv.Itoa(n)}

	default:
		return event, errors.New("step must set exactly one action")
	}

	return event, nil
}

func (h *Harness) reject(event TraceEvent, err error) (TraceEvent, error) {
	code := exchange.CodeOf(err)
	if code == "" {
		return event, err
	}
	event.Outcome = string(code)
	return event, nil
}

// account resolves a scenario account name. Hex addresses are taken as-is;
// any other name maps to the address holding its bytes.
func (h *Harness) account(name string) model.AccountID {
	var id model.AccountID
	if isHexAddress(name) {
		id = common.HexToAddress(name)
	} else {
		id = common.BytesToAddress([]byte(name))
	}
	if _, ok := h.names[id]; !ok {
		h.names[id] = name
	}
	return id
}

func isHexAddress(s string) bool {
	if !strings.HasPrefix(s, "0x") || len(s) != 2+2*common.AddressLength {
		return false
	}
	_, err := hex.DecodeString(s[2:])
	return err == nil
}

func (h *Harness) name(id model.AccountID) string {
	if name, ok := h.names[id]; ok {
		return name
	}
	return id.Hex()
}

// snapshotRounds reads every stored round, oldest era first.
func (h *Harness) snapshotRounds(ctx context.Context) ([]RoundSnapshot, error) {
	eras, err := h.store.Eras(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list eras: %w", err)
	}

	snapshots := make([]RoundSnapshot, 0, len(eras))
	for _, era := range eras {
		round, _, err := h.store.Round(ctx, era)
		if err != nil {
			return nil, fmt.Errorf("failed to read round %d: %w", era, err)
		}
		snap := RoundSnapshot{
			Era:     uint64(era),
			Settled: round.IsSettled(),
			Entries: make([]EntrySnapshot, len(round)),
		}
		for i, app := range round {
			entry := EntrySnapshot{
				Account: h.name(app.Account),
				Points:  uint64(app.Points),
			}
			if app.Settlement != nil {
				entry.Proportion = app.Settlement.Proportion.String()
				entry.Take = app.Settlement.TakeToken.String()
			}
			snap.Entries[i] = entry
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}

// sequentialBatches names payout batches batch-1, batch-2, ...
type sequentialBatches struct {
	mu sync.Mutex
	n  int
}

func (g *sequentialBatches) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return "batch-" + strconv.Itoa(g.n)
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}
