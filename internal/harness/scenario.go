package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pointex/internal/config"
	"github.com/roach88/pointex/internal/exchange"
	"github.com/roach88/pointex/internal/model"
)

// Scenario defines an exchange scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Params overrides the default engine configuration.
	Params *Params `yaml:"params,omitempty"`

	// Setup steps run before the flow and are not traced. They must succeed.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow contains the traced steps.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Params overrides configuration fields. Absent fields keep the defaults.
type Params struct {
	EraLength           *uint64 `yaml:"era_length,omitempty"`
	MaxRewardCount      *uint32 `yaml:"max_reward_count,omitempty"`
	HistoryDepth        *uint32 `yaml:"history_depth,omitempty"`
	ProportionPrecision *uint8  `yaml:"proportion_precision,omitempty"`
	RewardMode          *string `yaml:"reward_mode,omitempty"`
	ResortOnRefresh     *bool   `yaml:"resort_on_refresh,omitempty"`
}

// Config applies p to the default configuration.
func (p *Params) Config() config.Config {
	cfg := config.Default()
	if p == nil {
		return cfg
	}
	if p.EraLength != nil {
		cfg.EraLength = *p.EraLength
	}
	if p.MaxRewardCount != nil {
		cfg.MaxRewardCount = *p.MaxRewardCount
	}
	if p.HistoryDepth != nil {
		cfg.HistoryDepth = *p.HistoryDepth
	}
	if p.ProportionPrecision != nil {
		cfg.ProportionPrecision = *p.ProportionPrecision
	}
	if p.RewardMode != nil {
		cfg.RewardMode = *p.RewardMode
	}
	if p.ResortOnRefresh != nil {
		cfg.ResortOnRefresh = *p.ResortOnRefresh
	}
	return cfg
}

// Step is one scenario action. Exactly one action field is set.
type Step struct {
	Block     *uint64           `yaml:"block,omitempty"`
	Advance   *uint64           `yaml:"advance,omitempty"`
	Points    map[string]uint64 `yaml:"points,omitempty"`
	Apply     string            `yaml:"apply,omitempty"`
	Settle    *SettleStep       `yaml:"settle,omitempty"`
	Challenge *uint64           `yaml:"challenge,omitempty"`
	Clear     *uint64           `yaml:"clear,omitempty"`
	Retry     bool              `yaml:"retry,omitempty"`

	// ExpectError is the exchange error code the step must fail with.
	// Only apply and settle steps may carry one.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// SettleStep settles Era with Mint tokens.
type SettleStep struct {
	Era  uint64 `yaml:"era"`
	Mint string `yaml:"mint"`
}

// Step action names, as they appear in traces.
const (
	ActionBlock     = "block"
	ActionAdvance   = "advance"
	ActionPoints    = "points"
	ActionApply     = "apply"
	ActionSettle    = "settle"
	ActionChallenge = "challenge"
	ActionClear     = "clear"
	ActionRetry     = "retry"
)

// Action returns the name of the step's action, or "" when the step sets
// none or several.
func (s Step) Action() string {
	var actions []string
	if s.Block != nil {
		actions = append(actions, ActionBlock)
	}
	if s.Advance != nil {
		actions = append(actions, ActionAdvance)
	}
	if s.Points != nil {
		actions = append(actions, ActionPoints)
	}
	if s.Apply != "" {
		actions = append(actions, ActionApply)
	}
	if s.Settle != nil {
		actions = append(actions, ActionSettle)
	}
	if s.Challenge != nil {
		actions = append(actions, ActionChallenge)
	}
	if s.Clear != nil {
		actions = append(actions, ActionClear)
	}
	if s.Retry {
		actions = append(actions, ActionRetry)
	}
	if len(actions) != 1 {
		return ""
	}
	return actions[0]
}

// Assertion validates final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "round": the era's round matches Entries exactly, in order
	// - "payouts": the era's payout journal has Count entries
	// - "balance": Account holds Points and/or Tokens
	// - "last_settled": the last settled era is Era
	// - "audit": every stored round passes the invariant audit
	Type string `yaml:"type"`

	Era     *uint64 `yaml:"era,omitempty"`
	Account string  `yaml:"account,omitempty"`

	// Entries is the expected round (used by round).
	Entries []EntryExpect `yaml:"entries,omitempty"`

	// Count is the expected number of payouts (used by payouts).
	Count *int `yaml:"count,omitempty"`

	// Delivered requires every payout to be delivered, or none (used by payouts).
	Delivered *bool `yaml:"delivered,omitempty"`

	// Points and Tokens are the expected balances (used by balance).
	Points *uint64 `yaml:"points,omitempty"`
	Tokens string  `yaml:"tokens,omitempty"`
}

// EntryExpect is one expected round entry. Take is only checked when set.
type EntryExpect struct {
	Account string `yaml:"account"`
	Points  uint64 `yaml:"points"`
	Take    string `yaml:"take,omitempty"`
}

// Assertion type constants.
const (
	AssertRound       = "round"
	AssertPayouts     = "payouts"
	AssertBalance     = "balance"
	AssertLastSettled = "last_settled"
	AssertAudit       = "audit"
)

var knownCodes = []exchange.ErrorCode{
	exchange.CodeInvalidEra,
	exchange.CodePreviousEraUnsettled,
	exchange.CodeInsufficientPoints,
	exchange.CodeDuplicateApplication,
	exchange.CodeEraNotEnded,
	exchange.CodeEmptyRound,
	exchange.CodeAlreadySettled,
	exchange.CodeEraChallenged,
	exchange.CodePointOverflow,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if len(s.Flow) == 0 {
		return errors.New("flow must have at least one step")
	}
	if err := s.Params.Config().Validate(); err != nil {
		return fmt.Errorf("params: %w", err)
	}

	for i, step := range s.Setup {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		if step.ExpectError != "" {
			return fmt.Errorf("setup[%d]: setup steps cannot expect errors", i)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	action := step.Action()
	if action == "" {
		return errors.New("step must set exactly one action")
	}

	if step.ExpectError != "" {
		if action != ActionApply && action != ActionSettle {
			return fmt.Errorf("expect_error is only valid on apply and settle, not %s", action)
		}
		if !slices.Contains(knownCodes, exchange.ErrorCode(step.ExpectError)) {
			return fmt.Errorf("unknown error code %q", step.ExpectError)
		}
	}

	if action == ActionSettle {
		if _, err := model.ParseTokenAmount(step.Settle.Mint); err != nil {
			return fmt.Errorf("settle mint: %w", err)
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertRound:
		if a.Era == nil {
			return errors.New("era is required for round")
		}
	case AssertPayouts:
		if a.Era == nil {
			return errors.New("era is required for payouts")
		}
		if a.Count == nil && a.Delivered == nil {
			return errors.New("count or delivered is required for payouts")
		}
	case AssertBalance:
		if a.Account == "" {
			return errors.New("account is required for balance")
		}
		if a.Points == nil && a.Tokens == "" {
			return errors.New("points or tokens is required for balance")
		}
	case AssertLastSettled, AssertAudit:
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
