package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/pointex/internal/exchange"
	"github.com/roach88/pointex/internal/model"
	"github.com/roach88/pointex/internal/store"
)

// AssertionContext is the final state assertions run against.
type AssertionContext struct {
	Ctx    context.Context
	Store  *store.Store
	Params exchange.Params

	// Rounds is the snapshot taken after the flow.
	Rounds []RoundSnapshot

	// Resolve maps a scenario account name to its address.
	Resolve func(name string) model.AccountID
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion %s failed: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

func evaluate(a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertRound:
		return assertRound(a, actx)
	case AssertPayouts:
		return assertPayouts(a, actx)
	case AssertBalance:
		return assertBalance(a, actx)
	case AssertLastSettled:
		return assertLastSettled(a, actx)
	case AssertAudit:
		return assertAudit(actx)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertRound compares the era's round entry by entry, in order.
// An absent round matches an empty entry list.
func assertRound(a Assertion, actx *AssertionContext) error {
	var entries []EntrySnapshot
	for _, r := range actx.Rounds {
		if r.Era == *a.Era {
			entries = r.Entries
			break
		}
	}

	want := describeExpected(a.Entries)
	got := describeActual(entries, a.Entries)
	if want != got {
		return &AssertionError{
			Type:     fmt.Sprintf("round(era=%d)", *a.Era),
			Expected: want,
			Actual:   got,
		}
	}
	return nil
}

func describeExpected(entries []EntryExpect) string {
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = fmt.Sprintf("%s:%d", e.Account, e.Points)
		if e.Take != "" {
			parts[i] += "->" + e.Take
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// describeActual renders entries the way describeExpected does, showing a
// take only where the expectation at the same position names one.
func describeActual(entries []EntrySnapshot, expected []EntryExpect) string {
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = fmt.Sprintf("%s:%d", e.Account, e.Points)
		if i < len(expected) && expected[i].Take != "" {
			take := e.Take
			if take == "" {
				take = "unsettled"
			}
			parts[i] += "->" + take
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func assertPayouts(a Assertion, actx *AssertionContext) error {
	payouts, err := actx.Store.Payouts(actx.Ctx, model.Era(*a.Era))
	if err != nil {
		return err
	}

	kind := fmt.Sprintf("payouts(era=%d)", *a.Era)
	if a.Count != nil && len(payouts) != *a.Count {
		return &AssertionError{
			Type:     kind,
			Expected: fmt.Sprintf("%d payouts", *a.Count),
			Actual:   fmt.Sprintf("%d payouts", len(payouts)),
		}
	}
	if a.Delivered != nil {
		for _, p := range payouts {
			if p.Delivered != *a.Delivered {
				return &AssertionError{
					Type:     kind,
					Expected: fmt.Sprintf("delivered=%t", *a.Delivered),
					Actual:   fmt.Sprintf("delivered=%t for %s", p.Delivered, p.Account.Hex()),
				}
			}
		}
	}
	return nil
}

func assertBalance(a Assertion, actx *AssertionContext) error {
	account := actx.Resolve(a.Account)
	kind := fmt.Sprintf("balance(%s)", a.Account)

	if a.Points != nil {
		points, err := actx.Store.TotalPoints(actx.Ctx, account)
		if err != nil {
			return err
		}
		if uint64(points) != *a.Points {
			return &AssertionError{
				Type:     kind,
				Expected: fmt.Sprintf("%d points", *a.Points),
				Actual:   fmt.Sprintf("%d points", points),
			}
		}
	}
	if a.Tokens != "" {
		want, err := model.ParseTokenAmount(a.Tokens)
		if err != nil {
			return err
		}
		got, err := actx.Store.TokenBalance(actx.Ctx, account)
		if err != nil {
			return err
		}
		if got.Cmp(want) != 0 {
			return &AssertionError{
				Type:     kind,
				Expected: want.String() + " tokens",
				Actual:   got.String() + " tokens",
			}
		}
	}
	return nil
}

func assertLastSettled(a Assertion, actx *AssertionContext) error {
	last, ok, err := actx.Store.LastSettledEra(actx.Ctx)
	if err != nil {
		return err
	}

	got := "none"
	if ok {
		got = last.String()
	}
	want := "none"
	if a.Era != nil {
		want = formatUint(*a.Era)
	}
	if got != want {
		return &AssertionError{Type: "last_settled", Expected: want, Actual: got}
	}
	return nil
}

func assertAudit(actx *AssertionContext) error {
	eras, err := actx.Store.Eras(actx.Ctx)
	if err != nil {
		return err
	}

	var findings []string
	for _, era := range eras {
		round, _, err := actx.Store.Round(actx.Ctx, era)
		if err != nil {
			return err
		}
		for _, f := range exchange.Audit(era, round, actx.Params.MaxRewardCount) {
			findings = append(findings, f.String())
		}
	}
	if len(findings) > 0 {
		return &AssertionError{
			Type:     "audit",
			Expected: "no findings",
			Actual:   strings.Join(findings, "; "),
		}
	}
	return nil
}
