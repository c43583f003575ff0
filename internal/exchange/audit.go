package exchange

import (
	"fmt"

	"github.com/roach88/pointex/internal/model"
)

// Finding is one invariant violation discovered by Audit.
type Finding struct {
	Era     model.Era `json:"era"`
	Message string    `json:"message"`
}

func (f Finding) String() string {
	return fmt.Sprintf("era %d: %s", f.Era, f.Message)
}

// Audit re-checks the invariants of a stored round:
//   - at most maxRewardCount entries, each account once
//   - entries ranked by points, highest first
//   - either no entry or every entry settled
//
// For settled rounds it also checks that proportions close to one, that each
// pay_point matches the entry's points, and that every entry but the last
// took exactly floor(proportion * mint), where mint is the sum of all takes.
func Audit(era model.Era, round model.Round, maxRewardCount uint32) []Finding {
	var findings []Finding
	addf := func(format string, args ...any) {
		findings = append(findings, Finding{Era: era, Message: fmt.Sprintf(format, args...)})
	}

	if len(round) > int(maxRewardCount) {
		addf("%d entries exceed capacity %d", len(round), maxRewardCount)
	}
	seen := make(map[model.AccountID]bool, len(round))
	for _, app := range round {
		if seen[app.Account] {
			addf("account %s appears more than once", app.Account.Hex())
		}
		seen[app.Account] = true
	}
	if !round.IsRanked() {
		addf("entries are not ranked by points")
	}

	settled := 0
	for _, app := range round {
		if app.Settlement != nil {
			settled++
		}
	}
	if settled == 0 {
		return findings
	}
	if settled != len(round) {
		addf("%d of %d entries settled", settled, len(round))
		return findings
	}

	precision := round[0].Settlement.Proportion.Precision
	sumProportion := model.ZeroFraction(precision)
	var mint model.TokenAmount
	for _, app := range round {
		info := app.Settlement
		if info.Proportion.Precision != precision {
			addf("mixed proportion precision for %s", app.Account.Hex())
			return findings
		}
		if info.Proportion.Parts > sumProportion.Denominator()-sumProportion.Parts {
			addf("proportions exceed one at %s", app.Account.Hex())
			return findings
		}
		sumProportion = sumProportion.Add(info.Proportion)
		mint = mint.Add(info.TakeToken)
		if info.PayPoint != app.Points {
			addf("pay_point %d of %s differs from points %d", info.PayPoint, app.Account.Hex(), app.Points)
		}
	}
	if !sumProportion.IsOne() {
		addf("proportions sum to %s, not one", sumProportion)
	}
	for _, app := range round[:len(round)-1] {
		want := app.Settlement.Proportion.MulFloor(mint)
		if want.Cmp(app.Settlement.TakeToken) != 0 {
			addf("%s took %s, expected %s of %s", app.Account.Hex(), app.Settlement.TakeToken, want, mint)
		}
	}
	return findings
}
