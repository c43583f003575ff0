package exchange

import (
	"fmt"

	"github.com/roach88/pointex/internal/model"
)

// Distribute splits mint across a ranked round and returns a settled copy.
//
// Entries are visited in rank order. Every entry but the last receives
// proportion = points/total (rounded down to the fraction precision) and
// take = floor(proportion * mint). The last entry receives one minus the
// accumulated proportion and mint minus the accumulated payout, so
//
//	Σ take == mint  and  Σ proportion == 1
//
// hold exactly. Changing the visiting order changes which entry absorbs the
// rounding remainder.
//
// Returns a POINT_OVERFLOW error when the point total does not fit in a
// PointAmount. An empty round is rejected with EMPTY_ROUND.
func Distribute(era model.Era, round model.Round, mint model.TokenAmount, precision uint8) (model.Round, error) {
	if len(round) == 0 {
		return nil, newEraError(CodeEmptyRound, era, "no applications to settle")
	}
	total, ok := round.TotalPoints()
	if !ok {
		return nil, newEraError(CodePointOverflow, era, "point total of %d entries overflows", len(round))
	}

	settled := round.Clone()
	sumProportion := model.ZeroFraction(precision)
	var sumPaid model.TokenAmount

	last := len(settled) - 1
	for i := range settled {
		var (
			proportion model.Fraction
			take       model.TokenAmount
		)
		if i == last {
			proportion = model.OneFraction(precision).Sub(sumProportion)
			rest, err := mint.Sub(sumPaid)
			if err != nil {
				return nil, fmt.Errorf("settle era %d: %w", era, err)
			}
			take = rest
		} else {
			proportion = model.FractionFromRational(uint64(settled[i].Points), uint64(total), precision)
			take = proportion.MulFloor(mint)
		}

		settled[i].Settlement = &model.SettlementInfo{
			Proportion: proportion,
			PayPoint:   settled[i].Points,
			TakeToken:  take,
		}
		sumProportion = sumProportion.Add(proportion)
		sumPaid = sumPaid.Add(take)
	}

	if sumPaid.Cmp(mint) != 0 || !sumProportion.IsOne() {
		return nil, fmt.Errorf("settle era %d: distribution does not close (paid %s of %s, proportion %s)",
			era, sumPaid, mint, sumProportion)
	}
	return settled, nil
}
