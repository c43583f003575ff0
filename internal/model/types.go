package model

import (
	"slices"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
)

// Era is a fixed-length window of blocks. Era 0 is the genesis era and never
// carries rewards.
type Era uint64

// String renders the era as a decimal index.
func (e Era) String() string {
	return strconv.FormatUint(uint64(e), 10)
}

// AccountID identifies a participant.
type AccountID = common.Address

// PointAmount is a participant's point balance snapshot.
type PointAmount uint64

// SettlementInfo is the immutable payout record attached to an application
// once its round has been settled.
type SettlementInfo struct {
	Proportion Fraction    `json:"proportion"`
	PayPoint   PointAmount `json:"pay_point"`
	TakeToken  TokenAmount `json:"take_token"`
}

// Application is one ranked entry of a round.
// Settlement is nil while the round is open.
type Application struct {
	Account    AccountID       `json:"account"`
	Points     PointAmount     `json:"points"`
	Settlement *SettlementInfo `json:"settlement,omitempty"`
}

// Round is the ranked application list of one era, highest points first.
type Round []Application

// Clone returns a deep copy of the round. Settlement records are copied so
// that the clone can be mutated without touching the original.
func (r Round) Clone() Round {
	if r == nil {
		return nil
	}
	out := make(Round, len(r))
	for i, app := range r {
		out[i] = app
		if app.Settlement != nil {
			info := *app.Settlement
			out[i].Settlement = &info
		}
	}
	return out
}

// Contains reports whether the account already holds an entry.
func (r Round) Contains(account AccountID) bool {
	return slices.ContainsFunc(r, func(app Application) bool {
		return app.Account == account
	})
}

// Last returns the lowest-ranked entry.
func (r Round) Last() (Application, bool) {
	if len(r) == 0 {
		return Application{}, false
	}
	return r[len(r)-1], true
}

// IsSettled reports whether any entry carries settlement information.
// Settled rounds are frozen.
func (r Round) IsSettled() bool {
	return slices.ContainsFunc(r, func(app Application) bool {
		return app.Settlement != nil
	})
}

// SortDescending orders entries by points, highest first. Entries with equal
// points keep their relative order.
func (r Round) SortDescending() {
	slices.SortStableFunc(r, func(a, b Application) int {
		switch {
		case a.Points > b.Points:
			return -1
		case a.Points < b.Points:
			return 1
		}
		return 0
	})
}

// IsRanked reports whether entries are in non-increasing point order.
func (r Round) IsRanked() bool {
	for i := 1; i < len(r); i++ {
		if r[i].Points > r[i-1].Points {
			return false
		}
	}
	return true
}

// Truncate returns at most n leading entries.
func (r Round) Truncate(n int) Round {
	if len(r) <= n {
		return r
	}
	return r[:n]
}

// TotalPoints sums the points of every entry. The second result is false
// when the sum overflows.
func (r Round) TotalPoints() (PointAmount, bool) {
	var total uint64
	for _, app := range r {
		sum, overflow := math.SafeAdd(total, uint64(app.Points))
		if overflow {
			return PointAmount(^uint64(0)), false
		}
		total = sum
	}
	return PointAmount(total), true
}
