package exchange

import (
	"context"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"

	"github.com/roach88/pointex/internal/model"
)

// PointSource exposes each account's current point total. Values may change
// between calls; Registry.Refresh exists to re-sync snapshots.
type PointSource interface {
	TotalPoints(ctx context.Context, account model.AccountID) (model.PointAmount, error)
}

// StateStore persists rounds, refresh markers, the last settled era and the
// payout journal, keyed by era.
//
// Reads return committed state only. All writes go through Commit, which
// must apply an Update atomically.
type StateStore interface {
	// Round returns the round of era. The bool is false if no round exists.
	Round(ctx context.Context, era model.Era) (model.Round, bool, error)

	// RefreshMarker returns the block at which era was last refreshed.
	RefreshMarker(ctx context.Context, era model.Era) (idx.Block, bool, error)

	// LastSettledEra returns the highest fully settled era.
	LastSettledEra(ctx context.Context) (model.Era, bool, error)

	// Commit applies every write in u, or none of them.
	Commit(ctx context.Context, u *Update) error

	// Payouts lists the payouts recorded for era in rank order.
	Payouts(ctx context.Context, era model.Era) ([]model.Payout, error)

	// PendingPayouts lists undelivered payouts ordered by era, then rank.
	PendingPayouts(ctx context.Context) ([]model.Payout, error)

	// MarkDelivered flags one payout of a batch as delivered.
	MarkDelivered(ctx context.Context, batch string, account model.AccountID) error
}

// Update is the write set of one engine call.
type Update struct {
	Rounds  map[model.Era]model.Round
	Markers map[model.Era]idx.Block

	// LastSettled, when set, replaces the last settled era.
	LastSettled *model.Era

	// Payouts are appended to the journal.
	Payouts []model.Payout

	// PruneThrough, when set, removes rounds, markers and delivered payouts
	// of every era at or below it. Undelivered payouts stay until a retry
	// delivers them. Pruning runs after the other writes.
	PruneThrough *model.Era
}

// IsEmpty reports whether u carries no writes.
func (u *Update) IsEmpty() bool {
	return len(u.Rounds) == 0 &&
		len(u.Markers) == 0 &&
		u.LastSettled == nil &&
		len(u.Payouts) == 0 &&
		u.PruneThrough == nil
}

// ChallengeGate reports whether an era is under dispute. Challenged eras
// cannot be settled until the challenge is cleared.
type ChallengeGate interface {
	IsChallenged(ctx context.Context, era model.Era) (bool, error)
}

// NoChallenges is a ChallengeGate that never reports a challenge.
type NoChallenges struct{}

// IsChallenged implements ChallengeGate.
func (NoChallenges) IsChallenged(context.Context, model.Era) (bool, error) {
	return false, nil
}

// StaticChallenges is a fixed set of challenged eras.
type StaticChallenges map[model.Era]bool

// IsChallenged implements ChallengeGate.
func (s StaticChallenges) IsChallenged(_ context.Context, era model.Era) (bool, error) {
	return s[era], nil
}
