package exchange

import (
	"context"
	"fmt"
	"maps"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"

	"github.com/roach88/pointex/internal/model"
)

// Txn stages the writes of a single engine call on top of a StateStore.
// Reads see staged writes first. Nothing reaches the store until Commit.
//
// A Txn is used by one goroutine and discarded after Commit.
type Txn struct {
	store  StateStore
	update Update
}

// NewTxn starts a write set over store.
func NewTxn(store StateStore) *Txn {
	return &Txn{
		store: store,
		update: Update{
			Rounds:  make(map[model.Era]model.Round),
			Markers: make(map[model.Era]idx.Block),
		},
	}
}

// Round returns a copy of era's round, staged or committed.
func (t *Txn) Round(ctx context.Context, era model.Era) (model.Round, bool, error) {
	if r, ok := t.update.Rounds[era]; ok {
		return r.Clone(), true, nil
	}
	r, ok, err := t.store.Round(ctx, era)
	if err != nil {
		return nil, false, fmt.Errorf("load round %d: %w", era, err)
	}
	return r.Clone(), ok, nil
}

// PutRound stages a round. The round is copied.
func (t *Txn) PutRound(era model.Era, r model.Round) {
	t.update.Rounds[era] = r.Clone()
}

// RefreshMarker returns era's refresh marker, staged or committed.
func (t *Txn) RefreshMarker(ctx context.Context, era model.Era) (idx.Block, bool, error) {
	if b, ok := t.update.Markers[era]; ok {
		return b, true, nil
	}
	b, ok, err := t.store.RefreshMarker(ctx, era)
	if err != nil {
		return 0, false, fmt.Errorf("load refresh marker %d: %w", era, err)
	}
	return b, ok, nil
}

// PutRefreshMarker stages a refresh marker.
func (t *Txn) PutRefreshMarker(era model.Era, block idx.Block) {
	t.update.Markers[era] = block
}

// LastSettledEra returns the last settled era, staged or committed.
func (t *Txn) LastSettledEra(ctx context.Context) (model.Era, bool, error) {
	if t.update.LastSettled != nil {
		return *t.update.LastSettled, true, nil
	}
	era, ok, err := t.store.LastSettledEra(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("load last settled era: %w", err)
	}
	return era, ok, nil
}

// SetLastSettledEra stages the last settled era.
func (t *Txn) SetLastSettledEra(era model.Era) {
	t.update.LastSettled = &era
}

// AddPayouts stages payout journal entries.
func (t *Txn) AddPayouts(p ...model.Payout) {
	t.update.Payouts = append(t.update.Payouts, p...)
}

// PruneThrough stages removal of every era at or below era.
func (t *Txn) PruneThrough(era model.Era) {
	t.update.PruneThrough = &era
}

// Staged returns a copy of the staged write set.
func (t *Txn) Staged() *Update {
	u := t.update
	u.Rounds = maps.Clone(t.update.Rounds)
	u.Markers = maps.Clone(t.update.Markers)
	return &u
}

// Commit hands the staged writes to the store. A Txn without writes commits
// nothing.
func (t *Txn) Commit(ctx context.Context) error {
	if t.update.IsEmpty() {
		return nil
	}
	if err := t.store.Commit(ctx, &t.update); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
