package exchange

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"

	"github.com/roach88/pointex/internal/model"
)

// MemoryStore is an in-process StateStore: one map per kind of state, keyed
// by era. Used by tests and the scenario harness.
//
// Thread-safety: all methods are safe for concurrent use.
type MemoryStore struct {
	mu          sync.RWMutex
	rounds      map[model.Era]model.Round
	markers     map[model.Era]idx.Block
	lastSettled *model.Era
	payouts     []model.Payout
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rounds:  make(map[model.Era]model.Round),
		markers: make(map[model.Era]idx.Block),
	}
}

// Round implements StateStore.
func (s *MemoryStore) Round(_ context.Context, era model.Era) (model.Round, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rounds[era]
	return r.Clone(), ok, nil
}

// RefreshMarker implements StateStore.
func (s *MemoryStore) RefreshMarker(_ context.Context, era model.Era) (idx.Block, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.markers[era]
	return b, ok, nil
}

// LastSettledEra implements StateStore.
func (s *MemoryStore) LastSettledEra(context.Context) (model.Era, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastSettled == nil {
		return 0, false, nil
	}
	return *s.lastSettled, true, nil
}

// Eras lists the eras holding a round, ascending.
func (s *MemoryStore) Eras() []model.Era {
	s.mu.RLock()
	defer s.mu.RUnlock()
	eras := make([]model.Era, 0, len(s.rounds))
	for era := range s.rounds {
		eras = append(eras, era)
	}
	slices.Sort(eras)
	return eras
}

// Commit implements StateStore.
func (s *MemoryStore) Commit(_ context.Context, u *Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range u.Payouts {
		if s.hasPayout(p.Batch, p.Account) {
			return fmt.Errorf("duplicate payout %s/%s", p.Batch, p.Account.Hex())
		}
	}

	for era, r := range u.Rounds {
		s.rounds[era] = r.Clone()
	}
	for era, b := range u.Markers {
		s.markers[era] = b
	}
	if u.LastSettled != nil {
		era := *u.LastSettled
		s.lastSettled = &era
	}
	s.payouts = append(s.payouts, u.Payouts...)

	if u.PruneThrough != nil {
		limit := *u.PruneThrough
		for era := range s.rounds {
			if era <= limit {
				delete(s.rounds, era)
			}
		}
		for era := range s.markers {
			if era <= limit {
				delete(s.markers, era)
			}
		}
		s.payouts = slices.DeleteFunc(s.payouts, func(p model.Payout) bool {
			return p.Era <= limit && p.Delivered
		})
	}
	return nil
}

// Payouts implements StateStore.
func (s *MemoryStore) Payouts(_ context.Context, era model.Era) ([]model.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Payout{}
	for _, p := range s.payouts {
		if p.Era == era {
			out = append(out, p)
		}
	}
	return out, nil
}

// PendingPayouts implements StateStore.
func (s *MemoryStore) PendingPayouts(context.Context) ([]model.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Payout{}
	for _, p := range s.payouts {
		if !p.Delivered {
			out = append(out, p)
		}
	}
	slices.SortStableFunc(out, func(a, b model.Payout) int {
		switch {
		case a.Era < b.Era:
			return -1
		case a.Era > b.Era:
			return 1
		}
		return 0
	})
	return out, nil
}

// MarkDelivered implements StateStore.
func (s *MemoryStore) MarkDelivered(_ context.Context, batch string, account model.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.payouts {
		if s.payouts[i].Batch == batch && s.payouts[i].Account == account {
			s.payouts[i].Delivered = true
			return nil
		}
	}
	return fmt.Errorf("payout %s/%s not found", batch, account.Hex())
}

func (s *MemoryStore) hasPayout(batch string, account model.AccountID) bool {
	return slices.ContainsFunc(s.payouts, func(p model.Payout) bool {
		return p.Batch == batch && p.Account == account
	})
}
