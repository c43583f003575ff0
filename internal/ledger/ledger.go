// Package ledger provides in-memory point and token books.
//
// Points is the PointSource the engine reads and the PointBook a point-only
// reward sink credits; Tokens is the TokenBook a token sink mints into. The
// SQLite store offers the same interfaces for persistent deployments.
package ledger

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/ethereum/go-ethereum/common/math"

	"github.com/roach88/pointex/internal/model"
)

// Points holds per-account point totals.
//
// Thread-safety: all methods are safe for concurrent use.
type Points struct {
	mu       sync.RWMutex
	balances map[model.AccountID]model.PointAmount
}

// NewPoints creates an empty point book.
func NewPoints() *Points {
	return &Points{balances: make(map[model.AccountID]model.PointAmount)}
}

// TotalPoints implements exchange.PointSource. Unknown accounts hold zero.
func (p *Points) TotalPoints(_ context.Context, account model.AccountID) (model.PointAmount, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.balances[account], nil
}

// Set overwrites the total of account.
func (p *Points) Set(account model.AccountID, points model.PointAmount) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balances[account] = points
}

// CreditPoints implements exchange.PointBook.
func (p *Points) CreditPoints(_ context.Context, account model.AccountID, points model.PointAmount) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	sum, overflow := math.SafeAdd(uint64(p.balances[account]), uint64(points))
	if overflow {
		return fmt.Errorf("point balance of %s overflows", account.Hex())
	}
	p.balances[account] = model.PointAmount(sum)
	return nil
}

// Snapshot returns a copy of all balances.
func (p *Points) Snapshot() map[model.AccountID]model.PointAmount {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return maps.Clone(p.balances)
}

// Tokens holds per-account token balances.
//
// Thread-safety: all methods are safe for concurrent use.
type Tokens struct {
	mu       sync.RWMutex
	balances map[model.AccountID]model.TokenAmount
}

// NewTokens creates an empty token book.
func NewTokens() *Tokens {
	return &Tokens{balances: make(map[model.AccountID]model.TokenAmount)}
}

// CreditTokens implements exchange.TokenBook.
func (t *Tokens) CreditTokens(_ context.Context, account model.AccountID, amount model.TokenAmount) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[account] = t.balances[account].Add(amount)
	return nil
}

// Balance returns the token balance of account.
func (t *Tokens) Balance(account model.AccountID) model.TokenAmount {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.balances[account]
}

// Supply returns the sum of all balances.
func (t *Tokens) Supply() model.TokenAmount {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var total model.TokenAmount
	for _, b := range t.balances {
		total = total.Add(b)
	}
	return total
}
