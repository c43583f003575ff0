package exchange

import (
	"context"
	"fmt"

	"github.com/roach88/pointex/internal/model"
)

// Reward modes select the RewardSink implementation.
const (
	RewardModeToken = "token"
	RewardModePoint = "point"
)

// RewardSink performs the actual payout of a settled amount. Idempotency and
// retry behavior of the transfer itself belong to the sink.
type RewardSink interface {
	Settle(ctx context.Context, account model.AccountID, amount model.TokenAmount) error
}

// SinkFunc adapts a function to RewardSink.
type SinkFunc func(ctx context.Context, account model.AccountID, amount model.TokenAmount) error

// Settle implements RewardSink.
func (f SinkFunc) Settle(ctx context.Context, account model.AccountID, amount model.TokenAmount) error {
	return f(ctx, account, amount)
}

// TokenBook credits minted tokens to accounts.
type TokenBook interface {
	CreditTokens(ctx context.Context, account model.AccountID, amount model.TokenAmount) error
}

// PointBook credits points to accounts.
type PointBook interface {
	CreditPoints(ctx context.Context, account model.AccountID, points model.PointAmount) error
}

// TokenSink mints the payout as tokens.
type TokenSink struct {
	Book TokenBook
}

// Settle implements RewardSink.
func (s TokenSink) Settle(ctx context.Context, account model.AccountID, amount model.TokenAmount) error {
	if amount.IsZero() {
		return nil
	}
	return s.Book.CreditTokens(ctx, account, amount)
}

// PointSink pays out in points instead of tokens, one point per token unit.
type PointSink struct {
	Book PointBook
}

// Settle implements RewardSink.
func (s PointSink) Settle(ctx context.Context, account model.AccountID, amount model.TokenAmount) error {
	if amount.IsZero() {
		return nil
	}
	b := amount.Big()
	if !b.IsUint64() {
		return fmt.Errorf("point payout %s exceeds the point range", amount)
	}
	return s.Book.CreditPoints(ctx, account, model.PointAmount(b.Uint64()))
}

// NewRewardSink selects the sink for mode.
func NewRewardSink(mode string, tokens TokenBook, points PointBook) (RewardSink, error) {
	switch mode {
	case RewardModeToken, "":
		if tokens == nil {
			return nil, fmt.Errorf("reward mode %q needs a token book", RewardModeToken)
		}
		return TokenSink{Book: tokens}, nil
	case RewardModePoint:
		if points == nil {
			return nil, fmt.Errorf("reward mode %q needs a point book", RewardModePoint)
		}
		return PointSink{Book: points}, nil
	default:
		return nil, fmt.Errorf("unknown reward mode %q", mode)
	}
}
