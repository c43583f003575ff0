package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"

	"github.com/roach88/pointex/internal/model"
)

// Meta keys.
const (
	metaLastSettledEra = "last_settled_era"
	metaBlockHeight    = "block_height"
)

// Round returns era's round in rank order. The second result is false when
// nobody applied to era.
func (s *Store) Round(ctx context.Context, era model.Era) (model.Round, bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT account, points, proportion_parts, proportion_precision, pay_point, take_token
		FROM rounds
		WHERE era = ?
		ORDER BY position ASC
	`, int64(era))
	if err != nil {
		return nil, false, fmt.Errorf("query round %d: %w", era, err)
	}
	defer rows.Close()

	var round model.Round
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, false, fmt.Errorf("round %d: %w", era, err)
		}
		round = append(round, app)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate round %d: %w", era, err)
	}

	if round == nil {
		return nil, false, nil
	}
	return round, true, nil
}

func scanApplication(rows *sql.Rows) (model.Application, error) {
	var (
		account, points string
		cols            settlementColumns
	)
	if err := rows.Scan(&account, &points, &cols.parts, &cols.precision, &cols.payPoint, &cols.takeToken); err != nil {
		return model.Application{}, fmt.Errorf("scan application: %w", err)
	}

	id, err := unmarshalAccount(account)
	if err != nil {
		return model.Application{}, err
	}
	p, err := parseUint("points", points)
	if err != nil {
		return model.Application{}, err
	}
	info, err := cols.unmarshal()
	if err != nil {
		return model.Application{}, fmt.Errorf("application %s: %w", account, err)
	}
	return model.Application{Account: id, Points: model.PointAmount(p), Settlement: info}, nil
}

// Eras lists the eras holding a round, ascending.
func (s *Store) Eras(ctx context.Context) ([]model.Era, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT era FROM rounds ORDER BY era ASC`)
	if err != nil {
		return nil, fmt.Errorf("query eras: %w", err)
	}
	defer rows.Close()

	eras := []model.Era{}
	for rows.Next() {
		var era int64
		if err := rows.Scan(&era); err != nil {
			return nil, fmt.Errorf("scan era: %w", err)
		}
		eras = append(eras, model.Era(era))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate eras: %w", err)
	}
	return eras, nil
}

// RefreshMarker returns the block at which era's round was last refreshed.
func (s *Store) RefreshMarker(ctx context.Context, era model.Era) (idx.Block, bool, error) {
	var block int64
	err := s.db.QueryRowContext(ctx, `SELECT block FROM refresh_markers WHERE era = ?`, int64(era)).Scan(&block)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query refresh marker %d: %w", era, err)
	}
	return idx.Block(block), true, nil
}

// LastSettledEra returns the most recently settled era, if any.
func (s *Store) LastSettledEra(ctx context.Context) (model.Era, bool, error) {
	v, ok, err := s.readMeta(ctx, metaLastSettledEra)
	if err != nil || !ok {
		return 0, false, err
	}
	return model.Era(v), true, nil
}

// BlockHeight returns the persisted chain height, zero for a new database.
func (s *Store) BlockHeight(ctx context.Context) (idx.Block, error) {
	v, _, err := s.readMeta(ctx, metaBlockHeight)
	if err != nil {
		return 0, err
	}
	return idx.Block(v), nil
}

func (s *Store) readMeta(ctx context.Context, key string) (uint64, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query %s: %w", key, err)
	}
	v, err := parseUint(key, value)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

// Payouts lists era's payout journal in rank order.
// Returns an empty slice (not nil) if era has no payouts.
func (s *Store) Payouts(ctx context.Context, era model.Era) ([]model.Payout, error) {
	return s.queryPayouts(ctx, `
		SELECT batch, era, account, amount, delivered
		FROM payouts
		WHERE era = ?
		ORDER BY position ASC
	`, int64(era))
}

// PendingPayouts lists undelivered payouts ordered by era, then rank.
func (s *Store) PendingPayouts(ctx context.Context) ([]model.Payout, error) {
	return s.queryPayouts(ctx, `
		SELECT batch, era, account, amount, delivered
		FROM payouts
		WHERE delivered = 0
		ORDER BY era ASC, position ASC
	`)
}

func (s *Store) queryPayouts(ctx context.Context, query string, args ...any) ([]model.Payout, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query payouts: %w", err)
	}
	defer rows.Close()

	payouts := []model.Payout{}
	for rows.Next() {
		var (
			p               model.Payout
			era             int64
			account, amount string
		)
		if err := rows.Scan(&p.Batch, &era, &account, &amount, &p.Delivered); err != nil {
			return nil, fmt.Errorf("scan payout: %w", err)
		}
		if p.Account, err = unmarshalAccount(account); err != nil {
			return nil, err
		}
		if p.Amount, err = unmarshalToken("amount", amount); err != nil {
			return nil, err
		}
		p.Era = model.Era(era)
		payouts = append(payouts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payouts: %w", err)
	}
	return payouts, nil
}

// TotalPoints returns account's balance in the point ledger.
func (s *Store) TotalPoints(ctx context.Context, account model.AccountID) (model.PointAmount, error) {
	return s.totalPoints(ctx, s.db, account)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) totalPoints(ctx context.Context, q queryRower, account model.AccountID) (model.PointAmount, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT points FROM point_ledger WHERE account = ?`, marshalAccount(account)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query points of %s: %w", account.Hex(), err)
	}
	v, err := parseUint("points", value)
	if err != nil {
		return 0, err
	}
	return model.PointAmount(v), nil
}

// PointBalance is one row of the point ledger.
type PointBalance struct {
	Account model.AccountID   `json:"account"`
	Points  model.PointAmount `json:"points"`
}

// Points lists the point ledger ordered by account.
func (s *Store) Points(ctx context.Context) ([]PointBalance, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT account, points FROM point_ledger ORDER BY account ASC`)
	if err != nil {
		return nil, fmt.Errorf("query point ledger: %w", err)
	}
	defer rows.Close()

	out := []PointBalance{}
	for rows.Next() {
		var account, points string
		if err := rows.Scan(&account, &points); err != nil {
			return nil, fmt.Errorf("scan point balance: %w", err)
		}
		id, err := unmarshalAccount(account)
		if err != nil {
			return nil, err
		}
		v, err := parseUint("points", points)
		if err != nil {
			return nil, err
		}
		out = append(out, PointBalance{Account: id, Points: model.PointAmount(v)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate point ledger: %w", err)
	}
	return out, nil
}

// TokenBalance returns account's minted token balance.
func (s *Store) TokenBalance(ctx context.Context, account model.AccountID) (model.TokenAmount, error) {
	return s.tokenBalance(ctx, s.db, account)
}

func (s *Store) tokenBalance(ctx context.Context, q queryRower, account model.AccountID) (model.TokenAmount, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT amount FROM token_balances WHERE account = ?`, marshalAccount(account)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TokenAmount{}, nil
	}
	if err != nil {
		return model.TokenAmount{}, fmt.Errorf("query tokens of %s: %w", account.Hex(), err)
	}
	return unmarshalToken("amount", value)
}

// TokenSupply returns the sum of all token balances.
func (s *Store) TokenSupply(ctx context.Context) (model.TokenAmount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT amount FROM token_balances ORDER BY account ASC`)
	if err != nil {
		return model.TokenAmount{}, fmt.Errorf("query token balances: %w", err)
	}
	defer rows.Close()

	var supply model.TokenAmount
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return model.TokenAmount{}, fmt.Errorf("scan token balance: %w", err)
		}
		v, err := unmarshalToken("amount", value)
		if err != nil {
			return model.TokenAmount{}, err
		}
		supply = supply.Add(v)
	}
	if err := rows.Err(); err != nil {
		return model.TokenAmount{}, fmt.Errorf("iterate token balances: %w", err)
	}
	return supply, nil
}

// IsChallenged reports whether era is flagged as under dispute.
func (s *Store) IsChallenged(ctx context.Context, era model.Era) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM challenged_eras WHERE era = ?`, int64(era)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query challenge of era %d: %w", era, err)
	}
	return n > 0, nil
}

// ChallengedEras lists the eras flagged as under dispute, ascending.
func (s *Store) ChallengedEras(ctx context.Context) ([]model.Era, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT era FROM challenged_eras ORDER BY era ASC`)
	if err != nil {
		return nil, fmt.Errorf("query challenged eras: %w", err)
	}
	defer rows.Close()

	eras := []model.Era{}
	for rows.Next() {
		var era int64
		if err := rows.Scan(&era); err != nil {
			return nil, fmt.Errorf("scan challenged era: %w", err)
		}
		eras = append(eras, model.Era(era))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate challenged eras: %w", err)
	}
	return eras, nil
}
