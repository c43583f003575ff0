package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/roach88/pointex/internal/exchange"
	"github.com/roach88/pointex/internal/model"
)

// Commit applies u in a single transaction. Pruning runs after the other
// writes, so rounds staged at or below the prune limit do not survive.
//
// A payout whose (batch, account) already exists fails the whole commit.
func (s *Store) Commit(ctx context.Context, u *exchange.Update) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("commit: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	eras := make([]model.Era, 0, len(u.Rounds))
	for era := range u.Rounds {
		eras = append(eras, era)
	}
	slices.Sort(eras)
	for _, era := range eras {
		if err := writeRound(ctx, tx, era, u.Rounds[era]); err != nil {
			return err
		}
	}

	for era, block := range u.Markers {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO refresh_markers (era, block) VALUES (?, ?)
			ON CONFLICT(era) DO UPDATE SET block = excluded.block
		`, int64(era), int64(block))
		if err != nil {
			return fmt.Errorf("write refresh marker %d: %w", era, err)
		}
	}

	if u.LastSettled != nil {
		if err := writeMeta(ctx, tx, metaLastSettledEra, uint64(*u.LastSettled)); err != nil {
			return err
		}
	}

	for i, p := range u.Payouts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO payouts (batch, era, position, account, amount, delivered)
			VALUES (?, ?, ?, ?, ?, ?)
		`, p.Batch, int64(p.Era), i, marshalAccount(p.Account), p.Amount.String(), p.Delivered)
		if err != nil {
			return fmt.Errorf("write payout %s/%s: %w", p.Batch, p.Account.Hex(), err)
		}
	}

	if u.PruneThrough != nil {
		if err := prune(ctx, tx, *u.PruneThrough); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// writeRound replaces era's rows with round.
func writeRound(ctx context.Context, tx *sql.Tx, era model.Era, round model.Round) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM rounds WHERE era = ?`, int64(era)); err != nil {
		return fmt.Errorf("write round %d: %w", era, err)
	}
	for pos, app := range round {
		args := append([]any{int64(era), pos, marshalAccount(app.Account), formatUint(uint64(app.Points))},
			marshalSettlement(app.Settlement)...)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO rounds
			(era, position, account, points, proportion_parts, proportion_precision, pay_point, take_token)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, args...)
		if err != nil {
			return fmt.Errorf("write round %d position %d: %w", era, pos, err)
		}
	}
	return nil
}

// prune drops history at or below limit. Pending payouts survive so a retry
// can still deliver them.
func prune(ctx context.Context, tx *sql.Tx, limit model.Era) error {
	for _, stmt := range []struct{ table, query string }{
		{"rounds", `DELETE FROM rounds WHERE era <= ?`},
		{"refresh_markers", `DELETE FROM refresh_markers WHERE era <= ?`},
		{"payouts", `DELETE FROM payouts WHERE era <= ? AND delivered = 1`},
	} {
		if _, err := tx.ExecContext(ctx, stmt.query, int64(limit)); err != nil {
			return fmt.Errorf("prune %s through era %d: %w", stmt.table, limit, err)
		}
	}
	return nil
}

func writeMeta(ctx context.Context, tx *sql.Tx, key string, value uint64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, formatUint(value))
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// MarkDelivered flags the payout of account in batch as delivered.
func (s *Store) MarkDelivered(ctx context.Context, batch string, account model.AccountID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE payouts SET delivered = 1 WHERE batch = ? AND account = ?
	`, batch, marshalAccount(account))
	if err != nil {
		return fmt.Errorf("mark payout %s/%s: %w", batch, account.Hex(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark payout %s/%s: %w", batch, account.Hex(), err)
	}
	if n == 0 {
		return fmt.Errorf("payout %s/%s not found", batch, account.Hex())
	}
	return nil
}

// SetBlockHeight persists the chain height. Heights never move backwards;
// a lower height is rejected.
func (s *Store) SetBlockHeight(ctx context.Context, height idx.Block) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("set block height: begin tx: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, metaBlockHeight).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("set block height: %w", err)
	default:
		cur, err := parseUint(metaBlockHeight, current)
		if err != nil {
			return err
		}
		if uint64(height) < cur {
			return fmt.Errorf("block height %d is below the current height %d", height, cur)
		}
	}

	if err := writeMeta(ctx, tx, metaBlockHeight, uint64(height)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("set block height: %w", err)
	}
	return nil
}

// SetPoints overwrites account's point balance.
func (s *Store) SetPoints(ctx context.Context, account model.AccountID, points model.PointAmount) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO point_ledger (account, points) VALUES (?, ?)
		ON CONFLICT(account) DO UPDATE SET points = excluded.points
	`, marshalAccount(account), formatUint(uint64(points)))
	if err != nil {
		return fmt.Errorf("set points of %s: %w", account.Hex(), err)
	}
	return nil
}

// CreditPoints adds points to account's balance. Fails without writing if
// the balance would overflow.
func (s *Store) CreditPoints(ctx context.Context, account model.AccountID, points model.PointAmount) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("credit points: begin tx: %w", err)
	}
	defer tx.Rollback()

	current, err := s.totalPoints(ctx, tx, account)
	if err != nil {
		return err
	}
	sum, overflow := math.SafeAdd(uint64(current), uint64(points))
	if overflow {
		return fmt.Errorf("credit %d points to %s: balance overflows", points, account.Hex())
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO point_ledger (account, points) VALUES (?, ?)
		ON CONFLICT(account) DO UPDATE SET points = excluded.points
	`, marshalAccount(account), formatUint(sum))
	if err != nil {
		return fmt.Errorf("credit points to %s: %w", account.Hex(), err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("credit points: %w", err)
	}
	return nil
}

// CreditTokens mints amount into account's token balance.
func (s *Store) CreditTokens(ctx context.Context, account model.AccountID, amount model.TokenAmount) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("credit tokens: begin tx: %w", err)
	}
	defer tx.Rollback()

	current, err := s.tokenBalance(ctx, tx, account)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO token_balances (account, amount) VALUES (?, ?)
		ON CONFLICT(account) DO UPDATE SET amount = excluded.amount
	`, marshalAccount(account), current.Add(amount).String())
	if err != nil {
		return fmt.Errorf("credit tokens to %s: %w", account.Hex(), err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("credit tokens: %w", err)
	}
	return nil
}

// SetChallenged flags or clears a dispute on era.
func (s *Store) SetChallenged(ctx context.Context, era model.Era, challenged bool) error {
	query := `DELETE FROM challenged_eras WHERE era = ?`
	if challenged {
		query = `INSERT INTO challenged_eras (era) VALUES (?) ON CONFLICT(era) DO NOTHING`
	}
	if _, err := s.db.ExecContext(ctx, query, int64(era)); err != nil {
		return fmt.Errorf("set challenge of era %d: %w", era, err)
	}
	return nil
}
