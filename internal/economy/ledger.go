package economy

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// LedgerGateway implements Gateway on the coin-wallet ledger. A user's
// balance is SUM(dr) - SUM(cr) over completed rows; debits append a cr
// row, credits a dr row, so the ledger stays append-only.
type LedgerGateway struct {
	db *pgxpool.Pool
}

func NewLedgerGateway(db *pgxpool.Pool) *LedgerGateway {
	return &LedgerGateway{db: db}
}

func (g *LedgerGateway) ResolveGiftCost(ctx context.Context, giftId string) (int64, error) {
	var cost decimal.Decimal

	err := g.db.QueryRow(ctx, `
        SELECT cost
        FROM gifts
        WHERE gift_id = $1 AND status = 'active'
    `, giftId).Scan(&cost)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrGiftNotFound
		}
		return 0, fmt.Errorf("failed to resolve gift cost: %w", err)
	}

	return cost.IntPart(), nil
}

// Debit appends the cr row only when the current balance covers the
// amount. The conditional insert runs as one statement, so two
// concurrent debits cannot both spend the same coins.
func (g *LedgerGateway) Debit(ctx context.Context, userId int64, amount int64) error {
	amt := decimal.NewFromInt(amount)

	tag, err := g.db.Exec(ctx, `
        INSERT INTO balances (user_id, dr, cr, status, note)
        SELECT $1, 0, $2, 'completed', 'game-debit'
        WHERE (
            SELECT COALESCE(SUM(dr), 0) - COALESCE(SUM(cr), 0)
            FROM balances
            WHERE user_id = $1 AND status = 'completed'
        ) >= $2
    `, userId, amt)

	if err != nil {
		return fmt.Errorf("failed to debit user %d: %w", userId, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientBalance
	}

	return nil
}

func (g *LedgerGateway) Credit(ctx context.Context, userId int64, amount int64) error {
	amt := decimal.NewFromInt(amount)

	_, err := g.db.Exec(ctx, `
        INSERT INTO balances (user_id, dr, cr, status, note)
        VALUES ($1, $2, 0, 'completed', 'game-reward')
    `, userId, amt)

	if err != nil {
		return fmt.Errorf("failed to credit user %d: %w", userId, err)
	}

	return nil
}

// GetBalance reports the user's current balance in whole coins.
func (g *LedgerGateway) GetBalance(ctx context.Context, userId int64) (int64, error) {
	var totalDr, totalCr decimal.Decimal

	err := g.db.QueryRow(ctx, `
        SELECT
            COALESCE(SUM(dr), 0),
            COALESCE(SUM(cr), 0)
        FROM balances
        WHERE user_id = $1 AND status = 'completed'
    `, userId).Scan(&totalDr, &totalCr)

	if err != nil {
		return 0, err
	}

	return totalDr.Sub(totalCr).IntPart(), nil
}
