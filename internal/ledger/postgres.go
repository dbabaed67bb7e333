package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresLedger keeps one crypto_balances row per (user, asset). The table
// carries CHECK (balance >= 0) and references the assets catalog; row locks
// taken by the conditional UPDATE and the upsert serialize concurrent fills on
// the same row.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// Balance returns the stored balance or zero when the user never held asset.
func (l *PostgresLedger) Balance(ctx context.Context, userID, asset string) (decimal.Decimal, error) {
	return balanceOf(ctx, l.db, userID, asset)
}

// Balances lists every asset row held by userID.
func (l *PostgresLedger) Balances(ctx context.Context, userID string) ([]AssetBalance, error) {
	rows, err := l.db.Query(ctx, `SELECT asset_id, balance::text FROM crypto_balances
        WHERE user_id = $1 ORDER BY asset_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AssetBalance
	for rows.Next() {
		var asset, raw string
		if err := rows.Scan(&asset, &raw); err != nil {
			return nil, err
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s balance: %w", asset, err)
		}
		out = append(out, AssetBalance{UserID: userID, Asset: asset, Balance: amount})
	}
	return out, rows.Err()
}

// ApplyFill debits and credits both legs inside one transaction. If the debit
// would go negative nothing is written and an *InsufficientBalanceError is returned.
func (l *PostgresLedger) ApplyFill(ctx context.Context, fill Fill) (FillResult, error) {
	if err := fill.Validate(); err != nil {
		return FillResult{}, err
	}
	debitAsset, debit, creditAsset, credit := fill.Legs()

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return FillResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var debited, credited decimal.Decimal
	debitLeg := func() (err error) {
		debited, err = debitRow(ctx, tx, fill.UserID, debitAsset, debit)
		return err
	}
	creditLeg := func() (err error) {
		// The order already executed, so a market new to the catalog joins it.
		if _, err = tx.Exec(ctx, `INSERT INTO assets (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, creditAsset); err != nil {
			return err
		}
		credited, err = upsertCredit(ctx, tx, fill.UserID, creditAsset, credit)
		return err
	}
	// Rows are always locked in asset_id order, so a buy and a sell on the
	// same market for one user cannot wait on each other.
	legs := []func() error{debitLeg, creditLeg}
	if creditAsset < debitAsset {
		legs[0], legs[1] = creditLeg, debitLeg
	}
	for _, leg := range legs {
		if err := leg(); err != nil {
			return FillResult{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return FillResult{}, err
	}

	return FillResult{
		Debited:  AssetBalance{UserID: fill.UserID, Asset: debitAsset, Balance: debited},
		Credited: AssetBalance{UserID: fill.UserID, Asset: creditAsset, Balance: credited},
	}, nil
}

// Credit adds amount to a balance, creating the row when absent.
func (l *PostgresLedger) Credit(ctx context.Context, userID, asset string, amount decimal.Decimal) (AssetBalance, error) {
	if userID == "" || asset == "" || !amount.IsPositive() {
		return AssetBalance{}, fmt.Errorf("%w: credit needs a user, an asset and a positive amount", ErrInvalidFill)
	}
	balance, err := upsertCredit(ctx, l.db, userID, asset, amount)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.ConstraintName == assetForeignKey {
		return AssetBalance{}, fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	if err != nil {
		return AssetBalance{}, err
	}
	return AssetBalance{UserID: userID, Asset: asset, Balance: balance}, nil
}

const assetForeignKey = "crypto_balances_asset_id_fkey"

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func debitRow(ctx context.Context, tx pgx.Tx, userID, asset string, amount decimal.Decimal) (decimal.Decimal, error) {
	const query = `
        UPDATE crypto_balances
        SET balance = balance - $3::numeric, updated_at = now()
        WHERE user_id = $1 AND asset_id = $2 AND balance >= $3::numeric
        RETURNING balance::text`
	var raw string
	err := tx.QueryRow(ctx, query, userID, asset, amount.String()).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		available, balErr := balanceOf(ctx, tx, userID, asset)
		if balErr != nil {
			return decimal.Zero, balErr
		}
		return decimal.Zero, &InsufficientBalanceError{Asset: asset, Needed: amount, Available: available}
	}
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}

func upsertCredit(ctx context.Context, q querier, userID, asset string, amount decimal.Decimal) (decimal.Decimal, error) {
	const query = `
        INSERT INTO crypto_balances (user_id, asset_id, balance, updated_at)
        VALUES ($1, $2, $3::numeric, now())
        ON CONFLICT (user_id, asset_id)
        DO UPDATE SET balance = crypto_balances.balance + EXCLUDED.balance, updated_at = now()
        RETURNING balance::text`
	var raw string
	if err := q.QueryRow(ctx, query, userID, asset, amount.String()).Scan(&raw); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}

func balanceOf(ctx context.Context, q querier, userID, asset string) (decimal.Decimal, error) {
	var raw string
	err := q.QueryRow(ctx, `SELECT balance::text FROM crypto_balances WHERE user_id = $1 AND asset_id = $2`, userID, asset).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}
