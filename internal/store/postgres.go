package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"wealthledger/internal/domain"
)

// Postgres implements Store on database/sql with the lib/pq driver.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const accountColumns = `id, user_id, name, currency, balance, liquid, active, created_at`

func (p *Postgres) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	var a domain.Account
	err := p.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, id).Scan(&a.ID, &a.UserID, &a.Name, &a.Currency, &a.Balance, &a.Liquid, &a.Active, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}
	return &a, nil
}

func (p *Postgres) ListTransactionsInvolvingAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, type, amount, ts, from_account_id, to_account_id
		FROM transactions
		WHERE from_account_id = $1 OR to_account_id = $1
		ORDER BY ts, id
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list transactions for %s: %w", accountID, err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var (
			tx       domain.Transaction
			txType   string
			from, to uuid.NullUUID
		)
		if err := rows.Scan(&tx.ID, &txType, &tx.Amount, &tx.Timestamp, &from, &to); err != nil {
			return nil, err
		}
		tx.Type, _ = domain.ParseTransactionType(txType)
		if from.Valid {
			id := from.UUID
			tx.FromAccountID = &id
		}
		if to.Valid {
			id := to.UUID
			tx.ToAccountID = &id
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

const tradeColumns = `id, account_id, kind, instrument, direction, status, pattern,
	entry_time, exit_time, lots, fees, realized_pl, pct_gain,
	opening_balance, balance_before, balance_after, balance_delta`

func (p *Postgres) ListTradesForAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Trade, error) {
	return p.queryTrades(ctx, `
		SELECT `+tradeColumns+`
		FROM trades
		WHERE account_id = $1
		ORDER BY entry_time NULLS LAST, id
	`, accountID)
}

func (p *Postgres) ListClosedTrades(ctx context.Context, accountID uuid.UUID, kind domain.TradeKind) ([]domain.Trade, error) {
	return p.queryTrades(ctx, `
		SELECT `+tradeColumns+`
		FROM trades
		WHERE account_id = $1 AND status = 'CLOSED' AND kind = $2
		ORDER BY entry_time NULLS LAST, id
	`, accountID, kind.String())
}

func (p *Postgres) queryTrades(ctx context.Context, query string, args ...interface{}) ([]domain.Trade, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTrade(rows *sql.Rows) (domain.Trade, error) {
	var (
		t                    domain.Trade
		kind, dir, status    string
		pattern              sql.NullString
		entry, exit          sql.NullTime
		pctGain              sql.NullFloat64
		opening              decimal.NullDecimal
		before, after, delta decimal.NullDecimal
	)
	if err := rows.Scan(
		&t.ID, &t.AccountID, &kind, &t.Instrument, &dir, &status, &pattern,
		&entry, &exit, &t.Lots, &t.Fees, &t.RealizedPL, &pctGain,
		&opening, &before, &after, &delta,
	); err != nil {
		return domain.Trade{}, err
	}

	t.Kind, _ = domain.ParseTradeKind(kind)
	t.Direction, _ = domain.ParseDirection(dir)
	t.Status, _ = domain.ParseTradeStatus(status)
	t.Pattern = pattern.String
	if entry.Valid {
		ts := entry.Time
		t.EntryTime = &ts
	}
	if exit.Valid {
		ts := exit.Time
		t.ExitTime = &ts
	}
	if pctGain.Valid {
		v := pctGain.Float64
		t.PctGain = &v
	}
	if opening.Valid {
		d := opening.Decimal
		t.OpeningBalance = &d
	}
	if before.Valid && after.Valid && delta.Valid {
		t.Annotation = &domain.BalanceAnnotation{
			Before: before.Decimal,
			After:  after.Decimal,
			Delta:  delta.Decimal,
		}
	}
	return t, nil
}

// WithTx runs fn inside a single database transaction. Any error from fn
// or from commit leaves the store untouched.
func (p *Postgres) WithTx(ctx context.Context, fn func(UnitOfWork) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&pgUnitOfWork{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type pgUnitOfWork struct {
	tx *sql.Tx
}

func (u *pgUnitOfWork) UpdateAccountBalance(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal) error {
	res, err := u.tx.ExecContext(ctx, `
		UPDATE accounts SET balance = $2 WHERE id = $1
	`, accountID, balance)
	if err != nil {
		return fmt.Errorf("update balance for %s: %w", accountID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("account %s: %w", accountID, domain.ErrNotFound)
	}
	return nil
}

func (u *pgUnitOfWork) AnnotateTrade(ctx context.Context, tradeID uuid.UUID, opening decimal.Decimal, ann domain.BalanceAnnotation) error {
	res, err := u.tx.ExecContext(ctx, `
		UPDATE trades
		SET opening_balance = $2, balance_before = $3, balance_after = $4, balance_delta = $5
		WHERE id = $1
	`, tradeID, opening, ann.Before, ann.After, ann.Delta)
	if err != nil {
		return fmt.Errorf("annotate trade %s: %w", tradeID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("trade %s: %w", tradeID, domain.ErrNotFound)
	}
	return nil
}

// DeleteAccountCascade is the delete arena for one account: trades,
// transactions touching the account, and the account row go in one
// transaction so the event log never ends up half-removed.
func (p *Postgres) DeleteAccountCascade(ctx context.Context, userID, accountID uuid.UUID) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var owner uuid.UUID
	err = tx.QueryRowContext(ctx, `SELECT user_id FROM accounts WHERE id = $1`, accountID).Scan(&owner)
	if err == sql.ErrNoRows {
		return fmt.Errorf("account %s: %w", accountID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load account owner: %w", err)
	}
	if owner != userID {
		return fmt.Errorf("account %s: %w", accountID, domain.ErrForbidden)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM trades WHERE account_id = $1`, accountID); err != nil {
		return fmt.Errorf("delete trades: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM transactions WHERE from_account_id = $1 OR to_account_id = $1
	`, accountID); err != nil {
		return fmt.Errorf("delete transactions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, accountID); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cascade delete: %w", err)
	}
	return nil
}

func (p *Postgres) CreateAccount(ctx context.Context, a *domain.Account) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, a.ID, a.UserID, a.Name, a.Currency, a.Balance, a.Liquid, a.Active, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (p *Postgres) RecordTransaction(ctx context.Context, tx *domain.Transaction) error {
	var from, to uuid.NullUUID
	if tx.FromAccountID != nil {
		from = uuid.NullUUID{UUID: *tx.FromAccountID, Valid: true}
	}
	if tx.ToAccountID != nil {
		to = uuid.NullUUID{UUID: *tx.ToAccountID, Valid: true}
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO transactions (id, type, amount, ts, from_account_id, to_account_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, tx.ID, tx.Type.String(), tx.Amount, tx.Timestamp, from, to)
	if err != nil {
		return fmt.Errorf("record transaction: %w", err)
	}
	return nil
}

func (p *Postgres) RecordTrade(ctx context.Context, t *domain.Trade) error {
	var (
		entry, exit sql.NullTime
		pctGain     sql.NullFloat64
	)
	if t.EntryTime != nil {
		entry = sql.NullTime{Time: *t.EntryTime, Valid: true}
	}
	if t.ExitTime != nil {
		exit = sql.NullTime{Time: *t.ExitTime, Valid: true}
	}
	if t.PctGain != nil {
		pctGain = sql.NullFloat64{Float64: *t.PctGain, Valid: true}
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO trades
			(id, account_id, kind, instrument, direction, status, pattern,
			 entry_time, exit_time, lots, fees, realized_pl, pct_gain)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, t.ID, t.AccountID, t.Kind.String(), t.Instrument, t.Direction.String(), t.Status.String(),
		t.Pattern, entry, exit, t.Lots, t.Fees, t.RealizedPL, pctGain)
	if err != nil {
		return fmt.Errorf("record trade: %w", err)
	}
	return nil
}
