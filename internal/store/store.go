// Package store is the persistence boundary of the engine. Both engines
// receive a Store by injection; there is no package-level handle.
package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"wealthledger/internal/domain"
)

// Store is the abstract persistence interface consumed by the
// reconstruction and analytics engines. Implementations: Postgres
// (production) and the in-memory store in internal/testutil.
type Store interface {
	// GetAccount returns the account or domain.ErrNotFound.
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)

	// ListTransactionsInvolvingAccount returns every transaction where the
	// account is source or destination.
	ListTransactionsInvolvingAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error)

	// ListTradesForAccount returns all trades owned by the account,
	// regardless of status.
	ListTradesForAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Trade, error)

	// ListClosedTrades returns the account's CLOSED trades of one tradable
	// kind, the analytics engine's single bulk read.
	ListClosedTrades(ctx context.Context, accountID uuid.UUID, kind domain.TradeKind) ([]domain.Trade, error)

	// WithTx runs fn inside one atomic unit of work. Either every write
	// issued through the UnitOfWork commits, or none do.
	WithTx(ctx context.Context, fn func(UnitOfWork) error) error

	// DeleteAccountCascade removes the account and everything hanging off
	// it (trades, transactions touching it) in one transaction. Returns
	// domain.ErrNotFound if the account is absent and domain.ErrForbidden
	// if it belongs to another user.
	DeleteAccountCascade(ctx context.Context, userID, accountID uuid.UUID) error

	CreateAccount(ctx context.Context, a *domain.Account) error
	RecordTransaction(ctx context.Context, tx *domain.Transaction) error
	RecordTrade(ctx context.Context, t *domain.Trade) error
}

// UnitOfWork exposes the derived-field writes the reconstruction engine
// needs. Both methods see the same transaction.
type UnitOfWork interface {
	UpdateAccountBalance(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal) error
	AnnotateTrade(ctx context.Context, tradeID uuid.UUID, opening decimal.Decimal, ann domain.BalanceAnnotation) error
}
