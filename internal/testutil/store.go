// Package testutil provides an in-memory store.Store and fixture builders
// shared across engine tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"wealthledger/internal/domain"
	"wealthledger/internal/store"
)

// Store is an in-memory store.Store. WithTx stages writes and applies
// them only if the unit of work succeeds, mirroring the transactional
// contract of the Postgres store.
type Store struct {
	mu sync.Mutex

	accounts     map[uuid.UUID]*domain.Account
	transactions []domain.Transaction
	trades       map[uuid.UUID]*domain.Trade

	// Injected faults.
	AnnotateErr error // AnnotateTrade fails
	BalanceErr  error // UpdateAccountBalance fails
	ListErr     error // all list reads fail
}

var _ store.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		accounts: make(map[uuid.UUID]*domain.Account),
		trades:   make(map[uuid.UUID]*domain.Trade),
	}
}

func (s *Store) GetAccount(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (s *Store) ListTransactionsInvolvingAccount(_ context.Context, accountID uuid.UUID) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ListErr != nil {
		return nil, s.ListErr
	}

	var out []domain.Transaction
	for _, tx := range s.transactions {
		if (tx.FromAccountID != nil && *tx.FromAccountID == accountID) ||
			(tx.ToAccountID != nil && *tx.ToAccountID == accountID) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *Store) ListTradesForAccount(_ context.Context, accountID uuid.UUID) ([]domain.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ListErr != nil {
		return nil, s.ListErr
	}

	var out []domain.Trade
	for _, t := range s.trades {
		if t.AccountID == accountID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *Store) ListClosedTrades(_ context.Context, accountID uuid.UUID, kind domain.TradeKind) ([]domain.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ListErr != nil {
		return nil, s.ListErr
	}

	var out []domain.Trade
	for _, t := range s.trades {
		if t.AccountID == accountID && t.Status == domain.StatusClosed && t.Kind == kind {
			out = append(out, *t)
		}
	}
	return out, nil
}

type stagedBalance struct {
	accountID uuid.UUID
	balance   decimal.Decimal
}

type stagedAnnotation struct {
	tradeID uuid.UUID
	opening decimal.Decimal
	ann     domain.BalanceAnnotation
}

type memUnitOfWork struct {
	s           *Store
	balances    []stagedBalance
	annotations []stagedAnnotation
}

func (u *memUnitOfWork) UpdateAccountBalance(_ context.Context, accountID uuid.UUID, balance decimal.Decimal) error {
	if u.s.BalanceErr != nil {
		return u.s.BalanceErr
	}
	u.balances = append(u.balances, stagedBalance{accountID, balance})
	return nil
}

func (u *memUnitOfWork) AnnotateTrade(_ context.Context, tradeID uuid.UUID, opening decimal.Decimal, ann domain.BalanceAnnotation) error {
	if u.s.AnnotateErr != nil {
		return u.s.AnnotateErr
	}
	u.annotations = append(u.annotations, stagedAnnotation{tradeID, opening, ann})
	return nil
}

func (s *Store) WithTx(ctx context.Context, fn func(store.UnitOfWork) error) error {
	uow := &memUnitOfWork{s: s}
	if err := fn(uow); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range uow.balances {
		if a, ok := s.accounts[b.accountID]; ok {
			a.Balance = b.balance
		}
	}
	for _, an := range uow.annotations {
		if t, ok := s.trades[an.tradeID]; ok {
			opening := an.opening
			ann := an.ann
			t.OpeningBalance = &opening
			t.Annotation = &ann
		}
	}
	return nil
}

func (s *Store) DeleteAccountCascade(_ context.Context, userID, accountID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return fmt.Errorf("account %s: %w", accountID, domain.ErrNotFound)
	}
	if a.UserID != userID {
		return fmt.Errorf("account %s: %w", accountID, domain.ErrForbidden)
	}

	delete(s.accounts, accountID)
	for id, t := range s.trades {
		if t.AccountID == accountID {
			delete(s.trades, id)
		}
	}
	kept := s.transactions[:0]
	for _, tx := range s.transactions {
		touches := (tx.FromAccountID != nil && *tx.FromAccountID == accountID) ||
			(tx.ToAccountID != nil && *tx.ToAccountID == accountID)
		if !touches {
			kept = append(kept, tx)
		}
	}
	s.transactions = kept
	return nil
}

func (s *Store) CreateAccount(_ context.Context, a *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.accounts[a.ID] = &cp
	return nil
}

func (s *Store) RecordTransaction(_ context.Context, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = append(s.transactions, *tx)
	return nil
}

func (s *Store) RecordTrade(_ context.Context, t *domain.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.trades[t.ID] = &cp
	return nil
}

// Trade returns a copy of a stored trade, for assertions.
func (s *Store) Trade(id uuid.UUID) (domain.Trade, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trades[id]
	if !ok {
		return domain.Trade{}, false
	}
	return *t, true
}

// --- Fixture builders ---

// Account creates and stores an active USD account for userID.
func (s *Store) Account(userID uuid.UUID) *domain.Account {
	a := &domain.Account{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      "test account",
		Currency:  "USD",
		Balance:   decimal.Zero,
		Liquid:    true,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	s.CreateAccount(context.Background(), a)
	return a
}

// Deposit records an incoming transfer into the account.
func (s *Store) Deposit(accountID uuid.UUID, amount string, ts time.Time) *domain.Transaction {
	id := accountID
	tx := &domain.Transaction{
		ID:          uuid.New(),
		Type:        domain.TransactionDeposit,
		Amount:      decimal.RequireFromString(amount),
		Timestamp:   ts,
		ToAccountID: &id,
	}
	s.RecordTransaction(context.Background(), tx)
	return tx
}

// Withdrawal records an outgoing transfer from the account.
func (s *Store) Withdrawal(accountID uuid.UUID, amount string, ts time.Time) *domain.Transaction {
	id := accountID
	tx := &domain.Transaction{
		ID:            uuid.New(),
		Type:          domain.TransactionWithdrawal,
		Amount:        decimal.RequireFromString(amount),
		Timestamp:     ts,
		FromAccountID: &id,
	}
	s.RecordTransaction(context.Background(), tx)
	return tx
}

// ClosedTrade records a closed FX trade with the given settlement numbers.
func (s *Store) ClosedTrade(accountID uuid.UUID, instrument string, dir domain.Direction, entry *time.Time, realizedPL, fees string) *domain.Trade {
	t := &domain.Trade{
		ID:         uuid.New(),
		AccountID:  accountID,
		Kind:       domain.KindFX,
		Instrument: instrument,
		Direction:  dir,
		Status:     domain.StatusClosed,
		EntryTime:  entry,
		Lots:       decimal.NewFromInt(1),
		Fees:       decimal.RequireFromString(fees),
		RealizedPL: decimal.RequireFromString(realizedPL),
	}
	s.RecordTrade(context.Background(), t)
	return t
}
