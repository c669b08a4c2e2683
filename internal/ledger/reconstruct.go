package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"wealthledger/internal/domain"
	"wealthledger/internal/observability"
	"wealthledger/internal/store"
)

// Engine recomputes an account's stored balance and per-trade balance
// annotations by replaying the account's full ledger in time order.
//
// Recompute is a deterministic fold: given an identical event set, two
// invocations produce identical results. Reconstructions for the same
// account are serialized through a per-account lock; different accounts
// proceed in parallel.
type Engine struct {
	store   store.Store
	source  *Source
	locks   *accountLocks
	log     zerolog.Logger
	metrics *observability.Metrics
}

func NewEngine(st store.Store, log zerolog.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{
		store:   st,
		source:  NewSource(st, log),
		locks:   newAccountLocks(),
		log:     log,
		metrics: metrics,
	}
}

// tradeSnapshot is the per-trade output of one fold: the opening balance
// captured before the settlement was applied, plus the full annotation.
type tradeSnapshot struct {
	tradeID uuid.UUID
	opening decimal.Decimal
	ann     domain.BalanceAnnotation
}

// Recompute replays the account's events and persists the final balance
// and every trade annotation in one atomic unit of work. It returns the
// recomputed balance.
//
// Accounts not owned by userID are reported as not found.
func (e *Engine) Recompute(ctx context.Context, userID, accountID uuid.UUID) (decimal.Decimal, error) {
	e.locks.lock(accountID)
	defer e.locks.unlock(accountID)

	start := time.Now()

	acct, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		e.countOutcome("not_found")
		return decimal.Zero, err
	}
	if acct.UserID != userID {
		e.countOutcome("not_found")
		return decimal.Zero, fmt.Errorf("account %s: %w", accountID, domain.ErrNotFound)
	}

	events, err := e.source.LoadEvents(ctx, accountID)
	if err != nil {
		e.countOutcome("load_failed")
		return decimal.Zero, err
	}
	Sort(events)

	balance := decimal.Zero
	snapshots := make([]tradeSnapshot, 0)

	for _, ev := range events {
		switch ev.Kind {
		case EventTransferIn:
			balance = balance.Add(ev.Amount)
		case EventTransferOut:
			balance = balance.Sub(ev.Amount)
		case EventTradeSettlement:
			// Snapshot before applying the effect.
			opening := balance
			balance = balance.Sub(ev.Fees).Add(ev.NetAmount)
			snapshots = append(snapshots, tradeSnapshot{
				tradeID: ev.TradeID,
				opening: opening,
				ann: domain.BalanceAnnotation{
					Before: opening,
					After:  balance,
					Delta:  balance.Sub(opening),
				},
			})
		}
	}

	err = e.store.WithTx(ctx, func(uow store.UnitOfWork) error {
		for _, snap := range snapshots {
			if err := uow.AnnotateTrade(ctx, snap.tradeID, snap.opening, snap.ann); err != nil {
				return err
			}
		}
		return uow.UpdateAccountBalance(ctx, accountID, balance)
	})
	if err != nil {
		e.countOutcome("persist_failed")
		if e.metrics != nil {
			e.metrics.StoreErrors.WithLabelValues("recompute_tx").Inc()
		}
		return decimal.Zero, fmt.Errorf("persist reconstruction for %s: %w", accountID, err)
	}

	if e.metrics != nil {
		e.metrics.RecomputeTotal.WithLabelValues("ok").Inc()
		e.metrics.RecomputeDuration.Observe(time.Since(start).Seconds())
		e.metrics.RecomputeEventsFolded.Observe(float64(len(events)))
	}

	e.log.Debug().
		Str("account_id", accountID.String()).
		Int("events", len(events)).
		Int("trades_annotated", len(snapshots)).
		Str("balance", balance.String()).
		Msg("balance reconstructed")

	return balance, nil
}

func (e *Engine) countOutcome(outcome string) {
	if e.metrics != nil {
		e.metrics.RecomputeTotal.WithLabelValues(outcome).Inc()
	}
}
