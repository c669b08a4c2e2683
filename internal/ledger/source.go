package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"wealthledger/internal/domain"
	"wealthledger/internal/store"
)

// Source maps an account's persisted transactions and trades into the
// uniform event representation. Read-only; no side effects.
type Source struct {
	store store.Store
	log   zerolog.Logger
}

func NewSource(st store.Store, log zerolog.Logger) *Source {
	return &Source{store: st, log: log}
}

// LoadEvents returns the complete set of ledger events for one account,
// unsorted. Every transaction where the account is source or destination
// becomes a TransferOut/TransferIn, and every CLOSED trade becomes a
// TradeSettlement timestamped at its entry time.
//
// A closed trade without an entry time falls back to a single load-time
// timestamp, which keeps one reconstruction internally consistent but
// makes repeated runs over such trades order-unstable. Known correctness
// risk; logged per trade.
func (s *Source) LoadEvents(ctx context.Context, accountID uuid.UUID) ([]Event, error) {
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	txs, err := s.store.ListTransactionsInvolvingAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	trades, err := s.store.ListTradesForAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(txs)+len(trades))

	for _, tx := range txs {
		if tx.FromAccountID != nil && *tx.FromAccountID == accountID {
			events = append(events, Event{
				Kind:      EventTransferOut,
				RecordID:  tx.ID,
				Amount:    tx.Amount,
				Timestamp: tx.Timestamp,
			})
		}
		if tx.ToAccountID != nil && *tx.ToAccountID == accountID {
			events = append(events, Event{
				Kind:      EventTransferIn,
				RecordID:  tx.ID,
				Amount:    tx.Amount,
				Timestamp: tx.Timestamp,
			})
		}
	}

	// Pinned once so every fallback within one load agrees.
	now := time.Now().UTC()

	for _, t := range trades {
		if t.Status != domain.StatusClosed {
			continue
		}
		ts := now
		if t.EntryTime != nil {
			ts = *t.EntryTime
		} else {
			s.log.Warn().
				Str("trade_id", t.ID.String()).
				Str("account_id", accountID.String()).
				Msg("closed trade has no entry time; settling at load time")
		}
		events = append(events, Event{
			Kind:      EventTradeSettlement,
			RecordID:  t.ID,
			TradeID:   t.ID,
			Fees:      t.Fees,
			NetAmount: t.RealizedPL,
			Timestamp: ts,
		})
	}

	return events, nil
}
