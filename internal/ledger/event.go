// Package ledger reconstructs account balances by replaying money-movement
// events in chronological order.
package ledger

import (
	"bytes"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventKind discriminates ledger event payloads.
type EventKind int32

const (
	EventUnknown EventKind = iota
	EventTransferIn
	EventTransferOut
	EventTradeSettlement
)

func (k EventKind) String() string {
	switch k {
	case EventTransferIn:
		return "TransferIn"
	case EventTransferOut:
		return "TransferOut"
	case EventTradeSettlement:
		return "TradeSettlement"
	default:
		return "Unknown"
	}
}

// Event is one money-movement fact affecting an account's balance: a
// transfer in, a transfer out, or a trade settlement. Transfers carry
// Amount; settlements carry Fees and NetAmount and reference the trade.
type Event struct {
	Kind EventKind

	// RecordID is the originating row's id; it breaks timestamp ties so
	// replay order is total and stable across runs.
	RecordID uuid.UUID

	// TradeID is set for settlements only.
	TradeID uuid.UUID

	Amount    decimal.Decimal
	Fees      decimal.Decimal
	NetAmount decimal.Decimal

	Timestamp time.Time
}

// Sort orders events ascending by (timestamp, originating record id).
// Ties are common: trades and transfers share no natural interleaving
// guarantee, so the record id makes the order deterministic.
func Sort(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Timestamp.Equal(events[j].Timestamp) {
			return bytes.Compare(events[i].RecordID[:], events[j].RecordID[:]) < 0
		}
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
}
