package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction represents trade direction
type Direction int32

const (
	DirectionUnknown Direction = iota
	DirectionLong
	DirectionShort
)

func (d Direction) String() string {
	switch d {
	case DirectionLong:
		return "LONG"
	case DirectionShort:
		return "SHORT"
	default:
		return "UNKNOWN"
	}
}

func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "LONG":
		return DirectionLong, true
	case "SHORT":
		return DirectionShort, true
	default:
		return DirectionUnknown, false
	}
}

// TradeStatus represents the trade lifecycle state
type TradeStatus int32

const (
	StatusOpen TradeStatus = iota
	StatusClosed
	StatusCancelled
)

func (s TradeStatus) String() string {
	switch s {
	case StatusOpen:
		return "OPEN"
	case StatusClosed:
		return "CLOSED"
	case StatusCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

func ParseTradeStatus(s string) (TradeStatus, bool) {
	switch s {
	case "OPEN":
		return StatusOpen, true
	case "CLOSED":
		return StatusClosed, true
	case "CANCELLED":
		return StatusCancelled, true
	default:
		return StatusOpen, false
	}
}

// TradeKind is the tradable instrument class.
type TradeKind int32

const (
	KindUnknown TradeKind = iota
	KindFX
	KindStock
	KindCrypto
)

func (k TradeKind) String() string {
	switch k {
	case KindFX:
		return "FX"
	case KindStock:
		return "STOCK"
	case KindCrypto:
		return "CRYPTO"
	default:
		return "UNKNOWN"
	}
}

func ParseTradeKind(s string) (TradeKind, bool) {
	switch s {
	case "FX":
		return KindFX, true
	case "STOCK":
		return KindStock, true
	case "CRYPTO":
		return KindCrypto, true
	default:
		return KindUnknown, false
	}
}

// BalanceAnnotation describes the account balance around one trade's
// settlement: the balance before the settlement was folded in, the balance
// after, and the delta the settlement caused. Written only by the
// reconstruction engine, always together with Trade.OpeningBalance.
type BalanceAnnotation struct {
	Before decimal.Decimal `json:"before"`
	After  decimal.Decimal `json:"after"`
	Delta  decimal.Decimal `json:"delta"`
}

// Trade is one position taken in an account.
//
// OpeningBalance and Annotation are derived fields: the reconstruction
// engine snapshots the account balance immediately before the trade's
// settlement and is their only writer.
type Trade struct {
	ID         uuid.UUID   `json:"id"`
	AccountID  uuid.UUID   `json:"account_id"`
	Kind       TradeKind   `json:"kind"`
	Instrument string      `json:"instrument"`
	Direction  Direction   `json:"direction"`
	Status     TradeStatus `json:"status"`
	Pattern    string      `json:"pattern,omitempty"`

	EntryTime *time.Time `json:"entry_time,omitempty"`
	ExitTime  *time.Time `json:"exit_time,omitempty"`

	Lots       decimal.Decimal `json:"lots"`
	Fees       decimal.Decimal `json:"fees"`
	RealizedPL decimal.Decimal `json:"realized_pl"`

	// PctGain is the trade-specific percentage gain recorded by the user,
	// distinct from the actual gain derived from OpeningBalance.
	PctGain *float64 `json:"pct_gain,omitempty"`

	OpeningBalance *decimal.Decimal   `json:"opening_balance,omitempty"`
	Annotation     *BalanceAnnotation `json:"annotation,omitempty"`
}
