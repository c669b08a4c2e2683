package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType discriminates money transfers.
type TransactionType int32

const (
	TransactionUnknown TransactionType = iota
	TransactionDeposit
	TransactionWithdrawal
	TransactionTransfer
	TransactionDividend
)

func (t TransactionType) String() string {
	switch t {
	case TransactionDeposit:
		return "DEPOSIT"
	case TransactionWithdrawal:
		return "WITHDRAWAL"
	case TransactionTransfer:
		return "TRANSFER"
	case TransactionDividend:
		return "DIVIDEND"
	default:
		return "UNKNOWN"
	}
}

// ParseTransactionType maps the stored text form back to the enum.
func ParseTransactionType(s string) (TransactionType, bool) {
	switch s {
	case "DEPOSIT":
		return TransactionDeposit, true
	case "WITHDRAWAL":
		return TransactionWithdrawal, true
	case "TRANSFER":
		return TransactionTransfer, true
	case "DIVIDEND":
		return TransactionDividend, true
	default:
		return TransactionUnknown, false
	}
}

// Transaction is a transfer between zero or one source account and zero or
// one destination account. A deposit has only a destination, a withdrawal
// only a source, an inter-account transfer has both.
type Transaction struct {
	ID            uuid.UUID       `json:"id"`
	Type          TransactionType `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Timestamp     time.Time       `json:"timestamp"`
	FromAccountID *uuid.UUID      `json:"from_account_id,omitempty"`
	ToAccountID   *uuid.UUID      `json:"to_account_id,omitempty"`
}
