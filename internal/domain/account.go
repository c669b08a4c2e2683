package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account is one of a user's financial accounts.
//
// Balance is the only stored derived value: a materialized cache of the
// fold over the account's ledger events. The reconstruction engine is its
// single writer; everything else treats it as read-only.
type Account struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Name      string          `json:"name"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	Liquid    bool            `json:"liquid"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
}
