// Package analytics answers filtered, aggregated queries over a user's
// closed trades: statistics and grouped buckets over the full filtered
// set, with pagination applied to the raw listing only.
package analytics

import (
	"github.com/shopspring/decimal"

	"wealthledger/internal/domain"
)

// AnnotatedTrade is a closed trade enriched with derived analytics fields.
type AnnotatedTrade struct {
	domain.Trade

	// Session is the trading-session label of the entry time, "N/A" when
	// the trade has no entry time.
	Session string `json:"session"`

	// ActualPct is realized P&L over the opening balance, as a percentage.
	// Undefined (nil) unless the opening balance is known and positive.
	ActualPct *float64 `json:"actual_pct,omitempty"`
}

// SideStats is the per-direction slice of the global statistics.
type SideStats struct {
	Count      int             `json:"count"`
	RealizedPL decimal.Decimal `json:"realized_pl"`
	WinRate    float64         `json:"win_rate"`
}

// GlobalStats aggregates the entire filtered set, never just a page.
// Rates are percentages; an empty set yields all zeros, never NaN.
type GlobalStats struct {
	Count              int             `json:"count"`
	TotalPL            decimal.Decimal `json:"total_pl"`
	WinRate            float64         `json:"win_rate"`
	AvgReturnOnBalance float64         `json:"avg_return_on_balance"`
	TotalFees          decimal.Decimal `json:"total_fees"`
	LargestWin         decimal.Decimal `json:"largest_win"`
	LargestLoss        decimal.Decimal `json:"largest_loss"`

	// AvgHoldSeconds is the mean holding time over trades that have both
	// timestamps with exit after entry.
	AvgHoldSeconds float64 `json:"avg_hold_seconds"`

	Long  SideStats `json:"long"`
	Short SideStats `json:"short"`
}

// Bucket is one group of the filtered set, keyed by the groupBy dimension.
type Bucket struct {
	Key                string          `json:"key"`
	Count              int             `json:"count"`
	GrossPL            decimal.Decimal `json:"gross_pl"`
	AvgReturnOnBalance float64         `json:"avg_return_on_balance"`
	AvgPctGain         float64         `json:"avg_pct_gain"`
	WinRate            float64         `json:"win_rate"`
}

// Report is the full query response. Stats and Buckets cover the whole
// filtered set; Rows is the requested page.
type Report struct {
	Rows       []AnnotatedTrade `json:"rows"`
	Buckets    []Bucket         `json:"buckets"`
	Stats      GlobalStats      `json:"globalStats"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	Size       int              `json:"size"`
	TotalPages int              `json:"totalPages"`
}
