package analytics

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"wealthledger/internal/domain"
	"wealthledger/internal/session"
)

// GroupBy selects the bucketing dimension of a query.
type GroupBy string

const (
	GroupByInstrument GroupBy = "instrument"
	GroupByDirection  GroupBy = "direction"
	GroupByMonth      GroupBy = "month"
	GroupBySession    GroupBy = "session"
)

func ParseGroupBy(s string) (GroupBy, bool) {
	switch GroupBy(s) {
	case GroupByInstrument, GroupByDirection, GroupByMonth, GroupBySession:
		return GroupBy(s), true
	default:
		return "", false
	}
}

// Filter is the declarative trade filter specification. All clauses are
// AND-ed; nil or zero optional fields are no-ops. The HTTP layer drops
// malformed clauses before the filter reaches the engine, so a Filter is
// always well-formed.
type Filter struct {
	UserID    uuid.UUID
	AccountID uuid.UUID

	// Kind restricts which tradable type participates; defaults to FX.
	Kind domain.TradeKind

	Instrument string // substring match, case-insensitive
	Pattern    string // exact match
	Direction  *domain.Direction

	// Entry-date range: From inclusive, To exclusive. Trades without an
	// entry time fail any date clause.
	From *time.Time
	To   *time.Time

	Session *session.Session

	MinLots *decimal.Decimal
	MaxLots *decimal.Decimal

	// Bounds on the trade-specific percentage gain (the stored PctGain,
	// not the derived actual gain). Trades without a stored value fail
	// any pct clause.
	MinPct *float64
	MaxPct *float64

	GroupBy GroupBy

	Page int
	Size int
}

func (f *Filter) matches(t AnnotatedTrade) bool {
	if f.Instrument != "" &&
		!strings.Contains(strings.ToLower(t.Instrument), strings.ToLower(f.Instrument)) {
		return false
	}
	if f.Pattern != "" && t.Pattern != f.Pattern {
		return false
	}
	if f.Direction != nil && t.Direction != *f.Direction {
		return false
	}
	if f.From != nil && (t.EntryTime == nil || t.EntryTime.Before(*f.From)) {
		return false
	}
	if f.To != nil && (t.EntryTime == nil || !t.EntryTime.Before(*f.To)) {
		return false
	}
	if f.Session != nil && t.Session != string(*f.Session) {
		return false
	}
	if f.MinLots != nil && t.Lots.LessThan(*f.MinLots) {
		return false
	}
	if f.MaxLots != nil && t.Lots.GreaterThan(*f.MaxLots) {
		return false
	}
	if f.MinPct != nil && (t.PctGain == nil || *t.PctGain < *f.MinPct) {
		return false
	}
	if f.MaxPct != nil && (t.PctGain == nil || *t.PctGain > *f.MaxPct) {
		return false
	}
	return true
}
