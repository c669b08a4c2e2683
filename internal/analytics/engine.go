package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"wealthledger/internal/domain"
	"wealthledger/internal/observability"
	"wealthledger/internal/session"
	"wealthledger/internal/store"
)

// DefaultPageSize is the row page size when the caller supplies none.
const DefaultPageSize = 10

var hundred = decimal.NewFromInt(100)

// Engine answers trade filter queries. Read-only and safe under arbitrary
// concurrency: each query is a snapshot of one bulk read.
type Engine struct {
	store   store.Store
	log     zerolog.Logger
	metrics *observability.Metrics
}

func NewEngine(st store.Store, log zerolog.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{store: st, log: log, metrics: metrics}
}

// Query selects the trades matching f, computes global statistics and
// grouped buckets over the entire filtered set, and slices a page of raw
// rows. Stats and buckets are independent of Page/Size by construction.
//
// Accounts not owned by f.UserID are reported as not found.
func (e *Engine) Query(ctx context.Context, f Filter) (*Report, error) {
	start := time.Now()

	acct, err := e.store.GetAccount(ctx, f.AccountID)
	if err != nil {
		e.countOutcome("not_found")
		return nil, err
	}
	if acct.UserID != f.UserID {
		e.countOutcome("not_found")
		return nil, fmt.Errorf("account %s: %w", f.AccountID, domain.ErrNotFound)
	}

	kind := f.Kind
	if kind == domain.KindUnknown {
		kind = domain.KindFX
	}

	trades, err := e.store.ListClosedTrades(ctx, f.AccountID, kind)
	if err != nil {
		e.countOutcome("read_failed")
		if e.metrics != nil {
			e.metrics.StoreErrors.WithLabelValues("list_closed_trades").Inc()
		}
		return nil, fmt.Errorf("read closed trades for %s: %w", f.AccountID, err)
	}

	filtered := make([]AnnotatedTrade, 0, len(trades))
	for _, t := range trades {
		at := annotate(t)
		if f.matches(at) {
			filtered = append(filtered, at)
		}
	}

	// Newest entries first; id breaks ties so pages are stable.
	sort.SliceStable(filtered, func(i, j int) bool {
		ti, tj := filtered[i].EntryTime, filtered[j].EntryTime
		switch {
		case ti == nil:
			return false
		case tj == nil:
			return true
		case !ti.Equal(*tj):
			return ti.After(*tj)
		default:
			return filtered[i].ID.String() < filtered[j].ID.String()
		}
	})

	stats := computeStats(filtered)
	buckets := computeBuckets(filtered, f.GroupBy)
	rows, page, size, totalPages := paginate(filtered, f.Page, f.Size)

	if e.metrics != nil {
		e.metrics.QueryTotal.WithLabelValues("ok").Inc()
		e.metrics.QueryDuration.Observe(time.Since(start).Seconds())
		e.metrics.QueryTradesScanned.Observe(float64(len(trades)))
	}

	return &Report{
		Rows:       rows,
		Buckets:    buckets,
		Stats:      stats,
		Total:      len(filtered),
		Page:       page,
		Size:       size,
		TotalPages: totalPages,
	}, nil
}

func (e *Engine) countOutcome(outcome string) {
	if e.metrics != nil {
		e.metrics.QueryTotal.WithLabelValues(outcome).Inc()
	}
}

// annotate derives the session label and the actual percentage gain.
func annotate(t domain.Trade) AnnotatedTrade {
	at := AnnotatedTrade{
		Trade:   t,
		Session: session.Label(t.EntryTime),
	}
	if t.OpeningBalance != nil && t.OpeningBalance.IsPositive() {
		pct, _ := t.RealizedPL.Div(*t.OpeningBalance).Mul(hundred).Float64()
		at.ActualPct = &pct
	}
	return at
}

// computeStats folds the full filtered set in one pass. Every ratio
// guards its denominator, so an empty set or a set with no usable
// opening balance yields zeros rather than NaN.
func computeStats(trades []AnnotatedTrade) GlobalStats {
	s := GlobalStats{
		TotalPL:     decimal.Zero,
		TotalFees:   decimal.Zero,
		LargestWin:  decimal.Zero,
		LargestLoss: decimal.Zero,
		Long:        SideStats{RealizedPL: decimal.Zero},
		Short:       SideStats{RealizedPL: decimal.Zero},
	}

	var (
		wins                int
		longWins, shortWins int
		openingSum          = decimal.Zero
		holdSum             float64
		holdCount           int
	)

	for _, t := range trades {
		s.Count++
		s.TotalPL = s.TotalPL.Add(t.RealizedPL)
		s.TotalFees = s.TotalFees.Add(t.Fees)

		won := t.RealizedPL.IsPositive()
		if won {
			wins++
		}
		if t.RealizedPL.GreaterThan(s.LargestWin) {
			s.LargestWin = t.RealizedPL
		}
		if t.RealizedPL.LessThan(s.LargestLoss) {
			s.LargestLoss = t.RealizedPL
		}

		if t.OpeningBalance != nil && t.OpeningBalance.IsPositive() {
			openingSum = openingSum.Add(*t.OpeningBalance)
		}

		if t.EntryTime != nil && t.ExitTime != nil && t.ExitTime.After(*t.EntryTime) {
			holdSum += t.ExitTime.Sub(*t.EntryTime).Seconds()
			holdCount++
		}

		switch t.Direction {
		case domain.DirectionLong:
			s.Long.Count++
			s.Long.RealizedPL = s.Long.RealizedPL.Add(t.RealizedPL)
			if won {
				longWins++
			}
		case domain.DirectionShort:
			s.Short.Count++
			s.Short.RealizedPL = s.Short.RealizedPL.Add(t.RealizedPL)
			if won {
				shortWins++
			}
		}
	}

	s.WinRate = rate(wins, s.Count)
	s.Long.WinRate = rate(longWins, s.Long.Count)
	s.Short.WinRate = rate(shortWins, s.Short.Count)
	s.AvgReturnOnBalance = returnOnBalance(s.TotalPL, openingSum)
	if holdCount > 0 {
		s.AvgHoldSeconds = holdSum / float64(holdCount)
	}

	return s
}

type bucketAcc struct {
	count      int
	grossPL    decimal.Decimal
	wins       int
	openingSum decimal.Decimal
	pctSum     float64
	pctCount   int
}

// computeBuckets partitions the same filtered set by the groupBy key and
// applies the global-stat formulas scoped to each bucket. Buckets come
// back sorted by key so responses are deterministic.
func computeBuckets(trades []AnnotatedTrade, groupBy GroupBy) []Bucket {
	accs := make(map[string]*bucketAcc)

	for _, t := range trades {
		key := bucketKey(t, groupBy)
		acc, ok := accs[key]
		if !ok {
			acc = &bucketAcc{grossPL: decimal.Zero, openingSum: decimal.Zero}
			accs[key] = acc
		}

		acc.count++
		acc.grossPL = acc.grossPL.Add(t.RealizedPL)
		if t.RealizedPL.IsPositive() {
			acc.wins++
		}
		if t.OpeningBalance != nil && t.OpeningBalance.IsPositive() {
			acc.openingSum = acc.openingSum.Add(*t.OpeningBalance)
		}
		if t.PctGain != nil {
			acc.pctSum += *t.PctGain
			acc.pctCount++
		}
	}

	keys := make([]string, 0, len(accs))
	for k := range accs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buckets := make([]Bucket, 0, len(keys))
	for _, k := range keys {
		acc := accs[k]
		b := Bucket{
			Key:                k,
			Count:              acc.count,
			GrossPL:            acc.grossPL,
			AvgReturnOnBalance: returnOnBalance(acc.grossPL, acc.openingSum),
			WinRate:            rate(acc.wins, acc.count),
		}
		if acc.pctCount > 0 {
			b.AvgPctGain = acc.pctSum / float64(acc.pctCount)
		}
		buckets = append(buckets, b)
	}
	return buckets
}

func bucketKey(t AnnotatedTrade, groupBy GroupBy) string {
	switch groupBy {
	case GroupByDirection:
		return t.Direction.String()
	case GroupByMonth:
		if t.EntryTime == nil {
			return session.NoTimestamp
		}
		return t.EntryTime.UTC().Format("2006-01")
	case GroupBySession:
		return t.Session
	default:
		return t.Instrument
	}
}

// paginate slices the raw listing; it never touches stats or buckets.
func paginate(trades []AnnotatedTrade, page, size int) ([]AnnotatedTrade, int, int, int) {
	if size <= 0 {
		size = DefaultPageSize
	}
	if page <= 0 {
		page = 1
	}

	total := len(trades)
	totalPages := (total + size - 1) / size

	start := (page - 1) * size
	if start >= total {
		return []AnnotatedTrade{}, page, size, totalPages
	}
	end := start + size
	if end > total {
		end = total
	}
	return trades[start:end], page, size, totalPages
}

func rate(wins, count int) float64 {
	if count == 0 {
		return 0
	}
	return float64(wins) / float64(count) * 100
}

func returnOnBalance(pl, openingSum decimal.Decimal) float64 {
	if !openingSum.IsPositive() {
		return 0
	}
	v, _ := pl.Div(openingSum).Mul(hundred).Float64()
	return v
}
