package analytics_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wealthledger/internal/analytics"
	"wealthledger/internal/domain"
	"wealthledger/internal/session"
	"wealthledger/internal/testutil"
)

func newEngine(st *testutil.Store) *analytics.Engine {
	return analytics.NewEngine(st, zerolog.Nop(), nil)
}

func at(day, hour, min int) time.Time {
	return time.Date(2025, 2, day, hour, min, 0, 0, time.UTC)
}

// withOpening re-records a trade with a known opening balance, as if the
// reconstruction engine had annotated it.
func withOpening(st *testutil.Store, t *domain.Trade, opening string) *domain.Trade {
	d := decimal.RequireFromString(opening)
	t.OpeningBalance = &d
	st.RecordTrade(context.Background(), t)
	return t
}

func TestQuery_EmptySetIsAllZeros(t *testing.T) {
	st := testutil.NewStore()
	userID := uuid.New()
	acct := st.Account(userID)

	report, err := newEngine(st).Query(context.Background(), analytics.Filter{
		UserID:    userID,
		AccountID: acct.ID,
	})
	require.NoError(t, err)

	assert.Empty(t, report.Rows)
	assert.Empty(t, report.Buckets)
	assert.Equal(t, 0, report.Total)
	assert.Equal(t, 0, report.TotalPages)
	assert.Equal(t, 0, report.Stats.Count)
	assert.Zero(t, report.Stats.WinRate)
	assert.Zero(t, report.Stats.AvgReturnOnBalance)
	assert.True(t, report.Stats.TotalPL.IsZero())
}

func TestQuery_WinRateAndReturnOnBalance(t *testing.T) {
	st := testutil.NewStore()
	userID := uuid.New()
	acct := st.Account(userID)

	// Two trades, P&L +100 and -40, both with openingBalance 1000:
	// winRate = 50%, avgReturnOnBalance = 60/2000*100 = 3%.
	e1, e2 := at(1, 10, 0), at(2, 10, 0)
	withOpening(st, st.ClosedTrade(acct.ID, "EURUSD", domain.DirectionLong, &e1, "100", "0"), "1000")
	withOpening(st, st.ClosedTrade(acct.ID, "GBPUSD", domain.DirectionShort, &e2, "-40", "0"), "1000")

	report, err := newEngine(st).Query(context.Background(), analytics.Filter{
		UserID:    userID,
		AccountID: acct.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Stats.Count)
	assert.InDelta(t, 50.0, report.Stats.WinRate, 1e-9)
	assert.InDelta(t, 3.0, report.Stats.AvgReturnOnBalance, 1e-9)
	assert.True(t, report.Stats.TotalPL.Equal(decimal.NewFromInt(60)))

	// Long/short breakdown.
	assert.Equal(t, 1, report.Stats.Long.Count)
	assert.InDelta(t, 100.0, report.Stats.Long.WinRate, 1e-9)
	assert.Equal(t, 1, report.Stats.Short.Count)
	assert.Zero(t, report.Stats.Short.WinRate)
}

func TestQuery_NoUsableOpeningBalanceYieldsZeroNotNaN(t *testing.T) {
	st := testutil.NewStore()
	userID := uuid.New()
	acct := st.Account(userID)

	e := at(1, 10, 0)
	st.ClosedTrade(acct.ID, "EURUSD", domain.DirectionLong, &e, "100", "0")

	report, err := newEngine(st).Query(context.Background(), analytics.Filter{
		UserID:    userID,
		AccountID: acct.ID,
	})
	require.NoError(t, err)

	assert.Zero(t, report.Stats.AvgReturnOnBalance)
	require.Len(t, report.Rows, 1)
	assert.Nil(t, report.Rows[0].ActualPct, "actual pct is undefined without opening balance")
}

func TestQuery_SessionFilter(t *testing.T) {
	st := testutil.NewStore()
	userID := uuid.New()
	acct := st.Account(userID)

	usEntry := at(1, 16, 0)  // 16:00 UTC falls in the US window
	offEntry := at(1, 13, 0) // 13:00 UTC is off-hours
	usTrade := st.ClosedTrade(acct.ID, "EURUSD", domain.DirectionLong, &usEntry, "10", "0")
	st.ClosedTrade(acct.ID, "GBPUSD", domain.DirectionLong, &offEntry, "20", "0")

	us := session.US
	report, err := newEngine(st).Query(context.Background(), analytics.Filter{
		UserID:    userID,
		AccountID: acct.ID,
		Session:   &us,
	})
	require.NoError(t, err)

	require.Len(t, report.Rows, 1)
	assert.Equal(t, usTrade.ID, report.Rows[0].ID)
	assert.Equal(t, "US", report.Rows[0].Session)
	// The off-hours trade contributes to nothing.
	assert.Equal(t, 1, report.Stats.Count)
	assert.True(t, report.Stats.TotalPL.Equal(decimal.NewFromInt(10)))
}

func TestQuery_StatsIndependentOfPagination(t *testing.T) {
	st := testutil.NewStore()
	userID := uuid.New()
	acct := st.Account(userID)

	for i := 0; i < 25; i++ {
		e := at(1+i%27, 10, 0)
		pl := "10"
		if i%3 == 0 {
			pl = "-5"
		}
		withOpening(st, st.ClosedTrade(acct.ID, "EURUSD", domain.DirectionLong, &e, pl, "1"), "1000")
	}

	eng := newEngine(st)
	base, err := eng.Query(context.Background(), analytics.Filter{
		UserID: userID, AccountID: acct.ID, Page: 1, Size: 10,
	})
	require.NoError(t, err)

	for _, pg := range []struct{ page, size int }{{2, 10}, {3, 10}, {1, 7}, {5, 3}, {99, 10}} {
		got, err := eng.Query(context.Background(), analytics.Filter{
			UserID: userID, AccountID: acct.ID, Page: pg.page, Size: pg.size,
		})
		require.NoError(t, err)
		assert.Equal(t, base.Stats, got.Stats, "globalStats must not depend on page/size")
		assert.Equal(t, base.Buckets, got.Buckets, "buckets must not depend on page/size")
		assert.Equal(t, base.Total, got.Total)
	}

	assert.Equal(t, 25, base.Total)
	assert.Equal(t, 3, base.TotalPages)
	assert.Len(t, base.Rows, 10)
}

func TestQuery_PaginationSlices(t *testing.T) {
	st := testutil.NewStore()
	userID := uuid.New()
	acct := st.Account(userID)

	for i := 0; i < 12; i++ {
		e := at(1, 10, i)
		st.ClosedTrade(acct.ID, "EURUSD", domain.DirectionLong, &e, "1", "0")
	}

	eng := newEngine(st)

	// Default size is 10.
	first, err := eng.Query(context.Background(), analytics.Filter{UserID: userID, AccountID: acct.ID})
	require.NoError(t, err)
	assert.Len(t, first.Rows, 10)
	assert.Equal(t, 10, first.Size)
	assert.Equal(t, 1, first.Page)
	assert.Equal(t, 2, first.TotalPages)

	second, err := eng.Query(context.Background(), analytics.Filter{
		UserID: userID, AccountID: acct.ID, Page: 2,
	})
	require.NoError(t, err)
	assert.Len(t, second.Rows, 2)

	// A page past the end is empty but keeps totals.
	far, err := eng.Query(context.Background(), analytics.Filter{
		UserID: userID, AccountID: acct.ID, Page: 7,
	})
	require.NoError(t, err)
	assert.Empty(t, far.Rows)
	assert.Equal(t, 12, far.Total)
}

func TestQuery_GroupByMonthAndDirection(t *testing.T) {
	st := testutil.NewStore()
	userID := uuid.New()
	acct := st.Account(userID)

	jan := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	feb1 := time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC)
	feb2 := time.Date(2025, 2, 20, 10, 0, 0, 0, time.UTC)
	withOpening(st, st.ClosedTrade(acct.ID, "EURUSD", domain.DirectionLong, &jan, "100", "0"), "1000")
	withOpening(st, st.ClosedTrade(acct.ID, "EURUSD", domain.DirectionLong, &feb1, "-20", "0"), "1000")
	withOpening(st, st.ClosedTrade(acct.ID, "GBPUSD", domain.DirectionShort, &feb2, "60", "0"), "1000")

	eng := newEngine(st)

	byMonth, err := eng.Query(context.Background(), analytics.Filter{
		UserID: userID, AccountID: acct.ID, GroupBy: analytics.GroupByMonth,
	})
	require.NoError(t, err)
	require.Len(t, byMonth.Buckets, 2)
	assert.Equal(t, "2025-01", byMonth.Buckets[0].Key)
	assert.Equal(t, 1, byMonth.Buckets[0].Count)
	assert.InDelta(t, 10.0, byMonth.Buckets[0].AvgReturnOnBalance, 1e-9)
	assert.Equal(t, "2025-02", byMonth.Buckets[1].Key)
	assert.Equal(t, 2, byMonth.Buckets[1].Count)
	assert.True(t, byMonth.Buckets[1].GrossPL.Equal(decimal.NewFromInt(40)))
	assert.InDelta(t, 50.0, byMonth.Buckets[1].WinRate, 1e-9)

	byDir, err := eng.Query(context.Background(), analytics.Filter{
		UserID: userID, AccountID: acct.ID, GroupBy: analytics.GroupByDirection,
	})
	require.NoError(t, err)
	require.Len(t, byDir.Buckets, 2)
	assert.Equal(t, "LONG", byDir.Buckets[0].Key)
	assert.Equal(t, "SHORT", byDir.Buckets[1].Key)
	assert.Equal(t, 2, byDir.Buckets[0].Count)
}

func TestQuery_FilterClauses(t *testing.T) {
	st := testutil.NewStore()
	userID := uuid.New()
	acct := st.Account(userID)

	e1, e2 := at(1, 10, 0), at(10, 10, 0)
	match := st.ClosedTrade(acct.ID, "EURUSD", domain.DirectionLong, &e1, "10", "0")
	match.Pattern = "breakout"
	match.Lots = decimal.NewFromInt(2)
	pct := 5.0
	match.PctGain = &pct
	st.RecordTrade(context.Background(), match)

	other := st.ClosedTrade(acct.ID, "USDJPY", domain.DirectionShort, &e2, "20", "0")
	other.Lots = decimal.NewFromInt(10)
	st.RecordTrade(context.Background(), other)

	eng := newEngine(st)
	long := domain.DirectionLong
	minLots := decimal.NewFromInt(1)
	maxLots := decimal.NewFromInt(5)
	minPct, maxPct := 1.0, 10.0
	from := at(1, 0, 0)
	to := at(5, 0, 0)

	report, err := eng.Query(context.Background(), analytics.Filter{
		UserID:     userID,
		AccountID:  acct.ID,
		Instrument: "eur",
		Pattern:    "breakout",
		Direction:  &long,
		From:       &from,
		To:         &to,
		MinLots:    &minLots,
		MaxLots:    &maxLots,
		MinPct:     &minPct,
		MaxPct:     &maxPct,
	})
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, match.ID, report.Rows[0].ID)

	// The lot range alone excludes the matching trade's sibling.
	bigLots := decimal.NewFromInt(6)
	report, err = eng.Query(context.Background(), analytics.Filter{
		UserID: userID, AccountID: acct.ID, MinLots: &bigLots,
	})
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, other.ID, report.Rows[0].ID)
}

func TestQuery_ActualPctGain(t *testing.T) {
	st := testutil.NewStore()
	userID := uuid.New()
	acct := st.Account(userID)

	e := at(1, 10, 0)
	withOpening(st, st.ClosedTrade(acct.ID, "EURUSD", domain.DirectionLong, &e, "50", "0"), "2000")

	report, err := newEngine(st).Query(context.Background(), analytics.Filter{
		UserID: userID, AccountID: acct.ID,
	})
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	require.NotNil(t, report.Rows[0].ActualPct)
	assert.InDelta(t, 2.5, *report.Rows[0].ActualPct, 1e-9)
}

func TestQuery_OnlyClosedFXTradesParticipate(t *testing.T) {
	st := testutil.NewStore()
	userID := uuid.New()
	acct := st.Account(userID)

	e := at(1, 10, 0)
	st.ClosedTrade(acct.ID, "EURUSD", domain.DirectionLong, &e, "10", "0")
	openTrade := st.ClosedTrade(acct.ID, "GBPUSD", domain.DirectionLong, &e, "99", "0")
	openTrade.Status = domain.StatusOpen
	st.RecordTrade(context.Background(), openTrade)
	stock := st.ClosedTrade(acct.ID, "AAPL", domain.DirectionLong, &e, "99", "0")
	stock.Kind = domain.KindStock
	st.RecordTrade(context.Background(), stock)

	report, err := newEngine(st).Query(context.Background(), analytics.Filter{
		UserID: userID, AccountID: acct.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Total)
}

func TestQuery_OwnershipAndExistence(t *testing.T) {
	st := testutil.NewStore()
	owner := uuid.New()
	acct := st.Account(owner)

	eng := newEngine(st)

	_, err := eng.Query(context.Background(), analytics.Filter{
		UserID: uuid.New(), AccountID: acct.ID,
	})
	assert.True(t, errors.Is(err, domain.ErrNotFound), "non-owner must see not found, got %v", err)

	_, err = eng.Query(context.Background(), analytics.Filter{
		UserID: owner, AccountID: uuid.New(),
	})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestQuery_StoreReadFailureAbortsWholeQuery(t *testing.T) {
	st := testutil.NewStore()
	userID := uuid.New()
	acct := st.Account(userID)
	st.ListErr = errors.New("store down")

	_, err := newEngine(st).Query(context.Background(), analytics.Filter{
		UserID: userID, AccountID: acct.ID,
	})
	assert.Error(t, err)
}
