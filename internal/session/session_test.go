package session_test

import (
	"testing"
	"time"

	"wealthledger/internal/session"
)

func at(hour, min int) time.Time {
	return time.Date(2025, 3, 14, hour, min, 0, 0, time.UTC)
}

func TestClassify_Windows(t *testing.T) {
	cases := []struct {
		name string
		ts   time.Time
		want session.Session
	}{
		{"london open", at(9, 0), session.London},
		{"london mid", at(10, 45), session.London},
		{"london last minute", at(11, 59), session.London},
		{"gap after london", at(12, 0), session.OffHours},
		{"minute before us open", at(15, 29), session.OffHours},
		{"us open", at(15, 30), session.US},
		{"us mid", at(16, 0), session.US},
		{"us last minute", at(18, 29), session.US},
		{"us close", at(18, 30), session.OffHours},
		{"late evening", at(22, 15), session.OffHours},
		{"midnight", at(0, 0), session.OffHours},
		{"early morning", at(8, 59), session.OffHours},
	}

	for _, tc := range cases {
		if got := session.Classify(tc.ts); got != tc.want {
			t.Errorf("%s: Classify(%s) = %q, want %q", tc.name, tc.ts.Format("15:04"), got, tc.want)
		}
	}
}

func TestClassify_NormalizesToUTC(t *testing.T) {
	// 11:00 in UTC+2 is 09:00 UTC, inside the London window.
	loc := time.FixedZone("UTC+2", 2*3600)
	ts := time.Date(2025, 3, 14, 11, 0, 0, 0, loc)

	if got := session.Classify(ts); got != session.London {
		t.Errorf("Classify(11:00 UTC+2) = %q, want London", got)
	}
}

func TestLabel_NilTimestamp(t *testing.T) {
	if got := session.Label(nil); got != session.NoTimestamp {
		t.Errorf("Label(nil) = %q, want %q", got, session.NoTimestamp)
	}

	ts := at(16, 0)
	if got := session.Label(&ts); got != string(session.US) {
		t.Errorf("Label(16:00) = %q, want US", got)
	}
}

func TestParse(t *testing.T) {
	for _, valid := range []string{"London", "US", "Off-hours"} {
		if _, ok := session.Parse(valid); !ok {
			t.Errorf("Parse(%q) should succeed", valid)
		}
	}
	if _, ok := session.Parse("tokyo"); ok {
		t.Error("Parse(\"tokyo\") should fail")
	}
}
