// Package session classifies UTC timestamps into trading sessions used to
// bucket trades for analytics.
package session

import "time"

// Session is a UTC time-of-day classification.
type Session string

const (
	London   Session = "London"
	US       Session = "US"
	OffHours Session = "Off-hours"
)

// NoTimestamp is the label for trades without an entry timestamp.
const NoTimestamp = "N/A"

const (
	usOpenMinute  = 15*60 + 30 // 15:30 UTC
	usCloseMinute = 18*60 + 30 // 18:30 UTC
)

// Classify maps a timestamp to its trading session. The London window is
// [09:00, 12:00) UTC, the US window [15:30, 18:30) UTC; everything else,
// including the [12:00, 15:30) gap, is Off-hours. Total and pure.
func Classify(t time.Time) Session {
	u := t.UTC()
	h := u.Hour()
	if h >= 9 && h < 12 {
		return London
	}
	m := h*60 + u.Minute()
	if m >= usOpenMinute && m < usCloseMinute {
		return US
	}
	return OffHours
}

// Label classifies an optional timestamp, mapping nil to NoTimestamp.
func Label(t *time.Time) string {
	if t == nil {
		return NoTimestamp
	}
	return string(Classify(*t))
}

// Parse maps the wire form of a session filter back to a Session.
func Parse(s string) (Session, bool) {
	switch Session(s) {
	case London, US, OffHours:
		return Session(s), true
	default:
		return "", false
	}
}
