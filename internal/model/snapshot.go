package model

import "time"

// Sentinel marks a field with no real data.
const Sentinel = "--"

// Layouts used for the date and time fields of a Snapshot.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// Snapshot is one point-in-time index quote plus its two-digit code.
// Snapshots are values: replace them, never patch a field in place.
type Snapshot struct {
	Date  string `json:"date"`
	Time  string `json:"time"`
	Set   string `json:"set"`   // index level as shown upstream, e.g. "1,402.35"
	Value string `json:"value"` // traded value as shown upstream
	TwoD  string `json:"twod"`
}

// Placeholder returns a Snapshot with every field set to the sentinel.
func Placeholder() Snapshot {
	return Snapshot{Date: Sentinel, Time: Sentinel, Set: Sentinel, Value: Sentinel, TwoD: Sentinel}
}

// FailedAt returns the snapshot recorded when a fetch fails at t:
// all sentinel except the time of the attempt.
func FailedAt(t time.Time) Snapshot {
	s := Placeholder()
	s.Time = t.Format(TimeLayout)
	return s
}

// IsPlaceholder reports whether the snapshot carries no real quote.
func (s Snapshot) IsPlaceholder() bool {
	return s.Date == "" || s.Date == Sentinel
}
