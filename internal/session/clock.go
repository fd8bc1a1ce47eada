package session

import (
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock time expressed as seconds since local midnight.
type TimeOfDay int

// EndOfDay is the exclusive upper bound of a day (24:00:00).
const EndOfDay TimeOfDay = 24 * 60 * 60

// At builds a TimeOfDay from hours, minutes and seconds.
func At(h, m, s int) TimeOfDay {
	return TimeOfDay(h*3600 + m*60 + s)
}

// TimeOfDayOf returns the wall-clock time of t in t's own location, truncated to the second.
func TimeOfDayOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return At(h, m, s)
}

func (d TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", int(d)/3600, int(d)%3600/60, int(d)%60)
}

// Window is a named slice of the trading day.
type Window string

const (
	WindowPreOpen   Window = "pre-open"
	WindowReset     Window = "reset"
	WindowAM        Window = "AM"
	WindowMidDay    Window = "mid-day"
	WindowPM        Window = "PM"
	WindowPostClose Window = "post-close"
)

// Interval is a half-open range [Start, End) of the day.
type Interval struct {
	Window Window
	Start  TimeOfDay
	End    TimeOfDay
}

// Contains reports whether d falls inside the interval.
func (iv Interval) Contains(d TimeOfDay) bool {
	return iv.Start <= d && d < iv.End
}

// Close boundaries. A close fires on the first tick at or after these instants.
var (
	AMClose = At(12, 1, 0)
	PMClose = At(16, 30, 0)
)

// windows must stay ordered, contiguous and cover [0, EndOfDay).
var windows = []Interval{
	{WindowPreOpen, 0, At(8, 50, 0)},
	{WindowReset, At(8, 50, 0), At(9, 0, 0)},
	{WindowAM, At(9, 0, 0), AMClose},
	{WindowMidDay, AMClose, At(13, 0, 0)},
	{WindowPM, At(13, 0, 0), At(16, 30, 1)},
	{WindowPostClose, At(16, 30, 1), EndOfDay},
}

// Windows returns a copy of the window table in day order.
func Windows() []Interval {
	out := make([]Interval, len(windows))
	copy(out, windows)
	return out
}

// Classify returns the window containing d. Values outside the day are clamped.
func Classify(d TimeOfDay) Window {
	if d < 0 {
		d = 0
	}
	for _, iv := range windows {
		if iv.Contains(d) {
			return iv.Window
		}
	}
	return WindowPostClose
}

// Day is a civil calendar date. The zero Day means "never".
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

// DayOf returns the civil date of t in t's own location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Day: d}
}

// IsZero reports whether the day was never set.
func (d Day) IsZero() bool { return d == Day{} }

func (d Day) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Clock supplies the current instant in the business time zone.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type zoneClock struct {
	loc *time.Location
}

// NewZoneClock returns a Clock reporting wall time in loc, whatever the host zone is.
func NewZoneClock(loc *time.Location) Clock {
	return zoneClock{loc: loc}
}

func (z zoneClock) Now() time.Time { return time.Now().In(z.loc) }
