package model

import "encoding/json"

// Session names a trading window with a single close per day.
type Session string

const (
	SessionAM Session = "AM"
	SessionPM Session = "PM"
)

// HistoryRecord is a closed session's final snapshot. Once appended it is never changed.
type HistoryRecord struct {
	Session  Session
	ClosedOn string // civil date of the close, DateLayout
	Snapshot
}

type historyRecordJSON struct {
	Session  Session `json:"session"`
	ClosedOn string  `json:"closed_on,omitempty"`
	Date     string  `json:"date"`
	Time     string  `json:"time"`
	Set      string  `json:"set"`
	Value    string  `json:"value"`
	TwoD     string  `json:"twod"`
}

// MarshalJSON writes the snapshot fields inline next to the session tag.
func (r HistoryRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(historyRecordJSON{
		Session:  r.Session,
		ClosedOn: r.ClosedOn,
		Date:     r.Date,
		Time:     r.Time,
		Set:      r.Set,
		Value:    r.Value,
		TwoD:     r.TwoD,
	})
}

// UnmarshalJSON accepts records without closed_on, taking it from the snapshot date.
func (r *HistoryRecord) UnmarshalJSON(data []byte) error {
	var raw historyRecordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = HistoryRecord{
		Session:  raw.Session,
		ClosedOn: raw.ClosedOn,
		Snapshot: Snapshot{Date: raw.Date, Time: raw.Time, Set: raw.Set, Value: raw.Value, TwoD: raw.TwoD},
	}
	if r.ClosedOn == "" {
		r.ClosedOn = raw.Date
	}
	return nil
}
