package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"TwoDSentinel/internal/collector"
	"TwoDSentinel/internal/model"
	"TwoDSentinel/internal/recorder"
)

// DefaultFetchTimeout bounds a single quote fetch.
const DefaultFetchTimeout = 8 * time.Second

// Guards record the day each once-per-day action last ran.
// A guard counts as done only when it equals today.
type Guards struct {
	ResetOn   Day
	AMSavedOn Day
	PMSavedOn Day
}

// View is the immutable state published to readers after every step.
type View struct {
	AM        model.Snapshot
	PM        model.Snapshot
	Guards    Guards
	UpdatedAt time.Time
}

// Outcome describes what a single step did.
type Outcome struct {
	Window      Window
	Reset       bool
	Fetched     model.Session // empty when no fetch ran
	FetchErr    error
	Closed      []model.HistoryRecord // records appended this step
	ClosedEmpty []model.Session       // sessions closed with nothing to save
	PersistErr  error
}

// Machine applies the daily session rules. Step and Tick must be called from a
// single goroutine; Current may be called from anywhere.
type Machine struct {
	source       collector.Source
	history      recorder.HistoryLog
	clock        Clock
	logger       *logrus.Logger
	fetchTimeout time.Duration

	am     model.Snapshot
	pm     model.Snapshot
	guards Guards

	view atomic.Pointer[View]
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithFetchTimeout bounds each quote fetch.
func WithFetchTimeout(d time.Duration) MachineOption {
	return func(m *Machine) {
		if d > 0 {
			m.fetchTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logrus.Logger) MachineOption {
	return func(m *Machine) {
		m.logger = logger
	}
}

// NewMachine creates a machine with both sessions at the placeholder.
func NewMachine(source collector.Source, history recorder.HistoryLog, clock Clock, opts ...MachineOption) *Machine {
	m := &Machine{
		source:       source,
		history:      history,
		clock:        clock,
		logger:       logrus.StandardLogger(),
		fetchTimeout: DefaultFetchTimeout,
		am:           model.Placeholder(),
		pm:           model.Placeholder(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.publish(clock.Now())
	return m
}

// Current returns the last published view.
func (m *Machine) Current() View {
	return *m.view.Load()
}

// Restore rebuilds today's closed sessions from history, so a restart after a
// close keeps the frozen snapshot and does not save the session again.
func (m *Machine) Restore(records []model.HistoryRecord, now time.Time) {
	today := DayOf(now)
	key := today.String()

	var lastAM, lastPM *model.HistoryRecord
	for i := range records {
		switch records[i].Session {
		case model.SessionAM:
			lastAM = &records[i]
		case model.SessionPM:
			lastPM = &records[i]
		}
	}
	if lastAM != nil && lastAM.ClosedOn == key {
		m.am = lastAM.Snapshot
		m.guards.AMSavedOn = today
		m.logger.Infof("restored AM %s for %s", lastAM.TwoD, key)
	}
	if lastPM != nil && lastPM.ClosedOn == key {
		m.pm = lastPM.Snapshot
		m.guards.PMSavedOn = today
		m.logger.Infof("restored PM %s for %s", lastPM.TwoD, key)
	}
	m.publish(now)
}

// Tick runs one step at the clock's current time.
func (m *Machine) Tick(ctx context.Context) Outcome {
	return m.Step(ctx, m.clock.Now())
}

// Step applies the rules for instant now, which must be in the business time zone.
func (m *Machine) Step(ctx context.Context, now time.Time) Outcome {
	today := DayOf(now)
	tod := TimeOfDayOf(now)
	out := Outcome{Window: Classify(tod)}

	if out.Window == WindowReset && m.guards.ResetOn != today {
		m.am = model.Placeholder()
		m.pm = model.Placeholder()
		m.guards.ResetOn = today
		out.Reset = true
		m.logger.Infof("reset placeholders for %s", today)
	}

	if out.Window == WindowAM {
		m.am, out.FetchErr = m.fetch(ctx, now)
		m.pm = model.Placeholder()
		out.Fetched = model.SessionAM
	}

	if tod >= AMClose && m.guards.AMSavedOn != today {
		m.closeSession(model.SessionAM, today, m.am, &out)
		m.guards.AMSavedOn = today
	}

	if out.Window == WindowPM {
		m.pm, out.FetchErr = m.fetch(ctx, now)
		out.Fetched = model.SessionPM
	}

	if tod >= PMClose && m.guards.PMSavedOn != today {
		m.closeSession(model.SessionPM, today, m.pm, &out)
		m.guards.PMSavedOn = today
	}

	m.publish(now)
	return out
}

// fetch never fails outward: an error degrades to a placeholder stamped with now.
func (m *Machine) fetch(ctx context.Context, now time.Time) (model.Snapshot, error) {
	fctx, cancel := context.WithTimeout(ctx, m.fetchTimeout)
	defer cancel()

	snap, err := m.source.Fetch(fctx)
	if err != nil {
		m.logger.Debugf("fetch from %s failed: %v", m.source.Name(), err)
		return model.FailedAt(now), err
	}
	return snap, nil
}

// closeSession appends the session's snapshot unless it is a placeholder.
// The caller sets the guard whatever happens here.
func (m *Machine) closeSession(session model.Session, today Day, snap model.Snapshot, out *Outcome) {
	if snap.IsPlaceholder() {
		out.ClosedEmpty = append(out.ClosedEmpty, session)
		m.logger.Warnf("%s closed for %s with no data, nothing saved", session, today)
		return
	}
	rec := model.HistoryRecord{Session: session, ClosedOn: today.String(), Snapshot: snap}
	if err := m.history.Append(&rec); err != nil {
		out.PersistErr = err
		m.logger.Errorf("save %s history for %s: %v", session, today, err)
		return
	}
	out.Closed = append(out.Closed, rec)
	m.logger.Infof("%s saved to history for %s: %s", session, today, snap.TwoD)
}

func (m *Machine) publish(now time.Time) {
	m.view.Store(&View{AM: m.am, PM: m.pm, Guards: m.guards, UpdatedAt: now})
}
