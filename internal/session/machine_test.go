package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TwoDSentinel/internal/collector"
	"TwoDSentinel/internal/model"
	"TwoDSentinel/internal/recorder"
)

var yangon = time.FixedZone("MMT", 6*3600+1800)

// scriptedSource returns numbered snapshots, or fails while failing is set.
type scriptedSource struct {
	calls   int
	failing bool
}

func (s *scriptedSource) Name() string { return "scripted" }

func (s *scriptedSource) Fetch(_ context.Context) (model.Snapshot, error) {
	s.calls++
	if s.failing {
		return model.Snapshot{}, fmt.Errorf("%w: scripted failure", collector.ErrQuote)
	}
	return model.Snapshot{
		Date:  "2025-03-04",
		Time:  fmt.Sprintf("call-%d", s.calls),
		Set:   "1,234.56",
		Value: fmt.Sprintf("%d", s.calls),
		TwoD:  fmt.Sprintf("6%d", s.calls%10),
	}, nil
}

type brokenHistory struct {
	recorder.MemoryRecorder
	appends int
}

func (b *brokenHistory) Append(_ *model.HistoryRecord) error {
	b.appends++
	return errors.New("disk full")
}

func at(day, h, m, s int) time.Time {
	return time.Date(2025, 3, day, h, m, s, 0, yangon)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func newTestMachine(src collector.Source, h recorder.HistoryLog) *Machine {
	clock := ClockFunc(func() time.Time { return at(4, 0, 0, 0) })
	return NewMachine(src, h, clock, WithLogger(quietLogger()))
}

func readAll(t *testing.T, h recorder.HistoryLog) []model.HistoryRecord {
	t.Helper()
	recs, err := h.ReadAll()
	require.NoError(t, err)
	return recs
}

func TestMachine_StartsAtPlaceholder(t *testing.T) {
	m := newTestMachine(&scriptedSource{}, recorder.NewMemoryRecorder())
	v := m.Current()
	assert.Equal(t, model.Placeholder(), v.AM)
	assert.Equal(t, model.Placeholder(), v.PM)
}

func TestMachine_ResetOncePerDay(t *testing.T) {
	src := &scriptedSource{}
	m := newTestMachine(src, recorder.NewMemoryRecorder())

	// Carry a real AM from the previous afternoon.
	m.Step(context.Background(), at(3, 11, 0, 0))
	require.False(t, m.Current().AM.IsPlaceholder())

	out := m.Step(context.Background(), at(4, 8, 50, 0))
	assert.True(t, out.Reset)
	assert.Equal(t, model.Placeholder(), m.Current().AM)
	assert.Equal(t, Day{2025, time.March, 4}, m.Current().Guards.ResetOn)

	again := m.Step(context.Background(), at(4, 8, 55, 0))
	assert.False(t, again.Reset)

	next := m.Step(context.Background(), at(5, 8, 51, 0))
	assert.True(t, next.Reset)
	assert.Equal(t, 1, src.calls, "reset window must not fetch")
}

func TestMachine_ResetSecondCallIsNoOp(t *testing.T) {
	m := newTestMachine(&scriptedSource{}, recorder.NewMemoryRecorder())
	m.Step(context.Background(), at(4, 8, 50, 0))
	first := m.Current()

	// Anything written between two reset-window ticks must survive the second one.
	m.am = model.Snapshot{Date: "2025-03-04", Time: "08:52:00", Set: "x", Value: "y", TwoD: "12"}
	out := m.Step(context.Background(), at(4, 8, 59, 59))

	assert.False(t, out.Reset)
	assert.Equal(t, "12", m.Current().AM.TwoD)
	assert.Equal(t, first.Guards, m.Current().Guards)
}

func TestMachine_AMScenario(t *testing.T) {
	src := &scriptedSource{}
	h := recorder.NewMemoryRecorder()
	m := newTestMachine(src, h)
	ctx := context.Background()

	m.Step(ctx, at(4, 8, 50, 0))
	assert.Equal(t, model.Placeholder(), m.Current().AM)
	assert.Equal(t, model.Placeholder(), m.Current().PM)

	var last model.Snapshot
	for i := 0; i < 20; i++ {
		out := m.Step(ctx, at(4, 9, 0, 0).Add(time.Duration(i)*time.Minute))
		require.Equal(t, model.SessionAM, out.Fetched)
		require.NoError(t, out.FetchErr)
		last = m.Current().AM
		assert.Equal(t, model.Placeholder(), m.Current().PM, "PM stays placeholder during AM")
	}
	assert.Equal(t, 20, src.calls)
	assert.Equal(t, "call-20", last.Time)

	out := m.Step(ctx, at(4, 12, 1, 5))
	require.Len(t, out.Closed, 1)
	assert.Equal(t, 20, src.calls, "no fetch after the AM close")

	recs := readAll(t, h)
	require.Len(t, recs, 1)
	assert.Equal(t, model.SessionAM, recs[0].Session)
	assert.Equal(t, "2025-03-04", recs[0].ClosedOn)
	assert.Equal(t, last, recs[0].Snapshot)

	for _, ts := range []time.Time{at(4, 12, 5, 0), at(4, 12, 30, 0), at(4, 12, 59, 0)} {
		out := m.Step(ctx, ts)
		assert.Empty(t, out.Closed)
	}
	assert.Len(t, readAll(t, h), 1)
	assert.Equal(t, Day{2025, time.March, 4}, m.Current().Guards.AMSavedOn)
}

func TestMachine_AMSavedAtMostOnce(t *testing.T) {
	h := recorder.NewMemoryRecorder()
	m := newTestMachine(&scriptedSource{}, h)
	ctx := context.Background()

	m.Step(ctx, at(4, 11, 59, 0))
	for s := 0; s < 600; s++ {
		m.Step(ctx, at(4, 12, 1, 0).Add(time.Duration(s)*time.Second))
	}
	assert.Len(t, readAll(t, h), 1)
}

func TestMachine_CloseOvershootFiresOnce(t *testing.T) {
	h := recorder.NewMemoryRecorder()
	m := newTestMachine(&scriptedSource{}, h)
	ctx := context.Background()

	m.Step(ctx, at(4, 12, 0, 58))
	// Tick period overshoots the boundary by several seconds.
	out := m.Step(ctx, at(4, 12, 1, 3))
	require.Len(t, out.Closed, 1)
	out = m.Step(ctx, at(4, 12, 1, 8))
	assert.Empty(t, out.Closed)
	assert.Len(t, readAll(t, h), 1)
}

func TestMachine_AMFrozenThroughPM(t *testing.T) {
	src := &scriptedSource{}
	h := recorder.NewMemoryRecorder()
	m := newTestMachine(src, h)
	ctx := context.Background()

	m.Step(ctx, at(4, 8, 50, 0))
	m.Step(ctx, at(4, 12, 0, 0))
	frozen := m.Current().AM

	for _, ts := range []time.Time{
		at(4, 12, 1, 0), at(4, 12, 45, 0),
		at(4, 13, 0, 0), at(4, 14, 0, 0), at(4, 16, 30, 0),
		at(4, 18, 0, 0), at(4, 23, 59, 59),
		at(5, 0, 0, 0), at(5, 8, 49, 59),
	} {
		m.Step(ctx, ts)
		assert.Equal(t, frozen, m.Current().AM, "AM changed at %s", ts.Format(time.TimeOnly))
	}

	m.Step(ctx, at(5, 8, 50, 0))
	assert.Equal(t, model.Placeholder(), m.Current().AM)
}

func TestMachine_AMFailingAllMorning(t *testing.T) {
	src := &scriptedSource{failing: true}
	h := recorder.NewMemoryRecorder()
	m := newTestMachine(src, h)
	ctx := context.Background()

	m.Step(ctx, at(4, 8, 50, 0))
	for ts := at(4, 9, 0, 0); ts.Before(at(4, 12, 1, 0)); ts = ts.Add(15 * time.Minute) {
		out := m.Step(ctx, ts)
		require.Error(t, out.FetchErr)
		assert.True(t, errors.Is(out.FetchErr, collector.ErrQuote))
		am := m.Current().AM
		assert.True(t, am.IsPlaceholder())
		assert.Equal(t, ts.Format(model.TimeLayout), am.Time)
	}

	out := m.Step(ctx, at(4, 12, 1, 1))
	assert.Empty(t, out.Closed)
	assert.Equal(t, []model.Session{model.SessionAM}, out.ClosedEmpty)
	assert.Empty(t, readAll(t, h))
	assert.Equal(t, Day{2025, time.March, 4}, m.Current().Guards.AMSavedOn)

	// Guard holds: a late success the same day is never saved as AM.
	src.failing = false
	out = m.Step(ctx, at(4, 12, 30, 0))
	assert.Empty(t, out.ClosedEmpty)
	assert.Empty(t, readAll(t, h))
}

func TestMachine_PMFailingWholeWindow(t *testing.T) {
	src := &scriptedSource{}
	h := recorder.NewMemoryRecorder()
	m := newTestMachine(src, h)
	ctx := context.Background()

	m.Step(ctx, at(4, 8, 50, 0))
	m.Step(ctx, at(4, 11, 0, 0))
	m.Step(ctx, at(4, 12, 1, 0))
	require.Len(t, readAll(t, h), 1)
	am := m.Current().AM

	src.failing = true
	for ts := at(4, 13, 0, 0); !ts.After(at(4, 16, 29, 0)); ts = ts.Add(30 * time.Minute) {
		m.Step(ctx, ts)
	}
	out := m.Step(ctx, at(4, 16, 30, 0))
	assert.Equal(t, model.SessionPM, out.Fetched)
	assert.Equal(t, []model.Session{model.SessionPM}, out.ClosedEmpty)

	v := m.Current()
	assert.True(t, v.PM.IsPlaceholder())
	assert.Equal(t, "16:30:00", v.PM.Time)
	assert.Equal(t, am, v.AM, "AM is not cleared during PM")
	assert.Equal(t, Day{2025, time.March, 4}, v.Guards.PMSavedOn)
	assert.Len(t, readAll(t, h), 1)
}

func TestMachine_PMSavedAtClose(t *testing.T) {
	src := &scriptedSource{}
	h := recorder.NewMemoryRecorder()
	m := newTestMachine(src, h)
	ctx := context.Background()

	m.Step(ctx, at(4, 13, 0, 0))
	out := m.Step(ctx, at(4, 16, 30, 0))
	require.Len(t, out.Closed, 1)
	assert.Equal(t, model.SessionPM, out.Closed[0].Session)
	assert.Equal(t, "call-2", out.Closed[0].Time, "fetch at 16:30:00 lands before the save")

	m.Step(ctx, at(4, 16, 30, 1))
	m.Step(ctx, at(4, 20, 0, 0))
	recs := readAll(t, h)
	// The AM guard fires with a placeholder at 13:00, so only PM is saved.
	require.Len(t, recs, 1)
	assert.Equal(t, model.SessionPM, recs[0].Session)
	assert.Equal(t, 2, src.calls)
}

func TestMachine_PersistFailureStillSetsGuard(t *testing.T) {
	h := &brokenHistory{}
	m := newTestMachine(&scriptedSource{}, h)
	ctx := context.Background()

	m.Step(ctx, at(4, 11, 0, 0))
	out := m.Step(ctx, at(4, 12, 1, 0))
	require.Error(t, out.PersistErr)
	assert.Empty(t, out.Closed)

	for s := 1; s <= 30; s++ {
		m.Step(ctx, at(4, 12, 1, s))
	}
	assert.Equal(t, 1, h.appends, "no retry storm after a failed save")
	assert.Equal(t, Day{2025, time.March, 4}, m.Current().Guards.AMSavedOn)
}

func TestMachine_NextDaySavesAgain(t *testing.T) {
	h := recorder.NewMemoryRecorder()
	m := newTestMachine(&scriptedSource{}, h)
	ctx := context.Background()

	for _, day := range []int{4, 5} {
		m.Step(ctx, at(day, 8, 50, 0))
		m.Step(ctx, at(day, 10, 0, 0))
		m.Step(ctx, at(day, 12, 1, 0))
		m.Step(ctx, at(day, 14, 0, 0))
		m.Step(ctx, at(day, 16, 30, 0))
	}
	recs := readAll(t, h)
	require.Len(t, recs, 4)
	assert.Equal(t, "2025-03-04", recs[0].ClosedOn)
	assert.Equal(t, model.SessionPM, recs[1].Session)
	assert.Equal(t, "2025-03-05", recs[2].ClosedOn)
	assert.Equal(t, model.SessionAM, recs[2].Session)
}

func TestMachine_RestoreTodayOnly(t *testing.T) {
	h := recorder.NewMemoryRecorder()
	m := newTestMachine(&scriptedSource{}, h)

	yesterdayPM := model.HistoryRecord{Session: model.SessionPM, ClosedOn: "2025-03-03",
		Snapshot: model.Snapshot{Date: "2025-03-03", Time: "16:30:00", Set: "1", Value: "1", TwoD: "11"}}
	todayAM := model.HistoryRecord{Session: model.SessionAM, ClosedOn: "2025-03-04",
		Snapshot: model.Snapshot{Date: "2025-03-04", Time: "12:00:59", Set: "2", Value: "2", TwoD: "22"}}

	m.Restore([]model.HistoryRecord{yesterdayPM, todayAM}, at(4, 12, 30, 0))

	v := m.Current()
	assert.Equal(t, todayAM.Snapshot, v.AM)
	assert.Equal(t, model.Placeholder(), v.PM)
	assert.Equal(t, Day{2025, time.March, 4}, v.Guards.AMSavedOn)
	assert.True(t, v.Guards.PMSavedOn.IsZero())

	out := m.Step(context.Background(), at(4, 12, 31, 0))
	assert.Empty(t, out.Closed)
	assert.Empty(t, out.ClosedEmpty)
	assert.Empty(t, readAll(t, h))
}

type slowSource struct{}

func (slowSource) Name() string { return "slow" }

func (slowSource) Fetch(ctx context.Context) (model.Snapshot, error) {
	<-ctx.Done()
	return model.Snapshot{}, fmt.Errorf("%w: %w", collector.ErrQuote, ctx.Err())
}

func TestMachine_FetchTimeoutBounded(t *testing.T) {
	clock := ClockFunc(func() time.Time { return at(4, 10, 0, 0) })
	m := NewMachine(slowSource{}, recorder.NewMemoryRecorder(), clock,
		WithLogger(quietLogger()), WithFetchTimeout(30*time.Millisecond))

	start := time.Now()
	out := m.Tick(context.Background())
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, errors.Is(out.FetchErr, context.DeadlineExceeded))
	assert.Equal(t, "10:00:00", m.Current().AM.Time)
	assert.True(t, m.Current().AM.IsPlaceholder())
}
