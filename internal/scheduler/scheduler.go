package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"TwoDSentinel/internal/model"
	"TwoDSentinel/internal/notifier"
	"TwoDSentinel/internal/recorder"
	"TwoDSentinel/internal/session"
)

// DefaultTickSpec fires the session machine once per second.
const DefaultTickSpec = "@every 1s"

// Scheduler drives the session machine from cron and fans out close notifications.
type Scheduler struct {
	Cron     *cron.Cron
	Machine  *session.Machine
	History  recorder.HistoryLog
	Notifier *notifier.TelegramNotifier // nil disables notifications
	Logger   *logrus.Logger
	Ctx      context.Context
}

// NewScheduler creates a Scheduler whose cron runs in loc. Overlapping ticks are skipped,
// so the machine only ever sees one tick at a time.
func NewScheduler(ctx context.Context, m *session.Machine, h recorder.HistoryLog, tn *notifier.TelegramNotifier, logger *logrus.Logger, loc *time.Location) *Scheduler {
	cronLog := cron.PrintfLogger(logger)
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		Machine:  m,
		History:  h,
		Notifier: tn,
		Logger:   logger,
		Ctx:      ctx,
	}
}

// RegisterAll registers the session tick.
func (s *Scheduler) RegisterAll(tickSpec string) error {
	if tickSpec == "" {
		tickSpec = DefaultTickSpec
	}
	if _, err := s.Cron.AddFunc(tickSpec, s.tick); err != nil {
		return fmt.Errorf("register tick: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Logger.Info("scheduler started")
}

// Stop stops the cron scheduler and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.Logger.Info("scheduler stopped")
}

func (s *Scheduler) tick() {
	out := s.Machine.Tick(s.Ctx)
	s.report(out)
}

func (s *Scheduler) report(out session.Outcome) {
	if out.FetchErr != nil {
		s.Logger.WithField("session", out.Fetched).Warnf("live fetch failed: %v", out.FetchErr)
	}
	for _, rec := range out.Closed {
		s.announce(rec)
	}
	for _, sess := range out.ClosedEmpty {
		s.Logger.WithField("session", sess).Info("session closed without data")
	}
}

// announce sends the closed result off the tick goroutine.
func (s *Scheduler) announce(rec model.HistoryRecord) {
	if s.Notifier == nil {
		return
	}
	go s.trySend(notifier.FormatResult(&rec))
}

// HandleCommand answers a read-only chat command.
func (s *Scheduler) HandleCommand(command string) string {
	view := s.Machine.Current()
	switch command {
	case "/am", "AM":
		return notifier.FormatSnapshot(model.SessionAM, &view.AM)
	case "/pm", "PM":
		return notifier.FormatSnapshot(model.SessionPM, &view.PM)
	case "/history":
		records, err := s.History.ReadAll()
		if err != nil {
			s.Logger.Errorf("read history: %v", err)
			return "history is unavailable right now"
		}
		return notifier.FormatHistory(records, 10)
	case "/status":
		return notifier.FormatStatus(view.AM, view.PM, view.UpdatedAt)
	default:
		return "Available commands:\n• /am\n• /pm\n• /history\n• /status"
	}
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.Logger.Errorf("send notification: %v", err)
	}
}
