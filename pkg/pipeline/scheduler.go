package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/model"
)

// RunFunc is invoked for every completed scheduled run
type RunFunc func(report *RunReport, err error)

// Scheduler runs the full pipeline on a cron schedule. Overlapping triggers
// are skipped while a run is still in progress.
type Scheduler struct {
	manager *Manager
	scope   []model.Kind
	cron    *cron.Cron
	entry   cron.EntryID
	onRun   RunFunc
	logger  *zap.Logger
}

// cronLogger adapts zap to the cron.Logger interface
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}

// NewScheduler validates a standard five-field cron spec (descriptors such as
// @hourly are accepted) and prepares the schedule
func NewScheduler(manager *Manager, spec string, scope []model.Kind, onRun RunFunc, logger *zap.Logger) (*Scheduler, error) {
	if manager == nil {
		return nil, errors.New("manager cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}

	s := &Scheduler{
		manager: manager,
		scope:   append([]model.Kind(nil), scope...),
		onRun:   onRun,
		logger:  logger.Named("scheduler"),
	}
	cl := cronLogger{sugar: s.logger.Sugar()}
	s.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	id, err := s.cron.AddFunc(spec, s.trigger)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule %q: %w", spec, err)
	}
	s.entry = id
	return s, nil
}

func (s *Scheduler) trigger() {
	s.logger.Info("Starting scheduled run")
	report, err := s.manager.Run(context.Background(), s.scope)
	if err != nil {
		s.logger.Error("Scheduled run failed", zap.Error(err))
	}
	if s.onRun != nil {
		s.onRun(report, err)
	}
}

// Next returns when the next run is due; zero before Start
func (s *Scheduler) Next() string {
	next := s.cron.Entry(s.entry).Next
	if next.IsZero() {
		return ""
	}
	return next.Format("2006-01-02T15:04:05Z07:00")
}

// Run blocks until ctx is cancelled, then waits for an in-flight run to finish
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	s.logger.Info("Scheduler started", zap.String("next", s.Next()))

	<-ctx.Done()
	s.logger.Info("Stopping scheduler")
	<-s.cron.Stop().Done()
	return nil
}
