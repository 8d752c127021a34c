package schedsvc

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/educa/core"
)

type (
	// ReminderSender is implemented by enrollment.Service.
	ReminderSender interface {
		SendEnrollReminders(ctx context.Context, days int) (int, error)
	}

	// ReminderCounter observes the number of reminders sent by each run.
	ReminderCounter interface {
		RemindersSent(n int)
	}

	Scheduler struct {
		cron   *cron.Cron
		logger core.Logger
	}
)

func New(logger core.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger}))),
		logger: logger,
	}
}

// ScheduleReminders registers the enrollment reminder job. An empty spec disables it.
func (s *Scheduler) ScheduleReminders(conf *core.Config, sender ReminderSender, counter ReminderCounter) error {
	spec := conf.Reminders.Schedule
	if spec == "" {
		return nil
	}
	days := conf.Reminders.Days
	_, err := s.cron.AddFunc(spec, func() {
		n, err := sender.SendEnrollReminders(context.Background(), days)
		if err != nil {
			s.logger.Error(fmt.Sprintf("sending enroll reminders: %v", err), err)
			return
		}
		if counter != nil {
			counter.RemindersSent(n)
		}
	})
	return errors.Wrapf(err, "scheduling reminders %q", spec)
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// cronLogger adapts core.Logger to cron.Logger.
type cronLogger struct {
	logger core.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(fmt.Sprintf("cron: %s %v", msg, keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(fmt.Sprintf("cron: %s: %v %v", msg, err, keysAndValues), err)
}
