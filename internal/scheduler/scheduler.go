// Package scheduler provides cron-based background jobs for FormVoice,
// such as the periodic pruning of stale drafts.
package scheduler

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultPruneSchedule runs maintenance jobs nightly at 03:00.
const DefaultPruneSchedule = "0 3 * * *"

// DraftPruner removes drafts not updated since a cutoff.
type DraftPruner interface {
	PruneDrafts(cutoff time.Time) (int, error)
}

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a cron scheduler.
func NewScheduler() *Scheduler {
	// Standard 5-field cron parser (min, hour, dom, month, dow) with panic
	// recovery around jobs.
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a task using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	return err
}

// AddDraftPruneJob schedules periodic removal of drafts older than the
// retention window.
func (s *Scheduler) AddDraftPruneJob(expr string, pruner DraftPruner, retention time.Duration) error {
	return s.AddJob(expr, func() {
		cutoff := time.Now().Add(-retention)
		pruned, err := pruner.PruneDrafts(cutoff)
		if err != nil {
			slog.Error("Scheduler draft prune failed", "error", err)
			return
		}
		if pruned > 0 {
			slog.Info("Scheduler pruned stale drafts", "pruned", pruned, "retention", retention)
		}
	})
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
