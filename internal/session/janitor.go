package session

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultRetentionSchedule prunes the session catalog once an hour.
const DefaultRetentionSchedule = "@every 1h"

// Janitor periodically deletes session directories older than a retention
// window, driven by the same cron scheduling library used elsewhere for
// periodic background jobs.
type Janitor struct {
	cron      *cron.Cron
	store     *Store
	muninnDir string
	retention time.Duration
	logger    *slog.Logger
}

// NewJanitor builds a Janitor that prunes sessions older than retention;
// the cron schedule is passed to Start. A zero retention is not treated
// specially: every sweep then prunes all sessions started before it runs.
// cmd/muninnd does not start the janitor when retention is zero.
func NewJanitor(store *Store, muninnDir string, retention time.Duration, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		cron:      cron.New(),
		store:     store,
		muninnDir: muninnDir,
		retention: retention,
		logger:    logger,
	}
}

// Start schedules the retention job and begins running it in the
// background. Returns an error only if the cron expression is invalid.
func (j *Janitor) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultRetentionSchedule
	}
	_, err := j.cron.AddFunc(schedule, j.runOnce)
	if err != nil {
		return err
	}
	j.cron.Start()
	return nil
}

// Stop halts the background cron runner, waiting for any in-flight job to
// finish.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}

func (j *Janitor) runOnce() {
	cutoff := time.Now().Add(-j.retention)
	pruned, err := j.store.PruneOlderThan(j.muninnDir, cutoff)
	if err != nil {
		j.logger.Error("session retention sweep failed", "error", err)
		return
	}
	if len(pruned) > 0 {
		j.logger.Info("pruned expired sessions", "count", len(pruned))
	}
}
