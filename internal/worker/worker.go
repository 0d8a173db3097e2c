// internal/worker/worker.go

// Package worker drains the outbox in the background and purges completed tasks nightly.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/saptechnologies/sap-backend/internal/config"
)

// Outbox is the part of the outbox service the worker drives.
type Outbox interface {
	ProcessDue(ctx context.Context) (int, error)
	PurgeCompleted(ctx context.Context, olderThan time.Duration) (int64, error)
}

type Worker struct {
	outbox Outbox
	cfg    config.OutboxConfig
	cron   *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func New(outbox Outbox, cfg config.OutboxConfig) *Worker {
	logger := cron.PrintfLogger(logrus.StandardLogger())
	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		outbox: outbox,
		cfg:    cfg,
		cron: cron.New(cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start schedules the poll and purge jobs. Overlapping polls are skipped, so a slow batch never
// runs twice in parallel on one instance.
func (w *Worker) Start() error {
	interval := w.cfg.PollInterval
	if interval < time.Second {
		interval = time.Second
	}

	if _, err := w.cron.AddFunc(fmt.Sprintf("@every %s", interval), w.poll); err != nil {
		return fmt.Errorf("failed to schedule outbox poll: %w", err)
	}
	if _, err := w.cron.AddFunc("@daily", w.purge); err != nil {
		return fmt.Errorf("failed to schedule outbox purge: %w", err)
	}

	w.cron.Start()
	logrus.WithFields(logrus.Fields{
		"poll_interval": interval.String(),
		"jobs":          len(w.cron.Entries()),
	}).Info("Outbox worker started")
	return nil
}

// Stop cancels in-flight work and waits for running jobs to return.
func (w *Worker) Stop() {
	w.once.Do(func() {
		w.cancel()
		<-w.cron.Stop().Done()
		logrus.Info("Outbox worker stopped")
	})
}

// RunOnce processes due tasks until none are left or the context ends.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	total := 0
	for ctx.Err() == nil {
		n, err := w.outbox.ProcessDue(ctx)
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}

func (w *Worker) poll() {
	n, err := w.RunOnce(w.ctx)
	if err != nil {
		logrus.WithError(err).Error("Outbox poll failed")
		return
	}
	if n > 0 {
		logrus.WithField("tasks", n).Debug("Outbox tasks processed")
	}
}

func (w *Worker) purge() {
	retention := time.Duration(w.cfg.RetentionDays) * 24 * time.Hour
	if retention <= 0 {
		return
	}

	purged, err := w.outbox.PurgeCompleted(w.ctx, retention)
	if err != nil {
		logrus.WithError(err).Error("Outbox purge failed")
		return
	}
	logrus.WithField("purged", purged).Info("Completed outbox tasks purged")
}
