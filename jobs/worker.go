package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"plotstation/logging"
	"plotstation/notify"
	"plotstation/types"
)

// Worker drains the mailbox and drives the plotter, one job at a time.
type Worker struct {
	mailbox  *Mailbox
	plotter  Plotter
	notifier notify.Notifier
	poll     time.Duration
}

func NewWorker(mailbox *Mailbox, plotter Plotter, notifier notify.Notifier, poll time.Duration) *Worker {
	if notifier == nil {
		notifier = notify.None{}
	}
	return &Worker{
		mailbox:  mailbox,
		plotter:  plotter,
		notifier: notifier,
		poll:     poll,
	}
}

// Run polls the mailbox until ctx is done. A job that has started always
// runs to completion; ctx is only checked between jobs.
func (w *Worker) Run(ctx context.Context) {
	logging.Info("worker", "worker started, polling every %v", w.poll)
	for {
		if w.Step(ctx) {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		select {
		case <-ctx.Done():
			logging.Info("worker", "worker stopped")
			return
		case <-time.After(w.poll):
		}
	}
}

// Step runs the held job, if any, and reports whether it did.
func (w *Worker) Step(ctx context.Context) bool {
	job, ok := w.mailbox.Claim()
	if !ok {
		return false
	}

	logging.Info("worker", "plotting %s (%s)", job.Label, job.Path)
	start := time.Now()
	result, err := w.plotter.Plot(context.WithoutCancel(ctx), job)

	status := types.JobDone
	var errMsg string
	switch {
	case err != nil:
		status = types.JobFailed
		errMsg = err.Error()
	case result.Failed():
		status = types.JobFailed
		errMsg = fmt.Sprintf("%d commands rejected: %s", len(result.Errors), strings.Join(result.Errors, "; "))
	}

	finished, _ := w.mailbox.Finish(status, result.Sent, errMsg)
	if status == types.JobFailed {
		logging.Error("worker", "%s failed after %v: %s", job.Label, time.Since(start).Round(time.Millisecond), errMsg)
	} else {
		logging.Info("worker", "%s done: %d lines in %v", job.Label, result.Sent, time.Since(start).Round(time.Millisecond))
	}

	if err := w.notifier.Notify(finished); err != nil {
		logging.Warn("worker", "notify: %v", err)
	}
	return true
}
