package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"mapsjob/internal/core/domain"
	"mapsjob/internal/core/ports"
)

// DefaultPollInterval is used when PollOptions carries no positive interval.
const DefaultPollInterval = 2 * time.Second

// FetchFunc queries the status of a job once.
type FetchFunc func(ctx context.Context, jobID string) (*ports.StatusReport, error)

// PollOptions tunes a poll loop.
type PollOptions struct {
	// Interval between fetches. Values below or equal to zero mean DefaultPollInterval.
	Interval time.Duration
	// MaxFailures is how many consecutive failed fetches end the loop. Values below 1 mean 1.
	MaxFailures int
	Logger      logrus.FieldLogger
}

func (o PollOptions) normalized() PollOptions {
	if o.Interval <= 0 {
		o.Interval = DefaultPollInterval
	}
	if o.MaxFailures < 1 {
		o.MaxFailures = 1
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	return o
}

// IsTerminal reports whether a status answer ends the job.
func IsTerminal(r *ports.StatusReport) bool {
	return r != nil && !r.Running
}

// PollUntilTerminal fetches the job status every interval until isTerminal holds for an answer,
// onUpdate asks to stop, the context is cancelled, or fetching fails MaxFailures times in a row.
//
// onUpdate sees every successful answer, including the terminal one, and returns false when the
// answer no longer belongs to a tracked job. The first fetch happens one interval after the call.
//
// Cancelling ctx stops the loop but does not abort a fetch already in flight; its answer is discarded.
//
// Returns nil once a terminal answer was handled, ctx.Err() on cancellation and a *domain.PollError
// when the failure budget is spent.
func PollUntilTerminal(
	ctx context.Context,
	jobID string,
	opts PollOptions,
	fetch FetchFunc,
	isTerminal func(*ports.StatusReport) bool,
	onUpdate func(*ports.StatusReport) bool,
) error {
	opts = opts.normalized()
	maxFailures := opts.MaxFailures
	logger := opts.Logger.WithField("job_id", jobID)
	fetchCtx := context.WithoutCancel(ctx)

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		report, err := fetch(fetchCtx, jobID)
		if ctx.Err() != nil {
			// Cancelled while the request was in flight; the answer is discarded.
			return ctx.Err()
		}
		if err != nil {
			failures++
			if failures >= maxFailures {
				return &domain.PollError{JobID: jobID, Cause: err}
			}
			logger.Warnf("status poll failed (attempt %d/%d): %v", failures, maxFailures, err)
			continue
		}
		failures = 0

		if !onUpdate(report) {
			return nil
		}
		if isTerminal(report) {
			return nil
		}
	}
}

// ProgressPoller runs one poll loop per job in the background.
type ProgressPoller struct {
	fetch FetchFunc
	opts  PollOptions
}

// NewProgressPoller creates a poller that fetches with fetch.
func NewProgressPoller(fetch FetchFunc, opts PollOptions) *ProgressPoller {
	return &ProgressPoller{fetch: fetch, opts: opts.normalized()}
}

// PollHandle controls a running poll loop.
type PollHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel stops the loop. It is safe to call more than once, or after the loop ended.
func (h *PollHandle) Cancel() {
	if h == nil {
		return
	}
	h.cancel()
}

// Done is closed when the loop goroutine has returned.
func (h *PollHandle) Done() <-chan struct{} {
	return h.done
}

// Start launches the loop for jobID. onDone receives the loop's result once it exits.
func (p *ProgressPoller) Start(
	jobID string,
	isTerminal func(*ports.StatusReport) bool,
	onUpdate func(*ports.StatusReport) bool,
	onDone func(error),
) *PollHandle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &PollHandle{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(h.done)
		defer cancel()
		err := PollUntilTerminal(ctx, jobID, p.opts, p.fetch, isTerminal, onUpdate)
		if onDone != nil {
			onDone(err)
		}
	}()
	return h
}
