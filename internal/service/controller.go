package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"mapsjob/internal/config"
	"mapsjob/internal/core/domain"
	"mapsjob/internal/core/ports"
)

// Controller drives one search job at a time through submission, polling, cancellation and reset.
//
// All state changes happen under mu. Every submission and every cancel/reset bumps generation;
// poll callbacks carry the generation they were started with and are dropped when it no longer
// matches, so a response that raced a cancellation is never applied.
type Controller struct {
	backend ports.Backend
	storage ports.Storage
	poller  *ProgressPoller
	logger  logrus.FieldLogger
	now     func() time.Time

	mu         sync.Mutex
	phase      domain.Phase
	job        domain.Job
	lastErr    error
	results    ResultStore
	generation uint64
	poll       *PollHandle
	subs       map[int]chan domain.Snapshot
	nextSub    int
}

// NewController creates a Controller. storage may be nil, in which case submissions are not recorded.
func NewController(backend ports.Backend, storage ports.Storage, cfg config.PollConfig, logger logrus.FieldLogger) *Controller {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	c := &Controller{
		backend: backend,
		storage: storage,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		phase:   domain.PhaseIdle,
		subs:    make(map[int]chan domain.Snapshot),
	}
	c.poller = NewProgressPoller(backend.Status, PollOptions{
		Interval:    cfg.Interval,
		MaxFailures: cfg.MaxFailures,
		Logger:      logger,
	})
	return c
}

// Submit sends a validated submission and starts polling the new job.
// Fails with domain.ErrJobActive unless the controller is idle, and with *domain.SubmissionError
// when the backend does not create the job; in that case the controller returns to idle.
func (c *Controller) Submit(ctx context.Context, sub domain.Submission) (domain.Job, error) {
	c.mu.Lock()
	if c.phase != domain.PhaseIdle {
		phase := c.phase
		c.mu.Unlock()
		c.logger.WithField("phase", phase).Warn("submission rejected, controller is busy")
		return domain.Job{}, domain.ErrJobActive
	}
	c.generation++
	gen := c.generation
	c.phase = domain.PhaseSubmitting
	c.lastErr = nil
	c.notifyLocked()
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{"mode": sub.Mode, "keyword": sub.Keyword}).Info("submitting search job")
	jobID, err := c.backend.Submit(ctx, sub)
	if err == nil && jobID == "" {
		err = errors.New("backend returned an empty job id")
	}

	c.mu.Lock()
	if err != nil {
		serr := &domain.SubmissionError{Cause: err}
		if gen == c.generation {
			c.phase = domain.PhaseIdle
			c.lastErr = serr
			c.notifyLocked()
		}
		c.mu.Unlock()
		c.logger.WithError(err).Error("job submission failed")
		return domain.Job{}, serr
	}

	schema := c.backend.Schema(sub.Mode)
	c.job = domain.Job{
		ID:          jobID,
		Mode:        sub.Mode,
		Schema:      schema,
		Status:      domain.StatusPending,
		Keyword:     sub.Keyword,
		SubmittedAt: c.now(),
	}
	c.results.reset(schema)
	c.phase = domain.PhasePolling
	c.poll = c.poller.Start(jobID, IsTerminal, c.onUpdate(gen), c.onDone(gen))
	job := c.job
	c.notifyLocked()
	c.mu.Unlock()

	c.logger.WithField("job_id", jobID).Info("job created, polling for progress")
	c.recordSubmission(ctx, job, sub)
	return job, nil
}

func (c *Controller) recordSubmission(ctx context.Context, job domain.Job, sub domain.Submission) {
	if c.storage == nil {
		return
	}
	record := struct {
		Job        domain.Job        `json:"job"`
		Submission domain.Submission `json:"submission"`
		Dataset    string            `json:"dataset,omitempty"`
	}{Job: job, Submission: sub}
	if sub.Dataset != nil {
		record.Dataset = sub.Dataset.Filename
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		c.logger.WithField("job_id", job.ID).WithError(err).Warn("failed to encode submission record")
		return
	}
	if err := c.storage.SaveSubmission(ctx, job.ID, data); err != nil {
		c.logger.WithField("job_id", job.ID).WithError(err).Warn("failed to record submission")
	}
}

// onUpdate applies one status answer for the job started at generation gen.
func (c *Controller) onUpdate(gen uint64) func(*ports.StatusReport) bool {
	return func(r *ports.StatusReport) bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.generation || c.phase != domain.PhasePolling {
			return false
		}

		if r.Running {
			c.job.Status = domain.StatusRunning
		}
		if r.Progress != nil {
			// Progress never moves backwards while a job is tracked.
			if p := clampProgress(*r.Progress); p > c.job.Progress {
				c.job.Progress = p
			}
		}
		if r.Records != nil {
			c.results.replace(r.Records)
		}

		entry := c.logger.WithFields(logrus.Fields{
			"job_id":   c.job.ID,
			"progress": c.job.Progress,
			"records":  c.results.Len(),
		})
		if r.Running {
			entry.Debug("job progress")
		} else {
			outcome := r.Outcome
			if !outcome.Terminal() {
				outcome = domain.StatusCompleted
			}
			var err error
			if r.Message != "" && outcome == domain.StatusFailed {
				err = &domain.JobFailure{Message: r.Message}
			}
			c.finishLocked(outcome, err)
			entry.WithField("status", outcome).Info("job reached terminal status")
		}
		c.notifyLocked()
		return true
	}
}

// onDone handles the end of the poll loop started at generation gen.
func (c *Controller) onDone(gen uint64) func(error) {
	return func(err error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.generation || c.phase != domain.PhasePolling {
			return
		}
		if err == nil {
			return
		}
		// The loop stopped without a terminal answer: the job is over as far as this client knows.
		var perr *domain.PollError
		if !errors.As(err, &perr) {
			perr = &domain.PollError{JobID: c.job.ID, Cause: err}
		}
		c.finishLocked(domain.StatusFailed, perr)
		c.logger.WithField("job_id", c.job.ID).WithError(err).Error("polling stopped, job marked failed")
		c.notifyLocked()
	}
}

// Cancel stops polling, marks the job cancelled and then asks the backend to abort it.
// The local transition always happens; a failed backend call is logged and returned as
// *domain.CancellationError. Fails with domain.ErrNoActiveJob when nothing is being polled.
func (c *Controller) Cancel(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != domain.PhasePolling {
		c.mu.Unlock()
		return domain.ErrNoActiveJob
	}
	c.generation++
	c.poll.Cancel()
	c.finishLocked(domain.StatusCancelled, nil)
	jobID := c.job.ID
	c.notifyLocked()
	c.mu.Unlock()

	logger := c.logger.WithField("job_id", jobID)
	logger.Info("job cancelled")
	if err := c.backend.Cancel(ctx, jobID); err != nil {
		logger.WithError(err).Warn("backend did not acknowledge cancellation")
		return &domain.CancellationError{JobID: jobID, Cause: err}
	}
	return nil
}

// Reset discards a finished job and re-enables submission.
// Fails with domain.ErrNotTerminal while a job is being submitted or polled.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.phase == domain.PhaseIdle:
		c.lastErr = nil
		c.notifyLocked()
		return nil
	case !c.phase.Terminal():
		return domain.ErrNotTerminal
	}
	c.generation++
	c.poll.Cancel()
	c.poll = nil
	c.job = domain.Job{}
	c.lastErr = nil
	c.results.reset("")
	c.phase = domain.PhaseIdle
	c.notifyLocked()
	return nil
}

// Run submits sub and blocks until the job reaches a terminal status.
// When ctx is cancelled first, the job is cancelled and the cancelled snapshot is returned with ctx.Err().
func (c *Controller) Run(ctx context.Context, sub domain.Submission) (domain.Snapshot, error) {
	if _, err := c.Submit(ctx, sub); err != nil {
		return c.Snapshot(), err
	}

	snap, err := c.Wait(ctx)
	if err == nil {
		return snap, nil
	}

	cancelCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if cerr := c.Cancel(cancelCtx); cerr != nil && !errors.Is(cerr, domain.ErrNoActiveJob) {
		return c.Snapshot(), errors.Join(err, cerr)
	}
	return c.Snapshot(), err
}

// Wait blocks until the current job is terminal (or the controller is idle) and returns that snapshot.
func (c *Controller) Wait(ctx context.Context) (domain.Snapshot, error) {
	updates, unsubscribe := c.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return c.Snapshot(), ctx.Err()
		case snap, ok := <-updates:
			if !ok {
				return c.Snapshot(), nil
			}
			if snap.Phase.Terminal() || snap.Phase == domain.PhaseIdle {
				return snap, nil
			}
		}
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() domain.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Results exposes the result store for reading.
func (c *Controller) Results() *ResultStore {
	return &c.results
}

// Subscribe returns a channel that receives a snapshot after every state change, starting with the
// current one. A slow reader only sees the latest snapshot. Call the returned func to unsubscribe.
func (c *Controller) Subscribe() (<-chan domain.Snapshot, func()) {
	ch := make(chan domain.Snapshot, 1)

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.snapshotLocked()
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			close(ch)
			c.mu.Unlock()
		})
	}
}

func (c *Controller) finishLocked(status domain.Status, err error) {
	now := c.now()
	c.job.Status = status
	c.job.FinishedAt = &now
	c.phase = domain.PhaseFor(status)
	c.lastErr = err
}

func (c *Controller) snapshotLocked() domain.Snapshot {
	snap := domain.Snapshot{
		Phase:       c.phase,
		JobID:       c.job.ID,
		Mode:        c.job.Mode,
		Schema:      c.job.Schema,
		Status:      c.job.Status,
		Progress:    c.job.Progress,
		Err:         c.lastErr,
		SubmittedAt: c.job.SubmittedAt,
	}
	if c.job.ID != "" {
		snap.Records = c.results.Records()
	}
	if c.job.FinishedAt != nil {
		snap.FinishedAt = *c.job.FinishedAt
	}
	return snap
}

func (c *Controller) notifyLocked() {
	snap := c.snapshotLocked()
	for _, ch := range c.subs {
		select {
		case ch <- snap:
		default:
			// Drop the stale pending snapshot in favour of the new one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func clampProgress(p float64) float64 {
	switch {
	case p != p: // NaN
		return 0
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
