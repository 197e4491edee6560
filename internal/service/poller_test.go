package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapsjob/internal/core/domain"
	"mapsjob/internal/core/ports"
	"mapsjob/internal/logging"
)

func pollOpts(maxFailures int) PollOptions {
	return PollOptions{Interval: testInterval, MaxFailures: maxFailures, Logger: logging.Discard()}
}

func TestPollUntilTerminalStopsOnTerminalAnswer(t *testing.T) {
	b := &fakeBackend{status: script(running(10), running(60), finished(100))}
	var updates []float64

	err := PollUntilTerminal(context.Background(), "abc123", pollOpts(1), b.Status, IsTerminal,
		func(r *ports.StatusReport) bool {
			updates = append(updates, *r.Progress)
			return true
		})
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 60, 100}, updates)

	time.Sleep(5 * testInterval)
	assert.Equal(t, 3, b.calls())
}

func TestPollUntilTerminalFailFast(t *testing.T) {
	b := &fakeBackend{status: func(context.Context, int) (*ports.StatusReport, error) { return nil, errBoom }}

	err := PollUntilTerminal(context.Background(), "abc123", pollOpts(1), b.Status, IsTerminal,
		func(*ports.StatusReport) bool { return true })

	var perr *domain.PollError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "abc123", perr.JobID)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, b.calls())
}

func TestPollUntilTerminalBoundedRetry(t *testing.T) {
	b := &fakeBackend{status: func(_ context.Context, call int) (*ports.StatusReport, error) {
		switch call {
		case 1, 2:
			return nil, errBoom
		case 3:
			return running(50), nil
		case 4, 5:
			return nil, errBoom
		default:
			return finished(100), nil
		}
	}}

	err := PollUntilTerminal(context.Background(), "abc123", pollOpts(3), b.Status, IsTerminal,
		func(*ports.StatusReport) bool { return true })
	require.NoError(t, err)
	assert.Equal(t, 6, b.calls())
}

func TestPollUntilTerminalCancelled(t *testing.T) {
	b := &fakeBackend{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- PollUntilTerminal(ctx, "abc123", pollOpts(1), b.Status, IsTerminal,
			func(*ports.StatusReport) bool { return true })
	}()

	require.Eventually(t, func() bool { return b.calls() >= 2 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("poll loop did not stop")
	}
}

func TestPollUntilTerminalDetached(t *testing.T) {
	b := &fakeBackend{}

	err := PollUntilTerminal(context.Background(), "abc123", pollOpts(1), b.Status, IsTerminal,
		func(*ports.StatusReport) bool { return false })
	require.NoError(t, err)
	assert.Equal(t, 1, b.calls())
}

func TestProgressPollerStartAndCancel(t *testing.T) {
	b := &fakeBackend{}
	p := NewProgressPoller(b.Status, pollOpts(1))

	var result atomic.Value
	h := p.Start("abc123", IsTerminal, func(*ports.StatusReport) bool { return true }, func(err error) {
		result.Store(err)
	})
	require.Eventually(t, func() bool { return b.calls() >= 1 }, time.Second, time.Millisecond)

	h.Cancel()
	h.Cancel()
	<-h.Done()
	assert.ErrorIs(t, result.Load().(error), context.Canceled)

	calls := b.calls()
	time.Sleep(5 * testInterval)
	assert.Equal(t, calls, b.calls())

	var nilHandle *PollHandle
	assert.NotPanics(t, nilHandle.Cancel)
}

func TestCancelDoesNotAbortInFlightFetch(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	fetchErr := make(chan error, 1)
	b := &fakeBackend{status: func(ctx context.Context, call int) (*ports.StatusReport, error) {
		if call == 1 {
			close(started)
			<-release
			fetchErr <- ctx.Err()
		}
		return running(50), nil
	}}

	var applied atomic.Int32
	h := NewProgressPoller(b.Status, pollOpts(1)).Start("abc123", IsTerminal,
		func(*ports.StatusReport) bool {
			applied.Add(1)
			return true
		}, nil)
	<-started

	h.Cancel()
	close(release)
	<-h.Done()

	assert.NoError(t, <-fetchErr)
	assert.Equal(t, int32(0), applied.Load())
	assert.Equal(t, 1, b.calls())
}

func TestProgressPollerDefaultsInterval(t *testing.T) {
	for _, interval := range []time.Duration{0, -time.Second} {
		p := NewProgressPoller((&fakeBackend{}).Status, PollOptions{Interval: interval})
		assert.Equal(t, DefaultPollInterval, p.opts.Interval)
		assert.Equal(t, 1, p.opts.MaxFailures)
		assert.NotNil(t, p.opts.Logger)
	}

	// A zero interval must not panic; the loop just waits for its first tick.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NotPanics(t, func() {
		err := PollUntilTerminal(ctx, "abc123", PollOptions{}, (&fakeBackend{}).Status, IsTerminal,
			func(*ports.StatusReport) bool { return true })
		assert.ErrorIs(t, err, context.Canceled)
	})
}
