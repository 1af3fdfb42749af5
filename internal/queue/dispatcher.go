// Package queue runs research jobs on a bounded in-process worker pool.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/jobfit-research/internal/config"
	"github.com/sells-group/jobfit-research/internal/model"
)

var (
	// ErrFull is returned by Enqueue when the buffer has no room.
	ErrFull = eris.New("queue: full")
	// ErrClosed is returned by Enqueue after Close.
	ErrClosed = eris.New("queue: closed")
)

// Runner executes one research job. *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, jobID string) (*model.AggregatedReport, error)
}

// Dispatcher feeds enqueued job ids to a fixed number of workers.
type Dispatcher struct {
	runner Runner
	jobs   chan string

	mu     sync.RWMutex
	closed bool

	g      *errgroup.Group
	cancel context.CancelFunc
}

// New starts workers goroutines reading from a buffer of bufferSize ids.
func New(r Runner, workers, bufferSize int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if bufferSize < 0 {
		bufferSize = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		runner: r,
		jobs:   make(chan string, bufferSize),
		g:      new(errgroup.Group),
		cancel: cancel,
	}
	for i := 0; i < workers; i++ {
		d.g.Go(func() error {
			d.work(ctx, i)
			return nil
		})
	}
	return d
}

// NewFromConfig starts a Dispatcher with the queue settings.
func NewFromConfig(r Runner, cfg config.QueueConfig) *Dispatcher {
	return New(r, cfg.Workers, cfg.BufferSize)
}

// Enqueue schedules jobID without blocking.
func (d *Dispatcher) Enqueue(jobID string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.jobs <- jobID:
		zap.L().Debug("queue: job enqueued", zap.String("job_id", jobID), zap.Int("depth", len(d.jobs)))
		return nil
	default:
		return ErrFull
	}
}

// Close stops accepting jobs and waits for queued and running jobs to
// finish. If ctx ends first, running jobs are cancelled and ctx's error is
// returned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = d.g.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return eris.Wrap(ctx.Err(), "queue: drain")
	}
}

func (d *Dispatcher) work(ctx context.Context, worker int) {
	log := zap.L().With(zap.Int("worker", worker))
	for jobID := range d.jobs {
		if ctx.Err() != nil {
			log.Warn("queue: dropping job after shutdown", zap.String("job_id", jobID))
			continue
		}
		start := time.Now()
		if _, err := d.runner.Run(ctx, jobID); err != nil {
			log.Error("queue: job failed", zap.String("job_id", jobID), zap.Duration("duration", time.Since(start)), zap.Error(err))
			continue
		}
		log.Info("queue: job done", zap.String("job_id", jobID), zap.Duration("duration", time.Since(start)))
	}
}
