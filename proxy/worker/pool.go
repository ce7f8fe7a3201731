// Package worker provides an asynchronous worker pool for persisting query
// logs using the provided storage.Driver and announcing logged turns
// on the provided eventstream.Publisher.
//
// The pool decouples storage operations from the proxy's HTTP hot path so that the
// client-proxy-upstream interaction is fully transparent.
package worker

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"github.com/papercomputeco/ispoc/pkg/eventstream"
	"github.com/papercomputeco/ispoc/pkg/eventstream/nop"
	"github.com/papercomputeco/ispoc/pkg/storage"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// JobKind selects what a worker does with a Job.
type JobKind int

const (
	// JobQueryLog stores Job.QueryLog and then publishes a turn event.
	JobQueryLog JobKind = iota

	// JobPublishTurn publishes a turn event for a query log that the caller
	// already stored.
	JobPublishTurn
)

func (k JobKind) String() string {
	switch k {
	case JobQueryLog:
		return "query_log"
	case JobPublishTurn:
		return "publish_turn"
	default:
		return "unknown"
	}
}

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Kind     JobKind
	QueryLog *storage.QueryLog

	// Source is attached to the published turn event.
	Source eventstream.EventSource
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the storage backend for persisting records.
	Driver storage.Driver

	// Publisher announces logged turns. Defaults to a no-op publisher.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Logger is the provided zap logger
	Logger *zap.Logger

	// Now is the clock used to stamp records. Defaults to time.Now.
	Now func() time.Time
}

// Pool processes storage jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     conc.WaitGroup
	logger *zap.Logger
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Driver == nil {
		return nil, fmt.Errorf("worker pool requires a storage driver")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Publisher == nil {
		c.Publisher = nop.NewPublisher()
	}

	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	if c.Now == nil {
		c.Now = time.Now
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	for i := range c.NumWorkers {
		wp.wg.Go(func() { wp.worker(i) })
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("job queued", zap.Stringer("kind", job.Kind))
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped", zap.Stringer("kind", job.Kind))
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the HTTP server has stopped.
// A panic in a worker is re-raised here.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	p.logger.Debug("worker started", zap.Uint("worker_id", id))

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("storage worker stopped", zap.Uint("worker_id", id))
}

func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	switch job.Kind {
	case JobQueryLog:
		if err := p.storeQueryLog(ctx, job.QueryLog); err != nil {
			p.logger.Error("async query log storage failed", zap.Error(err))
			return
		}
		p.logger.Info("query log stored",
			zap.String("id", job.QueryLog.ID),
			zap.String("session_id", job.QueryLog.SessionID),
		)
		p.publishTurn(ctx, job)

	case JobPublishTurn:
		p.publishTurn(ctx, job)

	default:
		p.logger.Warn("dropping job of unknown kind", zap.Int("kind", int(job.Kind)))
	}
}

func (p *Pool) storeQueryLog(ctx context.Context, l *storage.QueryLog) error {
	if l == nil {
		return fmt.Errorf("nil query log")
	}
	if err := l.Validate(); err != nil {
		return err
	}
	l.Normalize(p.config.Now())

	return p.config.Driver.AddQueryLog(ctx, l)
}

// publishTurn errors are logged and not retried; the query log is already
// durable at this point.
func (p *Pool) publishTurn(ctx context.Context, job Job) {
	if job.QueryLog == nil {
		p.logger.Warn("publish job without query log")
		return
	}

	event := eventstream.NewTurnLoggedEvent(job.Source, *job.QueryLog, p.config.Now())
	if err := p.config.Publisher.PublishTurn(ctx, event); err != nil {
		p.logger.Warn("failed to publish turn event",
			zap.String("event_id", event.EventID),
			zap.Error(err),
		)
		return
	}

	p.logger.Debug("published turn event", zap.String("event_id", event.EventID))
}
