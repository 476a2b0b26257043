package printer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/thereceipt/receipt-relay/internal/job"
)

// QueueOptions tunes the print queue
type QueueOptions struct {
	MaxRetries     int           // commit retries after ErrBusy
	RetryDelay     time.Duration // wait between retries
	PollInterval   time.Duration // worker tick
	PrepareWorkers int           // concurrent preparations
}

// DefaultQueueOptions returns the queue defaults
func DefaultQueueOptions() QueueOptions {
	return QueueOptions{
		MaxRetries:     3,
		RetryDelay:     time.Second,
		PollInterval:   100 * time.Millisecond,
		PrepareWorkers: 2,
	}
}

type queuedJob struct {
	record      *job.Record
	job         job.Job
	prepared    *Prepared
	nextAttempt time.Time
	done        chan struct{}
}

// PrintQueue serialises jobs onto the printer. Jobs are prepared
// concurrently and committed one at a time in the order they were queued.
// Only ErrBusy is retried; every other failure is final.
type PrintQueue struct {
	jobs []*queuedJob
	mu   sync.Mutex

	service   *Service
	opts      QueueOptions
	prepSlots chan struct{}
	logger    *zap.Logger

	listenersMu sync.RWMutex
	listeners   []func(job.Record)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPrintQueue creates a queue and starts its worker
func NewPrintQueue(service *Service, opts QueueOptions, logger *zap.Logger) *PrintQueue {
	def := DefaultQueueOptions()
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = def.RetryDelay
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.PrepareWorkers <= 0 {
		opts.PrepareWorkers = def.PrepareWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &PrintQueue{
		jobs:      make([]*queuedJob, 0),
		service:   service,
		opts:      opts,
		prepSlots: make(chan struct{}, opts.PrepareWorkers),
		logger:    logger.With(zap.String("component", "queue")),
		ctx:       ctx,
		cancel:    cancel,
	}

	q.wg.Add(1)
	go q.worker()

	return q
}

// OnUpdate registers a listener for every job state change
func (q *PrintQueue) OnUpdate(fn func(job.Record)) {
	q.listenersMu.Lock()
	defer q.listenersMu.Unlock()
	q.listeners = append(q.listeners, fn)
}

// Enqueue adds j to the queue and starts preparing it
func (q *PrintQueue) Enqueue(j job.Job) string {
	item := &queuedJob{
		record: job.NewRecord(uuid.NewString(), j),
		job:    j,
		done:   make(chan struct{}),
	}

	q.mu.Lock()
	q.jobs = append(q.jobs, item)
	rec := *item.record
	q.mu.Unlock()

	q.logger.Info("job queued", zap.String("job_id", rec.ID), zap.String("summary", rec.Summary))
	q.notify(rec)

	q.wg.Add(1)
	go q.prepare(item)

	return rec.ID
}

func (q *PrintQueue) prepare(item *queuedJob) {
	defer q.wg.Done()

	select {
	case q.prepSlots <- struct{}{}:
	case <-q.ctx.Done():
		q.fail(item, q.ctx.Err())
		return
	}
	prepared, err := q.service.Prepare(q.ctx, item.job)
	<-q.prepSlots

	if err != nil {
		q.fail(item, err)
		return
	}

	q.mu.Lock()
	advErr := item.record.Advance(job.Prepared)
	rec := *item.record
	q.mu.Unlock()

	if advErr != nil {
		q.fail(item, advErr)
		return
	}
	q.logger.Debug("job prepared", zap.String("job_id", rec.ID))
	q.notify(rec)

	// Only now is the job eligible for commit, so listeners see states in order
	q.mu.Lock()
	item.prepared = prepared
	q.mu.Unlock()
}

// worker commits prepared jobs
func (q *PrintQueue) worker() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.processNextJob()
		}
	}
}

func (q *PrintQueue) processNextJob() {
	q.mu.Lock()

	// The oldest live job goes first, even if it is still being prepared
	var item *queuedJob
	for _, j := range q.jobs {
		if !j.record.State.Terminal() {
			item = j
			break
		}
	}
	if item == nil || item.prepared == nil || time.Now().Before(item.nextAttempt) {
		q.mu.Unlock()
		return
	}
	prepared := item.prepared
	q.mu.Unlock()

	err := q.service.Commit(q.ctx, prepared)

	finished := false
	q.mu.Lock()
	rec := item.record
	switch {
	case err == nil:
		_ = rec.Advance(job.Committed)
		rec.Error, rec.ErrorKind = "", ""
		finished = true
		q.logger.Info("job committed", zap.String("job_id", rec.ID), zap.Int("retries", rec.Retries))

	case errors.Is(err, ErrBusy) && rec.Retries < q.opts.MaxRetries:
		rec.Retries++
		rec.Error = err.Error()
		rec.ErrorKind = KindBusy
		rec.UpdatedAt = time.Now()
		item.nextAttempt = time.Now().Add(q.opts.RetryDelay)
		q.logger.Warn("printer busy, retrying",
			zap.String("job_id", rec.ID),
			zap.Int("attempt", rec.Retries),
			zap.Int("max_retries", q.opts.MaxRetries))

	default:
		if errors.Is(err, ErrBusy) {
			err = fmt.Errorf("%w (gave up after %d retries)", err, rec.Retries)
		}
		rec.Fail(err, ErrorKind(err))
		finished = true
		q.logger.Error("job failed", zap.String("job_id", rec.ID), zap.Error(err))
	}
	snapshot := *rec
	q.mu.Unlock()

	q.notify(snapshot)
	if finished {
		close(item.done)
	}
}

func (q *PrintQueue) fail(item *queuedJob, err error) {
	q.mu.Lock()
	item.record.Fail(err, ErrorKind(err))
	rec := *item.record
	q.mu.Unlock()

	q.logger.Error("job failed", zap.String("job_id", rec.ID), zap.String("kind", rec.Kind), zap.Error(err))
	q.notify(rec)
	close(item.done)
}

func (q *PrintQueue) notify(rec job.Record) {
	q.listenersMu.RLock()
	listeners := append([]func(job.Record){}, q.listeners...)
	q.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(rec)
	}
}

// Wait blocks until job id is committed or failed, or ctx ends
func (q *PrintQueue) Wait(ctx context.Context, id string) (*job.Record, error) {
	q.mu.Lock()
	var done chan struct{}
	for _, j := range q.jobs {
		if j.record.ID == id {
			done = j.done
			break
		}
	}
	q.mu.Unlock()

	if done == nil {
		return nil, fmt.Errorf("job not found: %s", id)
	}

	select {
	case <-done:
		return q.GetJob(id), nil
	case <-ctx.Done():
		return q.GetJob(id), ctx.Err()
	}
}

// GetJob returns a copy of a job record, or nil
func (q *PrintQueue) GetJob(jobID string) *job.Record {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, j := range q.jobs {
		if j.record.ID == jobID {
			rec := *j.record
			return &rec
		}
	}
	return nil
}

// GetAllJobs returns copies of all job records in queue order
func (q *PrintQueue) GetAllJobs() []*job.Record {
	q.mu.Lock()
	defer q.mu.Unlock()

	records := make([]*job.Record, len(q.jobs))
	for i, j := range q.jobs {
		rec := *j.record
		records[i] = &rec
	}
	return records
}

// ClearCompleted removes committed and failed jobs, returning how many
func (q *PrintQueue) ClearCompleted() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := make([]*queuedJob, 0, len(q.jobs))
	for _, j := range q.jobs {
		if !j.record.State.Terminal() {
			kept = append(kept, j)
		}
	}
	removed := len(q.jobs) - len(kept)
	q.jobs = kept
	return removed
}

// Stop stops the worker and waits for in-flight preparations
func (q *PrintQueue) Stop() {
	q.cancel()
	q.wg.Wait()
}
