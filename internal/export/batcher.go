// Package export owns the buffering and delivery half of the pipeline:
// a bounded intake queue, a single consumer goroutine that seals batches on
// size or age triggers, concurrent in-flight deliveries, and the drain
// protocol that guarantees buffered records are flushed before shutdown.
package export

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/agentlens/agentlens/internal/openinference"
	"github.com/agentlens/agentlens/internal/wire"
)

// Config sizes the batch buffer. Mirrors the public configuration; the
// exporter converts at the boundary.
type Config struct {
	BatchSize    int
	BatchTimeout time.Duration
	QueueSize    int
	Resource     wire.Resource
	DropLog      DropLogConfig
}

// DrainResult reports the outcome of the shutdown drain.
type DrainResult struct {
	// DroppedRecords counts records still in flight when the drain
	// timeout elapsed. They are reported dropped even if their delivery
	// later completes.
	DroppedRecords uint64
	// TimedOut is set when the drain did not finish inside the timeout.
	TimedOut bool
}

// command is the single message type flowing through the intake queue.
// Exactly one field is set. Records and control messages share one channel
// so a drain observes every record enqueued before it, in order.
type command struct {
	rec   *openinference.Record
	flush *flushRequest
	drain *drainRequest
}

type flushRequest struct {
	done chan error
}

type drainRequest struct {
	timeout time.Duration
	done    chan DrainResult
}

// Batcher accumulates exported records and decides when a batch ships.
// Enqueue is safe from any number of concurrent span-closing goroutines;
// sealing and shipping are owned by one consumer goroutine, so the
// seal-and-swap transition is atomic with respect to enqueues.
type Batcher struct {
	cfg    Config
	log    *zap.Logger
	client Deliverer
	stats  counters
	drops  *dropLog

	ch   chan command
	done chan struct{}

	// sendMu fences producers against the drain: Drain flips closed under
	// the write lock, so once it releases no send can slip into the queue
	// behind the drain command and be silently stranded.
	sendMu    sync.RWMutex
	closed    atomic.Bool
	abandoned atomic.Bool
	inFlight  atomic.Int64
	wg        sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// NewBatcher starts the consumer goroutine. The caller owns the client's
// lifetime and must call Drain exactly once before discarding the batcher.
func NewBatcher(cfg Config, client Deliverer, log *zap.Logger) *Batcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 512
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 5 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.BatchSize * 4
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Batcher{
		cfg:    cfg,
		log:    log,
		client: client,
		drops:  newDropLog(cfg.DropLog),
		ch:     make(chan command, cfg.QueueSize),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
	go b.run()
	return b
}

// Enqueue hands one record to the buffer. It never blocks: when the queue
// is full the record is dropped and counted, so span producers are never
// stalled by a slow backend.
func (b *Batcher) Enqueue(rec *openinference.Record) bool {
	b.sendMu.RLock()
	defer b.sendMu.RUnlock()
	if b.closed.Load() {
		b.stats.droppedShutdown.Add(1)
		return false
	}
	select {
	case b.ch <- command{rec: rec}:
		b.stats.enqueued.Add(1)
		return true
	default:
		b.stats.droppedQueue.Add(1)
		b.log.Warn("record dropped, intake queue full",
			zap.String("trace_id", rec.TraceID),
			zap.String("span_id", rec.SpanID),
		)
		return false
	}
}

// Flush seals the active batch and blocks until its delivery is attempted:
// success, terminal failure, or caller timeout. Only the Flush caller
// observes the terminal outcome; span producers never do.
func (b *Batcher) Flush(ctx context.Context) error {
	fr := &flushRequest{done: make(chan error, 1)}
	b.sendMu.RLock()
	if b.closed.Load() {
		b.sendMu.RUnlock()
		return ErrClosed
	}
	select {
	case b.ch <- command{flush: fr}:
		b.sendMu.RUnlock()
	case <-b.done:
		b.sendMu.RUnlock()
		return ErrClosed
	case <-ctx.Done():
		b.sendMu.RUnlock()
		return ctx.Err()
	}
	select {
	case err := <-fr.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain stops intake, flushes everything buffered, and waits up to timeout
// for in-flight deliveries; a non-positive timeout abandons in-flight work
// immediately. Call it once; the exporter serializes callers. Taking the
// write lock before flipping closed means every producer that already
// passed its closed check has finished its send, so their records sit
// ahead of the drain command and are flushed, never stranded.
func (b *Batcher) Drain(timeout time.Duration) DrainResult {
	b.sendMu.Lock()
	b.closed.Store(true)
	b.sendMu.Unlock()
	dr := &drainRequest{timeout: timeout, done: make(chan DrainResult, 1)}
	select {
	case b.ch <- command{drain: dr}:
		return <-dr.done
	case <-b.done:
		return DrainResult{}
	}
}

// Stats returns a snapshot of the pipeline counters.
func (b *Batcher) Stats() Stats {
	return b.stats.snapshot()
}

// NoteRetry counts one delivery retry. Wired into the client's retry
// callback by the exporter.
func (b *Batcher) NoteRetry() {
	b.stats.retries.Add(1)
}

func (b *Batcher) run() {
	var active []*openinference.Record
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	timerOn := false

	for {
		select {
		case cmd := <-b.ch:
			switch {
			case cmd.rec != nil:
				active = append(active, cmd.rec)
				if len(active) == 1 {
					timer.Reset(b.cfg.BatchTimeout)
					timerOn = true
				}
				if len(active) >= b.cfg.BatchSize {
					active = b.seal(active, nil, timer, &timerOn)
				}
			case cmd.flush != nil:
				active = b.seal(active, cmd.flush.done, timer, &timerOn)
			case cmd.drain != nil:
				b.seal(active, nil, timer, &timerOn)
				res := b.awaitInFlight(cmd.drain.timeout)
				if err := b.drops.Close(); err != nil {
					b.log.Warn("closing drop log", zap.Error(err))
				}
				cmd.drain.done <- res
				close(b.done)
				b.rejectPending()
				return
			}
		case <-timer.C:
			timerOn = false
			if len(active) > 0 {
				active = b.seal(active, nil, timer, &timerOn)
			}
		}
	}
}

// seal makes the active batch immutable and hands it to a shipping
// goroutine, then returns a fresh active batch. Batches ship in seal order
// but deliveries run concurrently, so a retrying batch never blocks a
// later one.
func (b *Batcher) seal(active []*openinference.Record, done chan error, timer *time.Timer, timerOn *bool) []*openinference.Record {
	if *timerOn {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		*timerOn = false
	}
	if len(active) == 0 {
		if done != nil {
			done <- nil
		}
		return nil
	}

	batch := active
	b.wg.Add(1)
	b.inFlight.Add(int64(len(batch)))
	go func() {
		defer b.wg.Done()
		err := b.ship(batch)
		b.inFlight.Add(-int64(len(batch)))
		if done != nil {
			done <- err
		}
	}()
	return nil
}

// ship encodes and delivers one sealed batch, classifying the outcome for
// the counters and the drop log.
func (b *Batcher) ship(batch []*openinference.Record) error {
	n := uint64(len(batch))

	req, err := wire.Encode(b.cfg.Resource, batch)
	if err != nil {
		b.dropBatch("encoding", err, batch)
		b.stats.droppedEncoding.Add(n)
		return err
	}

	err = b.client.Deliver(b.ctx, req)
	if err == nil {
		b.stats.exported.Add(n)
		b.stats.batchesSent.Add(1)
		b.log.Debug("batch delivered", zap.Uint64("records", n))
		return nil
	}

	if b.abandoned.Load() && errors.Is(err, context.Canceled) {
		// Already counted as dropped at shutdown timeout.
		return err
	}

	var encErr *wire.EncodingError
	if errors.As(err, &encErr) {
		b.dropBatch("encoding", err, batch)
		b.stats.droppedEncoding.Add(n)
		return err
	}
	b.dropBatch(dropReason(err), err, batch)
	b.stats.droppedDelivery.Add(n)
	return err
}

// dropBatch logs the loss with enough context to reconstruct what was
// dropped, and preserves the full batch contents in the audit file.
func (b *Batcher) dropBatch(reason string, cause error, batch []*openinference.Record) {
	b.stats.batchesDropped.Add(1)
	b.log.Error("batch dropped",
		zap.String("reason", reason),
		zap.Error(cause),
		zap.Int("records", len(batch)),
		zap.Strings("trace_ids", traceIDs(batch)),
	)
	b.drops.record(reason, cause, batch)
}

// awaitInFlight blocks until every shipped batch completes or the drain
// timeout elapses. On timeout the outstanding records are counted dropped
// and their deliveries are cancelled. A non-positive timeout means the
// drain budget is already spent: anything still in flight is abandoned
// right away, so the drain always returns in bounded time.
func (b *Batcher) awaitInFlight(timeout time.Duration) DrainResult {
	settled := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(settled)
	}()

	if timeout > 0 {
		select {
		case <-settled:
			return DrainResult{}
		case <-time.After(timeout):
		}
	} else if b.inFlight.Load() == 0 {
		// Nothing stuck; the shippers are done or exiting.
		<-settled
		return DrainResult{}
	}

	dropped := uint64(b.inFlight.Load())
	b.stats.droppedShutdown.Add(dropped)
	b.abandoned.Store(true)
	b.cancel()
	b.log.Warn("drain timed out, abandoning in-flight batches",
		zap.Uint64("dropped_records", dropped),
	)
	return DrainResult{DroppedRecords: dropped, TimedOut: true}
}

// rejectPending answers commands that raced the drain so their callers do
// not hang.
func (b *Batcher) rejectPending() {
	for {
		select {
		case cmd := <-b.ch:
			if cmd.flush != nil {
				cmd.flush.done <- ErrClosed
			}
			if cmd.rec != nil {
				b.stats.droppedShutdown.Add(1)
			}
		default:
			return
		}
	}
}

func dropReason(err error) string {
	var (
		authErr     *AuthError
		mediaErr    *MediaTypeError
		schemaErr   *SchemaError
		deliveryErr *DeliveryError
	)
	switch {
	case errors.As(err, &authErr):
		return "auth"
	case errors.As(err, &mediaErr):
		return "media_type"
	case errors.As(err, &schemaErr):
		return "schema"
	case errors.As(err, &deliveryErr):
		return "retries_exhausted"
	default:
		return "delivery"
	}
}

func traceIDs(batch []*openinference.Record) []string {
	seen := make(map[string]struct{}, len(batch))
	ids := make([]string, 0, len(batch))
	for _, rec := range batch {
		if _, ok := seen[rec.TraceID]; ok {
			continue
		}
		seen[rec.TraceID] = struct{}{}
		ids = append(ids, rec.TraceID)
	}
	return ids
}
