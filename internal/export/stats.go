package export

import "sync/atomic"

// counters tracks pipeline throughput. All fields are updated atomically
// from producer goroutines and in-flight deliveries.
type counters struct {
	enqueued        atomic.Uint64
	exported        atomic.Uint64
	batchesSent     atomic.Uint64
	batchesDropped  atomic.Uint64
	retries         atomic.Uint64
	droppedQueue    atomic.Uint64
	droppedEncoding atomic.Uint64
	droppedDelivery atomic.Uint64
	droppedShutdown atomic.Uint64
}

// Stats is a point-in-time snapshot of the pipeline counters.
type Stats struct {
	// RecordsEnqueued counts records accepted into the buffer.
	RecordsEnqueued uint64
	// RecordsExported counts records delivered to the backend.
	RecordsExported uint64
	// BatchesSent counts successfully delivered batches.
	BatchesSent uint64
	// BatchesDropped counts batches dropped for any reason.
	BatchesDropped uint64
	// Retries counts individual delivery retries across all batches.
	Retries uint64
	// DroppedQueueFull counts records rejected because the intake queue
	// was full.
	DroppedQueueFull uint64
	// DroppedEncoding counts records lost to encoding failures.
	DroppedEncoding uint64
	// DroppedDelivery counts records lost to terminal delivery failures.
	DroppedDelivery uint64
	// DroppedShutdown counts records abandoned at shutdown timeout.
	DroppedShutdown uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		RecordsEnqueued:  c.enqueued.Load(),
		RecordsExported:  c.exported.Load(),
		BatchesSent:      c.batchesSent.Load(),
		BatchesDropped:   c.batchesDropped.Load(),
		Retries:          c.retries.Load(),
		DroppedQueueFull: c.droppedQueue.Load(),
		DroppedEncoding:  c.droppedEncoding.Load(),
		DroppedDelivery:  c.droppedDelivery.Load(),
		DroppedShutdown:  c.droppedShutdown.Load(),
	}
}
