package agentlens

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agentlens/agentlens/internal/export"
	"github.com/agentlens/agentlens/internal/openinference"
	"github.com/agentlens/agentlens/internal/wire"
)

// Version is the library version reported in the exported scope.
const Version = "0.3.0"

// instrumentationScope names this library in the exported telemetry.
const instrumentationScope = "github.com/agentlens/agentlens"

// Warning reports a non-fatal initialization problem. New degrades instead
// of failing when a component can fall back to something safe.
type Warning struct {
	Component string
	Err       error
}

func (w Warning) String() string {
	return w.Component + ": " + w.Err.Error()
}

// Stats is a point-in-time snapshot of the pipeline counters.
type Stats = export.Stats

// ShutdownResult reports the outcome of the shutdown drain. Drain failures
// are reported as a dropped-record count, not an error: by the time
// shutdown runs there is nobody left to retry.
type ShutdownResult = export.DrainResult

// Exporter is the top-level handle over the capture and delivery pipeline.
// All methods are safe for concurrent use.
type Exporter struct {
	cfg     Config
	log     *zap.Logger
	tracer  *Tracer
	batcher *export.Batcher
	client  *export.Client

	shutdownOnce   sync.Once
	shutdownResult ShutdownResult
}

// New builds the full pipeline from cfg. Initialization problems that have
// a safe fallback are reported as warnings; only an unusable configuration
// returns an error. On error no background goroutines are left running.
func New(cfg Config) (*Exporter, []Warning, error) {
	var warnings []Warning

	if cfg.Endpoint == "" {
		return nil, nil, ErrNoEndpoint
	}
	applyDefaults(&cfg)

	log := newLogger(cfg)

	smp, err := parseSampler(cfg.Sampler)
	if err != nil {
		warnings = append(warnings, Warning{Component: "sampler", Err: err})
		smp = alwaysSampler{}
	}

	ccfg := export.ClientConfig{
		Endpoint:          cfg.Endpoint,
		Insecure:          cfg.Insecure,
		Protocol:          cfg.Protocol,
		Headers:           buildHeaders(cfg),
		MaxRetries:        cfg.MaxRetries,
		InitialBackoff:    cfg.RetryInitialInterval,
		MaxBackoff:        cfg.RetryMaxInterval,
		BackoffMultiplier: cfg.RetryMultiplier,
		RequestTimeout:    cfg.RequestTimeout,
	}

	var batcher *export.Batcher
	onRetry := func() {
		if batcher != nil {
			batcher.NoteRetry()
		}
	}

	client, err := export.NewClient(ccfg, log, onRetry)
	if err != nil && ccfg.Protocol == "grpc" {
		// Fall back to the HTTP transport rather than losing telemetry.
		warnings = append(warnings, Warning{Component: "grpc", Err: err})
		ccfg.Protocol = "http"
		client, err = export.NewClient(ccfg, log, onRetry)
	}
	if err != nil {
		return nil, warnings, err
	}

	batcher = export.NewBatcher(export.Config{
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		QueueSize:    cfg.QueueSize,
		Resource: wire.Resource{
			ServiceName:    cfg.ServiceName,
			ServiceVersion: cfg.ServiceVersion,
			ScopeName:      instrumentationScope,
			ScopeVersion:   Version,
		},
		DropLog: export.DropLogConfig(cfg.DropLog),
	}, client, log)

	e := &Exporter{
		cfg:     cfg,
		log:     log,
		batcher: batcher,
		client:  client,
	}
	e.tracer = newTracer(smp, func(rec *openinference.Record) {
		batcher.Enqueue(rec)
	})

	log.Info("exporter initialized",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("protocol", ccfg.Protocol),
		zap.String("service", cfg.ServiceName),
		zap.Int("batch_size", cfg.BatchSize),
	)
	return e, warnings, nil
}

// Tracer returns the span factory.
func (e *Exporter) Tracer() *Tracer {
	return e.tracer
}

// StartSpan opens a span through the exporter's tracer.
func (e *Exporter) StartSpan(kind SpanKind, name string, opts ...StartOption) (*SpanHandle, error) {
	return e.tracer.StartSpan(kind, name, opts...)
}

// Flush seals the buffered batch and blocks until its delivery completes,
// terminally fails, or ctx expires. Returns the terminal delivery outcome.
func (e *Exporter) Flush(ctx context.Context) error {
	return e.batcher.Flush(ctx)
}

// Stats returns a snapshot of the pipeline counters.
func (e *Exporter) Stats() Stats {
	return e.batcher.Stats()
}

// Shutdown drains buffered and in-flight records, bounded by ctx's deadline
// or the configured flush timeout, whichever is sooner. The first call
// performs the drain; every later call returns the same result. Spans
// closed after shutdown begins are counted dropped.
func (e *Exporter) Shutdown(ctx context.Context) ShutdownResult {
	e.shutdownOnce.Do(func() {
		timeout := e.cfg.FlushTimeout
		if dl, ok := ctx.Deadline(); ok {
			if rem := time.Until(dl); rem < timeout || timeout <= 0 {
				timeout = rem
			}
		}

		e.shutdownResult = e.batcher.Drain(timeout)
		if err := e.client.Close(); err != nil {
			e.log.Warn("closing delivery client", zap.Error(err))
		}

		e.log.Info("exporter shut down",
			zap.Uint64("dropped_records", e.shutdownResult.DroppedRecords),
			zap.Bool("timed_out", e.shutdownResult.TimedOut),
		)
		_ = e.log.Sync()
	})
	return e.shutdownResult
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Protocol == "" {
		cfg.Protocol = def.Protocol
	}
	if cfg.Sampler == "" {
		cfg.Sampler = def.Sampler
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = def.BatchTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryInitialInterval <= 0 {
		cfg.RetryInitialInterval = def.RetryInitialInterval
	}
	if cfg.RetryMaxInterval <= 0 {
		cfg.RetryMaxInterval = def.RetryMaxInterval
	}
	if cfg.RetryMultiplier <= 1 {
		cfg.RetryMultiplier = def.RetryMultiplier
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = def.FlushTimeout
	}
}

// buildHeaders assembles the delivery headers from the credential fields,
// basic auth, and any extra configured headers. Extra headers cannot
// override the credential headers.
func buildHeaders(cfg Config) map[string]string {
	headers := make(map[string]string, len(cfg.Headers)+4)
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	if cfg.Username != "" || cfg.Password != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(cfg.Username + ":" + cfg.Password))
		headers["Authorization"] = "Basic " + auth
	}
	if cfg.APIKey != "" {
		headers[export.HeaderAPIKey] = cfg.APIKey
	}
	if cfg.Project != "" {
		headers[export.HeaderProject] = cfg.Project
	}
	if cfg.Stream != "" {
		headers[export.HeaderStream] = cfg.Stream
	}
	return headers
}
