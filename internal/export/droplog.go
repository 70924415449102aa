package export

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/agentlens/agentlens/internal/openinference"
)

// DropLogConfig configures the rotated audit file that records the contents
// of dropped batches. Schema rejections in particular need the full
// attribute set preserved somewhere to be diagnosable after the fact.
type DropLogConfig struct {
	Enabled    bool
	Path       string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
	Compress   bool
}

// dropLog writes one JSON line per dropped batch. Safe for concurrent use
// by in-flight deliveries.
type dropLog struct {
	mu sync.Mutex
	w  io.WriteCloser
}

type droppedBatch struct {
	Time    time.Time       `json:"time"`
	Reason  string          `json:"reason"`
	Error   string          `json:"error,omitempty"`
	Records []droppedRecord `json:"records"`
}

type droppedRecord struct {
	TraceID string         `json:"trace_id"`
	SpanID  string         `json:"span_id"`
	Name    string         `json:"name"`
	Kind    string         `json:"kind"`
	Attrs   map[string]any `json:"attributes,omitempty"`
}

// newDropLog returns nil when the audit file is disabled.
func newDropLog(cfg DropLogConfig) *dropLog {
	if !cfg.Enabled || cfg.Path == "" {
		return nil
	}

	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 50
	}
	maxAge := cfg.MaxAgeDays
	if maxAge <= 0 {
		maxAge = 7
	}
	maxBackups := cfg.MaxBackups
	if maxBackups <= 0 {
		maxBackups = 3
	}

	return &dropLog{
		w: &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    maxSize,
			MaxAge:     maxAge,
			MaxBackups: maxBackups,
			Compress:   cfg.Compress,
			LocalTime:  true,
		},
	}
}

// record appends the dropped batch to the audit file. A nil receiver is a
// no-op so callers never need to branch.
func (d *dropLog) record(reason string, cause error, recs []*openinference.Record) {
	if d == nil {
		return
	}

	entry := droppedBatch{
		Time:    time.Now(),
		Reason:  reason,
		Records: make([]droppedRecord, 0, len(recs)),
	}
	if cause != nil {
		entry.Error = cause.Error()
	}
	for _, rec := range recs {
		dr := droppedRecord{
			TraceID: rec.TraceID,
			SpanID:  rec.SpanID,
			Name:    rec.Name,
			Kind:    string(rec.Kind),
		}
		if len(rec.Attrs) > 0 {
			dr.Attrs = make(map[string]any, len(rec.Attrs))
			for _, a := range rec.Attrs {
				dr.Attrs[a.Key] = a.Value.Any()
			}
		}
		entry.Records = append(entry.Records, dr)
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	line = append(line, '\n')

	d.mu.Lock()
	_, _ = d.w.Write(line)
	d.mu.Unlock()
}

// Close releases the audit file handle. Called once from the drain path; a
// nil receiver is a no-op.
func (d *dropLog) Close() error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.w.Close()
}
