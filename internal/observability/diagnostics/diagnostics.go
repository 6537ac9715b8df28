package diagnostics

import (
	"context"
	"log"
	"sync"
	"time"

	"rockfall-monitor/internal/observability/metrics"
)

// Fault describes a prediction that was degraded to the safe default.
type Fault struct {
	Stage    string
	Err      error
	Panic    bool
	Readings int
	At       time.Time
}

// Sink receives fault records.
type Sink interface {
	RecordFault(ctx context.Context, fault Fault)
}

// LogSink writes faults to the logger and the fault counter.
type LogSink struct {
	logger *log.Logger
}

// NewLogSink constructs a log sink.
func NewLogSink(logger *log.Logger) *LogSink {
	if logger == nil {
		logger = log.Default()
	}
	return &LogSink{logger: logger}
}

// RecordFault implements Sink.
func (s *LogSink) RecordFault(ctx context.Context, fault Fault) {
	_ = ctx
	metrics.IncPredictionFault(fault.Stage)
	s.logger.Printf("prediction fault: stage=%s panic=%v readings=%d at=%s: %v",
		fault.Stage, fault.Panic, fault.Readings, fault.At.Format(time.RFC3339), fault.Err)
}

// Recorder keeps faults in memory.
type Recorder struct {
	mu     sync.Mutex
	faults []Fault
}

// NewRecorder constructs a recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordFault implements Sink.
func (r *Recorder) RecordFault(ctx context.Context, fault Fault) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.faults = append(r.faults, fault)
}

// Faults returns a copy of the recorded faults.
func (r *Recorder) Faults() []Fault {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Fault, len(r.faults))
	copy(out, r.faults)
	return out
}

// MultiSink fans out to several sinks.
type MultiSink []Sink

// RecordFault implements Sink.
func (m MultiSink) RecordFault(ctx context.Context, fault Fault) {
	for _, sink := range m {
		if sink != nil {
			sink.RecordFault(ctx, fault)
		}
	}
}
