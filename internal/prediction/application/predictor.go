package application

import (
	"context"
	"fmt"
	"log"
	"time"

	alerts "rockfall-monitor/internal/alerts/domain"
	"rockfall-monitor/internal/observability/diagnostics"
	"rockfall-monitor/internal/observability/metrics"
	"rockfall-monitor/internal/prediction/domain"
	"rockfall-monitor/internal/telemetry/domain"
)

// Pipeline stages reported in fault records.
const (
	StageAggregate = "aggregate"
	StageClassify  = "classify"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// AlertDispatcher raises alerts for an assessment.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, assessment prediction.RiskAssessment) (alerts.AlertEvent, bool)
}

// AggregateFunc reduces a reading window to features.
type AggregateFunc func([]telemetry.SensorReading) (prediction.Features, error)

// ClassifyFunc maps features to a risk level.
type ClassifyFunc func(prediction.Features) prediction.RiskLevel

// Predictor runs the prediction pipeline over a reading window.
// It holds no per-call state and is safe for concurrent use.
type Predictor struct {
	aggregate  AggregateFunc
	classify   ClassifyFunc
	dispatcher AlertDispatcher
	faults     diagnostics.Sink
	clock      Clock
	logger     *log.Logger
}

// Option customizes the predictor.
type Option func(*Predictor)

// WithDispatcher assigns the alert dispatcher used for HIGH and CRITICAL results.
func WithDispatcher(dispatcher AlertDispatcher) Option {
	return func(p *Predictor) {
		p.dispatcher = dispatcher
	}
}

// WithDiagnostics assigns the fault sink.
func WithDiagnostics(sink diagnostics.Sink) Option {
	return func(p *Predictor) {
		if sink != nil {
			p.faults = sink
		}
	}
}

// WithClock assigns a clock.
func WithClock(clock Clock) Option {
	return func(p *Predictor) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *log.Logger) Option {
	return func(p *Predictor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithAggregator replaces the window aggregator.
func WithAggregator(fn AggregateFunc) Option {
	return func(p *Predictor) {
		if fn != nil {
			p.aggregate = fn
		}
	}
}

// WithClassifier replaces the risk classifier.
func WithClassifier(fn ClassifyFunc) Option {
	return func(p *Predictor) {
		if fn != nil {
			p.classify = fn
		}
	}
}

// NewPredictor constructs a predictor.
func NewPredictor(opts ...Option) *Predictor {
	p := &Predictor{
		aggregate: prediction.Aggregate,
		classify:  prediction.Classify,
		clock:     systemClock{},
		logger:    log.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.faults == nil {
		p.faults = diagnostics.NewLogSink(p.logger)
	}
	return p
}

// Predict assesses a reading window. It never fails: an aggregation or
// classification fault yields the degraded assessment and one fault record.
func (p *Predictor) Predict(ctx context.Context, readings []telemetry.SensorReading) prediction.RiskAssessment {
	start := time.Now()
	at := p.clock.Now()

	assessment, fault := p.assess(readings, at)
	metrics.ObservePrediction(assessment.Level.String(), time.Since(start))
	if fault != nil {
		p.faults.RecordFault(ctx, *fault)
		return assessment
	}

	p.logger.Printf("prediction completed: level=%s confidence=%.3f readings=%d location=%s",
		assessment.Level, assessment.Confidence, len(readings), assessment.Location)

	if p.dispatcher != nil && alerts.AutoDispatch(assessment.Level) {
		p.dispatcher.Dispatch(ctx, assessment)
	}
	return assessment
}

// assess is the recovery boundary of the pipeline.
func (p *Predictor) assess(readings []telemetry.SensorReading, at time.Time) (result prediction.RiskAssessment, fault *diagnostics.Fault) {
	stage := StageAggregate
	defer func() {
		if r := recover(); r != nil {
			result = prediction.Degraded(at)
			fault = &diagnostics.Fault{
				Stage:    stage,
				Err:      fmt.Errorf("panic: %v", r),
				Panic:    true,
				Readings: len(readings),
				At:       at,
			}
		}
	}()

	features, err := p.aggregate(readings)
	if err != nil {
		return prediction.Degraded(at), &diagnostics.Fault{Stage: stage, Err: err, Readings: len(readings), At: at}
	}

	stage = StageClassify
	level := p.classify(features)
	if !level.Valid() {
		err := fmt.Errorf("%w: %d", prediction.ErrUnknownRiskLevel, int(level))
		return prediction.Degraded(at), &diagnostics.Fault{Stage: stage, Err: err, Readings: len(readings), At: at}
	}

	return prediction.RiskAssessment{
		Level:               level,
		Confidence:          prediction.Confidence(features),
		Location:            prediction.Locate(readings),
		AssessedAt:          at,
		ContributingFactors: prediction.ContributingFactors(features),
	}, nil
}
