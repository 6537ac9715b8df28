package simulator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"rockfall-monitor/internal/observability/metrics"
	"rockfall-monitor/internal/telemetry/domain"
)

const (
	defaultSensors      = 10
	defaultHighRiskRate = 0.05
	gridColumns         = 5
	gridSpacing         = 100.0
)

// Simulator writes synthetic readings for a fixed set of sensors laid out on a grid.
type Simulator struct {
	repo         telemetry.ReadingRepository
	sensorIDs    []string
	highRiskRate float64
	logger       *log.Logger
	now          func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// Option customizes the simulator.
type Option func(*Simulator)

// WithSensors sets the number of simulated sensors.
func WithSensors(count int) Option {
	return func(s *Simulator) {
		if count > 0 {
			s.sensorIDs = sensorIDs(count)
		}
	}
}

// WithHighRiskRate sets the probability that a reading is a high-risk sample.
func WithHighRiskRate(rate float64) Option {
	return func(s *Simulator) {
		if rate >= 0 && rate <= 1 {
			s.highRiskRate = rate
		}
	}
}

// WithRand sets the random source.
func WithRand(rng *rand.Rand) Option {
	return func(s *Simulator) {
		if rng != nil {
			s.rng = rng
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Simulator) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a simulator.
func New(repo telemetry.ReadingRepository, opts ...Option) (*Simulator, error) {
	if repo == nil {
		return nil, errors.New("simulator: nil repository")
	}
	s := &Simulator{
		repo:         repo,
		sensorIDs:    sensorIDs(defaultSensors),
		highRiskRate: defaultHighRiskRate,
		logger:       log.Default(),
		now:          func() time.Time { return time.Now().UTC() },
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Run generates one batch per interval until ctx is done.
func (s *Simulator) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		s.logger.Printf("simulator: invalid interval %s, not started", interval)
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.logger.Printf("simulator tick error: %v", err)
			}
		}
	}
}

// Tick generates and stores one reading per sensor.
func (s *Simulator) Tick(ctx context.Context) error {
	readings := s.Generate(s.now())
	if err := s.repo.InsertReadings(ctx, readings); err != nil {
		return fmt.Errorf("simulator: insert: %w", err)
	}
	metrics.AddSimulatorReadings(len(readings))
	return nil
}

// Generate builds one reading per sensor stamped at ts.
func (s *Simulator) Generate(ts time.Time) []telemetry.SensorReading {
	s.mu.Lock()
	defer s.mu.Unlock()

	readings := make([]telemetry.SensorReading, 0, len(s.sensorIDs))
	for i, id := range s.sensorIDs {
		x, y := gridLocation(i + 1)
		reading := telemetry.SensorReading{
			SensorID:  id,
			Timestamp: ts.UTC(),
			LocationX: x,
			LocationY: y,
		}
		if s.rng.Float64() < s.highRiskRate {
			s.fillHighRisk(&reading)
			s.logger.Printf("simulator: generated high risk reading for %s", id)
		} else {
			s.fillNormal(&reading)
		}
		readings = append(readings, reading)
	}
	return readings
}

func (s *Simulator) fillNormal(r *telemetry.SensorReading) {
	r.Vibration = clamp(10+s.rng.NormFloat64()*8, 0, 100)
	r.Temperature = clamp(25+s.rng.NormFloat64()*5, -10, 60)
	r.Moisture = clamp(50+s.rng.NormFloat64()*15, 0, 100)
	r.Pressure = clamp(100+s.rng.NormFloat64()*3, 80, 120)
}

func (s *Simulator) fillHighRisk(r *telemetry.SensorReading) {
	r.Vibration = 60 + s.rng.Float64()*40
	r.Temperature = clamp(25+s.rng.NormFloat64()*20, -50, 100)
	r.Moisture = 85 + s.rng.Float64()*15
	r.Pressure = clamp(100+s.rng.NormFloat64()*15, 0, 200)
}

// gridLocation places sensor n (1-based) on a five-column grid.
func gridLocation(n int) (float64, float64) {
	return float64(n%gridColumns) * gridSpacing, float64(n/gridColumns) * gridSpacing
}

func sensorIDs(count int) []string {
	ids := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		ids = append(ids, fmt.Sprintf("SENSOR_%03d", i))
	}
	return ids
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
