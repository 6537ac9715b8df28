package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "rockfall_"

	resultSuccess = "success"
	resultError   = "error"
	resultSkipped = "skipped"
)

var (
	registerOnce sync.Once

	predictionsTotal  *prometheus.CounterVec
	predictionLatency prometheus.Histogram
	predictionFaults  *prometheus.CounterVec

	alertsTotal     *prometheus.CounterVec
	alertDeliveries *prometheus.CounterVec

	ingestReadings      *prometheus.CounterVec
	simulatorReadings   prometheus.Counter
	retentionPurged     prometheus.Counter
	reportExportTotal   *prometheus.CounterVec
	reportExportLatency *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		predictionsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "predictions_total",
				Help: "Total risk predictions by level",
			},
			[]string{"level"},
		)
		predictionLatency = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "prediction_latency_seconds",
				Help:    "Prediction pipeline latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
		)
		predictionFaults = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "prediction_faults_total",
				Help: "Predictions degraded to the safe default by failing stage",
			},
			[]string{"stage"},
		)

		alertsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_total",
				Help: "Total alert events dispatched by severity",
			},
			[]string{"severity"},
		)
		alertDeliveries = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_deliveries_total",
				Help: "Alert notification deliveries by channel and result",
			},
			[]string{"channel", "result"},
		)

		ingestReadings = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_readings_total",
				Help: "Ingested sensor readings by source and result",
			},
			[]string{"source", "result"},
		)
		simulatorReadings = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "simulator_readings_total",
				Help: "Synthetic readings generated by the simulator",
			},
		)
		retentionPurged = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "retention_purged_readings_total",
				Help: "Readings removed by the retention job",
			},
		)
		reportExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_export_total",
				Help: "Total assessment report exports by format and result",
			},
			[]string{"format", "result"},
		)
		reportExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_export_latency_seconds",
				Help:    "Assessment report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			predictionsTotal,
			predictionLatency,
			predictionFaults,
			alertsTotal,
			alertDeliveries,
			ingestReadings,
			simulatorReadings,
			retentionPurged,
			reportExportTotal,
			reportExportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObservePrediction records one completed prediction.
func ObservePrediction(level string, duration time.Duration) {
	if level == "" {
		level = "unknown"
	}
	if predictionsTotal != nil {
		predictionsTotal.WithLabelValues(level).Inc()
	}
	if predictionLatency != nil {
		predictionLatency.Observe(duration.Seconds())
	}
}

// IncPredictionFault increments the degraded prediction counter.
func IncPredictionFault(stage string) {
	if stage == "" {
		stage = "unknown"
	}
	if predictionFaults != nil {
		predictionFaults.WithLabelValues(stage).Inc()
	}
}

// IncAlert increments dispatched alerts.
func IncAlert(severity string) {
	if severity == "" {
		severity = "unknown"
	}
	if alertsTotal != nil {
		alertsTotal.WithLabelValues(severity).Inc()
	}
}

// IncAlertDelivery increments alert channel deliveries.
func IncAlertDelivery(channel, result string) {
	if channel == "" {
		channel = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if alertDeliveries != nil {
		alertDeliveries.WithLabelValues(channel, result).Inc()
	}
}

// AddIngestReadings counts ingested readings.
func AddIngestReadings(source, result string, count int) {
	if count <= 0 {
		return
	}
	if source == "" {
		source = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if ingestReadings != nil {
		ingestReadings.WithLabelValues(source, result).Add(float64(count))
	}
}

// AddSimulatorReadings counts synthetic readings.
func AddSimulatorReadings(count int) {
	if count <= 0 {
		return
	}
	if simulatorReadings != nil {
		simulatorReadings.Add(float64(count))
	}
}

// AddRetentionPurged counts purged readings.
func AddRetentionPurged(count int64) {
	if count <= 0 {
		return
	}
	if retentionPurged != nil {
		retentionPurged.Add(float64(count))
	}
}

// ObserveReportExport records export latency and result.
func ObserveReportExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if reportExportTotal != nil {
		reportExportTotal.WithLabelValues(format, result).Inc()
	}
	if reportExportLatency != nil {
		reportExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
	ResultSkipped = resultSkipped
)
