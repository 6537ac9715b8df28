package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	alertapp "rockfall-monitor/internal/alerts/application"
	alerts "rockfall-monitor/internal/alerts/domain"
	alertmemory "rockfall-monitor/internal/alerts/infrastructure/memory"
	alertpostgres "rockfall-monitor/internal/alerts/infrastructure/postgres"
	alerthttp "rockfall-monitor/internal/alerts/interfaces/http"
	alertnotify "rockfall-monitor/internal/alerts/notify"
	"rockfall-monitor/internal/audit"
	"rockfall-monitor/internal/auth"
	"rockfall-monitor/internal/config"
	"rockfall-monitor/internal/observability/diagnostics"
	"rockfall-monitor/internal/observability/metrics"
	predictionapp "rockfall-monitor/internal/prediction/application"
	"rockfall-monitor/internal/prediction/domain"
	predictionmemory "rockfall-monitor/internal/prediction/infrastructure/memory"
	predictionpostgres "rockfall-monitor/internal/prediction/infrastructure/postgres"
	predictioninterfaces "rockfall-monitor/internal/prediction/interfaces"
	telemetryapp "rockfall-monitor/internal/telemetry/application"
	"rockfall-monitor/internal/telemetry/domain"
	telemetrymemory "rockfall-monitor/internal/telemetry/infrastructure/memory"
	telemetrypostgres "rockfall-monitor/internal/telemetry/infrastructure/postgres"
	telemetryhttp "rockfall-monitor/internal/telemetry/interfaces/http"
	telemetrymqtt "rockfall-monitor/internal/telemetry/interfaces/mqtt"
	"rockfall-monitor/internal/telemetry/simulator"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
	} else {
		logger.Printf("DATABASE_URL not set; using in-memory stores")
	}

	metrics.Init(db, logger)
	st := openStores(db, logger)

	// Alert fan-out: log, live stream, then optional outbound channels.
	alertLog, err := alertapp.NewAlertLog(st.alerts, alertapp.WithLogger(logger))
	if err != nil {
		logger.Fatalf("alert log error: %v", err)
	}
	broker := alerthttp.NewSSEBroker()
	notifiers := []alertapp.Notifier{alertLog, broker}
	if cfg.Alerts.WebhookURL != "" {
		webhook, err := buildWebhookNotifier(cfg.Alerts, logger)
		if err != nil {
			logger.Fatalf("alert webhook error: %v", err)
		}
		notifiers = append(notifiers, webhook)
	}
	if len(cfg.Alerts.KafkaBrokers) > 0 {
		kafkaNotifier, err := alertnotify.NewKafkaNotifier(cfg.Alerts.KafkaBrokers, cfg.Alerts.KafkaTopic, logger)
		if err != nil {
			logger.Fatalf("alert kafka error: %v", err)
		}
		defer kafkaNotifier.Close()
		notifiers = append(notifiers, kafkaNotifier)
	}
	dispatcher, err := alertapp.NewDispatcher(alertnotify.NewMultiNotifier(notifiers...), logger)
	if err != nil {
		logger.Fatalf("alert dispatcher error: %v", err)
	}

	predictor := predictionapp.NewPredictor(
		predictionapp.WithDispatcher(dispatcher),
		predictionapp.WithDiagnostics(diagnostics.NewLogSink(logger)),
		predictionapp.WithLogger(logger),
	)
	monitoring, err := predictionapp.NewMonitoringService(st.query, predictor, st.assessments,
		predictionapp.WithStatusWindow(cfg.Monitoring.StatusWindow),
		predictionapp.WithAssessmentWindow(cfg.Monitoring.AssessmentWindow),
		predictionapp.WithServiceLogger(logger),
	)
	if err != nil {
		logger.Fatalf("monitoring service error: %v", err)
	}

	startBackground(ctx, cfg, st, logger)

	ingestHandler, err := telemetryhttp.NewIngestHandler(st.readings, logger, telemetryhttp.WithSource("http"))
	if err != nil {
		logger.Fatalf("ingest handler error: %v", err)
	}
	gatewayIngest, err := telemetryhttp.NewIngestHandler(st.readings, logger, telemetryhttp.WithSource("gateway"))
	if err != nil {
		logger.Fatalf("gateway ingest handler error: %v", err)
	}
	readingsHandler, err := telemetryhttp.NewReadingsHandler(st.query)
	if err != nil {
		logger.Fatalf("readings handler error: %v", err)
	}
	monitoringHandler, err := predictioninterfaces.NewMonitoringHandler(monitoring,
		predictioninterfaces.WithAuditLogger(st.audit),
		predictioninterfaces.WithLogger(logger),
	)
	if err != nil {
		logger.Fatalf("monitoring handler error: %v", err)
	}
	alertHandler, err := alerthttp.NewHandler(alertLog, dispatcher,
		alerthttp.WithAuditLogger(st.audit),
		alerthttp.WithLogger(logger),
	)
	if err != nil {
		logger.Fatalf("alert handler error: %v", err)
	}

	if cfg.Auth.JWTSecret == "" {
		logger.Printf("AUTH_JWT_SECRET not set; API authentication disabled")
	}
	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/ingest/"})
	var authMiddleware *auth.Middleware
	if cfg.Auth.JWTSecret != "" {
		authMiddleware = auth.NewMiddleware([]byte(cfg.Auth.JWTSecret), policy)
	}
	ingestAuth := auth.NewIngestAuthMiddleware([]byte(cfg.Auth.IngestSecret), time.Duration(cfg.Auth.IngestSkewSeconds)*time.Second)

	mux := http.NewServeMux()
	mux.Handle("/ingest/sensor-data", ingestAuth.Wrap(gatewayIngest))
	mux.Handle("/api/v1/monitoring/sensor-data", ingestHandler)
	mux.Handle("/api/v1/monitoring/sensors", readingsHandler)
	mux.Handle("/api/v1/monitoring/sensor-readings/", readingsHandler)
	mux.Handle("/api/v1/monitoring/", monitoringHandler)
	mux.Handle("/api/v1/assessments", monitoringHandler)
	mux.Handle("/api/v1/reports/", monitoringHandler)
	mux.Handle("/api/v1/alerts/stream", alerthttp.NewStreamHandler(broker))
	mux.Handle("/api/v1/alerts", alertHandler)
	mux.Handle("/api/v1/alerts/dispatch", alertHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				http.Error(w, "db unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Printf("http listening on %s", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal(err)
	}
}

type stores struct {
	readings    telemetry.ReadingRepository
	query       telemetry.ReadingQuery
	assessments prediction.AssessmentRepository
	alerts      alerts.AlertRepository
	audit       audit.Logger
}

func openStores(db *sql.DB, logger *log.Logger) stores {
	if db == nil {
		readings := telemetrymemory.NewReadingRepository()
		return stores{
			readings:    readings,
			query:       readings,
			assessments: predictionmemory.NewAssessmentRepository(),
			alerts:      alertmemory.NewAlertRepository(),
			audit:       audit.NewLogWriter(logger),
		}
	}
	return stores{
		readings:    telemetrypostgres.NewReadingRepository(db),
		query:       telemetrypostgres.NewReadingQuery(db),
		assessments: predictionpostgres.NewAssessmentRepository(db),
		alerts:      alertpostgres.NewAlertRepository(db),
		audit:       audit.NewRepository(db),
	}
}

func buildWebhookNotifier(cfg config.AlertsConfig, logger *log.Logger) (*alertnotify.Notifier, error) {
	channel, err := alertnotify.NewWebhookChannel(cfg.WebhookURL)
	if err != nil {
		return nil, err
	}
	tpl, err := alertnotify.NewTemplate(cfg.NotifyTemplate)
	if err != nil {
		return nil, err
	}
	return alertnotify.NewNotifier(channel, tpl,
		alertnotify.WithName("webhook"),
		alertnotify.WithLogger(logger),
		alertnotify.WithRequestTimeout(cfg.NotifyTimeout),
		alertnotify.WithCooldown(cfg.NotifyCooldown),
		alertnotify.WithDedupeWindow(cfg.DedupeWindow),
	)
}

func startBackground(ctx context.Context, cfg config.Config, st stores, logger *log.Logger) {
	retention, err := telemetryapp.NewRetention(st.readings, cfg.Retention(), telemetryapp.WithRetentionLogger(logger))
	if err != nil {
		logger.Fatalf("retention error: %v", err)
	}
	go retention.Start(ctx, telemetryapp.DefaultRetentionInterval)

	if cfg.Simulator.Enabled {
		sim, err := simulator.New(st.readings,
			simulator.WithSensors(cfg.Simulator.Sensors),
			simulator.WithHighRiskRate(cfg.Simulator.HighRiskRate),
			simulator.WithLogger(logger),
		)
		if err != nil {
			logger.Fatalf("simulator error: %v", err)
		}
		go sim.Run(ctx, cfg.Simulator.Interval)
		logger.Printf("simulator: %d sensors every %s", cfg.Simulator.Sensors, cfg.Simulator.Interval)
	}

	if cfg.MQTT.BrokerURL != "" {
		client, err := telemetrymqtt.NewClient(cfg.MQTT.BrokerURL, cfg.MQTT.ClientID)
		if err != nil {
			logger.Fatalf("mqtt client error: %v", err)
		}
		subscriber, err := telemetrymqtt.NewSubscriber(client, cfg.MQTT.Topic, st.readings,
			telemetrymqtt.WithQoS(byte(cfg.MQTT.QoS)),
			telemetrymqtt.WithLogger(logger),
		)
		if err != nil {
			logger.Fatalf("mqtt subscriber error: %v", err)
		}
		go func() {
			if err := subscriber.Run(ctx); err != nil {
				logger.Printf("mqtt subscriber stopped: %v", err)
			}
		}()
	}
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush keeps the SSE stream working behind the logging wrapper.
func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
