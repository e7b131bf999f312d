// Command fern runs one full relational-to-graph ETL pass: it waits for the
// shop database and the graph store, applies the graph schema, then extracts,
// transforms and loads. The process exits non-zero if any stage fails.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/repositories/source"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/pipeline"
	"github.com/Ramsey-B/fern/pkg/routes/health"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/tracing/exporters"
	"github.com/Ramsey-B/fern/pkg/transformer"
)

const version = "1.0.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(&exporters.ConsoleExporter{}))
	otel.SetTracerProvider(tp)
	tracing.SetTracer(tp.Tracer(cfg.AppName))
	defer tp.Shutdown(context.Background())

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("ETL run did not complete")
		fmt.Fprintf(os.Stderr, "ETL process failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger ectologger.Logger) error {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresSSLMode,
	)
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}
	defer db.Close()

	graphClient, err := graph.NewClient(graph.Config{
		URI:      cfg.GraphURI,
		Username: cfg.GraphUser,
		Password: cfg.GraphPassword,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create graph client: %w", err)
	}
	defer graphClient.Close(context.Background())

	var emitter *events.Emitter
	if cfg.KafkaEnabled {
		producer := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaTopic,
			BatchSize:    cfg.KafkaBatchSize,
			BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
			RequiredAcks: cfg.KafkaRequiredAcks,
			Compression:  cfg.KafkaCompression,
		}, logger)
		defer producer.Close()
		emitter = events.NewEmitter(producer, logger)
	}

	checker := health.NewChecker(db, graphClient, version)
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	checker.RegisterRoutes(e)
	go func() {
		if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.WithError(err).Warn("Health server stopped")
		}
	}()
	defer e.Shutdown(context.Background())

	sourceRepo := source.NewRepository(db, logger)

	dependencies := []pipeline.Dependency{
		{
			Name: "postgres",
			Probe: func(ctx context.Context) error {
				probeCtx, cancel := context.WithTimeout(ctx, cfg.StartupProbeTimeout)
				defer cancel()
				return sourceRepo.Ping(probeCtx)
			},
		},
		{
			Name: "graph",
			Probe: func(ctx context.Context) error {
				probeCtx, cancel := context.WithTimeout(ctx, cfg.StartupProbeTimeout)
				defer cancel()
				return graphClient.VerifyConnectivity(probeCtx)
			},
		},
	}

	p := pipeline.New(
		logger,
		pipeline.Config{
			MaxAttempts:   cfg.StartupMaxAttempts,
			RetryInterval: cfg.StartupRetryInterval,
		},
		dependencies,
		graph.NewSchemaService(graphClient, logger),
		sourceRepo,
		transformer.New(logger),
		graph.NewLoader(graphClient, logger, cfg.BatchSize),
		emitter,
	)

	checker.SetReady(true)

	report, err := p.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Print(report.String())
	fmt.Println(pipeline.CompletionMarker)
	return nil
}

func newLogger(cfg *config.Config) ectologger.Logger {
	var zapLogger *zap.Logger
	var err error
	if cfg.PrettyLogs {
		zapLogger, err = zap.NewDevelopment()
	} else {
		zapLogger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}
