// Package main implements a runnable walkthrough of the lending engine
// against a local Postgres database: it provisions the schema, seeds a small
// catalog, and drives the full loan lifecycle including the conflict cases.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"

	"github.com/AntonStoeckl/library-lending-go/example/demo/config"
	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/oteladapters"
	"github.com/AntonStoeckl/library-lending-go/lending/postgresengine"
)

type Config struct {
	ObservabilityEnabled bool
	OverdueBackdateDays  int
}

func main() {
	cfg := parseFlags()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgxPool, err := pgxpool.NewWithConfig(ctx, config.PostgresPGXPoolDemoConfig())
	if err != nil {
		log.Fatalf("Failed to create pgx pool: %v", err)
	}
	defer pgxPool.Close()

	if err := pgxPool.Ping(ctx); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	var engineOptions []postgresengine.Option
	var providers *config.DemoObservabilityProviders

	if cfg.ObservabilityEnabled {
		obsConfig := cfg.NewObservabilityConfig()
		providers = obsConfig.Providers

		if obsConfig.ContextualLogger != nil {
			engineOptions = append(engineOptions, postgresengine.WithContextualLogger(obsConfig.ContextualLogger))
		}
		if obsConfig.MetricsCollector != nil {
			engineOptions = append(engineOptions, postgresengine.WithMetrics(obsConfig.MetricsCollector))
		}
		if obsConfig.TracingCollector != nil {
			engineOptions = append(engineOptions, postgresengine.WithTracing(obsConfig.TracingCollector))
		}
	} else {
		engineOptions = append(engineOptions,
			postgresengine.WithLogger(slog.New(slog.NewTextHandler(os.Stdout, nil))))
	}

	engine, err := postgresengine.NewLendingEngineFromPGXPool(pgxPool, engineOptions...)
	if err != nil {
		log.Fatalf("Failed to create lending engine: %v", err)
	}

	demo := NewDemo(pgxPool, engine, engineOptions, cfg)

	if err := demo.Run(ctx); err != nil {
		log.Fatalf("Demo failed: %v", err)
	}

	if providers != nil {
		if err := providers.Shutdown(); err != nil {
			log.Printf("Error shutting down observability providers: %v", err)
		}
	}

	log.Printf("Demo finished")
}

func parseFlags() Config {
	var (
		observability = flag.Bool("observability-enabled", false, "Enable OpenTelemetry observability")
		backdateDays  = flag.Int("overdue-backdate-days", 20, "How many days in the past the overdue loan is borrowed")
	)

	flag.Parse()

	if *backdateDays <= lending.DefaultLoanPeriodDays {
		log.Fatalf("overdue-backdate-days must be greater than the loan period of %d days", lending.DefaultLoanPeriodDays)
	}

	return Config{
		ObservabilityEnabled: *observability,
		OverdueBackdateDays:  *backdateDays,
	}
}

// ObservabilityConfig holds the observability adapters for the lending engine.
type ObservabilityConfig struct {
	ContextualLogger lending.ContextualLogger
	MetricsCollector lending.MetricsCollector
	TracingCollector lending.TracingCollector
	Providers        *config.DemoObservabilityProviders
}

func (c Config) NewObservabilityConfig() ObservabilityConfig {
	if !c.ObservabilityEnabled {
		return ObservabilityConfig{}
	}

	providers, err := config.NewDemoObservabilityConfig()
	if err != nil {
		log.Printf("Failed to create observability providers: %v", err)
		return ObservabilityConfig{}
	}

	tracer := otel.Tracer("library-lending-demo")
	meter := otel.Meter("library-lending-demo")

	return ObservabilityConfig{
		ContextualLogger: oteladapters.NewSlogBridgeLogger("library-lending-demo"),
		MetricsCollector: oteladapters.NewMetricsCollector(meter),
		TracingCollector: oteladapters.NewTracingCollector(tracer),
		Providers:        providers,
	}
}
