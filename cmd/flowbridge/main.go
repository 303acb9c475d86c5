package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flowops/flowbridge/internal"
	"flowops/flowbridge/internal/config"
	"flowops/flowbridge/internal/migration"
	"flowops/flowbridge/internal/n8n"
	"flowops/flowbridge/internal/upload"

	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.6.1"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var AppName = "no-app-name"

var Version = "no-version"

var BuildTime = "no-build-time"

var CommitHash = "no-commit-hash"

var Environment = "no-env"

func main() {
	AppName = os.Getenv("APP_NAME")
	if AppName == "" {
		AppName = "flowbridge"
	}

	if BuildTime == "no-build-time" {
		now := time.Now()
		BuildTime = "not provided (now: " + now.Format(time.RFC3339) + ")"
	}

	Environment = os.Getenv("ENV")
	if Environment == "" {
		Environment = "no-env"
	}

	appMetadata := []zap.Field{
		zap.String("app_name", AppName),
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("commit_hash", CommitHash),
		zap.String("environment", Environment),
	}

	cfg, cfgLog := config.Load()
	err := cfg.Validate()
	if err != nil {
		switch {
		case errors.Is(err, config.ErrSourceURLRequired):
			log.Fatal(EarlyApplicationFailed(
				"Source installation URL is required",
				"Set the SOURCE_URL environment variable or the source_url key in config.yaml, e.g. https://n8n.source.example.com"))
		case errors.Is(err, config.ErrSourceAPIKeyRequired):
			log.Fatal(EarlyApplicationFailed(
				"Source API key is required",
				"Create an API key in the source installation (Settings > n8n API) and set SOURCE_API_KEY."))
		case errors.Is(err, config.ErrDestinationURLRequired):
			log.Fatal(EarlyApplicationFailed(
				"Destination installation URL is required",
				"Set the DESTINATION_URL environment variable or the destination_url key in config.yaml."))
		case errors.Is(err, config.ErrDestinationAPIKeyRequired):
			log.Fatal(EarlyApplicationFailed(
				"Destination API key is required",
				"Create an API key in the destination installation (Settings > n8n API) and set DESTINATION_API_KEY."))
		default:
			log.Fatalf("Failed to validate config: %v, exiting...", err)
		}
	}

	logger, err := initLogger(&cfg, appMetadata)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v, exiting...", err)
	}

	cfgLog.FlushToZap(logger)

	logger.Info("Starting migration...")

	shutdown, err := initOpenTelemetry(AppName, Version, BuildTime, CommitHash, Environment, cfg.OtelCollectorUrl)
	if err != nil {
		logger.Fatal("Failed to initialize OpenTelemetry", zap.Error(err))
	}

	validate := internal.NewValidator()
	if err := internal.ValidateStruct(validate, &cfg); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	source := n8n.NewClient(logger, cfg.SourceURL, cfg.SourceAPIKey)
	destination := n8n.NewClient(logger, cfg.DestinationURL, cfg.DestinationAPIKey)

	runner := migration.NewRunner(logger, validate, source, destination)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := runner.Run(ctx, migration.Options{
		Upload: upload.Options{
			SkipExisting: cfg.SkipExisting,
			MapSkipped:   cfg.MapSkipped,
			StopOnError:  cfg.StopOnError,
			Delay:        cfg.RequestDelay,
		},
		ForceOrder: cfg.ForceOrder,
		TagFilter:  cfg.TagFilter,
		ReportPath: cfg.ReportPath,
	})

	otelCtx, otelCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer otelCancel()
	if shutdownErr := shutdown(otelCtx); shutdownErr != nil {
		logger.Error("Forced to shutdown OpenTelemetry", zap.Error(shutdownErr))
	}

	if err != nil {
		logger.Error("Migration run failed", zap.Error(err))
		os.Exit(1)
	}
	if !report.Succeeded() {
		logger.Error("Migration finished with failures, see report",
			zap.String("verification", string(report.Verification.Status)),
			zap.String("report_path", cfg.ReportPath))
		os.Exit(1)
	}

	logger.Info("Migration completed successfully",
		zap.Int("created", report.Upload.Statistics.Succeeded),
		zap.Int("skipped", report.Upload.Statistics.Skipped),
		zap.Int("references_updated", report.Update.Statistics.Updated))
}

func initLogger(cfg *config.Config, appMetadata []zap.Field) (*zap.Logger, error) {
	var err error
	var logger *zap.Logger
	if cfg.Debug {
		logger, err = logutil.ZapDevelopmentConfig().Build()
		if err != nil {
			return nil, err
		}
		logger.Info("Running in debug mode", appMetadata...)
	} else {
		logger, err = logutil.ZapProductionConfig().Build()
		if err != nil {
			return nil, err
		}

		logger = logger.With(appMetadata...)
	}
	defer func() {
		err := logger.Sync()
		if err != nil {
			zap.S().Errorw("Failed to sync logger", zap.Error(err))
		}
	}()

	return logger, nil
}

func initOpenTelemetry(appName, version, buildTime, commitHash, environment, otelCollectorUrl string) (func(context.Context) error, error) {
	ctx := context.Background()

	serviceName := semconv.ServiceNameKey.String(appName)
	serviceVersion := semconv.ServiceVersionKey.String(version)
	serviceNamespace := semconv.ServiceNamespaceKey.String("flowops")
	serviceCommitHash := semconv.ServiceVersionKey.String(commitHash)
	serviceEnvironment := semconv.DeploymentEnvironmentKey.String(environment)

	res, err := resource.New(ctx,
		resource.WithAttributes(
			serviceName,
			serviceVersion,
			serviceNamespace,
			serviceCommitHash,
			serviceEnvironment,
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	options := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}

	if otelCollectorUrl != "" {
		conn, err := initGrpcConn(otelCollectorUrl)
		if err != nil {
			return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
		}

		traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}

		bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
		options = append(options, sdktrace.WithSpanProcessor(bsp))
	}

	tracerProvider := sdktrace.NewTracerProvider(options...)

	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tracerProvider.Shutdown, nil
}

func initGrpcConn(target string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	return conn, nil
}

func EarlyApplicationFailed(title, action string) string {
	result := `
-----------------------------------------
Application Failed to Start
-----------------------------------------

# What's wrong?
%s

# How to fix it?
%s

`

	result = fmt.Sprintf(result, title, action)
	return result
}
