// Package migration sequences the five phases of a workflow migration:
// analyze, upload, reference update, verify, report. It is glue; the
// interesting decisions live in the phase packages.
package migration

import (
	"context"
	"fmt"
	"time"

	"flowops/flowbridge/internal"
	"flowops/flowbridge/internal/graph"
	"flowops/flowbridge/internal/mapper"
	"flowops/flowbridge/internal/reference"
	"flowops/flowbridge/internal/upload"
	"flowops/flowbridge/internal/verify"
	"flowops/flowbridge/internal/workflow"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Reader is the read boundary of an installation.
type Reader interface {
	List(ctx context.Context) ([]workflow.Workflow, error)
	Get(ctx context.Context, id string) (workflow.Workflow, error)
}

// Destination is the full boundary of the target installation.
type Destination interface {
	Reader
	Create(ctx context.Context, wf workflow.Workflow) (workflow.Workflow, error)
	Update(ctx context.Context, id string, wf workflow.Workflow) (workflow.Workflow, error)
}

// Options controls one migration run.
type Options struct {
	Upload upload.Options
	// ForceOrder uploads the acyclic prefix of a cyclic batch instead of
	// aborting. Cycle members are reported, never uploaded.
	ForceOrder bool
	// TagFilter migrates only source workflows carrying this tag.
	TagFilter string
	// ReportPath persists the JSON report when non-empty.
	ReportPath string
}

type Runner struct {
	logger      *zap.Logger
	tracer      trace.Tracer
	validate    *validator.Validate
	source      Reader
	destination Destination
	analyzer    *graph.Analyzer
	uploader    *upload.Service
	updater     *reference.Updater
	verifier    *verify.Verifier
}

func NewRunner(logger *zap.Logger, validate *validator.Validate, source Reader, destination Destination) *Runner {
	return &Runner{
		logger:      logger,
		tracer:      otel.Tracer("migration/runner"),
		validate:    validate,
		source:      source,
		destination: destination,
		analyzer:    graph.NewAnalyzer(logger),
		uploader:    upload.NewService(logger, destination),
		updater:     reference.NewUpdater(logger, destination),
		verifier:    verify.NewVerifier(logger, destination),
	}
}

// Run executes one migration. Already-created workflows are never rolled
// back; a partial run is expected to be resumed later with SkipExisting.
// The returned report is populated as far as the run got, even when an
// error is also returned.
func (r *Runner) Run(ctx context.Context, opts Options) (Report, error) {
	methodName := "Run"
	ctx, span := r.tracer.Start(ctx, methodName)
	defer span.End()

	runID := uuid.New().String()
	ctx = internal.WithRunID(ctx, runID)
	logger := internal.WithContext(ctx, r.logger)

	report := Report{RunID: runID, StartedAt: time.Now().UTC()}

	if err := internal.ValidateStruct(r.validate, opts); err != nil {
		span.RecordError(err)
		return report, fmt.Errorf("invalid migration options: %w", err)
	}

	source, err := r.source.List(ctx)
	if err != nil {
		span.RecordError(err)
		return report, fmt.Errorf("failed to list source workflows: %w", err)
	}
	source = filterByTag(source, opts.TagFilter)
	report.SourceWorkflows = len(source)
	logger.Info("Fetched source workflows", zap.Int("count", len(source)))

	existing, err := r.destination.List(ctx)
	if err != nil {
		span.RecordError(err)
		return report, fmt.Errorf("failed to list destination workflows: %w", err)
	}
	logger.Info("Fetched destination workflows", zap.Int("count", len(existing)))

	analysis, err := r.analyzer.Analyze(ctx, source)
	if err != nil {
		span.RecordError(err)
		return report, err
	}
	report.Analysis = analysis

	if !analysis.HasValidOrder && !opts.ForceOrder {
		err := fmt.Errorf("%w: %v (re-run with force_order to migrate the acyclic prefix)", internal.ErrCyclicDependencies, analysis.Cycles)
		span.RecordError(err)
		return r.persist(report, opts, logger), err
	}

	idMapper := mapper.New()

	uploaded, err := r.uploader.UploadBatch(ctx, analysis.Order, existing, idMapper, opts.Upload)
	report.Upload = uploaded
	report.Mappings = idMapper.Mappings()
	if err != nil {
		span.RecordError(err)
		return r.persist(report, opts, logger), err
	}

	updated, err := r.updater.UpdateBatch(ctx, uploaded.Success, idMapper)
	report.Update = updated
	if err != nil {
		span.RecordError(err)
		return r.persist(report, opts, logger), err
	}

	verification, err := r.verifier.Verify(ctx, source, idMapper, uploaded)
	report.Verification = verification
	report.Mappings = idMapper.Mappings()
	if err != nil {
		span.RecordError(err)
		return r.persist(report, opts, logger), err
	}

	logger.Info("Migration run finished",
		zap.Int("source_workflows", report.SourceWorkflows),
		zap.Int("created", uploaded.Statistics.Succeeded),
		zap.Int("skipped", uploaded.Statistics.Skipped),
		zap.Int("failed", uploaded.Statistics.Failed),
		zap.String("verification", string(verification.Status)))

	return r.persist(report, opts, logger), nil
}

func (r *Runner) persist(report Report, opts Options, logger *zap.Logger) Report {
	report.FinishedAt = time.Now().UTC()
	if opts.ReportPath == "" {
		return report
	}
	if err := report.WriteFile(opts.ReportPath); err != nil {
		logger.Error("Failed to persist migration report", zap.String("path", opts.ReportPath), zap.Error(err))
		return report
	}
	logger.Info("Persisted migration report", zap.String("path", opts.ReportPath))
	return report
}

func filterByTag(workflows []workflow.Workflow, tag string) []workflow.Workflow {
	if tag == "" {
		return workflows
	}
	filtered := make([]workflow.Workflow, 0, len(workflows))
	for _, wf := range workflows {
		for _, t := range wf.Tags {
			if t.Name == tag {
				filtered = append(filtered, wf)
				break
			}
		}
	}
	return filtered
}
