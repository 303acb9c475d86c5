package upload

import (
	"context"
	"time"

	"flowops/flowbridge/internal"
	"flowops/flowbridge/internal/mapper"
	"flowops/flowbridge/internal/workflow"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Creator is the destination write boundary used during upload.
type Creator interface {
	Create(ctx context.Context, wf workflow.Workflow) (workflow.Workflow, error)
}

// Options controls batch behavior.
type Options struct {
	// SkipExisting records a same-named destination workflow as skipped
	// instead of creating a duplicate. Used to resume partial runs.
	SkipExisting bool
	// MapSkipped additionally registers the skipped workflow's existing
	// destination id, so same-batch references to it still resolve.
	MapSkipped bool
	// StopOnError aborts the remaining batch after the first failed create.
	StopOnError bool
	// Delay is the client-side rate limit inserted between create calls.
	Delay time.Duration `validate:"gte=0"`
}

// Failure records one workflow whose create call was rejected.
type Failure struct {
	OldID string `json:"oldId"`
	Name  string `json:"name"`
	Error string `json:"error"`
}

// Skip records one workflow left alone because the destination already has
// a workflow with its name.
type Skip struct {
	OldID      string `json:"oldId"`
	Name       string `json:"name"`
	ExistingID string `json:"existingId,omitempty"`
}

type Statistics struct {
	Attempted   int     `json:"attempted"`
	Succeeded   int     `json:"succeeded"`
	Failed      int     `json:"failed"`
	Skipped     int     `json:"skipped"`
	SuccessRate float64 `json:"successRate"`
}

// Result aggregates one batch. A fully failed batch is still a Result,
// never an error.
type Result struct {
	Success    []workflow.Workflow `json:"-"`
	Failed     []Failure           `json:"failed,omitempty"`
	Skipped    []Skip              `json:"skipped,omitempty"`
	Statistics Statistics          `json:"statistics"`
}

type Service struct {
	logger  *zap.Logger
	tracer  trace.Tracer
	creator Creator
}

func NewService(logger *zap.Logger, creator Creator) *Service {
	return &Service{
		logger:  logger,
		tracer:  otel.Tracer("upload/service"),
		creator: creator,
	}
}

// UploadBatch creates the workflows at the destination strictly in the
// given order, one at a time, registering an identity mapping for each
// successful create. existing is a pre-fetched destination listing used by
// the SkipExisting policy. Per-workflow failures are recorded and the batch
// continues unless StopOnError is set; the only error returned is context
// cancellation.
func (s *Service) UploadBatch(ctx context.Context, ordered []workflow.Workflow, existing []workflow.Workflow, idMapper *mapper.Mapper, opts Options) (Result, error) {
	methodName := "UploadBatch"
	ctx, span := s.tracer.Start(ctx, methodName)
	defer span.End()
	logger := internal.WithContext(ctx, s.logger)

	existingByName := make(map[string]workflow.Workflow, len(existing))
	for _, wf := range existing {
		existingByName[wf.Name] = wf
	}

	result := Result{}
	for i, wf := range ordered {
		if opts.SkipExisting {
			if destination, ok := existingByName[wf.Name]; ok {
				result.Skipped = append(result.Skipped, Skip{OldID: wf.ID, Name: wf.Name, ExistingID: destination.ID})
				if opts.MapSkipped {
					if err := idMapper.Register(wf.ID, wf.Name, destination.ID, destination); err != nil {
						span.RecordError(err)
						return result, err
					}
				}
				logger.Info("Workflow already exists at destination, skipping",
					zap.String("name", wf.Name),
					zap.String("existing_id", destination.ID))
				continue
			}
		}

		if i > 0 && opts.Delay > 0 {
			select {
			case <-time.After(opts.Delay):
			case <-ctx.Done():
				span.RecordError(ctx.Err())
				return finalize(result), ctx.Err()
			}
		}

		created, err := s.creator.Create(ctx, wf.SanitizeForCreate())
		if err != nil {
			result.Failed = append(result.Failed, Failure{OldID: wf.ID, Name: wf.Name, Error: err.Error()})
			logger.Error("Failed to create workflow at destination", zap.String("name", wf.Name), zap.Error(err))
			if opts.StopOnError {
				logger.Warn("Aborting remaining batch", zap.Int("remaining", len(ordered)-i-1))
				break
			}
			continue
		}

		if err := idMapper.Register(wf.ID, wf.Name, created.ID, created); err != nil {
			span.RecordError(err)
			return finalize(result), err
		}
		result.Success = append(result.Success, created)
		logger.Info("Created workflow at destination",
			zap.String("name", wf.Name),
			zap.String("old_id", wf.ID),
			zap.String("new_id", created.ID))
	}

	result = finalize(result)
	logger.Info("Upload batch complete",
		zap.Int("attempted", result.Statistics.Attempted),
		zap.Int("succeeded", result.Statistics.Succeeded),
		zap.Int("failed", result.Statistics.Failed),
		zap.Int("skipped", result.Statistics.Skipped))

	return result, nil
}

func finalize(result Result) Result {
	stats := Statistics{
		Succeeded: len(result.Success),
		Failed:    len(result.Failed),
		Skipped:   len(result.Skipped),
	}
	stats.Attempted = stats.Succeeded + stats.Failed
	if stats.Attempted > 0 {
		stats.SuccessRate = float64(stats.Succeeded) / float64(stats.Attempted)
	}
	result.Statistics = stats
	return result
}
