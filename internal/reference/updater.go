package reference

import (
	"context"

	"flowops/flowbridge/internal"
	"flowops/flowbridge/internal/mapper"
	"flowops/flowbridge/internal/workflow"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Writer is the destination write boundary used when pushing rewritten
// workflows.
type Writer interface {
	Update(ctx context.Context, id string, wf workflow.Workflow) (workflow.Workflow, error)
}

// Failure records one workflow whose update call was rejected.
type Failure struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Error string `json:"error"`
}

type Statistics struct {
	Processed      int     `json:"processed"`
	ObjectsVisited int     `json:"objectsVisited"`
	Updated        int     `json:"referencesUpdated"`
	Unresolved     int     `json:"referencesUnresolved"`
	Failed         int     `json:"failed"`
	SuccessRate    float64 `json:"successRate"`
}

type Result struct {
	Failed     []Failure  `json:"failed,omitempty"`
	Statistics Statistics `json:"statistics"`
}

// Updater rewrites cross-workflow references inside created workflows so
// they point at destination-assigned ids, and pushes one update per
// workflow.
type Updater struct {
	logger *zap.Logger
	tracer trace.Tracer
	writer Writer
}

func NewUpdater(logger *zap.Logger, writer Writer) *Updater {
	return &Updater{
		logger: logger,
		tracer: otel.Tracer("reference/updater"),
		writer: writer,
	}
}

// UpdateBatch rewrites every invocation reference in the created workflows
// and issues one update call per workflow. A reference that does not
// resolve is left untouched, never nulled: a missing mapping must not turn
// into a definitely broken link. A single workflow's update failure does
// not halt the batch. Re-running over already-rewritten workflows with an
// unchanged mapper mutates nothing.
func (u *Updater) UpdateBatch(ctx context.Context, created []workflow.Workflow, idMapper *mapper.Mapper) (Result, error) {
	methodName := "UpdateBatch"
	ctx, span := u.tracer.Start(ctx, methodName)
	defer span.End()
	logger := internal.WithContext(ctx, u.logger)

	result := Result{}
	for _, wf := range created {
		visited, updated, unresolved := u.rewrite(wf, idMapper)
		result.Statistics.Processed++
		result.Statistics.ObjectsVisited += visited
		result.Statistics.Updated += updated
		result.Statistics.Unresolved += unresolved

		if unresolved > 0 {
			logger.Warn("Workflow has unresolved references, leaving them unchanged",
				zap.String("name", wf.Name),
				zap.Int("unresolved", unresolved))
		}

		if _, err := u.writer.Update(ctx, wf.ID, wf.SanitizeForCreate()); err != nil {
			result.Failed = append(result.Failed, Failure{ID: wf.ID, Name: wf.Name, Error: err.Error()})
			logger.Error("Failed to push updated workflow", zap.String("name", wf.Name), zap.Error(err))
			continue
		}

		logger.Info("Updated workflow references",
			zap.String("name", wf.Name),
			zap.Int("updated", updated),
			zap.Int("unresolved", unresolved))
	}

	result.Statistics.Failed = len(result.Failed)
	if result.Statistics.Processed > 0 {
		result.Statistics.SuccessRate = float64(result.Statistics.Processed-result.Statistics.Failed) / float64(result.Statistics.Processed)
	}

	logger.Info("Reference update complete",
		zap.Int("processed", result.Statistics.Processed),
		zap.Int("references_updated", result.Statistics.Updated),
		zap.Int("references_unresolved", result.Statistics.Unresolved))

	return result, nil
}

// rewrite walks the workflow's node parameters in place. For every value
// shaped like {workflowId: {value, cachedResultName}} it resolves the
// reference through the mapper and overwrites value with the new id,
// leaving cachedResultName for display. Unrelated fields are never touched.
func (u *Updater) rewrite(wf workflow.Workflow, idMapper *mapper.Mapper) (visited, updated, unresolved int) {
	for _, node := range wf.Nodes {
		visited += workflow.Walk(node.Parameters, func(obj map[string]interface{}) {
			raw, ok := obj[workflow.RefKey]
			if !ok {
				return
			}
			ref, ok := workflow.ParseRef(raw)
			if !ok {
				return
			}

			newID, ok := idMapper.Resolve(ref.Value, ref.CachedResultName)
			if !ok {
				unresolved++
				return
			}
			if ref.Value == newID {
				return
			}

			workflow.SetRefValue(raw, newID)
			updated++
		})
	}
	return visited, updated, unresolved
}
