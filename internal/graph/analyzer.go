package graph

import (
	"context"
	"fmt"
	"sort"

	"flowops/flowbridge/internal"
	"flowops/flowbridge/internal/workflow"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Statistics summarizes the dependency structure of an analyzed batch.
type Statistics struct {
	Workflows       int     `json:"workflows"`
	Dependencies    int     `json:"dependencies"`
	ZeroDependency  int     `json:"zeroDependency"`
	MaxDependencies int     `json:"maxDependencies"`
	AvgDependencies float64 `json:"avgDependencies"`
}

// Analysis is the analyzer's output: a creation order (dependencies first)
// when one exists, the implicated workflow names when it does not, warnings
// for references that could not be resolved inside the batch, and summary
// statistics.
type Analysis struct {
	Order         []workflow.Workflow `json:"order"`
	HasValidOrder bool                `json:"hasValidOrder"`
	Cycles        [][]string          `json:"cycles,omitempty"`
	Warnings      []string            `json:"warnings,omitempty"`
	Statistics    Statistics          `json:"statistics"`
}

type Analyzer struct {
	logger *zap.Logger
	tracer trace.Tracer
}

func NewAnalyzer(logger *zap.Logger) *Analyzer {
	return &Analyzer{
		logger: logger,
		tracer: otel.Tracer("graph/analyzer"),
	}
}

// Analyze indexes the batch, derives dependency edges from invocation
// references and computes a safe creation order with Kahn's algorithm.
// Duplicate workflow names are a hard error: name is the only stable
// cross-system key, so a silently overwritten name index would corrupt
// reference resolution later. Cycles are reported, never broken.
func (a *Analyzer) Analyze(ctx context.Context, workflows []workflow.Workflow) (Analysis, error) {
	methodName := "Analyze"
	ctx, span := a.tracer.Start(ctx, methodName)
	defer span.End()
	logger := internal.WithContext(ctx, a.logger)

	g := New()
	for _, wf := range workflows {
		if existingID, ok := g.IDByName(wf.Name); ok {
			err := fmt.Errorf("%w: %q used by workflows %s and %s", internal.ErrDuplicateWorkflowName, wf.Name, existingID, wf.ID)
			span.RecordError(err)
			return Analysis{}, err
		}
		g.AddWorkflow(wf)
	}

	analysis := Analysis{}
	for _, wf := range workflows {
		for _, ref := range workflow.InvocationRefs(wf) {
			targetID, ok := a.resolveTarget(g, ref)
			if !ok {
				warning := fmt.Sprintf("workflow %q references %q (id %q) which is not in this batch", wf.Name, ref.CachedResultName, ref.Value)
				analysis.Warnings = append(analysis.Warnings, warning)
				logger.Warn("Unresolved workflow reference",
					zap.String("workflow", wf.Name),
					zap.String("target_name", ref.CachedResultName),
					zap.String("target_id", ref.Value))
				continue
			}
			if targetID == wf.ID {
				// self-invocation needs no ordering constraint
				continue
			}
			g.AddDependency(wf.ID, targetID)
		}
	}

	order, placed := kahnOrder(g, workflows)
	analysis.Order = order
	analysis.HasValidOrder = len(order) == len(workflows)
	if !analysis.HasValidOrder {
		analysis.Cycles = cycleGroups(g, workflows, placed)
		logger.Warn("Dependency cycle detected", zap.Int("unplaced", len(workflows)-len(order)))
	}

	analysis.Statistics = statistics(g)

	logger.Info("Dependency analysis complete",
		zap.Int("workflows", analysis.Statistics.Workflows),
		zap.Int("dependencies", analysis.Statistics.Dependencies),
		zap.Bool("has_valid_order", analysis.HasValidOrder))

	return analysis, nil
}

// resolveTarget resolves a reference preferentially by cached name against
// the name index, falling back to the source id against the id index.
func (a *Analyzer) resolveTarget(g *Graph, ref workflow.Ref) (string, bool) {
	if ref.CachedResultName != "" {
		if id, ok := g.IDByName(ref.CachedResultName); ok {
			return id, true
		}
	}
	if ref.Value != "" {
		if _, ok := g.ByID(ref.Value); ok {
			return ref.Value, true
		}
	}
	return "", false
}

// kahnOrder computes a topological order placing every workflow after its
// dependencies. Seeds iterate in batch order so the result is stable.
func kahnOrder(g *Graph, workflows []workflow.Workflow) ([]workflow.Workflow, map[string]bool) {
	indegree := make(map[string]int, len(workflows))
	for _, wf := range workflows {
		indegree[wf.ID] = len(g.Dependencies(wf.ID))
	}

	queue := make([]string, 0, len(workflows))
	for _, wf := range workflows {
		if indegree[wf.ID] == 0 {
			queue = append(queue, wf.ID)
		}
	}

	order := make([]workflow.Workflow, 0, len(workflows))
	placed := make(map[string]bool, len(workflows))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		wf, _ := g.ByID(id)
		order = append(order, wf)
		placed[id] = true

		for _, dependent := range g.Dependents(id) {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	return order, placed
}

// cycleGroups groups the unplaced workflows into connected components of
// the leftover subgraph and returns their names, sorted within each group.
func cycleGroups(g *Graph, workflows []workflow.Workflow, placed map[string]bool) [][]string {
	var groups [][]string
	visited := make(map[string]bool)

	for _, wf := range workflows {
		if placed[wf.ID] || visited[wf.ID] {
			continue
		}

		var names []string
		stack := []string{wf.ID}
		visited[wf.ID] = true
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			member, _ := g.ByID(id)
			names = append(names, member.Name)

			neighbors := make([]string, 0)
			neighbors = append(neighbors, g.Dependencies(id)...)
			neighbors = append(neighbors, g.Dependents(id)...)
			for _, neighbor := range neighbors {
				if placed[neighbor] || visited[neighbor] {
					continue
				}
				visited[neighbor] = true
				stack = append(stack, neighbor)
			}
		}

		sort.Strings(names)
		groups = append(groups, names)
	}

	return groups
}

func statistics(g *Graph) Statistics {
	stats := Statistics{
		Workflows:    g.Len(),
		Dependencies: g.EdgeCount(),
	}
	for id := range g.byID {
		count := len(g.Dependencies(id))
		if count == 0 {
			stats.ZeroDependency++
		}
		if count > stats.MaxDependencies {
			stats.MaxDependencies = count
		}
	}
	if stats.Workflows > 0 {
		stats.AvgDependencies = float64(stats.Dependencies) / float64(stats.Workflows)
	}
	return stats
}
