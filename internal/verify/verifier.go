package verify

import (
	"context"
	"fmt"

	"flowops/flowbridge/internal"
	"flowops/flowbridge/internal/mapper"
	"flowops/flowbridge/internal/upload"
	"flowops/flowbridge/internal/workflow"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Reader is the destination read boundary used by the verifier.
type Reader interface {
	List(ctx context.Context) ([]workflow.Workflow, error)
	Get(ctx context.Context, id string) (workflow.Workflow, error)
}

type Status string

const (
	StatusPassed Status = "PASSED"
	StatusFailed Status = "FAILED"
)

const (
	CheckCount              = "count"
	CheckCreation           = "creation"
	CheckReferenceIntegrity = "reference_integrity"
	CheckNodeCount          = "node_count"
)

// Check is one pass/fail verification result with itemized issues.
type Check struct {
	Name   string   `json:"name"`
	Passed bool     `json:"passed"`
	Issues []string `json:"issues,omitempty"`
}

// Report is the aggregate verification outcome. Status is PASSED only when
// every check passed.
type Report struct {
	Status Status  `json:"status"`
	Checks []Check `json:"checks"`
}

// Verifier runs read-only integrity checks comparing source intent against
// realized destination state. It never mutates anything; remediation is the
// operator's job.
type Verifier struct {
	logger *zap.Logger
	tracer trace.Tracer
	reader Reader
}

func NewVerifier(logger *zap.Logger, reader Reader) *Verifier {
	return &Verifier{
		logger: logger,
		tracer: otel.Tracer("verify/verifier"),
		reader: reader,
	}
}

// Verify runs the four checks in order: count, creation, reference
// integrity and node count. Failures surface as itemized issues in the
// report, never as errors; even unreachable destination reads become
// issues on the affected check.
func (v *Verifier) Verify(ctx context.Context, source []workflow.Workflow, idMapper *mapper.Mapper, uploaded upload.Result) (Report, error) {
	methodName := "Verify"
	ctx, span := v.tracer.Start(ctx, methodName)
	defer span.End()
	logger := internal.WithContext(ctx, v.logger)

	mapped := make(map[string]mapper.Mapping, idMapper.Len())
	for _, m := range idMapper.Mappings() {
		mapped[m.OldID] = m
	}

	// destination state fetched once, shared by checks 3 and 4
	destination, listErr := v.reader.List(ctx)
	destinationIDs := make(map[string]bool, len(destination))
	for _, wf := range destination {
		destinationIDs[wf.ID] = true
	}

	fetched := make(map[string]workflow.Workflow, idMapper.Len())
	var fetchIssues []string
	if listErr == nil {
		for _, m := range idMapper.Mappings() {
			wf, err := v.reader.Get(ctx, m.NewID)
			if err != nil {
				fetchIssues = append(fetchIssues, fmt.Sprintf("could not fetch %q (id %s) from destination: %v", m.Name, m.NewID, err))
				continue
			}
			fetched[m.OldID] = wf
		}
	} else {
		fetchIssues = append(fetchIssues, fmt.Sprintf("could not list destination workflows: %v", listErr))
	}

	report := Report{Status: StatusPassed}
	report.Checks = append(report.Checks, v.checkCount(source, idMapper, uploaded, mapped))
	report.Checks = append(report.Checks, v.checkCreation(source, uploaded, mapped))
	report.Checks = append(report.Checks, v.checkReferenceIntegrity(idMapper, fetched, destinationIDs, fetchIssues))
	report.Checks = append(report.Checks, v.checkNodeCount(source, mapped, fetched))

	for _, check := range report.Checks {
		if !check.Passed {
			report.Status = StatusFailed
		}
		logger.Info("Verification check finished",
			zap.String("check", check.Name),
			zap.Bool("passed", check.Passed),
			zap.Int("issues", len(check.Issues)))
	}

	logger.Info("Verification complete", zap.String("status", string(report.Status)))

	return report, nil
}

// checkCount confirms every source workflow is accounted for by a mapping
// or a skip record. Skips that were also id-mapped (the MapSkipped policy)
// count once.
func (v *Verifier) checkCount(source []workflow.Workflow, idMapper *mapper.Mapper, uploaded upload.Result, mapped map[string]mapper.Mapping) Check {
	check := Check{Name: CheckCount}

	unmappedSkips := 0
	for _, skip := range uploaded.Skipped {
		if _, ok := mapped[skip.OldID]; !ok {
			unmappedSkips++
		}
	}

	accounted := idMapper.Len() + unmappedSkips
	check.Passed = len(source) == accounted
	if !check.Passed {
		check.Issues = append(check.Issues, fmt.Sprintf("%d source workflows but only %d accounted for (%d mapped, %d skipped)", len(source), accounted, idMapper.Len(), len(uploaded.Skipped)))
	}
	return check
}

// checkCreation confirms every source workflow produced a mapping, a skip
// record or a failure record; anything with none of the three is listed.
func (v *Verifier) checkCreation(source []workflow.Workflow, uploaded upload.Result, mapped map[string]mapper.Mapping) Check {
	check := Check{Name: CheckCreation, Passed: true}

	skipped := make(map[string]bool, len(uploaded.Skipped))
	for _, skip := range uploaded.Skipped {
		skipped[skip.OldID] = true
	}
	failed := make(map[string]bool, len(uploaded.Failed))
	for _, failure := range uploaded.Failed {
		failed[failure.OldID] = true
	}

	for _, wf := range source {
		if _, ok := mapped[wf.ID]; ok {
			continue
		}
		if skipped[wf.ID] || failed[wf.ID] {
			continue
		}
		check.Passed = false
		check.Issues = append(check.Issues, fmt.Sprintf("workflow %q (id %s) has no mapping, skip or failure record", wf.Name, wf.ID))
	}
	return check
}

// checkReferenceIntegrity re-fetches every created workflow, re-runs the
// invocation-reference scan and confirms each reference points at an id the
// destination actually holds. This is the zero-lost-links guarantee,
// checked against the destination's own listing, not merely the mapper.
func (v *Verifier) checkReferenceIntegrity(idMapper *mapper.Mapper, fetched map[string]workflow.Workflow, destinationIDs map[string]bool, fetchIssues []string) Check {
	check := Check{Name: CheckReferenceIntegrity, Passed: true}

	if len(fetchIssues) > 0 {
		check.Passed = false
		check.Issues = append(check.Issues, fetchIssues...)
	}

	for _, m := range idMapper.Mappings() {
		wf, ok := fetched[m.OldID]
		if !ok {
			continue
		}
		for _, ref := range workflow.InvocationRefs(wf) {
			if destinationIDs[ref.Value] {
				continue
			}
			check.Passed = false
			check.Issues = append(check.Issues, fmt.Sprintf("workflow %q references id %q (%s) which does not exist at the destination", wf.Name, ref.Value, ref.CachedResultName))
		}
	}
	return check
}

// checkNodeCount compares node-array length per workflow between source and
// destination, flagging mismatches as potential silent data loss.
func (v *Verifier) checkNodeCount(source []workflow.Workflow, mapped map[string]mapper.Mapping, fetched map[string]workflow.Workflow) Check {
	check := Check{Name: CheckNodeCount, Passed: true}

	for _, wf := range source {
		destination, ok := fetched[wf.ID]
		if !ok {
			continue
		}
		if wf.NodeCount() != destination.NodeCount() {
			check.Passed = false
			check.Issues = append(check.Issues, fmt.Sprintf("workflow %q has %d nodes at the source but %d at the destination", wf.Name, wf.NodeCount(), destination.NodeCount()))
		}
	}
	return check
}
