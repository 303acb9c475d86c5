package migration

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"flowops/flowbridge/internal/graph"
	"flowops/flowbridge/internal/mapper"
	"flowops/flowbridge/internal/reference"
	"flowops/flowbridge/internal/upload"
	"flowops/flowbridge/internal/verify"
)

// Report aggregates the outputs of every migration phase plus the full
// mapping table.
type Report struct {
	RunID           string           `json:"runId"`
	StartedAt       time.Time        `json:"startedAt"`
	FinishedAt      time.Time        `json:"finishedAt"`
	SourceWorkflows int              `json:"sourceWorkflows"`
	Analysis        graph.Analysis   `json:"analysis"`
	Upload          upload.Result    `json:"upload"`
	Update          reference.Result `json:"referenceUpdate"`
	Verification    verify.Report    `json:"verification"`
	Mappings        []mapper.Mapping `json:"mappings"`
}

// Succeeded reports whether the run as a whole can be called good: a valid
// order, no failed creates or updates, and a passed verification.
func (r Report) Succeeded() bool {
	if !r.Analysis.HasValidOrder {
		return false
	}
	if r.Upload.Statistics.Failed > 0 || r.Update.Statistics.Failed > 0 {
		return false
	}
	return r.Verification.Status == verify.StatusPassed
}

// WriteFile persists the report as indented JSON.
func (r Report) WriteFile(path string) error {
	payload, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode migration report: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("failed to write migration report: %w", err)
	}
	return nil
}
