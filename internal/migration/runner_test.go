package migration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"flowops/flowbridge/internal"
	"flowops/flowbridge/internal/migration"
	"flowops/flowbridge/internal/upload"
	"flowops/flowbridge/internal/verify"
	"flowops/flowbridge/internal/workflow"
	"flowops/flowbridge/test/testdata/wfbuilder"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSource is a frozen installation snapshot.
type fakeSource struct {
	workflows []workflow.Workflow
}

func (f *fakeSource) List(_ context.Context) ([]workflow.Workflow, error) {
	return f.workflows, nil
}

func (f *fakeSource) Get(_ context.Context, id string) (workflow.Workflow, error) {
	for _, wf := range f.workflows {
		if wf.ID == id {
			return wf, nil
		}
	}
	return workflow.Workflow{}, internal.ErrWorkflowNotFound
}

// fakeDestination is a stateful in-memory installation: Create assigns
// fresh ids, List and Get reflect whatever has been written so far.
type fakeDestination struct {
	workflows []workflow.Workflow
	nextID    int
	createLog []string
}

func (f *fakeDestination) List(_ context.Context) ([]workflow.Workflow, error) {
	return f.workflows, nil
}

func (f *fakeDestination) Get(_ context.Context, id string) (workflow.Workflow, error) {
	for _, wf := range f.workflows {
		if wf.ID == id {
			return wf, nil
		}
	}
	return workflow.Workflow{}, internal.ErrWorkflowNotFound
}

func (f *fakeDestination) Create(_ context.Context, wf workflow.Workflow) (workflow.Workflow, error) {
	f.nextID++
	wf.ID = fmt.Sprintf("dest-%d", f.nextID)
	f.workflows = append(f.workflows, wf)
	f.createLog = append(f.createLog, wf.Name)
	return wf, nil
}

func (f *fakeDestination) Update(_ context.Context, id string, wf workflow.Workflow) (workflow.Workflow, error) {
	for i := range f.workflows {
		if f.workflows[i].ID == id {
			wf.ID = id
			f.workflows[i] = wf
			return wf, nil
		}
	}
	return workflow.Workflow{}, internal.ErrWorkflowNotFound
}

func newRunner(source migration.Reader, destination migration.Destination) *migration.Runner {
	return migration.NewRunner(zap.NewNop(), internal.NewValidator(), source, destination)
}

func TestRunner_FullMigration(t *testing.T) {
	t.Parallel()

	child := wfbuilder.New(wfbuilder.WithID("old-child"), wfbuilder.WithName("Child"))
	parent := wfbuilder.New(wfbuilder.WithID("old-parent"), wfbuilder.WithName("Parent"),
		wfbuilder.WithInvocation("old-child", "Child"))

	source := &fakeSource{workflows: []workflow.Workflow{parent, child}}
	destination := &fakeDestination{}

	report, err := newRunner(source, destination).Run(context.Background(), migration.Options{})

	require.NoError(t, err)
	require.True(t, report.Succeeded())
	require.Equal(t, verify.StatusPassed, report.Verification.Status)
	require.Equal(t, 2, report.SourceWorkflows)
	require.Equal(t, []string{"Child", "Parent"}, destination.createLog, "dependency created before its caller")
	require.False(t, report.FinishedAt.IsZero())

	// the caller's invocation reference now points at the child's new id
	var childID string
	for _, m := range report.Mappings {
		if m.Name == "Child" {
			childID = m.NewID
		}
	}
	require.NotEmpty(t, childID)

	var rewritten []workflow.Ref
	for _, wf := range destination.workflows {
		if wf.Name == "Parent" {
			rewritten = workflow.InvocationRefs(wf)
		}
	}
	require.Len(t, rewritten, 1)
	require.Equal(t, childID, rewritten[0].Value)
}

func TestRunner_CycleAbortsWithoutForceOrder(t *testing.T) {
	t.Parallel()

	a := wfbuilder.New(wfbuilder.WithID("old-a"), wfbuilder.WithName("A"),
		wfbuilder.WithInvocation("old-b", "B"))
	b := wfbuilder.New(wfbuilder.WithID("old-b"), wfbuilder.WithName("B"),
		wfbuilder.WithInvocation("old-a", "A"))

	source := &fakeSource{workflows: []workflow.Workflow{a, b}}
	destination := &fakeDestination{}

	report, err := newRunner(source, destination).Run(context.Background(), migration.Options{})

	require.ErrorIs(t, err, internal.ErrCyclicDependencies)
	require.False(t, report.Analysis.HasValidOrder)
	require.Len(t, report.Analysis.Cycles, 1)
	require.Empty(t, destination.workflows, "nothing uploaded on abort")
	require.False(t, report.FinishedAt.IsZero(), "aborted run still closes the report")
}

func TestRunner_ForceOrderMigratesAcyclicPrefix(t *testing.T) {
	t.Parallel()

	a := wfbuilder.New(wfbuilder.WithID("old-a"), wfbuilder.WithName("A"),
		wfbuilder.WithInvocation("old-b", "B"))
	b := wfbuilder.New(wfbuilder.WithID("old-b"), wfbuilder.WithName("B"),
		wfbuilder.WithInvocation("old-a", "A"))
	standalone := wfbuilder.New(wfbuilder.WithID("old-s"), wfbuilder.WithName("Standalone"))

	source := &fakeSource{workflows: []workflow.Workflow{a, b, standalone}}
	destination := &fakeDestination{}

	report, err := newRunner(source, destination).Run(context.Background(), migration.Options{ForceOrder: true})

	require.NoError(t, err)
	require.Equal(t, []string{"Standalone"}, destination.createLog, "cycle members are never uploaded")
	require.Equal(t, verify.StatusFailed, report.Verification.Status, "unmigrated cycle members fail verification")
	require.False(t, report.Succeeded())
}

func TestRunner_TagFilter(t *testing.T) {
	t.Parallel()

	tagged := wfbuilder.New(wfbuilder.WithID("old-1"), wfbuilder.WithName("Tagged"),
		wfbuilder.WithTag("migrate"))
	untagged := wfbuilder.New(wfbuilder.WithID("old-2"), wfbuilder.WithName("Untagged"))

	source := &fakeSource{workflows: []workflow.Workflow{tagged, untagged}}
	destination := &fakeDestination{}

	report, err := newRunner(source, destination).Run(context.Background(), migration.Options{TagFilter: "migrate"})

	require.NoError(t, err)
	require.Equal(t, 1, report.SourceWorkflows)
	require.Equal(t, []string{"Tagged"}, destination.createLog)
	require.True(t, report.Succeeded())
}

func TestRunner_SkipExistingResume(t *testing.T) {
	t.Parallel()

	done := wfbuilder.New(wfbuilder.WithID("old-1"), wfbuilder.WithName("Already There"))
	fresh := wfbuilder.New(wfbuilder.WithID("old-2"), wfbuilder.WithName("Fresh"))

	source := &fakeSource{workflows: []workflow.Workflow{done, fresh}}
	destination := &fakeDestination{}

	existing := done.SanitizeForCreate()
	_, err := destination.Create(context.Background(), existing)
	require.NoError(t, err)
	destination.createLog = nil

	report, err := newRunner(source, destination).Run(context.Background(), migration.Options{
		Upload: upload.Options{SkipExisting: true},
	})

	require.NoError(t, err)
	require.Equal(t, []string{"Fresh"}, destination.createLog)
	require.Len(t, report.Upload.Skipped, 1)
	require.Equal(t, verify.StatusPassed, report.Verification.Status)
	require.True(t, report.Succeeded())
}

func TestRunner_WritesReportFile(t *testing.T) {
	t.Parallel()

	source := &fakeSource{workflows: []workflow.Workflow{
		wfbuilder.New(wfbuilder.WithID("old-1"), wfbuilder.WithName("Solo")),
	}}
	destination := &fakeDestination{}

	path := filepath.Join(t.TempDir(), "report.json")
	report, err := newRunner(source, destination).Run(context.Background(), migration.Options{ReportPath: path})

	require.NoError(t, err)
	require.True(t, report.Succeeded())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var persisted migration.Report
	require.NoError(t, json.Unmarshal(raw, &persisted))
	require.Equal(t, report.RunID, persisted.RunID)
	require.Equal(t, 1, persisted.SourceWorkflows)
}

func TestRunner_RejectsNegativeDelay(t *testing.T) {
	t.Parallel()

	source := &fakeSource{}
	destination := &fakeDestination{}

	_, err := newRunner(source, destination).Run(context.Background(), migration.Options{
		Upload: upload.Options{Delay: -1},
	})

	require.Error(t, err)
	require.Empty(t, destination.createLog)
}
