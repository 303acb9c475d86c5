// Package wfbuilder builds workflow fixtures for tests.
package wfbuilder

import (
	"flowops/flowbridge/internal/workflow"
	"flowops/flowbridge/test/testdata"
)

type Option func(*workflow.Workflow)

// New returns a workflow with a random id and name, a single no-op node
// and empty connections, modified by the given options.
func New(opts ...Option) workflow.Workflow {
	wf := workflow.Workflow{
		ID:   testdata.RandomID(),
		Name: testdata.RandomWorkflowName(),
		Nodes: []workflow.Node{
			{
				ID:   testdata.RandomID(),
				Name: testdata.RandomNodeName(),
				Type: "n8n-nodes-base.noOp",
			},
		},
		Connections: map[string]interface{}{},
	}
	for _, opt := range opts {
		opt(&wf)
	}
	return wf
}

func WithID(id string) Option {
	return func(wf *workflow.Workflow) {
		wf.ID = id
	}
}

func WithName(name string) Option {
	return func(wf *workflow.Workflow) {
		wf.Name = name
	}
}

func WithTag(name string) Option {
	return func(wf *workflow.Workflow) {
		wf.Tags = append(wf.Tags, workflow.Tag{ID: testdata.RandomID(), Name: name})
	}
}

func WithTimestamps(created, updated string) Option {
	return func(wf *workflow.Workflow) {
		wf.CreatedAt = created
		wf.UpdatedAt = updated
	}
}

// WithInvocation appends an invocation node referencing another workflow by
// id and cached name.
func WithInvocation(targetID, targetName string) Option {
	return func(wf *workflow.Workflow) {
		wf.Nodes = append(wf.Nodes, workflow.Node{
			ID:   testdata.RandomID(),
			Name: "Call " + targetName,
			Type: workflow.InvocationNodeType,
			Parameters: map[string]interface{}{
				workflow.RefKey: map[string]interface{}{
					"__rl":             true,
					"mode":             "list",
					"value":            targetID,
					"cachedResultName": targetName,
				},
			},
		})
	}
}

// WithExtraNodes pads the workflow with n additional no-op nodes.
func WithExtraNodes(n int) Option {
	return func(wf *workflow.Workflow) {
		for i := 0; i < n; i++ {
			wf.Nodes = append(wf.Nodes, workflow.Node{
				ID:   testdata.RandomID(),
				Name: testdata.RandomNodeName(),
				Type: "n8n-nodes-base.noOp",
			})
		}
	}
}
