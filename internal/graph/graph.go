package graph

import (
	"flowops/flowbridge/internal/workflow"
)

// Graph is an in-memory adjacency model of workflows and their dependency
// edges, queryable by id or name. An edge from -> to means "from invokes
// to", so to must exist at the destination before from is created.
type Graph struct {
	byID   map[string]workflow.Workflow
	byName map[string]string

	dependencies map[string][]string
	dependents   map[string][]string
	edges        map[string]map[string]bool
}

func New() *Graph {
	return &Graph{
		byID:         make(map[string]workflow.Workflow),
		byName:       make(map[string]string),
		dependencies: make(map[string][]string),
		dependents:   make(map[string][]string),
		edges:        make(map[string]map[string]bool),
	}
}

// AddWorkflow registers the workflow under both its id and its name.
// A duplicate name overwrites the name index; detecting that condition is
// the caller's job.
func (g *Graph) AddWorkflow(wf workflow.Workflow) {
	g.byID[wf.ID] = wf
	g.byName[wf.Name] = wf.ID
}

// AddDependency records a directed edge from -> to, de-duplicated.
func (g *Graph) AddDependency(fromID, toID string) {
	if g.edges[fromID][toID] {
		return
	}
	if g.edges[fromID] == nil {
		g.edges[fromID] = make(map[string]bool)
	}
	g.edges[fromID][toID] = true
	g.dependencies[fromID] = append(g.dependencies[fromID], toID)
	g.dependents[toID] = append(g.dependents[toID], fromID)
}

// ByID returns the workflow registered under id.
func (g *Graph) ByID(id string) (workflow.Workflow, bool) {
	wf, ok := g.byID[id]
	return wf, ok
}

// IDByName returns the id of the workflow registered under name.
func (g *Graph) IDByName(name string) (string, bool) {
	id, ok := g.byName[name]
	return id, ok
}

// Dependencies returns the ids this workflow depends on. Never nil.
func (g *Graph) Dependencies(id string) []string {
	deps := g.dependencies[id]
	if deps == nil {
		return []string{}
	}
	return deps
}

// Dependents returns the ids that depend on this workflow. Never nil.
func (g *Graph) Dependents(id string) []string {
	deps := g.dependents[id]
	if deps == nil {
		return []string{}
	}
	return deps
}

// Len returns the number of registered workflows.
func (g *Graph) Len() int {
	return len(g.byID)
}

// EdgeCount returns the number of distinct dependency edges.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, targets := range g.edges {
		count += len(targets)
	}
	return count
}
