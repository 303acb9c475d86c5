package graph_test

import (
	"testing"

	"flowops/flowbridge/internal/graph"
	"flowops/flowbridge/test/testdata/wfbuilder"

	"github.com/stretchr/testify/require"
)

func TestGraph_AddWorkflow(t *testing.T) {
	t.Parallel()

	g := graph.New()
	wf := wfbuilder.New(wfbuilder.WithID("w1"), wfbuilder.WithName("Invoice Sync"))

	g.AddWorkflow(wf)

	byID, ok := g.ByID("w1")
	require.True(t, ok)
	require.Equal(t, wf, byID)

	id, ok := g.IDByName("Invoice Sync")
	require.True(t, ok)
	require.Equal(t, "w1", id)

	require.Equal(t, 1, g.Len())
}

func TestGraph_DuplicateNameOverwritesNameIndex(t *testing.T) {
	t.Parallel()

	g := graph.New()
	g.AddWorkflow(wfbuilder.New(wfbuilder.WithID("w1"), wfbuilder.WithName("Invoice Sync")))
	g.AddWorkflow(wfbuilder.New(wfbuilder.WithID("w2"), wfbuilder.WithName("Invoice Sync")))

	id, ok := g.IDByName("Invoice Sync")
	require.True(t, ok)
	require.Equal(t, "w2", id, "last write wins on the name index")
	require.Equal(t, 2, g.Len(), "both workflows stay registered by id")
}

func TestGraph_AddDependency(t *testing.T) {
	t.Parallel()

	g := graph.New()
	g.AddWorkflow(wfbuilder.New(wfbuilder.WithID("a")))
	g.AddWorkflow(wfbuilder.New(wfbuilder.WithID("b")))

	g.AddDependency("a", "b")
	g.AddDependency("a", "b")

	require.Equal(t, []string{"b"}, g.Dependencies("a"), "edge is de-duplicated")
	require.Equal(t, []string{"a"}, g.Dependents("b"))
	require.Equal(t, 1, g.EdgeCount())
}

func TestGraph_EmptyNeighborLists(t *testing.T) {
	t.Parallel()

	g := graph.New()

	require.NotNil(t, g.Dependencies("missing"))
	require.Empty(t, g.Dependencies("missing"))
	require.NotNil(t, g.Dependents("missing"))
	require.Empty(t, g.Dependents("missing"))
}
