package mapper_test

import (
	"testing"

	"flowops/flowbridge/internal"
	"flowops/flowbridge/internal/mapper"
	"flowops/flowbridge/test/testdata/wfbuilder"

	"github.com/stretchr/testify/require"
)

func TestMapper_RegisterAndResolve(t *testing.T) {
	t.Parallel()

	m := mapper.New()
	created := wfbuilder.New(wfbuilder.WithID("new-1"))

	err := m.Register("old-1", "Invoice Sync", "new-1", created)
	require.NoError(t, err)

	newID, ok := m.Resolve("old-1", "Invoice Sync")
	require.True(t, ok)
	require.Equal(t, "new-1", newID)

	require.Equal(t, 1, m.Len())
}

func TestMapper_DuplicateRegisterIsError(t *testing.T) {
	t.Parallel()

	m := mapper.New()
	require.NoError(t, m.Register("old-1", "Invoice Sync", "new-1", wfbuilder.New()))

	err := m.Register("old-1", "Invoice Sync", "new-2", wfbuilder.New())

	require.ErrorIs(t, err, internal.ErrDuplicateMapping)
	require.Equal(t, 1, m.Len())
}

func TestMapper_NameWinsOverIDFallback(t *testing.T) {
	t.Parallel()

	m := mapper.New()
	// "old-2" also exists as an id in this batch, but the name identifies a
	// different workflow; the name entry must win.
	require.NoError(t, m.Register("old-1", "Billing", "new-1", wfbuilder.New()))
	require.NoError(t, m.Register("old-2", "Reporting", "new-2", wfbuilder.New()))

	newID, ok := m.Resolve("old-2", "Billing")

	require.True(t, ok)
	require.Equal(t, "new-1", newID, "name-indexed id beats the same-batch id collision")
}

func TestMapper_IDFallbackWhenNameUnknown(t *testing.T) {
	t.Parallel()

	m := mapper.New()
	require.NoError(t, m.Register("old-1", "Billing", "new-1", wfbuilder.New()))

	newID, ok := m.Resolve("old-1", "Renamed Since Then")

	require.True(t, ok)
	require.Equal(t, "new-1", newID)
}

func TestMapper_MissReturnsFalse(t *testing.T) {
	t.Parallel()

	m := mapper.New()

	newID, ok := m.Resolve("unknown", "Unknown")

	require.False(t, ok)
	require.Empty(t, newID)
}

func TestMapper_MappingsPreserveRegistrationOrder(t *testing.T) {
	t.Parallel()

	m := mapper.New()
	require.NoError(t, m.Register("old-1", "First", "new-1", wfbuilder.New()))
	require.NoError(t, m.Register("old-2", "Second", "new-2", wfbuilder.New()))
	require.NoError(t, m.Register("old-3", "Third", "new-3", wfbuilder.New()))

	mappings := m.Mappings()

	require.Len(t, mappings, 3)
	require.Equal(t, "old-1", mappings[0].OldID)
	require.Equal(t, "old-2", mappings[1].OldID)
	require.Equal(t, "old-3", mappings[2].OldID)
}
