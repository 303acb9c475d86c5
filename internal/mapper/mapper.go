// Package mapper holds the single source of truth for old-to-new workflow
// identity within one migration run.
package mapper

import (
	"fmt"

	"flowops/flowbridge/internal"
	"flowops/flowbridge/internal/workflow"
)

// Mapping records one successfully created workflow: the identity it had at
// the source, the identity the destination assigned, and a snapshot of the
// created workflow.
type Mapping struct {
	OldID   string            `json:"oldId"`
	Name    string            `json:"name"`
	NewID   string            `json:"newId"`
	Created workflow.Workflow `json:"-"`
}

// Mapper is an append-only registry of identity mappings, queryable by
// source id or by name. It is an explicit object passed through the
// migration phases, never a process-wide singleton, so independent
// migrations and tests each get a fresh instance.
type Mapper struct {
	byOldID map[string]Mapping
	byName  map[string]Mapping
	order   []Mapping
}

func New() *Mapper {
	return &Mapper{
		byOldID: make(map[string]Mapping),
		byName:  make(map[string]Mapping),
	}
}

// Register appends a mapping. A workflow is created exactly once per run,
// so a second registration under the same oldID is a programmer error and
// returns ErrDuplicateMapping. A duplicate name overwrites the name index
// (last write wins); the analyzer rejects duplicate-name batches up front.
func (m *Mapper) Register(oldID, name, newID string, created workflow.Workflow) error {
	if _, ok := m.byOldID[oldID]; ok {
		return fmt.Errorf("%w: %s", internal.ErrDuplicateMapping, oldID)
	}

	mapping := Mapping{OldID: oldID, Name: name, NewID: newID, Created: created}
	m.byOldID[oldID] = mapping
	m.byName[name] = mapping
	m.order = append(m.order, mapping)
	return nil
}

// Resolve translates an old reference to the destination id, trying the
// name first and the old id second. Name wins deliberately: the destination
// may already hold a same-named workflow from a prior partial run, so the
// name-indexed id must beat a same-batch id collision. The id fallback only
// helps when the referenced id was itself migrated in this batch. A miss
// returns ("", false), never an error.
func (m *Mapper) Resolve(oldID, name string) (string, bool) {
	if name != "" {
		if mapping, ok := m.byName[name]; ok {
			return mapping.NewID, true
		}
	}
	if oldID != "" {
		if mapping, ok := m.byOldID[oldID]; ok {
			return mapping.NewID, true
		}
	}
	return "", false
}

// Mappings returns every registered mapping in registration order.
func (m *Mapper) Mappings() []Mapping {
	out := make([]Mapping, len(m.order))
	copy(out, m.order)
	return out
}

// Len returns the number of registered mappings.
func (m *Mapper) Len() int {
	return len(m.byOldID)
}
