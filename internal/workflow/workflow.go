package workflow

// Workflow is the platform's wire representation of an automation workflow.
// ID is assigned by the owning installation and is not portable across
// installations; Name is the only stable cross-system key within a batch.
type Workflow struct {
	ID          string                 `json:"id,omitempty"`
	Name        string                 `json:"name" validate:"required"`
	Active      bool                   `json:"active,omitempty"`
	Nodes       []Node                 `json:"nodes"`
	Connections map[string]interface{} `json:"connections"`
	Settings    map[string]interface{} `json:"settings,omitempty"`
	Tags        []Tag                  `json:"tags,omitempty"`
	CreatedAt   string                 `json:"createdAt,omitempty"`
	UpdatedAt   string                 `json:"updatedAt,omitempty"`
}

type Tag struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// Node is one step inside a workflow. Parameters is an opaque bag; only
// invocation nodes carry a cross-workflow reference inside it.
type Node struct {
	ID          string                 `json:"id,omitempty"`
	Name        string                 `json:"name"`
	Type        string                 `json:"type"`
	TypeVersion float64                `json:"typeVersion,omitempty"`
	Position    []float64              `json:"position,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
	Credentials map[string]interface{} `json:"credentials,omitempty"`
}

// InvocationNodeType is the node type that calls another workflow.
const InvocationNodeType = "n8n-nodes-base.executeWorkflow"

// NodeCount returns the number of nodes, the unit compared by the
// post-migration node-count check.
func (w Workflow) NodeCount() int {
	return len(w.Nodes)
}

// SanitizeForCreate returns a copy of the workflow with every field the
// destination assigns itself stripped: id, audit timestamps, the active
// flag and tag links. The destination rejects payloads carrying them.
func (w Workflow) SanitizeForCreate() Workflow {
	clean := Workflow{
		Name:        w.Name,
		Nodes:       w.Nodes,
		Connections: w.Connections,
		Settings:    w.Settings,
	}
	if clean.Connections == nil {
		clean.Connections = map[string]interface{}{}
	}
	if clean.Settings == nil {
		clean.Settings = map[string]interface{}{}
	}
	return clean
}

// InvocationRefs scans the workflow's invocation nodes and returns every
// cross-workflow reference found in their parameter trees.
func InvocationRefs(w Workflow) []Ref {
	var refs []Ref
	for _, node := range w.Nodes {
		if node.Type != InvocationNodeType {
			continue
		}
		Walk(node.Parameters, func(obj map[string]interface{}) {
			if ref, ok := ParseRef(obj[RefKey]); ok {
				refs = append(refs, ref)
			}
		})
	}
	return refs
}
