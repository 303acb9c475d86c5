package workflow

// RefKey is the parameter key under which an invocation node stores its
// cross-workflow reference.
const RefKey = "workflowId"

// Ref is the parsed form of an invocation node's cross-workflow reference:
// {value: <id>, cachedResultName: <name>}. Value is the id the reference
// held in the source installation; CachedResultName is the human-readable
// workflow name kept for display.
type Ref struct {
	Value            string
	CachedResultName string
}

// ParseRef decides once, at parse time, whether a raw parameter value is an
// invocation reference. It returns false for every other shape.
func ParseRef(v interface{}) (Ref, bool) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return Ref{}, false
	}

	value, hasValue := obj["value"].(string)
	name, hasName := obj["cachedResultName"].(string)
	if !hasValue && !hasName {
		return Ref{}, false
	}

	return Ref{Value: value, CachedResultName: name}, true
}

// SetRefValue overwrites the id of a reference previously recognized by
// ParseRef, leaving cachedResultName and any sibling fields untouched.
func SetRefValue(v interface{}, newID string) {
	if obj, ok := v.(map[string]interface{}); ok {
		obj["value"] = newID
	}
}

// Walk recursively visits every JSON object inside v, calling visit on each
// map encountered, parents before children. Arrays are descended into;
// scalars are ignored. Workflow parameter trees are finite, so the walk
// always terminates. It returns the number of objects visited.
func Walk(v interface{}, visit func(obj map[string]interface{})) int {
	visited := 0
	switch value := v.(type) {
	case map[string]interface{}:
		visited++
		visit(value)
		for _, child := range value {
			visited += Walk(child, visit)
		}
	case []interface{}:
		for _, child := range value {
			visited += Walk(child, visit)
		}
	}
	return visited
}
