package internal

import (
	"errors"
)

var (
	// Analysis Errors
	ErrDuplicateWorkflowName = errors.New("duplicate workflow name in batch")
	ErrCyclicDependencies    = errors.New("cyclic workflow dependencies")

	// Mapping Errors
	ErrDuplicateMapping = errors.New("mapping already registered for workflow id")

	// Platform API Errors
	ErrWorkflowNotFound   = errors.New("workflow not found")
	ErrUnexpectedResponse = errors.New("unexpected response from platform API")
)
