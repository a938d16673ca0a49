package graph

import "errors"

// Structural errors returned by graph mutations. All are wrapped with edge
// detail at the call site, so match with errors.Is.
var (
	ErrCycle               = errors.New("dependency would create a cycle")
	ErrSelfDependency      = errors.New("task cannot depend on itself")
	ErrDuplicateDependency = errors.New("dependency already exists")
	ErrDependencyNotFound  = errors.New("dependency not found")
)
