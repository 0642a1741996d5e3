// Package ports defines the contracts that the DAG executor depends on but
// does not implement itself: the operator capability set, window
// descriptors, and the configuration-error vocabulary raised while
// building and compiling a graph.
package ports

import (
	"errors"
	"fmt"
)

// Configuration errors are raised synchronously from graph construction,
// validation, or executor construction. They never occur on the hot path.
var (
	// ErrCycle indicates the graph contains a circular dependency and
	// cannot be topologically sorted.
	ErrCycle = errors.New("graph contains a cycle")

	// ErrMultipleRoots indicates a root was declared on a graph that
	// already has one.
	ErrMultipleRoots = errors.New("graph has more than one root node")

	// ErrNoRoot indicates the graph has no root node to execute from.
	ErrNoRoot = errors.New("graph has no root node")

	// ErrDanglingNode indicates an edge or output references a node that
	// was never declared.
	ErrDanglingNode = errors.New("reference to undeclared node")

	// ErrPortOutOfRange indicates an edge references an output port beyond
	// the producer's arity.
	ErrPortOutOfRange = errors.New("output port out of range")

	// ErrAuxTargetInvalid indicates an auxiliary node's input comes from
	// something other than the root node, or a parameter edge comes from
	// something other than the supplementary root.
	ErrAuxTargetInvalid = errors.New("auxiliary input may only reference the root node")

	// ErrDuplicateNode indicates a node identity (handle or name) was
	// already registered in the graph.
	ErrDuplicateNode = errors.New("node already exists")

	// ErrZeroGroups indicates an executor was asked to manage zero groups.
	ErrZeroGroups = errors.New("number of groups must be greater than zero")

	// ErrEmptyGraph indicates compilation was attempted on a graph with no
	// nodes.
	ErrEmptyGraph = errors.New("graph has no nodes")

	// ErrStageArityMismatch indicates two adjacent pipeline stages disagree
	// on record width.
	ErrStageArityMismatch = errors.New("pipeline stage width mismatch")

	// ErrStageGroupMismatch indicates a pipeline stage was built for a
	// different number of groups than the pipeline.
	ErrStageGroupMismatch = errors.New("pipeline stage group count mismatch")

	// ErrGroupOutOfRange indicates a group index passed to the executor
	// does not exist.
	ErrGroupOutOfRange = errors.New("group index out of range")
)

// GraphError decorates a configuration error with the node identity
// involved, so that a cycle or dangling reference can be traced back to
// the declaration that caused it.
type GraphError struct {
	// Node is the node handle or name implicated in the error, when known.
	Node string
	// Err is the underlying sentinel error.
	Err error
}

// Error implements the error interface for GraphError.
func (e *GraphError) Error() string {
	if e.Node == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("node %q: %v", e.Node, e.Err)
}

// Unwrap returns the underlying sentinel error, enabling errors.Is checks.
func (e *GraphError) Unwrap() error { return e.Err }

// NewGraphError creates a GraphError attributing err to the named node.
func NewGraphError(node string, err error) *GraphError {
	return &GraphError{Node: node, Err: err}
}

// EdgeError decorates a configuration error with the edge endpoints that
// caused it, for diagnosing port-range and dangling-producer failures.
type EdgeError struct {
	// Producer is the upstream node identity.
	Producer string
	// Port is the output port requested on Producer.
	Port int
	// Err is the underlying sentinel error.
	Err error
}

// Error implements the error interface for EdgeError.
func (e *EdgeError) Error() string {
	return fmt.Sprintf("edge %s.%d: %v", e.Producer, e.Port, e.Err)
}

// Unwrap returns the underlying sentinel error.
func (e *EdgeError) Unwrap() error { return e.Err }

// NewEdgeError creates an EdgeError for the given producer/port pair.
func NewEdgeError(producer string, port int, err error) *EdgeError {
	return &EdgeError{Producer: producer, Port: port, Err: err}
}
