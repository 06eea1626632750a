package query

import "fmt"

// CompilationError reports a malformed query. No partial plan accompanies it.
type CompilationError struct {
	Reason    string
	Dimension string
	Datatype  string
	Err       error
}

func (e *CompilationError) Error() string {
	if e.Dimension != "" {
		return fmt.Sprintf("dimension [%s] has unknown type of [%s]", e.Dimension, e.Datatype)
	}
	if e.Err != nil {
		return fmt.Sprintf("compile query: %s: %v", e.Reason, e.Err)
	}
	return "compile query: " + e.Reason
}

func (e *CompilationError) Unwrap() error { return e.Err }

// ExecutionError reports a store failure while running a pipeline or an
// insert.
type ExecutionError struct {
	Collection string
	Namespace  string
	Op         string
	Err        error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s on collection [%s]@[%s]: %v", e.Op, e.Collection, e.Namespace, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// MergeInconsistencyError reports a returned attribute that is neither a
// declared dimension nor a declared metric.
type MergeInconsistencyError struct {
	Attribute string
}

func (e *MergeInconsistencyError) Error() string {
	return fmt.Sprintf("mismatch between dimensions/metrics lookup and actual returned set: unexpected attribute [%s]", e.Attribute)
}
