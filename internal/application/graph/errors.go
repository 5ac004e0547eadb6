package graph

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidGraph      = errors.New("invalid graph")
	ErrUnknownNode       = errors.New("unknown node")
	ErrUnknownField      = errors.New("field not declared in schema")
	ErrImmutableField    = errors.New("field is immutable")
	ErrNotAppendable     = errors.New("append requires a slice value")
	ErrTypeMismatch      = errors.New("append type mismatch")
	ErrStepLimitExceeded = errors.New("step limit exceeded")
	ErrNodePanic         = errors.New("node panicked")
)

// NodeError is a fatal error raised while running or merging a node
type NodeError struct {
	Node string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %v", e.Node, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}
