// Package graph implements the execution graph that sequences pipeline nodes.
//
// A graph is built once from:
//   - a Schema declaring the merge policy (replace, append, immutable) of every state field
//   - nodes that read the state and return a Patch
//   - one outgoing edge per node: straight, conditional or fan-out
//
// Run threads a single State through the graph. Fan-out edges spawn one
// concurrent unit per narrowed view and block until all units return before
// merging their patches, so the join node never observes partial results.
package graph
