package graph

import (
	"context"
	"errors"
	"fmt"
)

// End is the terminal sentinel returned by routes
const End = "__end__"

// NodeFunc performs one unit of work and returns a patch
type NodeFunc func(ctx context.Context, state State) (Patch, error)

// RouteFunc is a pure predicate choosing the next node id or End
type RouteFunc func(state State) string

// FanOutFunc returns one narrowed state view per unit to spawn
type FanOutFunc func(state State) []State

// Edge describes what runs after a node
type Edge interface {
	isEdge()
}

// StraightEdge always proceeds to To
type StraightEdge struct {
	To string
}

// ConditionalEdge picks the next node from the current state.
// Targets lists every id Route may return, End excluded.
type ConditionalEdge struct {
	Route   RouteFunc
	Targets []string
}

// FanOutEdge runs Node once per view returned by Items, concurrently, and
// continues with Join once every unit has returned
type FanOutEdge struct {
	Items FanOutFunc
	Node  string
	Join  string
}

func (StraightEdge) isEdge()    {}
func (ConditionalEdge) isEdge() {}
func (FanOutEdge) isEdge()      {}

// Graph is an immutable, validated execution graph
type Graph struct {
	schema   Schema
	nodes    map[string]NodeFunc
	edges    map[string]Edge
	entry    string
	maxSteps int
}

// Entry returns the id of the first node
func (g *Graph) Entry() string {
	return g.entry
}

// Schema returns the merge-policy table
func (g *Graph) Schema() Schema {
	return g.schema
}

// Builder assembles a graph
type Builder struct {
	schema   Schema
	nodes    map[string]NodeFunc
	edges    map[string]Edge
	entry    string
	maxSteps int
	errs     []error
}

// NewBuilder creates a builder for graphs over the given schema
func NewBuilder(schema Schema) *Builder {
	return &Builder{
		schema: schema,
		nodes:  make(map[string]NodeFunc),
		edges:  make(map[string]Edge),
	}
}

// AddNode registers a node
func (b *Builder) AddNode(id string, fn NodeFunc) *Builder {
	if _, exists := b.nodes[id]; exists {
		b.errs = append(b.errs, fmt.Errorf("duplicate node ID: %s", id))
		return b
	}
	b.nodes[id] = fn
	return b
}

// AddEdge adds a straight edge
func (b *Builder) AddEdge(from, to string) *Builder {
	return b.setEdge(from, StraightEdge{To: to})
}

// AddConditionalEdge adds a conditional edge
func (b *Builder) AddConditionalEdge(from string, route RouteFunc, targets ...string) *Builder {
	return b.setEdge(from, ConditionalEdge{Route: route, Targets: targets})
}

// AddFanOut adds a fan-out edge from one node through node to join
func (b *Builder) AddFanOut(from string, items FanOutFunc, node, join string) *Builder {
	return b.setEdge(from, FanOutEdge{Items: items, Node: node, Join: join})
}

// SetEntry sets the first node
func (b *Builder) SetEntry(id string) *Builder {
	b.entry = id
	return b
}

// SetMaxSteps bounds the number of steps of one run; zero disables the bound
func (b *Builder) SetMaxSteps(n int) *Builder {
	b.maxSteps = n
	return b
}

// Build validates and returns the graph
func (b *Builder) Build() (*Graph, error) {
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGraph, errors.Join(b.errs...))
	}

	g := &Graph{
		schema:   b.schema,
		nodes:    b.nodes,
		edges:    b.edges,
		entry:    b.entry,
		maxSteps: b.maxSteps,
	}

	if err := NewValidator().Validate(g); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGraph, err)
	}

	return g, nil
}

func (b *Builder) setEdge(from string, e Edge) *Builder {
	if _, exists := b.edges[from]; exists {
		b.errs = append(b.errs, fmt.Errorf("node %s already has an outgoing edge", from))
		return b
	}
	b.edges[from] = e
	return b
}
