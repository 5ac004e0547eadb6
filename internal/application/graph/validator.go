package graph

import (
	"fmt"
	"sort"
)

// Validator validates graph structures
type Validator struct{}

// NewValidator creates a new graph validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates a graph structure
func (v *Validator) Validate(g *Graph) error {
	if g == nil {
		return fmt.Errorf("graph is nil")
	}

	if len(g.nodes) == 0 {
		return fmt.Errorf("graph must have at least one node")
	}

	if g.schema == nil {
		return fmt.Errorf("graph schema is required")
	}

	if g.maxSteps < 0 {
		return fmt.Errorf("max steps must not be negative: %d", g.maxSteps)
	}

	// Validate entry node exists
	if g.entry == "" {
		return fmt.Errorf("entry node is required")
	}
	if _, exists := g.nodes[g.entry]; !exists {
		return fmt.Errorf("entry node %s not found in graph", g.entry)
	}

	// Validate nodes
	for _, id := range sortedKeys(g.nodes) {
		if id == "" || id == End {
			return fmt.Errorf("invalid node ID: %q", id)
		}
		if g.nodes[id] == nil {
			return fmt.Errorf("node %s is nil", id)
		}
	}

	// Validate edges
	units := make(map[string]bool)
	for _, from := range sortedKeys(g.edges) {
		if _, exists := g.nodes[from]; !exists {
			return fmt.Errorf("edge references non-existent source node: %s", from)
		}

		switch e := g.edges[from].(type) {
		case StraightEdge:
			if err := v.validateTarget(g, e.To); err != nil {
				return fmt.Errorf("edge from %s: %w", from, err)
			}
		case ConditionalEdge:
			if e.Route == nil {
				return fmt.Errorf("conditional edge from %s has no route", from)
			}
			for _, to := range e.Targets {
				if err := v.validateTarget(g, to); err != nil {
					return fmt.Errorf("conditional edge from %s: %w", from, err)
				}
			}
		case FanOutEdge:
			if e.Items == nil {
				return fmt.Errorf("fan-out edge from %s has no item function", from)
			}
			if _, exists := g.nodes[e.Node]; !exists {
				return fmt.Errorf("fan-out edge from %s references non-existent node: %s", from, e.Node)
			}
			if _, exists := g.nodes[e.Join]; !exists {
				return fmt.Errorf("fan-out edge from %s references non-existent join node: %s", from, e.Join)
			}
			units[e.Node] = true
		default:
			return fmt.Errorf("unsupported edge type %T from %s", e, from)
		}
	}

	// Every node except fan-out units needs an outgoing edge
	for _, id := range sortedKeys(g.nodes) {
		if _, ok := g.edges[id]; !ok && !units[id] {
			return fmt.Errorf("node %s has no outgoing edge", id)
		}
	}

	return v.validateReachability(g)
}

// validateTarget checks an edge target
func (v *Validator) validateTarget(g *Graph, to string) error {
	if to == End {
		return nil
	}
	if _, exists := g.nodes[to]; !exists {
		return fmt.Errorf("%w: %s", ErrUnknownNode, to)
	}
	return nil
}

// validateReachability checks that every node can be reached from the entry
func (v *Validator) validateReachability(g *Graph) error {
	seen := map[string]bool{g.entry: true}
	queue := []string{g.entry}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		var next []string
		switch e := g.edges[id].(type) {
		case StraightEdge:
			next = []string{e.To}
		case ConditionalEdge:
			next = e.Targets
		case FanOutEdge:
			next = []string{e.Node, e.Join}
		}

		for _, n := range next {
			if n == End || seen[n] {
				continue
			}
			seen[n] = true
			queue = append(queue, n)
		}
	}

	for _, id := range sortedKeys(g.nodes) {
		if !seen[id] {
			return fmt.Errorf("node %s is unreachable from entry %s", id, g.entry)
		}
	}

	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
