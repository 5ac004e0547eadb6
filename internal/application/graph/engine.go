package graph

import (
	"context"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
)

// Observer is notified around every node invocation, fan-out units included
type Observer interface {
	NodeStarted(ctx context.Context, node string)
	NodeFinished(ctx context.Context, node string, duration time.Duration, err error)
	FanOut(ctx context.Context, node string, width int)
}

// RunOption configures a single run
type RunOption func(*runConfig)

type runConfig struct {
	observer Observer
}

// WithObserver attaches an observer to a run
func WithObserver(o Observer) RunOption {
	return func(c *runConfig) {
		c.observer = o
	}
}

// Run executes the graph from its entry node until a route returns End.
//
// The returned state is the state as of the last merged patch, also when an
// error is returned.
func (g *Graph) Run(ctx context.Context, initial State, opts ...RunOption) (State, error) {
	cfg := &runConfig{observer: noopObserver{}}
	for _, opt := range opts {
		opt(cfg)
	}

	state := initial.Clone()
	if err := g.schema.Validate(state); err != nil {
		return state, err
	}

	current := g.entry
	for step := 0; current != End; step++ {
		if g.maxSteps > 0 && step >= g.maxSteps {
			return state, fmt.Errorf("%w: %d steps", ErrStepLimitExceeded, g.maxSteps)
		}

		patch, err := g.invoke(ctx, cfg.observer, current, state)
		if err != nil {
			return state, err
		}
		if err := g.schema.Apply(state, patch); err != nil {
			return state, &NodeError{Node: current, Err: err}
		}

		next, err := g.advance(ctx, cfg.observer, current, state)
		if err != nil {
			return state, err
		}
		current = next
	}

	return state, nil
}

// advance follows the outgoing edge of a completed node
func (g *Graph) advance(ctx context.Context, obs Observer, from string, state State) (string, error) {
	switch e := g.edges[from].(type) {
	case StraightEdge:
		return e.To, nil

	case ConditionalEdge:
		next := e.Route(state)
		if next != End && !slices.Contains(e.Targets, next) {
			return "", &NodeError{Node: from, Err: fmt.Errorf("%w: route returned %q", ErrUnknownNode, next)}
		}
		return next, nil

	case FanOutEdge:
		if err := g.fanOut(ctx, obs, e, state); err != nil {
			return "", err
		}
		return e.Join, nil

	default:
		return "", &NodeError{Node: from, Err: fmt.Errorf("unsupported edge type %T", e)}
	}
}

// fanOut runs one unit per view and merges the patches only after every unit
// has returned. Patches are merged in spawn order.
func (g *Graph) fanOut(ctx context.Context, obs Observer, e FanOutEdge, state State) error {
	views := e.Items(state)
	obs.FanOut(ctx, e.Node, len(views))

	patches := make([]Patch, len(views))
	var group errgroup.Group

	for i, view := range views {
		i, view := i, view
		group.Go(func() error {
			patch, err := g.invoke(ctx, obs, e.Node, view)
			if err != nil {
				return err
			}
			patches[i] = patch
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}

	for _, patch := range patches {
		if err := g.schema.Apply(state, patch); err != nil {
			return &NodeError{Node: e.Node, Err: err}
		}
	}

	return nil
}

// invoke runs a node with observer notifications and panic recovery
func (g *Graph) invoke(ctx context.Context, obs Observer, id string, state State) (patch Patch, err error) {
	fn, ok := g.nodes[id]
	if !ok {
		return nil, &NodeError{Node: id, Err: ErrUnknownNode}
	}

	start := time.Now()
	obs.NodeStarted(ctx, id)
	defer func() {
		if r := recover(); r != nil {
			patch = nil
			err = &NodeError{Node: id, Err: fmt.Errorf("%w: %v", ErrNodePanic, r)}
		}
		obs.NodeFinished(ctx, id, time.Since(start), err)
	}()

	patch, err = fn(ctx, state)
	if err != nil {
		return nil, &NodeError{Node: id, Err: err}
	}
	return patch, nil
}

type noopObserver struct{}

func (noopObserver) NodeStarted(context.Context, string)                        {}
func (noopObserver) NodeFinished(context.Context, string, time.Duration, error) {}
func (noopObserver) FanOut(context.Context, string, int)                        {}
