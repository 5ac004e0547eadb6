package graph

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const (
	fieldInput   Field = "input"
	fieldCount   Field = "count"
	fieldParts   Field = "parts"
	fieldPart    Field = "part"
	fieldResults Field = "results"
	fieldDone    Field = "done"
)

var engineSchema = Schema{
	fieldInput:   Immutable,
	fieldCount:   Replace,
	fieldParts:   Replace,
	fieldPart:    Replace,
	fieldResults: Append,
	fieldDone:    Replace,
}

func TestRunConditionalTerminatesEarly(t *testing.T) {
	var afterCalls atomic.Int32

	g, err := NewBuilder(engineSchema).
		AddNode("check", func(ctx context.Context, s State) (Patch, error) {
			return Patch{fieldDone: true}, nil
		}).
		AddNode("after", func(ctx context.Context, s State) (Patch, error) {
			afterCalls.Add(1)
			return nil, nil
		}).
		AddConditionalEdge("check", func(s State) string {
			if done, _ := Get[bool](s, fieldDone); done {
				return End
			}
			return "after"
		}, "after").
		AddEdge("after", End).
		SetEntry("check").
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	final, err := g.Run(context.Background(), State{fieldInput: "hi"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if afterCalls.Load() != 0 {
		t.Fatalf("after ran %d times", afterCalls.Load())
	}
	if final[fieldInput] != "hi" {
		t.Fatalf("input = %v", final[fieldInput])
	}
}

func TestRunFanOutBarrier(t *testing.T) {
	parts := []string{"a", "b", "c", "d", "e", "f"}
	var joinSaw []string

	g, err := NewBuilder(engineSchema).
		AddNode("split", func(ctx context.Context, s State) (Patch, error) {
			return Patch{fieldParts: parts}, nil
		}).
		AddNode("unit", func(ctx context.Context, s State) (Patch, error) {
			part, _ := Get[string](s, fieldPart)
			// Later parts finish first.
			time.Sleep(time.Duration(len(parts)-indexOf(parts, part)) * 5 * time.Millisecond)
			return Patch{fieldResults: []string{part + "!"}}, nil
		}).
		AddNode("join", func(ctx context.Context, s State) (Patch, error) {
			joinSaw, _ = Get[[]string](s, fieldResults)
			return nil, nil
		}).
		AddFanOut("split", func(s State) []State {
			ps, _ := Get[[]string](s, fieldParts)
			views := make([]State, len(ps))
			for i, p := range ps {
				views[i] = State{fieldPart: p}
			}
			return views
		}, "unit", "join").
		AddEdge("join", End).
		SetEntry("split").
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if _, err := g.Run(context.Background(), State{}); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []string{"a!", "b!", "c!", "d!", "e!", "f!"}
	if !reflect.DeepEqual(joinSaw, want) {
		t.Fatalf("join saw %v, want %v", joinSaw, want)
	}
}

func TestRunFanOutIsConcurrent(t *testing.T) {
	const width = 4
	var (
		mu      sync.Mutex
		running int
		peak    int
		release = make(chan struct{})
	)

	g, err := NewBuilder(engineSchema).
		AddNode("split", func(ctx context.Context, s State) (Patch, error) { return nil, nil }).
		AddNode("unit", func(ctx context.Context, s State) (Patch, error) {
			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			if running == width {
				close(release)
			}
			mu.Unlock()
			<-release
			return Patch{fieldResults: []int{1}}, nil
		}).
		AddNode("join", func(ctx context.Context, s State) (Patch, error) { return nil, nil }).
		AddFanOut("split", func(s State) []State { return make([]State, width) }, "unit", "join").
		AddEdge("join", End).
		SetEntry("split").
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		final, err := g.Run(context.Background(), State{})
		if err == nil {
			if got, _ := Get[[]int](final, fieldResults); len(got) != width {
				err = fmt.Errorf("results = %v", got)
			}
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("fan-out units did not run concurrently")
	}
	if peak != width {
		t.Fatalf("peak concurrency = %d, want %d", peak, width)
	}
}

func TestRunStepLimit(t *testing.T) {
	g, err := NewBuilder(engineSchema).
		AddNode("loop", func(ctx context.Context, s State) (Patch, error) {
			n, _ := Get[int](s, fieldCount)
			return Patch{fieldCount: n + 1}, nil
		}).
		AddConditionalEdge("loop", func(State) string { return "loop" }, "loop").
		SetEntry("loop").
		SetMaxSteps(5).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	final, err := g.Run(context.Background(), State{})
	if !errors.Is(err, ErrStepLimitExceeded) {
		t.Fatalf("err = %v, want ErrStepLimitExceeded", err)
	}
	if n, _ := Get[int](final, fieldCount); n != 5 {
		t.Fatalf("count = %d, want 5", n)
	}
}

func TestRunNodeErrorAborts(t *testing.T) {
	boom := errors.New("transport down")
	var nextCalled bool

	g, err := NewBuilder(engineSchema).
		AddNode("first", func(ctx context.Context, s State) (Patch, error) { return nil, boom }).
		AddNode("second", func(ctx context.Context, s State) (Patch, error) {
			nextCalled = true
			return nil, nil
		}).
		AddEdge("first", "second").
		AddEdge("second", End).
		SetEntry("first").
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	_, err = g.Run(context.Background(), State{})
	var nodeErr *NodeError
	if !errors.As(err, &nodeErr) || nodeErr.Node != "first" {
		t.Fatalf("err = %v, want NodeError for first", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("err does not wrap cause: %v", err)
	}
	if nextCalled {
		t.Fatal("run continued after node error")
	}
}

func TestRunRecoversPanicInFanOutUnit(t *testing.T) {
	g, err := NewBuilder(engineSchema).
		AddNode("split", func(ctx context.Context, s State) (Patch, error) { return nil, nil }).
		AddNode("unit", func(ctx context.Context, s State) (Patch, error) { panic("bad unit") }).
		AddNode("join", func(ctx context.Context, s State) (Patch, error) { return nil, nil }).
		AddFanOut("split", func(s State) []State { return []State{{}} }, "unit", "join").
		AddEdge("join", End).
		SetEntry("split").
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if _, err := g.Run(context.Background(), State{}); !errors.Is(err, ErrNodePanic) {
		t.Fatalf("err = %v, want ErrNodePanic", err)
	}
}

func TestRunRouteToUndeclaredTarget(t *testing.T) {
	g, err := NewBuilder(engineSchema).
		AddNode("a", func(ctx context.Context, s State) (Patch, error) { return nil, nil }).
		AddNode("b", func(ctx context.Context, s State) (Patch, error) { return nil, nil }).
		AddConditionalEdge("a", func(State) string { return "nowhere" }, "b").
		AddEdge("b", End).
		SetEntry("a").
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if _, err := g.Run(context.Background(), State{}); !errors.Is(err, ErrUnknownNode) {
		t.Fatalf("err = %v, want ErrUnknownNode", err)
	}
}

func TestRunDoesNotMutateInitialState(t *testing.T) {
	g, err := NewBuilder(engineSchema).
		AddNode("a", func(ctx context.Context, s State) (Patch, error) { return Patch{fieldCount: 7}, nil }).
		AddEdge("a", End).
		SetEntry("a").
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	initial := State{fieldInput: "x"}
	if _, err := g.Run(context.Background(), initial); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, ok := initial[fieldCount]; ok {
		t.Fatal("initial state was mutated")
	}
}

type recordingObserver struct {
	mu       sync.Mutex
	started  []string
	finished []string
	widths   []int
}

func (r *recordingObserver) NodeStarted(_ context.Context, node string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, node)
}

func (r *recordingObserver) NodeFinished(_ context.Context, node string, _ time.Duration, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, node)
}

func (r *recordingObserver) FanOut(_ context.Context, _ string, width int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.widths = append(r.widths, width)
}

func TestRunNotifiesObserver(t *testing.T) {
	g, err := NewBuilder(engineSchema).
		AddNode("split", func(ctx context.Context, s State) (Patch, error) { return nil, nil }).
		AddNode("unit", func(ctx context.Context, s State) (Patch, error) { return nil, nil }).
		AddNode("join", func(ctx context.Context, s State) (Patch, error) { return nil, nil }).
		AddFanOut("split", func(s State) []State { return []State{{}, {}, {}} }, "unit", "join").
		AddEdge("join", End).
		SetEntry("split").
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	obs := &recordingObserver{}
	if _, err := g.Run(context.Background(), State{}, WithObserver(obs)); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(obs.started) != 5 || len(obs.finished) != 5 {
		t.Fatalf("started=%v finished=%v", obs.started, obs.finished)
	}
	if !reflect.DeepEqual(obs.widths, []int{3}) {
		t.Fatalf("widths = %v", obs.widths)
	}
}

func indexOf(items []string, s string) int {
	for i, v := range items {
		if v == s {
			return i
		}
	}
	return -1
}
