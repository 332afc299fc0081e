package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/mattjoyce/octox/internal/event"
	"github.com/mattjoyce/octox/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type calls []int

type testWorkflow struct {
	initial func() *state.Bag
	step    Step
}

func (w testWorkflow) InitialState() *state.Bag {
	if w.initial == nil {
		return state.New()
	}
	return w.initial()
}

func (w testWorkflow) InitialStep() Step { return w.step }

func quietEngine(wf Workflow, opts ...EngineOption) *Engine {
	opts = append([]EngineOption{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return NewEngine(wf, opts...)
}

var unsupported = event.Event{Kind: event.KindUnsupported}

// chain returns a step that continues `remaining` times before completing,
// recording its index in the calls slice stored in the bag.
func chain(index, remaining int) Step {
	return StepFunc(func(_ context.Context, bag *state.Bag) (Transition, error) {
		c, ok := state.GetMut[calls](bag)
		if !ok {
			state.Insert(bag, calls{index})
		} else {
			*c = append(*c, index)
		}
		if remaining == 0 {
			got, _ := state.Get[calls](bag)
			return Complete(got), nil
		}
		return Continue(chain(index+1, remaining-1)), nil
	})
}

func TestExecuteImmediateComplete(t *testing.T) {
	invocations := 0
	wf := testWorkflow{step: StepFunc(func(context.Context, *state.Bag) (Transition, error) {
		invocations++
		return Complete("done"), nil
	})}

	got, err := quietEngine(wf).Execute(context.Background(), unsupported)
	require.NoError(t, err)
	assert.Equal(t, "done", got)
	assert.Equal(t, 1, invocations)
}

func TestExecuteChainedSteps(t *testing.T) {
	for _, n := range []int{0, 1, 5, 20} {
		t.Run(fmt.Sprintf("%d continues", n), func(t *testing.T) {
			got, err := quietEngine(testWorkflow{step: chain(0, n)}).Execute(context.Background(), unsupported)
			require.NoError(t, err)

			order, ok := got.(calls)
			require.True(t, ok)
			require.Len(t, order, n+1)
			for i, idx := range order {
				assert.Equal(t, i, idx)
			}
		})
	}
}

func TestExecuteInsertsEvent(t *testing.T) {
	ev := event.Event{Kind: event.KindCheckRun, Action: "created"}
	wf := testWorkflow{step: StepFunc(func(_ context.Context, bag *state.Bag) (Transition, error) {
		got, ok := state.Get[event.Event](bag)
		if !ok {
			return Transition{}, Missing("event")
		}
		return Complete("received " + got.String()), nil
	})}

	got, err := quietEngine(wf).Execute(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, "received check_run created event", got)
}

func TestExecuteKeepsInitialState(t *testing.T) {
	type greeting string
	wf := testWorkflow{
		initial: func() *state.Bag {
			bag := state.New()
			state.Insert(bag, greeting("hello"))
			return bag
		},
		step: StepFunc(func(_ context.Context, bag *state.Bag) (Transition, error) {
			g, _ := state.Get[greeting](bag)
			assert.Equal(t, 2, bag.Len())
			return Complete(string(g)), nil
		}),
	}

	got, err := quietEngine(wf).Execute(context.Background(), unsupported)
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestExecuteNilInitialState(t *testing.T) {
	wf := testWorkflow{
		initial: func() *state.Bag { return nil },
		step: StepFunc(func(_ context.Context, bag *state.Bag) (Transition, error) {
			_, ok := state.Get[event.Event](bag)
			return Complete(ok), nil
		}),
	}

	got, err := quietEngine(wf).Execute(context.Background(), unsupported)
	require.NoError(t, err)
	assert.Equal(t, true, got)
}

func TestExecuteStepErrorAborts(t *testing.T) {
	boom := errors.New("boom")
	secondCalled := false
	second := StepFunc(func(context.Context, *state.Bag) (Transition, error) {
		secondCalled = true
		return Complete(nil), nil
	})
	wf := testWorkflow{step: StepFunc(func(context.Context, *state.Bag) (Transition, error) {
		return Continue(second), MissingData(boom)
	})}

	_, err := quietEngine(wf).Execute(context.Background(), unsupported)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, KindMissingData, KindOf(err))
	assert.False(t, secondCalled)
}

func TestExecuteMaxSteps(t *testing.T) {
	var loop Step
	loop = StepFunc(func(context.Context, *state.Bag) (Transition, error) {
		return Continue(loop), nil
	})

	_, err := quietEngine(testWorkflow{step: loop}, WithMaxSteps(10)).Execute(context.Background(), unsupported)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStepLimitExceeded)
	assert.Equal(t, KindUnexpected, KindOf(err))

	got, err := quietEngine(testWorkflow{step: chain(0, 9)}, WithMaxSteps(10)).Execute(context.Background(), unsupported)
	require.NoError(t, err)
	assert.Len(t, got.(calls), 10)
}

func TestExecuteNilStep(t *testing.T) {
	_, err := quietEngine(testWorkflow{}).Execute(context.Background(), unsupported)
	require.Error(t, err)
	assert.Equal(t, KindUnexpected, KindOf(err))

	wf := testWorkflow{step: StepFunc(func(context.Context, *state.Bag) (Transition, error) {
		return Transition{}, nil
	})}
	_, err = quietEngine(wf).Execute(context.Background(), unsupported)
	assert.Error(t, err)
}

func TestExecuteCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var second Step = StepFunc(func(context.Context, *state.Bag) (Transition, error) {
		t.Fatal("step should not run after cancellation")
		return Transition{}, nil
	})
	wf := testWorkflow{step: StepFunc(func(context.Context, *state.Bag) (Transition, error) {
		cancel()
		return Continue(second), nil
	})}

	_, err := quietEngine(wf).Execute(ctx, unsupported)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecuteConcurrentExecutionsAreIndependent(t *testing.T) {
	engine := quietEngine(testWorkflow{step: chain(0, 3)})

	var wg sync.WaitGroup
	results := make([]any, 32)
	errs := make([]error, 32)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = engine.Execute(context.Background(), unsupported)
		}()
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, calls{0, 1, 2, 3}, results[i])
	}
}

func TestErrorKinds(t *testing.T) {
	base := errors.New("no config file in repository")

	assert.Equal(t, KindConfiguration, KindOf(Configuration(base)))
	assert.Equal(t, KindMissingData, KindOf(MissingData(base)))
	assert.Equal(t, KindUnexpected, KindOf(Unexpected(base)))
	assert.Equal(t, KindUnexpected, KindOf(base))
	assert.Equal(t, KindConfiguration, KindOf(fmt.Errorf("wrapped: %w", Configuration(base))))

	assert.Equal(t, "no config file in repository", Configuration(base).Error())
	assert.Equal(t, "failed to get event from state", Missing("event").Error())
	assert.Equal(t, "configuration", KindConfiguration.String())
	assert.Equal(t, "missing_data", KindMissingData.String())
	assert.Equal(t, "unexpected", KindUnexpected.String())
}
