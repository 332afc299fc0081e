package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mattjoyce/octox/internal/event"
	"github.com/mattjoyce/octox/internal/log"
	"github.com/mattjoyce/octox/internal/state"
)

// Engine drives executions of one Workflow. It keeps no per-execution state,
// so Execute may be called from many goroutines at once.
type Engine struct {
	workflow Workflow
	maxSteps int
	logger   *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMaxSteps aborts executions that invoke more than n steps. Zero means no
// limit.
func WithMaxSteps(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an engine for wf.
func NewEngine(wf Workflow, opts ...EngineOption) *Engine {
	e := &Engine{
		workflow: wf,
		logger:   log.WithComponent("workflow"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the workflow against ev until a step completes or fails.
// The event is the first value placed in the execution's state bag.
func (e *Engine) Execute(ctx context.Context, ev event.Event) (any, error) {
	logger := log.WithExecution(e.logger, uuid.NewString()).With("event", ev.String())
	start := time.Now()

	bag := e.workflow.InitialState()
	if bag == nil {
		bag = state.New()
	}
	state.Insert(bag, ev)

	step := e.workflow.InitialStep()
	steps := 0
	for {
		if step == nil {
			return nil, Unexpected(errors.New("workflow returned a nil step"))
		}
		if err := ctx.Err(); err != nil {
			logger.Warn("workflow execution cancelled", "steps", steps, "error", err)
			return nil, Unexpected(fmt.Errorf("execution cancelled: %w", err))
		}
		if e.maxSteps > 0 && steps >= e.maxSteps {
			logger.Error("workflow step limit exceeded", "max_steps", e.maxSteps)
			return nil, Unexpected(fmt.Errorf("%w: %d steps", ErrStepLimitExceeded, e.maxSteps))
		}

		steps++
		transition, err := step.Next(ctx, bag)
		if err != nil {
			logger.Warn("workflow step failed",
				"step", steps,
				"kind", KindOf(err).String(),
				"error", err,
			)
			return nil, err
		}

		if transition.Done() {
			logger.Debug("workflow completed",
				"steps", steps,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return transition.Result(), nil
		}
		step = transition.NextStep()
	}
}
