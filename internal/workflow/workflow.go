// Package workflow runs pluggable business logic against decoded webhook
// events.
//
// A Workflow names its first Step. Each Step reads and writes the shared
// state.Bag and returns a Transition: either the next Step to run or the
// final result. The chain is built at runtime, so branching and loops are
// possible; making sure a chain terminates is up to the workflow author.
package workflow

import (
	"context"

	"github.com/mattjoyce/octox/internal/github"
	"github.com/mattjoyce/octox/internal/state"
)

// Step is one unit of workflow logic. Next may block on I/O; it is never
// called concurrently for the same execution.
type Step interface {
	Next(ctx context.Context, bag *state.Bag) (Transition, error)
}

// StepFunc adapts a function to the Step interface.
type StepFunc func(ctx context.Context, bag *state.Bag) (Transition, error)

func (f StepFunc) Next(ctx context.Context, bag *state.Bag) (Transition, error) {
	return f(ctx, bag)
}

// Transition is the outcome of a Step.
type Transition struct {
	next   Step
	result any
	done   bool
}

// Continue hands control to step.
func Continue(step Step) Transition {
	return Transition{next: step}
}

// Complete ends the execution with a JSON serializable result.
func Complete(result any) Transition {
	return Transition{result: result, done: true}
}

// Done reports whether the transition completes the execution.
func (t Transition) Done() bool { return t.done }

// Result returns the completion value.
func (t Transition) Result() any { return t.result }

// NextStep returns the step to continue with.
func (t Transition) NextStep() Step { return t.next }

// Workflow is shared by all executions and must not be mutated after
// construction.
type Workflow interface {
	InitialState() *state.Bag
	InitialStep() Step
}

// Base can be embedded to get the default empty initial state.
type Base struct{}

func (Base) InitialState() *state.Bag { return state.New() }

// Constructor builds a Workflow from the app credentials.
type Constructor func(host github.Host, appID github.AppID, key github.PrivateKey) Workflow
