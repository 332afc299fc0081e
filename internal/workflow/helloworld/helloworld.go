// Package helloworld is the smallest useful workflow: it acknowledges every
// event by echoing it back.
package helloworld

import (
	"context"

	"github.com/mattjoyce/octox/internal/event"
	"github.com/mattjoyce/octox/internal/github"
	"github.com/mattjoyce/octox/internal/state"
	"github.com/mattjoyce/octox/internal/workflow"
)

// Workflow responds with "received <event>".
type Workflow struct {
	workflow.Base
}

// New matches workflow.Constructor. Hello world never calls the API, so the
// credentials are ignored.
func New(github.Host, github.AppID, github.PrivateKey) workflow.Workflow {
	return Workflow{}
}

func (Workflow) InitialStep() workflow.Step { return greet{} }

type greet struct{}

func (greet) Next(_ context.Context, bag *state.Bag) (workflow.Transition, error) {
	ev, ok := state.Get[event.Event](bag)
	if !ok {
		return workflow.Transition{}, workflow.Missing("event")
	}
	return workflow.Complete("received " + ev.String()), nil
}
