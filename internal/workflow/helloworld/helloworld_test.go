package helloworld

import (
	"context"
	"testing"

	"github.com/mattjoyce/octox/internal/event"
	"github.com/mattjoyce/octox/internal/github"
	"github.com/mattjoyce/octox/internal/state"
	"github.com/mattjoyce/octox/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHelloWorldEchoesEvent(t *testing.T) {
	var ctor workflow.Constructor = New
	wf := ctor(github.DefaultHost, 1, github.PrivateKey{})

	got, err := workflow.NewEngine(wf).Execute(context.Background(), event.Event{Kind: event.KindUnsupported})
	require.NoError(t, err)
	assert.Equal(t, "received unsupported event", got)
}

func TestHelloWorldWithoutEvent(t *testing.T) {
	_, err := greet{}.Next(context.Background(), state.New())
	require.Error(t, err)
	assert.Equal(t, workflow.KindMissingData, workflow.KindOf(err))
}
