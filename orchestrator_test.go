package orchestrator

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// hostInvoker is what a minimal embedding host would implement
type hostInvoker struct{}

func (hostInvoker) Invoke(_ context.Context, workerID, _, prompt string) (InvocationResult, error) {
	switch {
	case strings.Contains(prompt, "Analyze the following request"):
		return InvocationResult{
			Text:    `{"taskType": "lookup", "requiredCapabilities": ["search"], "complexity": "simple"}`,
			Success: true,
		}, nil
	case strings.Contains(prompt, "Combine the subtask results"):
		return InvocationResult{Text: "final answer", Success: true}, nil
	default:
		return InvocationResult{Text: "handled by " + workerID, Success: true}, nil
	}
}

func TestEngineEndToEndThroughPublicSurface(t *testing.T) {
	dir := NewStaticDirectory(
		Definition{ID: "conductor", Name: "Conductor", IsOrchestrator: true},
		Definition{ID: "searcher", Name: "Searcher", Capabilities: []Capability{
			{ID: "search", Name: "Search"},
		}},
	)
	e := New(dir, hostInvoker{}, nil, zap.NewNop())

	res := e.Execute(context.Background(), "conv-1", "look something up", "conductor")
	require.True(t, res.Success)
	assert.Equal(t, "final answer", res.FinalResponse)
	assert.Equal(t, []string{"Searcher"}, res.WorkersInvolved)

	status, err := e.GetOrchestrationStatus(res.SessionID)
	require.NoError(t, err)
	assert.Len(t, status.SubtasksBySession[res.SessionID], 1)

	_, err = e.GetOrchestrationStatus("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestNewDefaultsNilArguments(t *testing.T) {
	e := New(NewStaticDirectory(), hostInvoker{}, nil, nil)
	require.NotNil(t, e)
}
