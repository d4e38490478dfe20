package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openfleet/orchestrator/internal/prompts"
	"github.com/openfleet/orchestrator/internal/session"
	"github.com/openfleet/orchestrator/internal/workers"
)

// scriptedInvoker replays canned responses in call order
type scriptedInvoker struct {
	mu        sync.Mutex
	responses []workers.InvocationResult
	errs      []error
	prompts   []string
}

func (s *scriptedInvoker) Invoke(_ context.Context, _, _, prompt string) (workers.InvocationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := len(s.prompts)
	s.prompts = append(s.prompts, prompt)
	var res workers.InvocationResult
	if i < len(s.responses) {
		res = s.responses[i]
	}
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return res, err
}

func newTestAnalyzer(inv workers.Invoker) *Analyzer {
	dir := workers.NewStaticDirectory(
		workers.Definition{ID: "researcher", Name: "Researcher", Capabilities: []workers.Capability{
			{ID: "web-search", Name: "Web Search"},
		}},
	)
	return NewAnalyzer(inv, dir, prompts.NewDefaultBuilder(), zap.NewNop())
}

func ok(text string) workers.InvocationResult {
	return workers.InvocationResult{Text: text, Success: true}
}

func TestAnalyzeParsesWellFormedResponse(t *testing.T) {
	inv := &scriptedInvoker{responses: []workers.InvocationResult{
		ok(`Here is my analysis:
{"taskType": "research", "requiredCapabilities": ["web-search"], "complexity": "complex", "estimatedSubtasks": 3}`),
	}}
	a := newTestAnalyzer(inv)

	got := a.Analyze(context.Background(), "find papers", "conductor", "conv")
	assert.Equal(t, "research", got.TaskType)
	assert.Equal(t, ComplexityComplex, got.Complexity)
	assert.Equal(t, []string{"web-search"}, got.RequiredCapabilities)
	assert.Equal(t, 3, got.EstimatedSubtasks)
}

func TestAnalyzeCoercesUnknownComplexity(t *testing.T) {
	inv := &scriptedInvoker{responses: []workers.InvocationResult{
		ok(`{"taskType": "misc", "requiredCapabilities": [], "complexity": "EXTREME"}`),
	}}
	a := newTestAnalyzer(inv)

	got := a.Analyze(context.Background(), "q", "conductor", "conv")
	assert.Equal(t, ComplexityModerate, got.Complexity)
	assert.Equal(t, "misc", got.TaskType)
	assert.Equal(t, 1, got.EstimatedSubtasks)
}

func TestAnalyzeFallsBackOnWorkerError(t *testing.T) {
	inv := &scriptedInvoker{errs: []error{errors.New("boom")}}
	a := newTestAnalyzer(inv)

	got := a.Analyze(context.Background(), "q", "conductor", "conv")
	assert.Equal(t, DefaultAnalysis(), got)
}

func TestAnalyzeFallsBackOnGarbageResponse(t *testing.T) {
	inv := &scriptedInvoker{responses: []workers.InvocationResult{
		ok("I could not figure this out, sorry."),
	}}
	a := newTestAnalyzer(inv)

	got := a.Analyze(context.Background(), "q", "conductor", "conv")
	assert.Equal(t, DefaultAnalysis(), got)
}

func TestDecomposeSimpleSkipsDecompositionCall(t *testing.T) {
	inv := &scriptedInvoker{responses: []workers.InvocationResult{
		ok(`{"taskType": "lookup", "requiredCapabilities": ["web-search"], "complexity": "simple"}`),
	}}
	a := newTestAnalyzer(inv)

	subtasks := a.Decompose(context.Background(), "what time is it in Lisbon", "conductor", "conv")
	require.Len(t, subtasks, 1)
	assert.Equal(t, "what time is it in Lisbon", subtasks[0].Description)
	assert.Empty(t, subtasks[0].Dependencies)
	assert.Equal(t, []workers.CapabilityID{"web-search"}, subtasks[0].RequiredCapabilities)
	assert.Equal(t, session.SubtaskPending, subtasks[0].Status)
	// only the analysis call went out
	assert.Len(t, inv.prompts, 1)
}

func TestDecomposeBuildsGraphWithResolvedDependencies(t *testing.T) {
	inv := &scriptedInvoker{responses: []workers.InvocationResult{
		ok(`{"taskType": "report", "requiredCapabilities": [], "complexity": "complex"}`),
		ok("```json\n" + `[
			{"description": "gather data", "requiredCapabilities": ["web-search"]},
			{"description": "analyze data", "dependencies": [1]},
			{"description": "write report", "dependencies": ["2", 99, "bogus"]}
		]` + "\n```"),
	}}
	a := newTestAnalyzer(inv)

	subtasks := a.Decompose(context.Background(), "make a report", "conductor", "conv")
	require.Len(t, subtasks, 3)

	assert.Empty(t, subtasks[0].Dependencies)
	require.Len(t, subtasks[1].Dependencies, 1)
	assert.Equal(t, subtasks[0].ID, subtasks[1].Dependencies[0])
	// "2" resolves, 99 and "bogus" are dropped
	require.Len(t, subtasks[2].Dependencies, 1)
	assert.Equal(t, subtasks[1].ID, subtasks[2].Dependencies[0])

	// all IDs are fresh and unique
	seen := map[string]bool{}
	for _, st := range subtasks {
		assert.False(t, seen[st.ID])
		seen[st.ID] = true
	}
}

func TestDecomposeSkipsItemsWithoutDescription(t *testing.T) {
	inv := &scriptedInvoker{responses: []workers.InvocationResult{
		ok(`{"taskType": "t", "requiredCapabilities": [], "complexity": "moderate"}`),
		ok(`[{"description": ""}, {"description": "real work", "dependencies": [2]}]`),
	}}
	a := newTestAnalyzer(inv)

	subtasks := a.Decompose(context.Background(), "q", "conductor", "conv")
	require.Len(t, subtasks, 1)
	assert.Equal(t, "real work", subtasks[0].Description)
	// self-reference via index is dropped
	assert.Empty(t, subtasks[0].Dependencies)
}

func TestDecomposeFallsBackOnTruncatedJSON(t *testing.T) {
	inv := &scriptedInvoker{responses: []workers.InvocationResult{
		ok(`{"taskType": "report", "requiredCapabilities": ["web-search"], "complexity": "complex"}`),
		ok(`[{"description": "gather da`),
	}}
	a := newTestAnalyzer(inv)

	subtasks := a.Decompose(context.Background(), "make a report", "conductor", "conv")
	require.Len(t, subtasks, 1)
	assert.Equal(t, "make a report", subtasks[0].Description)
	assert.Equal(t, []workers.CapabilityID{"web-search"}, subtasks[0].RequiredCapabilities)
}

func TestDecomposeFallsBackOnWorkerError(t *testing.T) {
	inv := &scriptedInvoker{
		responses: []workers.InvocationResult{
			ok(`{"taskType": "t", "requiredCapabilities": [], "complexity": "moderate"}`),
			{Success: false, Error: "model overloaded"},
		},
	}
	a := newTestAnalyzer(inv)

	subtasks := a.Decompose(context.Background(), "q", "conductor", "conv")
	require.Len(t, subtasks, 1)
	assert.Equal(t, "q", subtasks[0].Description)
}
