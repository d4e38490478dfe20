package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openfleet/orchestrator/internal/workers"
)

func TestAnalysisPromptListsCandidateCapabilities(t *testing.T) {
	b := NewDefaultBuilder()
	got := b.Analysis("summarize this PDF", []workers.Definition{
		{ID: "reader", Name: "Reader", Capabilities: []workers.Capability{
			{ID: "pdf", Name: "PDF Parsing"},
			{ID: "sum", Name: "Summarization"},
		}},
		{ID: "bare", Name: "Bare"},
	})

	assert.Contains(t, got, "summarize this PDF")
	assert.Contains(t, got, "- Reader: PDF Parsing, Summarization")
	assert.Contains(t, got, "- Bare")
	assert.Contains(t, got, `"complexity": "simple|moderate|complex"`)
}

func TestSubtaskExecutionPromptOmitsEmptyDependencyContext(t *testing.T) {
	b := NewDefaultBuilder()

	bare := b.SubtaskExecution("the query", "do the thing", "")
	assert.NotContains(t, bare, "prerequisite subtasks")

	withDeps := b.SubtaskExecution("the query", "do the thing", "### earlier\nits result\n")
	assert.Contains(t, withDeps, "prerequisite subtasks")
	assert.Contains(t, withDeps, "its result")
}

func TestDecompositionPromptCarriesAnalysis(t *testing.T) {
	b := NewDefaultBuilder()
	got := b.Decomposition("build a site", "engineering", []string{"html", "css"}, nil)
	assert.Contains(t, got, "Task type: engineering")
	assert.Contains(t, got, "html, css")
	assert.Contains(t, got, "1-based index")
}
