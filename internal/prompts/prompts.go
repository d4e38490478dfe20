// Package prompts renders the LLM prompts used during an orchestration
// run. The orchestration core treats prompt text as opaque; hosts can
// swap in their own Builder to customize tone or add house rules.
package prompts

import (
	"fmt"
	"strings"

	"github.com/openfleet/orchestrator/internal/workers"
)

// Builder renders the prompts for each pipeline stage
type Builder interface {
	Analysis(query string, candidates []workers.Definition) string
	Decomposition(query string, taskType string, requiredCapabilities []string, candidates []workers.Definition) string
	SubtaskExecution(originalQuery, description, dependencyContext string) string
	Synthesis(originalQuery, subtaskSummary string) string
}

// DefaultBuilder is the stock prompt set
type DefaultBuilder struct{}

// NewDefaultBuilder returns the stock builder
func NewDefaultBuilder() *DefaultBuilder {
	return &DefaultBuilder{}
}

// Analysis asks the worker to classify a request and name the
// capabilities it needs, as a strict JSON object.
func (b *DefaultBuilder) Analysis(query string, candidates []workers.Definition) string {
	var sb strings.Builder
	sb.WriteString("Analyze the following request and classify it.\n\n")
	sb.WriteString("Request:\n")
	sb.WriteString(query)
	sb.WriteString("\n\n")
	writeCandidateCapabilities(&sb, candidates)
	sb.WriteString("Respond with a single JSON object:\n")
	sb.WriteString(`{"taskType": "<short label>", "requiredCapabilities": ["<capability>", ...], "complexity": "simple|moderate|complex", "domainContext": "<optional>", "estimatedSubtasks": <number>}`)
	sb.WriteString("\nNo prose outside the JSON object.")
	return sb.String()
}

// Decomposition asks the worker to break the request into subtasks as a
// strict JSON array. Dependencies may reference earlier entries by
// 1-based index.
func (b *DefaultBuilder) Decomposition(query, taskType string, requiredCapabilities []string, candidates []workers.Definition) string {
	var sb strings.Builder
	sb.WriteString("Break the following request into the smallest set of independent subtasks.\n\n")
	sb.WriteString("Request:\n")
	sb.WriteString(query)
	sb.WriteString("\n\n")
	if taskType != "" {
		fmt.Fprintf(&sb, "Task type: %s\n", taskType)
	}
	if len(requiredCapabilities) > 0 {
		fmt.Fprintf(&sb, "Capabilities identified: %s\n", strings.Join(requiredCapabilities, ", "))
	}
	sb.WriteString("\n")
	writeCandidateCapabilities(&sb, candidates)
	sb.WriteString("Respond with a single JSON array:\n")
	sb.WriteString(`[{"description": "<what to do>", "requiredCapabilities": ["<capability>", ...], "dependencies": [<1-based index of an earlier subtask>, ...]}, ...]`)
	sb.WriteString("\nOrder subtasks so dependencies always come before dependents. No prose outside the JSON array.")
	return sb.String()
}

// SubtaskExecution carries the original request, this subtask's
// description, and the results of its completed dependencies.
func (b *DefaultBuilder) SubtaskExecution(originalQuery, description, dependencyContext string) string {
	var sb strings.Builder
	sb.WriteString("You are executing one subtask of a larger request.\n\n")
	sb.WriteString("Original request:\n")
	sb.WriteString(originalQuery)
	sb.WriteString("\n\nYour subtask:\n")
	sb.WriteString(description)
	sb.WriteString("\n")
	if dependencyContext != "" {
		sb.WriteString("\nResults from prerequisite subtasks:\n")
		sb.WriteString(dependencyContext)
	}
	sb.WriteString("\nComplete only your subtask. Be concise and concrete.")
	return sb.String()
}

// Synthesis asks the orchestrator worker to merge subtask outcomes into
// one final answer.
func (b *DefaultBuilder) Synthesis(originalQuery, subtaskSummary string) string {
	var sb strings.Builder
	sb.WriteString("Combine the subtask results below into one final answer.\n\n")
	sb.WriteString("Original request:\n")
	sb.WriteString(originalQuery)
	sb.WriteString("\n\nSubtask results:\n")
	sb.WriteString(subtaskSummary)
	sb.WriteString("\nAnswer the original request directly. Do not describe the subtasks or the process.")
	return sb.String()
}

func writeCandidateCapabilities(sb *strings.Builder, candidates []workers.Definition) {
	if len(candidates) == 0 {
		return
	}
	sb.WriteString("Available worker capabilities:\n")
	for _, w := range candidates {
		if len(w.Capabilities) == 0 {
			fmt.Fprintf(sb, "- %s\n", w.Name)
			continue
		}
		names := make([]string, 0, len(w.Capabilities))
		for _, c := range w.Capabilities {
			names = append(names, c.Name)
		}
		fmt.Fprintf(sb, "- %s: %s\n", w.Name, strings.Join(names, ", "))
	}
	sb.WriteString("\n")
}
