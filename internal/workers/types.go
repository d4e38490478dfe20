package workers

import (
	"context"
	"errors"
)

var (
	// ErrWorkerNotFound is returned when a worker doesn't exist in the directory
	ErrWorkerNotFound = errors.New("worker not found")
)

// CapabilityID is an opaque capability identifier. Matching on the ID is
// exact; matching on the human-readable name is case-insensitive and is
// only a secondary strategy (see selection package).
type CapabilityID string

// Capability describes one thing a worker can do
type Capability struct {
	ID          CapabilityID `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
}

// Definition is the full worker record the directory exposes
type Definition struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Capabilities   []Capability `json:"capabilities"`
	IsOrchestrator bool         `json:"is_orchestrator"`
}

// Summary is the lightweight listing form of a worker
type Summary struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	IsOrchestrator bool   `json:"is_orchestrator"`
}

// Directory supplies worker definitions. Implementations live outside the
// orchestration core (static registration, database, remote registry); the
// core only ever calls these two methods.
type Directory interface {
	GetWorker(ctx context.Context, id string) (*Definition, error)
	ListWorkers(ctx context.Context) ([]Definition, error)
}

// ToolOutcome summarizes a single tool invocation performed by a worker
type ToolOutcome struct {
	Tool    string      `json:"tool"`
	Success bool        `json:"success"`
	Output  interface{} `json:"output,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// InvocationResult is what a worker call returns
type InvocationResult struct {
	Text         string        `json:"text"`
	ToolOutcomes []ToolOutcome `json:"tool_outcomes,omitempty"`
	Success      bool          `json:"success"`
	Error        string        `json:"error,omitempty"`
}

// Invoker executes a worker with a prompt in the scope of a conversation.
// Prompt assembly internals, model selection, and tool execution are the
// implementation's concern; the core treats the call as opaque.
type Invoker interface {
	Invoke(ctx context.Context, workerID, conversationID, prompt string) (InvocationResult, error)
}
